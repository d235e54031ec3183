package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go-leaf-relay/internal/anthropic"
	apperrors "go-leaf-relay/internal/errors"
	"go-leaf-relay/internal/logger"
	"go-leaf-relay/internal/observer"
	"go-leaf-relay/pkg/models"
	"go-leaf-relay/pkg/validation"
)

// LeafAnalysisService relays leaf images to the upstream vision model
type LeafAnalysisService interface {
	// AnalyzeLeaf validates the request, forwards it upstream and returns the model's answer.
	// Every failure is an *apperrors.AppError.
	AnalyzeLeaf(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisResult, error)
}

type leafAnalysisService struct {
	client          anthropic.MessagesClient
	validator       *validation.ImageValidator
	events          observer.Subject
	upstreamTimeout time.Duration
}

// NewLeafAnalysisService creates the relay service. A nil client means no API key is
// configured: every analysis then fails with a configuration error.
func NewLeafAnalysisService(
	client anthropic.MessagesClient,
	validator *validation.ImageValidator,
	events observer.Subject,
	upstreamTimeout time.Duration,
) LeafAnalysisService {
	if validator == nil {
		validator = validation.NewImageValidator()
	}
	if events == nil {
		events = observer.NewEventPublisher()
	}
	return &leafAnalysisService{
		client:          client,
		validator:       validator,
		events:          events,
		upstreamTimeout: upstreamTimeout,
	}
}

func (s *leafAnalysisService) AnalyzeLeaf(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisResult, error) {
	start := time.Now()
	result, payload, err := s.analyze(ctx, req)

	event := observer.AnalysisEvent{
		RequestID:      logger.RequestIDFromContext(ctx),
		ProcessingTime: time.Since(start),
		Success:        err == nil,
	}
	if payload != nil {
		event.MediaType = payload.MediaType
		event.ImageBytes = payload.Size
	}
	if err != nil {
		appErr := apperrors.AsAppError(err)
		event.EventType = observer.AnalysisFailed
		event.ErrorType = string(appErr.Type)
		event.ErrorMessage = appErr.Message
		event.UpstreamStatus = appErr.UpstreamStatus
		s.events.NotifyObservers(ctx, event)
		return nil, appErr
	}
	event.EventType = observer.AnalysisCompleted
	event.Metadata = map[string]interface{}{"analysis_chars": len(result.Analysis)}
	s.events.NotifyObservers(ctx, event)
	return result, nil
}

func (s *leafAnalysisService) analyze(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisResult, *validation.ImagePayload, error) {
	if strings.TrimSpace(req.Image) == "" {
		return nil, nil, apperrors.NewInvalidRequestError("no image data provided", nil)
	}
	if s.client == nil {
		return nil, nil, apperrors.NewConfigurationError("API key not configured")
	}

	payload, err := s.validator.ValidateImage(req.Image, req.MediaType)
	if err != nil {
		return nil, nil, err
	}

	s.events.NotifyObservers(ctx, observer.AnalysisEvent{
		EventType:  observer.AnalysisStarted,
		RequestID:  logger.RequestIDFromContext(ctx),
		MediaType:  payload.MediaType,
		ImageBytes: payload.Size,
	})

	if s.upstreamTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.upstreamTimeout)
		defer cancel()
	}

	upstreamStart := time.Now()
	resp, err := s.client.CreateMessage(ctx, BuildMessagesRequest(payload.MediaType, payload.Data))
	s.notifyUpstream(ctx, time.Since(upstreamStart), err)
	if err != nil {
		return nil, payload, classifyUpstreamError(err)
	}

	if len(resp.Content) == 0 {
		return nil, payload, apperrors.NewMalformedUpstreamError("upstream response contained no content", nil)
	}
	text, ok := resp.FirstText()
	if !ok {
		return nil, payload, apperrors.NewMalformedUpstreamError(
			fmt.Sprintf("upstream response contained no text content (first block type %q)", resp.Content[0].Type), nil)
	}

	logger.FromContext(ctx).WithField("stop_reason", resp.StopReason).
		WithField("output_tokens", resp.Usage.OutputTokens).
		Debug("Extracted analysis text")

	return &models.AnalysisResult{Analysis: text}, payload, nil
}

func (s *leafAnalysisService) notifyUpstream(ctx context.Context, elapsed time.Duration, err error) {
	event := observer.AnalysisEvent{
		EventType:      observer.UpstreamCompleted,
		RequestID:      logger.RequestIDFromContext(ctx),
		ProcessingTime: elapsed,
		Success:        err == nil,
		UpstreamStatus: 200,
	}
	var statusErr *anthropic.StatusError
	switch {
	case err == nil:
	case errors.As(err, &statusErr):
		event.UpstreamStatus = statusErr.StatusCode
	case errors.Is(err, anthropic.ErrMalformedResponse):
	default:
		event.UpstreamStatus = 0
		event.ErrorMessage = err.Error()
	}
	s.events.NotifyObservers(ctx, event)
}

// classifyUpstreamError maps client errors onto the relay's error taxonomy.
func classifyUpstreamError(err error) *apperrors.AppError {
	var statusErr *anthropic.StatusError
	switch {
	case errors.As(err, &statusErr):
		appErr := apperrors.NewUpstreamStatusError(statusErr.StatusCode, statusErr.Body, err)
		if statusErr.Message != "" {
			appErr.Message = fmt.Sprintf("%s: %s", appErr.Message, statusErr.Message)
		}
		return appErr
	case errors.Is(err, anthropic.ErrMalformedResponse):
		return apperrors.NewMalformedUpstreamError("upstream response could not be decoded", err)
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewUpstreamError("upstream request timed out", err)
	case errors.Is(err, context.Canceled):
		return apperrors.NewUpstreamError("upstream request cancelled", err)
	default:
		return apperrors.NewUpstreamError(fmt.Sprintf("upstream request failed: %v", err), err)
	}
}
