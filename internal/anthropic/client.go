package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go-leaf-relay/internal/logger"

	"github.com/sirupsen/logrus"
)

const (
	// APIVersion is sent as the anthropic-version header.
	APIVersion       = "2023-06-01"
	messagesPath     = "/v1/messages"
	maxResponseBytes = 4 << 20
)

// ErrMalformedResponse marks a 2xx response whose body could not be decoded.
var ErrMalformedResponse = errors.New("malformed response body")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
	// Message is the upstream error.message when the body is an API error envelope.
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Body)
}

// MessagesClient sends Messages API requests.
type MessagesClient interface {
	CreateMessage(ctx context.Context, req *MessagesRequest) (*MessagesResponse, error)
}

// Client talks to the Anthropic Messages API over HTTPS.
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewClient creates a Messages API client. The per-call deadline comes from ctx; timeout only
// bounds the connection phases of the shared transport.
func NewClient(apiKey, baseURL string, timeout time.Duration) *Client {
	return NewClientWithHTTPClient(apiKey, baseURL, newHTTPClient(timeout))
}

// NewClientWithHTTPClient creates a client around a caller-supplied http.Client.
func NewClientWithHTTPClient(apiKey, baseURL string, httpClient *http.Client) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httpClient,
	}
}

func newHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// CreateMessage posts req and decodes the response. Non-2xx statuses return *StatusError,
// undecodable 2xx bodies return an error wrapping ErrMalformedResponse, anything else is a
// transport error.
func (c *Client) CreateMessage(ctx context.Context, req *MessagesRequest) (*MessagesResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+messagesPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("anthropic-version", APIVersion)
	httpReq.Header.Set("x-api-key", c.apiKey)

	logger.WithFields(logrus.Fields{
		"url":        httpReq.URL.String(),
		"model":      req.Model,
		"max_tokens": req.MaxTokens,
		"content":    describeRequest(req),
	}).Debug("Sending upstream request")

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"status":      resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
		"body":        logger.Truncate(string(respBody), 512),
	}).Debug("Received upstream response")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
		var envelope errorEnvelope
		if json.Unmarshal(respBody, &envelope) == nil {
			statusErr.Message = envelope.Error.Message
		}
		return nil, statusErr
	}

	var out MessagesResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return &out, nil
}

// describeRequest renders the content parts for logs with image data elided.
func describeRequest(req *MessagesRequest) []string {
	var parts []string
	for _, msg := range req.Messages {
		for _, block := range msg.Content {
			switch {
			case block.Source != nil:
				parts = append(parts, fmt.Sprintf("%s:%s %s", block.Type, block.Source.MediaType, logger.ElidePayload(block.Source.Data)))
			default:
				parts = append(parts, fmt.Sprintf("%s:%s", block.Type, logger.Truncate(block.Text, 64)))
			}
		}
	}
	return parts
}
