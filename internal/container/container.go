package container

import (
	"net/http"

	"go-leaf-relay/internal/anthropic"
	"go-leaf-relay/internal/config"
	"go-leaf-relay/internal/logger"
	"go-leaf-relay/internal/observer"
	"go-leaf-relay/internal/service"
	"go-leaf-relay/internal/transport"
	"go-leaf-relay/pkg/validation"
)

// Container holds all application dependencies
type Container struct {
	config              *config.Config
	messagesClient      anthropic.MessagesClient
	events              *observer.EventPublisher
	metrics             *observer.MetricsObserver
	leafAnalysisService service.LeafAnalysisService
	handler             http.Handler
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *config.Config) (*Container, error) {
	var client anthropic.MessagesClient
	if cfg.HasAPIKey() {
		client = anthropic.NewClient(cfg.AnthropicAPIKey, cfg.AnthropicBaseURL, cfg.UpstreamTimeout)
	} else {
		logger.Logger.Warn("ANTHROPIC_API_KEY is not set; /analyze_leaf will answer 400 until it is configured")
	}

	metrics := observer.NewMetricsObserver()
	events := observer.NewEventPublisher()
	events.Subscribe(observer.NewLoggingObserver(logger.Logger))
	events.Subscribe(metrics)

	leafAnalysisService := service.NewLeafAnalysisService(client, validation.NewImageValidator(), events, cfg.UpstreamTimeout)
	handler := transport.NewHandler(leafAnalysisService, metrics.Handler(), cfg)

	return &Container{
		config:              cfg,
		messagesClient:      client,
		events:              events,
		metrics:             metrics,
		leafAnalysisService: leafAnalysisService,
		handler:             handler,
	}, nil
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// MessagesClient returns the upstream client, nil when no API key is configured
func (c *Container) MessagesClient() anthropic.MessagesClient {
	return c.messagesClient
}

// Events returns the analysis event publisher
func (c *Container) Events() *observer.EventPublisher {
	return c.events
}

// Metrics returns the prometheus observer backing /metrics
func (c *Container) Metrics() *observer.MetricsObserver {
	return c.metrics
}

// LeafAnalysisService returns the relay service
func (c *Container) LeafAnalysisService() service.LeafAnalysisService {
	return c.leafAnalysisService
}
