package observer

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	name   string
	mu     sync.Mutex
	events []AnalysisEvent
}

func (o *recordingObserver) OnEvent(ctx context.Context, event AnalysisEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, event)
}

func (o *recordingObserver) GetObserverName() string { return o.name }

type panickingObserver struct{}

func (panickingObserver) OnEvent(ctx context.Context, event AnalysisEvent) { panic("boom") }
func (panickingObserver) GetObserverName() string                            { return "panicking" }

func TestEventPublisher_NotifiesSubscribers(t *testing.T) {
	publisher := NewEventPublisher()
	first := &recordingObserver{name: "first"}
	second := &recordingObserver{name: "second"}
	publisher.Subscribe(first)
	publisher.Subscribe(second)

	publisher.NotifyObservers(context.Background(), AnalysisEvent{EventType: AnalysisStarted, RequestID: "req-1"})

	require.Len(t, first.events, 1)
	require.Len(t, second.events, 1)
	assert.Equal(t, "req-1", first.events[0].RequestID)
	assert.False(t, first.events[0].Timestamp.IsZero())

	publisher.Unsubscribe(first)
	publisher.NotifyObservers(context.Background(), AnalysisEvent{EventType: AnalysisCompleted})

	assert.Len(t, first.events, 1)
	assert.Len(t, second.events, 2)
}

func TestEventPublisher_SurvivesPanickingObserver(t *testing.T) {
	publisher := NewEventPublisher()
	after := &recordingObserver{name: "after"}
	publisher.Subscribe(panickingObserver{})
	publisher.Subscribe(after)

	assert.NotPanics(t, func() {
		publisher.NotifyObservers(context.Background(), AnalysisEvent{EventType: AnalysisFailed})
	})
	assert.Len(t, after.events, 1)
}

func TestMetricsObserver_CountsOutcomes(t *testing.T) {
	metrics := NewMetricsObserver()
	ctx := context.Background()

	metrics.OnEvent(ctx, AnalysisEvent{EventType: AnalysisCompleted, ProcessingTime: time.Second})
	metrics.OnEvent(ctx, AnalysisEvent{EventType: AnalysisCompleted, ProcessingTime: time.Second})
	metrics.OnEvent(ctx, AnalysisEvent{EventType: AnalysisFailed, ErrorType: "upstream"})
	metrics.OnEvent(ctx, AnalysisEvent{EventType: UpstreamCompleted, UpstreamStatus: 529})

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.analyses.WithLabelValues("success", "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.analyses.WithLabelValues("error", "upstream")))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.analyses.WithLabelValues("error", "invalid_request")))
}

func TestMetricsObserver_Handler(t *testing.T) {
	metrics := NewMetricsObserver()
	metrics.OnEvent(context.Background(), AnalysisEvent{EventType: AnalysisCompleted})

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "leaf_relay_analyses_total")
}

func TestStatusLabel(t *testing.T) {
	assert.Equal(t, "transport_error", statusLabel(0))
	assert.Equal(t, "2xx", statusLabel(200))
	assert.Equal(t, "4xx", statusLabel(429))
	assert.Equal(t, "5xx", statusLabel(529))
}

func TestLoggingObserver_WritesFields(t *testing.T) {
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)
	log.SetFormatter(&logrus.JSONFormatter{})

	obs := NewLoggingObserver(log)
	obs.OnEvent(context.Background(), AnalysisEvent{
		EventType:      AnalysisFailed,
		RequestID:      "req-42",
		ErrorType:      "upstream",
		ErrorMessage:   "upstream returned status 529",
		UpstreamStatus: 529,
	})

	out := buf.String()
	assert.True(t, strings.Contains(out, `"request_id":"req-42"`), out)
	assert.Contains(t, out, `"upstream_status":529`)
	assert.Contains(t, out, "Leaf analysis failed")
	assert.Equal(t, "logging_observer", obs.GetObserverName())
}
