// Package metrics exports content engine activity as Prometheus metrics.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/tendant/simple-cms/pkg/simplecms"
)

const namespace = "cms"

// EventSink counts engine events. It never returns an error.
type EventSink struct {
	models           *prometheus.CounterVec
	items            *prometheus.CounterVec
	published        *prometheus.CounterVec
	validationFailed *prometheus.CounterVec
	requests         *prometheus.CounterVec
	duration         *prometheus.HistogramVec
}

var _ simplecms.EventSink = (*EventSink)(nil)

// New registers the collectors with reg.
func New(reg prometheus.Registerer) (*EventSink, error) {
	s := &EventSink{
		models: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "models_total",
			Help:      "Content model lifecycle events by operation.",
		}, []string{"op"}),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_total",
			Help:      "Content item lifecycle events by model and operation.",
		}, []string{"model", "op"}),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_published_total",
			Help:      "Items that entered the published state for the first time.",
		}, []string{"model"}),
		validationFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_failures_total",
			Help:      "Item payloads rejected by validation.",
		}, []string{"model"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern, method and status code.",
		}, []string{"route", "method", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}

	for _, c := range []prometheus.Collector{s.models, s.items, s.published, s.validationFailed, s.requests, s.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *EventSink) ModelCreated(ctx context.Context, model *simplecms.ContentModel) error {
	s.models.WithLabelValues("create").Inc()
	return nil
}

func (s *EventSink) ModelUpdated(ctx context.Context, model *simplecms.ContentModel) error {
	s.models.WithLabelValues("update").Inc()
	return nil
}

func (s *EventSink) ModelDeleted(ctx context.Context, model *simplecms.ContentModel) error {
	s.models.WithLabelValues("delete").Inc()
	return nil
}

func (s *EventSink) ItemCreated(ctx context.Context, item *simplecms.ContentItem) error {
	s.items.WithLabelValues(item.ModelSlug, "create").Inc()
	return nil
}

func (s *EventSink) ItemUpdated(ctx context.Context, item *simplecms.ContentItem) error {
	s.items.WithLabelValues(item.ModelSlug, "update").Inc()
	return nil
}

func (s *EventSink) ItemDeleted(ctx context.Context, item *simplecms.ContentItem) error {
	s.items.WithLabelValues(item.ModelSlug, "delete").Inc()
	return nil
}

func (s *EventSink) ItemPublished(ctx context.Context, item *simplecms.ContentItem) error {
	s.published.WithLabelValues(item.ModelSlug).Inc()
	return nil
}

func (s *EventSink) ValidationFailed(ctx context.Context, modelSlug string, messages []string) error {
	s.validationFailed.WithLabelValues(modelSlug).Inc()
	return nil
}

// Middleware records request counts and latency. The chi route pattern is
// used as label so item slugs do not blow up cardinality.
func (s *EventSink) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.requests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		s.duration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
