package simplecms

import (
	"context"
	"errors"
	"log/slog"
	"strings"
)

// NoopEventSink discards every event.
type NoopEventSink struct{}

// NewNoopEventSink creates a new no-operation event sink
func NewNoopEventSink() EventSink {
	return &NoopEventSink{}
}

func (n *NoopEventSink) ModelCreated(ctx context.Context, model *ContentModel) error { return nil }
func (n *NoopEventSink) ModelUpdated(ctx context.Context, model *ContentModel) error { return nil }
func (n *NoopEventSink) ModelDeleted(ctx context.Context, model *ContentModel) error { return nil }
func (n *NoopEventSink) ItemCreated(ctx context.Context, item *ContentItem) error    { return nil }
func (n *NoopEventSink) ItemUpdated(ctx context.Context, item *ContentItem) error    { return nil }
func (n *NoopEventSink) ItemDeleted(ctx context.Context, item *ContentItem) error    { return nil }
func (n *NoopEventSink) ItemPublished(ctx context.Context, item *ContentItem) error  { return nil }
func (n *NoopEventSink) ValidationFailed(ctx context.Context, modelSlug string, messages []string) error {
	return nil
}

// LoggingEventSink writes every event to a structured logger.
// Useful for development and debugging
type LoggingEventSink struct {
	logger *slog.Logger
}

// NewLoggingEventSink creates a new logging event sink. A nil logger uses slog.Default().
func NewLoggingEventSink(logger *slog.Logger) EventSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingEventSink{logger: logger}
}

func (l *LoggingEventSink) ModelCreated(ctx context.Context, model *ContentModel) error {
	l.logger.InfoContext(ctx, "model created", "model_id", model.ID, "slug", model.Slug, "fields", len(model.Fields))
	return nil
}

func (l *LoggingEventSink) ModelUpdated(ctx context.Context, model *ContentModel) error {
	l.logger.InfoContext(ctx, "model updated", "model_id", model.ID, "slug", model.Slug)
	return nil
}

func (l *LoggingEventSink) ModelDeleted(ctx context.Context, model *ContentModel) error {
	l.logger.InfoContext(ctx, "model deleted", "model_id", model.ID, "slug", model.Slug)
	return nil
}

func (l *LoggingEventSink) ItemCreated(ctx context.Context, item *ContentItem) error {
	l.logger.InfoContext(ctx, "item created", "item_id", item.ID, "model", item.ModelSlug, "slug", item.Slug, "status", item.Status)
	return nil
}

func (l *LoggingEventSink) ItemUpdated(ctx context.Context, item *ContentItem) error {
	l.logger.InfoContext(ctx, "item updated", "item_id", item.ID, "model", item.ModelSlug, "version", item.Version)
	return nil
}

func (l *LoggingEventSink) ItemDeleted(ctx context.Context, item *ContentItem) error {
	l.logger.InfoContext(ctx, "item deleted", "item_id", item.ID, "model", item.ModelSlug)
	return nil
}

func (l *LoggingEventSink) ItemPublished(ctx context.Context, item *ContentItem) error {
	l.logger.InfoContext(ctx, "item published", "item_id", item.ID, "model", item.ModelSlug, "published_at", item.PublishedAt)
	return nil
}

func (l *LoggingEventSink) ValidationFailed(ctx context.Context, modelSlug string, messages []string) error {
	l.logger.WarnContext(ctx, "validation failed", "model", modelSlug, "errors", strings.Join(messages, "; "))
	return nil
}

// MultiEventSink fans every event out to several sinks and joins their errors.
type MultiEventSink []EventSink

func (m MultiEventSink) each(fn func(EventSink) error) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := fn(sink); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiEventSink) ModelCreated(ctx context.Context, model *ContentModel) error {
	return m.each(func(s EventSink) error { return s.ModelCreated(ctx, model) })
}

func (m MultiEventSink) ModelUpdated(ctx context.Context, model *ContentModel) error {
	return m.each(func(s EventSink) error { return s.ModelUpdated(ctx, model) })
}

func (m MultiEventSink) ModelDeleted(ctx context.Context, model *ContentModel) error {
	return m.each(func(s EventSink) error { return s.ModelDeleted(ctx, model) })
}

func (m MultiEventSink) ItemCreated(ctx context.Context, item *ContentItem) error {
	return m.each(func(s EventSink) error { return s.ItemCreated(ctx, item) })
}

func (m MultiEventSink) ItemUpdated(ctx context.Context, item *ContentItem) error {
	return m.each(func(s EventSink) error { return s.ItemUpdated(ctx, item) })
}

func (m MultiEventSink) ItemDeleted(ctx context.Context, item *ContentItem) error {
	return m.each(func(s EventSink) error { return s.ItemDeleted(ctx, item) })
}

func (m MultiEventSink) ItemPublished(ctx context.Context, item *ContentItem) error {
	return m.each(func(s EventSink) error { return s.ItemPublished(ctx, item) })
}

func (m MultiEventSink) ValidationFailed(ctx context.Context, modelSlug string, messages []string) error {
	return m.each(func(s EventSink) error { return s.ValidationFailed(ctx, modelSlug, messages) })
}
