package simplecms

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// insertAttempts bounds how often a slug is re-allocated after storage
// reported a uniqueness conflict for it.
const insertAttempts = 3

// service implements the Service interface
type service struct {
	repository      Repository
	eventSink       EventSink
	hooks           *Hooks
	media           MediaResolver
	logger          *slog.Logger
	now             func() time.Time
	maxSlugAttempts int
	unknownFields   UnknownFieldPolicy
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the repository for the service
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithEventSink sets the event sink for the service
func WithEventSink(sink EventSink) Option {
	return func(s *service) {
		if sink != nil {
			s.eventSink = sink
		}
	}
}

// WithHooks installs lifecycle hooks
func WithHooks(hooks *Hooks) Option {
	return func(s *service) {
		if hooks != nil {
			s.hooks = hooks
		}
	}
}

// WithMediaResolver makes media fields check that their keys exist.
func WithMediaResolver(resolver MediaResolver) Option {
	return func(s *service) {
		s.media = resolver
	}
}

// WithLogger sets the logger for the service
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock replaces the time source, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithMaxSlugAttempts caps how many slug candidates are probed per allocation.
func WithMaxSlugAttempts(n int) Option {
	return func(s *service) {
		if n > 0 {
			s.maxSlugAttempts = n
		}
	}
}

// WithUnknownFieldPolicy decides what happens to payload keys the model does not declare.
func WithUnknownFieldPolicy(policy UnknownFieldPolicy) Option {
	return func(s *service) {
		s.unknownFields = policy
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		eventSink:       NewNoopEventSink(),
		hooks:           &Hooks{},
		logger:          slog.Default(),
		now:             func() time.Time { return time.Now().UTC() },
		maxSlugAttempts: DefaultMaxSlugAttempts,
		unknownFields:   RejectUnknownFields,
	}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}

	return s, nil
}

// timestamp returns the current time at the precision every repository keeps.
func (s *service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func (s *service) fail(ctx context.Context, operation string, err error) error {
	s.hooks.executeOnError(ctx, operation, err)
	return err
}

// emit fires an event; sink failures are logged and never fail the operation.
func (s *service) emit(ctx context.Context, event string, fire func() error) {
	if err := fire(); err != nil {
		s.logger.WarnContext(ctx, "event sink failed", "event", event, "error", err)
	}
}

// insertWithSlug allocates a slug from base and inserts. When storage reports
// that another writer took the slug first, allocation runs again.
func (s *service) insertWithSlug(ctx context.Context, base string, probe SlugProbe, insert func(slug string) error) error {
	for attempt := 1; ; attempt++ {
		slug, err := AllocateSlug(ctx, base, probe, s.maxSlugAttempts)
		if err != nil {
			return err
		}
		err = insert(slug)
		if err == nil || !errors.Is(err, ErrConflict) || attempt >= insertAttempts {
			return err
		}
		s.logger.WarnContext(ctx, "slug taken concurrently, retrying", "slug", slug, "attempt", attempt)
	}
}

// Model operations

func (s *service) CreateModel(ctx context.Context, req CreateModelRequest) (*ContentModel, error) {
	if err := s.hooks.executeBeforeModelCreate(ctx, &req); err != nil {
		return nil, s.fail(ctx, "create_model", &ModelError{Op: "create", Err: err})
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, s.fail(ctx, "create_model", &ModelError{Op: "create", Err: newValidationError([]string{"Model name is required"})})
	}

	settings := req.Settings.Apply(DefaultModelSettings())
	if err := ValidateModelDefinition(req.Fields, settings); err != nil {
		return nil, s.fail(ctx, "create_model", &ModelError{Op: "create", Err: err})
	}

	base := Slugify(name)
	if base == "" {
		err := newValidationError([]string{"Model name must contain at least one letter or digit"})
		return nil, s.fail(ctx, "create_model", &ModelError{Op: "create", Err: err})
	}

	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		displayName = name
	}

	now := s.timestamp()
	model := &ContentModel{
		ID:          uuid.New(),
		Name:        name,
		DisplayName: displayName,
		Description: req.Description,
		Fields:      CloneFields(req.Fields),
		Settings:    settings,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.insertWithSlug(ctx, base, s.repository.ModelSlugExists, func(slug string) error {
		model.Slug = slug
		return s.repository.CreateModel(ctx, model)
	})
	if err != nil {
		return nil, s.fail(ctx, "create_model", &ModelError{Slug: base, Op: "create", Err: err})
	}

	s.emit(ctx, "model_created", func() error { return s.eventSink.ModelCreated(ctx, model) })
	if err := s.hooks.executeAfterModelCreate(ctx, model); err != nil {
		s.logger.WarnContext(ctx, "after model create hook failed", "slug", model.Slug, "error", err)
	}

	s.logger.DebugContext(ctx, "content model created", "model_id", model.ID, "slug", model.Slug)
	return model, nil
}

func (s *service) ListModels(ctx context.Context) ([]*ContentModel, error) {
	models, err := s.repository.ListModels(ctx)
	if err != nil {
		return nil, s.fail(ctx, "list_models", &ModelError{Op: "list", Err: err})
	}
	if models == nil {
		models = []*ContentModel{}
	}
	return models, nil
}

func (s *service) GetModel(ctx context.Context, slug string) (*ContentModel, error) {
	model, err := s.repository.GetModelBySlug(ctx, slug)
	if err != nil {
		return nil, &ModelError{Slug: slug, Op: "get", Err: err}
	}
	return model, nil
}

func (s *service) UpdateModel(ctx context.Context, slug string, req UpdateModelRequest) (*ContentModel, error) {
	current, err := s.repository.GetModelBySlug(ctx, slug)
	if err != nil {
		return nil, s.fail(ctx, "update_model", &ModelError{Slug: slug, Op: "update", Err: err})
	}

	merged := current.Clone()
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			err := newValidationError([]string{"Model name is required"})
			return nil, s.fail(ctx, "update_model", &ModelError{Slug: slug, Op: "update", Err: err})
		}
		merged.Name = name
	}
	if req.DisplayName != nil {
		merged.DisplayName = strings.TrimSpace(*req.DisplayName)
		if merged.DisplayName == "" {
			merged.DisplayName = merged.Name
		}
	}
	if req.Description != nil {
		merged.Description = *req.Description
	}
	if req.Fields != nil {
		merged.Fields = CloneFields(req.Fields)
	}
	if req.Settings != nil {
		merged.Settings = req.Settings.Apply(merged.Settings)
	}

	// a settings change can invalidate slugField against the stored fields
	if req.Fields != nil || req.Settings != nil {
		if err := ValidateModelDefinition(merged.Fields, merged.Settings); err != nil {
			return nil, s.fail(ctx, "update_model", &ModelError{Slug: slug, Op: "update", Err: err})
		}
	}

	merged.UpdatedAt = s.timestamp()
	if err := s.repository.UpdateModel(ctx, merged); err != nil {
		return nil, s.fail(ctx, "update_model", &ModelError{Slug: slug, Op: "update", Err: err})
	}

	updated, err := s.repository.GetModel(ctx, merged.ID)
	if err != nil {
		return nil, s.fail(ctx, "update_model", &ModelError{Slug: slug, Op: "update", Err: err})
	}

	s.emit(ctx, "model_updated", func() error { return s.eventSink.ModelUpdated(ctx, updated) })
	return updated, nil
}

func (s *service) DeleteModel(ctx context.Context, slug string) error {
	model, err := s.repository.GetModelBySlug(ctx, slug)
	if err != nil {
		return s.fail(ctx, "delete_model", &ModelError{Slug: slug, Op: "delete", Err: err})
	}

	if err := s.repository.DeleteModel(ctx, model.ID); err != nil {
		return s.fail(ctx, "delete_model", &ModelError{Slug: slug, Op: "delete", Err: err})
	}

	s.emit(ctx, "model_deleted", func() error { return s.eventSink.ModelDeleted(ctx, model) })
	return nil
}

// Item operations

func (s *service) CreateItem(ctx context.Context, modelSlug string, req CreateItemRequest) (*ContentItem, error) {
	itemErr := func(err error) error {
		return s.fail(ctx, "create_item", &ItemError{ModelSlug: modelSlug, Op: "create", Err: err})
	}

	model, err := s.repository.GetModelBySlug(ctx, modelSlug)
	if err != nil {
		return nil, itemErr(err)
	}

	if err := s.hooks.executeBeforeItemCreate(ctx, model, &req); err != nil {
		return nil, itemErr(err)
	}

	status := ItemStatusDraft
	if req.Status != "" {
		parsed, err := ParseItemStatus(string(req.Status))
		if err != nil {
			return nil, itemErr(newValidationError([]string{invalidStatusMessage(string(req.Status))}))
		}
		status = parsed
	}

	data, err := s.normalize(ctx, model, req.Data)
	if err != nil {
		return nil, itemErr(err)
	}

	if model.Settings.Singleton {
		page, err := s.repository.ListItems(ctx, model.Slug, ItemQuery{Limit: 1})
		if err != nil {
			return nil, itemErr(err)
		}
		if page.Total > 0 {
			return nil, itemErr(fmt.Errorf("%w: model '%s' is a singleton and already has an item", ErrConflict, model.Slug))
		}
	}

	now := s.timestamp()
	item := &ContentItem{
		ID:        uuid.New(),
		ModelID:   model.ID,
		ModelSlug: model.Slug,
		Status:    status,
		Data:      data,
		AuthorID:  req.AuthorID,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if status == ItemStatusPublished {
		publishedAt := now
		item.PublishedAt = &publishedAt
	}

	var base string
	if field := model.Settings.SlugField; field != "" {
		base = Slugify(slugSource(data[field]))
	}

	if base == "" {
		err = s.repository.CreateItem(ctx, item)
	} else {
		probe := func(ctx context.Context, candidate string) (bool, error) {
			return s.repository.ItemSlugExists(ctx, model.Slug, candidate)
		}
		err = s.insertWithSlug(ctx, base, probe, func(slug string) error {
			item.Slug = slug
			return s.repository.CreateItem(ctx, item)
		})
	}
	if err != nil {
		return nil, itemErr(err)
	}

	s.emit(ctx, "item_created", func() error { return s.eventSink.ItemCreated(ctx, item) })
	if item.PublishedAt != nil {
		s.emit(ctx, "item_published", func() error { return s.eventSink.ItemPublished(ctx, item) })
	}
	if err := s.hooks.executeAfterItemCreate(ctx, item); err != nil {
		s.logger.WarnContext(ctx, "after item create hook failed", "item_id", item.ID, "error", err)
	}

	s.logger.DebugContext(ctx, "content item created", "item_id", item.ID, "model", model.Slug, "slug", item.Slug)
	return item, nil
}

func (s *service) ListItems(ctx context.Context, modelSlug string, req ListItemsRequest) (*ItemList, error) {
	model, err := s.repository.GetModelBySlug(ctx, modelSlug)
	if err != nil {
		return nil, &ItemError{ModelSlug: modelSlug, Op: "list", Err: err}
	}

	q := ItemQuery{
		Search: strings.TrimSpace(req.Search),
		Limit:  req.Limit,
		Offset: req.Offset,
	}

	var msgs []string
	if req.Status != "" {
		status, err := ParseItemStatus(req.Status)
		if err != nil {
			msgs = append(msgs, invalidStatusMessage(req.Status))
		}
		q.Status = status
	}
	if q.SortBy, err = ParseSortField(req.SortBy); err != nil {
		msgs = append(msgs, fmt.Sprintf("Cannot sort by '%s'", req.SortBy))
	}
	if q.SortOrder, err = ParseSortOrder(req.SortOrder); err != nil {
		msgs = append(msgs, "Sort order must be asc or desc")
	}
	if req.Offset < 0 {
		msgs = append(msgs, "Offset must not be negative")
	}
	if err := newValidationError(msgs); err != nil {
		return nil, &ItemError{ModelSlug: modelSlug, Op: "list", Err: err}
	}

	page, err := s.repository.ListItems(ctx, model.Slug, q)
	if err != nil {
		return nil, s.fail(ctx, "list_items", &ItemError{ModelSlug: modelSlug, Op: "list", Err: err})
	}

	items := page.Items
	if items == nil {
		items = []*ContentItem{}
	}
	return &ItemList{
		Items:  items,
		Total:  page.Total,
		Limit:  req.Limit,
		Offset: req.Offset,
	}, nil
}

func (s *service) GetItem(ctx context.Context, modelSlug, slugOrID string) (*ContentItem, error) {
	item, err := s.repository.FindItem(ctx, modelSlug, slugOrID)
	if err != nil {
		return nil, &ItemError{ModelSlug: modelSlug, Slug: slugOrID, Op: "get", Err: err}
	}
	return item, nil
}

func (s *service) UpdateItem(ctx context.Context, modelSlug, slugOrID string, req UpdateItemRequest) (*ContentItem, error) {
	itemErr := func(err error) error {
		return s.fail(ctx, "update_item", &ItemError{ModelSlug: modelSlug, Slug: slugOrID, Op: "update", Err: err})
	}

	item, err := s.repository.FindItem(ctx, modelSlug, slugOrID)
	if err != nil {
		return nil, itemErr(err)
	}

	if err := s.hooks.executeBeforeItemUpdate(ctx, item, &req); err != nil {
		return nil, itemErr(err)
	}

	upd := ItemUpdate{UpdatedAt: s.timestamp()}
	if req.Status != nil {
		status, err := ParseItemStatus(string(*req.Status))
		if err != nil {
			return nil, itemErr(newValidationError([]string{invalidStatusMessage(string(*req.Status))}))
		}
		upd.Status = &status
		if publishStamp(item, status) {
			publishedAt := upd.UpdatedAt
			upd.PublishedAt = &publishedAt
		}
	}

	if req.Data != nil {
		model, err := s.repository.GetModel(ctx, item.ModelID)
		if err != nil {
			return nil, itemErr(err)
		}
		data, err := s.normalize(ctx, model, req.Data)
		if err != nil {
			return nil, itemErr(err)
		}
		upd.Data = data
	}

	if err := s.repository.UpdateItem(ctx, item.ID, upd); err != nil {
		return nil, itemErr(err)
	}

	updated, err := s.repository.GetItem(ctx, item.ID)
	if err != nil {
		return nil, itemErr(err)
	}

	s.emit(ctx, "item_updated", func() error { return s.eventSink.ItemUpdated(ctx, updated) })
	if item.PublishedAt == nil && updated.PublishedAt != nil {
		s.emit(ctx, "item_published", func() error { return s.eventSink.ItemPublished(ctx, updated) })
	}
	if updated.Status != item.Status {
		if err := s.hooks.executeOnStatusChange(ctx, updated, item.Status, updated.Status); err != nil {
			s.logger.WarnContext(ctx, "status change hook failed", "item_id", item.ID, "error", err)
		}
	}
	if err := s.hooks.executeAfterItemUpdate(ctx, updated); err != nil {
		s.logger.WarnContext(ctx, "after item update hook failed", "item_id", item.ID, "error", err)
	}

	return updated, nil
}

func (s *service) DeleteItem(ctx context.Context, modelSlug, slugOrID string) error {
	itemErr := func(err error) error {
		return s.fail(ctx, "delete_item", &ItemError{ModelSlug: modelSlug, Slug: slugOrID, Op: "delete", Err: err})
	}

	item, err := s.repository.FindItem(ctx, modelSlug, slugOrID)
	if err != nil {
		return itemErr(err)
	}

	if err := s.hooks.executeBeforeItemDelete(ctx, item); err != nil {
		return itemErr(err)
	}

	if err := s.repository.DeleteItem(ctx, item.ID); err != nil {
		return itemErr(err)
	}

	s.emit(ctx, "item_deleted", func() error { return s.eventSink.ItemDeleted(ctx, item) })
	return nil
}

// normalize runs the data validator and the media check, reporting rejections
// to the event sink.
func (s *service) normalize(ctx context.Context, model *ContentModel, data map[string]any) (map[string]any, error) {
	out, err := NormalizeData(model, data, s.unknownFields)
	if err == nil {
		err = s.checkMedia(ctx, model, out)
	}
	if err != nil {
		if msgs := ValidationMessages(err); msgs != nil {
			s.emit(ctx, "validation_failed", func() error { return s.eventSink.ValidationFailed(ctx, model.Slug, msgs) })
		}
		return nil, err
	}
	return out, nil
}

func (s *service) checkMedia(ctx context.Context, model *ContentModel, data map[string]any) error {
	if s.media == nil {
		return nil
	}

	var msgs []string
	for _, f := range model.Fields {
		if f.Type != FieldTypeMedia && !(f.Type == FieldTypeArray && f.ArrayOf == FieldTypeMedia) {
			continue
		}
		for _, key := range mediaKeys(data[f.Name]) {
			ok, err := s.media.Exists(ctx, key)
			if err != nil {
				return fmt.Errorf("resolving media %q: %w", key, err)
			}
			if !ok {
				msgs = append(msgs, fmt.Sprintf("Field '%s' references unknown media '%s'", f.Name, key))
			}
		}
	}
	return newValidationError(msgs)
}

func mediaKeys(v any) []string {
	switch val := v.(type) {
	case string:
		if val == "" {
			return nil
		}
		return []string{val}
	case map[string]any:
		if key, ok := val["key"].(string); ok && key != "" {
			return []string{key}
		}
		return nil
	case []any:
		var keys []string
		for _, e := range val {
			keys = append(keys, mediaKeys(e)...)
		}
		return keys
	default:
		return nil
	}
}

func invalidStatusMessage(status string) string {
	return fmt.Sprintf("Status '%s' must be one of draft, published, archived", status)
}
