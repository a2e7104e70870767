package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-cms/pkg/simplecms"
)

// Repository implements simplecms.Repository using in-memory storage
type Repository struct {
	mu           sync.RWMutex
	models       map[uuid.UUID]*simplecms.ContentModel
	modelsBySlug map[string]uuid.UUID
	items        map[uuid.UUID]*simplecms.ContentItem
	itemsBySlug  map[string]uuid.UUID // "model_slug/item_slug" -> item_id
}

// New creates a new in-memory repository
func New() *Repository {
	return &Repository{
		models:       make(map[uuid.UUID]*simplecms.ContentModel),
		modelsBySlug: make(map[string]uuid.UUID),
		items:        make(map[uuid.UUID]*simplecms.ContentItem),
		itemsBySlug:  make(map[string]uuid.UUID),
	}
}

var _ simplecms.Repository = (*Repository)(nil)

func itemSlugKey(modelSlug, slug string) string {
	return modelSlug + "/" + slug
}

// Model operations

func (r *Repository) CreateModel(ctx context.Context, model *simplecms.ContentModel) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.modelsBySlug[model.Slug]; exists {
		return fmt.Errorf("%w: model slug %q already exists", simplecms.ErrConflict, model.Slug)
	}

	// Store a copy to avoid external modifications
	r.models[model.ID] = model.Clone()
	r.modelsBySlug[model.Slug] = model.ID
	return nil
}

func (r *Repository) GetModel(ctx context.Context, id uuid.UUID) (*simplecms.ContentModel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	model, exists := r.models[id]
	if !exists {
		return nil, simplecms.ErrModelNotFound
	}
	return model.Clone(), nil
}

func (r *Repository) GetModelBySlug(ctx context.Context, slug string) (*simplecms.ContentModel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, exists := r.modelsBySlug[slug]
	if !exists {
		return nil, simplecms.ErrModelNotFound
	}
	return r.models[id].Clone(), nil
}

func (r *Repository) ListModels(ctx context.Context) ([]*simplecms.ContentModel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*simplecms.ContentModel, 0, len(r.models))
	for _, model := range r.models {
		result = append(result, model.Clone())
	}

	// Sort by created_at descending
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID.String() < result[j].ID.String()
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (r *Repository) UpdateModel(ctx context.Context, model *simplecms.ContentModel) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.models[model.ID]
	if !exists {
		return simplecms.ErrModelNotFound
	}

	updated := model.Clone()
	updated.Slug = existing.Slug
	updated.CreatedAt = existing.CreatedAt
	r.models[model.ID] = updated
	return nil
}

func (r *Repository) DeleteModel(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	model, exists := r.models[id]
	if !exists {
		return simplecms.ErrModelNotFound
	}

	for itemID, item := range r.items {
		if item.ModelID == id {
			r.removeItemLocked(itemID)
		}
	}
	delete(r.modelsBySlug, model.Slug)
	delete(r.models, id)
	return nil
}

func (r *Repository) ModelSlugExists(ctx context.Context, slug string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.modelsBySlug[slug]
	return exists, nil
}

// Item operations

func (r *Repository) CreateItem(ctx context.Context, item *simplecms.ContentItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.models[item.ModelID]; !exists {
		return simplecms.ErrModelNotFound
	}
	if item.Slug != "" {
		key := itemSlugKey(item.ModelSlug, item.Slug)
		if _, exists := r.itemsBySlug[key]; exists {
			return fmt.Errorf("%w: item slug %q already exists in model %q", simplecms.ErrConflict, item.Slug, item.ModelSlug)
		}
		r.itemsBySlug[key] = item.ID
	}

	r.items[item.ID] = item.Clone()
	return nil
}

func (r *Repository) GetItem(ctx context.Context, id uuid.UUID) (*simplecms.ContentItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, exists := r.items[id]
	if !exists {
		return nil, simplecms.ErrItemNotFound
	}
	return item.Clone(), nil
}

func (r *Repository) FindItem(ctx context.Context, modelSlug, slugOrID string) (*simplecms.ContentItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if id, exists := r.itemsBySlug[itemSlugKey(modelSlug, slugOrID)]; exists {
		return r.items[id].Clone(), nil
	}
	if id, err := uuid.Parse(slugOrID); err == nil {
		if item, exists := r.items[id]; exists && item.ModelSlug == modelSlug {
			return item.Clone(), nil
		}
	}
	return nil, simplecms.ErrItemNotFound
}

func (r *Repository) ListItems(ctx context.Context, modelSlug string, q simplecms.ItemQuery) (*simplecms.ItemPage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	search := strings.ToLower(q.Search)
	var matched []*simplecms.ContentItem
	for _, item := range r.items {
		if item.ModelSlug != modelSlug {
			continue
		}
		if q.Status != "" && item.Status != q.Status {
			continue
		}
		if search != "" && !matchesSearch(item, search) {
			continue
		}
		matched = append(matched, item)
	}

	sortItems(matched, q.SortBy, q.SortOrder == simplecms.SortAsc)

	total := len(matched)
	start := q.Offset
	if start > total {
		start = total
	}
	end := total
	if q.Limit > 0 && start+q.Limit < total {
		end = start + q.Limit
	}

	page := make([]*simplecms.ContentItem, 0, end-start)
	for _, item := range matched[start:end] {
		page = append(page, item.Clone())
	}
	return &simplecms.ItemPage{Items: page, Total: total}, nil
}

func (r *Repository) UpdateItem(ctx context.Context, id uuid.UUID, upd simplecms.ItemUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, exists := r.items[id]
	if !exists {
		return simplecms.ErrItemNotFound
	}

	if upd.Status != nil {
		item.Status = *upd.Status
	}
	if upd.Data != nil {
		item.Data = simplecms.CloneData(upd.Data)
	}
	if upd.PublishedAt != nil && item.PublishedAt == nil {
		t := *upd.PublishedAt
		item.PublishedAt = &t
	}
	item.Version++
	item.UpdatedAt = upd.UpdatedAt
	return nil
}

func (r *Repository) DeleteItem(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[id]; !exists {
		return simplecms.ErrItemNotFound
	}
	r.removeItemLocked(id)
	return nil
}

func (r *Repository) ItemSlugExists(ctx context.Context, modelSlug, slug string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.itemsBySlug[itemSlugKey(modelSlug, slug)]
	return exists, nil
}

func (r *Repository) removeItemLocked(id uuid.UUID) {
	item := r.items[id]
	if item.Slug != "" {
		delete(r.itemsBySlug, itemSlugKey(item.ModelSlug, item.Slug))
	}
	delete(r.items, id)
}

func matchesSearch(item *simplecms.ContentItem, search string) bool {
	if strings.Contains(strings.ToLower(item.Slug), search) {
		return true
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(item.Data); err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(buf.String()), search)
}

// sortItems orders like the SQL backends: by the chosen column, then by id.
// Unset publishedAt sorts before any timestamp.
func sortItems(items []*simplecms.ContentItem, field simplecms.SortField, asc bool) {
	sort.SliceStable(items, func(i, j int) bool {
		c := compareItems(items[i], items[j], field)
		if c == 0 {
			c = strings.Compare(items[i].ID.String(), items[j].ID.String())
		}
		if asc {
			return c < 0
		}
		return c > 0
	})
}

func compareItems(a, b *simplecms.ContentItem, field simplecms.SortField) int {
	switch field {
	case simplecms.SortByUpdatedAt:
		return a.UpdatedAt.Compare(b.UpdatedAt)
	case simplecms.SortByPublishedAt:
		return compareOptionalTime(a.PublishedAt, b.PublishedAt)
	case simplecms.SortBySlug:
		return strings.Compare(a.Slug, b.Slug)
	case simplecms.SortByStatus:
		return strings.Compare(string(a.Status), string(b.Status))
	case simplecms.SortByVersion:
		return a.Version - b.Version
	default:
		return a.CreatedAt.Compare(b.CreatedAt)
	}
}

func compareOptionalTime(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	default:
		return a.Compare(*b)
	}
}
