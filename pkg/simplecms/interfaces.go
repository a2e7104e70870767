package simplecms

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the storage port for models and items.
//
// Implementations must return ErrModelNotFound / ErrItemNotFound (or errors
// wrapping them) for missing rows and ErrConflict for uniqueness violations on
// model slugs or (model, item slug) pairs.
type Repository interface {
	// Model operations
	CreateModel(ctx context.Context, model *ContentModel) error
	GetModel(ctx context.Context, id uuid.UUID) (*ContentModel, error)
	GetModelBySlug(ctx context.Context, slug string) (*ContentModel, error)
	// ListModels returns every model, newest first.
	ListModels(ctx context.Context) ([]*ContentModel, error)
	// UpdateModel writes the mutable columns of model; slug and creation time never change.
	UpdateModel(ctx context.Context, model *ContentModel) error
	// DeleteModel removes the model and every item that belongs to it.
	DeleteModel(ctx context.Context, id uuid.UUID) error
	ModelSlugExists(ctx context.Context, slug string) (bool, error)

	// Item operations
	CreateItem(ctx context.Context, item *ContentItem) error
	GetItem(ctx context.Context, id uuid.UUID) (*ContentItem, error)
	// FindItem resolves an item of a model by slug, falling back to its id.
	FindItem(ctx context.Context, modelSlug, slugOrID string) (*ContentItem, error)
	// ListItems applies q to the items of one model. Total ignores the window.
	ListItems(ctx context.Context, modelSlug string, q ItemQuery) (*ItemPage, error)
	// UpdateItem applies upd atomically and increments the stored version by one.
	UpdateItem(ctx context.Context, id uuid.UUID, upd ItemUpdate) error
	DeleteItem(ctx context.Context, id uuid.UUID) error
	ItemSlugExists(ctx context.Context, modelSlug, slug string) (bool, error)
}

// EventSink receives notifications about lifecycle events.
// Errors returned by a sink are logged and never fail the operation.
type EventSink interface {
	ModelCreated(ctx context.Context, model *ContentModel) error
	ModelUpdated(ctx context.Context, model *ContentModel) error
	ModelDeleted(ctx context.Context, model *ContentModel) error

	ItemCreated(ctx context.Context, item *ContentItem) error
	ItemUpdated(ctx context.Context, item *ContentItem) error
	ItemDeleted(ctx context.Context, item *ContentItem) error
	// ItemPublished fires once, when an item first receives publishedAt.
	ItemPublished(ctx context.Context, item *ContentItem) error

	// ValidationFailed fires when a payload for modelSlug is rejected.
	ValidationFailed(ctx context.Context, modelSlug string, messages []string) error
}

// MediaResolver checks that a media key refers to a stored asset.
type MediaResolver interface {
	Exists(ctx context.Context, key string) (bool, error)
}
