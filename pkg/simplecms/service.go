package simplecms

import (
	"context"
)

// Service defines the content-modeling engine.
//
// Every slug-keyed operation returns an error wrapping ErrNotFound when the
// model or item does not exist. Rejected definitions and payloads return a
// *ValidationError (errors.Is(err, ErrValidation) holds).
type Service interface {
	// Model operations
	CreateModel(ctx context.Context, req CreateModelRequest) (*ContentModel, error)
	ListModels(ctx context.Context) ([]*ContentModel, error)
	GetModel(ctx context.Context, slug string) (*ContentModel, error)
	UpdateModel(ctx context.Context, slug string, req UpdateModelRequest) (*ContentModel, error)
	DeleteModel(ctx context.Context, slug string) error

	// Item operations; slugOrID accepts an item slug or its UUID
	CreateItem(ctx context.Context, modelSlug string, req CreateItemRequest) (*ContentItem, error)
	ListItems(ctx context.Context, modelSlug string, req ListItemsRequest) (*ItemList, error)
	GetItem(ctx context.Context, modelSlug, slugOrID string) (*ContentItem, error)
	UpdateItem(ctx context.Context, modelSlug, slugOrID string, req UpdateItemRequest) (*ContentItem, error)
	DeleteItem(ctx context.Context, modelSlug, slugOrID string) error
}
