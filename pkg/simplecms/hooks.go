package simplecms

import (
	"context"
)

// Hooks extend the engine without modifying it. Before* hooks may abort an
// operation by returning an error; After* hook errors are logged only.
type Hooks struct {
	// Model lifecycle hooks
	BeforeModelCreate []BeforeModelCreateHook
	AfterModelCreate  []AfterModelCreateHook

	// Item lifecycle hooks
	BeforeItemCreate []BeforeItemCreateHook
	AfterItemCreate  []AfterItemCreateHook
	BeforeItemUpdate []BeforeItemUpdateHook
	AfterItemUpdate  []AfterItemUpdateHook
	BeforeItemDelete []BeforeItemDeleteHook

	// Status change hooks
	OnStatusChange []StatusChangeHook

	// Error hooks
	OnError []ErrorHook
}

// HookContext carries information through the hook chain
type HookContext struct {
	Context   context.Context
	Metadata  map[string]any // passed between hooks of one chain
	StopChain bool           // skip the remaining hooks
}

// NewHookContext creates a new hook context
func NewHookContext(ctx context.Context) *HookContext {
	return &HookContext{
		Context:  ctx,
		Metadata: make(map[string]any),
	}
}

// BeforeModelCreateHook may rewrite the request before validation.
type BeforeModelCreateHook func(hctx *HookContext, req *CreateModelRequest) error

type AfterModelCreateHook func(hctx *HookContext, model *ContentModel) error

// BeforeItemCreateHook runs before the payload is validated, so it may fill in data.
type BeforeItemCreateHook func(hctx *HookContext, model *ContentModel, req *CreateItemRequest) error

type AfterItemCreateHook func(hctx *HookContext, item *ContentItem) error

// BeforeItemUpdateHook sees the stored item and the pending request.
type BeforeItemUpdateHook func(hctx *HookContext, item *ContentItem, req *UpdateItemRequest) error

type AfterItemUpdateHook func(hctx *HookContext, item *ContentItem) error

type BeforeItemDeleteHook func(hctx *HookContext, item *ContentItem) error

// StatusChangeHook is called after an update changed the item status.
type StatusChangeHook func(hctx *HookContext, item *ContentItem, oldStatus, newStatus ItemStatus) error

// ErrorHook is called when an operation fails.
type ErrorHook func(hctx *HookContext, operation string, err error)

// runHooks calls each hook in order until one fails or asks to stop.
func runHooks[H any](ctx context.Context, hooks []H, call func(*HookContext, H) error) error {
	if len(hooks) == 0 {
		return nil
	}

	hctx := NewHookContext(ctx)
	for _, hook := range hooks {
		if err := call(hctx, hook); err != nil {
			return err
		}
		if hctx.StopChain {
			break
		}
	}
	return nil
}

func (h *Hooks) executeBeforeModelCreate(ctx context.Context, req *CreateModelRequest) error {
	return runHooks(ctx, h.BeforeModelCreate, func(hctx *HookContext, hook BeforeModelCreateHook) error {
		return hook(hctx, req)
	})
}

func (h *Hooks) executeAfterModelCreate(ctx context.Context, model *ContentModel) error {
	return runHooks(ctx, h.AfterModelCreate, func(hctx *HookContext, hook AfterModelCreateHook) error {
		return hook(hctx, model)
	})
}

func (h *Hooks) executeBeforeItemCreate(ctx context.Context, model *ContentModel, req *CreateItemRequest) error {
	return runHooks(ctx, h.BeforeItemCreate, func(hctx *HookContext, hook BeforeItemCreateHook) error {
		return hook(hctx, model, req)
	})
}

func (h *Hooks) executeAfterItemCreate(ctx context.Context, item *ContentItem) error {
	return runHooks(ctx, h.AfterItemCreate, func(hctx *HookContext, hook AfterItemCreateHook) error {
		return hook(hctx, item)
	})
}

func (h *Hooks) executeBeforeItemUpdate(ctx context.Context, item *ContentItem, req *UpdateItemRequest) error {
	return runHooks(ctx, h.BeforeItemUpdate, func(hctx *HookContext, hook BeforeItemUpdateHook) error {
		return hook(hctx, item, req)
	})
}

func (h *Hooks) executeAfterItemUpdate(ctx context.Context, item *ContentItem) error {
	return runHooks(ctx, h.AfterItemUpdate, func(hctx *HookContext, hook AfterItemUpdateHook) error {
		return hook(hctx, item)
	})
}

func (h *Hooks) executeBeforeItemDelete(ctx context.Context, item *ContentItem) error {
	return runHooks(ctx, h.BeforeItemDelete, func(hctx *HookContext, hook BeforeItemDeleteHook) error {
		return hook(hctx, item)
	})
}

func (h *Hooks) executeOnStatusChange(ctx context.Context, item *ContentItem, oldStatus, newStatus ItemStatus) error {
	return runHooks(ctx, h.OnStatusChange, func(hctx *HookContext, hook StatusChangeHook) error {
		return hook(hctx, item, oldStatus, newStatus)
	})
}

func (h *Hooks) executeOnError(ctx context.Context, operation string, err error) {
	_ = runHooks(ctx, h.OnError, func(hctx *HookContext, hook ErrorHook) error {
		hook(hctx, operation, err)
		return nil
	})
}
