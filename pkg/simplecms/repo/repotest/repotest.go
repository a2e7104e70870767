// Package repotest holds the behavior every simplecms.Repository must share.
// Backend packages call Run from their own tests.
package repotest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-cms/pkg/simplecms"
)

// Factory returns an empty repository for one subtest.
type Factory func(t *testing.T) simplecms.Repository

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// NewModel builds a model with a title field, created offset minutes after a fixed base time.
func NewModel(slug string, offset int) *simplecms.ContentModel {
	at := base.Add(time.Duration(offset) * time.Minute)
	return &simplecms.ContentModel{
		ID:          uuid.New(),
		Name:        slug,
		Slug:        slug,
		DisplayName: slug,
		Fields: []simplecms.ContentField{
			{Name: "title", Type: simplecms.FieldTypeText, Validation: &simplecms.FieldValidation{Required: true, Max: simplecms.Int(200)}},
			{Name: "tags", Type: simplecms.FieldTypeMultiSelect, Options: []simplecms.FieldOption{{Label: "Go", Value: "go"}}},
		},
		Settings:  simplecms.ModelSettings{Drafts: true, Timestamps: true, SlugField: "title"},
		CreatedAt: at,
		UpdatedAt: at,
	}
}

// NewItem builds a draft item of model, created offset minutes after the base time.
func NewItem(model *simplecms.ContentModel, slug string, offset int) *simplecms.ContentItem {
	at := base.Add(time.Duration(offset) * time.Minute)
	return &simplecms.ContentItem{
		ID:        uuid.New(),
		ModelID:   model.ID,
		ModelSlug: model.Slug,
		Slug:      slug,
		Status:    simplecms.ItemStatusDraft,
		Data:      map[string]any{"title": "Item " + slug},
		AuthorID:  "author-1",
		Version:   1,
		CreatedAt: at,
		UpdatedAt: at,
	}
}

// Run executes the shared repository suite.
func Run(t *testing.T, newRepo Factory) {
	t.Run("Models", func(t *testing.T) { testModels(t, newRepo) })
	t.Run("Items", func(t *testing.T) { testItems(t, newRepo) })
	t.Run("ListItems", func(t *testing.T) { testListItems(t, newRepo) })
	t.Run("UpdateItem", func(t *testing.T) { testUpdateItem(t, newRepo) })
	t.Run("Search", func(t *testing.T) { testSearch(t, newRepo) })
}

func testModels(t *testing.T, newRepo Factory) {
	ctx := context.Background()

	t.Run("CreateAndGet", func(t *testing.T) {
		repo := newRepo(t)
		model := NewModel("post", 0)
		model.Description = "Blog posts"
		require.NoError(t, repo.CreateModel(ctx, model))

		bySlug, err := repo.GetModelBySlug(ctx, "post")
		require.NoError(t, err)
		assert.Equal(t, model.ID, bySlug.ID)
		assert.Equal(t, "Blog posts", bySlug.Description)
		assert.Equal(t, model.Fields, bySlug.Fields)
		assert.Equal(t, model.Settings, bySlug.Settings)
		assert.True(t, model.CreatedAt.Equal(bySlug.CreatedAt))

		byID, err := repo.GetModel(ctx, model.ID)
		require.NoError(t, err)
		assert.Equal(t, "post", byID.Slug)

		exists, err := repo.ModelSlugExists(ctx, "post")
		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = repo.ModelSlugExists(ctx, "page")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("NotFound", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.GetModelBySlug(ctx, "missing")
		assert.ErrorIs(t, err, simplecms.ErrNotFound)

		_, err = repo.GetModel(ctx, uuid.New())
		assert.ErrorIs(t, err, simplecms.ErrModelNotFound)

		assert.ErrorIs(t, repo.DeleteModel(ctx, uuid.New()), simplecms.ErrNotFound)
		assert.ErrorIs(t, repo.UpdateModel(ctx, NewModel("ghost", 0)), simplecms.ErrNotFound)
	})

	t.Run("DuplicateSlugConflicts", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.CreateModel(ctx, NewModel("post", 0)))
		err := repo.CreateModel(ctx, NewModel("post", 1))
		assert.ErrorIs(t, err, simplecms.ErrConflict)
	})

	t.Run("ListNewestFirst", func(t *testing.T) {
		repo := newRepo(t)
		for i, slug := range []string{"first", "second", "third"} {
			require.NoError(t, repo.CreateModel(ctx, NewModel(slug, i)))
		}

		models, err := repo.ListModels(ctx)
		require.NoError(t, err)
		require.Len(t, models, 3)
		assert.Equal(t, "third", models[0].Slug)
		assert.Equal(t, "second", models[1].Slug)
		assert.Equal(t, "first", models[2].Slug)
	})

	t.Run("UpdateKeepsSlug", func(t *testing.T) {
		repo := newRepo(t)
		model := NewModel("post", 0)
		require.NoError(t, repo.CreateModel(ctx, model))

		changed := model.Clone()
		changed.Slug = "ignored"
		changed.Name = "Article"
		changed.Fields = append(changed.Fields, simplecms.ContentField{Name: "body", Type: simplecms.FieldTypeRichText})
		changed.UpdatedAt = base.Add(time.Hour)
		require.NoError(t, repo.UpdateModel(ctx, changed))

		got, err := repo.GetModel(ctx, model.ID)
		require.NoError(t, err)
		assert.Equal(t, "post", got.Slug)
		assert.Equal(t, "Article", got.Name)
		assert.Len(t, got.Fields, 3)
		assert.True(t, changed.UpdatedAt.Equal(got.UpdatedAt))
	})

	t.Run("DeleteCascadesToItems", func(t *testing.T) {
		repo := newRepo(t)
		model := NewModel("post", 0)
		require.NoError(t, repo.CreateModel(ctx, model))
		item := NewItem(model, "hello", 0)
		require.NoError(t, repo.CreateItem(ctx, item))

		require.NoError(t, repo.DeleteModel(ctx, model.ID))

		_, err := repo.GetModelBySlug(ctx, "post")
		assert.ErrorIs(t, err, simplecms.ErrNotFound)
		_, err = repo.GetItem(ctx, item.ID)
		assert.ErrorIs(t, err, simplecms.ErrItemNotFound)

		// slug is free again
		require.NoError(t, repo.CreateModel(ctx, NewModel("post", 1)))
	})
}

func testItems(t *testing.T, newRepo Factory) {
	ctx := context.Background()

	t.Run("CreateAndFind", func(t *testing.T) {
		repo := newRepo(t)
		model := NewModel("post", 0)
		require.NoError(t, repo.CreateModel(ctx, model))

		item := NewItem(model, "hello-world", 0)
		item.Data = map[string]any{
			"title": "Hello",
			"meta":  map[string]any{"views": float64(3), "tags": []any{"a", "b"}},
		}
		require.NoError(t, repo.CreateItem(ctx, item))

		bySlug, err := repo.FindItem(ctx, "post", "hello-world")
		require.NoError(t, err)
		assert.Equal(t, item.ID, bySlug.ID)
		assert.Equal(t, item.Data, bySlug.Data)
		assert.Equal(t, 1, bySlug.Version)
		assert.Equal(t, "author-1", bySlug.AuthorID)
		assert.Nil(t, bySlug.PublishedAt)

		byID, err := repo.FindItem(ctx, "post", item.ID.String())
		require.NoError(t, err)
		assert.Equal(t, "hello-world", byID.Slug)

		_, err = repo.FindItem(ctx, "page", "hello-world")
		assert.ErrorIs(t, err, simplecms.ErrItemNotFound)
		_, err = repo.FindItem(ctx, "page", item.ID.String())
		assert.ErrorIs(t, err, simplecms.ErrItemNotFound)
	})

	t.Run("StoredDataIsNotShared", func(t *testing.T) {
		repo := newRepo(t)
		model := NewModel("post", 0)
		require.NoError(t, repo.CreateModel(ctx, model))
		item := NewItem(model, "owned", 0)
		require.NoError(t, repo.CreateItem(ctx, item))

		item.Data["title"] = "mutated"
		got, err := repo.GetItem(ctx, item.ID)
		require.NoError(t, err)
		assert.Equal(t, "Item owned", got.Data["title"])
	})

	t.Run("SlugUniquePerModel", func(t *testing.T) {
		repo := newRepo(t)
		post := NewModel("post", 0)
		page := NewModel("page", 1)
		require.NoError(t, repo.CreateModel(ctx, post))
		require.NoError(t, repo.CreateModel(ctx, page))

		require.NoError(t, repo.CreateItem(ctx, NewItem(post, "about", 0)))
		assert.ErrorIs(t, repo.CreateItem(ctx, NewItem(post, "about", 1)), simplecms.ErrConflict)
		require.NoError(t, repo.CreateItem(ctx, NewItem(page, "about", 2)))

		// items without a slug never collide
		require.NoError(t, repo.CreateItem(ctx, NewItem(post, "", 3)))
		require.NoError(t, repo.CreateItem(ctx, NewItem(post, "", 4)))

		exists, err := repo.ItemSlugExists(ctx, "post", "about")
		require.NoError(t, err)
		assert.True(t, exists)
		exists, err = repo.ItemSlugExists(ctx, "post", "contact")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("CreateForMissingModel", func(t *testing.T) {
		repo := newRepo(t)
		err := repo.CreateItem(ctx, NewItem(NewModel("ghost", 0), "x", 0))
		assert.ErrorIs(t, err, simplecms.ErrModelNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		repo := newRepo(t)
		model := NewModel("post", 0)
		require.NoError(t, repo.CreateModel(ctx, model))
		item := NewItem(model, "bye", 0)
		require.NoError(t, repo.CreateItem(ctx, item))

		require.NoError(t, repo.DeleteItem(ctx, item.ID))
		_, err := repo.GetItem(ctx, item.ID)
		assert.ErrorIs(t, err, simplecms.ErrItemNotFound)
		assert.ErrorIs(t, repo.DeleteItem(ctx, item.ID), simplecms.ErrItemNotFound)

		exists, err := repo.ItemSlugExists(ctx, "post", "bye")
		require.NoError(t, err)
		assert.False(t, exists)
	})
}

func testListItems(t *testing.T, newRepo Factory) {
	ctx := context.Background()

	seed := func(t *testing.T) simplecms.Repository {
		repo := newRepo(t)
		model := NewModel("post", 0)
		require.NoError(t, repo.CreateModel(ctx, model))
		other := NewModel("page", 1)
		require.NoError(t, repo.CreateModel(ctx, other))

		for i := 0; i < 5; i++ {
			item := NewItem(model, fmt.Sprintf("post-%d", i), i)
			if i%2 == 1 {
				item.Status = simplecms.ItemStatusPublished
			}
			require.NoError(t, repo.CreateItem(ctx, item))
		}
		special := NewItem(model, "golang-tips", 10)
		special.Data = map[string]any{"title": "Concurrency Patterns"}
		require.NoError(t, repo.CreateItem(ctx, special))
		require.NoError(t, repo.CreateItem(ctx, NewItem(other, "post-0", 0)))
		return repo
	}

	t.Run("DefaultNewestFirst", func(t *testing.T) {
		repo := seed(t)
		page, err := repo.ListItems(ctx, "post", simplecms.ItemQuery{SortBy: simplecms.SortByCreatedAt, SortOrder: simplecms.SortDesc})
		require.NoError(t, err)
		assert.Equal(t, 6, page.Total)
		require.Len(t, page.Items, 6)
		assert.Equal(t, "golang-tips", page.Items[0].Slug)
		assert.Equal(t, "post-0", page.Items[5].Slug)
	})

	t.Run("StatusFilterTotalIgnoresWindow", func(t *testing.T) {
		repo := seed(t)
		page, err := repo.ListItems(ctx, "post", simplecms.ItemQuery{
			Status:    simplecms.ItemStatusDraft,
			SortBy:    simplecms.SortByCreatedAt,
			SortOrder: simplecms.SortDesc,
			Limit:     2,
		})
		require.NoError(t, err)
		assert.Equal(t, 4, page.Total)
		require.Len(t, page.Items, 2)
		for _, item := range page.Items {
			assert.Equal(t, simplecms.ItemStatusDraft, item.Status)
		}
	})

	t.Run("OffsetAndAscending", func(t *testing.T) {
		repo := seed(t)
		page, err := repo.ListItems(ctx, "post", simplecms.ItemQuery{
			SortBy:    simplecms.SortBySlug,
			SortOrder: simplecms.SortAsc,
			Limit:     2,
			Offset:    1,
		})
		require.NoError(t, err)
		assert.Equal(t, 6, page.Total)
		require.Len(t, page.Items, 2)
		assert.Equal(t, "post-0", page.Items[0].Slug)
		assert.Equal(t, "post-1", page.Items[1].Slug)
	})

	t.Run("OffsetPastEnd", func(t *testing.T) {
		repo := seed(t)
		page, err := repo.ListItems(ctx, "post", simplecms.ItemQuery{SortBy: simplecms.SortByCreatedAt, Offset: 50, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, 6, page.Total)
		assert.Empty(t, page.Items)
	})

	t.Run("SearchDataAndSlug", func(t *testing.T) {
		repo := seed(t)
		page, err := repo.ListItems(ctx, "post", simplecms.ItemQuery{Search: "Concurrency", SortBy: simplecms.SortByCreatedAt})
		require.NoError(t, err)
		assert.Equal(t, 1, page.Total)
		require.Len(t, page.Items, 1)
		assert.Equal(t, "golang-tips", page.Items[0].Slug)

		page, err = repo.ListItems(ctx, "post", simplecms.ItemQuery{Search: "golang", SortBy: simplecms.SortByCreatedAt})
		require.NoError(t, err)
		assert.Equal(t, 1, page.Total)
	})

	t.Run("UnknownModelIsEmpty", func(t *testing.T) {
		repo := seed(t)
		page, err := repo.ListItems(ctx, "missing", simplecms.ItemQuery{SortBy: simplecms.SortByCreatedAt})
		require.NoError(t, err)
		assert.Equal(t, 0, page.Total)
		assert.Empty(t, page.Items)
	})
}

func testUpdateItem(t *testing.T, newRepo Factory) {
	ctx := context.Background()

	t.Run("VersionAndPublishedAt", func(t *testing.T) {
		repo := newRepo(t)
		model := NewModel("post", 0)
		require.NoError(t, repo.CreateModel(ctx, model))
		item := NewItem(model, "hello", 0)
		require.NoError(t, repo.CreateItem(ctx, item))

		published := simplecms.ItemStatusPublished
		first := base.Add(time.Hour)
		require.NoError(t, repo.UpdateItem(ctx, item.ID, simplecms.ItemUpdate{
			Status:      &published,
			PublishedAt: &first,
			UpdatedAt:   first,
		}))

		got, err := repo.GetItem(ctx, item.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, got.Version)
		assert.Equal(t, simplecms.ItemStatusPublished, got.Status)
		require.NotNil(t, got.PublishedAt)
		assert.True(t, first.Equal(*got.PublishedAt))
		assert.Equal(t, item.Data, got.Data)

		// an existing publishedAt is never overwritten
		second := base.Add(2 * time.Hour)
		require.NoError(t, repo.UpdateItem(ctx, item.ID, simplecms.ItemUpdate{
			Data:        map[string]any{"title": "Changed"},
			PublishedAt: &second,
			UpdatedAt:   second,
		}))

		got, err = repo.GetItem(ctx, item.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, got.Version)
		assert.Equal(t, simplecms.ItemStatusPublished, got.Status)
		assert.Equal(t, "Changed", got.Data["title"])
		assert.True(t, first.Equal(*got.PublishedAt))
		assert.True(t, second.Equal(got.UpdatedAt))
	})

	t.Run("NotFound", func(t *testing.T) {
		repo := newRepo(t)
		err := repo.UpdateItem(ctx, uuid.New(), simplecms.ItemUpdate{UpdatedAt: base})
		assert.ErrorIs(t, err, simplecms.ErrItemNotFound)
	})

	t.Run("ConcurrentUpdatesKeepEveryIncrement", func(t *testing.T) {
		repo := newRepo(t)
		model := NewModel("post", 0)
		require.NoError(t, repo.CreateModel(ctx, model))
		item := NewItem(model, "busy", 0)
		require.NoError(t, repo.CreateItem(ctx, item))

		const writers = 20
		var wg sync.WaitGroup
		errs := make(chan error, writers)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs <- repo.UpdateItem(ctx, item.ID, simplecms.ItemUpdate{
					Data:      map[string]any{"title": fmt.Sprintf("Writer %d", i)},
					UpdatedAt: base.Add(time.Duration(i+1) * time.Second),
				})
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			assert.NoError(t, err)
		}

		got, err := repo.GetItem(ctx, item.ID)
		require.NoError(t, err)
		assert.Equal(t, 1+writers, got.Version)
	})
}

func testSearch(t *testing.T, newRepo Factory) {
	ctx := context.Background()
	repo := newRepo(t)
	model := NewModel("post", 0)
	require.NoError(t, repo.CreateModel(ctx, model))

	item := NewItem(model, "cartoon", 0)
	item.Data = map[string]any{"title": "Tom & Jerry <3"}
	require.NoError(t, repo.CreateItem(ctx, item))
	other := NewItem(model, "plain", 1)
	require.NoError(t, repo.CreateItem(ctx, other))

	for _, term := range []string{"Tom & Jerry", "<3", "tom & jerry <3"} {
		page, err := repo.ListItems(ctx, "post", simplecms.ItemQuery{Search: term, SortBy: simplecms.SortByCreatedAt})
		require.NoError(t, err, term)
		assert.Equal(t, 1, page.Total, term)
		if assert.Len(t, page.Items, 1, term) {
			assert.Equal(t, item.ID, page.Items[0].ID)
		}
	}

	// updated data is searchable the same way
	published := simplecms.ItemStatusPublished
	require.NoError(t, repo.UpdateItem(ctx, other.ID, simplecms.ItemUpdate{
		Status:    &published,
		Data:      map[string]any{"title": "Fish > Chips"},
		UpdatedAt: base.Add(time.Hour),
	}))
	page, err := repo.ListItems(ctx, "post", simplecms.ItemQuery{Search: "fish > chips", SortBy: simplecms.SortByCreatedAt})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
}
