package simplecms_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-cms/pkg/simplecms"
	"github.com/tendant/simple-cms/pkg/simplecms/repo/memory"
)

// clock hands out strictly increasing timestamps.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

// recordingSink remembers the events it received.
type recordingSink struct {
	simplecms.NoopEventSink
	mu        sync.Mutex
	events    []string
	published []string
	failures  [][]string
}

func (r *recordingSink) record(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingSink) ModelCreated(ctx context.Context, m *simplecms.ContentModel) error {
	r.record("model_created:" + m.Slug)
	return nil
}

func (r *recordingSink) ItemCreated(ctx context.Context, i *simplecms.ContentItem) error {
	r.record("item_created:" + i.Slug)
	return nil
}

func (r *recordingSink) ItemUpdated(ctx context.Context, i *simplecms.ContentItem) error {
	r.record(fmt.Sprintf("item_updated:%s:v%d", i.Slug, i.Version))
	return nil
}

func (r *recordingSink) ItemPublished(ctx context.Context, i *simplecms.ContentItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.published = append(r.published, i.Slug)
	return nil
}

func (r *recordingSink) ValidationFailed(ctx context.Context, modelSlug string, messages []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, messages)
	return nil
}

func newService(t *testing.T, opts ...simplecms.Option) simplecms.Service {
	t.Helper()
	opts = append([]simplecms.Option{
		simplecms.WithRepository(memory.New()),
		simplecms.WithClock(newClock().Now),
	}, opts...)
	svc, err := simplecms.New(opts...)
	require.NoError(t, err)
	return svc
}

func createPostModel(t *testing.T, svc simplecms.Service) *simplecms.ContentModel {
	t.Helper()
	model, err := svc.CreateModel(context.Background(), simplecms.CreateModelRequest{
		Name: "Post",
		Fields: []simplecms.ContentField{
			{Name: "title", Type: simplecms.FieldTypeText, Validation: required()},
			{Name: "body", Type: simplecms.FieldTypeRichText},
			{Name: "views", Type: simplecms.FieldTypeNumber, DefaultValue: 0.0},
		},
		Settings: &simplecms.SettingsPatch{SlugField: simplecms.String("title")},
	})
	require.NoError(t, err)
	return model
}

func TestNew_RequiresRepository(t *testing.T) {
	_, err := simplecms.New()
	assert.EqualError(t, err, "repository is required")
}

func TestService_CreateModel(t *testing.T) {
	ctx := context.Background()

	t.Run("DefaultsAndSlug", func(t *testing.T) {
		svc := newService(t)
		model := createPostModel(t, svc)

		assert.Equal(t, "post", model.Slug)
		assert.Equal(t, "Post", model.DisplayName)
		assert.Equal(t, simplecms.ModelSettings{
			Singleton:  false,
			Drafts:     true,
			Versioning: false,
			Timestamps: true,
			SlugField:  "title",
		}, model.Settings)
		assert.False(t, model.CreatedAt.IsZero())
		assert.Equal(t, model.CreatedAt, model.UpdatedAt)
	})

	t.Run("SecondModelWithSameNameGetsSuffix", func(t *testing.T) {
		svc := newService(t)
		createPostModel(t, svc)
		second := createPostModel(t, svc)
		assert.Equal(t, "post-1", second.Slug)
	})

	t.Run("FieldListIsCopied", func(t *testing.T) {
		svc := newService(t)
		fields := []simplecms.ContentField{{Name: "title", Type: simplecms.FieldTypeText}}
		model, err := svc.CreateModel(ctx, simplecms.CreateModelRequest{Name: "Page", Fields: fields})
		require.NoError(t, err)

		fields[0].Name = "changed"
		stored, err := svc.GetModel(ctx, model.Slug)
		require.NoError(t, err)
		assert.Equal(t, "title", stored.Fields[0].Name)
	})

	t.Run("Rejected", func(t *testing.T) {
		svc := newService(t)
		tests := []struct {
			name string
			req  simplecms.CreateModelRequest
			want string
		}{
			{"empty name", simplecms.CreateModelRequest{Name: " ", Fields: []simplecms.ContentField{{Name: "a", Type: "text"}}}, "Model name is required"},
			{"symbol name", simplecms.CreateModelRequest{Name: "???", Fields: []simplecms.ContentField{{Name: "a", Type: "text"}}}, "at least one letter or digit"},
			{"duplicate field", simplecms.CreateModelRequest{Name: "X", Fields: []simplecms.ContentField{{Name: "a", Type: "text"}, {Name: "a", Type: "text"}}}, "Duplicate field name: a"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := svc.CreateModel(ctx, tt.req)
				require.ErrorIs(t, err, simplecms.ErrValidation)
				assert.Contains(t, err.Error(), tt.want)
			})
		}

		models, err := svc.ListModels(ctx)
		require.NoError(t, err)
		assert.Empty(t, models)
	})
}

func TestService_ModelLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	post := createPostModel(t, svc)
	_, err := svc.CreateModel(ctx, simplecms.CreateModelRequest{Name: "Author", Fields: []simplecms.ContentField{{Name: "name", Type: "text"}}})
	require.NoError(t, err)

	t.Run("ListNewestFirst", func(t *testing.T) {
		models, err := svc.ListModels(ctx)
		require.NoError(t, err)
		require.Len(t, models, 2)
		assert.Equal(t, "author", models[0].Slug)
		assert.Equal(t, "post", models[1].Slug)
	})

	t.Run("GetNotFound", func(t *testing.T) {
		_, err := svc.GetModel(ctx, "missing")
		assert.ErrorIs(t, err, simplecms.ErrNotFound)
		assert.ErrorIs(t, err, simplecms.ErrModelNotFound)
	})

	t.Run("PartialUpdate", func(t *testing.T) {
		updated, err := svc.UpdateModel(ctx, "post", simplecms.UpdateModelRequest{
			Description: simplecms.String("Long form articles"),
			Settings:    &simplecms.SettingsPatch{Versioning: simplecms.Bool(true)},
		})
		require.NoError(t, err)
		assert.Equal(t, "post", updated.Slug)
		assert.Equal(t, "Post", updated.Name)
		assert.Equal(t, "Long form articles", updated.Description)
		assert.True(t, updated.Settings.Versioning)
		assert.Equal(t, "title", updated.Settings.SlugField)
		assert.Len(t, updated.Fields, 3)
		assert.True(t, updated.UpdatedAt.After(post.UpdatedAt))
	})

	t.Run("UpdateRevalidatesFields", func(t *testing.T) {
		_, err := svc.UpdateModel(ctx, "post", simplecms.UpdateModelRequest{
			Fields: []simplecms.ContentField{{Name: "body", Type: simplecms.FieldTypeRichText}},
		})
		require.ErrorIs(t, err, simplecms.ErrValidation)
		assert.Contains(t, err.Error(), "Slug field 'title' is not defined in model")

		stored, err := svc.GetModel(ctx, "post")
		require.NoError(t, err)
		assert.Len(t, stored.Fields, 3)
	})

	t.Run("UpdateNotFound", func(t *testing.T) {
		_, err := svc.UpdateModel(ctx, "missing", simplecms.UpdateModelRequest{Name: simplecms.String("x")})
		assert.ErrorIs(t, err, simplecms.ErrNotFound)
	})

	t.Run("DeleteCascades", func(t *testing.T) {
		_, err := svc.CreateItem(ctx, "post", simplecms.CreateItemRequest{Data: map[string]any{"title": "Bye"}})
		require.NoError(t, err)

		require.NoError(t, svc.DeleteModel(ctx, "post"))
		_, err = svc.GetModel(ctx, "post")
		assert.ErrorIs(t, err, simplecms.ErrNotFound)
		_, err = svc.GetItem(ctx, "post", "bye")
		assert.ErrorIs(t, err, simplecms.ErrNotFound)
		assert.ErrorIs(t, svc.DeleteModel(ctx, "post"), simplecms.ErrNotFound)
	})
}

func TestService_CreateItem(t *testing.T) {
	ctx := context.Background()

	t.Run("RequiredFieldMissing", func(t *testing.T) {
		sink := &recordingSink{}
		svc := newService(t, simplecms.WithEventSink(sink))
		createPostModel(t, svc)

		_, err := svc.CreateItem(ctx, "post", simplecms.CreateItemRequest{Data: map[string]any{}})
		require.ErrorIs(t, err, simplecms.ErrValidation)
		assert.Contains(t, err.Error(), "title' is required")
		assert.Equal(t, [][]string{{"Field 'title' is required"}}, sink.failures)
	})

	t.Run("UnknownModel", func(t *testing.T) {
		svc := newService(t)
		_, err := svc.CreateItem(ctx, "missing", simplecms.CreateItemRequest{Data: map[string]any{}})
		assert.ErrorIs(t, err, simplecms.ErrNotFound)
	})

	t.Run("SlugFromSourceField", func(t *testing.T) {
		svc := newService(t)
		createPostModel(t, svc)

		first, err := svc.CreateItem(ctx, "post", simplecms.CreateItemRequest{Data: map[string]any{"title": "Hello, World!"}, AuthorID: "u1"})
		require.NoError(t, err)
		second, err := svc.CreateItem(ctx, "post", simplecms.CreateItemRequest{Data: map[string]any{"title": "Hello, World!"}, AuthorID: "u1"})
		require.NoError(t, err)

		assert.Equal(t, "hello-world", first.Slug)
		assert.Equal(t, "hello-world-1", second.Slug)
		assert.NotEqual(t, first.ID, second.ID)
	})

	t.Run("ModelAndItemNamespacesAreIndependent", func(t *testing.T) {
		svc := newService(t)
		createPostModel(t, svc)
		item, err := svc.CreateItem(ctx, "post", simplecms.CreateItemRequest{Data: map[string]any{"title": "Post"}})
		require.NoError(t, err)
		assert.Equal(t, "post", item.Slug)

		second := createPostModel(t, svc)
		assert.Equal(t, "post-1", second.Slug)
	})

	t.Run("InitialState", func(t *testing.T) {
		svc := newService(t)
		model := createPostModel(t, svc)

		item, err := svc.CreateItem(ctx, "post", simplecms.CreateItemRequest{Data: map[string]any{"title": "Draft"}, AuthorID: "u1"})
		require.NoError(t, err)
		assert.Equal(t, simplecms.ItemStatusDraft, item.Status)
		assert.Equal(t, 1, item.Version)
		assert.Nil(t, item.PublishedAt)
		assert.Equal(t, model.ID, item.ModelID)
		assert.Equal(t, "post", item.ModelSlug)
		assert.Equal(t, "u1", item.AuthorID)
		assert.Equal(t, item.CreatedAt, item.UpdatedAt)
		assert.Equal(t, map[string]any{"title": "Draft", "body": nil, "views": 0.0}, item.Data)
	})

	t.Run("CreatedPublished", func(t *testing.T) {
		sink := &recordingSink{}
		svc := newService(t, simplecms.WithEventSink(sink))
		createPostModel(t, svc)

		item, err := svc.CreateItem(ctx, "post", simplecms.CreateItemRequest{
			Status: simplecms.ItemStatusPublished,
			Data:   map[string]any{"title": "Live"},
		})
		require.NoError(t, err)
		require.NotNil(t, item.PublishedAt)
		assert.Equal(t, item.CreatedAt, *item.PublishedAt)
		assert.Equal(t, []string{"live"}, sink.published)
	})

	t.Run("StatusIgnoresCase", func(t *testing.T) {
		svc := newService(t)
		createPostModel(t, svc)
		item, err := svc.CreateItem(ctx, "post", simplecms.CreateItemRequest{Status: " Published ", Data: map[string]any{"title": "Cased"}})
		require.NoError(t, err)
		assert.Equal(t, simplecms.ItemStatusPublished, item.Status)
		assert.NotNil(t, item.PublishedAt)
	})

	t.Run("InvalidStatus", func(t *testing.T) {
		svc := newService(t)
		createPostModel(t, svc)
		_, err := svc.CreateItem(ctx, "post", simplecms.CreateItemRequest{Status: "deleted", Data: map[string]any{"title": "x"}})
		require.ErrorIs(t, err, simplecms.ErrValidation)
		assert.Contains(t, err.Error(), "Status 'deleted' must be one of")
	})

	t.Run("NoSlugWithoutSourceValue", func(t *testing.T) {
		svc := newService(t)
		_, err := svc.CreateModel(ctx, simplecms.CreateModelRequest{
			Name:     "Note",
			Fields:   []simplecms.ContentField{{Name: "title", Type: "text"}, {Name: "text", Type: "text"}},
			Settings: &simplecms.SettingsPatch{SlugField: simplecms.String("title")},
		})
		require.NoError(t, err)

		item, err := svc.CreateItem(ctx, "note", simplecms.CreateItemRequest{Data: map[string]any{"text": "no title"}})
		require.NoError(t, err)
		assert.Empty(t, item.Slug)

		byID, err := svc.GetItem(ctx, "note", item.ID.String())
		require.NoError(t, err)
		assert.Equal(t, item.ID, byID.ID)
	})

	t.Run("Singleton", func(t *testing.T) {
		svc := newService(t)
		_, err := svc.CreateModel(ctx, simplecms.CreateModelRequest{
			Name:     "Site Settings",
			Fields:   []simplecms.ContentField{{Name: "siteName", Type: "text"}},
			Settings: &simplecms.SettingsPatch{Singleton: simplecms.Bool(true)},
		})
		require.NoError(t, err)

		_, err = svc.CreateItem(ctx, "site-settings", simplecms.CreateItemRequest{Data: map[string]any{"siteName": "A"}})
		require.NoError(t, err)
		_, err = svc.CreateItem(ctx, "site-settings", simplecms.CreateItemRequest{Data: map[string]any{"siteName": "B"}})
		assert.ErrorIs(t, err, simplecms.ErrConflict)
	})

	t.Run("UnknownFieldPolicy", func(t *testing.T) {
		strict := newService(t)
		createPostModel(t, strict)
		_, err := strict.CreateItem(ctx, "post", simplecms.CreateItemRequest{Data: map[string]any{"title": "x", "extra": 1}})
		require.ErrorIs(t, err, simplecms.ErrValidation)
		assert.Contains(t, err.Error(), "Field 'extra' is not defined in model 'post'")

		lenient := newService(t, simplecms.WithUnknownFieldPolicy(simplecms.IgnoreUnknownFields))
		createPostModel(t, lenient)
		item, err := lenient.CreateItem(ctx, "post", simplecms.CreateItemRequest{Data: map[string]any{"title": "x", "extra": 1}})
		require.NoError(t, err)
		assert.NotContains(t, item.Data, "extra")
	})

	t.Run("SlugSearchCap", func(t *testing.T) {
		svc := newService(t, simplecms.WithMaxSlugAttempts(2))
		createPostModel(t, svc)
		for i := 0; i < 2; i++ {
			_, err := svc.CreateItem(ctx, "post", simplecms.CreateItemRequest{Data: map[string]any{"title": "Same"}})
			require.NoError(t, err)
		}
		_, err := svc.CreateItem(ctx, "post", simplecms.CreateItemRequest{Data: map[string]any{"title": "Same"}})
		assert.ErrorIs(t, err, simplecms.ErrUnexpected)
	})
}

// racingRepo answers the next few slug probes with "free", as if another
// writer had not committed yet, so the insert hits the uniqueness check.
type racingRepo struct {
	*memory.Repository
	mu     sync.Mutex
	stale  int
	probes int
}

func (r *racingRepo) ItemSlugExists(ctx context.Context, modelSlug, slug string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.probes++
	if r.stale > 0 {
		r.stale--
		return false, nil
	}
	return r.Repository.ItemSlugExists(ctx, modelSlug, slug)
}

func TestService_CreateItemRetriesOnConflict(t *testing.T) {
	ctx := context.Background()
	repo := &racingRepo{Repository: memory.New()}
	svc, err := simplecms.New(simplecms.WithRepository(repo))
	require.NoError(t, err)
	createPostModel(t, svc)

	first, err := svc.CreateItem(ctx, "post", simplecms.CreateItemRequest{Data: map[string]any{"title": "Race"}})
	require.NoError(t, err)
	assert.Equal(t, "race", first.Slug)

	repo.stale = 1
	repo.probes = 0
	second, err := svc.CreateItem(ctx, "post", simplecms.CreateItemRequest{Data: map[string]any{"title": "Race"}})
	require.NoError(t, err)
	assert.Equal(t, "race-1", second.Slug)
	assert.Equal(t, 3, repo.probes)

	repo.stale = 10
	_, err = svc.CreateItem(ctx, "post", simplecms.CreateItemRequest{Data: map[string]any{"title": "Race"}})
	assert.ErrorIs(t, err, simplecms.ErrConflict)
}

func TestService_UpdateItem(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T, opts ...simplecms.Option) (simplecms.Service, *simplecms.ContentItem) {
		svc := newService(t, opts...)
		createPostModel(t, svc)
		item, err := svc.CreateItem(ctx, "post", simplecms.CreateItemRequest{Data: map[string]any{"title": "Hello"}, AuthorID: "u1"})
		require.NoError(t, err)
		return svc, item
	}

	t.Run("VersionIncrementsByOne", func(t *testing.T) {
		svc, item := setup(t)

		archived := simplecms.ItemStatusArchived
		updates := []simplecms.UpdateItemRequest{
			{Data: map[string]any{"title": "Hello", "body": "text"}},
			{Status: &archived},
			{},
		}
		for i, req := range updates {
			updated, err := svc.UpdateItem(ctx, "post", "hello", req)
			require.NoError(t, err)
			assert.Equal(t, item.Version+i+1, updated.Version)
		}
	})

	t.Run("DataIsRevalidated", func(t *testing.T) {
		svc, _ := setup(t)
		_, err := svc.UpdateItem(ctx, "post", "hello", simplecms.UpdateItemRequest{Data: map[string]any{"views": "many"}})
		require.ErrorIs(t, err, simplecms.ErrValidation)
		assert.Equal(t, []string{
			"Field 'title' is required",
			"Field 'views' must be a number",
		}, simplecms.ValidationMessages(err))

		stored, err := svc.GetItem(ctx, "post", "hello")
		require.NoError(t, err)
		assert.Equal(t, 1, stored.Version)
		assert.Equal(t, "Hello", stored.Data["title"])
	})

	t.Run("DataIsNormalized", func(t *testing.T) {
		svc, _ := setup(t)
		updated, err := svc.UpdateItem(ctx, "post", "hello", simplecms.UpdateItemRequest{Data: map[string]any{"title": "Hello", "views": "12"}})
		require.NoError(t, err)
		assert.Equal(t, 12.0, updated.Data["views"])
		assert.Equal(t, "hello", updated.Slug)
	})

	t.Run("PublishedAtStampedOnce", func(t *testing.T) {
		sink := &recordingSink{}
		svc, item := setup(t, simplecms.WithEventSink(sink))
		published := simplecms.ItemStatusPublished
		draft := simplecms.ItemStatusDraft

		first, err := svc.UpdateItem(ctx, "post", item.ID.String(), simplecms.UpdateItemRequest{Status: &published})
		require.NoError(t, err)
		require.NotNil(t, first.PublishedAt)
		stamp := *first.PublishedAt

		back, err := svc.UpdateItem(ctx, "post", "hello", simplecms.UpdateItemRequest{Status: &draft})
		require.NoError(t, err)
		assert.Equal(t, simplecms.ItemStatusDraft, back.Status)
		require.NotNil(t, back.PublishedAt)
		assert.True(t, stamp.Equal(*back.PublishedAt))

		again, err := svc.UpdateItem(ctx, "post", "hello", simplecms.UpdateItemRequest{Status: &published})
		require.NoError(t, err)
		assert.True(t, stamp.Equal(*again.PublishedAt))
		assert.True(t, again.UpdatedAt.After(stamp))

		assert.Equal(t, []string{"hello"}, sink.published)
	})

	t.Run("StatusIgnoresCase", func(t *testing.T) {
		svc, _ := setup(t)
		archived := simplecms.ItemStatus("ARCHIVED")
		got, err := svc.UpdateItem(ctx, "post", "hello", simplecms.UpdateItemRequest{Status: &archived})
		require.NoError(t, err)
		assert.Equal(t, simplecms.ItemStatusArchived, got.Status)
	})

	t.Run("InvalidStatus", func(t *testing.T) {
		svc, _ := setup(t)
		bad := simplecms.ItemStatus("gone")
		_, err := svc.UpdateItem(ctx, "post", "hello", simplecms.UpdateItemRequest{Status: &bad})
		assert.ErrorIs(t, err, simplecms.ErrValidation)
	})

	t.Run("NotFound", func(t *testing.T) {
		svc, _ := setup(t)
		_, err := svc.UpdateItem(ctx, "post", "nope", simplecms.UpdateItemRequest{})
		assert.ErrorIs(t, err, simplecms.ErrItemNotFound)
		_, err = svc.UpdateItem(ctx, "page", "hello", simplecms.UpdateItemRequest{})
		assert.ErrorIs(t, err, simplecms.ErrNotFound)
	})
}

func TestService_DeleteItem(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	createPostModel(t, svc)
	_, err := svc.CreateItem(ctx, "post", simplecms.CreateItemRequest{Data: map[string]any{"title": "Gone"}})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteItem(ctx, "post", "gone"))
	_, err = svc.GetItem(ctx, "post", "gone")
	assert.ErrorIs(t, err, simplecms.ErrNotFound)
	assert.ErrorIs(t, svc.DeleteItem(ctx, "post", "gone"), simplecms.ErrNotFound)
}

func TestService_ListItems(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	createPostModel(t, svc)

	published := simplecms.ItemStatusPublished
	for i := 0; i < 7; i++ {
		item, err := svc.CreateItem(ctx, "post", simplecms.CreateItemRequest{Data: map[string]any{"title": fmt.Sprintf("Entry %d", i)}})
		require.NoError(t, err)
		if i < 3 {
			_, err = svc.UpdateItem(ctx, "post", item.Slug, simplecms.UpdateItemRequest{Status: &published})
			require.NoError(t, err)
		}
	}

	t.Run("StatusFilterWithWindow", func(t *testing.T) {
		list, err := svc.ListItems(ctx, "post", simplecms.ListItemsRequest{Status: "draft", Limit: 2, Offset: 1})
		require.NoError(t, err)
		assert.Equal(t, 4, list.Total)
		require.Len(t, list.Items, 2)
		for _, item := range list.Items {
			assert.Equal(t, simplecms.ItemStatusDraft, item.Status)
		}
		assert.Equal(t, 2, list.Limit)
		assert.Equal(t, 1, list.Offset)
	})

	t.Run("DefaultNewestFirst", func(t *testing.T) {
		list, err := svc.ListItems(ctx, "post", simplecms.ListItemsRequest{})
		require.NoError(t, err)
		assert.Equal(t, 7, list.Total)
		require.Len(t, list.Items, 7)
		assert.Equal(t, "entry-6", list.Items[0].Slug)
		assert.Equal(t, "entry-0", list.Items[6].Slug)
	})

	t.Run("SortAscendingBySlug", func(t *testing.T) {
		list, err := svc.ListItems(ctx, "post", simplecms.ListItemsRequest{SortBy: "slug", SortOrder: "ASC", Limit: 1})
		require.NoError(t, err)
		require.Len(t, list.Items, 1)
		assert.Equal(t, "entry-0", list.Items[0].Slug)
	})

	t.Run("Search", func(t *testing.T) {
		list, err := svc.ListItems(ctx, "post", simplecms.ListItemsRequest{Search: "entry 4"})
		require.NoError(t, err)
		assert.Equal(t, 1, list.Total)
	})

	t.Run("BadFilters", func(t *testing.T) {
		_, err := svc.ListItems(ctx, "post", simplecms.ListItemsRequest{Status: "gone", SortBy: "title", SortOrder: "up", Offset: -1})
		require.ErrorIs(t, err, simplecms.ErrValidation)
		assert.Len(t, simplecms.ValidationMessages(err), 4)
	})

	t.Run("UnknownModel", func(t *testing.T) {
		_, err := svc.ListItems(ctx, "missing", simplecms.ListItemsRequest{})
		assert.ErrorIs(t, err, simplecms.ErrNotFound)
	})
}

type fakeMedia map[string]bool

func (f fakeMedia) Exists(ctx context.Context, key string) (bool, error) {
	if key == "broken" {
		return false, errors.New("media store unavailable")
	}
	return f[key], nil
}

func TestService_MediaResolver(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, simplecms.WithMediaResolver(fakeMedia{"hero.png": true}))
	_, err := svc.CreateModel(ctx, simplecms.CreateModelRequest{
		Name: "Gallery",
		Fields: []simplecms.ContentField{
			{Name: "cover", Type: simplecms.FieldTypeMedia},
			{Name: "photos", Type: simplecms.FieldTypeArray, ArrayOf: simplecms.FieldTypeMedia},
		},
	})
	require.NoError(t, err)

	_, err = svc.CreateItem(ctx, "gallery", simplecms.CreateItemRequest{Data: map[string]any{"cover": "hero.png", "photos": []any{"hero.png"}}})
	require.NoError(t, err)

	_, err = svc.CreateItem(ctx, "gallery", simplecms.CreateItemRequest{Data: map[string]any{"cover": "missing.png", "photos": []any{"hero.png", "gone.jpg"}}})
	require.ErrorIs(t, err, simplecms.ErrValidation)
	assert.Equal(t, []string{
		"Field 'cover' references unknown media 'missing.png'",
		"Field 'photos' references unknown media 'gone.jpg'",
	}, simplecms.ValidationMessages(err))

	_, err = svc.CreateItem(ctx, "gallery", simplecms.CreateItemRequest{Data: map[string]any{"cover": map[string]any{"key": "hero.png", "alt": "Hero"}}})
	require.NoError(t, err)
	_, err = svc.CreateItem(ctx, "gallery", simplecms.CreateItemRequest{Data: map[string]any{"cover": map[string]any{"key": "nope.png"}}})
	assert.Equal(t, []string{"Field 'cover' references unknown media 'nope.png'"}, simplecms.ValidationMessages(err))

	_, err = svc.CreateItem(ctx, "gallery", simplecms.CreateItemRequest{Data: map[string]any{"cover": "broken"}})
	require.Error(t, err)
	assert.NotErrorIs(t, err, simplecms.ErrValidation)
}

func TestService_Hooks(t *testing.T) {
	ctx := context.Background()
	var transitions []string
	var failures []string

	hooks := &simplecms.Hooks{
		BeforeItemCreate: []simplecms.BeforeItemCreateHook{
			func(hctx *simplecms.HookContext, model *simplecms.ContentModel, req *simplecms.CreateItemRequest) error {
				if req.AuthorID == "" {
					req.AuthorID = "hook-author"
				}
				return nil
			},
		},
		BeforeItemDelete: []simplecms.BeforeItemDeleteHook{
			func(hctx *simplecms.HookContext, item *simplecms.ContentItem) error {
				if item.Status == simplecms.ItemStatusPublished {
					return errors.New("published items cannot be deleted")
				}
				return nil
			},
		},
		OnStatusChange: []simplecms.StatusChangeHook{
			func(hctx *simplecms.HookContext, item *simplecms.ContentItem, from, to simplecms.ItemStatus) error {
				transitions = append(transitions, fmt.Sprintf("%s->%s", from, to))
				return nil
			},
		},
		OnError: []simplecms.ErrorHook{
			func(hctx *simplecms.HookContext, operation string, err error) {
				failures = append(failures, operation)
			},
		},
	}

	svc := newService(t, simplecms.WithHooks(hooks))
	createPostModel(t, svc)

	item, err := svc.CreateItem(ctx, "post", simplecms.CreateItemRequest{Data: map[string]any{"title": "Hooked"}})
	require.NoError(t, err)
	assert.Equal(t, "hook-author", item.AuthorID)

	published := simplecms.ItemStatusPublished
	_, err = svc.UpdateItem(ctx, "post", "hooked", simplecms.UpdateItemRequest{Status: &published})
	require.NoError(t, err)
	_, err = svc.UpdateItem(ctx, "post", "hooked", simplecms.UpdateItemRequest{Status: &published})
	require.NoError(t, err)
	assert.Equal(t, []string{"draft->published"}, transitions)

	err = svc.DeleteItem(ctx, "post", "hooked")
	assert.EqualError(t, errors.Unwrap(err), "published items cannot be deleted")
	assert.Equal(t, []string{"delete_item"}, failures)
}

func TestService_EventOrder(t *testing.T) {
	ctx := context.Background()
	sink := &recordingSink{}
	svc := newService(t, simplecms.WithEventSink(simplecms.MultiEventSink{sink, simplecms.NewLoggingEventSink(nil)}))
	createPostModel(t, svc)

	_, err := svc.CreateItem(ctx, "post", simplecms.CreateItemRequest{Data: map[string]any{"title": "Evented"}})
	require.NoError(t, err)
	_, err = svc.UpdateItem(ctx, "post", "evented", simplecms.UpdateItemRequest{Data: map[string]any{"title": "Evented"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"model_created:post", "item_created:evented", "item_updated:evented:v2"}, sink.events)
}
