package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-cms/pkg/simplecms"
	"github.com/tendant/simple-cms/pkg/simplecms/repo/memory"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
	Details []string        `json:"details"`
}

// setupContentHandlerTest mounts a handler backed by the memory repository.
func setupContentHandlerTest(t *testing.T, opts ...HandlerOption) http.Handler {
	t.Helper()
	svc, err := simplecms.New(simplecms.WithRepository(memory.New()))
	require.NoError(t, err)

	opts = append([]HandlerOption{WithHandlerLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	r := chi.NewRouter()
	r.Mount("/api/content", NewContentHandler(svc, opts...).Routes())
	return r
}

func do(t *testing.T, h http.Handler, method, path string, body any, headers ...string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

var postModel = map[string]any{
	"name": "Blog Post",
	"fields": []map[string]any{
		{"name": "title", "type": "text", "validation": map[string]any{"required": true}},
		{"name": "body", "type": "richtext"},
		{"name": "rating", "type": "number"},
	},
	"settings": map[string]any{"slugField": "title"},
}

func TestContentHandler_ModelLifecycle(t *testing.T) {
	h := setupContentHandlerTest(t)

	w, env := do(t, h, http.MethodPost, "/api/content/models", postModel)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, env.Success)

	var model simplecms.ContentModel
	require.NoError(t, json.Unmarshal(env.Data, &model))
	assert.Equal(t, "blog-post", model.Slug)
	assert.Equal(t, "Blog Post", model.DisplayName)
	assert.True(t, model.Settings.Drafts)

	w, env = do(t, h, http.MethodGet, "/api/content/models", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var models []simplecms.ContentModel
	require.NoError(t, json.Unmarshal(env.Data, &models))
	assert.Len(t, models, 1)

	w, env = do(t, h, http.MethodPut, "/api/content/models/blog-post", map[string]any{"description": "Articles"})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &model))
	assert.Equal(t, "Articles", model.Description)

	w, _ = do(t, h, http.MethodDelete, "/api/content/models/blog-post", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, env = do(t, h, http.MethodGet, "/api/content/models/blog-post", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, env.Success)
}

func TestContentHandler_ModelValidation(t *testing.T) {
	h := setupContentHandlerTest(t)

	w, env := do(t, h, http.MethodPost, "/api/content/models", map[string]any{
		"name": "Broken",
		"fields": []map[string]any{
			{"name": "author", "type": "reference"},
			{"name": "color", "type": "select"},
		},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, env.Success)
	assert.Equal(t, []string{
		"Reference field 'author' must specify referenceTo",
		"Select field 'color' must have options",
	}, env.Details)

	w, env = do(t, h, http.MethodPost, "/api/content/models", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid JSON body", env.Error)
}

func TestContentHandler_ItemLifecycle(t *testing.T) {
	h := setupContentHandlerTest(t)
	w, _ := do(t, h, http.MethodPost, "/api/content/models", postModel)
	require.Equal(t, http.StatusCreated, w.Code)

	w, env := do(t, h, http.MethodPost, "/api/content/blog-post", map[string]any{
		"data": map[string]any{"title": "Hello World", "rating": "4.5"},
	}, AuthorHeader, "editor-1")
	require.Equal(t, http.StatusCreated, w.Code, env.Error)

	var item simplecms.ContentItem
	require.NoError(t, json.Unmarshal(env.Data, &item))
	assert.Equal(t, "hello-world", item.Slug)
	assert.Equal(t, simplecms.ItemStatusDraft, item.Status)
	assert.Equal(t, 4.5, item.Data["rating"])
	assert.Equal(t, "editor-1", item.AuthorID)
	assert.Equal(t, 1, item.Version)

	w, env = do(t, h, http.MethodGet, "/api/content/blog-post/hello-world", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, env = do(t, h, http.MethodGet, "/api/content/blog-post/"+item.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, env = do(t, h, http.MethodPut, "/api/content/blog-post/hello-world", map[string]any{"status": "published"})
	require.Equal(t, http.StatusOK, w.Code)
	var updated simplecms.ContentItem
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	assert.Equal(t, 2, updated.Version)
	assert.NotNil(t, updated.PublishedAt)

	w, _ = do(t, h, http.MethodDelete, "/api/content/blog-post/hello-world", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = do(t, h, http.MethodGet, "/api/content/blog-post/hello-world", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestContentHandler_ItemErrors(t *testing.T) {
	h := setupContentHandlerTest(t)
	w, _ := do(t, h, http.MethodPost, "/api/content/models", postModel)
	require.Equal(t, http.StatusCreated, w.Code)

	w, env := do(t, h, http.MethodPost, "/api/content/blog-post", map[string]any{"data": map[string]any{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, env.Error, "title' is required")

	w, _ = do(t, h, http.MethodPost, "/api/content/missing", map[string]any{"data": map[string]any{}})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, env = do(t, h, http.MethodGet, "/api/content/blog-post?limit=ten", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "limit must be an integer", env.Error)

	w, env = do(t, h, http.MethodGet, "/api/content/blog-post?sortBy=title", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, env.Error, "Cannot sort by 'title'")
}

func TestContentHandler_ListItems(t *testing.T) {
	h := setupContentHandlerTest(t)
	w, _ := do(t, h, http.MethodPost, "/api/content/models", postModel)
	require.Equal(t, http.StatusCreated, w.Code)

	for _, title := range []string{"One", "Two", "Three"} {
		w, _ = do(t, h, http.MethodPost, "/api/content/blog-post", map[string]any{"data": map[string]any{"title": title}})
		require.Equal(t, http.StatusCreated, w.Code)
	}
	w, _ = do(t, h, http.MethodPost, "/api/content/blog-post", map[string]any{"status": "published", "data": map[string]any{"title": "Four"}})
	require.Equal(t, http.StatusCreated, w.Code)

	w, env := do(t, h, http.MethodGet, "/api/content/blog-post?status=draft&limit=2&sortBy=slug&sortOrder=asc", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var list simplecms.ItemList
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Equal(t, 3, list.Total)
	require.Len(t, list.Items, 2)
	assert.Equal(t, "one", list.Items[0].Slug)
	assert.Equal(t, "three", list.Items[1].Slug)
	assert.Equal(t, 2, list.Limit)
}

func TestContentHandler_SingletonConflict(t *testing.T) {
	h := setupContentHandlerTest(t)
	w, _ := do(t, h, http.MethodPost, "/api/content/models", map[string]any{
		"name":     "Settings",
		"fields":   []map[string]any{{"name": "siteName", "type": "text"}},
		"settings": map[string]any{"singleton": true},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w, _ = do(t, h, http.MethodPost, "/api/content/settings", map[string]any{"data": map[string]any{"siteName": "A"}})
	require.Equal(t, http.StatusCreated, w.Code)
	w, env := do(t, h, http.MethodPost, "/api/content/settings", map[string]any{"data": map[string]any{"siteName": "B"}})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.False(t, env.Success)
}

func TestContentHandler_JWTGuardsWrites(t *testing.T) {
	ja := NewJWTAuth("test-secret")
	h := setupContentHandlerTest(t, WithWriteMiddleware(RequireJWT(ja)...))

	req := httptest.NewRequest(http.MethodPost, "/api/content/models", bytes.NewReader(mustJSON(t, postModel)))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	_, token, err := ja.Encode(map[string]interface{}{"sub": "user-42"})
	require.NoError(t, err)
	bearer := "Bearer " + token

	w2, _ := do(t, h, http.MethodPost, "/api/content/models", postModel, "Authorization", bearer)
	require.Equal(t, http.StatusCreated, w2.Code)

	// reads stay public
	w2, _ = do(t, h, http.MethodGet, "/api/content/models", nil)
	assert.Equal(t, http.StatusOK, w2.Code)

	// the token subject wins over the header
	w2, env := do(t, h, http.MethodPost, "/api/content/blog-post", map[string]any{"data": map[string]any{"title": "Signed"}},
		"Authorization", bearer, AuthorHeader, "spoofed")
	require.Equal(t, http.StatusCreated, w2.Code)
	var item simplecms.ContentItem
	require.NoError(t, json.Unmarshal(env.Data, &item))
	assert.Equal(t, "user-42", item.AuthorID)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusFor(simplecms.ErrItemNotFound))
	assert.Equal(t, http.StatusBadRequest, statusFor(&simplecms.ValidationError{Messages: []string{"x"}}))
	assert.Equal(t, http.StatusConflict, statusFor(simplecms.ErrConflict))
	assert.Equal(t, http.StatusInternalServerError, statusFor(simplecms.ErrUnexpected))
	assert.Equal(t, http.StatusInternalServerError, statusFor(io.ErrUnexpectedEOF))
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}
