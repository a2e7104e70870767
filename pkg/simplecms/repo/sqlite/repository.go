// Package sqlite stores models and items in SQLite through the pure-Go
// modernc.org/sqlite driver.
package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-cms/pkg/simplecms"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// timeLayout is fixed width so text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const (
	modelColumns = `id, name, slug, display_name, description, fields, settings, created_at, updated_at`
	itemColumns  = `id, model_id, model_slug, slug, status, published_at, data, author_id, version, created_at, updated_at`
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS content_models (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		slug TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL,
		description TEXT,
		fields TEXT NOT NULL DEFAULT '[]',
		settings TEXT NOT NULL DEFAULT '{}',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS content_items (
		id TEXT PRIMARY KEY,
		model_id TEXT NOT NULL REFERENCES content_models(id) ON DELETE CASCADE,
		model_slug TEXT NOT NULL,
		slug TEXT,
		status TEXT NOT NULL DEFAULT 'draft' CHECK (status IN ('draft', 'published', 'archived')),
		published_at TEXT,
		data TEXT NOT NULL DEFAULT '{}',
		author_id TEXT NOT NULL DEFAULT '',
		version INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS content_items_model_slug_key ON content_items(model_id, slug)`,
	`CREATE INDEX IF NOT EXISTS content_items_model_status_idx ON content_items(model_slug, status)`,
}

var sortColumns = map[simplecms.SortField]string{
	simplecms.SortByCreatedAt:   "created_at",
	simplecms.SortByUpdatedAt:   "updated_at",
	simplecms.SortByPublishedAt: "published_at",
	simplecms.SortBySlug:        "slug",
	simplecms.SortByStatus:      "status",
	simplecms.SortByVersion:     "version",
}

// Repository implements simplecms.Repository on SQLite
type Repository struct {
	db *sql.DB
}

var _ simplecms.Repository = (*Repository)(nil)

// Open opens path (":memory:" for a private in-memory database) with foreign
// keys enforced. The pool is limited to one connection, which SQLite needs for
// in-memory databases and which serializes writers for files.
func Open(path string) (*sql.DB, error) {
	dsn := path
	switch {
	case path == "" || path == ":memory:":
		dsn = "file::memory:"
	case !strings.HasPrefix(path, "file:"):
		dsn = "file:" + path
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	dsn += sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// New creates a new SQLite repository
func New(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// EnsureSchema creates the tables if they do not exist yet.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating sqlite schema: %w", err)
		}
	}
	return nil
}

func (r *Repository) handleSQLiteError(operation string, err error) error {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%w: %s: %v", simplecms.ErrConflict, operation, err)
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return fmt.Errorf("%w: %s", simplecms.ErrModelNotFound, operation)
		}
	}
	return fmt.Errorf("database error in %s: %w", operation, err)
}

// Model operations

func (r *Repository) CreateModel(ctx context.Context, model *simplecms.ContentModel) error {
	fields, settings, err := encodeModel(model)
	if err != nil {
		return err
	}

	query := `INSERT INTO content_models (` + modelColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query,
		model.ID.String(), model.Name, model.Slug, model.DisplayName, nullString(model.Description),
		fields, settings, formatTime(model.CreatedAt), formatTime(model.UpdatedAt))
	if err != nil {
		return r.handleSQLiteError("create model", err)
	}
	return nil
}

func (r *Repository) GetModel(ctx context.Context, id uuid.UUID) (*simplecms.ContentModel, error) {
	return r.getModel(ctx, "get model", `SELECT `+modelColumns+` FROM content_models WHERE id = ?`, id.String())
}

func (r *Repository) GetModelBySlug(ctx context.Context, slug string) (*simplecms.ContentModel, error) {
	return r.getModel(ctx, "get model by slug", `SELECT `+modelColumns+` FROM content_models WHERE slug = ?`, slug)
}

func (r *Repository) getModel(ctx context.Context, operation, query string, arg any) (*simplecms.ContentModel, error) {
	model, err := scanModel(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, simplecms.ErrModelNotFound
		}
		if errors.Is(err, simplecms.ErrUnexpected) {
			return nil, err
		}
		return nil, r.handleSQLiteError(operation, err)
	}
	return model, nil
}

func (r *Repository) ListModels(ctx context.Context) ([]*simplecms.ContentModel, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+modelColumns+` FROM content_models ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, r.handleSQLiteError("list models", err)
	}
	defer rows.Close()

	var models []*simplecms.ContentModel
	for rows.Next() {
		model, err := scanModel(rows)
		if err != nil {
			return nil, err
		}
		models = append(models, model)
	}
	return models, rows.Err()
}

func (r *Repository) UpdateModel(ctx context.Context, model *simplecms.ContentModel) error {
	fields, settings, err := encodeModel(model)
	if err != nil {
		return err
	}

	query := `UPDATE content_models SET name = ?, display_name = ?, description = ?, fields = ?, settings = ?, updated_at = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query,
		model.Name, model.DisplayName, nullString(model.Description),
		fields, settings, formatTime(model.UpdatedAt), model.ID.String())
	if err != nil {
		return r.handleSQLiteError("update model", err)
	}
	return requireRow(res, simplecms.ErrModelNotFound)
}

// DeleteModel removes the items explicitly so the cascade holds even on
// connections opened without foreign key enforcement.
func (r *Repository) DeleteModel(ctx context.Context, id uuid.UUID) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return r.handleSQLiteError("delete model", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM content_items WHERE model_id = ?`, id.String()); err != nil {
		return r.handleSQLiteError("delete model items", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM content_models WHERE id = ?`, id.String())
	if err != nil {
		return r.handleSQLiteError("delete model", err)
	}
	if err := requireRow(res, simplecms.ErrModelNotFound); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *Repository) ModelSlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM content_models WHERE slug = ?)`, slug).Scan(&exists)
	if err != nil {
		return false, r.handleSQLiteError("probe model slug", err)
	}
	return exists, nil
}

// Item operations

func (r *Repository) CreateItem(ctx context.Context, item *simplecms.ContentItem) error {
	data, err := encodeData(item.Data)
	if err != nil {
		return fmt.Errorf("%w: encoding item data: %v", simplecms.ErrUnexpected, err)
	}

	var publishedAt any
	if item.PublishedAt != nil {
		publishedAt = formatTime(*item.PublishedAt)
	}

	query := `INSERT INTO content_items (` + itemColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query,
		item.ID.String(), item.ModelID.String(), item.ModelSlug, nullString(item.Slug), string(item.Status),
		publishedAt, data, item.AuthorID, item.Version,
		formatTime(item.CreatedAt), formatTime(item.UpdatedAt))
	if err != nil {
		return r.handleSQLiteError("create item", err)
	}
	return nil
}

func (r *Repository) GetItem(ctx context.Context, id uuid.UUID) (*simplecms.ContentItem, error) {
	return r.getItem(ctx, "get item", `SELECT `+itemColumns+` FROM content_items WHERE id = ?`, id.String())
}

func (r *Repository) FindItem(ctx context.Context, modelSlug, slugOrID string) (*simplecms.ContentItem, error) {
	query := `SELECT ` + itemColumns + ` FROM content_items
		WHERE model_slug = ? AND (slug = ? OR id = ?)
		ORDER BY (slug = ?) DESC LIMIT 1`
	return r.getItem(ctx, "find item", query, modelSlug, slugOrID, slugOrID, slugOrID)
}

func (r *Repository) getItem(ctx context.Context, operation, query string, args ...any) (*simplecms.ContentItem, error) {
	item, err := scanItem(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, simplecms.ErrItemNotFound
		}
		if errors.Is(err, simplecms.ErrUnexpected) {
			return nil, err
		}
		return nil, r.handleSQLiteError(operation, err)
	}
	return item, nil
}

func (r *Repository) ListItems(ctx context.Context, modelSlug string, q simplecms.ItemQuery) (*simplecms.ItemPage, error) {
	conditions := []string{"model_slug = ?"}
	args := []any{modelSlug}
	if q.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(q.Status))
	}
	if q.Search != "" {
		pattern := "%" + escapeLike(q.Search) + "%"
		conditions = append(conditions, `(data LIKE ? ESCAPE '\' OR slug LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}
	whereClause := strings.Join(conditions, " AND ")

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM content_items WHERE `+whereClause, args...).Scan(&total); err != nil {
		return nil, r.handleSQLiteError("count items", err)
	}

	column, ok := sortColumns[q.SortBy]
	if !ok {
		column = "created_at"
	}
	direction := "DESC"
	if q.SortOrder == simplecms.SortAsc {
		direction = "ASC"
	}

	query := fmt.Sprintf(`SELECT %s FROM content_items WHERE %s ORDER BY %s %s, id %s`,
		itemColumns, whereClause, column, direction, direction)
	limit := -1
	if q.Limit > 0 {
		limit = q.Limit
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, max(q.Offset, 0))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, r.handleSQLiteError("list items", err)
	}
	defer rows.Close()

	items := []*simplecms.ContentItem{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handleSQLiteError("list items", err)
	}
	return &simplecms.ItemPage{Items: items, Total: total}, nil
}

func (r *Repository) UpdateItem(ctx context.Context, id uuid.UUID, upd simplecms.ItemUpdate) error {
	var status, data, publishedAt any
	if upd.Status != nil {
		status = string(*upd.Status)
	}
	if upd.Data != nil {
		encoded, err := encodeData(upd.Data)
		if err != nil {
			return fmt.Errorf("%w: encoding item data: %v", simplecms.ErrUnexpected, err)
		}
		data = encoded
	}
	if upd.PublishedAt != nil {
		publishedAt = formatTime(*upd.PublishedAt)
	}

	query := `UPDATE content_items SET
		status = COALESCE(?, status),
		data = COALESCE(?, data),
		published_at = COALESCE(published_at, ?),
		version = version + 1,
		updated_at = ?
		WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query, status, data, publishedAt, formatTime(upd.UpdatedAt), id.String())
	if err != nil {
		return r.handleSQLiteError("update item", err)
	}
	return requireRow(res, simplecms.ErrItemNotFound)
}

func (r *Repository) DeleteItem(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM content_items WHERE id = ?`, id.String())
	if err != nil {
		return r.handleSQLiteError("delete item", err)
	}
	return requireRow(res, simplecms.ErrItemNotFound)
}

func (r *Repository) ItemSlugExists(ctx context.Context, modelSlug, slug string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM content_items WHERE model_slug = ? AND slug = ?)`
	if err := r.db.QueryRowContext(ctx, query, modelSlug, slug).Scan(&exists); err != nil {
		return false, r.handleSQLiteError("probe item slug", err)
	}
	return exists, nil
}

// Helpers

type scanner interface {
	Scan(dest ...any) error
}

func scanModel(row scanner) (*simplecms.ContentModel, error) {
	var model simplecms.ContentModel
	var id, fields, settings, createdAt, updatedAt string
	var description sql.NullString

	err := row.Scan(&id, &model.Name, &model.Slug, &model.DisplayName, &description,
		&fields, &settings, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if model.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: model id %q: %v", simplecms.ErrUnexpected, id, err)
	}
	model.Description = description.String
	if err := json.Unmarshal([]byte(fields), &model.Fields); err != nil {
		return nil, fmt.Errorf("%w: decoding fields of model %s: %v", simplecms.ErrUnexpected, model.Slug, err)
	}
	if err := json.Unmarshal([]byte(settings), &model.Settings); err != nil {
		return nil, fmt.Errorf("%w: decoding settings of model %s: %v", simplecms.ErrUnexpected, model.Slug, err)
	}
	if model.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if model.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &model, nil
}

func scanItem(row scanner) (*simplecms.ContentItem, error) {
	var item simplecms.ContentItem
	var id, modelID, status, data, createdAt, updatedAt string
	var slug, publishedAt sql.NullString

	err := row.Scan(&id, &modelID, &item.ModelSlug, &slug, &status, &publishedAt,
		&data, &item.AuthorID, &item.Version, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if item.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: item id %q: %v", simplecms.ErrUnexpected, id, err)
	}
	if item.ModelID, err = uuid.Parse(modelID); err != nil {
		return nil, fmt.Errorf("%w: model id %q: %v", simplecms.ErrUnexpected, modelID, err)
	}
	item.Slug = slug.String
	item.Status = simplecms.ItemStatus(status)
	if err := json.Unmarshal([]byte(data), &item.Data); err != nil {
		return nil, fmt.Errorf("%w: decoding data of item %s: %v", simplecms.ErrUnexpected, id, err)
	}
	if publishedAt.Valid {
		t, err := parseTime(publishedAt.String)
		if err != nil {
			return nil, err
		}
		item.PublishedAt = &t
	}
	if item.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if item.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &item, nil
}

// encodeData keeps &, < and > literal so LIKE search sees the text as written.
func encodeData(data map[string]any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(data); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func encodeModel(model *simplecms.ContentModel) (string, string, error) {
	fields, err := json.Marshal(model.Fields)
	if err != nil {
		return "", "", fmt.Errorf("%w: encoding fields: %v", simplecms.ErrUnexpected, err)
	}
	settings, err := json.Marshal(model.Settings)
	if err != nil {
		return "", "", fmt.Errorf("%w: encoding settings: %v", simplecms.ErrUnexpected, err)
	}
	return string(fields), string(settings), nil
}

func requireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: stored time %q: %v", simplecms.ErrUnexpected, s, err)
	}
	return t, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
