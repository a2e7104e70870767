package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-cms/pkg/simplecms"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements simplecms.Repository using PostgreSQL
type Repository struct {
	db DBTX
}

// New creates a new PostgreSQL repository
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

var _ simplecms.Repository = (*Repository)(nil)

const (
	modelColumns = `id, name, slug, display_name, description, fields, settings, created_at, updated_at`
	itemColumns  = `id, model_id, model_slug, slug, status, published_at, data, author_id, version, created_at, updated_at`
)

var sortColumns = map[simplecms.SortField]string{
	simplecms.SortByCreatedAt:   "created_at",
	simplecms.SortByUpdatedAt:   "updated_at",
	simplecms.SortByPublishedAt: "published_at",
	simplecms.SortBySlug:        "slug",
	simplecms.SortByStatus:      "status",
	simplecms.SortByVersion:     "version",
}

// Error handling helper
func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%w: %s violates %s", simplecms.ErrConflict, operation, pgErr.ConstraintName)
		case "23503": // foreign_key_violation
			return fmt.Errorf("%w: %s", simplecms.ErrModelNotFound, pgErr.Detail)
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
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

	query := `
		INSERT INTO content_models (` + modelColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err = r.db.Exec(ctx, query,
		model.ID, model.Name, model.Slug, model.DisplayName, nullable(model.Description),
		fields, settings, model.CreatedAt, model.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("create model", err)
	}
	return nil
}

func (r *Repository) GetModel(ctx context.Context, id uuid.UUID) (*simplecms.ContentModel, error) {
	query := `SELECT ` + modelColumns + ` FROM content_models WHERE id = $1`
	return r.getModel(ctx, "get model", query, id)
}

func (r *Repository) GetModelBySlug(ctx context.Context, slug string) (*simplecms.ContentModel, error) {
	query := `SELECT ` + modelColumns + ` FROM content_models WHERE slug = $1`
	return r.getModel(ctx, "get model by slug", query, slug)
}

func (r *Repository) getModel(ctx context.Context, operation, query string, arg any) (*simplecms.ContentModel, error) {
	model, err := scanModel(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, simplecms.ErrModelNotFound
		}
		if errors.Is(err, simplecms.ErrUnexpected) {
			return nil, err
		}
		return nil, r.handlePostgresError(operation, err)
	}
	return model, nil
}

func (r *Repository) ListModels(ctx context.Context) ([]*simplecms.ContentModel, error) {
	query := `SELECT ` + modelColumns + ` FROM content_models ORDER BY created_at DESC, id`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, r.handlePostgresError("list models", err)
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
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("list models", err)
	}
	return models, nil
}

func (r *Repository) UpdateModel(ctx context.Context, model *simplecms.ContentModel) error {
	fields, settings, err := encodeModel(model)
	if err != nil {
		return err
	}

	query := `
		UPDATE content_models SET
			name = $2, display_name = $3, description = $4,
			fields = $5, settings = $6, updated_at = $7
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		model.ID, model.Name, model.DisplayName, nullable(model.Description),
		fields, settings, model.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("update model", err)
	}
	if tag.RowsAffected() == 0 {
		return simplecms.ErrModelNotFound
	}
	return nil
}

// DeleteModel relies on ON DELETE CASCADE to remove the model's items.
func (r *Repository) DeleteModel(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM content_models WHERE id = $1`, id)
	if err != nil {
		return r.handlePostgresError("delete model", err)
	}
	if tag.RowsAffected() == 0 {
		return simplecms.ErrModelNotFound
	}
	return nil
}

func (r *Repository) ModelSlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM content_models WHERE slug = $1)`, slug).Scan(&exists)
	if err != nil {
		return false, r.handlePostgresError("probe model slug", err)
	}
	return exists, nil
}

// Item operations

func (r *Repository) CreateItem(ctx context.Context, item *simplecms.ContentItem) error {
	data, err := json.Marshal(item.Data)
	if err != nil {
		return fmt.Errorf("%w: encoding item data: %v", simplecms.ErrUnexpected, err)
	}

	query := `
		INSERT INTO content_items (` + itemColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err = r.db.Exec(ctx, query,
		item.ID, item.ModelID, item.ModelSlug, nullable(item.Slug), string(item.Status),
		item.PublishedAt, data, item.AuthorID, item.Version, item.CreatedAt, item.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("create item", err)
	}
	return nil
}

func (r *Repository) GetItem(ctx context.Context, id uuid.UUID) (*simplecms.ContentItem, error) {
	query := `SELECT ` + itemColumns + ` FROM content_items WHERE id = $1`
	return r.getItem(ctx, "get item", query, id)
}

func (r *Repository) FindItem(ctx context.Context, modelSlug, slugOrID string) (*simplecms.ContentItem, error) {
	query := `
		SELECT ` + itemColumns + ` FROM content_items
		WHERE model_slug = $1 AND (slug = $2 OR id::text = $2)
		ORDER BY (slug = $2) DESC NULLS LAST
		LIMIT 1`
	return r.getItem(ctx, "find item", query, modelSlug, slugOrID)
}

func (r *Repository) getItem(ctx context.Context, operation, query string, args ...any) (*simplecms.ContentItem, error) {
	item, err := scanItem(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, simplecms.ErrItemNotFound
		}
		if errors.Is(err, simplecms.ErrUnexpected) {
			return nil, err
		}
		return nil, r.handlePostgresError(operation, err)
	}
	return item, nil
}

func (r *Repository) ListItems(ctx context.Context, modelSlug string, q simplecms.ItemQuery) (*simplecms.ItemPage, error) {
	whereClause, args := buildItemFilter(modelSlug, q)

	var total int
	countQuery := `SELECT COUNT(*) FROM content_items WHERE ` + whereClause
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, r.handlePostgresError("count items", err)
	}

	column, ok := sortColumns[q.SortBy]
	if !ok {
		column = "created_at"
	}
	// unset values sort lowest in both directions, matching the other backends
	direction := "DESC NULLS LAST"
	idDirection := "DESC"
	if q.SortOrder == simplecms.SortAsc {
		direction = "ASC NULLS FIRST"
		idDirection = "ASC"
	}

	query := fmt.Sprintf(`SELECT %s FROM content_items WHERE %s ORDER BY %s %s, id %s`,
		itemColumns, whereClause, column, direction, idDirection)

	argIndex := len(args) + 1
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, q.Limit)
		argIndex++
	}
	if q.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIndex)
		args = append(args, q.Offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, r.handlePostgresError("list items", err)
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
		return nil, r.handlePostgresError("list items", err)
	}

	return &simplecms.ItemPage{Items: items, Total: total}, nil
}

// buildItemFilter returns the WHERE clause shared by the count and page queries.
func buildItemFilter(modelSlug string, q simplecms.ItemQuery) (string, []any) {
	conditions := []string{"model_slug = $1"}
	args := []any{modelSlug}
	argIndex := 2

	if q.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, string(q.Status))
		argIndex++
	}
	if q.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(data::text ILIKE $%d OR slug ILIKE $%d)", argIndex, argIndex))
		args = append(args, "%"+escapeLike(q.Search)+"%")
	}
	return strings.Join(conditions, " AND "), args
}

func (r *Repository) UpdateItem(ctx context.Context, id uuid.UUID, upd simplecms.ItemUpdate) error {
	var status *string
	if upd.Status != nil {
		s := string(*upd.Status)
		status = &s
	}
	var data any
	if upd.Data != nil {
		encoded, err := json.Marshal(upd.Data)
		if err != nil {
			return fmt.Errorf("%w: encoding item data: %v", simplecms.ErrUnexpected, err)
		}
		data = encoded
	}

	query := `
		UPDATE content_items SET
			status = COALESCE($2, status),
			data = COALESCE($3, data),
			published_at = COALESCE(published_at, $4),
			version = version + 1,
			updated_at = $5
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id, status, data, upd.PublishedAt, upd.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("update item", err)
	}
	if tag.RowsAffected() == 0 {
		return simplecms.ErrItemNotFound
	}
	return nil
}

func (r *Repository) DeleteItem(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM content_items WHERE id = $1`, id)
	if err != nil {
		return r.handlePostgresError("delete item", err)
	}
	if tag.RowsAffected() == 0 {
		return simplecms.ErrItemNotFound
	}
	return nil
}

func (r *Repository) ItemSlugExists(ctx context.Context, modelSlug, slug string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM content_items WHERE model_slug = $1 AND slug = $2)`
	if err := r.db.QueryRow(ctx, query, modelSlug, slug).Scan(&exists); err != nil {
		return false, r.handlePostgresError("probe item slug", err)
	}
	return exists, nil
}

// Helpers

func encodeModel(model *simplecms.ContentModel) ([]byte, []byte, error) {
	fields, err := json.Marshal(model.Fields)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: encoding fields: %v", simplecms.ErrUnexpected, err)
	}
	settings, err := json.Marshal(model.Settings)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: encoding settings: %v", simplecms.ErrUnexpected, err)
	}
	return fields, settings, nil
}

func scanModel(row pgx.Row) (*simplecms.ContentModel, error) {
	var model simplecms.ContentModel
	var description *string
	var fields, settings []byte

	err := row.Scan(&model.ID, &model.Name, &model.Slug, &model.DisplayName, &description,
		&fields, &settings, &model.CreatedAt, &model.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if description != nil {
		model.Description = *description
	}
	if err := json.Unmarshal(fields, &model.Fields); err != nil {
		return nil, fmt.Errorf("%w: decoding fields of model %s: %v", simplecms.ErrUnexpected, model.Slug, err)
	}
	if err := json.Unmarshal(settings, &model.Settings); err != nil {
		return nil, fmt.Errorf("%w: decoding settings of model %s: %v", simplecms.ErrUnexpected, model.Slug, err)
	}
	model.CreatedAt = model.CreatedAt.UTC()
	model.UpdatedAt = model.UpdatedAt.UTC()
	return &model, nil
}

func scanItem(row pgx.Row) (*simplecms.ContentItem, error) {
	var item simplecms.ContentItem
	var slug *string
	var status string
	var data []byte

	err := row.Scan(&item.ID, &item.ModelID, &item.ModelSlug, &slug, &status, &item.PublishedAt,
		&data, &item.AuthorID, &item.Version, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if slug != nil {
		item.Slug = *slug
	}
	item.Status = simplecms.ItemStatus(status)
	if err := json.Unmarshal(data, &item.Data); err != nil {
		return nil, fmt.Errorf("%w: decoding data of item %s: %v", simplecms.ErrUnexpected, item.ID, err)
	}
	if item.PublishedAt != nil {
		t := item.PublishedAt.UTC()
		item.PublishedAt = &t
	}
	item.CreatedAt = item.CreatedAt.UTC()
	item.UpdatedAt = item.UpdatedAt.UTC()
	return &item, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
