package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-drive/pkg/simpledrive"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements simpledrive.Repository using PostgreSQL
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

const itemColumns = `
	id, name, original_name, type, description,
	content_ref, thumbnail_ref, extension, mime_type, size, metadata, checksum_hash,
	compression_type, is_encrypted, parent_folder_id, original_location, originating_device_id,
	internal_tags, user_tags, created_on, last_modified_on, file_created_on, file_modified_on,
	last_accessed_on, last_modified_by, owner_id, version, is_archived, is_hidden,
	custom_properties, access, shared_link, expiration_date`

// sortColumns maps sortable fields to ORDER BY expressions
var sortColumns = map[string]string{
	simpledrive.SortByName:           `lower(name) COLLATE "C"`,
	simpledrive.SortByCreatedOn:      "created_on",
	simpledrive.SortByLastModifiedOn: "last_modified_on",
	simpledrive.SortByLastAccessedOn: "last_accessed_on",
	simpledrive.SortBySize:           "size",
	simpledrive.SortByType:           "type",
	simpledrive.SortByVersion:        "version",
}

// Error handling helper
func (r *Repository) handlePostgresError(operation string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", operation, simpledrive.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			if strings.Contains(pgErr.ConstraintName, "shared_link") {
				return fmt.Errorf("%s: %w", operation, simpledrive.ErrSharedLinkInUse)
			}
			return fmt.Errorf("item already exists")
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "23514": // check_violation
			return fmt.Errorf("%w: %s", simpledrive.ErrValidation, pgErr.Message)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}
	return fmt.Errorf("database error in %s: %w", operation, err)
}

func (r *Repository) CreateItem(ctx context.Context, item *simpledrive.Item) error {
	query := `INSERT INTO items (` + itemColumns + `) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17,
		$18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31, $32, $33)`

	if _, err := r.db.Exec(ctx, query, itemArgs(item)...); err != nil {
		return r.handlePostgresError("create item", err)
	}
	return nil
}

func (r *Repository) GetItem(ctx context.Context, id uuid.UUID) (*simpledrive.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE id = $1`

	item, err := scanItem(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, r.handlePostgresError("get item", err)
	}
	return item, nil
}

func (r *Repository) UpdateItem(ctx context.Context, item *simpledrive.Item) error {
	query := `
		UPDATE items SET
			name = $2, original_name = $3, type = $4, description = $5,
			content_ref = $6, thumbnail_ref = $7, extension = $8, mime_type = $9, size = $10,
			metadata = $11, checksum_hash = $12, compression_type = $13, is_encrypted = $14,
			parent_folder_id = $15, original_location = $16, originating_device_id = $17,
			internal_tags = $18, user_tags = $19, created_on = $20, last_modified_on = $21,
			file_created_on = $22, file_modified_on = $23, last_accessed_on = $24,
			last_modified_by = $25, owner_id = $26, version = $27, is_archived = $28,
			is_hidden = $29, custom_properties = $30, access = $31, shared_link = $32,
			expiration_date = $33
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, itemArgs(item)...)
	if err != nil {
		return r.handlePostgresError("update item", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("item %s: %w", item.ID, simpledrive.ErrNotFound)
	}
	return nil
}

func (r *Repository) DeleteItem(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM items WHERE id = $1`, id)
	if err != nil {
		return r.handlePostgresError("delete item", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("item %s: %w", id, simpledrive.ErrNotFound)
	}
	return nil
}

func (r *Repository) GetItemBySharedLink(ctx context.Context, token string) (*simpledrive.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE shared_link = $1`

	item, err := scanItem(r.db.QueryRow(ctx, query, token))
	if err != nil {
		return nil, r.handlePostgresError("get item by shared link", err)
	}
	return item, nil
}

func (r *Repository) ListItems(ctx context.Context, q simpledrive.ItemQuery) ([]*simpledrive.Item, int, error) {
	where, args := buildWhere(q)

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM items WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, r.handlePostgresError("count items", err)
	}

	query := `SELECT ` + itemColumns + ` FROM items WHERE ` + where + ` ORDER BY ` + orderBy(q)
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if q.Offset > 0 {
		args = append(args, q.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, r.handlePostgresError("list items", err)
	}
	defer rows.Close()

	items := []*simpledrive.Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, 0, r.handlePostgresError("scan item", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, r.handlePostgresError("list items", err)
	}
	return items, total, nil
}

// buildWhere renders the filters of q, visibility first
func buildWhere(q simpledrive.ItemQuery) (string, []any) {
	args := []any{q.VisibleTo, fmt.Sprintf(`[{"user":%q}]`, q.VisibleTo.String())}
	clauses := []string{"(owner_id = $1 OR access @> $2::jsonb)"}

	add := func(format string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(format, len(args)))
	}

	if q.ParentFolderID == nil {
		clauses = append(clauses, "parent_folder_id IS NULL")
	} else {
		add("parent_folder_id = $%d", *q.ParentFolderID)
	}
	if q.Search != "" {
		args = append(args, "%"+escapeLike(q.Search)+"%")
		n := len(args)
		clauses = append(clauses, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d)", n, n))
	}
	if q.CreatedFrom != nil {
		add("created_on >= $%d", *q.CreatedFrom)
	}
	if q.CreatedTo != nil {
		add("created_on <= $%d", *q.CreatedTo)
	}
	if q.Type != "" {
		add("type = $%d", string(q.Type))
	}
	if q.Owner != nil {
		add("owner_id = $%d", *q.Owner)
	}
	return strings.Join(clauses, " AND "), args
}

// orderBy places never-accessed items first in ascending order, as the
// in-memory repositories do
func orderBy(q simpledrive.ItemQuery) string {
	column, ok := sortColumns[q.SortBy]
	if !ok {
		column = sortColumns[simpledrive.SortByName]
	}
	direction := "ASC NULLS FIRST"
	if q.SortOrder == simpledrive.SortDesc {
		direction = "DESC NULLS LAST"
	}
	return column + " " + direction + ", id ASC"
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func itemArgs(item *simpledrive.Item) []any {
	metadata := item.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	custom := item.CustomProperties
	if custom == nil {
		custom = map[string]any{}
	}
	access := item.Access
	if access == nil {
		access = []simpledrive.AccessEntry{}
	}
	return []any{
		item.ID, item.Name, item.OriginalName, string(item.Type), item.Description,
		item.ContentRef, item.ThumbnailRef, item.Extension, item.MimeType, item.Size, metadata, item.ChecksumHash,
		item.CompressionType, item.IsEncrypted, item.ParentFolderID, item.OriginalLocation, item.OriginatingDeviceID,
		nonNil(item.InternalTags), nonNil(item.UserTags), item.CreatedOn, item.LastModifiedOn, item.FileCreatedOn, item.FileModifiedOn,
		item.LastAccessedOn, item.LastModifiedBy, item.Owner, item.Version, item.IsArchived, item.IsHidden,
		custom, access, item.SharedLink, item.ExpirationDate,
	}
}

func scanItem(row pgx.Row) (*simpledrive.Item, error) {
	var item simpledrive.Item
	var itemType string
	var parent pgtype.UUID
	err := row.Scan(
		&item.ID, &item.Name, &item.OriginalName, &itemType, &item.Description,
		&item.ContentRef, &item.ThumbnailRef, &item.Extension, &item.MimeType, &item.Size, &item.Metadata, &item.ChecksumHash,
		&item.CompressionType, &item.IsEncrypted, &parent, &item.OriginalLocation, &item.OriginatingDeviceID,
		&item.InternalTags, &item.UserTags, &item.CreatedOn, &item.LastModifiedOn, &item.FileCreatedOn, &item.FileModifiedOn,
		&item.LastAccessedOn, &item.LastModifiedBy, &item.Owner, &item.Version, &item.IsArchived, &item.IsHidden,
		&item.CustomProperties, &item.Access, &item.SharedLink, &item.ExpirationDate,
	)
	if err != nil {
		return nil, err
	}
	item.Type = simpledrive.ItemType(itemType)
	if parent.Valid {
		id := uuid.UUID(parent.Bytes)
		item.ParentFolderID = &id
	}
	return &item, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

var _ simpledrive.Repository = (*Repository)(nil)
