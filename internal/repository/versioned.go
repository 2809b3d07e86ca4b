package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"procurement/internal/models"
)

// Fields is a set of column values written by a versioned store. On edit a nil
// value keeps the current column value.
type Fields interface {
	Columns() []string
	Values() []any
}

// Schema describes the table of one versioned entity kind. Columns lists every
// stored column except original_id and seq, starting with id.
type Schema[T any, F Fields] struct {
	Table    string
	Columns  []string
	NotFound error
	// Changes extracts the editable fields of a row, used to restore a version.
	Changes func(T) F
}

// Condition is a WHERE clause fragment with a single $$ placeholder.
type Condition struct {
	Expr string
	Arg  any
}

// Eq matches rows whose column equals arg.
func Eq(column string, arg any) Condition {
	return Condition{Expr: column + " = $$", Arg: arg}
}

// VersionedStore keeps one current row per entity, addressed by the entity id,
// plus history rows that point back to it through original_id and carry the
// version they superseded.
type VersionedStore[T any, F Fields] struct {
	db     *sqlx.DB
	q      sqlx.ExtContext
	tx     *sqlx.Tx
	schema Schema[T, F]
}

func NewVersionedStore[T any, F Fields](db *sqlx.DB, schema Schema[T, F]) *VersionedStore[T, F] {
	return &VersionedStore[T, F]{db: db, q: db, schema: schema}
}

// WithTx returns a store running every operation inside tx.
func (s *VersionedStore[T, F]) WithTx(tx *sqlx.Tx) *VersionedStore[T, F] {
	return &VersionedStore[T, F]{db: s.db, q: tx, tx: tx, schema: s.schema}
}

func (s *VersionedStore[T, F]) columns() string {
	return strings.Join(s.schema.Columns, ", ")
}

// Create inserts a current row at version 1 with a fresh id.
func (s *VersionedStore[T, F]) Create(ctx context.Context, fields Fields) (T, error) {
	var row T

	cols := fields.Columns()
	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = "$" + strconv.Itoa(i+2)
	}
	query := fmt.Sprintf(`
	INSERT INTO %s
		(id, version, %s)
	VALUES
		($1, 1, %s)
	RETURNING %s
	`, s.schema.Table, strings.Join(cols, ", "), strings.Join(placeholders, ", "), s.columns())

	args := append([]any{uuid.NewString()}, fields.Values()...)
	if err := sqlx.GetContext(ctx, s.q, &row, query, args...); err != nil {
		return row, fmt.Errorf("repository.VersionedStore.Create: %s: %w", s.schema.Table, translateErr(err))
	}
	return row, nil
}

func (s *VersionedStore[T, F]) GetByID(ctx context.Context, id string) (T, error) {
	return s.getByID(ctx, s.q, id, false)
}

func (s *VersionedStore[T, F]) getByID(ctx context.Context, q sqlx.QueryerContext, id string, forUpdate bool) (T, error) {
	var row T
	query := fmt.Sprintf(`
	SELECT %s
	FROM %s
	WHERE id = $1 AND original_id IS NULL
	`, s.columns(), s.schema.Table)
	if forUpdate {
		query += "FOR UPDATE\n"
	}

	err := sqlx.GetContext(ctx, q, &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return row, fmt.Errorf("repository.VersionedStore.GetByID: %w", s.schema.NotFound)
	} else if err != nil {
		return row, fmt.Errorf("repository.VersionedStore.GetByID: %s: %w", s.schema.Table, translateErr(err))
	}
	return row, nil
}

func (s *VersionedStore[T, F]) GetByCreator(ctx context.Context, creatorId string, page models.Page) ([]T, error) {
	return s.List(ctx, []Condition{Eq("creator_id", creatorId)}, page)
}

func (s *VersionedStore[T, F]) prepListQuery(conds []Condition, page models.Page) (string, []any) {
	query := fmt.Sprintf(`
	SELECT %s
	FROM %s
	WHERE original_id IS NULL$conditions$
	ORDER BY seq
	LIMIT $1
	OFFSET $2
	`, s.columns(), s.schema.Table)

	args := make([]any, 0, len(conds)+2)
	args = append(args, page.Limit, page.Offset)

	var b strings.Builder
	for i, c := range conds {
		b.WriteString(" AND ")
		b.WriteString(strings.ReplaceAll(c.Expr, "$$", "$"+strconv.Itoa(i+3)))
		args = append(args, c.Arg)
	}

	return strings.Replace(query, "$conditions$", b.String(), 1), args
}

// List returns current rows matching every condition, in creation order.
func (s *VersionedStore[T, F]) List(ctx context.Context, conds []Condition, page models.Page) ([]T, error) {
	result := []T{}
	if page.Limit <= 0 {
		return result, nil
	}

	query, args := s.prepListQuery(conds, page)
	if err := sqlx.SelectContext(ctx, s.q, &result, query, args...); err != nil {
		return nil, fmt.Errorf("repository.VersionedStore.List: %s: %w", s.schema.Table, translateErr(err))
	}
	return result, nil
}

// UpdateStatus changes the status of the current row in place. Status is not versioned.
func (s *VersionedStore[T, F]) UpdateStatus(ctx context.Context, id string, status string) (T, error) {
	var row T
	query := fmt.Sprintf(`
	UPDATE %s
	SET status = $2, updated_at = CURRENT_TIMESTAMP
	WHERE id = $1 AND original_id IS NULL
	RETURNING %s
	`, s.schema.Table, s.columns())

	err := sqlx.GetContext(ctx, s.q, &row, query, id, status)
	if errors.Is(err, sql.ErrNoRows) {
		return row, fmt.Errorf("repository.VersionedStore.UpdateStatus: %w", s.schema.NotFound)
	} else if err != nil {
		return row, fmt.Errorf("repository.VersionedStore.UpdateStatus: %s: %w", s.schema.Table, translateErr(err))
	}
	return row, nil
}

// Edit archives the current row as history and applies fields with the next version.
func (s *VersionedStore[T, F]) Edit(ctx context.Context, id string, fields F) (T, error) {
	var row T
	err := s.atomic(ctx, func(tx sqlx.ExtContext) error {
		var err error
		row, err = s.edit(ctx, tx, id, fields)
		return err
	})
	if err != nil {
		return row, fmt.Errorf("repository.VersionedStore.Edit: %w", err)
	}
	return row, nil
}

func (s *VersionedStore[T, F]) edit(ctx context.Context, tx sqlx.ExtContext, id string, fields F) (T, error) {
	var row T

	var version int
	lock := fmt.Sprintf(`
	SELECT version
	FROM %s
	WHERE id = $1 AND original_id IS NULL
	FOR UPDATE
	`, s.schema.Table)
	err := sqlx.GetContext(ctx, tx, &version, lock, id)
	if errors.Is(err, sql.ErrNoRows) {
		return row, s.schema.NotFound
	} else if err != nil {
		return row, translateErr(err)
	}

	copied := strings.Join(s.historyColumns(), ", ")
	archive := fmt.Sprintf(`
	INSERT INTO %s
		(id, original_id, %s)
	SELECT $2, id, %s
	FROM %s
	WHERE id = $1
	`, s.schema.Table, copied, copied, s.schema.Table)
	if _, err = tx.ExecContext(ctx, archive, id, uuid.NewString()); err != nil {
		return row, fmt.Errorf("archive version %d: %w", version, translateErr(err))
	}

	cols := fields.Columns()
	set := make([]string, 0, len(cols)+2)
	for i, col := range cols {
		set = append(set, fmt.Sprintf("%s = COALESCE($%d, %s)", col, i+2, col))
	}
	set = append(set, "version = version + 1", "updated_at = CURRENT_TIMESTAMP")
	update := fmt.Sprintf(`
	UPDATE %s
	SET %s
	WHERE id = $1
	RETURNING %s
	`, s.schema.Table, strings.Join(set, ", "), s.columns())

	args := append([]any{id}, fields.Values()...)
	if err = sqlx.GetContext(ctx, tx, &row, update, args...); err != nil {
		return row, fmt.Errorf("update version %d: %w", version, translateErr(err))
	}
	return row, nil
}

func (s *VersionedStore[T, F]) historyColumns() []string {
	return slices.DeleteFunc(slices.Clone(s.schema.Columns), func(col string) bool {
		return col == "id"
	})
}

// GetVersion returns the history row of id with the given version. The row carries
// the entity id, not its own.
func (s *VersionedStore[T, F]) GetVersion(ctx context.Context, id string, version int) (T, error) {
	row, err := s.getVersion(ctx, s.q, id, version)
	if err != nil {
		return row, fmt.Errorf("repository.VersionedStore.GetVersion: %w", err)
	}
	return row, nil
}

func (s *VersionedStore[T, F]) getVersion(ctx context.Context, q sqlx.QueryerContext, id string, version int) (T, error) {
	var row T
	cols := append([]string{"original_id AS id"}, s.historyColumns()...)
	query := fmt.Sprintf(`
	SELECT %s
	FROM %s
	WHERE original_id = $1 AND version = $2
	`, strings.Join(cols, ", "), s.schema.Table)

	err := sqlx.GetContext(ctx, q, &row, query, id, version)
	if errors.Is(err, sql.ErrNoRows) {
		return row, models.ErrNoVersion
	} else if err != nil {
		return row, translateErr(err)
	}
	return row, nil
}

// Rollback edits id with the fields of an earlier version. Like any edit it
// produces a new version and archives the current one.
func (s *VersionedStore[T, F]) Rollback(ctx context.Context, id string, version int) (T, error) {
	var row T
	err := s.atomic(ctx, func(tx sqlx.ExtContext) error {
		snapshot, err := s.getVersion(ctx, tx, id, version)
		if err != nil {
			return err
		}
		row, err = s.edit(ctx, tx, id, s.schema.Changes(snapshot))
		return err
	})
	if err != nil {
		return row, fmt.Errorf("repository.VersionedStore.Rollback: %w", err)
	}
	return row, nil
}

// atomic runs fn in the outer transaction when there is one, or in a new transaction.
func (s *VersionedStore[T, F]) atomic(ctx context.Context, fn func(tx sqlx.ExtContext) error) error {
	if s.tx != nil {
		return fn(s.tx)
	}
	return inTx(ctx, s.db, func(tx *sqlx.Tx) error {
		return fn(tx)
	})
}
