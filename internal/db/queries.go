package db

import (
	"context"
	"database/sql"
	"strings"

	"github.com/hpungsan/proofd/internal/errors"
	"github.com/hpungsan/proofd/internal/workspace"
)

// ErrUniqueConstraint is returned when an insert violates a UNIQUE constraint.
var ErrUniqueConstraint = &errors.ProofError{
	Code:    "UNIQUE_CONSTRAINT",
	Status:  409,
	Message: "unique constraint violation",
}

// EntryFilter narrows ListEntries. Empty fields match everything.
type EntryFilter struct {
	WorkspaceNorm string
	Kind          workspace.Kind
	Language      string
}

// InsertEntry stores a new workspace entry.
func InsertEntry(ctx context.Context, db *sql.DB, e *workspace.Entry) error {
	query := `
		INSERT INTO workspace_entries (
			id, workspace_raw, workspace_norm, kind, language, value, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.ExecContext(ctx, query,
		e.ID, e.WorkspaceRaw, e.WorkspaceNorm, string(e.Kind), e.Language, e.Value, e.CreatedAt,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUniqueConstraint
		}
		return errors.NewInternal(err)
	}
	return nil
}

// isUniqueConstraintError checks if the error is a SQLite UNIQUE constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	// SQLite returns "UNIQUE constraint failed: ..." for unique violations
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// DeleteEntry removes the entry identified by its natural key.
func DeleteEntry(ctx context.Context, db *sql.DB, workspaceNorm string, kind workspace.Kind, language, value string) error {
	query := `
		DELETE FROM workspace_entries
		WHERE workspace_norm = ? AND kind = ? AND language = ? AND value = ?
	`

	result, err := db.ExecContext(ctx, query, workspaceNorm, string(kind), language, value)
	if err != nil {
		return errors.NewInternal(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFound(value)
	}
	return nil
}

// ListEntries returns matching entries oldest first, and the total number
// of matches ignoring limit and offset. A limit <= 0 means no limit.
func ListEntries(ctx context.Context, db *sql.DB, filter EntryFilter, limit, offset int) ([]workspace.Entry, int, error) {
	where, args := filter.clause()

	var total int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM workspace_entries"+where, args...).Scan(&total); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	query := `
		SELECT id, workspace_raw, workspace_norm, kind, language, value, created_at
		FROM workspace_entries` + where + `
		ORDER BY created_at ASC, id ASC
	`
	if limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, offset)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	defer rows.Close()

	var entries []workspace.Entry
	for rows.Next() {
		var (
			e    workspace.Entry
			kind string
		)
		if err := rows.Scan(&e.ID, &e.WorkspaceRaw, &e.WorkspaceNorm, &kind, &e.Language, &e.Value, &e.CreatedAt); err != nil {
			return nil, 0, errors.NewInternal(err)
		}
		e.Kind = workspace.Kind(kind)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	return entries, total, nil
}

func (f EntryFilter) clause() (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.WorkspaceNorm != "" {
		conds = append(conds, "workspace_norm = ?")
		args = append(args, f.WorkspaceNorm)
	}
	if f.Kind != "" {
		conds = append(conds, "kind = ?")
		args = append(args, string(f.Kind))
	}
	if f.Language != "" {
		conds = append(conds, "language = ?")
		args = append(args, f.Language)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
