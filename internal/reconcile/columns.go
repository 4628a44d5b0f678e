package reconcile

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/JGooseK41/NFTServiceApp-sub013/internal/audit"
	"github.com/JGooseK41/NFTServiceApp-sub013/internal/obs"
)

// idColumns lists every column that historical schema versions created as
// INTEGER. Token and notice ids are opaque identifiers and occasionally
// non-numeric, so they live as text going forward.
var idColumns = []struct {
	table  string
	column string
}{
	{"case_service_records", "alert_token_id"},
	{"case_service_records", "document_token_id"},
	{"notice_components", "token_id"},
	{"document_access_tokens", "alert_token_id"},
	{"document_access_tokens", "document_token_id"},
	{"access_attempts", "alert_token_id"},
	{"access_attempts", "document_token_id"},
	{"notice_audit_trail", "notice_id"},
	{"notice_audit_trail", "document_id"},
}

// ColumnRepair converts legacy integer id columns to text. Each column is
// one unit of work in its own transaction; a failure rolls back that column
// only and the run continues.
type ColumnRepair struct {
	db *sql.DB
}

func NewColumnRepair(db *sql.DB) *ColumnRepair {
	return &ColumnRepair{db: db}
}

// Repair inspects information_schema and casts every integer-typed id
// column to text. Returns the repaired columns and per-column failures.
func (r *ColumnRepair) Repair(ctx context.Context) (applied []string, failures []string) {
	for _, col := range idColumns {
		name := col.table + "." + col.column
		dataType, err := r.columnType(ctx, col.table, col.column)
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: inspect: %v", name, err))
			obs.ObserveRepair("column_type", "error")
			continue
		}
		if dataType == "" || dataType == "text" || dataType == "character varying" {
			continue
		}
		if dataType != "integer" && dataType != "bigint" && dataType != "numeric" {
			failures = append(failures, fmt.Sprintf("%s: unexpected type %q", name, dataType))
			obs.ObserveRepair("column_type", "skipped")
			continue
		}
		if err := r.castToText(ctx, col.table, col.column); err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", name, err))
			obs.ObserveRepair("column_type", "error")
			continue
		}
		applied = append(applied, name)
		obs.ObserveRepair("column_type", "applied")
		_ = audit.LogEvent(ctx, "reconcile.column_type.repaired", map[string]any{
			"table":  col.table,
			"column": col.column,
			"before": dataType,
			"after":  "text",
		})
	}
	return applied, failures
}

func (r *ColumnRepair) columnType(ctx context.Context, table, column string) (string, error) {
	var dataType string
	err := r.db.QueryRowContext(ctx, `
		select data_type from information_schema.columns
		where table_name=$1 and column_name=$2
	`, table, column).Scan(&dataType)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return dataType, nil
}

func (r *ColumnRepair) castToText(ctx context.Context, table, column string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	// Table and column names come from the static list above, never input.
	stmt := fmt.Sprintf(`alter table %s alter column %s type text using %s::text`,
		table, column, column)
	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		return err
	}
	return tx.Commit()
}
