package migrate

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func TestSplitStatements(t *testing.T) {
	stmts := splitStatements(`create table a (id text);
insert into a values ('x;y');
create index idx on a(id);`)
	if len(stmts) != 3 {
		t.Fatalf("statements = %d, want 3: %q", len(stmts), stmts)
	}
	if !strings.Contains(stmts[1], "'x;y'") {
		t.Fatalf("semicolon inside string literal split: %q", stmts[1])
	}
}

func TestSplitStatementsKeepsTrailingFragment(t *testing.T) {
	stmts := splitStatements(`select 1`)
	if len(stmts) != 1 {
		t.Fatalf("statements = %d, want 1", len(stmts))
	}
}

func TestCollectSQLOrdersLexically(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"002_b.up.sql", "001_a.up.sql", "001_a.down.sql", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("select 1;"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	files, err := collectSQL(dir, ".up.sql")
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(files) != 2 || files[0].Base != "001_a.up.sql" || files[1].Base != "002_b.up.sql" {
		t.Fatalf("files = %+v", files)
	}
}

func TestCollectSQLMissingDir(t *testing.T) {
	files, err := collectSQL(filepath.Join(t.TempDir(), "nope"), ".sql")
	if err != nil || files != nil {
		t.Fatalf("got %v, %v; want nil, nil", files, err)
	}
}

func TestUpSkipsExecutedMigrations(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"001_first.up.sql", "002_second.up.sql"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("create table t (id text);"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`create table if not exists schema_migrations`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`create table if not exists schema_seeds`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`select name from schema_migrations`).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("001_first.up.sql"))
	// only the second migration runs
	mock.ExpectBegin()
	mock.ExpectExec(`create table t`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectExec(`insert into schema_migrations`).
		WithArgs("002_second.up.sql", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	m := NewManager(db, dir, "")
	if err := m.Up(context.Background()); err != nil {
		t.Fatalf("up: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestVerifyReportsMissingTables(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	for _, table := range requiredTables {
		exists := table != "notice_audit_trail"
		mock.ExpectQuery(`select exists`).
			WithArgs(table).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(exists))
	}

	m := NewManager(db, "", "")
	err = m.Verify(context.Background())
	if err == nil || !strings.Contains(err.Error(), "notice_audit_trail") {
		t.Fatalf("got %v, want missing notice_audit_trail", err)
	}
}
