package pg

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/JGooseK41/NFTServiceApp-sub013/internal/notice"
)

var recordCols = []string{
	"id", "case_number", "alert_token_id", "document_token_id",
	"recipients", "ipfs_hash", "encryption_key",
	"served_at", "accepted", "accepted_at", "last_viewed_at", "chain",
	"explorer_url", "pairing_source", "verified", "created_at", "updated_at",
}

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		_ = db.Close()
	})
	return NewStore(db), mock
}

func recordRow(recipients string) *sqlmock.Rows {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return sqlmock.NewRows(recordCols).AddRow(
		"01ABC", "34-1234", "12", "13",
		recipients, "", "",
		now, false, nil, nil, "TRON",
		"", "chain", true, now, now,
	)
}

func TestFindByCaseParsesRecipients(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`select .+ from case_service_records where case_number=\$1`).
		WithArgs("34-1234").
		WillReturnRows(recordRow(`["TLsV52sRDL79HXGGm9yzwKibb6BeruhUzy"]`))

	rec, err := store.FindByCase(context.Background(), "34-1234")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(rec.Recipients) != 1 || rec.Recipients[0] != "TLsV52sRDL79HXGGm9yzwKibb6BeruhUzy" {
		t.Fatalf("recipients = %v", rec.Recipients)
	}
	if rec.PairingSource != notice.PairingChain || !rec.Verified {
		t.Fatalf("pairing lost: %+v", rec)
	}
}

func TestFindByCaseNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`select .+ from case_service_records where case_number=\$1`).
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)

	_, err := store.FindByCase(context.Background(), "nope")
	if !errors.Is(err, notice.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestFindByTokenEmptyIDSkipsQuery(t *testing.T) {
	store, _ := newMockStore(t)
	_, err := store.FindByToken(context.Background(), "  ")
	if !errors.Is(err, notice.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestBackfillField(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`update case_service_records set document_token_id=\$2`).
		WithArgs("34-1234", "13").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.BackfillField(context.Background(), "34-1234", notice.FieldDocumentTokenID, "13"); err != nil {
		t.Fatalf("backfill: %v", err)
	}
}

func TestBackfillFieldDistinguishesSetFromMissing(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	// zero rows updated but the case exists: the field already has a value
	mock.ExpectExec(`update case_service_records set ipfs_hash=\$2`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`select .+ from case_service_records where case_number=\$1`).
		WillReturnRows(recordRow("[]"))

	err := store.BackfillField(ctx, "34-1234", notice.FieldIPFSHash, "Qm...")
	if !errors.Is(err, notice.ErrFieldSet) {
		t.Fatalf("got %v, want ErrFieldSet", err)
	}

	// zero rows updated and no such case
	mock.ExpectExec(`update case_service_records set ipfs_hash=\$2`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`select .+ from case_service_records where case_number=\$1`).
		WillReturnError(sql.ErrNoRows)

	err = store.BackfillField(ctx, "missing", notice.FieldIPFSHash, "Qm...")
	if !errors.Is(err, notice.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestBackfillFieldRejectsUnknownColumn(t *testing.T) {
	store, _ := newMockStore(t)
	err := store.BackfillField(context.Background(), "34-1234", "recipients", "x")
	if !errors.Is(err, notice.ErrUnknownField) {
		t.Fatalf("got %v, want ErrUnknownField", err)
	}
}

func TestMarkAcceptedKeepsFirstTimestamp(t *testing.T) {
	store, mock := newMockStore(t)
	at := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

	// coalesce(accepted_at,$2) in the statement preserves the original time
	mock.ExpectExec(`set accepted=true, accepted_at=coalesce`).
		WithArgs("34-1234", at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`select .+ from case_service_records where case_number=\$1`).
		WillReturnRows(recordRow("[]"))

	if _, err := store.MarkAccepted(context.Background(), "34-1234", at); err != nil {
		t.Fatalf("accept: %v", err)
	}
}

func TestMarkAcceptedNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`set accepted=true, accepted_at=coalesce`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := store.MarkAccepted(context.Background(), "missing", time.Now())
	if !errors.Is(err, notice.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestDeleteOrphanRefusesCompleteRecord(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`delete from case_service_records`).
		WithArgs("34-1234").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`select .+ from case_service_records where case_number=\$1`).
		WillReturnRows(recordRow(`["TLsV52sRDL79HXGGm9yzwKibb6BeruhUzy"]`))

	err := store.DeleteOrphan(context.Background(), "34-1234")
	if !errors.Is(err, notice.ErrNotOrphan) {
		t.Fatalf("got %v, want ErrNotOrphan", err)
	}
}

func TestUpsertInsertsWhenMissing(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`select .+ from case_service_records where case_number=\$1 for update`).
		WithArgs("34-1234").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(`insert into case_service_records`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`insert into notice_components`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	stored, err := store.UpsertNotice(context.Background(), notice.Record{
		CaseNumber:   "34-1234",
		AlertTokenID: "12",
		Recipients:   []string{"TLsV52sRDL79HXGGm9yzwKibb6BeruhUzy"},
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if stored.ID == "" {
		t.Fatal("no id assigned")
	}
	if stored.PairingSource != notice.PairingChain || !stored.Verified {
		t.Fatalf("pairing defaults wrong: %+v", stored)
	}
}

func TestUpsertMergesExistingRow(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`select .+ from case_service_records where case_number=\$1 for update`).
		WithArgs("34-1234").
		WillReturnRows(recordRow(`["TLsV52sRDL79HXGGm9yzwKibb6BeruhUzy"]`))
	mock.ExpectExec(`update case_service_records set`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	// one component row per token side
	mock.ExpectExec(`insert into notice_components`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`insert into notice_components`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	merged, err := store.UpsertNotice(context.Background(), notice.Record{
		CaseNumber:   "34-1234",
		AlertTokenID: "12",
		IPFSHash:     "QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG",
		Recipients:   []string{"TLsV52sRDL79HXGGm9yzwKibb6BeruhUzy"},
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if merged.IPFSHash != "QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG" {
		t.Fatalf("ipfs hash not merged: %+v", merged)
	}
	if merged.DocumentTokenID != "13" {
		t.Fatalf("existing document token lost: %+v", merged)
	}
	if len(merged.Recipients) != 1 {
		t.Fatalf("recipients duplicated on merge: %v", merged.Recipients)
	}
}
