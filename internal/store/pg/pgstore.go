package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/JGooseK41/NFTServiceApp-sub013/internal/ids"
	"github.com/JGooseK41/NFTServiceApp-sub013/internal/notice"
)

// Store implements notice.Store on PostgreSQL. case_service_records is the
// record of truth; notice_components carries one row per token of the pair
// for token-side lookups by older tooling.
type Store struct {
	db *sql.DB
}

var _ notice.Store = (*Store)(nil)

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewStore wraps an existing connection pool (tests use sqlmock).
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

const recordColumns = `id, case_number, alert_token_id, coalesce(document_token_id,''),
	coalesce(recipients::text,''), coalesce(ipfs_hash,''), coalesce(encryption_key,''),
	served_at, accepted, accepted_at, last_viewed_at, coalesce(chain,''),
	coalesce(explorer_url,''), coalesce(pairing_source,'chain'), verified, created_at, updated_at`

func (s *Store) UpsertNotice(ctx context.Context, rec notice.Record) (notice.Record, error) {
	rec.CaseNumber = strings.TrimSpace(rec.CaseNumber)
	rec.AlertTokenID = strings.TrimSpace(rec.AlertTokenID)
	rec.Recipients = notice.NormalizeRecipients(rec.Recipients)
	if err := rec.Validate(); err != nil {
		return notice.Record{}, err
	}

	// Serialize writers per case number: lock the existing row, merge in
	// Go, write back. Keeps reruns of migrations and backfills idempotent.
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return notice.Record{}, err
	}
	defer func() { _ = tx.Rollback() }()

	existing, err := s.lockExisting(ctx, tx, rec.CaseNumber, rec.AlertTokenID)
	switch {
	case err == nil:
		merged := mergeRecords(existing, rec)
		if err := s.updateRecord(ctx, tx, merged); err != nil {
			return notice.Record{}, err
		}
		if err := s.ensureComponents(ctx, tx, merged); err != nil {
			return notice.Record{}, err
		}
		if err := tx.Commit(); err != nil {
			return notice.Record{}, err
		}
		return merged, nil
	case errors.Is(err, notice.ErrNotFound):
		stored, err := s.insertRecord(ctx, tx, rec)
		if err != nil {
			if isUniqueViolation(err) {
				// Raced with another writer: the record exists now,
				// which is exactly the upsert contract. Skip.
				_ = tx.Rollback()
				if rec.CaseNumber != "" {
					return s.FindByCase(ctx, rec.CaseNumber)
				}
				return s.FindByToken(ctx, rec.AlertTokenID)
			}
			return notice.Record{}, err
		}
		if err := s.ensureComponents(ctx, tx, stored); err != nil {
			return notice.Record{}, err
		}
		if err := tx.Commit(); err != nil {
			return notice.Record{}, err
		}
		return stored, nil
	default:
		return notice.Record{}, err
	}
}

func (s *Store) lockExisting(ctx context.Context, tx *sql.Tx, caseNumber, alertTokenID string) (notice.Record, error) {
	var row *sql.Row
	if caseNumber != "" {
		row = tx.QueryRowContext(ctx,
			`select `+recordColumns+` from case_service_records where case_number=$1 for update`, caseNumber)
	} else {
		row = tx.QueryRowContext(ctx,
			`select `+recordColumns+` from case_service_records where alert_token_id=$1 for update`, alertTokenID)
	}
	return scanRecord(row)
}

func (s *Store) insertRecord(ctx context.Context, tx *sql.Tx, rec notice.Record) (notice.Record, error) {
	now := time.Now().UTC()
	rec.ID = ids.Tagged(ids.TagRecord)
	if rec.ServedAt.IsZero() {
		rec.ServedAt = now
	}
	if rec.PairingSource == "" {
		rec.PairingSource = notice.PairingChain
		rec.Verified = true
	}
	rec.CreatedAt = now
	rec.UpdatedAt = now
	recipients, _ := json.Marshal(rec.Recipients)
	_, err := tx.ExecContext(ctx, `
		insert into case_service_records
			(id, case_number, alert_token_id, document_token_id, recipients, ipfs_hash,
			 encryption_key, served_at, accepted, accepted_at, chain, explorer_url,
			 pairing_source, verified)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`, rec.ID, rec.CaseNumber, rec.AlertTokenID, nullIfEmpty(rec.DocumentTokenID), recipients,
		nullIfEmpty(rec.IPFSHash), nullIfEmpty(rec.EncryptionKey), rec.ServedAt, rec.Accepted,
		rec.AcceptedAt, nullIfEmpty(rec.Chain), nullIfEmpty(rec.ExplorerURL),
		string(rec.PairingSource), rec.Verified)
	if err != nil {
		return notice.Record{}, err
	}
	return rec, nil
}

func (s *Store) updateRecord(ctx context.Context, tx *sql.Tx, rec notice.Record) error {
	recipients, _ := json.Marshal(rec.Recipients)
	_, err := tx.ExecContext(ctx, `
		update case_service_records set
			case_number=$2, alert_token_id=$3, document_token_id=$4, recipients=$5,
			ipfs_hash=$6, encryption_key=$7, served_at=$8, accepted=$9, accepted_at=$10,
			chain=$11, explorer_url=$12, pairing_source=$13, verified=$14, updated_at=now()
		where id=$1
	`, rec.ID, rec.CaseNumber, rec.AlertTokenID, nullIfEmpty(rec.DocumentTokenID), recipients,
		nullIfEmpty(rec.IPFSHash), nullIfEmpty(rec.EncryptionKey), rec.ServedAt, rec.Accepted,
		rec.AcceptedAt, nullIfEmpty(rec.Chain), nullIfEmpty(rec.ExplorerURL),
		string(rec.PairingSource), rec.Verified)
	return err
}

// ensureComponents inserts one row per token side. Duplicate component rows
// from a rerun are expected and skipped.
func (s *Store) ensureComponents(ctx context.Context, tx *sql.Tx, rec notice.Record) error {
	components := []struct{ tokenID, kind string }{
		{rec.AlertTokenID, "alert"},
		{rec.DocumentTokenID, "document"},
	}
	for _, c := range components {
		if c.tokenID == "" {
			continue
		}
		_, err := tx.ExecContext(ctx, `
			insert into notice_components(id, case_number, token_id, component_type)
			values ($1,$2,$3,$4)
			on conflict (case_number, component_type) do update set token_id = excluded.token_id
		`, ids.Tagged(ids.TagComponent), rec.CaseNumber, c.tokenID, c.kind)
		if err != nil && !isUniqueViolation(err) {
			return err
		}
	}
	return nil
}

func (s *Store) FindByCase(ctx context.Context, caseNumber string) (notice.Record, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+recordColumns+` from case_service_records where case_number=$1`,
		strings.TrimSpace(caseNumber))
	return scanRecord(row)
}

func (s *Store) FindByToken(ctx context.Context, tokenID string) (notice.Record, error) {
	tokenID = strings.TrimSpace(tokenID)
	if tokenID == "" {
		return notice.Record{}, notice.ErrNotFound
	}
	row := s.db.QueryRowContext(ctx, `
		select `+recordColumns+` from case_service_records
		where alert_token_id=$1 or document_token_id=$1
	`, tokenID)
	return scanRecord(row)
}

// FindByRecipient matches with a substring scan over the stored list and a
// case-folded comparison in Go: recipient lists have historically been
// persisted as JSON arrays, bare strings and mixed casing.
func (s *Store) FindByRecipient(ctx context.Context, wallet string) ([]notice.Record, error) {
	wallet = strings.TrimSpace(wallet)
	if wallet == "" {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		select `+recordColumns+` from case_service_records
		where recipients::text ilike '%' || $1 || '%'
		order by served_at asc
	`, wallet)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []notice.Record
	for rows.Next() {
		rec, err := scanRecordRows(rows)
		if err != nil {
			return nil, err
		}
		if rec.HasRecipient(wallet) {
			res = append(res, rec)
		}
	}
	return res, rows.Err()
}

var backfillColumns = map[string]string{
	notice.FieldDocumentTokenID: "document_token_id",
	notice.FieldIPFSHash:        "ipfs_hash",
	notice.FieldEncryptionKey:   "encryption_key",
	notice.FieldExplorerURL:     "explorer_url",
	notice.FieldChain:           "chain",
}

func (s *Store) BackfillField(ctx context.Context, caseNumber, field, value string) error {
	column, ok := backfillColumns[field]
	if !ok {
		return notice.ErrUnknownField
	}
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		update case_service_records set %s=$2, updated_at=now()
		where case_number=$1 and (%s is null or %s='')
	`, column, column, column), strings.TrimSpace(caseNumber), strings.TrimSpace(value))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := s.FindByCase(ctx, caseNumber); err != nil {
			return err
		}
		return notice.ErrFieldSet
	}
	return nil
}

func (s *Store) MarkAccepted(ctx context.Context, caseNumber string, at time.Time) (notice.Record, error) {
	if at.IsZero() {
		at = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		update case_service_records
		set accepted=true, accepted_at=coalesce(accepted_at,$2), updated_at=now()
		where case_number=$1
	`, strings.TrimSpace(caseNumber), at)
	if err != nil {
		return notice.Record{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notice.Record{}, notice.ErrNotFound
	}
	return s.FindByCase(ctx, caseNumber)
}

func (s *Store) MarkViewed(ctx context.Context, caseNumber string, at time.Time) error {
	if at.IsZero() {
		at = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		update case_service_records set last_viewed_at=$2, updated_at=now() where case_number=$1
	`, strings.TrimSpace(caseNumber), at)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notice.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteOrphan(ctx context.Context, caseNumber string) error {
	caseNumber = strings.TrimSpace(caseNumber)
	res, err := s.db.ExecContext(ctx, `
		delete from case_service_records
		where case_number=$1
		  and accepted=false
		  and (recipients is null or recipients='[]'::jsonb)
	`, caseNumber)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := s.FindByCase(ctx, caseNumber); err != nil {
			return err
		}
		return notice.ErrNotOrphan
	}
	return nil
}

func (s *Store) ListAll(ctx context.Context) ([]notice.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+recordColumns+` from case_service_records order by served_at asc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []notice.Record
	for rows.Next() {
		rec, err := scanRecordRows(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

// --- helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row *sql.Row) (notice.Record, error) {
	rec, err := scanRecordRows(row)
	if errors.Is(err, sql.ErrNoRows) {
		return notice.Record{}, notice.ErrNotFound
	}
	return rec, err
}

func scanRecordRows(row rowScanner) (notice.Record, error) {
	var (
		rec        notice.Record
		recipients string
		source     string
		acceptedAt sql.NullTime
		viewedAt   sql.NullTime
	)
	if err := row.Scan(&rec.ID, &rec.CaseNumber, &rec.AlertTokenID, &rec.DocumentTokenID,
		&recipients, &rec.IPFSHash, &rec.EncryptionKey, &rec.ServedAt, &rec.Accepted,
		&acceptedAt, &viewedAt, &rec.Chain, &rec.ExplorerURL, &source, &rec.Verified,
		&rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return notice.Record{}, err
	}
	rec.Recipients = notice.ParseRecipients(recipients)
	rec.PairingSource = notice.PairingSource(source)
	if acceptedAt.Valid {
		t := acceptedAt.Time
		rec.AcceptedAt = &t
	}
	if viewedAt.Valid {
		t := viewedAt.Time
		rec.LastViewedAt = &t
	}
	return rec, nil
}

func mergeRecords(existing, incoming notice.Record) notice.Record {
	merged := existing
	set := func(dst *string, v string) {
		if strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	set(&merged.CaseNumber, incoming.CaseNumber)
	set(&merged.AlertTokenID, incoming.AlertTokenID)
	set(&merged.DocumentTokenID, incoming.DocumentTokenID)
	set(&merged.IPFSHash, incoming.IPFSHash)
	set(&merged.EncryptionKey, incoming.EncryptionKey)
	set(&merged.Chain, incoming.Chain)
	set(&merged.ExplorerURL, incoming.ExplorerURL)
	merged.Recipients = notice.NormalizeRecipients(append(merged.Recipients, incoming.Recipients...))
	if merged.ServedAt.IsZero() && !incoming.ServedAt.IsZero() {
		merged.ServedAt = incoming.ServedAt
	}
	if incoming.Accepted && !merged.Accepted {
		merged.Accepted = true
		merged.AcceptedAt = incoming.AcceptedAt
	}
	if incoming.PairingSource == notice.PairingChain {
		merged.PairingSource = notice.PairingChain
		merged.Verified = true
	}
	return merged
}

func nullIfEmpty(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return strings.TrimSpace(v)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if err != nil && errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	// sqlmock and older drivers surface the SQLSTATE in the message only.
	return err != nil && strings.Contains(err.Error(), "23505")
}
