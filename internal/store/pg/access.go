package pg

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/JGooseK41/NFTServiceApp-sub013/internal/access"
	"github.com/JGooseK41/NFTServiceApp-sub013/internal/ids"
)

// AccessStore implements access.Store on PostgreSQL. It writes only its own
// audit tables and never touches recipient lists.
type AccessStore struct {
	db *sql.DB
}

var _ access.Store = (*AccessStore)(nil)

func NewAccessStore(db *sql.DB) *AccessStore { return &AccessStore{db: db} }

func (s *AccessStore) AppendAttempt(ctx context.Context, att access.Attempt) error {
	if att.ID == "" {
		att.ID = ids.Tagged(ids.TagAttempt)
	}
	if att.AttemptedAt.IsZero() {
		att.AttemptedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		insert into access_attempts
			(id, wallet_address, alert_token_id, document_token_id, granted, denial_reason, attempted_at)
		values ($1,$2,$3,$4,$5,nullif($6,''),$7)
	`, att.ID, att.WalletAddress, att.AlertTokenID, att.DocumentTokenID,
		att.Granted, att.DenialReason, att.AttemptedAt)
	return err
}

func (s *AccessStore) AppendView(ctx context.Context, view access.View) error {
	if view.ID == "" {
		view.ID = ids.Tagged(ids.TagView)
	}
	if view.ViewedAt.IsZero() {
		view.ViewedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		insert into notice_audit_trail
			(id, notice_id, document_id, viewer_address, view_type, viewed_at)
		values ($1,$2,$3,$4,$5,$6)
	`, view.ID, view.NoticeID, view.DocumentID, view.ViewerAddress, view.ViewType, view.ViewedAt)
	return err
}

func (s *AccessStore) ListViews(ctx context.Context, noticeID string) ([]access.View, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, notice_id, coalesce(document_id,''), viewer_address, view_type, viewed_at
		from notice_audit_trail where notice_id=$1 order by viewed_at asc
	`, strings.TrimSpace(noticeID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []access.View
	for rows.Next() {
		var v access.View
		if err := rows.Scan(&v.ID, &v.NoticeID, &v.DocumentID, &v.ViewerAddress, &v.ViewType, &v.ViewedAt); err != nil {
			return nil, err
		}
		res = append(res, v)
	}
	return res, rows.Err()
}

// CreateToken revokes any live token for the same (wallet, alert) pair in
// the same transaction before inserting, so the partial unique index on
// active tokens never trips on a legitimate renewal.
func (s *AccessStore) CreateToken(ctx context.Context, tok access.Token) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		update document_access_tokens set revoked=true
		where lower(wallet_address)=lower($1) and alert_token_id=$2 and revoked=false
	`, tok.WalletAddress, tok.AlertTokenID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		insert into document_access_tokens
			(token, wallet_address, alert_token_id, document_token_id, expires_at, usage_count, revoked, created_at)
		values ($1,$2,$3,$4,$5,0,false,$6)
	`, tok.Token, tok.WalletAddress, tok.AlertTokenID, tok.DocumentTokenID,
		tok.ExpiresAt, tok.CreatedAt); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *AccessStore) FindToken(ctx context.Context, token string) (access.Token, error) {
	row := s.db.QueryRowContext(ctx, `
		select token, wallet_address, alert_token_id, coalesce(document_token_id,''),
		       expires_at, usage_count, revoked, created_at
		from document_access_tokens where token=$1
	`, strings.TrimSpace(token))
	return scanToken(row)
}

func (s *AccessStore) ActiveToken(ctx context.Context, wallet, alertTokenID string) (access.Token, error) {
	row := s.db.QueryRowContext(ctx, `
		select token, wallet_address, alert_token_id, coalesce(document_token_id,''),
		       expires_at, usage_count, revoked, created_at
		from document_access_tokens
		where lower(wallet_address)=lower($1) and alert_token_id=$2
		  and revoked=false and expires_at > now()
		order by created_at desc limit 1
	`, strings.TrimSpace(wallet), strings.TrimSpace(alertTokenID))
	return scanToken(row)
}

func (s *AccessStore) TouchToken(ctx context.Context, token string) (access.Token, error) {
	row := s.db.QueryRowContext(ctx, `
		update document_access_tokens set usage_count = usage_count + 1
		where token=$1
		returning token, wallet_address, alert_token_id, coalesce(document_token_id,''),
		          expires_at, usage_count, revoked, created_at
	`, strings.TrimSpace(token))
	return scanToken(row)
}

func (s *AccessStore) RevokeToken(ctx context.Context, token string) error {
	res, err := s.db.ExecContext(ctx, `
		update document_access_tokens set revoked=true where token=$1
	`, strings.TrimSpace(token))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return access.ErrTokenNotFound
	}
	return nil
}

func scanToken(row *sql.Row) (access.Token, error) {
	var tok access.Token
	err := row.Scan(&tok.Token, &tok.WalletAddress, &tok.AlertTokenID, &tok.DocumentTokenID,
		&tok.ExpiresAt, &tok.UsageCount, &tok.Revoked, &tok.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return access.Token{}, access.ErrTokenNotFound
	}
	if err != nil {
		return access.Token{}, err
	}
	return tok, nil
}
