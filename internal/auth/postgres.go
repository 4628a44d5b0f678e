package auth

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JGooseK41/NFTServiceApp-sub013/internal/ids"
	"github.com/JGooseK41/NFTServiceApp-sub013/internal/tron"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) ProcessServers(context.Context) ProcessServerStore {
	return &serverStore{db: s.db}
}
func (s *PGStore) AdminUsers(context.Context) AdminUserStore { return &adminStore{db: s.db} }
func (s *PGStore) AccessLogs(context.Context) AccessLogStore { return &accessLogStore{db: s.db} }

// Process server store ------------------------------------------------------
type serverStore struct{ db *sql.DB }

func (s *serverStore) Register(ctx context.Context, ps *ProcessServer) error {
	if ps.ID == "" {
		ps.ID = ids.Tagged(ids.TagServer)
	}
	if ps.Status == "" {
		ps.Status = ServerPending
	}
	wallet, err := tron.CanonicalAddress(ps.WalletAddress)
	if err != nil {
		return ErrInvalidInput
	}
	ps.WalletAddress = wallet
	_, err = s.db.ExecContext(ctx, `
		insert into process_servers(id, wallet_address, name, agency, email, phone, jurisdiction, status)
		values($1,$2,$3,$4,$5,$6,$7,$8)
	`, ps.ID, ps.WalletAddress, ps.Name, ps.Agency, ps.Email, ps.Phone, ps.Jurisdiction, ps.Status)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

func (s *serverStore) FindByWallet(ctx context.Context, wallet string) (*ProcessServer, error) {
	row := s.db.QueryRowContext(ctx, `
		select id, wallet_address, name, agency, email, phone, jurisdiction, status, created_at, updated_at
		from process_servers where lower(wallet_address)=lower($1)
	`, strings.TrimSpace(wallet))
	var ps ProcessServer
	if err := row.Scan(&ps.ID, &ps.WalletAddress, &ps.Name, &ps.Agency, &ps.Email, &ps.Phone,
		&ps.Jurisdiction, &ps.Status, &ps.CreatedAt, &ps.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &ps, nil
}

func (s *serverStore) UpdateStatus(ctx context.Context, wallet, status string) error {
	res, err := s.db.ExecContext(ctx, `
		update process_servers set status=$2, updated_at=now() where lower(wallet_address)=lower($1)
	`, strings.TrimSpace(wallet), status)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *serverStore) List(ctx context.Context) ([]*ProcessServer, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, wallet_address, name, agency, email, phone, jurisdiction, status, created_at, updated_at
		from process_servers order by created_at asc
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*ProcessServer
	for rows.Next() {
		var ps ProcessServer
		if err := rows.Scan(&ps.ID, &ps.WalletAddress, &ps.Name, &ps.Agency, &ps.Email, &ps.Phone,
			&ps.Jurisdiction, &ps.Status, &ps.CreatedAt, &ps.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, &ps)
	}
	return res, rows.Err()
}

// Admin user store -----------------------------------------------------------
type adminStore struct{ db *sql.DB }

func (s *adminStore) Create(ctx context.Context, u *AdminUser) error {
	if u.ID == "" {
		u.ID = ids.Tagged(ids.TagAdmin)
	}
	if u.Role == "" {
		u.Role = "admin"
	}
	_, err := s.db.ExecContext(ctx, `
		insert into admin_users(id, email, password_hash, role) values($1,$2,$3,$4)
	`, u.ID, strings.ToLower(strings.TrimSpace(u.Email)), u.PasswordHash, u.Role)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

func (s *adminStore) FindByEmail(ctx context.Context, email string) (*AdminUser, error) {
	row := s.db.QueryRowContext(ctx, `
		select id, email, password_hash, role, created_at from admin_users where email=$1
	`, strings.ToLower(strings.TrimSpace(email)))
	var u AdminUser
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// Admin access log -----------------------------------------------------------
type accessLogStore struct{ db *sql.DB }

func (s *accessLogStore) Append(ctx context.Context, entry *AccessLogEntry) error {
	if entry.ID == "" {
		entry.ID = ids.Tagged(ids.TagAccessLog)
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		insert into admin_access_logs(id, admin_id, action, resource, occurred_at)
		values($1,$2,$3,$4,$5)
	`, entry.ID, entry.AdminID, entry.Action, entry.Resource, entry.OccurredAt)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return err != nil && errors.As(err, &pgErr) && pgErr.Code == "23505"
}
