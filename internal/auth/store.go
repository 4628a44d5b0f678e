package auth

import "context"

// Store describes persistence required by registration and admin auth.
type Store interface {
	ProcessServers(ctx context.Context) ProcessServerStore
	AdminUsers(ctx context.Context) AdminUserStore
	AccessLogs(ctx context.Context) AccessLogStore
}

// ProcessServerStore manages registered process servers.
type ProcessServerStore interface {
	Register(ctx context.Context, ps *ProcessServer) error
	FindByWallet(ctx context.Context, wallet string) (*ProcessServer, error)
	UpdateStatus(ctx context.Context, wallet, status string) error
	List(ctx context.Context) ([]*ProcessServer, error)
}

// AdminUserStore manages admin accounts.
type AdminUserStore interface {
	Create(ctx context.Context, u *AdminUser) error
	FindByEmail(ctx context.Context, email string) (*AdminUser, error)
}

// AccessLogStore appends immutable admin access entries.
type AccessLogStore interface {
	Append(ctx context.Context, entry *AccessLogEntry) error
}
