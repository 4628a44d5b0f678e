package access

import "context"

// Store owns the access audit tables. It reads nothing from the notice
// store and never mutates recipient lists.
type Store interface {
	// AppendAttempt records one access check. Append-only.
	AppendAttempt(ctx context.Context, att Attempt) error

	// AppendView records one non-authoritative view event. Append-only.
	AppendView(ctx context.Context, view View) error

	// ListViews returns the view history for a notice, oldest first.
	ListViews(ctx context.Context, noticeID string) ([]View, error)

	// CreateToken stores a fresh token after revoking any active token for
	// the same (wallet, alert token) pair, preserving the single-active
	// invariant.
	CreateToken(ctx context.Context, tok Token) error

	// FindToken looks a token up by its opaque value.
	FindToken(ctx context.Context, token string) (Token, error)

	// ActiveToken returns the unrevoked, unexpired token for the pair.
	ActiveToken(ctx context.Context, wallet, alertTokenID string) (Token, error)

	// TouchToken increments the usage counter and returns the updated row.
	TouchToken(ctx context.Context, token string) (Token, error)

	// RevokeToken marks a token revoked.
	RevokeToken(ctx context.Context, token string) error
}
