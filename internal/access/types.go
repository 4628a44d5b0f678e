package access

import (
	"errors"
	"time"
)

// Token is a scoped, time-limited grant for one wallet to fetch one
// document without re-running the full access check on every byte range.
type Token struct {
	Token           string    `json:"token"`
	WalletAddress   string    `json:"wallet_address"`
	AlertTokenID    string    `json:"alert_token_id"`
	DocumentTokenID string    `json:"document_token_id"`
	ExpiresAt       time.Time `json:"expires_at"`
	UsageCount      int       `json:"usage_count"`
	Revoked         bool      `json:"revoked"`
	CreatedAt       time.Time `json:"created_at"`
}

// Active reports whether the token can still be used at the given instant.
// Expiry is checked at read time; nothing sweeps expired tokens.
func (t Token) Active(now time.Time) bool {
	return !t.Revoked && now.Before(t.ExpiresAt)
}

// Attempt is one row of the append-only access audit log. Rows are never
// mutated or deleted.
type Attempt struct {
	ID              string    `json:"id"`
	WalletAddress   string    `json:"wallet_address"`
	AlertTokenID    string    `json:"alert_token_id"`
	DocumentTokenID string    `json:"document_token_id"`
	Granted         bool      `json:"granted"`
	DenialReason    string    `json:"denial_reason,omitempty"`
	AttemptedAt     time.Time `json:"attempted_at"`
}

// View is a non-authoritative view event, distinct from the access audit
// trail. It backs the "recipient viewed at X but has not signed" history
// shown to the serving party.
type View struct {
	ID            string    `json:"id"`
	NoticeID      string    `json:"notice_id"`
	DocumentID    string    `json:"document_id"`
	ViewerAddress string    `json:"viewer_address"`
	ViewType      string    `json:"view_type"`
	ViewedAt      time.Time `json:"viewed_at"`
}

// Decision is the outcome of one access check. The document pointer and
// encryption key ride only on granted decisions; this is the single place
// they cross to a caller.
type Decision struct {
	HasAccess     bool           `json:"has_access"`
	IsRecipient   bool           `json:"is_recipient"`
	CanViewOnly   bool           `json:"can_view_only"`
	IsSigned      bool           `json:"is_signed"`
	DenialReason  string         `json:"denial_reason,omitempty"`
	AccessToken   string         `json:"access_token,omitempty"`
	IPFSHash      string         `json:"ipfs_hash,omitempty"`
	EncryptionKey string         `json:"encryption_key,omitempty"`
	Public        PublicMetadata `json:"public"`
}

// PublicMetadata is the Alert-tier information that stays visible to any
// wallet: the Alert NFT is the public "you have been served" notice.
type PublicMetadata struct {
	CaseNumber string `json:"case_number,omitempty"`
	Chain      string `json:"chain,omitempty"`
	ServedAt   string `json:"served_at,omitempty"`
	Status     string `json:"status,omitempty"`
}

// Denial reasons recorded on the audit trail.
const (
	DenyInvalidWallet  = "invalid_wallet"
	DenyNotFound       = "notice_not_found"
	DenyNotRecipient   = "wallet_not_recipient"
	DenyLookupFailed   = "lookup_failed"
	DenyTokenExpired   = "token_expired"
	DenyTokenRevoked   = "token_revoked"
	DenyTokenMismatch  = "token_wallet_mismatch"
	DenyTokenNotFound  = "token_not_found"
)

var (
	ErrTokenNotFound = errors.New("access: token not found")
	ErrTokenInactive = errors.New("access: token expired or revoked")
	ErrInvalidView   = errors.New("access: invalid view event")
)
