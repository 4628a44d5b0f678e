package notice

import (
	"context"
	"time"
)

// Backfillable fields accepted by BackfillField. Anything else is rejected
// so repair tooling cannot quietly rewrite recipients or timestamps.
const (
	FieldDocumentTokenID = "document_token_id"
	FieldIPFSHash        = "ipfs_hash"
	FieldEncryptionKey   = "encryption_key"
	FieldExplorerURL     = "explorer_url"
	FieldChain           = "chain"
)

// Store persists notice records. The store is the single writer of truth
// for recipient lists; the access layer only reads them.
type Store interface {
	// UpsertNotice inserts or updates a record matched by case number, or
	// by alert token id when the case number is absent. Calling it twice
	// with the same input yields exactly one stored record.
	UpsertNotice(ctx context.Context, rec Record) (Record, error)

	FindByCase(ctx context.Context, caseNumber string) (Record, error)

	// FindByToken locates a record by either side of the token pair.
	FindByToken(ctx context.Context, tokenID string) (Record, error)

	// FindByRecipient returns all records listing the wallet, matched
	// case-insensitively against the normalized recipient list.
	FindByRecipient(ctx context.Context, wallet string) ([]Record, error)

	// BackfillField sets a field only when it is currently empty. Returns
	// ErrFieldSet when a value is already present.
	BackfillField(ctx context.Context, caseNumber, field, value string) error

	// MarkAccepted records acceptance. Idempotent: a second call keeps the
	// original accepted_at.
	MarkAccepted(ctx context.Context, caseNumber string, at time.Time) (Record, error)

	// MarkViewed records the most recent document view time.
	MarkViewed(ctx context.Context, caseNumber string, at time.Time) error

	// DeleteOrphan removes a record that never completed creation: no
	// recipients and no acceptance. Complete records are never deleted.
	DeleteOrphan(ctx context.Context, caseNumber string) error

	ListAll(ctx context.Context) ([]Record, error)
}

func backfillable(field string) bool {
	switch field {
	case FieldDocumentTokenID, FieldIPFSHash, FieldEncryptionKey, FieldExplorerURL, FieldChain:
		return true
	}
	return false
}
