package notice

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/JGooseK41/NFTServiceApp-sub013/internal/tron"
)

// PairingSource records how an Alert/Document token pair was established.
// Chain-confirmed pairs are facts; inferred pairs come from the sequential
// mint heuristic and stay unverified until checked against the contract.
type PairingSource string

const (
	PairingChain    PairingSource = "chain"
	PairingInferred PairingSource = "inferred"
)

// Status is the visibility state of a notice for its recipient.
type Status string

const (
	StatusServed   Status = "served"
	StatusViewed   Status = "viewed"
	StatusAccepted Status = "accepted"
)

// Record is one service-of-process event: the pairing of an on-chain Alert
// and Document token with case metadata, recipients and document pointers.
type Record struct {
	ID              string        `json:"id"`
	CaseNumber      string        `json:"case_number"`
	AlertTokenID    string        `json:"alert_token_id"`
	DocumentTokenID string        `json:"document_token_id,omitempty"`
	Recipients      []string      `json:"recipients"`
	IPFSHash        string        `json:"ipfs_hash,omitempty"`
	EncryptionKey   string        `json:"encryption_key,omitempty"`
	ServedAt        time.Time     `json:"served_at"`
	Accepted        bool          `json:"accepted"`
	AcceptedAt      *time.Time    `json:"accepted_at,omitempty"`
	LastViewedAt    *time.Time    `json:"last_viewed_at,omitempty"`
	Chain           string        `json:"chain"`
	ExplorerURL     string        `json:"explorer_url,omitempty"`
	PairingSource   PairingSource `json:"pairing_source"`
	Verified        bool          `json:"verified"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

var (
	ErrNotFound      = errors.New("notice: not found")
	ErrNoCaseOrToken = errors.New("notice: case number or alert token id required")
	ErrNoRecipients  = errors.New("notice: at least one recipient required")
	ErrUnknownField  = errors.New("notice: field is not backfillable")
	ErrFieldSet      = errors.New("notice: field already has a value")
	ErrNotOrphan     = errors.New("notice: record is complete and cannot be deleted")
)

// Status derives the recipient-facing state. It never regresses: accepted
// wins over viewed, viewed over served.
func (r Record) Status() Status {
	switch {
	case r.Accepted:
		return StatusAccepted
	case r.LastViewedAt != nil:
		return StatusViewed
	default:
		return StatusServed
	}
}

// HasRecipient reports whether wallet is entitled to the document under the
// case-folded comparison policy.
func (r Record) HasRecipient(wallet string) bool {
	for _, rec := range r.Recipients {
		if tron.SameAddress(rec, wallet) {
			return true
		}
	}
	return false
}

// MatchesToken reports whether tokenID names either side of the pair.
func (r Record) MatchesToken(tokenID string) bool {
	tokenID = strings.TrimSpace(tokenID)
	if tokenID == "" {
		return false
	}
	return r.AlertTokenID == tokenID || r.DocumentTokenID == tokenID
}

// Validate checks the minimum shape required before persisting.
func (r Record) Validate() error {
	if strings.TrimSpace(r.CaseNumber) == "" && strings.TrimSpace(r.AlertTokenID) == "" {
		return ErrNoCaseOrToken
	}
	if len(r.Recipients) == 0 {
		return ErrNoRecipients
	}
	return nil
}

// ParseRecipients normalizes the historical shapes of a stored recipient
// list: JSON array, JSON string, comma-separated string or bare address.
// Valid base58 addresses are canonicalized; legacy values that no longer
// validate (e.g. lowercased before storage) are kept trimmed as-is so the
// rows stay matchable.
func ParseRecipients(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	var out []string
	appendAddr := func(v string) {
		v = strings.TrimSpace(v)
		if v == "" {
			return
		}
		if canonical, err := tron.CanonicalAddress(v); err == nil {
			v = canonical
		}
		for _, existing := range out {
			if tron.SameAddress(existing, v) {
				return
			}
		}
		out = append(out, v)
	}

	if strings.HasPrefix(raw, "[") {
		var list []string
		if err := json.Unmarshal([]byte(raw), &list); err == nil {
			for _, v := range list {
				appendAddr(v)
			}
			return out
		}
	}
	if strings.HasPrefix(raw, `"`) {
		var single string
		if err := json.Unmarshal([]byte(raw), &single); err == nil {
			raw = single
		}
	}
	for _, v := range strings.Split(raw, ",") {
		appendAddr(v)
	}
	return out
}

// NormalizeRecipients applies the same canonicalization to an in-memory list.
func NormalizeRecipients(list []string) []string {
	var out []string
	for _, v := range list {
		for _, parsed := range ParseRecipients(v) {
			dup := false
			for _, existing := range out {
				if tron.SameAddress(existing, parsed) {
					dup = true
					break
				}
			}
			if !dup {
				out = append(out, parsed)
			}
		}
	}
	return out
}
