package notice

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/JGooseK41/NFTServiceApp-sub013/internal/ids"
)

// InMemory implements Store with in-process concurrency safety. The HTTP
// layer tests run against it; production uses the Postgres store.
type InMemory struct {
	mu   sync.RWMutex
	recs []*Record
}

var _ Store = (*InMemory)(nil)

func NewInMemory() *InMemory {
	return &InMemory{}
}

func (s *InMemory) UpsertNotice(ctx context.Context, rec Record) (Record, error) {
	rec.CaseNumber = strings.TrimSpace(rec.CaseNumber)
	rec.AlertTokenID = strings.TrimSpace(rec.AlertTokenID)
	rec.Recipients = NormalizeRecipients(rec.Recipients)
	if err := rec.Validate(); err != nil {
		return Record{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.lookup(rec.CaseNumber, rec.AlertTokenID)
	if existing == nil {
		now := time.Now().UTC()
		rec.ID = ids.Tagged(ids.TagRecord)
		if rec.ServedAt.IsZero() {
			rec.ServedAt = now
		}
		if rec.PairingSource == "" {
			rec.PairingSource = PairingChain
			rec.Verified = true
		}
		rec.CreatedAt = now
		rec.UpdatedAt = now
		stored := rec
		s.recs = append(s.recs, &stored)
		return stored, nil
	}

	merge(existing, rec)
	return *existing, nil
}

func (s *InMemory) FindByCase(ctx context.Context, caseNumber string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r := s.lookup(strings.TrimSpace(caseNumber), ""); r != nil {
		return *r, nil
	}
	return Record{}, ErrNotFound
}

func (s *InMemory) FindByToken(ctx context.Context, tokenID string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.recs {
		if r.MatchesToken(tokenID) {
			return *r, nil
		}
	}
	return Record{}, ErrNotFound
}

func (s *InMemory) FindByRecipient(ctx context.Context, wallet string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Record
	for _, r := range s.recs {
		if r.HasRecipient(wallet) {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (s *InMemory) BackfillField(ctx context.Context, caseNumber, field, value string) error {
	if !backfillable(field) {
		return ErrUnknownField
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.lookup(strings.TrimSpace(caseNumber), "")
	if r == nil {
		return ErrNotFound
	}
	target := fieldRef(r, field)
	if strings.TrimSpace(*target) != "" {
		return ErrFieldSet
	}
	*target = strings.TrimSpace(value)
	r.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *InMemory) MarkAccepted(ctx context.Context, caseNumber string, at time.Time) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.lookup(strings.TrimSpace(caseNumber), "")
	if r == nil {
		return Record{}, ErrNotFound
	}
	if !r.Accepted {
		if at.IsZero() {
			at = time.Now().UTC()
		}
		r.Accepted = true
		r.AcceptedAt = &at
		r.UpdatedAt = time.Now().UTC()
	}
	return *r, nil
}

func (s *InMemory) MarkViewed(ctx context.Context, caseNumber string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.lookup(strings.TrimSpace(caseNumber), "")
	if r == nil {
		return ErrNotFound
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}
	r.LastViewedAt = &at
	r.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *InMemory) DeleteOrphan(ctx context.Context, caseNumber string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.recs {
		if r.CaseNumber == strings.TrimSpace(caseNumber) {
			if len(r.Recipients) > 0 || r.Accepted {
				return ErrNotOrphan
			}
			s.recs = append(s.recs[:i], s.recs[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (s *InMemory) ListAll(ctx context.Context) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, 0, len(s.recs))
	for _, r := range s.recs {
		out = append(out, *r)
	}
	return out, nil
}

// lookup matches by case number first, then by alert token id. Callers hold
// the lock.
func (s *InMemory) lookup(caseNumber, alertTokenID string) *Record {
	if caseNumber != "" {
		for _, r := range s.recs {
			if r.CaseNumber == caseNumber {
				return r
			}
		}
		return nil
	}
	if alertTokenID != "" {
		for _, r := range s.recs {
			if r.AlertTokenID == alertTokenID {
				return r
			}
		}
	}
	return nil
}

// merge applies upsert semantics: non-empty incoming fields win, recipients
// are unioned, acceptance never regresses, chain confirmation upgrades an
// inferred pairing but never the other way around.
func merge(dst *Record, src Record) {
	setIfEmptyOrNew := func(dstField *string, v string) {
		if strings.TrimSpace(v) != "" {
			*dstField = strings.TrimSpace(v)
		}
	}
	setIfEmptyOrNew(&dst.CaseNumber, src.CaseNumber)
	setIfEmptyOrNew(&dst.AlertTokenID, src.AlertTokenID)
	setIfEmptyOrNew(&dst.DocumentTokenID, src.DocumentTokenID)
	setIfEmptyOrNew(&dst.IPFSHash, src.IPFSHash)
	setIfEmptyOrNew(&dst.EncryptionKey, src.EncryptionKey)
	setIfEmptyOrNew(&dst.Chain, src.Chain)
	setIfEmptyOrNew(&dst.ExplorerURL, src.ExplorerURL)

	dst.Recipients = NormalizeRecipients(append(dst.Recipients, src.Recipients...))

	if !src.ServedAt.IsZero() && dst.ServedAt.IsZero() {
		dst.ServedAt = src.ServedAt
	}
	if src.Accepted && !dst.Accepted {
		dst.Accepted = true
		dst.AcceptedAt = src.AcceptedAt
	}
	if src.PairingSource == PairingChain {
		dst.PairingSource = PairingChain
		dst.Verified = true
	}
	dst.UpdatedAt = time.Now().UTC()
}

func fieldRef(r *Record, field string) *string {
	switch field {
	case FieldDocumentTokenID:
		return &r.DocumentTokenID
	case FieldIPFSHash:
		return &r.IPFSHash
	case FieldEncryptionKey:
		return &r.EncryptionKey
	case FieldExplorerURL:
		return &r.ExplorerURL
	case FieldChain:
		return &r.Chain
	default:
		return nil
	}
}
