package access

import (
	"context"
	"sync"
	"time"

	"github.com/JGooseK41/NFTServiceApp-sub013/internal/tron"
)

// InMemory implements Store for tests and the dev server.
type InMemory struct {
	mu       sync.RWMutex
	attempts []Attempt
	views    []View
	tokens   map[string]*Token
}

var _ Store = (*InMemory)(nil)

func NewInMemory() *InMemory {
	return &InMemory{tokens: make(map[string]*Token)}
}

func (s *InMemory) AppendAttempt(ctx context.Context, att Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = append(s.attempts, att)
	return nil
}

// Attempts returns a copy of the audit trail (test helper).
func (s *InMemory) Attempts() []Attempt {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Attempt, len(s.attempts))
	copy(out, s.attempts)
	return out
}

func (s *InMemory) AppendView(ctx context.Context, view View) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.views = append(s.views, view)
	return nil
}

func (s *InMemory) ListViews(ctx context.Context, noticeID string) ([]View, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []View
	for _, v := range s.views {
		if v.NoticeID == noticeID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *InMemory) CreateToken(ctx context.Context, tok Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.tokens {
		if !existing.Revoked &&
			tron.SameAddress(existing.WalletAddress, tok.WalletAddress) &&
			existing.AlertTokenID == tok.AlertTokenID {
			existing.Revoked = true
		}
	}
	stored := tok
	s.tokens[tok.Token] = &stored
	return nil
}

func (s *InMemory) FindToken(ctx context.Context, token string) (Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tok, ok := s.tokens[token]
	if !ok {
		return Token{}, ErrTokenNotFound
	}
	return *tok, nil
}

func (s *InMemory) ActiveToken(ctx context.Context, wallet, alertTokenID string) (Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := time.Now().UTC()
	for _, tok := range s.tokens {
		if tok.Active(now) && tron.SameAddress(tok.WalletAddress, wallet) && tok.AlertTokenID == alertTokenID {
			return *tok, nil
		}
	}
	return Token{}, ErrTokenNotFound
}

func (s *InMemory) TouchToken(ctx context.Context, token string) (Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok, ok := s.tokens[token]
	if !ok {
		return Token{}, ErrTokenNotFound
	}
	tok.UsageCount++
	return *tok, nil
}

func (s *InMemory) RevokeToken(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok, ok := s.tokens[token]
	if !ok {
		return ErrTokenNotFound
	}
	tok.Revoked = true
	return nil
}
