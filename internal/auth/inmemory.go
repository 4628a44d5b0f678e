package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/JGooseK41/NFTServiceApp-sub013/internal/ids"
	"github.com/JGooseK41/NFTServiceApp-sub013/internal/tron"
)

// InMemoryStore implements Store for tests and the dev server.
type InMemoryStore struct {
	mu      sync.RWMutex
	servers map[string]*ProcessServer
	admins  map[string]*AdminUser
	logs    []AccessLogEntry
}

var _ Store = (*InMemoryStore)(nil)

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		servers: make(map[string]*ProcessServer),
		admins:  make(map[string]*AdminUser),
	}
}

func (s *InMemoryStore) ProcessServers(context.Context) ProcessServerStore { return s }
func (s *InMemoryStore) AdminUsers(context.Context) AdminUserStore         { return s }
func (s *InMemoryStore) AccessLogs(context.Context) AccessLogStore         { return s }

func (s *InMemoryStore) Register(ctx context.Context, ps *ProcessServer) error {
	wallet, err := tron.CanonicalAddress(ps.WalletAddress)
	if err != nil {
		return ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := tron.CompareKey(wallet)
	if _, ok := s.servers[key]; ok {
		return ErrAlreadyExists
	}
	if ps.ID == "" {
		ps.ID = ids.Tagged(ids.TagServer)
	}
	if ps.Status == "" {
		ps.Status = ServerPending
	}
	now := time.Now().UTC()
	ps.WalletAddress = wallet
	ps.CreatedAt = now
	ps.UpdatedAt = now
	stored := *ps
	s.servers[key] = &stored
	return nil
}

func (s *InMemoryStore) FindByWallet(ctx context.Context, wallet string) (*ProcessServer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ps, ok := s.servers[tron.CompareKey(wallet)]
	if !ok {
		return nil, ErrNotFound
	}
	out := *ps
	return &out, nil
}

func (s *InMemoryStore) UpdateStatus(ctx context.Context, wallet, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ps, ok := s.servers[tron.CompareKey(wallet)]
	if !ok {
		return ErrNotFound
	}
	ps.Status = status
	ps.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *InMemoryStore) List(ctx context.Context) ([]*ProcessServer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*ProcessServer, 0, len(s.servers))
	for _, ps := range s.servers {
		cp := *ps
		out = append(out, &cp)
	}
	return out, nil
}

func (s *InMemoryStore) Create(ctx context.Context, u *AdminUser) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := strings.ToLower(strings.TrimSpace(u.Email))
	if _, ok := s.admins[email]; ok {
		return ErrAlreadyExists
	}
	if u.ID == "" {
		u.ID = ids.Tagged(ids.TagAdmin)
	}
	if u.Role == "" {
		u.Role = "admin"
	}
	u.Email = email
	u.CreatedAt = time.Now().UTC()
	stored := *u
	s.admins[email] = &stored
	return nil
}

func (s *InMemoryStore) FindByEmail(ctx context.Context, email string) (*AdminUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.admins[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, ErrNotFound
	}
	out := *u
	return &out, nil
}

func (s *InMemoryStore) Append(ctx context.Context, entry *AccessLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.ID == "" {
		entry.ID = ids.Tagged(ids.TagAccessLog)
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = time.Now().UTC()
	}
	s.logs = append(s.logs, *entry)
	return nil
}
