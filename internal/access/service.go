package access

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JGooseK41/NFTServiceApp-sub013/internal/audit"
	"github.com/JGooseK41/NFTServiceApp-sub013/internal/ids"
	"github.com/JGooseK41/NFTServiceApp-sub013/internal/notice"
	"github.com/JGooseK41/NFTServiceApp-sub013/internal/obs"
	"github.com/JGooseK41/NFTServiceApp-sub013/internal/tron"
)

const defaultTokenTTL = 30 * time.Minute

// Service decides document visibility and produces the audit trail.
// Fail-closed: any backend uncertainty denies access.
type Service struct {
	notices  notice.Store
	store    Store
	tokenTTL time.Duration
	now      func() time.Time
}

// Option configures Service.
type Option func(*Service)

// WithTokenTTL overrides the access token validity window.
func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.tokenTTL = ttl
		}
	}
}

// WithClock overrides the time source (tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

func NewService(notices notice.Store, store Store, opts ...Option) *Service {
	s := &Service{
		notices:  notices,
		store:    store,
		tokenTTL: defaultTokenTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CheckAccess decides whether wallet may view the document behind the given
// token pair. Every call appends an attempt row; denial never surfaces as
// an error to the caller, only as a denied decision.
func (s *Service) CheckAccess(ctx context.Context, wallet, alertTokenID, documentTokenID string) (Decision, error) {
	wallet = strings.TrimSpace(wallet)
	alertTokenID = strings.TrimSpace(alertTokenID)
	documentTokenID = strings.TrimSpace(documentTokenID)

	decision, rec := s.decide(ctx, wallet, alertTokenID, documentTokenID)

	s.appendAttempt(ctx, Attempt{
		ID:              ids.Tagged(ids.TagAttempt),
		WalletAddress:   wallet,
		AlertTokenID:    alertTokenID,
		DocumentTokenID: documentTokenID,
		Granted:         decision.HasAccess,
		DenialReason:    decision.DenialReason,
		AttemptedAt:     s.now().UTC(),
	})
	obs.ObserveAccessCheck(decision.HasAccess, decision.DenialReason)

	if decision.HasAccess && rec != nil {
		decision.IPFSHash = rec.IPFSHash
		decision.EncryptionKey = rec.EncryptionKey
		if tok, err := s.ensureToken(ctx, wallet, *rec); err == nil {
			decision.AccessToken = tok.Token
		}
		// Token issuance failure is not fatal: the caller re-runs the
		// full check on the next request instead.
	}
	return decision, nil
}

func (s *Service) decide(ctx context.Context, wallet, alertTokenID, documentTokenID string) (Decision, *notice.Record) {
	if wallet == "" || tron.ValidateAddress(wallet) != nil && !looksLegacy(wallet) {
		return Decision{DenialReason: DenyInvalidWallet}, nil
	}

	lookupID := alertTokenID
	if lookupID == "" {
		lookupID = documentTokenID
	}
	rec, err := s.notices.FindByToken(ctx, lookupID)
	if err != nil {
		if errors.Is(err, notice.ErrNotFound) {
			return Decision{DenialReason: DenyNotFound}, nil
		}
		// Fail closed on any storage error.
		return Decision{DenialReason: DenyLookupFailed}, nil
	}

	dec := Decision{
		IsRecipient: rec.HasRecipient(wallet),
		IsSigned:    rec.Accepted,
		Public:      publicMetadata(rec),
	}
	dec.HasAccess = dec.IsRecipient
	dec.CanViewOnly = dec.IsRecipient && !dec.IsSigned
	if !dec.HasAccess {
		dec.DenialReason = DenyNotRecipient
	}
	return dec, &rec
}

// ensureToken returns the existing active token for the pair or issues a
// fresh one, revoking predecessors so at most one stays active.
func (s *Service) ensureToken(ctx context.Context, wallet string, rec notice.Record) (Token, error) {
	now := s.now().UTC()
	if tok, err := s.store.ActiveToken(ctx, wallet, rec.AlertTokenID); err == nil && tok.Active(now) {
		return tok, nil
	}
	tok := Token{
		Token:           uuid.NewString(),
		WalletAddress:   wallet,
		AlertTokenID:    rec.AlertTokenID,
		DocumentTokenID: rec.DocumentTokenID,
		ExpiresAt:       now.Add(s.tokenTTL),
		CreatedAt:       now,
	}
	if err := s.store.CreateToken(ctx, tok); err != nil {
		return Token{}, err
	}
	return tok, nil
}

// RedeemToken validates an access token for a document fetch and counts the
// use. Expiry is passive: checked here, never swept.
func (s *Service) RedeemToken(ctx context.Context, token, wallet string) (Token, error) {
	tok, err := s.store.FindToken(ctx, strings.TrimSpace(token))
	if err != nil {
		return Token{}, ErrTokenNotFound
	}
	if !tok.Active(s.now().UTC()) {
		return Token{}, ErrTokenInactive
	}
	if !tron.SameAddress(tok.WalletAddress, wallet) {
		return Token{}, ErrTokenNotFound
	}
	return s.store.TouchToken(ctx, tok.Token)
}

// LogView records a view event and advances the notice state machine to
// "viewed". Viewing before signing does not constitute legal acceptance.
func (s *Service) LogView(ctx context.Context, view View) error {
	view.NoticeID = strings.TrimSpace(view.NoticeID)
	view.ViewerAddress = strings.TrimSpace(view.ViewerAddress)
	if view.NoticeID == "" || view.ViewerAddress == "" {
		return ErrInvalidView
	}
	if view.ID == "" {
		view.ID = ids.Tagged(ids.TagView)
	}
	if view.ViewedAt.IsZero() {
		view.ViewedAt = s.now().UTC()
	}
	if view.ViewType == "" {
		view.ViewType = "document"
	}
	if err := s.store.AppendView(ctx, view); err != nil {
		return err
	}
	if rec, err := s.notices.FindByToken(ctx, view.NoticeID); err == nil {
		_ = s.notices.MarkViewed(ctx, rec.CaseNumber, view.ViewedAt)
	}
	_ = audit.LogEvent(ctx, "access.view", map[string]any{
		"notice_id": view.NoticeID,
		"viewer":    view.ViewerAddress,
		"view_type": view.ViewType,
	})
	return nil
}

// ViewHistory returns the proof-of-delivery trail for a notice.
func (s *Service) ViewHistory(ctx context.Context, noticeID string) ([]View, error) {
	return s.store.ListViews(ctx, strings.TrimSpace(noticeID))
}

func (s *Service) appendAttempt(ctx context.Context, att Attempt) {
	if err := s.store.AppendAttempt(ctx, att); err != nil {
		obs.LogRequest(map[string]any{
			"level": "error",
			"msg":   "append access attempt failed",
			"error": err.Error(),
		})
	}
}

func publicMetadata(rec notice.Record) PublicMetadata {
	meta := PublicMetadata{
		CaseNumber: rec.CaseNumber,
		Chain:      rec.Chain,
		Status:     string(rec.Status()),
	}
	if !rec.ServedAt.IsZero() {
		meta.ServedAt = rec.ServedAt.UTC().Format(time.RFC3339)
	}
	return meta
}

// looksLegacy accepts addresses that fail base58check only because an old
// write path lowercased them; those wallets must still be able to reach
// their documents.
func looksLegacy(wallet string) bool {
	if len(wallet) != 34 {
		return false
	}
	return wallet[0] == 'T' || wallet[0] == 't'
}
