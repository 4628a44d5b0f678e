package reconcile

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/JGooseK41/NFTServiceApp-sub013/internal/audit"
	"github.com/JGooseK41/NFTServiceApp-sub013/internal/notice"
	"github.com/JGooseK41/NFTServiceApp-sub013/internal/obs"
	"github.com/JGooseK41/NFTServiceApp-sub013/internal/tron"
)

// Chain is the ground-truth collaborator. It may be unreachable; every
// routine degrades to flagging for manual review instead of blocking.
type Chain interface {
	OwnerOf(ctx context.Context, tokenID string) (string, error)
}

// Flag marks a record that needs human or chain-verified attention.
// Recipient lists are security-sensitive: reconciliation never mutates them
// automatically.
type Flag struct {
	CaseNumber   string `json:"case_number,omitempty"`
	AlertTokenID string `json:"alert_token_id"`
	Wallet       string `json:"wallet,omitempty"`
	Reason       string `json:"reason"`
}

// Flag reasons.
const (
	FlagChainUnreachable = "chain_unreachable"
	FlagOwnerMismatch    = "chain_owner_mismatch"
	FlagRecipientDrift   = "recipient_drift_confirmed"
	FlagManualReview     = "manual_review"
	FlagNonNumericID     = "non_numeric_token_id"
)

// Report summarizes one reconciliation run. Failed units do not abort the
// run; they land in Errors and the next unit proceeds.
type Report struct {
	Missing []string `json:"missing_alert_ids"`
	Created []string `json:"created_case_numbers"`
	Flags   []Flag   `json:"flags,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

// Service detects and corrects drift between chain state and the record
// store.
type Service struct {
	notices notice.Store
	chain   Chain
	dryRun  bool
}

// Option configures Service.
type Option func(*Service)

// WithChain enables chain verification.
func WithChain(c Chain) Option {
	return func(s *Service) { s.chain = c }
}

// WithDryRun reports what would change without writing anything.
func WithDryRun(dry bool) Option {
	return func(s *Service) { s.dryRun = dry }
}

func NewService(notices notice.Store, opts ...Option) *Service {
	s := &Service{notices: notices}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FindMissing computes which of the expected Alert token ids have no record
// listing the wallet. Expected ids usually come from chain event logs.
func (s *Service) FindMissing(ctx context.Context, wallet string, expectedAlertIDs []string) ([]string, error) {
	records, err := s.notices.FindByRecipient(ctx, wallet)
	if err != nil {
		return nil, err
	}
	present := make(map[string]struct{}, len(records))
	for _, rec := range records {
		present[rec.AlertTokenID] = struct{}{}
	}
	var missing []string
	for _, id := range expectedAlertIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := present[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// RepairMissing inserts a flagged placeholder record for every missing
// Alert id. The paired Document id is guessed with the sequential-mint
// heuristic and always stored as inferred/unverified; existing records are
// never overwritten. Each id is its own unit of work.
func (s *Service) RepairMissing(ctx context.Context, wallet string, expectedAlertIDs []string) (Report, error) {
	missing, err := s.FindMissing(ctx, wallet, expectedAlertIDs)
	if err != nil {
		return Report{}, err
	}
	report := Report{Missing: missing}

	for _, alertID := range missing {
		if flag, skip := s.verifyOwner(ctx, wallet, alertID); flag != nil {
			report.Flags = append(report.Flags, *flag)
			if skip {
				obs.ObserveRepair("missing_record", "skipped")
				continue
			}
		}

		rec := notice.Record{
			CaseNumber:    placeholderCase(alertID),
			AlertTokenID:  alertID,
			Recipients:    []string{wallet},
			PairingSource: notice.PairingInferred,
			Verified:      false,
			ServedAt:      time.Now().UTC(),
		}
		if docID, ok := deriveDocumentID(alertID); ok {
			rec.DocumentTokenID = docID
		} else {
			report.Flags = append(report.Flags, Flag{
				AlertTokenID: alertID,
				Reason:       FlagNonNumericID,
			})
		}

		if s.dryRun {
			report.Created = append(report.Created, rec.CaseNumber)
			continue
		}
		stored, err := s.notices.UpsertNotice(ctx, rec)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("alert %s: %v", alertID, err))
			obs.ObserveRepair("missing_record", "error")
			continue
		}
		report.Created = append(report.Created, stored.CaseNumber)
		obs.ObserveRepair("missing_record", "created")
		_ = audit.LogEvent(ctx, "reconcile.missing_record.created", map[string]any{
			"case_number":       stored.CaseNumber,
			"alert_token_id":    stored.AlertTokenID,
			"document_token_id": stored.DocumentTokenID,
			"wallet":            wallet,
			"pairing_source":    string(stored.PairingSource),
			"before":            nil,
			"after":             stored,
		})
	}
	return report, nil
}

// verifyOwner consults the chain when configured. Returns a flag and
// whether the placeholder insert must be skipped (owner mismatch means the
// wallet is not entitled to this token at all).
func (s *Service) verifyOwner(ctx context.Context, wallet, alertID string) (*Flag, bool) {
	if s.chain == nil {
		return nil, false
	}
	owner, err := s.chain.OwnerOf(ctx, alertID)
	if err != nil {
		return &Flag{AlertTokenID: alertID, Wallet: wallet, Reason: FlagChainUnreachable}, false
	}
	if !tron.SameAddress(owner, wallet) {
		return &Flag{AlertTokenID: alertID, Wallet: wallet, Reason: FlagOwnerMismatch}, true
	}
	return nil, false
}

// CheckRecipientDrift verifies that the wallet appears in each record that
// the expected Alert ids say it should. Drift is reported, never repaired
// in place: adding a wallet to recipients grants document access and must
// be confirmed against the chain by an operator first.
func (s *Service) CheckRecipientDrift(ctx context.Context, wallet string, expectedAlertIDs []string) ([]Flag, error) {
	var flags []Flag
	for _, alertID := range expectedAlertIDs {
		alertID = strings.TrimSpace(alertID)
		if alertID == "" {
			continue
		}
		rec, err := s.notices.FindByToken(ctx, alertID)
		if err != nil {
			// Missing records are the other routine's business.
			continue
		}
		if rec.HasRecipient(wallet) {
			continue
		}
		flag := Flag{
			CaseNumber:   rec.CaseNumber,
			AlertTokenID: alertID,
			Wallet:       wallet,
			Reason:       FlagManualReview,
		}
		if s.chain != nil {
			owner, err := s.chain.OwnerOf(ctx, alertID)
			switch {
			case err != nil:
				flag.Reason = FlagChainUnreachable
			case tron.SameAddress(owner, wallet):
				flag.Reason = FlagRecipientDrift
			default:
				flag.Reason = FlagOwnerMismatch
			}
		}
		flags = append(flags, flag)
		obs.ObserveRepair("recipient_drift", "flagged")
		_ = audit.LogEvent(ctx, "reconcile.recipient_drift.flagged", map[string]any{
			"case_number":    rec.CaseNumber,
			"alert_token_id": alertID,
			"wallet":         wallet,
			"reason":         flag.Reason,
			"recipients":     rec.Recipients,
		})
	}
	return flags, nil
}

// deriveDocumentID applies the sequential-mint heuristic: the Document
// token is conventionally minted right after its Alert token. Only a hint;
// non-numeric ids are left for manual pairing.
func deriveDocumentID(alertID string) (string, bool) {
	n, err := strconv.ParseUint(strings.TrimSpace(alertID), 10, 64)
	if err != nil {
		return "", false
	}
	return strconv.FormatUint(n+1, 10), true
}

func placeholderCase(alertID string) string {
	return "PENDING-" + strings.TrimSpace(alertID)
}
