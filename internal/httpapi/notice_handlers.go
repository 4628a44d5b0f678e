package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/JGooseK41/NFTServiceApp-sub013/internal/access"
	"github.com/JGooseK41/NFTServiceApp-sub013/internal/audit"
	"github.com/JGooseK41/NFTServiceApp-sub013/internal/notice"
	"github.com/JGooseK41/NFTServiceApp-sub013/internal/stream"
)

type createNoticeRequest struct {
	CaseNumber      string   `json:"case_number"`
	AlertTokenID    string   `json:"alert_token_id"`
	DocumentTokenID string   `json:"document_token_id"`
	Recipients      []string `json:"recipients"`
	RecipientsRaw   string   `json:"recipients_raw"`
	IPFSHash        string   `json:"ipfs_hash"`
	EncryptionKey   string   `json:"encryption_key"`
	Chain           string   `json:"chain"`
	ExplorerURL     string   `json:"explorer_url"`
}

type backfillRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

type logViewRequest struct {
	ViewerAddress string `json:"viewer_address"`
	DocumentID    string `json:"document_id"`
	ViewType      string `json:"view_type"`
}

type acceptNoticeRequest struct {
	TxID string `json:"tx_id"`
}

type viewHistoryResponse struct {
	Items []access.View `json:"items"`
}

// noticeSummary is the Alert-tier projection of a record. The restricted
// fields (document pointer, encryption key, recipient list) never appear
// here; recipients reach them through the access check.
type noticeSummary struct {
	ID           string        `json:"id"`
	CaseNumber   string        `json:"case_number"`
	AlertTokenID string        `json:"alert_token_id"`
	Chain        string        `json:"chain,omitempty"`
	Status       notice.Status `json:"status"`
	ServedAt     time.Time     `json:"served_at"`
	Accepted     bool          `json:"accepted"`
	AcceptedAt   *time.Time    `json:"accepted_at,omitempty"`
	ExplorerURL  string        `json:"explorer_url,omitempty"`
}

func summarize(rec notice.Record) noticeSummary {
	return noticeSummary{
		ID:           rec.ID,
		CaseNumber:   rec.CaseNumber,
		AlertTokenID: rec.AlertTokenID,
		Chain:        rec.Chain,
		Status:       rec.Status(),
		ServedAt:     rec.ServedAt,
		Accepted:     rec.Accepted,
		AcceptedAt:   rec.AcceptedAt,
		ExplorerURL:  rec.ExplorerURL,
	}
}

func summarizeAll(recs []notice.Record) []noticeSummary {
	out := make([]noticeSummary, 0, len(recs))
	for _, rec := range recs {
		out = append(out, summarize(rec))
	}
	return out
}

func (a *API) handleNoticesCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createNotice(w, r)
	case http.MethodGet:
		a.listNotices(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

// handleNoticeResource routes /v1/notices/{case}[/accept|/views|/backfill].
func (a *API) handleNoticeResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/notices/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	caseNumber := parts[0]

	switch {
	case len(parts) == 1:
		switch r.Method {
		case http.MethodGet:
			a.getNotice(w, r, caseNumber)
		case http.MethodDelete:
			a.deleteOrphan(w, r, caseNumber)
		default:
			methodNotAllowed(w, r, http.MethodGet, http.MethodDelete)
		}
	case len(parts) == 2 && parts[1] == "accept":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.acceptNotice(w, r, caseNumber)
	case len(parts) == 2 && parts[1] == "views":
		switch r.Method {
		case http.MethodPost:
			a.logView(w, r, caseNumber)
		case http.MethodGet:
			a.viewHistory(w, r, caseNumber)
		default:
			methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
		}
	case len(parts) == 2 && parts[1] == "backfill":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.backfillNotice(w, r, caseNumber)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) createNotice(w http.ResponseWriter, r *http.Request) {
	if !a.ensureRole(w, r, "admin", "server") {
		return
	}
	var req createNoticeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	recipients := notice.NormalizeRecipients(req.Recipients)
	if req.RecipientsRaw != "" {
		recipients = notice.NormalizeRecipients(append(recipients, notice.ParseRecipients(req.RecipientsRaw)...))
	}

	rec := notice.Record{
		CaseNumber:      strings.TrimSpace(req.CaseNumber),
		AlertTokenID:    strings.TrimSpace(req.AlertTokenID),
		DocumentTokenID: strings.TrimSpace(req.DocumentTokenID),
		Recipients:      recipients,
		IPFSHash:        strings.TrimSpace(req.IPFSHash),
		EncryptionKey:   req.EncryptionKey,
		Chain:           strings.TrimSpace(req.Chain),
		ExplorerURL:     strings.TrimSpace(req.ExplorerURL),
		PairingSource:   notice.PairingChain,
		Verified:        true,
	}
	if err := rec.Validate(); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	stored, err := a.notices.UpsertNotice(r.Context(), rec)
	if err != nil {
		handleNoticeError(w, r, err)
		return
	}

	a.publish(stream.ServiceEvent{
		Kind:         stream.KindServed,
		CaseNumber:   stored.CaseNumber,
		AlertTokenID: stored.AlertTokenID,
		Chain:        stored.Chain,
	})
	_ = audit.LogEvent(r.Context(), "notice.upsert", map[string]any{
		"case_number":    stored.CaseNumber,
		"alert_token_id": stored.AlertTokenID,
		"recipients":     len(stored.Recipients),
	})

	w.Header().Set("Location", "/v1/notices/"+stored.CaseNumber)
	writeJSON(w, http.StatusCreated, stored)
}

func (a *API) listNotices(w http.ResponseWriter, r *http.Request) {
	if !a.ensureRole(w, r, "admin") {
		return
	}
	items, err := a.notices.ListAll(r.Context())
	if err != nil {
		handleNoticeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) getNotice(w http.ResponseWriter, r *http.Request, caseNumber string) {
	rec, err := a.notices.FindByCase(r.Context(), caseNumber)
	if err != nil {
		handleNoticeError(w, r, err)
		return
	}
	if !a.privilegedReader(r) {
		writeJSON(w, http.StatusOK, summarize(rec))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// acceptNotice records legal acceptance. Acceptance is terminal and never
// regresses, so only the serving side may report it, after observing the
// recipient's signature transaction on chain.
func (a *API) acceptNotice(w http.ResponseWriter, r *http.Request, caseNumber string) {
	if !a.ensureRole(w, r, "admin", "server") {
		return
	}
	var req acceptNoticeRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
	}

	rec, err := a.notices.MarkAccepted(r.Context(), caseNumber, time.Now().UTC())
	if err != nil {
		handleNoticeError(w, r, err)
		return
	}

	a.publish(stream.ServiceEvent{
		Kind:         stream.KindAccepted,
		CaseNumber:   rec.CaseNumber,
		AlertTokenID: rec.AlertTokenID,
		Chain:        rec.Chain,
	})
	_ = audit.LogEvent(r.Context(), "notice.accept", map[string]any{
		"case_number": rec.CaseNumber,
		"tx_id":       req.TxID,
	})

	writeJSON(w, http.StatusOK, rec)
}

func (a *API) logView(w http.ResponseWriter, r *http.Request, caseNumber string) {
	var req logViewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := a.notices.FindByCase(r.Context(), caseNumber)
	if err != nil {
		handleNoticeError(w, r, err)
		return
	}

	view := access.View{
		NoticeID:      rec.AlertTokenID,
		DocumentID:    strings.TrimSpace(req.DocumentID),
		ViewerAddress: strings.TrimSpace(req.ViewerAddress),
		ViewType:      strings.TrimSpace(req.ViewType),
	}
	if err := a.access.LogView(r.Context(), view); err != nil {
		handleAccessError(w, r, err)
		return
	}

	a.publish(stream.ServiceEvent{
		Kind:         stream.KindViewed,
		CaseNumber:   rec.CaseNumber,
		AlertTokenID: rec.AlertTokenID,
		Wallet:       view.ViewerAddress,
		Chain:        rec.Chain,
	})

	writeJSON(w, http.StatusCreated, map[string]any{"status": "logged"})
}

func (a *API) viewHistory(w http.ResponseWriter, r *http.Request, caseNumber string) {
	rec, err := a.notices.FindByCase(r.Context(), caseNumber)
	if err != nil {
		handleNoticeError(w, r, err)
		return
	}
	items, err := a.access.ViewHistory(r.Context(), rec.AlertTokenID)
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewHistoryResponse{Items: items})
}

func (a *API) backfillNotice(w http.ResponseWriter, r *http.Request, caseNumber string) {
	if !a.ensureRole(w, r, "admin") {
		return
	}
	var req backfillRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.notices.BackfillField(r.Context(), caseNumber, req.Field, req.Value); err != nil {
		handleNoticeError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "notice.backfill", map[string]any{
		"case_number": caseNumber,
		"field":       req.Field,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) deleteOrphan(w http.ResponseWriter, r *http.Request, caseNumber string) {
	if !a.ensureRole(w, r, "admin") {
		return
	}
	if err := a.notices.DeleteOrphan(r.Context(), caseNumber); err != nil {
		handleNoticeError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "notice.delete_orphan", map[string]any{
		"case_number": caseNumber,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleWalletResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/wallets/"), "/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[1] != "notices" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	items, err := a.notices.FindByRecipient(r.Context(), parts[0])
	if err != nil {
		handleNoticeError(w, r, err)
		return
	}
	if !a.privilegedReader(r) {
		writeJSON(w, http.StatusOK, map[string]any{"items": summarizeAll(items)})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) publish(evt stream.ServiceEvent) {
	if a.stream != nil {
		a.stream.Publish(evt)
	}
}

func handleNoticeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, notice.ErrNoCaseOrToken),
		errors.Is(err, notice.ErrNoRecipients),
		errors.Is(err, notice.ErrUnknownField):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, notice.ErrFieldSet), errors.Is(err, notice.ErrNotOrphan):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, notice.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func handleAccessError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, access.ErrInvalidView):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, access.ErrTokenNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, access.ErrTokenInactive):
		writeError(w, r, http.StatusForbidden, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
