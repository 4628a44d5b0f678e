package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/JGooseK41/NFTServiceApp-sub013/internal/access"
	"github.com/JGooseK41/NFTServiceApp-sub013/internal/blob"
)

type accessCheckRequest struct {
	WalletAddress   string `json:"wallet_address"`
	AlertTokenID    string `json:"alert_token_id"`
	DocumentTokenID string `json:"document_token_id"`
}

func (a *API) handleAccessCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req accessCheckRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.AlertTokenID) == "" && strings.TrimSpace(req.DocumentTokenID) == "" {
		writeError(w, r, http.StatusBadRequest, "alert_token_id or document_token_id is required")
		return
	}

	decision, err := a.access.CheckAccess(r.Context(), req.WalletAddress, req.AlertTokenID, req.DocumentTokenID)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	// Denial is a normal 200 response carrying has_access=false; the
	// public Alert metadata stays visible either way.
	writeJSON(w, http.StatusOK, decision)
}

// handleDocument serves GET /v1/documents/{hash}. The caller presents the
// access token issued by a prior check plus the wallet it was issued to.
func (a *API) handleDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	hash := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/documents/"), "/")
	if err := blob.ValidateIPFSHash(hash); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid document hash")
		return
	}

	token := strings.TrimSpace(r.URL.Query().Get("access_token"))
	wallet := strings.TrimSpace(r.URL.Query().Get("wallet"))
	if token == "" || wallet == "" {
		writeError(w, r, http.StatusUnauthorized, "access_token and wallet are required")
		return
	}
	if _, err := a.access.RedeemToken(r.Context(), token, wallet); err != nil {
		switch {
		case errors.Is(err, access.ErrTokenInactive):
			writeError(w, r, http.StatusForbidden, "access token expired or revoked")
		default:
			writeError(w, r, http.StatusUnauthorized, "access denied")
		}
		return
	}

	if a.documents == nil {
		writeError(w, r, http.StatusServiceUnavailable, "document storage unavailable")
		return
	}
	data, err := a.documents.Fetch(r.Context(), hash)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "document not found")
			return
		}
		writeError(w, r, http.StatusBadGateway, "document fetch failed")
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
