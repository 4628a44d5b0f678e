package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/JGooseK41/NFTServiceApp-sub013/internal/audit"
	"github.com/JGooseK41/NFTServiceApp-sub013/internal/auth"
)

type registerServerRequest struct {
	WalletAddress string `json:"wallet_address"`
	Name          string `json:"name"`
	Agency        string `json:"agency"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	Jurisdiction  string `json:"jurisdiction"`
}

type updateServerStatusRequest struct {
	Status string `json:"status"`
}

func (a *API) handleServersCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.registerServer(w, r)
	case http.MethodGet:
		a.listServers(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

// handleServerResource routes /v1/servers/{addr}[/status].
func (a *API) handleServerResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/servers/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")

	switch {
	case len(parts) == 1:
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.getServer(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "status":
		if r.Method != http.MethodPut {
			methodNotAllowed(w, r, http.MethodPut)
			return
		}
		a.updateServerStatus(w, r, parts[0])
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

// registerServer is open self-registration; accounts start pending and an
// admin approves them before they can serve.
func (a *API) registerServer(w http.ResponseWriter, r *http.Request) {
	var req registerServerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.WalletAddress) == "" || strings.TrimSpace(req.Name) == "" {
		writeError(w, r, http.StatusBadRequest, "wallet_address and name are required")
		return
	}

	ps := &auth.ProcessServer{
		WalletAddress: req.WalletAddress,
		Name:          strings.TrimSpace(req.Name),
		Agency:        strings.TrimSpace(req.Agency),
		Email:         strings.TrimSpace(req.Email),
		Phone:         strings.TrimSpace(req.Phone),
		Jurisdiction:  strings.TrimSpace(req.Jurisdiction),
		Status:        auth.ServerPending,
	}
	if err := a.auth.ProcessServers(r.Context()).Register(r.Context(), ps); err != nil {
		handleAuthStoreError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "server.register", map[string]any{
		"wallet": ps.WalletAddress,
		"agency": ps.Agency,
	})

	w.Header().Set("Location", "/v1/servers/"+ps.WalletAddress)
	writeJSON(w, http.StatusCreated, ps)
}

func (a *API) getServer(w http.ResponseWriter, r *http.Request, wallet string) {
	ps, err := a.auth.ProcessServers(r.Context()).FindByWallet(r.Context(), wallet)
	if err != nil {
		handleAuthStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (a *API) listServers(w http.ResponseWriter, r *http.Request) {
	if !a.ensureRole(w, r, "admin") {
		return
	}
	items, err := a.auth.ProcessServers(r.Context()).List(r.Context())
	if err != nil {
		handleAuthStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) updateServerStatus(w http.ResponseWriter, r *http.Request, wallet string) {
	if !a.ensureRole(w, r, "admin") {
		return
	}
	var req updateServerStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	status := strings.ToLower(strings.TrimSpace(req.Status))
	switch status {
	case auth.ServerPending, auth.ServerApproved, auth.ServerActive, auth.ServerDisabled:
	default:
		writeError(w, r, http.StatusBadRequest, "unknown status")
		return
	}
	if err := a.auth.ProcessServers(r.Context()).UpdateStatus(r.Context(), wallet, status); err != nil {
		handleAuthStoreError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "server.status.update", map[string]any{
		"wallet": wallet,
		"status": status,
	})
	w.WriteHeader(http.StatusNoContent)
}

func handleAuthStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrAlreadyExists):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, auth.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, auth.ErrUnauthorized):
		writeError(w, r, http.StatusUnauthorized, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
