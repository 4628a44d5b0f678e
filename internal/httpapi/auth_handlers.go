package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/JGooseK41/NFTServiceApp-sub013/internal/audit"
	"github.com/JGooseK41/NFTServiceApp-sub013/internal/auth"
)

type tokenRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

const tokenTTL = 15 * time.Minute

// handleAuthToken exchanges admin credentials for a short-lived JWT.
// Failed logins return the same 401 regardless of whether the account
// exists.
func (a *API) handleAuthToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req tokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := a.auth.AdminUsers(r.Context()).FindByEmail(r.Context(), email)
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err := auth.VerifyPassword(user.PasswordHash, req.Password); err != nil {
		writeError(w, r, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := auth.GenerateToken(user.ID, []string{user.Role}, tokenTTL)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "token generation failed")
		return
	}

	expiresAt := time.Now().UTC().Add(tokenTTL)
	_ = a.auth.AccessLogs(r.Context()).Append(r.Context(), &auth.AccessLogEntry{
		AdminID: user.ID,
		Action:  "login",
	})
	_ = audit.LogEvent(r.Context(), "auth.token.issued", map[string]any{
		"user":       user.ID,
		"role":       user.Role,
		"expires_at": expiresAt.Format(time.RFC3339),
	})

	writeJSON(w, http.StatusOK, tokenResponse{
		Token:     token,
		ExpiresAt: expiresAt,
	})
}
