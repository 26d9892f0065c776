package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
)

// handleCredentialStatus reports the current cloud credential state.
//
// The response never includes key or token material, only expiry and mode
// metadata so an operator can see whether re-authentication is required.
func (s *Server) handleCredentialStatus(w http.ResponseWriter, _ *http.Request) {
	status := s.credentials.Status()

	writeJSON(w, http.StatusOK, map[string]any{
		"mode":            status.Mode,
		"expires_at":      status.ExpiresAt,
		"reauth_required": status.ReauthRequired,
		"updated_at":      status.UpdatedAt,
	})
}

// handleAuthorizeURL returns the OAuth authorisation URL for re-linking the
// cloud account. Returns 503 when the bridge is configured in static-key mode.
func (s *Server) handleAuthorizeURL(w http.ResponseWriter, _ *http.Request) {
	if s.oauth == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "OAuth is not configured")
		return
	}

	state := uuid.New().String()
	writeJSON(w, http.StatusOK, map[string]any{
		"authorize_url": s.oauth.AuthCodeURL(state),
		"state":         state,
	})
}

// handleReauth exchanges an OAuth authorisation code for a fresh token pair
// and installs it in the credential store.
func (s *Server) handleReauth(w http.ResponseWriter, r *http.Request) {
	if s.oauth == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "OAuth is not configured")
		return
	}

	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Code == "" {
		writeBadRequest(w, "code field is required")
		return
	}

	token, err := s.oauth.Exchange(r.Context(), req.Code)
	if err != nil {
		s.logger.Warn("OAuth code exchange failed", "error", err)
		writeError(w, http.StatusBadGateway, "exchange_failed", "authorisation code exchange failed")
		return
	}

	if err := s.credentials.SetToken(token); err != nil {
		writeInternalError(w, "failed to store credentials")
		return
	}

	s.logger.Info("cloud credentials refreshed via re-authentication")
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "authenticated",
		"expires_at": token.ExpiresAt,
	})
}

// handleClearCredentials removes stored cloud credentials. Subsequent cloud
// calls fail until the operator re-authenticates.
func (s *Server) handleClearCredentials(w http.ResponseWriter, _ *http.Request) {
	if err := s.credentials.Clear(); err != nil {
		writeInternalError(w, "failed to clear credentials")
		return
	}

	s.logger.Info("cloud credentials cleared")
	writeJSON(w, http.StatusOK, map[string]any{"status": "cleared"})
}
