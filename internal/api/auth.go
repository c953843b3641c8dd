package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/nerrad567/showctl/internal/audit"
	"github.com/nerrad567/showctl/internal/auth"
)

// loginRequest is the request body for POST /auth/login.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// loginResponse is the response body for POST /auth/login.
type loginResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int       `json:"expires_in"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// handleLogin checks the operator credentials and returns an access token.
// Both outcomes are audited.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeBadRequest(w, "username and password are required")
		return
	}

	if err := s.operator.Authenticate(req.Username, req.Password); err != nil {
		if !errors.Is(err, auth.ErrInvalidCredentials) {
			s.logger.Error("verifying operator password", "error", err)
		}
		s.auditLogin(r, audit.ActionLoginFailed, req.Username)
		writeUnauthorized(w, "invalid credentials")
		return
	}

	token, err := s.issuer.Issue(req.Username)
	if err != nil {
		s.logger.Error("issuing access token", "error", err)
		writeInternalError(w, "failed to generate token")
		return
	}
	s.auditLogin(r, audit.ActionLogin, req.Username)

	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: token.Value,
		TokenType:   "Bearer",
		ExpiresIn:   int(time.Until(token.ExpiresAt).Seconds()),
		ExpiresAt:   token.ExpiresAt,
	})
}

// handleWSTicket issues a single-use WebSocket ticket for the caller so the
// access token never appears in a URL.
func (s *Server) handleWSTicket(w http.ResponseWriter, r *http.Request) {
	ticket := s.tickets.Issue(operatorFromContext(r.Context()))
	writeJSON(w, http.StatusOK, map[string]any{
		"ticket":     ticket,
		"expires_in": int(s.tickets.TTL().Seconds()),
	})
}

func (s *Server) auditLogin(r *http.Request, action, username string) {
	if s.audit == nil {
		return
	}
	s.audit.Log(audit.Entry{
		Action:     action,
		EntityType: audit.EntityOperator,
		EntityID:   username,
		UserID:     username,
		Source:     audit.SourceAPI,
		Details:    map[string]any{"remote_ip": clientIP(r)},
	})
}
