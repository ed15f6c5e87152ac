package api

import (
	"net/http"
	"time"

	"adminpanel/internal/auth"
)

// sharedAdminName is shown for sessions opened with the shared secret
const sharedAdminName = "admin"

type identityResponse struct {
	ID       *int64 `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

func toIdentityResponse(id auth.Identity) identityResponse {
	name := id.Username
	if id.Kind == auth.SharedSecret {
		name = sharedAdminName
	}
	return identityResponse{ID: id.OwnerID(), Username: name, Role: string(id.Role)}
}

// handleLogin exchanges credentials for a session token
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	origin := auth.ClientOrigin(r, s.config.TrustedProxies)
	res, err := s.core.Login(r.Context(), auth.Credential{Username: req.Username, Password: req.Password}, origin)
	if err != nil {
		s.writeLoginError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token":      res.Token,
		"role":       string(res.Identity.Role),
		"user":       toIdentityResponse(res.Identity),
		"expires_at": res.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// handleSession returns the identity behind the caller's token
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	caller := auth.IdentityFrom(r.Context())
	if caller == nil {
		s.writeError(w, r, auth.NewError(auth.KindUnauthorized, "invalid or expired session"))
		return
	}
	writeJSON(w, http.StatusOK, toIdentityResponse(*caller))
}

// handleLogout deletes the caller's session token
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.core.Logout(r.Context(), auth.TokenFromRequest(r)); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleChangePassword rotates the caller's own password
func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	caller := auth.IdentityFrom(r.Context())
	if caller == nil {
		s.writeError(w, r, auth.NewError(auth.KindUnauthorized, "authentication required"))
		return
	}

	var req struct {
		OldPassword string `json:"old_password"`
		NewPassword string `json:"new_password"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.core.ChangePassword(r.Context(), *caller, req.OldPassword, req.NewPassword); err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "password changed",
	})
}
