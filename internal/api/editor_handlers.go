package api

import (
	"net/http"
	"strings"

	"adminpanel/internal/auth"
	"adminpanel/internal/guard"
)

// requireSuperadmin writes the denial for non-superadmin callers
func (s *Server) requireSuperadmin(w http.ResponseWriter, r *http.Request) bool {
	decision := s.guard.RequireRole(auth.IdentityFrom(r.Context()), auth.RoleSuperadmin)
	if decision != guard.Allow {
		s.writeError(w, r, decision.Err())
		return false
	}
	return true
}

func (s *Server) handleListEditors(w http.ResponseWriter, r *http.Request) {
	if !s.requireSuperadmin(w, r) {
		return
	}

	editors, err := s.store.ListUsersByRole(r.Context(), auth.RoleEditor)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, editors)
}

func (s *Server) handleCreateEditor(w http.ResponseWriter, r *http.Request) {
	if !s.requireSuperadmin(w, r) {
		return
	}

	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		s.writeError(w, r, auth.NewError(auth.KindBadRequest, "username and password are required"))
		return
	}
	if err := s.core.ValidateNewPassword(req.Password); err != nil {
		s.writeError(w, r, err)
		return
	}

	hash, err := s.core.HashPassword(req.Password)
	if err != nil {
		s.writeError(w, r, auth.NewError(auth.KindConfiguration, err.Error()))
		return
	}

	user, err := s.store.CreateUser(r.Context(), username, hash, auth.RoleEditor)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.log(r).Info("editor %d created", user.ID)
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) handleDeleteEditor(w http.ResponseWriter, r *http.Request) {
	if !s.requireSuperadmin(w, r) {
		return
	}

	id, err := resourceID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.store.DeleteUserWithRole(r.Context(), id, auth.RoleEditor); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.log(r).Info("editor %d deleted", id)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
