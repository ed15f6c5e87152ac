package api

import (
	"net/http"
	"strings"

	"adminpanel/internal/auth"
	"adminpanel/internal/guard"
	"adminpanel/internal/store"
)

// authorize runs the guard and writes the denial. It reports whether the
// handler may go on to mutate storage.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request, op guard.Operation, id int64, owners guard.OwnerLookup) bool {
	decision, err := s.guard.Authorize(r.Context(), auth.IdentityFrom(r.Context()), op, id, owners)
	if err != nil {
		s.writeError(w, r, auth.NewError(auth.KindConfiguration, err.Error()))
		return false
	}
	if decision != guard.Allow {
		s.writeError(w, r, decision.Err())
		return false
	}
	return true
}

type reorderRequest struct {
	Orders []store.OrderUpdate `json:"orders"`
}

// Contacts

type contactRequest struct {
	Name     string `json:"name"`
	Role     string `json:"role"`
	Telegram string `json:"telegram"`
	Color    string `json:"color"`
}

func (c contactRequest) fields() (store.ContactFields, error) {
	f := store.ContactFields{
		Name:     strings.TrimSpace(c.Name),
		Role:     strings.TrimSpace(c.Role),
		Telegram: strings.TrimSpace(c.Telegram),
		Color:    strings.TrimSpace(c.Color),
	}
	if f.Name == "" {
		return f, auth.NewError(auth.KindBadRequest, "name is required")
	}
	return f, nil
}

func (s *Server) handleListContacts(w http.ResponseWriter, r *http.Request) {
	contacts, err := s.store.ListContacts(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, contacts)
}

func (s *Server) handleCreateContact(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r, guard.OpCreate, 0, nil) {
		return
	}

	var req contactRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	f, err := req.fields()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	caller := auth.IdentityFrom(r.Context())
	contact, err := s.store.CreateContact(r.Context(), f, caller.OwnerID())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.log(r).Info("contact %d created by %s", contact.ID, caller.Role)
	writeJSON(w, http.StatusCreated, contact)
}

func (s *Server) handleUpdateContact(w http.ResponseWriter, r *http.Request) {
	id, err := resourceID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !s.authorize(w, r, guard.OpUpdate, id, s.store.ContactOwners()) {
		return
	}

	var req contactRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	f, err := req.fields()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	contact, err := s.store.UpdateContact(r.Context(), id, f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, contact)
}

func (s *Server) handleDeleteContact(w http.ResponseWriter, r *http.Request) {
	id, err := resourceID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !s.authorize(w, r, guard.OpDelete, id, s.store.ContactOwners()) {
		return
	}

	if err := s.store.DeleteContact(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleReorderContacts(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r, guard.OpReorder, 0, nil) {
		return
	}

	var req reorderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.store.ReorderContacts(r.Context(), req.Orders); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// News

type newsRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Date        string `json:"date"`
}

func (n newsRequest) fields() (store.NewsFields, error) {
	f := store.NewsFields{
		Title:       strings.TrimSpace(n.Title),
		Description: n.Description,
		Date:        strings.TrimSpace(n.Date),
	}
	if f.Title == "" {
		return f, auth.NewError(auth.KindBadRequest, "title is required")
	}
	return f, nil
}

func (s *Server) handleListNews(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.ListNews(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleCreateNews(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r, guard.OpCreate, 0, nil) {
		return
	}

	var req newsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	f, err := req.fields()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	caller := auth.IdentityFrom(r.Context())
	item, err := s.store.CreateNews(r.Context(), f, caller.OwnerID())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.log(r).Info("news %d created by %s", item.ID, caller.Role)
	writeJSON(w, http.StatusCreated, item)
}

func (s *Server) handleUpdateNews(w http.ResponseWriter, r *http.Request) {
	id, err := resourceID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !s.authorize(w, r, guard.OpUpdate, id, s.store.NewsOwners()) {
		return
	}

	var req newsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	f, err := req.fields()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	item, err := s.store.UpdateNews(r.Context(), id, f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleDeleteNews(w http.ResponseWriter, r *http.Request) {
	id, err := resourceID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !s.authorize(w, r, guard.OpDelete, id, s.store.NewsOwners()) {
		return
	}

	if err := s.store.DeleteNews(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleReorderNews(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r, guard.OpReorder, 0, nil) {
		return
	}

	var req reorderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.store.ReorderNews(r.Context(), req.Orders); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
