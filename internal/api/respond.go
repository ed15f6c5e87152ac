package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"adminpanel/internal/auth"
	"adminpanel/internal/store"
)

// maxBodyBytes bounds JSON request bodies
const maxBodyBytes = 1 << 20

// errorResponse is the JSON body of every failed request
type errorResponse struct {
	Error             string `json:"error"`
	RemainingAttempts *int   `json:"remaining_attempts,omitempty"`
	RetryAfter        *int   `json:"retry_after,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusFor maps an error to its HTTP status and client-safe message
func statusFor(err error) (int, string) {
	// The auth kind wins over any storage sentinel it wraps
	e, ok := auth.AsError(err)
	if !ok {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return http.StatusNotFound, "resource not found"
		case errors.Is(err, store.ErrDuplicate):
			return http.StatusBadRequest, "user with this username already exists"
		}
		return http.StatusInternalServerError, "internal server error"
	}

	switch e.Kind {
	case auth.KindBadRequest:
		return http.StatusBadRequest, e.Message
	case auth.KindInvalidCredentials:
		return http.StatusUnauthorized, e.Message
	case auth.KindTooManyAttempts:
		return http.StatusTooManyRequests, e.Message
	case auth.KindUnauthorized:
		return http.StatusUnauthorized, e.Message
	case auth.KindForbidden:
		return http.StatusForbidden, e.Message
	case auth.KindNotFound:
		return http.StatusNotFound, e.Message
	default:
		// Storage details stay in the log
		return http.StatusInternalServerError, "configuration error"
	}
}

// writeError writes err as a JSON error. 5xx causes are logged, never echoed.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log(r).Error("%s %s failed: %v", r.Method, r.URL.Path, err)
	}

	body := errorResponse{Error: message}
	if e, ok := auth.AsError(err); ok && e.Kind == auth.KindTooManyAttempts {
		secs := e.RetryAfterSeconds()
		body.RetryAfter = &secs
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}

	writeJSON(w, status, body)
}

// writeLoginError adds remaining_attempts to failed login responses
func (s *Server) writeLoginError(w http.ResponseWriter, r *http.Request, err error) {
	e, ok := auth.AsError(err)
	if !ok || e.Kind != auth.KindInvalidCredentials {
		s.writeError(w, r, err)
		return
	}

	remaining := e.RemainingAttempts
	writeJSON(w, http.StatusUnauthorized, errorResponse{Error: e.Message, RemainingAttempts: &remaining})
}

// decodeJSON reads a bounded JSON body into v
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return auth.NewError(auth.KindBadRequest, "invalid request body")
	}
	return nil
}

// resourceID reads the id from the path or the ?id= query parameter
func resourceID(r *http.Request) (int64, error) {
	raw := mux.Vars(r)["id"]
	if raw == "" {
		raw = r.URL.Query().Get("id")
	}
	if raw == "" {
		return 0, auth.NewError(auth.KindBadRequest, "id is required")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, auth.NewError(auth.KindBadRequest, "invalid id")
	}
	return id, nil
}

func (s *Server) handleMissingID(w http.ResponseWriter, r *http.Request) {
	s.writeError(w, r, auth.NewError(auth.KindBadRequest, "id is required"))
}
