package api

import (
	"context"
	"net"
	"net/http"

	"github.com/gorilla/mux"

	"adminpanel/internal/auth"
	"adminpanel/internal/guard"
	"adminpanel/internal/logging"
	"adminpanel/internal/store"
)

// Server holds dependencies and provides HTTP handlers
type Server struct {
	store  Store
	core   *auth.Core
	guard  *guard.Guard
	logger *logging.Logger
	config *ServerConfig
}

// Store interface for API operations
type Store interface {
	Ping(ctx context.Context) error

	ListContacts(ctx context.Context) ([]store.Contact, error)
	CreateContact(ctx context.Context, f store.ContactFields, createdBy *int64) (*store.Contact, error)
	UpdateContact(ctx context.Context, id int64, f store.ContactFields) (*store.Contact, error)
	DeleteContact(ctx context.Context, id int64) error
	ReorderContacts(ctx context.Context, updates []store.OrderUpdate) error
	ContactOwners() store.Owners

	ListNews(ctx context.Context) ([]store.NewsItem, error)
	CreateNews(ctx context.Context, f store.NewsFields, createdBy *int64) (*store.NewsItem, error)
	UpdateNews(ctx context.Context, id int64, f store.NewsFields) (*store.NewsItem, error)
	DeleteNews(ctx context.Context, id int64) error
	ReorderNews(ctx context.Context, updates []store.OrderUpdate) error
	NewsOwners() store.Owners

	CreateUser(ctx context.Context, username, passwordHash string, role auth.Role) (*store.User, error)
	ListUsersByRole(ctx context.Context, role auth.Role) ([]store.User, error)
	DeleteUserWithRole(ctx context.Context, userID int64, role auth.Role) error
}

// ServerConfig holds server configuration
type ServerConfig struct {
	// TrustedProxies are the peers whose X-Forwarded-For / X-Real-IP set the
	// lockout origin. Empty means forwarding headers are ignored.
	TrustedProxies    []*net.IPNet
	CORSAllowedOrigin string
}

// NewServer creates a server with its dependencies
func NewServer(st Store, core *auth.Core, g *guard.Guard, logger *logging.Logger, config *ServerConfig) *Server {
	if logger == nil {
		logger = logging.Nop()
	}
	if config == nil {
		config = &ServerConfig{CORSAllowedOrigin: "*"}
	}
	return &Server{
		store:  st,
		core:   core,
		guard:  g,
		logger: logger,
		config: config,
	}
}

// Handler returns the full HTTP handler. Preflight and identity resolution run
// ahead of routing so OPTIONS never reaches a handler.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	s.RegisterRoutes(r)

	var h http.Handler = r
	h = auth.Middleware(s.core, s.writeError)(h)
	h = s.cors(h)
	h = s.requestLogger(h)
	return h
}

// RegisterRoutes sets up all HTTP routes
func (s *Server) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)
	api.HandleFunc("/auth/session", s.handleSession).Methods(http.MethodGet)
	api.HandleFunc("/auth/logout", s.handleLogout).Methods(http.MethodPost)
	api.HandleFunc("/auth/password", s.handleChangePassword).Methods(http.MethodPost, http.MethodPut)

	api.HandleFunc("/contacts", s.handleListContacts).Methods(http.MethodGet)
	api.HandleFunc("/contacts", s.handleCreateContact).Methods(http.MethodPost)
	api.HandleFunc("/contacts", s.handleReorderContacts).Methods(http.MethodPatch)
	api.HandleFunc("/contacts", s.handleUpdateContact).Methods(http.MethodPut).Queries("id", "{id}")
	api.HandleFunc("/contacts", s.handleDeleteContact).Methods(http.MethodDelete).Queries("id", "{id}")
	api.HandleFunc("/contacts/{id:[0-9]+}", s.handleUpdateContact).Methods(http.MethodPut)
	api.HandleFunc("/contacts/{id:[0-9]+}", s.handleDeleteContact).Methods(http.MethodDelete)
	api.HandleFunc("/contacts", s.handleMissingID).Methods(http.MethodPut, http.MethodDelete)

	api.HandleFunc("/news", s.handleListNews).Methods(http.MethodGet)
	api.HandleFunc("/news", s.handleCreateNews).Methods(http.MethodPost)
	api.HandleFunc("/news", s.handleReorderNews).Methods(http.MethodPatch)
	api.HandleFunc("/news", s.handleUpdateNews).Methods(http.MethodPut).Queries("id", "{id}")
	api.HandleFunc("/news", s.handleDeleteNews).Methods(http.MethodDelete).Queries("id", "{id}")
	api.HandleFunc("/news/{id:[0-9]+}", s.handleUpdateNews).Methods(http.MethodPut)
	api.HandleFunc("/news/{id:[0-9]+}", s.handleDeleteNews).Methods(http.MethodDelete)
	api.HandleFunc("/news", s.handleMissingID).Methods(http.MethodPut, http.MethodDelete)

	api.HandleFunc("/editors", s.handleListEditors).Methods(http.MethodGet)
	api.HandleFunc("/editors", s.handleCreateEditor).Methods(http.MethodPost)
	api.HandleFunc("/editors", s.handleDeleteEditor).Methods(http.MethodDelete).Queries("id", "{id}")
	api.HandleFunc("/editors/{id:[0-9]+}", s.handleDeleteEditor).Methods(http.MethodDelete)
	api.HandleFunc("/editors", s.handleMissingID).Methods(http.MethodDelete)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.log(r).Error("health check failed: %v", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
