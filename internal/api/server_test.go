package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"adminpanel/internal/auth"
	"adminpanel/internal/guard"
	"adminpanel/internal/store"
)

type testEnv struct {
	handler http.Handler
	store   *store.Store
	core    *auth.Core
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithConfig(t, &ServerConfig{CORSAllowedOrigin: "*"})
}

func newTestEnvWithConfig(t *testing.T, sc *ServerConfig) *testEnv {
	t.Helper()
	st, err := store.NewStore(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	cfg := auth.DefaultConfig()
	cfg.BcryptCost = bcrypt.MinCost
	core := auth.NewCore(st, cfg, nil)

	srv := NewServer(st, core, guard.New(nil), nil, sc)
	return &testEnv{handler: srv.Handler(), store: st, core: core}
}

func (e *testEnv) addUser(t *testing.T, username, password string, role auth.Role) {
	t.Helper()
	hash, err := e.core.HashPassword(password)
	require.NoError(t, err)
	_, err = e.store.CreateUser(context.Background(), username, hash, role)
	require.NoError(t, err)
}

func (e *testEnv) setShared(t *testing.T, password string) {
	t.Helper()
	hash, err := e.core.HashPassword(password)
	require.NoError(t, err)
	require.NoError(t, e.store.UpdateSharedSecret(context.Background(), hash))
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "1.2.3.4:40000"
	if token != "" {
		req.Header.Set(auth.SessionHeader, token)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func (e *testEnv) login(t *testing.T, username, password string) string {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"username": username, "password": password})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Token
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestLoginLockoutOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "alice", "secret1", auth.RoleEditor)
	wrong := map[string]string{"username": "alice", "password": "wrong"}

	for want := 4; want >= 0; want-- {
		w := env.do(t, http.MethodPost, "/api/auth/login", "", wrong)
		require.Equal(t, http.StatusUnauthorized, w.Code)
		body := decode[errorResponse](t, w)
		require.NotNil(t, body.RemainingAttempts)
		require.Equal(t, want, *body.RemainingAttempts)
	}

	// Correct credentials are still refused while blocked
	w := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"username": "alice", "password": "secret1"})
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	body := decode[errorResponse](t, w)
	require.NotNil(t, body.RetryAfter)
	require.Greater(t, *body.RetryAfter, 0)
	require.LessOrEqual(t, *body.RetryAfter, 300)
	require.Equal(t, strconv.Itoa(*body.RetryAfter), w.Header().Get("Retry-After"))
}

func TestSharedSecretLockoutOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	env.setShared(t, "admin-pass")
	wrong := map[string]string{"password": "wrong"}

	for want := 4; want >= 0; want-- {
		w := env.do(t, http.MethodPost, "/api/auth/login", "", wrong)
		require.Equal(t, http.StatusUnauthorized, w.Code)
		body := decode[errorResponse](t, w)
		require.NotNil(t, body.RemainingAttempts)
		require.Equal(t, want, *body.RemainingAttempts)
	}

	w := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"password": "admin-pass"})
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	body := decode[errorResponse](t, w)
	require.NotNil(t, body.RetryAfter)
	require.Greater(t, *body.RetryAfter, 0)
	require.LessOrEqual(t, *body.RetryAfter, 300)
}

func TestForwardedHeaderRotationStillLocksOut(t *testing.T) {
	proxies, err := auth.ParseTrustedProxies([]string{"10.0.0.0/8"})
	require.NoError(t, err)

	tests := []struct {
		name   string
		remote string
		header func(i int) string
	}{
		// Direct client outside the proxy range sending real-looking addresses
		{"untrusted peer", "1.2.3.4:40000", func(i int) string { return fmt.Sprintf("203.0.113.%d", i+1) }},
		// Trusted proxy relaying garbage
		{"trusted peer with junk", "10.1.2.3:40000", func(i int) string { return fmt.Sprintf("not-an-ip-%d", i) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnvWithConfig(t, &ServerConfig{CORSAllowedOrigin: "*", TrustedProxies: proxies})
			env.setShared(t, "admin-pass")

			codes := make([]int, 0, 6)
			for i := 0; i < 6; i++ {
				body, err := json.Marshal(map[string]string{"password": "wrong"})
				require.NoError(t, err)
				req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body))
				req.RemoteAddr = tt.remote
				req.Header.Set("X-Forwarded-For", tt.header(i))
				w := httptest.NewRecorder()
				env.handler.ServeHTTP(w, req)
				codes = append(codes, w.Code)
			}
			require.Equal(t, []int{401, 401, 401, 401, 401, 429}, codes)

			// Every attempt landed on the peer's ledger row
			peer, _, err := net.SplitHostPort(tt.remote)
			require.NoError(t, err)
			rec, err := env.store.GetLockout(context.Background(), peer)
			require.NoError(t, err)
			require.NotNil(t, rec)
			require.Equal(t, 5, rec.Attempts)

			spoofed, err := env.store.GetLockout(context.Background(), tt.header(0))
			require.NoError(t, err)
			require.Nil(t, spoofed)
		})
	}
}

func TestForwardedHeaderFromTrustedProxy(t *testing.T) {
	proxies, err := auth.ParseTrustedProxies([]string{"10.0.0.0/8"})
	require.NoError(t, err)
	env := newTestEnvWithConfig(t, &ServerConfig{CORSAllowedOrigin: "*", TrustedProxies: proxies})
	env.setShared(t, "admin-pass")

	send := func(client, password string) int {
		body, err := json.Marshal(map[string]string{"password": password})
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body))
		req.RemoteAddr = "10.0.0.5:40000"
		req.Header.Set("X-Forwarded-For", client)
		w := httptest.NewRecorder()
		env.handler.ServeHTTP(w, req)
		return w.Code
	}

	for i := 0; i < 5; i++ {
		require.Equal(t, http.StatusUnauthorized, send("198.51.100.7", "wrong"))
	}
	require.Equal(t, http.StatusTooManyRequests, send("198.51.100.7", "admin-pass"))
	// A different client behind the same proxy has its own ledger
	require.Equal(t, http.StatusOK, send("198.51.100.8", "admin-pass"))
}

func TestStatusForPrefersAuthKind(t *testing.T) {
	wrapped := &auth.Error{Kind: auth.KindConfiguration, Message: "failed to update password", Err: store.ErrNotFound}
	status, msg := statusFor(wrapped)
	require.Equal(t, http.StatusInternalServerError, status)
	require.Equal(t, "configuration error", msg)

	status, _ = statusFor(fmt.Errorf("delete editor: %w", store.ErrNotFound))
	require.Equal(t, http.StatusNotFound, status)

	status, _ = statusFor(store.ErrDuplicate)
	require.Equal(t, http.StatusBadRequest, status)
}

func TestLoginBadRequests(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString("{not json"))
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"username": "alice"})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSharedSecretLoginAndSession(t *testing.T) {
	env := newTestEnv(t)

	// No shared secret configured yet
	w := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"password": "admin-pass"})
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Equal(t, "configuration error", decode[errorResponse](t, w).Error)

	env.setShared(t, "admin-pass")
	w = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"password": "admin-pass"})
	require.Equal(t, http.StatusOK, w.Code)
	login := decode[map[string]interface{}](t, w)
	require.Equal(t, "superadmin", login["role"])
	token := login["token"].(string)

	w = env.do(t, http.MethodGet, "/api/auth/session", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	id := decode[identityResponse](t, w)
	require.Nil(t, id.ID)
	require.Equal(t, "superadmin", id.Role)

	w = env.do(t, http.MethodGet, "/api/auth/session", "bogus-token", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodPost, "/api/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = env.do(t, http.MethodGet, "/api/auth/session", token, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestContactOwnershipScenario(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "root", "rootpass", auth.RoleSuperadmin)
	env.addUser(t, "edA", "passA1", auth.RoleEditor)
	env.addUser(t, "edB", "passB1", auth.RoleEditor)

	tokenA := env.login(t, "edA", "passA1")
	tokenB := env.login(t, "edB", "passB1")
	tokenRoot := env.login(t, "root", "rootpass")

	w := env.do(t, http.MethodPost, "/api/contacts", tokenA, map[string]string{"name": "Carol", "telegram": "@carol"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	contact := decode[store.Contact](t, w)
	require.NotNil(t, contact.CreatedBy)
	require.Equal(t, "from-purple-500 to-pink-500", contact.Color)
	path := fmt.Sprintf("/api/contacts/%d", contact.ID)

	w = env.do(t, http.MethodPut, path, tokenB, map[string]string{"name": "Hijacked"})
	require.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodDelete, path, tokenB, nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodPut, path, tokenA, map[string]string{"name": "Caroline", "role": "Lead"})
	require.Equal(t, http.StatusOK, w.Code)
	updated := decode[store.Contact](t, w)
	require.Equal(t, "Caroline", updated.Name)
	require.Equal(t, *contact.CreatedBy, *updated.CreatedBy)

	reorder := map[string]interface{}{"orders": []map[string]int64{{"id": contact.ID, "order_index": 9}}}
	w = env.do(t, http.MethodPatch, "/api/contacts", tokenA, reorder)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodPatch, "/api/contacts", tokenRoot, reorder)
	require.Equal(t, http.StatusOK, w.Code)

	// Anyone can read; B's failed attempts changed nothing
	w = env.do(t, http.MethodGet, "/api/contacts", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[[]store.Contact](t, w)
	require.Len(t, list, 1)
	require.Equal(t, "Caroline", list[0].Name)
	require.Equal(t, int64(9), list[0].OrderIndex)

	// Superadmin may delete anything, then the row is gone
	w = env.do(t, http.MethodDelete, fmt.Sprintf("/api/contacts?id=%d", contact.ID), tokenRoot, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = env.do(t, http.MethodDelete, path, tokenA, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestAnonymousAndInvalidTokens(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/api/contacts", "/api/news"} {
		w := env.do(t, http.MethodGet, path, "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		require.JSONEq(t, "[]", w.Body.String())

		// An invalid token on a read still gets the public view
		w = env.do(t, http.MethodGet, path, "expired-or-made-up", nil)
		require.Equal(t, http.StatusOK, w.Code)

		w = env.do(t, http.MethodPost, path, "", map[string]string{"name": "x", "title": "x"})
		require.Equal(t, http.StatusUnauthorized, w.Code)

		w = env.do(t, http.MethodPost, path, "expired-or-made-up", map[string]string{"name": "x", "title": "x"})
		require.Equal(t, http.StatusUnauthorized, w.Code)

		w = env.do(t, http.MethodDelete, path+"/1", "", nil)
		require.Equal(t, http.StatusUnauthorized, w.Code)

		w = env.do(t, http.MethodPatch, path, "", map[string]interface{}{"orders": []interface{}{}})
		require.Equal(t, http.StatusUnauthorized, w.Code)
	}
}

func TestNewsLifecycle(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "ed", "editor1", auth.RoleEditor)
	token := env.login(t, "ed", "editor1")

	w := env.do(t, http.MethodPost, "/api/news", token, map[string]string{"description": "no title"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/news", token, map[string]string{"title": "Hello", "date": "2024-03-01"})
	require.Equal(t, http.StatusCreated, w.Code)
	item := decode[store.NewsItem](t, w)

	w = env.do(t, http.MethodPut, fmt.Sprintf("/api/news?id=%d", item.ID), token, map[string]string{"title": "Hello again"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "Hello again", decode[store.NewsItem](t, w).Title)

	w = env.do(t, http.MethodPut, "/api/news/999", token, map[string]string{"title": "ghost"})
	require.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodPut, "/api/news", token, map[string]string{"title": "no id"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodDelete, fmt.Sprintf("/api/news/%d", item.ID), token, nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestEditorsManagement(t *testing.T) {
	env := newTestEnv(t)
	env.setShared(t, "admin-pass")
	env.addUser(t, "ed", "editor1", auth.RoleEditor)

	editorToken := env.login(t, "ed", "editor1")
	w := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"password": "admin-pass"})
	require.Equal(t, http.StatusOK, w.Code)
	adminToken := decode[map[string]interface{}](t, w)["token"].(string)

	require.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/api/editors", "", nil).Code)
	require.Equal(t, http.StatusForbidden, env.do(t, http.MethodGet, "/api/editors", editorToken, nil).Code)

	w = env.do(t, http.MethodPost, "/api/editors", adminToken, map[string]string{"username": "newbie", "password": "123"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/editors", adminToken, map[string]string{"username": "newbie", "password": "newbie1"})
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode[store.User](t, w)
	require.Equal(t, "editor", created.Role)
	require.NotContains(t, w.Body.String(), "password")

	w = env.do(t, http.MethodPost, "/api/editors", adminToken, map[string]string{"username": "newbie", "password": "other12"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/api/editors", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	editors := decode[[]store.User](t, w)
	require.Len(t, editors, 2)
	require.Equal(t, "newbie", editors[0].Username)

	newbieToken := env.login(t, "newbie", "newbie1")

	w = env.do(t, http.MethodDelete, fmt.Sprintf("/api/editors/%d", created.ID), adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = env.do(t, http.MethodDelete, fmt.Sprintf("/api/editors?id=%d", created.ID), adminToken, nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	// The deleted editor's session went with the account
	require.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/api/auth/session", newbieToken, nil).Code)
}

func TestChangePasswordOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "ed", "editor1", auth.RoleEditor)
	token := env.login(t, "ed", "editor1")

	w := env.do(t, http.MethodPost, "/api/auth/password", "", map[string]string{"old_password": "editor1", "new_password": "editor2"})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodPost, "/api/auth/password", token, map[string]string{"old_password": "editor1", "new_password": "short"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/auth/password", token, map[string]string{"old_password": "wrong", "new_password": "editor2"})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodPost, "/api/auth/password", token, map[string]string{"old_password": "editor1", "new_password": "editor2"})
	require.Equal(t, http.StatusOK, w.Code)

	env.login(t, "ed", "editor2")
}

func TestPreflightAndHealth(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodOptions, "/api/contacts", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	require.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "X-Session-Token")
	require.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "PATCH")

	w = env.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotEmpty(t, w.Header().Get(RequestIDHeader))
}
