package auth

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// SessionHeader is the header the admin frontend sends its token in
const SessionHeader = "X-Session-Token"

// SessionCookie is the cookie name accepted as a token fallback
const SessionCookie = "session_token"

// TokenValidator resolves a session token to an identity
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*Identity, error)
}

// Middleware resolves the caller identity for every request.
// A missing, unknown or expired token leaves the request anonymous; handlers
// and the guard decide whether anonymous is acceptable. Store failures are
// passed to onError and stop the request.
func Middleware(v TokenValidator, onError func(w http.ResponseWriter, r *http.Request, err error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			id, err := v.ValidateToken(r.Context(), token)
			if err != nil {
				if IsKind(err, KindUnauthorized) {
					next.ServeHTTP(w, r)
					return
				}
				onError(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), *id)))
		})
	}
}

// TokenFromRequest extracts the session token from the request.
// Checks X-Session-Token, then Authorization: Bearer, then the session_token cookie.
func TokenFromRequest(r *http.Request) string {
	if token := strings.TrimSpace(r.Header.Get(SessionHeader)); token != "" {
		return token
	}

	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}

	cookie, err := r.Cookie(SessionCookie)
	if err == nil {
		return cookie.Value
	}

	return ""
}

// ParseTrustedProxies parses the proxy allow-list. Entries are CIDRs or bare
// IP addresses.
func ParseTrustedProxies(entries []string) ([]*net.IPNet, error) {
	nets := make([]*net.IPNet, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if !strings.Contains(entry, "/") {
			ip := net.ParseIP(entry)
			if ip == nil {
				return nil, fmt.Errorf("invalid trusted proxy %q", entry)
			}
			bits := 128
			if ip.To4() != nil {
				ip = ip.To4()
				bits = 32
			}
			nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, n, err := net.ParseCIDR(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", entry, err)
		}
		nets = append(nets, n)
	}
	return nets, nil
}

// ClientOrigin returns the network origin used as the lockout key.
// X-Forwarded-For and X-Real-IP are only read when the direct peer is inside
// trustedProxies, and only a parseable IP is accepted from them. Anything else
// falls back to the peer address.
func ClientOrigin(r *http.Request, trustedProxies []*net.IPNet) string {
	peer := remoteHost(r.RemoteAddr)
	if !isTrustedProxy(peer, trustedProxies) {
		return peer
	}

	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
			return ip.String()
		}
	}
	if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
		return ip.String()
	}

	return peer
}

func remoteHost(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

func isTrustedProxy(peer string, trustedProxies []*net.IPNet) bool {
	if len(trustedProxies) == 0 {
		return false
	}
	ip := net.ParseIP(peer)
	if ip == nil {
		return false
	}
	for _, n := range trustedProxies {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
