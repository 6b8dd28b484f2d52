package session

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"streamview/work/types"
)

// TokenCookie is the HTTP-only cookie carrying the signed session token.
// The cookie is the authoritative session transport; the API never reads
// tokens from headers or bodies.
const TokenCookie = "token"

// ActiveProfileCookie caches the active profile client-side so page loads
// can render without a round trip. Entries older than staleAfter are
// discarded on read.
const ActiveProfileCookie = "activeProfile"

// tokenLifetime bounds how long an issued session stays valid. There is no
// server-side revocation list; expiry is the only invalidation mechanism.
const tokenLifetime = 24 * time.Hour

// staleAfter is the maximum age of a cached active profile before reads
// treat it as stale (3,600,000 milliseconds).
const staleAfter = time.Hour

// ErrNoSecret is returned by New when the signing secret is empty.
var ErrNoSecret = errors.New("session secret is empty")

// Identity is the verified content of a session token.
type Identity struct {
	UserID int64  // Account identifier the token was issued for
	Email  string // Email address at issue time
}

// Claims is the JWT payload for session tokens.
type Claims struct {
	UserID int64  `json:"id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// Manager issues and validates signed session tokens and owns the cookie
// lifecycle for both the token and the cached active profile.
type Manager struct {
	secret     []byte
	production bool
}

// New creates a session manager. An empty secret is refused; the caller is
// expected to abort startup on this error rather than run unsigned.
func New(secret string, production bool) (*Manager, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	return &Manager{
		secret:     []byte(secret),
		production: production,
	}, nil
}

// Issue creates a signed HS256 token for the user, valid for 24 hours.
func (m *Manager) Issue(userID int64, email string) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenLifetime)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies a session token. Any failure, whether the
// token is malformed, expired, or signed with the wrong key, yields a nil
// identity; callers treat nil as "not authenticated" without distinguishing
// the cause.
func (m *Manager) Validate(tokenStr string) *Identity {
	if tokenStr == "" {
		return nil
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return nil
	}

	return &Identity{
		UserID: claims.UserID,
		Email:  claims.Email,
	}
}

// SetTokenCookie writes the session cookie on a login response.
func (m *Manager) SetTokenCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(tokenLifetime.Seconds()),
		HttpOnly: true,
		Secure:   m.production,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookies expires both the token and the cached active profile.
// Logout calls this unconditionally, so logging out twice is harmless.
func (m *Manager) ClearSessionCookies(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.production,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     ActiveProfileCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Secure:   m.production,
		SameSite: http.SameSiteLaxMode,
	})
}

// IdentityFromRequest reads and validates the session cookie. Returns nil
// when the cookie is missing or the token fails validation.
func (m *Manager) IdentityFromRequest(r *http.Request) *Identity {
	cookie, err := r.Cookie(TokenCookie)
	if err != nil {
		return nil
	}
	return m.Validate(cookie.Value)
}

// cachedProfile is the JSON blob stored in the activeProfile cookie.
type cachedProfile struct {
	Profile     *types.Profile `json:"profile"`
	LastUpdated int64          `json:"lastUpdated"` // Epoch milliseconds at write time
}

// SetActiveProfileCookie caches the profile client-side with the current
// timestamp. The cookie is not HTTP-only so the UI can read it directly.
func (m *Manager) SetActiveProfileCookie(w http.ResponseWriter, p *types.Profile) {
	blob, err := json.Marshal(cachedProfile{
		Profile:     p,
		LastUpdated: time.Now().UnixMilli(),
	})
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     ActiveProfileCookie,
		Value:    base64.URLEncoding.EncodeToString(blob),
		Path:     "/",
		MaxAge:   int(staleAfter.Seconds()),
		Secure:   m.production,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearActiveProfileCookie drops the cached profile.
func (m *Manager) ClearActiveProfileCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     ActiveProfileCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Secure:   m.production,
		SameSite: http.SameSiteLaxMode,
	})
}

// CachedActiveProfile reads the cached active profile from the request.
// Entries older than one hour are stale: the cookie is cleared on the
// response and nil is returned, forcing the caller back to the database.
func (m *Manager) CachedActiveProfile(w http.ResponseWriter, r *http.Request) *types.Profile {
	cookie, err := r.Cookie(ActiveProfileCookie)
	if err != nil || cookie.Value == "" {
		return nil
	}

	blob, err := base64.URLEncoding.DecodeString(cookie.Value)
	if err != nil {
		m.ClearActiveProfileCookie(w)
		return nil
	}

	var cached cachedProfile
	if err := json.Unmarshal(blob, &cached); err != nil || cached.Profile == nil {
		m.ClearActiveProfileCookie(w)
		return nil
	}

	age := time.Now().UnixMilli() - cached.LastUpdated
	if age > staleAfter.Milliseconds() {
		m.ClearActiveProfileCookie(w)
		return nil
	}

	return cached.Profile
}
