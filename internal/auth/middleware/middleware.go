package auth

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tq-random/tq-random/internal/remote"
)

// AccessCookie carries the access token for browser navigations.
const AccessCookie = "tq_access_token"

// AuthService signs and verifies HS256 access tokens. The claim layout is
// the one Supabase issues, so the same service verifies tokens minted by
// the SQL backend and by a hosted project sharing the secret.
type AuthService struct{ hmac []byte }

func NewAuthService(secret string) *AuthService { return &AuthService{hmac: []byte(secret)} }

type Claims struct {
	Email        string         `json:"email,omitempty"`
	SessionID    string         `json:"session_id,omitempty"`
	Role         string         `json:"role,omitempty"` // "authenticated"
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
	jwt.RegisteredClaims
}

func (a *AuthService) IssueJWT(sub, email, sessionID string, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(ttl)
	claims := &Claims{
		Email:     email,
		SessionID: sessionID,
		Role:      "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			Issuer:    "tq-random",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := t.SignedString(a.hmac)
	return s, exp, err
}

func (a *AuthService) Parse(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return a.hmac, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	c, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || c.Subject == "" {
		return nil, errors.New("invalid token")
	}
	return c, nil
}

// TokenFromRequest reads a bearer token, falling back to the access cookie.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if c, err := r.Cookie(AccessCookie); err == nil {
		return c.Value
	}
	return ""
}

// BearerToken scopes the caller's token to the request context without
// validating it; the backend decides what the token is worth.
func BearerToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tok := TokenFromRequest(r); tok != "" {
			r = r.WithContext(remote.WithAccessToken(r.Context(), tok))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireSession rejects requests without a live session and records the
// session's user id as the request subject.
func RequireSession(store remote.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := store.CurrentSession(r.Context())
			if err != nil {
				log.Printf("session lookup failed: %v", err)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if sess == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSubject(r.Context(), sess.UserID)))
		})
	}
}

// SetAccessCookie stores token for browser navigations until exp.
func SetAccessCookie(w http.ResponseWriter, token string, exp time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     AccessCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
		Expires:  exp,
	})
}

func ClearAccessCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{Name: AccessCookie, Value: "", Path: "/", Expires: time.Unix(0, 0), MaxAge: -1})
}
