package supabase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/tq-random/tq-random/internal/remote"
)

type gotrueUser struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
	AppMetadata  map[string]any `json:"app_metadata"`
}

func (u gotrueUser) profile() remote.Profile {
	return remote.Profile{ID: u.ID, Email: u.Email, Metadata: u.UserMetadata, IsAdmin: isAdmin(u)}
}

// isAdmin reads app_metadata only; user_metadata is writable by the user
// through PUT /auth/v1/user.
func isAdmin(u gotrueUser) bool {
	v, _ := u.AppMetadata["is_admin"].(bool)
	return v
}

type tokenResponse struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	ExpiresIn    int64      `json:"expires_in"`
	ExpiresAt    int64      `json:"expires_at"`
	User         gotrueUser `json:"user"`
}

func (t tokenResponse) session() remote.Session {
	exp := time.Unix(t.ExpiresAt, 0)
	if t.ExpiresAt == 0 {
		exp = time.Now().Add(time.Duration(t.ExpiresIn) * time.Second)
	}
	return remote.Session{
		UserID:       t.User.ID,
		Email:        t.User.Email,
		Metadata:     t.User.UserMetadata,
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		ExpiresAt:    exp,
	}
}

func (c *Client) SignUp(ctx context.Context, email, password string, metadata map[string]any) (remote.Profile, error) {
	// GoTrue answers with the bare user when email confirmation is on and
	// with a session wrapping it otherwise.
	var out struct {
		gotrueUser
		User *gotrueUser `json:"user"`
	}
	body := map[string]any{"email": email, "password": password, "data": metadata}
	if err := c.do(ctx, "auth", "", http.MethodPost, "/auth/v1/signup", nil, body, &out, nil); err != nil {
		return remote.Profile{}, err
	}
	if out.User != nil {
		return out.User.profile(), nil
	}
	return out.gotrueUser.profile(), nil
}

func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (remote.Session, error) {
	s, err := c.token(ctx, "password", map[string]any{"email": email, "password": password})
	var re *remote.Error
	if errors.As(err, &re) && re.Status == http.StatusBadRequest {
		re.Err = remote.ErrInvalidCredentials
	}
	return s, err
}

func (c *Client) SignInWithIDToken(ctx context.Context, idToken string, id remote.Identity) (remote.Session, error) {
	return c.token(ctx, "id_token", map[string]any{"provider": id.Provider, "id_token": idToken})
}

func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (remote.Session, error) {
	return c.token(ctx, "refresh_token", map[string]any{"refresh_token": refreshToken})
}

func (c *Client) token(ctx context.Context, grant string, body map[string]any) (remote.Session, error) {
	var tr tokenResponse
	q := url.Values{"grant_type": {grant}}
	// token grants never carry a user token
	ctx = remote.WithAccessToken(ctx, "")
	if err := c.do(ctx, "auth", "", http.MethodPost, "/auth/v1/token", q, body, &tr, nil); err != nil {
		return remote.Session{}, err
	}
	s := tr.session()
	if c.tokens != nil {
		if claims, err := c.tokens.Parse(tr.AccessToken); err == nil {
			s.ID = claims.SessionID
		}
	}
	return s, nil
}

func (c *Client) SignOut(ctx context.Context) error {
	if remote.AccessTokenFromContext(ctx) == "" {
		return remote.ErrNotAuthenticated
	}
	return c.do(ctx, "auth", "", http.MethodPost, "/auth/v1/logout", nil, nil, nil, nil)
}

func (c *Client) UpdateUser(ctx context.Context, metadata map[string]any) (remote.Profile, error) {
	if remote.AccessTokenFromContext(ctx) == "" {
		return remote.Profile{}, remote.ErrNotAuthenticated
	}
	var u gotrueUser
	if err := c.do(ctx, "auth", "", http.MethodPut, "/auth/v1/user", nil, map[string]any{"data": metadata}, &u, nil); err != nil {
		return remote.Profile{}, err
	}
	return u.profile(), nil
}

// CurrentSession verifies the token locally when the JWT secret is
// configured and asks GoTrue otherwise. Rejected tokens mean anonymous.
func (c *Client) CurrentSession(ctx context.Context) (*remote.Session, error) {
	tok := remote.AccessTokenFromContext(ctx)
	if tok == "" {
		return nil, nil
	}
	if c.tokens != nil {
		claims, err := c.tokens.Parse(tok)
		if err != nil {
			return nil, nil
		}
		s := &remote.Session{
			ID:          claims.SessionID,
			UserID:      claims.Subject,
			Email:       claims.Email,
			Metadata:    claims.UserMetadata,
			AccessToken: tok,
		}
		if claims.ExpiresAt != nil {
			s.ExpiresAt = claims.ExpiresAt.Time
		}
		return s, nil
	}

	u, err := c.user(ctx)
	var re *remote.Error
	if errors.As(err, &re) && (re.Status == http.StatusUnauthorized || re.Status == http.StatusForbidden) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", remote.ErrAuthResolution, err)
	}
	return &remote.Session{UserID: u.ID, Email: u.Email, Metadata: u.UserMetadata, AccessToken: tok}, nil
}

func (c *Client) CurrentUser(ctx context.Context) (remote.Profile, error) {
	if remote.AccessTokenFromContext(ctx) == "" {
		return remote.Profile{}, fmt.Errorf("%w: %w", remote.ErrAuthResolution, remote.ErrNotAuthenticated)
	}
	u, err := c.user(ctx)
	if err != nil {
		return remote.Profile{}, fmt.Errorf("%w: %w", remote.ErrAuthResolution, err)
	}
	return u.profile(), nil
}

func (c *Client) user(ctx context.Context) (gotrueUser, error) {
	var u gotrueUser
	err := c.do(ctx, "auth", "", http.MethodGet, "/auth/v1/user", nil, nil, &u, nil)
	return u, err
}
