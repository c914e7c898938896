package sqlstore

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/tq-random/tq-random/internal/remote"
)

const minPasswordLen = 6

type userRow struct {
	id       string
	email    string
	hash     string
	metadata map[string]any
	isAdmin  bool
}

func (u userRow) profile() remote.Profile {
	return remote.Profile{ID: u.id, Email: u.email, Metadata: u.metadata, IsAdmin: u.isAdmin}
}

// authError mirrors the status codes GoTrue answers with.
func authError(status int, msg string, err error) error {
	return &remote.Error{Op: "auth", Status: status, Message: msg, Err: err}
}

func (s *Store) SignUp(ctx context.Context, email, password string, metadata map[string]any) (remote.Profile, error) {
	email = normalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return remote.Profile{}, authError(http.StatusUnprocessableEntity, "Unable to validate email address: invalid format", nil)
	}
	if len(password) < minPasswordLen {
		return remote.Profile{}, authError(http.StatusUnprocessableEntity, fmt.Sprintf("Password should be at least %d characters.", minPasswordLen), nil)
	}
	if _, err := s.userByEmail(ctx, email); err == nil {
		return remote.Profile{}, authError(http.StatusUnprocessableEntity, "User already registered", nil)
	} else if !errors.Is(err, sql.ErrNoRows) {
		return remote.Profile{}, remote.OpError("auth", "users", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	if err != nil {
		return remote.Profile{}, err
	}
	u := userRow{id: uuid.NewString(), email: email, hash: string(hash), metadata: metadata}
	if err := s.insertUser(ctx, u); err != nil {
		return remote.Profile{}, err
	}
	return u.profile(), nil
}

func (s *Store) SignInWithPassword(ctx context.Context, email, password string) (remote.Session, error) {
	u, err := s.userByEmail(ctx, normalizeEmail(email))
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return remote.Session{}, remote.OpError("auth", "users", err)
	}
	if err != nil || u.hash == "" || bcrypt.CompareHashAndPassword([]byte(u.hash), []byte(password)) != nil {
		return remote.Session{}, authError(http.StatusBadRequest, "Invalid login credentials", remote.ErrInvalidCredentials)
	}
	return s.createSession(ctx, u)
}

// SignInWithIDToken trusts id, which the caller has already verified with
// the identity provider. Users are matched by email.
func (s *Store) SignInWithIDToken(ctx context.Context, _ string, id remote.Identity) (remote.Session, error) {
	email := normalizeEmail(id.Email)
	if email == "" {
		return remote.Session{}, authError(http.StatusBadRequest, "identity has no email", nil)
	}
	u, err := s.userByEmail(ctx, email)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		u = userRow{
			id:    uuid.NewString(),
			email: email,
			metadata: map[string]any{
				"full_name":  id.Name,
				"avatar_url": id.Picture,
				"provider":   id.Provider,
			},
		}
		if err := s.insertUser(ctx, u); err != nil {
			return remote.Session{}, err
		}
	case err != nil:
		return remote.Session{}, remote.OpError("auth", "users", err)
	}
	return s.createSession(ctx, u)
}

func (s *Store) RefreshSession(ctx context.Context, refreshToken string) (remote.Session, error) {
	var sid, userID string
	var expires int64
	var revoked bool
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, expires_at, revoked FROM sessions WHERE refresh_token=$1`, refreshToken,
	).Scan(&sid, &userID, &expires, &revoked)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && (revoked || expires < s.now().Unix())) {
		return remote.Session{}, authError(http.StatusBadRequest, "Invalid Refresh Token", remote.ErrNotAuthenticated)
	}
	if err != nil {
		return remote.Session{}, remote.OpError("auth", "sessions", err)
	}
	u, err := s.userByID(ctx, userID)
	if err != nil {
		return remote.Session{}, remote.OpError("auth", "users", err)
	}

	next := newRefreshToken()
	if _, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET refresh_token=$1, expires_at=$2 WHERE id=$3`,
		next, s.now().Add(s.refreshTTL).Unix(), sid); err != nil {
		return remote.Session{}, remote.OpError("auth", "sessions", err)
	}
	return s.issue(u, sid, next)
}

func (s *Store) SignOut(ctx context.Context) error {
	claims, err := s.tokens.Parse(remote.AccessTokenFromContext(ctx))
	if err != nil {
		return remote.ErrNotAuthenticated
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE sessions SET revoked=$1 WHERE id=$2`, true, claims.SessionID); err != nil {
		return remote.OpError("auth", "sessions", err)
	}
	return nil
}

func (s *Store) UpdateUser(ctx context.Context, metadata map[string]any) (remote.Profile, error) {
	sess, err := s.CurrentSession(ctx)
	if err != nil {
		return remote.Profile{}, err
	}
	if sess == nil {
		return remote.Profile{}, remote.ErrNotAuthenticated
	}
	u, err := s.userByID(ctx, sess.UserID)
	if err != nil {
		return remote.Profile{}, remote.OpError("auth", "users", err)
	}
	if u.metadata == nil {
		u.metadata = map[string]any{}
	}
	for k, v := range metadata {
		u.metadata[k] = v
	}
	buf, _ := json.Marshal(u.metadata)
	if _, err := s.db.ExecContext(ctx, `UPDATE users SET metadata_json=$1 WHERE id=$2`, string(buf), u.id); err != nil {
		return remote.Profile{}, remote.OpError("auth", "users", err)
	}
	return u.profile(), nil
}

// CurrentSession treats missing, expired, forged and revoked tokens alike:
// the caller is anonymous. Only backend failures are errors.
func (s *Store) CurrentSession(ctx context.Context) (*remote.Session, error) {
	tok := remote.AccessTokenFromContext(ctx)
	if tok == "" {
		return nil, nil
	}
	claims, err := s.tokens.Parse(tok)
	if err != nil {
		return nil, nil
	}
	var revoked bool
	err = s.db.QueryRowContext(ctx, `SELECT revoked FROM sessions WHERE id=$1 AND user_id=$2`,
		claims.SessionID, claims.Subject).Scan(&revoked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", remote.ErrAuthResolution, err)
	}
	if revoked {
		return nil, nil
	}
	sess := &remote.Session{
		ID:          claims.SessionID,
		UserID:      claims.Subject,
		Email:       claims.Email,
		Metadata:    claims.UserMetadata,
		AccessToken: tok,
	}
	if claims.ExpiresAt != nil {
		sess.ExpiresAt = claims.ExpiresAt.Time
	}
	return sess, nil
}

func (s *Store) CurrentUser(ctx context.Context) (remote.Profile, error) {
	sess, err := s.CurrentSession(ctx)
	if err != nil {
		return remote.Profile{}, err
	}
	if sess == nil {
		return remote.Profile{}, fmt.Errorf("%w: %w", remote.ErrAuthResolution, remote.ErrNotAuthenticated)
	}
	u, err := s.userByID(ctx, sess.UserID)
	if err != nil {
		return remote.Profile{}, fmt.Errorf("%w: %w", remote.ErrAuthResolution, err)
	}
	return u.profile(), nil
}

// SetAdmin flips the admin flag; used by operator tooling and tests.
func (s *Store) SetAdmin(ctx context.Context, userID string, admin bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET is_admin=$1 WHERE id=$2`, admin, userID)
	if err != nil {
		return remote.OpError("auth", "users", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return remote.ErrNoRows
	}
	return nil
}

// ---- helpers ----

func (s *Store) createSession(ctx context.Context, u userRow) (remote.Session, error) {
	sid := uuid.NewString()
	refresh := newRefreshToken()
	now := s.now()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, refresh_token, expires_at, revoked, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6)`,
		sid, u.id, refresh, now.Add(s.refreshTTL).Unix(), false, now.Unix()); err != nil {
		return remote.Session{}, remote.OpError("auth", "sessions", err)
	}
	return s.issue(u, sid, refresh)
}

func (s *Store) issue(u userRow, sid, refresh string) (remote.Session, error) {
	tok, exp, err := s.tokens.IssueJWT(u.id, u.email, sid, s.accessTTL)
	if err != nil {
		return remote.Session{}, err
	}
	return remote.Session{
		ID:           sid,
		UserID:       u.id,
		Email:        u.email,
		Metadata:     u.metadata,
		AccessToken:  tok,
		RefreshToken: refresh,
		ExpiresAt:    exp,
	}, nil
}

func (s *Store) insertUser(ctx context.Context, u userRow) error {
	meta := u.metadata
	if meta == nil {
		meta = map[string]any{}
	}
	buf, _ := json.Marshal(meta)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, metadata_json, is_admin, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6)`,
		u.id, u.email, u.hash, string(buf), false, s.now().Unix())
	return remote.OpError("auth", "users", err)
}

func (s *Store) userByEmail(ctx context.Context, email string) (userRow, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, metadata_json, is_admin FROM users WHERE email=$1`, email))
}

func (s *Store) userByID(ctx context.Context, id string) (userRow, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, metadata_json, is_admin FROM users WHERE id=$1`, id))
}

func (s *Store) scanUser(row *sql.Row) (userRow, error) {
	var u userRow
	var meta string
	if err := row.Scan(&u.id, &u.email, &u.hash, &meta, &u.isAdmin); err != nil {
		return userRow{}, err
	}
	if err := json.Unmarshal([]byte(meta), &u.metadata); err != nil || u.metadata == nil {
		u.metadata = map[string]any{}
	}
	return u, nil
}

func normalizeEmail(e string) string { return strings.ToLower(strings.TrimSpace(e)) }

func newRefreshToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return uuid.NewString() + uuid.NewString()
	}
	return hex.EncodeToString(b)
}
