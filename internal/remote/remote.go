// Package remote describes the data-and-auth backend the application is
// built on. Everything durable lives behind these interfaces.
package remote

import (
	"context"
	"time"
)

// Tables known to the application.
const (
	TableTests         = "tests"
	TableQuestions     = "questions"
	TableAnswerChoices = "answer_choices"
	TableAnswers       = "answers"
)

// Session is the caller's authenticated session as reported by the backend.
type Session struct {
	ID           string         `json:"id,omitempty"`
	UserID       string         `json:"user_id"`
	Email        string         `json:"email"`
	Metadata     map[string]any `json:"user_metadata,omitempty"`
	AccessToken  string         `json:"access_token,omitempty"`
	RefreshToken string         `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time      `json:"expires_at"`
}

// Profile is the full user record.
type Profile struct {
	ID       string         `json:"id"`
	Email    string         `json:"email"`
	Metadata map[string]any `json:"user_metadata"`
	IsAdmin  bool           `json:"is_admin"`
}

// Role is the display role: admins are "Super Administrator", everyone else
// carries the user_role metadata value.
func (p Profile) Role() string {
	if p.IsAdmin {
		return "Super Administrator"
	}
	if r, ok := p.Metadata["user_role"].(string); ok && r != "" {
		return r
	}
	return "user"
}

// Identity is a verified third-party identity (e.g. Google id token claims).
type Identity struct {
	Provider string
	Subject  string
	Email    string
	Name     string
	Picture  string
}

// Store is the data surface the core consumes. The caller's access token
// is carried by ctx (see WithAccessToken).
type Store interface {
	// CurrentSession returns nil, nil when the caller is anonymous.
	CurrentSession(ctx context.Context) (*Session, error)
	CurrentUser(ctx context.Context) (Profile, error)

	// QueryOwnedRow returns the single row matching filters or nil.
	QueryOwnedRow(ctx context.Context, table string, filters ...Filter) (Row, error)
	InsertRow(ctx context.Context, table string, fields Fields) (Row, error)
	// UpdateRow returns ErrNoRows when id does not exist.
	UpdateRow(ctx context.Context, table string, id int64, fields Fields) (Row, error)
	// DeleteRow refuses an empty filter set.
	DeleteRow(ctx context.Context, table string, filters ...Filter) error
	QueryRows(ctx context.Context, table string, q Query) ([]Row, error)
}

// Auth is the account surface of the backend.
type Auth interface {
	SignUp(ctx context.Context, email, password string, metadata map[string]any) (Profile, error)
	SignInWithPassword(ctx context.Context, email, password string) (Session, error)
	SignInWithIDToken(ctx context.Context, idToken string, id Identity) (Session, error)
	RefreshSession(ctx context.Context, refreshToken string) (Session, error)
	// SignOut revokes the session of the token in ctx.
	SignOut(ctx context.Context) error
	// UpdateUser merges metadata into the current user's metadata.
	UpdateUser(ctx context.Context, metadata map[string]any) (Profile, error)
}

// Backend is a full remote store.
type Backend interface {
	Store
	Auth
}
