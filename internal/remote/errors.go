package remote

import (
	"errors"
	"fmt"
)

var (
	// ErrNoRows is returned by UpdateRow when nothing matched.
	ErrNoRows = errors.New("remote: no rows")
	// ErrAuthResolution wraps failures to resolve the session or profile.
	ErrAuthResolution = errors.New("remote: auth resolution failed")
	// ErrNotAuthenticated means the operation needs a session and there is none.
	ErrNotAuthenticated = errors.New("remote: not authenticated")
	// ErrInvalidCredentials is returned by sign-in with a bad email/password.
	ErrInvalidCredentials = errors.New("remote: invalid login credentials")
	// ErrUnknownTable guards against table/column names outside the schema.
	ErrUnknownTable = errors.New("remote: unknown table or column")
)

// Error is a failed backend operation. Message is the backend's text,
// unmodified.
type Error struct {
	Op      string // select|insert|update|delete|auth
	Table   string
	Status  int // HTTP status for REST backends, 0 otherwise
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("%s %s: %s", e.Op, e.Table, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// OpError wraps err as a backend failure for op on table. nil stays nil.
func OpError(op, table string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Table: table, Message: err.Error(), Err: err}
}
