// Package account covers registration and profile changes on top of the
// backend's auth surface.
package account

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/mail"
	"strings"

	"github.com/tq-random/tq-random/internal/rbac"
	"github.com/tq-random/tq-random/internal/remote"
	"github.com/tq-random/tq-random/internal/storage"
)

var ErrInvalidInput = errors.New("account: invalid input")

// reserved metadata keys a user may not write.
var reserved = map[string]bool{"is_admin": true}

type Registration struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type Service struct {
	auth  remote.Auth
	store remote.Store
	blobs storage.BlobStore
}

func NewService(auth remote.Auth, store remote.Store, blobs storage.BlobStore) *Service {
	return &Service{auth: auth, store: store, blobs: blobs}
}

func (s *Service) Register(ctx context.Context, in Registration) (remote.Profile, error) {
	email := strings.TrimSpace(in.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		return remote.Profile{}, fmt.Errorf("%w: email %q", ErrInvalidInput, in.Email)
	}
	first, last := strings.TrimSpace(in.FirstName), strings.TrimSpace(in.LastName)
	meta := map[string]any{
		"first_name": first,
		"last_name":  last,
		"full_name":  strings.TrimSpace(first + " " + last),
	}
	return s.auth.SignUp(ctx, email, in.Password, meta)
}

// UpdateProfile merges metadata into the caller's profile.
func (s *Service) UpdateProfile(ctx context.Context, metadata map[string]any) (remote.Profile, error) {
	if len(metadata) == 0 {
		return remote.Profile{}, fmt.Errorf("%w: nothing to update", ErrInvalidInput)
	}
	for k := range metadata {
		if reserved[k] {
			return remote.Profile{}, fmt.Errorf("%w: %s cannot be changed", ErrInvalidInput, k)
		}
	}
	meta := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		meta[k] = v
	}
	if first, ok := meta["first_name"].(string); ok {
		if last, ok := meta["last_name"].(string); ok {
			meta["full_name"] = strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
		}
	}
	return s.auth.UpdateUser(ctx, meta)
}

// AvatarKey is where a user's avatar is stored.
func AvatarKey(userID string) string { return "avatars/" + userID + "-avatar.png" }

// UploadAvatar stores the image and records its URL as image_url.
func (s *Service) UploadAvatar(ctx context.Context, userID, contentType string, r io.Reader) (remote.Profile, error) {
	if !strings.HasPrefix(contentType, "image/") {
		return remote.Profile{}, fmt.Errorf("%w: avatar must be an image, got %q", ErrInvalidInput, contentType)
	}
	key := AvatarKey(userID)
	if err := s.blobs.Put(ctx, key, contentType, r); err != nil {
		return remote.Profile{}, fmt.Errorf("upload avatar: %w", err)
	}
	return s.auth.UpdateUser(ctx, map[string]any{"image_url": s.blobs.URL(key)})
}

// Pages lists the route names the caller's role may see.
func (s *Service) Pages(ctx context.Context) ([]string, error) {
	prof, err := s.store.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	return rbac.PagesFor(RoleOf(prof)), nil
}

// RoleOf maps a profile onto its RBAC role.
func RoleOf(p remote.Profile) string {
	if p.IsAdmin {
		return rbac.RoleAdmin
	}
	return rbac.RoleUser
}
