// Package storage keeps uploaded files such as profile avatars.
package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
)

var ErrBadKey = errors.New("storage: bad key")

type BlobStore interface {
	// Put stores r under key, replacing any previous object.
	Put(ctx context.Context, key, contentType string, r io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// URL is the public address of key.
	URL(key string) string
}

// CleanKey normalises a slash separated key and rejects keys that would
// leave the store's root.
func CleanKey(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", ErrBadKey
	}
	k := path.Clean(key)
	if k == "." || k == ".." || strings.HasPrefix(k, "../") {
		return "", ErrBadKey
	}
	return k, nil
}
