package supabase

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tq-random/tq-random/internal/storage"
)

// Storage is Supabase Storage seen as a blob store. The first key segment
// names the bucket, so "avatars/u1-avatar.png" lands in bucket "avatars".
type Storage struct{ c *Client }

var _ storage.BlobStore = (*Storage)(nil)

func (c *Client) Storage() *Storage { return &Storage{c: c} }

func (s *Storage) Put(ctx context.Context, key, contentType string, r io.Reader) error {
	k, err := bucketKey(key)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.c.baseURL+"/storage/v1/object/"+k, r)
	if err != nil {
		return err
	}
	s.c.authorize(ctx, req)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "true")

	resp, err := s.c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("storage put %s: %w", k, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return errorFrom("upload", "storage", resp)
	}
	return nil
}

func (s *Storage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	k, err := bucketKey(key)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.c.baseURL+"/storage/v1/object/"+k, nil)
	if err != nil {
		return nil, err
	}
	s.c.authorize(ctx, req)
	resp, err := s.c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("storage get %s: %w", k, err)
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, errorFrom("download", "storage", resp)
	}
	return resp.Body, nil
}

func (s *Storage) URL(key string) string {
	return s.c.baseURL + "/storage/v1/object/public/" + key
}

func bucketKey(key string) (string, error) {
	k, err := storage.CleanKey(key)
	if err != nil {
		return "", err
	}
	if !strings.Contains(k, "/") {
		return "", fmt.Errorf("%w: %q has no bucket", storage.ErrBadKey, key)
	}
	return k, nil
}
