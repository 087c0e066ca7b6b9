package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	supastorage "github.com/supabase-community/storage-go"

	"github.com/yong-jelly/usemap-sub002/internal/config"
)

// SupabaseStore stores objects in a Supabase Storage bucket.
// The storage client takes no context; ctx is accepted for the interface.
type SupabaseStore struct {
	client  *supastorage.Client
	baseURL string
	bucket  string
}

// NewSupabaseStore builds a storage client authenticated with the service key.
func NewSupabaseStore(cfg *config.Config) (*SupabaseStore, error) {
	if cfg.SupabaseURL == "" || cfg.SupabaseServiceKey == "" || cfg.SupabaseBucket == "" {
		return nil, fmt.Errorf("missing Supabase storage configuration")
	}

	baseURL := strings.TrimSuffix(cfg.SupabaseURL, "/")
	client := supastorage.NewClient(baseURL+"/storage/v1", cfg.SupabaseServiceKey, nil)

	return &SupabaseStore{
		client:  client,
		baseURL: baseURL,
		bucket:  cfg.SupabaseBucket,
	}, nil
}

func (s *SupabaseStore) Put(ctx context.Context, key string, body []byte, contentType, cacheControl string) error {
	upsert := false
	_, err := s.client.UploadFile(s.bucket, key, bytes.NewReader(body), supastorage.FileOptions{
		ContentType:  &contentType,
		CacheControl: &cacheControl,
		Upsert:       &upsert,
	})
	if err != nil {
		return fmt.Errorf("failed to upload to supabase: %w", err)
	}
	return nil
}

func (s *SupabaseStore) Delete(ctx context.Context, keys ...string) error {
	paths := make([]string, 0, len(keys))
	for _, k := range keys {
		if k != "" {
			paths = append(paths, k)
		}
	}
	if len(paths) == 0 {
		return nil
	}

	if _, err := s.client.RemoveFile(s.bucket, paths); err != nil {
		return fmt.Errorf("failed to delete from supabase: %w", err)
	}
	return nil
}

// PublicURL assumes the bucket is public.
func (s *SupabaseStore) PublicURL(key string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, s.bucket, key)
}
