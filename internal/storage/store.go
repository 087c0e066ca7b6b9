// Package storage puts comment attachments into object storage.
package storage

import (
	"context"
	"fmt"

	"github.com/yong-jelly/usemap-sub002/internal/config"
)

// Backends selectable with STORAGE_BACKEND.
const (
	BackendR2       = "r2"
	BackendSupabase = "supabase"
)

// ObjectStore is the subset of an object store the media service needs.
type ObjectStore interface {
	Put(ctx context.Context, key string, body []byte, contentType, cacheControl string) error
	Delete(ctx context.Context, keys ...string) error
	PublicURL(key string) string
}

// New builds the ObjectStore named by cfg.StorageBackend.
func New(ctx context.Context, cfg *config.Config) (ObjectStore, error) {
	switch cfg.StorageBackend {
	case BackendR2:
		return NewR2Store(ctx, cfg)
	case BackendSupabase:
		return NewSupabaseStore(cfg)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}
