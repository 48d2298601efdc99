package tips

import (
	"context"
	"fmt"

	"github.com/captionflow/captionflow/internal/metrics"
	"github.com/captionflow/captionflow/pkg/models"
)

// Store is the read side of the version store the resolver needs.
type Store interface {
	GetVersions(ctx context.Context, languageID string) ([]*models.SubtitleVersion, error)
}

// TipCache caches resolved tips. GetTip's second result distinguishes a
// cached "no tip" from a cache miss.
type TipCache interface {
	GetTip(ctx context.Context, languageID string, public bool) (*models.SubtitleVersion, bool, error)
	SetTip(ctx context.Context, languageID string, public bool, version *models.SubtitleVersion) error
	DeleteTips(ctx context.Context, languageID string) error
}

// Resolver answers tip queries, optionally through a cache. The invalidation
// contract: every write path invalidates via Invalidate before it returns,
// so a cached entry is always consistent with the store.
type Resolver struct {
	store Store
	cache TipCache
}

// NewResolver creates a resolver. cache may be nil, in which case every
// query recomputes from the store.
func NewResolver(store Store, cache TipCache) *Resolver {
	return &Resolver{store: store, cache: cache}
}

// GetTip returns the current tip of a language under the given visibility
// filter, or nil when the language has no qualifying version.
func (r *Resolver) GetTip(ctx context.Context, languageID string, public bool) (*models.SubtitleVersion, error) {
	if r.cache != nil {
		tip, ok, err := r.cache.GetTip(ctx, languageID, public)
		if err == nil && ok {
			metrics.RecordTipCacheAccess(tipType(public), true)
			return tip, nil
		}
		// A cache error degrades to a store read
		metrics.RecordTipCacheAccess(tipType(public), false)
	}

	versions, err := r.store.GetVersions(ctx, languageID)
	if err != nil {
		return nil, fmt.Errorf("failed to load versions: %w", err)
	}

	tip := Tip(versions, public)

	if r.cache != nil {
		// Best-effort population; a failed write just means a recompute later
		_ = r.cache.SetTip(ctx, languageID, public, tip)
	}

	return tip, nil
}

func tipType(public bool) string {
	if public {
		return "public"
	}
	return "private"
}

// Invalidate drops the cached tips of a language. Write paths must call this
// before returning to the caller.
func (r *Resolver) Invalidate(ctx context.Context, languageID string) error {
	if r.cache == nil {
		return nil
	}
	if err := r.cache.DeleteTips(ctx, languageID); err != nil {
		return fmt.Errorf("failed to invalidate tips: %w", err)
	}
	return nil
}
