package tips

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/captionflow/captionflow/internal/metrics"
	"github.com/captionflow/captionflow/pkg/models"
)

func version(id string, number int, visibility, override string, parents ...string) *models.SubtitleVersion {
	return &models.SubtitleVersion{
		ID:                 id,
		VersionNumber:      number,
		Visibility:         visibility,
		VisibilityOverride: override,
		ParentIDs:          parents,
	}
}

func TestPublicTip(t *testing.T) {
	versions := []*models.SubtitleVersion{
		version("v1", 1, models.VisibilityPublic, ""),
		version("v2", 2, models.VisibilityPrivate, ""),
		version("v3", 3, models.VisibilityPublic, models.VisibilityOverrideDeleted),
	}

	tip := PublicTip(versions)
	require.NotNil(t, tip)
	assert.Equal(t, 1, tip.VersionNumber, "private and deleted versions must not win the public tip")

	// No public versions at all
	assert.Nil(t, PublicTip([]*models.SubtitleVersion{
		version("v1", 1, models.VisibilityPrivate, ""),
	}))
	assert.Nil(t, PublicTip(nil))
}

func TestPrivateTip(t *testing.T) {
	versions := []*models.SubtitleVersion{
		version("v1", 1, models.VisibilityPublic, ""),
		version("v2", 2, models.VisibilityPrivate, ""),
		version("v3", 3, models.VisibilityPublic, models.VisibilityOverrideDeleted),
	}

	tip := PrivateTip(versions)
	require.NotNil(t, tip)
	assert.Equal(t, 2, tip.VersionNumber, "deleted versions never count; private ones do")

	// Everything deleted
	assert.Nil(t, PrivateTip([]*models.SubtitleVersion{
		version("v1", 1, models.VisibilityPublic, models.VisibilityOverrideDeleted),
	}))
}

func TestTip(t *testing.T) {
	versions := []*models.SubtitleVersion{
		version("v1", 1, models.VisibilityPublic, ""),
		version("v2", 2, models.VisibilityPrivate, ""),
	}

	assert.Equal(t, 1, Tip(versions, true).VersionNumber)
	assert.Equal(t, 2, Tip(versions, false).VersionNumber)
}

func TestGraph_IsAncestor(t *testing.T) {
	// v1 <- v2 <- v3, v1 <- v4 (branch)
	versions := []*models.SubtitleVersion{
		version("v1", 1, models.VisibilityPublic, ""),
		version("v2", 2, models.VisibilityPublic, "", "v1"),
		version("v3", 3, models.VisibilityPublic, "", "v2"),
		version("v4", 4, models.VisibilityPublic, "", "v1"),
	}

	g := NewGraph(versions)

	assert.True(t, g.IsAncestor("v1", "v3"))
	assert.True(t, g.IsAncestor("v2", "v3"))
	assert.True(t, g.IsAncestor("v1", "v4"))
	assert.True(t, g.IsAncestor("v3", "v3"), "a version is its own ancestor")

	assert.False(t, g.IsAncestor("v3", "v1"))
	assert.False(t, g.IsAncestor("v2", "v4"), "siblings are not ancestors")
	assert.False(t, g.IsAncestor("v4", "v3"))
}

func TestGraph_IsAncestorMergeAndCycle(t *testing.T) {
	// Merge: v3 has parents v1 and v2
	merge := []*models.SubtitleVersion{
		version("v1", 1, models.VisibilityPublic, ""),
		version("v2", 2, models.VisibilityPublic, ""),
		version("v3", 3, models.VisibilityPublic, "", "v1", "v2"),
	}
	g := NewGraph(merge)
	assert.True(t, g.IsAncestor("v1", "v3"))
	assert.True(t, g.IsAncestor("v2", "v3"))

	// A malformed cycle must not hang the traversal
	cyclic := []*models.SubtitleVersion{
		version("a", 1, models.VisibilityPublic, "", "b"),
		version("b", 2, models.VisibilityPublic, "", "a"),
	}
	g = NewGraph(cyclic)
	assert.True(t, g.IsAncestor("a", "b"))
	assert.False(t, g.IsAncestor("c", "b"))
}

func TestGraph_Lineage(t *testing.T) {
	versions := []*models.SubtitleVersion{
		version("v1", 1, models.VisibilityPublic, ""),
		version("v2", 2, models.VisibilityPublic, "", "v1"),
		version("v3", 3, models.VisibilityPublic, "", "v2"),
	}

	g := NewGraph(versions)
	lineage := g.Lineage("v3")
	assert.ElementsMatch(t, []string{"v1", "v2"}, lineage)
	assert.Empty(t, g.Lineage("v1"))
}

// fakeStore serves a fixed version list.
type fakeStore struct {
	versions []*models.SubtitleVersion
	reads    int
}

func (s *fakeStore) GetVersions(ctx context.Context, languageID string) ([]*models.SubtitleVersion, error) {
	s.reads++
	return s.versions, nil
}

// fakeTipCache is an in-memory TipCache.
type fakeTipCache struct {
	entries map[string]*models.SubtitleVersion
}

func newFakeTipCache() *fakeTipCache {
	return &fakeTipCache{entries: make(map[string]*models.SubtitleVersion)}
}

func (c *fakeTipCache) key(languageID string, public bool) string {
	if public {
		return "public:" + languageID
	}
	return "private:" + languageID
}

func (c *fakeTipCache) GetTip(ctx context.Context, languageID string, public bool) (*models.SubtitleVersion, bool, error) {
	v, ok := c.entries[c.key(languageID, public)]
	return v, ok, nil
}

func (c *fakeTipCache) SetTip(ctx context.Context, languageID string, public bool, version *models.SubtitleVersion) error {
	c.entries[c.key(languageID, public)] = version
	return nil
}

func (c *fakeTipCache) DeleteTips(ctx context.Context, languageID string) error {
	delete(c.entries, c.key(languageID, true))
	delete(c.entries, c.key(languageID, false))
	return nil
}

func TestResolver_ReadThroughAndInvalidate(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{versions: []*models.SubtitleVersion{
		version("v1", 1, models.VisibilityPublic, ""),
		version("v2", 2, models.VisibilityPrivate, ""),
	}}
	cache := newFakeTipCache()
	resolver := NewResolver(store, cache)

	tip, err := resolver.GetTip(ctx, "lang-1", true)
	require.NoError(t, err)
	assert.Equal(t, 1, tip.VersionNumber)
	assert.Equal(t, 1, store.reads)

	// Second read is served from cache
	tip, err = resolver.GetTip(ctx, "lang-1", true)
	require.NoError(t, err)
	assert.Equal(t, 1, tip.VersionNumber)
	assert.Equal(t, 1, store.reads)

	// After a write the store changes and the cache is invalidated
	store.versions = append(store.versions, version("v3", 3, models.VisibilityPublic, "", "v2"))
	require.NoError(t, resolver.Invalidate(ctx, "lang-1"))

	tip, err = resolver.GetTip(ctx, "lang-1", true)
	require.NoError(t, err)
	assert.Equal(t, 3, tip.VersionNumber)
	assert.Equal(t, 2, store.reads)
}

func TestResolver_CachesNoTip(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{versions: []*models.SubtitleVersion{
		version("v1", 1, models.VisibilityPrivate, ""),
	}}
	cache := newFakeTipCache()
	resolver := NewResolver(store, cache)

	tip, err := resolver.GetTip(ctx, "lang-1", true)
	require.NoError(t, err)
	assert.Nil(t, tip)

	// The nil result was cached; no second store read
	tip, err = resolver.GetTip(ctx, "lang-1", true)
	require.NoError(t, err)
	assert.Nil(t, tip)
	assert.Equal(t, 1, store.reads)
}

func TestResolver_RecordsCacheAccess(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{versions: []*models.SubtitleVersion{
		version("v1", 1, models.VisibilityPublic, ""),
	}}
	cache := newFakeTipCache()
	resolver := NewResolver(store, cache)

	hitsBefore := testutil.ToFloat64(metrics.TipCacheHitsTotal.WithLabelValues("public"))
	missesBefore := testutil.ToFloat64(metrics.TipCacheMissesTotal.WithLabelValues("public"))

	// Cold read misses, warm read hits
	_, err := resolver.GetTip(ctx, "lang-1", true)
	require.NoError(t, err)
	_, err = resolver.GetTip(ctx, "lang-1", true)
	require.NoError(t, err)

	assert.Equal(t, hitsBefore+1, testutil.ToFloat64(metrics.TipCacheHitsTotal.WithLabelValues("public")))
	assert.Equal(t, missesBefore+1, testutil.ToFloat64(metrics.TipCacheMissesTotal.WithLabelValues("public")))
}

func TestResolver_WithoutCache(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{versions: []*models.SubtitleVersion{
		version("v1", 1, models.VisibilityPublic, ""),
	}}
	resolver := NewResolver(store, nil)

	tip, err := resolver.GetTip(ctx, "lang-1", true)
	require.NoError(t, err)
	assert.Equal(t, 1, tip.VersionNumber)

	require.NoError(t, resolver.Invalidate(ctx, "lang-1"))
}
