package signals

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/captionflow/captionflow/pkg/models"
)

func TestHub_SubtitlesChanged(t *testing.T) {
	hub := NewHub()
	ctx := context.Background()

	var gotLanguage *models.SubtitleLanguage
	var gotTip *models.SubtitleVersion
	calls := 0

	hub.OnSubtitlesChanged(func(ctx context.Context, language *models.SubtitleLanguage, tip *models.SubtitleVersion) {
		calls++
		gotLanguage = language
		gotTip = tip
	})

	language := &models.SubtitleLanguage{ID: "lang-1", LanguageCode: "en"}
	version := &models.SubtitleVersion{ID: "v-1", VersionNumber: 1}

	hub.EmitSubtitlesChanged(ctx, language, version)

	assert.Equal(t, 1, calls)
	assert.Equal(t, "lang-1", gotLanguage.ID)
	assert.Equal(t, 1, gotTip.VersionNumber)

	// A nil tip means the public tip was removed
	hub.EmitSubtitlesChanged(ctx, language, nil)
	assert.Equal(t, 2, calls)
	assert.Nil(t, gotTip)
}

func TestHub_HandlersRunInRegistrationOrder(t *testing.T) {
	hub := NewHub()
	ctx := context.Background()

	var order []string
	hub.OnLanguageDeleted(func(ctx context.Context, language *models.SubtitleLanguage) {
		order = append(order, "first")
	})
	hub.OnLanguageDeleted(func(ctx context.Context, language *models.SubtitleLanguage) {
		order = append(order, "second")
	})

	hub.EmitLanguageDeleted(ctx, &models.SubtitleLanguage{ID: "lang-1"})

	assert.Equal(t, []string{"first", "second"}, order)
}

func TestHub_EmitWithoutHandlers(t *testing.T) {
	hub := NewHub()
	ctx := context.Background()

	// Emitting with no handlers registered must be a no-op
	hub.EmitSubtitlesChanged(ctx, &models.SubtitleLanguage{ID: "lang-1"}, nil)
	hub.EmitPublicTipChanged(ctx, &models.SubtitleLanguage{ID: "lang-1"}, &models.SubtitleVersion{})
	hub.EmitLanguageDeleted(ctx, &models.SubtitleLanguage{ID: "lang-1"})
}

func TestHub_PublicTipChanged(t *testing.T) {
	hub := NewHub()
	ctx := context.Background()

	var got *models.SubtitleVersion
	hub.OnPublicTipChanged(func(ctx context.Context, language *models.SubtitleLanguage, version *models.SubtitleVersion) {
		got = version
	})

	hub.EmitPublicTipChanged(ctx, &models.SubtitleLanguage{ID: "lang-1"}, &models.SubtitleVersion{VersionNumber: 7})

	assert.NotNil(t, got)
	assert.Equal(t, 7, got.VersionNumber)
}
