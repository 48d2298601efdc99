package signals

import (
	"context"
	"sync"

	"github.com/captionflow/captionflow/pkg/models"
)

// Signal names, used for logging and for the queue/webhook bridges.
const (
	SignalSubtitlesChanged = "subtitles_changed"
	SignalPublicTipChanged = "public_tip_changed"
	SignalLanguageDeleted  = "language_deleted"
)

// SubtitlesChangedHandler receives the language and its new public tip. The
// tip is nil when the public tip was removed.
type SubtitlesChangedHandler func(ctx context.Context, language *models.SubtitleLanguage, tip *models.SubtitleVersion)

// PublicTipChangedHandler receives publish/unpublish transitions that do not
// necessarily move the newest version.
type PublicTipChangedHandler func(ctx context.Context, language *models.SubtitleLanguage, version *models.SubtitleVersion)

// LanguageDeletedHandler receives full language nukes.
type LanguageDeletedHandler func(ctx context.Context, language *models.SubtitleLanguage)

// Hub is the in-process signal dispatcher. It is built once at process start
// and handed to the pipeline; there is no package-level registry. Emission
// is synchronous: every handler runs to completion before the emitting write
// returns, so handlers that need async work must enqueue it themselves.
type Hub struct {
	mu               sync.RWMutex
	subtitlesChanged []SubtitlesChangedHandler
	publicTipChanged []PublicTipChangedHandler
	languageDeleted  []LanguageDeletedHandler
}

// NewHub creates an empty signal hub.
func NewHub() *Hub {
	return &Hub{}
}

// OnSubtitlesChanged registers a handler for the subtitles_changed signal.
func (h *Hub) OnSubtitlesChanged(fn SubtitlesChangedHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subtitlesChanged = append(h.subtitlesChanged, fn)
}

// OnPublicTipChanged registers a handler for the public_tip_changed signal.
func (h *Hub) OnPublicTipChanged(fn PublicTipChangedHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.publicTipChanged = append(h.publicTipChanged, fn)
}

// OnLanguageDeleted registers a handler for the language_deleted signal.
func (h *Hub) OnLanguageDeleted(fn LanguageDeletedHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.languageDeleted = append(h.languageDeleted, fn)
}

// EmitSubtitlesChanged fires subtitles_changed. tip may be nil.
func (h *Hub) EmitSubtitlesChanged(ctx context.Context, language *models.SubtitleLanguage, tip *models.SubtitleVersion) {
	h.mu.RLock()
	handlers := make([]SubtitlesChangedHandler, len(h.subtitlesChanged))
	copy(handlers, h.subtitlesChanged)
	h.mu.RUnlock()

	for _, fn := range handlers {
		fn(ctx, language, tip)
	}
}

// EmitPublicTipChanged fires public_tip_changed.
func (h *Hub) EmitPublicTipChanged(ctx context.Context, language *models.SubtitleLanguage, version *models.SubtitleVersion) {
	h.mu.RLock()
	handlers := make([]PublicTipChangedHandler, len(h.publicTipChanged))
	copy(handlers, h.publicTipChanged)
	h.mu.RUnlock()

	for _, fn := range handlers {
		fn(ctx, language, version)
	}
}

// EmitLanguageDeleted fires language_deleted.
func (h *Hub) EmitLanguageDeleted(ctx context.Context, language *models.SubtitleLanguage) {
	h.mu.RLock()
	handlers := make([]LanguageDeletedHandler, len(h.languageDeleted))
	copy(handlers, h.languageDeleted)
	h.mu.RUnlock()

	for _, fn := range handlers {
		fn(ctx, language)
	}
}
