package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/captionflow/captionflow/internal/signals"
	"github.com/captionflow/captionflow/pkg/models"
)

type fakePublisher struct {
	events []*SignalEvent
	err    error
}

func (p *fakePublisher) PublishSignal(ctx context.Context, event *SignalEvent) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

type fakeLogger struct {
	errors int
}

func (l *fakeLogger) ErrorWithErr(msg string, err error) {
	l.errors++
}

func TestAttachBridge(t *testing.T) {
	hub := signals.NewHub()
	publisher := &fakePublisher{}
	AttachBridge(hub, publisher, nil)

	language := &models.SubtitleLanguage{ID: "lang-1", VideoID: "video-1", LanguageCode: "en"}
	tip := &models.SubtitleVersion{ID: "ver-3", VersionNumber: 3}

	ctx := context.Background()
	hub.EmitSubtitlesChanged(ctx, language, tip)
	hub.EmitPublicTipChanged(ctx, language, tip)
	hub.EmitSubtitlesChanged(ctx, language, nil)
	hub.EmitLanguageDeleted(ctx, language)

	if assert.Len(t, publisher.events, 4) {
		assert.Equal(t, signals.SignalSubtitlesChanged, publisher.events[0].Signal)
		assert.Equal(t, "ver-3", publisher.events[0].VersionID)
		assert.Equal(t, 3, publisher.events[0].VersionNumber)

		assert.Equal(t, signals.SignalPublicTipChanged, publisher.events[1].Signal)

		assert.Equal(t, signals.SignalSubtitlesChanged, publisher.events[2].Signal)
		assert.Empty(t, publisher.events[2].VersionID, "removed tip carries no version")

		assert.Equal(t, signals.SignalLanguageDeleted, publisher.events[3].Signal)
		assert.Equal(t, "en", publisher.events[3].LanguageCode)
	}
}

func TestAttachBridge_PublishFailureIsSwallowed(t *testing.T) {
	hub := signals.NewHub()
	publisher := &fakePublisher{err: errors.New("broker down")}
	logger := &fakeLogger{}
	AttachBridge(hub, publisher, logger)

	language := &models.SubtitleLanguage{ID: "lang-1", VideoID: "video-1", LanguageCode: "en"}

	// Emission must survive a broker outage
	hub.EmitLanguageDeleted(context.Background(), language)
	assert.Equal(t, 1, logger.errors)
}

func TestCalculateBackoffDelay(t *testing.T) {
	assert.Equal(t, "1m0s", calculateBackoffDelay(0).String())
	assert.Equal(t, "2m0s", calculateBackoffDelay(1).String())
	assert.Equal(t, "16m0s", calculateBackoffDelay(4).String())
	assert.Equal(t, "1h0m0s", calculateBackoffDelay(10).String())
}
