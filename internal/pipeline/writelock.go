package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/captionflow/captionflow/pkg/models"
)

// ErrWritelocked is returned when another editing session holds the lock.
var ErrWritelocked = errors.New("language is writelocked by another session")

// AcquireWritelock takes or refreshes the advisory editing lock for a
// session. The lock is advisory only: it gates nothing in the pipeline
// itself, editors use it to avoid stepping on each other.
func (s *Service) AcquireWritelock(ctx context.Context, videoID, languageCode, ownerID, sessionKey string) (*models.SubtitleLanguage, error) {
	language, err := s.store.GetLanguage(ctx, videoID, languageCode)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if !language.CanWritelock(sessionKey, now) {
		return nil, ErrWritelocked
	}

	language.Writelock(ownerID, sessionKey, now)
	if err := s.store.UpdateLanguage(ctx, language); err != nil {
		return nil, err
	}
	return language, nil
}

// ReleaseWritelock drops the lock if the session holds it. Releasing a lock
// held by someone else is refused; releasing an unheld lock is a no-op.
func (s *Service) ReleaseWritelock(ctx context.Context, videoID, languageCode, sessionKey string) error {
	language, err := s.store.GetLanguage(ctx, videoID, languageCode)
	if err != nil {
		return err
	}

	now := time.Now()
	if !language.IsWritelocked(now) {
		return nil
	}
	if language.WritelockSessionKey != sessionKey {
		return ErrWritelocked
	}

	language.ReleaseWritelock()
	return s.store.UpdateLanguage(ctx, language)
}
