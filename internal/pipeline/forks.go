package pipeline

import (
	"context"

	"github.com/captionflow/captionflow/internal/metrics"
	"github.com/captionflow/captionflow/internal/tips"
	"github.com/captionflow/captionflow/pkg/models"
)

// updateTranslationForks re-checks sibling languages after a write to
// source. A translation that points into source via a cross-language parent
// is forked once that parent falls off source's current lineage: the
// translation tracks history the source has branched away from. The flag is
// one-way; later writes never clear it.
func (s *Service) updateTranslationForks(ctx context.Context, source *models.SubtitleLanguage, sourceVersions []*models.SubtitleVersion) error {
	tip := tips.PrivateTip(sourceVersions)
	if tip == nil {
		return nil
	}

	languages, err := s.store.GetLanguagesForVideo(ctx, source.VideoID)
	if err != nil {
		return err
	}

	graph := tips.NewGraph(sourceVersions)

	for _, language := range languages {
		if language.ID == source.ID || language.IsForked {
			continue
		}

		versions, err := s.store.GetVersions(ctx, language.ID)
		if err != nil {
			return err
		}

		parentID := latestParentInto(versions, graph)
		if parentID == "" {
			continue
		}

		if graph.IsAncestor(parentID, tip.ID) {
			continue
		}

		language.IsForked = true
		if err := s.store.UpdateLanguage(ctx, language); err != nil {
			return err
		}
		metrics.LanguagesForkedTotal.Inc()
		if s.logger != nil {
			s.logger.WithVideoID(language.VideoID).
				WithLanguage(language.LanguageCode).
				WithField("source_language_id", source.ID).
				Info("Translation forked from source lineage")
		}
	}

	return nil
}

// latestParentInto finds the most recent cross-language parent reference
// from versions into the given source graph. Versions arrive ordered by
// version number ascending, so the last match wins.
func latestParentInto(versions []*models.SubtitleVersion, source *tips.Graph) string {
	own := make(map[string]bool, len(versions))
	for _, v := range versions {
		own[v.ID] = true
	}

	parentID := ""
	for _, v := range versions {
		for _, pid := range v.ParentIDs {
			if own[pid] {
				continue
			}
			if _, ok := source.Version(pid); ok {
				parentID = pid
			}
		}
	}
	return parentID
}
