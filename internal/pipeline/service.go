// Package pipeline is the single write path for subtitle content. Every
// version is created here; tips, signals and the cache stay consistent
// because nothing else writes.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/captionflow/captionflow/internal/database"
	"github.com/captionflow/captionflow/internal/logging"
	"github.com/captionflow/captionflow/internal/metrics"
	"github.com/captionflow/captionflow/internal/signals"
	"github.com/captionflow/captionflow/internal/subtitles"
	"github.com/captionflow/captionflow/internal/tips"
	"github.com/captionflow/captionflow/internal/tracing"
	"github.com/captionflow/captionflow/internal/workflows"
	"github.com/captionflow/captionflow/pkg/models"
)

// Store is what the pipeline needs from the version store.
type Store interface {
	GetLanguage(ctx context.Context, videoID, languageCode string) (*models.SubtitleLanguage, error)
	GetLanguageByID(ctx context.Context, id string) (*models.SubtitleLanguage, error)
	CreateLanguage(ctx context.Context, language *models.SubtitleLanguage) error
	UpdateLanguage(ctx context.Context, language *models.SubtitleLanguage) error
	GetLanguagesForVideo(ctx context.Context, videoID string) ([]*models.SubtitleLanguage, error)
	CreateVersion(ctx context.Context, version *models.SubtitleVersion) error
	UpdateVersionVisibility(ctx context.Context, version *models.SubtitleVersion) error
	GetVersions(ctx context.Context, languageID string) ([]*models.SubtitleVersion, error)
	GetVersion(ctx context.Context, languageID string, versionNumber int) (*models.SubtitleVersion, error)
	GetVersionByID(ctx context.Context, id string) (*models.SubtitleVersion, error)
	MaxVersionNumber(ctx context.Context, languageID string) (int, error)
}

// Archiver snapshots a language's payloads before destructive operations.
type Archiver interface {
	ArchiveLanguage(ctx context.Context, language *models.SubtitleLanguage, versions []*models.SubtitleVersion) error
}

// ErrInvalidParent reports a parent reference to a version that does not
// exist. It means the caller violated a precondition; the write is refused
// rather than persisting an inconsistent graph.
var ErrInvalidParent = errors.New("parent version does not exist")

// Service is the pipeline.
type Service struct {
	store    Store
	resolver *tips.Resolver
	hub      *signals.Hub
	registry *workflows.Registry
	archiver Archiver
	logger   *logging.Logger
}

// NewService creates the pipeline. archiver may be nil; registry may be nil,
// in which case the default workflow applies everywhere.
func NewService(store Store, resolver *tips.Resolver, hub *signals.Hub, registry *workflows.Registry, archiver Archiver, logger *logging.Logger) *Service {
	if registry == nil {
		registry = workflows.NewRegistry(workflows.NewDefaultWorkflow())
	}
	return &Service{
		store:    store,
		resolver: resolver,
		hub:      hub,
		registry: registry,
		archiver: archiver,
		logger:   logger,
	}
}

// Registry exposes the workflow registry for read-side callers.
func (s *Service) Registry() *workflows.Registry {
	return s.registry
}

// AddSubtitlesRequest carries everything AddSubtitles needs.
type AddSubtitlesRequest struct {
	Video        *models.Video
	LanguageCode string

	// Subtitles may be nil, producing a zero-entry placeholder version.
	Subtitles *subtitles.Set

	Author             *models.User
	Visibility         string // empty = workflow default
	VisibilityOverride string
	Title              string
	Description        string
	Metadata           models.MetadataFields
	ParentIDs          []string // empty = current private tip
	Origin             string

	// Action, when set, is performed atomically with the save: its
	// preconditions are checked before the version is persisted.
	Action string

	// SuppressSignals skips subtitles_changed emission for this save.
	SuppressSignals bool

	rollbackOf *int
}

// AddSubtitles creates a new subtitle version. See the package comment: this
// is the only place versions come into existence.
func (s *Service) AddSubtitles(ctx context.Context, req *AddSubtitlesRequest) (_ *models.SubtitleVersion, err error) {
	if req.Video == nil {
		return nil, fmt.Errorf("video is required")
	}
	if req.LanguageCode == "" {
		return nil, fmt.Errorf("language code is required")
	}

	span, ctx := tracing.StartSpan(ctx, "pipeline.add_subtitles")
	defer func() {
		tracing.LogError(span, err)
		tracing.FinishSpan(span)
	}()
	tracing.SetTag(span, "video_id", req.Video.ID)
	tracing.SetTag(span, "language_code", req.LanguageCode)

	set := req.Subtitles
	if set == nil {
		set = subtitles.NewSet(req.LanguageCode)
	}
	if err := set.Validate(); err != nil {
		return nil, err
	}

	payload, err := set.Marshal()
	if err != nil {
		return nil, err
	}

	workflow := s.registry.Get(req.Video)

	visibility := req.Visibility
	if visibility == "" {
		visibility = workflow.DefaultVisibility()
	}
	if visibility != models.VisibilityPublic && visibility != models.VisibilityPrivate {
		return nil, fmt.Errorf("invalid visibility %q", visibility)
	}

	language, err := s.getOrCreateLanguage(ctx, req.Video.ID, req.LanguageCode)
	if err != nil {
		return nil, err
	}

	versions, err := s.store.GetVersions(ctx, language.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load versions: %w", err)
	}

	parents, crossParents, err := s.resolveParents(ctx, versions, req.ParentIDs)
	if err != nil {
		return nil, err
	}

	version := &models.SubtitleVersion{
		LanguageID:              language.ID,
		ParentIDs:               parents,
		Visibility:              visibility,
		VisibilityOverride:      req.VisibilityOverride,
		Title:                   req.Title,
		Description:             req.Description,
		Metadata:                req.Metadata,
		Origin:                  req.Origin,
		SerializedSubtitles:     payload,
		SubtitleCount:           set.Len(),
		RollbackOfVersionNumber: req.rollbackOf,
	}
	if req.Author != nil {
		version.AuthorID = req.Author.ID
	}
	if version.Origin == "" {
		version.Origin = models.OriginAPI
	}

	s.inheritFields(version, versions, crossParents)

	// Check the action's preconditions before anything is persisted so a
	// doomed action leaves no version behind.
	var action workflows.Action
	if req.Action != "" {
		action, err = workflows.FindAction(workflow, req.Author, req.Action)
		if err != nil {
			return nil, err
		}
		if err := workflows.ValidateAction(ctx, action, req.Author, language, version); err != nil {
			return nil, err
		}
	}

	// A version records the completeness state it was saved under.
	version.SubtitlesComplete = language.SubtitlesComplete
	if action != nil {
		if c := action.Complete(); c != nil {
			version.SubtitlesComplete = *c
		}
	}

	oldPublicTip := tips.PublicTip(versions)

	if err := s.insertVersion(ctx, language, version, versions); err != nil {
		return nil, err
	}
	versions = append(versions, version)

	if err := s.updateTranslationForks(ctx, language, versions); err != nil {
		return nil, err
	}

	if err := s.resolver.Invalidate(ctx, language.ID); err != nil {
		return nil, err
	}

	newPublicTip := tips.PublicTip(versions)
	if !req.SuppressSignals && tipChanged(oldPublicTip, newPublicTip) {
		s.hub.EmitSubtitlesChanged(ctx, language, newPublicTip)
		s.logSignal(signals.SignalSubtitlesChanged, language, newPublicTip)
	}

	if action != nil {
		deps := workflows.Deps{Languages: s.store, Publisher: s}
		if err := workflows.Perform(ctx, deps, workflow, req.Author, language, version, req.Action); err != nil {
			metrics.RecordActionPerformed(req.Action, "error")
			return nil, err
		}
		metrics.RecordActionPerformed(req.Action, "success")
	}

	metrics.RecordVersionCreated(version.Origin, len(payload))
	if s.logger != nil {
		s.logger.LogVersionEvent(req.Video.ID, req.LanguageCode, version.VersionNumber, "created", map[string]interface{}{
			"origin":     version.Origin,
			"visibility": version.Visibility,
		})
	}

	return version, nil
}

// Rollback creates a new version whose content is a byte-for-byte copy of an
// older version. History moves forward: the new version's parent is the
// current tip, and the old version number is never reused.
func (s *Service) Rollback(ctx context.Context, video *models.Video, languageCode string, versionNumber int, author *models.User) (*models.SubtitleVersion, error) {
	if video == nil {
		return nil, fmt.Errorf("video is required")
	}

	language, err := s.store.GetLanguage(ctx, video.ID, languageCode)
	if err != nil {
		return nil, err
	}

	target, err := s.store.GetVersion(ctx, language.ID, versionNumber)
	if err != nil {
		return nil, err
	}
	if target.IsDeleted() {
		return nil, fmt.Errorf("cannot roll back to a deleted version")
	}

	set, err := subtitles.Unmarshal(target.SerializedSubtitles)
	if err != nil {
		return nil, err
	}

	number := versionNumber
	req := &AddSubtitlesRequest{
		Video:        video,
		LanguageCode: languageCode,
		Subtitles:    set,
		Author:       author,
		Visibility:   target.Visibility,
		Title:        target.Title,
		Description:  target.Description,
		Metadata:     target.Metadata,
		Origin:       models.OriginRollback,
		rollbackOf:   &number,
	}

	return s.AddSubtitles(ctx, req)
}

// Publish makes a version visible. If the public tip changes as a result,
// subtitles_changed fires; public_tip_changed fires for the transition
// itself. A no-op publish fires nothing.
func (s *Service) Publish(ctx context.Context, version *models.SubtitleVersion) error {
	return s.setVisibility(ctx, version, models.VisibilityPublic)
}

// Unpublish hides a version from the public tip computation without creating
// a new version. Signal behavior mirrors Publish.
func (s *Service) Unpublish(ctx context.Context, version *models.SubtitleVersion) error {
	return s.setVisibility(ctx, version, models.VisibilityPrivate)
}

func (s *Service) setVisibility(ctx context.Context, version *models.SubtitleVersion, visibility string) error {
	if version.IsDeleted() {
		return fmt.Errorf("cannot change visibility of a deleted version")
	}
	if version.Visibility == visibility {
		return nil
	}

	language, err := s.store.GetLanguageByID(ctx, version.LanguageID)
	if err != nil {
		return err
	}

	versions, err := s.store.GetVersions(ctx, version.LanguageID)
	if err != nil {
		return fmt.Errorf("failed to load versions: %w", err)
	}
	oldPublicTip := tips.PublicTip(versions)

	version.Visibility = visibility
	if err := s.store.UpdateVersionVisibility(ctx, version); err != nil {
		return err
	}

	// Reflect the toggle in the loaded set before recomputing
	for i, v := range versions {
		if v.ID == version.ID {
			versions[i] = version
		}
	}

	if err := s.resolver.Invalidate(ctx, version.LanguageID); err != nil {
		return err
	}

	newPublicTip := tips.PublicTip(versions)

	s.hub.EmitPublicTipChanged(ctx, language, version)
	s.logSignal(signals.SignalPublicTipChanged, language, version)

	if tipChanged(oldPublicTip, newPublicTip) {
		s.hub.EmitSubtitlesChanged(ctx, language, newPublicTip)
		s.logSignal(signals.SignalSubtitlesChanged, language, newPublicTip)
	}

	return nil
}

// NukeLanguage soft-deletes every version of a language. The language row
// survives; its content is archived first when an archiver is configured.
// language_deleted fires exactly once.
func (s *Service) NukeLanguage(ctx context.Context, videoID, languageCode string) (err error) {
	span, ctx := tracing.StartSpan(ctx, "pipeline.nuke_language")
	defer func() {
		tracing.LogError(span, err)
		tracing.FinishSpan(span)
	}()
	tracing.SetTag(span, "video_id", videoID)
	tracing.SetTag(span, "language_code", languageCode)

	language, err := s.store.GetLanguage(ctx, videoID, languageCode)
	if err != nil {
		return err
	}

	versions, err := s.store.GetVersions(ctx, language.ID)
	if err != nil {
		return fmt.Errorf("failed to load versions: %w", err)
	}

	if s.archiver != nil {
		if err := s.archiver.ArchiveLanguage(ctx, language, versions); err != nil {
			return fmt.Errorf("failed to archive language before nuke: %w", err)
		}
	}

	hadPublicTip := tips.PublicTip(versions) != nil

	for _, v := range versions {
		if v.IsDeleted() {
			continue
		}
		v.VisibilityOverride = models.VisibilityOverrideDeleted
		if err := s.store.UpdateVersionVisibility(ctx, v); err != nil {
			return err
		}
	}

	language.SubtitlesComplete = false
	language.ReleaseWritelock()
	if err := s.store.UpdateLanguage(ctx, language); err != nil {
		return err
	}

	if err := s.resolver.Invalidate(ctx, language.ID); err != nil {
		return err
	}

	if hadPublicTip {
		s.hub.EmitSubtitlesChanged(ctx, language, nil)
		s.logSignal(signals.SignalSubtitlesChanged, language, nil)
	}
	s.hub.EmitLanguageDeleted(ctx, language)
	s.logSignal(signals.SignalLanguageDeleted, language, nil)

	metrics.LanguagesNukedTotal.Inc()

	return nil
}

// PerformAction applies a named workflow action outside of a save, against
// the language's current private tip.
func (s *Service) PerformAction(ctx context.Context, user *models.User, video *models.Video, languageCode, actionName string) error {
	if video == nil {
		return fmt.Errorf("video is required")
	}

	language, err := s.store.GetLanguage(ctx, video.ID, languageCode)
	if err != nil {
		return err
	}

	versions, err := s.store.GetVersions(ctx, language.ID)
	if err != nil {
		return fmt.Errorf("failed to load versions: %w", err)
	}

	workflow := s.registry.Get(video)
	deps := workflows.Deps{Languages: s.store, Publisher: s}
	if err := workflows.Perform(ctx, deps, workflow, user, language, tips.PrivateTip(versions), actionName); err != nil {
		metrics.RecordActionPerformed(actionName, "error")
		return err
	}
	metrics.RecordActionPerformed(actionName, "success")
	return nil
}

func (s *Service) getOrCreateLanguage(ctx context.Context, videoID, languageCode string) (*models.SubtitleLanguage, error) {
	language, err := s.store.GetLanguage(ctx, videoID, languageCode)
	if err == nil {
		return language, nil
	}
	if !errors.Is(err, database.ErrLanguageNotFound) {
		return nil, err
	}

	language = &models.SubtitleLanguage{
		VideoID:      videoID,
		LanguageCode: languageCode,
	}
	if createErr := s.store.CreateLanguage(ctx, language); createErr != nil {
		// A concurrent writer may have created it first
		language, err = s.store.GetLanguage(ctx, videoID, languageCode)
		if err != nil {
			return nil, createErr
		}
	}
	return language, nil
}

// resolveParents validates explicit parent references and defaults to the
// current private tip. Cross-language parents (translation lineage) are
// fetched individually.
func (s *Service) resolveParents(ctx context.Context, versions []*models.SubtitleVersion, parentIDs []string) ([]string, []*models.SubtitleVersion, error) {
	if len(parentIDs) == 0 {
		if tip := tips.PrivateTip(versions); tip != nil {
			return []string{tip.ID}, nil, nil
		}
		return nil, nil, nil
	}

	byID := make(map[string]*models.SubtitleVersion, len(versions))
	for _, v := range versions {
		byID[v.ID] = v
	}

	var crossParents []*models.SubtitleVersion
	for _, id := range parentIDs {
		if _, ok := byID[id]; ok {
			continue
		}
		parent, err := s.store.GetVersionByID(ctx, id)
		if err != nil {
			if errors.Is(err, database.ErrVersionNotFound) {
				return nil, nil, fmt.Errorf("%w: %s", ErrInvalidParent, id)
			}
			return nil, nil, err
		}
		crossParents = append(crossParents, parent)
	}

	return parentIDs, crossParents, nil
}

// inheritFields fills blank title/description/metadata from ancestors,
// field by field. Metadata keeps the key order of first introduction:
// ancestor keys come before keys the new version introduces.
func (s *Service) inheritFields(version *models.SubtitleVersion, versions []*models.SubtitleVersion, crossParents []*models.SubtitleVersion) {
	graph := tips.NewGraph(versions, crossParents)

	// Ancestors of the new version, oldest first
	seen := make(map[string]bool)
	var ancestors []*models.SubtitleVersion
	for _, pid := range version.ParentIDs {
		if parent, ok := graph.Version(pid); ok && !seen[pid] {
			seen[pid] = true
			ancestors = append(ancestors, parent)
		}
		for _, aid := range graph.Lineage(pid) {
			if ancestor, ok := graph.Version(aid); ok && !seen[aid] {
				seen[aid] = true
				ancestors = append(ancestors, ancestor)
			}
		}
	}
	sort.Slice(ancestors, func(i, j int) bool {
		return ancestors[i].CreatedAt.Before(ancestors[j].CreatedAt) ||
			(ancestors[i].CreatedAt.Equal(ancestors[j].CreatedAt) && ancestors[i].VersionNumber < ancestors[j].VersionNumber)
	})

	// Nearest non-blank value wins for scalar fields
	for i := len(ancestors) - 1; i >= 0; i-- {
		if version.Title != "" && version.Description != "" {
			break
		}
		if version.Title == "" && ancestors[i].Title != "" {
			version.Title = ancestors[i].Title
		}
		if version.Description == "" && ancestors[i].Description != "" {
			version.Description = ancestors[i].Description
		}
	}

	// Metadata folds oldest-first so first-introduced keys keep their slot
	var merged models.MetadataFields
	for _, ancestor := range ancestors {
		for _, field := range ancestor.Metadata {
			merged.Set(field.Key, field.Value)
		}
	}
	for _, field := range version.Metadata {
		merged.Set(field.Key, field.Value)
	}
	version.Metadata = merged
}

// insertVersion assigns the next version number and persists the row. A
// concurrent writer racing on the same number surfaces as a uniqueness
// conflict; the number is recomputed from the store and the insert retried
// exactly once.
func (s *Service) insertVersion(ctx context.Context, language *models.SubtitleLanguage, version *models.SubtitleVersion, versions []*models.SubtitleVersion) error {
	max := 0
	for _, v := range versions {
		if v.VersionNumber > max {
			max = v.VersionNumber
		}
	}
	version.VersionNumber = max + 1

	err := s.store.CreateVersion(ctx, version)
	if err == nil {
		return nil
	}
	if !errors.Is(err, database.ErrVersionConflict) {
		return err
	}
	metrics.VersionConflictRetriesTotal.Inc()

	max, err = s.store.MaxVersionNumber(ctx, language.ID)
	if err != nil {
		return fmt.Errorf("failed to recompute version number: %w", err)
	}
	version.VersionNumber = max + 1

	if err := s.store.CreateVersion(ctx, version); err != nil {
		return fmt.Errorf("failed to create version after retry: %w", err)
	}
	return nil
}

func tipChanged(old, new *models.SubtitleVersion) bool {
	if old == nil && new == nil {
		return false
	}
	if old == nil || new == nil {
		return true
	}
	return old.ID != new.ID
}

func (s *Service) logSignal(signal string, language *models.SubtitleLanguage, version *models.SubtitleVersion) {
	if s.logger == nil {
		return
	}
	number := 0
	if version != nil {
		number = version.VersionNumber
	}
	s.logger.LogSignalEmit(signal, language.ID, number)
	metrics.SignalsEmittedTotal.WithLabelValues(signal).Inc()
}
