package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/captionflow/captionflow/pkg/models"
)

// Repository provides database operations
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// Health checks database connectivity
func (r *Repository) Health(ctx context.Context) error {
	return r.db.Health(ctx)
}

// Subtitle languages

// CreateLanguage creates a new subtitle language record. The
// (video_id, language_code) pair is unique; a duplicate insert surfaces as
// ErrVersionConflict-style unique violation from Postgres.
func (r *Repository) CreateLanguage(ctx context.Context, language *models.SubtitleLanguage) error {
	if language.ID == "" {
		language.ID = uuid.New().String()
	}

	query := `
		INSERT INTO subtitle_languages (id, video_id, language_code, is_forked, subtitles_complete,
		                                official_signoff_count, unofficial_signoff_count,
		                                writelock_owner_id, writelock_session_key, writelock_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		language.ID, language.VideoID, language.LanguageCode, language.IsForked,
		language.SubtitlesComplete, language.OfficialSignoffCount, language.UnofficialSignoffCount,
		language.WritelockOwnerID, language.WritelockSessionKey, language.WritelockTime,
	).Scan(&language.CreatedAt, &language.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create subtitle language: %w", err)
	}

	return nil
}

// GetLanguage retrieves a subtitle language by (video, language code)
func (r *Repository) GetLanguage(ctx context.Context, videoID, languageCode string) (*models.SubtitleLanguage, error) {
	query := `
		SELECT id, video_id, language_code, is_forked, subtitles_complete,
		       official_signoff_count, unofficial_signoff_count,
		       writelock_owner_id, writelock_session_key, writelock_time,
		       created_at, updated_at
		FROM subtitle_languages
		WHERE video_id = $1 AND language_code = $2
	`

	return r.scanLanguage(r.db.Pool.QueryRow(ctx, query, videoID, languageCode))
}

// GetLanguageByID retrieves a subtitle language by ID
func (r *Repository) GetLanguageByID(ctx context.Context, id string) (*models.SubtitleLanguage, error) {
	query := `
		SELECT id, video_id, language_code, is_forked, subtitles_complete,
		       official_signoff_count, unofficial_signoff_count,
		       writelock_owner_id, writelock_session_key, writelock_time,
		       created_at, updated_at
		FROM subtitle_languages
		WHERE id = $1
	`

	return r.scanLanguage(r.db.Pool.QueryRow(ctx, query, id))
}

func (r *Repository) scanLanguage(row pgx.Row) (*models.SubtitleLanguage, error) {
	var language models.SubtitleLanguage

	err := row.Scan(
		&language.ID, &language.VideoID, &language.LanguageCode, &language.IsForked,
		&language.SubtitlesComplete, &language.OfficialSignoffCount, &language.UnofficialSignoffCount,
		&language.WritelockOwnerID, &language.WritelockSessionKey, &language.WritelockTime,
		&language.CreatedAt, &language.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, ErrLanguageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subtitle language: %w", err)
	}

	return &language, nil
}

// UpdateLanguage updates a subtitle language record
func (r *Repository) UpdateLanguage(ctx context.Context, language *models.SubtitleLanguage) error {
	query := `
		UPDATE subtitle_languages
		SET is_forked = $2, subtitles_complete = $3, official_signoff_count = $4,
		    unofficial_signoff_count = $5, writelock_owner_id = $6,
		    writelock_session_key = $7, writelock_time = $8, updated_at = now()
		WHERE id = $1
	`

	_, err := r.db.Pool.Exec(ctx, query,
		language.ID, language.IsForked, language.SubtitlesComplete,
		language.OfficialSignoffCount, language.UnofficialSignoffCount,
		language.WritelockOwnerID, language.WritelockSessionKey, language.WritelockTime,
	)

	if err != nil {
		return fmt.Errorf("failed to update subtitle language: %w", err)
	}

	return nil
}

// GetLanguagesForVideo retrieves all subtitle languages of a video
func (r *Repository) GetLanguagesForVideo(ctx context.Context, videoID string) ([]*models.SubtitleLanguage, error) {
	query := `
		SELECT id, video_id, language_code, is_forked, subtitles_complete,
		       official_signoff_count, unofficial_signoff_count,
		       writelock_owner_id, writelock_session_key, writelock_time,
		       created_at, updated_at
		FROM subtitle_languages
		WHERE video_id = $1
		ORDER BY language_code
	`

	rows, err := r.db.Pool.Query(ctx, query, videoID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subtitle languages: %w", err)
	}
	defer rows.Close()

	var languages []*models.SubtitleLanguage
	for rows.Next() {
		var language models.SubtitleLanguage
		err := rows.Scan(
			&language.ID, &language.VideoID, &language.LanguageCode, &language.IsForked,
			&language.SubtitlesComplete, &language.OfficialSignoffCount, &language.UnofficialSignoffCount,
			&language.WritelockOwnerID, &language.WritelockSessionKey, &language.WritelockTime,
			&language.CreatedAt, &language.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subtitle language: %w", err)
		}
		languages = append(languages, &language)
	}

	return languages, nil
}

// Subtitle versions

// CreateVersion inserts a new immutable subtitle version. The unique index
// on (language_id, version_number) is the arbiter for concurrent writers; a
// losing insert returns ErrVersionConflict so the pipeline can recompute the
// number and retry.
func (r *Repository) CreateVersion(ctx context.Context, version *models.SubtitleVersion) error {
	if version.ID == "" {
		version.ID = uuid.New().String()
	}

	query := `
		INSERT INTO subtitle_versions (id, language_id, version_number, parent_ids, visibility,
		                               visibility_override, author_id, title, description, metadata,
		                               origin, serialized_subtitles, subtitle_count, subtitles_complete,
		                               rollback_of_version_number, reviewed_by_id, approved_by_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING created_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		version.ID, version.LanguageID, version.VersionNumber, version.ParentIDs,
		version.Visibility, version.VisibilityOverride, version.AuthorID,
		version.Title, version.Description, version.Metadata, version.Origin,
		version.SerializedSubtitles, version.SubtitleCount, version.SubtitlesComplete,
		version.RollbackOfVersionNumber, version.ReviewedByID, version.ApprovedByID,
	).Scan(&version.CreatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrVersionConflict
		}
		return fmt.Errorf("failed to create subtitle version: %w", err)
	}

	return nil
}

// UpdateVersionVisibility updates the only mutable fields of a version:
// visibility, the override, and the reviewer/approver attribution that the
// review actions record alongside a publish or unpublish.
func (r *Repository) UpdateVersionVisibility(ctx context.Context, version *models.SubtitleVersion) error {
	query := `
		UPDATE subtitle_versions
		SET visibility = $2, visibility_override = $3, reviewed_by_id = $4, approved_by_id = $5
		WHERE id = $1
	`

	_, err := r.db.Pool.Exec(ctx, query,
		version.ID, version.Visibility, version.VisibilityOverride,
		version.ReviewedByID, version.ApprovedByID,
	)
	if err != nil {
		return fmt.Errorf("failed to update version visibility: %w", err)
	}

	return nil
}

// GetVersion retrieves one version of a language by version number
func (r *Repository) GetVersion(ctx context.Context, languageID string, versionNumber int) (*models.SubtitleVersion, error) {
	query := versionSelect + `
		WHERE language_id = $1 AND version_number = $2
	`

	return r.scanVersion(r.db.Pool.QueryRow(ctx, query, languageID, versionNumber))
}

// GetVersionByID retrieves a version by its ID
func (r *Repository) GetVersionByID(ctx context.Context, id string) (*models.SubtitleVersion, error) {
	query := versionSelect + `
		WHERE id = $1
	`

	return r.scanVersion(r.db.Pool.QueryRow(ctx, query, id))
}

// GetVersions retrieves every version of a language, oldest first
func (r *Repository) GetVersions(ctx context.Context, languageID string) ([]*models.SubtitleVersion, error) {
	query := versionSelect + `
		WHERE language_id = $1
		ORDER BY version_number ASC
	`

	rows, err := r.db.Pool.Query(ctx, query, languageID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subtitle versions: %w", err)
	}
	defer rows.Close()

	var versions []*models.SubtitleVersion
	for rows.Next() {
		version, err := r.scanVersionRow(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, version)
	}

	return versions, nil
}

// MaxVersionNumber returns the highest version number ever assigned for a
// language, or zero when the language has no versions. Soft-deleted versions
// still count: numbers are never reused.
func (r *Repository) MaxVersionNumber(ctx context.Context, languageID string) (int, error) {
	query := `
		SELECT COALESCE(MAX(version_number), 0)
		FROM subtitle_versions
		WHERE language_id = $1
	`

	var max int
	if err := r.db.Pool.QueryRow(ctx, query, languageID).Scan(&max); err != nil {
		return 0, fmt.Errorf("failed to get max version number: %w", err)
	}

	return max, nil
}

const versionSelect = `
	SELECT id, language_id, version_number, parent_ids, visibility, visibility_override,
	       author_id, title, description, metadata, origin, serialized_subtitles,
	       subtitle_count, subtitles_complete, rollback_of_version_number,
	       reviewed_by_id, approved_by_id, created_at
	FROM subtitle_versions
`

func (r *Repository) scanVersion(row pgx.Row) (*models.SubtitleVersion, error) {
	var version models.SubtitleVersion

	err := row.Scan(
		&version.ID, &version.LanguageID, &version.VersionNumber, &version.ParentIDs,
		&version.Visibility, &version.VisibilityOverride, &version.AuthorID,
		&version.Title, &version.Description, &version.Metadata, &version.Origin,
		&version.SerializedSubtitles, &version.SubtitleCount, &version.SubtitlesComplete,
		&version.RollbackOfVersionNumber, &version.ReviewedByID, &version.ApprovedByID,
		&version.CreatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, ErrVersionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subtitle version: %w", err)
	}

	return &version, nil
}

func (r *Repository) scanVersionRow(rows pgx.Rows) (*models.SubtitleVersion, error) {
	var version models.SubtitleVersion

	err := rows.Scan(
		&version.ID, &version.LanguageID, &version.VersionNumber, &version.ParentIDs,
		&version.Visibility, &version.VisibilityOverride, &version.AuthorID,
		&version.Title, &version.Description, &version.Metadata, &version.Origin,
		&version.SerializedSubtitles, &version.SubtitleCount, &version.SubtitlesComplete,
		&version.RollbackOfVersionNumber, &version.ReviewedByID, &version.ApprovedByID,
		&version.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan subtitle version: %w", err)
	}

	return &version, nil
}
