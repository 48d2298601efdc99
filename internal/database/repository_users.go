package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/captionflow/captionflow/pkg/models"
)

// Users

// CreateUser creates a new user record
func (r *Repository) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}

	query := `
		INSERT INTO users (id, email, username, password_hash, api_key, team_ids, is_staff, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		user.ID, user.Email, user.Username, user.PasswordHash, user.APIKey,
		user.TeamIDs, user.IsStaff, user.IsActive,
	).Scan(&user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetUserByID retrieves a user by ID
func (r *Repository) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	var user models.User

	query := `
		SELECT id, email, username, password_hash, api_key, team_ids, is_staff, is_active,
		       created_at, updated_at
		FROM users
		WHERE id = $1
	`

	err := r.db.Pool.QueryRow(ctx, query, userID).Scan(
		&user.ID, &user.Email, &user.Username, &user.PasswordHash, &user.APIKey,
		&user.TeamIDs, &user.IsStaff, &user.IsActive, &user.CreatedAt, &user.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// ValidateAPIKey retrieves the active user owning an API key
func (r *Repository) ValidateAPIKey(ctx context.Context, apiKey string) (*models.User, error) {
	var user models.User

	query := `
		SELECT id, email, username, password_hash, api_key, team_ids, is_staff, is_active,
		       created_at, updated_at
		FROM users
		WHERE api_key = $1 AND is_active = true
	`

	err := r.db.Pool.QueryRow(ctx, query, apiKey).Scan(
		&user.ID, &user.Email, &user.Username, &user.PasswordHash, &user.APIKey,
		&user.TeamIDs, &user.IsStaff, &user.IsActive, &user.CreatedAt, &user.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("invalid API key")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to validate API key: %w", err)
	}

	return &user, nil
}

// Videos

// CreateVideo creates a new video reference record
func (r *Repository) CreateVideo(ctx context.Context, video *models.Video) error {
	if video.ID == "" {
		video.ID = uuid.New().String()
	}

	query := `
		INSERT INTO videos (id, title, duration, primary_audio_language_code, team_id, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		video.ID, video.Title, video.Duration, video.PrimaryAudioLanguageCode,
		video.TeamID, video.Metadata,
	).Scan(&video.CreatedAt, &video.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create video: %w", err)
	}

	return nil
}

// GetVideo retrieves a video by ID
func (r *Repository) GetVideo(ctx context.Context, id string) (*models.Video, error) {
	var video models.Video

	query := `
		SELECT id, title, duration, primary_audio_language_code, team_id, metadata,
		       created_at, updated_at
		FROM videos
		WHERE id = $1
	`

	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&video.ID, &video.Title, &video.Duration, &video.PrimaryAudioLanguageCode,
		&video.TeamID, &video.Metadata, &video.CreatedAt, &video.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("video not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get video: %w", err)
	}

	return &video, nil
}
