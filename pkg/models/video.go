package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// Video is the reference the subtitle core holds to a video. The video
// catalog itself (upload, playback, search) lives outside this service.
type Video struct {
	ID                       string    `json:"id" db:"id"`
	Title                    string    `json:"title" db:"title"`
	Duration                 float64   `json:"duration" db:"duration"`
	PrimaryAudioLanguageCode string    `json:"primary_audio_language_code" db:"primary_audio_language_code"`
	TeamID                   string    `json:"team_id,omitempty" db:"team_id"`
	Metadata                 Metadata  `json:"metadata" db:"metadata"`
	CreatedAt                time.Time `json:"created_at" db:"created_at"`
	UpdatedAt                time.Time `json:"updated_at" db:"updated_at"`
}

// IsTeamVideo reports whether the video is managed by a team, which is what
// switches workflow resolution away from the default workflow.
func (v *Video) IsTeamVideo() bool {
	return v.TeamID != ""
}

// Metadata holds additional video metadata
type Metadata map[string]interface{}

// Value implements driver.Valuer for database storage
func (m Metadata) Value() (driver.Value, error) {
	return json.Marshal(m)
}

// Scan implements sql.Scanner for database retrieval
func (m *Metadata) Scan(value interface{}) error {
	if value == nil {
		*m = make(Metadata)
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}

	return json.Unmarshal(bytes, m)
}
