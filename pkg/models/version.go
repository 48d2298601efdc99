package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// Visibility values for a subtitle version.
const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
)

// VisibilityOverride values. The override, when set, supersedes Visibility.
const (
	VisibilityOverrideNone    = ""
	VisibilityOverrideDeleted = "deleted"
)

// Version origins.
const (
	OriginAPI      = "api"
	OriginEditor   = "editor"
	OriginImported = "imported"
	OriginRollback = "rollback"
)

// SubtitleVersion is one immutable revision of a language's subtitles.
// Content never changes after creation; only the visibility fields may be
// updated (publish, unpublish, delete).
type SubtitleVersion struct {
	ID                      string         `json:"id" db:"id"`
	LanguageID              string         `json:"language_id" db:"language_id"`
	VersionNumber           int            `json:"version_number" db:"version_number"`
	ParentIDs               StringList     `json:"parent_ids" db:"parent_ids"`
	Visibility              string         `json:"visibility" db:"visibility"`
	VisibilityOverride      string         `json:"visibility_override" db:"visibility_override"`
	AuthorID                string         `json:"author_id" db:"author_id"`
	Title                   string         `json:"title" db:"title"`
	Description             string         `json:"description" db:"description"`
	Metadata                MetadataFields `json:"metadata" db:"metadata"`
	Origin                  string         `json:"origin" db:"origin"`
	SerializedSubtitles     []byte         `json:"-" db:"serialized_subtitles"`
	SubtitleCount           int            `json:"subtitle_count" db:"subtitle_count"`
	SubtitlesComplete       bool           `json:"subtitles_complete" db:"subtitles_complete"`
	RollbackOfVersionNumber *int           `json:"rollback_of_version_number,omitempty" db:"rollback_of_version_number"`
	ReviewedByID            string         `json:"reviewed_by_id,omitempty" db:"reviewed_by_id"`
	ApprovedByID            string         `json:"approved_by_id,omitempty" db:"approved_by_id"`
	CreatedAt               time.Time      `json:"created_at" db:"created_at"`
}

// IsDeleted reports whether the version has been soft-deleted.
func (v *SubtitleVersion) IsDeleted() bool {
	return v.VisibilityOverride == VisibilityOverrideDeleted
}

// IsPublic reports whether the version counts toward the public tip.
func (v *SubtitleVersion) IsPublic() bool {
	if v.VisibilityOverride != VisibilityOverrideNone {
		return false
	}
	return v.Visibility == VisibilityPublic
}

// IsPrivate reports whether the version is visible only to privileged users.
func (v *SubtitleVersion) IsPrivate() bool {
	return !v.IsDeleted() && !v.IsPublic()
}

// IsRollback reports whether the version was created by a rollback.
func (v *SubtitleVersion) IsRollback() bool {
	return v.RollbackOfVersionNumber != nil
}

// MetadataField is a single key/value pair of version metadata. Fields keep
// the order in which their keys were first introduced in the history.
type MetadataField struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// MetadataFields is an ordered list of metadata pairs.
type MetadataFields []MetadataField

// Get returns the value for key and whether it was present.
func (m MetadataFields) Get(key string) (string, bool) {
	for _, f := range m {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

// Set replaces the value for key in place, or appends the pair if absent.
func (m *MetadataFields) Set(key, value string) {
	for i, f := range *m {
		if f.Key == key {
			(*m)[i].Value = value
			return
		}
	}
	*m = append(*m, MetadataField{Key: key, Value: value})
}

// Value implements driver.Valuer for database storage
func (m MetadataFields) Value() (driver.Value, error) {
	return json.Marshal(m)
}

// Scan implements sql.Scanner for database retrieval
func (m *MetadataFields) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}

	return json.Unmarshal(bytes, m)
}

// StringList is a JSON-encoded string slice column.
type StringList []string

// Value implements driver.Valuer for database storage
func (s StringList) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// Scan implements sql.Scanner for database retrieval
func (s *StringList) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}

	return json.Unmarshal(bytes, s)
}
