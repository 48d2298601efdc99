package models

import (
	"time"
)

// SubtitleLanguage represents the subtitle track for one (video, language) pair.
// There is at most one row per pair; versions hang off it.
type SubtitleLanguage struct {
	ID                     string     `json:"id" db:"id"`
	VideoID                string     `json:"video_id" db:"video_id"`
	LanguageCode           string     `json:"language_code" db:"language_code"`
	IsForked               bool       `json:"is_forked" db:"is_forked"`
	SubtitlesComplete      bool       `json:"subtitles_complete" db:"subtitles_complete"`
	OfficialSignoffCount   int        `json:"official_signoff_count" db:"official_signoff_count"`
	UnofficialSignoffCount int        `json:"unofficial_signoff_count" db:"unofficial_signoff_count"`
	WritelockOwnerID       string     `json:"writelock_owner_id,omitempty" db:"writelock_owner_id"`
	WritelockSessionKey    string     `json:"writelock_session_key,omitempty" db:"writelock_session_key"`
	WritelockTime          *time.Time `json:"writelock_time,omitempty" db:"writelock_time"`
	CreatedAt              time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at" db:"updated_at"`
}

// WritelockExpiration is how long an interactive editing session holds the
// advisory writelock without a refresh.
const WritelockExpiration = 30 * time.Second

// IsWritelocked reports whether the language currently holds an unexpired
// writelock. The lock is advisory; it never blocks API writes.
func (l *SubtitleLanguage) IsWritelocked(now time.Time) bool {
	if l.WritelockOwnerID == "" && l.WritelockSessionKey == "" {
		return false
	}
	if l.WritelockTime == nil {
		return false
	}
	return now.Sub(*l.WritelockTime) < WritelockExpiration
}

// CanWritelock reports whether the given session may take or refresh the lock.
func (l *SubtitleLanguage) CanWritelock(sessionKey string, now time.Time) bool {
	if !l.IsWritelocked(now) {
		return true
	}
	return l.WritelockSessionKey == sessionKey
}

// Writelock records the lock for the given owner and session.
func (l *SubtitleLanguage) Writelock(ownerID, sessionKey string, now time.Time) {
	l.WritelockOwnerID = ownerID
	l.WritelockSessionKey = sessionKey
	t := now
	l.WritelockTime = &t
}

// ReleaseWritelock clears the lock fields.
func (l *SubtitleLanguage) ReleaseWritelock() {
	l.WritelockOwnerID = ""
	l.WritelockSessionKey = ""
	l.WritelockTime = nil
}
