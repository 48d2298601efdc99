package subtitles

import (
	"encoding/json"
	"fmt"
)

// Entry is a single timed-text cue. Times are milliseconds from the start of
// the video; a negative time means the cue is unsynced.
type Entry struct {
	StartMS int    `json:"start_ms"`
	EndMS   int    `json:"end_ms"`
	Text    string `json:"text"`
	Region  string `json:"region,omitempty"`
}

// IsSynced reports whether the cue has usable timing data.
func (e Entry) IsSynced() bool {
	return e.StartMS >= 0 && e.EndMS >= 0
}

// Set is an ordered list of cues plus the track-level fields carried with
// the serialized payload.
type Set struct {
	LanguageCode string  `json:"language_code"`
	Title        string  `json:"title,omitempty"`
	Description  string  `json:"description,omitempty"`
	Entries      []Entry `json:"entries"`
}

// NewSet returns an empty set for the given language. An empty set is valid;
// it backs the zero-entry placeholder versions the pipeline creates when a
// language is added without content.
func NewSet(languageCode string) *Set {
	return &Set{LanguageCode: languageCode}
}

// Len returns the number of cues.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Entries)
}

// Append adds a cue to the end of the set.
func (s *Set) Append(startMS, endMS int, text string) {
	s.Entries = append(s.Entries, Entry{StartMS: startMS, EndMS: endMS, Text: text})
}

// ValidationError reports malformed subtitle content. It is rejected at the
// write path before anything is persisted.
type ValidationError struct {
	Index  int
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid subtitle entry %d: %s", e.Index, e.Reason)
}

// Validate checks every cue for impossible timing.
func (s *Set) Validate() error {
	for i, e := range s.Entries {
		if e.IsSynced() && e.StartMS > e.EndMS {
			return &ValidationError{Index: i, Reason: fmt.Sprintf("start_ms %d > end_ms %d", e.StartMS, e.EndMS)}
		}
	}
	return nil
}

// Marshal serializes the set to the canonical JSON payload stored on a
// version. The encoding is deterministic so rollbacks can compare and copy
// payloads byte for byte.
func (s *Set) Marshal() ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal subtitle set: %w", err)
	}
	return data, nil
}

// Unmarshal decodes a serialized payload back into a set.
func Unmarshal(data []byte) (*Set, error) {
	var s Set
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal subtitle set: %w", err)
	}
	return &s, nil
}
