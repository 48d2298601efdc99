package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestMetadataFieldsSetPreservesOrder(t *testing.T) {
	var m MetadataFields
	m.Set("speaker-name", "Santa")
	m.Set("location", "North Pole")
	m.Set("speaker-name", "Rudolph")

	if len(m) != 2 {
		t.Fatalf("Expected 2 fields, got %d", len(m))
	}
	if m[0].Key != "speaker-name" || m[0].Value != "Rudolph" {
		t.Errorf("Expected speaker-name=Rudolph first, got %s=%s", m[0].Key, m[0].Value)
	}
	if m[1].Key != "location" {
		t.Errorf("Expected location second, got %s", m[1].Key)
	}
}

func TestMetadataFieldsGet(t *testing.T) {
	m := MetadataFields{{Key: "speaker-name", Value: "Santa"}}

	if v, ok := m.Get("speaker-name"); !ok || v != "Santa" {
		t.Errorf("Expected speaker-name=Santa, got %q (present=%v)", v, ok)
	}
	if _, ok := m.Get("location"); ok {
		t.Error("Expected location to be absent")
	}
}

func TestMetadataFieldsRoundTrip(t *testing.T) {
	m := MetadataFields{
		{Key: "speaker-name", Value: "Santa"},
		{Key: "location", Value: "North Pole"},
	}

	value, err := m.Value()
	if err != nil {
		t.Fatalf("Failed to get value: %v", err)
	}

	var decoded MetadataFields
	if err := decoded.Scan(value.([]byte)); err != nil {
		t.Fatalf("Failed to scan: %v", err)
	}

	if len(decoded) != 2 || decoded[0].Key != "speaker-name" || decoded[1].Key != "location" {
		t.Errorf("Round trip lost ordering: %+v", decoded)
	}
}

func TestStringListScanNil(t *testing.T) {
	var s StringList
	if err := s.Scan(nil); err != nil {
		t.Fatalf("Failed to scan nil: %v", err)
	}
	if len(s) != 0 {
		t.Error("Expected empty list after scanning nil")
	}
}

func TestStringListValue(t *testing.T) {
	s := StringList{"ver-1", "ver-2"}

	value, err := s.Value()
	if err != nil {
		t.Fatalf("Failed to get value: %v", err)
	}

	var result []string
	if err := json.Unmarshal(value.([]byte), &result); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}
	if len(result) != 2 || result[0] != "ver-1" {
		t.Errorf("Unexpected result: %v", result)
	}
}

func TestVersionVisibilityPredicates(t *testing.T) {
	public := &SubtitleVersion{Visibility: VisibilityPublic}
	if !public.IsPublic() || public.IsPrivate() || public.IsDeleted() {
		t.Error("Public version misclassified")
	}

	private := &SubtitleVersion{Visibility: VisibilityPrivate}
	if private.IsPublic() || !private.IsPrivate() {
		t.Error("Private version misclassified")
	}

	deleted := &SubtitleVersion{
		Visibility:         VisibilityPublic,
		VisibilityOverride: VisibilityOverrideDeleted,
	}
	if deleted.IsPublic() || deleted.IsPrivate() || !deleted.IsDeleted() {
		t.Error("Deleted version misclassified: the override wins over visibility")
	}
}

func TestVersionIsRollback(t *testing.T) {
	n := 3
	if (&SubtitleVersion{RollbackOfVersionNumber: &n}).IsRollback() == false {
		t.Error("Expected rollback version to report IsRollback")
	}
	if (&SubtitleVersion{}).IsRollback() {
		t.Error("Expected plain version not to report IsRollback")
	}
}

func TestWritelockLifecycle(t *testing.T) {
	now := time.Now()
	lang := &SubtitleLanguage{}

	if lang.IsWritelocked(now) {
		t.Error("Fresh language should not be locked")
	}
	if !lang.CanWritelock("session-a", now) {
		t.Error("Anyone may take an unheld lock")
	}

	lang.Writelock("user-1", "session-a", now)
	if !lang.IsWritelocked(now) {
		t.Error("Lock should be held after Writelock")
	}
	if lang.CanWritelock("session-b", now) {
		t.Error("Another session must not take a held lock")
	}
	if !lang.CanWritelock("session-a", now) {
		t.Error("Holder may refresh its own lock")
	}

	lang.ReleaseWritelock()
	if lang.IsWritelocked(now) {
		t.Error("Lock should be clear after release")
	}
}

func TestWritelockExpires(t *testing.T) {
	start := time.Now()
	lang := &SubtitleLanguage{}
	lang.Writelock("user-1", "session-a", start)

	later := start.Add(WritelockExpiration + time.Second)
	if lang.IsWritelocked(later) {
		t.Error("Lock should expire after WritelockExpiration")
	}
	if !lang.CanWritelock("session-b", later) {
		t.Error("Expired lock should be takeable by another session")
	}
}

func TestVideoIsTeamVideo(t *testing.T) {
	if (&Video{}).IsTeamVideo() {
		t.Error("Video without team should not be a team video")
	}
	if !(&Video{TeamID: "team-1"}).IsTeamVideo() {
		t.Error("Video with team should be a team video")
	}
}

func TestUserIsMemberOf(t *testing.T) {
	user := &User{TeamIDs: []string{"team-1", "team-2"}}
	if !user.IsMemberOf("team-2") {
		t.Error("Expected membership in team-2")
	}
	if user.IsMemberOf("team-3") {
		t.Error("Did not expect membership in team-3")
	}
}
