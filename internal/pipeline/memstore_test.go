package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/captionflow/captionflow/internal/database"
	"github.com/captionflow/captionflow/pkg/models"
)

// memStore is an in-memory Store. It enforces the same uniqueness rules the
// schema does and hands out copies, so pipeline code cannot mutate stored
// rows without going through an update call.
type memStore struct {
	mu        sync.Mutex
	languages map[string]*models.SubtitleLanguage
	versions  map[string][]*models.SubtitleVersion
	nextID    int

	// beforeCreateVersion runs ahead of each insert while the lock is NOT
	// held by the caller. Tests use it to interleave a competing write.
	beforeCreateVersion func(v *models.SubtitleVersion)

	createVersionCalls int
}

func newMemStore() *memStore {
	return &memStore{
		languages: make(map[string]*models.SubtitleLanguage),
		versions:  make(map[string][]*models.SubtitleVersion),
	}
}

func (m *memStore) id(prefix string) string {
	m.nextID++
	return fmt.Sprintf("%s-%d", prefix, m.nextID)
}

func copyLanguage(l *models.SubtitleLanguage) *models.SubtitleLanguage {
	c := *l
	return &c
}

func copyVersion(v *models.SubtitleVersion) *models.SubtitleVersion {
	c := *v
	c.ParentIDs = append(models.StringList(nil), v.ParentIDs...)
	c.Metadata = append(models.MetadataFields(nil), v.Metadata...)
	c.SerializedSubtitles = append([]byte(nil), v.SerializedSubtitles...)
	return &c
}

func (m *memStore) GetLanguage(ctx context.Context, videoID, languageCode string) (*models.SubtitleLanguage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.languages {
		if l.VideoID == videoID && l.LanguageCode == languageCode {
			return copyLanguage(l), nil
		}
	}
	return nil, database.ErrLanguageNotFound
}

func (m *memStore) GetLanguageByID(ctx context.Context, id string) (*models.SubtitleLanguage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.languages[id]
	if !ok {
		return nil, database.ErrLanguageNotFound
	}
	return copyLanguage(l), nil
}

func (m *memStore) CreateLanguage(ctx context.Context, language *models.SubtitleLanguage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.languages {
		if l.VideoID == language.VideoID && l.LanguageCode == language.LanguageCode {
			return fmt.Errorf("language already exists")
		}
	}
	if language.ID == "" {
		language.ID = m.id("lang")
	}
	m.languages[language.ID] = copyLanguage(language)
	return nil
}

func (m *memStore) UpdateLanguage(ctx context.Context, language *models.SubtitleLanguage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.languages[language.ID]; !ok {
		return database.ErrLanguageNotFound
	}
	m.languages[language.ID] = copyLanguage(language)
	return nil
}

func (m *memStore) GetLanguagesForVideo(ctx context.Context, videoID string) ([]*models.SubtitleLanguage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.SubtitleLanguage
	for _, l := range m.languages {
		if l.VideoID == videoID {
			out = append(out, copyLanguage(l))
		}
	}
	return out, nil
}

func (m *memStore) CreateVersion(ctx context.Context, version *models.SubtitleVersion) error {
	if m.beforeCreateVersion != nil {
		fn := m.beforeCreateVersion
		m.beforeCreateVersion = nil
		fn(version)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.createVersionCalls++

	for _, v := range m.versions[version.LanguageID] {
		if v.VersionNumber == version.VersionNumber {
			return database.ErrVersionConflict
		}
	}
	if version.ID == "" {
		version.ID = m.id("ver")
	}
	if version.CreatedAt.IsZero() {
		m.nextID++
		version.CreatedAt = time.Unix(int64(1700000000+m.nextID), 0)
	}
	m.versions[version.LanguageID] = append(m.versions[version.LanguageID], copyVersion(version))
	return nil
}

func (m *memStore) UpdateVersionVisibility(ctx context.Context, version *models.SubtitleVersion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, v := range m.versions[version.LanguageID] {
		if v.ID == version.ID {
			c := copyVersion(v)
			c.Visibility = version.Visibility
			c.VisibilityOverride = version.VisibilityOverride
			c.ReviewedByID = version.ReviewedByID
			c.ApprovedByID = version.ApprovedByID
			m.versions[version.LanguageID][i] = c
			return nil
		}
	}
	return database.ErrVersionNotFound
}

func (m *memStore) GetVersions(ctx context.Context, languageID string) ([]*models.SubtitleVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.SubtitleVersion, 0, len(m.versions[languageID]))
	for _, v := range m.versions[languageID] {
		out = append(out, copyVersion(v))
	}
	return out, nil
}

func (m *memStore) GetVersion(ctx context.Context, languageID string, versionNumber int) (*models.SubtitleVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.versions[languageID] {
		if v.VersionNumber == versionNumber {
			return copyVersion(v), nil
		}
	}
	return nil, database.ErrVersionNotFound
}

func (m *memStore) GetVersionByID(ctx context.Context, id string) (*models.SubtitleVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, vs := range m.versions {
		for _, v := range vs {
			if v.ID == id {
				return copyVersion(v), nil
			}
		}
	}
	return nil, database.ErrVersionNotFound
}

func (m *memStore) MaxVersionNumber(ctx context.Context, languageID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	max := 0
	for _, v := range m.versions[languageID] {
		if v.VersionNumber > max {
			max = v.VersionNumber
		}
	}
	return max, nil
}
