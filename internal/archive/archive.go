// Package archive stores subtitle payload snapshots in object storage.
// Every nuke archives the full language first, so destructive operations
// stay recoverable; individual versions can also be exported for download.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/captionflow/captionflow/internal/config"
	"github.com/captionflow/captionflow/internal/metrics"
	"github.com/captionflow/captionflow/pkg/models"
)

// Store provides object storage operations for subtitle archives
type Store struct {
	client     *minio.Client
	bucketName string
}

// New creates a new archive store
func New(cfg config.ArchiveConfig) (*Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create archive client: %w", err)
	}

	// Ensure bucket exists
	ctx := context.Background()
	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		err = client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{
			Region: cfg.Region,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &Store{
		client:     client,
		bucketName: cfg.BucketName,
	}, nil
}

// languageSnapshot is the archived form of a language and all its versions.
type languageSnapshot struct {
	Language   *models.SubtitleLanguage  `json:"language"`
	Versions   []*models.SubtitleVersion `json:"versions"`
	ArchivedAt time.Time                 `json:"archived_at"`
}

// ArchiveLanguage writes a full snapshot of a language before destruction.
func (s *Store) ArchiveLanguage(ctx context.Context, language *models.SubtitleLanguage, versions []*models.SubtitleVersion) error {
	snapshot := languageSnapshot{
		Language:   language,
		Versions:   versions,
		ArchivedAt: time.Now().UTC(),
	}

	body, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	key := SnapshotKey(language.VideoID, language.LanguageCode, snapshot.ArchivedAt)

	start := time.Now()
	err = s.upload(ctx, key, body, "application/json")
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.RecordArchiveOperation("snapshot", status, time.Since(start).Seconds(), int64(len(body)))
	if err != nil {
		return fmt.Errorf("failed to archive language %s/%s: %w", language.VideoID, language.LanguageCode, err)
	}

	return nil
}

// ExportVersion writes a single version's payload and returns its object key.
func (s *Store) ExportVersion(ctx context.Context, language *models.SubtitleLanguage, version *models.SubtitleVersion) (string, error) {
	key := VersionKey(language.VideoID, language.LanguageCode, version.VersionNumber)

	start := time.Now()
	err := s.upload(ctx, key, version.SerializedSubtitles, "application/json")
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.RecordArchiveOperation("export", status, time.Since(start).Seconds(), int64(len(version.SerializedSubtitles)))
	if err != nil {
		return "", fmt.Errorf("failed to export version %d: %w", version.VersionNumber, err)
	}

	return key, nil
}

func (s *Store) upload(ctx context.Context, key string, body []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucketName, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	return err
}

// Download returns a reader for an archived object
func (s *Store) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	object, err := s.client.GetObject(ctx, s.bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to download object: %w", err)
	}

	return object, nil
}

// Delete deletes an archived object
func (s *Store) Delete(ctx context.Context, key string) error {
	err := s.client.RemoveObject(ctx, s.bucketName, key, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}

	return nil
}

// GetURL returns a presigned URL for an archived object
func (s *Store) GetURL(ctx context.Context, key string) (string, error) {
	url, err := s.client.PresignedGetObject(ctx, s.bucketName, key, time.Hour, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate URL: %w", err)
	}

	return url.String(), nil
}

// List lists archived objects with a prefix
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	var objects []string

	for object := range s.client.ListObjects(ctx, s.bucketName, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if object.Err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", object.Err)
		}
		objects = append(objects, object.Key)
	}

	return objects, nil
}

// SnapshotKey is the object key for a pre-nuke language snapshot.
func SnapshotKey(videoID, languageCode string, archivedAt time.Time) string {
	return path.Join("snapshots", videoID, languageCode, archivedAt.Format("20060102T150405Z")+".json")
}

// VersionKey is the object key for an exported version payload.
func VersionKey(videoID, languageCode string, versionNumber int) string {
	return path.Join("versions", videoID, languageCode, fmt.Sprintf("%d.json", versionNumber))
}

// LanguagePrefix is the listing prefix for a language's exported versions.
func LanguagePrefix(videoID, languageCode string) string {
	return path.Join("versions", videoID, languageCode) + "/"
}
