package blob

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/forumly/pagefeed/pkg/config"
	"github.com/forumly/pagefeed/pkg/logging"
)

// MinioStore stores media objects in an S3-compatible bucket
type MinioStore struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

// NewMinioStore creates a blob store backed by MinIO / S3
func NewMinioStore(cfg *config.BlobConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create blob client: %w", err)
	}

	publicURL := cfg.PublicURL
	if publicURL == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		publicURL = fmt.Sprintf("%s://%s/%s", scheme, cfg.Endpoint, cfg.Bucket)
	}

	logging.GetLogger().Info("Blob store initialized")

	return &MinioStore{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
	}, nil
}

// Put uploads one object and returns its durable URL and deletion key
func (s *MinioStore) Put(ctx context.Context, r io.Reader, size int64, hint, contentType string) (PutResult, error) {
	key := fmt.Sprintf("media/%d-%s", time.Now().UnixNano(), sanitize(hint))
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return PutResult{}, fmt.Errorf("failed to upload blob: %w", err)
	}
	return PutResult{
		URL:         s.publicURL + "/" + key,
		DeletionKey: key,
	}, nil
}

// Delete removes one object by its deletion key
func (s *MinioStore) Delete(ctx context.Context, deletionKey string) error {
	if deletionKey == "" {
		return nil
	}
	if err := s.client.RemoveObject(ctx, s.bucket, deletionKey, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete blob: %w", err)
	}
	return nil
}

func sanitize(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	if b.Len() == 0 {
		return "blob"
	}
	return b.String()
}
