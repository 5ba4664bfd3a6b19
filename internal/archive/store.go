// Package archive uploads downloaded reports to an S3-compatible bucket.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"rjdctl/internal/config"
	"rjdctl/internal/errors"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Uploader stores one document and returns where it went
type Uploader interface {
	Upload(ctx context.Context, name string, content []byte) (string, error)
}

// Store is a minio-backed Uploader
type Store struct {
	client *minio.Client
	bucket string
	prefix string
	logger *errors.Logger
	now    func() time.Time
}

// New connects to the archive endpoint and creates the bucket if needed
func New(ctx context.Context, cfg config.ArchiveConfig, logger *errors.Logger) (*Store, error) {
	if !cfg.Enabled {
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig, "report archive is disabled", nil)
	}

	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
			fmt.Sprintf("invalid archive endpoint %q", cfg.Endpoint), err)
	}

	exists, err := cli.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeArchiveFailed,
			fmt.Sprintf("cannot reach archive bucket %s", cfg.Bucket), err)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, errors.NewIOError(errors.ErrCodeArchiveFailed,
				fmt.Sprintf("cannot create archive bucket %s", cfg.Bucket), err)
		}
		logger.Info("Created archive bucket", "bucket", cfg.Bucket)
	}

	return &Store{client: cli, bucket: cfg.Bucket, prefix: cfg.Prefix, logger: logger, now: time.Now}, nil
}

// Upload stores content under a timestamped key derived from name
func (s *Store) Upload(ctx context.Context, name string, content []byte) (string, error) {
	key := s.objectKey(name)

	info, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(content), int64(len(content)),
		minio.PutObjectOptions{ContentType: contentType(name)})
	if err != nil {
		return "", errors.NewIOError(errors.ErrCodeArchiveFailed,
			fmt.Sprintf("cannot upload %s to bucket %s", key, s.bucket), err)
	}

	endpoint := s.client.EndpointURL()
	location := fmt.Sprintf("%s://%s/%s/%s", endpoint.Scheme, endpoint.Host, s.bucket, key)
	s.logger.Info("Report archived",
		"bucket", s.bucket,
		"key", key,
		"size", info.Size,
		"etag", info.ETag)
	return location, nil
}

func (s *Store) objectKey(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" {
		base = "report.pdf"
	}
	stamp := s.now().UTC().Format("20060102T150405Z")
	return path.Join(s.prefix, stamp+"-"+base)
}

func contentType(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".pdf":
		return "application/pdf"
	case ".json":
		return "application/json"
	case ".html":
		return "text/html"
	}
	return "application/octet-stream"
}
