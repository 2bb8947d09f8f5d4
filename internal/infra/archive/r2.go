package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/yanqian/meteo-forecast/internal/domain/forecast"
)

// R2Archive writes forecast reports to an S3-compatible bucket (Cloudflare R2, MinIO).
type R2Archive struct {
	client *minio.Client
	bucket string
	logger *slog.Logger

	mu            sync.Mutex
	bucketReady   bool
	prepareBucket func(ctx context.Context) error
}

// NewR2Archive constructs the archive adapter.
func NewR2Archive(endpoint, accessKey, secretKey, bucket, region string, logger *slog.Logger) (*R2Archive, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(bucket) == "" {
		return nil, fmt.Errorf("archive bucket is required")
	}
	useSSL := !strings.HasPrefix(strings.ToLower(strings.TrimSpace(endpoint)), "http://")
	client, err := minio.New(sanitizeEndpoint(endpoint), &minio.Options{
		Creds:        credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure:       useSSL,
		Region:       region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("init archive client: %w", err)
	}
	a := &R2Archive{client: client, bucket: bucket, logger: logger.With("component", "archive.r2")}
	a.prepareBucket = a.createBucket
	return a, nil
}

// ensureBucket creates the bucket on first use. Failures are retried on the
// next Put.
func (a *R2Archive) ensureBucket(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.bucketReady {
		return nil
	}
	if err := a.prepareBucket(ctx); err != nil {
		a.logger.Warn("archive bucket not ready", "bucket", a.bucket, "error", err)
		return err
	}
	a.bucketReady = true
	return nil
}

func (a *R2Archive) createBucket(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err == nil && exists {
		return nil
	}
	err = a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{})
	if err != nil && minio.ToErrorResponse(err).Code != "BucketAlreadyOwnedByYou" {
		return err
	}
	return nil
}

// Put uploads the JSON report.
func (a *R2Archive) Put(ctx context.Context, resp forecast.Response) error {
	if err := a.ensureBucket(ctx); err != nil {
		return err
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	key := ObjectKey(resp)
	info, err := a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:      "application/json",
		DisableMultipart: true,
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	a.logger.Debug("forecast archived", "key", key, "size", info.Size, "etag", info.ETag)
	return nil
}

var _ forecast.Archive = (*R2Archive)(nil)

// sanitizeEndpoint removes schemes and paths to satisfy minio.New expectations.
func sanitizeEndpoint(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(strings.TrimPrefix(raw, "https://"), "http://")
	if idx := strings.Index(raw, "/"); idx >= 0 {
		raw = raw[:idx]
	}
	return raw
}
