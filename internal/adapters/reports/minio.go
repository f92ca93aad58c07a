// Package reports archives change reports in object storage.
package reports

import (
	"context"
	"fmt"
	"io"
	"time"

	"rightsize_backend/internal/insights/ports"
	"rightsize_backend/platform/apperr"
	"rightsize_backend/platform/config"
	"rightsize_backend/platform/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var _ ports.ReportArchive = (*Archive)(nil)

type Archive struct {
	client *minio.Client
	bucket string
	log    *logger.Logger
}

// NewArchive connects to the object store and makes sure the report
// bucket exists. Returns nil without error when no endpoint is
// configured.
func NewArchive(ctx context.Context, cfg config.ReportStoreConfig, log *logger.Logger) (*Archive, error) {
	if !cfg.IsMinIOEnabled() {
		log.Warn("object storage not configured, report archival disabled")
		return nil, nil
	}

	client, err := minio.New(cfg.GetMinIOEndpoint(), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.GetMinIOAccessKey(), cfg.GetMinIOSecretKey(), ""),
		Secure: cfg.GetMinIOUseSSL(),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to object storage: %w", err)
	}

	a := &Archive{client: client, bucket: cfg.GetMinioBucketReports(), log: log}
	if err := a.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Archive) ensureBucket(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", a.bucket, err)
	}
	if exists {
		return nil
	}
	if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", a.bucket, err)
	}
	a.log.Info("created report bucket", "bucket", a.bucket)
	return nil
}

func (a *Archive) Store(ctx context.Context, name string, content io.Reader, size int64) (string, error) {
	objectPath := fmt.Sprintf("%s/%s", time.Now().UTC().Format("2006/01"), name)

	_, err := a.client.PutObject(ctx, a.bucket, objectPath, content, size, minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("store report %s: %w", objectPath, err)
	}
	return objectPath, nil
}

func (a *Archive) Fetch(ctx context.Context, path string) (io.ReadCloser, error) {
	obj, err := a.client.GetObject(ctx, a.bucket, path, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("fetch report %s: %w", path, err)
	}
	// GetObject is lazy; surface a missing object now instead of on
	// the first read.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, apperr.NotFound("report not found").WithOp("reports.Fetch")
		}
		return nil, fmt.Errorf("fetch report %s: %w", path, err)
	}
	return obj, nil
}
