package blob

import (
	"context"
	"fmt"
	"log"
	"path"
	"path/filepath"
	"strings"
	"time"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/GlobalFishingWatch/pipe-vms-brazil/internal/config"
	"github.com/GlobalFishingWatch/pipe-vms-brazil/internal/metrics"
)

// MinioStore implements Store against a MinIO/S3 bucket.
type MinioStore struct {
	cli    *minio.Client
	bucket string
}

// NewMinioStore dials the object store with a linear-retry loop and ensures
// the bucket exists.
func NewMinioStore(ctx context.Context, cfg config.Config) (*MinioStore, error) {
	var cli *minio.Client
	var err error
	for i := 0; i < 10; i++ {
		cli, err = minio.New(cfg.MinioEndpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.MinioAccess, cfg.MinioSecret, ""),
			Secure: cfg.MinioSSL,
		})
		if err == nil {
			exists, e := cli.BucketExists(ctx, cfg.Bucket)
			if e == nil && exists {
				return &MinioStore{cli: cli, bucket: cfg.Bucket}, nil
			}
			if e == nil {
				if e = cli.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); e == nil {
					return &MinioStore{cli: cli, bucket: cfg.Bucket}, nil
				}
			}
			err = e
		}
		time.Sleep(time.Second * time.Duration(1+i))
	}
	return nil, fmt.Errorf("object store not ready: %w", err)
}

func (s *MinioStore) UploadGlob(ctx context.Context, pattern, prefix string) (int, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return 0, fmt.Errorf("bad glob %q: %w", pattern, err)
	}
	n := 0
	for _, local := range matches {
		key := path.Join(prefix, filepath.Base(local))
		opts := minio.PutObjectOptions{ContentType: "application/json"}
		if strings.HasSuffix(local, ".gz") {
			opts.ContentEncoding = "gzip"
		}
		if _, err := s.cli.FPutObject(ctx, s.bucket, key, local, opts); err != nil {
			metrics.StorageOperationsTotal.WithLabelValues("put", "failure").Inc()
			return n, fmt.Errorf("upload %s to s3://%s/%s: %w", local, s.bucket, key, err)
		}
		metrics.StorageOperationsTotal.WithLabelValues("put", "success").Inc()
		log.Printf("uploaded %s to s3://%s/%s", local, s.bucket, key)
		n++
	}
	return n, nil
}

func (s *MinioStore) Download(ctx context.Context, remotePath, localPath string) error {
	if err := s.cli.FGetObject(ctx, s.bucket, remotePath, localPath, minio.GetObjectOptions{}); err != nil {
		metrics.StorageOperationsTotal.WithLabelValues("get", "failure").Inc()
		return fmt.Errorf("download s3://%s/%s: %w", s.bucket, remotePath, err)
	}
	metrics.StorageOperationsTotal.WithLabelValues("get", "success").Inc()
	log.Printf("downloaded s3://%s/%s to %s", s.bucket, remotePath, localPath)
	return nil
}
