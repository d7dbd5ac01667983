package storage

import (
	"context"
	"fmt"
)

// R2Config holds Cloudflare R2 connection configuration
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	AccessKeySecret string
	BucketName      string
}

// NewR2Storage creates an S3 client pointed at Cloudflare R2
func NewR2Storage(ctx context.Context, cfg R2Config) (*S3Storage, error) {
	if cfg.AccountID == "" {
		return nil, fmt.Errorf("r2 account id is required")
	}

	// R2 endpoint format: https://<account_id>.r2.cloudflarestorage.com
	return NewS3Storage(ctx, S3Config{
		Endpoint:  fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID),
		Region:    "auto",
		Bucket:    cfg.BucketName,
		AccessKey: cfg.AccessKeyID,
		SecretKey: cfg.AccessKeySecret,
	})
}
