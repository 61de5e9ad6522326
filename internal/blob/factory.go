package blob

import (
	"context"
	"fmt"

	"unitofwork/internal/config"
	"unitofwork/internal/infra/blob/fs"
	memorystore "unitofwork/internal/infra/blob/memory"
	infraS3 "unitofwork/internal/infra/blob/s3"
)

// Open selects a blob.Store implementation from configuration.
//
//	UOW_BLOB_DRIVER: fs|s3|memory (default fs)
//	UOW_BLOB_FS_ROOT: directory root when driver=fs (default ./blobdata)
//	UOW_BLOB_S3_*: bucket, region, endpoint and path-style when driver=s3
func Open(ctx context.Context, cfg config.BlobConfig) (Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = string(DriverFilesystem)
	}
	switch Driver(driver) {
	case DriverFilesystem:
		store, err := fs.New(cfg.FSRoot)
		if err != nil {
			return nil, err
		}
		return store, nil
	case DriverS3:
		store, err := infraS3.New(ctx, infraS3.Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			PathStyle:       cfg.S3.PathStyle,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			SessionToken:    cfg.S3.SessionToken,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	case DriverMemory:
		return memorystore.New(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}
