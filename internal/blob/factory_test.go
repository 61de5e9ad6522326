package blob

import (
	"context"
	"path/filepath"
	"testing"

	"unitofwork/internal/config"
)

func TestOpenSelectsDriver(t *testing.T) {
	ctx := context.Background()
	root := filepath.Join(t.TempDir(), "blobs")

	cases := []struct {
		cfg  config.BlobConfig
		want Driver
	}{
		{config.BlobConfig{FSRoot: root}, DriverFilesystem},
		{config.BlobConfig{Driver: "fs", FSRoot: root}, DriverFilesystem},
		{config.BlobConfig{Driver: "memory"}, DriverMemory},
		{config.BlobConfig{Driver: "s3", S3: config.S3Config{Bucket: "b", AccessKeyID: "AKIA", SecretAccessKey: "SECRET"}}, DriverS3},
	}
	for _, tc := range cases {
		store, err := Open(ctx, tc.cfg)
		if err != nil {
			t.Fatalf("open %+v: %v", tc.cfg, err)
		}
		if store.Driver() != tc.want {
			t.Fatalf("expected %s, got %s", tc.want, store.Driver())
		}
	}
}

func TestOpenErrors(t *testing.T) {
	ctx := context.Background()
	if _, err := Open(ctx, config.BlobConfig{Driver: "gcs"}); err == nil {
		t.Fatalf("expected unknown driver error")
	}
	if _, err := Open(ctx, config.BlobConfig{Driver: "s3"}); err == nil {
		t.Fatalf("expected missing bucket error")
	}
}
