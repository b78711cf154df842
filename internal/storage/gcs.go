package storage

import (
	"context"
	"fmt"

	_ "gocloud.dev/blob/gcsblob" // GCS driver
)

// NewGCSStore creates a store backed by Google Cloud Storage.
func NewGCSStore(bucketName, prefix string) (*BlobStore, error) {
	ctx := context.Background()
	return newBlobStore(ctx, fmt.Sprintf("gs://%s", bucketName), "gs", bucketName, prefix)
}
