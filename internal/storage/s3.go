package storage

import (
	"context"
	"fmt"
	"net/url"

	_ "gocloud.dev/blob/s3blob" // S3 driver
)

// NewS3Store creates a store backed by S3-compatible storage.
// Works with AWS S3, Backblaze B2, Cloudflare R2, and MinIO.
func NewS3Store(bucketName, prefix, endpoint, region string) (*BlobStore, error) {
	ctx := context.Background()

	// Build URL for gocloud.dev
	bucketURL := fmt.Sprintf("s3://%s", bucketName)

	params := url.Values{}
	if region != "" {
		params.Set("region", region)
	}
	if endpoint != "" {
		params.Set("endpoint", endpoint)
		params.Set("s3ForcePathStyle", "true")
	}
	if len(params) > 0 {
		bucketURL = bucketURL + "?" + params.Encode()
	}

	return newBlobStore(ctx, bucketURL, "s3", bucketName, prefix)
}
