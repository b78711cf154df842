package source

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/gcsblob" // GCS driver
	_ "gocloud.dev/blob/s3blob"  // S3 driver
	"gocloud.dev/gcerrors"
)

// BlobSource reads the raw export from an object store through
// gocloud.dev. Endpoint and region for S3-compatible stores travel as
// query parameters on the URI, e.g.
// s3://bucket/raw.csv?endpoint=minio:9000&region=us-east-1.
type BlobSource struct {
	bucket *blob.Bucket
	key    string
	uri    string
}

// NewBlobSource opens the bucket referenced by a gs:// or s3:// URI.
func NewBlobSource(rawURI string) (*BlobSource, error) {
	u, err := url.Parse(rawURI)
	if err != nil {
		return nil, fmt.Errorf("parse source URI %s: %w", rawURI, err)
	}

	key := strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return nil, fmt.Errorf("source URI %s must name a bucket and object key", rawURI)
	}

	bucketURL := u.Scheme + "://" + u.Host
	params := u.Query()
	if u.Scheme == "s3" && params.Get("endpoint") != "" {
		params.Set("s3ForcePathStyle", "true")
	}
	if len(params) > 0 {
		bucketURL = bucketURL + "?" + params.Encode()
	}

	bucket, err := blob.OpenBucket(context.Background(), bucketURL)
	if err != nil {
		return nil, fmt.Errorf("open bucket for %s: %w", rawURI, err)
	}

	return &BlobSource{
		bucket: bucket,
		key:    key,
		uri:    fmt.Sprintf("%s://%s/%s", u.Scheme, u.Host, key),
	}, nil
}

// Fetch reads the whole object. Any failure to read is fatal.
func (s *BlobSource) Fetch(ctx context.Context) (*RawInput, error) {
	data, err := s.bucket.ReadAll(ctx, s.key)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, fmt.Errorf("%w: %s", ErrUnreadable, s.uri)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreadable, s.uri, err)
	}

	return &RawInput{Data: data, URI: s.uri}, nil
}

// Close releases the bucket connection.
func (s *BlobSource) Close() error {
	if s.bucket != nil {
		return s.bucket.Close()
	}
	return nil
}
