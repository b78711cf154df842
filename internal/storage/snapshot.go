package storage

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// CompressSnapshot compresses raw source bytes for archival next to
// the published dataset.
func CompressSnapshot(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	defer enc.Close()

	return enc.EncodeAll(data, nil), nil
}

// DecompressSnapshot restores raw source bytes from a snapshot.
func DecompressSnapshot(compressed []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	defer dec.Close()

	data, err := dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	return data, nil
}
