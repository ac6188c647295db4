package testutils

import (
	"bytes"
	"context"
	"io"
	"testing"

	"gocloud.dev/blob"
)

// CompareReaderToData compares reader output with expected data in chunks.
func CompareReaderToData(t *testing.T, reader io.Reader, expected []byte) {
	t.Helper()

	buf := make([]byte, 1024*1024)
	offset := 0

	for {
		n, err := reader.Read(buf)
		if n > 0 {
			if offset+n > len(expected) {
				t.Fatalf("read more data than expected: offset=%d, n=%d, expected len=%d",
					offset, n, len(expected))
			}
			if !bytes.Equal(buf[:n], expected[offset:offset+n]) {
				t.Fatalf("data mismatch at offset %d", offset)
			}
			offset += n
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("read error at offset %d: %v", offset, err)
		}
	}

	if offset != len(expected) {
		t.Fatalf("incomplete read: got %d bytes, want %d", offset, len(expected))
	}
}

// CompareObjectToData reads key from bucket and compares it with expected.
func CompareObjectToData(t *testing.T, ctx context.Context, bucket *blob.Bucket, key string, expected []byte) {
	t.Helper()

	r, err := bucket.NewReader(ctx, key, nil)
	if err != nil {
		t.Fatalf("open object %q: %v", key, err)
	}
	defer r.Close()

	CompareReaderToData(t, r, expected)
}
