// Package storage holds uploaded PDFs and extracted answer images as blobs
// keyed by opaque file IDs.
package storage

import "io"

// BlobStore is the blob persistence boundary.
type BlobStore interface {
	Put(name string, r io.Reader) (string, error) // returns the new file ID
	Get(fileID string) (io.ReadCloser, error)
	Path(fileID string) (string, error) // local path for PDF parsers
}
