package storage

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// FSStore stores blobs as flat files under one directory, named by generated
// file IDs. The upload's original name is kept by the asset metadata store,
// not here.
type FSStore struct{ base string }

func NewFSStore(base string) (*FSStore, error) {
	if base == "" {
		base = "./data"
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, err
	}
	return &FSStore{base: base}, nil
}

// Put writes the blob and returns its file ID. The extension of name is
// kept so parsers can tell PDFs from images on disk.
func (s *FSStore) Put(name string, r io.Reader) (string, error) {
	fileID := uuid.NewString() + filepath.Ext(name)
	f, err := os.Create(filepath.Join(s.base, fileID))
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return "", err
	}
	return fileID, nil
}

func (s *FSStore) Get(fileID string) (io.ReadCloser, error) {
	if fileID == "" {
		return nil, errors.New("empty file id")
	}
	return os.Open(filepath.Join(s.base, filepath.Base(fileID)))
}

// Path returns the on-disk location of a stored blob.
func (s *FSStore) Path(fileID string) (string, error) {
	if fileID == "" {
		return "", errors.New("empty file id")
	}
	p := filepath.Join(s.base, filepath.Base(fileID))
	if _, err := os.Stat(p); err != nil {
		return "", err
	}
	return p, nil
}

// UploadImage stores an extracted answer image and returns its file ID,
// satisfying the typed parser's uploader.
func (s *FSStore) UploadImage(data []byte) (string, error) {
	return s.Put("answer.png", bytes.NewReader(data))
}
