package storage

import (
	"io"
	"strings"
	"testing"
)

func newTestFSStore(t *testing.T) *FSStore {
	t.Helper()
	s, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}
	return s
}

func TestPutGetRoundTrip(t *testing.T) {
	s := newTestFSStore(t)

	fileID, err := s.Put("scheme.pdf", strings.NewReader("pdf bytes"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !strings.HasSuffix(fileID, ".pdf") {
		t.Errorf("fileID = %q, want .pdf extension kept", fileID)
	}

	rc, err := s.Get(fileID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read blob: %v", err)
	}
	if string(data) != "pdf bytes" {
		t.Errorf("blob = %q", data)
	}

	path, err := s.Path(fileID)
	if err != nil {
		t.Fatalf("Path: %v", err)
	}
	if !strings.HasSuffix(path, fileID) {
		t.Errorf("path = %q, want it to end in %q", path, fileID)
	}
}

func TestDistinctIDsPerPut(t *testing.T) {
	s := newTestFSStore(t)

	a, err := s.Put("sheet.pdf", strings.NewReader("one"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	b, err := s.Put("sheet.pdf", strings.NewReader("two"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if a == b {
		t.Error("same upload name must still get distinct file ids")
	}
}

func TestPathUnknownFile(t *testing.T) {
	s := newTestFSStore(t)
	if _, err := s.Path("missing.pdf"); err == nil {
		t.Error("Path for unknown file must fail")
	}
}

func TestUploadImage(t *testing.T) {
	s := newTestFSStore(t)

	fileID, err := s.UploadImage([]byte{0x89, 'P', 'N', 'G'})
	if err != nil {
		t.Fatalf("UploadImage: %v", err)
	}
	if !strings.HasSuffix(fileID, ".png") {
		t.Errorf("fileID = %q, want .png extension", fileID)
	}
}
