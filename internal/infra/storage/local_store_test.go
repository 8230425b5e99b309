// File: internal/infra/storage/local_store_test.go
//go:build !integration

package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestStoreWritesAndReturnsURL(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStore(dir, "http://localhost:8080/artifacts/")
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}

	url, err := s.Store(context.Background(), []byte("png-bytes"), "u1/image/job-1.png")
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if url != "http://localhost:8080/artifacts/u1/image/job-1.png" {
		t.Errorf("url = %q", url)
	}

	data, err := os.ReadFile(filepath.Join(dir, "u1", "image", "job-1.png"))
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if string(data) != "png-bytes" {
		t.Errorf("artifact content = %q", data)
	}
}

func TestStoreRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStore(dir, "http://localhost:8080/artifacts")
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}

	if _, err := s.Store(context.Background(), []byte("x"), "../../etc/passwd"); err != nil {
		// A clean rejection is fine.
		return
	}
	// Otherwise the write must have stayed inside the base directory.
	if _, err := os.Stat(filepath.Join(dir, "etc", "passwd")); err != nil {
		t.Error("traversal path escaped the artifact directory")
	}
}
