package fileutil_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"folio/internal/fileutil"
)

func TestWriteAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "blob.bin")
	written, err := fileutil.WriteAtomic(path, strings.NewReader("payload"))
	if err != nil {
		t.Fatalf("WriteAtomic: %v", err)
	}
	if written != int64(len("payload")) {
		t.Fatalf("written = %d", written)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "payload" {
		t.Fatalf("content = %q", data)
	}

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".tmp-") {
			t.Fatalf("stray temp file %s", entry.Name())
		}
	}
}

func TestWriteAtomicOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blob.bin")
	if _, err := fileutil.WriteAtomic(path, strings.NewReader("old")); err != nil {
		t.Fatalf("WriteAtomic: %v", err)
	}
	if _, err := fileutil.WriteAtomic(path, strings.NewReader("new")); err != nil {
		t.Fatalf("WriteAtomic: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "new" {
		t.Fatalf("content = %q", data)
	}
}
