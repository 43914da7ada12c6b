package filetree

import (
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// FileHandle abstracts a single input file. Implementations must be cheap to
// hold; bytes are only read when Open is called.
type FileHandle interface {
	Name() string
	RelPath() string
	Size() int64
	MIME() string
	Open() (io.ReadCloser, error)
}

// OSHandle is a FileHandle backed by a file on disk.
type OSHandle struct {
	name    string
	relPath string
	abs     string
	size    int64
}

func (h *OSHandle) Name() string    { return h.name }
func (h *OSHandle) RelPath() string { return h.relPath }
func (h *OSHandle) Size() int64     { return h.size }

func (h *OSHandle) MIME() string {
	if t := mime.TypeByExtension(filepath.Ext(h.name)); t != "" {
		return t
	}
	return "application/octet-stream"
}

func (h *OSHandle) Open() (io.ReadCloser, error) {
	return os.Open(h.abs)
}

// CollectDir walks root and returns one handle per regular file, with
// RelPath relative to root using forward slashes.
func CollectDir(root string) ([]FileHandle, error) {
	var handles []FileHandle
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		handles = append(handles, &OSHandle{
			name:    info.Name(),
			relPath: filepath.ToSlash(rel),
			abs:     path,
			size:    info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return handles, nil
}

// IsMedia reports whether the handle's extension is in exts (lowercase,
// without leading dots).
func IsMedia(h FileHandle, exts []string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(h.Name()), "."))
	for _, candidate := range exts {
		if ext == candidate {
			return true
		}
	}
	return false
}
