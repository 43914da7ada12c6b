// Package assets defines the persistence collaborator the ingest pipeline
// writes through, plus a filesystem-backed implementation used by the CLI.
// The orchestrator treats the store as opaque; swapping in a remote blob
// store only requires implementing Store.
package assets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"folio/internal/archive"
	"folio/internal/fileutil"
)

// Store is the external persistence surface for ingest output.
type Store interface {
	SaveAsset(ctx context.Context, id string, r io.Reader) error
	SaveDerivative(ctx context.Context, assetID, sizeTag string, blob []byte) error
	SaveProject(ctx context.Context, root *archive.Entity) error
}

// FSStore persists assets under a directory:
//
//	<root>/assets/ab/abcd....bin
//	<root>/derivatives/<assetID>/<sizeTag>.jpg
//	<root>/project.json
type FSStore struct {
	root string
}

// NewFSStore creates a filesystem store rooted at dir.
func NewFSStore(dir string) *FSStore {
	return &FSStore{root: dir}
}

// Root returns the store's base directory.
func (s *FSStore) Root() string { return s.root }

// ProjectPath returns the location of the persisted archive graph.
func (s *FSStore) ProjectPath() string {
	return filepath.Join(s.root, "project.json")
}

func (s *FSStore) SaveAsset(ctx context.Context, id string, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if id == "" {
		return fmt.Errorf("save asset: empty id")
	}
	shard := id
	if len(shard) > 2 {
		shard = shard[:2]
	}
	path := filepath.Join(s.root, "assets", shard, id+".bin")
	if _, err := fileutil.WriteAtomic(path, r); err != nil {
		return fmt.Errorf("save asset %s: %w", id, err)
	}
	return nil
}

func (s *FSStore) SaveDerivative(ctx context.Context, assetID, sizeTag string, blob []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := filepath.Join(s.root, "derivatives", assetID, sizeTag+".jpg")
	if _, err := fileutil.WriteAtomic(path, bytes.NewReader(blob)); err != nil {
		return fmt.Errorf("save derivative %s/%s: %w", assetID, sizeTag, err)
	}
	return nil
}

func (s *FSStore) SaveProject(ctx context.Context, root *archive.Entity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(root, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal project: %w", err)
	}
	if _, err := fileutil.WriteAtomic(s.ProjectPath(), bytes.NewReader(data)); err != nil {
		return fmt.Errorf("save project: %w", err)
	}
	return nil
}

// LoadProject reads a previously saved archive graph, or nil when none
// exists.
func (s *FSStore) LoadProject() (*archive.Entity, error) {
	return LoadProjectFile(s.ProjectPath())
}

// LoadProjectFile reads an archive graph from an arbitrary project file, or
// nil when the file does not exist.
func LoadProjectFile(path string) (*archive.Entity, error) {
	data, err := readFileIfExists(path)
	if err != nil || data == nil {
		return nil, err
	}
	var root archive.Entity
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse project %s: %w", path, err)
	}
	return &root, nil
}
