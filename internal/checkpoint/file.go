package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/nao1215/shelfcrawl/internal/fsutil"
	"github.com/nao1215/shelfcrawl/internal/model"
)

// FileStore keeps the checkpoint in a single JSON file.
//
// The document is indented with four spaces so it stays easy to inspect
// by hand. Saves are atomic: a crash mid-save leaves the previous
// checkpoint intact.
type FileStore struct {
	path string
}

// NewFileStore creates a FileStore for the given path.
// The file does not need to exist.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the checkpoint file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the checkpoint file.
func (s *FileStore) Load(ctx context.Context) (model.Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return model.NewCheckpoint(), err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return model.NewCheckpoint(), fmt.Errorf("%s: %w", s.path, ErrNoCheckpoint)
		}
		return model.NewCheckpoint(), fmt.Errorf("%s: %w: %w", s.path, ErrCorrupt, err)
	}

	var cp model.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return model.NewCheckpoint(), fmt.Errorf("%s: %w: %w", s.path, ErrCorrupt, err)
	}
	cp.Normalize()
	return cp, nil
}

// Save writes cp to the checkpoint file atomically.
func (s *FileStore) Save(ctx context.Context, cp model.Checkpoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	cp.Normalize()
	return fsutil.WriteFileAtomic(s.path, 0o644, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "    ")
		if err := enc.Encode(cp); err != nil {
			return fmt.Errorf("failed to encode checkpoint: %w", err)
		}
		return nil
	})
}

// Close is a no-op for FileStore.
func (s *FileStore) Close() error {
	return nil
}
