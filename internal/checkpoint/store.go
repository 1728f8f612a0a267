package checkpoint

import (
	"context"
	"errors"

	"github.com/nao1215/shelfcrawl/internal/model"
)

var (
	// ErrNoCheckpoint is returned by Load when no checkpoint has been saved yet.
	ErrNoCheckpoint = errors.New("no checkpoint found")

	// ErrCorrupt is wrapped by Load errors for checkpoints that exist but
	// cannot be decoded.
	ErrCorrupt = errors.New("checkpoint is corrupt")
)

// Store loads and saves crawl checkpoints.
type Store interface {
	// Load returns the last saved checkpoint. On failure it returns an empty
	// checkpoint and an error; see ErrNoCheckpoint and ErrCorrupt.
	Load(ctx context.Context) (model.Checkpoint, error)

	// Save replaces the stored checkpoint with cp.
	Save(ctx context.Context, cp model.Checkpoint) error

	// Close releases resources held by the store.
	Close() error
}

// IsFresh reports whether a Load error means "no usable checkpoint, start
// fresh" rather than an I/O failure the caller may want to surface.
func IsFresh(err error) bool {
	return errors.Is(err, ErrNoCheckpoint) || errors.Is(err, ErrCorrupt)
}
