package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/nao1215/shelfcrawl/internal/fsutil"
	"github.com/nao1215/shelfcrawl/internal/model"
)

// WriteFile exports records to path in the given format. Parent directories
// are created and the file is replaced atomically. It returns the number of
// rows written.
func WriteFile(path string, format Format, records map[string]model.Record) (int, error) {
	table := BuildTable(records, model.DefaultFields())

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("failed to create export directory: %w", err)
		}
	}

	err := fsutil.WriteFileAtomic(path, 0o644, func(out io.Writer) error {
		w, err := NewWriter(format, out)
		if err != nil {
			return err
		}
		_, err = w.Write(table)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to export %s: %w", path, err)
	}
	return len(table.Rows), nil
}
