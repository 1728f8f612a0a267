package checkpoint

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/nao1215/shelfcrawl/internal/model"
)

func sampleCheckpoint() model.Checkpoint {
	cp := model.NewCheckpoint()
	cp.LinksToProcess = []string{"http://example.test/b.html", "http://example.test/c.html"}
	cp.ProcessedData["http://example.test/index.html"] = model.Record{}
	cp.ProcessedData["http://example.test/a.html"] = model.Record{
		model.FieldTitle:  "A Light in the Attic",
		model.FieldPrice:  "£51.77",
		model.FieldRating: "Three",
	}
	cp.RetryCounts["http://example.test/b.html"] = 2
	cp.FailedLinks["http://example.test/gone.html"] = model.Failure{Attempts: 5, LastError: "connection refused"}
	return cp
}

func TestFileStore_RoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cp   model.Checkpoint
	}{
		{name: "empty checkpoint", cp: model.NewCheckpoint()},
		{name: "populated checkpoint", cp: sampleCheckpoint()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := NewFileStore(filepath.Join(t.TempDir(), "state.json"))
			ctx := context.Background()

			if err := store.Save(ctx, tt.cp); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
			got, err := store.Load(ctx)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.cp) {
				t.Errorf("Load() = %+v, want %+v", got, tt.cp)
			}
		})
	}
}

func TestFileStore_Layout(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state.json")
	store := NewFileStore(path)

	cp := model.NewCheckpoint()
	cp.LinksToProcess = []string{"http://example.test/index.html"}
	if err := store.Save(context.Background(), cp); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)

	for _, want := range []string{
		"\n    \"links_to_process\": [",
		"\n        \"http://example.test/index.html\"",
		"\"processed_data\": {}",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("checkpoint file missing %q:\n%s", want, text)
		}
	}
	for _, absent := range []string{"retry_counts", "failed_links"} {
		if strings.Contains(text, absent) {
			t.Errorf("empty %s should be omitted:\n%s", absent, text)
		}
	}
}

func TestFileStore_LoadLegacyDocument(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state.json")
	doc := `{"links_to_process": ["http://example.test/x.html"], "processed_data": {"http://example.test/": {}}}`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := NewFileStore(path).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got.LinksToProcess) != 1 || got.LinksToProcess[0] != "http://example.test/x.html" {
		t.Errorf("LinksToProcess = %v", got.LinksToProcess)
	}
	if rec, ok := got.ProcessedData["http://example.test/"]; !ok || !rec.IsEmpty() {
		t.Errorf("ProcessedData = %v", got.ProcessedData)
	}
	if got.RetryCounts == nil || got.FailedLinks == nil {
		t.Error("optional maps should be allocated after Load")
	}
}

func TestFileStore_LoadFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content *string
		wantErr error
	}{
		{name: "missing file", content: nil, wantErr: ErrNoCheckpoint},
		{name: "invalid JSON", content: ptr("{not json"), wantErr: ErrCorrupt},
		{name: "wrong shape", content: ptr(`{"links_to_process": 42}`), wantErr: ErrCorrupt},
		{name: "empty file", content: ptr(""), wantErr: ErrCorrupt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "state.json")
			if tt.content != nil {
				if err := os.WriteFile(path, []byte(*tt.content), 0o600); err != nil {
					t.Fatal(err)
				}
			}

			got, err := NewFileStore(path).Load(context.Background())
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Load() error = %v, want %v", err, tt.wantErr)
			}
			if !IsFresh(err) {
				t.Errorf("IsFresh(%v) = false, want true", err)
			}
			if !got.IsEmpty() {
				t.Errorf("Load() should return an empty checkpoint on failure, got %+v", got)
			}
		})
	}
}

func TestFileStore_SaveOverwritesWithoutLeftovers(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store := NewFileStore(filepath.Join(dir, "state.json"))
	ctx := context.Background()

	for i := range 3 {
		cp := model.NewCheckpoint()
		cp.LinksToProcess = []string{"http://example.test/" + string(rune('a'+i)) + ".html"}
		if err := store.Save(ctx, cp); err != nil {
			t.Fatalf("Save() #%d error = %v", i, err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("directory entries = %v, want only state.json", names)
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got.LinksToProcess[0] != "http://example.test/c.html" {
		t.Errorf("last save not visible: %v", got.LinksToProcess)
	}
}

func TestFileStore_SaveCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := NewFileStore(filepath.Join(t.TempDir(), "state.json"))
	if err := store.Save(ctx, model.NewCheckpoint()); !errors.Is(err, context.Canceled) {
		t.Errorf("Save() error = %v, want context.Canceled", err)
	}
}

func ptr(s string) *string { return &s }
