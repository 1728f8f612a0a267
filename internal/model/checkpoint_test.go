package model

import "testing"

// TestCheckpoint tests checkpoint helpers.
func TestCheckpoint(t *testing.T) {
	t.Parallel()

	t.Run("new checkpoint is empty", func(t *testing.T) {
		t.Parallel()

		cp := NewCheckpoint()
		if !cp.IsEmpty() {
			t.Error("expected new checkpoint to be empty")
		}
	})

	t.Run("normalize allocates collections and fills nil records", func(t *testing.T) {
		t.Parallel()

		cp := Checkpoint{ProcessedData: map[string]Record{"http://example.test/": nil}}
		cp.Normalize()

		if cp.LinksToProcess == nil || cp.RetryCounts == nil || cp.FailedLinks == nil {
			t.Fatal("expected all collections to be allocated")
		}
		if cp.ProcessedData["http://example.test/"] == nil {
			t.Error("expected nil record to be replaced with an empty record")
		}
	})

	t.Run("clone is deep", func(t *testing.T) {
		t.Parallel()

		cp := NewCheckpoint()
		cp.LinksToProcess = append(cp.LinksToProcess, "http://example.test/a")
		cp.ProcessedData["http://example.test/"] = Record{"title": "x"}
		cp.RetryCounts["http://example.test/a"] = 1

		c := cp.Clone()
		c.LinksToProcess[0] = "changed"
		c.ProcessedData["http://example.test/"]["title"] = "changed"
		c.RetryCounts["http://example.test/a"] = 9

		if cp.LinksToProcess[0] != "http://example.test/a" {
			t.Error("frontier shared with clone")
		}
		if cp.ProcessedData["http://example.test/"]["title"] != "x" {
			t.Error("record shared with clone")
		}
		if cp.RetryCounts["http://example.test/a"] != 1 {
			t.Error("retry counts shared with clone")
		}
	})

	t.Run("stats counts extracted records only when non-empty", func(t *testing.T) {
		t.Parallel()

		cp := NewCheckpoint()
		cp.LinksToProcess = []string{"http://example.test/c"}
		cp.ProcessedData["http://example.test/a"] = Record{"title": "x"}
		cp.ProcessedData["http://example.test/b"] = Record{}
		cp.FailedLinks["http://example.test/d"] = Failure{Attempts: 5}

		s := cp.Stats()
		if s.Pending != 1 || s.Visited != 2 || s.Extracted != 1 || s.Failed != 1 {
			t.Errorf("unexpected stats: %+v", s)
		}
	})
}
