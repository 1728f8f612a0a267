package model

import "maps"

// Failure describes a URL that was given up on after repeated fetch failures.
// Failed URLs are kept apart from visited ones: they were never recorded and
// can be requeued on a later run.
type Failure struct {
	// Attempts is the number of failed fetches.
	Attempts int `json:"attempts"`

	// LastError is the message of the most recent failure.
	LastError string `json:"last_error,omitempty"`
}

// Checkpoint is the entire recoverable state of a crawl.
//
// The JSON layout is the on-disk checkpoint format: links_to_process is the
// frontier head-first and processed_data maps every visited URL to its
// record. The two optional fields carry retry bookkeeping and are omitted
// when empty, so checkpoints written without them load unchanged.
type Checkpoint struct {
	// LinksToProcess is the frontier, head first.
	LinksToProcess []string `json:"links_to_process"`

	// ProcessedData maps each visited URL to its record (possibly empty).
	ProcessedData map[string]Record `json:"processed_data"`

	// RetryCounts holds failed attempts for URLs still in the frontier.
	RetryCounts map[string]int `json:"retry_counts,omitempty"`

	// FailedLinks holds URLs that exhausted the retry budget.
	FailedLinks map[string]Failure `json:"failed_links,omitempty"`
}

// NewCheckpoint returns an empty checkpoint with all collections allocated.
func NewCheckpoint() Checkpoint {
	return Checkpoint{
		LinksToProcess: make([]string, 0),
		ProcessedData:  make(map[string]Record),
		RetryCounts:    make(map[string]int),
		FailedLinks:    make(map[string]Failure),
	}
}

// Normalize allocates nil collections and replaces nil records with empty
// ones. Decoders call it so that a checkpoint read from disk behaves exactly
// like one built in memory.
func (c *Checkpoint) Normalize() {
	if c.LinksToProcess == nil {
		c.LinksToProcess = make([]string, 0)
	}
	if c.ProcessedData == nil {
		c.ProcessedData = make(map[string]Record)
	}
	for u, rec := range c.ProcessedData {
		if rec == nil {
			c.ProcessedData[u] = Record{}
		}
	}
	if c.RetryCounts == nil {
		c.RetryCounts = make(map[string]int)
	}
	if c.FailedLinks == nil {
		c.FailedLinks = make(map[string]Failure)
	}
}

// IsEmpty reports whether the checkpoint holds no work and no results.
func (c Checkpoint) IsEmpty() bool {
	return len(c.LinksToProcess) == 0 && len(c.ProcessedData) == 0 && len(c.FailedLinks) == 0
}

// Clone returns a deep copy of the checkpoint.
func (c Checkpoint) Clone() Checkpoint {
	out := Checkpoint{
		LinksToProcess: append(make([]string, 0, len(c.LinksToProcess)), c.LinksToProcess...),
		ProcessedData:  make(map[string]Record, len(c.ProcessedData)),
		RetryCounts:    maps.Clone(c.RetryCounts),
		FailedLinks:    maps.Clone(c.FailedLinks),
	}
	for u, rec := range c.ProcessedData {
		out.ProcessedData[u] = rec.Clone()
	}
	out.Normalize()
	return out
}

// Stats summarizes a checkpoint for status output.
type Stats struct {
	// Pending is the number of URLs still in the frontier.
	Pending int `json:"pending"`

	// Visited is the number of URLs in processed_data.
	Visited int `json:"visited"`

	// Extracted is the number of visited URLs with a non-empty record.
	Extracted int `json:"extracted"`

	// Failed is the number of URLs in the failed bucket.
	Failed int `json:"failed"`

	// Retrying is the number of pending URLs with at least one failed attempt.
	Retrying int `json:"retrying"`
}

// Stats computes summary counts for the checkpoint.
func (c Checkpoint) Stats() Stats {
	s := Stats{
		Pending:  len(c.LinksToProcess),
		Visited:  len(c.ProcessedData),
		Failed:   len(c.FailedLinks),
		Retrying: len(c.RetryCounts),
	}
	for _, rec := range c.ProcessedData {
		if !rec.IsEmpty() {
			s.Extracted++
		}
	}
	return s
}
