package indexer

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/xhad/docchat/internal/models"
)

type Outcome string

const (
	OutcomeIndexed Outcome = "indexed"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// DocumentResult describes what happened to one document, or to one file
// the loader could not turn into documents.
type DocumentResult struct {
	DocumentID string
	SourcePath string
	Extension  models.Extension
	Outcome    Outcome
	Chunks     int
	Err        error
}

// DocumentError is a failed document kept for the final report.
type DocumentError struct {
	DocumentID string
	SourcePath string
	Err        error
}

func (e DocumentError) Error() string {
	return fmt.Sprintf("%s: %v", e.DocumentID, e.Err)
}

// Report tallies an ingest run by file extension.
type Report struct {
	Loaded  map[models.Extension]int
	Indexed map[models.Extension]int
	Skipped map[models.Extension]int
	Failed  map[models.Extension]int
	Chunks  int
	Errors  []DocumentError

	mu sync.Mutex
}

func newReport() *Report {
	return &Report{
		Loaded:  make(map[models.Extension]int),
		Indexed: make(map[models.Extension]int),
		Skipped: make(map[models.Extension]int),
		Failed:  make(map[models.Extension]int),
	}
}

func (r *Report) loaded(ext models.Extension) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Loaded[ext]++
}

func (r *Report) record(result DocumentResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch result.Outcome {
	case OutcomeIndexed:
		r.Indexed[result.Extension]++
		r.Chunks += result.Chunks
	case OutcomeSkipped:
		r.Skipped[result.Extension]++
	case OutcomeFailed:
		r.Failed[result.Extension]++
		r.Errors = append(r.Errors, DocumentError{
			DocumentID: result.DocumentID,
			SourcePath: result.SourcePath,
			Err:        result.Err,
		})
	}
}

// Total sums a per-extension tally.
func Total(counts map[models.Extension]int) int {
	n := 0
	for _, c := range counts {
		n += c
	}
	return n
}

// Summary lists documents loaded per extension, one "EXT: n" line each,
// sorted by extension.
func (r *Report) Summary() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	exts := make([]string, 0, len(r.Loaded))
	for ext := range r.Loaded {
		exts = append(exts, string(ext))
	}
	sort.Strings(exts)

	var b strings.Builder
	b.WriteString("Number of documents loaded by extension:")
	for _, ext := range exts {
		fmt.Fprintf(&b, "\n%s: %d", strings.ToUpper(ext), r.Loaded[models.Extension(ext)])
	}
	return b.String()
}
