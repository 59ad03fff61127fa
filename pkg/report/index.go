package report

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/devicelab-dev/uiprobe/pkg/core"
	"github.com/devicelab-dev/uiprobe/pkg/logger"
	"github.com/devicelab-dev/uiprobe/pkg/suite"
)

// IndexWriter keeps report.json on disk current while a run progresses.
type IndexWriter struct {
	mu    sync.Mutex
	path  string
	index *Index
	err   error // first write error
}

// NewIndex creates an empty index with a fresh run ID.
func NewIndex(target Target, runner RunnerInfo) *Index {
	return &Index{
		Version: Version,
		RunID:   uuid.NewString(),
		Status:  core.StatusPending,
		Target:  target,
		Runner:  runner,
		Groups:  []GroupEntry{},
	}
}

// NewIndexWriter creates a writer for outputDir/report.json.
func NewIndexWriter(outputDir string, index *Index) *IndexWriter {
	return &IndexWriter{
		path:  filepath.Join(outputDir, "report.json"),
		index: index,
	}
}

// Start marks the run as started.
func (w *IndexWriter) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	w.index.Status = core.StatusRunning
	w.index.StartTime = now
	w.flushLocked()
}

// AddGroup records a finished group.
func (w *IndexWriter) AddGroup(result suite.GroupResult) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.index.Groups = append(w.index.Groups, GroupFromResult(result))
	w.flushLocked()
}

// End marks the run as complete and returns the final index.
func (w *IndexWriter) End() *Index {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	w.index.EndTime = &now
	w.index.Status = RunStatus(w.index.Groups)
	w.flushLocked()
	return w.index
}

// Err returns the first error hit while writing report.json.
func (w *IndexWriter) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

func (w *IndexWriter) flushLocked() {
	w.index.UpdateSeq++
	w.index.LastUpdated = time.Now()
	w.index.Summary = ComputeSummary(w.index.Groups)

	if err := atomicWriteJSON(w.path, w.index); err != nil {
		logger.Error("write %s: %v", w.path, err)
		if w.err == nil {
			w.err = err
		}
	}
}

// GroupFromResult converts a suite result to its report entry.
func GroupFromResult(r suite.GroupResult) GroupEntry {
	g := GroupEntry{
		Name:          r.Name,
		Status:        r.Status,
		StartTime:     r.StartTime,
		Duration:      r.Duration,
		SetupError:    r.SetupError,
		TeardownError: r.TeardownError,
		Cases:         make([]CaseEntry, 0, len(r.Cases)),
	}
	for _, c := range r.Cases {
		entry := CaseEntry{
			Name:     c.Name,
			Status:   c.Status,
			Duration: c.Duration,
			Error:    c.Error,

			Attachments: c.Attachments,
		}
		if c.Category != core.ErrCategoryNone {
			entry.Category = c.Category.String()
		}
		if !c.StartTime.IsZero() {
			start := c.StartTime
			entry.StartTime = &start
		}
		g.Cases = append(g.Cases, entry)
	}
	return g
}

// ComputeSummary counts cases across groups.
func ComputeSummary(groups []GroupEntry) Summary {
	var s Summary
	for _, g := range groups {
		for _, c := range g.Cases {
			s.Total++
			switch c.Status {
			case core.StatusPassed:
				s.Passed++
			case core.StatusFailed:
				s.Failed++
			case core.StatusErrored:
				s.Errored++
			case core.StatusSkipped:
				s.Skipped++
			}
		}
	}
	return s
}

// RunStatus determines the overall status from the groups. Any errored group
// makes the run errored, otherwise any failed group makes it failed.
func RunStatus(groups []GroupEntry) core.TestStatus {
	status := core.StatusPassed
	for _, g := range groups {
		switch g.Status {
		case core.StatusErrored:
			return core.StatusErrored
		case core.StatusFailed:
			status = core.StatusFailed
		}
	}
	return status
}
