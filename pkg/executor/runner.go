// Package executor runs test groups one after another and writes the run
// reports.
package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/devicelab-dev/uiprobe/pkg/core"
	"github.com/devicelab-dev/uiprobe/pkg/logger"
	"github.com/devicelab-dev/uiprobe/pkg/report"
	"github.com/devicelab-dev/uiprobe/pkg/suite"
)

// RunnerConfig configures the test runner.
type RunnerConfig struct {
	OutputDir  string // Report output directory
	Filter     string // Case name filter passed to every group
	StopOnFail bool   // Skip remaining groups after the first failed or errored one

	// Target info for reports
	Target report.Target

	// Runner metadata
	RunnerVersion string

	// Live progress callbacks
	OnGroupStart func(groupIdx, totalGroups int, name string)
	OnCaseStart  func(group, name string)
	OnCaseEnd    func(group string, result suite.CaseResult)
	OnGroupEnd   func(result suite.GroupResult)
}

// RunResult contains the outcome of a test run.
type RunResult struct {
	RunID         string
	Status        core.TestStatus
	TotalGroups   int
	PassedGroups  int
	FailedGroups  int
	ErroredGroups int
	SkippedGroups int
	Cases         report.Summary
	Duration      int64 // Total duration in milliseconds
	Groups        []suite.GroupResult
}

// Passed reports whether nothing failed or errored.
func (r *RunResult) Passed() bool {
	return r.Status == core.StatusPassed || r.Status == core.StatusSkipped
}

// Runner orchestrates group execution.
type Runner struct {
	config RunnerConfig
}

// New creates a new Runner.
func New(cfg RunnerConfig) *Runner {
	return &Runner{config: cfg}
}

// Run executes groups strictly in order, then writes report.json and
// junit-report.xml to the output directory. Groups not reached because ctx
// was cancelled, or because StopOnFail tripped, are recorded as skipped.
// The result is returned even when writing the reports fails.
func (r *Runner) Run(ctx context.Context, groups []suite.Runnable) (*RunResult, error) {
	start := time.Now()

	index := report.NewIndex(r.config.Target, report.RunnerInfo{
		Name:    "uiprobe",
		Version: r.config.RunnerVersion,
	})
	writer := report.NewIndexWriter(r.config.OutputDir, index)
	writer.Start()
	logger.Info("run %s: %d group(s), reports in %s", index.RunID, len(groups), r.config.OutputDir)

	opts := suite.Options{
		Filter:      r.config.Filter,
		OutputDir:   r.config.OutputDir,
		OnCaseStart: r.config.OnCaseStart,
		OnCaseEnd:   r.config.OnCaseEnd,
	}

	results := make([]suite.GroupResult, 0, len(groups))
	stopped := ""
	for i, g := range groups {
		if stopped == "" && ctx.Err() != nil {
			stopped = "run cancelled"
		}

		var res suite.GroupResult
		if stopped != "" {
			res = skippedGroup(g, r.config.Filter, stopped)
		} else {
			if r.config.OnGroupStart != nil {
				r.config.OnGroupStart(i, len(groups), g.GroupName())
			}
			res = g.Run(ctx, opts)
			if r.config.StopOnFail && failed(res.Status) {
				stopped = fmt.Sprintf("stopped after %s %s", res.Name, res.Status)
			}
		}

		writer.AddGroup(res)
		results = append(results, res)
		if r.config.OnGroupEnd != nil {
			r.config.OnGroupEnd(res)
		}
	}

	final := writer.End()
	result := buildRunResult(final, results, time.Since(start).Milliseconds())

	if err := writer.Err(); err != nil {
		return result, fmt.Errorf("write report: %w", err)
	}
	if err := report.GenerateJUnit(r.config.OutputDir); err != nil {
		return result, err
	}
	return result, nil
}

func failed(s core.TestStatus) bool {
	return s == core.StatusFailed || s == core.StatusErrored
}

// skippedGroup records a group that never ran.
func skippedGroup(g suite.Runnable, filter, reason string) suite.GroupResult {
	res := suite.GroupResult{
		Name:      g.GroupName(),
		Status:    core.StatusSkipped,
		StartTime: time.Now(),
	}
	for _, name := range g.CaseNames() {
		if filter != "" && !strings.Contains(name, filter) {
			continue
		}
		res.Cases = append(res.Cases, suite.CaseResult{
			Name:   name,
			Status: core.StatusSkipped,
			Error:  reason,
		})
	}
	return res
}

// buildRunResult aggregates group results into a run result.
func buildRunResult(index *report.Index, groups []suite.GroupResult, duration int64) *RunResult {
	result := &RunResult{
		RunID:       index.RunID,
		Status:      index.Status,
		TotalGroups: len(groups),
		Cases:       index.Summary,
		Duration:    duration,
		Groups:      groups,
	}

	for _, g := range groups {
		switch g.Status {
		case core.StatusPassed:
			result.PassedGroups++
		case core.StatusFailed:
			result.FailedGroups++
		case core.StatusErrored:
			result.ErroredGroups++
		case core.StatusSkipped:
			result.SkippedGroups++
		}
	}

	if len(groups) > 0 && result.SkippedGroups == len(groups) {
		result.Status = core.StatusSkipped
	}
	return result
}
