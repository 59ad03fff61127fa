// Package report writes run reports.
//
// Layout of the output directory:
//   - report.json: run index, rewritten after every group
//   - junit-report.xml: one testsuite per group for CI systems
package report

import (
	"time"

	"github.com/devicelab-dev/uiprobe/pkg/core"
)

// Version is the report schema version.
const Version = "1.0.0"

// Index is the report.json document.
type Index struct {
	Version     string          `json:"version"`
	RunID       string          `json:"runId"`
	UpdateSeq   uint64          `json:"updateSeq"`
	Status      core.TestStatus `json:"status"`
	StartTime   time.Time       `json:"startTime"`
	EndTime     *time.Time      `json:"endTime,omitempty"`
	LastUpdated time.Time       `json:"lastUpdated"`
	Target      Target          `json:"target"`
	Runner      RunnerInfo      `json:"runner"`
	Summary     Summary         `json:"summary"`
	Groups      []GroupEntry    `json:"groups"`
}

// Target describes what the run was pointed at.
type Target struct {
	AppiumURL  string `json:"appiumUrl,omitempty"`
	DeviceName string `json:"deviceName,omitempty"`
	UDID       string `json:"udid,omitempty"`
	App        string `json:"app,omitempty"` // package/activity
	BaseURL    string `json:"baseUrl,omitempty"`
	Headless   bool   `json:"headless"`
}

// RunnerInfo identifies the tool that produced the report.
type RunnerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Summary contains aggregated case counts.
type Summary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Errored int `json:"errored"`
	Skipped int `json:"skipped"`
}

// GroupEntry is one group and its cases.
type GroupEntry struct {
	Name          string          `json:"name"`
	Status        core.TestStatus `json:"status"`
	StartTime     time.Time       `json:"startTime"`
	Duration      int64           `json:"duration"` // milliseconds
	SetupError    string          `json:"setupError,omitempty"`
	TeardownError string          `json:"teardownError,omitempty"`
	Cases         []CaseEntry     `json:"cases"`
}

// CaseEntry is one case.
type CaseEntry struct {
	Name      string          `json:"name"`
	Status    core.TestStatus `json:"status"`
	Category  string          `json:"category,omitempty"`
	StartTime *time.Time      `json:"startTime,omitempty"`
	Duration  int64           `json:"duration"` // milliseconds
	Error     string          `json:"error,omitempty"`

	Attachments []core.Attachment `json:"attachments,omitempty"`
}
