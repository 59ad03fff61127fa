package executor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/devicelab-dev/uiprobe/pkg/core"
	"github.com/devicelab-dev/uiprobe/pkg/report"
	"github.com/devicelab-dev/uiprobe/pkg/suite"
)

// fakeSession counts how often it is closed.
type fakeSession struct {
	closes *int
}

func (f fakeSession) Close() error {
	*f.closes++
	return nil
}

func group(name string, closes *int, bodies map[string]error) *suite.Group[fakeSession] {
	g := &suite.Group[fakeSession]{
		Name: name,
		Open: func(ctx context.Context) (fakeSession, error) {
			return fakeSession{closes: closes}, nil
		},
	}
	// Stable order for assertions.
	for _, n := range []string{"a", "b", "c"} {
		err, ok := bodies[n]
		if !ok {
			continue
		}
		g.Cases = append(g.Cases, suite.Case[fakeSession]{
			Name: n,
			Body: func(ctx context.Context, s fakeSession) error { return err },
		})
	}
	return g
}

func TestRunner_Run_AllPassed(t *testing.T) {
	tmpDir := t.TempDir()
	var closes int

	runner := New(RunnerConfig{
		OutputDir:     tmpDir,
		Target:        report.Target{DeviceName: "emulator-5554"},
		RunnerVersion: "1.0.0",
	})

	result, err := runner.Run(context.Background(), []suite.Runnable{
		group("first", &closes, map[string]error{"a": nil, "b": nil}),
		group("second", &closes, map[string]error{"a": nil}),
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.Status != core.StatusPassed {
		t.Errorf("Status = %v, want %v", result.Status, core.StatusPassed)
	}
	if result.TotalGroups != 2 || result.PassedGroups != 2 {
		t.Errorf("groups = %d total / %d passed, want 2/2", result.TotalGroups, result.PassedGroups)
	}
	if result.Cases.Total != 3 || result.Cases.Passed != 3 {
		t.Errorf("cases = %+v, want 3 passed", result.Cases)
	}
	if closes != 2 {
		t.Errorf("sessions closed %d times, want 2", closes)
	}
	if !result.Passed() {
		t.Error("Passed() = false")
	}
	if result.RunID == "" {
		t.Error("RunID is empty")
	}

	index, err := report.ReadReport(tmpDir)
	if err != nil {
		t.Fatalf("ReadReport() error = %v", err)
	}
	if index.RunID != result.RunID {
		t.Errorf("report run id %q, want %q", index.RunID, result.RunID)
	}
	if index.EndTime == nil {
		t.Error("report has no end time")
	}
	if index.Target.DeviceName != "emulator-5554" {
		t.Errorf("target = %+v", index.Target)
	}
	if _, err := os.Stat(filepath.Join(tmpDir, "junit-report.xml")); err != nil {
		t.Errorf("junit report missing: %v", err)
	}
}

func TestRunner_Run_WithFailure(t *testing.T) {
	tmpDir := t.TempDir()
	var closes int

	runner := New(RunnerConfig{OutputDir: tmpDir})
	result, err := runner.Run(context.Background(), []suite.Runnable{
		group("failing", &closes, map[string]error{
			"a": nil,
			"b": core.ErrElementNotFound.WithMessage("no clickable element for candidates [id=idX, id=idY]"),
		}),
		group("passing", &closes, map[string]error{"a": nil}),
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.Status != core.StatusFailed {
		t.Errorf("Status = %v, want failed", result.Status)
	}
	if result.FailedGroups != 1 || result.PassedGroups != 1 {
		t.Errorf("failed=%d passed=%d, want 1/1", result.FailedGroups, result.PassedGroups)
	}
	if result.Passed() {
		t.Error("Passed() = true for a failed run")
	}

	data, err := os.ReadFile(filepath.Join(tmpDir, "junit-report.xml"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "id=idX, id=idY") {
		t.Errorf("junit report lacks the candidate list:\n%s", data)
	}
}

func TestRunner_Run_ErroredOutranksFailed(t *testing.T) {
	var closes int

	runner := New(RunnerConfig{OutputDir: t.TempDir()})
	result, err := runner.Run(context.Background(), []suite.Runnable{
		group("failing", &closes, map[string]error{"a": core.ErrElementNotVisible}),
		group("erroring", &closes, map[string]error{"a": errors.New("boom")}),
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Status != core.StatusErrored {
		t.Errorf("Status = %v, want errored", result.Status)
	}
	if result.ErroredGroups != 1 || result.FailedGroups != 1 {
		t.Errorf("errored=%d failed=%d", result.ErroredGroups, result.FailedGroups)
	}
}

func TestRunner_Run_Sequential(t *testing.T) {
	var order []string
	var closes int

	mk := func(name string) suite.Runnable {
		return &suite.Group[fakeSession]{
			Name: name,
			Open: func(ctx context.Context) (fakeSession, error) {
				order = append(order, "open "+name)
				return fakeSession{closes: &closes}, nil
			},
			Cases: []suite.Case[fakeSession]{{
				Name: "only",
				Body: func(ctx context.Context, s fakeSession) error {
					order = append(order, "body "+name)
					return nil
				},
			}},
		}
	}

	runner := New(RunnerConfig{OutputDir: t.TempDir()})
	if _, err := runner.Run(context.Background(), []suite.Runnable{mk("one"), mk("two")}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []string{"open one", "body one", "open two", "body two"}
	if strings.Join(order, ",") != strings.Join(want, ",") {
		t.Errorf("order = %v, want %v", order, want)
	}
}

func TestRunner_Run_Cancelled(t *testing.T) {
	var closes int
	ctx, cancel := context.WithCancel(context.Background())

	first := &suite.Group[fakeSession]{
		Name: "first",
		Open: func(ctx context.Context) (fakeSession, error) {
			return fakeSession{closes: &closes}, nil
		},
		Cases: []suite.Case[fakeSession]{{
			Name: "cancels",
			Body: func(ctx context.Context, s fakeSession) error {
				cancel()
				return nil
			},
		}},
	}

	runner := New(RunnerConfig{OutputDir: t.TempDir()})
	result, err := runner.Run(ctx, []suite.Runnable{
		first,
		group("second", &closes, map[string]error{"a": nil, "b": nil}),
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.SkippedGroups != 1 {
		t.Fatalf("SkippedGroups = %d, want 1", result.SkippedGroups)
	}
	second := result.Groups[1]
	if second.Status != core.StatusSkipped || len(second.Cases) != 2 {
		t.Errorf("second group = %+v", second)
	}
	for _, c := range second.Cases {
		if c.Error != "run cancelled" {
			t.Errorf("case %s error = %q", c.Name, c.Error)
		}
	}
	if closes != 1 {
		t.Errorf("closes = %d, want 1 (second group never opened)", closes)
	}
}

func TestRunner_Run_StopOnFail(t *testing.T) {
	var closes int

	runner := New(RunnerConfig{OutputDir: t.TempDir(), StopOnFail: true})
	result, err := runner.Run(context.Background(), []suite.Runnable{
		group("broken", &closes, map[string]error{"a": core.ErrElementNotFound}),
		group("later", &closes, map[string]error{"a": nil}),
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	later := result.Groups[1]
	if later.Status != core.StatusSkipped {
		t.Errorf("later status = %v, want skipped", later.Status)
	}
	if !strings.Contains(later.Cases[0].Error, "stopped after broken") {
		t.Errorf("skip reason = %q", later.Cases[0].Error)
	}
}

func TestRunner_Run_Callbacks(t *testing.T) {
	var closes int
	var started []string
	var cases, ended int

	runner := New(RunnerConfig{
		OutputDir: t.TempDir(),
		Filter:    "b",
		OnGroupStart: func(idx, total int, name string) {
			started = append(started, name)
		},
		OnCaseEnd: func(group string, r suite.CaseResult) {
			cases++
		},
		OnGroupEnd: func(r suite.GroupResult) {
			ended++
		},
	})
	_, err := runner.Run(context.Background(), []suite.Runnable{
		group("g", &closes, map[string]error{"a": nil, "b": nil}),
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(started) != 1 || started[0] != "g" {
		t.Errorf("started = %v", started)
	}
	if cases != 1 {
		t.Errorf("filtered run reported %d cases, want 1", cases)
	}
	if ended != 1 {
		t.Errorf("ended = %d", ended)
	}
}

func TestRunner_Run_UnwritableOutput(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	var closes int
	runner := New(RunnerConfig{OutputDir: filepath.Join(blocker, "reports")})
	result, err := runner.Run(context.Background(), []suite.Runnable{
		group("g", &closes, map[string]error{"a": nil}),
	})
	if err == nil {
		t.Fatal("expected report write error")
	}
	if result == nil || result.Status != core.StatusPassed {
		t.Errorf("result should still be returned, got %+v", result)
	}
}

func TestBuildRunResult_AllSkipped(t *testing.T) {
	index := &report.Index{RunID: "r", Status: core.StatusPassed}
	result := buildRunResult(index, []suite.GroupResult{
		{Name: "x", Status: core.StatusSkipped},
	}, 5)
	if result.Status != core.StatusSkipped {
		t.Errorf("Status = %v, want skipped", result.Status)
	}
	if !result.Passed() {
		t.Error("a fully skipped run is not a failure")
	}
}
