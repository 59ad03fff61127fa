// Package suite runs groups of test cases against one session per group.
//
// A group opens its session once, runs its cases one after another and
// releases the session exactly once on every exit path. A failing or
// panicking case is recorded against that case only.
package suite

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/devicelab-dev/uiprobe/pkg/core"
	"github.com/devicelab-dev/uiprobe/pkg/logger"
)

// Session is a resource owned by a group for the duration of its run.
type Session interface {
	Close() error
}

// Case is one test body.
type Case[S Session] struct {
	Name string
	Body func(ctx context.Context, s S) error
}

// Group is a set of cases sharing one session.
type Group[S Session] struct {
	Name        string
	Description string
	Open        func(ctx context.Context) (S, error)
	Cases       []Case[S]
}

// Options controls a group run.
type Options struct {
	Filter      string // Run only cases whose name contains Filter
	OutputDir   string // Failed cases save artifacts here when set
	OnCaseStart func(group, name string)
	OnCaseEnd   func(group string, result CaseResult)
}

// CaseResult is the outcome of one case.
type CaseResult struct {
	Name      string
	Status    core.TestStatus
	Category  core.ErrorCategory
	StartTime time.Time
	Duration  int64 // milliseconds
	Error     string

	Attachments []core.Attachment
}

// GroupResult is the outcome of one group.
type GroupResult struct {
	Name          string
	Status        core.TestStatus
	StartTime     time.Time
	Duration      int64 // milliseconds
	SetupError    string
	TeardownError string
	Cases         []CaseResult
}

// Runnable is a group with its session type erased, so groups over
// different sessions can run in one list.
type Runnable interface {
	GroupName() string
	CaseNames() []string
	Run(ctx context.Context, opts Options) GroupResult
}

// GroupName implements Runnable.
func (g *Group[S]) GroupName() string {
	return g.Name
}

// CaseNames implements Runnable.
func (g *Group[S]) CaseNames() []string {
	names := make([]string, len(g.Cases))
	for i, c := range g.Cases {
		names[i] = c.Name
	}
	return names
}

func (g *Group[S]) selected(filter string) []Case[S] {
	if filter == "" {
		return g.Cases
	}
	var out []Case[S]
	for _, c := range g.Cases {
		if strings.Contains(c.Name, filter) {
			out = append(out, c)
		}
	}
	return out
}

// Run opens the session, runs the selected cases in order and closes the
// session. A group whose filter matches none of its cases is skipped
// without opening a session; a group declared with no cases still opens
// and closes one.
func (g *Group[S]) Run(ctx context.Context, opts Options) (result GroupResult) {
	start := time.Now()
	result = GroupResult{Name: g.Name, StartTime: start}
	defer func() {
		result.Duration = time.Since(start).Milliseconds()
	}()

	cases := g.selected(opts.Filter)
	if len(cases) == 0 && len(g.Cases) > 0 {
		result.Status = core.StatusSkipped
		return result
	}

	logger.Info("group %s: opening session", g.Name)
	sess, err := g.open(ctx)
	if err != nil {
		logger.Error("group %s: setup failed: %v", g.Name, err)
		result.SetupError = err.Error()
		result.Status = core.StatusErrored
		for _, c := range cases {
			result.Cases = append(result.Cases, CaseResult{
				Name:     c.Name,
				Status:   core.StatusSkipped,
				Category: core.CategoryOf(err),
				Error:    "setup failed: " + err.Error(),
			})
		}
		return result
	}

	defer func() {
		if err := closeSession(sess); err != nil {
			logger.Warn("group %s: teardown failed: %v", g.Name, err)
			result.TeardownError = err.Error()
			if result.Status == core.StatusPassed {
				result.Status = core.StatusErrored
			}
		}
		logger.Info("group %s: session released", g.Name)
	}()

	for _, c := range cases {
		if ctx.Err() != nil {
			result.Cases = append(result.Cases, CaseResult{
				Name:   c.Name,
				Status: core.StatusSkipped,
				Error:  "run cancelled",
			})
			continue
		}

		if opts.OnCaseStart != nil {
			opts.OnCaseStart(g.Name, c.Name)
		}
		cr := runCase(ctx, c, sess)
		if opts.OutputDir != "" && (cr.Status == core.StatusFailed || cr.Status == core.StatusErrored) {
			cr.Attachments = captureArtifacts(ctx, sess, opts.OutputDir, g.Name, c.Name)
		}
		logger.Info("group %s: case %s %s (%dms)", g.Name, c.Name, cr.Status, cr.Duration)
		if cr.Error != "" {
			logger.Error("group %s: case %s: %s", g.Name, c.Name, cr.Error)
		}
		result.Cases = append(result.Cases, cr)
		if opts.OnCaseEnd != nil {
			opts.OnCaseEnd(g.Name, cr)
		}
	}

	result.Status = aggregate(result.Cases)
	return result
}

func (g *Group[S]) open(ctx context.Context) (sess S, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in setup: %v", r)
		}
	}()
	if g.Open == nil {
		return sess, core.ErrMissingRequired.WithMessage("group " + g.Name + " has no session opener")
	}
	return g.Open(ctx)
}

func closeSession(s Session) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in teardown: %v", r)
		}
	}()
	return s.Close()
}

func runCase[S Session](ctx context.Context, c Case[S], sess S) (cr CaseResult) {
	cr = CaseResult{Name: c.Name, StartTime: time.Now()}
	defer func() {
		if r := recover(); r != nil {
			logger.Debug("case %s panicked: %v\n%s", c.Name, r, debug.Stack())
			cr.Status = core.StatusErrored
			cr.Category = core.ErrCategoryUnknown
			cr.Error = fmt.Sprintf("panic: %v", r)
		}
		cr.Duration = time.Since(cr.StartTime).Milliseconds()
	}()

	err := c.Body(ctx, sess)
	cr.Status = core.Classify(err)
	if err != nil {
		cr.Category = core.CategoryOf(err)
		cr.Error = err.Error()
	}
	return cr
}

// aggregate derives a group status from its cases. Errored outranks failed,
// failed outranks passed, and a group of only skipped cases is skipped.
func aggregate(cases []CaseResult) core.TestStatus {
	status := core.StatusPassed
	skipped := 0
	for _, c := range cases {
		switch c.Status {
		case core.StatusErrored:
			return core.StatusErrored
		case core.StatusFailed:
			status = core.StatusFailed
		case core.StatusSkipped:
			skipped++
		}
	}
	if len(cases) > 0 && skipped == len(cases) {
		return core.StatusSkipped
	}
	return status
}
