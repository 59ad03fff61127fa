// Package locate resolves one logical UI element from an ordered list of
// candidate locators. Candidates are tried strictly in order, each with its
// own full timeout, and the first one that satisfies the condition wins.
package locate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/devicelab-dev/uiprobe/pkg/core"
	"github.com/devicelab-dev/uiprobe/pkg/logger"
)

// Condition is the state a located element must reach.
type Condition int

const (
	Present   Condition = iota // found in the hierarchy
	Visible                    // found and displayed
	Clickable                  // displayed and enabled
)

func (c Condition) String() string {
	switch c {
	case Present:
		return "present"
	case Visible:
		return "visible"
	case Clickable:
		return "clickable"
	default:
		return "unknown"
	}
}

// ParseCondition parses a condition name.
func ParseCondition(s string) (Condition, error) {
	switch strings.ToLower(s) {
	case "present", "":
		return Present, nil
	case "visible":
		return Visible, nil
	case "clickable":
		return Clickable, nil
	}
	return Present, fmt.Errorf("unknown condition %q (want present, visible or clickable)", s)
}

// Element is what a condition needs to know about a found element.
type Element interface {
	IsDisplayed(ctx context.Context) (bool, error)
	IsEnabled(ctx context.Context) (bool, error)
}

// Finder performs a single non-blocking element lookup.
type Finder[E Element] interface {
	Find(ctx context.Context, by core.By) (E, error)
}

// Attempt records one tried candidate. Err is nil for the winner.
type Attempt struct {
	By  core.By
	Err error
}

// Outcome is the result of resolving a candidate list.
type Outcome[E Element] struct {
	Element  E
	By       core.By
	Found    bool
	Attempts []Attempt
	// Err is set when ctx ended the resolution before every candidate was tried.
	Err error
}

// Resolver resolves candidate lists against a Finder.
type Resolver[E Element] struct {
	finder   Finder[E]
	timeout  time.Duration
	interval time.Duration
}

// NewResolver creates a resolver that gives each candidate timeout to
// satisfy its condition.
func NewResolver[E Element](finder Finder[E], timeout time.Duration) *Resolver[E] {
	if timeout < 0 {
		timeout = 0
	}
	return &Resolver[E]{finder: finder, timeout: timeout, interval: DefaultInterval}
}

// WithInterval returns a copy of the resolver polling at interval.
func (r *Resolver[E]) WithInterval(interval time.Duration) *Resolver[E] {
	cp := *r
	if interval > 0 {
		cp.interval = interval
	}
	return &cp
}

// WithTimeout returns a copy of the resolver with a different per-candidate timeout.
func (r *Resolver[E]) WithTimeout(timeout time.Duration) *Resolver[E] {
	cp := *r
	if timeout >= 0 {
		cp.timeout = timeout
	}
	return &cp
}

// Timeout returns the per-candidate timeout.
func (r *Resolver[E]) Timeout() time.Duration {
	return r.timeout
}

// Resolve tries each candidate in order and stops at the first one that
// satisfies cond. A failing candidate is recorded and skipped.
func (r *Resolver[E]) Resolve(ctx context.Context, cond Condition, candidates ...core.By) Outcome[E] {
	var out Outcome[E]

	for _, by := range candidates {
		var found E
		err := Until(ctx, r.timeout, r.interval, func(ctx context.Context) error {
			el, err := r.finder.Find(ctx, by)
			if err != nil {
				return err
			}
			if err := check(ctx, el, cond); err != nil {
				return err
			}
			found = el
			return nil
		})

		out.Attempts = append(out.Attempts, Attempt{By: by, Err: err})
		if err == nil {
			logger.Debug("resolved %s (%s) after %d attempt(s)", by, cond, len(out.Attempts))
			out.Element = found
			out.By = by
			out.Found = true
			return out
		}

		logger.Debug("candidate %s not %s: %v", by, cond, err)
		if ctx.Err() != nil {
			out.Err = ctx.Err()
			return out
		}
	}

	return out
}

// Require resolves a required element. When every candidate is exhausted the
// error names all of them in order. If any candidate failed because the
// session or server went away the error keeps that connection category, so
// the case is errored rather than failed.
func (r *Resolver[E]) Require(ctx context.Context, cond Condition, candidates ...core.By) (E, error) {
	var zero E
	if len(candidates) == 0 {
		return zero, core.ErrMissingRequired.WithMessage("no candidate locators given")
	}

	out := r.Resolve(ctx, cond, candidates...)
	if out.Found {
		return out.Element, nil
	}
	if out.Err != nil {
		return zero, fmt.Errorf("resolving %s: %w", describe(candidates), out.Err)
	}

	names := make([]string, len(candidates))
	for i, by := range candidates {
		names[i] = by.String()
	}
	exhausted := &ExhaustedError{Attempts: out.Attempts}
	if lost := connectionLoss(out.Attempts); lost != nil {
		return zero, lost.
			WithMessage(fmt.Sprintf("%s while resolving %s element for candidates [%s]", lost.Message, cond, strings.Join(names, ", "))).
			WithDetails(map[string]interface{}{"candidates": names}).
			WithCause(exhausted)
	}
	return zero, core.ErrElementNotFound.
		WithMessage(fmt.Sprintf("no %s element for candidates [%s]", cond, strings.Join(names, ", "))).
		WithDetails(map[string]interface{}{"candidates": names}).
		WithCause(exhausted)
}

var connectionErrors = []*core.ExecutionError{
	core.ErrDeviceDisconnected,
	core.ErrServerUnreachable,
	core.ErrSessionCreate,
}

// connectionLoss returns the predefined connection error behind the first
// attempt that failed for lack of a live session.
func connectionLoss(attempts []Attempt) *core.ExecutionError {
	for _, a := range attempts {
		for _, target := range connectionErrors {
			if errors.Is(a.Err, target) {
				return target
			}
		}
	}
	return nil
}

// Optional resolves an element that may legitimately be absent. Exhaustion
// and cancellation both report not found.
func (r *Resolver[E]) Optional(ctx context.Context, cond Condition, candidates ...core.By) (E, bool) {
	out := r.Resolve(ctx, cond, candidates...)
	if !out.Found {
		logger.Debug("optional element absent: %s", describe(candidates))
	}
	return out.Element, out.Found
}

// ExhaustedError aggregates why each candidate failed.
type ExhaustedError struct {
	Attempts []Attempt
}

func (e *ExhaustedError) Error() string {
	parts := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		parts[i] = fmt.Sprintf("%s: %v", a.By, a.Err)
	}
	return strings.Join(parts, "; ")
}

// Unwrap exposes the per-candidate errors to errors.Is and errors.As.
func (e *ExhaustedError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		if a.Err != nil {
			errs = append(errs, a.Err)
		}
	}
	return errs
}

func check(ctx context.Context, el Element, cond Condition) error {
	if cond == Present {
		return nil
	}
	displayed, err := el.IsDisplayed(ctx)
	if err != nil {
		return err
	}
	if !displayed {
		return core.ErrElementNotVisible
	}
	if cond == Clickable {
		enabled, err := el.IsEnabled(ctx)
		if err != nil {
			return err
		}
		if !enabled {
			return core.ErrElementNotVisible.WithMessage("element not enabled")
		}
	}
	return nil
}

func describe(candidates []core.By) string {
	names := make([]string, len(candidates))
	for i, by := range candidates {
		names[i] = by.String()
	}
	return "[" + strings.Join(names, ", ") + "]"
}
