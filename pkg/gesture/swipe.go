// Package gesture computes and issues vertical swipe gestures from the
// current viewport size.
package gesture

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/devicelab-dev/uiprobe/pkg/core"
	"github.com/devicelab-dev/uiprobe/pkg/logger"
)

// DefaultDuration is the press-to-release time of a swipe.
const DefaultDuration = 400 * time.Millisecond

// Fractions of the viewport height where a vertical swipe starts and ends.
const (
	nearFraction = 0.25
	farFraction  = 0.75
)

// Direction is the direction content moves under the finger.
type Direction int

const (
	Down Direction = iota // finger travels from the lower part of the screen upward
	Up
)

func (d Direction) String() string {
	if d == Up {
		return "up"
	}
	return "down"
}

// ParseDirection parses "up" or "down".
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "down":
		return Down, nil
	case "up":
		return Up, nil
	}
	return Down, fmt.Errorf("unknown swipe direction %q", s)
}

// Path is a straight pointer path.
type Path struct {
	Start core.Point
	End   core.Point
}

// VerticalPath returns the horizontally centred path for dir. Down runs from
// 75% to 25% of the height and Up is its exact mirror.
func VerticalPath(size core.Size, dir Direction) Path {
	x := size.Width / 2
	far := int(float64(size.Height) * farFraction)
	near := int(float64(size.Height) * nearFraction)

	if dir == Up {
		return Path{Start: core.Point{X: x, Y: near}, End: core.Point{X: x, Y: far}}
	}
	return Path{Start: core.Point{X: x, Y: far}, End: core.Point{X: x, Y: near}}
}

// Surface is anything that reports a viewport and accepts a touch swipe.
type Surface interface {
	WindowSize(ctx context.Context) (core.Size, error)
	Swipe(ctx context.Context, start, end core.Point, duration time.Duration) error
}

// Swipe reads the viewport size and issues a single swipe in dir. The
// gesture is fire-and-forget: nothing checks that content moved.
func Swipe(ctx context.Context, s Surface, dir Direction, duration time.Duration) error {
	size, err := s.WindowSize(ctx)
	if err != nil {
		return fmt.Errorf("swipe %s: window size: %w", dir, err)
	}
	if duration <= 0 {
		duration = DefaultDuration
	}

	p := VerticalPath(size, dir)
	logger.Debug("swipe %s on %dx%d: (%d,%d) -> (%d,%d) in %s",
		dir, size.Width, size.Height, p.Start.X, p.Start.Y, p.End.X, p.End.Y, duration)

	if err := s.Swipe(ctx, p.Start, p.End, duration); err != nil {
		return fmt.Errorf("swipe %s: %w", dir, err)
	}
	return nil
}
