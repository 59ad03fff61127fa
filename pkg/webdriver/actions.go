package webdriver

import (
	"time"

	"github.com/devicelab-dev/uiprobe/pkg/core"
)

// Action is one tick of a W3C input source.
type Action map[string]interface{}

// ActionSequence is a W3C input source with its actions.
type ActionSequence struct {
	Type       string             `json:"type"` // pointer, key, none
	ID         string             `json:"id"`
	Parameters *PointerParameters `json:"parameters,omitempty"`
	Actions    []Action           `json:"actions"`
}

// PointerParameters selects the pointer kind.
type PointerParameters struct {
	PointerType string `json:"pointerType"` // touch, mouse, pen
}

// TouchSequence builds a touch pointer input source.
func TouchSequence(id string, actions ...Action) ActionSequence {
	return ActionSequence{
		Type:       "pointer",
		ID:         id,
		Parameters: &PointerParameters{PointerType: "touch"},
		Actions:    actions,
	}
}

// PointerMove moves the pointer to a viewport coordinate over duration.
func PointerMove(p core.Point, duration time.Duration) Action {
	return Action{
		"type":     "pointerMove",
		"duration": duration.Milliseconds(),
		"origin":   "viewport",
		"x":        p.X,
		"y":        p.Y,
	}
}

// PointerDown presses the given button (0 = primary / finger contact).
func PointerDown(button int) Action {
	return Action{"type": "pointerDown", "button": button}
}

// PointerUp releases the given button.
func PointerUp(button int) Action {
	return Action{"type": "pointerUp", "button": button}
}

// Pause idles the input source.
func Pause(duration time.Duration) Action {
	return Action{"type": "pause", "duration": duration.Milliseconds()}
}
