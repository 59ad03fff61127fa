package webdriver

import (
	"fmt"

	"github.com/devicelab-dev/uiprobe/pkg/core"
)

// W3C error codes the suite reacts to.
const (
	CodeNoSuchElement       = "no such element"
	CodeStaleElement        = "stale element reference"
	CodeInvalidSession      = "invalid session id"
	CodeSessionNotCreated   = "session not created"
	CodeElementNotInteract  = "element not interactable"
	CodeElementClickBlocked = "element click intercepted"
)

// Error is a W3C WebDriver error payload.
type Error struct {
	Status  int    // HTTP status code
	Code    string // W3C error code, e.g. "no such element"
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// classify lifts well-known W3C errors into the core taxonomy so callers can
// use errors.Is(err, core.ErrElementNotFound) and friends.
func classify(err *Error) error {
	switch err.Code {
	case CodeNoSuchElement:
		return core.ErrElementNotFound.WithMessage("element not found").WithCause(err)
	case CodeElementNotInteract, CodeElementClickBlocked:
		return core.ErrElementNotVisible.WithMessage("element not interactable").WithCause(err)
	case CodeInvalidSession:
		return core.ErrDeviceDisconnected.WithCause(err)
	case CodeSessionNotCreated:
		return core.ErrSessionCreate.WithCause(err)
	default:
		return err
	}
}
