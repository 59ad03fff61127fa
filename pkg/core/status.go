package core

// TestStatus represents the execution status of a test case or group
type TestStatus int

const (
	StatusPending TestStatus = iota // Not yet started
	StatusRunning                   // Currently executing
	StatusPassed                    // Completed successfully
	StatusFailed                    // Assertion failed (expected element or state didn't occur)
	StatusErrored                   // Unexpected error (session, driver, timeout)
	StatusSkipped                   // Not run: setup failed, filtered out, or run cancelled
)

// String returns the string representation of TestStatus
func (s TestStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusPassed:
		return "passed"
	case StatusFailed:
		return "failed"
	case StatusErrored:
		return "errored"
	case StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// MarshalText encodes the status by name in JSON reports.
func (s TestStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name.
func (s *TestStatus) UnmarshalText(text []byte) error {
	switch string(text) {
	case "pending":
		*s = StatusPending
	case "running":
		*s = StatusRunning
	case "passed":
		*s = StatusPassed
	case "failed":
		*s = StatusFailed
	case "errored":
		*s = StatusErrored
	case "skipped":
		*s = StatusSkipped
	default:
		*s = StatusPending
	}
	return nil
}

// ErrorCategory classifies the type of error for better debugging and reporting
type ErrorCategory int

const (
	ErrCategoryNone       ErrorCategory = iota // No error
	ErrCategoryAssertion                       // Element not found, not visible, wrong text
	ErrCategoryTimeout                         // Wait timed out
	ErrCategoryConnection                      // Session creation failed, server or device lost
	ErrCategoryConfig                          // Invalid configuration, missing required field
	ErrCategoryUnknown                         // Plain error with no category
)

// String returns the string representation of ErrorCategory
func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryNone:
		return "none"
	case ErrCategoryAssertion:
		return "assertion"
	case ErrCategoryTimeout:
		return "timeout"
	case ErrCategoryConnection:
		return "connection"
	case ErrCategoryConfig:
		return "config"
	default:
		return "unknown"
	}
}
