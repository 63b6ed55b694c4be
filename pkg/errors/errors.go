package errors

import "fmt"

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	// ErrorTypeExtraction covers attribute reads that failed because a
	// panel or field had not rendered yet.
	ErrorTypeExtraction ErrorType = "extraction"
	// ErrorTypeNavigation covers driver commands that move the remote cursor.
	ErrorTypeNavigation ErrorType = "navigation"
	// ErrorTypeStalled means navigation was confirmed to not move the
	// cursor after exhausting retries. Fatal to the scan process.
	ErrorTypeStalled  ErrorType = "stalled"
	ErrorTypeDownload ErrorType = "download"
	ErrorTypeDelete   ErrorType = "delete"
	ErrorTypeEditback ErrorType = "editback"
	ErrorTypeLedger   ErrorType = "ledger"
	ErrorTypeSession  ErrorType = "session"
	ErrorTypeUnknown  ErrorType = "unknown"
)

// Error represents a driver or engine error with type information
type Error struct {
	Type    ErrorType
	Message string
	Item    string // remote item id, when known
}

func (e *Error) Error() string {
	if e.Item != "" {
		return fmt.Sprintf("%s error (item %s): %s", e.Type, e.Item, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

// New creates a typed error
func New(errorType ErrorType, message string) *Error {
	return &Error{Type: errorType, Message: message}
}

// NewItem creates a typed error bound to a remote item id
func NewItem(errorType ErrorType, item, message string) *Error {
	return &Error{Type: errorType, Message: message, Item: item}
}

// IsRetryable checks if an error type should be retried in place.
// Stalled is deliberately not retryable here: its retry unit is a process
// restart, handled by the supervisor.
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeExtraction, ErrorTypeNavigation, ErrorTypeDownload:
		return true
	case ErrorTypeStalled, ErrorTypeSession, ErrorTypeLedger:
		return false
	default:
		return false
	}
}
