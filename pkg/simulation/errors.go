package simulation

import "fmt"

type ErrorKind string

const (
	KindInvalidInput      ErrorKind = "invalid_input"
	KindNotFound          ErrorKind = "not_found"
	KindSimulationTimeout ErrorKind = "simulation_timeout"
	KindInternal          ErrorKind = "internal"
)

// Error classifies simulation failures so HTTP handlers can map them to
// status codes with errors.As instead of matching message text.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func invalidInput(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidInput, Message: fmt.Sprintf(format, args...)}
}

func notFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}
