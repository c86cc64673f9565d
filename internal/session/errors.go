package session

import "fmt"

// ErrorKind classifies the single surfaced session error. Presentation maps
// kinds to user-facing text; transport detail stays in Cause for logs.
type ErrorKind string

const (
	KindHistoryLoad ErrorKind = "history_load_failed"
	KindGameLoad    ErrorKind = "game_load_failed"
	KindGameCreate  ErrorKind = "game_create_failed"
	KindMoveSubmit  ErrorKind = "move_submit_failed"
)

// SessionError is the one error slot the controller exposes. A new
// operation's start clears it; a new failure replaces it.
type SessionError struct {
	Kind  ErrorKind
	Cause error
}

func (e *SessionError) Error() string {
	if e == nil {
		return ""
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
	}
	return string(e.Kind)
}

func (e *SessionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}
