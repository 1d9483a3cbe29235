package game

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a rejected action.
type ErrorKind string

const (
	KindValidation    ErrorKind = "validation"
	KindStateConflict ErrorKind = "state_conflict"
	KindNotFound      ErrorKind = "not_found"
	KindInternal      ErrorKind = "internal"
)

// Error is a client-visible rejection of an action. Errors compare equal
// under errors.Is when their codes match.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

var (
	ErrGameAlreadyStarted  = &Error{Kind: KindStateConflict, Code: "game_already_started", Message: "the round has already started"}
	ErrGameNotStarted      = &Error{Kind: KindStateConflict, Code: "game_not_started", Message: "the round is not running"}
	ErrAlreadyCashedOut    = &Error{Kind: KindStateConflict, Code: "already_cashed_out", Message: "you have already cashed out"}
	ErrAlreadyBet          = &Error{Kind: KindStateConflict, Code: "already_bet", Message: "you already have a bet in this round"}
	ErrAlreadyJoined       = &Error{Kind: KindStateConflict, Code: "already_joined", Message: "you are already in this game"}
	ErrGameFull            = &Error{Kind: KindStateConflict, Code: "game_full", Message: "the game already has two players"}
	ErrParticipantNotFound = &Error{Kind: KindNotFound, Code: "participant_not_found", Message: "you have no bet in this round"}
	ErrGameNotFound        = &Error{Kind: KindNotFound, Code: "game_not_found", Message: "no such game"}
	ErrUnauthenticated     = &Error{Kind: KindValidation, Code: "unauthenticated", Message: "spectators cannot place wagers"}
	ErrUnknownAction       = &Error{Kind: KindValidation, Code: "unknown_action", Message: "unknown message type"}
	ErrInternal            = &Error{Kind: KindInternal, Code: "internal", Message: "something went wrong, please try again"}
)

// Invalid builds a validation error for a malformed payload.
func Invalid(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Code: "invalid_payload", Message: fmt.Sprintf(format, args...)}
}

// AsError converts any error into a client-visible one. Anything that is not
// already an *Error is reported as ErrInternal.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return ErrInternal
}

// ErrClosed is returned when posting to a session that has stopped.
var ErrClosed = errors.New("session closed")
