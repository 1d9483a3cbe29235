package game

import (
	"runtime/debug"

	"github.com/rs/zerolog"
)

// Safely runs fn and turns a panic into ErrInternal so one bad message cannot
// take a session loop down.
func Safely(logger zerolog.Logger, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error().
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Msg("recovered from panic while handling message")
			err = ErrInternal
		}
	}()
	return fn()
}
