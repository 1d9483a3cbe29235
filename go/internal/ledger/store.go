// Package ledger records accepted deposits outside the game loop.
package ledger

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/mcdev12/casino/go/internal/models"
)

// Store persists a single deposit. Implementations must tolerate the same
// deposit being saved twice.
type Store interface {
	SaveDeposit(ctx context.Context, d models.Deposit) error
}

// Fanout saves to every store and reports all failures.
type Fanout []Store

func (f Fanout) SaveDeposit(ctx context.Context, d models.Deposit) error {
	var errs []error
	for _, s := range f {
		if err := s.SaveDeposit(ctx, d); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogStore writes deposits to a logger. Used when no database or broker is
// configured.
type LogStore struct {
	logger zerolog.Logger
}

func NewLogStore(logger zerolog.Logger) *LogStore {
	return &LogStore{logger: logger}
}

func (s *LogStore) SaveDeposit(_ context.Context, d models.Deposit) error {
	s.logger.Info().
		Str("deposit_id", d.ID.String()).
		Str("game", string(d.Game)).
		Str("round_id", d.RoundID).
		Str("participant_id", d.Participant.ID).
		Stringer("amount", d.Amount).
		Msg("deposit recorded")
	return nil
}
