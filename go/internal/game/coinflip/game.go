package coinflip

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/mcdev12/casino/go/internal/fairness"
	"github.com/mcdev12/casino/go/internal/game"
	"github.com/mcdev12/casino/go/internal/models"
)

type seat struct {
	origin game.Origin
}

// instance is one coinflip between two players. It owns its seats and
// spectators and stops once the coin has been flipped.
type instance struct {
	id         string
	amount     models.Amount
	seeds      fairness.SeedPair
	seats      []seat
	spectators map[string]struct{}

	lobby  *Lobby
	logger zerolog.Logger
	inbox  chan message
	done   chan struct{}

	mu sync.RWMutex
}

func newInstance(l *Lobby, id string, amount models.Amount, seeds fairness.SeedPair, initiator game.Origin) *instance {
	return &instance{
		id:         id,
		amount:     amount,
		seeds:      seeds,
		seats:      []seat{{origin: initiator}},
		spectators: map[string]struct{}{initiator.ConnectionID: {}},
		lobby:      l,
		logger:     l.logger.With().Str("game_id", id).Logger(),
		inbox:      make(chan message, l.cfg.InboxSize),
		done:       make(chan struct{}),
	}
}

// post delivers m unless the game has already been resolved. Posters hold mu
// for reading so shutdown can wait for them before draining the inbox.
func (g *instance) post(ctx context.Context, m message) error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	select {
	case <-g.done:
		return game.ErrClosed
	default:
	}
	select {
	case g.inbox <- m:
		return nil
	case <-g.done:
		return game.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// shutdown stops accepting messages and turns away joins that were already queued.
func (g *instance) shutdown() {
	close(g.done)
	g.mu.Lock()
	defer g.mu.Unlock()

	for {
		select {
		case m := <-g.inbox:
			if j, ok := m.(join); ok {
				g.lobby.emit.Send(j.origin.ConnectionID, game.ErrorEvent(game.ErrGameFull))
			}
		default:
			return
		}
	}
}

func (g *instance) run(ctx context.Context) {
	defer g.shutdown()

	for {
		select {
		case <-ctx.Done():
			return
		case m := <-g.inbox:
			resolved, err := g.safeHandle(m)
			if err != nil {
				if j, ok := m.(join); ok {
					g.lobby.emit.Send(j.origin.ConnectionID, game.ErrorEvent(err))
				}
			}
			if resolved {
				g.lobby.finish(g.id)
				return
			}
		}
	}
}

func (g *instance) safeHandle(m message) (resolved bool, err error) {
	err = game.Safely(g.logger, func() error {
		var herr error
		resolved, herr = g.handle(m)
		return herr
	})
	return resolved, err
}

func (g *instance) handle(m message) (bool, error) {
	switch m := m.(type) {
	case join:
		return g.join(m.origin)
	case watch:
		g.spectators[m.connID] = struct{}{}
	case leave:
		delete(g.spectators, m.connID)
	default:
		return false, fmt.Errorf("unhandled message %T", m)
	}
	return false, nil
}

func (g *instance) join(origin game.Origin) (bool, error) {
	for _, s := range g.seats {
		if s.origin.Participant.ID == origin.Participant.ID {
			return false, game.ErrAlreadyJoined
		}
	}
	if len(g.seats) >= 2 {
		return false, game.ErrGameFull
	}

	g.seats = append(g.seats, seat{origin: origin})
	g.spectators[origin.ConnectionID] = struct{}{}
	g.lobby.record(models.NewDeposit(models.GameCoinflip, g.id, origin.Participant, g.amount, g.lobby.clock.Now()))

	return true, g.flip()
}

func (g *instance) flip() error {
	roll, err := g.lobby.oracle.DeriveOutcome(g.seeds, 2)
	if err != nil {
		return fmt.Errorf("failed to flip coin: %w", err)
	}
	winner, loser := g.seats[roll], g.seats[1-roll]

	result := resultPayload{
		GameID:   g.id,
		Winner:   winner.origin.Participant,
		Loser:    loser.origin.Participant,
		Amount:   g.amount,
		Fairness: fairness.NewRecord(g.id, g.seeds, float64(roll), 2),
	}

	won := result
	won.Outcome = OutcomeWon
	won.Message = fmt.Sprintf("You won %s!", g.amount.Dollars())
	g.lobby.emit.Send(winner.origin.ConnectionID, game.Event{Type: game.EventGameResult, Payload: won})

	lost := result
	lost.Outcome = OutcomeLost
	lost.Message = "You lost. Better luck next time!"
	g.lobby.emit.Send(loser.origin.ConnectionID, game.Event{Type: game.EventGameResult, Payload: lost})

	public := result
	public.Outcome = OutcomePublic
	public.Message = fmt.Sprintf("Player %s won %s!", winner.origin.Participant.Name, g.amount.Dollars())
	for connID := range g.spectators {
		if connID == winner.origin.ConnectionID || connID == loser.origin.ConnectionID {
			continue
		}
		g.lobby.emit.Send(connID, game.Event{Type: game.EventGameResult, Payload: public})
	}

	g.logger.Info().
		Str("winner_id", winner.origin.Participant.ID).
		Str("loser_id", loser.origin.Participant.ID).
		Stringer("amount", g.amount).
		Msg("coinflip resolved")
	return nil
}
