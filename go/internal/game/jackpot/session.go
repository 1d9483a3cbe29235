// Package jackpot runs the weighted lottery: players deposit into a shared
// pot, a countdown starts once two of them are in, and the winner is drawn
// with probability proportional to their stake.
package jackpot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/casino/go/internal/fairness"
	"github.com/mcdev12/casino/go/internal/game"
	"github.com/mcdev12/casino/go/internal/models"
	"github.com/mcdev12/casino/go/internal/scheduler"
)

// Phase is a stage of a jackpot round.
type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhaseCollecting   Phase = "collecting"
	PhaseCountingDown Phase = "counting_down"
	PhaseResolved     Phase = "resolved"
)

// Config controls the countdown.
type Config struct {
	Countdown       time.Duration `yaml:"countdown" env:"COUNTDOWN"`
	MinParticipants int           `yaml:"min_participants" env:"MIN_PARTICIPANTS"`
	InboxSize       int           `yaml:"inbox_size" env:"INBOX_SIZE"`
}

func DefaultConfig() Config {
	return Config{
		Countdown:       15 * time.Second,
		MinParticipants: 2,
		InboxSize:       256,
	}
}

// retryDelay spaces out attempts to open a new round after seeding failed.
const retryDelay = time.Second

// ErrRollOutOfRange is returned by Pick when the roll is not below the pot.
var ErrRollOutOfRange = errors.New("roll outside of pot")

type round struct {
	id          string
	phase       Phase
	seeds       fairness.SeedPair
	stakes      []*Stake
	byID        map[string]*Stake
	total       models.Amount
	countdownAt time.Time
}

// Session is the single live jackpot pot.
type Session struct {
	cfg      Config
	clock    clockwork.Clock
	oracle   fairness.Oracle
	emit     game.Emitter
	recorder game.DepositRecorder
	logger   zerolog.Logger

	inbox  chan message
	timers *scheduler.Scheduler[message]
	done   chan struct{}

	round *round
}

type Option func(*Session)

func WithClock(c clockwork.Clock) Option {
	return func(s *Session) { s.clock = c }
}

func WithOracle(o fairness.Oracle) Option {
	return func(s *Session) { s.oracle = o }
}

func WithRecorder(r game.DepositRecorder) Option {
	return func(s *Session) { s.recorder = r }
}

// NewSession opens the first pot and starts the session loop.
func NewSession(ctx context.Context, cfg Config, emit game.Emitter, opts ...Option) (*Session, error) {
	if cfg.MinParticipants < 2 {
		cfg.MinParticipants = 2
	}
	s := &Session{
		cfg:      cfg,
		clock:    clockwork.NewRealClock(),
		oracle:   fairness.NewOracle(),
		emit:     emit,
		recorder: game.NopRecorder{},
		logger:   log.With().Str("game", string(models.GameJackpot)).Logger(),
		inbox:    make(chan message, cfg.InboxSize),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.timers = scheduler.New[message](s.clock, s.inbox, ctx.Done())

	r, err := s.newRound()
	if err != nil {
		return nil, err
	}
	s.round = r

	go s.run(ctx)
	return s, nil
}

func (s *Session) Decode(origin game.Origin, msgType string, payload []byte) (game.Action, error) {
	if msgType != "deposit" {
		return nil, game.ErrUnknownAction
	}
	if err := game.RequireParticipant(origin); err != nil {
		return nil, err
	}
	amount, err := game.DecodeWager(payload)
	if err != nil {
		return nil, err
	}
	return Deposit{Origin: origin, Amount: amount}, nil
}

func (s *Session) Route(ctx context.Context, action game.Action) error {
	m, ok := action.(message)
	if !ok {
		return game.ErrUnknownAction
	}
	return s.post(ctx, m)
}

func (s *Session) Connected(origin game.Origin) {
	if err := s.post(context.Background(), connected{origin: origin}); err != nil {
		s.logger.Debug().Err(err).Str("connection_id", origin.ConnectionID).Msg("dropped connect notification")
	}
}

// Disconnected leaves the pot untouched; deposits are committed.
func (s *Session) Disconnected(game.Origin) {}

// Snapshot returns the current pot.
func (s *Session) Snapshot(ctx context.Context) (Snapshot, error) {
	reply := make(chan Snapshot, 1)
	if err := s.post(ctx, getSnapshot{reply: reply}); err != nil {
		return Snapshot{}, err
	}
	select {
	case snap := <-reply:
		return snap, nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

func (s *Session) post(ctx context.Context, m message) error {
	select {
	case s.inbox <- m:
		return nil
	case <-s.done:
		return game.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) run(ctx context.Context) {
	defer close(s.done)
	defer s.timers.CancelAll()

	s.logger.Info().Str("round_id", s.round.id).Msg("jackpot session started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("jackpot session shutting down")
			return
		case m := <-s.inbox:
			err := game.Safely(s.logger, func() error { return s.handle(m) })
			if err == nil {
				continue
			}
			if a, ok := m.(game.Action); ok {
				s.emit.Send(a.From().ConnectionID, game.ErrorEvent(err))
				continue
			}
			s.logger.Error().Err(err).Type("message", m).Msg("failed to handle timer message")
		}
	}
}

func (s *Session) handle(m message) error {
	switch m := m.(type) {
	case Deposit:
		return s.deposit(m)
	case connected:
		s.emit.Send(m.origin.ConnectionID, game.Event{Type: game.EventState, Payload: s.snapshot()})
	case countdownExpired:
		return s.resolve(m.roundID)
	case resetDue:
		return s.reset(m.roundID)
	case depositRecorded:
		if m.err != nil {
			s.logger.Warn().Err(m.err).Str("deposit_id", m.deposit.ID.String()).Msg("failed to record deposit")
		}
	case getSnapshot:
		m.reply <- s.snapshot()
	default:
		return fmt.Errorf("unhandled message %T", m)
	}
	return nil
}

// deposit accepts stakes while collecting and during the countdown; late
// deposits are part of the draw.
func (s *Session) deposit(a Deposit) error {
	r := s.round
	if r.phase == PhaseResolved {
		return game.ErrGameAlreadyStarted
	}

	p := a.Origin.Participant
	st, ok := r.byID[p.ID]
	if !ok {
		st = &Stake{Participant: p}
		r.stakes = append(r.stakes, st)
		r.byID[p.ID] = st
	}
	st.Amount += a.Amount
	r.total += a.Amount
	if r.phase == PhaseIdle {
		r.phase = PhaseCollecting
	}

	s.emit.Broadcast(game.Event{Type: game.EventPlayerJoin, Payload: playerJoinPayload{
		RoundID:     r.id,
		Participant: p,
		Amount:      a.Amount,
		Stake:       st.Amount,
		Total:       r.total,
		Message:     fmt.Sprintf("%s deposited %s", p.Name, a.Amount.Dollars()),
	}})
	s.record(models.NewDeposit(models.GameJackpot, r.id, p, a.Amount, s.clock.Now()))

	if r.phase == PhaseCollecting && len(r.stakes) >= s.cfg.MinParticipants {
		r.phase = PhaseCountingDown
		r.countdownAt = s.clock.Now().Add(s.cfg.Countdown)
		s.timers.After(s.cfg.Countdown, countdownExpired{roundID: r.id})
		s.emit.Broadcast(game.Event{Type: game.EventTimerStart, Payload: timerStartPayload{
			RoundID:    r.id,
			Seconds:    s.cfg.Countdown.Seconds(),
			PublicSeed: r.seeds.Public,
		}})
		s.logger.Info().Str("round_id", r.id).Int("participants", len(r.stakes)).Msg("countdown started")
	}
	return nil
}

func (s *Session) resolve(roundID string) error {
	r := s.round
	if r.id != roundID || r.phase != PhaseCountingDown {
		return nil
	}

	roll, err := s.oracle.DeriveOutcome(r.seeds, uint64(r.total))
	if err != nil {
		return fmt.Errorf("failed to draw jackpot winner: %w", err)
	}
	winner, err := Pick(s.stakes(), roll)
	if err != nil {
		return fmt.Errorf("failed to draw jackpot winner: %w", err)
	}
	r.phase = PhaseResolved

	s.emit.Broadcast(game.Event{Type: game.EventWinner, Payload: winnerPayload{
		RoundID:  r.id,
		Winner:   winner.Participant,
		Stake:    winner.Amount,
		Total:    r.total,
		Roll:     roll,
		Fairness: fairness.NewRecord(r.id, r.seeds, float64(roll), uint64(r.total)),
		Message:  fmt.Sprintf("%s has won the jackpot of %s", winner.Participant.Name, r.total.Dollars()),
	}})
	s.logger.Info().
		Str("round_id", r.id).
		Str("winner_id", winner.Participant.ID).
		Stringer("total", r.total).
		Uint64("roll", roll).
		Msg("jackpot resolved")

	return s.reset(r.id)
}

func (s *Session) reset(roundID string) error {
	if s.round.id != roundID || s.round.phase != PhaseResolved {
		return nil
	}
	s.timers.CancelAll()

	next, err := s.newRound()
	if err != nil {
		s.timers.After(retryDelay, resetDue{roundID: roundID})
		return err
	}
	s.round = next
	s.emit.Broadcast(game.Event{Type: game.EventReset, Payload: resetPayload{
		RoundID:    next.id,
		PublicSeed: next.seeds.Public,
	}})
	return nil
}

func (s *Session) newRound() (*round, error) {
	seeds, err := s.oracle.NewSeedPair()
	if err != nil {
		return nil, fmt.Errorf("failed to prepare jackpot round: %w", err)
	}
	return &round{
		id:    uuid.NewString(),
		phase: PhaseIdle,
		seeds: seeds,
		byID:  make(map[string]*Stake),
	}, nil
}

func (s *Session) record(d models.Deposit) {
	s.recorder.RecordDeposit(d, func(err error) {
		_ = s.post(context.Background(), depositRecorded{deposit: d, err: err})
	})
}

func (s *Session) stakes() []Stake {
	out := make([]Stake, 0, len(s.round.stakes))
	for _, st := range s.round.stakes {
		out = append(out, *st)
	}
	return out
}

func (s *Session) snapshot() Snapshot {
	r := s.round
	snap := Snapshot{
		RoundID:    r.id,
		Phase:      r.phase,
		PublicSeed: r.seeds.Public,
		Total:      r.total,
		Stakes:     s.stakes(),
	}
	if r.phase == PhaseCountingDown {
		at := r.countdownAt
		snap.CountdownAt = &at
	}
	return snap
}

// Pick walks stakes in order, subtracting each from roll until roll falls
// inside a stake. roll must be below the sum of all stakes.
func Pick(stakes []Stake, roll uint64) (Stake, error) {
	for _, st := range stakes {
		if st.Amount <= 0 {
			continue
		}
		if roll < uint64(st.Amount) {
			return st, nil
		}
		roll -= uint64(st.Amount)
	}
	return Stake{}, ErrRollOutOfRange
}
