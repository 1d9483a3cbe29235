// Package crash runs the crash game: bets are taken during a betting window,
// then a multiplier climbs until it reaches a crash point derived from the
// round's seed pair. Players who cash out before the crash win their stake
// times the multiplier; everyone else loses.
package crash

import (
	"context"
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

// Phase is a stage of a crash round.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseBetting Phase = "betting"
	PhaseRunning Phase = "running"
	PhaseCrashed Phase = "crashed"
)

// Config controls round timing.
type Config struct {
	BettingWindow time.Duration `yaml:"betting_window" env:"BETTING_WINDOW"`
	TickInterval  time.Duration `yaml:"tick_interval" env:"TICK_INTERVAL"`
	Cooldown      time.Duration `yaml:"cooldown" env:"COOLDOWN"`
	InboxSize     int           `yaml:"inbox_size" env:"INBOX_SIZE"`
}

// DefaultConfig returns the production timings.
func DefaultConfig() Config {
	return Config{
		BettingWindow: 10 * time.Second,
		TickInterval:  100 * time.Millisecond,
		Cooldown:      3 * time.Second,
		InboxSize:     256,
	}
}

type bet struct {
	origin     game.Origin
	amount     models.Amount
	cashedOut  bool
	multiplier float64
}

func (b *bet) view() BetView {
	v := BetView{
		Participant: b.origin.Participant,
		Amount:      b.amount,
		CashedOut:   b.cashedOut,
	}
	if b.cashedOut {
		v.Multiplier = b.multiplier
		v.Payout = b.amount.Mul(b.multiplier)
	}
	return v
}

type round struct {
	id         string
	phase      Phase
	seeds      fairness.SeedPair
	bets       []*bet
	byID       map[string]*bet
	crashPoint float64
	startedAt  time.Time
	multiplier float64
	ticker     *scheduler.Handle
}

// Session is the single live crash game. All state is owned by the run loop;
// other goroutines talk to it through the inbox.
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

// Option customizes a Session.
type Option func(*Session)

// WithClock replaces the wall clock.
func WithClock(c clockwork.Clock) Option {
	return func(s *Session) { s.clock = c }
}

// WithOracle replaces the fairness oracle.
func WithOracle(o fairness.Oracle) Option {
	return func(s *Session) { s.oracle = o }
}

// WithRecorder sets where accepted bets are recorded.
func WithRecorder(r game.DepositRecorder) Option {
	return func(s *Session) { s.recorder = r }
}

// NewSession prepares the first round and starts the session loop. The loop
// stops when ctx is cancelled.
func NewSession(ctx context.Context, cfg Config, emit game.Emitter, opts ...Option) (*Session, error) {
	s := &Session{
		cfg:      cfg,
		clock:    clockwork.NewRealClock(),
		oracle:   fairness.NewOracle(),
		emit:     emit,
		recorder: game.NopRecorder{},
		logger:   log.With().Str("game", string(models.GameCrash)).Logger(),
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

// Decode turns an inbound message into a crash action.
func (s *Session) Decode(origin game.Origin, msgType string, payload []byte) (game.Action, error) {
	switch msgType {
	case "bet":
		if err := game.RequireParticipant(origin); err != nil {
			return nil, err
		}
		amount, err := game.DecodeWager(payload)
		if err != nil {
			return nil, err
		}
		return PlaceBet{Origin: origin, Amount: amount}, nil
	case "cashout":
		if err := game.RequireParticipant(origin); err != nil {
			return nil, err
		}
		return CashOut{Origin: origin}, nil
	default:
		return nil, game.ErrUnknownAction
	}
}

// Route hands an action to the session loop.
func (s *Session) Route(ctx context.Context, action game.Action) error {
	m, ok := action.(message)
	if !ok {
		return game.ErrUnknownAction
	}
	return s.post(ctx, m)
}

// Connected sends the current round to the new connection.
func (s *Session) Connected(origin game.Origin) {
	if err := s.post(context.Background(), connected{origin: origin}); err != nil {
		s.logger.Debug().Err(err).Str("connection_id", origin.ConnectionID).Msg("dropped connect notification")
	}
}

// Disconnected is a no-op: bets stay committed when their owner leaves.
func (s *Session) Disconnected(game.Origin) {}

// Snapshot returns the current round state.
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

	s.logger.Info().Str("round_id", s.round.id).Msg("crash session started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("crash session shutting down")
			return
		case m := <-s.inbox:
			s.dispatch(m)
		}
	}
}

func (s *Session) dispatch(m message) {
	err := game.Safely(s.logger, func() error { return s.handle(m) })
	if err == nil {
		return
	}

	a, ok := m.(game.Action)
	if !ok {
		s.logger.Error().Err(err).Type("message", m).Msg("failed to handle timer message")
		return
	}
	origin := a.From()
	s.logger.Debug().
		Err(err).
		Str("participant_id", origin.Participant.ID).
		Str("round_id", s.round.id).
		Msg("action rejected")
	s.emit.Send(origin.ConnectionID, game.ErrorEvent(err))
}

func (s *Session) handle(m message) error {
	switch m := m.(type) {
	case PlaceBet:
		return s.placeBet(m)
	case CashOut:
		return s.cashOut(m)
	case connected:
		s.emit.Send(m.origin.ConnectionID, game.Event{Type: game.EventState, Payload: s.snapshot()})
	case bettingClosed:
		return s.startRound(m.roundID)
	case tick:
		s.tick(m.roundID)
	case cooldownExpired:
		return s.reset(m.roundID)
	case depositRecorded:
		s.depositRecorded(m)
	case getSnapshot:
		m.reply <- s.snapshot()
	default:
		return fmt.Errorf("unhandled message %T", m)
	}
	return nil
}

func (s *Session) placeBet(a PlaceBet) error {
	r := s.round
	switch r.phase {
	case PhaseRunning, PhaseCrashed:
		return game.ErrGameAlreadyStarted
	}
	pid := a.Origin.Participant.ID
	if _, ok := r.byID[pid]; ok {
		return game.ErrAlreadyBet
	}

	if r.phase == PhaseIdle {
		r.phase = PhaseBetting
		s.timers.After(s.cfg.BettingWindow, bettingClosed{roundID: r.id})
		s.emit.Broadcast(game.Event{Type: game.EventTimerStart, Payload: timerStartPayload{
			RoundID:    r.id,
			Seconds:    s.cfg.BettingWindow.Seconds(),
			PublicSeed: r.seeds.Public,
		}})
		s.logger.Info().Str("round_id", r.id).Dur("window", s.cfg.BettingWindow).Msg("betting opened")
	}

	b := &bet{origin: a.Origin, amount: a.Amount}
	r.bets = append(r.bets, b)
	r.byID[pid] = b

	s.emit.Broadcast(game.Event{Type: game.EventBetPlaced, Payload: betPlacedPayload{
		RoundID:     r.id,
		Participant: a.Origin.Participant,
		Amount:      a.Amount,
	}})
	s.record(models.NewDeposit(models.GameCrash, r.id, a.Origin.Participant, a.Amount, s.clock.Now()))
	return nil
}

func (s *Session) startRound(roundID string) error {
	r := s.round
	if r.id != roundID || r.phase != PhaseBetting {
		return nil
	}

	r.crashPoint = s.oracle.CrashPoint(r.seeds)
	r.startedAt = s.clock.Now()
	r.multiplier = 1
	r.phase = PhaseRunning
	r.ticker = s.timers.Every(s.cfg.TickInterval, tick{roundID: r.id})

	s.emit.Broadcast(game.Event{Type: game.EventStart, Payload: startPayload{
		RoundID:    r.id,
		PublicSeed: r.seeds.Public,
		StartedAt:  r.startedAt,
	}})
	s.logger.Info().Str("round_id", r.id).Int("bets", len(r.bets)).Msg("round started")

	if r.crashPoint <= 1 {
		s.crash(r)
	}
	return nil
}

func (s *Session) live(r *round) float64 {
	return Multiplier(s.clock.Since(r.startedAt), r.crashPoint)
}

func (s *Session) tick(roundID string) {
	r := s.round
	if r.id != roundID || r.phase != PhaseRunning {
		return
	}

	r.multiplier = s.live(r)
	s.emit.Broadcast(game.Event{Type: game.EventMultiplier, Payload: multiplierPayload{
		RoundID:    r.id,
		Multiplier: r.multiplier,
	}})
	if r.multiplier >= r.crashPoint {
		s.crash(r)
	}
}

func (s *Session) cashOut(a CashOut) error {
	r := s.round
	if r.phase != PhaseRunning {
		return game.ErrGameNotStarted
	}
	b, ok := r.byID[a.Origin.Participant.ID]
	if !ok {
		return game.ErrParticipantNotFound
	}
	if b.cashedOut {
		return game.ErrAlreadyCashedOut
	}

	// live is clamped to the crash point; the round only crashes on a tick,
	// so a cash-out handled before that tick still pays out.
	m := s.live(r)
	b.cashedOut = true
	b.multiplier = m
	payout := b.amount.Mul(m)

	s.emit.Broadcast(game.Event{Type: game.EventCashOut, Payload: cashOutPayload{
		RoundID:     r.id,
		Participant: a.Origin.Participant,
		Multiplier:  m,
		Payout:      payout,
	}})
	s.logger.Info().
		Str("round_id", r.id).
		Str("participant_id", a.Origin.Participant.ID).
		Float64("multiplier", m).
		Stringer("payout", payout).
		Msg("cashed out")
	return nil
}

func (s *Session) crash(r *round) {
	r.phase = PhaseCrashed
	r.multiplier = r.crashPoint
	r.ticker.Cancel()

	losers := make([]BetView, 0)
	winners := make([]BetView, 0)
	for _, b := range r.bets {
		if b.cashedOut {
			winners = append(winners, b.view())
		} else {
			losers = append(losers, b.view())
		}
	}

	s.emit.Broadcast(game.Event{Type: game.EventCrash, Payload: crashPayload{
		RoundID:    r.id,
		CrashPoint: r.crashPoint,
		Fairness:   fairness.NewRecord(r.id, r.seeds, r.crashPoint, 0),
		Losers:     losers,
		Winners:    winners,
	}})
	s.timers.After(s.cfg.Cooldown, cooldownExpired{roundID: r.id})

	s.logger.Info().
		Str("round_id", r.id).
		Float64("crash_point", r.crashPoint).
		Int("winners", len(winners)).
		Int("losers", len(losers)).
		Msg("round crashed")
}

func (s *Session) reset(roundID string) error {
	if s.round.id != roundID || s.round.phase != PhaseCrashed {
		return nil
	}
	s.timers.CancelAll()

	next, err := s.newRound()
	if err != nil {
		s.timers.After(s.cfg.Cooldown, cooldownExpired{roundID: roundID})
		return err
	}
	s.round = next

	s.emit.Broadcast(game.Event{Type: game.EventReset, Payload: resetPayload{
		RoundID:    next.id,
		PublicSeed: next.seeds.Public,
	}})
	s.logger.Debug().Str("round_id", next.id).Msg("round reset")
	return nil
}

func (s *Session) newRound() (*round, error) {
	seeds, err := s.oracle.NewSeedPair()
	if err != nil {
		return nil, fmt.Errorf("failed to prepare crash round: %w", err)
	}
	return &round{
		id:         uuid.NewString(),
		phase:      PhaseIdle,
		seeds:      seeds,
		byID:       make(map[string]*bet),
		multiplier: 1,
	}, nil
}

func (s *Session) record(d models.Deposit) {
	s.recorder.RecordDeposit(d, func(err error) {
		_ = s.post(context.Background(), depositRecorded{deposit: d, err: err})
	})
}

func (s *Session) depositRecorded(m depositRecorded) {
	if m.err != nil {
		s.logger.Warn().
			Err(m.err).
			Str("deposit_id", m.deposit.ID.String()).
			Str("round_id", m.deposit.RoundID).
			Msg("failed to record bet")
		return
	}
	s.logger.Debug().Str("deposit_id", m.deposit.ID.String()).Msg("bet recorded")
}

func (s *Session) snapshot() Snapshot {
	r := s.round
	snap := Snapshot{
		RoundID:    r.id,
		Phase:      r.phase,
		PublicSeed: r.seeds.Public,
		Multiplier: r.multiplier,
		Bets:       make([]BetView, 0, len(r.bets)),
	}
	if r.phase == PhaseRunning {
		snap.Multiplier = s.live(r)
	}
	if r.phase == PhaseCrashed {
		snap.CrashPoint = r.crashPoint
	}
	for _, b := range r.bets {
		snap.Bets = append(snap.Bets, b.view())
	}
	return snap
}
