// Package coinflip runs any number of concurrent two-player coin flips.
// The lobby allocates games and routes actions to them; each game is its own
// goroutine and is discarded once the coin is flipped.
package coinflip

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/casino/go/internal/fairness"
	"github.com/mcdev12/casino/go/internal/game"
	"github.com/mcdev12/casino/go/internal/models"
)

// Config controls the lobby.
type Config struct {
	// ClosedTTL is how long a resolved game id keeps answering "full".
	ClosedTTL time.Duration `yaml:"closed_ttl" env:"CLOSED_TTL"`
	InboxSize int           `yaml:"inbox_size" env:"INBOX_SIZE"`
}

func DefaultConfig() Config {
	return Config{
		ClosedTTL: 10 * time.Minute,
		InboxSize: 16,
	}
}

type listing struct {
	Listing
	createdAt time.Time
	game      *instance
}

// Lobby owns every open coinflip.
type Lobby struct {
	ctx      context.Context
	cfg      Config
	emit     game.Emitter
	oracle   fairness.Oracle
	recorder game.DepositRecorder
	clock    clockwork.Clock
	logger   zerolog.Logger

	mu     sync.RWMutex
	games  map[string]*listing
	closed *cache.Cache
}

type Option func(*Lobby)

func WithClock(c clockwork.Clock) Option {
	return func(l *Lobby) { l.clock = c }
}

func WithOracle(o fairness.Oracle) Option {
	return func(l *Lobby) { l.oracle = o }
}

func WithRecorder(r game.DepositRecorder) Option {
	return func(l *Lobby) { l.recorder = r }
}

// NewLobby creates an empty lobby. Games stop when ctx is cancelled.
func NewLobby(ctx context.Context, cfg Config, emit game.Emitter, opts ...Option) *Lobby {
	l := &Lobby{
		ctx:      ctx,
		cfg:      cfg,
		emit:     emit,
		oracle:   fairness.NewOracle(),
		recorder: game.NopRecorder{},
		clock:    clockwork.NewRealClock(),
		logger:   log.With().Str("game", string(models.GameCoinflip)).Logger(),
		games:    make(map[string]*listing),
		closed:   cache.New(cfg.ClosedTTL, 2*cfg.ClosedTTL),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Lobby) Decode(origin game.Origin, msgType string, payload []byte) (game.Action, error) {
	switch msgType {
	case "create":
		if err := game.RequireParticipant(origin); err != nil {
			return nil, err
		}
		amount, err := game.DecodeWager(payload)
		if err != nil {
			return nil, err
		}
		return CreateGame{Origin: origin, Amount: amount}, nil
	case "join":
		if err := game.RequireParticipant(origin); err != nil {
			return nil, err
		}
		var p game.GameIDPayload
		if err := game.DecodePayload(payload, &p); err != nil {
			return nil, err
		}
		return JoinGame{Origin: origin, GameID: p.GameID}, nil
	case "spectate":
		var p game.GameIDPayload
		if err := game.DecodePayload(payload, &p); err != nil {
			return nil, err
		}
		return Spectate{Origin: origin, GameID: p.GameID}, nil
	default:
		return nil, game.ErrUnknownAction
	}
}

// Route creates a game or forwards to the one addressed. Errors are meant for
// the originating connection.
func (l *Lobby) Route(ctx context.Context, action game.Action) error {
	switch a := action.(type) {
	case CreateGame:
		_, err := l.Create(a)
		return err
	case JoinGame:
		g, err := l.lookup(a.GameID)
		if err != nil {
			return err
		}
		if err := g.post(ctx, join{origin: a.Origin}); err != nil {
			if err == game.ErrClosed {
				return game.ErrGameFull
			}
			return err
		}
		return nil
	case Spectate:
		l.mu.RLock()
		lst, ok := l.games[a.GameID]
		l.mu.RUnlock()
		if !ok {
			return game.ErrGameNotFound
		}
		if err := lst.game.post(ctx, watch{connID: a.Origin.ConnectionID}); err != nil && err != game.ErrClosed {
			return err
		}
		return nil
	default:
		return game.ErrUnknownAction
	}
}

// Create opens a new game and announces it to the lobby.
func (l *Lobby) Create(a CreateGame) (string, error) {
	seeds, err := l.oracle.NewSeedPair()
	if err != nil {
		l.logger.Error().Err(err).Msg("failed to seed coinflip")
		return "", game.ErrInternal
	}

	id := uuid.NewString()
	g := newInstance(l, id, a.Amount, seeds, a.Origin)
	lst := &listing{
		Listing: Listing{
			GameID: id,
			Amount: a.Amount,
			Player: a.Origin.Participant,
		},
		createdAt: l.clock.Now(),
		game:      g,
	}

	l.mu.Lock()
	l.games[id] = lst
	l.mu.Unlock()
	go g.run(l.ctx)

	l.emit.Broadcast(game.Event{Type: game.EventNewGame, Payload: lst.Listing})
	l.record(models.NewDeposit(models.GameCoinflip, id, a.Origin.Participant, a.Amount, lst.createdAt))

	l.logger.Info().
		Str("game_id", id).
		Str("participant_id", a.Origin.Participant.ID).
		Stringer("amount", a.Amount).
		Msg("coinflip created")
	return id, nil
}

// Connected sends the list of open games.
func (l *Lobby) Connected(origin game.Origin) {
	l.emit.Send(origin.ConnectionID, game.Event{Type: game.EventState, Payload: lobbyState{Games: l.Open()}})
}

// Disconnected drops the connection from every game it was watching.
func (l *Lobby) Disconnected(origin game.Origin) {
	l.mu.RLock()
	games := make([]*instance, 0, len(l.games))
	for _, lst := range l.games {
		games = append(games, lst.game)
	}
	l.mu.RUnlock()

	for _, g := range games {
		_ = g.post(l.ctx, leave{connID: origin.ConnectionID})
	}
}

// Open lists unresolved games, oldest first.
func (l *Lobby) Open() []Listing {
	l.mu.RLock()
	all := make([]*listing, 0, len(l.games))
	for _, lst := range l.games {
		all = append(all, lst)
	}
	l.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].createdAt.Equal(all[j].createdAt) {
			return all[i].GameID < all[j].GameID
		}
		return all[i].createdAt.Before(all[j].createdAt)
	})
	out := make([]Listing, 0, len(all))
	for _, lst := range all {
		out = append(out, lst.Listing)
	}
	return out
}

func (l *Lobby) lookup(id string) (*instance, error) {
	l.mu.RLock()
	lst, ok := l.games[id]
	l.mu.RUnlock()
	if ok {
		return lst.game, nil
	}
	if _, closed := l.closed.Get(id); closed {
		return nil, game.ErrGameFull
	}
	return nil, game.ErrGameNotFound
}

// finish removes a resolved game. Its id keeps rejecting joins as full.
func (l *Lobby) finish(id string) {
	l.closed.SetDefault(id, struct{}{})

	l.mu.Lock()
	delete(l.games, id)
	l.mu.Unlock()

	l.emit.Broadcast(game.Event{Type: game.EventGameClosed, Payload: map[string]string{"game_id": id}})
}

func (l *Lobby) record(d models.Deposit) {
	l.recorder.RecordDeposit(d, func(err error) {
		if err != nil {
			l.logger.Warn().Err(err).Str("deposit_id", d.ID.String()).Str("game_id", d.RoundID).Msg("failed to record stake")
		}
	})
}
