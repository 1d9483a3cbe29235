package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/casino/go/internal/config"
	"github.com/mcdev12/casino/go/internal/game/chat"
	"github.com/mcdev12/casino/go/internal/game/coinflip"
	"github.com/mcdev12/casino/go/internal/game/crash"
	"github.com/mcdev12/casino/go/internal/game/jackpot"
	"github.com/mcdev12/casino/go/internal/gateway"
	"github.com/mcdev12/casino/go/internal/ledger"
)

type Services struct {
	Gateway  *gateway.Service
	Crash    *crash.Session
	Jackpot  *jackpot.Session
	Coinflip *coinflip.Lobby
	Chat     *chat.Room

	recorder  *ledger.Recorder
	publisher *ledger.Publisher
	pool      *pgxpool.Pool
}

func setupServices(ctx context.Context, cfg config.Config) (*Services, error) {
	// Wire up dependency injection chain
	// Stores → Recorder → Hubs → Sessions
	s := &Services{}

	store, err := s.setupLedger(ctx, cfg)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.recorder = ledger.NewRecorder(store, cfg.Ledger)
	if err := s.recorder.Start(ctx); err != nil {
		s.Close()
		return nil, err
	}

	s.Gateway = gateway.NewService(ctx, cfg.Gateway, identityResolver(cfg.Auth))
	crashHub := s.Gateway.AddHub("crash", "/ws/crash")
	jackpotHub := s.Gateway.AddHub("jackpot", "/ws/jackpot")
	coinflipHub := s.Gateway.AddHub("coinflip", "/ws/coinflip")
	chatHub := s.Gateway.AddHub("chat", "/ws/chat")
	s.Gateway.Start(ctx)

	// Crash
	s.Crash, err = crash.NewSession(ctx, cfg.Crash, crashHub, crash.WithRecorder(s.recorder))
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to start crash session: %w", err)
	}
	crashHub.Attach(s.Crash)

	// Jackpot
	s.Jackpot, err = jackpot.NewSession(ctx, cfg.Jackpot, jackpotHub, jackpot.WithRecorder(s.recorder))
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to start jackpot session: %w", err)
	}
	jackpotHub.Attach(s.Jackpot)

	// Coinflip
	s.Coinflip = coinflip.NewLobby(ctx, cfg.Coinflip, coinflipHub, coinflip.WithRecorder(s.recorder))
	coinflipHub.Attach(s.Coinflip)

	// Chat
	s.Chat = chat.NewRoom(chatHub, nil)
	chatHub.Attach(s.Chat)

	return s, nil
}

// setupLedger builds the deposit stores that are configured. Deposits are
// always logged.
func (s *Services) setupLedger(ctx context.Context, cfg config.Config) (ledger.Store, error) {
	stores := ledger.Fanout{ledger.NewLogStore(log.With().Str("component", "deposits").Logger())}

	if cfg.Database.Enabled {
		pool, err := setupDatabase(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		s.pool = pool

		repo := ledger.NewRepository(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		stores = append(stores, repo)
	}

	if cfg.NATS.URL != "" {
		publisher, err := ledger.NewPublisher(ctx, cfg.NATS)
		if err != nil {
			return nil, fmt.Errorf("failed to create deposit publisher: %w", err)
		}
		s.publisher = publisher
		stores = append(stores, publisher)
		log.Info().Str("url", cfg.NATS.URL).Str("stream", cfg.NATS.StreamName).Msg("publishing deposits to JetStream")
	}

	return stores, nil
}

func identityResolver(cfg config.AuthConfig) gateway.IdentityResolver {
	if cfg.DevIdentity {
		log.Warn().Msg("trusting user_id query parameter; do not use in production")
		return gateway.QueryResolver{}
	}
	return gateway.NewJWTResolver(cfg.JWTSecret, cfg.AllowAnonymous)
}

// Close flushes queued deposits and releases external connections.
func (s *Services) Close() {
	if s.recorder != nil {
		if err := s.recorder.Stop(); err != nil {
			log.Debug().Err(err).Msg("deposit recorder stop")
		}
	}
	if s.publisher != nil {
		s.publisher.Close()
	}
	if s.pool != nil {
		s.pool.Close()
	}
}
