package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/casino/go/internal/models"
)

var (
	ErrQueueFull  = errors.New("deposit queue full")
	ErrNotRunning = errors.New("deposit recorder not running")
)

type Config struct {
	QueueSize  int           `yaml:"queue_size" env:"QUEUE_SIZE"`
	Workers    int           `yaml:"workers" env:"WORKERS"`
	MaxRetries int           `yaml:"max_retries" env:"MAX_RETRIES"`
	RetryDelay time.Duration `yaml:"retry_delay" env:"RETRY_DELAY"`
}

func DefaultConfig() Config {
	return Config{
		QueueSize:  1024,
		Workers:    4,
		MaxRetries: 3,
		RetryDelay: time.Second,
	}
}

type job struct {
	deposit models.Deposit
	done    func(error)
}

// Recorder hands deposits to a Store on a pool of workers, so sessions never
// wait on I/O.
type Recorder struct {
	store  Store
	config Config
	logger zerolog.Logger

	queue chan job

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

func NewRecorder(store Store, cfg Config) *Recorder {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Recorder{
		store:    store,
		config:   cfg,
		logger:   log.With().Str("component", "ledger").Logger(),
		queue:    make(chan job, cfg.QueueSize),
		stopChan: make(chan struct{}),
	}
}

func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return fmt.Errorf("deposit recorder already running")
	}
	r.running = true

	for i := 0; i < r.config.Workers; i++ {
		r.wg.Add(1)
		go r.run(ctx)
	}

	r.logger.Info().
		Int("workers", r.config.Workers).
		Int("queue_size", r.config.QueueSize).
		Msg("deposit recorder started")
	return nil
}

// Stop waits for the workers to flush what is already queued.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return ErrNotRunning
	}
	r.running = false
	close(r.stopChan)
	r.mu.Unlock()

	r.wg.Wait()
	r.logger.Info().Msg("deposit recorder stopped")
	return nil
}

// RecordDeposit queues d without blocking. done is called from another
// goroutine once d is saved or rejected.
func (r *Recorder) RecordDeposit(d models.Deposit, done func(error)) {
	if done == nil {
		done = func(error) {}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		go done(ErrNotRunning)
		return
	}
	select {
	case r.queue <- job{deposit: d, done: done}:
	default:
		r.logger.Warn().Str("deposit_id", d.ID.String()).Msg("deposit queue full")
		go done(ErrQueueFull)
	}
}

func (r *Recorder) run(ctx context.Context) {
	defer r.wg.Done()

	for {
		select {
		case <-ctx.Done():
			r.drain(context.WithoutCancel(ctx))
			return
		case <-r.stopChan:
			r.drain(ctx)
			return
		case j := <-r.queue:
			j.done(r.saveWithRetry(ctx, j.deposit))
		}
	}
}

// drain saves whatever is still queued with a single attempt each.
func (r *Recorder) drain(ctx context.Context) {
	for {
		select {
		case j := <-r.queue:
			j.done(r.store.SaveDeposit(ctx, j.deposit))
		default:
			return
		}
	}
}

func (r *Recorder) saveWithRetry(ctx context.Context, d models.Deposit) error {
	var lastErr error

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.config.RetryDelay * time.Duration(attempt)):
			}
		}

		if err := r.store.SaveDeposit(ctx, d); err != nil {
			lastErr = err
			r.logger.Warn().
				Err(err).
				Str("deposit_id", d.ID.String()).
				Int("attempt", attempt+1).
				Msg("failed to save deposit, retrying")
			continue
		}
		return nil
	}

	r.logger.Error().Err(lastErr).Str("deposit_id", d.ID.String()).Msg("giving up on deposit")
	return fmt.Errorf("failed after %d attempts: %w", r.config.MaxRetries+1, lastErr)
}
