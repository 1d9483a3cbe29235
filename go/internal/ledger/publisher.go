package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/casino/go/internal/models"
)

const eventDepositRecorded = "deposit.recorded"

type JetStreamConfig struct {
	URL             string        `yaml:"url" env:"URL"`
	StreamName      string        `yaml:"stream_name" env:"STREAM_NAME"`
	SubjectPrefix   string        `yaml:"subject_prefix" env:"SUBJECT_PREFIX"`
	MaxReconnects   int           `yaml:"max_reconnects" env:"MAX_RECONNECTS"`
	ReconnectWait   time.Duration `yaml:"reconnect_wait" env:"RECONNECT_WAIT"`
	MaxAge          time.Duration `yaml:"max_age" env:"MAX_AGE"`
	Replicas        int           `yaml:"replicas" env:"REPLICAS"`
	DuplicateWindow time.Duration `yaml:"duplicate_window" env:"DUPLICATE_WINDOW"`
}

// DefaultJetStreamConfig leaves URL empty, which disables publishing.
func DefaultJetStreamConfig() JetStreamConfig {
	return JetStreamConfig{
		StreamName:      "CASINO_DEPOSITS",
		SubjectPrefix:   "casino",
		MaxReconnects:   -1,
		ReconnectWait:   2 * time.Second,
		MaxAge:          7 * 24 * time.Hour,
		Replicas:        1,
		DuplicateWindow: 2 * time.Hour,
	}
}

// Subject is where deposits for game are published.
func (c JetStreamConfig) Subject(game models.GameKind) string {
	return fmt.Sprintf("%s.%s.%s", c.SubjectPrefix, game, eventDepositRecorded)
}

// Publisher announces deposits on a JetStream stream. The deposit id is the
// message id, so retries inside the duplicate window are deduplicated.
type Publisher struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	config JetStreamConfig
}

func NewPublisher(ctx context.Context, cfg JetStreamConfig) (*Publisher, error) {
	opts := []nats.Option{
		nats.Name("casino-ledger"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	p := &Publisher{nc: nc, js: js, config: cfg}
	if err := p.ensureStream(ctx); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}
	return p, nil
}

func (p *Publisher) ensureStream(ctx context.Context) error {
	_, err := p.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        p.config.StreamName,
		Description: "Accepted casino deposits",
		Subjects:    []string{fmt.Sprintf("%s.>", p.config.SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      p.config.MaxAge,
		Storage:     jetstream.FileStorage,
		Replicas:    p.config.Replicas,
		Duplicates:  p.config.DuplicateWindow,
	})
	if err != nil {
		return err
	}
	log.Info().Str("stream", p.config.StreamName).Msg("JetStream stream ready")
	return nil
}

type envelope struct {
	EventID   string         `json:"eventId"`
	EventType string         `json:"eventType"`
	RoundID   string         `json:"roundId"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   models.Deposit `json:"payload"`
}

func (p *Publisher) SaveDeposit(ctx context.Context, d models.Deposit) error {
	subject := p.config.Subject(d.Game)
	data, err := json.Marshal(envelope{
		EventID:   d.ID.String(),
		EventType: eventDepositRecorded,
		RoundID:   d.RoundID,
		Timestamp: time.Now().UTC(),
		Payload:   d,
	})
	if err != nil {
		return fmt.Errorf("marshal deposit: %w", err)
	}

	ack, err := p.js.PublishMsg(ctx, &nats.Msg{
		Subject: subject,
		Data:    data,
		Header: nats.Header{
			"Event-Type": []string{eventDepositRecorded},
			"Round-ID":   []string{d.RoundID},
			"Event-ID":   []string{d.ID.String()},
		},
	},
		jetstream.WithMsgID(d.ID.String()),
		jetstream.WithExpectStream(p.config.StreamName),
	)
	if err != nil {
		return fmt.Errorf("publish to JetStream: %w", err)
	}

	log.Debug().
		Str("subject", subject).
		Str("deposit_id", d.ID.String()).
		Uint64("sequence", ack.Sequence).
		Msg("published deposit")
	return nil
}

func (p *Publisher) Close() {
	if p.nc != nil {
		_ = p.nc.Drain()
	}
}
