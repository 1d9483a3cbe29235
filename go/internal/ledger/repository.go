package ledger

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mcdev12/casino/go/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS deposits (
    id             UUID PRIMARY KEY,
    game           TEXT        NOT NULL,
    round_id       TEXT        NOT NULL,
    participant_id TEXT        NOT NULL,
    participant    TEXT        NOT NULL,
    amount_cents   BIGINT      NOT NULL CHECK (amount_cents > 0),
    created_at     TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS deposits_round_idx ON deposits (game, round_id);
`

// Repository stores deposits in Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// EnsureSchema creates the deposits table if it does not exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create deposits schema: %w", err)
	}
	return nil
}

func (r *Repository) SaveDeposit(ctx context.Context, d models.Deposit) error {
	_, err := r.pool.Exec(ctx, `
        INSERT INTO deposits (id, game, round_id, participant_id, participant, amount_cents, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (id) DO NOTHING
    `, d.ID, string(d.Game), d.RoundID, d.Participant.ID, d.Participant.Name, int64(d.Amount), d.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert deposit %s: %w", d.ID, err)
	}
	return nil
}
