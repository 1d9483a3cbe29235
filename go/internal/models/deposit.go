package models

import (
	"time"

	"github.com/google/uuid"
)

// GameKind names one of the wagering games.
type GameKind string

const (
	GameCrash    GameKind = "crash"
	GameJackpot  GameKind = "jackpot"
	GameCoinflip GameKind = "coinflip"
)

// Deposit is an accepted wager handed to the recording pipeline.
type Deposit struct {
	ID          uuid.UUID   `json:"id"`
	Game        GameKind    `json:"game"`
	RoundID     string      `json:"round_id"`
	Participant Participant `json:"participant"`
	Amount      Amount      `json:"amount"`
	CreatedAt   time.Time   `json:"created_at"`
}

// NewDeposit builds a deposit record with a fresh id.
func NewDeposit(game GameKind, roundID string, p Participant, amount Amount, at time.Time) Deposit {
	return Deposit{
		ID:          uuid.New(),
		Game:        game,
		RoundID:     roundID,
		Participant: p,
		Amount:      amount,
		CreatedAt:   at,
	}
}
