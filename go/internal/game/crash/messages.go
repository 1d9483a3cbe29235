package crash

import (
	"time"

	"github.com/mcdev12/casino/go/internal/fairness"
	"github.com/mcdev12/casino/go/internal/game"
	"github.com/mcdev12/casino/go/internal/models"
)

type message interface{ isCrashMessage() }

// PlaceBet stakes an amount on the next round.
type PlaceBet struct {
	Origin game.Origin
	Amount models.Amount
}

// CashOut locks in the live multiplier for the caller's bet.
type CashOut struct {
	Origin game.Origin
}

func (a PlaceBet) From() game.Origin { return a.Origin }
func (a CashOut) From() game.Origin  { return a.Origin }

type (
	connected       struct{ origin game.Origin }
	bettingClosed   struct{ roundID string }
	tick            struct{ roundID string }
	cooldownExpired struct{ roundID string }
	depositRecorded struct {
		deposit models.Deposit
		err     error
	}
	getSnapshot struct{ reply chan Snapshot }
)

func (PlaceBet) isCrashMessage()        {}
func (CashOut) isCrashMessage()         {}
func (connected) isCrashMessage()       {}
func (bettingClosed) isCrashMessage()   {}
func (tick) isCrashMessage()            {}
func (cooldownExpired) isCrashMessage() {}
func (depositRecorded) isCrashMessage() {}
func (getSnapshot) isCrashMessage()     {}

// BetView is a bet as clients see it.
type BetView struct {
	Participant models.Participant `json:"participant"`
	Amount      models.Amount      `json:"amount"`
	CashedOut   bool               `json:"cashed_out"`
	Multiplier  float64            `json:"multiplier,omitempty"`
	Payout      models.Amount      `json:"payout,omitempty"`
}

// Snapshot is the state sent to newly connected clients.
type Snapshot struct {
	RoundID    string    `json:"round_id"`
	Phase      Phase     `json:"phase"`
	PublicSeed string    `json:"public_seed"`
	Multiplier float64   `json:"multiplier"`
	CrashPoint float64   `json:"crash_point,omitempty"`
	Bets       []BetView `json:"bets"`
}

type timerStartPayload struct {
	RoundID    string  `json:"round_id"`
	Seconds    float64 `json:"seconds"`
	PublicSeed string  `json:"public_seed"`
}

type betPlacedPayload struct {
	RoundID     string             `json:"round_id"`
	Participant models.Participant `json:"participant"`
	Amount      models.Amount      `json:"amount"`
}

type startPayload struct {
	RoundID    string    `json:"round_id"`
	PublicSeed string    `json:"public_seed"`
	StartedAt  time.Time `json:"started_at"`
}

type multiplierPayload struct {
	RoundID    string  `json:"round_id"`
	Multiplier float64 `json:"multiplier"`
}

type cashOutPayload struct {
	RoundID     string             `json:"round_id"`
	Participant models.Participant `json:"participant"`
	Multiplier  float64            `json:"multiplier"`
	Payout      models.Amount      `json:"payout"`
}

type crashPayload struct {
	RoundID    string          `json:"round_id"`
	CrashPoint float64         `json:"crash_point"`
	Fairness   fairness.Record `json:"fairness"`
	Losers     []BetView       `json:"losers"`
	Winners    []BetView       `json:"winners"`
}

type resetPayload struct {
	RoundID    string `json:"round_id"`
	PublicSeed string `json:"public_seed"`
}
