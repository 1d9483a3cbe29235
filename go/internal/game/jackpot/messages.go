package jackpot

import (
	"time"

	"github.com/mcdev12/casino/go/internal/fairness"
	"github.com/mcdev12/casino/go/internal/game"
	"github.com/mcdev12/casino/go/internal/models"
)

type message interface{ isJackpotMessage() }

// Deposit adds to the caller's stake in the current pot.
type Deposit struct {
	Origin game.Origin
	Amount models.Amount
}

func (a Deposit) From() game.Origin { return a.Origin }

type (
	connected        struct{ origin game.Origin }
	countdownExpired struct{ roundID string }
	resetDue         struct{ roundID string }
	depositRecorded  struct {
		deposit models.Deposit
		err     error
	}
	getSnapshot struct{ reply chan Snapshot }
)

func (Deposit) isJackpotMessage()          {}
func (connected) isJackpotMessage()        {}
func (countdownExpired) isJackpotMessage() {}
func (resetDue) isJackpotMessage()         {}
func (depositRecorded) isJackpotMessage()  {}
func (getSnapshot) isJackpotMessage()      {}

// Stake is one participant's share of the pot.
type Stake struct {
	Participant models.Participant `json:"participant"`
	Amount      models.Amount      `json:"amount"`
}

// Snapshot is the pot as clients see it.
type Snapshot struct {
	RoundID     string        `json:"round_id"`
	Phase       Phase         `json:"phase"`
	PublicSeed  string        `json:"public_seed"`
	Total       models.Amount `json:"total"`
	Stakes      []Stake       `json:"stakes"`
	CountdownAt *time.Time    `json:"countdown_ends_at,omitempty"`
}

type timerStartPayload struct {
	RoundID    string  `json:"round_id"`
	Seconds    float64 `json:"seconds"`
	PublicSeed string  `json:"public_seed"`
}

type playerJoinPayload struct {
	RoundID     string             `json:"round_id"`
	Participant models.Participant `json:"participant"`
	Amount      models.Amount      `json:"amount"`
	Stake       models.Amount      `json:"stake"`
	Total       models.Amount      `json:"total"`
	Message     string             `json:"message"`
}

type winnerPayload struct {
	RoundID  string             `json:"round_id"`
	Winner   models.Participant `json:"winner"`
	Stake    models.Amount      `json:"stake"`
	Total    models.Amount      `json:"total"`
	Roll     uint64             `json:"roll"`
	Fairness fairness.Record    `json:"fairness"`
	Message  string             `json:"message"`
}

type resetPayload struct {
	RoundID    string `json:"round_id"`
	PublicSeed string `json:"public_seed"`
}
