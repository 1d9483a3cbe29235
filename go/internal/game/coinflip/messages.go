package coinflip

import (
	"github.com/mcdev12/casino/go/internal/fairness"
	"github.com/mcdev12/casino/go/internal/game"
	"github.com/mcdev12/casino/go/internal/models"
)

// CreateGame opens a new coinflip with the caller as the first player.
type CreateGame struct {
	Origin game.Origin
	Amount models.Amount
}

// JoinGame takes the second seat and flips the coin.
type JoinGame struct {
	Origin game.Origin
	GameID string
}

// Spectate subscribes a connection to a game's result.
type Spectate struct {
	Origin game.Origin
	GameID string
}

func (a CreateGame) From() game.Origin { return a.Origin }
func (a JoinGame) From() game.Origin   { return a.Origin }
func (a Spectate) From() game.Origin   { return a.Origin }

// messages handled by a single game instance
type message interface{ isGameMessage() }

type (
	join struct {
		origin game.Origin
	}
	watch struct {
		connID string
	}
	leave struct {
		connID string
	}
)

func (join) isGameMessage()  {}
func (watch) isGameMessage() {}
func (leave) isGameMessage() {}

// Listing is an open game as shown in the lobby.
type Listing struct {
	GameID string             `json:"game_id"`
	Amount models.Amount      `json:"amount"`
	Player models.Participant `json:"player"`
}

type lobbyState struct {
	Games []Listing `json:"games"`
}

// Outcome tells a recipient how a flip went for them.
type Outcome string

const (
	OutcomeWon    Outcome = "won"
	OutcomeLost   Outcome = "lost"
	OutcomePublic Outcome = "public"
)

type resultPayload struct {
	GameID   string             `json:"game_id"`
	Outcome  Outcome            `json:"outcome"`
	Message  string             `json:"message"`
	Winner   models.Participant `json:"winner"`
	Loser    models.Participant `json:"loser"`
	Amount   models.Amount      `json:"amount"`
	Fairness fairness.Record    `json:"fairness"`
}
