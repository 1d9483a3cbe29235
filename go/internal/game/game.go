// Package game holds the contracts shared by the hub and the game sessions.
package game

import (
	"context"

	"github.com/mcdev12/casino/go/internal/models"
)

// Origin identifies where an action came from.
type Origin struct {
	ConnectionID string
	Participant  models.Participant
}

// Action is a decoded inbound request. Each game defines its own.
type Action interface {
	From() Origin
}

// Emitter is how sessions publish events.
type Emitter interface {
	// Broadcast sends to every connection of the game.
	Broadcast(ev Event)
	// Send sends to a single connection.
	Send(connID string, ev Event)
}

// Router decodes inbound messages for one game and routes them to the
// session that owns them.
type Router interface {
	Decode(origin Origin, msgType string, payload []byte) (Action, error)
	Route(ctx context.Context, action Action) error
	Connected(origin Origin)
	Disconnected(origin Origin)
}

// DepositRecorder persists accepted wagers. RecordDeposit must not block;
// done is called from another goroutine with the outcome.
type DepositRecorder interface {
	RecordDeposit(d models.Deposit, done func(error))
}

// NopRecorder drops deposits.
type NopRecorder struct{}

func (NopRecorder) RecordDeposit(_ models.Deposit, done func(error)) {
	if done != nil {
		go done(nil)
	}
}
