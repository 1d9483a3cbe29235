// Package gametest provides test doubles for game sessions.
package gametest

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mcdev12/casino/go/internal/fairness"
	"github.com/mcdev12/casino/go/internal/game"
	"github.com/mcdev12/casino/go/internal/models"
)

// Wait bounds every Expect call.
const Wait = 2 * time.Second

// Sent is an event captured by Emitter. ConnID is empty for broadcasts.
type Sent struct {
	ConnID string
	Event  game.Event
}

// Emitter records everything a session emits, in order.
type Emitter struct {
	ch chan Sent
}

func NewEmitter() *Emitter {
	return &Emitter{ch: make(chan Sent, 4096)}
}

func (e *Emitter) Broadcast(ev game.Event) {
	e.ch <- Sent{Event: ev}
}

func (e *Emitter) Send(connID string, ev game.Event) {
	e.ch <- Sent{ConnID: connID, Event: ev}
}

// Expect skips ahead to the next event of the given type.
func (e *Emitter) Expect(t *testing.T, typ game.EventType) Sent {
	t.Helper()
	return e.ExpectMatch(t, string(typ), func(s Sent) bool { return s.Event.Type == typ })
}

// ExpectTo skips ahead to the next event of the given type sent to connID.
func (e *Emitter) ExpectTo(t *testing.T, connID string, typ game.EventType) Sent {
	t.Helper()
	return e.ExpectMatch(t, fmt.Sprintf("%s to %s", typ, connID), func(s Sent) bool {
		return s.ConnID == connID && s.Event.Type == typ
	})
}

// ExpectMatch skips ahead to the first event accepted by match.
func (e *Emitter) ExpectMatch(t *testing.T, desc string, match func(Sent) bool) Sent {
	t.Helper()
	deadline := time.After(Wait)
	for {
		select {
		case s := <-e.ch:
			if match(s) {
				return s
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", desc)
			return Sent{}
		}
	}
}

// AssertQuiet fails if anything matching match is emitted within d.
func (e *Emitter) AssertQuiet(t *testing.T, d time.Duration, match func(Sent) bool) {
	t.Helper()
	deadline := time.After(d)
	for {
		select {
		case s := <-e.ch:
			if match(s) {
				t.Fatalf("unexpected event %s: %+v", s.Event.Type, s.Event.Payload)
			}
		case <-deadline:
			return
		}
	}
}

// Recorder captures deposits and reports success.
type Recorder struct {
	mu       sync.Mutex
	deposits []models.Deposit
	Err      error
}

func (r *Recorder) RecordDeposit(d models.Deposit, done func(error)) {
	r.mu.Lock()
	r.deposits = append(r.deposits, d)
	err := r.Err
	r.mu.Unlock()
	if done != nil {
		go done(err)
	}
}

func (r *Recorder) Deposits() []models.Deposit {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Deposit, len(r.deposits))
	copy(out, r.deposits)
	return out
}

// Oracle returns fixed outcomes and numbered seeds.
type Oracle struct {
	mu    sync.Mutex
	n     int
	Crash float64
	Roll  uint64
}

func (o *Oracle) NewSeedPair() (fairness.SeedPair, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.n++
	return fairness.SeedPair{
		Public:  fmt.Sprintf("public-%d", o.n),
		Private: fmt.Sprintf("private-%d", o.n),
	}, nil
}

func (o *Oracle) CrashPoint(fairness.SeedPair) float64 {
	return o.Crash
}

func (o *Oracle) DeriveOutcome(_ fairness.SeedPair, n uint64) (uint64, error) {
	if n == 0 {
		return 0, fairness.ErrEmptyRange
	}
	return o.Roll % n, nil
}

// Player builds an origin for an authenticated participant.
func Player(id, name string) game.Origin {
	return game.Origin{
		ConnectionID: "conn-" + id,
		Participant:  models.Participant{ID: id, Name: name},
	}
}
