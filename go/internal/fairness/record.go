package fairness

import (
	"fmt"
	"math"
)

// Record is what a client needs to verify a resolved round.
type Record struct {
	RoundID     string  `json:"round_id"`
	PublicSeed  string  `json:"public_seed"`
	PrivateSeed string  `json:"private_seed"`
	Outcome     float64 `json:"outcome"`
	// Range is the draw range for DeriveOutcome. Zero means a crash point.
	Range uint64 `json:"range,omitempty"`
}

// NewRecord reveals a round's seeds alongside its outcome.
func NewRecord(roundID string, seeds SeedPair, outcome float64, n uint64) Record {
	return Record{
		RoundID:     roundID,
		PublicSeed:  seeds.Public,
		PrivateSeed: seeds.Private,
		Outcome:     outcome,
		Range:       n,
	}
}

// Verify recomputes the outcome from the revealed seeds.
func Verify(r Record) error {
	var want float64
	if r.Range == 0 {
		want = CrashPoint(r.PublicSeed, r.PrivateSeed)
	} else {
		v, err := DeriveOutcome(r.PublicSeed, r.PrivateSeed, r.Range)
		if err != nil {
			return err
		}
		want = float64(v)
	}
	if math.Abs(want-r.Outcome) > 1e-9 {
		return fmt.Errorf("round %s: outcome %v does not match seeds (want %v)", r.RoundID, r.Outcome, want)
	}
	return nil
}
