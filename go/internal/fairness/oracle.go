// Package fairness derives provably fair outcomes from a public/private seed
// pair. The public seed is announced before a round resolves and the private
// seed afterwards, so anyone can recompute the outcome from the two.
package fairness

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
)

// SeedSize is the number of random bytes in each seed before hex encoding.
const SeedSize = 32

const (
	// InstantCrashModulus makes roughly one hash in 33 an instant 1.00x crash.
	InstantCrashModulus = 33
	// MaxCrashPoint caps the crash multiplier.
	MaxCrashPoint = 10000.0
)

// ErrEmptyRange is returned when an outcome is requested over an empty range.
var ErrEmptyRange = errors.New("outcome range must be positive")

// SeedPair is the per-round seed material.
type SeedPair struct {
	Public  string `json:"public_seed"`
	Private string `json:"private_seed"`
}

// Oracle produces seed pairs and derives outcomes from them.
type Oracle interface {
	NewSeedPair() (SeedPair, error)
	CrashPoint(seeds SeedPair) float64
	DeriveOutcome(seeds SeedPair, n uint64) (uint64, error)
}

// CryptoOracle draws seeds from crypto/rand.
type CryptoOracle struct{}

// NewOracle returns the default Oracle.
func NewOracle() CryptoOracle {
	return CryptoOracle{}
}

func (CryptoOracle) NewSeedPair() (SeedPair, error) {
	return NewSeedPair()
}

func (CryptoOracle) CrashPoint(seeds SeedPair) float64 {
	return CrashPoint(seeds.Public, seeds.Private)
}

func (CryptoOracle) DeriveOutcome(seeds SeedPair, n uint64) (uint64, error) {
	return DeriveOutcome(seeds.Public, seeds.Private, n)
}

// NewSeedPair returns two fresh hex-encoded random seeds.
func NewSeedPair() (SeedPair, error) {
	public, err := randomSeed()
	if err != nil {
		return SeedPair{}, fmt.Errorf("failed to generate public seed: %w", err)
	}
	private, err := randomSeed()
	if err != nil {
		return SeedPair{}, fmt.Errorf("failed to generate private seed: %w", err)
	}
	return SeedPair{Public: public, Private: private}, nil
}

func randomSeed() (string, error) {
	buf := make([]byte, SeedSize)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// Hash returns sha256(public || private).
func Hash(public, private string) [sha256.Size]byte {
	return sha256.Sum256([]byte(public + private))
}

// DeriveOutcome maps the seed hash into [0, n) using its first eight bytes.
func DeriveOutcome(public, private string, n uint64) (uint64, error) {
	if n == 0 {
		return 0, ErrEmptyRange
	}
	h := Hash(public, private)
	return binary.BigEndian.Uint64(h[:8]) % n, nil
}

// CrashPoint derives the crash multiplier for a round.
//
// Bytes 4..8 of the hash decide the instant crash: when they are divisible
// by InstantCrashModulus the round crashes at 1.00x. Otherwise bytes 0..4 give
// r and the multiplier is 1 + floor(40 * (2^32-1 - r) / r) / 100, capped at
// MaxCrashPoint.
func CrashPoint(public, private string) float64 {
	h := Hash(public, private)

	if binary.BigEndian.Uint32(h[4:8])%InstantCrashModulus == 0 {
		return 1.0
	}

	r := binary.BigEndian.Uint32(h[:4])
	if r == 0 {
		return MaxCrashPoint
	}

	e := float64(math.MaxUint32)
	point := 1.0 + math.Floor(40*(e-float64(r))/float64(r))/100
	return math.Min(point, MaxCrashPoint)
}
