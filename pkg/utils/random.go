package utils

import (
	"crypto/rand"
	"encoding/binary"
	mrand "math/rand/v2"
	"sync"
)

// Roller is the source of every random draw in the engine.
type Roller interface {
	// Float64 returns a value in [0, 1).
	Float64() float64
	// IntN returns a value in [0, n).
	IntN(n int) int
}

type lockedRoller struct {
	mu  sync.Mutex
	rng *mrand.Rand
}

// NewRoller returns a goroutine-safe roller seeded from crypto/rand.
func NewRoller() Roller {
	var seed [16]byte
	if _, err := rand.Read(seed[:]); err != nil {
		// Fallback to a fixed seed if crypto rand fails (highly unlikely)
		return NewSeededRoller(0x9e3779b97f4a7c15, 0xbf58476d1ce4e5b9)
	}
	return NewSeededRoller(binary.LittleEndian.Uint64(seed[:8]), binary.LittleEndian.Uint64(seed[8:]))
}

func NewSeededRoller(seed1, seed2 uint64) Roller {
	return &lockedRoller{rng: mrand.New(mrand.NewPCG(seed1, seed2))}
}

func (r *lockedRoller) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Float64()
}

func (r *lockedRoller) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.IntN(n)
}

// Uniform returns a value in [lo, hi).
func Uniform(r Roller, lo, hi float64) float64 {
	return lo + r.Float64()*(hi-lo)
}

// IntBetween returns a value in [lo, hi], both inclusive.
func IntBetween(r Roller, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + r.IntN(hi-lo+1)
}

// ScriptedRoller replays fixed draws, cycling when exhausted. Used in tests.
type ScriptedRoller struct {
	mu     sync.Mutex
	Floats []float64
	Ints   []int
	fi, ii int
}

func (s *ScriptedRoller) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Floats) == 0 {
		return 0
	}
	v := s.Floats[s.fi%len(s.Floats)]
	s.fi++
	return v
}

func (s *ScriptedRoller) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Ints) == 0 || n <= 0 {
		return 0
	}
	v := s.Ints[s.ii%len(s.Ints)]
	s.ii++
	if v >= n {
		v = n - 1
	}
	return v
}
