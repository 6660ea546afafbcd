package generator

import "math/rand/v2"

// Rand is the randomness source for supplemental wishes.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

// globalRand uses the math/rand/v2 top-level source, which is safe for concurrent use.
type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }
func (globalRand) IntN(n int) int   { return rand.IntN(n) }

// NoWish is a Rand that never adds a supplemental wish.
type NoWish struct{}

func (NoWish) Float64() float64 { return 0 }
func (NoWish) IntN(int) int     { return 0 }
