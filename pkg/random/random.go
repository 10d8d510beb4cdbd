package random

import (
	"math"
	"math/rand"
	"time"
)

// Source is an injectable uniform randomness source. Engines draw outcome
// values through it so tests can force a draw.
type Source interface {
	Float64() float64
	IntN(n int) int
}

type randSource struct {
	rnd *rand.Rand
}

func New() Source {
	return &randSource{rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (s *randSource) Float64() float64 {
	return s.rnd.Float64()
}

func (s *randSource) IntN(n int) int {
	return s.rnd.Intn(n)
}

// Amount draws a uniform value in [min, max] rounded to 2 decimal places.
func Amount(src Source, min, max float64) float64 {
	if max <= min {
		return Round2(min)
	}
	return Round2(min + src.Float64()*(max-min))
}

// Draw produces a die-style value in [1, sides].
func Draw(src Source, sides int) int {
	return src.IntN(sides) + 1
}

func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
