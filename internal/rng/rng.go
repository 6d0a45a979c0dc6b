// Package rng provides the single deterministic pseudorandom stream shared
// by the model and every household. Given the same seed and the same fixed
// draw order, the stream reproduces bit-identical output.
//
// This replaces the true-randomness (random.org / crypto-rand) substrate
// the world-generation side of this codebase historically used: that
// substrate cannot be seeded and so cannot satisfy the determinism
// invariant this simulation requires. The pool-and-refill shape is gone;
// what survives is the "single handle threaded through call sites" idiom.
package rng

import (
	"math"
	"math/rand"
)

// Stream is the sole source of randomness for a simulation run. It is not
// safe for concurrent use — the model and households draw from it strictly
// one at a time, in iteration order, by design (see the concurrency model).
//
// Every higher-level draw method funnels through raw, so a Stream's entire
// future output is a pure function of (seed, draws): Restore reconstructs
// that exact position without needing to serialize math/rand's internal
// generator state, which the standard library does not expose.
type Stream struct {
	r     *rand.Rand
	seed  int64
	draws int64
}

// New returns a Stream seeded deterministically from seed.
func New(seed int64) *Stream {
	return &Stream{r: rand.New(rand.NewSource(seed)), seed: seed}
}

// Restore reconstructs a Stream from seed, fast-forwarded by draws raw
// draws — the exact position a Stream created with New(seed) would have
// reached after issuing that many draws. Used to resume a checkpointed
// run's RNG stream from the step boundary it was saved at.
func Restore(seed, draws int64) *Stream {
	s := New(seed)
	for i := int64(0); i < draws; i++ {
		s.raw()
	}
	return s
}

// Seed is the value this Stream was originally constructed from.
func (s *Stream) Seed() int64 { return s.seed }

// DrawCount is the number of raw draws issued so far, the position
// Restore needs to reach the same point in the stream.
func (s *Stream) DrawCount() int64 { return s.draws }

// raw is the single counted entropy source every other method is built
// from, so draws always matches exactly what Restore would need to replay.
func (s *Stream) raw() int64 {
	s.draws++
	return s.r.Int63()
}

// Float64 draws a uniform value in [0, 1).
func (s *Stream) Float64() float64 {
again:
	f := float64(s.raw()) / (1 << 63)
	if f == 1 {
		goto again
	}
	return f
}

// Bernoulli draws true with probability p, false otherwise. p is clamped
// to [0, 1].
func (s *Stream) Bernoulli(p float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	return s.Float64() < p
}

// UniformInterval draws a value uniformly from [low, high], inclusive of
// both ends in the sense that either bound is a reachable limit point.
func (s *Stream) UniformInterval(low, high float64) float64 {
	if high <= low {
		return low
	}
	return low + s.Float64()*(high-low)
}

// IntInclusive draws an integer uniformly from [low, high], via modulo
// reduction of a raw draw rather than math/rand's rejection-sampled Intn —
// the bias is negligible at the population sizes this simulation deals in,
// and routing through raw keeps the stream's position exactly accountable.
func (s *Stream) IntInclusive(low, high int) int {
	if high <= low {
		return low
	}
	span := int64(high - low + 1)
	return low + int(s.raw()%span)
}

// WeibullHazardProbability converts a Weibull hazard rate with shape alpha
// and scale beta, evaluated at age, into a per-step failure probability
// given a step length expressed in years. This is the hazard-rate form
// used for heating-system failure: instantaneous intensity h(age) times
// step length, not the Weibull CDF itself.
func WeibullHazardProbability(alpha, beta, ageYears, stepYears float64) float64 {
	if ageYears < 0 {
		ageYears = 0
	}
	hazard := (alpha / beta) * math.Pow(ageYears/beta, alpha-1)
	p := hazard * stepYears
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// WeibullInverseCDF evaluates the Weibull(alpha, beta) inverse CDF at
// quantile: x = beta * (-ln(1-quantile))^(1/alpha). quantile is clamped to
// [0, 1). No sampling library in this codebase's dependency stack offers
// Weibull draws, so this is hand-derived the way every other stochastic
// helper here is; it is deliberately pure (no Stream) so a household's
// derived quantities (discount rate, renovation budget) can be read off a
// fixed quantile, such as a wealth percentile, without consuming a draw of
// their own.
func WeibullInverseCDF(quantile, alpha, beta float64) float64 {
	if quantile < 0 {
		quantile = 0
	}
	if quantile >= 1 {
		quantile = 1 - 1e-12
	}
	return beta * math.Pow(-math.Log(1-quantile), 1/alpha)
}

// WeightedChoice draws an index into weights with probability proportional
// to each weight, via cumulative-threshold comparison against a single
// draw. weights must sum
// to a positive total; the last index is returned as a fallback if
// floating-point drift leaves the cumulative sum short of the draw.
func (s *Stream) WeightedChoice(weights []float64) int {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	if total <= 0 || len(weights) == 0 {
		return 0
	}
	r := s.Float64() * total
	cumulative := 0.0
	for i, w := range weights {
		cumulative += w
		if r < cumulative {
			return i
		}
	}
	return len(weights) - 1
}

// Sub derives a new independently-seeded Stream from this one. Useful for
// giving a sub-component (e.g. a test fixture) its own reproducible stream
// without disturbing the parent's draw sequence.
func (s *Stream) Sub() *Stream {
	return New(s.raw())
}
