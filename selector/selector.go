package selector

import (
	"errors"
	"math/rand/v2"
	"time"
)

// ErrEmptyInput is returned when there is nothing to select from.
var ErrEmptyInput = errors.New("no candidates to select from")

// Candidate is a timestamped source document eligible for selection.
type Candidate struct {
	ID          string
	Title       string
	CreatedTime time.Time
}

// Tier is an age bucket relative to the selection time.
type Tier int

const (
	TierRecent Tier = iota
	TierMid
	TierOld
)

func (t Tier) String() string {
	switch t {
	case TierRecent:
		return "recent"
	case TierMid:
		return "mid"
	case TierOld:
		return "old"
	default:
		return "unknown"
	}
}

// Config holds the tier thresholds and the probability mass of each tier.
type Config struct {
	RecentWithin time.Duration
	MidWithin    time.Duration
	RecentWeight float64
	MidWeight    float64
	OldWeight    float64
}

// DefaultConfig returns the standard 1 day / 7 days split weighted 0.6/0.2/0.2.
func DefaultConfig() Config {
	return Config{
		RecentWithin: 24 * time.Hour,
		MidWithin:    7 * 24 * time.Hour,
		RecentWeight: 0.6,
		MidWeight:    0.2,
		OldWeight:    0.2,
	}
}

// Selector draws one candidate, favoring recent documents.
type Selector struct {
	cfg Config
	rng *rand.Rand
}

// Option configures a Selector.
type Option func(*Selector)

// WithRand sets the random source. Tests pass a seeded source.
func WithRand(rng *rand.Rand) Option {
	return func(s *Selector) {
		s.rng = rng
	}
}

// New creates a Selector with the given tier configuration.
func New(cfg Config, opts ...Option) *Selector {
	s := &Selector{
		cfg: cfg,
		rng: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TierOf classifies a creation time relative to now.
// Timestamps in the future count as recent.
func (s *Selector) TierOf(created, now time.Time) Tier {
	age := now.Sub(created)
	switch {
	case age < s.cfg.RecentWithin:
		return TierRecent
	case age < s.cfg.MidWithin:
		return TierMid
	default:
		return TierOld
	}
}

func (s *Selector) mass(t Tier) float64 {
	switch t {
	case TierRecent:
		return s.cfg.RecentWeight
	case TierMid:
		return s.cfg.MidWeight
	default:
		return s.cfg.OldWeight
	}
}

// Weights returns the effective weight of every candidate, index-aligned with
// the input. A tier's mass is split evenly among its members, so empty tiers
// contribute nothing and the draw picks a tier by mass, then a member uniformly.
func (s *Selector) Weights(candidates []Candidate, now time.Time) []float64 {
	tiers := make([]Tier, len(candidates))
	var sizes [3]int
	for i, c := range candidates {
		tiers[i] = s.TierOf(c.CreatedTime, now)
		sizes[tiers[i]]++
	}

	weights := make([]float64, len(candidates))
	for i, t := range tiers {
		weights[i] = s.mass(t) / float64(sizes[t])
	}
	return weights
}

// Select draws exactly one candidate.
func (s *Selector) Select(candidates []Candidate, now time.Time) (Candidate, error) {
	if len(candidates) == 0 {
		return Candidate{}, ErrEmptyInput
	}

	weights := s.Weights(candidates, now)
	var total float64
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total <= 0 {
		return Candidate{}, ErrEmptyInput
	}

	target := s.rng.Float64() * total
	last := -1
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		last = i
		target -= w
		if target < 0 {
			return candidates[i], nil
		}
	}
	// Float rounding can leave a sliver past the final positive weight.
	return candidates[last], nil
}
