// Package sampler picks one candidate from a weighted list.
package sampler

import (
	"errors"
	"fmt"
	"math/rand/v2"
)

var (
	// ErrEmptyCandidateSet is returned when there is nothing to choose from.
	// Callers treat an empty child list as a leaf instead of sampling it.
	ErrEmptyCandidateSet = errors.New("empty candidate set")

	// ErrInvalidWeight is returned for negative weights or an all-zero list.
	ErrInvalidWeight = errors.New("invalid candidate weight")
)

// Candidate is one weighted choice.
type Candidate struct {
	ID     string
	Weight int
}

// Sampler draws candidates with probability proportional to their weight.
// A Sampler is not safe for concurrent use; give each traversal its own.
type Sampler struct {
	rng *rand.Rand
}

// New returns a sampler drawing from rng. A nil rng seeds a fresh PCG source.
func New(rng *rand.Rand) *Sampler {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Sampler{rng: rng}
}

// Pick returns the ID of one candidate, candidate i being chosen with
// probability Weight_i / sum(Weight). Sums are accumulated in int64 so
// site-wide route counts cannot overflow.
func (s *Sampler) Pick(candidates []Candidate) (string, error) {
	switch len(candidates) {
	case 0:
		return "", ErrEmptyCandidateSet
	case 1:
		if candidates[0].Weight < 0 {
			return "", fmt.Errorf("%w: %s has weight %d", ErrInvalidWeight, candidates[0].ID, candidates[0].Weight)
		}
		return candidates[0].ID, nil
	}

	var total int64
	for _, c := range candidates {
		if c.Weight < 0 {
			return "", fmt.Errorf("%w: %s has weight %d", ErrInvalidWeight, c.ID, c.Weight)
		}
		total += int64(c.Weight)
	}
	if total == 0 {
		return "", fmt.Errorf("%w: all %d candidates weigh zero", ErrInvalidWeight, len(candidates))
	}

	r := s.rng.Int64N(total)
	var cum int64
	for _, c := range candidates {
		cum += int64(c.Weight)
		if r < cum {
			return c.ID, nil
		}
	}
	// unreachable: r < total == final cum
	return candidates[len(candidates)-1].ID, nil
}

// Uniform returns one element of items chosen uniformly at random.
func (s *Sampler) Uniform(items []string) (string, error) {
	if len(items) == 0 {
		return "", ErrEmptyCandidateSet
	}
	return items[s.rng.IntN(len(items))], nil
}
