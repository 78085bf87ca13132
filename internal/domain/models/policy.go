package models

import (
	"fmt"
	"math"
	"sort"
)

// AllocationPolicy maps a regime label to the fraction of capital invested.
type AllocationPolicy map[int]float64

// Weight returns the allocation for a regime.
func (p AllocationPolicy) Weight(regime int) (float64, error) {
	w, ok := p[regime]
	if !ok {
		return 0, fmt.Errorf("%w: no allocation for regime %d", ErrConfiguration, regime)
	}
	return w, nil
}

// Validate checks that every label in [0, nStates) has a finite, non-negative weight.
func (p AllocationPolicy) Validate(nStates int) error {
	for label := 0; label < nStates; label++ {
		w, ok := p[label]
		if !ok {
			return fmt.Errorf("%w: allocation policy missing regime %d", ErrConfiguration, label)
		}
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return fmt.Errorf("%w: allocation for regime %d is %v", ErrConfiguration, label, w)
		}
	}
	return nil
}

// Covers checks the policy against the labels actually present in a sequence.
func (p AllocationPolicy) Covers(seq RegimeSequence) error {
	seen := make(map[int]struct{})
	for _, r := range seq {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		if _, ok := p[r]; !ok {
			return fmt.Errorf("%w: allocation policy missing regime %d", ErrConfiguration, r)
		}
	}
	return nil
}

// Labels returns the configured regime labels in ascending order.
func (p AllocationPolicy) Labels() []int {
	out := make([]int, 0, len(p))
	for k := range p {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}
