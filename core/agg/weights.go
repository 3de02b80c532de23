package agg

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/tallyhq/tally/schema"
)

var (
	// ErrUnknownDimension is returned for weight keys outside schema.ValidDimensions.
	ErrUnknownDimension = errors.New("unknown weight dimension")

	// ErrInvalidWeight is returned for NaN, infinite or out-of-range weights.
	ErrInvalidWeight = errors.New("invalid weight value")
)

// NormalizeWeights rescales w so that its values sum to about 1, each rounded
// to two decimals. When the sum is not positive, w itself is returned.
func NormalizeWeights(w schema.WeightSet) schema.WeightSet {
	s := sumSorted(w)
	if s <= 0 {
		return w
	}
	out := make(schema.WeightSet, len(w))
	for k, v := range w {
		out[k] = round2(v / s * 100)
	}
	return out
}

// round2 maps a percentage to a fraction on the 2-decimal grid. Ties round
// toward +Inf, as JavaScript's Math.round does.
func round2(pct float64) float64 {
	return math.Floor(pct+0.5) / 100
}

// sumSorted adds the weights in key order so the result does not depend on
// map iteration order.
func sumSorted(w schema.WeightSet) float64 {
	keys := make([]string, 0, len(w))
	for k := range w {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	var s float64
	for _, k := range keys {
		s += w[schema.Dimension(k)]
	}
	return s
}

// ClampWeight clamps value to [0,1], stores it under key in a copy of current
// and returns the normalized copy. current is never modified.
func ClampWeight(value float64, key schema.Dimension, current schema.WeightSet) (schema.WeightSet, error) {
	if _, ok := schema.ValidDimensions[key]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDimension, key)
	}
	if math.IsNaN(value) {
		return nil, fmt.Errorf("%w: %s is NaN", ErrInvalidWeight, key)
	}
	next := current.Clone()
	if next == nil {
		next = make(schema.WeightSet, 1)
	}
	next[key] = math.Min(1, math.Max(0, value))
	return NormalizeWeights(next), nil
}

// ValidateWeights rejects unknown dimensions and values that are not finite
// numbers in [0,1].
func ValidateWeights(w schema.WeightSet) error {
	for k, v := range w {
		if _, ok := schema.ValidDimensions[k]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownDimension, k)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v > 1 {
			return fmt.Errorf("%w: %s=%v", ErrInvalidWeight, k, v)
		}
	}
	return nil
}

// WeightsForm holds the weights being edited for one incentive rule.
// The zero value starts from an empty set.
type WeightsForm struct {
	weights schema.WeightSet
}

// NewWeightsForm starts a form from a copy of initial.
func NewWeightsForm(initial schema.WeightSet) *WeightsForm {
	w := initial.Clone()
	if w == nil {
		w = schema.WeightSet{}
	}
	return &WeightsForm{weights: w}
}

// Set applies one edit, clamping and renormalizing the whole set.
func (f *WeightsForm) Set(key schema.Dimension, value float64) error {
	next, err := ClampWeight(value, key, f.weights)
	if err != nil {
		return err
	}
	f.weights = next
	return nil
}

// Weights returns a copy of the current weights.
func (f *WeightsForm) Weights() schema.WeightSet {
	if f.weights == nil {
		return schema.WeightSet{}
	}
	return f.weights.Clone()
}
