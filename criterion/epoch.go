// Package criterion accumulates per-minibatch scalar criteria (losses, eval
// metrics) into epoch-level totals, keeping the sample counts the values were
// computed over, so averages can be taken -- and partial results merged --
// without losing the correct weighting.
package criterion

import (
	"fmt"
	"math"
)

// EpochValue holds an aggregate criterion value together with the number of
// samples it was accumulated over. The average criterion is their ratio,
// computed only at read time: carrying the (sum, count) pair instead of a
// running average is what makes merging partials from different workers or
// differently-sized minibatches exact.
//
// EpochValue has value semantics: copy it freely, there is no shared state.
type EpochValue struct {
	// Aggregate is the summed criterion across all folded minibatches.
	Aggregate float64

	// SampleCount is the summed number of samples Aggregate was computed over.
	SampleCount int
}

// Average returns Aggregate/SampleCount, or 0 if no samples were accumulated.
// Zero-sample phases are a normal condition (e.g., an empty validation split),
// not an error, so there is deliberately no division-by-zero failure mode.
func (e EpochValue) Average() float64 {
	if e.SampleCount <= 0 {
		return 0.0
	}
	return e.Aggregate / float64(e.SampleCount)
}

// IsNaN reports whether the aggregate criterion diverged to NaN. The sample
// count plays no role. The training loop is expected to check this after each
// report interval and decide what to do (abort, restore a checkpoint, ...).
func (e EpochValue) IsNaN() bool {
	return math.IsNaN(e.Aggregate)
}

// Sub subtracts other component-wise and returns the result, typically the
// delta since the last checkpoint. The delta's average is only meaningful if
// both values measured the same quantity over sequential periods; that is the
// caller's responsibility.
func (e EpochValue) Sub(other EpochValue) EpochValue {
	return EpochValue{
		Aggregate:   e.Aggregate - other.Aggregate,
		SampleCount: e.SampleCount - other.SampleCount,
	}
}

// Accumulate adds other into e component-wise. This is the merge primitive for
// combining partial epoch totals over disjoint sample sets (e.g., from
// parallel evaluation workers): the combined Average() is the correctly
// weighted one, which averaging two already-computed averages is not.
func (e *EpochValue) Accumulate(other EpochValue) {
	e.Aggregate += other.Aggregate
	e.SampleCount += other.SampleCount
}

// Infinity returns the (+Inf, 0) sentinel, a "worse than anything" baseline
// for best-so-far tracking. Note Infinity().Average() is 0 because the sample
// count is 0; compare with IsInfinity or against Aggregate, not Average.
func Infinity() EpochValue {
	return EpochValue{Aggregate: math.Inf(1)}
}

// IsInfinity reports whether the aggregate is exactly +Inf. The sample count
// is not checked.
func (e EpochValue) IsInfinity() bool {
	return math.IsInf(e.Aggregate, 1)
}

// String implements fmt.Stringer, printing the average and the sample count.
func (e EpochValue) String() string {
	return fmt.Sprintf("%.5g (%d samples)", e.Average(), e.SampleCount)
}
