package criterion

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/types/shapes"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Accumulator folds per-minibatch criterion scalars into N running totals,
// one slot per tracked criterion, together with the number of samples each
// total was computed over. Sample counts depend on sequence lengths, so
// different criteria may accumulate different counts.
//
// The running values live in one packed [1 x N] tensor -- one buffer for all
// criteria, allocated once for the accumulator's lifetime -- while the sample
// counters are plain host integers. The buffer never migrates devices.
//
// An Accumulator has a single logical owner: there is no internal locking,
// and unsynchronized concurrent calls on the same instance are a data race.
// Cross-worker merging is not done here; workers read their partials out with
// GetCriterion and merge them via EpochValue.Accumulate.
//
// Note the accumulator trusts each node's scalar as already reduced over the
// minibatch: masking and reduction of variable-length sequences is the node's
// job, not done here.
type Accumulator[T Float] struct {
	backend backends.Backend
	values  *tensors.Tensor // [1 x N]
	counts  []int           // [N]
}

// New creates an Accumulator for numCriteria criteria, with its value buffer
// placed through the given backend. The buffer and all counters start at zero.
// Allocation failures from the tensor layer are returned as errors.
func New[T Float](backend backends.Backend, numCriteria int) (*Accumulator[T], error) {
	if backend == nil {
		return nil, errors.Errorf("criterion.New requires a backend to place the values buffer on")
	}
	if numCriteria < 0 {
		return nil, errors.Errorf("criterion.New with numCriteria=%d, must be >= 0", numCriteria)
	}
	acc := &Accumulator[T]{backend: backend, counts: make([]int, numCriteria)}
	// Tensor shapes need at least one element: a zero-criteria accumulator
	// keeps a 1-element buffer no slot operation can reach.
	cols := max(numCriteria, 1)
	err := exceptions.TryCatch[error](func() {
		acc.values = tensors.FromShape(shapes.Make(dtypes.FromGenericsType[T](), 1, cols))
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to allocate criterion buffer for %d criteria", numCriteria)
	}
	klog.V(1).Infof("criterion.Accumulator created with %d slots on %s", numCriteria, backend.Name())
	return acc, nil
}

// NumCriteria returns the number of slots N fixed at construction.
func (a *Accumulator[T]) NumCriteria() int { return len(a.counts) }

// Backend returns the backend the values buffer is placed through.
func (a *Accumulator[T]) Backend() backends.Backend { return a.backend }

// Buffer exposes the packed [1 x N] values tensor, for consumers that operate
// on the aggregates in place on the device -- e.g., a distributed all-reduce
// layer. Callers must not resize or re-shape it.
func (a *Accumulator[T]) Buffer() *tensors.Tensor { return a.values }

// Add folds nodes[i]'s current criterion scalar into slot i, and grows slot
// i's sample counter by the minibatch's sample count: the node's layout count
// when it has one, otherwise legacyNumSamples. It returns the accumulator, so
// calls for multiple criteria chain in one expression.
func (a *Accumulator[T]) Add(nodes []Node, i int, legacyNumSamples int) *Accumulator[T] {
	return a.accumulate(false, nodes, i, legacyNumSamples)
}

// Assign is Add with reset semantics: it discards slot i's running total and
// counter and starts fresh with exactly this call's value and sample count.
func (a *Accumulator[T]) Assign(nodes []Node, i int, legacyNumSamples int) *Accumulator[T] {
	return a.accumulate(true, nodes, i, legacyNumSamples)
}

// accumulate is the shared implementation of Add (reset=false) and Assign
// (reset=true). An out-of-range slot or a node that is not a ScalarNode[T] is
// a programming error and panics immediately rather than silently producing
// wrong numbers.
func (a *Accumulator[T]) accumulate(reset bool, nodes []Node, i int, legacyNumSamples int) *Accumulator[T] {
	if i < 0 || i >= len(a.counts) || i >= len(nodes) {
		exceptions.Panicf("criterion slot %d out of range: accumulator has %d slots, %d nodes given",
			i, len(a.counts), len(nodes))
	}
	node, ok := nodes[i].(ScalarNode[T])
	if !ok {
		exceptions.Panicf("criterion node %q (%T) does not expose a %s scalar",
			nodes[i].Name(), nodes[i], a.values.Shape().DType)
	}
	value := node.ScalarValue()
	numSamples := resolveNumSamples(node, legacyNumSamples)
	tensors.MutableFlatData(a.values, func(flat []T) {
		if reset {
			flat[i] = value
		} else {
			flat[i] += value
		}
	})
	if reset {
		a.counts[i] = numSamples
	} else {
		a.counts[i] += numSamples
	}
	return a
}

// GetCriterion reads out slot i as an EpochValue. It does not mutate state
// and can be interleaved freely with further Add/Assign calls.
func (a *Accumulator[T]) GetCriterion(i int) EpochValue {
	if i < 0 || i >= len(a.counts) {
		exceptions.Panicf("criterion slot %d out of range: accumulator has %d slots", i, len(a.counts))
	}
	var value T
	tensors.ConstFlatData(a.values, func(flat []T) {
		value = flat[i]
	})
	return EpochValue{Aggregate: float64(value), SampleCount: a.counts[i]}
}

// resolveNumSamples prefers the node's structural layout count -- it accounts
// for padding of variable-length sequences -- and falls back to the
// caller-supplied legacy count for nodes without layout metadata.
func resolveNumSamples[T Float](node ScalarNode[T], legacyNumSamples int) int {
	if node.HasBatchLayout() {
		return node.BatchNumSamples()
	}
	return legacyNumSamples
}
