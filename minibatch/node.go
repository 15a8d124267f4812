package minibatch

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/types/tensors"

	"github.com/janpfeifer/criteria/criterion"
)

// OutputNode is a criterion.ScalarNode backed by a GoMLX tensor: the node's
// current output as produced by an executed graph, plus the Layout of the
// minibatch it was computed over, when one applies.
//
// The output tensor is expected to hold an already-reduced criterion, so only
// its first element (position (0,0) in row-major order) is ever read. The
// tensor must come from a completed execution; OutputNode does not wait.
type OutputNode[T criterion.Float] struct {
	name   string
	value  *tensors.Tensor
	layout *Layout
}

var _ criterion.ScalarNode[float32] = (*OutputNode[float32])(nil)

// NewOutputNode wraps an output tensor as a criterion node. layout may be nil
// for nodes without per-sample structure (the accumulator then falls back to
// the caller-supplied legacy sample count).
func NewOutputNode[T criterion.Float](name string, value *tensors.Tensor, layout *Layout) *OutputNode[T] {
	return &OutputNode[T]{name: name, value: value, layout: layout}
}

// SetValue replaces the node's output tensor, typically once per minibatch
// with the latest execution result.
func (n *OutputNode[T]) SetValue(value *tensors.Tensor) { n.value = value }

// Name implements criterion.Node.
func (n *OutputNode[T]) Name() string { return n.name }

// ScalarValue implements criterion.ScalarNode, reading position (0,0) of the
// node's output. A missing or empty output is a programming error.
func (n *OutputNode[T]) ScalarValue() T {
	if n.value == nil || n.value.Shape().Size() == 0 {
		exceptions.Panicf("criterion node %q has no output value to read", n.name)
	}
	var scalar T
	tensors.ConstFlatData(n.value, func(flat []T) {
		scalar = flat[0]
	})
	return scalar
}

// HasBatchLayout implements criterion.ScalarNode.
func (n *OutputNode[T]) HasBatchLayout() bool { return n.layout != nil }

// BatchNumSamples implements criterion.ScalarNode. It panics if the node has
// no layout; callers must check HasBatchLayout first.
func (n *OutputNode[T]) BatchNumSamples() int {
	if n.layout == nil {
		exceptions.Panicf("criterion node %q has no minibatch layout", n.name)
	}
	return n.layout.NumSamples()
}
