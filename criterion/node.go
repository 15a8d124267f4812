package criterion

// Node is a handle to an entry of the caller's ordered collection of
// computation-graph nodes. The accumulator only ever sees nodes through this
// and the ScalarNode interface below; it never depends on a concrete node
// type from any particular graph engine.
type Node interface {
	// Name identifies the node, used in logs and error messages.
	Name() string
}

// Float are the element types criteria can be accumulated as. Averages and
// epoch aggregates are always reported as float64, matching EpochValue.
type Float interface {
	float32 | float64
}

// ScalarNode is a Node whose current output carries a single already-reduced
// criterion scalar, optionally with structural minibatch layout metadata.
//
// The scalar must observe a completed computation: any waiting for device
// execution happens in the node/device layer, before the accumulator reads.
type ScalarNode[T Float] interface {
	Node

	// ScalarValue returns the value at position (0,0) of the node's output.
	ScalarValue() T

	// HasBatchLayout reports whether the node carries per-sample minibatch
	// layout metadata for its current output.
	HasBatchLayout() bool

	// BatchNumSamples returns the actual (unpadded) number of samples of the
	// current minibatch. Only meaningful when HasBatchLayout is true.
	BatchNumSamples() int
}
