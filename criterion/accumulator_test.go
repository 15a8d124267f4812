package criterion_test

import (
	"sync"
	"testing"

	"github.com/gomlx/gomlx/backends"
	_ "github.com/gomlx/gomlx/backends/simplego"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janpfeifer/criteria/criterion"
	"github.com/janpfeifer/criteria/minibatch"
)

var testBackend = sync.OnceValue(func() backends.Backend { return backends.New() })

// newNode builds a criterion node holding the given already-reduced scalar.
// lengths, if given, become the node's minibatch layout.
func newNode(name string, value float64, lengths ...int) *minibatch.OutputNode[float64] {
	var layout *minibatch.Layout
	if len(lengths) > 0 {
		layout = minibatch.NewLayout(lengths...)
	}
	return minibatch.NewOutputNode[float64](name, tensors.FromScalar(value), layout)
}

// namedOnly implements criterion.Node but not criterion.ScalarNode.
type namedOnly struct{}

func (namedOnly) Name() string { return "namedOnly" }

// TestAccumulatorScenario follows a two-criteria run: minibatch 1 contributes
// to both slots, minibatch 2 only to slot 0.
func TestAccumulatorScenario(t *testing.T) {
	acc, err := criterion.New[float64](testBackend(), 2)
	require.NoError(t, err)
	require.Equal(t, 2, acc.NumCriteria())

	nodes := []criterion.Node{
		newNode("loss", 3.0, 10),
		newNode("errs", 1.0, 10),
	}
	acc.Add(nodes, 0, 0).Add(nodes, 1, 0)

	nodes[0] = newNode("loss", 5.0, 20)
	acc.Add(nodes, 0, 0)

	loss := acc.GetCriterion(0)
	assert.Equal(t, criterion.EpochValue{Aggregate: 8.0, SampleCount: 30}, loss)
	assert.InDelta(t, 0.26667, loss.Average(), 1e-4)

	errs := acc.GetCriterion(1)
	assert.Equal(t, criterion.EpochValue{Aggregate: 1.0, SampleCount: 10}, errs)
	assert.InDelta(t, 0.1, errs.Average(), 1e-9)
}

// TestAddOrderIndependence: folding the same contributions in any order ends
// in the same slot state.
func TestAddOrderIndependence(t *testing.T) {
	contributions := []struct {
		value   float64
		samples int
	}{{1.5, 3}, {2.5, 7}, {-0.5, 1}}

	for _, order := range [][]int{{0, 1, 2}, {2, 0, 1}, {1, 2, 0}} {
		acc, err := criterion.New[float64](testBackend(), 1)
		require.NoError(t, err)
		for _, idx := range order {
			c := contributions[idx]
			acc.Add([]criterion.Node{newNode("loss", c.value, c.samples)}, 0, 0)
		}
		assert.Equal(t, criterion.EpochValue{Aggregate: 3.5, SampleCount: 11},
			acc.GetCriterion(0), "order %v", order)
	}
}

func TestAssignDiscardsPriorState(t *testing.T) {
	acc, err := criterion.New[float64](testBackend(), 1)
	require.NoError(t, err)

	acc.Add([]criterion.Node{newNode("loss", 3.0, 10)}, 0, 0)
	acc.Assign([]criterion.Node{newNode("loss", 5.0, 20)}, 0, 0)
	assert.Equal(t, criterion.EpochValue{Aggregate: 5.0, SampleCount: 20}, acc.GetCriterion(0))

	// And Add keeps working on top of the assigned state.
	acc.Add([]criterion.Node{newNode("loss", 1.0, 5)}, 0, 0)
	assert.Equal(t, criterion.EpochValue{Aggregate: 6.0, SampleCount: 25}, acc.GetCriterion(0))
}

func TestSampleCountResolution(t *testing.T) {
	acc, err := criterion.New[float64](testBackend(), 2)
	require.NoError(t, err)

	// With a layout the legacy count is ignored entirely; sequences 4+3+3
	// give 10 actual samples.
	acc.Add([]criterion.Node{newNode("loss", 1.0, 4, 3, 3), nil}, 0, 999)
	assert.Equal(t, 10, acc.GetCriterion(0).SampleCount)

	// Without a layout the legacy count is used exactly.
	acc.Add([]criterion.Node{nil, newNode("errs", 1.0)}, 1, 37)
	assert.Equal(t, 37, acc.GetCriterion(1).SampleCount)
}

func TestFloat32Accumulator(t *testing.T) {
	acc, err := criterion.New[float32](testBackend(), 1)
	require.NoError(t, err)
	node := minibatch.NewOutputNode[float32]("loss", tensors.FromScalar(float32(0.5)), nil)
	acc.Add([]criterion.Node{node}, 0, 2).Add([]criterion.Node{node}, 0, 2)
	assert.Equal(t, criterion.EpochValue{Aggregate: 1.0, SampleCount: 4}, acc.GetCriterion(0))
}

func TestContractViolationsPanic(t *testing.T) {
	acc, err := criterion.New[float64](testBackend(), 1)
	require.NoError(t, err)
	nodes := []criterion.Node{newNode("loss", 1.0, 1)}

	require.Panics(t, func() { acc.Add(nodes, -1, 0) })
	require.Panics(t, func() { acc.Add(nodes, 1, 0) })
	require.Panics(t, func() { acc.GetCriterion(2) })

	// A node of the wrong element type is a programming error, not a wrong number.
	require.Panics(t, func() { acc.Add([]criterion.Node{namedOnly{}}, 0, 1) })
	f32Node := minibatch.NewOutputNode[float32]("loss32", tensors.FromScalar(float32(1)), nil)
	require.Panics(t, func() { acc.Add([]criterion.Node{f32Node}, 0, 1) })
}

func TestNewValidation(t *testing.T) {
	_, err := criterion.New[float64](nil, 2)
	require.Error(t, err)
	_, err = criterion.New[float64](testBackend(), -1)
	require.Error(t, err)

	// Zero criteria is valid, it just has no reachable slots.
	acc, err := criterion.New[float64](testBackend(), 0)
	require.NoError(t, err)
	assert.Equal(t, 0, acc.NumCriteria())
	require.Panics(t, func() { acc.GetCriterion(0) })
}

func TestBufferIsPacked(t *testing.T) {
	acc, err := criterion.New[float64](testBackend(), 3)
	require.NoError(t, err)
	for i := range 3 {
		acc.Assign([]criterion.Node{newNode("a", 1.0, 1), newNode("b", 2.0, 1), newNode("c", 3.0, 1)}, i, 0)
	}
	require.Equal(t, []int{1, 3}, acc.Buffer().Shape().Dimensions)
	assert.Equal(t, []float64{1, 2, 3}, tensors.CopyFlatData[float64](acc.Buffer()))
}
