package minibatch

import (
	"testing"

	"github.com/gomlx/gomlx/types/tensors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputNode(t *testing.T) {
	node := NewOutputNode[float32]("loss", tensors.FromScalar(float32(2.5)), NewLayout(5, 3))
	assert.Equal(t, "loss", node.Name())
	assert.Equal(t, float32(2.5), node.ScalarValue())
	assert.True(t, node.HasBatchLayout())
	assert.Equal(t, 8, node.BatchNumSamples())

	// Only position (0,0) of the output is read, even for larger outputs.
	node.SetValue(tensors.FromValue([]float32{7, 8, 9}))
	assert.Equal(t, float32(7), node.ScalarValue())
}

func TestOutputNodeWithoutLayout(t *testing.T) {
	node := NewOutputNode[float64]("errs", tensors.FromScalar(1.0), nil)
	assert.False(t, node.HasBatchLayout())
	require.Panics(t, func() { node.BatchNumSamples() })
}

func TestOutputNodeWithoutValue(t *testing.T) {
	node := NewOutputNode[float64]("loss", nil, nil)
	require.Panics(t, func() { node.ScalarValue() })
}
