package minibatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayout(t *testing.T) {
	// Three sequences of lengths 3, 1 and 2 pack into a 3x3 grid with 3 gaps.
	l := NewLayout(3, 1, 2)
	assert.Equal(t, 3, l.NumSequences())
	assert.Equal(t, 3, l.MaxLength())
	assert.Equal(t, 6, l.NumSamples())
	assert.Equal(t, 9, l.NumFrames())
	assert.Equal(t, 3, l.NumGaps())
	assert.Equal(t, 1, l.SequenceLength(1))

	// No padding when all sequences have the same length.
	assert.Equal(t, 0, NewLayout(4, 4, 4).NumGaps())

	// An empty minibatch is valid and has no samples.
	empty := NewLayout()
	assert.Equal(t, 0, empty.NumSequences())
	assert.Equal(t, 0, empty.NumSamples())
	assert.Equal(t, 0, empty.NumFrames())

	require.Panics(t, func() { NewLayout(2, -1) })
}
