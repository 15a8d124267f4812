// Package minibatch provides the structural view of a padded minibatch of
// variable-length sequences, and a criterion node implementation backed by a
// GoMLX tensor output.
package minibatch

import (
	"fmt"

	"github.com/gomlx/exceptions"
)

// Layout describes how a minibatch of variable-length sequences is packed
// into a rectangular [numSequences x maxLength] grid: every sequence shorter
// than the longest one is padded with gap frames. The criterion accumulator
// uses it to count only the real samples of a minibatch, never the padding.
type Layout struct {
	lengths    []int
	maxLength  int
	numSamples int
}

// NewLayout builds a Layout from the true (unpadded) length of each sequence
// of the minibatch. Negative lengths are a programming error and panic.
func NewLayout(lengths ...int) *Layout {
	l := &Layout{lengths: lengths}
	for seq, length := range lengths {
		if length < 0 {
			exceptions.Panicf("minibatch.NewLayout: sequence %d has negative length %d", seq, length)
		}
		l.numSamples += length
		l.maxLength = max(l.maxLength, length)
	}
	return l
}

// NumSequences returns the number of parallel sequences of the minibatch.
func (l *Layout) NumSequences() int { return len(l.lengths) }

// MaxLength returns the length of the longest sequence, i.e., the number of
// time steps of the padded grid.
func (l *Layout) MaxLength() int { return l.maxLength }

// SequenceLength returns the true length of the given sequence.
func (l *Layout) SequenceLength(seq int) int { return l.lengths[seq] }

// NumSamples returns the actual number of samples of the minibatch: the sum
// of the true sequence lengths, excluding padding.
func (l *Layout) NumSamples() int { return l.numSamples }

// NumFrames returns the total size of the padded grid, padding included.
func (l *Layout) NumFrames() int { return len(l.lengths) * l.maxLength }

// NumGaps returns how many frames of the padded grid are padding.
func (l *Layout) NumGaps() int { return l.NumFrames() - l.numSamples }

// String implements fmt.Stringer.
func (l *Layout) String() string {
	return fmt.Sprintf("Layout[%d x %d, %d samples, %d gaps]",
		l.NumSequences(), l.maxLength, l.numSamples, l.NumGaps())
}
