package generics

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSliceMap(t *testing.T) {
	got := SliceMap([]int{1, 2, 3}, func(e int) string { return strconv.Itoa(2 * e) })
	assert.Equal(t, []string{"2", "4", "6"}, got)
	assert.Empty(t, SliceMap(nil, func(e int) int { return e }))
}
