package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChoose(t *testing.T) {
	assert.Equal(t, "a", Choose(true, "a", "b"))
	assert.Equal(t, "b", Choose(false, "a", "b"))
}

func TestFilter(t *testing.T) {
	even := Filter([]int{1, 2, 3, 4, 5, 6}, func(n int) bool { return n%2 == 0 })
	assert.Equal(t, []int{2, 4, 6}, even)

	none := Filter([]int{1, 3}, func(n int) bool { return n > 10 })
	assert.Empty(t, none)
}

func TestGroupBy(t *testing.T) {
	groups := GroupBy([]int{1, 1, 2, 2, 2, 1}, func(a, b int) bool { return a == b })
	assert.Equal(t, [][]int{{1, 1}, {2, 2, 2}, {1}}, groups)

	assert.Nil(t, GroupBy(nil, func(a, b int) bool { return a == b }))
}
