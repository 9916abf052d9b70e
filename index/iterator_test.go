package index

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIteratorOverEmptyTree(t *testing.T) {
	tree := newTestTree(t, 4)

	it, err := tree.Begin(ctx)
	assert.NoError(t, err)
	assert.True(t, it.IsEnd())
}

func TestIteratorVisitsAllInOrder(t *testing.T) {
	tree := newTestTree(t, 3)

	const n = 60
	for i := n - 1; i >= 0; i-- {
		_, err := tree.Insert(ctx, i, fmt.Sprintf("v%d", i))
		assert.NoError(t, err)
	}

	it, err := tree.Begin(ctx)
	assert.NoError(t, err)
	defer it.Close()

	var got []int
	for !it.IsEnd() {
		got = append(got, it.Key())
		assert.NoError(t, it.Next(ctx))
	}

	expected := make([]int, n)
	for i := range expected {
		expected[i] = i
	}
	assert.Equal(t, expected, got)
}

func TestIteratorBeginAtMidpoint(t *testing.T) {
	tree := newTestTree(t, 3)

	for i := 0; i < 30; i++ {
		_, err := tree.Insert(ctx, i*2, fmt.Sprintf("v%d", i*2))
		assert.NoError(t, err)
	}

	it, err := tree.BeginAt(ctx, 15)
	assert.NoError(t, err)
	defer it.Close()

	assert.False(t, it.IsEnd())
	assert.Equal(t, 16, it.Key())
}
