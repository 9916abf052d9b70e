package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLRUReplacerVictimOrder(t *testing.T) {
	r := NewLRUReplacer()

	r.Unpin(1)
	r.Unpin(2)
	r.Unpin(3)
	assert.Equal(t, 3, r.Size())

	id, ok := r.Victim()
	assert.True(t, ok)
	assert.Equal(t, 1, id)

	id, ok = r.Victim()
	assert.True(t, ok)
	assert.Equal(t, 2, id)
}

func TestLRUReplacerPinRemovesEligibility(t *testing.T) {
	r := NewLRUReplacer()
	r.Unpin(1)
	r.Unpin(2)

	r.Pin(1)
	assert.Equal(t, 1, r.Size())

	id, ok := r.Victim()
	assert.True(t, ok)
	assert.Equal(t, 2, id)
}

func TestLRUReplacerReUnpinMovesToBack(t *testing.T) {
	r := NewLRUReplacer()
	r.Unpin(1)
	r.Unpin(2)

	r.Pin(1)
	r.Unpin(1)

	id, ok := r.Victim()
	assert.True(t, ok)
	assert.Equal(t, 2, id)

	id, ok = r.Victim()
	assert.True(t, ok)
	assert.Equal(t, 1, id)
}

func TestLRUReplacerVictimOnEmpty(t *testing.T) {
	r := NewLRUReplacer()
	_, ok := r.Victim()
	assert.False(t, ok)
}

func TestLRUReplacerUnpinIdempotent(t *testing.T) {
	r := NewLRUReplacer()
	r.Unpin(1)
	r.Unpin(1)
	assert.Equal(t, 1, r.Size())
}
