package buffer

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWritePageGuardDropMarksDirty(t *testing.T) {
	pool := newTestPool(t, 2)

	id, guard, ok := pool.NewPageWrite()
	assert.True(t, ok)
	copy(guard.Data(), []byte("dirtied"))
	guard.Drop()

	frameID, ok := pool.pageTable[id]
	assert.True(t, ok)
	assert.True(t, pool.frames[frameID].IsDirty())
}

func TestReadPageGuardDropDoesNotMarkDirty(t *testing.T) {
	pool := newTestPool(t, 2)

	id, wg, ok := pool.NewPageWrite()
	assert.True(t, ok)
	wg.Drop()
	assert.True(t, pool.FlushPage(id))

	rg, ok := pool.FetchPageRead(id)
	assert.True(t, ok)
	rg.Drop()

	frameID, ok := pool.pageTable[id]
	assert.True(t, ok)
	assert.False(t, pool.frames[frameID].IsDirty())
}

func TestGuardPageIDMatchesAllocatedID(t *testing.T) {
	pool := newTestPool(t, 2)

	id, guard, ok := pool.NewPageWrite()
	assert.True(t, ok)
	defer guard.Drop()

	assert.Equal(t, id, guard.PageID())
}

func TestDroppingGuardTwiceIsSafe(t *testing.T) {
	pool := newTestPool(t, 2)

	_, guard, ok := pool.NewPageWrite()
	assert.True(t, ok)

	guard.Drop()
	assert.NotPanics(t, func() { guard.Drop() })
}

func TestDropUnpinsAllowingReuse(t *testing.T) {
	pool := newTestPool(t, 1)

	id, guard, ok := pool.NewPageWrite()
	assert.True(t, ok)
	copy(guard.Data(), []byte("first"))
	guard.Drop()

	// with a single frame, the pool can only allocate a second page once
	// the first has been unpinned via Drop above.
	secondID, second, ok := pool.NewPageWrite()
	assert.True(t, ok)
	copy(second.Data(), []byte("second"))
	second.Drop()

	assert.NotEqual(t, id, secondID)

	rg, ok := pool.FetchPageRead(secondID)
	assert.True(t, ok)
	defer rg.Drop()
	assert.Equal(t, "second", string(bytes.Trim(rg.Data(), "\x00")))
}
