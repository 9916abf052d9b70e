package index

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jobala/shoal/errs"
)

func TestBPlusTreeInsertAndGetValue(t *testing.T) {
	tree := newTestTree(t, 64)

	register := map[int]string{1: "a", 2: "b", 3: "c"}
	for k, v := range register {
		inserted, err := tree.Insert(ctx, k, v)
		assert.NoError(t, err)
		assert.True(t, inserted)
	}

	for k, v := range register {
		vals, err := tree.GetValue(ctx, k)
		assert.NoError(t, err)
		assert.Equal(t, []string{v}, vals)
	}
}

func TestBPlusTreeGetValueOnEmptyTree(t *testing.T) {
	tree := newTestTree(t, 64)
	_, err := tree.GetValue(ctx, 1)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestBPlusTreeInsertDuplicateRejected(t *testing.T) {
	tree := newTestTree(t, 64)

	inserted, err := tree.Insert(ctx, 1, "first")
	assert.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = tree.Insert(ctx, 1, "second")
	assert.NoError(t, err)
	assert.False(t, inserted)

	vals, err := tree.GetValue(ctx, 1)
	assert.NoError(t, err)
	assert.Equal(t, []string{"first"}, vals)
}

func TestBPlusTreeLeafSplit(t *testing.T) {
	// max size 3 forces a split well before 50 keys.
	tree := newTestTree(t, 3)

	for i := 0; i < 50; i++ {
		inserted, err := tree.Insert(ctx, i, fmt.Sprintf("v%d", i))
		assert.NoError(t, err)
		assert.True(t, inserted)
	}

	for i := 0; i < 50; i++ {
		vals, err := tree.GetValue(ctx, i)
		assert.NoError(t, err)
		assert.Equal(t, []string{fmt.Sprintf("v%d", i)}, vals)
	}
}

func TestBPlusTreeCascadingSplit(t *testing.T) {
	tree := newTestTree(t, 2)

	const n = 200
	for i := 0; i < n; i++ {
		inserted, err := tree.Insert(ctx, i, fmt.Sprintf("v%d", i))
		assert.NoError(t, err)
		assert.True(t, inserted)
	}

	for i := 0; i < n; i++ {
		vals, err := tree.GetValue(ctx, i)
		assert.NoError(t, err)
		assert.Equal(t, []string{fmt.Sprintf("v%d", i)}, vals)
	}
}

// TestBPlusTreeInternalSplitReparentsDescentPathChild exercises the exact
// shape that can land a moved child of an internal split back onto the page
// this goroutine is still crabbing through: with maxSize 3, inserting 1..10
// in order overflows the root into Children=[L,R,R2,R3], and the subsequent
// splitOff moves R2 (the page the insert just descended through and still
// holds write-latched) into the new sibling. Reparenting it must go through
// the transaction's already-held guard rather than fetching it again.
func TestBPlusTreeInternalSplitReparentsDescentPathChild(t *testing.T) {
	tree := newTestTree(t, 3)

	const n = 10
	for i := 1; i <= n; i++ {
		inserted, err := tree.Insert(ctx, i, fmt.Sprintf("v%d", i))
		assert.NoError(t, err)
		assert.True(t, inserted)
	}

	for i := 1; i <= n; i++ {
		vals, err := tree.GetValue(ctx, i)
		assert.NoError(t, err)
		assert.Equal(t, []string{fmt.Sprintf("v%d", i)}, vals)
	}
}

// TestBPlusTreeRemoveCascadesMergeAcrossTwoLevels forces a leaf merge whose
// parent also underflows and merges with its own sibling in the same
// Remove call. Keys are removed in ascending order, so the shrinking leaf
// and its ancestors stay leftmost and each merge absorbs a right sibling,
// reparenting that sibling's children, which the Remove call has not
// latched.
func TestBPlusTreeRemoveCascadesMergeAcrossTwoLevels(t *testing.T) {
	tree := newTestTree(t, 3)

	const n = 60
	for i := 0; i < n; i++ {
		inserted, err := tree.Insert(ctx, i, fmt.Sprintf("v%d", i))
		assert.NoError(t, err)
		assert.True(t, inserted)
	}

	for i := 0; i < n-3; i++ {
		assert.NoError(t, tree.Remove(ctx, i))
	}

	for i := n - 3; i < n; i++ {
		vals, err := tree.GetValue(ctx, i)
		assert.NoError(t, err)
		assert.Equal(t, []string{fmt.Sprintf("v%d", i)}, vals)
	}
	for i := 0; i < n-3; i++ {
		_, err := tree.GetValue(ctx, i)
		assert.ErrorIs(t, err, errs.ErrNotFound)
	}
}

func TestBPlusTreeRemoveToEmpty(t *testing.T) {
	tree := newTestTree(t, 4)

	keys := []int{5, 2, 8, 1, 9, 3, 7, 4, 6}
	for _, k := range keys {
		inserted, err := tree.Insert(ctx, k, fmt.Sprintf("v%d", k))
		assert.NoError(t, err)
		assert.True(t, inserted)
	}

	for _, k := range keys {
		assert.NoError(t, tree.Remove(ctx, k))
		_, err := tree.GetValue(ctx, k)
		assert.ErrorIs(t, err, errs.ErrNotFound)
	}

	assert.True(t, tree.IsEmpty())
}

func TestBPlusTreeRemoveMissingKeyIsNoop(t *testing.T) {
	tree := newTestTree(t, 4)

	inserted, err := tree.Insert(ctx, 1, "a")
	assert.NoError(t, err)
	assert.True(t, inserted)

	assert.NoError(t, tree.Remove(ctx, 999))

	vals, err := tree.GetValue(ctx, 1)
	assert.NoError(t, err)
	assert.Equal(t, []string{"a"}, vals)
}

func TestBPlusTreeRemoveCausesRebalance(t *testing.T) {
	tree := newTestTree(t, 3)

	const n = 100
	for i := 0; i < n; i++ {
		inserted, err := tree.Insert(ctx, i, fmt.Sprintf("v%d", i))
		assert.NoError(t, err)
		assert.True(t, inserted)
	}

	for i := 0; i < n-10; i++ {
		assert.NoError(t, tree.Remove(ctx, i))
	}

	for i := n - 10; i < n; i++ {
		vals, err := tree.GetValue(ctx, i)
		assert.NoError(t, err)
		assert.Equal(t, []string{fmt.Sprintf("v%d", i)}, vals)
	}

	for i := 0; i < n-10; i++ {
		_, err := tree.GetValue(ctx, i)
		assert.ErrorIs(t, err, errs.ErrNotFound)
	}
}

// TestBPlusTreeConcurrentReadersDuringWrites runs readers and a writer
// against the same tree at once: one goroutine inserts keys in order while
// several others repeatedly call GetValue across the whole key range. A
// reader must never see a torn page or deadlock against the writer's
// crabbing, only a key that has not been inserted yet.
func TestBPlusTreeConcurrentReadersDuringWrites(t *testing.T) {
	tree := newTestTree(t, 4)

	const n = 300
	const readers = 8

	var wg sync.WaitGroup
	stop := make(chan struct{})

	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				key := rand.Intn(n)
				vals, err := tree.GetValue(ctx, key)
				if err == nil {
					assert.Equal(t, []string{fmt.Sprintf("v%d", key)}, vals)
				} else {
					assert.ErrorIs(t, err, errs.ErrNotFound)
				}
			}
		}()
	}

	for i := 0; i < n; i++ {
		inserted, err := tree.Insert(ctx, i, fmt.Sprintf("v%d", i))
		assert.NoError(t, err)
		assert.True(t, inserted)
	}

	close(stop)
	wg.Wait()

	for i := 0; i < n; i++ {
		vals, err := tree.GetValue(ctx, i)
		assert.NoError(t, err)
		assert.Equal(t, []string{fmt.Sprintf("v%d", i)}, vals)
	}
}

func TestBPlusTreePersistsAcrossReopen(t *testing.T) {
	pool := newTestPool(t, 64)
	cfg := testConfig(8)

	tree, err := NewBPlusTree[int, string]("accounts", pool, cfg, nil)
	assert.NoError(t, err)

	for i := 0; i < 20; i++ {
		_, err := tree.Insert(ctx, i, fmt.Sprintf("v%d", i))
		assert.NoError(t, err)
	}
	pool.FlushAllPages()

	reopened, err := NewBPlusTree[int, string]("accounts", pool, cfg, nil)
	assert.NoError(t, err)

	for i := 0; i < 20; i++ {
		vals, err := reopened.GetValue(ctx, i)
		assert.NoError(t, err)
		assert.Equal(t, []string{fmt.Sprintf("v%d", i)}, vals)
	}
}
