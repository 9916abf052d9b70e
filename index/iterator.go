package index

import (
	"cmp"
	"context"

	"github.com/jobala/shoal/buffer"
	"github.com/jobala/shoal/storage/disk"
)

// Iterator is a forward cursor over a tree's leaves, holding one pinned,
// read-latched leaf at a time.
type Iterator[K cmp.Ordered, V any] struct {
	tree  *BPlusTree[K, V]
	leaf  *leafPage[K, V]
	guard *buffer.ReadPageGuard
	slot  int
}

// Begin returns an iterator positioned at the tree's smallest key.
func (t *BPlusTree[K, V]) Begin(ctx context.Context) (*Iterator[K, V], error) {
	t.rootMu.Lock()
	rootID := t.rootID
	t.rootMu.Unlock()

	if rootID == disk.InvalidPageID {
		return &Iterator[K, V]{tree: t}, nil
	}

	leaf, guard, err := t.descendToLeftmostLeaf(ctx, rootID)
	if err != nil {
		return nil, err
	}
	return &Iterator[K, V]{tree: t, leaf: leaf, guard: guard, slot: 0}, nil
}

// BeginAt returns an iterator positioned at the smallest key >= key.
func (t *BPlusTree[K, V]) BeginAt(ctx context.Context, key K) (*Iterator[K, V], error) {
	t.rootMu.Lock()
	rootID := t.rootID
	t.rootMu.Unlock()

	if rootID == disk.InvalidPageID {
		return &Iterator[K, V]{tree: t}, nil
	}

	leaf, guard, err := t.descendToLeafRead(ctx, rootID, key)
	if err != nil {
		return nil, err
	}

	idx, _ := leaf.lookup(key)
	it := &Iterator[K, V]{tree: t, leaf: leaf, guard: guard, slot: idx}
	it.skipToNonEmpty(ctx)
	return it, nil
}

func (t *BPlusTree[K, V]) descendToLeftmostLeaf(ctx context.Context, pageID int64) (*leafPage[K, V], *buffer.ReadPageGuard, error) {
	var prev *buffer.ReadPageGuard
	cur := pageID

	for {
		if err := ctx.Err(); err != nil {
			if prev != nil {
				prev.Drop()
			}
			return nil, nil, err
		}

		pt, err := peekType(t.pool, cur)
		if err != nil {
			if prev != nil {
				prev.Drop()
			}
			return nil, nil, err
		}

		if pt == pageTypeLeaf {
			leaf, guard, err := fetchLeafRead[K, V](t.pool, cur)
			if prev != nil {
				prev.Drop()
			}
			return leaf, guard, err
		}

		internal, guard, err := fetchInternalRead[K](t.pool, cur)
		if err != nil {
			if prev != nil {
				prev.Drop()
			}
			return nil, nil, err
		}
		if prev != nil {
			prev.Drop()
		}
		prev = guard
		cur = internal.childAt(0)
	}
}

// IsEnd reports whether the iterator has no current entry.
func (it *Iterator[K, V]) IsEnd() bool {
	return it.leaf == nil || (it.slot >= it.leaf.Size && it.leaf.NextPageID == disk.InvalidPageID)
}

// Key returns the current entry's key. Calling it at end is a programming
// error, mirrored by a panic rather than a silent zero value.
func (it *Iterator[K, V]) Key() K {
	return it.leaf.keyAt(it.slot)
}

// Value returns the current entry's value.
func (it *Iterator[K, V]) Value() V {
	return it.leaf.valueAt(it.slot)
}

// Next advances the cursor by one entry, crossing into the next leaf when
// the current one is exhausted.
func (it *Iterator[K, V]) Next(ctx context.Context) error {
	it.slot++
	return it.skipToNonEmpty(ctx)
}

func (it *Iterator[K, V]) skipToNonEmpty(ctx context.Context) error {
	for it.leaf != nil && it.slot >= it.leaf.Size && it.leaf.NextPageID != disk.InvalidPageID {
		if err := ctx.Err(); err != nil {
			return err
		}

		nextID := it.leaf.NextPageID
		it.guard.Drop()

		leaf, guard, err := fetchLeafRead[K, V](it.tree.pool, nextID)
		if err != nil {
			it.leaf = nil
			it.guard = nil
			return err
		}
		it.leaf = leaf
		it.guard = guard
		it.slot = 0
	}
	return nil
}

// Close releases the iterator's held leaf, if any. Safe to call multiple
// times and on an iterator already at end.
func (it *Iterator[K, V]) Close() {
	if it.guard != nil {
		it.guard.Drop()
		it.guard = nil
	}
	it.leaf = nil
}
