package index

import (
	"context"

	"github.com/jobala/shoal/buffer"
	"github.com/jobala/shoal/errs"
	"github.com/jobala/shoal/storage/disk"
)

// Remove deletes key if present. A missing key is a no-op, not an error.
// This is a full coalesce/redistribute/adjust-root implementation: the
// degraded leaf-only-delete mode is not used.
func (t *BPlusTree[K, V]) Remove(ctx context.Context, key K) error {
	txn := NewTransaction()
	defer txn.releaseAll()

	t.rootMu.Lock()
	rootLocked := true
	defer func() {
		if rootLocked {
			t.rootMu.Unlock()
		}
	}()

	if t.rootID == disk.InvalidPageID {
		return nil
	}

	pageID := t.rootID
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		pt, err := peekType(t.pool, pageID)
		if err != nil {
			return err
		}

		if pt == pageTypeLeaf {
			leaf, guard, err := fetchLeafWrite[K, V](t.pool, pageID)
			if err != nil {
				return err
			}
			txn.push(pageID, guard)

			if leaf.Size > leaf.minSize() {
				txn.releaseAncestors()
				if rootLocked {
					t.rootMu.Unlock()
					rootLocked = false
				}
			}

			idx, found := leaf.lookup(key)
			if !found {
				return nil
			}
			leaf.removeAt(idx)

			if !leaf.isUnderflow() {
				if err := writeLeafPage(guard, leaf); err != nil {
					return err
				}
				return t.finish(txn)
			}

			if err := t.resolveLeafUnderflow(txn, leaf, guard); err != nil {
				return err
			}
			return t.finish(txn)
		}

		internal, guard, err := fetchInternalWrite[K](t.pool, pageID)
		if err != nil {
			return err
		}
		txn.push(pageID, guard)

		if internal.Size > internal.minSize() {
			txn.releaseAncestors()
			if rootLocked {
				t.rootMu.Unlock()
				rootLocked = false
			}
		}

		pageID = internal.lookup(key)
	}
}

// finish releases every latch this transaction holds and then deletes any
// pages that were structurally emptied. Deletion must happen only after
// the latches are gone, since DeletePage refuses a still-pinned page.
func (t *BPlusTree[K, V]) finish(txn *Transaction) error {
	txn.releaseAll()
	for _, id := range txn.toDelete {
		if !t.pool.DeletePage(id) {
			t.log.WithField("page_id", id).Warn("failed to delete emptied page")
		}
	}
	return nil
}

func (t *BPlusTree[K, V]) resolveLeafUnderflow(txn *Transaction, leaf *leafPage[K, V], guard *buffer.WritePageGuard) error {
	if leaf.isRoot() {
		if leaf.Size == 0 {
			txn.scheduleDelete(leaf.PageID)
			t.rootID = disk.InvalidPageID
			return t.persistRootLocked()
		}
		return writeLeafPage(guard, leaf)
	}

	parentAny, ok := txn.guardFor(leaf.ParentPageID)
	if !ok {
		return errs.Wrap(errs.ErrInvariantViolation, "parent page not held by transaction")
	}
	parentGuard := parentAny.(*buffer.WritePageGuard)

	var parent internalPage[K]
	if err := decodePage(parentGuard.Data(), &parent); err != nil {
		return err
	}
	idx := parent.valueIndex(leaf.PageID)

	if idx > 0 {
		leftID := parent.childAt(idx - 1)
		left, leftGuard, err := fetchLeafWrite[K, V](t.pool, leftID)
		if err != nil {
			return err
		}
		// Tracked in txn, not released locally: a merge one level up can
		// still need to reparent this very page, and that lookup only
		// finds guards the transaction knows about.
		txn.push(leftID, leftGuard)

		if left.Size+leaf.Size > t.leafMaxSize {
			parent.Keys[idx] = leaf.borrowFromLeft(left)
			if err := writeLeafPage(leftGuard, left); err != nil {
				return err
			}
			if err := writeLeafPage(guard, leaf); err != nil {
				return err
			}
			return writeInternalPage(parentGuard, &parent)
		}

		left.mergeFrom(leaf)
		if err := writeLeafPage(leftGuard, left); err != nil {
			return err
		}
		txn.scheduleDelete(leaf.PageID)
		parent.removeAt(idx)
		return t.resolveInternalUnderflowOrWrite(txn, &parent, parentGuard)
	}

	rightID := parent.childAt(idx + 1)
	right, rightGuard, err := fetchLeafWrite[K, V](t.pool, rightID)
	if err != nil {
		return err
	}
	txn.push(rightID, rightGuard)

	if leaf.Size+right.Size > t.leafMaxSize {
		parent.Keys[idx+1] = leaf.borrowFromRight(right)
		if err := writeLeafPage(guard, leaf); err != nil {
			return err
		}
		if err := writeLeafPage(rightGuard, right); err != nil {
			return err
		}
		return writeInternalPage(parentGuard, &parent)
	}

	leaf.mergeFrom(right)
	if err := writeLeafPage(guard, leaf); err != nil {
		return err
	}
	txn.scheduleDelete(right.PageID)
	parent.removeAt(idx + 1)
	return t.resolveInternalUnderflowOrWrite(txn, &parent, parentGuard)
}

func (t *BPlusTree[K, V]) resolveInternalUnderflowOrWrite(txn *Transaction, node *internalPage[K], guard *buffer.WritePageGuard) error {
	if !node.isUnderflow() {
		return writeInternalPage(guard, node)
	}
	return t.resolveInternalUnderflow(txn, node, guard)
}

func (t *BPlusTree[K, V]) resolveInternalUnderflow(txn *Transaction, node *internalPage[K], guard *buffer.WritePageGuard) error {
	if node.isRoot() {
		return t.adjustRoot(txn, node, guard)
	}

	parentAny, ok := txn.guardFor(node.ParentPageID)
	if !ok {
		return errs.Wrap(errs.ErrInvariantViolation, "parent page not held by transaction")
	}
	parentGuard := parentAny.(*buffer.WritePageGuard)

	var parent internalPage[K]
	if err := decodePage(parentGuard.Data(), &parent); err != nil {
		return err
	}
	idx := parent.valueIndex(node.PageID)

	if idx > 0 {
		leftID := parent.childAt(idx - 1)
		left, leftGuard, err := fetchInternalWrite[K](t.pool, leftID)
		if err != nil {
			return err
		}
		// Tracked in txn for the same reason as the leaf-level siblings in
		// resolveLeafUnderflow: a merge further up can need to reparent
		// this page while it is still latched here.
		txn.push(leftID, leftGuard)

		oldSeparator := parent.keyAt(idx)

		if left.Size+node.Size > t.internalMaxSize {
			parent.Keys[idx] = node.borrowFromLeft(left, oldSeparator)
			if err := t.reparent(txn, node.childAt(0), node.PageID); err != nil {
				return err
			}
			if err := writeInternalPage(leftGuard, left); err != nil {
				return err
			}
			if err := writeInternalPage(guard, node); err != nil {
				return err
			}
			return writeInternalPage(parentGuard, &parent)
		}

		left.mergeFrom(node, oldSeparator)
		for _, childID := range node.Children {
			if err := t.reparent(txn, childID, left.PageID); err != nil {
				return err
			}
		}
		if err := writeInternalPage(leftGuard, left); err != nil {
			return err
		}
		txn.scheduleDelete(node.PageID)
		parent.removeAt(idx)
		return t.resolveInternalUnderflowOrWrite(txn, &parent, parentGuard)
	}

	rightID := parent.childAt(idx + 1)
	right, rightGuard, err := fetchInternalWrite[K](t.pool, rightID)
	if err != nil {
		return err
	}
	txn.push(rightID, rightGuard)

	oldSeparator := parent.keyAt(idx + 1)

	if node.Size+right.Size > t.internalMaxSize {
		parent.Keys[idx+1] = node.borrowFromRight(right, oldSeparator)
		if err := t.reparent(txn, node.childAt(node.Size-1), node.PageID); err != nil {
			return err
		}
		if err := writeInternalPage(guard, node); err != nil {
			return err
		}
		if err := writeInternalPage(rightGuard, right); err != nil {
			return err
		}
		return writeInternalPage(parentGuard, &parent)
	}

	node.mergeFrom(right, oldSeparator)
	for _, childID := range right.Children {
		if err := t.reparent(txn, childID, node.PageID); err != nil {
			return err
		}
	}
	if err := writeInternalPage(guard, node); err != nil {
		return err
	}
	txn.scheduleDelete(right.PageID)
	parent.removeAt(idx + 1)
	return t.resolveInternalUnderflowOrWrite(txn, &parent, parentGuard)
}

// adjustRoot promotes node's sole remaining child to root when an
// internal root underflows to a single child; a root with zero children
// cannot occur since merges only ever remove one slot at a time from a
// node that had at least two.
func (t *BPlusTree[K, V]) adjustRoot(txn *Transaction, node *internalPage[K], guard *buffer.WritePageGuard) error {
	if node.Size > 1 {
		return writeInternalPage(guard, node)
	}

	newRootID := node.childAt(0)
	if err := t.reparent(txn, newRootID, disk.InvalidPageID); err != nil {
		return err
	}

	txn.scheduleDelete(node.PageID)
	t.rootID = newRootID
	return t.persistRootLocked()
}
