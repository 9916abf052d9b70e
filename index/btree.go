package index

import (
	"cmp"
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/jobala/shoal/buffer"
	"github.com/jobala/shoal/config"
	"github.com/jobala/shoal/errs"
	"github.com/jobala/shoal/storage/disk"
)

// BPlusTree is a concurrent, disk-backed B+-tree index over a single
// buffer pool. Multiple trees (distinguished by name) may share one pool;
// each tree's root id is persisted in the shared header page.
type BPlusTree[K cmp.Ordered, V any] struct {
	pool *buffer.PoolManager
	name string

	leafMaxSize     int
	internalMaxSize int

	rootMu sync.Mutex
	rootID int64

	log logrus.FieldLogger
}

// NewBPlusTree opens (or creates) the named index over pool, sized by cfg.
func NewBPlusTree[K cmp.Ordered, V any](name string, pool *buffer.PoolManager, cfg config.StorageConfig, log logrus.FieldLogger) (*BPlusTree[K, V], error) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	t := &BPlusTree[K, V]{
		pool:            pool,
		name:            name,
		leafMaxSize:     cfg.LeafMaxSize,
		internalMaxSize: cfg.InternalMaxSize,
		rootID:          disk.InvalidPageID,
		log:             log,
	}

	guard, ok := pool.FetchPageWrite(disk.HeaderPageID)
	if !ok {
		return nil, errs.ErrBufferPoolExhausted
	}
	h, err := loadOrInitHeader(guard)
	guard.Drop()
	if err != nil {
		return nil, err
	}

	if id, ok := h.Roots[name]; ok {
		t.rootID = id
	}

	return t, nil
}

func loadOrInitHeader(guard *buffer.WritePageGuard) (*headerPage, error) {
	var h headerPage
	if err := decodePage(guard.Data(), &h); err != nil || h.Roots == nil {
		h = *newHeaderPage()
		if err := writeHeaderPage(guard, &h); err != nil {
			return nil, err
		}
	}
	return &h, nil
}

// IsEmpty reports whether the tree currently has no root.
func (t *BPlusTree[K, V]) IsEmpty() bool {
	t.rootMu.Lock()
	defer t.rootMu.Unlock()
	return t.rootID == disk.InvalidPageID
}

// GetValue returns every value stored under key (the tree is unique-key,
// so this is at most one), or errs.ErrNotFound.
func (t *BPlusTree[K, V]) GetValue(ctx context.Context, key K) ([]V, error) {
	t.rootMu.Lock()
	rootID := t.rootID
	t.rootMu.Unlock()

	if rootID == disk.InvalidPageID {
		return nil, errs.ErrNotFound
	}

	leaf, guard, err := t.descendToLeafRead(ctx, rootID, key)
	if err != nil {
		return nil, err
	}
	defer guard.Drop()

	idx, found := leaf.lookup(key)
	if !found {
		return nil, errs.ErrNotFound
	}
	return []V{leaf.valueAt(idx)}, nil
}

// descendToLeafRead hand-over-hand read-crabs from pageID to the leaf that
// would contain key.
func (t *BPlusTree[K, V]) descendToLeafRead(ctx context.Context, pageID int64, key K) (*leafPage[K, V], *buffer.ReadPageGuard, error) {
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
		cur = internal.lookup(key)
	}
}

// Insert adds (key, value). Returns false without modifying the tree if
// key is already present.
func (t *BPlusTree[K, V]) Insert(ctx context.Context, key K, value V) (bool, error) {
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
		pageID, guard, ok := t.pool.NewPageWrite()
		if !ok {
			return false, errs.ErrBufferPoolExhausted
		}
		leaf := newLeafPage[K, V](pageID, disk.InvalidPageID, t.leafMaxSize)
		leaf.insertAt(0, key, value)
		err := writeLeafPage(guard, leaf)
		guard.Drop()
		if err != nil {
			return false, err
		}

		t.rootID = pageID
		if err := t.persistRootLocked(); err != nil {
			return false, err
		}
		return true, nil
	}

	pageID := t.rootID
	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		pt, err := peekType(t.pool, pageID)
		if err != nil {
			return false, err
		}

		if pt == pageTypeLeaf {
			leaf, guard, err := fetchLeafWrite[K, V](t.pool, pageID)
			if err != nil {
				return false, err
			}
			txn.push(pageID, guard)

			if leaf.Size < leaf.MaxSize {
				txn.releaseAncestors()
				if rootLocked {
					t.rootMu.Unlock()
					rootLocked = false
				}
			}

			idx, found := leaf.lookup(key)
			if found {
				return false, nil
			}
			leaf.insertAt(idx, key, value)

			if !leaf.isOverflow() {
				return true, writeLeafPage(guard, leaf)
			}
			return true, t.splitLeaf(txn, leaf, guard)
		}

		internal, guard, err := fetchInternalWrite[K](t.pool, pageID)
		if err != nil {
			return false, err
		}
		txn.push(pageID, guard)

		if internal.Size < internal.MaxSize {
			txn.releaseAncestors()
			if rootLocked {
				t.rootMu.Unlock()
				rootLocked = false
			}
		}

		pageID = internal.lookup(key)
	}
}

func (t *BPlusTree[K, V]) splitLeaf(txn *Transaction, leaf *leafPage[K, V], guard *buffer.WritePageGuard) error {
	siblingID, siblingGuard, ok := t.pool.NewPageWrite()
	if !ok {
		return errs.ErrBufferPoolExhausted
	}

	sibling := newLeafPage[K, V](siblingID, leaf.ParentPageID, t.leafMaxSize)
	sepKey := leaf.splitOff(sibling)
	sibling.NextPageID = leaf.NextPageID
	leaf.NextPageID = siblingID

	if err := writeLeafPage(guard, leaf); err != nil {
		siblingGuard.Drop()
		return err
	}
	if err := writeLeafPage(siblingGuard, sibling); err != nil {
		siblingGuard.Drop()
		return err
	}
	siblingGuard.Drop()

	return t.insertIntoParent(txn, leaf.PageID, sepKey, siblingID, leaf.ParentPageID)
}

func (t *BPlusTree[K, V]) splitInternal(txn *Transaction, node *internalPage[K], guard *buffer.WritePageGuard) error {
	siblingID, siblingGuard, ok := t.pool.NewPageWrite()
	if !ok {
		return errs.ErrBufferPoolExhausted
	}

	sibling := newInternalPage[K](siblingID, node.ParentPageID, t.internalMaxSize)
	sepKey := node.splitOff(sibling)

	if err := writeInternalPage(guard, node); err != nil {
		siblingGuard.Drop()
		return err
	}
	if err := writeInternalPage(siblingGuard, sibling); err != nil {
		siblingGuard.Drop()
		return err
	}
	siblingGuard.Drop()

	for _, childID := range sibling.Children {
		if err := t.reparent(txn, childID, siblingID); err != nil {
			return err
		}
	}

	return t.insertIntoParent(txn, node.PageID, sepKey, siblingID, node.ParentPageID)
}

// insertIntoParent installs the separator produced by a child split. If
// left had no parent (it was the root), a fresh root is minted and the
// function returns immediately. It must never fall through into the
// existing-parent branch below.
func (t *BPlusTree[K, V]) insertIntoParent(txn *Transaction, leftID int64, sepKey K, rightID, parentID int64) error {
	if parentID == disk.InvalidPageID {
		newRootID, newRootGuard, ok := t.pool.NewPageWrite()
		if !ok {
			return errs.ErrBufferPoolExhausted
		}

		newRoot := newInternalPage[K](newRootID, disk.InvalidPageID, t.internalMaxSize)
		newRoot.populateNewRoot(leftID, sepKey, rightID)
		err := writeInternalPage(newRootGuard, newRoot)
		newRootGuard.Drop()
		if err != nil {
			return err
		}

		if err := t.reparent(txn, leftID, newRootID); err != nil {
			return err
		}
		if err := t.reparent(txn, rightID, newRootID); err != nil {
			return err
		}

		t.rootID = newRootID
		return t.persistRootLocked()
	}

	// The parent is already latched from the descent (it was not proven
	// safe, which is exactly why it is still in the page set); reuse that
	// guard instead of fetching again, which would deadlock on its latch.
	g, ok := txn.guardFor(parentID)
	if !ok {
		return errs.Wrap(errs.ErrInvariantViolation, "parent page not held by transaction")
	}

	var internal internalPage[K]
	if err := decodePage(g.Data(), &internal); err != nil {
		return err
	}

	internal.insertAfter(leftID, sepKey, rightID)
	if err := t.reparent(txn, rightID, parentID); err != nil {
		return err
	}

	if !internal.isOverflow() {
		return writeInternalPage(g, &internal)
	}

	writeGuard, ok := g.(*buffer.WritePageGuard)
	if !ok {
		return errs.Wrap(errs.ErrInvariantViolation, "parent page not write-latched")
	}
	return t.splitInternal(txn, &internal, writeGuard)
}

// reparent sets pageID's ParentPageID to parentID. pageID is frequently a
// page the current operation is still crabbing through (a moved child
// during a split or merge can be the very page the descent is sitting on);
// fetching it again would RLock/Lock a latch this goroutine already holds
// and deadlock. So txn is checked first, and the update is written through
// the guard already held in the page set; only a page txn does not hold is
// fetched and latched fresh.
func (t *BPlusTree[K, V]) reparent(txn *Transaction, pageID, parentID int64) error {
	if g, ok := txn.guardFor(pageID); ok {
		return t.reparentHeld(g, parentID)
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
		leaf.ParentPageID = parentID
		err = writeLeafPage(guard, leaf)
		guard.Drop()
		return err
	}

	internal, guard, err := fetchInternalWrite[K](t.pool, pageID)
	if err != nil {
		return err
	}
	internal.ParentPageID = parentID
	err = writeInternalPage(guard, internal)
	guard.Drop()
	return err
}

// reparentHeld rewrites ParentPageID on a page already latched through g,
// without fetching or latching it again.
func (t *BPlusTree[K, V]) reparentHeld(g pageGuard, parentID int64) error {
	pt, err := peekPageType(g.Data())
	if err != nil {
		return err
	}

	if pt == pageTypeLeaf {
		var leaf leafPage[K, V]
		if err := decodePage(g.Data(), &leaf); err != nil {
			return err
		}
		leaf.ParentPageID = parentID
		return writeLeafPage(g, &leaf)
	}

	var internal internalPage[K]
	if err := decodePage(g.Data(), &internal); err != nil {
		return err
	}
	internal.ParentPageID = parentID
	return writeInternalPage(g, &internal)
}

// persistRootLocked writes t.rootID into the shared header page. Callers
// must hold t.rootMu.
func (t *BPlusTree[K, V]) persistRootLocked() error {
	guard, ok := t.pool.FetchPageWrite(disk.HeaderPageID)
	if !ok {
		return errs.ErrBufferPoolExhausted
	}
	defer guard.Drop()

	h, err := loadOrInitHeader(guard)
	if err != nil {
		return err
	}

	if t.rootID == disk.InvalidPageID {
		delete(h.Roots, t.name)
	} else {
		h.Roots[t.name] = t.rootID
	}

	return writeHeaderPage(guard, h)
}
