package index

import (
	"cmp"
	"slices"
)

// internalPage routes searches to children: Keys[0] is a dummy slot never
// compared against (it exists so Keys and Children stay the same length),
// and for i >= 1, Children[i] covers the key range [Keys[i], Keys[i+1]).
type internalPage[K cmp.Ordered] struct {
	pageHeader
	Keys     []K     `msgpack:"keys"`
	Children []int64 `msgpack:"children"`
}

func newInternalPage[K cmp.Ordered](pageID, parentID int64, maxSize int) *internalPage[K] {
	return &internalPage[K]{
		pageHeader: pageHeader{
			PageID:       pageID,
			ParentPageID: parentID,
			MaxSize:      maxSize,
			Type:         pageTypeInternal,
		},
	}
}

func (p *internalPage[K]) keyAt(i int) K       { return p.Keys[i] }
func (p *internalPage[K]) childAt(i int) int64 { return p.Children[i] }

// lookup returns the child that should hold key: the last child whose
// separator is <= key.
func (p *internalPage[K]) lookup(key K) int64 {
	lo, hi := 1, p.Size
	for lo < hi {
		mid := lo + (hi-lo)/2
		if p.Keys[mid] <= key {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return p.Children[lo-1]
}

// valueIndex returns the slot index whose child is childID, or -1.
func (p *internalPage[K]) valueIndex(childID int64) int {
	return slices.Index(p.Children, childID)
}

// populateNewRoot installs the only two children a brand new root can
// start with, separated by key.
func (p *internalPage[K]) populateNewRoot(leftChild int64, key K, rightChild int64) {
	var dummy K
	p.Keys = []K{dummy, key}
	p.Children = []int64{leftChild, rightChild}
	p.Size = 2
}

// insertAfter inserts (key, childID) immediately after the slot whose
// child is afterChildID.
func (p *internalPage[K]) insertAfter(afterChildID int64, key K, childID int64) {
	idx := p.valueIndex(afterChildID) + 1
	p.Keys = slices.Insert(p.Keys, idx, key)
	p.Children = slices.Insert(p.Children, idx, childID)
	p.Size++
}

func (p *internalPage[K]) removeAt(idx int) {
	p.Keys = slices.Delete(p.Keys, idx, idx+1)
	p.Children = slices.Delete(p.Children, idx, idx+1)
	p.Size--
}

func (p *internalPage[K]) isOverflow() bool { return p.Size > p.MaxSize }

func (p *internalPage[K]) minSize() int { return ceilDiv(p.MaxSize, 2) }

func (p *internalPage[K]) isUnderflow() bool {
	if p.isRoot() {
		return p.Size < 2
	}
	return p.Size < p.minSize()
}

// splitOff moves the upper half of p's (key, child) slots into sibling and
// returns the separator the caller must insert into the parent. sibling's
// slot 0 key becomes the dummy, as required by any internal page.
func (p *internalPage[K]) splitOff(sibling *internalPage[K]) K {
	mid := (p.Size + 1) / 2

	sibling.Keys = append(sibling.Keys, p.Keys[mid:]...)
	sibling.Children = append(sibling.Children, p.Children[mid:]...)
	sibling.Size = p.Size - mid

	sep := sibling.Keys[0]
	var dummy K
	sibling.Keys[0] = dummy

	p.Keys = p.Keys[:mid]
	p.Children = p.Children[:mid]
	p.Size = mid

	return sep
}

// borrowFromLeft moves left's last child to the front of p. oldSeparator
// is the key that used to separate left and p in their parent; it becomes
// p's new slot-1 key. Returns the new separator (left's former last key).
func (p *internalPage[K]) borrowFromLeft(left *internalPage[K], oldSeparator K) K {
	lastIdx := left.Size - 1
	movedChild := left.childAt(lastIdx)
	newSeparator := left.keyAt(lastIdx)
	left.removeAt(lastIdx)

	p.Children = slices.Insert(p.Children, 0, movedChild)
	p.Keys = slices.Insert(p.Keys, 1, oldSeparator)
	p.Size++

	return newSeparator
}

// borrowFromRight moves right's first child to the end of p. oldSeparator
// is the key that used to separate p and right in their parent; it becomes
// the key for the newly appended child. Returns the new separator (right's
// new first real key).
func (p *internalPage[K]) borrowFromRight(right *internalPage[K], oldSeparator K) K {
	movedChild := right.childAt(0)
	newSeparator := right.keyAt(1)

	right.Children = slices.Delete(right.Children, 0, 1)
	right.Keys = slices.Delete(right.Keys, 0, 1)
	var dummy K
	right.Keys[0] = dummy
	right.Size--

	p.Keys = append(p.Keys, oldSeparator)
	p.Children = append(p.Children, movedChild)
	p.Size++

	return newSeparator
}

// mergeFrom absorbs right's (key, child) slots into p, using separator
// (the key that used to sit between them in their parent) as the key for
// right's first child in the merged page.
func (p *internalPage[K]) mergeFrom(right *internalPage[K], separator K) {
	p.Keys = append(p.Keys, separator)
	p.Keys = append(p.Keys, right.Keys[1:]...)
	p.Children = append(p.Children, right.Children...)
	p.Size += right.Size
}
