package index

import (
	"cmp"
	"slices"

	"github.com/jobala/shoal/storage/disk"
)

// leafPage holds the tree's actual (key, value) entries, sorted ascending
// by key, plus a forward link to the next leaf for iteration.
type leafPage[K cmp.Ordered, V any] struct {
	pageHeader
	NextPageID int64 `msgpack:"next_page_id"`
	Keys       []K   `msgpack:"keys"`
	Values     []V   `msgpack:"values"`
}

func newLeafPage[K cmp.Ordered, V any](pageID, parentID int64, maxSize int) *leafPage[K, V] {
	return &leafPage[K, V]{
		pageHeader: pageHeader{
			PageID:       pageID,
			ParentPageID: parentID,
			MaxSize:      maxSize,
			Type:         pageTypeLeaf,
		},
		NextPageID: disk.InvalidPageID,
	}
}

func (p *leafPage[K, V]) keyAt(i int) K   { return p.Keys[i] }
func (p *leafPage[K, V]) valueAt(i int) V { return p.Values[i] }

// lookup binary-searches for key, returning its index and true if present,
// or the index at which it would be inserted and false.
func (p *leafPage[K, V]) lookup(key K) (int, bool) {
	lo, hi := 0, p.Size
	for lo < hi {
		mid := lo + (hi-lo)/2
		if p.Keys[mid] < key {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < p.Size && p.Keys[lo] == key {
		return lo, true
	}
	return lo, false
}

func (p *leafPage[K, V]) insertAt(idx int, key K, value V) {
	p.Keys = slices.Insert(p.Keys, idx, key)
	p.Values = slices.Insert(p.Values, idx, value)
	p.Size++
}

func (p *leafPage[K, V]) removeAt(idx int) {
	p.Keys = slices.Delete(p.Keys, idx, idx+1)
	p.Values = slices.Delete(p.Values, idx, idx+1)
	p.Size--
}

func (p *leafPage[K, V]) isOverflow() bool { return p.Size > p.MaxSize }

func (p *leafPage[K, V]) minSize() int { return ceilDiv(p.MaxSize-1, 2) }

func (p *leafPage[K, V]) isUnderflow() bool {
	if p.isRoot() {
		return p.Size == 0
	}
	return p.Size < p.minSize()
}

// splitOff moves the upper half of p's entries into sibling (which must be
// empty) and returns sibling's first key, the separator the caller must
// insert into the parent.
func (p *leafPage[K, V]) splitOff(sibling *leafPage[K, V]) K {
	mid := (p.Size + 1) / 2

	sibling.Keys = append(sibling.Keys, p.Keys[mid:]...)
	sibling.Values = append(sibling.Values, p.Values[mid:]...)
	sibling.Size = p.Size - mid

	p.Keys = p.Keys[:mid]
	p.Values = p.Values[:mid]
	p.Size = mid

	return sibling.Keys[0]
}

// borrowFromLeft moves left's last entry to the front of p, for
// redistribution when p has underflowed and its left sibling has spare
// capacity. Returns the new separator to install in the parent.
func (p *leafPage[K, V]) borrowFromLeft(left *leafPage[K, V]) K {
	lastIdx := left.Size - 1
	key, val := left.keyAt(lastIdx), left.valueAt(lastIdx)
	left.removeAt(lastIdx)
	p.insertAt(0, key, val)
	return key
}

// borrowFromRight moves right's first entry to the end of p. Returns the
// new separator (right's new first key) to install in the parent.
func (p *leafPage[K, V]) borrowFromRight(right *leafPage[K, V]) K {
	key, val := right.keyAt(0), right.valueAt(0)
	right.removeAt(0)
	p.insertAt(p.Size, key, val)
	return right.keyAt(0)
}

// mergeFrom absorbs right's entries into p and takes over its forward
// link; right is left empty for the caller to delete.
func (p *leafPage[K, V]) mergeFrom(right *leafPage[K, V]) {
	p.Keys = append(p.Keys, right.Keys...)
	p.Values = append(p.Values, right.Values...)
	p.Size += right.Size
	p.NextPageID = right.NextPageID
}
