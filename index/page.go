// Package index implements a concurrent B+-tree keyed index layered over
// the buffer pool: typed page codecs, the tree itself, a forward
// iterator, and the page-set bookkeeping crabbing needs.
package index

import (
	"github.com/vmihailenco/msgpack"

	"github.com/jobala/shoal/errs"
	"github.com/jobala/shoal/storage/disk"
)

type pageType int32

const (
	pageTypeInvalid pageType = iota
	pageTypeHeader
	pageTypeLeaf
	pageTypeInternal
)

// pageHeader is the common prefix every page kind carries: identity,
// tree-structural position and its variant tag. Pages are modeled as a
// tagged variant (this field) rather than a Go interface hierarchy, since
// the only thing ever done with a fetched page before it is known to be a
// leaf or an internal page is read this header.
type pageHeader struct {
	PageID       int64    `msgpack:"page_id"`
	ParentPageID int64    `msgpack:"parent_page_id"`
	Size         int      `msgpack:"size"`
	MaxSize      int      `msgpack:"max_size"`
	Type         pageType `msgpack:"type"`
}

func (h pageHeader) isRoot() bool { return h.ParentPageID == disk.InvalidPageID }

// ceilDiv computes ceil(a/b) for non-negative a and positive b.
func ceilDiv(a, b int) int { return (a + b - 1) / b }

// peekPageType decodes just enough of data to learn which page kind it
// holds, without committing to a leaf or internal struct.
func peekPageType(data []byte) (pageType, error) {
	var h pageHeader
	if err := msgpack.Unmarshal(data, &h); err != nil {
		return pageTypeInvalid, errs.Wrap(err, "decoding page header")
	}
	return h.Type, nil
}

// encodePage marshals v into a zero-padded, PageSize-wide buffer, following
// the whole-struct page codec strategy: a page's on-disk form is whatever
// its Go struct marshals to, not a hand-laid-out byte offset scheme.
func encodePage(v any) ([]byte, error) {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return nil, errs.Wrap(err, "encoding page")
	}
	if len(data) > disk.PageSize {
		return nil, errs.ErrInvariantViolation
	}

	buf := make([]byte, disk.PageSize)
	copy(buf, data)
	return buf, nil
}

// decodePage unmarshals a page's leading msgpack-encoded bytes into v,
// ignoring the zero padding that fills out the rest of the page.
func decodePage(data []byte, v any) error {
	if err := msgpack.Unmarshal(data, v); err != nil {
		return errs.Wrap(err, "decoding page")
	}
	return nil
}
