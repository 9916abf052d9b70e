package buffer

import (
	"sync"

	"github.com/jobala/shoal/storage/disk"
)

// Frame is one slot of the buffer pool: a fixed-size byte buffer plus the
// bookkeeping the pool needs to decide whether it can be reclaimed.
// PinCount and Dirty are guarded by the pool's own mutex, not by Latch;
// Latch guards only the Data bytes.
type Frame struct {
	Latch sync.RWMutex

	id       int
	pageID   int64
	pinCount int
	dirty    bool
	data     []byte
}

func newFrame(id int) *Frame {
	return &Frame{
		id:     id,
		pageID: disk.InvalidPageID,
		data:   make([]byte, disk.PageSize),
	}
}

// ID returns the frame's slot index within the pool.
func (f *Frame) ID() int { return f.id }

// PageID returns the id of the page currently resident in this frame.
func (f *Frame) PageID() int64 { return f.pageID }

// PinCount returns the number of outstanding borrowers.
func (f *Frame) PinCount() int { return f.pinCount }

// IsDirty reports whether the frame has unflushed writes.
func (f *Frame) IsDirty() bool { return f.dirty }

// Data returns the frame's underlying byte buffer. Callers must hold
// Latch in the appropriate mode before reading or writing through it.
func (f *Frame) Data() []byte { return f.data }

func (f *Frame) reset(pageID int64) {
	f.pageID = pageID
	f.pinCount = 0
	f.dirty = false
	for i := range f.data {
		f.data[i] = 0
	}
}
