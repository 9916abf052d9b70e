// Package buffer implements the fixed-size buffer pool: frame table, page
// table, free list and replacer coordination, fronting storage/disk.
package buffer

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/jobala/shoal/errs"
	"github.com/jobala/shoal/storage/disk"
)

// PoolManager owns poolSize frames and mediates every page access between
// callers and the disk scheduler. It never blocks a caller when exhausted:
// Fetch/New return a negative result instead.
type PoolManager struct {
	mu sync.Mutex

	frames    []*Frame
	pageTable map[int64]int // page id -> frame id
	freeList  []int
	replacer  Replacer
	scheduler *disk.Scheduler

	log logrus.FieldLogger
}

// NewPoolManager constructs a pool of poolSize frames backed by scheduler.
func NewPoolManager(poolSize int, scheduler *disk.Scheduler, log logrus.FieldLogger) *PoolManager {
	if log == nil {
		log = logrus.StandardLogger()
	}

	frames := make([]*Frame, poolSize)
	free := make([]int, poolSize)
	for i := 0; i < poolSize; i++ {
		frames[i] = newFrame(i)
		free[i] = i
	}

	return &PoolManager{
		frames:    frames,
		pageTable: make(map[int64]int),
		freeList:  free,
		replacer:  NewLRUReplacer(),
		scheduler: scheduler,
		log:       log,
	}
}

// FetchPage pins and returns the frame holding pageID, reading it from
// disk if it is not already resident. Returns (nil, false) if the pool is
// exhausted (every frame pinned).
func (p *PoolManager) FetchPage(pageID int64) (*Frame, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if frameID, ok := p.pageTable[pageID]; ok {
		f := p.frames[frameID]
		f.pinCount++
		p.replacer.Pin(frameID)
		return f, true
	}

	frameID, ok := p.victimLocked()
	if !ok {
		return nil, false
	}

	f := p.frames[frameID]
	if err := p.writebackLocked(f); err != nil {
		p.log.WithError(err).WithField("page_id", f.pageID).Error("writeback failed during fetch")
	}

	delete(p.pageTable, f.pageID)
	f.reset(pageID)
	p.pageTable[pageID] = frameID

	data, err := p.readLocked(pageID)
	if err != nil {
		p.log.WithError(err).WithField("page_id", pageID).Error("read failed during fetch")
	} else {
		copy(f.data, data)
	}

	f.pinCount = 1
	p.replacer.Pin(frameID)
	return f, true
}

// NewPage allocates a fresh page id and pins a zero-filled frame for it.
// Returns (InvalidPageID, nil, false) if the pool is exhausted; the victim
// frame is chosen before any id is allocated, so no id is leaked.
func (p *PoolManager) NewPage() (int64, *Frame, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	frameID, ok := p.victimLocked()
	if !ok {
		return disk.InvalidPageID, nil, false
	}

	pageID, err := p.scheduler.Manager().AllocatePage()
	if err != nil {
		p.log.WithError(err).Error("disk allocation failed during NewPage")
		p.freeList = append(p.freeList, frameID)
		return disk.InvalidPageID, nil, false
	}

	f := p.frames[frameID]
	if err := p.writebackLocked(f); err != nil {
		p.log.WithError(err).WithField("page_id", f.pageID).Error("writeback failed during NewPage")
	}

	delete(p.pageTable, f.pageID)
	f.reset(pageID)
	p.pageTable[pageID] = frameID

	f.pinCount = 1
	p.replacer.Pin(frameID)
	return pageID, f, true
}

// UnpinPage decrements pageID's pin count and folds isDirty into the
// frame's dirty flag. Returns false if the page is not resident or its
// pin count is already zero.
func (p *PoolManager) UnpinPage(pageID int64, isDirty bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	frameID, ok := p.pageTable[pageID]
	if !ok {
		return false
	}

	f := p.frames[frameID]
	if f.pinCount <= 0 {
		return false
	}

	f.dirty = f.dirty || isDirty
	f.pinCount--
	if f.pinCount == 0 {
		p.replacer.Unpin(frameID)
	}

	return true
}

// FlushPage writes pageID back to disk unconditionally and clears its
// dirty flag. Returns false if pageID is not resident.
func (p *PoolManager) FlushPage(pageID int64) bool {
	if pageID == disk.InvalidPageID {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	frameID, ok := p.pageTable[pageID]
	if !ok {
		return false
	}

	f := p.frames[frameID]
	if err := p.writeLocked(f.pageID, f.data); err != nil {
		p.log.WithError(err).WithField("page_id", pageID).Error("explicit flush failed")
		return false
	}
	f.dirty = false
	return true
}

// FlushAllPages flushes every currently-resident page.
func (p *PoolManager) FlushAllPages() {
	p.mu.Lock()
	ids := make([]int64, 0, len(p.pageTable))
	for id := range p.pageTable {
		ids = append(ids, id)
	}
	p.mu.Unlock()

	for _, id := range ids {
		p.FlushPage(id)
	}
}

// DeletePage deallocates pageID. Returns true if the page was already
// absent, false if it is resident and still pinned, or true after
// successfully evicting and deallocating it.
func (p *PoolManager) DeletePage(pageID int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	frameID, ok := p.pageTable[pageID]
	if !ok {
		p.scheduler.Manager().DeallocatePage(pageID)
		return true
	}

	f := p.frames[frameID]
	if f.pinCount > 0 {
		return false
	}

	p.replacer.Pin(frameID)
	delete(p.pageTable, pageID)
	f.reset(disk.InvalidPageID)
	p.freeList = append(p.freeList, frameID)

	p.scheduler.Manager().DeallocatePage(pageID)
	return true
}

// victimLocked returns a frame id free for reuse, preferring the free
// list before asking the replacer. Caller must hold p.mu.
func (p *PoolManager) victimLocked() (int, bool) {
	if len(p.freeList) > 0 {
		id := p.freeList[0]
		p.freeList = p.freeList[1:]
		return id, true
	}
	return p.replacer.Victim()
}

func (p *PoolManager) writebackLocked(f *Frame) error {
	if f.pageID == disk.InvalidPageID || !f.dirty {
		return nil
	}
	return p.writeLocked(f.pageID, f.data)
}

func (p *PoolManager) writeLocked(pageID int64, data []byte) error {
	resp := <-p.scheduler.Schedule(disk.NewWriteRequest(pageID, data))
	if !resp.Success {
		return errs.Wrap(resp.Err, "scheduling page write")
	}
	return nil
}

func (p *PoolManager) readLocked(pageID int64) ([]byte, error) {
	resp := <-p.scheduler.Schedule(disk.NewReadRequest(pageID))
	if !resp.Success {
		return nil, errs.Wrap(resp.Err, "scheduling page read")
	}
	return resp.Data, nil
}
