package buffer

// Guard is the common state shared by ReadPageGuard and WritePageGuard: the
// pinned frame and the pool it must be unpinned through.
type Guard struct {
	frame *Frame
	pool  *PoolManager
}

// ReadPageGuard holds a page's read latch; Drop releases it and unpins the
// page.
type ReadPageGuard struct {
	Guard
}

// WritePageGuard holds a page's write latch; Drop releases it and unpins
// the page as dirty.
type WritePageGuard struct {
	Guard
}

// FetchPageRead fetches pageID and returns it read-latched. ok is false if
// the pool is exhausted.
func (p *PoolManager) FetchPageRead(pageID int64) (*ReadPageGuard, bool) {
	f, ok := p.FetchPage(pageID)
	if !ok {
		return nil, false
	}
	f.Latch.RLock()
	return &ReadPageGuard{Guard{frame: f, pool: p}}, true
}

// FetchPageWrite fetches pageID and returns it write-latched.
func (p *PoolManager) FetchPageWrite(pageID int64) (*WritePageGuard, bool) {
	f, ok := p.FetchPage(pageID)
	if !ok {
		return nil, false
	}
	f.Latch.Lock()
	return &WritePageGuard{Guard{frame: f, pool: p}}, true
}

// NewPageWrite allocates a new page and returns it write-latched, along
// with its freshly assigned id.
func (p *PoolManager) NewPageWrite() (int64, *WritePageGuard, bool) {
	pageID, f, ok := p.NewPage()
	if !ok {
		return pageID, nil, false
	}
	f.Latch.Lock()
	return pageID, &WritePageGuard{Guard{frame: f, pool: p}}, true
}

// PageID returns the id of the guarded page.
func (g *Guard) PageID() int64 {
	return g.frame.PageID()
}

// Drop releases the read latch and unpins the page.
func (g *ReadPageGuard) Drop() {
	if g == nil || g.frame == nil {
		return
	}
	f := g.frame
	f.Latch.RUnlock()
	g.pool.UnpinPage(f.PageID(), false)
	g.frame = nil
}

// Data returns the page's bytes for reading.
func (g *ReadPageGuard) Data() []byte {
	return g.frame.Data()
}

// Drop releases the write latch and unpins the page, marking it dirty.
func (g *WritePageGuard) Drop() {
	if g == nil || g.frame == nil {
		return
	}
	f := g.frame
	pageID := f.PageID()
	f.Latch.Unlock()
	g.pool.UnpinPage(pageID, true)
	g.frame = nil
}

// Data returns the page's bytes for reading or writing.
func (g *WritePageGuard) Data() []byte {
	return g.frame.Data()
}
