// Package disk implements the fixed-size page store that backs the buffer
// pool: a file-backed allocator plus an asynchronous per-page scheduler.
package disk

import (
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/jobala/shoal/errs"
)

const (
	// PageSize is the fixed width, in bytes, of every page on disk and in
	// every buffer pool frame.
	PageSize = 4096

	// InvalidPageID marks the absence of a page.
	InvalidPageID int64 = -1

	// HeaderPageID is the reserved page holding index_name -> root_page_id.
	HeaderPageID int64 = 0

	// DefaultPageCapacity is the number of page slots a Manager assumes the
	// backing file has room for before its first resize. NewManager does
	// not resize the file to match it.
	DefaultPageCapacity = 16
)

// Manager allocates, reads, writes and deallocates fixed-size pages in a
// single backing file. It is safe for concurrent use; callers normally
// reach it only through a Scheduler.
type Manager struct {
	mu sync.Mutex

	dbFile       *os.File
	pages        map[int64]int64 // page id -> byte offset
	freeSlots    []int64
	pageCapacity int64
	nextID       int64

	log logrus.FieldLogger
}

// NewManager wraps an already-open, already-sized file in a Manager. The
// header page (id 0) is assumed to live at offset 0.
func NewManager(file *os.File, log logrus.FieldLogger) *Manager {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Manager{
		dbFile:       file,
		pageCapacity: DefaultPageCapacity,
		pages:        map[int64]int64{HeaderPageID: 0},
		freeSlots:    []int64{},
		nextID:       HeaderPageID + 1,
		log:          log,
	}
}

// WritePage writes data (exactly PageSize bytes) to pageID's slot,
// allocating one if this is the page's first write.
func (m *Manager) WritePage(pageID int64, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	offset, err := m.offsetForLocked(pageID)
	if err != nil {
		return err
	}

	if _, err := m.dbFile.WriteAt(data, offset); err != nil {
		m.log.WithError(err).WithField("page_id", pageID).Error("disk write failed")
		return errors.Wrapf(errs.ErrIO, "writing page %d at offset %d: %v", pageID, offset, err)
	}

	return nil
}

// ReadPage reads PageSize bytes from pageID's slot, allocating one first if
// the page has never been written (callers fetching a freshly-allocated
// page observe PageSize zero bytes).
func (m *Manager) ReadPage(pageID int64) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	offset, err := m.offsetForLocked(pageID)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, PageSize)
	// A slot past the current end of the file has never been written;
	// ReadAt reports io.EOF for it and buf keeps its zero bytes.
	if _, err := m.dbFile.ReadAt(buf, offset); err != nil && err != io.EOF {
		m.log.WithError(err).WithField("page_id", pageID).Error("disk read failed")
		return nil, errors.Wrapf(errs.ErrIO, "reading page %d at offset %d: %v", pageID, offset, err)
	}

	return buf, nil
}

// AllocatePage reserves a fresh page id/offset pair, growing the backing
// file if necessary, and returns the new id.
func (m *Manager) AllocatePage() (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	offset, err := m.allocateOffsetLocked()
	if err != nil {
		return InvalidPageID, err
	}

	id := m.nextPageIDLocked()
	m.pages[id] = offset
	return id, nil
}

// DeallocatePage frees pageID's slot for reuse. A page id that was never
// allocated is a no-op.
func (m *Manager) DeallocatePage(pageID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if offset, ok := m.pages[pageID]; ok {
		m.freeSlots = append(m.freeSlots, offset)
		delete(m.pages, pageID)
	}
}

func (m *Manager) offsetForLocked(pageID int64) (int64, error) {
	if offset, ok := m.pages[pageID]; ok {
		return offset, nil
	}

	offset, err := m.allocateOffsetLocked()
	if err != nil {
		return 0, err
	}
	m.pages[pageID] = offset
	return offset, nil
}

func (m *Manager) allocateOffsetLocked() (int64, error) {
	if len(m.freeSlots) > 0 {
		offset := m.freeSlots[0]
		m.freeSlots = m.freeSlots[1:]
		return offset, nil
	}

	if int64(len(m.pages))+1 > m.pageCapacity {
		m.pageCapacity *= 2
		if err := m.dbFile.Truncate(m.pageCapacity * PageSize); err != nil {
			return 0, errors.Wrap(errs.ErrIO, "resizing db file: "+err.Error())
		}
	}

	return int64(len(m.pages)) * PageSize, nil
}

// nextPageIDLocked hands out monotonically increasing ids starting at 1 (0
// is reserved for the header page). Deallocated ids are never reused
// directly; their backing offset is recycled via freeSlots instead.
func (m *Manager) nextPageIDLocked() int64 {
	id := m.nextID
	m.nextID++
	return id
}

// Close flushes nothing (writes are synchronous) and closes the backing
// file.
func (m *Manager) Close() error {
	return m.dbFile.Close()
}
