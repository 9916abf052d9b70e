package disk

import (
	"os"
	"path"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func createDbFile(t *testing.T) *os.File {
	t.Helper()
	dbPath := path.Join(t.TempDir(), "test.db")

	file, err := os.OpenFile(dbPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		t.Fatalf("failed creating db file: %v", err)
	}
	t.Cleanup(func() { _ = file.Close() })

	if err := file.Truncate(PageSize); err != nil {
		t.Fatalf("failed truncating db file: %v", err)
	}

	return file
}

func newTestManager(t *testing.T) *Manager {
	return NewManager(createDbFile(t), logrus.New())
}

func TestManagerAllocatePage(t *testing.T) {
	t.Run("allocates sequential offsets", func(t *testing.T) {
		dm := newTestManager(t)

		id1, err := dm.AllocatePage()
		assert.NoError(t, err)
		assert.Equal(t, int64(1), id1)

		id2, err := dm.AllocatePage()
		assert.NoError(t, err)
		assert.Equal(t, int64(2), id2)

		assert.Equal(t, int64(0), dm.pages[id1])
		assert.Equal(t, int64(PageSize), dm.pages[id2])
	})

	t.Run("reuses freed slots", func(t *testing.T) {
		dm := newTestManager(t)
		dm.freeSlots = []int64{8192}

		offset, err := dm.allocateOffsetLocked()
		assert.NoError(t, err)
		assert.Equal(t, int64(8192), offset)
		assert.Empty(t, dm.freeSlots)
	})

	t.Run("grows the backing file when capacity is exhausted", func(t *testing.T) {
		dm := newTestManager(t)
		dm.pageCapacity = 1
		dm.pages = map[int64]int64{HeaderPageID: 0}

		offset, err := dm.allocateOffsetLocked()
		assert.NoError(t, err)
		assert.Equal(t, int64(PageSize), offset)
		assert.Equal(t, int64(2), dm.pageCapacity)

		info, err := dm.dbFile.Stat()
		assert.NoError(t, err)
		assert.Equal(t, int64(PageSize)*2, info.Size())
	})
}

func TestManagerReadWritePage(t *testing.T) {
	dm := newTestManager(t)

	id, err := dm.AllocatePage()
	assert.NoError(t, err)

	buf := make([]byte, PageSize)
	copy(buf, []byte("hello world"))

	assert.NoError(t, dm.WritePage(id, buf))

	res, err := dm.ReadPage(id)
	assert.NoError(t, err)
	assert.Equal(t, buf, res)
}

func TestManagerDeallocatePage(t *testing.T) {
	dm := newTestManager(t)

	id, err := dm.AllocatePage()
	assert.NoError(t, err)
	assert.Empty(t, dm.freeSlots)

	dm.DeallocatePage(id)
	assert.Len(t, dm.freeSlots, 1)
	assert.NotContains(t, dm.pages, id)
}

func TestManagerDeallocateUnknownPageIsNoop(t *testing.T) {
	dm := newTestManager(t)
	assert.NotPanics(t, func() { dm.DeallocatePage(999) })
}
