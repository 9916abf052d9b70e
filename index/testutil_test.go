package index

import (
	"context"
	"os"
	"path"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jobala/shoal/buffer"
	"github.com/jobala/shoal/config"
	"github.com/jobala/shoal/storage/disk"
)

func createDbFile(t *testing.T) *os.File {
	t.Helper()
	dbPath := path.Join(t.TempDir(), "test.db")

	file, err := os.OpenFile(dbPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		t.Fatalf("failed creating db file: %v", err)
	}
	t.Cleanup(func() { _ = file.Close() })

	if err := file.Truncate(disk.PageSize); err != nil {
		t.Fatalf("failed truncating db file: %v", err)
	}

	return file
}

func newTestPool(t *testing.T, poolSize int) *buffer.PoolManager {
	dm := disk.NewManager(createDbFile(t), nil)
	sched := disk.NewScheduler(dm)
	return buffer.NewPoolManager(poolSize, sched, nil)
}

func testConfig(maxSize int) config.StorageConfig {
	return config.StorageConfig{
		PageSize:        disk.PageSize,
		PoolSize:        64,
		LeafMaxSize:     maxSize,
		InternalMaxSize: maxSize,
	}
}

func newTestTree(t *testing.T, maxSize int) *BPlusTree[int, string] {
	pool := newTestPool(t, 64)
	tree, err := NewBPlusTree[int, string]("test", pool, testConfig(maxSize), nil)
	assert.NoError(t, err)
	return tree
}

var ctx = context.Background()
