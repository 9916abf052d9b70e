package index

import "github.com/jobala/shoal/storage/disk"

// headerPage persists the mapping from index name to that index's root
// page id; it lives at the reserved header page id and is shared by every
// tree opened against the same buffer pool.
type headerPage struct {
	pageHeader
	Roots map[string]int64 `msgpack:"roots"`
}

func newHeaderPage() *headerPage {
	return &headerPage{
		pageHeader: pageHeader{
			PageID:       disk.HeaderPageID,
			ParentPageID: disk.InvalidPageID,
			Type:         pageTypeHeader,
		},
		Roots: make(map[string]int64),
	}
}
