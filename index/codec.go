package index

import (
	"cmp"

	"github.com/jobala/shoal/buffer"
	"github.com/jobala/shoal/errs"
)

func fetchLeafRead[K cmp.Ordered, V any](pool *buffer.PoolManager, pageID int64) (*leafPage[K, V], *buffer.ReadPageGuard, error) {
	g, ok := pool.FetchPageRead(pageID)
	if !ok {
		return nil, nil, errs.ErrBufferPoolExhausted
	}
	var p leafPage[K, V]
	if err := decodePage(g.Data(), &p); err != nil {
		g.Drop()
		return nil, nil, err
	}
	return &p, g, nil
}

func fetchLeafWrite[K cmp.Ordered, V any](pool *buffer.PoolManager, pageID int64) (*leafPage[K, V], *buffer.WritePageGuard, error) {
	g, ok := pool.FetchPageWrite(pageID)
	if !ok {
		return nil, nil, errs.ErrBufferPoolExhausted
	}
	var p leafPage[K, V]
	if err := decodePage(g.Data(), &p); err != nil {
		g.Drop()
		return nil, nil, err
	}
	return &p, g, nil
}

func fetchInternalRead[K cmp.Ordered](pool *buffer.PoolManager, pageID int64) (*internalPage[K], *buffer.ReadPageGuard, error) {
	g, ok := pool.FetchPageRead(pageID)
	if !ok {
		return nil, nil, errs.ErrBufferPoolExhausted
	}
	var p internalPage[K]
	if err := decodePage(g.Data(), &p); err != nil {
		g.Drop()
		return nil, nil, err
	}
	return &p, g, nil
}

func fetchInternalWrite[K cmp.Ordered](pool *buffer.PoolManager, pageID int64) (*internalPage[K], *buffer.WritePageGuard, error) {
	g, ok := pool.FetchPageWrite(pageID)
	if !ok {
		return nil, nil, errs.ErrBufferPoolExhausted
	}
	var p internalPage[K]
	if err := decodePage(g.Data(), &p); err != nil {
		g.Drop()
		return nil, nil, err
	}
	return &p, g, nil
}

func peekType(pool *buffer.PoolManager, pageID int64) (pageType, error) {
	g, ok := pool.FetchPageRead(pageID)
	if !ok {
		return pageTypeInvalid, errs.ErrBufferPoolExhausted
	}
	defer g.Drop()
	return peekPageType(g.Data())
}

func writeLeafPage[K cmp.Ordered, V any](g interface{ Data() []byte }, p *leafPage[K, V]) error {
	data, err := encodePage(p)
	if err != nil {
		return err
	}
	copy(g.Data(), data)
	return nil
}

func writeInternalPage[K cmp.Ordered](g interface{ Data() []byte }, p *internalPage[K]) error {
	data, err := encodePage(p)
	if err != nil {
		return err
	}
	copy(g.Data(), data)
	return nil
}

func writeHeaderPage(g interface{ Data() []byte }, p *headerPage) error {
	data, err := encodePage(p)
	if err != nil {
		return err
	}
	copy(g.Data(), data)
	return nil
}
