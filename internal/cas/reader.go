package cas

import (
	"container/list"
	"os"
	"sync"

	"github.com/deploymenttheory/frostbite-extract/internal/binreader"
	"github.com/deploymenttheory/frostbite-extract/internal/compression"
	"github.com/deploymenttheory/frostbite-extract/internal/errs"
)

// Resolver maps a CAS identifier to the absolute path of the file that
// backs it, per the Patch-shadows-Data precedence rule. Implemented by
// the layout package; kept as a narrow interface here so this package
// never imports layout (and vice versa is impossible since layout does
// not need CAS reading).
type Resolver interface {
	ResolvePath(id Identifier) (path string, ok bool)
}

// DefaultMaxOpenHandles bounds the CAS reader's internal handle cache.
const DefaultMaxOpenHandles = 32

// Reader streams compressed byte ranges out of CAS files. It is safe
// for concurrent use by any number of extraction workers: the handle
// cache is mutex-guarded and the decompressor is assumed reentrant
// (serialization behind a mutex would only be required if the
// concrete external library were not; the LZ4 substitute used here
// is reentrant).
type Reader struct {
	resolver   Resolver
	decomp     compression.Decompressor
	maxHandles int

	mu      sync.Mutex
	handles map[string]*list.Element // path -> LRU element
	order   *list.List               // front = most recently used
}

type handleEntry struct {
	path string
	file *os.File
}

// NewReader constructs a CAS reader with a bounded LRU cache of at
// most maxHandles open files.
func NewReader(resolver Resolver, decomp compression.Decompressor, maxHandles int) *Reader {
	if maxHandles <= 0 {
		maxHandles = DefaultMaxOpenHandles
	}
	return &Reader{
		resolver:   resolver,
		decomp:     decomp,
		maxHandles: maxHandles,
		handles:    make(map[string]*list.Element),
		order:      list.New(),
	}
}

// Read resolves id, opens (or reuses) its backing CAS file, and
// streams the chunked decompression pipeline starting at offset.
// uncompressedSize, when non-nil, pins the pipeline's known-total-size
// termination condition; when nil, compressedSize is used instead
// (the TOC-resource / chunk-part case).
func (r *Reader) Read(id Identifier, offset uint64, compressedSize uint64, uncompressedSize *uint64) ([]byte, error) {
	path, ok := r.resolver.ResolvePath(id)
	if !ok {
		return nil, errs.BundleUnavailable
	}

	f, err := r.acquire(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.BundleUnavailable
		}
		return nil, errs.WrapIO("open cas file", err)
	}

	raw := make([]byte, compressedSize)
	if _, err := f.ReadAt(raw, int64(offset)); err != nil {
		return nil, errs.WrapIO("cas read", err)
	}

	reader := binreader.New(raw)
	var target compression.Target
	if uncompressedSize != nil {
		target = compression.TargetUncompressedSize(*uncompressedSize)
	} else {
		target = compression.TargetCompressedSize(compressedSize)
	}
	return compression.DecompressRange(reader, target, r.decomp)
}

// acquire returns an open handle for path, opening it on a cache miss
// and evicting the least-recently-used handle if the cache is full.
func (r *Reader) acquire(path string) (*os.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if el, ok := r.handles[path]; ok {
		r.order.MoveToFront(el)
		return el.Value.(*handleEntry).file, nil
	}

	if r.order.Len() >= r.maxHandles {
		back := r.order.Back()
		if back != nil {
			entry := back.Value.(*handleEntry)
			entry.file.Close()
			delete(r.handles, entry.path)
			r.order.Remove(back)
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	el := r.order.PushFront(&handleEntry{path: path, file: f})
	r.handles[path] = el
	return f, nil
}

// Close releases every cached handle. Call once extraction is
// complete; Read must not be called afterward.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for el := r.order.Front(); el != nil; el = el.Next() {
		if err := el.Value.(*handleEntry).file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	r.handles = make(map[string]*list.Element)
	r.order = list.New()
	return firstErr
}
