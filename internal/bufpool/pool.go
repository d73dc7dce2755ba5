// Package bufpool provides reusable, size-classed byte buffers for the
// muxer write paths (moof/mdat scratch assembly, TS packet staging) so
// steady-state segment production does not churn the GC per sample.
package bufpool

import "sync"

var sizeClasses = []int{188, 4096, 65536, 1 << 20}

type classPool struct {
	size int
	pool *sync.Pool
}

// Pool hands out byte slices from the nearest predefined size class.
type Pool struct {
	pools []classPool
}

var defaultPool = New()

// Get acquires a buffer from the package-level default pool.
func Get(size int) []byte { return defaultPool.Get(size) }

// Put releases a buffer back to the package-level default pool.
func Put(buf []byte) { defaultPool.Put(buf) }

// New creates a buffer pool with size classes tailored for TS packets
// (188 bytes) up to multi-megabyte fragment scratch buffers.
func New() *Pool {
	pools := make([]classPool, len(sizeClasses))
	for i, classSize := range sizeClasses {
		size := classSize
		pools[i] = classPool{
			size: size,
			pool: &sync.Pool{New: func() any { return make([]byte, size) }},
		}
	}
	return &Pool{pools: pools}
}

// Get returns a slice of length size backed by the nearest size class that
// can hold it. Requests larger than the biggest class allocate directly.
func (p *Pool) Get(size int) []byte {
	if p == nil || size <= 0 {
		return nil
	}
	for i := range p.pools {
		class := &p.pools[i]
		if size <= class.size {
			buf := class.pool.Get().([]byte)
			return buf[:size]
		}
	}
	return make([]byte, size)
}

// Put returns buf to the pool whose size class matches its capacity. Slices
// not originating from a known size class are dropped for GC.
func (p *Pool) Put(buf []byte) {
	if p == nil || buf == nil {
		return
	}
	c := cap(buf)
	for i := range p.pools {
		class := &p.pools[i]
		if c == class.size {
			class.pool.Put(buf[:c]) //nolint:staticcheck // re-slice to full capacity before returning
			return
		}
	}
}
