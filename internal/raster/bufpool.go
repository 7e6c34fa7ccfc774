package raster

import "sync"

// slabPools maps buffer length → *sync.Pool of *[]byte. In practice a
// process uses only a handful of distinct tile geometries, so the map
// stays tiny; sync.Map avoids a mutex on the hot path.
var slabPools sync.Map

// getSlab returns a zeroed byte slab of exactly n bytes, reusing a pooled
// one when available.
func getSlab(n int) []byte {
	if n <= 0 {
		return nil
	}
	if p, ok := slabPools.Load(n); ok {
		if v := p.(*sync.Pool).Get(); v != nil {
			b := *(v.(*[]byte))
			clear(b)
			return b
		}
	}
	return make([]byte, n)
}

// putSlab returns a slab to the pool for reuse. Nil slabs are ignored.
func putSlab(b []byte) {
	if b == nil {
		return
	}
	p, _ := slabPools.LoadOrStore(len(b), &sync.Pool{})
	p.(*sync.Pool).Put(&b)
}
