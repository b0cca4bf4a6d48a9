package bitmap

import "log/slog"

// Pool is the shared pool handed to frames for pooled extraction. It holds
// one bounded PlanePool per element type; each is bounded independently at
// the same max.
//
// A Pool is safe for concurrent use. Callers construct and own it; frames
// only borrow buffers from it.
type Pool struct {
	BGRA   *PlanePool[BGRA]
	Packed *PlanePool[uint32]
	Half   *PlanePool[RGBAHalf]
	Luma   *PlanePool[uint8]
	Chroma *PlanePool[CbCr]
}

// NewPool creates a pool group whose element pools start empty
func NewPool(max int, opts ...PoolOption) *Pool {
	return &Pool{
		BGRA:   NewPlanePool[BGRA](max, opts...),
		Packed: NewPlanePool[uint32](max, opts...),
		Half:   NewPlanePool[RGBAHalf](max, opts...),
		Luma:   NewPlanePool[uint8](max, opts...),
		Chroma: NewPlanePool[CbCr](max, opts...),
	}
}

// NewPoolWithInitialCapacity creates a pool group and pre-warms capacity
// buffers sized for width x height, but only in the element pools the given
// pixel format uses. Chroma buffers are sized for 2x2 subsampling.
func NewPoolWithInitialCapacity(capacity, width, height, max int, format PixelFormat, opts ...PoolOption) *Pool {
	p := NewPool(max, opts...)
	if capacity <= 0 || width <= 0 || height <= 0 {
		return p
	}

	switch format {
	case BGRA8888:
		p.BGRA.prewarm(capacity, width*height)
	case ARGB2101010:
		p.Packed.prewarm(capacity, width*height)
	case RGBAF16:
		p.Half.prewarm(capacity, width*height)
	case V420, F420:
		p.Luma.prewarm(capacity, width*height)
		p.Chroma.prewarm(capacity, ((width+1)/2)*((height+1)/2))
	default:
		slog.Warn("bitmap: no pre-warm for pixel format", "format", format.String())
	}

	return p
}

// FreePooled drops the free buffers of every element pool
func (p *Pool) FreePooled() int {
	return p.BGRA.FreePooled() +
		p.Packed.FreePooled() +
		p.Half.FreePooled() +
		p.Luma.FreePooled() +
		p.Chroma.FreePooled()
}

// Stats returns per-element-pool snapshots keyed by element name
func (p *Pool) Stats() map[string]PoolStats {
	return map[string]PoolStats{
		"bgra":   p.BGRA.Stats(),
		"packed": p.Packed.Stats(),
		"half":   p.Half.Stats(),
		"luma":   p.Luma.Stats(),
		"chroma": p.Chroma.Stats(),
	}
}
