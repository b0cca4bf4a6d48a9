// Package bitmap turns native capture surfaces into CPU pixel buffers.
//
// A Surface exposes one or more row-padded planes. Extract copies them row
// by row into a canonical Bitmap layout (BGRA, packed 10-bit, half-float
// RGBA or bi-planar YCbCr), dropping the padding:
//
//	bm, err := bitmap.Extract(surface)
//	if err != nil {
//	    return err
//	}
//	defer bm.Release()
//
// To avoid one allocation per frame, draw buffers from a Pool instead:
//
//	pool := bitmap.NewPoolWithInitialCapacity(3, 1920, 1080, 6, bitmap.BGRA8888)
//	bm, err := bitmap.ExtractPooled(surface, pool) // blocks while pool is exhausted
//	...
//	bm.Release() // buffer goes back to the pool
//
// TryExtractPooled never blocks; it acquires every plane buffer or none.
package bitmap
