package bitmap

import "fmt"

// Bitmap is a CPU pixel buffer in one of the canonical layouts:
// *BGRA8888Bitmap, *ARGB2101010Bitmap, *RGBAF16Bitmap or *YCbCrBitmap.
//
// Consumers switch on the concrete type. Release returns pooled storage to
// its pool; for freshly allocated bitmaps it is a no-op.
type Bitmap interface {
	Width() int
	Height() int
	PixelFormat() PixelFormat
	Release()

	sealed()
}

// BGRA8888Bitmap is a single plane of 8-bit BGRA pixels
type BGRA8888Bitmap struct {
	W, H int
	Data *Buffer[BGRA]
}

func (b *BGRA8888Bitmap) Width() int               { return b.W }
func (b *BGRA8888Bitmap) Height() int              { return b.H }
func (b *BGRA8888Bitmap) PixelFormat() PixelFormat { return BGRA8888 }
func (b *BGRA8888Bitmap) Release()                 { b.Data.Release() }
func (*BGRA8888Bitmap) sealed()                    {}

// ARGB2101010Bitmap is a single plane of packed 10-10-10-2 pixels
type ARGB2101010Bitmap struct {
	W, H int
	Data *Buffer[uint32]
}

func (b *ARGB2101010Bitmap) Width() int               { return b.W }
func (b *ARGB2101010Bitmap) Height() int              { return b.H }
func (b *ARGB2101010Bitmap) PixelFormat() PixelFormat { return ARGB2101010 }
func (b *ARGB2101010Bitmap) Release()                 { b.Data.Release() }
func (*ARGB2101010Bitmap) sealed()                    {}

// RGBAF16Bitmap is a single plane of half-float RGBA pixels
type RGBAF16Bitmap struct {
	W, H int
	Data *Buffer[RGBAHalf]
}

func (b *RGBAF16Bitmap) Width() int               { return b.W }
func (b *RGBAF16Bitmap) Height() int              { return b.H }
func (b *RGBAF16Bitmap) PixelFormat() PixelFormat { return RGBAF16 }
func (b *RGBAF16Bitmap) Release()                 { b.Data.Release() }
func (*RGBAF16Bitmap) sealed()                    {}

// YCbCrBitmap is a luma plane plus an interleaved Cb/Cr plane. The chroma
// plane is usually subsampled 2x2 but may match the luma size.
type YCbCrBitmap struct {
	LumaWidth, LumaHeight     int
	ChromaWidth, ChromaHeight int
	Luma                      *Buffer[uint8]
	Chroma                    *Buffer[CbCr]
	Range                     VideoRange
}

func (b *YCbCrBitmap) Width() int  { return b.LumaWidth }
func (b *YCbCrBitmap) Height() int { return b.LumaHeight }

func (b *YCbCrBitmap) PixelFormat() PixelFormat {
	if b.Range == RangeFull {
		return F420
	}
	return V420
}

func (b *YCbCrBitmap) Release() {
	b.Luma.Release()
	b.Chroma.Release()
}

func (*YCbCrBitmap) sealed() {}

// ExtractionError reports a failed bitmap extraction. It never affects the
// stream the frame came from.
type ExtractionError struct {
	Format PixelFormat
	Plane  int
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Plane >= 0 {
		return fmt.Sprintf("bitmap: extract %s plane %d: %v", e.Format, e.Plane, e.Err)
	}
	return fmt.Sprintf("bitmap: extract %s: %v", e.Format, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}
