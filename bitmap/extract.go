package bitmap

import (
	"errors"
	"fmt"
)

// ErrUnsupportedFormat is wrapped by ExtractionError when a surface reports
// a pixel format with no canonical layout.
var ErrUnsupportedFormat = errors.New("unsupported pixel format")

// source selects where plane buffers come from
type source int

const (
	fromHeap source = iota
	fromPoolBlocking
	fromPoolTry
)

// Extract copies the surface into a freshly allocated bitmap
func Extract(s Surface) (Bitmap, error) {
	return extract(s, nil, fromHeap)
}

// ExtractPooled copies the surface into buffers drawn from pool, blocking
// until every required plane buffer is available.
func ExtractPooled(s Surface, pool *Pool) (Bitmap, error) {
	if pool == nil {
		return nil, &ExtractionError{Format: s.PixelFormat(), Plane: -1, Err: errors.New("nil pool")}
	}
	return extract(s, pool, fromPoolBlocking)
}

// TryExtractPooled is the non-blocking form of ExtractPooled. It returns a
// nil Bitmap and nil error when any required plane pool is exhausted; planes
// are acquired all-or-nothing.
func TryExtractPooled(s Surface, pool *Pool) (Bitmap, error) {
	if pool == nil {
		return nil, &ExtractionError{Format: s.PixelFormat(), Plane: -1, Err: errors.New("nil pool")}
	}
	return extract(s, pool, fromPoolTry)
}

func extract(s Surface, pool *Pool, src source) (Bitmap, error) {
	format := s.PixelFormat()
	if format.PlaneCount() == 0 {
		return nil, &ExtractionError{Format: format, Plane: -1, Err: ErrUnsupportedFormat}
	}

	planes, unlock, err := s.Lock()
	if err != nil {
		return nil, &ExtractionError{Format: format, Plane: -1, Err: fmt.Errorf("lock surface: %w", err)}
	}
	defer unlock()

	if len(planes) < format.PlaneCount() {
		return nil, &ExtractionError{
			Format: format,
			Plane:  -1,
			Err:    fmt.Errorf("surface has %d planes, format needs %d", len(planes), format.PlaneCount()),
		}
	}

	switch format {
	case BGRA8888:
		var pp *PlanePool[BGRA]
		if pool != nil {
			pp = pool.BGRA
		}
		buf, err := extractPlane(pp, src, planes[0])
		if err != nil || buf == nil {
			return nil, wrapPlane(format, 0, err)
		}
		return &BGRA8888Bitmap{W: planes[0].Width, H: planes[0].Height, Data: buf}, nil

	case ARGB2101010:
		var pp *PlanePool[uint32]
		if pool != nil {
			pp = pool.Packed
		}
		buf, err := extractPlane(pp, src, planes[0])
		if err != nil || buf == nil {
			return nil, wrapPlane(format, 0, err)
		}
		return &ARGB2101010Bitmap{W: planes[0].Width, H: planes[0].Height, Data: buf}, nil

	case RGBAF16:
		var pp *PlanePool[RGBAHalf]
		if pool != nil {
			pp = pool.Half
		}
		buf, err := extractPlane(pp, src, planes[0])
		if err != nil || buf == nil {
			return nil, wrapPlane(format, 0, err)
		}
		return &RGBAF16Bitmap{W: planes[0].Width, H: planes[0].Height, Data: buf}, nil

	case V420, F420:
		var (
			lp *PlanePool[uint8]
			cp *PlanePool[CbCr]
		)
		if pool != nil {
			lp, cp = pool.Luma, pool.Chroma
		}
		luma, err := extractPlane(lp, src, planes[0])
		if err != nil || luma == nil {
			return nil, wrapPlane(format, 0, err)
		}
		chroma, err := extractPlane(cp, src, planes[1])
		if err != nil || chroma == nil {
			// All-or-nothing: never hand out a frame with one plane
			luma.Release()
			return nil, wrapPlane(format, 1, err)
		}
		return &YCbCrBitmap{
			LumaWidth:    planes[0].Width,
			LumaHeight:   planes[0].Height,
			ChromaWidth:  planes[1].Width,
			ChromaHeight: planes[1].Height,
			Luma:         luma,
			Chroma:       chroma,
			Range:        rangeOf(format),
		}, nil
	}

	return nil, &ExtractionError{Format: format, Plane: -1, Err: ErrUnsupportedFormat}
}

// extractPlane acquires a destination buffer for p and copies into it.
// Returns (nil, nil) when src is fromPoolTry and the pool is exhausted.
func extractPlane[T Element](pp *PlanePool[T], src source, p Plane) (*Buffer[T], error) {
	if err := p.validate(sizeOf[T]()); err != nil {
		return nil, err
	}

	var buf *Buffer[T]
	switch src {
	case fromHeap:
		buf = ownedBuffer[T](p.Width * p.Height)
	case fromPoolBlocking:
		buf = pp.Get(p.Width, p.Height)
	case fromPoolTry:
		buf = pp.TryGet(p.Width, p.Height)
		if buf == nil {
			return nil, nil
		}
	}

	if err := copyPlane(buf.Pix(), p); err != nil {
		buf.Release()
		return nil, err
	}
	return buf, nil
}

// wrapPlane turns a plane failure into an ExtractionError; a nil err means
// the pool was exhausted and is passed through as (nil, nil).
func wrapPlane(format PixelFormat, plane int, err error) error {
	if err == nil {
		return nil
	}
	return &ExtractionError{Format: format, Plane: plane, Err: err}
}
