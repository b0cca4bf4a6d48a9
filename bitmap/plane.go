package bitmap

import (
	"errors"
	"fmt"
	"unsafe"
)

// ErrSurfaceReleased is returned when a surface is locked after its owner released it
var ErrSurfaceReleased = errors.New("bitmap: surface already released")

// Plane is a read-only view of one native pixel plane.
//
// Data starts at the first byte of row 0. Rows are Stride bytes apart and
// each carries Width elements of ElementSize bytes; anything between
// Width*ElementSize and Stride is alignment padding.
type Plane struct {
	Data        []byte
	Width       int
	Height      int
	Stride      int
	ElementSize int
}

// Surface is a native, possibly GPU-backed frame surface.
//
// Lock maps the surface for CPU reads and returns its planes in native order
// (luma before chroma for YCbCr). The returned unlock function must be
// called once the planes are no longer read.
type Surface interface {
	PixelFormat() PixelFormat
	Lock() (planes []Plane, unlock func(), err error)
}

// validate checks the plane geometry against the element size expected by the
// destination layout.
func (p Plane) validate(elemSize int) error {
	if p.Width <= 0 || p.Height <= 0 {
		return fmt.Errorf("bitmap: invalid plane size %dx%d", p.Width, p.Height)
	}
	if p.ElementSize != 0 && p.ElementSize != elemSize {
		return fmt.Errorf("bitmap: plane element size %d, layout expects %d", p.ElementSize, elemSize)
	}
	rowBytes := p.Width * elemSize
	if p.Stride < rowBytes {
		return fmt.Errorf("bitmap: stride %d shorter than row (%d bytes)", p.Stride, rowBytes)
	}
	need := p.Stride*(p.Height-1) + rowBytes
	if len(p.Data) < need {
		return fmt.Errorf("bitmap: plane holds %d bytes, geometry needs %d", len(p.Data), need)
	}
	return nil
}

// asBytes views an element slice as its backing bytes
func asBytes[T Element](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	var zero T
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*int(unsafe.Sizeof(zero)))
}

func sizeOf[T Element]() int {
	var zero T
	return int(unsafe.Sizeof(zero))
}

// copyPlane copies width*E bytes of every row into dst at offset y*width,
// skipping the row padding of the source.
func copyPlane[T Element](dst []T, p Plane) error {
	elemSize := sizeOf[T]()
	if err := p.validate(elemSize); err != nil {
		return err
	}
	if len(dst) < p.Width*p.Height {
		return fmt.Errorf("bitmap: destination holds %d elements, plane needs %d", len(dst), p.Width*p.Height)
	}

	out := asBytes(dst)
	rowBytes := p.Width * elemSize

	// Tightly packed source: one contiguous copy is equivalent
	if p.Stride == rowBytes {
		copy(out, p.Data[:rowBytes*p.Height])
		return nil
	}

	for y := 0; y < p.Height; y++ {
		src := p.Data[y*p.Stride : y*p.Stride+rowBytes]
		copy(out[y*rowBytes:], src)
	}
	return nil
}

// PlaneInfo describes one plane of a surface for diagnostics
type PlaneInfo struct {
	Index       int
	Width       int
	Height      int
	BytesPerRow int
	ElementSize int
}

// Describe reports the plane geometry of a surface without copying pixels
func Describe(s Surface) ([]PlaneInfo, error) {
	planes, unlock, err := s.Lock()
	if err != nil {
		return nil, &ExtractionError{Format: s.PixelFormat(), Plane: -1, Err: err}
	}
	defer unlock()

	infos := make([]PlaneInfo, 0, len(planes))
	for i, p := range planes {
		infos = append(infos, PlaneInfo{
			Index:       i,
			Width:       p.Width,
			Height:      p.Height,
			BytesPerRow: p.Stride,
			ElementSize: p.ElementSize,
		})
	}
	return infos, nil
}
