package bitmap

import (
	"fmt"
	"strings"

	"github.com/x448/float16"
)

// PixelFormat identifies the memory layout of a native capture surface
type PixelFormat int

const (
	// FormatUnknown is the zero value and never a valid capture format
	FormatUnknown PixelFormat = iota
	// BGRA8888 is one plane of 8-bit B, G, R, A
	BGRA8888
	// ARGB2101010 is one plane of packed 10-10-10-2 pixels (one uint32 each)
	ARGB2101010
	// V420 is bi-planar YCbCr 4:2:0 in video range (luma 16-240)
	V420
	// F420 is bi-planar YCbCr 4:2:0 in full range (luma 0-255)
	F420
	// RGBAF16 is one plane of half-float R, G, B, A
	RGBAF16
)

// String returns the canonical lower-case name of the format
func (f PixelFormat) String() string {
	switch f {
	case BGRA8888:
		return "bgra8888"
	case ARGB2101010:
		return "argb2101010"
	case V420:
		return "v420"
	case F420:
		return "f420"
	case RGBAF16:
		return "rgbaf16"
	default:
		return "unknown"
	}
}

// ParsePixelFormat parses a format name as returned by PixelFormat.String
func ParsePixelFormat(s string) (PixelFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bgra8888", "bgra":
		return BGRA8888, nil
	case "argb2101010", "argb10":
		return ARGB2101010, nil
	case "v420", "nv12":
		return V420, nil
	case "f420":
		return F420, nil
	case "rgbaf16":
		return RGBAF16, nil
	default:
		return FormatUnknown, fmt.Errorf("bitmap: unknown pixel format %q", s)
	}
}

// IsYCbCr reports whether the format is bi-planar luma + interleaved chroma
func (f PixelFormat) IsYCbCr() bool {
	return f == V420 || f == F420
}

// PlaneCount returns the number of planes a surface of this format carries
func (f PixelFormat) PlaneCount() int {
	switch f {
	case BGRA8888, ARGB2101010, RGBAF16:
		return 1
	case V420, F420:
		return 2
	default:
		return 0
	}
}

// VideoRange is the mapping of YCbCr sample values to brightness
type VideoRange int

const (
	// RangeVideo is limited range: luma [16,235], chroma [16,240]
	RangeVideo VideoRange = iota
	// RangeFull is full range: luma [0,255]
	RangeFull
)

func (r VideoRange) String() string {
	if r == RangeFull {
		return "full"
	}
	return "video"
}

// rangeOf selects the video range tag from the originating YCbCr format
func rangeOf(f PixelFormat) VideoRange {
	if f == F420 {
		return RangeFull
	}
	return RangeVideo
}

// Element types stored by the pools. All are plain values without padding,
// so a []T can be viewed as raw bytes for the row copy.
type (
	// BGRA is one 8-bit-per-channel pixel in B, G, R, A order
	BGRA = [4]uint8
	// CbCr is one interleaved chroma sample pair
	CbCr = [2]uint8
	// RGBAHalf is one half-float pixel in R, G, B, A order
	RGBAHalf = [4]float16.Float16
)

// Element is the set of per-pixel storage types a plane can hold
type Element interface {
	~uint8 | ~uint32 | ~[2]uint8 | ~[4]uint8 | ~[4]float16.Float16
}
