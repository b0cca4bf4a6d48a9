package video

import (
	"fmt"

	"github.com/e7canasta/screen-capture/bitmap"
)

// supportedFormats are the capture formats with a raw GStreamer equivalent
var supportedFormats = []bitmap.PixelFormat{
	bitmap.BGRA8888,
	bitmap.ARGB2101010,
	bitmap.V420,
	bitmap.F420,
}

// gstFormat maps a capture format onto a GstVideoFormat name
func gstFormat(f bitmap.PixelFormat) (string, bool) {
	switch f {
	case bitmap.BGRA8888:
		return "BGRA", true
	case bitmap.ARGB2101010:
		return "BGR10A2_LE", true
	case bitmap.V420, bitmap.F420:
		return "NV12", true
	default:
		return "", false
	}
}

// colorimetry pins the YCbCr range so V420 and F420 stay distinct
// (range:matrix:transfer:primaries; range 1 = 0-255, 2 = 16-235).
func colorimetry(f bitmap.PixelFormat) string {
	switch f {
	case bitmap.V420:
		return "2:3:5:1"
	case bitmap.F420:
		return "1:3:5:1"
	default:
		return ""
	}
}

// buildCaps builds the appsink caps string
//
// Width/height are omitted when zero (native size). Framerate:
//   - fps >= 1.0: framerate = fps/1 (e.g., 30 → 30/1)
//   - fps < 1.0: framerate = 1/(1/fps) (e.g., 0.5 → 1/2)
//   - fps == 0: unconstrained
func buildCaps(f bitmap.PixelFormat, width, height int, fps float64) (string, error) {
	name, ok := gstFormat(f)
	if !ok {
		return "", fmt.Errorf("no GStreamer format for %s", f)
	}

	caps := "video/x-raw,format=" + name
	if width > 0 && height > 0 {
		caps += fmt.Sprintf(",width=%d,height=%d", width, height)
	}
	if c := colorimetry(f); c != "" {
		caps += ",colorimetry=" + c
	}
	if fps > 0 {
		num, den := 1, 1
		if fps < 1.0 {
			den = int(1.0 / fps)
		} else {
			num = int(fps)
		}
		caps += fmt.Sprintf(",framerate=%d/%d", num, den)
	}
	return caps, nil
}

func roundUp2(n int) int { return (n + 1) &^ 1 }

func roundUp4(n int) int { return (n + 3) &^ 3 }

// planeGeom is one plane of a raw buffer in GStreamer's default layout
type planeGeom struct {
	offset      int
	width       int
	height      int
	stride      int
	elementSize int
}

// planeLayout computes plane offsets and strides of a tightly allocated raw
// video buffer, which rounds every row up to 4 bytes. NV12 luma is padded to
// an even number of rows and both planes share one stride.
func planeLayout(f bitmap.PixelFormat, width, height int) ([]planeGeom, int, error) {
	if width <= 0 || height <= 0 {
		return nil, 0, fmt.Errorf("invalid frame size %dx%d", width, height)
	}

	switch f {
	case bitmap.BGRA8888, bitmap.ARGB2101010:
		stride := width * 4
		return []planeGeom{{width: width, height: height, stride: stride, elementSize: 4}}, stride * height, nil

	case bitmap.V420, bitmap.F420:
		stride := roundUp4(width)
		lumaRows := roundUp2(height)
		luma := planeGeom{width: width, height: height, stride: stride, elementSize: 1}
		chroma := planeGeom{
			offset:      stride * lumaRows,
			width:       (width + 1) / 2,
			height:      lumaRows / 2,
			stride:      stride,
			elementSize: 2,
		}
		return []planeGeom{luma, chroma}, chroma.offset + stride*chroma.height, nil

	default:
		return nil, 0, fmt.Errorf("no plane layout for %s", f)
	}
}

// planesOf slices data into bitmap planes following layout
func planesOf(data []byte, layout []planeGeom) ([]bitmap.Plane, error) {
	planes := make([]bitmap.Plane, len(layout))
	for i, g := range layout {
		end := g.offset + g.stride*(g.height-1) + g.width*g.elementSize
		if end > len(data) {
			return nil, fmt.Errorf("plane %d needs %d bytes, buffer has %d", i, end, len(data))
		}
		planes[i] = bitmap.Plane{
			Data:        data[g.offset:],
			Width:       g.width,
			Height:      g.height,
			Stride:      g.stride,
			ElementSize: g.elementSize,
		}
	}
	return planes, nil
}
