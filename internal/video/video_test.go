package video

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/e7canasta/screen-capture/bitmap"
	"github.com/e7canasta/screen-capture/internal/native"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		msg, debug string
		want       ErrorCategory
	}{
		{"Could not open display :5", "ximagesrc.c(123)", ErrCategoryResource},
		{"Internal data stream error.", "streaming stopped, reason not-negotiated", ErrCategoryFormat},
		{"BadWindow (invalid Window parameter)", "", ErrCategoryEnded},
		{"stream error", "pipewire node removed", ErrCategoryEnded},
		{"Permission denied", "portal session revoked", ErrCategoryPermission},
		{"something odd", "", ErrCategoryUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.want.String()+"/"+tt.msg, func(t *testing.T) {
			if got := classify(tt.msg, tt.debug); got != tt.want {
				t.Errorf("classify(%q, %q) = %s, want %s", tt.msg, tt.debug, got, tt.want)
			}
		})
	}

	if got := ClassifyGStreamerError(nil); got != ErrCategoryUnknown {
		t.Errorf("nil GError classified as %s", got)
	}
}

func TestPipelineError_Ended(t *testing.T) {
	ended := &PipelineError{category: ErrCategoryEnded, Message: "window closed"}
	if !errors.Is(ended, native.ErrStreamStopped) {
		t.Error("ended pipeline error should match ErrStreamStopped")
	}
	if ended.Category() != "ended" {
		t.Errorf("Category() = %q", ended.Category())
	}

	format := &PipelineError{category: ErrCategoryFormat, Message: "not negotiated", Warning: true}
	if errors.Is(format, native.ErrStreamStopped) {
		t.Error("format error must not end the stream")
	}
	if !strings.Contains(format.Error(), "warning [format]") {
		t.Errorf("Error() = %q", format.Error())
	}

	halted := endedError{format}
	if !errors.Is(halted, native.ErrStreamStopped) {
		t.Error("halted pipeline should match ErrStreamStopped")
	}
	var perr *PipelineError
	if !errors.As(halted, &perr) || perr != format {
		t.Error("halted pipeline should unwrap to its cause")
	}
}

func TestBuildCaps(t *testing.T) {
	tests := []struct {
		name    string
		format  bitmap.PixelFormat
		w, h    int
		fps     float64
		want    string
		wantErr bool
	}{
		{"bgra native", bitmap.BGRA8888, 0, 0, 0, "video/x-raw,format=BGRA", false},
		{"bgra sized", bitmap.BGRA8888, 1280, 720, 30, "video/x-raw,format=BGRA,width=1280,height=720,framerate=30/1", false},
		{"packed 10-bit", bitmap.ARGB2101010, 640, 480, 0, "video/x-raw,format=BGR10A2_LE,width=640,height=480", false},
		{"video range", bitmap.V420, 0, 0, 0.5, "video/x-raw,format=NV12,colorimetry=2:3:5:1,framerate=1/2", false},
		{"full range", bitmap.F420, 320, 240, 0, "video/x-raw,format=NV12,width=320,height=240,colorimetry=1:3:5:1", false},
		{"half float", bitmap.RGBAF16, 0, 0, 0, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildCaps(tt.format, tt.w, tt.h, tt.fps)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("caps = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPlaneLayout(t *testing.T) {
	tests := []struct {
		name     string
		format   bitmap.PixelFormat
		w, h     int
		wantSize int
		want     []planeGeom
	}{
		{
			name: "bgra", format: bitmap.BGRA8888, w: 3, h: 2, wantSize: 24,
			want: []planeGeom{{width: 3, height: 2, stride: 12, elementSize: 4}},
		},
		{
			name: "nv12 odd size", format: bitmap.V420, w: 5, h: 3, wantSize: 48,
			want: []planeGeom{
				{width: 5, height: 3, stride: 8, elementSize: 1},
				{offset: 32, width: 3, height: 2, stride: 8, elementSize: 2},
			},
		},
		{
			name: "nv12 odd height", format: bitmap.V420, w: 6, h: 5, wantSize: 72,
			want: []planeGeom{
				{width: 6, height: 5, stride: 8, elementSize: 1},
				{offset: 48, width: 3, height: 3, stride: 8, elementSize: 2},
			},
		},
		{
			name: "nv12 aligned", format: bitmap.F420, w: 8, h: 4, wantSize: 48,
			want: []planeGeom{
				{width: 8, height: 4, stride: 8, elementSize: 1},
				{offset: 32, width: 4, height: 2, stride: 8, elementSize: 2},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, size, err := planeLayout(tt.format, tt.w, tt.h)
			if err != nil {
				t.Fatalf("planeLayout: %v", err)
			}
			if size != tt.wantSize {
				t.Errorf("size = %d, want %d", size, tt.wantSize)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d planes, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("plane %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}

	if _, _, err := planeLayout(bitmap.BGRA8888, 0, 10); err == nil {
		t.Error("expected error for empty frame")
	}
}

func TestFrameSurface_ExtractsWithoutPadding(t *testing.T) {
	const w, h = 5, 3
	layout, size, err := planeLayout(bitmap.V420, w, h)
	if err != nil {
		t.Fatal(err)
	}

	data := make([]byte, size)
	for i := range data {
		data[i] = 0xEE // padding sentinel
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			data[y*layout[0].stride+x] = byte(y*w + x)
		}
	}
	c := layout[1]
	for y := 0; y < c.height; y++ {
		for x := 0; x < c.width*2; x++ {
			data[c.offset+y*c.stride+x] = byte(100 + y*c.width*2 + x)
		}
	}

	surface := &frameSurface{format: bitmap.V420, layout: layout, data: data}
	bm, err := bitmap.Extract(surface)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	defer bm.Release()

	yc, ok := bm.(*bitmap.YCbCrBitmap)
	if !ok {
		t.Fatalf("got %T, want *bitmap.YCbCrBitmap", bm)
	}
	if yc.Range != bitmap.RangeVideo {
		t.Errorf("range = %v, want video", yc.Range)
	}
	for i, v := range yc.Luma.Pix() {
		if v != byte(i) {
			t.Fatalf("luma[%d] = %#x, want %#x", i, v, byte(i))
		}
	}
	for i, cbcr := range yc.Chroma.Pix() {
		if cbcr[0] != byte(100+2*i) || cbcr[1] != byte(101+2*i) {
			t.Fatalf("chroma[%d] = %v", i, cbcr)
		}
	}

	surface.release()
	if _, err := bitmap.Extract(surface); !errors.Is(err, bitmap.ErrSurfaceReleased) {
		t.Errorf("extract after release: %v, want ErrSurfaceReleased", err)
	}
}

func TestCheckBufferSize(t *testing.T) {
	_, size, err := planeLayout(bitmap.V420, 5, 3)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name             string
		have, negotiated int
		wantErr          bool
	}{
		{"matches negotiated layout", 48, 48, false},
		{"caps without video info", 48, 0, false},
		{"layout disagrees with caps", 48, 40, true},
		{"short buffer", 40, 48, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkBufferSize(tt.have, size, tt.negotiated, 5, 3, bitmap.V420)
			if (err != nil) != tt.wantErr {
				t.Errorf("checkBufferSize() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPlanesOf_ShortBuffer(t *testing.T) {
	layout, size, _ := planeLayout(bitmap.BGRA8888, 4, 4)
	if _, err := planesOf(make([]byte, size-1), layout); err == nil {
		t.Error("expected error for short buffer")
	}
}

func TestCropMargins(t *testing.T) {
	base := native.VideoConfig{TargetWidth: 1920, TargetHeight: 1080}

	full := base
	full.SourceWidth, full.SourceHeight = 1920, 1080
	if _, _, _, _, ok := cropMargins(full); ok {
		t.Error("full-target source rect should not crop")
	}

	region := base
	region.SourceX, region.SourceY = 100, 50
	region.SourceWidth, region.SourceHeight = 800, 600
	l, top, r, b, ok := cropMargins(region)
	if !ok || l != 100 || top != 50 || r != 1020 || b != 430 {
		t.Errorf("cropMargins = %d,%d,%d,%d,%v", l, top, r, b, ok)
	}

	outside := base
	outside.SourceX, outside.SourceWidth, outside.SourceHeight = 1900, 100, 100
	if _, _, _, _, ok := cropMargins(outside); ok {
		t.Error("rect outside target should not crop")
	}
}

func TestOutputSize(t *testing.T) {
	cfg := native.VideoConfig{SourceWidth: 1920, SourceHeight: 1080, Width: 960, Height: 540}
	if outputWidth(cfg) != 1920 || outputHeight(cfg) != 1080 {
		t.Errorf("without ScaleToFit frames keep the source size, got %dx%d", outputWidth(cfg), outputHeight(cfg))
	}
	cfg.ScaleToFit = true
	if outputWidth(cfg) != 960 || outputHeight(cfg) != 540 {
		t.Errorf("ScaleToFit output = %dx%d", outputWidth(cfg), outputHeight(cfg))
	}
	if dpi := frameDPI(960, 1920); dpi != 48 {
		t.Errorf("frameDPI = %v, want 48", dpi)
	}
	if dpi := frameDPI(960, 0); dpi != baseDPI {
		t.Errorf("frameDPI without source = %v", dpi)
	}
}

func TestIdleWatch(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	w := &idleWatch{timeout: time.Second, since: start.UnixNano()}
	last := start.UnixNano()

	if w.check(last, start.Add(500*time.Millisecond)) {
		t.Error("idle before timeout")
	}
	if !w.check(last, start.Add(1100*time.Millisecond)) {
		t.Error("expected idle after timeout")
	}
	if w.check(last, start.Add(5*time.Second)) {
		t.Error("idle must fire once per gap")
	}

	// a new sample starts a new gap
	last = start.Add(6 * time.Second).UnixNano()
	if w.check(last, start.Add(6500*time.Millisecond)) {
		t.Error("idle right after a sample")
	}
	if !w.check(last, start.Add(7100*time.Millisecond)) {
		t.Error("expected idle for the second gap")
	}

	disabled := &idleWatch{}
	if disabled.check(0, start.Add(time.Hour)) {
		t.Error("zero timeout disables idle")
	}
}
