package main

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	screencapture "github.com/e7canasta/screen-capture"
	"github.com/e7canasta/screen-capture/bitmap"
	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"
)

// frameSaver writes retained frames to disk off the stream callback.
// When the queue is full new frames are dropped, never the callback blocked.
type frameSaver struct {
	dir        string
	format     string
	quality    int
	scaleWidth int
	pool       *bitmap.Pool

	frames chan *screencapture.VideoFrame
	wg     sync.WaitGroup

	saved   atomic.Int64
	failed  atomic.Int64
	dropped atomic.Int64
}

func newFrameSaver(dir, format string, quality, scaleWidth int, pool *bitmap.Pool) (*frameSaver, error) {
	switch format {
	case "png", "jpeg", "bmp", "tiff":
	default:
		return nil, fmt.Errorf("invalid image format: %s (must be png, jpeg, bmp or tiff)", format)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	s := &frameSaver{
		dir:        dir,
		format:     format,
		quality:    quality,
		scaleWidth: scaleWidth,
		pool:       pool,
		frames:     make(chan *screencapture.VideoFrame, 4),
	}
	s.wg.Add(1)
	go s.run()
	return s, nil
}

// offer queues a frame; called from the stream callback
func (s *frameSaver) offer(f *screencapture.VideoFrame) {
	if !f.Retain() {
		return
	}
	select {
	case s.frames <- f:
	default:
		f.Release()
		s.dropped.Add(1)
	}
}

func (s *frameSaver) run() {
	defer s.wg.Done()
	for f := range s.frames {
		if err := s.save(f); err != nil {
			slog.Error("Failed to save frame", "error", err, "frame_id", f.FrameID())
			s.failed.Add(1)
		} else {
			s.saved.Add(1)
		}
		f.Release()
	}
}

// close waits for queued frames; no offer may follow
func (s *frameSaver) close() {
	close(s.frames)
	s.wg.Wait()
}

func (s *frameSaver) save(f *screencapture.VideoFrame) error {
	bm, err := f.PooledBitmap(s.pool)
	if err != nil {
		return fmt.Errorf("failed to extract bitmap: %w", err)
	}
	defer bm.Release()

	img, err := bitmap.ToImage(bm)
	if err != nil {
		return err
	}
	if s.scaleWidth > 0 && s.scaleWidth < img.Bounds().Dx() {
		img = scaleToWidth(img, s.scaleWidth)
	}

	filename := fmt.Sprintf("frame_%06d_%s.%s", f.FrameID(), f.CaptureTime().Format("20060102_150405.000"), s.format)
	path := filepath.Join(s.dir, filename)

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	switch s.format {
	case "png":
		err = png.Encode(file, img)
	case "jpeg":
		err = jpeg.Encode(file, img, &jpeg.Options{Quality: s.quality})
	case "bmp":
		err = bmp.Encode(file, img)
	case "tiff":
		err = tiff.Encode(file, img, &tiff.Options{Compression: tiff.Deflate})
	}
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", s.format, err)
	}
	return nil
}

// scaleToWidth resizes img to width, keeping the aspect ratio
func scaleToWidth(img image.Image, width int) image.Image {
	b := img.Bounds()
	height := b.Dy() * width / b.Dx()
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
