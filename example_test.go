package screencapture_test

import (
	"context"
	"fmt"
	"log"
	"time"

	screencapture "github.com/e7canasta/screen-capture"
	"github.com/e7canasta/screen-capture/bitmap"
)

func ExampleNew() {
	token, ok := screencapture.TestAccess()
	if !ok {
		var err error
		token, err = screencapture.RequestAccess(context.Background(), screencapture.AccessOptions{})
		if err != nil {
			log.Fatal(err)
		}
	}
	defer token.Release()

	display := screencapture.Display{
		Name: ":0",
		Rect: screencapture.Rect{Size: screencapture.Size{Width: 1920, Height: 1080}},
	}
	cfg := screencapture.NewDisplayConfig(display, screencapture.BGRA8888).WithAccess(token)

	stream, err := screencapture.New(cfg, func(event screencapture.StreamEvent, err error) {
		if err != nil {
			log.Printf("stream error: %v", err)
			return
		}
		if ev, ok := event.(screencapture.VideoEvent); ok {
			fmt.Println("frame", ev.Frame.FrameID(), ev.Frame.Size())
		}
	})
	if err != nil {
		log.Fatal(err)
	}

	time.Sleep(time.Second)
	stream.Stop()
	<-stream.Done()
}

func ExampleVideoFrame_TryPooledBitmap() {
	pool := bitmap.NewPoolWithInitialCapacity(3, 1280, 720, 6, screencapture.V420)

	onFrame := func(frame *screencapture.VideoFrame) {
		bm, err := frame.TryPooledBitmap(pool)
		if err != nil {
			log.Printf("extract: %v", err)
			return
		}
		if bm == nil {
			return // every buffer is in use; skip this frame
		}
		defer bm.Release()

		if ycbcr, ok := bm.(*bitmap.YCbCrBitmap); ok {
			fmt.Println(ycbcr.LumaWidth, ycbcr.ChromaWidth, ycbcr.Range)
		}
	}
	_ = onFrame
}

func ExampleParseConfig() {
	cfg, err := screencapture.ParseConfig([]byte(`
target:
  kind: display
  name: ":0"
  width: 1280
  height: 720
pixel_format: bgra8888
maximum_fps: 15
`))
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(cfg.Target.Kind(), cfg.PixelFormat, cfg.OutputSize, cfg.BufferCount)
	// Output: display bgra8888 1280x720 3
}
