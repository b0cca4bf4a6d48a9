package video

import (
	"fmt"
	"log/slog"

	"github.com/e7canasta/screen-capture/internal/native"
	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

// PipelineElements holds references to the elements needed after creation
type PipelineElements struct {
	Pipeline   *gst.Pipeline
	Source     *gst.Element
	AppSink    *app.Sink
	CapsFilter *gst.Element
	Caps       string
}

// sourceKind names the capture element used for a config
func sourceKind(cfg native.VideoConfig) string {
	if cfg.PipeWireFD >= 0 {
		return "pipewiresrc"
	}
	return "ximagesrc"
}

// CreatePipeline creates and configures a capture pipeline
//
// Pipeline structure:
//
//	ximagesrc|pipewiresrc → [videocrop] → videoconvert → videoscale →
//	[videorate] → capsfilter → appsink
//
// The pipeline is configured but NOT started (state remains NULL).
func CreatePipeline(cfg native.VideoConfig) (*PipelineElements, error) {
	gst.Init(nil)

	capsStr, err := buildCaps(cfg.PixelFormat, outputWidth(cfg), outputHeight(cfg), cfg.MaximumFPS)
	if err != nil {
		return nil, err
	}

	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	var source, crop *gst.Element
	switch sourceKind(cfg) {
	case "pipewiresrc":
		source, crop, err = newPipeWireSource(cfg)
	default:
		source, err = newXImageSource(cfg)
	}
	if err != nil {
		return nil, err
	}

	converter, err := gst.NewElement("videoconvert")
	if err != nil {
		return nil, fmt.Errorf("failed to create videoconvert: %w", err)
	}
	converter.SetProperty("n-threads", 0) // 0 = auto-detect cores
	converter.SetProperty("dither", 0)

	scaler, err := gst.NewElement("videoscale")
	if err != nil {
		return nil, fmt.Errorf("failed to create videoscale: %w", err)
	}
	scaler.SetProperty("add-borders", cfg.KeepAspect)

	var videorate *gst.Element
	if cfg.MaximumFPS > 0 {
		videorate, err = gst.NewElement("videorate")
		if err != nil {
			return nil, fmt.Errorf("failed to create videorate: %w", err)
		}
		videorate.SetProperty("drop-only", true)     // Only drop frames, never duplicate
		videorate.SetProperty("skip-to-first", true) // Skip to first frame on start
	}

	capsfilter, err := gst.NewElement("capsfilter")
	if err != nil {
		return nil, fmt.Errorf("failed to create capsfilter: %w", err)
	}
	capsfilter.SetProperty("caps", gst.NewCapsFromString(capsStr))

	appsink, err := app.NewAppSink()
	if err != nil {
		return nil, fmt.Errorf("failed to create appsink: %w", err)
	}
	appsink.SetProperty("sync", false)
	appsink.SetProperty("max-buffers", uint(cfg.QueueDepth))
	appsink.SetProperty("drop", true) // Drop oldest when the queue is full
	appsink.SetProperty("qos", true)

	chain := []*gst.Element{source}
	if crop != nil {
		chain = append(chain, crop)
	}
	chain = append(chain, converter, scaler)
	if videorate != nil {
		chain = append(chain, videorate)
	}
	chain = append(chain, capsfilter, appsink.Element)

	if err := pipeline.AddMany(chain...); err != nil {
		return nil, fmt.Errorf("failed to add pipeline elements: %w", err)
	}
	if err := gst.ElementLinkMany(chain...); err != nil {
		return nil, fmt.Errorf("failed to link pipeline elements: %w", err)
	}

	slog.Info("gst: capture pipeline created",
		"source", sourceKind(cfg),
		"caps", capsStr,
		"crop", crop != nil,
		"rate_limit", videorate != nil,
		"queue_depth", cfg.QueueDepth,
	)

	return &PipelineElements{
		Pipeline:   pipeline,
		Source:     source,
		AppSink:    appsink,
		CapsFilter: capsfilter,
		Caps:       capsStr,
	}, nil
}

func newXImageSource(cfg native.VideoConfig) (*gst.Element, error) {
	src, err := gst.NewElement("ximagesrc")
	if err != nil {
		return nil, fmt.Errorf("failed to create ximagesrc: %w", err)
	}
	if cfg.DisplayName != "" {
		src.SetProperty("display-name", cfg.DisplayName)
	}
	if cfg.Kind == native.TargetWindow {
		src.SetProperty("xid", cfg.TargetID)
	}
	src.SetProperty("show-pointer", cfg.ShowCursor)
	src.SetProperty("use-damage", false)

	// Region in root coordinates for displays, window coordinates for windows.
	// endx/endy are inclusive.
	if cfg.SourceWidth > 0 && cfg.SourceHeight > 0 {
		x, y := cfg.SourceX, cfg.SourceY
		if cfg.Kind == native.TargetDisplay {
			x += cfg.OriginX
			y += cfg.OriginY
		}
		src.SetProperty("startx", uint(x))
		src.SetProperty("starty", uint(y))
		src.SetProperty("endx", uint(x+cfg.SourceWidth-1))
		src.SetProperty("endy", uint(y+cfg.SourceHeight-1))
	}
	return src, nil
}

func newPipeWireSource(cfg native.VideoConfig) (*gst.Element, *gst.Element, error) {
	src, err := gst.NewElement("pipewiresrc")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create pipewiresrc: %w", err)
	}
	src.SetProperty("fd", cfg.PipeWireFD)
	src.SetProperty("path", fmt.Sprint(cfg.PipeWireNode))
	src.SetProperty("do-timestamp", true)
	src.SetProperty("always-copy", true)

	left, top, right, bottom, ok := cropMargins(cfg)
	if !ok {
		return src, nil, nil
	}
	crop, err := gst.NewElement("videocrop")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create videocrop: %w", err)
	}
	crop.SetProperty("left", left)
	crop.SetProperty("top", top)
	crop.SetProperty("right", right)
	crop.SetProperty("bottom", bottom)
	return src, crop, nil
}

// cropMargins converts the source rect into videocrop margins; ok is false
// when the rect covers the whole target or the target size is unknown.
func cropMargins(cfg native.VideoConfig) (left, top, right, bottom int, ok bool) {
	if cfg.SourceWidth <= 0 || cfg.SourceHeight <= 0 || cfg.TargetWidth <= 0 || cfg.TargetHeight <= 0 {
		return 0, 0, 0, 0, false
	}
	left, top = cfg.SourceX, cfg.SourceY
	right = cfg.TargetWidth - cfg.SourceX - cfg.SourceWidth
	bottom = cfg.TargetHeight - cfg.SourceY - cfg.SourceHeight
	if left < 0 || top < 0 || right < 0 || bottom < 0 {
		return 0, 0, 0, 0, false
	}
	if left == 0 && top == 0 && right == 0 && bottom == 0 {
		return 0, 0, 0, 0, false
	}
	return left, top, right, bottom, true
}

// outputWidth is the negotiated frame width; without ScaleToFit frames keep
// the source size.
func outputWidth(cfg native.VideoConfig) int {
	if cfg.ScaleToFit && cfg.Width > 0 {
		return cfg.Width
	}
	return cfg.SourceWidth
}

func outputHeight(cfg native.VideoConfig) int {
	if cfg.ScaleToFit && cfg.Height > 0 {
		return cfg.Height
	}
	return cfg.SourceHeight
}

// DestroyPipeline sets the pipeline to NULL, releasing all resources.
// Safe to call with nil elements.
func DestroyPipeline(elements *PipelineElements) error {
	if elements == nil || elements.Pipeline == nil {
		return nil
	}
	if err := elements.Pipeline.SetState(gst.StateNull); err != nil {
		return fmt.Errorf("failed to set pipeline to NULL: %w", err)
	}
	return nil
}

// checkElementAvailable verifies a GStreamer plugin element can be created
func checkElementAvailable(name string) error {
	gst.Init(nil)

	elem, err := gst.NewElement(name)
	if err != nil {
		return fmt.Errorf("%s not available or GStreamer not properly installed: %w", name, err)
	}
	elem.SetState(gst.StateNull)
	return nil
}
