package renderer

import (
	"context"
	"fmt"
)

// ProgressFunc receives ordered stage updates while a render runs.
type ProgressFunc func(stage, message string)

// Engine is the boundary to the external rendering toolchain.
type Engine interface {
	// Render produces a video artifact from validated scene code and returns
	// the artifact path. Progress callbacks are invoked in emission order.
	Render(ctx context.Context, code string, opts RenderOptions, progress ProgressFunc) (string, error)
}

// RenderOptions mirrors what the CLI accepts.
type RenderOptions struct {
	Format          string // mp4 | webm | gif | mov
	Quality         string // low | medium | high | 4k
	BackgroundColor string
}

// QualityPreset maps a named preset onto the CLI quality flag.
type QualityPreset struct {
	Flag       string
	Resolution string
	FrameRate  int
}

var QualityPresets = map[string]QualityPreset{
	"low":    {Flag: "l", Resolution: "854x480", FrameRate: 15},
	"medium": {Flag: "m", Resolution: "1280x720", FrameRate: 30},
	"high":   {Flag: "h", Resolution: "1920x1080", FrameRate: 60},
	"4k":     {Flag: "k", Resolution: "3840x2160", FrameRate: 60},
}

var supportedFormats = map[string]string{
	"mp4":  "video/mp4",
	"webm": "video/webm",
	"gif":  "image/gif",
	"mov":  "video/quicktime",
}

// ContentType returns the media type for a supported output format.
func ContentType(format string) (string, bool) {
	ct, ok := supportedFormats[format]
	return ct, ok
}

// ValidateOptions normalizes and checks render options, applying defaults.
func ValidateOptions(opts *RenderOptions) error {
	if opts.Format == "" {
		opts.Format = "mp4"
	}
	if opts.Quality == "" {
		opts.Quality = "medium"
	}
	if _, ok := supportedFormats[opts.Format]; !ok {
		return fmt.Errorf("unsupported output format: %s", opts.Format)
	}
	if _, ok := QualityPresets[opts.Quality]; !ok {
		return fmt.Errorf("unsupported quality preset: %s", opts.Quality)
	}
	return nil
}
