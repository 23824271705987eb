// Package processor executes image transformations.
//
// Executors take decoded job parameters and raw image bytes and return the
// processed image. The worker owns orchestration (storage, status, usage
// recording); executors only transform pixels.
package processor

import (
	"context"
	"encoding/json"

	"github.com/sami8890/Sam-pixels/internal/domain"
)

// Result is the output of one transformation.
type Result struct {
	// Data is the processed image, encoded.
	Data []byte

	// ContentType of Data, e.g. "image/png".
	ContentType string

	OriginalWidth   int
	OriginalHeight  int
	ProcessedWidth  int
	ProcessedHeight int
}

// Executor runs one image operation.
type Executor interface {
	// Execute transforms input according to the operation type and its
	// JSON settings. Settings may be nil when the operation takes no
	// parameters.
	Execute(ctx context.Context, op domain.OperationType, input []byte, settings json.RawMessage) (*Result, error)
}

// UpscaleSettings are the parameters for image-upscaling jobs.
type UpscaleSettings struct {
	// Factor is the linear scale multiplier, 2 to 4. Defaults to 2.
	Factor int `json:"factor"`
}

// CropResizeSettings are the parameters for crop-resize jobs.
type CropResizeSettings struct {
	Width  int `json:"width"`
	Height int `json:"height"`

	// Crop trims to the exact aspect ratio before resizing; otherwise the
	// image is fit within the box preserving aspect ratio.
	Crop bool `json:"crop"`
}

// WatermarkSettings are the parameters for text-watermark jobs.
type WatermarkSettings struct {
	Text string `json:"text"`

	// Position is one of "top-left", "top-right", "bottom-left",
	// "bottom-right", "center". Defaults to "bottom-right".
	Position string `json:"position"`

	// Opacity is 0.0 to 1.0. Defaults to 0.5.
	Opacity float64 `json:"opacity"`
}
