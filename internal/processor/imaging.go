package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/sami8890/Sam-pixels/internal/domain"
)

const (
	// MaxUpscaleFactor bounds the linear scale multiplier.
	MaxUpscaleFactor = 4

	// OutputJPEGQuality is used when re-encoding JPEG output.
	OutputJPEGQuality = 90

	watermarkMargin = 16
)

// imagingExecutor implements upscaling, crop-resize, and text watermarking
// locally via the imaging library. Background removal requires the external
// API and is delegated to a RemoveBG client.
type imagingExecutor struct {
	removeBG Executor
}

// NewImagingExecutor creates the default executor. removeBG handles
// background-removal operations; it may be nil, in which case those jobs
// fail with EINVALID.
func NewImagingExecutor(removeBG Executor) Executor {
	return &imagingExecutor{removeBG: removeBG}
}

func (e *imagingExecutor) Execute(ctx context.Context, op domain.OperationType, input []byte, settings json.RawMessage) (*Result, error) {
	const opName = "ImagingExecutor.Execute"

	if op == domain.OpBackgroundRemoval {
		if e.removeBG == nil {
			return nil, domain.Invalid(opName, "Background removal is not configured")
		}
		return e.removeBG.Execute(ctx, op, input, settings)
	}

	img, err := imaging.Decode(bytes.NewReader(input), imaging.AutoOrientation(true))
	if err != nil {
		return nil, domain.Wrap(err, domain.EINVALID, opName, "Failed to decode image")
	}
	bounds := img.Bounds()

	var out image.Image
	switch op {
	case domain.OpImageUpscaling:
		out, err = upscale(img, settings)
	case domain.OpCropResize:
		out, err = cropResize(img, settings)
	case domain.OpTextWatermark:
		out, err = watermark(img, settings)
	default:
		return nil, domain.Invalid(opName, fmt.Sprintf("Unsupported operation %q", op))
	}
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, imaging.PNG); err != nil {
		return nil, domain.Internal(err, opName, "Failed to encode result")
	}

	return &Result{
		Data:            buf.Bytes(),
		ContentType:     "image/png",
		OriginalWidth:   bounds.Dx(),
		OriginalHeight:  bounds.Dy(),
		ProcessedWidth:  out.Bounds().Dx(),
		ProcessedHeight: out.Bounds().Dy(),
	}, nil
}

func upscale(img image.Image, raw json.RawMessage) (image.Image, error) {
	const op = "ImagingExecutor.upscale"

	settings := UpscaleSettings{Factor: 2}
	if err := decodeSettings(raw, &settings); err != nil {
		return nil, domain.Wrap(err, domain.EINVALID, op, "Invalid upscale settings")
	}
	if settings.Factor < 2 || settings.Factor > MaxUpscaleFactor {
		return nil, domain.Invalid(op, fmt.Sprintf("Upscale factor must be between 2 and %d", MaxUpscaleFactor))
	}

	bounds := img.Bounds()
	return imaging.Resize(img, bounds.Dx()*settings.Factor, bounds.Dy()*settings.Factor, imaging.Lanczos), nil
}

func cropResize(img image.Image, raw json.RawMessage) (image.Image, error) {
	const op = "ImagingExecutor.cropResize"

	var settings CropResizeSettings
	if err := decodeSettings(raw, &settings); err != nil {
		return nil, domain.Wrap(err, domain.EINVALID, op, "Invalid crop settings")
	}
	if settings.Width <= 0 || settings.Height <= 0 {
		return nil, domain.Invalid(op, "Width and height must be positive")
	}

	if settings.Crop {
		return imaging.Fill(img, settings.Width, settings.Height, imaging.Center, imaging.Lanczos), nil
	}
	return imaging.Fit(img, settings.Width, settings.Height, imaging.Lanczos), nil
}

func watermark(img image.Image, raw json.RawMessage) (image.Image, error) {
	const op = "ImagingExecutor.watermark"

	settings := WatermarkSettings{Position: "bottom-right", Opacity: 0.5}
	if err := decodeSettings(raw, &settings); err != nil {
		return nil, domain.Wrap(err, domain.EINVALID, op, "Invalid watermark settings")
	}
	if settings.Text == "" {
		return nil, domain.Invalid(op, "Watermark text is required")
	}
	if settings.Opacity <= 0 || settings.Opacity > 1 {
		return nil, domain.Invalid(op, "Opacity must be between 0 and 1")
	}

	canvas := imaging.Clone(img)
	face := basicfont.Face7x13

	textWidth := font.MeasureString(face, settings.Text).Ceil()
	textHeight := face.Metrics().Height.Ceil()

	x, y := watermarkOrigin(settings.Position, canvas.Bounds(), textWidth, textHeight)

	alpha := uint8(settings.Opacity * 255)
	drawer := &font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(color.NRGBA{R: 255, G: 255, B: 255, A: alpha}),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	drawer.DrawString(settings.Text)

	return canvas, nil
}

// watermarkOrigin returns the baseline origin for the watermark text.
func watermarkOrigin(position string, bounds image.Rectangle, textWidth, textHeight int) (int, int) {
	w, h := bounds.Dx(), bounds.Dy()
	switch position {
	case "top-left":
		return watermarkMargin, watermarkMargin + textHeight
	case "top-right":
		return w - textWidth - watermarkMargin, watermarkMargin + textHeight
	case "bottom-left":
		return watermarkMargin, h - watermarkMargin
	case "center":
		return (w - textWidth) / 2, h / 2
	default: // bottom-right
		return w - textWidth - watermarkMargin, h - watermarkMargin
	}
}

func decodeSettings(raw json.RawMessage, dst interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}
