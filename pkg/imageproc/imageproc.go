// Package imageproc inspects a generated raster image and applies at most two
// corrective transforms before it is accepted as an asset payload: flattening
// transparency onto a white background, then boosting brightness and contrast
// when the image is too dark.
package imageproc

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/jpeg" // Register JPEG decoder
	"image/png"

	"golang.org/x/image/draw"
)

const (
	brightnessThreshold = 50.0 // mean luminance, 0-255 scale
	brightnessBoost     = 1.5
	contrastBoost       = 1.2
)

// Result is the accepted image artifact. Data is the original bytes when no
// transform tripped, otherwise a fresh PNG encoding; DisplayRef is a data URL
// for direct display.
type Result struct {
	Data       []byte
	DisplayRef string
	Flattened  bool
	Brightened bool
}

// Process runs both checks in fixed order on the decoded image. The input is
// never mutated; an untouched image passes through byte-identical. Decode or
// encode failure is a hard failure for the asset.
func Process(data []byte) (Result, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Result{}, fmt.Errorf("failed to decode image: %w", err)
	}

	res := Result{}

	// 1. Transparency: any pixel below full opacity gets the image
	// flattened onto opaque white.
	if HasTransparency(img) {
		img = FlattenWhite(img)
		res.Flattened = true
	}

	// 2. Brightness: measured on the possibly-flattened image.
	if MeanLuminance(img) < brightnessThreshold {
		img = AdjustBrightnessContrast(img, brightnessBoost, contrastBoost)
		res.Brightened = true
	}

	if !res.Flattened && !res.Brightened {
		res.Data = data
		res.DisplayRef = dataURL(format, data)
		return res, nil
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Result{}, fmt.Errorf("failed to encode corrected image: %w", err)
	}
	res.Data = buf.Bytes()
	res.DisplayRef = dataURL("png", res.Data)
	return res, nil
}

// HasTransparency scans the alpha channel for any pixel below full opacity.
func HasTransparency(img image.Image) bool {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if _, _, _, a := img.At(x, y).RGBA(); a < 0xffff {
				return true
			}
		}
	}
	return false
}

// FlattenWhite composites the image onto an opaque white background,
// producing a new image with no transparency.
func FlattenWhite(img image.Image) *image.NRGBA {
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
	return dst
}

// MeanLuminance returns the average perceptual luminance on a 0-255 scale
// (0.299 R + 0.587 G + 0.114 B over all pixels).
func MeanLuminance(img image.Image) float64 {
	b := img.Bounds()
	pixels := b.Dx() * b.Dy()
	if pixels == 0 {
		return 0
	}

	var total float64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			total += 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(bl>>8)
		}
	}
	return total / float64(pixels)
}

// AdjustBrightnessContrast multiplies each channel by brightness, then
// stretches contrast around the 128 midpoint, clamping to [0, 255]. Alpha is
// left alone. The input image is not modified.
func AdjustBrightnessContrast(img image.Image, brightness, contrast float64) *image.NRGBA {
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	// Copying through NRGBA unpremultiplies, so translucent pixels adjust
	// on their straight channel values.
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)

	for i := 0; i < len(dst.Pix); i += 4 {
		for c := 0; c < 3; c++ {
			f := float64(dst.Pix[i+c]) * brightness
			f = (f-128)*contrast + 128
			dst.Pix[i+c] = clamp(f)
		}
	}
	return dst
}

func clamp(f float64) uint8 {
	if f < 0 {
		return 0
	}
	if f > 255 {
		return 255
	}
	return uint8(f + 0.5)
}

func dataURL(format string, data []byte) string {
	mime := "image/" + format
	return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data))
}
