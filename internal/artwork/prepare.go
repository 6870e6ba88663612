package artwork

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg" // JPEG format support
	_ "image/png"  // PNG format support

	"github.com/disintegration/imaging"
)

// Prepare turns raw cover art bytes into a square 1-bit thumbnail suitable
// for an e-paper panel: fill-cropped to size, grayscaled, then
// Floyd-Steinberg dithered down to pure black and white.
func Prepare(data []byte, size int) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return nil, fmt.Errorf("invalid image dimensions: %dx%d", bounds.Dx(), bounds.Dy())
	}

	square := imaging.Fill(img, size, size, imaging.Center, imaging.Lanczos)
	gray := imaging.Grayscale(square)

	dithered := image.NewPaletted(gray.Bounds(), color.Palette{color.White, color.Black})
	draw.FloydSteinberg.Draw(dithered, gray.Bounds(), gray, gray.Bounds().Min)

	return dithered, nil
}
