// Package imaging implements the image quality gate: frame decoding,
// brightness and blur measurement, automatic repair and the canonical resize
// every later pipeline stage works from.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

// Decode decodes raw frame bytes into an RGBA image.
func Decode(data []byte) (*image.RGBA, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return toRGBA(img), nil
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	bounds := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Copy(dst, image.Point{}, img, bounds, draw.Over, nil)
	return dst
}

// grayscale converts an image to a row-major slice of luma values (0-255).
func grayscale(img *image.RGBA) []float64 {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	gray := make([]float64, width*height)
	for y := range height {
		for x := range width {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			// ITU-R BT.601 luma formula.
			gray[y*width+x] = 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
		}
	}
	return gray
}

// Brightness returns the mean grayscale intensity of the image, normalized to [0,1].
func Brightness(img *image.RGBA) float64 {
	gray := grayscale(img)
	if len(gray) == 0 {
		return 0
	}
	var sum float64
	for _, v := range gray {
		sum += v
	}
	return sum / float64(len(gray)) / 255.0
}

// BlurResult holds the Laplacian sharpness measurement of a frame.
type BlurResult struct {
	// Variance of the Laplacian response; higher means sharper.
	Variance float64
	// Score is Variance mapped to [0,1] via min(1, variance/500).
	Score float64
}

// DetectBlur measures image sharpness as the variance of a 4-neighbor
// Laplacian over the grayscale frame.
func DetectBlur(img *image.RGBA) BlurResult {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	gray := grayscale(img)

	if width < 3 || height < 3 {
		return BlurResult{}
	}

	n := 0
	var sum, sumSq float64
	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			c := gray[y*width+x]
			lap := 4*c - gray[y*width+x-1] - gray[y*width+x+1] - gray[(y-1)*width+x] - gray[(y+1)*width+x]
			if lap < 0 {
				lap = -lap
			}
			sum += lap
			sumSq += lap * lap
			n++
		}
	}

	mean := sum / float64(n)
	variance := sumSq/float64(n) - mean*mean
	if variance < 0 {
		variance = 0
	}

	return BlurResult{
		Variance: variance,
		Score:    min(1, variance/500),
	}
}
