package imaging

import "image"

// CorrectBrightness shifts the image brightness toward the target, with the
// adjustment bounded so correction never overshoots into the opposite fault.
func CorrectBrightness(img *image.RGBA, current, target, maxAdjustment float64) *image.RGBA {
	adjustment := target - current
	if adjustment > maxAdjustment {
		adjustment = maxAdjustment
	}
	if adjustment < -maxAdjustment {
		adjustment = -maxAdjustment
	}

	offset := adjustment * 255
	bounds := img.Bounds()
	out := image.NewRGBA(bounds)
	for i := 0; i < len(img.Pix); i += 4 {
		out.Pix[i] = clampByte(float64(img.Pix[i]) + offset)
		out.Pix[i+1] = clampByte(float64(img.Pix[i+1]) + offset)
		out.Pix[i+2] = clampByte(float64(img.Pix[i+2]) + offset)
		out.Pix[i+3] = img.Pix[i+3]
	}
	return out
}

// Enhance applies a sharpening pass followed by an auto-contrast stretch.
// Aggressiveness scales the sharpening strength; 1.0 is moderate.
func Enhance(img *image.RGBA, aggressiveness float64) *image.RGBA {
	return autoContrast(sharpen(img, 0.5*aggressiveness))
}

// sharpen boosts the 4-neighbor Laplacian response of each channel.
func sharpen(img *image.RGBA, strength float64) *image.RGBA {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	out := image.NewRGBA(bounds)
	copy(out.Pix, img.Pix)

	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			for c := range 3 {
				i := img.PixOffset(bounds.Min.X+x, bounds.Min.Y+y) + c
				center := float64(img.Pix[i])
				lap := 4*center -
					float64(img.Pix[img.PixOffset(bounds.Min.X+x-1, bounds.Min.Y+y)+c]) -
					float64(img.Pix[img.PixOffset(bounds.Min.X+x+1, bounds.Min.Y+y)+c]) -
					float64(img.Pix[img.PixOffset(bounds.Min.X+x, bounds.Min.Y+y-1)+c]) -
					float64(img.Pix[img.PixOffset(bounds.Min.X+x, bounds.Min.Y+y+1)+c])
				out.Pix[i] = clampByte(center + strength*lap)
			}
		}
	}
	return out
}

// autoContrast linearly stretches each channel so the 1st and 99th luma
// percentiles map to the full intensity range.
func autoContrast(img *image.RGBA) *image.RGBA {
	gray := grayscale(img)
	if len(gray) == 0 {
		return img
	}

	var hist [256]int
	for _, v := range gray {
		hist[clampByte(v)]++
	}

	total := len(gray)
	lowCount := total / 100
	highCount := total - total/100

	low, high := 0, 255
	cumulative := 0
	for i, c := range hist {
		cumulative += c
		if cumulative >= lowCount {
			low = i
			break
		}
	}
	cumulative = 0
	for i, c := range hist {
		cumulative += c
		if cumulative >= highCount {
			high = i
			break
		}
	}

	if high <= low {
		return img
	}

	scale := 255.0 / float64(high-low)
	out := image.NewRGBA(img.Bounds())
	for i := 0; i < len(img.Pix); i += 4 {
		out.Pix[i] = clampByte((float64(img.Pix[i]) - float64(low)) * scale)
		out.Pix[i+1] = clampByte((float64(img.Pix[i+1]) - float64(low)) * scale)
		out.Pix[i+2] = clampByte((float64(img.Pix[i+2]) - float64(low)) * scale)
		out.Pix[i+3] = img.Pix[i+3]
	}
	return out
}

func clampByte(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
