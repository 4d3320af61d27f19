package detect

import (
	"fmt"
	"math"

	"github.com/attendly/facegate/internal/geometry"
	"github.com/attendly/facegate/internal/inference"
)

const (
	inputSize      = 640
	anchorsPerCell = 2
)

// Detection head strides, smallest first. Each stride contributes one
// score tensor, one box tensor and optionally one landmark tensor.
var strides = []int{8, 16, 32}

// rawFace is a decoded candidate in detection-input pixels.
type rawFace struct {
	box       geometry.DetectionBox
	score     float64
	landmarks *[5]geometry.DetectionPoint
}

// boxFormat describes how a box tensor encodes coordinates. Exported
// model variants differ here, so the format is inferred from the value
// range of each tensor rather than assumed.
type boxFormat int

const (
	// Distances from the anchor center in stride units.
	formatStrideDistance boxFormat = iota
	// Distances from the anchor center in input pixels.
	formatPixelDistance
	// Corner coordinates normalized to [0,1].
	formatNormalizedCorners
	// Corner coordinates normalized to [-0.5,0.5] around the input center.
	formatOffsetCorners
	// Center and size normalized to [0,1].
	formatNormalizedCenterSize
	// Center and size in input pixels.
	formatPixelCenterSize
)

func (f boxFormat) String() string {
	switch f {
	case formatStrideDistance:
		return "stride-distance"
	case formatPixelDistance:
		return "pixel-distance"
	case formatNormalizedCorners:
		return "normalized-corners"
	case formatOffsetCorners:
		return "offset-corners"
	case formatNormalizedCenterSize:
		return "normalized-center-size"
	case formatPixelCenterSize:
		return "pixel-center-size"
	}
	return "unknown"
}

// cornersOrdered reports whether every 4-value row keeps x2 >= x1 and
// y2 >= y1, the signature of a corner encoding. A center-size row breaks
// the ordering as soon as a width is smaller than its center coordinate,
// which any face right of its own width produces.
func cornersOrdered(data []float32) bool {
	for i := 0; i+3 < len(data); i += 4 {
		if data[i+2] < data[i] || data[i+3] < data[i+1] {
			return false
		}
	}
	return true
}

// detectBoxFormat inspects the value range of a box tensor. Distance
// encodings stay well under the cell count of the coarsest head, pixel
// encodings span the input size, and center-size encodings reveal
// themselves by violating corner ordering (or, at pixel scale, by
// centers reaching past half the input, further than any anchor
// distance can).
func detectBoxFormat(data []float32) boxFormat {
	var maxAbs float64
	hasNegative := false
	for _, v := range data {
		a := math.Abs(float64(v))
		if a > maxAbs {
			maxAbs = a
		}
		if v < 0 {
			hasNegative = true
		}
	}
	switch {
	case maxAbs <= 0.55 && hasNegative:
		return formatOffsetCorners
	case maxAbs <= 1.0:
		if cornersOrdered(data) {
			return formatNormalizedCorners
		}
		return formatNormalizedCenterSize
	case maxAbs <= 64:
		return formatStrideDistance
	case maxAbs <= inputSize/2:
		return formatPixelDistance
	default:
		return formatPixelCenterSize
	}
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// calibrateScores converts a score tensor to probabilities per anchor.
// Single-channel tensors may already be probabilities; two-channel
// tensors are background/face logits; wider tensors keep the dominant
// logit.
func calibrateScores(t *inference.Tensor, rows int) ([]float64, error) {
	if rows == 0 || len(t.Data)%rows != 0 {
		return nil, fmt.Errorf("score tensor length %d not divisible by %d anchors", len(t.Data), rows)
	}
	channels := len(t.Data) / rows
	scores := make([]float64, rows)

	switch {
	case channels == 1:
		isLogit := false
		for _, v := range t.Data {
			if v < 0 || v > 1 {
				isLogit = true
				break
			}
		}
		for i, v := range t.Data {
			if isLogit {
				scores[i] = sigmoid(float64(v))
			} else {
				scores[i] = float64(v)
			}
		}
	case channels == 2:
		for i := 0; i < rows; i++ {
			background := float64(t.Data[i*2])
			face := float64(t.Data[i*2+1])
			scores[i] = sigmoid(face - background)
		}
	default:
		for i := 0; i < rows; i++ {
			best := math.Inf(-1)
			for c := 0; c < channels; c++ {
				if v := float64(t.Data[i*channels+c]); v > best {
					best = v
				}
			}
			scores[i] = sigmoid(best)
		}
	}
	return scores, nil
}

// decodeOutputs turns the raw model tensors into candidate faces. The
// tensors arrive grouped by head kind: scores for the three strides,
// then boxes, then optionally landmarks.
func decodeOutputs(outputs []*inference.Tensor, minScore float64) ([]rawFace, error) {
	hasLandmarks := false
	switch len(outputs) {
	case 9:
		hasLandmarks = true
	case 6:
	default:
		return nil, fmt.Errorf("unexpected output count %d, want 6 or 9", len(outputs))
	}

	var faces []rawFace
	for si, stride := range strides {
		cells := inputSize / stride
		rows := cells * cells * anchorsPerCell

		scores, err := calibrateScores(outputs[si], rows)
		if err != nil {
			return nil, fmt.Errorf("stride %d: %w", stride, err)
		}

		boxes := outputs[3+si]
		if len(boxes.Data) != rows*4 {
			return nil, fmt.Errorf("stride %d: box tensor length %d, want %d", stride, len(boxes.Data), rows*4)
		}
		format := detectBoxFormat(boxes.Data)

		var kps *inference.Tensor
		if hasLandmarks {
			kps = outputs[6+si]
			if len(kps.Data) != rows*10 {
				return nil, fmt.Errorf("stride %d: landmark tensor length %d, want %d", stride, len(kps.Data), rows*10)
			}
		}

		for r := 0; r < rows; r++ {
			if scores[r] < minScore {
				continue
			}
			cell := r / anchorsPerCell
			cx := float64(cell%cells) * float64(stride)
			cy := float64(cell/cells) * float64(stride)

			box := decodeBox(boxes.Data[r*4:r*4+4], format, cx, cy, float64(stride))
			if box.X2 <= box.X1 || box.Y2 <= box.Y1 {
				continue
			}

			face := rawFace{box: box, score: scores[r]}
			if kps != nil {
				lm := decodeLandmarks(kps.Data[r*10:r*10+10], format, cx, cy, float64(stride))
				face.landmarks = &lm
			}
			faces = append(faces, face)
		}
	}
	return faces, nil
}

func decodeBox(v []float32, format boxFormat, cx, cy, stride float64) geometry.DetectionBox {
	switch format {
	case formatStrideDistance:
		return geometry.DetectionBox{
			X1: cx - float64(v[0])*stride,
			Y1: cy - float64(v[1])*stride,
			X2: cx + float64(v[2])*stride,
			Y2: cy + float64(v[3])*stride,
		}
	case formatPixelDistance:
		return geometry.DetectionBox{
			X1: cx - float64(v[0]),
			Y1: cy - float64(v[1]),
			X2: cx + float64(v[2]),
			Y2: cy + float64(v[3]),
		}
	case formatNormalizedCorners:
		return geometry.DetectionBox{
			X1: float64(v[0]) * inputSize,
			Y1: float64(v[1]) * inputSize,
			X2: float64(v[2]) * inputSize,
			Y2: float64(v[3]) * inputSize,
		}
	case formatNormalizedCenterSize:
		return centerSizeBox(
			float64(v[0])*inputSize, float64(v[1])*inputSize,
			math.Abs(float64(v[2]))*inputSize, math.Abs(float64(v[3]))*inputSize,
		)
	case formatPixelCenterSize:
		return centerSizeBox(
			float64(v[0]), float64(v[1]),
			math.Abs(float64(v[2])), math.Abs(float64(v[3])),
		)
	default: // formatOffsetCorners
		return geometry.DetectionBox{
			X1: (float64(v[0]) + 0.5) * inputSize,
			Y1: (float64(v[1]) + 0.5) * inputSize,
			X2: (float64(v[2]) + 0.5) * inputSize,
			Y2: (float64(v[3]) + 0.5) * inputSize,
		}
	}
}

// centerSizeBox converts a center point and extents to corners.
func centerSizeBox(cx, cy, w, h float64) geometry.DetectionBox {
	return geometry.DetectionBox{
		X1: cx - w/2,
		Y1: cy - h/2,
		X2: cx + w/2,
		Y2: cy + h/2,
	}
}

func decodeLandmarks(v []float32, format boxFormat, cx, cy, stride float64) [5]geometry.DetectionPoint {
	var lm [5]geometry.DetectionPoint
	for i := 0; i < 5; i++ {
		x := float64(v[i*2])
		y := float64(v[i*2+1])
		switch format {
		case formatStrideDistance:
			lm[i] = geometry.DetectionPoint{X: cx + x*stride, Y: cy + y*stride}
		case formatPixelDistance:
			lm[i] = geometry.DetectionPoint{X: cx + x, Y: cy + y}
		case formatNormalizedCorners, formatNormalizedCenterSize:
			lm[i] = geometry.DetectionPoint{X: x * inputSize, Y: y * inputSize}
		case formatPixelCenterSize:
			lm[i] = geometry.DetectionPoint{X: x, Y: y}
		default:
			lm[i] = geometry.DetectionPoint{X: (x + 0.5) * inputSize, Y: (y + 0.5) * inputSize}
		}
	}
	return lm
}
