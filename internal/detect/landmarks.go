package detect

import (
	"math"

	"github.com/attendly/facegate/internal/geometry"
)

// landmarkScores are geometric plausibility measures for one face.
// All values are in [0,1], higher is better.
type landmarkScores struct {
	eyeRatio float64
	eyeLevel float64
	symmetry float64
	liveness float64
}

// scoreLandmarks measures how plausible the five reference points are
// for a frontal live face. Flat photos held up to a camera, profile
// shots and detector glitches all produce skewed geometry here.
func scoreLandmarks(lm [5]geometry.CanonicalPoint, faceWidth float64) landmarkScores {
	leftEye, rightEye, nose := lm[0], lm[1], lm[2]
	leftMouth, rightMouth := lm[3], lm[4]

	eyeDist := math.Hypot(rightEye.X-leftEye.X, rightEye.Y-leftEye.Y)

	var s landmarkScores
	if faceWidth > 0 {
		s.eyeRatio = eyeDist / faceWidth
	}
	if eyeDist > 0 {
		s.eyeLevel = clamp01(1 - math.Abs(rightEye.Y-leftEye.Y)/eyeDist)
	}

	eyeSym := pairSymmetry(nose.X-leftEye.X, rightEye.X-nose.X)
	mouthSym := pairSymmetry(nose.X-leftMouth.X, rightMouth.X-nose.X)

	noseSym := 0.0
	if eyeDist > 0 {
		eyeMidX := (leftEye.X + rightEye.X) / 2
		noseSym = clamp01(1 - math.Abs(nose.X-eyeMidX)/(eyeDist/2))
	}

	s.symmetry = 0.4*eyeSym + 0.3*noseSym + 0.3*mouthSym
	s.liveness = 0.4*s.eyeLevel + 0.6*s.symmetry
	return s
}

// pairSymmetry compares the horizontal reach of two points on either
// side of the nose.
func pairSymmetry(left, right float64) float64 {
	left = math.Abs(left)
	right = math.Abs(right)
	larger := math.Max(left, right)
	if larger == 0 {
		return 0
	}
	return clamp01(1 - math.Abs(left-right)/larger)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
