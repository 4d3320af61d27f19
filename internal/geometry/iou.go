package geometry

// iou calculates Intersection over Union between two corner-form boxes
// expressed in the same coordinate system.
func iou(ax1, ay1, ax2, ay2, bx1, by1, bx2, by2 float64) float64 {
	// Calculate intersection.
	x1 := max(ax1, bx1)
	y1 := max(ay1, by1)
	x2 := min(ax2, bx2)
	y2 := min(ay2, by2)

	if x2 <= x1 || y2 <= y1 {
		return 0
	}

	intersection := (x2 - x1) * (y2 - y1)
	areaA := (ax2 - ax1) * (ay2 - ay1)
	areaB := (bx2 - bx1) * (by2 - by1)
	union := areaA + areaB - intersection

	if union <= 0 {
		return 0
	}
	return intersection / union
}

// IoU computes Intersection over Union between two normalized boxes.
func IoU(a, b NormalizedBox) float64 {
	return iou(a.X, a.Y, a.X+a.Width, a.Y+a.Height, b.X, b.Y, b.X+b.Width, b.Y+b.Height)
}

// IoUCanonical computes Intersection over Union between two canonical boxes.
func IoUCanonical(a, b CanonicalBox) float64 {
	return iou(a.X1, a.Y1, a.X2, a.Y2, b.X1, b.Y1, b.X2, b.Y2)
}

// IoUDetection computes Intersection over Union between two detection-space boxes.
func IoUDetection(a, b DetectionBox) float64 {
	return iou(a.X1, a.Y1, a.X2, a.Y2, b.X1, b.Y1, b.X2, b.Y2)
}
