package detect

// Thresholds are the tuned geometry and visibility constants used by the
// extractor. The values are empirical; DefaultThresholds returns the
// shipped set and configuration may override individual fields.
type Thresholds struct {
	CompactSize     float64 // Max width and height of a compact target
	MinVisibleSize  float64 // Elements smaller than this on either axis are hidden unless they carry a pseudo glyph
	ViewportPadding float64 // Slack around the viewport for the intersection test
	HiddenOpacity   float64 // Opacity at or below this is treated as invisible
	AncestorDepth   int     // Ancestors inspected for ad context, including the element

	CornerMarginMin      float64 // Lower clamp of the viewport corner margin
	CornerMarginMax      float64 // Upper clamp of the viewport corner margin
	CornerWidthFraction  float64 // Horizontal margin as a fraction of viewport width
	CornerHeightFraction float64 // Vertical margin as a fraction of viewport height
	CornerSlack          float64 // Overshoot allowed past the viewport edge

	ContainerMinSize      float64 // Parents smaller than this never count as a container corner
	ContainerToleranceMin float64
	ContainerToleranceMax float64
	ContainerTolerance    float64 // Tolerance as a fraction of the parent size, clamped to min/max
}

// DefaultThresholds returns the shipped threshold set.
func DefaultThresholds() Thresholds {
	return Thresholds{
		CompactSize:     72,
		MinVisibleSize:  4,
		ViewportPadding: 8,
		HiddenOpacity:   0.02,
		AncestorDepth:   6,

		CornerMarginMin:      40,
		CornerMarginMax:      220,
		CornerWidthFraction:  0.22,
		CornerHeightFraction: 0.25,
		CornerSlack:          8,

		ContainerMinSize:      32,
		ContainerToleranceMin: 8,
		ContainerToleranceMax: 32,
		ContainerTolerance:    0.18,
	}
}
