package detect

import "math"

// Level classifies the magnetic disturbance at a station.
type Level string

const (
	Quiet    Level = "QUIET"
	Low      Level = "LOW"
	Moderate Level = "MODERATE"
	High     Level = "HIGH"
	Unknown  Level = "UNKNOWN"
)

// Pixel is an RGB triple, 0-255 per channel.
type Pixel struct {
	R, G, B uint8
}

// ColorTarget is a named reference color on the activity map.
type ColorTarget struct {
	Name  string
	Level Level
	Color Pixel
}

// DefaultMaxDistance is the Euclidean RGB match threshold. Chosen to
// tolerate JPEG compression artifacts around the map's indicator colors.
const DefaultMaxDistance = 50.0

// DefaultTargets is the indicator palette of the FMI magnetic disturbance
// map (Paul Tol bright scheme).
var DefaultTargets = []ColorTarget{
	{Name: "high", Level: High, Color: Pixel{238, 102, 119}},         // #EE6677
	{Name: "moderate", Level: Moderate, Color: Pixel{204, 187, 68}},  // #CCBB44
	{Name: "low", Level: Low, Color: Pixel{34, 136, 51}},             // #228833
	{Name: "quiet", Level: Quiet, Color: Pixel{68, 119, 170}},        // #4477AA
}

// Distance returns the Euclidean distance between two pixels in RGB space.
func Distance(a, b Pixel) float64 {
	dr := float64(a.R) - float64(b.R)
	dg := float64(a.G) - float64(b.G)
	db := float64(a.B) - float64(b.B)
	return math.Sqrt(dr*dr + dg*dg + db*db)
}

// Classify returns the target nearest to p in RGB space, provided the
// distance is within maxDist. The second return is false when no target
// qualifies or targets is empty. On an exact tie the first target in the
// slice wins; input order is caller-controlled and significant.
func Classify(p Pixel, targets []ColorTarget, maxDist float64) (ColorTarget, bool) {
	best := ColorTarget{}
	bestDist := math.Inf(1)
	found := false

	for _, t := range targets {
		d := Distance(p, t.Color)
		if d == 0 {
			// Exact match always wins immediately.
			return t, true
		}
		if d <= maxDist && d < bestDist {
			best = t
			bestDist = d
			found = true
		}
	}
	return best, found
}
