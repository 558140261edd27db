package detect

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"

	"github.com/Krugou/aurorawatcher/internal/stations"
)

// Image is a decoded activity map held as a flat RGB buffer.
type Image struct {
	Width  int
	Height int
	Pix    []Pixel // row-major, len == Width*Height
}

// At returns the pixel at (x, y). Callers must stay in bounds.
func (img *Image) At(x, y int) Pixel {
	return img.Pix[y*img.Width+x]
}

// Decode parses raw image bytes (PNG, JPEG, or GIF) into an Image.
func Decode(data []byte) (*Image, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	img := &Image{Width: w, Height: h, Pix: make([]Pixel, w*h)}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := src.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			img.Pix[y*w+x] = Pixel{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8)}
		}
	}

	return img, nil
}

// StationStatus is the per-station result of one activity map scan.
// Produced fresh on every scan and never persisted.
type StationStatus struct {
	Station  string  `json:"station"`
	Level    Level   `json:"level"`
	Target   string  `json:"target,omitempty"`
	Distance float64 `json:"distance"`
}

// ScanOptions controls the neighborhood search around each station marker.
type ScanOptions struct {
	// BoxRadius is the half-width of the square search neighborhood in
	// pixels around the station's expected position.
	BoxRadius int
	// MaxDistance is the RGB match threshold passed to Classify.
	MaxDistance float64
}

// DefaultScanOptions matches the reference map's marker size and JPEG noise.
var DefaultScanOptions = ScanOptions{BoxRadius: 10, MaxDistance: DefaultMaxDistance}

// Scan classifies every station in the table against the activity map.
// For each station the square neighborhood around its expected pixel is
// searched in row-major order and the globally closest color match within
// the threshold wins; stations with no match come back as Unknown.
// Output order follows table order.
func Scan(img *Image, table []stations.Station, targets []ColorTarget, opts ScanOptions) []StationStatus {
	result := make([]StationStatus, 0, len(table))

	for _, st := range table {
		cx, cy := stations.Locate(st, img.Width, img.Height)

		status := StationStatus{Station: st.Name, Level: Unknown, Distance: math.Inf(1)}

		for y := cy - opts.BoxRadius; y <= cy+opts.BoxRadius; y++ {
			if y < 0 || y >= img.Height {
				continue
			}
			for x := cx - opts.BoxRadius; x <= cx+opts.BoxRadius; x++ {
				if x < 0 || x >= img.Width {
					continue
				}
				p := img.At(x, y)
				t, ok := Classify(p, targets, opts.MaxDistance)
				if !ok {
					continue
				}
				d := Distance(p, t.Color)
				if d < status.Distance {
					status.Level = t.Level
					status.Target = t.Name
					status.Distance = d
				}
			}
		}

		if status.Level == Unknown {
			status.Distance = -1
		}
		result = append(result, status)
	}
	return result
}

// HasAnyHigh reports whether any scanned station shows HIGH activity.
func HasAnyHigh(statuses []StationStatus) bool {
	for _, s := range statuses {
		if s.Level == High {
			return true
		}
	}
	return false
}

// HasAnyLowOrModerate reports whether any scanned station shows LOW or
// MODERATE activity.
func HasAnyLowOrModerate(statuses []StationStatus) bool {
	for _, s := range statuses {
		if s.Level == Low || s.Level == Moderate {
			return true
		}
	}
	return false
}

// HasActivity reports whether any station is at MODERATE or HIGH, the
// condition that arms the notification path.
func HasActivity(statuses []StationStatus) bool {
	for _, s := range statuses {
		if s.Level == Moderate || s.Level == High {
			return true
		}
	}
	return false
}
