package detect

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/Krugou/aurorawatcher/internal/stations"
)

// testImage builds a white activity map of the given size.
func testImage(w, h int) *Image {
	img := &Image{Width: w, Height: h, Pix: make([]Pixel, w*h)}
	for i := range img.Pix {
		img.Pix[i] = Pixel{255, 255, 255}
	}
	return img
}

func (img *Image) set(x, y int, p Pixel) {
	img.Pix[y*img.Width+x] = p
}

func TestScan_FindsMarkerInBox(t *testing.T) {
	img := testImage(100, 100)
	// Station maps to (50, 50); marker sits a few pixels off-center.
	img.set(53, 47, Pixel{238, 102, 119}) // high

	table := []stations.Station{
		{Name: "Test", MapX: 0.5, MapY: 0.5},
	}

	got := Scan(img, table, DefaultTargets, DefaultScanOptions)
	if len(got) != 1 {
		t.Fatalf("Scan() returned %d statuses, want 1", len(got))
	}
	if got[0].Level != High {
		t.Errorf("level = %v, want %v", got[0].Level, High)
	}
	if got[0].Station != "Test" {
		t.Errorf("station = %q, want %q", got[0].Station, "Test")
	}
	if got[0].Distance != 0 {
		t.Errorf("distance = %v, want 0", got[0].Distance)
	}
}

func TestScan_ClosestMatchWins(t *testing.T) {
	img := testImage(100, 100)
	// A noisy low marker (distance 10) scanned before an exact high
	// marker. The exact match must win even though row-major order visits
	// the low marker first.
	img.set(45, 45, Pixel{44, 136, 51})   // low, distance 10
	img.set(55, 55, Pixel{238, 102, 119}) // high, distance 0

	table := []stations.Station{
		{Name: "Test", MapX: 0.5, MapY: 0.5},
	}

	got := Scan(img, table, DefaultTargets, DefaultScanOptions)
	if got[0].Level != High {
		t.Errorf("level = %v, want %v (closest match overall)", got[0].Level, High)
	}
}

func TestScan_NoMarkerIsUnknown(t *testing.T) {
	img := testImage(100, 100)

	table := []stations.Station{
		{Name: "Blank", MapX: 0.5, MapY: 0.5},
	}

	got := Scan(img, table, DefaultTargets, DefaultScanOptions)
	if got[0].Level != Unknown {
		t.Errorf("level = %v, want %v", got[0].Level, Unknown)
	}
	if got[0].Distance != -1 {
		t.Errorf("distance = %v, want -1", got[0].Distance)
	}
}

func TestScan_MarkerOutsideBoxIgnored(t *testing.T) {
	img := testImage(100, 100)
	// Box radius 10 around (50, 50); marker at (75, 50) is out of reach.
	img.set(75, 50, Pixel{238, 102, 119})

	table := []stations.Station{
		{Name: "Test", MapX: 0.5, MapY: 0.5},
	}

	got := Scan(img, table, DefaultTargets, DefaultScanOptions)
	if got[0].Level != Unknown {
		t.Errorf("level = %v, want %v", got[0].Level, Unknown)
	}
}

func TestScan_StationAtImageEdge(t *testing.T) {
	img := testImage(100, 100)
	img.set(0, 0, Pixel{204, 187, 68}) // moderate at the corner

	table := []stations.Station{
		{Name: "Corner", MapX: 0.0, MapY: 0.0},
	}

	// Must not panic on out-of-bounds neighborhood coordinates.
	got := Scan(img, table, DefaultTargets, DefaultScanOptions)
	if got[0].Level != Moderate {
		t.Errorf("level = %v, want %v", got[0].Level, Moderate)
	}
}

func TestScan_OutputFollowsTableOrder(t *testing.T) {
	img := testImage(100, 100)
	img.set(20, 20, Pixel{34, 136, 51})   // low
	img.set(80, 80, Pixel{238, 102, 119}) // high

	table := []stations.Station{
		{Name: "South", MapX: 0.8, MapY: 0.8},
		{Name: "North", MapX: 0.2, MapY: 0.2},
	}

	got := Scan(img, table, DefaultTargets, DefaultScanOptions)
	if len(got) != 2 {
		t.Fatalf("Scan() returned %d statuses, want 2", len(got))
	}
	if got[0].Station != "South" || got[0].Level != High {
		t.Errorf("got[0] = %+v, want South/HIGH", got[0])
	}
	if got[1].Station != "North" || got[1].Level != Low {
		t.Errorf("got[1] = %+v, want North/LOW", got[1])
	}
}

func TestDecode_PNG(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 3, 2))
	src.Set(0, 0, color.RGBA{238, 102, 119, 255})
	src.Set(2, 1, color.RGBA{68, 119, 170, 255})

	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		t.Fatal(err)
	}

	img, err := Decode(buf.Bytes())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if img.Width != 3 || img.Height != 2 {
		t.Fatalf("dimensions = %dx%d, want 3x2", img.Width, img.Height)
	}
	if got := img.At(0, 0); got != (Pixel{238, 102, 119}) {
		t.Errorf("At(0,0) = %v, want {238 102 119}", got)
	}
	if got := img.At(2, 1); got != (Pixel{68, 119, 170}) {
		t.Errorf("At(2,1) = %v, want {68 119 170}", got)
	}
}

func TestDecode_InvalidData(t *testing.T) {
	if _, err := Decode([]byte("not an image")); err == nil {
		t.Error("expected error for invalid image data")
	}
}

func TestActivityFolds(t *testing.T) {
	statuses := []StationStatus{
		{Station: "A", Level: Quiet},
		{Station: "B", Level: Low},
		{Station: "C", Level: Unknown},
	}

	if HasAnyHigh(statuses) {
		t.Error("HasAnyHigh = true, want false")
	}
	if !HasAnyLowOrModerate(statuses) {
		t.Error("HasAnyLowOrModerate = false, want true")
	}
	if HasActivity(statuses) {
		t.Error("HasActivity = true, want false")
	}

	statuses = append(statuses, StationStatus{Station: "D", Level: High})
	if !HasAnyHigh(statuses) {
		t.Error("HasAnyHigh = false, want true")
	}
	if !HasActivity(statuses) {
		t.Error("HasActivity = false, want true")
	}
}
