package stations

import (
	"math"
	"testing"
)

func TestLocate(t *testing.T) {
	tests := []struct {
		name          string
		station       Station
		width, height int
		wantX, wantY  int
	}{
		{"center", Station{MapX: 0.5, MapY: 0.5}, 100, 200, 50, 100},
		{"origin", Station{MapX: 0, MapY: 0}, 100, 100, 0, 0},
		// 0.28 * 457 = 127.96 truncates to 127.
		{"truncates toward zero", Station{MapX: 0.28, MapY: 0.07}, 457, 600, 127, 42},
		{"full extent", Station{MapX: 1.0, MapY: 1.0}, 100, 100, 100, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y := Locate(tt.station, tt.width, tt.height)
			if x != tt.wantX || y != tt.wantY {
				t.Errorf("Locate() = (%d, %d), want (%d, %d)", x, y, tt.wantX, tt.wantY)
			}
		})
	}
}

func TestHaversine(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		want                   float64
		tolerance              float64
	}{
		{"same point", 60.0, 25.0, 60.0, 25.0, 0, 1e-9},
		// Helsinki to Oulu, roughly 537 km.
		{"helsinki to oulu", 60.17, 24.94, 65.01, 25.47, 539, 5},
		// One degree of latitude is about 111.2 km everywhere.
		{"one degree latitude", 60.0, 25.0, 61.0, 25.0, 111.2, 0.2},
		{"symmetric", 69.06, 20.77, 58.26, 26.46, Haversine(58.26, 26.46, 69.06, 20.77), 1e-9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Haversine(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			if math.Abs(got-tt.want) > tt.tolerance {
				t.Errorf("Haversine() = %v, want %v ± %v", got, tt.want, tt.tolerance)
			}
		})
	}
}

func TestNearest(t *testing.T) {
	table := []Station{
		{Name: "A", Latitude: 60.0, Longitude: 25.0},
		{Name: "B", Latitude: 65.0, Longitude: 27.0},
	}

	tests := []struct {
		name     string
		lat, lon float64
		want     string
	}{
		{"close to A", 60.1, 25.1, "A"},
		{"close to B", 64.8, 26.5, "B"},
		{"exactly on A", 60.0, 25.0, "A"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Nearest(tt.lat, tt.lon, table)
			if !ok {
				t.Fatal("Nearest() ok = false, want true")
			}
			if got.Name != tt.want {
				t.Errorf("Nearest() = %q, want %q", got.Name, tt.want)
			}
		})
	}
}

func TestNearest_EmptyTable(t *testing.T) {
	if _, ok := Nearest(60.0, 25.0, nil); ok {
		t.Error("Nearest() ok = true for empty table, want false")
	}
}

func TestNearest_TieKeepsTableOrder(t *testing.T) {
	// Two stations equidistant from the query point.
	table := []Station{
		{Name: "West", Latitude: 60.0, Longitude: 24.0},
		{Name: "East", Latitude: 60.0, Longitude: 26.0},
	}

	got, ok := Nearest(60.0, 25.0, table)
	if !ok {
		t.Fatal("Nearest() ok = false, want true")
	}
	if got.Name != "West" {
		t.Errorf("Nearest() = %q, want %q (first in table)", got.Name, "West")
	}
}

func TestDefaultTable(t *testing.T) {
	if len(DefaultTable) == 0 {
		t.Fatal("DefaultTable is empty")
	}

	seen := make(map[string]bool)
	for _, st := range DefaultTable {
		if seen[st.Name] {
			t.Errorf("duplicate station %q", st.Name)
		}
		seen[st.Name] = true

		if st.MapX < 0 || st.MapX > 1 || st.MapY < 0 || st.MapY > 1 {
			t.Errorf("%s: map position (%v, %v) outside [0,1]", st.Name, st.MapX, st.MapY)
		}
		if st.Latitude < 55 || st.Latitude > 71 {
			t.Errorf("%s: latitude %v outside Fennoscandia", st.Name, st.Latitude)
		}
	}
}
