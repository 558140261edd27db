// Package stations maps the magnetometer network onto both geographic and
// activity-map image coordinates.
package stations

import "math"

// Station is a named observation point. MapX/MapY are normalized [0,1]
// positions on the reference activity map; the actual image dimensions are
// supplied at scan time, so no pixel offsets are hardcoded here.
type Station struct {
	Name      string
	Latitude  float64
	Longitude float64
	MapX      float64
	MapY      float64
}

// DefaultTable lists the Finnish magnetometer stations shown on the FMI
// magnetic disturbance map, north to south.
var DefaultTable = []Station{
	{Name: "Kilpisjärvi", Latitude: 69.06, Longitude: 20.77, MapX: 0.28, MapY: 0.07},
	{Name: "Kevo", Latitude: 69.76, Longitude: 27.01, MapX: 0.58, MapY: 0.04},
	{Name: "Muonio", Latitude: 68.02, Longitude: 23.53, MapX: 0.40, MapY: 0.15},
	{Name: "Sodankylä", Latitude: 67.37, Longitude: 26.63, MapX: 0.55, MapY: 0.21},
	{Name: "Pello", Latitude: 66.90, Longitude: 24.08, MapX: 0.43, MapY: 0.25},
	{Name: "Ranua", Latitude: 65.90, Longitude: 26.41, MapX: 0.54, MapY: 0.32},
	{Name: "Oulujärvi", Latitude: 64.52, Longitude: 27.23, MapX: 0.58, MapY: 0.42},
	{Name: "Mekrijärvi", Latitude: 62.77, Longitude: 30.97, MapX: 0.76, MapY: 0.55},
	{Name: "Hankasalmi", Latitude: 62.25, Longitude: 26.60, MapX: 0.55, MapY: 0.59},
	{Name: "Nurmijärvi", Latitude: 60.50, Longitude: 24.65, MapX: 0.45, MapY: 0.72},
	{Name: "Tartu", Latitude: 58.26, Longitude: 26.46, MapX: 0.54, MapY: 0.88},
}

// earthRadiusKm is the mean Earth radius used for great-circle distances.
const earthRadiusKm = 6371.0

// Locate converts a station's normalized map position to pixel coordinates
// for an image of the given dimensions, truncating toward zero.
func Locate(st Station, width, height int) (x, y int) {
	return int(st.MapX * float64(width)), int(st.MapY * float64(height))
}

// Haversine returns the great-circle distance in kilometres between two
// points given in degrees.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(a))
}

// Nearest returns the station closest to the given coordinates. Ties are
// broken by table order. The second return is false only when the table is
// empty.
func Nearest(lat, lon float64, table []Station) (Station, bool) {
	if len(table) == 0 {
		return Station{}, false
	}

	best := table[0]
	bestDist := Haversine(lat, lon, best.Latitude, best.Longitude)
	for _, st := range table[1:] {
		d := Haversine(lat, lon, st.Latitude, st.Longitude)
		if d < bestDist {
			best = st
			bestDist = d
		}
	}
	return best, true
}
