package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// swpcBase serves NOAA SWPC product JSON: arrays of rows where row 0 is
// the header.
const swpcBase = "https://services.swpc.noaa.gov"

const (
	magPath    = "/products/solar-wind/mag-1-day.json"
	plasmaPath = "/products/solar-wind/plasma-1-day.json"
	kpPath     = "/products/noaa-planetary-k-index.json"
)

// SolarWind is the latest solar wind telemetry snapshot.
type SolarWind struct {
	Bz        float64   `json:"bz"`      // interplanetary magnetic field, nT
	Speed     float64   `json:"speed"`   // km/s
	Density   float64   `json:"density"` // protons/cm^3
	Kp        float64   `json:"kp"`      // planetary K-index
	Timestamp time.Time `json:"timestamp"`
}

// GetSolarWind fetches the three SWPC products and combines their latest
// complete rows. Southward Bz (negative) with high speed is the classic
// aurora precursor the UI surfaces.
func (c *Client) GetSolarWind(ctx context.Context) (*SolarWind, error) {
	base := swpcBase
	if c.testSWPCURL != "" {
		base = c.testSWPCURL
	}

	mag, err := c.fetchProduct(ctx, base+magPath)
	if err != nil {
		return nil, fmt.Errorf("solar wind mag: %w", err)
	}
	plasma, err := c.fetchProduct(ctx, base+plasmaPath)
	if err != nil {
		return nil, fmt.Errorf("solar wind plasma: %w", err)
	}
	kp, err := c.fetchProduct(ctx, base+kpPath)
	if err != nil {
		return nil, fmt.Errorf("planetary k-index: %w", err)
	}

	// Row layout (after the header row):
	// mag:    time_tag, bx_gsm, by_gsm, bz_gsm, lon_gsm, lat_gsm, bt
	// plasma: time_tag, density, speed, temperature
	// kp:     time_tag, kp_index, ...
	magRow, err := latestRow(mag, 4)
	if err != nil {
		return nil, fmt.Errorf("solar wind mag: %w", err)
	}
	plasmaRow, err := latestRow(plasma, 3)
	if err != nil {
		return nil, fmt.Errorf("solar wind plasma: %w", err)
	}
	kpRow, err := latestRow(kp, 2)
	if err != nil {
		return nil, fmt.Errorf("planetary k-index: %w", err)
	}

	sw := &SolarWind{}
	if sw.Bz, err = strconv.ParseFloat(magRow[3], 64); err != nil {
		return nil, fmt.Errorf("parsing bz %q: %w", magRow[3], err)
	}
	if sw.Density, err = strconv.ParseFloat(plasmaRow[1], 64); err != nil {
		return nil, fmt.Errorf("parsing density %q: %w", plasmaRow[1], err)
	}
	if sw.Speed, err = strconv.ParseFloat(plasmaRow[2], 64); err != nil {
		return nil, fmt.Errorf("parsing speed %q: %w", plasmaRow[2], err)
	}
	if sw.Kp, err = strconv.ParseFloat(kpRow[1], 64); err != nil {
		return nil, fmt.Errorf("parsing kp %q: %w", kpRow[1], err)
	}
	if ts, err := time.Parse("2006-01-02 15:04:05.000", magRow[0]); err == nil {
		sw.Timestamp = ts.UTC()
	}
	return sw, nil
}

// fetchProduct downloads a SWPC product and decodes its row-of-strings
// table form.
func (c *Client) fetchProduct(ctx context.Context, url string) ([][]string, error) {
	data, err := c.FetchBytes(ctx, url)
	if err != nil {
		return nil, err
	}

	var rows [][]string
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("decoding product table: %w", err)
	}
	return rows, nil
}

// latestRow returns the last row with at least minCols non-empty leading
// columns, skipping the header. Recent rows can have empty cells while
// instruments catch up.
func latestRow(rows [][]string, minCols int) ([]string, error) {
	for i := len(rows) - 1; i >= 1; i-- {
		row := rows[i]
		if len(row) < minCols {
			continue
		}
		complete := true
		for _, cell := range row[:minCols] {
			if cell == "" {
				complete = false
				break
			}
		}
		if complete {
			return row, nil
		}
	}
	return nil, fmt.Errorf("no complete data row")
}
