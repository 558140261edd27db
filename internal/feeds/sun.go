package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// sunAPIBase is the public astronomy API used for the daylight window.
const sunAPIBase = "https://api.sunrise-sunset.org"

// SunTimes holds the daylight window as UTC hours.
type SunTimes struct {
	SunriseHour int
	SunsetHour  int
}

type sunriseSunsetResponse struct {
	Results struct {
		Sunrise string `json:"sunrise"`
		Sunset  string `json:"sunset"`
	} `json:"results"`
	Status string `json:"status"`
}

// GetSunTimes fetches sunrise and sunset for the given coordinates.
func (c *Client) GetSunTimes(ctx context.Context, lat, lon float64) (SunTimes, error) {
	base := sunAPIBase
	if c.testSunURL != "" {
		base = c.testSunURL
	}

	data, err := c.FetchBytes(ctx, fmt.Sprintf("%s/json?lat=%f&lng=%f", base, lat, lon))
	if err != nil {
		return SunTimes{}, err
	}

	var resp sunriseSunsetResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return SunTimes{}, fmt.Errorf("decoding sun times: %w", err)
	}
	if resp.Status != "OK" {
		return SunTimes{}, fmt.Errorf("sun times API returned status %q", resp.Status)
	}

	sunrise, err := parseClockHour(resp.Results.Sunrise)
	if err != nil {
		return SunTimes{}, fmt.Errorf("parsing sunrise %q: %w", resp.Results.Sunrise, err)
	}
	sunset, err := parseClockHour(resp.Results.Sunset)
	if err != nil {
		return SunTimes{}, fmt.Errorf("parsing sunset %q: %w", resp.Results.Sunset, err)
	}

	return SunTimes{SunriseHour: sunrise, SunsetHour: sunset}, nil
}

// parseClockHour converts the API's "H:MM:SS AM/PM" strings to a 24-hour
// UTC hour.
func parseClockHour(s string) (int, error) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return 0, fmt.Errorf("unexpected time format")
	}

	parts := strings.Split(fields[0], ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("unexpected clock format")
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, err
	}

	switch strings.ToLower(fields[1]) {
	case "pm":
		if hour != 12 {
			hour += 12
		}
	case "am":
		if hour == 12 {
			hour = 0
		}
	default:
		return 0, fmt.Errorf("unexpected period %q", fields[1])
	}
	return hour, nil
}

// IsDark reports whether the current UTC hour is outside the daylight
// window. Hour granularity matches the coarse needs of an aurora check.
func IsDark(t SunTimes, now time.Time) bool {
	hour := now.UTC().Hour()
	return hour < t.SunriseHour || hour > t.SunsetHour
}
