package mapstate

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
)

// maxAbsYear bounds years accepted from shared links.
const maxAbsYear = 100000

// EncodeViewport writes the shareable viewport fields into q.
func EncodeViewport(q url.Values, v Viewport) {
	q.Set("lat", formatCoord(v.Latitude))
	q.Set("lng", formatCoord(v.Longitude))
	q.Set("zoom", formatCoord(v.Zoom))
	if v.Bearing != 0 {
		q.Set("bearing", formatCoord(v.Bearing))
	} else {
		q.Del("bearing")
	}
	if v.Pitch != 0 {
		q.Set("pitch", formatCoord(v.Pitch))
	} else {
		q.Del("pitch")
	}
}

func formatCoord(f float64) string {
	return strconv.FormatFloat(math.Round(f*1e6)/1e6, 'f', -1, 64)
}

// DecodeViewport reads viewport fields from q. Missing or malformed fields
// are left nil so SetViewport keeps the current value; range checks are
// SetViewport's job.
func DecodeViewport(q url.Values) ViewportPatch {
	field := func(key string) *float64 {
		s := strings.TrimSpace(q.Get(key))
		if s == "" {
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || !finite(f) {
			return nil
		}
		return &f
	}
	return ViewportPatch{
		Latitude:  field("lat"),
		Longitude: field("lng"),
		Zoom:      field("zoom"),
		Bearing:   field("bearing"),
		Pitch:     field("pitch"),
	}
}

func EncodeYear(q url.Values, year int) {
	q.Set("year", strconv.Itoa(year))
}

// DecodeYear reads the year parameter. ok is false when it is absent.
func DecodeYear(q url.Values) (year int, ok bool, err error) {
	s := q.Get("year")
	if s == "" {
		return 0, false, nil
	}
	year, err = ParseYear(s)
	if err != nil {
		return 0, true, err
	}
	return year, true, nil
}

// ParseYear accepts integral, finite years such as "1000", "-500" or "1.2e3".
func ParseYear(s string) (int, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidYear, s)
	}
	if !finite(f) || f != math.Trunc(f) || math.Abs(f) > maxAbsYear {
		return 0, fmt.Errorf("%w: %q", ErrInvalidYear, s)
	}
	return int(f), nil
}
