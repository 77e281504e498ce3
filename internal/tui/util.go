package tui

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"chronomap/internal/mapstate"
)

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// hexColor turns metadata colors ("#abc", "#aabbcc", "rgb(r,g,b)",
// "rgba(r,g,b,a)") into "#rrggbb". Anything else becomes the fallback color.
func hexColor(c string) string {
	c = strings.TrimSpace(strings.ToLower(c))
	switch {
	case strings.HasPrefix(c, "#") && len(c) == 7:
		if _, err := strconv.ParseUint(c[1:], 16, 32); err == nil {
			return c
		}
	case strings.HasPrefix(c, "#") && len(c) == 4:
		if _, err := strconv.ParseUint(c[1:], 16, 16); err == nil {
			return string([]byte{'#', c[1], c[1], c[2], c[2], c[3], c[3]})
		}
	case strings.HasPrefix(c, "rgb"):
		i, j := strings.Index(c, "("), strings.LastIndex(c, ")")
		if i < 0 || j <= i {
			break
		}
		parts := strings.Split(c[i+1:j], ",")
		if len(parts) < 3 {
			break
		}
		var rgb [3]int
		ok := true
		for k := 0; k < 3; k++ {
			v, err := strconv.ParseFloat(strings.TrimSpace(parts[k]), 64)
			if err != nil {
				ok = false
				break
			}
			rgb[k] = int(math.Max(0, math.Min(255, math.Round(v))))
		}
		if ok {
			return fmt.Sprintf("#%02x%02x%02x", rgb[0], rgb[1], rgb[2])
		}
	}
	return mapstate.FallbackColor
}

// populationColor shades a territory by the log of its population.
func populationColor(pop float64) string {
	if !(pop > 0) {
		return "#1f2937"
	}
	t := math.Min(1, math.Log10(pop+1)/6)
	lo := [3]float64{0x1e, 0x3a, 0x5f}
	hi := [3]float64{0xfd, 0xe6, 0x8a}
	var c [3]int
	for i := range c {
		c[i] = int(lo[i] + t*(hi[i]-lo[i]))
	}
	return fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2])
}

// fitText truncates s to n cells.
func fitText(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:max(n, 0)])
	}
	return string(r[:n-1]) + "…"
}
