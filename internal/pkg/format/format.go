package format

import (
	"fmt"
	"math"
	"strings"
)

func Percent(val float64) string {
	if val == 0 {
		return "0%"
	}
	return fmt.Sprintf("%.0f%%", val*100)
}

func Float(val float64, decimals int) string {
	if decimals < 0 {
		decimals = 4
	}
	out := fmt.Sprintf("%.*f", decimals, val)
	out = strings.TrimRight(strings.TrimRight(out, "0"), ".")
	if out == "" || out == "-" {
		return "0"
	}
	return out
}

func RangeSummary(bars []float64) (float64, float64) {
	low := math.MaxFloat64
	high := -math.MaxFloat64
	for _, v := range bars {
		if v < low {
			low = v
		}
		if v > high {
			high = v
		}
	}
	return low, high
}
