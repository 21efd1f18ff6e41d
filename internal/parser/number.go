package parser

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var numberRun = regexp.MustCompile(`[0-9,.]+`)

// ParseNumber parses human formatted numbers such as "1,234", "1.2K" or
// "3M Followers". The K/M multiplier is detected anywhere in text.
// The result is truncated to an integer.
func ParseNumber(text string) (int64, bool) {
	run := numberRun.FindString(text)
	if run == "" {
		return 0, false
	}

	v, err := strconv.ParseFloat(strings.ReplaceAll(run, ",", ""), 64)
	if err != nil {
		return 0, false
	}

	upper := strings.ToUpper(text)
	switch {
	case strings.Contains(upper, "K"):
		v *= 1000
	case strings.Contains(upper, "M"):
		v *= 1000000
	}

	if math.IsInf(v, 0) || math.IsNaN(v) || v >= math.MaxInt64 {
		return 0, false
	}
	return int64(v), true
}
