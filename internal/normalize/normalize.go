// Package normalize converts raw intake-sheet cells into typed values.
//
// Cells arrive as nil, string, float64 (possibly NaN), int or time.Time,
// depending on how the sheet was read. Every function here is total: blank,
// malformed or unexpected input yields a zero value or nil, never a panic and
// never an error.
package normalize

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// blankTokens are literal cell values the intake form uses for "not filled in".
var blankTokens = map[string]struct{}{
	"":     {},
	"无":    {},
	"(空)":  {},
	"(跳过)": {},
}

var (
	intRegex         = regexp.MustCompile(`\d+`)
	floatRegex       = regexp.MustCompile(`\d+\.?\d*`)
	signedFloatRegex = regexp.MustCompile(`(-?\d+(?:\.\d+)?)`)
	percentRegex     = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%?`)
	yesNoTokenRegex  = regexp.MustCompile(`(?i)\b(yes|no|y|n)\b`)
	temperatureTypos = strings.NewReplacer("@", ".")
)

// Plausible body temperature range in degrees Celsius.
const (
	temperatureMin = 30.0
	temperatureMax = 45.0
)

// Stringify renders a cell the way it appears to a reader of the sheet.
// Whole floats print without a fractional part so numeric IDs read as "7".
func Stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return ""
		}
		if x == math.Trunc(x) && math.Abs(x) < 1e15 {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return Stringify(float64(x))
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 {
			return x.Format("2006-01-02")
		}
		return x.Format("2006-01-02 15:04:05")
	default:
		return fmt.Sprint(x)
	}
}

// IsBlank reports whether a cell carries no information: nil, NaN, or one of
// the form's "not applicable" literals after trimming.
func IsBlank(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case float64:
		if math.IsNaN(x) {
			return true
		}
	case float32:
		if math.IsNaN(float64(x)) {
			return true
		}
	}
	_, ok := blankTokens[strings.TrimSpace(Stringify(v))]
	return ok
}

// Text returns the trimmed cell, or "" when blank.
func Text(v any) string {
	if IsBlank(v) {
		return ""
	}
	return strings.TrimSpace(Stringify(v))
}

// Int parses the cell as an integer, falling back to the first run of digits.
// "45岁" yields 45; anything without digits yields 0.
func Int(v any) int {
	if IsBlank(v) {
		return 0
	}
	s := strings.TrimSpace(Stringify(v))
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	m := intRegex.FindString(s)
	if m == "" {
		return 0
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return n
}

// Float parses the cell as a float, falling back to the first decimal number.
func Float(v any) float64 {
	if IsBlank(v) {
		return 0
	}
	s := strings.TrimSpace(Stringify(v))
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return f
	}
	return firstFloat(floatRegex, s)
}

// OptionalFloat returns the first signed number in the cell, or nil.
func OptionalFloat(v any) *float64 {
	if IsBlank(v) {
		return nil
	}
	m := signedFloatRegex.FindStringSubmatch(Stringify(v))
	if m == nil {
		return nil
	}
	f, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil
	}
	return &f
}

// Percent returns the number in a "95%" style cell, or nil.
func Percent(v any) *float64 {
	if IsBlank(v) {
		return nil
	}
	m := percentRegex.FindStringSubmatch(Stringify(v))
	if m == nil {
		return nil
	}
	f, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil
	}
	return &f
}

// Temperature extracts a body temperature in degrees Celsius.
// "@" is a common transcription of the decimal point ("3@7" is 37.0) and
// for comma-separated readings the last one wins. Values outside 30–45
// are rejected as 0.
func Temperature(v any) float64 {
	if IsBlank(v) {
		return 0
	}
	s := temperatureTypos.Replace(strings.TrimSpace(Stringify(v)))
	if i := strings.LastIndex(s, ","); i >= 0 {
		s = strings.TrimSpace(s[i+1:])
	}
	m := floatRegex.FindString(s)
	if m == "" {
		return 0
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil || f < temperatureMin || f > temperatureMax {
		return 0
	}
	return f
}

// YesNo reduces a free-text answer to "是", "否" or "" for blank.
// An affirmative substring beats a negative one. Unrecognized text is "否".
func YesNo(v any) string {
	s := Text(v)
	if s == "" {
		return ""
	}
	if yesNo(s) {
		return "是"
	}
	return "否"
}

// YesNoBool is YesNo projected onto a bool; blank is false.
func YesNoBool(v any) bool {
	s := Text(v)
	if s == "" {
		return false
	}
	return yesNo(s)
}

func yesNo(s string) bool {
	if strings.Contains(s, "是") {
		return true
	}
	if strings.Contains(s, "否") || strings.Contains(s, "无") {
		return false
	}
	if m := yesNoTokenRegex.FindStringSubmatch(s); m != nil {
		return strings.HasPrefix(strings.ToLower(m[1]), "y")
	}
	return false
}

func firstFloat(re *regexp.Regexp, s string) float64 {
	m := re.FindString(s)
	if m == "" {
		return 0
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0
	}
	return f
}
