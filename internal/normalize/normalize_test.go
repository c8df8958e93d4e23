package normalize

import (
	"math"
	"testing"
	"time"
)

// =============================================================================
// IsBlank / Text Tests
// =============================================================================

func TestIsBlank(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want bool
	}{
		{"nil", nil, true},
		{"NaN", math.NaN(), true},
		{"empty string", "", true},
		{"whitespace", "   ", true},
		{"wu literal", "无", true},
		{"empty marker", " (空) ", true},
		{"skipped marker", "(跳过)", true},
		{"zero float is not blank", 0.0, false},
		{"text", "男", false},
		{"date", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsBlank(tt.in); got != tt.want {
				t.Errorf("IsBlank(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestText(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{"  男 ", "男"},
		{"无", ""},
		{nil, ""},
		{7.0, "7"},
		{36.5, "36.5"},
	}

	for _, tt := range tests {
		if got := Text(tt.in); got != tt.want {
			t.Errorf("Text(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// =============================================================================
// Numeric Extraction Tests
// =============================================================================

func TestInt(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want int
	}{
		{"plain", "7", 7},
		{"float cell", 7.0, 7},
		{"age with unit", "45岁", 45},
		{"padded", "  12 ", 12},
		{"first digit run", "收缩压 120/80", 120},
		{"no digits", "不详", 0},
		{"blank", "(空)", 0},
		{"nil", nil, 0},
		{"NaN", math.NaN(), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Int(tt.in); got != tt.want {
				t.Errorf("Int(%v) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestFloat(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want float64
	}{
		{"plain", "172.5", 172.5},
		{"with unit", "65kg", 65},
		{"decimal with unit", "1.5L", 1.5},
		{"typed", 80.0, 80},
		{"no digits", "未测", 0},
		{"blank", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Float(tt.in); got != tt.want {
				t.Errorf("Float(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestOptionalFloatAndPercent(t *testing.T) {
	if got := OptionalFloat("约-2.5U"); got == nil || *got != -2.5 {
		t.Errorf("OptionalFloat(约-2.5U) = %v, want -2.5", got)
	}
	if got := OptionalFloat("无"); got != nil {
		t.Errorf("OptionalFloat(无) = %v, want nil", *got)
	}
	if got := OptionalFloat("未输"); got != nil {
		t.Errorf("OptionalFloat(未输) = %v, want nil", *got)
	}
	if got := Percent("40 %"); got == nil || *got != 40 {
		t.Errorf("Percent(40 %%) = %v, want 40", got)
	}
	if got := Percent(""); got != nil {
		t.Errorf("Percent(\"\") = %v, want nil", *got)
	}
}

func TestTemperature(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want float64
	}{
		{"at sign typo", "3@7", 37.0},
		{"plain", "36.8", 36.8},
		{"with unit", "37.2℃", 37.2},
		{"last of several readings", "38.5, 37.1", 37.1},
		{"too low", "25", 0},
		{"too high", "46", 0},
		{"boundary low", "30", 30},
		{"boundary high", "45.0", 45},
		{"blank", nil, 0},
		{"garbage", "未测", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Temperature(tt.in); got != tt.want {
				t.Errorf("Temperature(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

// =============================================================================
// Yes/No Tests
// =============================================================================

func TestYesNo(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"yes", "是", "是"},
		{"yes wins over no", "是（否认外院）", "是"},
		{"no", "否", "否"},
		{"none is no", "无异常", "否"},
		{"english yes", "Yes", "是"},
		{"english n", "n", "否"},
		{"unparseable defaults to no", "不确定", "否"},
		{"blank", "", ""},
		{"blank literal", "(空)", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := YesNo(tt.in); got != tt.want {
				t.Errorf("YesNo(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestYesNoBool(t *testing.T) {
	if !YesNoBool("是") {
		t.Error("YesNoBool(是) = false, want true")
	}
	if YesNoBool("否") {
		t.Error("YesNoBool(否) = true, want false")
	}
	if YesNoBool(nil) {
		t.Error("YesNoBool(nil) = true, want false")
	}
	if !YesNoBool("y") {
		t.Error("YesNoBool(y) = false, want true")
	}
}
