package normalize

import (
	"reflect"
	"testing"
)

func TestSeverityScore(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, "0"},
		{"无", "0"},
		{"0", "0"},
		{"3", "3"},
		{3.0, "3"},
		{"3|2", "3|2"},
		{"3|x|2", "3|2"},
		{"a|b", "0"},
		{"4┋1", "4|1"},
		{"重伤", "0"},
	}

	for _, tt := range tests {
		if got := SeverityScore(tt.in); got != tt.want {
			t.Errorf("SeverityScore(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestScoreList(t *testing.T) {
	tests := []struct {
		in   string
		want []int
	}{
		{"0", nil},
		{"3", []int{3}},
		{"3|2", []int{3, 2}},
		{"3|3|1", []int{3, 1}},
		{"x", nil},
	}

	for _, tt := range tests {
		if got := ScoreList(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ScoreList(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSeverityIndex_Details(t *testing.T) {
	v := mustVocabulary(t)

	headers := []string{
		"序号",
		"胸部",
		"胸部损伤—①单个肋骨骨折",
		"②胸骨骨折",
		"②单侧血胸或气胸",
		"③膈肌破裂",
	}
	cells := map[string]any{
		"胸部损伤—①单个肋骨骨折": "是",
		"②胸骨骨折":        "是",
		"②单侧血胸或气胸":     "是",
		"③膈肌破裂":        "(空)",
	}
	cell := func(h string) any { return cells[h] }

	idx := v.IndexSeverity(headers)

	got := idx.Details("chest", []int{3, 2, 1}, cell)
	want := "3分（②单侧血胸或气胸），2分（②胸骨骨折），1分（①单个肋骨骨折）"
	if got != want {
		t.Errorf("Details() = %q, want %q", got, want)
	}

	if got := idx.Details("chest", nil, cell); got != "" {
		t.Errorf("Details(no scores) = %q, want empty", got)
	}
	if got := idx.Details("face", []int{1}, cell); got != "" {
		t.Errorf("Details(face) = %q, want empty", got)
	}
}
