package normalize

import "testing"

func mustVocabulary(t *testing.T) *Vocabulary {
	t.Helper()
	v, err := DefaultVocabulary()
	if err != nil {
		t.Fatalf("DefaultVocabulary() error = %v", err)
	}
	return v
}

func TestInjuryCause(t *testing.T) {
	v := mustVocabulary(t)

	tests := []struct {
		name       string
		in         string
		wantCode   int
		wantDetail string
	}{
		{"traffic", "交通伤", 0, "交通伤"},
		{"fall from height keeps text", "高坠伤（3楼）", 1, "高坠伤（3楼）"},
		{"machinery", "机械伤", 2, "机械伤"},
		{"fall", "跌倒", 3, "跌倒"},
		{"other with bracket detail", "其他〖刀刺伤〗", 4, "刀刺伤"},
		{"other without detail", "其他", 4, "其他"},
		{"unmatched passes through", "烫伤", 4, "烫伤"},
		{"empty", "", 4, ""},
		{"padded", "  跌倒 ", 3, "跌倒"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, detail := InjuryCause(tt.in, v)
			if code != tt.wantCode || detail != tt.wantDetail {
				t.Errorf("InjuryCause(%q) = (%d, %q), want (%d, %q)",
					tt.in, code, detail, tt.wantCode, tt.wantDetail)
			}
		})
	}
}

func TestAddress(t *testing.T) {
	v := mustVocabulary(t)
	const prefix = "上海市"

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"adds prefix", "浦东新区张杨路1号", "上海市浦东新区张杨路1号"},
		{"keeps prefix", "上海市黄浦区南京东路", "上海市黄浦区南京东路"},
		{"short city name", "上海黄浦区南京东路", "上海市黄浦区南京东路"},
		{"duplicate prefix", "上海市上海市徐汇区", "上海市徐汇区"},
		{"strips brackets", "曹杨新村（近兰溪路）", "上海市曹杨新村"},
		{"strips ascii brackets", "中山公园(东门)", "上海市中山公园"},
		{"strips punctuation and spaces", "延安路， 近 华山路。", "上海市延安路近华山路"},
		{"placeholder", "家中", ""},
		{"placeholder after trim", "  不详 ", ""},
		{"empty", "", ""},
		{"only bracket", "（不详）", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Address(tt.in, prefix, v); got != tt.want {
				t.Errorf("Address(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestVocabulary_ConsciousnessLevel(t *testing.T) {
	v := mustVocabulary(t)

	tests := []struct {
		total int
		want  string
	}{
		{15, "意识清楚"},
		{13, "轻度意识障碍"},
		{9, "中度意识障碍"},
		{3, "昏迷"},
		{0, "无法评估"},
		{16, "无法评估"},
	}

	for _, tt := range tests {
		if got := v.ConsciousnessLevel(tt.total); got != tt.want {
			t.Errorf("ConsciousnessLevel(%d) = %q, want %q", tt.total, got, tt.want)
		}
	}
}

func TestVocabulary_GCSScales(t *testing.T) {
	v := mustVocabulary(t)

	if got := v.GCS.Eye["自动睁眼"]; got != 4 {
		t.Errorf("eye 自动睁眼 = %d, want 4", got)
	}
	if got := v.GCS.Verbal["回答正确"]; got != 5 {
		t.Errorf("verbal 回答正确 = %d, want 5", got)
	}
	if got := v.GCS.Motor["遵嘱"]; got != 6 {
		t.Errorf("motor 遵嘱 = %d, want 6", got)
	}
	if !v.IsInvalidAddress("*") || !v.IsInvalidAddress("") {
		t.Error("expected * and empty string to be invalid addresses")
	}
}

func TestParseVocabulary_Errors(t *testing.T) {
	if _, err := ParseVocabulary([]byte("injury_causes: [")); err == nil {
		t.Error("expected error for malformed yaml")
	}
	if _, err := ParseVocabulary([]byte("other_cause_code: 4")); err == nil {
		t.Error("expected error for vocabulary without causes")
	}
}
