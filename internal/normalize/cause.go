package normalize

import (
	"regexp"
	"strings"
)

var (
	otherDetailRegex = regexp.MustCompile(`〖([^〗]+)〗`)
	bracketRegex     = regexp.MustCompile(`[\(（][^\)）]*[\)）]`)
	addressNoise     = regexp.MustCompile(`[，,。.；;、\s]+`)
)

// InjuryCause classifies free text against the ordered cause list.
// Text matching a specific cause keeps the whole text as detail. Text that
// matches nothing, or only the overflow label, lands in the overflow code
// with the bracketed 〖…〗 part as detail when present.
func InjuryCause(text string, v *Vocabulary) (int, string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return v.OtherCauseCode, ""
	}

	for _, c := range v.InjuryCauses {
		if !strings.Contains(text, c.Label) {
			continue
		}
		if c.Code == v.OtherCauseCode {
			return c.Code, otherCauseDetail(text)
		}
		return c.Code, text
	}

	if strings.Contains(text, v.OtherCauseLabel) {
		return v.OtherCauseCode, otherCauseDetail(text)
	}
	return v.OtherCauseCode, text
}

func otherCauseDetail(text string) string {
	if m := otherDetailRegex.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return text
}

// Address canonicalizes a free-text location so cosmetic variants share one
// geocode lookup: bracketed remarks and punctuation are removed and the city
// prefix is forced. Placeholders such as "家中" normalize to "".
func Address(raw, cityPrefix string, v *Vocabulary) string {
	s := strings.TrimSpace(raw)
	if s == "" || v.IsInvalidAddress(s) {
		return ""
	}

	s = bracketRegex.ReplaceAllString(s, "")
	s = addressNoise.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, cityPrefix+cityPrefix, cityPrefix)
	if s == "" || v.IsInvalidAddress(s) {
		return ""
	}

	short := strings.TrimSuffix(cityPrefix, "市")
	if short != cityPrefix && strings.HasPrefix(s, short) && !strings.HasPrefix(s, cityPrefix) {
		s = cityPrefix + strings.TrimPrefix(s, short)
	}
	if !strings.HasPrefix(s, cityPrefix) {
		s = cityPrefix + s
	}
	return s
}
