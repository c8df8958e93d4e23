package normalize

import (
	"sort"
	"strconv"
	"strings"
)

// SeverityScore reads a region score cell. Multiple scores are written as
// "3|2" (or with "┋"); non-numeric parts are dropped. Blank is "0".
func SeverityScore(v any) string {
	if IsBlank(v) {
		return "0"
	}
	s := strings.TrimSpace(Stringify(v))
	if s == "0" {
		return "0"
	}
	if strings.Contains(s, "┋") {
		return strings.ReplaceAll(s, "┋", "|")
	}
	if strings.Contains(s, "|") {
		var parts []string
		for _, p := range strings.Split(s, "|") {
			p = strings.TrimSpace(p)
			if isDigits(p) {
				parts = append(parts, p)
			}
		}
		if len(parts) == 0 {
			return "0"
		}
		return strings.Join(parts, "|")
	}
	if _, err := strconv.Atoi(s); err != nil {
		return "0"
	}
	return s
}

// ScoreList splits a SeverityScore value into distinct integer scores.
func ScoreList(score string) []int {
	if score == "0" {
		return nil
	}
	seen := make(map[int]bool)
	var out []int
	for _, p := range strings.Split(score, "|") {
		p = strings.TrimSpace(p)
		if !isDigits(p) {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// SeverityIndex resolves checklist item fragments to the actual headers of
// one sheet. Build it once per sheet with Vocabulary.IndexSeverity.
type SeverityIndex struct {
	regions map[string]map[int][]severityItem
}

type severityItem struct {
	header      string
	description string
}

// IndexSeverity matches every item fragment to the first header containing it.
func (v *Vocabulary) IndexSeverity(headers []string) *SeverityIndex {
	idx := &SeverityIndex{regions: make(map[string]map[int][]severityItem, len(v.ISS.Regions))}
	for _, region := range v.ISS.Regions {
		byScore := make(map[int][]severityItem, len(region.Items))
		for score, fragments := range region.Items {
			for _, frag := range fragments {
				for _, h := range headers {
					if strings.Contains(h, frag) {
						byScore[score] = append(byScore[score], severityItem{
							header:      h,
							description: severityDescription(h, v.ISS.RegionPrefixes),
						})
						break
					}
				}
			}
		}
		idx.regions[region.Key] = byScore
	}
	return idx
}

// Details narrates the checked items of a region for the given scores, e.g.
// "3分（单侧血胸或气胸），2分（胸骨骨折）". Empty when nothing is checked.
func (idx *SeverityIndex) Details(region string, scores []int, cell func(header string) any) string {
	groups := make(map[int][]string)
	for _, score := range scores {
		for _, item := range idx.regions[region][score] {
			if IsBlank(cell(item.header)) {
				continue
			}
			groups[score] = append(groups[score], item.description)
		}
	}
	if len(groups) == 0 {
		return ""
	}

	ordered := make([]int, 0, len(groups))
	for s := range groups {
		ordered = append(ordered, s)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(ordered)))

	parts := make([]string, 0, len(ordered))
	for _, s := range ordered {
		parts = append(parts, strconv.Itoa(s)+"分（"+strings.Join(groups[s], ", ")+"）")
	}
	return strings.Join(parts, "，")
}

func severityDescription(header string, prefixes []string) string {
	for _, p := range prefixes {
		if strings.Contains(header, p) {
			header = strings.TrimSpace(strings.Replace(header, p, "", 1))
			break
		}
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "—"))
}
