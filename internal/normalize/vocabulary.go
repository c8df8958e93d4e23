package normalize

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed vocabulary.yaml
var defaultVocabulary []byte

// Vocabulary holds the fixed category tables consulted while mapping rows.
// It is built once at startup and shared read-only.
type Vocabulary struct {
	InjuryCauses         []Category    `yaml:"injury_causes"`
	OtherCauseCode       int           `yaml:"other_cause_code"`
	OtherCauseLabel      string        `yaml:"other_cause_label"`
	GCS                  GCSScales     `yaml:"gcs"`
	Consciousness        []Band        `yaml:"consciousness"`
	ConsciousnessDefault string        `yaml:"consciousness_default"`
	InvalidAddresses     []string      `yaml:"invalid_addresses"`
	ISS                  SeverityTable `yaml:"iss"`

	invalidAddresses map[string]struct{}
}

// Category is one entry of an ordered classification list.
type Category struct {
	Label string `yaml:"label"`
	Code  int    `yaml:"code"`
}

// GCSScales maps form answers to Glasgow Coma Scale component scores.
type GCSScales struct {
	Eye    map[string]int `yaml:"eye"`
	Verbal map[string]int `yaml:"verbal"`
	Motor  map[string]int `yaml:"motor"`
}

// Band labels an inclusive score range.
type Band struct {
	Min   int    `yaml:"min"`
	Max   int    `yaml:"max"`
	Label string `yaml:"label"`
}

// SeverityTable describes the injury severity score matrix of the form.
type SeverityTable struct {
	RegionPrefixes []string `yaml:"region_prefixes"`
	Regions        []Region `yaml:"regions"`
}

// Region is one body region: the sheet column holding its score(s) and,
// per score, header fragments of the checklist columns describing it.
type Region struct {
	Key    string           `yaml:"key"`
	Column string           `yaml:"column"`
	Items  map[int][]string `yaml:"items"`
}

// DefaultVocabulary parses the embedded tables.
func DefaultVocabulary() (*Vocabulary, error) {
	return ParseVocabulary(defaultVocabulary)
}

// ParseVocabulary decodes and validates a vocabulary document.
func ParseVocabulary(data []byte) (*Vocabulary, error) {
	var v Vocabulary
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parse vocabulary: %w", err)
	}
	if len(v.InjuryCauses) == 0 {
		return nil, fmt.Errorf("parse vocabulary: no injury causes")
	}
	if len(v.ISS.Regions) == 0 {
		return nil, fmt.Errorf("parse vocabulary: no severity regions")
	}

	v.invalidAddresses = make(map[string]struct{}, len(v.InvalidAddresses))
	for _, tok := range v.InvalidAddresses {
		v.invalidAddresses[tok] = struct{}{}
	}
	return &v, nil
}

// IsInvalidAddress reports whether s is a placeholder rather than a place.
func (v *Vocabulary) IsInvalidAddress(s string) bool {
	_, ok := v.invalidAddresses[s]
	return ok
}

// ConsciousnessLevel labels a GCS total.
func (v *Vocabulary) ConsciousnessLevel(total int) string {
	for _, b := range v.Consciousness {
		if total >= b.Min && total <= b.Max {
			return b.Label
		}
	}
	return v.ConsciousnessDefault
}
