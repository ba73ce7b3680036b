// Package quality evaluates the transformed working set against a
// declarative rule set before anything is written to canonical tables.
// A FAIL verdict blocks the load phase.
package quality

import (
	_ "embed"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// RuleKind selects the evaluation strategy for a rule.
type RuleKind string

const (
	KindRange      RuleKind = "range"
	KindRequired   RuleKind = "required"
	KindEnum       RuleKind = "enum"
	KindUniqueness RuleKind = "uniqueness"
)

// Rule is one declarative quality check.
type Rule struct {
	Name     string   `yaml:"name"`
	Kind     RuleKind `yaml:"kind"`
	Entity   string   `yaml:"entity"`
	Field    string   `yaml:"field"`
	Critical bool     `yaml:"critical"`
	Min      *float64 `yaml:"min,omitempty"`
	Max      *float64 `yaml:"max,omitempty"`
	Values   []string `yaml:"values,omitempty"`
}

//go:embed rules.yaml
var defaultRulesYAML []byte

// DefaultRules parses the embedded rule set.
func DefaultRules() ([]Rule, error) {
	return parseRules(defaultRulesYAML)
}

func parseRules(data []byte) ([]Rule, error) {
	var doc struct {
		Rules []Rule `yaml:"rules"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "quality: parse rules")
	}
	if len(doc.Rules) == 0 {
		return nil, eris.New("quality: rule set is empty")
	}
	for _, r := range doc.Rules {
		switch r.Kind {
		case KindRange:
			if r.Min == nil && r.Max == nil {
				return nil, eris.Errorf("quality: range rule %s has no bounds", r.Name)
			}
		case KindEnum:
			if len(r.Values) == 0 {
				return nil, eris.Errorf("quality: enum rule %s has no values", r.Name)
			}
		case KindRequired, KindUniqueness:
		default:
			return nil, eris.Errorf("quality: rule %s has unknown kind %q", r.Name, r.Kind)
		}
	}
	return doc.Rules, nil
}
