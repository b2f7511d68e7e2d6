// Package redact removes patient identifiers from document text before it
// is classified, sent for extraction or persisted.
package redact

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/inventcures/virtual-tumor-board-sub003/internal/domain"
)

// Rule is a single identifier pattern. Group selects the submatch that is
// replaced; zero replaces the whole match.
type Rule struct {
	ID      string
	Pattern string
	Group   int
}

type compiledRule struct {
	Rule
	re *regexp.Regexp
}

// Result reports what was removed.
type Result struct {
	Text   string         `json:"-"`
	ByRule map[string]int `json:"byRule"`
	Total  int            `json:"total"`
}

// Redactor applies identifier rules. It is safe for concurrent use.
type Redactor struct {
	enabled bool
	rules   []compiledRule
}

type span struct {
	start, end int
	ruleID     string
}

// New builds a redactor with the default rules.
func New(cfg domain.RedactionConfig) *Redactor {
	r, err := NewWithRules(cfg.Enabled, DefaultRules())
	if err != nil {
		panic(err)
	}
	return r
}

// NewWithRules compiles custom rules.
func NewWithRules(enabled bool, rules []Rule) (*Redactor, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for _, rule := range rules {
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", rule.ID, err)
		}
		if rule.Group > re.NumSubexp() {
			return nil, fmt.Errorf("rule %s: group %d out of range", rule.ID, rule.Group)
		}
		compiled = append(compiled, compiledRule{Rule: rule, re: re})
	}
	return &Redactor{enabled: enabled, rules: compiled}, nil
}

// Enabled reports whether Redact changes its input.
func (r *Redactor) Enabled() bool {
	return r != nil && r.enabled
}

// Redact replaces every identifier with a bracketed rule label.
func (r *Redactor) Redact(text string) Result {
	result := Result{Text: text, ByRule: map[string]int{}}
	if !r.Enabled() {
		return result
	}

	var spans []span
	for _, rule := range r.rules {
		for _, m := range rule.re.FindAllStringSubmatchIndex(text, -1) {
			start, end := m[2*rule.Group], m[2*rule.Group+1]
			if start < 0 || start == end {
				continue
			}
			spans = append(spans, span{start: start, end: end, ruleID: rule.ID})
			result.ByRule[rule.ID]++
			result.Total++
		}
	}
	if len(spans) == 0 {
		return result
	}

	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	merged := []span{spans[0]}
	for _, s := range spans[1:] {
		last := &merged[len(merged)-1]
		if s.start <= last.end {
			if s.end > last.end {
				last.end = s.end
			}
			continue
		}
		merged = append(merged, s)
	}

	out := make([]byte, 0, len(text))
	prev := 0
	for _, s := range merged {
		out = append(out, text[prev:s.start]...)
		out = append(out, "[REDACTED:"+s.ruleID+"]"...)
		prev = s.end
	}
	out = append(out, text[prev:]...)
	result.Text = string(out)
	return result
}
