package classifier

import (
	"math"
	"sort"
	"strings"

	"github.com/inventcures/virtual-tumor-board-sub003/internal/domain"
)

const (
	patternLineCredit = 0.2
	keywordLineCredit = 0.1
	minKeywordLineLen = 20
)

// ExtractSections attributes document lines to each tag. A line matching one of
// the tag's patterns adds 0.2 confidence; otherwise a line longer than 20
// characters containing a tag keyword adds 0.1. Confidence is capped at 1.
// Tags with no attributed lines produce no section. Sections are ordered by
// extraction priority, highest first.
func (c *Classifier) ExtractSections(text string, tags []domain.SubspecialtyContent) []domain.Section {
	lines := strings.Split(text, "\n")
	var sections []domain.Section

	for _, tag := range tags {
		rule, ok := contentRules[tag]
		if !ok {
			continue
		}
		section := domain.Section{ContentType: tag}
		var picked []string
		confidence := 0.0

		for i, line := range lines {
			if matchesAny(rule, line) {
				confidence += patternLineCredit
			} else if len(line) > minKeywordLineLen && containsKeyword(rule, strings.ToLower(line)) {
				confidence += keywordLineCredit
			} else {
				continue
			}
			picked = append(picked, line)
			section.Lines = append(section.Lines, i)
		}
		if len(picked) == 0 {
			continue
		}
		section.Text = strings.Join(picked, "\n")
		section.Confidence = math.Min(confidence, 1.0)
		sections = append(sections, section)
	}

	sort.SliceStable(sections, func(i, j int) bool {
		return Priority(sections[i].ContentType) > Priority(sections[j].ContentType)
	})
	return sections
}

// Priority is the merge precedence of a content tag; higher wins scalar conflicts.
func Priority(tag domain.SubspecialtyContent) int {
	return contentRules[tag].priority
}

func matchesAny(rule contentRule, line string) bool {
	for _, p := range rule.patterns {
		if p.MatchString(line) {
			return true
		}
	}
	return false
}

func containsKeyword(rule contentRule, lower string) bool {
	for _, kw := range rule.keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
