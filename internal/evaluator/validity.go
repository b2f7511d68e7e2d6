package evaluator

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/inventcures/virtual-tumor-board-sub003/internal/domain"
)

const (
	violationPenalty = 0.15
	scoreFloor       = 0.5
)

var (
	gradeVocabulary  = regexp.MustCompile(`(?i)^(g(rade)?\s*)?([1-4]|i{1,3}|iv|x)(\s*/\s*[34])?$|\b(low|intermediate|high|well|moderately|poorly|undifferentiated)\b`)
	msiVocabulary    = regexp.MustCompile(`(?i)^(msi-?h(igh)?|msi-?l(ow)?|mss|stable|microsatellite (stable|instability[- ]high|instability[- ]low))$`)
	markerVocabulary = regexp.MustCompile(`(?i)\b(positive|negative|equivocal|pos|neg|low|high|intact|lost|retained)\b|^[0-3]\+$|\d{1,3}(\.\d+)?\s*%`)
	stageVocabulary  = regexp.MustCompile(`(?i)^(stage\s+)?(0|iv|i{1,3})[abc]?\d?$|\b[cpy]?t([0-4][a-d]?|is|x)\s*,?\s*[cp]?n[0-3x]`)
	leadingNumber    = regexp.MustCompile(`^\s*(-?\d+(?:\.\d+)?)`)
	hasDigit         = regexp.MustCompile(`\d`)
	qualitativeValue = regexp.MustCompile(`(?i)^(positive|negative|detected|not detected|reactive|non-reactive|normal|abnormal|trace)$`)
)

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"02-01-2006",
	"02.01.2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
	"January 2006",
	"2006-01",
}

// CheckClinicalValidity penalizes values outside clinically meaningful
// vocabularies or formats. It starts at 1, subtracts 0.15 per violation
// and never drops below 0.5.
func CheckClinicalValidity(dt domain.DocumentType, data domain.ExtractedClinicalData) (float64, []domain.Issue) {
	var issues []domain.Issue
	add := func(f domain.Field, format string, args ...any) {
		issues = append(issues, domain.Issue{
			Severity:    domain.SeverityMinor,
			Field:       f,
			Description: fmt.Sprintf(format, args...),
		})
	}

	if data.Has(domain.FieldGrade) && !gradeVocabulary.MatchString(strings.TrimSpace(data.Grade)) {
		add(domain.FieldGrade, "Grade %q is not a recognized histologic grade", data.Grade)
	}
	if data.Has(domain.FieldMSIStatus) && !msiVocabulary.MatchString(strings.TrimSpace(data.MSIStatus)) {
		add(domain.FieldMSIStatus, "MSI status %q should be MSI-H, MSI-L or MSS", data.MSIStatus)
	}
	if data.Has(domain.FieldTMB) {
		if v, ok := parseLeadingNumber(data.TMB); !ok || v < 0 || v > 1000 {
			add(domain.FieldTMB, "TMB %q is not a plausible mutations-per-megabase value", data.TMB)
		}
	}
	for _, name := range sortedKeys(data.IHCMarkers) {
		value := strings.TrimSpace(data.IHCMarkers[name])
		if !markerVocabulary.MatchString(value) {
			add(domain.FieldIHCMarkers, "Marker %s has unrecognized result %q", name, value)
		}
	}
	if data.Has(domain.FieldStage) && !stageVocabulary.MatchString(strings.TrimSpace(data.Stage)) {
		add(domain.FieldStage, "Stage %q is neither a TNM stage nor a stage group", data.Stage)
	}
	for _, lv := range data.LabValues {
		switch {
		case strings.TrimSpace(lv.Name) == "" || strings.TrimSpace(lv.Value) == "":
			add(domain.FieldLabValues, "Lab value %q is missing a name or value", lv.Name+" "+lv.Value)
		case !hasDigit.MatchString(lv.Value) && !qualitativeValue.MatchString(strings.TrimSpace(lv.Value)):
			add(domain.FieldLabValues, "Lab value %s has non-numeric result %q", lv.Name, lv.Value)
		}
	}
	if data.Has(domain.FieldDate) && !parsesAsDate(data.Date) {
		add(domain.FieldDate, "Date %q is not a recognizable date", data.Date)
	}
	if dt == domain.DocGenomics {
		for _, m := range data.Mutations {
			if !hasDigit.MatchString(m) && !strings.Contains(strings.ToLower(m), "fusion") && !strings.Contains(strings.ToLower(m), "amplification") {
				add(domain.FieldMutations, "Mutation %q does not name a variant", m)
			}
		}
	}

	return penalized(len(issues)), issues
}

func penalized(violations int) float64 {
	return math.Max(scoreFloor, 1.0-violationPenalty*float64(violations))
}

func parseLeadingNumber(s string) (float64, bool) {
	m := leadingNumber.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	return v, err == nil
}

func parsesAsDate(s string) bool {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}
