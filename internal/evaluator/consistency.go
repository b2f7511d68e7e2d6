package evaluator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/inventcures/virtual-tumor-board-sub003/internal/domain"
)

// CheckConsistency penalizes cross-field contradictions. It starts at 1,
// subtracts 0.15 per contradiction and never drops below 0.5.
func CheckConsistency(dt domain.DocumentType, data domain.ExtractedClinicalData) (float64, []domain.Issue) {
	var issues []domain.Issue
	add := func(f domain.Field, format string, args ...any) {
		issues = append(issues, domain.Issue{
			Severity:    domain.SeverityMinor,
			Field:       f,
			Description: fmt.Sprintf(format, args...),
		})
	}

	histology := strings.ToLower(data.Histology)

	if strings.Contains(histology, "carcinoma") && !strings.Contains(histology, "in situ") && !data.Has(domain.FieldGrade) {
		add(domain.FieldGrade, "Histology reports a carcinoma but no grade was extracted")
	}
	if data.Has(domain.FieldGrade) && !data.Has(domain.FieldHistology) && dt == domain.DocPathology {
		add(domain.FieldHistology, "A grade was extracted without a histologic type")
	}
	if msi := strings.ToUpper(data.MSIStatus); strings.HasPrefix(msi, "MSI-H") {
		if tmb, ok := parseLeadingNumber(data.TMB); ok && tmb < 1 {
			add(domain.FieldTMB, "MSI-H status conflicts with a TMB of %s", data.TMB)
		}
	}
	if dt == domain.DocRadiology && data.Has(domain.FieldImpression) && !data.Has(domain.FieldFindings) {
		add(domain.FieldFindings, "An impression was extracted without supporting findings")
	}
	if _, ok := markerValue(data.IHCMarkers, "HER2"); ok && dt == domain.DocPathology && !data.Has(domain.FieldHistology) {
		add(domain.FieldHistology, "HER2 status was extracted without a histologic type")
	}
	if hasDistantMetastasis(data.Stage) && deniesMetastasis(data.Impression+" "+data.Diagnosis) {
		add(domain.FieldStage, "Stage %q indicates metastasis but the text states none", data.Stage)
	}
	if strings.Contains(strings.ToLower(data.Margins), "positive") && strings.Contains(strings.ToLower(data.Margins), "negative") {
		add(domain.FieldMargins, "Margins are reported as both positive and negative")
	}

	return penalized(len(issues)), issues
}

func markerValue(markers map[string]string, name string) (string, bool) {
	for k, v := range markers {
		normalized := strings.ReplaceAll(strings.ToUpper(k), "-", "")
		if normalized == name {
			return v, true
		}
	}
	return "", false
}

func hasDistantMetastasis(stage string) bool {
	upper := strings.ToUpper(stage)
	return strings.Contains(upper, "M1") || strings.Contains(upper, "STAGE IV")
}

func deniesMetastasis(text string) bool {
	lower := strings.ToLower(text)
	return strings.Contains(lower, "no evidence of metasta") || strings.Contains(lower, "no metasta") || strings.Contains(lower, "no distant metasta")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
