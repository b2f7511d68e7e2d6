package classifier

import (
	"fmt"
	"sort"
	"strings"

	"github.com/inventcures/virtual-tumor-board-sub003/internal/domain"
)

// MergeExtractedData applies section-specific field extraction and merges the
// results into a copy of base. List fields accumulate without duplicates;
// scalar fields are overwritten. Sections are applied from lowest to highest
// priority so the highest-priority section's scalars are the ones that remain.
func (c *Classifier) MergeExtractedData(base domain.ExtractedClinicalData, sections []domain.Section) domain.ExtractedClinicalData {
	merged := base.Clone()

	ordered := make([]domain.Section, len(sections))
	copy(ordered, sections)
	sortByPriorityAscending(ordered)

	for _, s := range ordered {
		extractor, ok := sectionExtractors[s.ContentType]
		if !ok {
			continue
		}
		mergeInto(&merged, extractor(s.Text))
	}
	return merged
}

func sortByPriorityAscending(sections []domain.Section) {
	sort.SliceStable(sections, func(i, j int) bool {
		return Priority(sections[i].ContentType) < Priority(sections[j].ContentType)
	})
}

func mergeInto(dst *domain.ExtractedClinicalData, src domain.ExtractedClinicalData) {
	for _, f := range domain.AllFields() {
		if v, ok := src.Scalar(f); ok && strings.TrimSpace(v) != "" {
			dst.SetScalar(f, v)
		}
	}
	if len(src.IHCMarkers) > 0 {
		if dst.IHCMarkers == nil {
			dst.IHCMarkers = make(map[string]string, len(src.IHCMarkers))
		}
		for k, v := range src.IHCMarkers {
			dst.IHCMarkers[k] = v
		}
	}
	dst.Findings = appendUnique(dst.Findings, src.Findings...)
	dst.Measurements = appendUnique(dst.Measurements, src.Measurements...)
	dst.Mutations = appendUnique(dst.Mutations, src.Mutations...)
	dst.Medications = appendUnique(dst.Medications, src.Medications...)
	for _, lv := range src.LabValues {
		if !containsLab(dst.LabValues, lv) {
			dst.LabValues = append(dst.LabValues, lv)
		}
	}
}

func appendUnique(dst []string, items ...string) []string {
	for _, item := range items {
		dup := false
		for _, existing := range dst {
			if strings.EqualFold(existing, item) {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, item)
		}
	}
	return dst
}

func containsLab(list []domain.LabValue, lv domain.LabValue) bool {
	for _, existing := range list {
		if strings.EqualFold(existing.Name, lv.Name) && existing.Value == lv.Value {
			return true
		}
	}
	return false
}

type sectionExtractor func(text string) domain.ExtractedClinicalData

var sectionExtractors = map[domain.SubspecialtyContent]sectionExtractor{
	domain.ContentPathologySummary: extractPathology,
	domain.ContentStagingInfo:      extractStaging,
	domain.ContentLabValues:        extractLabValues,
	domain.ContentMedications:      extractMedications,
	domain.ContentGenomicFindings:  extractGenomics,
	domain.ContentRadiologySummary: extractRadiology,
	domain.ContentSurgicalDetails:  extractSurgical,
}

func extractPathology(text string) domain.ExtractedClinicalData {
	var d domain.ExtractedClinicalData
	for _, m := range markerPattern.FindAllStringSubmatch(text, -1) {
		if d.IHCMarkers == nil {
			d.IHCMarkers = make(map[string]string)
		}
		d.IHCMarkers[normalizeMarker(m[1])] = strings.ReplaceAll(strings.ToLower(m[2]), " ", "")
	}
	if m := gradePattern.FindStringSubmatch(text); m != nil {
		d.Grade = m[1]
	}
	if m := histologyPattern.FindStringSubmatch(text); m != nil {
		d.Histology = strings.ToLower(m[1])
	}
	if m := marginsPattern.FindStringSubmatch(text); m != nil {
		d.Margins = strings.ToLower(m[1])
	}
	return d
}

func normalizeMarker(name string) string {
	upper := strings.ToUpper(name)
	switch {
	case strings.HasPrefix(upper, "HER"):
		return "HER2"
	case strings.HasPrefix(upper, "KI"):
		return "Ki-67"
	}
	return upper
}

func extractStaging(text string) domain.ExtractedClinicalData {
	var d domain.ExtractedClinicalData
	if m := tnmPattern.FindStringSubmatch(text); m != nil {
		d.Stage = fmt.Sprintf("%s %s %s", m[1], m[2], m[3])
	} else if m := stageGroupPattern.FindStringSubmatch(text); m != nil {
		d.Stage = "Stage " + strings.ToUpper(m[1]+m[2])
	}
	return d
}

func extractLabValues(text string) domain.ExtractedClinicalData {
	var d domain.ExtractedClinicalData
	for _, m := range labValuePattern.FindAllStringSubmatch(text, -1) {
		lv := domain.LabValue{Name: normalizeLabName(m[1]), Value: m[2], Unit: m[3]}
		if !containsLab(d.LabValues, lv) {
			d.LabValues = append(d.LabValues, lv)
		}
	}
	return d
}

func normalizeLabName(name string) string {
	lower := strings.ToLower(name)
	switch lower {
	case "hb", "hemoglobin":
		return "Hemoglobin"
	case "platelet", "platelets":
		return "Platelets"
	case "wbc", "cea", "alt", "ast", "psa", "ldh":
		return strings.ToUpper(lower)
	}
	if strings.HasPrefix(lower, "ca") {
		return strings.ToUpper(lower)
	}
	return strings.ToUpper(lower[:1]) + lower[1:]
}

func extractMedications(text string) domain.ExtractedClinicalData {
	var d domain.ExtractedClinicalData
	for _, line := range strings.Split(text, "\n") {
		if medicationPattern.MatchString(line) {
			d.Medications = appendUnique(d.Medications, strings.TrimSpace(strings.TrimLeft(line, "-*• \t")))
		}
	}
	return d
}

func extractGenomics(text string) domain.ExtractedClinicalData {
	var d domain.ExtractedClinicalData
	for _, m := range mutationPattern.FindAllStringSubmatch(text, -1) {
		d.Mutations = appendUnique(d.Mutations, m[1]+" "+m[2])
	}
	if m := msiPattern.FindStringSubmatch(text); m != nil {
		d.MSIStatus = strings.ToUpper(m[1])
	}
	if m := tmbPattern.FindStringSubmatch(text); m != nil {
		d.TMB = m[1]
	}
	return d
}

func extractRadiology(text string) domain.ExtractedClinicalData {
	var d domain.ExtractedClinicalData
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		d.Findings = appendUnique(d.Findings, line)
	}
	d.Measurements = appendUnique(nil, measurementPattern.FindAllString(text, -1)...)
	return d
}

func extractSurgical(text string) domain.ExtractedClinicalData {
	var d domain.ExtractedClinicalData
	if m := procedurePattern.FindStringSubmatch(text); m != nil {
		d.Procedure = strings.ToLower(m[1])
	}
	if m := marginsPattern.FindStringSubmatch(text); m != nil {
		d.Margins = strings.ToLower(m[1])
	}
	return d
}
