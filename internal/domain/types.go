// Package domain contains the core entities shared by the clinical document
// extraction pipeline: document and content taxonomies, the typed extraction
// record, evaluation scores and feedback, loop results and cache entries.
package domain

import (
	"errors"
	"fmt"
)

// DocumentType is the primary clinical category of a document.
// Declaration order is significant: it breaks classifier ties.
type DocumentType string

const (
	DocPathology        DocumentType = "pathology"
	DocRadiology        DocumentType = "radiology"
	DocGenomics         DocumentType = "genomics"
	DocLabReport        DocumentType = "lab-report"
	DocPrescription     DocumentType = "prescription"
	DocClinicalNotes    DocumentType = "clinical-notes"
	DocDischargeSummary DocumentType = "discharge-summary"
	DocSurgicalNotes    DocumentType = "surgical-notes"
	DocUnknown          DocumentType = "unknown"
)

var documentTypes = []DocumentType{
	DocPathology,
	DocRadiology,
	DocGenomics,
	DocLabReport,
	DocPrescription,
	DocClinicalNotes,
	DocDischargeSummary,
	DocSurgicalNotes,
	DocUnknown,
}

// AllDocumentTypes returns every document type in declaration order.
func AllDocumentTypes() []DocumentType {
	out := make([]DocumentType, len(documentTypes))
	copy(out, documentTypes)
	return out
}

// IsValid reports whether the document type is a known category.
func (t DocumentType) IsValid() bool {
	for _, dt := range documentTypes {
		if dt == t {
			return true
		}
	}
	return false
}

// ParseDocumentType converts a string into a DocumentType.
func ParseDocumentType(s string) (DocumentType, error) {
	t := DocumentType(s)
	if !t.IsValid() {
		return DocUnknown, fmt.Errorf("invalid document type: %s", s)
	}
	return t, nil
}

// SubspecialtyContent tags a kind of clinical content found inside a document,
// independent of the document's primary type.
type SubspecialtyContent string

const (
	ContentPathologySummary    SubspecialtyContent = "pathology-summary"
	ContentStagingInfo         SubspecialtyContent = "staging-info"
	ContentTreatmentHistory    SubspecialtyContent = "treatment-history"
	ContentLabValues           SubspecialtyContent = "lab-values"
	ContentMedications         SubspecialtyContent = "medications"
	ContentGenomicFindings     SubspecialtyContent = "genomic-findings"
	ContentFollowUpPlan        SubspecialtyContent = "follow-up-plan"
	ContentPrognosisDiscussion SubspecialtyContent = "prognosis-discussion"
	ContentRadiologySummary    SubspecialtyContent = "radiology-summary"
	ContentSurgicalDetails     SubspecialtyContent = "surgical-details"
)

var contentTags = []SubspecialtyContent{
	ContentPathologySummary,
	ContentStagingInfo,
	ContentTreatmentHistory,
	ContentLabValues,
	ContentMedications,
	ContentGenomicFindings,
	ContentFollowUpPlan,
	ContentPrognosisDiscussion,
	ContentRadiologySummary,
	ContentSurgicalDetails,
}

// AllSubspecialtyContent returns every content tag in declaration order.
func AllSubspecialtyContent() []SubspecialtyContent {
	out := make([]SubspecialtyContent, len(contentTags))
	copy(out, contentTags)
	return out
}

// Severity grades an evaluation issue.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityMajor    Severity = "major"
	SeverityMinor    Severity = "minor"
)

// StopReason explains why a reliability loop terminated.
type StopReason string

const (
	StopThresholdMet            StopReason = "Quality threshold met"
	StopMaxIterations           StopReason = "Max iterations reached"
	StopInsufficientImprovement StopReason = "Insufficient improvement"
	StopExtractionFailed        StopReason = "Extraction failed"
	StopCancelled               StopReason = "Cancelled"
)

// ErrEmptyDocument is returned when a document carries no bytes.
var ErrEmptyDocument = errors.New("document is empty")
