// Package rubric holds the per-document-type extraction rubrics: which fields
// are required, important or optional. Rubrics drive both prompt construction
// and completeness scoring.
package rubric

import (
	"sync"

	"github.com/inventcures/virtual-tumor-board-sub003/internal/domain"
)

// Rubric lists the expected fields for one document type by importance tier.
type Rubric struct {
	Required  []domain.Field `json:"required"`
	Important []domain.Field `json:"important"`
	Optional  []domain.Field `json:"optional"`
}

// AllFields returns required, important and optional fields in that order.
func (r Rubric) AllFields() []domain.Field {
	out := make([]domain.Field, 0, len(r.Required)+len(r.Important)+len(r.Optional))
	out = append(out, r.Required...)
	out = append(out, r.Important...)
	out = append(out, r.Optional...)
	return out
}

// IsEmpty reports whether the rubric names no fields.
func (r Rubric) IsEmpty() bool {
	return len(r.Required)+len(r.Important)+len(r.Optional) == 0
}

// Registry maps document types to rubrics. Lookups for a type without a
// registered rubric return the unknown type's rubric.
type Registry struct {
	mu      sync.RWMutex
	rubrics map[domain.DocumentType]Rubric
}

// NewRegistry creates an empty registry with only the fallback rubric.
func NewRegistry() *Registry {
	return &Registry{
		rubrics: map[domain.DocumentType]Rubric{
			domain.DocUnknown: unknownRubric,
		},
	}
}

// Default returns a registry populated with the built-in rubric for every document type.
func Default() *Registry {
	r := NewRegistry()
	for dt, rb := range builtin {
		r.Register(dt, rb)
	}
	return r
}

// Register sets the rubric for a document type.
func (r *Registry) Register(dt domain.DocumentType, rb Rubric) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rubrics[dt] = rb
}

// For returns the rubric for dt, falling back to the unknown rubric.
func (r *Registry) For(dt domain.DocumentType) Rubric {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if rb, ok := r.rubrics[dt]; ok {
		return rb
	}
	return r.rubrics[domain.DocUnknown]
}

// Types returns the registered document types in declaration order.
func (r *Registry) Types() []domain.DocumentType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.DocumentType
	for _, dt := range domain.AllDocumentTypes() {
		if _, ok := r.rubrics[dt]; ok {
			out = append(out, dt)
		}
	}
	return out
}

var unknownRubric = Rubric{
	Required:  []domain.Field{domain.FieldRawText},
	Important: []domain.Field{domain.FieldDate, domain.FieldInstitution},
	Optional:  []domain.Field{domain.FieldDiagnosis, domain.FieldFindings},
}

var builtin = map[domain.DocumentType]Rubric{
	domain.DocPathology: {
		Required:  []domain.Field{domain.FieldHistology, domain.FieldGrade},
		Important: []domain.Field{domain.FieldMargins, domain.FieldIHCMarkers, domain.FieldSpecimen},
		Optional:  []domain.Field{domain.FieldDate, domain.FieldInstitution, domain.FieldStage},
	},
	domain.DocRadiology: {
		Required:  []domain.Field{domain.FieldFindings, domain.FieldImpression},
		Important: []domain.Field{domain.FieldMeasurements, domain.FieldProcedure},
		Optional:  []domain.Field{domain.FieldDate, domain.FieldInstitution},
	},
	domain.DocGenomics: {
		Required:  []domain.Field{domain.FieldMutations},
		Important: []domain.Field{domain.FieldMSIStatus, domain.FieldTMB},
		Optional:  []domain.Field{domain.FieldSpecimen, domain.FieldDate, domain.FieldInstitution},
	},
	domain.DocLabReport: {
		Required:  []domain.Field{domain.FieldLabValues},
		Important: []domain.Field{domain.FieldDate},
		Optional:  []domain.Field{domain.FieldInstitution, domain.FieldSpecimen},
	},
	domain.DocPrescription: {
		Required:  []domain.Field{domain.FieldMedications},
		Important: []domain.Field{domain.FieldDate, domain.FieldDiagnosis},
		Optional:  []domain.Field{domain.FieldInstitution},
	},
	domain.DocClinicalNotes: {
		Required:  []domain.Field{domain.FieldDiagnosis},
		Important: []domain.Field{domain.FieldFindings, domain.FieldMedications, domain.FieldStage},
		Optional:  []domain.Field{domain.FieldDate, domain.FieldInstitution, domain.FieldLabValues},
	},
	domain.DocDischargeSummary: {
		Required:  []domain.Field{domain.FieldDiagnosis, domain.FieldMedications},
		Important: []domain.Field{domain.FieldProcedure, domain.FieldFindings, domain.FieldDate},
		Optional:  []domain.Field{domain.FieldInstitution, domain.FieldLabValues},
	},
	domain.DocSurgicalNotes: {
		Required:  []domain.Field{domain.FieldProcedure, domain.FieldFindings},
		Important: []domain.Field{domain.FieldSpecimen, domain.FieldMargins, domain.FieldDate},
		Optional:  []domain.Field{domain.FieldInstitution, domain.FieldDiagnosis},
	},
	domain.DocUnknown: unknownRubric,
}
