package rubric

import (
	"fmt"
	"strings"

	"github.com/inventcures/virtual-tumor-board-sub003/internal/domain"
)

var fieldHints = map[domain.Field]string{
	domain.FieldHistology:    `"histology": string, tumor histologic type`,
	domain.FieldGrade:        `"grade": string, histologic grade (e.g. "2", "G3", "high grade")`,
	domain.FieldMargins:      `"margins": string, surgical margin status`,
	domain.FieldIHCMarkers:   `"ihcMarkers": object mapping marker name to result (ER, PR, HER2, Ki-67)`,
	domain.FieldFindings:     `"findings": array of strings`,
	domain.FieldMeasurements: `"measurements": array of strings with units`,
	domain.FieldImpression:   `"impression": string`,
	domain.FieldMutations:    `"mutations": array of strings (gene and variant)`,
	domain.FieldMSIStatus:    `"msiStatus": "MSI-H", "MSI-L" or "MSS"`,
	domain.FieldTMB:          `"tmb": number, mutations per megabase`,
	domain.FieldLabValues:    `"labValues": array of {"name", "value", "unit"}`,
	domain.FieldRawText:      `"rawText": string, a short verbatim summary of the document`,
	domain.FieldDate:         `"date": string, report date as YYYY-MM-DD`,
	domain.FieldInstitution:  `"institution": string`,
	domain.FieldStage:        `"stage": string, TNM stage (e.g. "pT2 N1 M0")`,
	domain.FieldMedications:  `"medications": array of strings (drug, dose, schedule)`,
	domain.FieldDiagnosis:    `"diagnosis": string`,
	domain.FieldProcedure:    `"procedure": string`,
	domain.FieldSpecimen:     `"specimen": string`,
}

// PromptFor builds the base extraction prompt for a document type. The
// source text is appended after the schema.
func (r *Registry) PromptFor(dt domain.DocumentType, sourceText string) string {
	rb := r.For(dt)

	var b strings.Builder
	fmt.Fprintf(&b, "You are extracting structured data from a %s document for an oncology tumor board.\n", dt)
	b.WriteString("Return a single JSON object and nothing else. Use only values stated in the document; omit fields that are not present.\n\n")

	writeTier(&b, "Required fields", rb.Required)
	writeTier(&b, "Important fields", rb.Important)
	writeTier(&b, "Optional fields", rb.Optional)

	b.WriteString("\nDOCUMENT:\n")
	b.WriteString(sourceText)
	return b.String()
}

func writeTier(b *strings.Builder, title string, fields []domain.Field) {
	if len(fields) == 0 {
		return
	}
	b.WriteString(title)
	b.WriteString(":\n")
	for _, f := range fields {
		hint, ok := fieldHints[f]
		if !ok {
			hint = fmt.Sprintf("%q: string", f)
		}
		b.WriteString("- ")
		b.WriteString(hint)
		b.WriteString("\n")
	}
}
