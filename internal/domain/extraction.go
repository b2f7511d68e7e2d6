package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Field names a key of the extraction record. Values match the JSON keys
// the oracle is asked to produce.
type Field string

const (
	FieldHistology    Field = "histology"
	FieldGrade        Field = "grade"
	FieldMargins      Field = "margins"
	FieldIHCMarkers   Field = "ihcMarkers"
	FieldFindings     Field = "findings"
	FieldMeasurements Field = "measurements"
	FieldImpression   Field = "impression"
	FieldMutations    Field = "mutations"
	FieldMSIStatus    Field = "msiStatus"
	FieldTMB          Field = "tmb"
	FieldLabValues    Field = "labValues"
	FieldRawText      Field = "rawText"
	FieldDate         Field = "date"
	FieldInstitution  Field = "institution"
	FieldStage        Field = "stage"
	FieldMedications  Field = "medications"
	FieldDiagnosis    Field = "diagnosis"
	FieldProcedure    Field = "procedure"
	FieldSpecimen     Field = "specimen"
)

var allFields = []Field{
	FieldHistology, FieldGrade, FieldMargins, FieldIHCMarkers, FieldFindings,
	FieldMeasurements, FieldImpression, FieldMutations, FieldMSIStatus, FieldTMB,
	FieldLabValues, FieldRawText, FieldDate, FieldInstitution, FieldStage,
	FieldMedications, FieldDiagnosis, FieldProcedure, FieldSpecimen,
}

// AllFields returns every known extraction field in declaration order.
func AllFields() []Field {
	out := make([]Field, len(allFields))
	copy(out, allFields)
	return out
}

// LabValue is a single named laboratory measurement.
type LabValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Unit  string `json:"unit,omitempty"`
}

// ExtractedClinicalData is the sparse structured record produced by extraction.
// No field is guaranteed to be populated.
type ExtractedClinicalData struct {
	Histology    string            `json:"histology,omitempty"`
	Grade        string            `json:"grade,omitempty"`
	Margins      string            `json:"margins,omitempty"`
	IHCMarkers   map[string]string `json:"ihcMarkers,omitempty"`
	Findings     []string          `json:"findings,omitempty"`
	Measurements []string          `json:"measurements,omitempty"`
	Impression   string            `json:"impression,omitempty"`
	Mutations    []string          `json:"mutations,omitempty"`
	MSIStatus    string            `json:"msiStatus,omitempty"`
	TMB          string            `json:"tmb,omitempty"`
	LabValues    []LabValue        `json:"labValues,omitempty"`
	RawText      string            `json:"rawText,omitempty"`
	Date         string            `json:"date,omitempty"`
	Institution  string            `json:"institution,omitempty"`
	Stage        string            `json:"stage,omitempty"`
	Medications  []string          `json:"medications,omitempty"`
	Diagnosis    string            `json:"diagnosis,omitempty"`
	Procedure    string            `json:"procedure,omitempty"`
	Specimen     string            `json:"specimen,omitempty"`
}

// Has reports whether a field is present: a non-blank string or a non-empty collection.
func (d *ExtractedClinicalData) Has(f Field) bool {
	if d == nil {
		return false
	}
	if s, ok := d.scalar(f); ok {
		return strings.TrimSpace(s) != ""
	}
	switch f {
	case FieldIHCMarkers:
		return len(d.IHCMarkers) > 0
	case FieldFindings:
		return len(d.Findings) > 0
	case FieldMeasurements:
		return len(d.Measurements) > 0
	case FieldMutations:
		return len(d.Mutations) > 0
	case FieldLabValues:
		return len(d.LabValues) > 0
	case FieldMedications:
		return len(d.Medications) > 0
	}
	return false
}

// PopulatedFields lists the present fields in declaration order.
func (d *ExtractedClinicalData) PopulatedFields() []Field {
	var out []Field
	for _, f := range allFields {
		if d.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

// IsEmpty reports whether no field is populated.
func (d *ExtractedClinicalData) IsEmpty() bool {
	return len(d.PopulatedFields()) == 0
}

// Scalar returns the value of a string-valued field.
func (d *ExtractedClinicalData) Scalar(f Field) (string, bool) {
	if d == nil {
		return "", false
	}
	return d.scalar(f)
}

// SetScalar assigns a string-valued field. It returns false for collection fields.
func (d *ExtractedClinicalData) SetScalar(f Field, v string) bool {
	p := d.scalarPtr(f)
	if p == nil {
		return false
	}
	*p = v
	return true
}

func (d *ExtractedClinicalData) scalar(f Field) (string, bool) {
	p := d.scalarPtr(f)
	if p == nil {
		return "", false
	}
	return *p, true
}

func (d *ExtractedClinicalData) scalarPtr(f Field) *string {
	switch f {
	case FieldHistology:
		return &d.Histology
	case FieldGrade:
		return &d.Grade
	case FieldMargins:
		return &d.Margins
	case FieldImpression:
		return &d.Impression
	case FieldMSIStatus:
		return &d.MSIStatus
	case FieldTMB:
		return &d.TMB
	case FieldRawText:
		return &d.RawText
	case FieldDate:
		return &d.Date
	case FieldInstitution:
		return &d.Institution
	case FieldStage:
		return &d.Stage
	case FieldDiagnosis:
		return &d.Diagnosis
	case FieldProcedure:
		return &d.Procedure
	case FieldSpecimen:
		return &d.Specimen
	}
	return nil
}

// Clone returns a deep copy.
func (d ExtractedClinicalData) Clone() ExtractedClinicalData {
	out := d
	if d.IHCMarkers != nil {
		out.IHCMarkers = make(map[string]string, len(d.IHCMarkers))
		for k, v := range d.IHCMarkers {
			out.IHCMarkers[k] = v
		}
	}
	out.Findings = append([]string(nil), d.Findings...)
	out.Measurements = append([]string(nil), d.Measurements...)
	out.Mutations = append([]string(nil), d.Mutations...)
	out.LabValues = append([]LabValue(nil), d.LabValues...)
	out.Medications = append([]string(nil), d.Medications...)
	return out
}

// JSON serializes the record compactly. Serialization of this type cannot fail.
func (d ExtractedClinicalData) JSON() string {
	b, _ := json.Marshal(d)
	return string(b)
}

// ParseExtractedData ingests an untyped JSON object produced by the oracle.
// Values are coerced to the field's type where possible; unknown keys and
// values that cannot be coerced are dropped and reported as warnings.
func ParseExtractedData(raw map[string]any) (ExtractedClinicalData, []string) {
	var (
		data     ExtractedClinicalData
		warnings []string
	)

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := raw[key]
		if value == nil {
			continue
		}
		f := Field(key)
		var err error
		switch f {
		case FieldIHCMarkers:
			var skipped []string
			data.IHCMarkers, skipped, err = coerceMarkers(value)
			for _, msg := range skipped {
				warnings = append(warnings, fmt.Sprintf("dropped %s entry %s", key, msg))
			}
		case FieldFindings:
			data.Findings, err = coerceStrings(value)
		case FieldMeasurements:
			data.Measurements, err = coerceStrings(value)
		case FieldMutations:
			data.Mutations, err = coerceStrings(value)
		case FieldMedications:
			data.Medications, err = coerceStrings(value)
		case FieldLabValues:
			data.LabValues, err = coerceLabValues(value)
		default:
			p := data.scalarPtr(f)
			if p == nil {
				warnings = append(warnings, fmt.Sprintf("ignored unknown field %q", key))
				continue
			}
			*p, err = coerceString(value)
		}
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("dropped field %q: %v", key, err))
		}
	}
	return data, warnings
}

func coerceString(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case json.Number:
		return t.String(), nil
	case bool:
		return strconv.FormatBool(t), nil
	case []any:
		parts, err := coerceStrings(t)
		if err != nil {
			return "", err
		}
		return strings.Join(parts, "; "), nil
	}
	return "", fmt.Errorf("expected string, got %T", v)
}

func coerceStrings(v any) ([]string, error) {
	switch t := v.(type) {
	case string:
		if strings.TrimSpace(t) == "" {
			return nil, nil
		}
		return []string{strings.TrimSpace(t)}, nil
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			switch it := item.(type) {
			case map[string]any:
				b, err := json.Marshal(it)
				if err != nil {
					return nil, err
				}
				out = append(out, string(b))
			case nil:
			default:
				s, err := coerceString(it)
				if err != nil {
					return nil, err
				}
				if s != "" {
					out = append(out, s)
				}
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("expected list of strings, got %T", v)
}

// coerceMarkers keeps every marker whose value can be read as a string. The
// second return names the entries that were skipped.
func coerceMarkers(v any) (map[string]string, []string, error) {
	var skipped []string
	switch t := v.(type) {
	case map[string]any:
		names := make([]string, 0, len(t))
		for k := range t {
			names = append(names, k)
		}
		sort.Strings(names)

		out := make(map[string]string, len(t))
		for _, k := range names {
			if t[k] == nil {
				continue
			}
			s, err := coerceString(t[k])
			if err != nil {
				skipped = append(skipped, fmt.Sprintf("%q: %v", k, err))
				continue
			}
			out[k] = s
		}
		return out, skipped, nil
	case []any:
		out := make(map[string]string, len(t))
		for i, item := range t {
			if item == nil {
				continue
			}
			s, err := coerceString(item)
			if err != nil {
				skipped = append(skipped, fmt.Sprintf("%d: %v", i, err))
				continue
			}
			name, value, ok := strings.Cut(s, ":")
			if !ok {
				out[s] = ""
				continue
			}
			out[strings.TrimSpace(name)] = strings.TrimSpace(value)
		}
		return out, skipped, nil
	}
	return nil, nil, fmt.Errorf("expected marker object, got %T", v)
}

func coerceLabValues(v any) ([]LabValue, error) {
	items, ok := v.([]any)
	if !ok {
		if m, isMap := v.(map[string]any); isMap {
			items = make([]any, 0, len(m))
			names := make([]string, 0, len(m))
			for k := range m {
				names = append(names, k)
			}
			sort.Strings(names)
			for _, name := range names {
				s, err := coerceString(m[name])
				if err != nil {
					return nil, err
				}
				items = append(items, map[string]any{"name": name, "value": s})
			}
		} else {
			return nil, fmt.Errorf("expected list of lab values, got %T", v)
		}
	}
	out := make([]LabValue, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("expected lab value object, got %T", item)
		}
		var lv LabValue
		for key, dst := range map[string]*string{"name": &lv.Name, "value": &lv.Value, "unit": &lv.Unit} {
			if obj[key] == nil {
				continue
			}
			s, err := coerceString(obj[key])
			if err != nil {
				return nil, fmt.Errorf("lab value %s: %w", key, err)
			}
			*dst = s
		}
		out = append(out, lv)
	}
	return out, nil
}
