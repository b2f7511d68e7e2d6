package redact

// DefaultRules returns the patient identifier rules applied after OCR.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:      "patient-name",
			Pattern: `(?im)^[ \t]*(?:patient(?:'s)?(?:[ \t]+name)?|name)[ \t]*:[ \t]*([^\n]+)$`,
			Group:   1,
		},
		{
			ID:      "mrn",
			Pattern: `(?i)\b(?:MRN|UHID|medical[ \t]+record(?:[ \t]+(?:number|no\.?))?|hospital[ \t]+(?:no\.?|number)|patient[ \t]+id)[ \t]*[:#]?[ \t]*([A-Z0-9][A-Z0-9-]{3,})`,
			Group:   1,
		},
		{
			ID:      "date-of-birth",
			Pattern: `(?i)\b(?:DOB|D\.O\.B\.?|date[ \t]+of[ \t]+birth)[ \t]*[:\-]?[ \t]*(\d{1,4}[/.-]\d{1,2}[/.-]\d{1,4}|[A-Za-z]+[ \t]+\d{1,2},?[ \t]+\d{4}|\d{1,2}[ \t]+[A-Za-z]+[ \t]+\d{4})`,
			Group:   1,
		},
		{
			ID:      "ssn",
			Pattern: `\b\d{3}-\d{2}-\d{4}\b`,
		},
		{
			ID:      "national-id",
			Pattern: `\b\d{4}[ ]\d{4}[ ]\d{4}\b`,
		},
		{
			ID:      "email",
			Pattern: `\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`,
		},
		{
			ID:      "phone",
			Pattern: `(?:\+\d{1,3}[ \-]?)?(?:\(\d{3}\)[ ]?|\b\d{3}[ .\-])\d{3}[ .\-]\d{4}\b|\+91[ \-]?[6-9]\d{9}\b`,
		},
	}
}
