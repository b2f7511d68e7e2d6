package classifier

import (
	"regexp"

	"github.com/inventcures/virtual-tumor-board-sub003/internal/domain"
)

// typePatterns are matched case-insensitively; each pattern counts once.
var typePatterns = map[domain.DocumentType][]*regexp.Regexp{
	domain.DocPathology: compileAll(
		`histopatholog`,
		`\bbiops(y|ies)\b`,
		`\bcarcinoma\b`,
		`\bmargins?\b`,
		`immunohisto|\bIHC\b`,
		`\bgrade\s*[:\-]?\s*([1-3]|I{1,3})\b`,
		`\bspecimen\b`,
		`gross description`,
		`microscopic`,
		`\bestrogen receptor\b|\bER\s*[:\-]?\s*(positive|negative)`,
	),
	domain.DocRadiology: compileAll(
		`\bCT\b|computed tomography`,
		`\bMRI\b|magnetic resonance`,
		`\bPET\b`,
		`ultrasound|sonograph`,
		`\bimpression\b`,
		`\bfindings\b`,
		`\bcontrast\b`,
		`\blesions?\b`,
		`\bmammogra`,
		`radiolog`,
	),
	domain.DocGenomics: compileAll(
		`\bmutations?\b`,
		`\bvariants?\b`,
		`\bNGS\b|next[- ]generation sequencing`,
		`\bMSI\b|microsatellite`,
		`\bTMB\b|tumou?r mutational burden`,
		`\b(EGFR|KRAS|NRAS|BRAF|ALK|ROS1|TP53|BRCA[12]|PIK3CA)\b`,
		`allele frequency|\bVAF\b`,
		`\bgenomic`,
		`\b(likely )?pathogenic\b`,
		`\bexon\s+\d+`,
	),
	domain.DocLabReport: compileAll(
		`hemoglobin|haemoglobin|\bHb\b`,
		`\bWBC\b|white blood`,
		`\bplatelets?\b`,
		`\bcreatinine\b`,
		`reference (range|interval)`,
		`\b(mg/dL|g/dL|mmol/L|U/L|ng/mL)\b`,
		`\bCBC\b|complete blood count`,
		`\bCEA\b|\bCA[- ]?125\b|\bCA\s?19-9\b|\bPSA\b`,
		`\bALT\b|\bAST\b|bilirubin`,
		`lab(oratory)? report`,
	),
	domain.DocPrescription: compileAll(
		`\bRx\b`,
		`\b\d+(\.\d+)?\s*mg\b`,
		`\b(tablets?|capsules?)\b`,
		`\b(once|twice|thrice) daily\b|\b(OD|BD|BID|TID|QID)\b`,
		`prescri(bed|ption)`,
		`\bdispense\b`,
		`\brefills?\b`,
		`\bsig\s*:`,
		`\bby mouth\b|\borally\b|\bp\.o\.`,
		`\bpharmacy\b`,
	),
	domain.DocClinicalNotes: compileAll(
		`chief complaint`,
		`history of present illness|\bHPI\b`,
		`physical exam`,
		`review of systems`,
		`\bassessment\b`,
		`\bplan\s*:`,
		`vital signs`,
		`follow[- ]?up`,
		`\bECOG\b|performance status`,
		`progress note|consultation note`,
	),
	domain.DocDischargeSummary: compileAll(
		`discharge summary`,
		`date of discharge|discharged on`,
		`admission date|date of admission`,
		`hospital course`,
		`discharge medications`,
		`discharge diagnos[ie]s`,
		`condition (at|on) discharge`,
		`discharge instructions`,
	),
	domain.DocSurgicalNotes: compileAll(
		`operative (report|note)`,
		`procedure performed`,
		`pre-?operative diagnosis`,
		`post-?operative diagnosis`,
		`\banesthesia\b`,
		`\bincision\b`,
		`estimated blood loss|\bEBL\b`,
		`\bsurgeon\b`,
		`\b(resection|excision|\w+ectomy)\b`,
		`specimens? (sent|removed)`,
	),
}

type contentRule struct {
	patterns []*regexp.Regexp
	keywords []string
	priority int
}

var contentRules = map[domain.SubspecialtyContent]contentRule{
	domain.ContentPathologySummary: {
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(invasive|infiltrating)\s+\w+\s+carcinoma\b|\badenocarcinoma\b`),
			regexp.MustCompile(`(?i)\bgrade\s*[:\-]?\s*([1-3]|I{1,3})\b`),
			regexp.MustCompile(`(?i)\b(ER|PR|HER-?2)\s*[:\-]?\s*(positive|negative|equivocal|[0-3]\+)`),
			regexp.MustCompile(`(?i)\bKi-?67\b`),
		},
		keywords: []string{"histology", "carcinoma", "biopsy", "margin", "pathology", "immunohistochemistry"},
		priority: 10,
	},
	domain.ContentGenomicFindings: {
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`\b(EGFR|KRAS|NRAS|BRAF|ALK|ROS1|TP53|BRCA1|BRCA2|PIK3CA|ERBB2|MET|RET|IDH1|IDH2)\s+(p\.)?[A-Z]\d+[A-Z*]`),
			regexp.MustCompile(`(?i)\b(MSI-H|MSI-L|MSS)\b|microsatellite`),
			regexp.MustCompile(`(?i)\bTMB\b`),
		},
		keywords: []string{"mutation", "variant", "sequencing", "genomic", "allele", "tmb"},
		priority: 9,
	},
	domain.ContentStagingInfo: {
		patterns: []*regexp.Regexp{
			tnmPattern,
			regexp.MustCompile(`(?i)\bstage\s+(0|IV|I{1,3})[ABC]?\b`),
			regexp.MustCompile(`(?i)\bAJCC\b`),
		},
		keywords: []string{"stage", "staging", "tnm", "metasta", "lymph node"},
		priority: 8,
	},
	domain.ContentRadiologySummary: {
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(CT|MRI|PET|PET-CT|ultrasound|x-ray|mammogra\w*)\b`),
			measurementPattern,
			regexp.MustCompile(`(?i)\bimpression\s*:`),
		},
		keywords: []string{"scan", "imaging", "lesion", "mass", "nodule", "enhancement"},
		priority: 7,
	},
	domain.ContentLabValues: {
		patterns: []*regexp.Regexp{
			labValuePattern,
			regexp.MustCompile(`(?i)\b\d+(\.\d+)?\s*(g/dl|mg/dl|mmol/l|u/l|ng/ml|x10\^?9/l)`),
		},
		keywords: []string{"lab", "hemoglobin", "platelet", "creatinine", "wbc", "reference range"},
		priority: 6,
	},
	domain.ContentTreatmentHistory: {
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(received|completed|underwent|started)\s+(\w+\s+){0,3}(chemotherapy|radiation|radiotherapy|surgery|immunotherapy)`),
			regexp.MustCompile(`(?i)\b(adjuvant|neoadjuvant)\b`),
			regexp.MustCompile(`(?i)\b\d+\s+cycles?\s+of\b`),
		},
		keywords: []string{"chemotherapy", "radiation", "radiotherapy", "treatment", "regimen", "cycles", "prior therapy"},
		priority: 5,
	},
	domain.ContentMedications: {
		patterns: []*regexp.Regexp{
			medicationPattern,
			regexp.MustCompile(`(?i)\b(once|twice|three times)\s+(daily|a day)\b|\b(bid|tid|qid|qd)\b`),
		},
		keywords: []string{"medication", "tablet", "dose", "daily", "prescribed"},
		priority: 4,
	},
	domain.ContentSurgicalDetails: {
		patterns: []*regexp.Regexp{
			procedurePattern,
			regexp.MustCompile(`(?i)\b(operative|intraoperative|post-?operative)\b`),
			regexp.MustCompile(`(?i)\bestimated blood loss\b`),
		},
		keywords: []string{"surgery", "surgical", "incision", "anesthesia", "resected"},
		priority: 3,
	},
	domain.ContentFollowUpPlan: {
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bfollow[- ]?up\b`),
			regexp.MustCompile(`(?i)\b(return|revisit|review|repeat)\s+(\w+\s+)?(in|after)\s+\d+\s+(days?|weeks?|months?)`),
			regexp.MustCompile(`(?i)\bplan\s*:`),
		},
		keywords: []string{"follow-up", "follow up", "next visit", "schedule", "surveillance"},
		priority: 2,
	},
	domain.ContentPrognosisDiscussion: {
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bprognosis\b`),
			regexp.MustCompile(`(?i)\b(overall|progression[- ]free|disease[- ]free)\s+survival\b`),
			regexp.MustCompile(`(?i)\b\d+(\.\d+)?\s*%\s*(\d+-year\s+)?(survival|recurrence)`),
		},
		keywords: []string{"prognosis", "survival", "outcome", "recurrence risk", "life expectancy"},
		priority: 1,
	},
}

// Field extractors shared by detection and merging.
var (
	tnmPattern         = regexp.MustCompile(`\b([cpy]?T(?:[0-4][a-d]?|is|x))\s*,?\s*([cp]?N[0-3x][a-c]?)\s*,?\s*([cp]?M[01x])\b`)
	stageGroupPattern  = regexp.MustCompile(`(?i)\bstage\s+(0|IV|I{1,3})([ABC])?\b`)
	markerPattern      = regexp.MustCompile(`(?i)\b(ER|PR|HER-?2|Ki-?67)\s*(?:status)?\s*[:\-]?\s*(positive|negative|equivocal|[0-3]\+|\d{1,3}\s*%)`)
	gradePattern       = regexp.MustCompile(`(?i)\bgrade\s*[:\-]?\s*([1-3]|III|II|I|high|intermediate|low)\b`)
	histologyPattern   = regexp.MustCompile(`(?i)\b((?:invasive|infiltrating)\s+(?:ductal|lobular)\s+carcinoma|(?:mucinous\s+)?adenocarcinoma|squamous cell carcinoma|small cell carcinoma|ductal carcinoma in situ)\b`)
	labValuePattern    = regexp.MustCompile(`(?i)\b(hemoglobin|hb|wbc|platelets?|creatinine|cea|ca-?125|ca\s?19-9|alt|ast|bilirubin|psa|ldh|neutrophils)\s*[:=]?\s*(\d+(?:\.\d+)?)\s*(g/dl|mg/dl|mmol/l|u/l|ng/ml|x10\^?9/l|%)?`)
	medicationPattern  = regexp.MustCompile(`(?i)\b([a-z][a-z\-]{2,})\s+(\d+(?:\.\d+)?\s*(?:mg|mcg|g|units?|mg/m2))\b`)
	mutationPattern    = regexp.MustCompile(`\b(KRAS|NRAS|BRAF|EGFR|ALK|ROS1|TP53|BRCA1|BRCA2|PIK3CA|ERBB2|MET|RET|IDH1|IDH2)\s+((?:p\.)?[A-Z]\d+[A-Z*]|exon\s*\d+\s+\w+|amplification|fusion)`)
	msiPattern         = regexp.MustCompile(`(?i)\b(MSI-H|MSI-L|MSS)\b`)
	tmbPattern         = regexp.MustCompile(`(?i)\bTMB\s*(?:of|:|-|=)?\s*(\d+(?:\.\d+)?)`)
	measurementPattern = regexp.MustCompile(`(?i)\b\d+(?:\.\d+)?(?:\s*x\s*\d+(?:\.\d+)?)*\s*(?:cm|mm)\b`)
	procedurePattern   = regexp.MustCompile(`(?i)\b(\w+ectomy|wide local excision|resection)\b`)
	marginsPattern     = regexp.MustCompile(`(?i)\bmargins?\s*(?:are|were)?\s*[:\-]?\s*(negative|positive|clear|involved|close)\b`)
)

func compileAll(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(`(?i)` + e)
	}
	return out
}
