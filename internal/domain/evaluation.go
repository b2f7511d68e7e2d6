package domain

import "time"

// Dimension weights for the overall score.
const (
	WeightCompleteness     = 0.30
	WeightAccuracy         = 0.40
	WeightClinicalValidity = 0.15
	WeightConsistency      = 0.15
)

// EvaluationScore holds the four quality dimensions and their weighted sum.
// Every value is in [0,1].
type EvaluationScore struct {
	Overall          float64 `json:"overall"`
	Completeness     float64 `json:"completeness"`
	Accuracy         float64 `json:"accuracy"`
	Consistency      float64 `json:"consistency"`
	ClinicalValidity float64 `json:"clinicalValidity"`
}

// NewEvaluationScore builds a score whose overall value is derived from the dimensions.
func NewEvaluationScore(completeness, accuracy, consistency, clinicalValidity float64) EvaluationScore {
	return EvaluationScore{
		Overall: WeightCompleteness*completeness +
			WeightAccuracy*accuracy +
			WeightClinicalValidity*clinicalValidity +
			WeightConsistency*consistency,
		Completeness:     completeness,
		Accuracy:         accuracy,
		Consistency:      consistency,
		ClinicalValidity: clinicalValidity,
	}
}

// Issue is a single problem found while evaluating an extraction.
type Issue struct {
	Severity    Severity `json:"severity"`
	Field       Field    `json:"field"`
	Description string   `json:"description"`
}

// EvaluationFeedback is the structured critique handed to the optimizer.
type EvaluationFeedback struct {
	OverallScore   float64  `json:"overallScore"`
	Issues         []Issue  `json:"issues"`
	MissingFields  []Field  `json:"missingFields"`
	PriorityFields []Field  `json:"priorityFields"`
	Suggestions    []string `json:"suggestions"`
}

// IssuesWithSeverity filters issues by severity, preserving order.
func (f EvaluationFeedback) IssuesWithSeverity(s Severity) []Issue {
	var out []Issue
	for _, issue := range f.Issues {
		if issue.Severity == s {
			out = append(out, issue)
		}
	}
	return out
}

// IterationRecord captures one extract-evaluate pass of the reliability loop.
type IterationRecord struct {
	Iteration     int                   `json:"iteration"`
	ExtractedData ExtractedClinicalData `json:"extractedData"`
	Score         EvaluationScore       `json:"score"`
	Feedback      EvaluationFeedback    `json:"feedback"`
	PromptHash    string                `json:"promptHash,omitempty"`
	DurationMs    int64                 `json:"durationMs"`
	Error         string                `json:"error,omitempty"`
}

// ReliabilityLoopResult is the outcome of a reliability loop run.
type ReliabilityLoopResult struct {
	FinalData        ExtractedClinicalData `json:"finalData"`
	FinalScore       EvaluationScore       `json:"finalScore"`
	Iterations       int                   `json:"iterations"`
	MetThreshold     bool                  `json:"metThreshold"`
	StoppedReason    StopReason            `json:"stoppedReason"`
	IterationHistory []IterationRecord     `json:"iterationHistory"`
	Warnings         []string              `json:"warnings,omitempty"`
}

// Scored reports whether any iteration produced an evaluation.
func (r *ReliabilityLoopResult) Scored() bool {
	for _, rec := range r.IterationHistory {
		if rec.Error == "" {
			return true
		}
	}
	return false
}

// BestIteration returns the highest-scoring iteration, for reporting only.
// The loop's final data is always the last iteration.
func (r *ReliabilityLoopResult) BestIteration() (IterationRecord, bool) {
	if len(r.IterationHistory) == 0 {
		return IterationRecord{}, false
	}
	best := r.IterationHistory[0]
	for _, rec := range r.IterationHistory[1:] {
		if rec.Score.Overall > best.Score.Overall {
			best = rec
		}
	}
	return best, true
}

// Section is a contiguous-by-attribution slice of a document tied to one content tag.
type Section struct {
	ContentType SubspecialtyContent `json:"contentType"`
	Text        string              `json:"text"`
	Lines       []int               `json:"lines"`
	Confidence  float64             `json:"confidence"`
}

// DocumentClassification is the full classifier output for one document.
type DocumentClassification struct {
	PrimaryType          DocumentType          `json:"primaryType"`
	PrimaryConfidence    float64               `json:"primaryConfidence"`
	ContainsContent      []SubspecialtyContent `json:"containsContent"`
	IsComposite          bool                  `json:"isComposite"`
	ExtractedSections    []Section             `json:"extractedSections,omitempty"`
	ClassificationReason string                `json:"classificationReason"`
}

// CacheEntry is a stored single-pass processing result.
type CacheEntry struct {
	CacheKey         string                `json:"cacheKey"`
	CachedAt         time.Time             `json:"cachedAt"`
	TTL              time.Duration         `json:"ttl"`
	HitCount         int                   `json:"hitCount"`
	ClassifiedType   DocumentType          `json:"classifiedType"`
	Confidence       float64               `json:"confidence"`
	ExtractedData    ExtractedClinicalData `json:"extractedData"`
	TextLength       int                   `json:"textLength"`
	Warnings         []string              `json:"warnings,omitempty"`
	ProcessingTimeMs int64                 `json:"processingTimeMs"`
	Score            *EvaluationScore      `json:"score,omitempty"`
}

// ReliabilityLoopMetadata summarizes the loop in a document result.
type ReliabilityLoopMetadata struct {
	Enabled        bool             `json:"enabled"`
	FinalScore     float64          `json:"finalScore"`
	Iterations     int              `json:"iterations"`
	MetThreshold   bool             `json:"metThreshold"`
	StoppedReason  StopReason       `json:"stoppedReason,omitempty"`
	ScoreBreakdown *EvaluationScore `json:"scoreBreakdown,omitempty"`
}

// DocumentResult is the outbound record for one processed document.
type DocumentResult struct {
	DocumentID       string                  `json:"documentId"`
	Filename         string                  `json:"filename,omitempty"`
	ClassifiedType   DocumentType            `json:"classifiedType"`
	Confidence       float64                 `json:"confidence"`
	Classification   *DocumentClassification `json:"classification,omitempty"`
	ExtractedData    ExtractedClinicalData   `json:"extractedData"`
	Warnings         []string                `json:"warnings"`
	ReliabilityLoop  ReliabilityLoopMetadata `json:"reliabilityLoop"`
	Cached           bool                    `json:"cached"`
	ProcessingTimeMs int64                   `json:"processingTimeMs"`
	Error            string                  `json:"error,omitempty"`

	// Iteration history is persisted by the audit store but not sent to clients.
	IterationHistory []IterationRecord `json:"-"`
	CreatedAt        time.Time         `json:"createdAt"`
}
