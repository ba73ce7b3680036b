package model

import "time"

// QualityStatus is the overall verdict of the post-transform quality gate.
type QualityStatus string

const (
	QualityPass         QualityStatus = "PASS"
	QualityPassWarnings QualityStatus = "PASS_WITH_WARNINGS"
	QualityFail         QualityStatus = "FAIL"
)

// RuleOutcome is the result of evaluating one quality rule against the
// transformed set.
type RuleOutcome struct {
	Rule       string `json:"rule"`
	Critical   bool   `json:"critical"`
	Passed     bool   `json:"passed"`
	Violations int    `json:"violations"`
	Detail     string `json:"detail,omitempty"`
}

// QualityReport is the validator's per-run output. A FAIL status blocks
// the Load phase.
type QualityReport struct {
	RunID        string        `json:"run_id"`
	Status       QualityStatus `json:"status"`
	Completeness float64       `json:"completeness"`
	ErrorRate    float64       `json:"error_rate"`
	Outcomes     []RuleOutcome `json:"outcomes"`
	CreatedAt    time.Time     `json:"created_at"`
}

// Blocking reports whether this report prevents the Load phase.
func (r *QualityReport) Blocking() bool {
	return r.Status == QualityFail
}

// CriticalFailures counts failed outcomes flagged critical.
func (r *QualityReport) CriticalFailures() int {
	var n int
	for _, o := range r.Outcomes {
		if o.Critical && !o.Passed {
			n++
		}
	}
	return n
}
