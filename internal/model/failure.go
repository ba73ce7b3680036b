package model

// FailureReason classifies why one staged row was dropped from a batch.
// Per-row failures are recovered locally and aggregated into phase
// statistics; they never fail the batch.
type FailureReason string

const (
	ReasonValidationFailed FailureReason = "validation_failed"
	ReasonIdentityFailed   FailureReason = "identity_failed"
	ReasonTransformFailed  FailureReason = "transform_failed"
	ReasonLineageFailed    FailureReason = "lineage_failed"
)

// RowFailure carries the observability detail for one skipped row.
type RowFailure struct {
	Source       Source        `json:"source"`
	StagingRowID int64         `json:"staging_row_id"`
	Phase        Phase         `json:"phase"`
	Reason       FailureReason `json:"reason"`
	Error        string        `json:"error,omitempty"`
}
