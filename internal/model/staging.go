package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// StagingRecord is one raw row from one source for one staging batch.
// Immutable once written: the store exposes insert and
// truncate-and-replace only.
type StagingRecord struct {
	ID          int64          `json:"id"`
	BatchID     string         `json:"batch_id"`
	Source      Source         `json:"source"`
	Row         map[string]any `json:"row"`
	ContentHash string         `json:"content_hash"`
	StagedAt    time.Time      `json:"staged_at"`
}

// HashRow computes the content hash used for change detection between
// staging generations. encoding/json sorts map keys, so the digest is
// stable for equal field sets.
func HashRow(row map[string]any) string {
	b, err := json.Marshal(row)
	if err != nil {
		// Maps of scraped scalars always marshal; a non-marshalable row
		// hashes to its error text rather than panicking mid-batch.
		b = []byte(err.Error())
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
