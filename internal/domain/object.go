package domain

import (
	"time"
)

// ObjectRecord is a single entry returned by a bucket listing.
type ObjectRecord struct {
	Key          string
	LastModified *time.Time
	Size         *int64
}

// ObjectPage is one page of a paginated listing. NextToken is only
// meaningful when Truncated is set.
type ObjectPage struct {
	Objects   []ObjectRecord
	NextToken string
	Truncated bool
}

type ObjectFailure struct {
	Key     string
	Code    string
	Message string
}

// BatchResult is what the storage service reports for one batch delete.
type BatchResult struct {
	Deleted []string
	Failed  []ObjectFailure
}

type DeletionBatch []string

type CleanRequest struct {
	Bucket string `json:"bucket"`
	Prefix string `json:"prefix"`
}

func (r CleanRequest) Validate() error {
	if r.Bucket == "" {
		return &ValidationError{Message: "Bucket name required"}
	}
	return nil
}

type CleanResult struct {
	RunID          string
	Bucket         string
	Prefix         string
	Scanned        int
	Matched        int
	Deleted        int
	Batches        int
	FailedBatches  int
	ListingAborted bool
	Duration       time.Duration
}
