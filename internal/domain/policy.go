package domain

import (
	"fmt"
	"strings"
	"time"
)

// MaxBatchSize is the storage API ceiling for a single batch delete.
const MaxBatchSize = 1000

const DefaultMaxAgeDays = 90

// DefaultExtensions covers 3D-model, document and image formats.
var DefaultExtensions = []string{
	".stl", ".ply", ".obj", ".dcm", ".pdf",
	".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tiff", ".webp", ".svg",
	".heic", ".ico", ".jfif", ".raw", ".cr2", ".nef", ".orf", ".sr2",
}

type CleanPolicy struct {
	Extensions []string
	MaxAgeDays int
	BatchSize  int
}

func DefaultPolicy() CleanPolicy {
	exts := make([]string, len(DefaultExtensions))
	copy(exts, DefaultExtensions)
	return CleanPolicy{
		Extensions: exts,
		MaxAgeDays: DefaultMaxAgeDays,
		BatchSize:  MaxBatchSize,
	}
}

func (p CleanPolicy) Validate() error {
	if len(p.Extensions) == 0 {
		return fmt.Errorf("at least one extension is required")
	}
	for i, ext := range p.Extensions {
		if ext == "" {
			return fmt.Errorf("extensions[%d]: empty extension", i)
		}
	}
	if p.MaxAgeDays < 0 {
		return fmt.Errorf("max age days must not be negative, got %d", p.MaxAgeDays)
	}
	if p.BatchSize < 1 || p.BatchSize > MaxBatchSize {
		return fmt.Errorf("batch size must be between 1 and %d, got %d", MaxBatchSize, p.BatchSize)
	}
	return nil
}

// AgeDays returns the whole days elapsed between lastModified and now,
// rounded down.
func AgeDays(now, lastModified time.Time) int {
	elapsed := now.Sub(lastModified)
	days := elapsed / (24 * time.Hour)
	if elapsed < 0 && elapsed%(24*time.Hour) != 0 {
		days--
	}
	return int(days)
}

func (p CleanPolicy) MatchesExtension(key string) bool {
	lower := strings.ToLower(key)
	for _, ext := range p.Extensions {
		if strings.HasSuffix(lower, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

// Eligible reports whether obj should be deleted at time now. Objects
// without a modification time are never eligible.
func (p CleanPolicy) Eligible(obj ObjectRecord, now time.Time) bool {
	if obj.LastModified == nil {
		return false
	}
	if !p.MatchesExtension(obj.Key) {
		return false
	}
	return AgeDays(now.UTC(), obj.LastModified.UTC()) > p.MaxAgeDays
}

// Chunk splits keys into ordered batches of at most BatchSize keys.
func (p CleanPolicy) Chunk(keys []string) []DeletionBatch {
	size := p.BatchSize
	if size < 1 || size > MaxBatchSize {
		size = MaxBatchSize
	}

	batches := make([]DeletionBatch, 0, (len(keys)+size-1)/size)
	for start := 0; start < len(keys); start += size {
		end := min(start+size, len(keys))
		batches = append(batches, DeletionBatch(keys[start:end]))
	}
	return batches
}
