package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/semmidev/s3cleaner/internal/domain"
)

type Logger interface {
	Infof(template string, args ...interface{})
	Errorf(template string, args ...interface{})
	Warnf(template string, args ...interface{})
}

// Recorder receives the outcome of every clean run.
type Recorder interface {
	ObserveClean(result domain.CleanResult)
}

// Notifier is told about every finished clean run. Failures are logged
// and otherwise ignored.
type Notifier interface {
	NotifyClean(ctx context.Context, result domain.CleanResult) error
}

// Cleaner deletes every object in a bucket whose key carries one of the
// policy extensions and whose age exceeds the policy threshold.
type Cleaner struct {
	factory  domain.StoreFactory
	policy   domain.CleanPolicy
	recorder Recorder
	notifier Notifier
	logger   Logger
	now      func() time.Time
}

func NewCleaner(
	factory domain.StoreFactory,
	policy domain.CleanPolicy,
	recorder Recorder,
	notifier Notifier,
	logger Logger,
) *Cleaner {
	return &Cleaner{
		factory:  factory,
		policy:   policy,
		recorder: recorder,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// Execute runs one enumerate, filter and delete pass. Listing and batch
// failures are logged and reflected in the result; only an invalid request
// or a store that cannot be opened produce an error.
func (uc *Cleaner) Execute(ctx context.Context, req domain.CleanRequest) (domain.CleanResult, error) {
	if err := req.Validate(); err != nil {
		return domain.CleanResult{}, err
	}

	start := time.Now()
	result := domain.CleanResult{
		RunID:  uuid.NewString(),
		Bucket: req.Bucket,
		Prefix: req.Prefix,
	}
	runID := result.RunID

	store, err := uc.factory.Open(ctx)
	if err != nil {
		uc.logger.Errorf("[%s] Error opening storage for bucket %s: %v", runID, req.Bucket, err)
		return result, fmt.Errorf("open store: %w", err)
	}

	now := uc.now().UTC()
	uc.logger.Infof("[%s] Starting clean of %s (prefix %q, older than %d days)",
		runID, req.Bucket, req.Prefix, uc.policy.MaxAgeDays)

	objects, err := listAll(ctx, store, req.Bucket, req.Prefix)
	if err != nil {
		// Keep what was collected so far and go on deleting it.
		result.ListingAborted = true
		uc.logger.Errorf("[%s] Error listing objects for cleaning in bucket %s after %d objects: %v",
			runID, req.Bucket, len(objects), err)
	}
	result.Scanned = len(objects)

	keys := uc.selectKeys(objects, now)
	result.Matched = len(keys)

	batchErrs := uc.deleteBatches(ctx, store, req.Bucket, keys, &result)

	result.Duration = time.Since(start)
	if batchErrs != nil {
		uc.logger.Warnf("[%s] Total cleaned: %d of %d matched objects from %s in %s, %d of %d batch(es) failed: %v",
			runID, result.Deleted, result.Matched, req.Bucket, result.Duration.Round(time.Millisecond),
			result.FailedBatches, result.Batches, batchErrs)
	} else {
		uc.logger.Infof("[%s] Total cleaned: %d objects from %s (scanned %d, matched %d) in %s",
			runID, result.Deleted, req.Bucket, result.Scanned, result.Matched, result.Duration.Round(time.Millisecond))
	}

	if uc.recorder != nil {
		uc.recorder.ObserveClean(result)
	}
	if uc.notifier != nil {
		if err := uc.notifier.NotifyClean(ctx, result); err != nil {
			uc.logger.Warnf("[%s] Failed to send clean notification: %v", runID, err)
		}
	}

	return result, nil
}

// selectKeys returns the original keys of eligible objects, in listing
// order, without duplicates.
func (uc *Cleaner) selectKeys(objects []domain.ObjectRecord, now time.Time) []string {
	seen := make(map[string]struct{}, len(objects))
	keys := make([]string, 0)
	for _, obj := range objects {
		if !uc.policy.Eligible(obj, now) {
			continue
		}
		if _, dup := seen[obj.Key]; dup {
			continue
		}
		seen[obj.Key] = struct{}{}
		keys = append(keys, obj.Key)
	}
	return keys
}

func (uc *Cleaner) deleteBatches(
	ctx context.Context,
	store domain.ObjectStore,
	bucket string,
	keys []string,
	result *domain.CleanResult,
) error {
	var errs error
	batches := uc.policy.Chunk(keys)

	for i, batch := range batches {
		result.Batches++

		res, err := store.DeleteObjects(ctx, bucket, batch)
		if err != nil {
			result.FailedBatches++
			errs = multierr.Append(errs, fmt.Errorf("batch %d: %w", i+1, err))
			uc.logger.Errorf("[%s] Error batch deleting objects in bucket %s (batch %d/%d, %d keys): %v",
				result.RunID, bucket, i+1, len(batches), len(batch), err)
			continue
		}

		result.Deleted += len(res.Deleted)
		for _, failed := range res.Failed {
			errs = multierr.Append(errs, fmt.Errorf("%s: %s: %s", failed.Key, failed.Code, failed.Message))
		}
		uc.logger.Infof("[%s] Deleted %d objects from %s (batch %d/%d, %d not deleted)",
			result.RunID, len(res.Deleted), bucket, i+1, len(batches), len(res.Failed))
	}

	return errs
}
