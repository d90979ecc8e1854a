package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/semmidev/s3cleaner/internal/domain"
)

var errMissingToken = errors.New("listing truncated without a continuation token")

// listAll pages through a bucket. On error it returns the objects gathered
// before the failing page alongside the error.
func listAll(ctx context.Context, store domain.ObjectStore, bucket, prefix string) ([]domain.ObjectRecord, error) {
	var objects []domain.ObjectRecord
	token := ""
	for {
		page, err := store.ListPage(ctx, bucket, prefix, token)
		if err != nil {
			return objects, err
		}
		objects = append(objects, page.Objects...)

		if !page.Truncated {
			return objects, nil
		}
		if page.NextToken == "" {
			return objects, errMissingToken
		}
		token = page.NextToken
	}
}

type Lister struct {
	factory domain.StoreFactory
	logger  Logger
}

func NewLister(factory domain.StoreFactory, logger Logger) *Lister {
	return &Lister{factory: factory, logger: logger}
}

// Execute returns every key in bucket.
func (uc *Lister) Execute(ctx context.Context, bucket string) ([]string, error) {
	if bucket == "" {
		return nil, &domain.ValidationError{Message: "Bucket name required"}
	}

	store, err := uc.factory.Open(ctx)
	if err != nil {
		uc.logger.Errorf("Error opening storage for bucket %s: %v", bucket, err)
		return nil, fmt.Errorf("open store: %w", err)
	}

	objects, err := listAll(ctx, store, bucket, "")
	if err != nil {
		uc.logger.Errorf("Error listing objects in bucket %s: %v", bucket, err)
		return nil, fmt.Errorf("list %s: %w", bucket, err)
	}

	keys := make([]string, 0, len(objects))
	for _, obj := range objects {
		keys = append(keys, obj.Key)
	}

	uc.logger.Infof("Listed %d objects from %s", len(keys), bucket)
	return keys, nil
}

type Deleter struct {
	factory domain.StoreFactory
	logger  Logger
}

func NewDeleter(factory domain.StoreFactory, logger Logger) *Deleter {
	return &Deleter{factory: factory, logger: logger}
}

// Execute deletes a single key. A key that does not exist is not an error.
func (uc *Deleter) Execute(ctx context.Context, bucket, key string) error {
	if bucket == "" || key == "" {
		return &domain.ValidationError{Message: "Bucket and key required"}
	}

	store, err := uc.factory.Open(ctx)
	if err != nil {
		uc.logger.Errorf("Error opening storage for bucket %s: %v", bucket, err)
		return fmt.Errorf("open store: %w", err)
	}

	if err := store.DeleteObject(ctx, bucket, key); err != nil {
		uc.logger.Errorf("Error deleting %s from bucket %s: %v", key, bucket, err)
		return fmt.Errorf("delete %s: %w", key, err)
	}

	uc.logger.Infof("Deleted %s from %s", key, bucket)
	return nil
}
