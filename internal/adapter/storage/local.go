package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/semmidev/s3cleaner/internal/domain"
)

// LocalStore serves buckets from directories under basePath. Keys are
// slash-separated paths relative to the bucket directory.
type LocalStore struct {
	basePath string
	pageSize int
}

func NewLocal(basePath string, pageSize int) (*LocalStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	if pageSize < 1 {
		pageSize = domain.MaxBatchSize
	}
	return &LocalStore{basePath: basePath, pageSize: pageSize}, nil
}

// Open satisfies domain.StoreFactory; a LocalStore holds no connections.
func (l *LocalStore) Open(ctx context.Context) (domain.ObjectStore, error) {
	return l, nil
}

func (l *LocalStore) ListPage(ctx context.Context, bucket, prefix, token string) (domain.ObjectPage, error) {
	dir, err := l.bucketDir(bucket)
	if err != nil {
		return domain.ObjectPage{}, localError("list objects", bucket, "", err)
	}

	var objects []domain.ObjectRecord
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) || key <= token {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("failed to get file info for %s: %w", key, err)
		}
		modTime := info.ModTime().UTC()
		size := info.Size()
		objects = append(objects, domain.ObjectRecord{Key: key, LastModified: &modTime, Size: &size})
		return nil
	})
	if err != nil {
		return domain.ObjectPage{}, localError("list objects", bucket, "", err)
	}

	sort.Slice(objects, func(i, j int) bool {
		return objects[i].Key < objects[j].Key
	})

	page := domain.ObjectPage{Objects: objects}
	if len(objects) > l.pageSize {
		page.Objects = objects[:l.pageSize]
		page.Truncated = true
		page.NextToken = page.Objects[len(page.Objects)-1].Key
	}
	return page, nil
}

func (l *LocalStore) DeleteObject(ctx context.Context, bucket, key string) error {
	path, err := l.objectPath(bucket, key)
	if err != nil {
		return localError("delete object", bucket, key, err)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return localError("delete object", bucket, key, err)
	}
	return nil
}

// DeleteObjects removes each key in turn. As with S3, a key that does not
// exist counts as deleted.
func (l *LocalStore) DeleteObjects(ctx context.Context, bucket string, keys []string) (domain.BatchResult, error) {
	if len(keys) > domain.MaxBatchSize {
		return domain.BatchResult{}, fmt.Errorf("batch of %d keys exceeds limit of %d", len(keys), domain.MaxBatchSize)
	}
	if _, err := l.bucketDir(bucket); err != nil {
		return domain.BatchResult{}, localError("delete objects", bucket, "", err)
	}

	var result domain.BatchResult
	for _, key := range keys {
		if err := l.DeleteObject(ctx, bucket, key); err != nil {
			code := "InternalError"
			if errors.Is(err, domain.ErrAccessDenied) {
				code = "AccessDenied"
			}
			result.Failed = append(result.Failed, domain.ObjectFailure{Key: key, Code: code, Message: err.Error()})
			continue
		}
		result.Deleted = append(result.Deleted, key)
	}
	return result, nil
}

func (l *LocalStore) bucketDir(bucket string) (string, error) {
	if bucket == "" || strings.ContainsAny(bucket, `/\`) || !filepath.IsLocal(bucket) {
		return "", fmt.Errorf("invalid bucket name %q: %w", bucket, fs.ErrNotExist)
	}
	dir := filepath.Join(l.basePath, bucket)
	info, err := os.Stat(dir)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory: %w", dir, fs.ErrNotExist)
	}
	return dir, nil
}

func (l *LocalStore) objectPath(bucket, key string) (string, error) {
	dir, err := l.bucketDir(bucket)
	if err != nil {
		return "", err
	}
	rel := filepath.FromSlash(key)
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return filepath.Join(dir, rel), nil
}

func localError(op, bucket, key string, err error) error {
	kind := domain.ErrStorage
	switch {
	case errors.Is(err, fs.ErrNotExist):
		kind = domain.ErrNotFound
	case errors.Is(err, fs.ErrPermission):
		kind = domain.ErrAccessDenied
	}
	return &domain.StorageError{Op: op, Bucket: bucket, Key: key, Kind: kind, Err: err}
}
