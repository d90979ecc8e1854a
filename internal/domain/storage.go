package domain

import "context"

// ObjectStore is the remote object-storage API the cleaner works against.
type ObjectStore interface {
	ListPage(ctx context.Context, bucket, prefix, token string) (ObjectPage, error)
	DeleteObject(ctx context.Context, bucket, key string) error
	DeleteObjects(ctx context.Context, bucket string, keys []string) (BatchResult, error)
}

// StoreFactory opens a fresh ObjectStore. Callers open one per request.
type StoreFactory interface {
	Open(ctx context.Context) (ObjectStore, error)
}
