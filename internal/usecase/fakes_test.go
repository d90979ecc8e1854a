package usecase

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/semmidev/s3cleaner/internal/domain"
)

// memoryStore is an in-memory bucket with S3-like paging.
type memoryStore struct {
	mu       sync.Mutex
	objects  map[string]domain.ObjectRecord
	pageSize int

	listCalls    int
	failListAt   int // 1-based ListPage call that fails; 0 never fails
	listErr      error
	batches      [][]string
	failBatch    map[int]error // 1-based batch call index
	rejectKeys   map[string]bool
	singleDelete []string
	deleteErr    error
}

func newMemoryStore(pageSize int) *memoryStore {
	return &memoryStore{
		objects:    make(map[string]domain.ObjectRecord),
		pageSize:   pageSize,
		failBatch:  make(map[int]error),
		rejectKeys: make(map[string]bool),
	}
}

func (m *memoryStore) put(key string, modified time.Time) {
	m.objects[key] = domain.ObjectRecord{Key: key, LastModified: &modified}
}

func (m *memoryStore) putUndated(key string) {
	m.objects[key] = domain.ObjectRecord{Key: key}
}

func (m *memoryStore) keys() []string {
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (m *memoryStore) ListPage(ctx context.Context, bucket, prefix, token string) (domain.ObjectPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.listCalls++
	if m.failListAt > 0 && m.listCalls >= m.failListAt {
		return domain.ObjectPage{}, m.listErr
	}

	start := 0
	if token != "" {
		n, err := strconv.Atoi(token)
		if err != nil {
			return domain.ObjectPage{}, fmt.Errorf("bad token %q", token)
		}
		start = n
	}

	var matching []string
	for _, k := range m.keys() {
		if strings.HasPrefix(k, prefix) {
			matching = append(matching, k)
		}
	}

	end := min(start+m.pageSize, len(matching))
	page := domain.ObjectPage{}
	for _, k := range matching[start:end] {
		page.Objects = append(page.Objects, m.objects[k])
	}
	if end < len(matching) {
		page.Truncated = true
		page.NextToken = strconv.Itoa(end)
	}
	return page, nil
}

func (m *memoryStore) DeleteObject(ctx context.Context, bucket, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.singleDelete = append(m.singleDelete, key)
	delete(m.objects, key)
	return nil
}

func (m *memoryStore) DeleteObjects(ctx context.Context, bucket string, keys []string) (domain.BatchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	batch := append([]string(nil), keys...)
	m.batches = append(m.batches, batch)
	if err := m.failBatch[len(m.batches)]; err != nil {
		return domain.BatchResult{}, err
	}

	var result domain.BatchResult
	for _, k := range keys {
		if m.rejectKeys[k] {
			result.Failed = append(result.Failed, domain.ObjectFailure{Key: k, Code: "AccessDenied", Message: "Access Denied"})
			continue
		}
		delete(m.objects, k)
		result.Deleted = append(result.Deleted, k)
	}
	return result, nil
}

type storeFactory struct {
	store domain.ObjectStore
	err   error
	opens int
}

func (f *storeFactory) Open(ctx context.Context) (domain.ObjectStore, error) {
	f.opens++
	if f.err != nil {
		return nil, f.err
	}
	return f.store, nil
}

type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordingLogger) record(level, template string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, level+" "+fmt.Sprintf(template, args...))
}

func (l *recordingLogger) Infof(template string, args ...interface{})  { l.record("INFO", template, args...) }
func (l *recordingLogger) Warnf(template string, args ...interface{})  { l.record("WARN", template, args...) }
func (l *recordingLogger) Errorf(template string, args ...interface{}) { l.record("ERROR", template, args...) }

func (l *recordingLogger) contains(substr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, line := range l.lines {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}

type resultRecorder struct {
	results []domain.CleanResult
}

func (r *resultRecorder) ObserveClean(result domain.CleanResult) {
	r.results = append(r.results, result)
}

type stubNotifier struct {
	results []domain.CleanResult
	err     error
}

func (n *stubNotifier) NotifyClean(ctx context.Context, result domain.CleanResult) error {
	n.results = append(n.results, result)
	return n.err
}
