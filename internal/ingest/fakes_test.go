package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/ignite/batch-email/internal/domain"
	"github.com/ignite/batch-email/internal/pkg/retry"
)

const testTimestamp = "20240102_030405"

func testTarget(object string) domain.Target {
	return domain.Target{
		Bucket:      "batch-bucket",
		Prefix:      "batch/send/",
		Object:      object,
		PrincipalID: "AWS:uploader",
		Timestamp:   testTimestamp,
	}
}

func fastRetry() retry.Policy {
	return retry.Policy{MaxAttempts: 3, BaseDelay: time.Microsecond, MaxDelay: time.Microsecond, MinDelay: time.Microsecond}
}

// memBlobs is an in-memory BlobStore keyed by "bucket/key".
type memBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemBlobs() *memBlobs {
	return &memBlobs{objects: make(map[string][]byte)}
}

func (m *memBlobs) put(t domain.Target, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[t.Path()] = []byte(body)
}

func (m *memBlobs) Get(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[bucket+"/"+key]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", domain.ErrObjectNotFound, bucket, key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// memQueue records published messages. Batches listed in failIDs always
// fail to publish.
type memQueue struct {
	mu       sync.Mutex
	messages []domain.BatchMessage
	failIDs  map[string]bool
	calls    int
	panicOn  string
}

func newMemQueue() *memQueue {
	return &memQueue{failIDs: make(map[string]bool)}
}

func (q *memQueue) Send(_ context.Context, queueName string, msg any) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.calls++

	m, ok := msg.(domain.BatchMessage)
	if !ok {
		return "", fmt.Errorf("unexpected message type %T", msg)
	}
	if q.panicOn != "" && m.BatchID == q.panicOn {
		panic("queue exploded")
	}
	if q.failIDs[m.BatchID] {
		return "", fmt.Errorf("queue %s unavailable", queueName)
	}
	// Round-trip through JSON so tests see what a consumer would.
	data, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	var decoded domain.BatchMessage
	if err := json.Unmarshal(data, &decoded); err != nil {
		return "", err
	}
	q.messages = append(q.messages, decoded)
	return fmt.Sprintf("msg-%d", len(q.messages)), nil
}

func (q *memQueue) published() []domain.BatchMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]domain.BatchMessage(nil), q.messages...)
}

// memMetadata is an in-memory MetadataStore.
type memMetadata struct {
	mu     sync.Mutex
	fields map[string]string
	errs   map[string][]error // consumed in order before falling back to fields
	calls  map[string]int
}

func newMemMetadata() *memMetadata {
	return &memMetadata{
		fields: make(map[string]string),
		errs:   make(map[string][]error),
		calls:  make(map[string]int),
	}
}

func (m *memMetadata) TemplateFields(_ context.Context, table, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[key]++
	if errs := m.errs[key]; len(errs) > 0 {
		m.errs[key] = errs[1:]
		return "", errs[0]
	}
	f, ok := m.fields[key]
	if !ok {
		return "", fmt.Errorf("%w: %s/%s", domain.ErrTemplateNotFound, table, key)
	}
	return f, nil
}

func (m *memMetadata) callCount(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[key]
}

// memRecorder collects batch records.
type memRecorder struct {
	mu      sync.Mutex
	records []domain.BatchRecord
	err     error
}

func (r *memRecorder) Record(_ context.Context, rec domain.BatchRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.records = append(r.records, rec)
	return nil
}

// countingObserver tallies observer callbacks.
type countingObserver struct {
	mu                       sync.Mutex
	valid, invalid           int
	published, failedPublish int
}

func (o *countingObserver) RowsRead(valid, invalid int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.valid += valid
	o.invalid += invalid
}

func (o *countingObserver) BatchPublished(n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.published += n
}

func (o *countingObserver) PublishFailed(n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failedPublish += n
}

// csvLines joins lines with newlines.
func csvLines(lines ...string) string {
	return strings.Join(lines, "\n") + "\n"
}

const basicHeader = "send_to,first_name,last_name,send_from,email_template,subject"

func basicRow(i int) string {
	return fmt.Sprintf("user%d@example.com,First%d,Last%d,no-reply@example.com,welcome,Hello", i, i, i)
}
