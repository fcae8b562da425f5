package ingest

import (
	"context"
	"io"

	"github.com/ignite/batch-email/internal/domain"
)

// BlobStore reads storage objects. Get returns domain.ErrObjectNotFound
// (wrapped) when the object does not exist.
type BlobStore interface {
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

// MessageQueue publishes one JSON-encodable message and returns the
// provider's message ID.
type MessageQueue interface {
	Send(ctx context.Context, queueName string, msg any) (string, error)
}

// MetadataStore returns the raw comma-separated "fields" attribute of a
// template. It returns domain.ErrTemplateNotFound (wrapped) when the template
// has no entry.
type MetadataStore interface {
	TemplateFields(ctx context.Context, table, key string) (string, error)
}

// BatchRecorder persists a record of every published batch.
type BatchRecorder interface {
	Record(ctx context.Context, rec domain.BatchRecord) error
}

// Observer receives counters as targets are processed. Implementations must
// be safe for concurrent use.
type Observer interface {
	RowsRead(valid, invalid int)
	BatchPublished(recipients int)
	PublishFailed(recipients int)
}

// TargetRunner processes one target. TargetProcessor is the base
// implementation; wrappers add cross-cutting behavior such as locking.
type TargetRunner interface {
	Process(ctx context.Context, target domain.Target) domain.TargetOutcome
}

type nopObserver struct{}

func (nopObserver) RowsRead(int, int)  {}
func (nopObserver) BatchPublished(int) {}
func (nopObserver) PublishFailed(int)  {}
