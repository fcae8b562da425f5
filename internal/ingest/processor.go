package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/ignite/batch-email/internal/domain"
	"github.com/ignite/batch-email/internal/pkg/awsretry"
	"github.com/ignite/batch-email/internal/pkg/logger"
	"github.com/ignite/batch-email/internal/pkg/retry"
)

// ProcessorConfig controls a TargetProcessor.
type ProcessorConfig struct {
	QueueName string
	Reader    ReaderConfig
	// PublishPolicy bounds retries of a single batch publish.
	PublishPolicy retry.Policy
	// StrictSuccessCount subtracts a batch from SuccessCount when its
	// publish fails. By default the count is optimistic: rows are counted
	// when batched, and PublishedCount carries the confirmed figure.
	StrictSuccessCount bool
	// RunID is stamped on batch tracker records.
	RunID string
}

// TargetProcessor reads, validates, batches and publishes one target.
type TargetProcessor struct {
	blobs    BlobStore
	queue    MessageQueue
	cfg      ProcessorConfig
	recorder BatchRecorder
	observer Observer
	log      *logger.Logger
}

// ProcessorOption customizes a TargetProcessor.
type ProcessorOption func(*TargetProcessor)

// WithRecorder records every published batch.
func WithRecorder(r BatchRecorder) ProcessorOption {
	return func(p *TargetProcessor) { p.recorder = r }
}

// WithObserver reports row and batch counters.
func WithObserver(o Observer) ProcessorOption {
	return func(p *TargetProcessor) {
		if o != nil {
			p.observer = o
		}
	}
}

// WithLogger replaces the default logger.
func WithLogger(l *logger.Logger) ProcessorOption {
	return func(p *TargetProcessor) {
		if l != nil {
			p.log = l
		}
	}
}

// NewTargetProcessor wires a processor to its collaborators.
func NewTargetProcessor(blobs BlobStore, queue MessageQueue, cfg ProcessorConfig, opts ...ProcessorOption) *TargetProcessor {
	if cfg.PublishPolicy.Retryable == nil {
		cfg.PublishPolicy.Retryable = awsretry.Classify
	}
	p := &TargetProcessor{
		blobs:    blobs,
		queue:    queue,
		cfg:      cfg,
		observer: nopObserver{},
		log:      logger.With(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process handles one target and never fails: every problem, including a
// panic, is recorded on the returned outcome.
func (p *TargetProcessor) Process(ctx context.Context, target domain.Target) (out domain.TargetOutcome) {
	out = domain.NewTargetOutcome(target)
	log := p.log.With("target", target.Path())

	defer func() {
		if r := recover(); r != nil {
			log.Error("panic while processing target", "panic", r)
			out.AddError(domain.UnexpectedError(fmt.Sprintf("panic: %v", r)))
		}
	}()

	if err := p.process(ctx, target, &out, log); err != nil {
		log.Error("target processing failed", "error", err)
		out.AddError(domain.UnexpectedError(err.Error()))
	}

	log.Info("target processed",
		"success_count", out.SuccessCount,
		"published_count", out.PublishedCount,
		"error_count", out.ErrorCount)
	return out
}

func (p *TargetProcessor) process(ctx context.Context, target domain.Target, out *domain.TargetOutcome, log *logger.Logger) error {
	body, err := p.blobs.Get(ctx, target.Bucket, target.Key())
	if err != nil {
		return fmt.Errorf("fetching %s: %w", target.Path(), err)
	}
	defer body.Close()

	text, err := openText(body)
	if errors.Is(err, errUnreadableContent) {
		log.Warn("target is not a text file")
		out.AddError(domain.StructuralError(domain.ReasonUnreadableContent, "File content is not readable text"))
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", target.Path(), err)
	}

	reader := NewBatchReader(text, p.cfg.Reader)
	seq := 0
	var rowErrors []domain.ErrorEntry
	for res := range reader.All(ctx) {
		if len(res.Batch) > 0 {
			seq++
			p.publish(ctx, target, seq, res.Batch, out, log)
		}
		if res.Final {
			rowErrors = res.Errors
		}
	}

	out.Headers = reader.Headers()
	invalid := 0
	for _, e := range rowErrors {
		if e.Kind == domain.KindRow {
			invalid++
		}
	}
	p.observer.RowsRead(reader.ValidCount(), invalid)
	out.AddError(rowErrors...)
	return nil
}

// BatchID returns "<bucket>/<prefix><object>-<timestamp>-<seq>".
func BatchID(target domain.Target, seq int) string {
	return fmt.Sprintf("%s-%s-%d", target.Path(), target.Timestamp, seq)
}

func (p *TargetProcessor) publish(ctx context.Context, target domain.Target, seq int, batch []domain.Row, out *domain.TargetOutcome, log *logger.Logger) {
	msg := domain.BatchMessage{
		BatchID:    BatchID(target, seq),
		Recipients: batch,
		Metadata: domain.BatchMetadata{
			UploadedBy: target.PrincipalID,
			Timestamp:  target.Timestamp,
		},
	}
	out.SuccessCount += len(batch)

	messageID, err := retry.DoValue(ctx, p.cfg.PublishPolicy, func(ctx context.Context) (string, error) {
		return p.queue.Send(ctx, p.cfg.QueueName, msg)
	})
	if err != nil {
		log.Error("failed to publish batch", "batch_id", msg.BatchID, "recipients", len(batch), "error", err)
		out.AddError(domain.BatchFailure(batch, err))
		if p.cfg.StrictSuccessCount {
			out.SuccessCount -= len(batch)
		}
		p.observer.PublishFailed(len(batch))
		return
	}

	out.PublishedCount += len(batch)
	p.observer.BatchPublished(len(batch))
	log.Debug("batch published", "batch_id", msg.BatchID, "message_id", messageID, "recipients", len(batch))

	if p.recorder == nil {
		return
	}
	rec := domain.BatchRecord{
		BatchID:        msg.BatchID,
		RunID:          p.cfg.RunID,
		Target:         target.Path(),
		RecipientCount: len(batch),
		UploadedBy:     target.PrincipalID,
		Timestamp:      target.Timestamp,
		Status:         domain.BatchStatusQueued,
		MessageID:      messageID,
	}
	if err := p.recorder.Record(ctx, rec); err != nil {
		log.Warn("failed to record batch", "batch_id", msg.BatchID, "error", err)
	}
}
