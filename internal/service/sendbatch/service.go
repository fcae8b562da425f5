package sendbatch

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"github.com/ignite/batch-email/internal/config"
	"github.com/ignite/batch-email/internal/domain"
	"github.com/ignite/batch-email/internal/event"
	"github.com/ignite/batch-email/internal/ingest"
	"github.com/ignite/batch-email/internal/metrics"
	"github.com/ignite/batch-email/internal/notify"
	"github.com/ignite/batch-email/internal/pkg/distlock"
	"github.com/ignite/batch-email/internal/pkg/httputil"
	"github.com/ignite/batch-email/internal/pkg/logger"
	"github.com/ignite/batch-email/internal/pkg/retry"
	"github.com/ignite/batch-email/internal/report"
	"github.com/ignite/batch-email/internal/storage"
)

// Notifier delivers the failure report.
type Notifier interface {
	Send(ctx context.Context, e notify.Email) (string, error)
}

// ObjectMover relocates the objects of a failed run.
type ObjectMover interface {
	MoveObjects(ctx context.Context, moves []storage.Move) error
}

// Deps are the collaborators of a Service. Blobs, Queue and Metadata are
// required; every other field is optional and disables its feature when nil.
type Deps struct {
	Blobs     ingest.BlobStore
	Queue     ingest.MessageQueue
	Metadata  ingest.MetadataStore
	Recorder  ingest.BatchRecorder
	Locker    distlock.Locker
	Mover     ObjectMover
	Notifier  Notifier
	Templates report.TemplateSource
}

// Service processes batch upload events. It is safe for concurrent use;
// every call to HandleEvent or Run builds its own per-run state.
type Service struct {
	cfg      *config.Config
	deps     Deps
	filter   event.Filter
	renderer *report.Renderer
	now      func() time.Time
	log      *logger.Logger
}

// NewService creates a Service for cfg.
func NewService(cfg *config.Config, deps Deps) *Service {
	return &Service{
		cfg:  cfg,
		deps: deps,
		filter: event.Filter{
			Buckets:  cfg.Filter.Buckets,
			Prefixes: cfg.Filter.Prefixes,
			Suffixes: cfg.Filter.Suffixes,
			Events:   cfg.Filter.Events,
		},
		renderer: report.NewRenderer(deps.Templates, cfg.Report.Bucket, cfg.Report.HTMLTemplateKey, cfg.Report.TextTemplateKey),
		now:      time.Now,
		log:      logger.With("component", "sendbatch"),
	}
}

// HandleEvent processes the records of one storage notification and returns
// the handler envelope. It never panics.
func (s *Service) HandleEvent(ctx context.Context, records []events.S3EventRecord) (resp httputil.Response) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("panic while handling event", "panic", r)
			resp = httputil.NewResponse(http.StatusInternalServerError, MsgUnexpected, nil)
		}
	}()

	if len(records) == 0 {
		s.log.Warn("event has no records")
		return httputil.NewResponse(http.StatusBadRequest, MsgInvalidEvent, nil)
	}

	targets := event.FilterTargets(records, s.filter, s.now())
	if len(targets) == 0 {
		s.log.Info("no valid targets in event", "records", len(records))
		return httputil.NewResponse(http.StatusNoContent, MsgNoTargets, nil)
	}

	run := s.Run(ctx, targets)
	return s.respond(ctx, run)
}

// Run processes targets and returns the classified outcome.
func (s *Service) Run(ctx context.Context, targets []domain.Target) domain.RunOutcome {
	runID := uuid.NewString()
	log := s.log.With("run_id", runID)
	log.Info("run started", "targets", len(targets))

	collector := metrics.NewCollector()
	policy := retry.Policy{
		MaxAttempts: s.cfg.Retry.MaxAttempts,
		BaseDelay:   s.cfg.Retry.BaseDelay(),
		MaxDelay:    s.cfg.Retry.MaxDelay(),
	}

	// The template cache lives for one run so template edits are picked up
	// by the next upload.
	cache := ingest.NewTemplateCache(s.cfg.Ingest.RecipientsPerMessage)
	resolver := ingest.NewTemplateFieldResolver(s.deps.Metadata, s.cfg.Templates.MetadataTable, s.cfg.Ingest.TemplateField, cache, policy)

	opts := []ingest.ProcessorOption{ingest.WithObserver(collector), ingest.WithLogger(log)}
	if s.deps.Recorder != nil {
		opts = append(opts, ingest.WithRecorder(s.deps.Recorder))
	}
	proc := ingest.NewTargetProcessor(s.deps.Blobs, s.deps.Queue, ingest.ProcessorConfig{
		QueueName: s.cfg.Queue.Name,
		Reader: ingest.ReaderConfig{
			MaxBatchSize: s.cfg.Ingest.RecipientsPerMessage,
			Required:     ingest.ParseRequiredFields(s.cfg.Ingest.RequiredFields),
			Resolver:     resolver,
		},
		PublishPolicy:      policy,
		StrictSuccessCount: s.cfg.Ingest.StrictSuccessCount,
		RunID:              runID,
	}, opts...)

	var runner ingest.TargetRunner = proc
	if s.deps.Locker != nil {
		runner = &lockedRunner{next: proc, locker: s.deps.Locker, onSkip: collector.TargetSkipped, log: log}
	}

	start := time.Now()
	run := ingest.NewAggregator(runner, s.cfg.Ingest.TargetConcurrency).Aggregate(ctx, targets)
	run.RunID = runID

	collector.RunFinished(run, time.Since(start))
	if url := s.cfg.Metrics.PushgatewayURL; url != "" {
		if err := collector.Push(ctx, url, s.cfg.Metrics.Job, runID); err != nil {
			log.Warn("metrics push failed", "error", err)
		}
	}

	log.Info("run finished",
		"status", string(run.Status),
		"success_count", run.SuccessCount,
		"failed_targets", len(run.FailedTargets),
		"error_count", run.ErrorCount())
	return run
}

type failureBody struct {
	FailedBatches []domain.FailedTarget `json:"FailedBatches"`
}

func newFailureBody(failed []domain.TargetOutcome) failureBody {
	body := failureBody{FailedBatches: make([]domain.FailedTarget, 0, len(failed))}
	for _, t := range failed {
		body.FailedBatches = append(body.FailedBatches, domain.FailedTarget{Outcome: t, Error: targetErrorDetail})
	}
	return body
}

func (s *Service) respond(ctx context.Context, run domain.RunOutcome) httputil.Response {
	log := s.log.With("run_id", run.RunID)

	if run.Status == domain.RunSuccess {
		return httputil.NewResponse(http.StatusOK, MsgSuccess, nil)
	}

	s.sendReport(ctx, run, log)
	body := newFailureBody(run.FailedTargets)

	if run.Status == domain.RunPartialSuccess {
		return httputil.NewResponse(http.StatusPartialContent, MsgPartial, body)
	}

	s.moveFailed(ctx, run.FailedTargets, log)
	return httputil.NewResponse(http.StatusInternalServerError, MsgFailure, body)
}

func (s *Service) sendReport(ctx context.Context, run domain.RunOutcome, log *logger.Logger) {
	if s.deps.Notifier == nil || !s.cfg.Report.Enabled() || len(run.FailedTargets) == 0 {
		return
	}

	rep, err := report.Build(ctx, s.renderer, run.FailedTargets)
	if err != nil {
		log.Error("failed to build failure report", "error", err)
		return
	}

	email := notify.Email{
		From:    s.cfg.Report.Sender,
		To:      s.cfg.Report.Recipients(),
		Subject: s.cfg.Report.Subject,
		HTML:    rep.HTML,
	}
	for _, f := range rep.Files {
		email.Attachments = append(email.Attachments, notify.Attachment{Name: f.Name, ContentType: f.ContentType, Data: f.Data})
	}

	id, err := s.deps.Notifier.Send(ctx, email)
	if err != nil {
		log.Error("failed to send failure report", "error", err)
		return
	}
	log.Info("failure report sent", "message_id", id, "attachments", len(email.Attachments))
}

// moveFailed relocates each failed object to "<error prefix>/<file name>" in
// its own bucket.
func (s *Service) moveFailed(ctx context.Context, failed []domain.TargetOutcome, log *logger.Logger) {
	if s.deps.Mover == nil || len(failed) == 0 {
		return
	}
	prefix := strings.TrimSuffix(s.cfg.Ingest.ErrorPrefix, "/")

	moves := make([]storage.Move, 0, len(failed))
	for _, t := range failed {
		moves = append(moves, storage.Move{
			Bucket: t.Target.Bucket,
			Key:    t.Target.Key(),
			ToKey:  fmt.Sprintf("%s/%s", prefix, t.Target.Object),
		})
	}

	if err := s.deps.Mover.MoveObjects(ctx, moves); err != nil {
		log.Error("failed to move failed objects", "error", err)
		return
	}
	log.Info("moved failed objects", "count", len(moves), "prefix", prefix)
}
