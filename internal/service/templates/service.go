package templates

import (
	"context"
	"net/http"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"github.com/ignite/batch-email/internal/config"
	"github.com/ignite/batch-email/internal/domain"
	"github.com/ignite/batch-email/internal/event"
	"github.com/ignite/batch-email/internal/pkg/httputil"
	"github.com/ignite/batch-email/internal/pkg/logger"
)

// Response messages.
const (
	MsgInvalidEvent = "Invalid event: Missing 'Records' key"
	MsgNoTargets    = "No valid targets found"
	MsgProcessed    = "Successfully processed event"
	MsgUnexpected   = "An error occurred while processing the templates"
)

// Actions reported per target.
const (
	ActionRegistered = "registered"
	ActionRemoved    = "removed"
)

// TextSource reads template objects.
type TextSource interface {
	GetText(ctx context.Context, bucket, key string) (string, error)
}

// MetadataWriter writes template metadata items.
type MetadataWriter interface {
	PutTemplateFields(ctx context.Context, table string, meta domain.TemplateMetadata) error
	DeleteTemplate(ctx context.Context, table, key string) error
}

// Result is the outcome for one template object.
type Result struct {
	Target string   `json:"Target"`
	Action string   `json:"Action"`
	Fields []string `json:"Fields,omitempty"`
	Error  string   `json:"Error,omitempty"`
}

// Service registers and removes template metadata.
type Service struct {
	source TextSource
	store  MetadataWriter
	table  string
	filter event.Filter
	now    func() time.Time
	log    *logger.Logger
}

// NewService creates a Service writing to cfg.Templates.MetadataTable.
func NewService(cfg *config.Config, source TextSource, store MetadataWriter) *Service {
	return &Service{
		source: source,
		store:  store,
		table:  cfg.Templates.MetadataTable,
		filter: event.Filter{
			Buckets:  cfg.TemplateFilter.Buckets,
			Prefixes: cfg.TemplateFilter.Prefixes,
			Suffixes: cfg.TemplateFilter.Suffixes,
			Events:   cfg.TemplateFilter.Events,
		},
		now: time.Now,
		log: logger.With("component", "templates"),
	}
}

// HandleEvent processes every template record. Per-template failures are
// logged and listed in the response body; they do not fail the event.
func (s *Service) HandleEvent(ctx context.Context, records []events.S3EventRecord) (resp httputil.Response) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("panic while handling template event", "panic", r)
			resp = httputil.NewResponse(http.StatusInternalServerError, MsgUnexpected, nil)
		}
	}()

	if len(records) == 0 {
		return httputil.NewResponse(http.StatusBadRequest, MsgInvalidEvent, nil)
	}

	now := s.now()
	var results []Result
	for _, rec := range records {
		for _, t := range event.FilterTargets([]events.S3EventRecord{rec}, s.filter, now) {
			if event.IsRemoval(rec.EventName) {
				results = append(results, s.Remove(ctx, t))
			} else {
				results = append(results, s.Register(ctx, t))
			}
		}
	}

	if len(results) == 0 {
		s.log.Info("no template targets in event", "records", len(records))
		return httputil.NewResponse(http.StatusNoContent, MsgNoTargets, nil)
	}
	return httputil.NewResponse(http.StatusOK, MsgProcessed, map[string][]Result{"Results": results})
}

// Register extracts the placeholders of the template at t and records them.
func (s *Service) Register(ctx context.Context, t domain.Target) Result {
	res := Result{Target: t.Path(), Action: ActionRegistered}
	log := s.log.With("target", res.Target)

	text, err := s.source.GetText(ctx, t.Bucket, t.Key())
	if err != nil {
		log.Error("failed to read template", "error", err)
		res.Error = err.Error()
		return res
	}

	res.Fields = ExtractFields(text)
	meta := domain.TemplateMetadata{TemplateKey: t.Key(), Fields: strings.Join(res.Fields, ",")}
	if err := s.store.PutTemplateFields(ctx, s.table, meta); err != nil {
		log.Error("failed to store template metadata", "error", err)
		res.Error = err.Error()
		return res
	}

	log.Info("template registered", "fields", meta.Fields)
	return res
}

// Remove deletes the metadata of the template at t.
func (s *Service) Remove(ctx context.Context, t domain.Target) Result {
	res := Result{Target: t.Path(), Action: ActionRemoved}
	if err := s.store.DeleteTemplate(ctx, s.table, t.Key()); err != nil {
		s.log.Error("failed to delete template metadata", "target", res.Target, "error", err)
		res.Error = err.Error()
		return res
	}
	s.log.Info("template removed", "target", res.Target)
	return res
}

var placeholderRe = regexp.MustCompile(`\{\{\s*([^{}]*?)\s*\}\}`)

// ExtractFields returns the distinct variable names used in {{ }}
// placeholders, sorted. Filters after a "|" are ignored.
func ExtractFields(template string) []string {
	var fields []string
	for _, m := range placeholderRe.FindAllStringSubmatch(template, -1) {
		name, _, _ := strings.Cut(m[1], "|")
		if name = strings.TrimSpace(name); name != "" {
			fields = append(fields, name)
		}
	}
	slices.Sort(fields)
	return slices.Compact(fields)
}
