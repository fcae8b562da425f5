// Package api exposes the event handlers over HTTP for S3-compatible bucket
// notifications and local development.
package api

import (
	"context"
	"net/http"

	"github.com/aws/aws-lambda-go/events"

	"github.com/ignite/batch-email/internal/pkg/httputil"
)

// maxEventBytes bounds a notification body.
const maxEventBytes = 4 << 20

// EventHandler processes the records of one storage notification.
type EventHandler interface {
	HandleEvent(ctx context.Context, records []events.S3EventRecord) httputil.Response
}

// Handlers holds the HTTP handlers.
type Handlers struct {
	batch     EventHandler
	templates EventHandler
	health    *HealthChecker
}

// NewHandlers creates the handlers. templates may be nil, in which case the
// template route answers 404.
func NewHandlers(batch, templates EventHandler, health *HealthChecker) *Handlers {
	if health == nil {
		health = NewHealthChecker()
	}
	return &Handlers{batch: batch, templates: templates, health: health}
}

// BatchEvent handles POST /v1/events/batch.
func (h *Handlers) BatchEvent(w http.ResponseWriter, r *http.Request) {
	h.serveEvent(w, r, h.batch)
}

// TemplateEvent handles POST /v1/events/template.
func (h *Handlers) TemplateEvent(w http.ResponseWriter, r *http.Request) {
	if h.templates == nil {
		httputil.Error(w, http.StatusNotFound, "template registration is not enabled")
		return
	}
	h.serveEvent(w, r, h.templates)
}

func (h *Handlers) serveEvent(w http.ResponseWriter, r *http.Request, handler EventHandler) {
	r.Body = http.MaxBytesReader(w, r.Body, maxEventBytes)
	var evt events.S3Event
	if !httputil.Decode(w, r, &evt) {
		return
	}
	httputil.WriteResponse(w, handler.HandleEvent(r.Context(), evt.Records))
}
