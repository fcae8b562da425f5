package report

import (
	"context"
	"fmt"

	"github.com/osteele/liquid"

	"github.com/ignite/batch-email/internal/pkg/logger"
)

// TemplateSource fetches template text from object storage.
type TemplateSource interface {
	GetText(ctx context.Context, bucket, key string) (string, error)
}

// Renderer renders the report bodies with liquid. Templates are read from
// the configured bucket; the built-in ones are used when a key is unset or
// the stored template cannot be read or parsed.
type Renderer struct {
	engine  *liquid.Engine
	source  TemplateSource
	bucket  string
	htmlKey string
	textKey string
	log     *logger.Logger
}

// NewRenderer creates a renderer. source may be nil, in which case only the
// built-in templates are used.
func NewRenderer(source TemplateSource, bucket, htmlKey, textKey string) *Renderer {
	return &Renderer{
		engine:  liquid.NewEngine(),
		source:  source,
		bucket:  bucket,
		htmlKey: htmlKey,
		textKey: textKey,
		log:     logger.With("component", "report"),
	}
}

// Render produces the body for f.
func (r *Renderer) Render(ctx context.Context, s Summary, f Format) (string, error) {
	key, fallback := r.textKey, defaultText
	if f == FormatHTML {
		key, fallback = r.htmlKey, defaultHTML
	}

	src := fallback
	if key != "" && r.source != nil && r.bucket != "" {
		text, err := r.source.GetText(ctx, r.bucket, key)
		if err != nil {
			r.log.Warn("report template unavailable, using built-in", "key", key, "error", err.Error())
		} else {
			src = text
		}
	}

	out, err := r.render(src, s.Bindings(f))
	if err != nil && src != fallback {
		r.log.Warn("report template failed to render, using built-in", "key", key, "error", err.Error())
		out, err = r.render(fallback, s.Bindings(f))
	}
	return out, err
}

func (r *Renderer) render(src string, bindings map[string]any) (string, error) {
	tpl, err := r.engine.ParseString(src)
	if err != nil {
		return "", fmt.Errorf("parsing report template: %w", err)
	}
	out, err := tpl.RenderString(bindings)
	if err != nil {
		return "", fmt.Errorf("rendering report template: %w", err)
	}
	return out, nil
}

const defaultHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>
  body { font-family: Arial, sans-serif; color: #222; }
  .bar { width: 100%; background: #eee; display: flex; }
  .bar-success { background: #2e7d32; color: #fff; text-align: center; }
  .bar-failed { background: #c62828; color: #fff; text-align: center; }
</style>
</head>
<body>
<h2>Batch Email Service - Email Initiation Failed</h2>
<p>{{aggregate_success_rate}}% of rows were queued and {{aggregate_error_rate}}% failed.</p>
<div class="bar">{{aggregate_success_text}}{{aggregate_error_text}}</div>
<h3>Files</h3>
<ul>{{batch_success_details}}</ul>
<h3>Attachments</h3>
<ul>{{attachment_list}}</ul>
</body>
</html>
`

const defaultText = `Batch Email Service - Email Initiation Failed

Queued: {{aggregate_success_rate}}%
Failed: {{aggregate_error_rate}}%

Files:
{{batch_success_details}}
Attachments:
{{attachment_list}}`
