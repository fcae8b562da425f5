package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
server:
  port: 9090
  host: "0.0.0.0"

aws:
  region: "eu-west-1"
  endpoint: "http://localhost:4566"

ingest:
  recipients_per_message: 2
  required_fields: "send_to, first_name"
  target_concurrency: 4
  strict_success_count: true

queue:
  name: "email-batch-queue"

templates:
  metadata_table: "template-metadata"

report:
  bucket: "batch-email-service"
  sender: "no-reply@example.com"
  admin_email: "ops@example.com, lead@example.com"

filter:
  prefixes: ["uploads/"]

retry:
  max_attempts: 5
  base_delay_ms: 50
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)

	assert.Equal(t, "eu-west-1", cfg.AWS.Region)
	assert.Equal(t, "http://localhost:4566", cfg.AWS.Endpoint)

	assert.Equal(t, 2, cfg.Ingest.RecipientsPerMessage)
	assert.Equal(t, "send_to, first_name", cfg.Ingest.RequiredFields)
	assert.Equal(t, 4, cfg.Ingest.TargetConcurrency)
	assert.True(t, cfg.Ingest.StrictSuccessCount)

	assert.Equal(t, "email-batch-queue", cfg.Queue.Name)
	assert.Equal(t, "template-metadata", cfg.Templates.MetadataTable)

	assert.True(t, cfg.Report.Enabled())
	assert.Equal(t, []string{"ops@example.com", "lead@example.com"}, cfg.Report.Recipients())

	// Explicit lists win; unset ones get defaults.
	assert.Equal(t, []string{"uploads/"}, cfg.Filter.Prefixes)
	assert.Equal(t, []string{".csv"}, cfg.Filter.Suffixes)

	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, 50*time.Millisecond, cfg.Retry.BaseDelay())
	assert.Equal(t, 2*time.Second, cfg.Retry.MaxDelay())
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, "us-east-2", cfg.AWS.Region)
	assert.Equal(t, 50, cfg.Ingest.RecipientsPerMessage)
	assert.Equal(t, "send_to,first_name,last_name,send_from,email_template,subject", cfg.Ingest.RequiredFields)
	assert.Equal(t, "email_template", cfg.Ingest.TemplateField)
	assert.Equal(t, 1, cfg.Ingest.TargetConcurrency)
	assert.False(t, cfg.Ingest.StrictSuccessCount)
	assert.Equal(t, "batch/failed", cfg.Ingest.ErrorPrefix)
	assert.Equal(t, []string{"batch/send/"}, cfg.Filter.Prefixes)
	assert.Equal(t, []string{"ObjectCreated"}, cfg.Filter.Events)
	assert.Equal(t, []string{".html", ".txt"}, cfg.TemplateFilter.Suffixes)
	assert.Equal(t, []string{"ObjectCreated", "ObjectRemoved"}, cfg.TemplateFilter.Events)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 15*time.Minute, cfg.Redis.LockTTL())
	assert.True(t, cfg.Log.Redact())
	assert.False(t, cfg.Report.Enabled())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("EMAIL_BATCH_QUEUE_NAME", "env-queue")
	t.Setenv("RECIPIENTS_PER_MESSAGE", "25")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("AWS_DEFAULT_REGION", "us-west-1")
	t.Setenv("SES_NO_REPLY_SENDER", "no-reply@example.com")
	t.Setenv("SES_ADMIN_EMAIL", "admin@example.com")
	t.Setenv("BATCH_EMAIL_SERVICE_BUCKET_NAME", "svc-bucket")
	t.Setenv("SEND_BATCH_EMAIL_FAILURE_HTML_TEMPLATE_KEY", "templates/failure.html")
	t.Setenv("SEND_BATCH_EMAIL_FAILURE_TEXT_TEMPLATE_KEY", "templates/failure.txt")
	t.Setenv("BATCH_INITIATION_ERROR_S3_PREFIX", "batch/error")
	t.Setenv("EMAIL_REQUIRED_FIELDS", "send_to")
	t.Setenv("TEMPLATE_METADATA_TABLE_NAME", "meta")
	t.Setenv("EMAIL_BATCH_TRACKER_TABLE_NAME", "tracker")
	t.Setenv("STRICT_SUCCESS_COUNT", "true")

	// A missing file is fine: the Lambda bundle has none.
	cfg, err := LoadFromEnv(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "env-queue", cfg.Queue.Name)
	assert.Equal(t, 25, cfg.Ingest.RecipientsPerMessage)
	assert.Equal(t, "DEBUG", cfg.Log.Level)
	assert.Equal(t, "us-west-1", cfg.AWS.Region)
	assert.Equal(t, "svc-bucket", cfg.Report.Bucket)
	assert.Equal(t, "templates/failure.html", cfg.Report.HTMLTemplateKey)
	assert.Equal(t, "templates/failure.txt", cfg.Report.TextTemplateKey)
	assert.Equal(t, "batch/error", cfg.Ingest.ErrorPrefix)
	assert.Equal(t, "send_to", cfg.Ingest.RequiredFields)
	assert.Equal(t, "meta", cfg.Templates.MetadataTable)
	assert.Equal(t, "tracker", cfg.Tracker.Table)
	assert.True(t, cfg.Ingest.StrictSuccessCount)
	assert.Equal(t, []string{"svc-bucket"}, cfg.Filter.Buckets)
	assert.Equal(t, []string{"svc-bucket"}, cfg.TemplateFilter.Buckets)

	require.NoError(t, cfg.ValidateBatch())
	require.NoError(t, cfg.ValidateTemplates())
}

func TestLoadFromEnv_InvalidNumber(t *testing.T) {
	t.Setenv("RECIPIENTS_PER_MESSAGE", "fifty")
	_, err := LoadFromEnv("")
	assert.ErrorContains(t, err, "RECIPIENTS_PER_MESSAGE")
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}

func TestValidateBatch(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	cfg.Report.Sender = "no-reply@example.com"
	cfg.Ingest.RecipientsPerMessage = -1

	err = cfg.ValidateBatch()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EMAIL_BATCH_QUEUE_NAME")
	assert.Contains(t, err.Error(), "recipients_per_message")
	assert.Contains(t, err.Error(), "SES_ADMIN_EMAIL")
	assert.Error(t, cfg.ValidateTemplates())
}
