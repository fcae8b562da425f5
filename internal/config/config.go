package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the batch email functions and server.
type Config struct {
	Server         ServerConfig    `yaml:"server"`
	AWS            AWSConfig       `yaml:"aws"`
	Log            LogConfig       `yaml:"log"`
	Ingest         IngestConfig    `yaml:"ingest"`
	Queue          QueueConfig     `yaml:"queue"`
	Templates      TemplatesConfig `yaml:"templates"`
	Report         ReportConfig    `yaml:"report"`
	Filter         FilterConfig    `yaml:"filter"`
	TemplateFilter FilterConfig    `yaml:"template_filter"`
	Tracker        TrackerConfig   `yaml:"tracker"`
	Redis          RedisConfig     `yaml:"redis"`
	Metrics        MetricsConfig   `yaml:"metrics"`
	Retry          RetryConfig     `yaml:"retry"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port                   int    `yaml:"port"`
	Host                   string `yaml:"host"`
	ShutdownTimeoutSeconds int    `yaml:"shutdown_timeout_seconds"`
	// CORSOrigins enables CORS for the listed browser origins.
	CORSOrigins []string `yaml:"cors_origins"`
}

// GetHost returns the server host, with ECS detection
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// Addr returns host:port for http.Server.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.GetHost(), c.Port)
}

// ShutdownTimeout returns the graceful shutdown budget.
func (c ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

// AWSConfig holds the shared AWS client settings.
type AWSConfig struct {
	Region    string `yaml:"region"`
	Profile   string `yaml:"profile"` // Empty string uses default credential chain (IAM role on Lambda)
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	// Endpoint points every client at an S3/SQS/DynamoDB compatible stack
	// such as LocalStack. Empty uses the real AWS endpoints.
	Endpoint string `yaml:"endpoint"`
}

// GetProfile returns the AWS profile, with environment variable override
func (c AWSConfig) GetProfile() string {
	if envProfile := os.Getenv("AWS_PROFILE_OVERRIDE"); envProfile != "" {
		if envProfile == "none" || envProfile == "iam" {
			return ""
		}
		return envProfile
	}
	// On ECS/Lambda, don't use a profile - use IAM role
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return ""
	}
	return c.Profile
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level     string `yaml:"level"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// Redact reports whether PII redaction is on (default true).
func (c LogConfig) Redact() bool {
	return c.RedactPII == nil || *c.RedactPII
}

// IngestConfig controls CSV reading, validation and batching.
type IngestConfig struct {
	RecipientsPerMessage int `yaml:"recipients_per_message"`
	// RequiredFields is a comma-separated list of columns every row must fill.
	RequiredFields     string `yaml:"required_fields"`
	TemplateField      string `yaml:"template_field"`
	TargetConcurrency  int    `yaml:"target_concurrency"`
	StrictSuccessCount bool   `yaml:"strict_success_count"`
	// ErrorPrefix is where objects of a fully failed run are moved.
	ErrorPrefix string `yaml:"error_prefix"`
}

// QueueConfig names the batch queue.
type QueueConfig struct {
	Name string `yaml:"name"`
}

// TemplatesConfig names the template metadata table.
type TemplatesConfig struct {
	MetadataTable string `yaml:"metadata_table"`
}

// ReportConfig controls the admin failure report.
type ReportConfig struct {
	Bucket          string `yaml:"bucket"`
	HTMLTemplateKey string `yaml:"html_template_key"`
	TextTemplateKey string `yaml:"text_template_key"`
	Sender          string `yaml:"sender"`
	// AdminEmail may hold several comma-separated addresses.
	AdminEmail string `yaml:"admin_email"`
	Subject    string `yaml:"subject"`
}

// Enabled reports whether a report can be sent at all.
func (c ReportConfig) Enabled() bool {
	return c.Sender != "" && c.AdminEmail != ""
}

// Recipients splits AdminEmail into trimmed addresses.
func (c ReportConfig) Recipients() []string {
	var out []string
	for _, a := range strings.Split(c.AdminEmail, ",") {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

// FilterConfig selects which storage events are processed. "*" matches
// anything; an empty list is treated as "*".
type FilterConfig struct {
	Buckets  []string `yaml:"buckets"`
	Prefixes []string `yaml:"prefixes"`
	Suffixes []string `yaml:"suffixes"`
	Events   []string `yaml:"events"`
}

// TrackerConfig names the optional batch tracker table.
type TrackerConfig struct {
	Table string `yaml:"table"`
}

// RedisConfig enables the duplicate-delivery guard when Addr is set.
type RedisConfig struct {
	Addr           string `yaml:"addr"`
	Password       string `yaml:"password"`
	DB             int    `yaml:"db"`
	LockTTLSeconds int    `yaml:"lock_ttl_seconds"`
}

// LockTTL returns the per-target lock lifetime.
func (c RedisConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// MetricsConfig enables pushing run metrics when PushgatewayURL is set.
type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url"`
	Job            string `yaml:"job"`
}

// RetryConfig bounds retries of queue publishes and template lookups.
type RetryConfig struct {
	MaxAttempts int `yaml:"max_attempts"`
	BaseDelayMS int `yaml:"base_delay_ms"`
	MaxDelayMS  int `yaml:"max_delay_ms"`
}

// BaseDelay returns the first backoff step.
func (c RetryConfig) BaseDelay() time.Duration {
	return time.Duration(c.BaseDelayMS) * time.Millisecond
}

// MaxDelay returns the backoff cap.
func (c RetryConfig) MaxDelay() time.Duration {
	return time.Duration(c.MaxDelayMS) * time.Millisecond
}

// Load reads and parses the configuration file. An empty path yields the
// defaults.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.ShutdownTimeoutSeconds == 0 {
		cfg.Server.ShutdownTimeoutSeconds = 15
	}
	if cfg.AWS.Region == "" {
		cfg.AWS.Region = "us-east-2"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "INFO"
	}
	if cfg.Ingest.RecipientsPerMessage == 0 {
		cfg.Ingest.RecipientsPerMessage = 50
	}
	if cfg.Ingest.RequiredFields == "" {
		cfg.Ingest.RequiredFields = "send_to,first_name,last_name,send_from,email_template,subject"
	}
	if cfg.Ingest.TemplateField == "" {
		cfg.Ingest.TemplateField = "email_template"
	}
	if cfg.Ingest.TargetConcurrency == 0 {
		cfg.Ingest.TargetConcurrency = 1
	}
	if cfg.Ingest.ErrorPrefix == "" {
		cfg.Ingest.ErrorPrefix = "batch/failed"
	}
	if cfg.Report.Subject == "" {
		cfg.Report.Subject = "Batch Email Service - Email Initiation Failed"
	}
	if len(cfg.Filter.Prefixes) == 0 {
		cfg.Filter.Prefixes = []string{"batch/send/"}
	}
	if len(cfg.Filter.Suffixes) == 0 {
		cfg.Filter.Suffixes = []string{".csv"}
	}
	if len(cfg.Filter.Events) == 0 {
		cfg.Filter.Events = []string{"ObjectCreated"}
	}
	if len(cfg.TemplateFilter.Prefixes) == 0 {
		cfg.TemplateFilter.Prefixes = []string{"templates/"}
	}
	if len(cfg.TemplateFilter.Suffixes) == 0 {
		cfg.TemplateFilter.Suffixes = []string{".html", ".txt"}
	}
	if len(cfg.TemplateFilter.Events) == 0 {
		cfg.TemplateFilter.Events = []string{"ObjectCreated", "ObjectRemoved"}
	}
	if cfg.Redis.LockTTLSeconds == 0 {
		cfg.Redis.LockTTLSeconds = 900
	}
	if cfg.Metrics.Job == "" {
		cfg.Metrics.Job = "batch_email"
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if cfg.Retry.BaseDelayMS == 0 {
		cfg.Retry.BaseDelayMS = 100
	}
	if cfg.Retry.MaxDelayMS == 0 {
		cfg.Retry.MaxDelayMS = 2000
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It loads a .env file (if present) before reading env vars, and a missing
// config file is not an error since the Lambda bundle ships without one.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg, err = Load("")
	}
	if err != nil {
		return nil, err
	}

	setString(&cfg.Queue.Name, "EMAIL_BATCH_QUEUE_NAME")
	if err := setInt(&cfg.Ingest.RecipientsPerMessage, "RECIPIENTS_PER_MESSAGE"); err != nil {
		return nil, err
	}
	setString(&cfg.Ingest.RequiredFields, "EMAIL_REQUIRED_FIELDS")
	setString(&cfg.Ingest.TemplateField, "EMAIL_TEMPLATE_FIELD")
	setString(&cfg.Ingest.ErrorPrefix, "BATCH_INITIATION_ERROR_S3_PREFIX")
	if err := setInt(&cfg.Ingest.TargetConcurrency, "TARGET_CONCURRENCY"); err != nil {
		return nil, err
	}
	if v := os.Getenv("STRICT_SUCCESS_COUNT"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("config: STRICT_SUCCESS_COUNT: %w", err)
		}
		cfg.Ingest.StrictSuccessCount = b
	}

	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.AWS.Region, "AWS_DEFAULT_REGION")
	setString(&cfg.AWS.Endpoint, "AWS_ENDPOINT_URL")

	setString(&cfg.Report.Sender, "SES_NO_REPLY_SENDER")
	setString(&cfg.Report.AdminEmail, "SES_ADMIN_EMAIL")
	setString(&cfg.Report.Bucket, "BATCH_EMAIL_SERVICE_BUCKET_NAME")
	setString(&cfg.Report.HTMLTemplateKey, "SEND_BATCH_EMAIL_FAILURE_HTML_TEMPLATE_KEY")
	setString(&cfg.Report.TextTemplateKey, "SEND_BATCH_EMAIL_FAILURE_TEXT_TEMPLATE_KEY")

	setString(&cfg.Templates.MetadataTable, "TEMPLATE_METADATA_TABLE_NAME")
	setString(&cfg.Tracker.Table, "EMAIL_BATCH_TRACKER_TABLE_NAME")
	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setString(&cfg.Metrics.PushgatewayURL, "PUSHGATEWAY_URL")
	if err := setInt(&cfg.Server.Port, "SERVER_PORT"); err != nil {
		return nil, err
	}
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = strings.Split(v, ",")
	}

	// The service bucket is the only bucket the batch trigger listens on.
	if cfg.Report.Bucket != "" && len(cfg.Filter.Buckets) == 0 {
		cfg.Filter.Buckets = []string{cfg.Report.Bucket}
		cfg.TemplateFilter.Buckets = []string{cfg.Report.Bucket}
	}

	return cfg, nil
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

func setInt(dst *int, env string) error {
	v := os.Getenv(env)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("config: %s: %w", env, err)
	}
	*dst = n
	return nil
}

// ValidateBatch reports every setting the send-batch function cannot run
// without.
func (cfg *Config) ValidateBatch() error {
	var result *multierror.Error
	if cfg.Queue.Name == "" {
		result = multierror.Append(result, errors.New("queue name (EMAIL_BATCH_QUEUE_NAME) is required"))
	}
	if cfg.Ingest.RecipientsPerMessage <= 0 {
		result = multierror.Append(result, fmt.Errorf("recipients_per_message must be positive, got %d", cfg.Ingest.RecipientsPerMessage))
	}
	if cfg.Ingest.TargetConcurrency <= 0 {
		result = multierror.Append(result, fmt.Errorf("target_concurrency must be positive, got %d", cfg.Ingest.TargetConcurrency))
	}
	if (cfg.Report.Sender == "") != (cfg.Report.AdminEmail == "") {
		result = multierror.Append(result, errors.New("report sender (SES_NO_REPLY_SENDER) and admin email (SES_ADMIN_EMAIL) must be set together"))
	}
	return result.ErrorOrNil()
}

// ValidateTemplates reports every setting the template registration
// function cannot run without.
func (cfg *Config) ValidateTemplates() error {
	var result *multierror.Error
	if cfg.Templates.MetadataTable == "" {
		result = multierror.Append(result, errors.New("metadata table (TEMPLATE_METADATA_TABLE_NAME) is required"))
	}
	return result.ErrorOrNil()
}
