// Package app wires configuration, AWS clients and services together for the
// Lambda functions and the webhook server.
package app

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/batch-email/internal/api"
	"github.com/ignite/batch-email/internal/config"
	"github.com/ignite/batch-email/internal/notify"
	"github.com/ignite/batch-email/internal/pkg/distlock"
	"github.com/ignite/batch-email/internal/pkg/logger"
	"github.com/ignite/batch-email/internal/queue"
	"github.com/ignite/batch-email/internal/service/sendbatch"
	"github.com/ignite/batch-email/internal/service/templates"
	"github.com/ignite/batch-email/internal/storage"
)

// lockPrefix namespaces the per-target Redis locks.
const lockPrefix = "batch-email:target"

// App holds the long-lived clients and services of one process. Lambda
// reuses it across warm invocations.
type App struct {
	Config    *config.Config
	Batch     *sendbatch.Service
	Templates *templates.Service
	Health    *api.HealthChecker

	redis *redis.Client
}

// ConfigureLogging applies the log settings of cfg to the global logger.
func ConfigureLogging(cfg *config.Config) {
	logger.SetLevel(logger.ParseLevel(cfg.Log.Level))
	logger.SetRedactPII(cfg.Log.Redact())
}

// New builds every client and service described by cfg.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	ConfigureLogging(cfg)

	awsCfg, err := storage.LoadAWSConfig(ctx, cfg.AWS)
	if err != nil {
		return nil, err
	}

	s3Client := storage.NewS3Client(awsCfg)
	dynamo := storage.NewDynamoClient(awsCfg)
	sqsClient := sqs.NewFromConfig(awsCfg)

	blobs := storage.NewS3Store(s3Client)
	table := storage.NewTemplateTable(dynamo)
	publisher := queue.NewSQSPublisher(sqsClient)

	deps := sendbatch.Deps{
		Blobs:     blobs,
		Queue:     publisher,
		Metadata:  table,
		Mover:     blobs,
		Templates: blobs,
	}
	if cfg.Tracker.Table != "" {
		deps.Recorder = storage.NewBatchTracker(dynamo, cfg.Tracker.Table)
	}
	if cfg.Report.Enabled() {
		deps.Notifier = notify.NewSESNotifier(sesv2.NewFromConfig(awsCfg))
	}

	a := &App{Config: cfg, Health: api.NewHealthChecker()}
	if cfg.Redis.Addr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		deps.Locker = distlock.NewRedisLocker(a.redis, lockPrefix, cfg.Redis.LockTTL())
		a.Health.Add("redis", false, func(ctx context.Context) error {
			return a.redis.Ping(ctx).Err()
		})
	}

	if name := cfg.Queue.Name; name != "" {
		a.Health.Add("queue", true, func(ctx context.Context) error {
			_, err := sqsClient.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(name)})
			return err
		})
	}
	if bucket := cfg.Report.Bucket; bucket != "" {
		a.Health.Add("s3", false, func(ctx context.Context) error {
			_, err := s3Client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
			return err
		})
	}

	a.Batch = sendbatch.NewService(cfg, deps)
	a.Templates = templates.NewService(cfg, blobs, table)

	logger.Info("app initialized",
		"region", awsCfg.Region,
		"queue", cfg.Queue.Name,
		"tracker", cfg.Tracker.Table != "",
		"report", cfg.Report.Enabled(),
		"lock", a.redis != nil)
	return a, nil
}

// Close releases the Redis connection, if any.
func (a *App) Close() error {
	if a.redis == nil {
		return nil
	}
	if err := a.redis.Close(); err != nil {
		return fmt.Errorf("closing redis: %w", err)
	}
	return nil
}
