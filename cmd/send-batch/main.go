// Command send-batch is the Lambda function triggered by recipient file
// uploads.
package main

import (
	"context"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/ignite/batch-email/internal/app"
	"github.com/ignite/batch-email/internal/config"
	"github.com/ignite/batch-email/internal/pkg/httputil"
)

func main() {
	cfg, err := config.LoadFromEnv(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.ValidateBatch(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	a, err := app.New(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}

	lambda.Start(func(ctx context.Context, evt events.S3Event) (httputil.Response, error) {
		return a.Batch.HandleEvent(ctx, evt.Records), nil
	})
}
