package storage

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/ignite/batch-email/internal/domain"
)

// BatchTracker writes one item per published batch, keyed by batch_id.
type BatchTracker struct {
	client DynamoAPI
	table  string
}

// NewBatchTracker writes to table.
func NewBatchTracker(client DynamoAPI, table string) *BatchTracker {
	return &BatchTracker{client: client, table: table}
}

// Record stores rec, replacing any earlier record of the same batch.
func (t *BatchTracker) Record(ctx context.Context, rec domain.BatchRecord) error {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshaling batch record %s: %w", rec.BatchID, err)
	}
	_, err = t.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(t.table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("recording batch %s in %s: %w", rec.BatchID, t.table, err)
	}
	return nil
}
