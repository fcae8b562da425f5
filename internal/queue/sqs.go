// Package queue publishes recipient batches to SQS.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/ignite/batch-email/internal/domain"
	"github.com/ignite/batch-email/internal/pkg/awsretry"
)

// SQSAPI is the subset of the SQS client used by SQSPublisher.
type SQSAPI interface {
	GetQueueUrl(ctx context.Context, params *sqs.GetQueueUrlInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error)
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSPublisher sends JSON messages to queues addressed by name. Queue URLs are
// resolved once and cached.
type SQSPublisher struct {
	client SQSAPI

	mu   sync.Mutex
	urls map[string]string
}

// NewSQSPublisher wraps an SQS client.
func NewSQSPublisher(client SQSAPI) *SQSPublisher {
	return &SQSPublisher{client: client, urls: make(map[string]string)}
}

// Send marshals msg to JSON and sends it to queueName, returning the SQS
// message ID. An unknown queue wraps domain.ErrQueueNotFound.
func (p *SQSPublisher) Send(ctx context.Context, queueName string, msg any) (string, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("marshaling message for %s: %w", queueName, err)
	}

	url, err := p.queueURL(ctx, queueName)
	if err != nil {
		return "", err
	}

	out, err := p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(url),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		if awsretry.IsNotFound(err) {
			p.forget(queueName)
			return "", fmt.Errorf("%w: %s: %w", domain.ErrQueueNotFound, queueName, err)
		}
		return "", fmt.Errorf("sending to %s: %w", queueName, err)
	}
	return aws.ToString(out.MessageId), nil
}

func (p *SQSPublisher) queueURL(ctx context.Context, name string) (string, error) {
	p.mu.Lock()
	url, ok := p.urls[name]
	p.mu.Unlock()
	if ok {
		return url, nil
	}

	out, err := p.client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(name)})
	if err != nil {
		var qdne *types.QueueDoesNotExist
		if errors.As(err, &qdne) || awsretry.IsNotFound(err) {
			return "", fmt.Errorf("%w: %s: %w", domain.ErrQueueNotFound, name, err)
		}
		return "", fmt.Errorf("resolving queue %s: %w", name, err)
	}
	url = aws.ToString(out.QueueUrl)

	p.mu.Lock()
	p.urls[name] = url
	p.mu.Unlock()
	return url, nil
}

func (p *SQSPublisher) forget(name string) {
	p.mu.Lock()
	delete(p.urls, name)
	p.mu.Unlock()
}
