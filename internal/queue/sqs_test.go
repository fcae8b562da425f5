package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/batch-email/internal/domain"
)

type fakeSQS struct {
	mu      sync.Mutex
	queues  map[string]bool
	lookups int
	sent    []*sqs.SendMessageInput
	sendErr error
}

func (f *fakeSQS) GetQueueUrl(_ context.Context, in *sqs.GetQueueUrlInput, _ ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	name := aws.ToString(in.QueueName)
	if !f.queues[name] {
		return nil, &types.QueueDoesNotExist{Message: aws.String("The specified queue does not exist.")}
	}
	return &sqs.GetQueueUrlOutput{QueueUrl: aws.String("https://sqs.local/000000000000/" + name)}, nil
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sent = append(f.sent, in)
	return &sqs.SendMessageOutput{MessageId: aws.String(fmt.Sprintf("msg-%d", len(f.sent)))}, nil
}

func TestPublisher_SendCachesQueueURL(t *testing.T) {
	fake := &fakeSQS{queues: map[string]bool{"email-batches": true}}
	p := NewSQSPublisher(fake)
	ctx := context.Background()

	id, err := p.Send(ctx, "email-batches", map[string]string{"BatchId": "b-1"})
	require.NoError(t, err)
	assert.Equal(t, "msg-1", id)

	id, err = p.Send(ctx, "email-batches", map[string]string{"BatchId": "b-2"})
	require.NoError(t, err)
	assert.Equal(t, "msg-2", id)

	assert.Equal(t, 1, fake.lookups)
	require.Len(t, fake.sent, 2)
	assert.Equal(t, "https://sqs.local/000000000000/email-batches", aws.ToString(fake.sent[0].QueueUrl))

	var body map[string]string
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(fake.sent[1].MessageBody)), &body))
	assert.Equal(t, "b-2", body["BatchId"])
}

func TestPublisher_UnknownQueue(t *testing.T) {
	p := NewSQSPublisher(&fakeSQS{queues: map[string]bool{}})

	_, err := p.Send(context.Background(), "missing", struct{}{})
	assert.ErrorIs(t, err, domain.ErrQueueNotFound)
}

func TestPublisher_SendError(t *testing.T) {
	fake := &fakeSQS{queues: map[string]bool{"q": true}, sendErr: assert.AnError}
	p := NewSQSPublisher(fake)

	_, err := p.Send(context.Background(), "q", struct{}{})
	require.ErrorIs(t, err, assert.AnError)
	assert.NotErrorIs(t, err, domain.ErrQueueNotFound)
}

func TestPublisher_UnmarshalableMessage(t *testing.T) {
	fake := &fakeSQS{queues: map[string]bool{"q": true}}
	_, err := NewSQSPublisher(fake).Send(context.Background(), "q", make(chan int))
	require.Error(t, err)
	assert.Zero(t, fake.lookups)
}
