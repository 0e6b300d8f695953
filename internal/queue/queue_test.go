package queue_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/sbomflow/internal/queue"
)

func TestRequestWireFormat(t *testing.T) {
	t.Parallel()

	body, err := queue.EnrichmentRequest{Bucket: "sboms", Key: "sbom-abc"}.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"sbom.bucket.name":"sboms","sbom.s3.key":"sbom-abc"}`, body)

	req, err := queue.DecodeRequest(body)
	require.NoError(t, err)
	assert.Equal(t, "sboms", req.Bucket)
	assert.Equal(t, "sbom-abc", req.Key)
}

func TestDecodeRequestRejectsIncomplete(t *testing.T) {
	t.Parallel()

	cases := []string{
		`not json`,
		`{}`,
		`{"sbom.bucket.name":"sboms"}`,
		`{"sbom.s3.key":"sbom-abc"}`,
	}
	for _, body := range cases {
		_, err := queue.DecodeRequest(body)
		assert.Error(t, err, "body %q must be rejected", body)
	}
}

// fakeSQS is an in-memory queue implementing queue.SQSClientAPI.
type fakeSQS struct {
	messages []sqstypes.Message
	deleted  []string
	nextID   int
}

func (f *fakeSQS) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.nextID++
	f.messages = append(f.messages, sqstypes.Message{
		Body:          params.MessageBody,
		ReceiptHandle: aws.String(fmt.Sprintf("receipt-%d", f.nextID)),
	})
	return &sqs.SendMessageOutput{}, nil
}

func (f *fakeSQS) ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	n := int(params.MaxNumberOfMessages)
	if n > len(f.messages) {
		n = len(f.messages)
	}
	batch := f.messages[:n]
	f.messages = f.messages[n:]
	return &sqs.ReceiveMessageOutput{Messages: batch}, nil
}

func (f *fakeSQS) DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.deleted = append(f.deleted, aws.ToString(params.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

func TestPublishReceiveAcknowledge(t *testing.T) {
	t.Parallel()

	fake := &fakeSQS{}
	q, err := queue.New("https://sqs.test/enrichment", "", "", queue.WithSQSClient(fake))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, q.Publish(ctx, queue.EnrichmentRequest{Bucket: "sboms", Key: "sbom-abc"}))

	messages, malformed, err := q.Receive(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, malformed)
	require.Len(t, messages, 1)
	assert.Equal(t, "sboms", messages[0].Request.Bucket)
	assert.Equal(t, "sbom-abc", messages[0].Request.Key)

	require.NoError(t, q.Acknowledge(ctx, messages[0]))
	assert.Len(t, fake.deleted, 1)
}

func TestReceiveSkipsMalformedBodies(t *testing.T) {
	t.Parallel()

	fake := &fakeSQS{messages: []sqstypes.Message{
		{Body: aws.String("junk"), ReceiptHandle: aws.String("r1")},
		{Body: aws.String(`{"sbom.bucket.name":"sboms","sbom.s3.key":"sbom-ok"}`), ReceiptHandle: aws.String("r2")},
	}}
	q, err := queue.New("https://sqs.test/enrichment", "", "", queue.WithSQSClient(fake))
	require.NoError(t, err)

	messages, malformed, err := q.Receive(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, malformed, 1)
	require.Len(t, messages, 1)
	assert.Equal(t, "sbom-ok", messages[0].Request.Key)
}
