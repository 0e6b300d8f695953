package queue

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// SQSClientAPI defines the interface for the SQS operations used here. This
// allows for mocking in tests.
type SQSClientAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// Message is one received enrichment request plus the handle needed to
// acknowledge it.
type Message struct {
	Request EnrichmentRequest
	Receipt string
}

// Queue publishes and consumes enrichment requests on one SQS queue.
type Queue struct {
	client   SQSClientAPI
	queueURL string
	waitTime int32
}

// Option is a functional option for configuring the queue.
type Option func(*Queue)

// WithSQSClient sets a custom SQS client (for testing).
func WithSQSClient(client SQSClientAPI) Option {
	return func(q *Queue) {
		q.client = client
	}
}

// WithWaitTime sets the long-poll wait in seconds for Receive.
func WithWaitTime(seconds int32) Option {
	return func(q *Queue) {
		q.waitTime = seconds
	}
}

// New creates an SQS-backed queue. region and endpoint may be empty to use
// the ambient AWS configuration.
func New(queueURL, region, endpoint string, opts ...Option) (*Queue, error) {
	q := &Queue{queueURL: queueURL, waitTime: 20}
	for _, opt := range opts {
		opt(q)
	}

	if q.client == nil {
		var configOpts []func(*awsconfig.LoadOptions) error
		if region != "" {
			configOpts = append(configOpts, awsconfig.WithRegion(region))
		}
		cfg, err := awsconfig.LoadDefaultConfig(context.Background(), configOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		var clientOpts []func(*sqs.Options)
		if endpoint != "" {
			clientOpts = append(clientOpts, func(o *sqs.Options) {
				o.BaseEndpoint = aws.String(endpoint)
			})
		}
		q.client = sqs.NewFromConfig(cfg, clientOpts...)
	}

	return q, nil
}

// Publish enqueues one enrichment request.
func (q *Queue) Publish(ctx context.Context, req EnrichmentRequest) error {
	body, err := req.Encode()
	if err != nil {
		return err
	}

	_, err = q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(body),
	})
	if err != nil {
		return fmt.Errorf("failed to publish enrichment request: %w", err)
	}
	return nil
}

// Receive long-polls for up to one batch of requests. Messages whose bodies
// do not decode are returned as errors alongside the valid ones so the
// caller can log and drop them.
func (q *Queue) Receive(ctx context.Context, max int32) ([]Message, []error, error) {
	result, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.queueURL),
		MaxNumberOfMessages: max,
		WaitTimeSeconds:     q.waitTime,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to receive from queue: %w", err)
	}

	var messages []Message
	var malformed []error
	for _, m := range result.Messages {
		req, err := DecodeRequest(aws.ToString(m.Body))
		if err != nil {
			malformed = append(malformed, err)
			continue
		}
		messages = append(messages, Message{Request: req, Receipt: aws.ToString(m.ReceiptHandle)})
	}
	return messages, malformed, nil
}

// Acknowledge deletes a handled message so it is not redelivered.
func (q *Queue) Acknowledge(ctx context.Context, msg Message) error {
	_, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.queueURL),
		ReceiptHandle: aws.String(msg.Receipt),
	})
	if err != nil {
		return fmt.Errorf("failed to acknowledge message: %w", err)
	}
	return nil
}
