package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/aws/smithy-go"
)

const (
	sqsNonExistentQueue = "AWS.SimpleQueueService.NonExistentQueue"
	sqsQueueNameExists  = "QueueNameExists"
)

type sqsAPI interface {
	GetQueueUrl(ctx context.Context, in *sqs.GetQueueUrlInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error)
	CreateQueue(ctx context.Context, in *sqs.CreateQueueInput, optFns ...func(*sqs.Options)) (*sqs.CreateQueueOutput, error)
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// SQSConfig holds connection settings for Amazon SQS or LocalStack.
type SQSConfig struct {
	Region string
	// Endpoint is an optional custom endpoint (LocalStack).
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	// VisibilityTimeout overrides the queue default for received messages when positive.
	VisibilityTimeout time.Duration
}

// SQS implements Backend on Amazon SQS.
type SQS struct {
	api        sqsAPI
	visibility time.Duration
}

// LoadAWSConfig builds an aws.Config honoring an optional endpoint override
// and static credentials.
func LoadAWSConfig(ctx context.Context, region, accessKeyID, secretAccessKey string) (aws.Config, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	if accessKeyID != "" && secretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return awsCfg, nil
}

// NewSQS creates an SQS backend.
func NewSQS(ctx context.Context, cfg SQSConfig) (*SQS, error) {
	awsCfg, err := LoadAWSConfig(ctx, cfg.Region, cfg.AccessKeyID, cfg.SecretAccessKey)
	if err != nil {
		return nil, err
	}
	var sqsOpts []func(*sqs.Options)
	if cfg.Endpoint != "" {
		sqsOpts = append(sqsOpts, func(o *sqs.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	return &SQS{api: sqs.NewFromConfig(awsCfg, sqsOpts...), visibility: cfg.VisibilityTimeout}, nil
}

func (s *SQS) Lookup(ctx context.Context, name string) (string, error) {
	out, err := s.api.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(name)})
	if err != nil {
		var missing *types.QueueDoesNotExist
		if errors.As(err, &missing) || hasAPICode(err, sqsNonExistentQueue) {
			return "", fmt.Errorf("%w: %s", ErrQueueNotFound, name)
		}
		return "", err
	}
	if out.QueueUrl == nil || *out.QueueUrl == "" {
		return "", fmt.Errorf("%w: %s", ErrQueueNotFound, name)
	}
	return *out.QueueUrl, nil
}

func (s *SQS) Create(ctx context.Context, name string) error {
	_, err := s.api.CreateQueue(ctx, &sqs.CreateQueueInput{QueueName: aws.String(name)})
	if err != nil {
		var exists *types.QueueNameExists
		if errors.As(err, &exists) || hasAPICode(err, sqsQueueNameExists) {
			return nil
		}
		return err
	}
	return nil
}

func (s *SQS) Send(ctx context.Context, address, body string, attrs map[string]string) (string, error) {
	in := &sqs.SendMessageInput{
		QueueUrl:    aws.String(address),
		MessageBody: aws.String(body),
	}
	if len(attrs) > 0 {
		in.MessageAttributes = make(map[string]types.MessageAttributeValue, len(attrs))
		for k, v := range attrs {
			in.MessageAttributes[k] = types.MessageAttributeValue{
				DataType:    aws.String("String"),
				StringValue: aws.String(v),
			}
		}
	}
	out, err := s.api.SendMessage(ctx, in)
	if err != nil {
		return "", err
	}
	return aws.ToString(out.MessageId), nil
}

func (s *SQS) Receive(ctx context.Context, address string, max int, wait time.Duration) ([]Message, error) {
	in := &sqs.ReceiveMessageInput{
		QueueUrl:              aws.String(address),
		MaxNumberOfMessages:   int32(max),
		WaitTimeSeconds:       int32(wait / time.Second),
		MessageAttributeNames: []string{"All"},
	}
	if s.visibility > 0 {
		in.VisibilityTimeout = int32(s.visibility / time.Second)
	}
	out, err := s.api.ReceiveMessage(ctx, in)
	if err != nil {
		return nil, err
	}
	msgs := make([]Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		msg := Message{
			ID:      aws.ToString(m.MessageId),
			Receipt: aws.ToString(m.ReceiptHandle),
			Body:    aws.ToString(m.Body),
		}
		if len(m.MessageAttributes) > 0 {
			msg.Attributes = make(map[string]string, len(m.MessageAttributes))
			for k, v := range m.MessageAttributes {
				msg.Attributes[k] = aws.ToString(v.StringValue)
			}
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

func (s *SQS) Delete(ctx context.Context, address, receipt string) error {
	_, err := s.api.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(address),
		ReceiptHandle: aws.String(receipt),
	})
	return err
}

func hasAPICode(err error, code string) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == code
}
