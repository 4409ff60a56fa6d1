package publishers

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/steadiczech/games-devkit/internal/logger"
)

type sqsClient interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// sqsPublisher enqueues each event as one message body.
type sqsPublisher struct {
	id       string
	queueURL string
	client   sqsClient
	log      logger.Logger
}

func newSQSPublisher(ctx context.Context, cfg PublisherConfig, log logger.Logger) (Publisher, error) {
	q := cfg.SQS
	if q == nil {
		return nil, fmt.Errorf("publisher %q: sqs block is required", cfg.ID)
	}
	awsCfg, err := loadAWSConfig(ctx, q.AWSAccess)
	if err != nil {
		return nil, err
	}
	return &sqsPublisher{
		id:       cfg.ID,
		queueURL: q.QueueURL,
		client:   sqs.NewFromConfig(awsCfg, func(o *sqs.Options) { o.BaseEndpoint = q.baseEndpoint() }),
		log:      logger.Ensure(log),
	}, nil
}

func (s *sqsPublisher) ID() string   { return s.id }
func (s *sqsPublisher) Type() string { return TypeSQS }

func (s *sqsPublisher) Publish(ctx context.Context, evt Event) error {
	payload, attrs, err := encodeEvent(evt)
	if err != nil {
		return err
	}
	msgAttrs := make(map[string]types.MessageAttributeValue, len(attrs))
	for name, value := range attrs {
		msgAttrs[name] = types.MessageAttributeValue{DataType: aws.String(awsStringType), StringValue: aws.String(value)}
	}

	out, err := s.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:          aws.String(s.queueURL),
		MessageBody:       aws.String(string(payload)),
		MessageAttributes: msgAttrs,
	})
	var fields map[string]any
	if err == nil {
		fields = map[string]any{"message_id": aws.ToString(out.MessageId)}
	}
	return report(s.log, s, evt, "send message to sqs", err, fields)
}
