package publishers

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"

	"github.com/steadiczech/games-devkit/internal/logger"
)

type snsClient interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// snsPublisher posts each event to a topic.
type snsPublisher struct {
	id       string
	topicARN string
	client   snsClient
	log      logger.Logger
}

func newSNSPublisher(ctx context.Context, cfg PublisherConfig, log logger.Logger) (Publisher, error) {
	t := cfg.SNS
	if t == nil {
		return nil, fmt.Errorf("publisher %q: sns block is required", cfg.ID)
	}
	awsCfg, err := loadAWSConfig(ctx, t.AWSAccess)
	if err != nil {
		return nil, err
	}
	return &snsPublisher{
		id:       cfg.ID,
		topicARN: t.TopicARN,
		client:   sns.NewFromConfig(awsCfg, func(o *sns.Options) { o.BaseEndpoint = t.baseEndpoint() }),
		log:      logger.Ensure(log),
	}, nil
}

func (s *snsPublisher) ID() string   { return s.id }
func (s *snsPublisher) Type() string { return TypeSNS }

func (s *snsPublisher) Publish(ctx context.Context, evt Event) error {
	payload, attrs, err := encodeEvent(evt)
	if err != nil {
		return err
	}
	msgAttrs := make(map[string]snstypes.MessageAttributeValue, len(attrs))
	for name, value := range attrs {
		msgAttrs[name] = snstypes.MessageAttributeValue{DataType: aws.String(awsStringType), StringValue: aws.String(value)}
	}

	out, err := s.client.Publish(ctx, &sns.PublishInput{
		TopicArn:          aws.String(s.topicARN),
		Message:           aws.String(string(payload)),
		MessageAttributes: msgAttrs,
	})
	var fields map[string]any
	if err == nil {
		fields = map[string]any{"message_id": aws.ToString(out.MessageId)}
	}
	return report(s.log, s, evt, "publish to sns", err, fields)
}
