package publishers

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"

	"github.com/steadiczech/games-devkit/internal/logger"
)

// gcpPubSubPublisher publishes events to a Google Cloud Pub/Sub topic.
// PUBSUB_EMULATOR_HOST is honoured by the client library.
type gcpPubSubPublisher struct {
	id     string
	client *pubsub.Client
	topic  *pubsub.Topic
	log    logger.Logger
}

func newGCPPubSubPublisher(ctx context.Context, cfg PublisherConfig, log logger.Logger) (Publisher, error) {
	g := cfg.GCPPubSub
	if g == nil {
		return nil, fmt.Errorf("publisher %q: gcp_pubsub block is required", cfg.ID)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var opts []option.ClientOption
	if g.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(g.CredentialsFile))
	}
	if g.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(g.Endpoint))
	}
	client, err := pubsub.NewClient(ctx, g.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}

	return &gcpPubSubPublisher{
		id:     cfg.ID,
		client: client,
		topic:  client.Topic(g.Topic),
		log:    logger.Ensure(log),
	}, nil
}

func (g *gcpPubSubPublisher) ID() string   { return g.id }
func (g *gcpPubSubPublisher) Type() string { return TypeGCPPubSub }

// Publish blocks until the server acknowledges the message.
func (g *gcpPubSubPublisher) Publish(ctx context.Context, evt Event) error {
	payload, attrs, err := encodeEvent(evt)
	if err != nil {
		return err
	}
	msgID, err := g.topic.Publish(ctx, &pubsub.Message{Data: payload, Attributes: attrs}).Get(ctx)
	return report(g.log, g, evt, "publish to pubsub", err, map[string]any{"message_id": msgID})
}

// Close flushes pending messages and closes the client.
func (g *gcpPubSubPublisher) Close() error {
	g.topic.Stop()
	return g.client.Close()
}
