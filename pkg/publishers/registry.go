package publishers

import (
	"context"
	"fmt"

	"github.com/steadiczech/games-devkit/internal/logger"
)

// Builder creates a Publisher from its config entry.
type Builder func(ctx context.Context, cfg PublisherConfig, log logger.Logger) (Publisher, error)

// Builders maps a publisher type to its constructor.
type Builders map[string]Builder

// DefaultBuilders knows every built-in sink.
func DefaultBuilders() Builders {
	return Builders{
		TypeHTTP:      newHTTPPublisher,
		TypeSQS:       newSQSPublisher,
		TypeSNS:       newSNSPublisher,
		TypeGCPPubSub: newGCPPubSubPublisher,
	}
}

// Build constructs the publisher for cfg.
func (b Builders) Build(ctx context.Context, cfg PublisherConfig, log logger.Logger) (Publisher, error) {
	build, ok := b[cfg.Type]
	if !ok || build == nil {
		return nil, fmt.Errorf("publisher %q: unsupported type %q", cfg.ID, cfg.Type)
	}
	return build(ctx, cfg, logger.Ensure(log))
}

// BuildAll constructs every config in order. Already built publishers are closed
// when a later one fails.
func (b Builders) BuildAll(ctx context.Context, cfgs []PublisherConfig, log logger.Logger) ([]Publisher, error) {
	pubs := make([]Publisher, 0, len(cfgs))
	for _, cfg := range cfgs {
		pub, err := b.Build(ctx, cfg, log)
		if err != nil {
			_ = closeAll(pubs)
			return nil, err
		}
		pubs = append(pubs, pub)
	}
	return pubs, nil
}
