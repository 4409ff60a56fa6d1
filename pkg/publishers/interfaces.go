package publishers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/steadiczech/games-devkit/internal/logger"
)

// Publisher sends events to a downstream sink (SQS, SNS, Pub/Sub, HTTP).
type Publisher interface {
	ID() string
	Type() string
	Publish(ctx context.Context, evt Event) error
}

// encodeEvent returns the JSON body and the non-empty routing attributes of evt.
func encodeEvent(evt Event) ([]byte, map[string]string, error) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal event: %w", err)
	}
	attrs := map[string]string{}
	if evt.Type != "" {
		attrs["event_type"] = evt.Type
	}
	if evt.Source != "" {
		attrs["source"] = evt.Source
	}
	return payload, attrs, nil
}

// report logs one delivery attempt. A non-nil err is wrapped with action and returned.
func report(log logger.Logger, p Publisher, evt Event, action string, err error, fields map[string]any) error {
	entry := map[string]any{
		"publisher_id": p.ID(),
		"event_id":     evt.ID,
		"event_type":   evt.Type,
	}
	for k, v := range fields {
		entry[k] = v
	}
	key := "publisher_" + p.Type()
	if err != nil {
		entry["error"] = err.Error()
		log.ErrorObj(p.Type()+" delivery failed", key+"_error", entry)
		return fmt.Errorf("%s: %w", action, err)
	}
	log.DebugObj(p.Type()+" delivery ok", key+"_delivery", entry)
	return nil
}
