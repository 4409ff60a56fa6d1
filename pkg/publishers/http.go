package publishers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/steadiczech/games-devkit/internal/logger"
	"github.com/steadiczech/games-devkit/pkg/httpclient"
)

const maxErrorBody = 512

// httpPublisher delivers events as JSON to a webhook.
type httpPublisher struct {
	id      string
	method  string
	url     string
	headers map[string]string
	client  *resty.Client
	log     logger.Logger
}

func newHTTPPublisher(_ context.Context, cfg PublisherConfig, log logger.Logger) (Publisher, error) {
	h := cfg.HTTP
	if h == nil {
		return nil, fmt.Errorf("publisher %q: http block is required", cfg.ID)
	}

	pub := &httpPublisher{
		id:      cfg.ID,
		method:  strings.ToUpper(h.Method),
		url:     h.URL,
		headers: h.Headers,
		log:     logger.Ensure(log),
	}
	if pub.method == "" {
		pub.method = httpDefaultMethod
	}
	timeout := time.Duration(h.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = httpDefaultTimeoutSeconds * time.Second
	}
	pub.client = httpclient.NewRestyHTTPClient(timeout)
	return pub, nil
}

func (h *httpPublisher) ID() string   { return h.id }
func (h *httpPublisher) Type() string { return TypeHTTP }

// Publish fails on transport errors and on any non-2xx answer.
func (h *httpPublisher) Publish(ctx context.Context, evt Event) error {
	resp, err := h.client.R().
		SetContext(ctx).
		SetHeaders(h.headers).
		SetHeader("Content-Type", "application/json").
		SetBody(evt).
		Execute(h.method, h.url)
	if err == nil && resp.IsError() {
		err = fmt.Errorf("status %d: %s", resp.StatusCode(), errorBody(resp.Body()))
	}
	var fields map[string]any
	if resp != nil {
		fields = map[string]any{"status": resp.StatusCode()}
	}
	return report(h.log, h, evt, h.method+" "+h.url, err, fields)
}

func errorBody(body []byte) string {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return strings.TrimSpace(string(body))
}
