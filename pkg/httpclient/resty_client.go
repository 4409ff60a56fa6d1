package httpclient

import (
	"context"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

const userAgent = "games-devkit"

// RestyClient implements Client on top of resty.
type RestyClient struct {
	client *resty.Client
}

// NewRestyClient returns a Client whose requests time out after timeout.
func NewRestyClient(timeout time.Duration) *RestyClient {
	return &RestyClient{client: NewRestyHTTPClient(timeout)}
}

// NewRestyHTTPClient returns the underlying resty client for callers that pick their own verb.
func NewRestyHTTPClient(timeout time.Duration) *resty.Client {
	return resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", userAgent)
}

func (r *RestyClient) Get(ctx context.Context, url string, headers map[string]string) (Response, error) {
	return r.send(ctx, http.MethodGet, url, headers, nil)
}

// Post sends body as JSON, or verbatim when it is a []byte or string.
func (r *RestyClient) Post(ctx context.Context, url string, headers map[string]string, body any) (Response, error) {
	return r.send(ctx, http.MethodPost, url, headers, body)
}

func (r *RestyClient) send(ctx context.Context, method, url string, headers map[string]string, body any) (Response, error) {
	req := r.client.R().SetContext(ctx)
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	resp, err := req.SetHeaders(headers).Execute(method, url)
	if err != nil {
		return nil, err
	}
	return resp, nil
}
