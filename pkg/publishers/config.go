package publishers

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Publisher types understood by DefaultBuilders.
const (
	TypeHTTP      = "http"
	TypeSQS       = "sqs"
	TypeSNS       = "sns"
	TypeGCPPubSub = "gcp_pubsub"
)

const (
	httpDefaultMethod         = "POST"
	httpDefaultTimeoutSeconds = 5
)

// PublisherConfig is one sink declared in the publishers file.
type PublisherConfig struct {
	ID        string                    `yaml:"id" validate:"required"`
	Type      string                    `yaml:"type" validate:"required,oneof=http sqs sns gcp_pubsub"`
	Enabled   *bool                     `yaml:"enabled"`
	HTTP      *HTTPPublisherConfig      `yaml:"http" validate:"required_if=Type http"`
	SQS       *SQSPublisherConfig       `yaml:"sqs" validate:"required_if=Type sqs"`
	SNS       *SNSPublisherConfig       `yaml:"sns" validate:"required_if=Type sns"`
	GCPPubSub *GCPPubSubPublisherConfig `yaml:"gcp_pubsub" validate:"required_if=Type gcp_pubsub"`
}

// AWSAccess is the region plus optional static keys and endpoint (localstack) shared by SQS and SNS.
type AWSAccess struct {
	Region          string `yaml:"region" validate:"required"`
	Endpoint        string `yaml:"endpoint" validate:"omitempty,url"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type SQSPublisherConfig struct {
	QueueURL  string `yaml:"uri" validate:"required,url"`
	AWSAccess `yaml:",inline"`
}

type SNSPublisherConfig struct {
	TopicARN  string `yaml:"topic_arn" validate:"required"`
	AWSAccess `yaml:",inline"`
}

type HTTPPublisherConfig struct {
	URL            string            `yaml:"url" validate:"required,url"`
	Method         string            `yaml:"method"`
	Headers        map[string]string `yaml:"headers"`
	TimeoutSeconds int               `yaml:"timeout_seconds" validate:"gte=0"`
}

type GCPPubSubPublisherConfig struct {
	ProjectID       string `yaml:"project_id" validate:"required"`
	Topic           string `yaml:"topic" validate:"required"`
	CredentialsFile string `yaml:"credentials_file"`
	Endpoint        string `yaml:"endpoint"`
}

// EnabledValue reports whether the sink is active; unset means enabled.
func (cfg PublisherConfig) EnabledValue() bool {
	return cfg.Enabled == nil || *cfg.Enabled
}

// ConfigRegistry is the parsed publishers file.
type ConfigRegistry struct {
	publishers []PublisherConfig
	byID       map[string]int
}

// LoadRegistry parses the publishers file (YAML, or JSON which YAML accepts).
// Notifications are optional, so an empty path or a missing file yields an empty registry.
func LoadRegistry(path string) (*ConfigRegistry, error) {
	reg := &ConfigRegistry{byID: map[string]int{}}

	path = strings.TrimSpace(path)
	if path == "" {
		return reg, nil
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return reg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read publishers file: %w", err)
	}

	var file struct {
		Publishers []PublisherConfig `yaml:"publishers"`
	}
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decode publishers file: %w", err)
	}

	for i, cfg := range file.Publishers {
		if err := cfg.prepare(); err != nil {
			return nil, fmt.Errorf("publishers[%d] %q: %w", i, cfg.ID, err)
		}
		if _, dup := reg.byID[cfg.ID]; dup {
			return nil, fmt.Errorf("duplicate publisher id %q", cfg.ID)
		}
		reg.byID[cfg.ID] = len(reg.publishers)
		reg.publishers = append(reg.publishers, cfg)
	}
	return reg, nil
}

var validate = validator.New()

// prepare normalizes cfg in place and validates the result.
func (cfg *PublisherConfig) prepare() error {
	cfg.normalize()
	return validate.Struct(cfg)
}

// normalize trims values and fills defaults before validation.
func (cfg *PublisherConfig) normalize() {
	cfg.ID = strings.TrimSpace(cfg.ID)
	cfg.Type = strings.ToLower(strings.TrimSpace(cfg.Type))

	if h := cfg.HTTP; h != nil {
		h.URL = strings.TrimSpace(h.URL)
		h.Method = strings.ToUpper(strings.TrimSpace(h.Method))
		if h.Method == "" {
			h.Method = httpDefaultMethod
		}
		if h.TimeoutSeconds == 0 {
			h.TimeoutSeconds = httpDefaultTimeoutSeconds
		}
		headers := make(map[string]string, len(h.Headers))
		for k, v := range h.Headers {
			if k, v = strings.TrimSpace(k), strings.TrimSpace(v); k != "" && v != "" {
				headers[k] = v
			}
		}
		h.Headers = headers
	}
	if q := cfg.SQS; q != nil {
		q.QueueURL = strings.TrimSpace(q.QueueURL)
		q.AWSAccess.trim()
	}
	if t := cfg.SNS; t != nil {
		t.TopicARN = strings.TrimSpace(t.TopicARN)
		t.AWSAccess.trim()
	}
	if g := cfg.GCPPubSub; g != nil {
		g.ProjectID = strings.TrimSpace(g.ProjectID)
		g.Topic = strings.TrimSpace(g.Topic)
		g.CredentialsFile = strings.TrimSpace(g.CredentialsFile)
		g.Endpoint = strings.TrimSpace(g.Endpoint)
	}
}

func (a *AWSAccess) trim() {
	a.Region = strings.TrimSpace(a.Region)
	a.Endpoint = strings.TrimSpace(a.Endpoint)
	a.AccessKeyID = strings.TrimSpace(a.AccessKeyID)
	a.SecretAccessKey = strings.TrimSpace(a.SecretAccessKey)
}

// All returns every declared publisher in file order.
func (r *ConfigRegistry) All() []PublisherConfig {
	if r == nil {
		return nil
	}
	return append([]PublisherConfig(nil), r.publishers...)
}

// Enabled returns the publishers that are switched on.
func (r *ConfigRegistry) Enabled() []PublisherConfig {
	var out []PublisherConfig
	for _, cfg := range r.All() {
		if cfg.EnabledValue() {
			out = append(out, cfg)
		}
	}
	return out
}
