// Package analytics emits anonymous usage events. Tracking is fire and
// forget: failures are swallowed so telemetry can never break a tool call.
package analytics

import (
	"github.com/google/uuid"
	"github.com/posthog/posthog-go"
	"go.uber.org/zap"
)

// Event names emitted by the server and the CLI.
const (
	EventAuthSuccess   = "auth_success"
	EventAuthFailure   = "auth_failure"
	EventTestLaunched  = "test_launched"
	EventTestPoll      = "test_poll"
	EventTestCompleted = "test_completed"
	EventToolError     = "tool_error"
)

// Tracker records usage events.
type Tracker interface {
	Track(event string, properties map[string]interface{})
	Identify(email string)
	Close() error
}

// PostHog sends events to PostHog under a random per-process distinct id.
type PostHog struct {
	client     posthog.Client
	instanceID string
	logger     *zap.Logger
}

// Option customizes the tracker.
type Option func(*PostHog)

// WithLogger attaches a logger for dropped events.
func WithLogger(logger *zap.Logger) Option {
	return func(p *PostHog) {
		p.logger = logger
	}
}

// New creates a tracker. A missing API key or disabled telemetry yields the
// Nop tracker.
func New(apiKey string, enabled bool, options ...Option) Tracker {
	if !enabled || apiKey == "" {
		return Nop{}
	}
	client, err := posthog.NewWithConfig(apiKey, posthog.Config{Endpoint: "https://us.i.posthog.com"})
	if err != nil {
		return Nop{}
	}
	ret := &PostHog{client: client, instanceID: uuid.New().String(), logger: zap.NewNop()}
	for _, option := range options {
		option(ret)
	}
	return ret
}

func (p *PostHog) Track(event string, properties map[string]interface{}) {
	props := posthog.NewProperties()
	for key, value := range properties {
		props.Set(key, value)
	}
	if err := p.client.Enqueue(posthog.Capture{
		DistinctId: p.instanceID,
		Event:      event,
		Properties: props,
	}); err != nil {
		p.logger.Debug("dropped analytics event", zap.String("event", event), zap.Error(err))
	}
}

func (p *PostHog) Identify(email string) {
	if email == "" {
		return
	}
	if err := p.client.Enqueue(posthog.Identify{
		DistinctId: p.instanceID,
		Properties: posthog.NewProperties().Set("email", email),
	}); err != nil {
		p.logger.Debug("dropped analytics identify", zap.Error(err))
	}
}

func (p *PostHog) Close() error {
	return p.client.Close()
}

// Nop discards every event.
type Nop struct{}

func (Nop) Track(string, map[string]interface{}) {}
func (Nop) Identify(string)                      {}
func (Nop) Close() error                         { return nil }
