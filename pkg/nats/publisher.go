package nats

import (
	"context"
	"encoding/json"
	"fmt"

	"vitals-scan-be/internal/pkg/logger"
	"vitals-scan-be/pkg/events"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Publisher sends lifecycle events to the NATS bus.
type Publisher struct {
	nc *nats.Conn
	js jetstream.JetStream
}

func NewPublisher(url string, log logger.ILogger) (*Publisher, error) {
	nc, js, err := connect(url, "vitals-scan-publisher")
	if err != nil {
		return nil, err
	}
	if err := ensureStream(js); err != nil {
		// The stream may already exist with another config, or NATS is still starting.
		log.Warn("NATS", "failed to ensure stream", map[string]interface{}{"stream": StreamName, "error": err.Error()})
	}
	return &Publisher{nc: nc, js: js}, nil
}

// Publish sends event to events.<TYPE>.
func (p *Publisher) Publish(ctx context.Context, event events.Event) error {
	data, err := json.Marshal(event.Payload())
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	subject := SubjectPrefix + event.EventType()
	if _, err := p.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish event to subject %s: %w", subject, err)
	}
	return nil
}

func (p *Publisher) Close() {
	if p.nc != nil {
		p.nc.Close()
	}
}
