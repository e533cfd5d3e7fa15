package service

import (
	"context"

	"vitals-scan-be/internal/pkg/logger"
	"vitals-scan-be/pkg/events"
	pktNats "vitals-scan-be/pkg/nats"
)

const auditDurable = "measurement-audit"

// EventSubscriber is the durable side of the event bus.
type EventSubscriber interface {
	Subscribe(subject string, durableName string, handler pktNats.EventHandler) error
}

// AuditService writes every measurement lifecycle event to the audit log.
type AuditService struct {
	subscriber EventSubscriber
	audit      logger.ILogger
	logger     logger.ILogger
}

func NewAuditService(sub EventSubscriber, audit, log logger.ILogger) *AuditService {
	return &AuditService{subscriber: sub, audit: audit, logger: log}
}

func (s *AuditService) Start() error {
	if err := s.subscriber.Subscribe("events.>", auditDurable, s.handleEvent); err != nil {
		s.logger.Error("AuditService", "Failed to start audit subscriber", map[string]interface{}{"error": err.Error()})
		return err
	}
	s.logger.Info("AuditService", "Audit subscriber listening to events.>", nil)
	return nil
}

func (s *AuditService) handleEvent(ctx context.Context, event events.Event) error {
	details := make(map[string]interface{}, len(event.Payload())+1)
	for k, v := range event.Payload() {
		details[k] = v
	}
	details["occurred_at"] = event.Timestamp()
	s.audit.Info("Audit", event.EventType(), details)
	return nil
}
