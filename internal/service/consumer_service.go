package service

import (
	"context"
	"encoding/json"
	"errors"

	"vitals-scan-be/internal/bridge"
	"vitals-scan-be/internal/dto"
	"vitals-scan-be/internal/model"
	"vitals-scan-be/internal/pkg/logger"
	"vitals-scan-be/internal/repository/contract"
	"vitals-scan-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/benbjohnson/clock"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// consumerService stores handed-off results and sends the client on to
// the results view.
type consumerService struct {
	subscriber message.Subscriber
	topicName  string
	repo       contract.MeasurementRepository
	frames     FrameSender
	events     EventPublisher
	clock      clock.Clock
	logger     logger.ILogger
}

func NewConsumerService(
	subscriber message.Subscriber,
	topicName string,
	repo contract.MeasurementRepository,
	frames FrameSender,
	events EventPublisher,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		subscriber: subscriber,
		topicName:  topicName,
		repo:       repo,
		frames:     frames,
		events:     events,
		clock:      clock.New(),
		logger:     log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.subscriber.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.PublishMeasurementResultsMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.logger.Error("Consumer", "Failed to unmarshal results message", map[string]interface{}{"error": err.Error()})
		// redelivery cannot fix a malformed payload
		msg.Ack()
		return
	}

	now := cs.clock.Now()
	completed := false
	_, err := cs.repo.Update(ctx, payload.MeasurementId, func(m *model.Measurement) error {
		if m.Status.Final() {
			return nil
		}
		m.Status = model.MeasurementCompleted
		m.Results = payload.Results
		m.FinishedAt = &now
		completed = true
		return nil
	})
	if errors.Is(err, contract.ErrNotFound) {
		cs.logger.Warn("Consumer", "Results for unknown measurement", map[string]interface{}{"measurement_id": payload.MeasurementId})
		msg.Ack()
		return
	}
	if err != nil {
		cs.logger.Error("Consumer", "Failed to store results", map[string]interface{}{"measurement_id": payload.MeasurementId, "error": err.Error()})
		msg.Nack()
		return
	}
	if !completed {
		cs.logger.Info("Consumer", "Measurement already final, results dropped", map[string]interface{}{"measurement_id": payload.MeasurementId})
		msg.Ack()
		return
	}

	if cs.frames != nil {
		cs.frames.SendJSON(payload.MeasurementId, OutboundFrame{Type: bridge.FrameNavigate, Name: NavigateResults, Payload: payload.Results})
	}
	if cs.events != nil {
		evt := events.NewMeasurementEvent(events.MeasurementCompleted, payload.MeasurementId, now, map[string]interface{}{
			"metrics": len(payload.Results),
		})
		if err := cs.events.Publish(ctx, evt); err != nil {
			cs.logger.Warn("Consumer", "Failed to publish completion", map[string]interface{}{"error": err.Error()})
		}
	}

	cs.logger.Info("Consumer", "Results stored", map[string]interface{}{
		"measurement_id": payload.MeasurementId,
		"metrics":        len(payload.Results),
	})
	msg.Ack()
}
