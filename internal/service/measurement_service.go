package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"vitals-scan-be/internal/bridge"
	"vitals-scan-be/internal/config"
	"vitals-scan-be/internal/dto"
	"vitals-scan-be/internal/model"
	"vitals-scan-be/internal/pkg/logger"
	"vitals-scan-be/internal/pkg/serverutils"
	"vitals-scan-be/internal/repository/contract"
	"vitals-scan-be/pkg/camera"
	"vitals-scan-be/pkg/capture"
	"vitals-scan-be/pkg/events"
	"vitals-scan-be/pkg/vitals"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

const (
	MeasurementWsPath = "/api/measurements/ws"

	NavigateResults = "results"
	NavigateBack    = "back"

	publishTimeout = 5 * time.Second
)

var (
	ErrMeasurementNotFound = errors.New("measurement not found")
	ErrMeasurementNotLive  = errors.New("measurement has no active capture screen")
	ErrMeasurementFinished = errors.New("measurement already finished")
	ErrResultsNotReady     = errors.New("measurement results are not available yet")
)

// FrameSender delivers frames to the websocket clients of a measurement.
type FrameSender interface {
	SendJSON(measurementID uuid.UUID, v interface{})
}

type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// EngineFactory builds the in-process engine and camera used when the
// engine runs on the server.
type EngineFactory func(measurementID uuid.UUID) (vitals.Engine, camera.Source)

// OutboundFrame is a server-to-client websocket frame.
type OutboundFrame struct {
	Type    string      `json:"type"`
	Name    string      `json:"name,omitempty"`
	Payload interface{} `json:"payload,omitempty"`
}

type IMeasurementService interface {
	Create(ctx context.Context, req *dto.CreateMeasurementRequest) (*dto.CreateMeasurementResponse, error)
	Get(ctx context.Context, id uuid.UUID) (*dto.MeasurementResponse, error)
	Results(ctx context.Context, id uuid.UUID) (*dto.MeasurementResultsResponse, error)
	// Attach starts the capture screen of id against a remote engine and
	// camera. It fails with capture.ErrSessionBusy while one is live.
	Attach(ctx context.Context, id uuid.UUID, engine vitals.Engine, source camera.Source) error
	// Detach unmounts the capture screen of id.
	Detach(id uuid.UUID)
	Cancel(id uuid.UUID) error
	Continue(id uuid.UUID) error
	Exit(id uuid.UUID) error
	EngineMode() string
	Shutdown()
}

// MeasurementServiceDeps groups the collaborators of the measurement service.
type MeasurementServiceDeps struct {
	Repo      contract.MeasurementRepository
	Profiles  IProfileService
	Tokens    *serverutils.TokenIssuer
	Frames    FrameSender
	Events    EventPublisher
	Results   message.Publisher
	Simulated EngineFactory
	Clock     clock.Clock
	Tracer    trace.Tracer
	Logger    logger.ILogger
}

type liveMeasurement struct {
	orch      *capture.Orchestrator
	started   atomic.Bool
	failed    atomic.Bool
	handedOff atomic.Bool
}

type measurementService struct {
	cfg  config.VitalsConfig
	deps MeasurementServiceDeps

	mu   sync.Mutex
	live map[uuid.UUID]*liveMeasurement
}

func NewMeasurementService(cfg config.VitalsConfig, deps MeasurementServiceDeps) IMeasurementService {
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	return &measurementService{
		cfg:  cfg,
		deps: deps,
		live: make(map[uuid.UUID]*liveMeasurement),
	}
}

func (s *measurementService) EngineMode() string {
	return s.cfg.Engine
}

// Create records a measurement and snapshots the profile. In simulated
// mode the capture screen starts at once; in bridge mode it starts when
// the client connects.
func (s *measurementService) Create(ctx context.Context, req *dto.CreateMeasurementRequest) (*dto.CreateMeasurementResponse, error) {
	var user *vitals.UserInformation
	if req.ProfileId != nil {
		info, err := s.deps.Profiles.UserInformation(ctx, *req.ProfileId)
		if err != nil {
			return nil, err
		}
		user = info
	}

	rec := &model.Measurement{
		Id:             uuid.New(),
		ProfileId:      req.ProfileId,
		User:           user,
		ProcessingTime: s.cfg.ProcessingTime,
		Status:         model.MeasurementPending,
		CreatedAt:      s.deps.Clock.Now(),
	}
	if err := s.deps.Repo.Save(ctx, rec); err != nil {
		return nil, err
	}

	token, expiresAt, err := s.deps.Tokens.Issue(rec.Id)
	if err != nil {
		return nil, fmt.Errorf("issue measurement token: %w", err)
	}

	if s.cfg.Engine == config.EngineSimulated && s.deps.Simulated != nil {
		engine, source := s.deps.Simulated(rec.Id)
		if err := s.start(rec, engine, source); err != nil {
			return nil, err
		}
	}

	s.deps.Logger.Session("measurement created", map[string]interface{}{
		"measurement_id":  rec.Id,
		"engine":          s.cfg.Engine,
		"processing_time": rec.ProcessingTime,
		"user_info":       user != nil,
	})

	return &dto.CreateMeasurementResponse{
		Id:             rec.Id,
		Token:          token,
		TokenExpiresAt: expiresAt,
		WsPath:         MeasurementWsPath,
		ProcessingTime: rec.ProcessingTime,
		Engine:         s.cfg.Engine,
	}, nil
}

func (s *measurementService) Get(ctx context.Context, id uuid.UUID) (*dto.MeasurementResponse, error) {
	rec, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := &dto.MeasurementResponse{
		Id:             rec.Id,
		Status:         string(rec.Status),
		ProcessingTime: rec.ProcessingTime,
		Error:          rec.Error,
		CreatedAt:      rec.CreatedAt,
	}
	if live := s.lookup(id); live != nil {
		snap := live.orch.Snapshot()
		resp.Snapshot = &snap
	}
	return resp, nil
}

func (s *measurementService) Results(ctx context.Context, id uuid.UUID) (*dto.MeasurementResultsResponse, error) {
	rec, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Status != model.MeasurementCompleted {
		return nil, ErrResultsNotReady
	}
	return &dto.MeasurementResultsResponse{Id: rec.Id, Results: rec.Results, FinishedAt: rec.FinishedAt}, nil
}

func (s *measurementService) Attach(ctx context.Context, id uuid.UUID, engine vitals.Engine, source camera.Source) error {
	rec, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if rec.Status.Final() {
		return ErrMeasurementFinished
	}
	return s.start(rec, engine, source)
}

// Detach closes the screen. A measurement still in flight is recorded
// as cancelled.
func (s *measurementService) Detach(id uuid.UUID) {
	live := s.lookup(id)
	if live == nil {
		return
	}
	live.orch.Close()
	if live.handedOff.Load() {
		return
	}
	s.finish(id, model.MeasurementCancelled, nil, events.MeasurementCancelled, map[string]interface{}{"reason": "disconnected"})
}

func (s *measurementService) Cancel(id uuid.UUID) error {
	return s.command(id, (*capture.Orchestrator).RequestCancel)
}

func (s *measurementService) Continue(id uuid.UUID) error {
	return s.command(id, (*capture.Orchestrator).DismissCancel)
}

func (s *measurementService) Exit(id uuid.UUID) error {
	return s.command(id, (*capture.Orchestrator).ConfirmExit)
}

// Shutdown closes every live screen and waits for their teardown.
func (s *measurementService) Shutdown() {
	s.mu.Lock()
	lives := make([]*liveMeasurement, 0, len(s.live))
	for _, l := range s.live {
		lives = append(lives, l)
	}
	s.mu.Unlock()

	for _, l := range lives {
		l.orch.Close()
	}
	for _, l := range lives {
		select {
		case <-l.orch.Done():
		case <-time.After(publishTimeout):
			s.deps.Logger.Warn("MeasurementService", "Teardown timed out", nil)
		}
	}
}

func (s *measurementService) command(id uuid.UUID, fn func(*capture.Orchestrator) bool) error {
	live := s.lookup(id)
	if live == nil {
		return ErrMeasurementNotLive
	}
	if !fn(live.orch) {
		return ErrMeasurementNotLive
	}
	return nil
}

func (s *measurementService) start(rec *model.Measurement, engine vitals.Engine, source camera.Source) error {
	orientation, err := vitals.ParseDeviceOrientation(s.cfg.Orientation)
	if err != nil {
		s.deps.Logger.Warn("MeasurementService", "Unknown orientation, using portrait", map[string]interface{}{"orientation": s.cfg.Orientation})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.live[rec.Id]; ok {
		return capture.ErrSessionBusy
	}

	live := &liveMeasurement{}
	nav := &measurementNavigator{svc: s, id: rec.Id, live: live}
	opts := []capture.Option{
		capture.WithClock(s.deps.Clock),
		capture.WithObserver(func(snap capture.Snapshot) { s.observe(rec.Id, live, snap) }),
	}
	if s.deps.Tracer != nil {
		opts = append(opts, capture.WithTracer(s.deps.Tracer))
	}

	orch, err := capture.New(capture.Config{
		LicenseKey:     s.cfg.LicenseKey,
		ProductID:      s.cfg.ProductID,
		ProcessingTime: time.Duration(rec.ProcessingTime) * time.Second,
		Orientation:    orientation,
		StrictGuidance: s.cfg.StrictGuidance,
		Host:           s.cfg.Host,
		User:           rec.User,
	}, engine, source, nav, s.deps.Logger, opts...)
	if err != nil {
		return err
	}
	live.orch = orch
	s.live[rec.Id] = live

	orch.Start(context.Background())
	go func() {
		<-orch.Done()
		s.mu.Lock()
		if s.live[rec.Id] == live {
			delete(s.live, rec.Id)
		}
		s.mu.Unlock()
	}()
	return nil
}

// observe runs on the orchestrator goroutine for every snapshot.
func (s *measurementService) observe(id uuid.UUID, live *liveMeasurement, snap capture.Snapshot) {
	s.deps.Frames.SendJSON(id, OutboundFrame{Type: bridge.FrameSnapshot, Payload: snap})

	if snap.Measuring && !live.started.Swap(true) {
		now := s.deps.Clock.Now()
		_, err := s.deps.Repo.Update(context.Background(), id, func(m *model.Measurement) error {
			if m.Status == model.MeasurementPending {
				m.Status = model.MeasurementRunning
				m.StartedAt = &now
			}
			return nil
		})
		if err != nil {
			s.deps.Logger.Warn("MeasurementService", "Failed to mark measurement running", map[string]interface{}{"measurement_id": id, "error": err.Error()})
		}
		s.publish(events.NewMeasurementEvent(events.MeasurementStarted, id, now, nil))
	}

	if snap.Error != nil && !snap.Error.Recoverable && !live.failed.Swap(true) {
		info := *snap.Error
		s.finish(id, model.MeasurementFailed, &info, events.MeasurementFailed, map[string]interface{}{
			"class":   string(info.Class),
			"message": info.Message,
		})
	}
}

// finish moves a measurement that is not final yet into status and
// announces it.
func (s *measurementService) finish(id uuid.UUID, status model.MeasurementStatus, info *capture.ErrorInfo, eventType string, data map[string]interface{}) bool {
	now := s.deps.Clock.Now()
	changed := false
	_, err := s.deps.Repo.Update(context.Background(), id, func(m *model.Measurement) error {
		if m.Status.Final() {
			return nil
		}
		m.Status = status
		m.Error = info
		m.FinishedAt = &now
		changed = true
		return nil
	})
	if err != nil {
		s.deps.Logger.Warn("MeasurementService", "Failed to update measurement", map[string]interface{}{"measurement_id": id, "status": status, "error": err.Error()})
		return false
	}
	if changed {
		s.publish(events.NewMeasurementEvent(eventType, id, now, data))
	}
	return changed
}

func (s *measurementService) publish(evt events.Event) {
	if s.deps.Events == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := s.deps.Events.Publish(ctx, evt); err != nil {
			s.deps.Logger.Warn("MeasurementService", "Failed to publish event", map[string]interface{}{"type": evt.EventType(), "error": err.Error()})
		}
	}()
}

func (s *measurementService) handOff(id uuid.UUID, result vitals.Result) {
	payload, err := json.Marshal(dto.PublishMeasurementResultsMessage{MeasurementId: id, Results: result})
	if err != nil {
		s.deps.Logger.Error("MeasurementService", "Failed to encode results", map[string]interface{}{"measurement_id": id, "error": err.Error()})
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	go func() {
		if err := s.deps.Results.Publish(s.cfg.ResultsTopic, msg); err != nil {
			s.deps.Logger.Error("MeasurementService", "Failed to hand off results", map[string]interface{}{"measurement_id": id, "error": err.Error()})
		}
	}()
}

func (s *measurementService) lookup(id uuid.UUID) *liveMeasurement {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live[id]
}

func (s *measurementService) find(ctx context.Context, id uuid.UUID) (*model.Measurement, error) {
	rec, err := s.deps.Repo.FindByID(ctx, id)
	if errors.Is(err, contract.ErrNotFound) {
		return nil, ErrMeasurementNotFound
	}
	return rec, err
}

// measurementNavigator leaves the capture screen: results go to the
// results consumer, back records the cancellation.
type measurementNavigator struct {
	svc  *measurementService
	id   uuid.UUID
	live *liveMeasurement
}

func (n *measurementNavigator) ShowResults(result vitals.Result) {
	n.live.handedOff.Store(true)
	n.svc.handOff(n.id, result)
	n.live.orch.Close()
}

func (n *measurementNavigator) Back() {
	n.svc.finish(n.id, model.MeasurementCancelled, nil, events.MeasurementCancelled, map[string]interface{}{"reason": "user_exit"})
	n.svc.deps.Frames.SendJSON(n.id, OutboundFrame{Type: bridge.FrameNavigate, Name: NavigateBack})
	n.live.orch.Close()
}
