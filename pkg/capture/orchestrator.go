package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"vitals-scan-be/internal/pkg/logger"
	"vitals-scan-be/pkg/camera"
	"vitals-scan-be/pkg/vitals"

	"github.com/benbjohnson/clock"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	moduleName       = "Orchestrator"
	mailboxSize      = 256
	validityLogEvery = 2 * time.Second
)

// Navigator receives the outcome of a capture screen. Implementations
// must not block.
type Navigator interface {
	ShowResults(result vitals.Result)
	Back()
}

// Config describes one capture screen.
type Config struct {
	LicenseKey     string
	ProductID      string
	ProcessingTime time.Duration
	Orientation    vitals.DeviceOrientation
	StrictGuidance bool
	Host           string
	User           *vitals.UserInformation
	Timings        Timings
}

type Option func(*Orchestrator)

func WithClock(c clock.Clock) Option {
	return func(o *Orchestrator) { o.clock = c }
}

func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = t }
}

// WithObserver registers fn before the orchestrator starts.
func WithObserver(fn func(Snapshot)) Option {
	return func(o *Orchestrator) {
		o.observers[o.nextObserver] = fn
		o.nextObserver++
	}
}

// Orchestrator is the serialized owner of one capture screen. Every
// engine callback, timer and setup continuation is posted to its
// mailbox and applied to the Machine by a single goroutine.
type Orchestrator struct {
	cfg    Config
	engine vitals.Engine
	source camera.Source
	nav    Navigator
	clock  clock.Clock
	logger logger.ILogger
	tracer trace.Tracer

	ctx     context.Context
	cancel  context.CancelFunc
	mailbox chan Event
	done    chan struct{}
	stopped chan struct{}
	closed  atomic.Bool

	startOnce sync.Once
	closeOnce sync.Once

	res resources

	// owned by the loop goroutine
	machine    *Machine
	timers     map[TimerKind]*clock.Timer
	ticker     *clock.Ticker
	tickerDone chan struct{}
	lastLogged vitals.ImageValidity
	lastLogAt  time.Time
	everLogged bool

	mu           sync.RWMutex
	snap         Snapshot
	observers    map[int]func(Snapshot)
	nextObserver int
}

func New(cfg Config, engine vitals.Engine, source camera.Source, nav Navigator, log logger.ILogger, opts ...Option) (*Orchestrator, error) {
	if engine == nil {
		return nil, errors.New("capture: engine is required")
	}
	if source == nil {
		return nil, errors.New("capture: camera source is required")
	}
	if nav == nil {
		return nil, errors.New("capture: navigator is required")
	}
	if log == nil {
		return nil, errors.New("capture: logger is required")
	}
	if cfg.Timings == (Timings{}) {
		cfg.Timings = DefaultTimings()
	}
	if cfg.ProcessingTime <= 0 {
		cfg.ProcessingTime = DefaultProcessingTime
	}

	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		cfg:       cfg,
		engine:    engine,
		source:    source,
		nav:       nav,
		clock:     clock.New(),
		logger:    log,
		tracer:    otel.Tracer("vitals-scan-be/pkg/capture"),
		ctx:       ctx,
		cancel:    cancel,
		mailbox:   make(chan Event, mailboxSize),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
		timers:    make(map[TimerKind]*clock.Timer),
		observers: make(map[int]func(Snapshot)),
		machine: NewMachine(MachineConfig{
			Timings:        cfg.Timings,
			ProcessingTime: cfg.ProcessingTime,
			Host:           cfg.Host,
		}),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.snap = o.machine.Snapshot()
	return o, nil
}

// Start runs the event loop and the setup sequence. Cancelling parent
// closes the orchestrator. Start is a no-op after the first call or
// after Close.
func (o *Orchestrator) Start(parent context.Context) {
	o.startOnce.Do(func() {
		go o.loop()
		go o.setup(o.ctx)
		go func() {
			select {
			case <-parent.Done():
				o.Close()
			case <-o.done:
			}
		}()
	})
}

// Close tears the screen down: timers stop, camera tracks stop once and
// the session is terminated at most once. It never blocks and is safe
// to call repeatedly and from any goroutine.
func (o *Orchestrator) Close() {
	o.closeOnce.Do(func() {
		o.closed.Store(true)
		o.cancel()
		close(o.done)
		o.startOnce.Do(func() { close(o.stopped) })
	})
}

// Done is closed once teardown has finished.
func (o *Orchestrator) Done() <-chan struct{} {
	return o.stopped
}

func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.snap
}

// Subscribe registers fn for every published snapshot.
func (o *Orchestrator) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	o.mu.Lock()
	id := o.nextObserver
	o.nextObserver++
	o.observers[id] = fn
	o.mu.Unlock()
	return func() {
		o.mu.Lock()
		delete(o.observers, id)
		o.mu.Unlock()
	}
}

// RequestCancel opens the exit confirmation.
func (o *Orchestrator) RequestCancel() bool { return o.post(CancelRequested{}) }

// DismissCancel closes the confirmation without side effects.
func (o *Orchestrator) DismissCancel() bool { return o.post(CancelDismissed{}) }

// ConfirmExit tears the session down and navigates back.
func (o *Orchestrator) ConfirmExit() bool { return o.post(ExitConfirmed{}) }

func (o *Orchestrator) post(ev Event) bool {
	if o.closed.Load() {
		return false
	}
	select {
	case o.mailbox <- ev:
		return true
	case <-o.done:
		return false
	}
}

func (o *Orchestrator) loop() {
	defer close(o.stopped)
	for {
		select {
		case <-o.done:
			o.teardown()
			return
		case ev := <-o.mailbox:
			o.dispatch(ev)
		}
	}
}

func (o *Orchestrator) dispatch(ev Event) {
	if o.closed.Load() {
		return
	}
	now := o.clock.Now()
	o.logEvent(now, ev)
	for _, fx := range o.machine.Handle(now, ev) {
		o.perform(fx)
	}
	o.publish(o.machine.Snapshot())
}

func (o *Orchestrator) publish(s Snapshot) {
	o.mu.Lock()
	o.snap = s
	fns := make([]func(Snapshot), 0, len(o.observers))
	for _, fn := range o.observers {
		fns = append(fns, fn)
	}
	o.mu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}

func (o *Orchestrator) perform(fx Effect) {
	switch f := fx.(type) {
	case InvokeStart:
		o.startSession()
	case InvokeStop:
		o.stopSession()
	case InvokeTerminate:
		o.terminateSession(o.res.current())
	case ReleaseCamera:
		if o.res.camera().Stop() {
			o.logger.Session("camera released", nil)
		}
	case ScheduleTimer:
		o.schedule(f)
	case CancelTimer:
		o.cancelTimer(f.Timer)
	case StartTicker:
		o.startTicker(f.Interval)
	case StopTicker:
		o.stopTicker()
	case DeliverResults:
		o.logger.Session("results delivered", map[string]interface{}{"metrics": len(f.Result)})
		o.nav.ShowResults(f.Result)
	case NavigateBack:
		o.logger.Session("exit confirmed", nil)
		o.nav.Back()
	}
}

func (o *Orchestrator) startSession() {
	h := o.res.current()
	if !h.live() {
		o.logger.Warn(moduleName, "start requested without a live session", nil)
		go o.post(StartFailed{Err: ErrNoSession})
		return
	}
	o.logger.Session("start requested", nil)
	go func() {
		if err := h.session.Start(o.ctx); err != nil {
			o.logger.Warn(moduleName, "session start failed", map[string]interface{}{"error": err.Error()})
			o.post(StartFailed{Err: err})
		}
	}()
}

func (o *Orchestrator) stopSession() {
	h := o.res.current()
	if !h.live() {
		return
	}
	o.logger.Session("stop requested", nil)
	go func() {
		if err := h.session.Stop(o.ctx); err != nil {
			o.logger.Warn(moduleName, "session stop failed", map[string]interface{}{"error": err.Error()})
		}
	}()
}

// terminateSession runs off the loop. Failures are logged, not retried.
func (o *Orchestrator) terminateSession(h *sessionHandle) {
	if !h.live() {
		return
	}
	go func() {
		did, err := h.terminate(context.Background())
		if !did {
			return
		}
		if err != nil {
			o.logger.Error(moduleName, "session terminate failed", map[string]interface{}{"error": err.Error()})
			return
		}
		o.logger.Session("terminated", nil)
	}()
}

func (o *Orchestrator) schedule(f ScheduleTimer) {
	o.cancelTimer(f.Timer)
	kind, gen := f.Timer, f.Gen
	o.timers[kind] = o.clock.AfterFunc(f.Delay, func() {
		o.post(TimerFired{Timer: kind, Gen: gen})
	})
}

func (o *Orchestrator) cancelTimer(kind TimerKind) {
	if t, ok := o.timers[kind]; ok {
		t.Stop()
		delete(o.timers, kind)
	}
}

func (o *Orchestrator) startTicker(interval time.Duration) {
	o.stopTicker()
	t := o.clock.Ticker(interval)
	stop := make(chan struct{})
	o.ticker, o.tickerDone = t, stop
	go func() {
		for {
			select {
			case <-t.C:
				if !o.post(ProgressTick{}) {
					return
				}
			case <-stop:
				return
			}
		}
	}()
}

func (o *Orchestrator) stopTicker() {
	if o.ticker == nil {
		return
	}
	o.ticker.Stop()
	close(o.tickerDone)
	o.ticker, o.tickerDone = nil, nil
}

func (o *Orchestrator) teardown() {
	for kind := range o.timers {
		o.cancelTimer(kind)
	}
	o.stopTicker()

	guard, h := o.res.release()
	if guard.Stop() {
		o.logger.Session("camera released", map[string]interface{}{"reason": "closed"})
	}
	o.terminateSession(h)
	o.logger.Session("closed", nil)
}

func (o *Orchestrator) setup(ctx context.Context) {
	ctx, span := o.tracer.Start(ctx, "capture.setup")
	defer span.End()

	fail := func(class ErrorClass, msg string, err error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(class))
		o.logger.Error(moduleName, "setup failed", map[string]interface{}{"class": string(class), "error": err.Error()})
		o.post(SetupFailed{Class: class, Message: msg, Err: err})
	}

	if err := vitals.ValidateLicenseKey(o.cfg.LicenseKey); err != nil {
		fail(ClassConfiguration, configurationMessage(err), err)
		return
	}

	o.logger.Session("initializing engine", map[string]interface{}{"product_id": o.cfg.ProductID})
	err := o.engine.Initialize(ctx, vitals.InitOptions{
		LicenseKey: o.cfg.LicenseKey,
		ProductID:  o.cfg.ProductID,
		License:    o.licenseCallbacks(),
	})
	if !o.alive() {
		return
	}
	if err != nil {
		class, msg := o.initFailure(err)
		fail(class, msg, err)
		return
	}

	stream, err := o.source.Open(ctx, camera.DefaultConstraints())
	if !o.alive() {
		camera.NewGuard(stream).Stop()
		return
	}
	if err != nil {
		fail(ClassPermission, camera.Describe(err), err)
		return
	}
	if guard, ok := o.res.adoptStream(stream); !ok {
		guard.Stop()
		return
	}
	span.AddEvent("camera acquired")

	deviceID := ""
	if devices, err := o.source.Devices(ctx); err != nil {
		o.logger.Warn(moduleName, "device enumeration failed", map[string]interface{}{"error": err.Error()})
	} else if d, ok := camera.FirstVideoInput(devices); ok {
		deviceID = d.ID
	}

	err = o.createSession(ctx, stream, deviceID)
	switch {
	case err == nil:
		span.SetAttributes(attribute.String("camera.device_id", deviceID))
		o.post(SessionReady{})
	case errors.Is(err, ErrSessionBusy), errors.Is(err, ErrClosed):
		return
	default:
		class, msg := o.sessionFailure(err)
		fail(class, msg, err)
	}
}

// createSession opens the engine session. Only one creation may be in
// flight and none may start while a previous session is live.
func (o *Orchestrator) createSession(ctx context.Context, stream camera.Stream, deviceID string) error {
	if err := o.res.beginCreate(); err != nil {
		o.logger.Warn(moduleName, "session creation rejected", map[string]interface{}{"error": err.Error()})
		return err
	}

	if o.cfg.User == nil {
		o.logger.Warn(moduleName, "creating session without age and sex, derived risks unavailable", nil)
	}
	sess, err := o.engine.CreateSession(ctx, vitals.SessionOptions{
		Input:          stream,
		CameraDeviceID: deviceID,
		ProcessingTime: int(o.cfg.ProcessingTime / time.Second),
		Callbacks:      o.callbacks(),
		Orientation:    o.cfg.Orientation,
		StrictGuidance: o.cfg.StrictGuidance,
		User:           o.cfg.User,
	})
	if err != nil {
		o.res.abortCreate()
		return fmt.Errorf("create session: %w", err)
	}

	h := &sessionHandle{session: sess}
	if !o.res.adoptSession(h) {
		if _, err := h.terminate(context.Background()); err != nil {
			o.logger.Warn(moduleName, "orphan session terminate failed", map[string]interface{}{"error": err.Error()})
		}
		return ErrClosed
	}
	o.logger.Session("created", map[string]interface{}{"device_id": deviceID, "processing_time": o.cfg.ProcessingTime.Seconds()})
	return nil
}

func (o *Orchestrator) initFailure(err error) (ErrorClass, string) {
	var ve vitals.Error
	if errors.As(err, &ve) && ve.Domain == vitals.DomainLicense {
		return ClassLicensing, vitals.LicenseMessage(ve.Code, o.cfg.Host)
	}
	return ClassInitialization, initFailedMessage
}

func (o *Orchestrator) sessionFailure(err error) (ErrorClass, string) {
	msg := vitals.SessionFailureMessage(err, o.cfg.Host)
	var ve vitals.Error
	if errors.As(err, &ve) && (ve.Domain == vitals.DomainLicense || (ve.Code >= vitals.CodeLicenseInvalid && ve.Code <= vitals.CodeLicenseExpired)) {
		return ClassLicensing, msg
	}
	return ClassSession, msg
}

func (o *Orchestrator) alive() bool {
	return !o.closed.Load()
}

func (o *Orchestrator) callbacks() vitals.Callbacks {
	return vitals.Callbacks{
		OnImageData:    func(v vitals.ImageValidity) { o.post(ImageData{Validity: v}) },
		OnVitalSign:    func(r vitals.Result) { o.post(VitalSign{Result: r}) },
		OnFinalResults: func(r vitals.Result) { o.post(FinalResults{Result: r}) },
		OnError:        func(e vitals.Error) { o.post(EngineError{Err: e}) },
		OnWarning:      func(w vitals.Warning) { o.post(EngineWarning{Warning: w}) },
		OnStateChange:  func(s vitals.SessionState) { o.post(StateChanged{State: s}) },
	}
}

func (o *Orchestrator) licenseCallbacks() vitals.LicenseCallbacks {
	return vitals.LicenseCallbacks{
		OnActivation: func(id string) {
			o.logger.SDK("activation", map[string]interface{}{"activation_id": id})
		},
		OnEnabledVitalSigns: func(signs []string) {
			o.logger.SDK("enabled vital signs", map[string]interface{}{"signs": signs})
		},
		OnOfflineMeasurement: func(remaining int) {
			o.logger.SDK("offline measurement", map[string]interface{}{"remaining": remaining})
		},
	}
}

func (o *Orchestrator) logEvent(now time.Time, ev Event) {
	switch e := ev.(type) {
	case ImageData:
		measuring := o.machine.State() == vitals.StateMeasuring
		changed := !o.everLogged || e.Validity != o.lastLogged
		if changed || now.Sub(o.lastLogAt) >= validityLogEvery || (measuring && e.Validity == vitals.ValidityValid) {
			o.logger.SDK("image data", map[string]interface{}{"validity": e.Validity.String(), "state": o.machine.State().String()})
			o.lastLogged, o.lastLogAt, o.everLogged = e.Validity, now, true
		}
	case VitalSign:
		o.logger.SDK("vital sign", map[string]interface{}{"metrics": len(e.Result), "processing": o.machine.Processing()})
	case FinalResults:
		o.logger.SDK("final results", map[string]interface{}{"metrics": len(e.Result)})
	case EngineError:
		o.logger.SDK("error", map[string]interface{}{
			"domain":  e.Err.Domain,
			"code":    e.Err.Code,
			"message": e.Err.Message,
			"details": e.Err.Details,
		})
	case EngineWarning:
		o.logger.SDK("warning", map[string]interface{}{"code": e.Warning.Code, "message": e.Warning.Message})
	case StateChanged:
		o.logger.SDK("state change", map[string]interface{}{"from": o.machine.State().String(), "to": e.State.String()})
	case StartFailed:
		o.logger.Warn(moduleName, "start failed", map[string]interface{}{"error": e.Err.Error()})
	}
}
