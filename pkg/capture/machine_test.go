package capture

import (
	"math/rand"
	"testing"
	"time"

	"vitals-scan-be/pkg/vitals"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

type harness struct {
	t *testing.T
	m *Machine
}

func newHarness(t *testing.T) *harness {
	return &harness{t: t, m: NewMachine(MachineConfig{
		Timings:        DefaultTimings(),
		ProcessingTime: 45 * time.Second,
		Host:           "scan.example.com",
	})}
}

func (h *harness) at(d time.Duration, ev Event) []Effect {
	return h.m.Handle(t0.Add(d), ev)
}

// ready brings the machine to ACTIVE with a live session.
func (h *harness) ready() []Effect {
	fx := h.at(0, StateChanged{State: vitals.StateActive})
	return append(fx, h.at(0, SessionReady{})...)
}

// measuring drives the machine into MEASURING at d with a valid face.
func (h *harness) measuring(d time.Duration) {
	h.ready()
	fx := h.at(d-10*time.Millisecond, ImageData{Validity: vitals.ValidityValid})
	s, ok := scheduled(fx, TimerAutoStart)
	require.True(h.t, ok)
	require.True(h.t, has[InvokeStart](h.at(d-5*time.Millisecond, TimerFired{Timer: TimerAutoStart, Gen: s.Gen})))
	h.at(d, StateChanged{State: vitals.StateMeasuring})
}

func has[T Effect](fx []Effect) bool {
	return count[T](fx) > 0
}

func count[T Effect](fx []Effect) int {
	n := 0
	for _, f := range fx {
		if _, ok := f.(T); ok {
			n++
		}
	}
	return n
}

// scheduled returns the last timer of kind armed by fx.
func scheduled(fx []Effect, kind TimerKind) (ScheduleTimer, bool) {
	for i := len(fx) - 1; i >= 0; i-- {
		if s, ok := fx[i].(ScheduleTimer); ok && s.Timer == kind {
			return s, true
		}
	}
	return ScheduleTimer{}, false
}

func TestAutoStartDebounce(t *testing.T) {
	tests := []struct {
		name     string
		validity *vitals.ImageValidity
		delay    time.Duration
	}{
		{"no frame yet", nil, 3 * time.Second},
		{"valid frame", ptr(vitals.ValidityValid), 500 * time.Millisecond},
		{"tilted head", ptr(vitals.ValidityTiltedHead), 3 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			fx := h.ready()
			if tt.validity != nil {
				fx = append(fx, h.at(100*time.Millisecond, ImageData{Validity: *tt.validity})...)
			}
			s, ok := scheduled(fx, TimerAutoStart)
			require.True(t, ok)
			assert.Equal(t, tt.delay, s.Delay)

			fired := h.at(100*time.Millisecond+tt.delay, TimerFired{Timer: TimerAutoStart, Gen: s.Gen})
			assert.Equal(t, 1, count[InvokeStart](fired))
		})
	}
}

func ptr[T any](v T) *T { return &v }

func TestNoAutoStartBeforeSessionExists(t *testing.T) {
	h := newHarness(t)
	fx := h.at(0, StateChanged{State: vitals.StateActive})
	fx = append(fx, h.at(10*time.Millisecond, ImageData{Validity: vitals.ValidityValid})...)
	_, ok := scheduled(fx, TimerAutoStart)
	assert.False(t, ok)

	fx = h.at(20*time.Millisecond, SessionReady{})
	s, ok := scheduled(fx, TimerAutoStart)
	assert.True(t, ok)
	assert.Equal(t, 500*time.Millisecond, s.Delay)
}

func TestRapidToggleStartsOnce(t *testing.T) {
	h := newHarness(t)
	var gens []uint64
	collect := func(fx []Effect) {
		if s, ok := scheduled(fx, TimerAutoStart); ok {
			gens = append(gens, s.Gen)
		}
	}
	collect(h.ready())

	d := time.Duration(0)
	for i := 0; i < 40; i++ {
		d += 30 * time.Millisecond
		v := vitals.ValidityValid
		if i%2 == 1 {
			v = vitals.ValidityInvalidROI
		}
		collect(h.at(d, ImageData{Validity: v}))
	}
	require.NotEmpty(t, gens)

	starts := 0
	for _, g := range gens {
		d += time.Millisecond
		starts += count[InvokeStart](h.at(d, TimerFired{Timer: TimerAutoStart, Gen: g}))
	}
	// Every generation fires again: only the latest one may start.
	for _, g := range gens {
		d += time.Millisecond
		starts += count[InvokeStart](h.at(d, TimerFired{Timer: TimerAutoStart, Gen: g}))
	}
	assert.Equal(t, 1, starts)

	for i := 0; i < 10; i++ {
		d += 30 * time.Millisecond
		fx := h.at(d, ImageData{Validity: vitals.ValidityValid})
		_, ok := scheduled(fx, TimerAutoStart)
		assert.False(t, ok, "no restart may be armed while a start is pending")
	}
}

func TestInstructionAndProgressScenario(t *testing.T) {
	h := newHarness(t)
	h.ready()

	var texts []string
	record := func() { texts = append(texts, h.m.Instruction()) }

	h.at(100*time.Millisecond, ImageData{Validity: vitals.ValidityInvalidROI})
	record()
	h.at(200*time.Millisecond, ImageData{Validity: vitals.ValidityInvalidROI})
	record()
	fx := h.at(300*time.Millisecond, ImageData{Validity: vitals.ValidityValid})
	record()

	s, ok := scheduled(fx, TimerAutoStart)
	require.True(t, ok)
	require.True(t, has[InvokeStart](h.at(800*time.Millisecond, TimerFired{Timer: TimerAutoStart, Gen: s.Gen})))
	h.at(800*time.Millisecond, StateChanged{State: vitals.StateMeasuring})
	record()

	for d := time.Second; d < 8800*time.Millisecond; d += 500 * time.Millisecond {
		h.at(d, ImageData{Validity: vitals.ValidityValid})
		assert.Zero(t, h.m.Progress())
		assert.False(t, h.m.Processing())
	}

	fx = h.at(8800*time.Millisecond, VitalSign{Result: vitals.Result{vitals.MetricPulseRate: {Value: 71}}})
	record()
	assert.True(t, h.m.Processing())
	assert.True(t, has[StartTicker](fx))

	h.at(9800*time.Millisecond, ProgressTick{})
	p1 := h.m.Progress()
	h.at(10800*time.Millisecond, ProgressTick{})
	p2 := h.m.Progress()
	assert.InDelta(t, 100.0/45, p1, 0.01)
	assert.Greater(t, p2, p1)

	assert.Equal(t, []string{
		TextPlaceFace,
		TextPlaceFace,
		TextFaceDetected,
		TextWaiting,
		TextProcessing,
	}, texts)
}

func TestProgressExcludesPausedTime(t *testing.T) {
	h := newHarness(t)
	h.measuring(time.Second)

	start := time.Second + 8*time.Second
	for d := start; d <= start+10*time.Second; d += time.Second {
		h.at(d, ImageData{Validity: vitals.ValidityValid})
		h.at(d, VitalSign{})
	}
	assert.InDelta(t, 100*10.0/45, h.m.Progress(), 0.01)

	// Face lost right after the last tick, for less than the abort window.
	h.at(start+10200*time.Millisecond, ImageData{Validity: vitals.ValidityInvalidROI})
	h.at(start+11*time.Second, ImageData{Validity: vitals.ValidityInvalidROI})
	assert.True(t, h.m.Processing(), "within the grace window")

	fx := h.at(start+12500*time.Millisecond, ImageData{Validity: vitals.ValidityInvalidROI})
	assert.False(t, h.m.Processing())
	assert.Zero(t, h.m.Progress())
	assert.True(t, has[StopTicker](fx))
	assert.False(t, has[InvokeStop](fx))

	h.at(start+12900*time.Millisecond, ImageData{Validity: vitals.ValidityValid})
	assert.False(t, h.m.Processing(), "processing resumes on a tick only")

	h.at(start+13*time.Second, VitalSign{})
	require.True(t, h.m.Processing())
	// Paused from invalidSince+grace (12.2s) to the valid frame (12.9s).
	assert.InDelta(t, 100*(13-0.7)/45, h.m.Progress(), 0.01)
}

func TestProgressBounds(t *testing.T) {
	h := newHarness(t)
	h.measuring(time.Second)
	h.at(9*time.Second, VitalSign{})

	prev := 0.0
	for d := 9 * time.Second; d <= 70*time.Second; d += 100 * time.Millisecond {
		h.at(d, ProgressTick{})
		if d%time.Second == 0 {
			h.at(d, ImageData{Validity: vitals.ValidityValid})
			h.at(d, VitalSign{})
		}
		p := h.m.Progress()
		assert.GreaterOrEqual(t, p, prev)
		assert.LessOrEqual(t, p, 100.0)
		prev = p
	}
	assert.Equal(t, 100.0, prev)
}

func TestFinalResultsPinProgressAndHandOff(t *testing.T) {
	h := newHarness(t)
	h.measuring(time.Second)
	h.at(9*time.Second, VitalSign{})
	h.at(20*time.Second, ImageData{Validity: vitals.ValidityValid})

	final := vitals.Result{vitals.MetricPulseRate: {Value: 70}, vitals.MetricStressLevel: {Value: 2}}
	fx := h.at(50*time.Second, FinalResults{Result: final})
	assert.Equal(t, 100.0, h.m.Progress())
	assert.False(t, h.m.Processing())
	assert.Equal(t, TextComplete, h.m.Instruction())
	s, ok := scheduled(fx, TimerResults)
	require.True(t, ok)
	assert.Equal(t, time.Second, s.Delay)

	// The engine returns to ACTIVE: no new measurement may start.
	fx = h.at(50*time.Second, StateChanged{State: vitals.StateStopping})
	fx = append(fx, h.at(50*time.Second, StateChanged{State: vitals.StateActive})...)
	_, ok = scheduled(fx, TimerAutoStart)
	assert.False(t, ok)
	assert.Equal(t, 100.0, h.m.Progress())

	fx = h.at(51*time.Second, TimerFired{Timer: TimerResults, Gen: s.Gen})
	require.Len(t, fx, 3)
	deliver, ok := fx[0].(DeliverResults)
	require.True(t, ok)
	assert.Equal(t, final, deliver.Result)
	assert.True(t, has[ReleaseCamera](fx))
	assert.True(t, has[InvokeTerminate](fx))

	assert.Empty(t, h.at(52*time.Second, TimerFired{Timer: TimerResults, Gen: s.Gen}))
}

func TestTickOutsideMeasuringIsIgnored(t *testing.T) {
	h := newHarness(t)
	h.ready()
	h.at(time.Second, VitalSign{Result: vitals.Result{vitals.MetricPulseRate: {Value: 60}}})
	assert.False(t, h.m.Processing())
	assert.Zero(t, h.m.Progress())
	assert.Contains(t, h.m.Snapshot().Vitals, vitals.MetricPulseRate)
}

func TestFaceLossStopsMeasurement(t *testing.T) {
	h := newHarness(t)
	h.measuring(time.Second)
	h.at(9*time.Second, VitalSign{})
	h.at(10*time.Second, ImageData{Validity: vitals.ValidityValid})

	h.at(10100*time.Millisecond, ImageData{Validity: vitals.ValidityInvalidROI})
	fx := h.at(12900*time.Millisecond, ImageData{Validity: vitals.ValidityInvalidROI})
	assert.False(t, has[InvokeStop](fx))

	fx = h.at(13100*time.Millisecond, ImageData{Validity: vitals.ValidityInvalidROI})
	assert.Equal(t, 1, count[InvokeStop](fx))
	assert.Zero(t, h.m.Progress())
	assert.False(t, h.m.Processing())
	assert.Equal(t, TextFaceLost, h.m.Instruction())

	fx = h.at(13500*time.Millisecond, ImageData{Validity: vitals.ValidityInvalidROI})
	assert.False(t, has[InvokeStop](fx), "stop is requested once")

	h.at(13600*time.Millisecond, StateChanged{State: vitals.StateStopping})
	fx = h.at(13700*time.Millisecond, StateChanged{State: vitals.StateActive})
	s, ok := scheduled(fx, TimerAutoStart)
	require.True(t, ok)
	assert.Equal(t, 3*time.Second, s.Delay)

	h.at(14*time.Second, ImageData{Validity: vitals.ValidityValid})
	assert.Equal(t, TextFaceDetected, h.m.Instruction())
}

func TestFaceLossCountsFromMeasuringEntry(t *testing.T) {
	h := newHarness(t)
	h.ready()
	h.at(100*time.Millisecond, ImageData{Validity: vitals.ValidityValid})
	fx := h.at(200*time.Millisecond, ImageData{Validity: vitals.ValidityInvalidROI})
	s, ok := scheduled(fx, TimerAutoStart)
	require.True(t, ok)
	assert.Equal(t, 3*time.Second, s.Delay)
	require.True(t, has[InvokeStart](h.at(3200*time.Millisecond, TimerFired{Timer: TimerAutoStart, Gen: s.Gen})))
	h.at(3300*time.Millisecond, StateChanged{State: vitals.StateMeasuring})

	stops := 0
	var stoppedAt time.Duration
	for d := 3400 * time.Millisecond; d <= 20*time.Second; d += 100 * time.Millisecond {
		n := count[InvokeStop](h.at(d, ImageData{Validity: vitals.ValidityInvalidROI}))
		if n > 0 && stops == 0 {
			stoppedAt = d
		}
		stops += n
	}
	assert.Equal(t, 1, stops)
	assert.Equal(t, 6400*time.Millisecond, stoppedAt)
	assert.Equal(t, TextFaceLost, h.m.Instruction())
}

func TestValidFaceWithoutTickIsNotAFault(t *testing.T) {
	h := newHarness(t)
	h.measuring(time.Second)
	for d := time.Second; d <= 8*time.Second; d += 100 * time.Millisecond {
		fx := h.at(d, ImageData{Validity: vitals.ValidityValid})
		assert.False(t, has[InvokeStop](fx))
	}
	assert.Equal(t, vitals.StateMeasuring, h.m.State())
	assert.Equal(t, TextWaiting, h.m.Instruction())
	assert.True(t, h.m.Snapshot().ShowWaiting)
}

func TestMeasurementErrorDefersRestart(t *testing.T) {
	h := newHarness(t)
	h.measuring(time.Second)
	h.at(9*time.Second, VitalSign{})

	h.at(20*time.Second, ImageData{Validity: vitals.ValidityValid})
	h.at(20*time.Second, VitalSign{})
	require.True(t, h.m.Processing())

	fx := h.at(20*time.Second, EngineError{Err: vitals.Error{Domain: vitals.DomainMeasurement, Code: vitals.CodeInvalidFrames}})
	assert.False(t, has[ReleaseCamera](fx))
	assert.True(t, has[StopTicker](fx))
	assert.False(t, h.m.Processing())
	assert.Zero(t, h.m.Progress())
	assert.NotEqual(t, TextProcessing, h.m.Instruction())

	h.at(20100*time.Millisecond, ProgressTick{})
	h.at(20200*time.Millisecond, VitalSign{})
	assert.False(t, h.m.Processing(), "ticks after the error do not resume processing")
	assert.Zero(t, h.m.Progress())
	snap := h.m.Snapshot()
	require.NotNil(t, snap.Error)
	assert.True(t, snap.Error.Recoverable)
	assert.Equal(t, ClassMeasurement, snap.Error.Class)

	fx = h.at(20300*time.Millisecond, StateChanged{State: vitals.StateActive})
	_, ok := scheduled(fx, TimerAutoStart)
	assert.False(t, ok, "no automatic restart right after a measurement error")
	assert.False(t, h.m.Processing())

	fx = h.at(20400*time.Millisecond, ImageData{Validity: vitals.ValidityInvalidROI})
	_, ok = scheduled(fx, TimerAutoStart)
	assert.False(t, ok)

	fx = h.at(20500*time.Millisecond, ImageData{Validity: vitals.ValidityValid})
	s, ok := scheduled(fx, TimerAutoStart)
	require.True(t, ok)
	assert.Equal(t, time.Second, s.Delay)
	assert.Equal(t, TextRestarting, h.m.Instruction())

	fx = h.at(20600*time.Millisecond, ImageData{Validity: vitals.ValidityTiltedHead})
	assert.True(t, has[CancelTimer](fx))
	assert.Empty(t, h.at(21500*time.Millisecond, TimerFired{Timer: TimerAutoStart, Gen: s.Gen}))

	fx = h.at(21700*time.Millisecond, ImageData{Validity: vitals.ValidityValid})
	s, ok = scheduled(fx, TimerAutoStart)
	require.True(t, ok)
	assert.Equal(t, 1, count[InvokeStart](h.at(22700*time.Millisecond, TimerFired{Timer: TimerAutoStart, Gen: s.Gen})))

	h.at(22800*time.Millisecond, StateChanged{State: vitals.StateMeasuring})
	assert.Nil(t, h.m.Snapshot().Error, "a successful start clears the transient error")
}

func TestMeasurementErrorWhileActiveClearsPendingStart(t *testing.T) {
	h := newHarness(t)
	h.ready()
	fx := h.at(100*time.Millisecond, ImageData{Validity: vitals.ValidityValid})
	s, _ := scheduled(fx, TimerAutoStart)
	require.True(t, has[InvokeStart](h.at(600*time.Millisecond, TimerFired{Timer: TimerAutoStart, Gen: s.Gen})))

	h.at(700*time.Millisecond, EngineError{Err: vitals.Error{Domain: vitals.DomainMeasurement, Code: vitals.CodeActivationFailed}})
	fx = h.at(800*time.Millisecond, ImageData{Validity: vitals.ValidityValid})
	s, ok := scheduled(fx, TimerAutoStart)
	require.True(t, ok)
	assert.Equal(t, time.Second, s.Delay)
}

func TestFatalErrors(t *testing.T) {
	tests := []struct {
		name      string
		err       vitals.Error
		class     ErrorClass
		terminate bool
	}{
		{"expired license", vitals.Error{Domain: vitals.DomainLicense, Code: vitals.CodeLicenseExpired}, ClassLicensing, false},
		{"domain not authorized", vitals.Error{Domain: vitals.DomainLicense, Code: vitals.CodeDomainNotAuthorized}, ClassLicensing, false},
		{"out of memory", vitals.Error{Domain: vitals.DomainMeasurement, Code: 3001, Message: "RuntimeError: Out of memory"}, ClassResourceExhausted, true},
		{"aborted", vitals.Error{Domain: 9, Code: 1, Message: "Aborted(OOM)"}, ClassResourceExhausted, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.measuring(time.Second)
			h.at(9*time.Second, VitalSign{})

			fx := h.at(10*time.Second, EngineError{Err: tt.err})
			assert.True(t, has[ReleaseCamera](fx))
			assert.Equal(t, tt.terminate, has[InvokeTerminate](fx))
			assert.True(t, has[StopTicker](fx))

			snap := h.m.Snapshot()
			require.NotNil(t, snap.Error)
			assert.Equal(t, tt.class, snap.Error.Class)
			assert.False(t, snap.Error.Recoverable)
			assert.False(t, snap.Loading)
			assert.Equal(t, TextRetry, snap.Instruction)
			assert.Zero(t, snap.Progress)

			fx = h.at(11*time.Second, StateChanged{State: vitals.StateActive})
			fx = append(fx, h.at(12*time.Second, ImageData{Validity: vitals.ValidityValid})...)
			_, ok := scheduled(fx, TimerAutoStart)
			assert.False(t, ok)
		})
	}
}

func TestUnclassifiedErrorIsRecoverable(t *testing.T) {
	h := newHarness(t)
	h.ready()
	fx := h.at(time.Second, EngineError{Err: vitals.Error{Domain: 4000, Code: 4001, Message: "camera frame dropped"}})
	assert.Empty(t, filterNot[ScheduleTimer](filterNot[CancelTimer](fx)))
	snap := h.m.Snapshot()
	require.NotNil(t, snap.Error)
	assert.True(t, snap.Error.Recoverable)
	assert.Equal(t, ClassUnclassified, snap.Error.Class)
}

func filterNot[T Effect](fx []Effect) []Effect {
	var out []Effect
	for _, f := range fx {
		if _, ok := f.(T); !ok {
			out = append(out, f)
		}
	}
	return out
}

func TestSetupFailed(t *testing.T) {
	h := newHarness(t)
	assert.True(t, h.m.Snapshot().Loading)
	fx := h.at(0, SetupFailed{Class: ClassConfiguration, Message: "No license key is configured."})
	assert.True(t, has[ReleaseCamera](fx))

	snap := h.m.Snapshot()
	assert.False(t, snap.Loading)
	require.NotNil(t, snap.Error)
	assert.Equal(t, ClassConfiguration, snap.Error.Class)
	assert.False(t, snap.Error.Recoverable)
}

func TestStartFailedWaitsForValidFace(t *testing.T) {
	h := newHarness(t)
	h.ready()
	fx := h.at(100*time.Millisecond, ImageData{Validity: vitals.ValidityValid})
	s, _ := scheduled(fx, TimerAutoStart)
	require.True(t, has[InvokeStart](h.at(600*time.Millisecond, TimerFired{Timer: TimerAutoStart, Gen: s.Gen})))

	fx = h.at(700*time.Millisecond, StartFailed{})
	_, ok := scheduled(fx, TimerAutoStart)
	assert.False(t, ok)
	require.NotNil(t, h.m.Snapshot().Error)

	fx = h.at(800*time.Millisecond, ImageData{Validity: vitals.ValidityValid})
	s, ok = scheduled(fx, TimerAutoStart)
	require.True(t, ok)
	assert.Equal(t, time.Second, s.Delay)
}

func TestCancelConfirmation(t *testing.T) {
	h := newHarness(t)
	h.measuring(time.Second)

	assert.Empty(t, h.at(2*time.Second, CancelRequested{}))
	assert.True(t, h.m.Snapshot().CancelPrompt)

	assert.Empty(t, h.at(3*time.Second, CancelDismissed{}))
	assert.False(t, h.m.Snapshot().CancelPrompt)
	assert.Equal(t, vitals.StateMeasuring, h.m.State())

	h.at(4*time.Second, CancelRequested{})
	fx := h.at(5*time.Second, ExitConfirmed{})
	assert.Equal(t, []Effect{ReleaseCamera{}, InvokeTerminate{}, NavigateBack{}}, fx)
	assert.False(t, h.m.Snapshot().CancelPrompt)

	assert.Empty(t, h.at(6*time.Second, ExitConfirmed{}))
	fx = h.at(7*time.Second, StateChanged{State: vitals.StateActive})
	_, ok := scheduled(fx, TimerAutoStart)
	assert.False(t, ok)
}

func TestOvalAndIndicators(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, OvalWarning, h.m.Snapshot().Oval)

	h.ready()
	h.at(100*time.Millisecond, ImageData{Validity: vitals.ValidityUnevenLight})
	snap := h.m.Snapshot()
	assert.Equal(t, OvalDefault, snap.Oval)
	assert.True(t, snap.FaceDetected)
	assert.Equal(t, TextUnevenLight, snap.Instruction)

	h.at(200*time.Millisecond, ImageData{Validity: vitals.ValidityInvalidDeviceOrientation})
	snap = h.m.Snapshot()
	assert.Equal(t, OvalWarning, snap.Oval)
	assert.Equal(t, TextOrientation, snap.Instruction)

	h.at(300*time.Millisecond, ImageData{Validity: vitals.ValidityTiltedHead})
	assert.Equal(t, TextTiltedHead, h.m.Instruction())

	h.at(400*time.Millisecond, ImageData{Validity: vitals.ValidityValid})
	snap = h.m.Snapshot()
	assert.Equal(t, OvalSuccess, snap.Oval)
	assert.False(t, snap.ShowProgress)
	assert.False(t, snap.ShowWaiting)
}

// TestProcessingInvariant feeds pseudo-random callback sequences and checks
// the properties that must hold after every event.
func TestProcessingInvariant(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		rng := rand.New(rand.NewSource(seed))
		h := newHarness(t)
		h.ready()

		var d time.Duration
		starts := 0
		for i := 0; i < 600; i++ {
			d += time.Duration(50+rng.Intn(200)) * time.Millisecond

			var ev Event
			switch r := rng.Intn(100); {
			case r < 55:
				v := vitals.ValidityValid
				if rng.Intn(3) == 0 {
					v = vitals.ImageValidity(1 + rng.Intn(4))
				}
				ev = ImageData{Validity: v}
			case r < 75:
				ev = VitalSign{}
			case r < 85:
				ev = ProgressTick{}
			case r < 92:
				ev = TimerFired{Timer: TimerAutoStart, Gen: h.m.autoGen}
			case r < 96:
				ev = StateChanged{State: vitals.StateMeasuring}
			default:
				ev = StateChanged{State: vitals.StateActive}
			}

			fx := h.at(d, ev)
			if _, ok := ev.(StateChanged); ok {
				starts = 0
			}
			starts += count[InvokeStart](fx)
			require.LessOrEqual(t, starts, 1, "seed %d step %d", seed, i)

			p := h.m.Progress()
			require.GreaterOrEqual(t, p, 0.0)
			require.LessOrEqual(t, p, 100.0)
			if !h.m.Processing() {
				require.Zero(t, p, "seed %d step %d", seed, i)
			}
			if h.m.Processing() {
				require.Equal(t, vitals.StateMeasuring, h.m.State())
			}
		}
	}
}
