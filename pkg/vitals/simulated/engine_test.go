package simulated

import (
	"context"
	"sync"
	"testing"
	"time"

	"vitals-scan-be/pkg/vitals"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	states []vitals.SessionState
	ticks  int
	final  vitals.Result
	errs   []vitals.Error
	frames int
}

func (r *recorder) callbacks() vitals.Callbacks {
	return vitals.Callbacks{
		OnImageData: func(vitals.ImageValidity) {
			r.mu.Lock()
			r.frames++
			r.mu.Unlock()
		},
		OnVitalSign: func(vitals.Result) {
			r.mu.Lock()
			r.ticks++
			r.mu.Unlock()
		},
		OnFinalResults: func(res vitals.Result) {
			r.mu.Lock()
			r.final = res
			r.mu.Unlock()
		},
		OnError: func(e vitals.Error) {
			r.mu.Lock()
			r.errs = append(r.errs, e)
			r.mu.Unlock()
		},
		OnStateChange: func(s vitals.SessionState) {
			r.mu.Lock()
			r.states = append(r.states, s)
			r.mu.Unlock()
		},
	}
}

func (r *recorder) snapshot() (states []vitals.SessionState, ticks int, final vitals.Result, errs []vitals.Error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]vitals.SessionState(nil), r.states...), r.ticks, r.final, append([]vitals.Error(nil), r.errs...)
}

func fastScript() Script {
	return Script{
		FrameInterval:  time.Millisecond,
		StartupLatency: 5 * time.Millisecond,
		TickInterval:   2 * time.Millisecond,
		Face:           Steady,
	}
}

func TestCreateSessionRequiresInitialize(t *testing.T) {
	e := New(clock.New(), fastScript())
	_, err := e.CreateSession(context.Background(), vitals.SessionOptions{ProcessingTime: 1})
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestInitializeRejectsMalformedKey(t *testing.T) {
	e := New(clock.New(), fastScript())
	err := e.Initialize(context.Background(), vitals.InitOptions{LicenseKey: "nodash"})
	var ve vitals.Error
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, vitals.DomainLicense, ve.Domain)
}

func TestFullMeasurement(t *testing.T) {
	e := New(clock.New(), fastScript())
	var activated string
	require.NoError(t, e.Initialize(context.Background(), vitals.InitOptions{
		LicenseKey: "AAAA-BBBB",
		License:    vitals.LicenseCallbacks{OnActivation: func(id string) { activated = id }},
	}))
	assert.NotEmpty(t, activated)

	rec := &recorder{}
	sess, err := e.CreateSession(context.Background(), vitals.SessionOptions{
		ProcessingTime: 1,
		Callbacks:      rec.callbacks(),
		User:           &vitals.UserInformation{Age: 40, Sex: vitals.SexFemale},
	})
	require.NoError(t, err)
	defer sess.Terminate(context.Background())

	assert.Eventually(t, func() bool {
		states, _, _, _ := rec.snapshot()
		return len(states) > 0 && states[0] == vitals.StateActive
	}, time.Second, time.Millisecond)

	require.NoError(t, sess.Start(context.Background()))
	assert.Error(t, sess.Start(context.Background()), "second start must be refused while measuring")

	assert.Eventually(t, func() bool {
		_, _, final, _ := rec.snapshot()
		return final != nil
	}, 10*time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool {
		states, _, _, _ := rec.snapshot()
		return len(states) >= 4
	}, time.Second, time.Millisecond)

	states, ticks, final, _ := rec.snapshot()
	assert.Greater(t, ticks, 0)
	assert.Contains(t, final, vitals.MetricBloodPressure)
	assert.Equal(t, []vitals.SessionState{vitals.StateActive, vitals.StateMeasuring, vitals.StateStopping, vitals.StateActive}, states)
}

func TestMeasurementErrorReturnsToActive(t *testing.T) {
	s := fastScript()
	s.Errors = []ScheduledError{{At: 0, Err: vitals.Error{Domain: vitals.DomainMeasurement, Code: vitals.CodeInvalidFrames}}}
	e := New(clock.New(), s)
	require.NoError(t, e.Initialize(context.Background(), vitals.InitOptions{LicenseKey: "AAAA-BBBB"}))

	rec := &recorder{}
	sess, err := e.CreateSession(context.Background(), vitals.SessionOptions{ProcessingTime: 30, Callbacks: rec.callbacks()})
	require.NoError(t, err)
	defer sess.Terminate(context.Background())

	assert.Eventually(t, func() bool { return sess.(*Session).State() == vitals.StateActive }, time.Second, time.Millisecond)
	require.NoError(t, sess.Start(context.Background()))

	assert.Eventually(t, func() bool {
		_, _, _, errs := rec.snapshot()
		return len(errs) == 1
	}, time.Second, time.Millisecond)
	assert.Eventually(t, func() bool { return sess.(*Session).State() == vitals.StateActive }, time.Second, time.Millisecond)
}

func TestTerminateIsIdempotent(t *testing.T) {
	e := New(clock.New(), fastScript())
	require.NoError(t, e.Initialize(context.Background(), vitals.InitOptions{LicenseKey: "AAAA-BBBB"}))
	rec := &recorder{}
	sess, err := e.CreateSession(context.Background(), vitals.SessionOptions{ProcessingTime: 30, Callbacks: rec.callbacks()})
	require.NoError(t, err)

	require.NoError(t, sess.Terminate(context.Background()))
	require.NoError(t, sess.Terminate(context.Background()))

	s := sess.(*Session)
	assert.Equal(t, 2, s.Terminates())
	assert.Equal(t, vitals.StateTerminated, s.State())
	states, _, _, _ := rec.snapshot()
	n := 0
	for _, st := range states {
		if st == vitals.StateTerminated {
			n++
		}
	}
	assert.Equal(t, 1, n)
}

func TestFaceHelpers(t *testing.T) {
	after := FaceAfter(2 * time.Second)
	assert.Equal(t, vitals.ValidityInvalidROI, after(time.Second))
	assert.Equal(t, vitals.ValidityValid, after(3*time.Second))

	lost := FaceLost(time.Second, 2*time.Second)
	assert.Equal(t, vitals.ValidityValid, lost(0))
	assert.Equal(t, vitals.ValidityInvalidROI, lost(1500*time.Millisecond))
	assert.Equal(t, vitals.ValidityValid, lost(2*time.Second))
}
