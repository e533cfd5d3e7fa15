package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"vitals-scan-be/internal/pkg/logger"
	"vitals-scan-be/pkg/camera"
	"vitals-scan-be/pkg/vitals"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// peer plays the client side: it records every command the remote sends.
type peer struct {
	t      *testing.T
	remote *Remote
	frames chan Frame
}

func newPeer(t *testing.T) *peer {
	p := &peer{t: t, frames: make(chan Frame, 16)}
	p.remote = New(func(data []byte) error {
		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			return err
		}
		p.frames <- f
		return nil
	}, logger.NewNopLogger())
	t.Cleanup(p.remote.Close)
	return p
}

func (p *peer) next() Frame {
	p.t.Helper()
	select {
	case f := <-p.frames:
		return f
	case <-time.After(2 * time.Second):
		p.t.Fatal("no command sent")
		return Frame{}
	}
}

func (p *peer) reply(id string, payload interface{}, rerr *RemoteError) {
	p.t.Helper()
	f := Frame{Type: FrameReply, ID: id, Error: rerr}
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(p.t, err)
		f.Payload = raw
	}
	p.handle(f)
}

func (p *peer) callback(name string, payload interface{}) {
	p.t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(p.t, err)
	p.handle(Frame{Type: FrameCallback, Name: name, Payload: raw})
}

func (p *peer) handle(f Frame) {
	p.t.Helper()
	data, err := json.Marshal(f)
	require.NoError(p.t, err)
	require.NoError(p.t, p.remote.Handle(data))
}

// async runs fn and returns a channel with its error.
func async(fn func() error) <-chan error {
	ch := make(chan error, 1)
	go func() { ch <- fn() }()
	return ch
}

func wait(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("call did not return")
		return nil
	}
}

func TestInitializeRoutesLicenseCallbacks(t *testing.T) {
	p := newPeer(t)
	var activation string
	var remaining int

	done := async(func() error {
		return p.remote.Initialize(context.Background(), vitals.InitOptions{
			LicenseKey: "lic-0001",
			License: vitals.LicenseCallbacks{
				OnActivation:         func(id string) { activation = id },
				OnOfflineMeasurement: func(n int) { remaining = n },
			},
		})
	})

	cmd := p.next()
	assert.Equal(t, FrameCommand, cmd.Type)
	assert.Equal(t, CmdInitialize, cmd.Name)
	assert.JSONEq(t, `{"license_key":"lic-0001"}`, string(cmd.Payload))

	p.callback(CbActivation, activationPayload{ActivationID: "act-9"})
	p.callback(CbOfflineMeasurement, offlineMeasurementPayload{Remaining: 3})
	p.reply(cmd.ID, nil, nil)

	require.NoError(t, wait(t, done))
	assert.Equal(t, "act-9", activation)
	assert.Equal(t, 3, remaining)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		remote RemoteError
		check  func(t *testing.T, err error)
	}{
		{"permission", RemoteError{Name: "NotAllowedError", Message: "denied"}, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, camera.ErrPermissionDenied)
		}},
		{"no camera", RemoteError{Name: "NotFoundError"}, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, camera.ErrNoCamera)
		}},
		{"unsupported", RemoteError{Name: "TypeError"}, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, camera.ErrUnsupported)
		}},
		{"engine", RemoteError{Domain: 1, Code: vitals.CodeLicenseExpired, Message: "expired"}, func(t *testing.T, err error) {
			var verr vitals.Error
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, vitals.CodeLicenseExpired, verr.Code)
		}},
		{"other", RemoteError{Name: "AbortError", Message: "busy"}, func(t *testing.T, err error) {
			var cerr *CommandError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, CmdOpenCamera, cerr.Command)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPeer(t)
			ch := make(chan error, 1)
			go func() {
				_, err := p.remote.Open(context.Background(), camera.DefaultConstraints())
				ch <- err
			}()
			cmd := p.next()
			rerr := tt.remote
			p.reply(cmd.ID, nil, &rerr)
			tt.check(t, wait(t, ch))
		})
	}
}

func TestSessionLifecycle(t *testing.T) {
	p := newPeer(t)
	ctx := context.Background()

	var st camera.Stream
	opened := async(func() (err error) {
		st, err = p.remote.Open(ctx, camera.DefaultConstraints())
		return err
	})
	cmd := p.next()
	assert.Equal(t, CmdOpenCamera, cmd.Name)
	assert.JSONEq(t, `{"facing_mode":"environment","audio":false}`, string(cmd.Payload))
	p.reply(cmd.ID, streamInfo{StreamID: "s1", Tracks: []trackInfo{{ID: "t1", Kind: "video"}, {ID: "t2", Kind: "video"}}}, nil)
	require.NoError(t, wait(t, opened))
	require.Len(t, st.Tracks(), 2)

	var (
		mu       sync.Mutex
		validity []vitals.ImageValidity
		final    vitals.Result
		states   []vitals.SessionState
	)
	var sess vitals.Session
	created := async(func() (err error) {
		sess, err = p.remote.CreateSession(ctx, vitals.SessionOptions{
			Input:          st,
			ProcessingTime: 30,
			Orientation:    vitals.OrientationLandscapeLeft,
			Callbacks: vitals.Callbacks{
				OnImageData: func(v vitals.ImageValidity) {
					mu.Lock()
					validity = append(validity, v)
					mu.Unlock()
				},
				OnFinalResults: func(r vitals.Result) { final = r },
				OnStateChange:  func(s vitals.SessionState) { states = append(states, s) },
			},
		})
		return err
	})
	cmd = p.next()
	assert.Equal(t, CmdCreateSession, cmd.Name)
	var payload createSessionPayload
	require.NoError(t, json.Unmarshal(cmd.Payload, &payload))
	assert.Equal(t, "s1", payload.StreamID)
	assert.Equal(t, 30, payload.ProcessingTime)
	assert.Equal(t, vitals.OrientationLandscapeLeft, payload.Orientation)
	assert.Contains(t, string(cmd.Payload), `"orientation":"LANDSCAPE_LEFT"`)

	// callbacks may precede the reply
	p.callback(CbImageData, map[string]string{"validity": "TILTED_HEAD"})
	p.reply(cmd.ID, sessionRef{SessionID: "sess-1"}, nil)
	require.NoError(t, wait(t, created))

	started := async(func() error { return sess.Start(ctx) })
	cmd = p.next()
	assert.Equal(t, CmdStart, cmd.Name)
	assert.JSONEq(t, `{"session_id":"sess-1"}`, string(cmd.Payload))
	p.reply(cmd.ID, nil, nil)
	require.NoError(t, wait(t, started))

	p.callback(CbStateChange, map[string]string{"state": "MEASURING"})
	p.callback(CbFinalResults, resultPayload{Result: vitals.Result{vitals.MetricPulseRate: {Value: 72.0}}})

	mu.Lock()
	assert.Equal(t, []vitals.ImageValidity{vitals.ValidityTiltedHead}, validity)
	mu.Unlock()
	assert.Equal(t, []vitals.SessionState{vitals.StateMeasuring}, states)
	assert.Equal(t, 72.0, final[vitals.MetricPulseRate].Value)

	// every track shares one stop_tracks notification
	for _, tr := range st.Tracks() {
		tr.Stop()
	}
	cmd = p.next()
	assert.Equal(t, CmdStopTracks, cmd.Name)
	assert.JSONEq(t, `{"stream_id":"s1"}`, string(cmd.Payload))
	select {
	case extra := <-p.frames:
		t.Fatalf("unexpected frame %s", extra.Name)
	default:
	}
}

func TestCreateSessionRejectsForeignStream(t *testing.T) {
	p := newPeer(t)
	_, err := p.remote.CreateSession(context.Background(), vitals.SessionOptions{})
	assert.ErrorIs(t, err, ErrForeignStream)
}

func TestCloseFailsPendingCommands(t *testing.T) {
	p := newPeer(t)
	ch := async(func() error {
		_, err := p.remote.Devices(context.Background())
		return err
	})
	p.next()
	p.remote.Close()
	assert.ErrorIs(t, wait(t, ch), ErrDisconnected)

	_, err := p.remote.Devices(context.Background())
	assert.ErrorIs(t, err, ErrDisconnected)
}

func TestCallContextCancellation(t *testing.T) {
	p := newPeer(t)
	ctx, cancel := context.WithCancel(context.Background())
	ch := async(func() error { return p.remote.Initialize(ctx, vitals.InitOptions{LicenseKey: "k-1"}) })
	p.next()
	cancel()
	assert.ErrorIs(t, wait(t, ch), context.Canceled)
}

func TestHandleRejectsBadFrames(t *testing.T) {
	p := newPeer(t)
	assert.Error(t, p.remote.Handle([]byte("{")))
	assert.Error(t, p.remote.Handle([]byte(`{"type":"bogus"}`)))
	assert.Error(t, p.remote.Handle([]byte(`{"type":"callback","name":"bogus"}`)))
	assert.NoError(t, p.remote.Handle([]byte(`{"type":"reply","id":"unknown"}`)))
}

func TestSendFailure(t *testing.T) {
	r := New(func([]byte) error { return errors.New("socket closed") }, logger.NewNopLogger())
	defer r.Close()
	err := r.Initialize(context.Background(), vitals.InitOptions{LicenseKey: "k-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "socket closed")
}
