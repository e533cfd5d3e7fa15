package bridge

import (
	"context"
	"sync"

	"vitals-scan-be/pkg/camera"
	"vitals-scan-be/pkg/vitals"
)

func (r *Remote) Initialize(ctx context.Context, opts vitals.InitOptions) error {
	r.mu.Lock()
	r.license = opts.License
	r.mu.Unlock()
	return r.call(ctx, CmdInitialize, initializePayload{LicenseKey: opts.LicenseKey, ProductID: opts.ProductID}, nil)
}

// CreateSession binds opts.Callbacks before the command is sent, so
// callbacks the client emits ahead of its reply are not lost.
func (r *Remote) CreateSession(ctx context.Context, opts vitals.SessionOptions) (vitals.Session, error) {
	st, ok := opts.Input.(*stream)
	if !ok || st.remote != r {
		return nil, ErrForeignStream
	}

	r.mu.Lock()
	r.callbacks = opts.Callbacks
	r.mu.Unlock()

	var ref sessionRef
	err := r.call(ctx, CmdCreateSession, createSessionPayload{
		StreamID:        st.id,
		CameraDeviceID:  opts.CameraDeviceID,
		ProcessingTime:  opts.ProcessingTime,
		Orientation:     opts.Orientation,
		StrictGuidance:  opts.StrictGuidance,
		UserInformation: opts.User,
	}, &ref)
	if err != nil {
		r.mu.Lock()
		r.callbacks = vitals.Callbacks{}
		r.mu.Unlock()
		return nil, err
	}
	return &session{remote: r, id: ref.SessionID}, nil
}

func (r *Remote) Open(ctx context.Context, c camera.Constraints) (camera.Stream, error) {
	var info streamInfo
	if err := r.call(ctx, CmdOpenCamera, c, &info); err != nil {
		return nil, err
	}
	st := &stream{remote: r, id: info.StreamID}
	for _, t := range info.Tracks {
		st.tracks = append(st.tracks, &track{stream: st, id: t.ID, kind: t.Kind})
	}
	return st, nil
}

func (r *Remote) Devices(ctx context.Context) ([]camera.Device, error) {
	var devs []camera.Device
	if err := r.call(ctx, CmdEnumerateDevices, nil, &devs); err != nil {
		return nil, err
	}
	return devs, nil
}

type session struct {
	remote *Remote
	id     string
}

func (s *session) Start(ctx context.Context) error {
	return s.remote.call(ctx, CmdStart, sessionRef{SessionID: s.id}, nil)
}

func (s *session) Stop(ctx context.Context) error {
	return s.remote.call(ctx, CmdStop, sessionRef{SessionID: s.id}, nil)
}

func (s *session) Terminate(ctx context.Context) error {
	return s.remote.call(ctx, CmdTerminate, sessionRef{SessionID: s.id}, nil)
}

type stream struct {
	remote   *Remote
	id       string
	tracks   []camera.Track
	stopOnce sync.Once
}

func (s *stream) ID() string             { return s.id }
func (s *stream) Tracks() []camera.Track { return s.tracks }

// stop asks the client to stop every track of the stream once.
func (s *stream) stop() {
	s.stopOnce.Do(func() {
		s.remote.notify(CmdStopTracks, streamRef{StreamID: s.id})
	})
}

type track struct {
	stream *stream
	id     string
	kind   string
}

func (t *track) ID() string   { return t.id }
func (t *track) Kind() string { return t.kind }
func (t *track) Stop()        { t.stream.stop() }
