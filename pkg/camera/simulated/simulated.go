// Package simulated provides an in-process camera for development and tests.
package simulated

import (
	"context"
	"sync"
	"sync/atomic"

	"vitals-scan-be/pkg/camera"

	"github.com/google/uuid"
)

// Source hands out fake streams. OpenErr, when set, is returned by Open.
type Source struct {
	OpenErr    error
	DevicesErr error
	NoDevices  bool

	mu      sync.Mutex
	opened  []*Stream
	opens   atomic.Int32
	request camera.Constraints
}

func NewSource() *Source {
	return &Source{}
}

func (s *Source) Open(ctx context.Context, c camera.Constraints) (camera.Stream, error) {
	s.opens.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.OpenErr != nil {
		return nil, s.OpenErr
	}
	st := NewStream()
	s.mu.Lock()
	s.request = c
	s.opened = append(s.opened, st)
	s.mu.Unlock()
	return st, nil
}

func (s *Source) Devices(ctx context.Context) ([]camera.Device, error) {
	if s.DevicesErr != nil {
		return nil, s.DevicesErr
	}
	if s.NoDevices {
		return nil, nil
	}
	return []camera.Device{
		{ID: "mic-0", Label: "Microphone", Kind: camera.KindAudioInput},
		{ID: "cam-back", Label: "Back Camera", Kind: camera.KindVideoInput},
		{ID: "cam-front", Label: "Front Camera", Kind: camera.KindVideoInput},
	}, nil
}

// Opens counts calls to Open, including failed ones.
func (s *Source) Opens() int {
	return int(s.opens.Load())
}

func (s *Source) LastConstraints() camera.Constraints {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.request
}

func (s *Source) Streams() []*Stream {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Stream, len(s.opened))
	copy(out, s.opened)
	return out
}

type Stream struct {
	id     string
	tracks []camera.Track
}

func NewStream() *Stream {
	return &Stream{
		id:     uuid.NewString(),
		tracks: []camera.Track{&Track{id: uuid.NewString(), kind: "video"}},
	}
}

func (s *Stream) ID() string { return s.id }
func (s *Stream) Tracks() []camera.Track { return s.tracks }

// Stops sums the Stop calls received by every track.
func (s *Stream) Stops() int {
	n := 0
	for _, t := range s.tracks {
		n += int(t.(*Track).stops.Load())
	}
	return n
}

type Track struct {
	id    string
	kind  string
	stops atomic.Int32
}

func (t *Track) ID() string { return t.id }
func (t *Track) Kind() string { return t.kind }
func (t *Track) Stop() { t.stops.Add(1) }
