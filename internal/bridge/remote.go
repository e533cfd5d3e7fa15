package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"vitals-scan-be/internal/pkg/logger"
	"vitals-scan-be/pkg/camera"
	"vitals-scan-be/pkg/vitals"

	"github.com/google/uuid"
)

const moduleName = "Bridge"

var (
	ErrDisconnected  = errors.New("bridge: client disconnected")
	ErrForeignStream = errors.New("bridge: stream was not opened through this bridge")
)

// CommandError is a client failure that maps to no known category.
type CommandError struct {
	Command string
	Name    string
	Message string
}

func (e *CommandError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("bridge: %s failed: %s", e.Command, e.Message)
	}
	return fmt.Sprintf("bridge: %s failed: %s: %s", e.Command, e.Name, e.Message)
}

// SendFunc writes one frame to the client.
type SendFunc func(data []byte) error

// Remote is a vitals.Engine and camera.Source backed by one client
// connection.
type Remote struct {
	send   SendFunc
	logger logger.ILogger

	mu        sync.Mutex
	pending   map[string]chan Frame
	closed    bool
	done      chan struct{}
	license   vitals.LicenseCallbacks
	callbacks vitals.Callbacks
}

func New(send SendFunc, log logger.ILogger) *Remote {
	return &Remote{
		send:    send,
		logger:  log,
		pending: make(map[string]chan Frame),
		done:    make(chan struct{}),
	}
}

// Close fails every pending command and drops later callbacks.
func (r *Remote) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	r.callbacks = vitals.Callbacks{}
	r.license = vitals.LicenseCallbacks{}
	close(r.done)
}

// Handle processes one frame received from the client.
func (r *Remote) Handle(data []byte) error {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("bridge: malformed frame: %w", err)
	}

	switch f.Type {
	case FrameReply:
		r.mu.Lock()
		ch, ok := r.pending[f.ID]
		r.mu.Unlock()
		if !ok {
			// replies to notifications land here
			r.logger.Debug(moduleName, "reply without pending command", map[string]interface{}{"id": f.ID})
			return nil
		}
		select {
		case ch <- f:
		default:
		}
		return nil
	case FrameCallback:
		return r.dispatch(f)
	default:
		return fmt.Errorf("bridge: unknown frame type %q", f.Type)
	}
}

func (r *Remote) dispatch(f Frame) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	cb, lic := r.callbacks, r.license
	r.mu.Unlock()

	decode := func(v interface{}) error {
		if err := json.Unmarshal(f.Payload, v); err != nil {
			return fmt.Errorf("bridge: bad %s payload: %w", f.Name, err)
		}
		return nil
	}

	switch f.Name {
	case CbImageData:
		var p imageDataPayload
		if err := decode(&p); err != nil {
			return err
		}
		if cb.OnImageData != nil {
			cb.OnImageData(p.Validity)
		}
	case CbVitalSign:
		var p resultPayload
		if err := decode(&p); err != nil {
			return err
		}
		if cb.OnVitalSign != nil {
			cb.OnVitalSign(p.Result)
		}
	case CbFinalResults:
		var p resultPayload
		if err := decode(&p); err != nil {
			return err
		}
		if cb.OnFinalResults != nil {
			cb.OnFinalResults(p.Result)
		}
	case CbError:
		var p vitals.Error
		if err := decode(&p); err != nil {
			return err
		}
		if cb.OnError != nil {
			cb.OnError(p)
		}
	case CbWarning:
		var p vitals.Warning
		if err := decode(&p); err != nil {
			return err
		}
		if cb.OnWarning != nil {
			cb.OnWarning(p)
		}
	case CbStateChange:
		var p stateChangePayload
		if err := decode(&p); err != nil {
			return err
		}
		if cb.OnStateChange != nil {
			cb.OnStateChange(p.State)
		}
	case CbActivation:
		var p activationPayload
		if err := decode(&p); err != nil {
			return err
		}
		if lic.OnActivation != nil {
			lic.OnActivation(p.ActivationID)
		}
	case CbEnabledVitalSigns:
		var p enabledVitalSignsPayload
		if err := decode(&p); err != nil {
			return err
		}
		if lic.OnEnabledVitalSigns != nil {
			lic.OnEnabledVitalSigns(p.Signs)
		}
	case CbOfflineMeasurement:
		var p offlineMeasurementPayload
		if err := decode(&p); err != nil {
			return err
		}
		if lic.OnOfflineMeasurement != nil {
			lic.OnOfflineMeasurement(p.Remaining)
		}
	default:
		return fmt.Errorf("bridge: unknown callback %q", f.Name)
	}
	return nil
}

// call sends a command and waits for its reply.
func (r *Remote) call(ctx context.Context, name string, payload, out interface{}) error {
	id := uuid.NewString()
	ch := make(chan Frame, 1)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrDisconnected
	}
	r.pending[id] = ch
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		delete(r.pending, id)
		r.mu.Unlock()
	}()

	if err := r.write(id, name, payload); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-r.done:
		return ErrDisconnected
	case f := <-ch:
		if f.Error != nil {
			return mapError(name, f.Error)
		}
		if out != nil && len(f.Payload) > 0 {
			if err := json.Unmarshal(f.Payload, out); err != nil {
				return fmt.Errorf("bridge: bad %s reply: %w", name, err)
			}
		}
		return nil
	}
}

// notify sends a command without waiting for the reply.
func (r *Remote) notify(name string, payload interface{}) {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return
	}
	if err := r.write(uuid.NewString(), name, payload); err != nil {
		r.logger.Warn(moduleName, "notify failed", map[string]interface{}{"command": name, "error": err.Error()})
	}
}

func (r *Remote) write(id, name string, payload interface{}) error {
	f := Frame{Type: FrameCommand, ID: id, Name: name}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("bridge: encode %s: %w", name, err)
		}
		f.Payload = raw
	}
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("bridge: encode %s: %w", name, err)
	}
	if err := r.send(data); err != nil {
		return fmt.Errorf("bridge: send %s: %w", name, err)
	}
	return nil
}

func mapError(cmd string, e *RemoteError) error {
	if e.Domain > 0 || e.Code > 0 {
		return vitals.Error{Domain: e.Domain, Code: e.Code, Message: e.Message, Details: e.Details}
	}
	switch e.Name {
	case "NotAllowedError", "PermissionDeniedError", "SecurityError":
		return fmt.Errorf("%w: %s", camera.ErrPermissionDenied, e.Message)
	case "NotFoundError", "DevicesNotFoundError", "OverconstrainedError":
		return fmt.Errorf("%w: %s", camera.ErrNoCamera, e.Message)
	case "NotSupportedError", "TypeError":
		return fmt.Errorf("%w: %s", camera.ErrUnsupported, e.Message)
	}
	return &CommandError{Command: cmd, Name: e.Name, Message: e.Message}
}
