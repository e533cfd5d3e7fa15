package capture

import (
	"math"

	"vitals-scan-be/pkg/vitals"
)

// Snapshot is everything the presentation layer renders.
type Snapshot struct {
	State        vitals.SessionState `json:"state"`
	Loading      bool                `json:"loading"`
	FaceDetected bool                `json:"face_detected"`
	FaceValid    bool                `json:"face_valid"`
	Validity     string              `json:"validity,omitempty"`
	Processing   bool                `json:"processing"`
	Measuring    bool                `json:"measuring"`
	Progress     int                 `json:"progress"`
	Instruction  string              `json:"instruction"`
	Oval         Oval                `json:"oval"`
	ShowProgress bool                `json:"show_progress"`
	ShowWaiting  bool                `json:"show_waiting"`
	CancelPrompt bool                `json:"cancel_prompt"`
	Completed    bool                `json:"completed"`
	Error        *ErrorInfo          `json:"error,omitempty"`
	Warning      *vitals.Warning     `json:"warning,omitempty"`
	Vitals       vitals.Result       `json:"vitals,omitempty"`
}

// Snapshot renders the current record. The fatal error wins over a
// transient one.
func (m *Machine) Snapshot() Snapshot {
	s := Snapshot{
		State:        m.state,
		Loading:      m.loading,
		FaceDetected: m.faceDetected(),
		FaceValid:    m.faceValid,
		Processing:   m.processing,
		Measuring:    m.state == vitals.StateMeasuring,
		Progress:     int(math.Floor(m.progress)),
		Instruction:  m.instruction(),
		Oval:         m.oval(),
		ShowProgress: m.processing,
		ShowWaiting:  m.state == vitals.StateMeasuring && !m.processing,
		CancelPrompt: m.cancelPrompt,
		Completed:    m.completed,
		Warning:      m.warning,
	}
	if m.seenFrame {
		s.Validity = m.validity.String()
	}
	switch {
	case m.fatal != nil:
		e := *m.fatal
		s.Error = &e
	case m.lastErr != nil:
		e := *m.lastErr
		s.Error = &e
	}
	if len(m.latest) > 0 {
		s.Vitals = make(vitals.Result, len(m.latest))
		for k, v := range m.latest {
			s.Vitals[k] = v
		}
	}
	return s
}
