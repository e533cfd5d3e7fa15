package capture

import "time"

// Timings holds every delay the machine works with.
type Timings struct {
	// ValidStartDelay debounces start after a valid frame.
	ValidStartDelay time.Duration
	// AnyStartDelay debounces start while no valid frame is seen.
	AnyStartDelay time.Duration
	// RestartDelay debounces the restart after a measurement error.
	RestartDelay time.Duration
	// ProcessingGrace is how long the face may be invalid, with no tick,
	// before processing is considered paused.
	ProcessingGrace time.Duration
	// FaceLossTimeout is how long the face may be invalid while measuring
	// before the measurement is stopped.
	FaceLossTimeout  time.Duration
	ProgressInterval time.Duration
	ResultsDelay     time.Duration
}

func DefaultTimings() Timings {
	return Timings{
		ValidStartDelay:  500 * time.Millisecond,
		AnyStartDelay:    3 * time.Second,
		RestartDelay:     time.Second,
		ProcessingGrace:  2 * time.Second,
		FaceLossTimeout:  3 * time.Second,
		ProgressInterval: 100 * time.Millisecond,
		ResultsDelay:     time.Second,
	}
}

const DefaultProcessingTime = 45 * time.Second
