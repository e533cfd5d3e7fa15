package tracer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampleRatio(t *testing.T) {
	tests := []struct {
		value string
		want  float64
	}{
		{"", 1},
		{"0.25", 0.25},
		{"1", 1},
		{"0", 1},
		{"1.5", 1},
		{"half", 1},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("OTEL_SAMPLE_RATIO", tt.value)
			assert.Equal(t, tt.want, sampleRatio())
		})
	}
}

func TestInitTracerDisabled(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "false")
	shutdown := InitTracer()
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}
