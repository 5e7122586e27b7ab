package strategies

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/crosslens/crosslens/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRegressionPerfectLinearFit(t *testing.T) {
	r := NewRegression(zap.NewNop())
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	// Target value is exactly twice the session duration; every other
	// feature is constant, so only the duration coefficient activates.
	events := make([]*domain.Event, 0, 4)
	for i, duration := range []float64{10, 20, 30, 40} {
		e := seriesEvent(fmt.Sprintf("e%d", i), domain.EventTypeSession, "sessions", base.Add(time.Duration(i)*time.Minute), 2*duration, 0.8)
		e.Context.SessionDuration = duration
		events = append(events, e)
	}

	result, err := r.Apply(context.Background(), events)
	require.NoError(t, err)
	require.NotNil(t, result.Regression)

	assert.InDelta(t, 2.0, result.Regression.Coefficients[2], 1e-9)
	assert.InDelta(t, 50.0, result.Regression.Intercept, 1e-9)
	assert.InDelta(t, 1.0, result.Regression.FitQuality, 1e-9)

	for i, p := range result.Regression.Predictions {
		assert.InDelta(t, p.Actual, p.Predicted, 1e-9)
		assert.InDelta(t, 1.0, p.Confidence, 1e-9)
		assert.Equal(t, events[i].ID, p.EventID)
	}
}

func TestRegressionConstantTarget(t *testing.T) {
	r := NewRegression(zap.NewNop())
	base := time.Now()

	events := []*domain.Event{
		seriesEvent("e1", domain.EventTypeSession, "sessions", base, 30, 0.8),
		seriesEvent("e2", domain.EventTypeSession, "sessions", base.Add(time.Minute), 30, 0.8),
		seriesEvent("e3", domain.EventTypeSession, "sessions", base.Add(2*time.Minute), 30, 0.8),
	}

	result, err := r.Apply(context.Background(), events)
	require.NoError(t, err)

	// No spread in the target means no explanatory power.
	assert.Zero(t, result.Regression.FitQuality)
	assert.InDelta(t, 30.0, result.Regression.Intercept, 1e-9)
	for _, p := range result.Regression.Predictions {
		assert.InDelta(t, 1.0, p.Confidence, 1e-9)
	}
}

func TestRegressionTooFewEvents(t *testing.T) {
	r := NewRegression(zap.NewNop())

	result, err := r.Apply(context.Background(), []*domain.Event{
		seriesEvent("e1", domain.EventTypeSession, "sessions", time.Now(), 30, 0.8),
	})
	require.NoError(t, err)
	assert.Empty(t, result.Regression.Predictions)
	assert.Zero(t, result.Regression.FitQuality)
}
