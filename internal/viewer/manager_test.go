package viewer_test

import (
	"context"
	"testing"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/photosphere/internal/infrastructure/logging"
	"github.com/GriffinCanCode/photosphere/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/photosphere/internal/shared/id"
	"github.com/GriffinCanCode/photosphere/internal/viewer"
	"github.com/GriffinCanCode/photosphere/tests/helpers/testutil"
)

func TestManagerLifecycle(t *testing.T) {
	metrics := monitoring.NewMetrics()
	surface := testutil.NewFakeSurface(nil)
	m := viewer.NewManager(viewer.Options{
		Surface: surface,
		Logger:  logging.NewNop(),
		Metrics: metrics,
	})
	ctx := context.Background()

	a, err := m.Open(ctx, viewer.Item{FileURL: "https://example.com/a.jpg", Name: "A"})
	require.NoError(t, err)
	b, err := m.Open(ctx, viewer.Item{FileURL: "https://example.com/b.jpg", Name: "B"})
	require.NoError(t, err)

	assert.True(t, id.IsPrefixed(a.ScreenID().String(), id.ScreenPrefix))
	assert.NotEqual(t, a.ScreenID(), b.ScreenID())
	assert.Equal(t, 2, m.Len())
	assert.Equal(t, 2.0, promtest.ToFloat64(metrics.ScreensActive))

	got, ok := m.Get(a.ScreenID())
	require.True(t, ok)
	assert.Same(t, a, got)

	testutil.WaitPhase(t, a, viewer.PhaseRendering)
	require.NoError(t, m.Close(ctx, a.ScreenID()))
	assert.Equal(t, viewer.PhaseTornDown, a.Snapshot().Phase)
	assert.Equal(t, 1, m.Len())
	assert.ErrorIs(t, m.Close(ctx, a.ScreenID()), viewer.ErrScreenNotFound)

	_, ok = m.Get(a.ScreenID())
	assert.False(t, ok)

	require.NoError(t, m.CloseAll(ctx))
	assert.Zero(t, m.Len())
	assert.Equal(t, viewer.PhaseTornDown, b.Snapshot().Phase)
	assert.Zero(t, promtest.ToFloat64(metrics.ScreensActive))

	for _, mounted := range surface.Mounts() {
		assert.True(t, mounted.Instance.Closed())
	}
}

func TestManagerOpenWithoutSurface(t *testing.T) {
	m := viewer.NewManager(viewer.Options{})
	_, err := m.Open(context.Background(), viewer.Item{FileURL: "x"})
	assert.ErrorIs(t, err, viewer.ErrNoSurface)
	assert.Zero(t, m.Len())
}
