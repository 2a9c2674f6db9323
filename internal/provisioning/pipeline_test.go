package provisioning

import (
	"context"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minisc/minisc/internal/config"
)

func newPipelineContext(observer Observer) *Context {
	return &Context{
		Context:  context.Background(),
		Config:   &config.Config{ClusterTag: "demo"},
		State:    NewState(),
		Observer: observer,
		Metrics:  NewMetrics(),
		Timeouts: config.FastTimeouts(),
	}
}

func TestRunPhases_Success(t *testing.T) {
	t.Parallel()
	executed := make([]string, 0)
	ctx := newPipelineContext(NewMockObserver())

	err := RunPhases(ctx, []Phase{
		phaseFunc("network", func(_ *Context) error { executed = append(executed, "network"); return nil }),
		phaseFunc("security", func(_ *Context) error { executed = append(executed, "security"); return nil }),
		phaseFunc("head", func(_ *Context) error { executed = append(executed, "head"); return nil }),
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"network", "security", "head"}, executed)
}

func TestRunPhases_StopsOnError(t *testing.T) {
	t.Parallel()
	executed := make([]string, 0)
	ctx := newPipelineContext(NewMockObserver())

	err := RunPhases(ctx, []Phase{
		phaseFunc("network", func(_ *Context) error { executed = append(executed, "network"); return nil }),
		phaseFunc("security", func(_ *Context) error { return fmt.Errorf("quota exceeded") }),
		phaseFunc("head", func(_ *Context) error { executed = append(executed, "head"); return nil }),
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "security phase failed")
	assert.Contains(t, err.Error(), "quota exceeded")
	assert.Equal(t, []string{"network"}, executed)
}

func TestRunPhases_Empty(t *testing.T) {
	t.Parallel()
	require.NoError(t, RunPhases(newPipelineContext(NewMockObserver()), nil))
}

func TestRunPhases_CancelledContext(t *testing.T) {
	t.Parallel()
	ctx := newPipelineContext(NewMockObserver())
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	ctx.Context = cancelled

	ran := false
	err := RunPhases(ctx, []Phase{
		phaseFunc("network", func(_ *Context) error { ran = true; return nil }),
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, ran)
}

func TestRunPhases_LogsPhaseEvents(t *testing.T) {
	t.Parallel()
	observer := NewMockObserver()
	ctx := newPipelineContext(observer)

	require.NoError(t, RunPhases(ctx, []Phase{
		phaseFunc("test", func(_ *Context) error { return nil }),
	}))

	require.Len(t, observer.events, 2)
	assert.Equal(t, EventPhaseStarted, observer.events[0].Type)
	assert.Equal(t, "test (1/1)", observer.events[0].Phase)
	assert.Equal(t, EventPhaseCompleted, observer.events[1].Type)
}

func TestRunPhases_LogsFailure(t *testing.T) {
	t.Parallel()
	observer := NewMockObserver()
	ctx := newPipelineContext(observer)

	_ = RunPhases(ctx, []Phase{
		phaseFunc("failing", func(_ *Context) error { return fmt.Errorf("boom") }),
	})

	var hasFailed bool
	for _, event := range observer.events {
		if event.Type == EventPhaseFailed {
			hasFailed = true
		}
	}
	assert.True(t, hasFailed, "should log phase failed event")
}

func TestRunPhases_RecordsMetrics(t *testing.T) {
	t.Parallel()
	ctx := newPipelineContext(NewMockObserver())

	_ = RunPhases(ctx, []Phase{
		phaseFunc("network", func(_ *Context) error { return nil }),
		phaseFunc("security", func(_ *Context) error { return fmt.Errorf("boom") }),
	})

	assert.Equal(t, 2, testutil.CollectAndCount(ctx.Metrics.phaseDuration))
}

func TestPhaseFunc(t *testing.T) {
	t.Parallel()
	called := false
	p := PhaseFunc{PhaseName: "x", Fn: func(*Context) error { called = true; return nil }}

	assert.Equal(t, "x", p.Name())
	require.NoError(t, p.Provision(nil))
	assert.True(t, called)
}

// phaseFunc creates a Phase from a function for testing.
func phaseFunc(name string, fn func(*Context) error) Phase {
	return PhaseFunc{PhaseName: name, Fn: fn}
}
