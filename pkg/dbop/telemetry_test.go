package dbop_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yokha/dbop-core/pkg/dbop"
)

func TestExecuteTracedDisabledIsPassThrough(t *testing.T) {
	t.Parallel()

	disabled := false
	calls := 0
	op := func(ctx context.Context) (int, error) {
		calls++
		return 7, nil
	}

	result, err := dbop.ExecuteTraced(context.Background(), op, dbop.TelemetryParams[int]{
		Params:      dbop.Params[int]{Policy: dbop.RetryPolicy{}},
		OTELEnabled: &disabled,
	})

	require.NoError(t, err)
	assert.Equal(t, 7, result)
	assert.Equal(t, 1, calls)
}

func TestExecuteTracedMatchesPlainExecuteOnSuccess(t *testing.T) {
	t.Parallel()

	enabled := true
	op := func(ctx context.Context) (int, error) { return 42, nil }

	plain, plainErr := dbop.Execute(context.Background(), op, dbop.Params[int]{Policy: dbop.RetryPolicy{}})
	traced, tracedErr := dbop.ExecuteTraced(context.Background(), op, dbop.TelemetryParams[int]{
		Params:      dbop.Params[int]{Policy: dbop.RetryPolicy{}},
		OTELEnabled: &enabled,
		SpanName:    "test.operation",
	})

	require.NoError(t, plainErr)
	require.NoError(t, tracedErr)
	assert.Equal(t, plain, traced)
}

func TestExecuteTracedMatchesPlainExecuteOnFailure(t *testing.T) {
	t.Parallel()

	enabled := true
	wantErr := errors.New("boom")
	op := func(ctx context.Context) (int, error) { return 0, wantErr }
	policy := dbop.RetryPolicy{MaxRetries: 1, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}

	_, plainErr := dbop.Execute(context.Background(), op, dbop.Params[int]{Policy: policy, Classifier: neverTransient})
	_, tracedErr := dbop.ExecuteTraced(context.Background(), op, dbop.TelemetryParams[int]{
		Params:      dbop.Params[int]{Policy: policy, Classifier: neverTransient},
		OTELEnabled: &enabled,
	})

	assert.ErrorIs(t, plainErr, wantErr)
	assert.ErrorIs(t, tracedErr, wantErr)
}

func TestExecuteTracedEnabledWithoutProviderStillWorks(t *testing.T) {
	t.Parallel()

	enabled := true
	metricsOn := true
	calls := 0
	op := func(ctx context.Context) (int, error) {
		calls++
		return calls, nil
	}

	result, err := dbop.ExecuteTraced(context.Background(), op, dbop.TelemetryParams[int]{
		Params:         dbop.Params[int]{Policy: dbop.RetryPolicy{}},
		OTELEnabled:    &enabled,
		MetricsEnabled: &metricsOn,
	})

	require.NoError(t, err)
	assert.Equal(t, 1, result)
}
