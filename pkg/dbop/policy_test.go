package dbop_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yokha/dbop-core/pkg/dbop"
)

func TestRetryPolicyValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		policy  dbop.RetryPolicy
		wantErr bool
	}{
		{"valid", dbop.RetryPolicy{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: time.Second, Jitter: 0.2}, false},
		{"negative retries", dbop.RetryPolicy{MaxRetries: -1, MaxDelay: time.Second}, true},
		{"negative initial delay", dbop.RetryPolicy{InitialDelay: -time.Millisecond, MaxDelay: time.Second}, true},
		{"max less than initial", dbop.RetryPolicy{InitialDelay: 2 * time.Second, MaxDelay: time.Second}, true},
		{"jitter too high", dbop.RetryPolicy{MaxDelay: time.Second, Jitter: 1.5}, true},
		{"jitter negative", dbop.RetryPolicy{MaxDelay: time.Second, Jitter: -0.1}, true},
		{"zero is valid", dbop.RetryPolicy{}, false},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.policy.Validate()
			if tc.wantErr {
				require.ErrorIs(t, err, dbop.ErrInvalidRetryPolicy)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestBackoffMaxRetriesZero(t *testing.T) {
	t.Parallel()

	p := dbop.RetryPolicy{MaxRetries: 0, InitialDelay: time.Millisecond, MaxDelay: time.Second}
	assert.Empty(t, p.Backoff())
}

func TestBackoffDeterministicWithoutJitter(t *testing.T) {
	t.Parallel()

	p := dbop.RetryPolicy{
		MaxRetries:   5,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     500 * time.Millisecond,
		Jitter:       0,
	}
	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		500 * time.Millisecond,
		500 * time.Millisecond,
	}
	assert.Equal(t, want, p.Backoff())
}

func TestBackoffCappedAndNonNegativeWithJitter(t *testing.T) {
	t.Parallel()

	p := dbop.RetryPolicy{
		MaxRetries:   10,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     50 * time.Millisecond,
		Jitter:       0.5,
	}
	delays := p.Backoff()
	require.Len(t, delays, 10)
	for _, d := range delays {
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, p.MaxDelay)
	}
}

func TestBackoffIndependentSequencesPerCall(t *testing.T) {
	t.Parallel()

	p := dbop.RetryPolicy{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond, Jitter: 0}
	a := p.Backoff()
	b := p.Backoff()
	assert.Equal(t, a, b, "jitter-free schedules must be reproducible across independent calls")
}
