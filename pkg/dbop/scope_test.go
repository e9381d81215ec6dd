package dbop_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yokha/dbop-core/pkg/dbop"
)

func TestNullScopeRunsBodyDirectly(t *testing.T) {
	t.Parallel()

	ran := false
	err := dbop.NullScope.Run(context.Background(), true, func(ctx context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestNullScopePropagatesBodyError(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("body failed")
	err := dbop.NullScope.Run(context.Background(), false, func(ctx context.Context) error {
		return wantErr
	})
	require.ErrorIs(t, err, wantErr)
}
