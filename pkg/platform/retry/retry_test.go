package retry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compliancedesk/pkg/platform/sentinel"
)

func TestRead(t *testing.T) {
	t.Run("transient failures are retried", func(t *testing.T) {
		calls := 0
		v, err := Read(context.Background(), func(context.Context) (int, error) {
			calls++
			if calls < 3 {
				return 0, errors.New("connection reset")
			}
			return 42, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 42, v)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after three attempts", func(t *testing.T) {
		calls := 0
		_, err := Read(context.Background(), func(context.Context) (int, error) {
			calls++
			return 0, errors.New("connection reset")
		})
		require.Error(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("not found is final", func(t *testing.T) {
		calls := 0
		_, err := Read(context.Background(), func(context.Context) (string, error) {
			calls++
			return "", sentinel.ErrNotFound
		})
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
		assert.Equal(t, 1, calls)
	})
}
