package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsMatchesByKind(t *testing.T) {
	err := Authentication("Invalid user credentials", errors.New("invalid_grant"))
	require.True(t, errors.Is(err, ErrAuthentication))
	require.False(t, errors.Is(err, ErrDataAccess))
	assert.Equal(t, "Invalid user credentials", err.Error())
}

func TestWrapPreservesKind(t *testing.T) {
	inner := DataAccess("update notification", errors.New("connection reset"))
	outer := Wrap(fmt.Errorf("mark read: %w", inner), KindInvalidInput, "mark read failed")

	assert.Equal(t, KindDataAccess, KindOf(outer))
	assert.True(t, errors.Is(outer, ErrDataAccess))
	assert.Nil(t, Wrap(nil, KindNotFound, "x"))
	assert.Nil(t, DataAccess("op", nil))
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
	assert.Equal(t, "configuration", New(KindConfiguration, "").Error())
}
