package quality

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/datallboy/streamgrab/internal/browser/browsertest"
)

func TestSelector_Apply_StoresThenReloads(t *testing.T) {
	session := &browsertest.MockSession{}
	var order []string

	session.On("Evaluate", mock.Anything, mock.MatchedBy(func(s string) bool {
		return assert.Contains(t, s, `localStorage.setItem("pljsquality", "720p")`)
	}), mock.Anything).Return(nil, true).Run(func(mock.Arguments) { order = append(order, "persist") })
	session.On("Reload", mock.Anything, 35*time.Second).Return(nil).Run(func(mock.Arguments) { order = append(order, "reload") })

	sel := NewSelector("", 35*time.Second)
	err := sel.Apply(context.Background(), session, "720p", func() { order = append(order, "arm") })

	require.NoError(t, err)
	assert.Equal(t, []string{"persist", "arm", "reload"}, order)
	session.AssertExpectations(t)
}

func TestSelector_Apply_EmptyPreference(t *testing.T) {
	session := &browsertest.MockSession{}

	err := NewSelector("pljsquality", time.Second).Apply(context.Background(), session, "", nil)

	assert.ErrorIs(t, err, ErrInvalidQuality)
	session.AssertNotCalled(t, "Reload", mock.Anything, mock.Anything)
}

func TestSelector_Apply_StorageRejected(t *testing.T) {
	session := &browsertest.MockSession{}
	session.On("Evaluate", mock.Anything, mock.Anything, mock.Anything).Return(nil, false)

	err := NewSelector("pljsquality", time.Second).Apply(context.Background(), session, "1080p", nil)

	assert.ErrorContains(t, err, "did not keep quality")
	session.AssertNotCalled(t, "Reload", mock.Anything, mock.Anything)
}

func TestSelector_Apply_ReloadFails(t *testing.T) {
	session := &browsertest.MockSession{}
	session.On("Evaluate", mock.Anything, mock.Anything, mock.Anything).Return(nil, true)
	session.On("Reload", mock.Anything, time.Second).Return(context.DeadlineExceeded)

	err := NewSelector("pljsquality", time.Second).Apply(context.Background(), session, "1080p", nil)

	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestSetItemScript_EscapesValues(t *testing.T) {
	script, err := setItemScript("key", `1080p"); alert("x`)

	require.NoError(t, err)
	assert.Contains(t, script, `"1080p\"); alert(\"x"`)
}
