package binding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/keystrokes/internal/input"
	"github.com/dshills/keystrokes/internal/input/combo"
	"github.com/dshills/keystrokes/internal/input/handler"
	"github.com/dshills/keystrokes/internal/input/key"
)

func TestHubDrivesDispatcher(t *testing.T) {
	hub := NewHub()
	ks := input.New(hub.Options(input.DefaultOptions()))
	require.True(t, hub.Bound())

	fired := 0
	require.NoError(t, ks.BindKeyCombo("ctrl+s", handler.Fn(func(combo.Event) { fired++ })))

	hub.Press(key.NewEvent("ctrl"))
	hub.Press(key.NewEvent("s"))
	assert.Equal(t, 1, fired)
	assert.Equal(t, []string{"ctrl", "s"}, ks.PressedKeys())

	hub.Release(key.NewEvent("s"))
	hub.Release(key.NewEvent("ctrl"))
	assert.Empty(t, ks.PressedKeys())

	hub.Deactivate()
	assert.False(t, ks.IsActive())
	hub.Activate()
	assert.True(t, ks.IsActive())

	ks.UnbindEnvironment()
	assert.False(t, hub.Bound())
	hub.Press(key.NewEvent("a"))
	assert.Empty(t, ks.PressedKeys())
}

func TestHubCallsInRegistrationOrder(t *testing.T) {
	hub := NewHub()
	opts := hub.Options(input.Options{})

	var order []int
	for i := range 5 {
		opts.OnKeyPressed(func(key.Event) { order = append(order, i) })
	}
	hub.Press(key.NewEvent("a"))
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestHubUnbindInsideCallback(t *testing.T) {
	hub := NewHub()
	opts := hub.Options(input.Options{})

	calls := 0
	var unbind func()
	unbind = opts.OnKeyReleased(func(key.Event) {
		calls++
		unbind()
	})

	hub.Release(key.NewEvent("a"))
	hub.Release(key.NewEvent("a"))
	assert.Equal(t, 1, calls)
}
