package input_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/keystrokes/internal/input"
	"github.com/dshills/keystrokes/internal/input/combo"
	"github.com/dshills/keystrokes/internal/input/handler"
	"github.com/dshills/keystrokes/internal/input/inputtest"
	"github.com/dshills/keystrokes/internal/input/key"
)

// recorder collects the events delivered to one Callbacks handler.
type recorder[E any] struct {
	pressed  []E
	repeat   []E
	released []E
	h        *handler.Callbacks[E]
}

func newRecorder[E any]() *recorder[E] {
	r := &recorder[E]{}
	r.h = &handler.Callbacks[E]{
		OnPressed:           func(e E) { r.pressed = append(r.pressed, e) },
		OnPressedWithRepeat: func(e E) { r.repeat = append(r.repeat, e) },
		OnReleased:          func(e E) { r.released = append(r.released, e) },
	}
	return r
}

func (r *recorder[E]) counts() [3]int {
	return [3]int{len(r.pressed), len(r.repeat), len(r.released)}
}

func newTest(t *testing.T) *inputtest.Keystrokes {
	t.Helper()
	return inputtest.New(input.DefaultOptions())
}

func checkCombo(t *testing.T, ks *inputtest.Keystrokes, raw string) bool {
	t.Helper()
	ok, err := ks.CheckKeyCombo(raw)
	require.NoError(t, err)
	return ok
}

func sequenceIndex(t *testing.T, ks *inputtest.Keystrokes, raw string) int {
	t.Helper()
	idx, err := ks.CheckKeyComboSequenceIndex(raw)
	require.NoError(t, err)
	return idx
}

func TestBindKeyRepeatHandlers(t *testing.T) {
	ks := newTest(t)

	var calls1, calls2 int
	ks.BindKey("a", handler.Fn(func(key.Event) { calls1++ }))
	ks.BindKey("A", handler.Fn(func(key.Event) { calls2++ }))

	ks.PressKey("a")
	ks.PressKey("a")

	assert.Equal(t, 2, calls1)
	assert.Equal(t, 2, calls2)
}

func TestBindKeyCallbacks(t *testing.T) {
	ks := newTest(t)

	r1 := newRecorder[key.Event]()
	r2 := newRecorder[key.Event]()
	ks.BindKey("a", r1.h)
	ks.BindKey("a", r2.h)

	ks.PressKey("a")
	ks.PressKey("a")
	ks.ReleaseKey("a")

	assert.Equal(t, [3]int{1, 2, 1}, r1.counts())
	assert.Equal(t, [3]int{1, 2, 1}, r2.counts())
}

func TestBindKeyKeepsOriginalEvent(t *testing.T) {
	ks := newTest(t)

	r := newRecorder[key.Event]()
	ks.BindKey("a", r.h)

	type nativeEvent struct{ path []string }
	native := &nativeEvent{path: []string{"root", "node"}}
	ks.Press(key.Event{Key: "A", Original: native})

	require.Len(t, r.pressed, 1)
	assert.Equal(t, "a", r.pressed[0].Key)
	assert.Same(t, native, r.pressed[0].Original)
}

func TestBindKeyMatchesAliases(t *testing.T) {
	ks := newTest(t)

	var calls int
	ks.BindKey("keya", handler.Fn(func(key.Event) { calls++ }))

	ks.PressKey("a", "KeyA")
	assert.Equal(t, 1, calls)
}

func TestBindKeys(t *testing.T) {
	ks := newTest(t)

	var got []string
	h := handler.Fn(func(e key.Event) { got = append(got, e.Key) })
	ks.BindKeys([]string{"a", "b"}, h)

	ks.PressKey("a")
	ks.PressKey("b")
	ks.UnbindKeys([]string{"a", "b"}, h)
	ks.PressKey("a")

	assert.Equal(t, []string{"a", "b"}, got)
}

func TestUnbindKeyRemovesOnlyGivenHandler(t *testing.T) {
	ks := newTest(t)

	var calls1, calls2 int
	h1 := handler.Fn(func(key.Event) { calls1++ })
	h2 := handler.Fn(func(key.Event) { calls2++ })
	ks.BindKey("a", h1)
	ks.BindKey("a", h2)

	ks.PressKey("a")
	ks.UnbindKey("a", h1)
	ks.PressKey("a")

	assert.Equal(t, 1, calls1)
	assert.Equal(t, 2, calls2)
}

func TestUnbindKeyWithoutHandlerRemovesAll(t *testing.T) {
	ks := newTest(t)

	r1 := newRecorder[key.Event]()
	r2 := newRecorder[key.Event]()
	ks.BindKey("a", r1.h)
	ks.BindKey("a", r2.h)

	ks.PressKey("a")
	ks.UnbindKey("a", nil)
	ks.PressKey("a")

	assert.Equal(t, [3]int{1, 1, 0}, r1.counts())
	assert.Equal(t, [3]int{1, 1, 0}, r2.counts())
}

func TestUnbindUnknownHandlerIsNoop(t *testing.T) {
	ks := newTest(t)

	var calls int
	ks.BindKey("a", handler.Fn(func(key.Event) { calls++ }))
	ks.UnbindKey("a", handler.Fn(func(key.Event) {}))
	ks.UnbindKey("zzz", nil)
	require.NoError(t, ks.UnbindKeyCombo("a+b", handler.Fn(func(combo.Event) {})))

	ks.PressKey("a")
	assert.Equal(t, 1, calls)
}

func TestBindKeyComboFiresBothHandlers(t *testing.T) {
	ks := newTest(t)

	r1 := newRecorder[combo.Event]()
	r2 := newRecorder[combo.Event]()
	require.NoError(t, ks.BindKeyCombo("a,b>c+d", r1.h))
	require.NoError(t, ks.BindKeyCombo("a,b>c+d", r2.h))

	ks.PressKey("a")
	ks.PressKey("a")
	ks.ReleaseKey("a")

	ks.PressKey("b")
	ks.PressKey("b")
	ks.PressKey("d")
	ks.PressKey("d")
	ks.PressKey("c")
	ks.PressKey("c")

	ks.ReleaseKey("b")
	ks.ReleaseKey("c")
	ks.ReleaseKey("d")

	assert.Equal(t, [3]int{1, 2, 1}, r1.counts())
	assert.Equal(t, [3]int{1, 2, 1}, r2.counts())
}

func TestKeyComboWrongOrderNeverFires(t *testing.T) {
	ks := newTest(t)

	r := newRecorder[combo.Event]()
	require.NoError(t, ks.BindKeyCombo("a,b>c,d", r.h))

	steps := []func(){
		func() { ks.PressKey("d") },
		func() { ks.PressKey("d") },
		func() { ks.ReleaseKey("d") },
		func() { ks.PressKey("b") },
		func() { ks.PressKey("c") },
		func() { ks.ReleaseKey("c") },
		func() { ks.ReleaseKey("b") },
		func() { ks.PressKey("a") },
		func() { ks.PressKey("a") },
		func() { ks.ReleaseKey("a") },
	}
	for _, step := range steps {
		step()
		assert.False(t, checkCombo(t, ks, "a,b>c,d"))
	}

	assert.Equal(t, [3]int{0, 0, 0}, r.counts())
}

func TestKeyComboEventPayload(t *testing.T) {
	ks := newTest(t)

	r := newRecorder[combo.Event]()
	require.NoError(t, ks.BindKeyCombo("a,b>c+d", r.h))

	ks.Tap("a")
	ks.PressKey("b")
	ks.PressKey("d")
	ks.PressKey("c")
	ks.ReleaseKey("b")
	ks.ReleaseKey("c")
	ks.ReleaseKey("d")

	require.Len(t, r.pressed, 1)
	ev := r.pressed[0]
	assert.Equal(t, "a,b>c+d", ev.Combo)
	assert.Equal(t, "c", ev.FinalKeyEvent.Key)

	var keys []string
	for _, e := range ev.KeyEvents {
		keys = append(keys, e.Key)
	}
	assert.ElementsMatch(t, []string{"a", "b", "c", "d"}, keys)
}

func TestUnbindKeyCombo(t *testing.T) {
	ks := newTest(t)

	var calls1, calls2 int
	h1 := handler.Fn(func(combo.Event) { calls1++ })
	h2 := handler.Fn(func(combo.Event) { calls2++ })
	require.NoError(t, ks.BindKeyCombo("a>b", h1))
	require.NoError(t, ks.BindKeyCombo("A > B", h2))

	ks.PressKey("a")
	ks.PressKey("b")
	ks.PressKey("b")

	require.NoError(t, ks.UnbindKeyCombo("a>b", h2))
	ks.PressKey("b")

	assert.Equal(t, 3, calls1)
	assert.Equal(t, 2, calls2)
}

func TestUnbindKeyComboWithoutHandlerRemovesAll(t *testing.T) {
	ks := newTest(t)

	var calls int
	require.NoError(t, ks.BindKeyCombos([]string{"a", "b"}, handler.Fn(func(combo.Event) { calls++ })))
	require.NoError(t, ks.BindKeyCombo("a", handler.Fn(func(combo.Event) { calls++ })))

	require.NoError(t, ks.UnbindKeyCombo("a", nil))
	ks.Tap("a", "b")

	assert.Equal(t, 1, calls)
}

func TestBindKeyComboRejectsMalformed(t *testing.T) {
	ks := newTest(t)

	err := ks.BindKeyCombo("a++b", handler.Fn(func(combo.Event) {}))
	assert.ErrorIs(t, err, combo.ErrConsecutiveOperators)

	var perr *combo.ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 2, perr.Pos)

	err = ks.BindKeyCombos([]string{"a", ",b"}, handler.Fn(func(combo.Event) {}))
	assert.ErrorIs(t, err, combo.ErrLeadingOperator)

	_, err = ks.CheckKeyCombo("a>")
	assert.ErrorIs(t, err, combo.ErrTrailingOperator)

	_, err = ks.CheckKeyComboSequenceIndex("")
	assert.ErrorIs(t, err, combo.ErrEmptyCombo)
}

func TestCheckKey(t *testing.T) {
	ks := newTest(t)

	assert.False(t, ks.CheckKey("a"))

	ks.PressKey("a", "keya")
	ks.PressKey("a", "keya")
	assert.True(t, ks.CheckKey("a"))
	assert.True(t, ks.CheckKey("KeyA"))
	assert.Equal(t, []string{"a"}, ks.PressedKeys())

	ks.ReleaseKey("a")
	assert.False(t, ks.CheckKey("a"))
	assert.Empty(t, ks.PressedKeys())
}

func TestCheckKeyCombo(t *testing.T) {
	ks := newTest(t)

	assert.False(t, checkCombo(t, ks, "a>b"))

	ks.PressKey("a")
	ks.PressKey("b")
	assert.True(t, checkCombo(t, ks, "a>b"))

	ks.ReleaseKey("a")
	assert.False(t, checkCombo(t, ks, "a>b"))
}

func TestReleasingFinalChordFiresOnce(t *testing.T) {
	ks := newTest(t)

	r := newRecorder[combo.Event]()
	require.NoError(t, ks.BindKeyCombo("a+b+c", r.h))

	ks.PressKey("a")
	ks.PressKey("b")
	ks.PressKey("c")
	require.True(t, checkCombo(t, ks, "a+b+c"))

	ks.ReleaseKey("b")
	assert.Len(t, r.released, 1)
	assert.Equal(t, "b", r.released[0].FinalKeyEvent.Key)
	assert.False(t, checkCombo(t, ks, "a+b+c"))

	ks.ReleaseKey("a")
	ks.ReleaseKey("c")
	assert.Equal(t, [3]int{1, 1, 1}, r.counts())
}

func TestCheckKeyComboSequenceIndex(t *testing.T) {
	ks := newTest(t)
	const raw = "a>b,c+d,e,f>g"

	idx := func() int { return sequenceIndex(t, ks, raw) }

	assert.Equal(t, 0, idx())

	ks.PressKey("a")
	ks.PressKey("b")
	assert.Equal(t, 0, idx(), "step complete but still held")
	ks.ReleaseKey("a")
	assert.Equal(t, 0, idx())
	ks.ReleaseKey("b")
	assert.Equal(t, 1, idx())

	ks.PressKey("c")
	ks.PressKey("d")
	assert.Equal(t, 1, idx())
	ks.ReleaseKey("c")
	ks.ReleaseKey("d")
	assert.Equal(t, 2, idx())

	ks.Tap("e")
	assert.Equal(t, 3, idx())

	ks.PressKey("f")
	ks.PressKey("g")
	assert.Equal(t, 4, idx())
	assert.True(t, checkCombo(t, ks, raw))

	ks.ReleaseKey("g")
	assert.Equal(t, 0, idx())
	ks.ReleaseKey("f")
	assert.Equal(t, 0, idx())
}

func TestSequenceTimeoutVoidsProgress(t *testing.T) {
	clock := inputtest.NewClock(time.Unix(100, 0))
	opts := input.DefaultOptions()
	opts.Now = clock.Now
	opts.SequenceTimeout = 500 * time.Millisecond
	ks := inputtest.New(opts)

	var calls int
	require.NoError(t, ks.BindKeyCombo("a,b", handler.Fn(func(combo.Event) { calls++ })))

	ks.PressKey("a")
	clock.Advance(time.Second)
	ks.ReleaseKey("a")
	ks.Tap("b")
	assert.Equal(t, 0, calls)

	ks.PressKey("a")
	clock.Advance(100 * time.Millisecond)
	ks.ReleaseKey("a")
	ks.Tap("b")
	assert.Equal(t, 1, calls)
}

func TestSelfReleasingKeys(t *testing.T) {
	opts := input.DefaultOptions()
	opts.SelfReleasingKeys = []string{"Meta", "z"}
	ks := inputtest.New(opts)

	var released []string
	ks.BindKeys([]string{"meta", "z"}, &handler.Callbacks[key.Event]{
		OnReleased: func(e key.Event) { released = append(released, e.Key) },
	})

	ks.PressKey("meta")
	ks.PressKey("z")
	assert.True(t, checkCombo(t, ks, "meta>z"))

	ks.ReleaseKey("meta")
	assert.Empty(t, ks.PressedKeys())
	assert.False(t, ks.CheckKey("z"))
	assert.False(t, checkCombo(t, ks, "meta>z"))
	assert.ElementsMatch(t, []string{"meta", "z"}, released)
	assert.Equal(t, uint64(1), ks.Metrics().Snapshot().ForcedReleases)
}

func TestEscapedOperatorKey(t *testing.T) {
	ks := newTest(t)

	r := newRecorder[combo.Event]()
	require.NoError(t, ks.BindKeyCombo(`a+\+`, r.h))

	ks.PressKey("a")
	ks.PressKey("+")

	assert.Len(t, r.pressed, 1)
}

func TestUnexpectedKeyBetweenSequences(t *testing.T) {
	ks := newTest(t)

	var calls int
	require.NoError(t, ks.BindKeyCombo("a>b,c>d", handler.Fn(func(combo.Event) { calls++ })))

	ks.PressKey("a")
	ks.PressKey("b")
	ks.ReleaseKey("a")
	ks.ReleaseKey("b")

	ks.Tap("x")

	ks.PressKey("c")
	ks.PressKey("d")
	ks.ReleaseKey("c")
	ks.ReleaseKey("d")

	assert.Equal(t, 0, calls)
}

func TestBatchedEvaluation(t *testing.T) {
	sched := &inputtest.ManualScheduler{}
	opts := input.DefaultOptions()
	opts.Scheduler = sched
	ks := inputtest.New(opts)

	var keyCalls int
	ks.BindKey("a", handler.Fn(func(key.Event) { keyCalls++ }))
	r := newRecorder[combo.Event]()
	require.NoError(t, ks.BindKeyCombo("a+b", r.h))

	ks.PressKey("a")
	ks.PressKey("b")
	assert.Equal(t, 1, keyCalls, "key handlers fire synchronously")
	assert.Equal(t, [3]int{0, 0, 0}, r.counts())
	assert.Equal(t, 1, sched.Pending(), "one evaluation for the burst")

	sched.Tick()
	assert.Equal(t, [3]int{1, 2, 0}, r.counts())
	assert.Equal(t, "a", r.pressed[0].FinalKeyEvent.Key)

	ks.ReleaseKey("a")
	ks.ReleaseKey("b")
	sched.Tick()
	assert.Equal(t, [3]int{1, 2, 1}, r.counts())

	assert.Equal(t, uint64(2), ks.Metrics().Snapshot().ComboEvaluations)
}

func TestBatchedEvaluationSeesOnlyFinalSnapshot(t *testing.T) {
	sched := &inputtest.ManualScheduler{}
	opts := input.DefaultOptions()
	opts.Scheduler = sched
	ks := inputtest.New(opts)

	var calls int
	require.NoError(t, ks.BindKeyCombo("a", handler.Fn(func(combo.Event) { calls++ })))

	ks.Tap("a")
	sched.Tick()

	assert.Equal(t, 0, calls)
	assert.Equal(t, 0, sched.Pending())
}

func TestHandlerPanicIsIsolated(t *testing.T) {
	var logs bytes.Buffer
	opts := input.DefaultOptions()
	opts.Logger = zerolog.New(&logs)
	ks := inputtest.New(opts)

	var keyCalls, comboCalls int
	ks.BindKey("a", handler.Fn(func(key.Event) { panic("key boom") }))
	ks.BindKey("a", handler.Fn(func(key.Event) { keyCalls++ }))
	require.NoError(t, ks.BindKeyCombo("a", handler.Fn(func(combo.Event) { panic("combo boom") })))
	require.NoError(t, ks.BindKeyCombo("a", handler.Fn(func(combo.Event) { comboCalls++ })))

	require.NotPanics(t, func() { ks.PressKey("a") })

	assert.Equal(t, 1, keyCalls)
	assert.Equal(t, 1, comboCalls)
	assert.True(t, ks.CheckKey("a"))
	assert.Equal(t, uint64(2), ks.Metrics().Snapshot().HandlerPanics)
	assert.Contains(t, logs.String(), "handler failed")
	assert.Contains(t, logs.String(), "combo boom")
}

func TestInactiveIgnoresPresses(t *testing.T) {
	ks := newTest(t)

	ks.Deactivate()
	assert.False(t, ks.IsActive())
	ks.PressKey("a")
	assert.False(t, ks.CheckKey("a"))

	ks.Activate()
	ks.PressKey("a")
	assert.True(t, ks.CheckKey("a"))

	ks.Deactivate()
	ks.ReleaseKey("a")
	assert.False(t, ks.CheckKey("a"), "releases are processed while inactive")
	assert.Equal(t, uint64(1), ks.Metrics().Snapshot().IgnoredPresses)
}

func TestKeyRemap(t *testing.T) {
	opts := input.DefaultOptions()
	opts.KeyRemap = map[string]string{"Control": "ctrl", "keyq": "keyw"}
	ks := inputtest.New(opts)

	var calls int
	require.NoError(t, ks.BindKeyCombo("ctrl+keyw", handler.Fn(func(combo.Event) { calls++ })))

	ks.PressKey("Control")
	ks.PressKey("q", "KeyQ")

	assert.Equal(t, 1, calls)
	assert.Equal(t, []string{"ctrl", "q"}, ks.PressedKeys())
}

func TestMapComboEvent(t *testing.T) {
	opts := input.DefaultOptions()
	opts.MapComboEvent = func(presses [][]*key.Press, final *key.Press) any {
		return final.Key + "@" + string(rune('0'+len(presses)))
	}
	ks := inputtest.New(opts)

	var got combo.Event
	require.NoError(t, ks.BindKeyCombo("a,b", handler.Fn(func(e combo.Event) { got = e })))

	ks.Tap("a")
	ks.PressKey("b")

	assert.Equal(t, "b@2", got.Props)
}

func TestUnbindEnvironment(t *testing.T) {
	ks := newTest(t)

	ks.UnbindEnvironment()
	ks.PressKey("a")
	assert.False(t, ks.CheckKey("a"))

	ks.UnbindEnvironment()
}

func TestBindEnvironmentReplacesBinders(t *testing.T) {
	ks := newTest(t)

	var press func(key.Event)
	unbound := 0
	ks.BindEnvironment(input.Options{
		OnKeyPressed: func(fn func(key.Event)) func() {
			press = fn
			return func() { unbound++ }
		},
		SelfReleasingKeys: []string{"meta"},
	})

	ks.PressKey("a")
	assert.False(t, ks.CheckKey("a"), "previous environment is unbound")

	press(key.NewEvent("b"))
	assert.True(t, ks.CheckKey("b"))

	ks.UnbindEnvironment()
	assert.Equal(t, 1, unbound)
}

func TestHookConsumesEvent(t *testing.T) {
	ks := newTest(t)

	ks.Hooks().Register(input.FilterHook{
		KeyEventFilter: func(e *key.Event, phase input.Phase) bool {
			return e.Key == "x" && phase == input.PhasePressed
		},
	})
	var rewritten []string
	ks.Hooks().RegisterWithPriority(input.FuncHook{
		PreKeyEventFunc: func(e *key.Event, _ input.Phase) bool {
			if e.Key == "y" {
				e.Key = "z"
			}
			return false
		},
		PostKeyEventFunc: func(e key.Event, _ input.Phase) {
			rewritten = append(rewritten, e.Key)
		},
	}, input.HookPriorityHigh)

	ks.PressKey("x")
	ks.PressKey("y")

	assert.Equal(t, []string{"z"}, ks.PressedKeys())
	assert.Equal(t, []string{"z"}, rewritten)
	assert.Equal(t, uint64(1), ks.Metrics().Snapshot().HookConsumptions)
}

func TestSequenceTimeoutSetting(t *testing.T) {
	ks := newTest(t)
	assert.Equal(t, input.DefaultSequenceTimeout, ks.SequenceTimeout())

	ks.SetSequenceTimeout(2 * time.Second)
	assert.Equal(t, 2*time.Second, ks.SequenceTimeout())

	ks.SetSequenceTimeout(0)
	assert.Equal(t, input.DefaultSequenceTimeout, ks.SequenceTimeout())
}
