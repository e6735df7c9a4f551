package script

import (
	"strings"

	"github.com/rs/zerolog"
	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/keystrokes/internal/input"
	"github.com/dshills/keystrokes/internal/input/combo"
	"github.com/dshills/keystrokes/internal/input/handler"
	"github.com/dshills/keystrokes/internal/input/key"
	"github.com/dshills/keystrokes/internal/keymap"
)

// ModuleName is the global table scripts use.
const ModuleName = "keystrokes"

// binding is a handler created by a script.
type binding struct {
	name  string
	combo bool
	key   input.KeyHandler
	cb    input.ComboHandler
}

func (b *binding) unbind(d Dispatcher) error {
	if b.combo {
		return d.UnbindKeyCombo(b.name, b.cb)
	}
	d.UnbindKey(b.name, b.key)
	return nil
}

func (e *Engine) module() *lua.LTable {
	funcs := map[string]lua.LGFunction{
		"bind_combo":     e.bindCombo,
		"unbind_combo":   e.unbindCombo,
		"bind_key":       e.bindKey,
		"unbind_key":     e.unbindKey,
		"check_key":      e.checkKey,
		"check_combo":    e.checkCombo,
		"sequence_index": e.sequenceIndex,
		"pressed_keys":   e.pressedKeys,
		"normalize":      normalize,
		"parse":          parse,
		"log":            e.log,
	}
	if e.keymaps != nil {
		funcs["action"] = e.action
	}
	return e.L.SetFuncs(e.L.NewTable(), funcs)
}

// callbackSet reads a handler argument: either a function, run on every
// press, or a table with pressed, pressed_repeat and released functions.
type callbackSet struct {
	pressed, repeat, released *lua.LFunction
}

func checkCallbacks(L *lua.LState, n int) callbackSet {
	switch v := L.Get(n).(type) {
	case *lua.LFunction:
		return callbackSet{repeat: v}
	case *lua.LTable:
		cs := callbackSet{
			pressed:  optFunction(L, v, "pressed"),
			repeat:   optFunction(L, v, "pressed_repeat"),
			released: optFunction(L, v, "released"),
		}
		if cs.pressed == nil && cs.repeat == nil && cs.released == nil {
			L.ArgError(n, "table has no pressed, pressed_repeat or released function")
		}
		return cs
	default:
		L.TypeError(n, lua.LTFunction)
		return callbackSet{}
	}
}

func optFunction(L *lua.LState, tbl *lua.LTable, field string) *lua.LFunction {
	switch v := L.GetField(tbl, field).(type) {
	case *lua.LFunction:
		return v
	case *lua.LNilType:
		return nil
	default:
		L.RaiseError("%s must be a function, got %s", field, v.Type())
		return nil
	}
}

// wrap builds a handler whose callbacks convert the event with toLua.
func wrap[E any](e *Engine, what string, cs callbackSet, toLua func(*lua.LState, E) lua.LValue) *handler.Callbacks[E] {
	fn := func(lf *lua.LFunction) func(E) {
		if lf == nil {
			return nil
		}
		return func(ev E) {
			e.call(what, lf, toLua(e.L, ev))
		}
	}
	return &handler.Callbacks[E]{
		OnPressed:           fn(cs.pressed),
		OnPressedWithRepeat: fn(cs.repeat),
		OnReleased:          fn(cs.released),
	}
}

func (e *Engine) track(b *binding) int {
	e.nextID++
	e.bindings[e.nextID] = b
	return e.nextID
}

// bind_combo(combo, fn|{pressed, pressed_repeat, released}) -> id
func (e *Engine) bindCombo(L *lua.LState) int {
	raw := L.CheckString(1)
	cs := checkCallbacks(L, 2)

	h := wrap(e, raw, cs, comboEventTable)
	if err := e.dispatcher.BindKeyCombo(raw, h); err != nil {
		L.RaiseError("bind_combo: %v", err)
		return 0
	}
	normalized, _ := combo.Normalize(raw)
	L.Push(lua.LNumber(e.track(&binding{name: normalized, combo: true, cb: h})))
	return 1
}

// bind_key(key, fn|{pressed, pressed_repeat, released}) -> id
func (e *Engine) bindKey(L *lua.LState) int {
	name := strings.ToLower(L.CheckString(1))
	cs := checkCallbacks(L, 2)

	h := wrap(e, name, cs, keyEventTable)
	e.dispatcher.BindKey(name, h)
	L.Push(lua.LNumber(e.track(&binding{name: name, key: h})))
	return 1
}

// unbind_combo(combo, id?) removes one script handler, or all of the
// script's handlers for the combo when id is omitted.
func (e *Engine) unbindCombo(L *lua.LState) int {
	raw := L.CheckString(1)
	normalized, err := combo.Normalize(raw)
	if err != nil {
		L.RaiseError("unbind_combo: %v", err)
		return 0
	}
	e.unbindMatching(L, func(b *binding) bool {
		return b.combo && b.name == normalized
	})
	return 0
}

// unbind_key(key, id?)
func (e *Engine) unbindKey(L *lua.LState) int {
	name := strings.ToLower(L.CheckString(1))
	e.unbindMatching(L, func(b *binding) bool {
		return !b.combo && b.name == name
	})
	return 0
}

func (e *Engine) unbindMatching(L *lua.LState, match func(*binding) bool) {
	if L.GetTop() >= 2 {
		id := L.CheckInt(2)
		b, ok := e.bindings[id]
		if !ok || !match(b) {
			return
		}
		if err := b.unbind(e.dispatcher); err != nil {
			L.RaiseError("%v", err)
		}
		delete(e.bindings, id)
		return
	}
	for id, b := range e.bindings {
		if !match(b) {
			continue
		}
		if err := b.unbind(e.dispatcher); err != nil {
			L.RaiseError("%v", err)
		}
		delete(e.bindings, id)
	}
}

// check_key(key) -> bool
func (e *Engine) checkKey(L *lua.LState) int {
	L.Push(lua.LBool(e.dispatcher.CheckKey(L.CheckString(1))))
	return 1
}

// check_combo(combo) -> bool
func (e *Engine) checkCombo(L *lua.LState) int {
	ok, err := e.dispatcher.CheckKeyCombo(L.CheckString(1))
	if err != nil {
		L.RaiseError("check_combo: %v", err)
		return 0
	}
	L.Push(lua.LBool(ok))
	return 1
}

// sequence_index(combo) -> number
func (e *Engine) sequenceIndex(L *lua.LState) int {
	idx, err := e.dispatcher.CheckKeyComboSequenceIndex(L.CheckString(1))
	if err != nil {
		L.RaiseError("sequence_index: %v", err)
		return 0
	}
	L.Push(lua.LNumber(idx))
	return 1
}

// pressed_keys() -> {key...}
func (e *Engine) pressedKeys(L *lua.LState) int {
	L.Push(stringList(L, e.dispatcher.PressedKeys()))
	return 1
}

// normalize(combo) -> string | nil, err
func normalize(L *lua.LState) int {
	s, err := combo.Normalize(L.CheckString(1))
	if err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	L.Push(lua.LString(s))
	return 1
}

// parse(combo) -> {{{key...}...}...} | nil, err
func parse(L *lua.LState) int {
	c, err := combo.Parse(L.CheckString(1))
	if err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	seqs := L.NewTable()
	for _, seq := range c {
		units := L.NewTable()
		for _, unit := range seq {
			units.Append(stringList(L, unit))
		}
		seqs.Append(units)
	}
	L.Push(seqs)
	return 1
}

// log(level, msg) or log(msg)
func (e *Engine) log(L *lua.LState) int {
	level, msg := "info", ""
	if L.GetTop() >= 2 {
		level = L.CheckString(1)
		msg = L.CheckString(2)
	} else {
		msg = L.CheckString(1)
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel || lvl > zerolog.ErrorLevel {
		lvl = zerolog.InfoLevel
	}
	e.logger.WithLevel(lvl).Str("source", "script").Msg(msg)
	return 0
}

// action(name, fn) registers fn as the handler of a keymap action.
func (e *Engine) action(L *lua.LState) int {
	name := L.CheckString(1)
	if L.Get(2) == lua.LNil {
		e.keymaps.Handle(name, nil)
		return 0
	}
	fn := L.CheckFunction(2)
	e.keymaps.Handle(name, func(inv keymap.Invocation) {
		e.call(name, fn, invocationTable(e.L, inv))
	})
	return 0
}

func stringList(L *lua.LState, items []string) *lua.LTable {
	tbl := L.CreateTable(len(items), 0)
	for _, s := range items {
		tbl.Append(lua.LString(s))
	}
	return tbl
}

func keyEventTable(L *lua.LState, ev key.Event) lua.LValue {
	tbl := L.NewTable()
	L.SetField(tbl, "key", lua.LString(ev.Key))
	L.SetField(tbl, "aliases", stringList(L, ev.Aliases))
	return tbl
}

func comboEventTable(L *lua.LState, ev combo.Event) lua.LValue {
	tbl := L.NewTable()
	L.SetField(tbl, "combo", lua.LString(ev.Combo))
	L.SetField(tbl, "final", keyEventTable(L, ev.FinalKeyEvent))
	keys := L.CreateTable(len(ev.KeyEvents), 0)
	for _, ke := range ev.KeyEvents {
		keys.Append(keyEventTable(L, ke))
	}
	L.SetField(tbl, "keys", keys)
	return tbl
}

func invocationTable(L *lua.LState, inv keymap.Invocation) lua.LValue {
	tbl := comboEventTable(L, inv.Event).(*lua.LTable)
	L.SetField(tbl, "action", lua.LString(inv.Binding.Action))
	L.SetField(tbl, "keymap", lua.LString(inv.Keymap))
	L.SetField(tbl, "released", lua.LBool(inv.Released))
	return tbl
}
