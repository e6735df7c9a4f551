// Package input dispatches key events to per-key handlers and key combos.
//
// The dispatcher, Keystrokes, receives raw press and release events from an
// environment (a terminal, a Linux input device, a test harness) through
// binder functions, and turns them into two kinds of callbacks:
//
//   - Key handlers, bound with BindKey, run synchronously on every press,
//     repeat and release of one key.
//   - Combo handlers, bound with BindKeyCombo, run when a combo such as
//     "ctrl+k,ctrl+s" is satisfied and again when it is released.
//
// # Active Keys
//
// The dispatcher keeps the held keys in the order they were pressed. That
// order is significant: combo units must become active one after another.
// CheckKey, CheckKeyCombo and CheckKeyComboSequenceIndex query this state
// without binding anything.
//
// # Batching
//
// Combo evaluation is deferred through a Scheduler. With ImmediateScheduler
// every event is evaluated on its own. With Loop, key events that arrive
// back to back are evaluated together against the latest active key set,
// which lets a chord reported as two separate events match as one.
//
// # Threading
//
// A Keystrokes is owned by one goroutine. Environments that report events on
// other goroutines go through Loop:
//
//	loop := input.NewLoop(64)
//	ks := input.New(loop.Bind(opts))
//	_ = ks.BindKeyCombo("ctrl+s", handler.Fn(func(e combo.Event) {
//	    save()
//	}))
//	go loop.Run(ctx)
//
// Callbacks that panic are recovered, logged and counted in Metrics; the
// remaining callbacks for the same event still run.
package input
