// Package keymap binds named combo bindings onto a dispatcher.
//
// A Keymap is a named collection of bindings, each mapping a combo to an
// action name. Registering a keymap on a Registry binds every combo onto the
// dispatcher; registering a keymap with the same name again replaces the old
// bindings, which is how configuration reloads are applied. Each bound
// binding gets a uuid so it can be unbound on its own.
//
// # Usage
//
//	reg := keymap.NewRegistry(ks)
//	reg.Handle("save", func(inv keymap.Invocation) {
//	    save()
//	})
//
//	km := keymap.NewKeymap("default").
//	    Add("ctrl+s", "save").
//	    AddBinding(keymap.NewBinding("ctrl+k > ctrl+c", "comment").WithPriority(10))
//	if _, err := reg.Register(km); err != nil {
//	    return err
//	}
package keymap
