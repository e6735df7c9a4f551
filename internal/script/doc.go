// Package script exposes the dispatcher to Lua scripts.
//
// Scripts run in a sandboxed gopher-lua state with only the base, table,
// string and math libraries. They reach the dispatcher through the global
// keystrokes table:
//
//	local id = keystrokes.bind_combo("ctrl+k > ctrl+c", function(ev)
//	    keystrokes.log("info", "comment " .. ev.final.key)
//	end)
//	keystrokes.bind_combo("shift+a", {
//	    pressed = function(ev) end,
//	    released = function(ev) end,
//	})
//	keystrokes.unbind_combo("ctrl+k > ctrl+c", id)
//	keystrokes.bind_key("a", function(ev) end)
//	if keystrokes.check_combo("ctrl+shift") then end
//	print(keystrokes.normalize("Ctrl + S"))
//
// When the engine is created with WithKeymap, keystrokes.action(name, fn)
// registers fn as the handler for keymap bindings naming that action.
//
// Script callbacks run on the dispatcher goroutine. A callback that raises
// an error or exceeds the execution timeout is logged and skipped.
package script
