package input

import (
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"github.com/dshills/keystrokes/internal/input/key"
)

// Hook intercepts key events after normalization and before any handler
// sees them.
type Hook interface {
	// PreKeyEvent is called before a key event is dispatched. The event may
	// be modified in place. Return true to consume the event.
	PreKeyEvent(event *key.Event, phase Phase) bool

	// PostKeyEvent is called after the per-key handlers ran for the event.
	PostKeyEvent(event key.Event, phase Phase)
}

// HookPriority defines the execution order for hooks.
// Lower values execute first.
type HookPriority int

const (
	// HookPriorityHighest runs before all other hooks.
	HookPriorityHighest HookPriority = -1000
	// HookPriorityHigh runs early in the hook chain.
	HookPriorityHigh HookPriority = -100
	// HookPriorityNormal is the default priority.
	HookPriorityNormal HookPriority = 0
	// HookPriorityLow runs late in the hook chain.
	HookPriorityLow HookPriority = 100
	// HookPriorityLowest runs after all other hooks.
	HookPriorityLowest HookPriority = 1000
)

// HookID uniquely identifies a registered hook.
type HookID uint64

// HookRegistration holds metadata about a registered hook.
type HookRegistration struct {
	ID       HookID
	Name     string
	Priority HookPriority
	Hook     Hook
}

// HookManager manages hooks with priorities and named registration.
// It is safe for concurrent use.
type HookManager struct {
	mu      sync.RWMutex
	hooks   []HookRegistration
	nextID  HookID
	sorted  bool
	enabled bool
}

// NewHookManager creates a new hook manager.
func NewHookManager() *HookManager {
	return &HookManager{
		sorted:  true,
		enabled: true,
	}
}

// Register adds a hook with default priority.
func (m *HookManager) Register(hook Hook) HookID {
	return m.RegisterWithOptions(hook, "", HookPriorityNormal)
}

// RegisterWithPriority adds a hook with the given priority.
func (m *HookManager) RegisterWithPriority(hook Hook, priority HookPriority) HookID {
	return m.RegisterWithOptions(hook, "", priority)
}

// RegisterNamed adds a hook with a name for later reference.
func (m *HookManager) RegisterNamed(hook Hook, name string) HookID {
	return m.RegisterWithOptions(hook, name, HookPriorityNormal)
}

// RegisterWithOptions adds a hook with all options specified. Registering a
// name that is already taken replaces the earlier hook.
func (m *HookManager) RegisterWithOptions(hook Hook, name string, priority HookPriority) HookID {
	m.mu.Lock()
	defer m.mu.Unlock()

	if name != "" {
		m.hooks = slices.DeleteFunc(m.hooks, func(r HookRegistration) bool {
			return r.Name == name
		})
	}

	m.nextID++
	m.hooks = append(m.hooks, HookRegistration{
		ID:       m.nextID,
		Name:     name,
		Priority: priority,
		Hook:     hook,
	})
	m.sorted = false
	return m.nextID
}

// Unregister removes a hook by ID.
func (m *HookManager) Unregister(id HookID) bool {
	return m.remove(func(r HookRegistration) bool { return r.ID == id })
}

// UnregisterByName removes a hook by name.
func (m *HookManager) UnregisterByName(name string) bool {
	if name == "" {
		return false
	}
	return m.remove(func(r HookRegistration) bool { return r.Name == name })
}

func (m *HookManager) remove(match func(HookRegistration) bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.hooks)
	m.hooks = slices.DeleteFunc(m.hooks, match)
	return len(m.hooks) != n
}

// Get returns a hook registration by ID.
func (m *HookManager) Get(id HookID) (HookRegistration, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i := slices.IndexFunc(m.hooks, func(r HookRegistration) bool { return r.ID == id })
	if i < 0 {
		return HookRegistration{}, false
	}
	return m.hooks[i], true
}

// SetEnabled enables or disables all hooks.
func (m *HookManager) SetEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = enabled
}

// IsEnabled returns whether hooks are enabled.
func (m *HookManager) IsEnabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.enabled
}

// Count returns the number of registered hooks.
func (m *HookManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.hooks)
}

// List returns all hook registrations in execution order.
func (m *HookManager) List() []HookRegistration {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensureSorted()
	return slices.Clone(m.hooks)
}

// ensureSorted sorts hooks by priority if needed. Callers hold mu.
func (m *HookManager) ensureSorted() {
	if m.sorted {
		return
	}
	slices.SortStableFunc(m.hooks, func(a, b HookRegistration) int {
		return int(a.Priority) - int(b.Priority)
	})
	m.sorted = true
}

// snapshot returns the hooks to run, in priority order, or nil when hooks
// are disabled. Hooks run outside the lock so they may register others.
func (m *HookManager) snapshot() []Hook {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.enabled || len(m.hooks) == 0 {
		return nil
	}
	m.ensureSorted()

	hooks := make([]Hook, len(m.hooks))
	for i := range m.hooks {
		hooks[i] = m.hooks[i].Hook
	}
	return hooks
}

// RunPreKeyEvent runs all PreKeyEvent hooks in priority order.
// Returns true if any hook consumed the event.
func (m *HookManager) RunPreKeyEvent(event *key.Event, phase Phase) bool {
	for _, hook := range m.snapshot() {
		if hook.PreKeyEvent(event, phase) {
			return true
		}
	}
	return false
}

// RunPostKeyEvent runs all PostKeyEvent hooks in priority order.
func (m *HookManager) RunPostKeyEvent(event key.Event, phase Phase) {
	for _, hook := range m.snapshot() {
		hook.PostKeyEvent(event, phase)
	}
}

// Clear removes all hooks.
func (m *HookManager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = nil
	m.sorted = true
}

// BaseHook provides a default implementation of the Hook interface.
// Embed this in custom hooks to only implement the methods you need.
type BaseHook struct{}

// PreKeyEvent is a no-op that does not consume events.
func (BaseHook) PreKeyEvent(*key.Event, Phase) bool {
	return false
}

// PostKeyEvent is a no-op.
func (BaseHook) PostKeyEvent(key.Event, Phase) {}

// FuncHook wraps functions into a Hook.
type FuncHook struct {
	PreKeyEventFunc  func(*key.Event, Phase) bool
	PostKeyEventFunc func(key.Event, Phase)
}

// PreKeyEvent calls the PreKeyEventFunc if set.
func (h FuncHook) PreKeyEvent(event *key.Event, phase Phase) bool {
	if h.PreKeyEventFunc != nil {
		return h.PreKeyEventFunc(event, phase)
	}
	return false
}

// PostKeyEvent calls the PostKeyEventFunc if set.
func (h FuncHook) PostKeyEvent(event key.Event, phase Phase) {
	if h.PostKeyEventFunc != nil {
		h.PostKeyEventFunc(event, phase)
	}
}

// LoggingHook logs every key event at debug level.
// Useful for debugging and development.
type LoggingHook struct {
	BaseHook
	Logger zerolog.Logger
}

// PreKeyEvent logs the key event.
func (h LoggingHook) PreKeyEvent(event *key.Event, phase Phase) bool {
	h.Logger.Debug().
		Str("key", event.Key).
		Strs("aliases", event.Aliases).
		Stringer("phase", phase).
		Msg("key event")
	return false
}

// FilterHook consumes the key events its predicate selects.
type FilterHook struct {
	BaseHook

	// KeyEventFilter returns true to block a key event.
	KeyEventFilter func(*key.Event, Phase) bool
}

// PreKeyEvent applies the key event filter.
func (h FilterHook) PreKeyEvent(event *key.Event, phase Phase) bool {
	if h.KeyEventFilter != nil {
		return h.KeyEventFilter(event, phase)
	}
	return false
}
