package key

// Press is an entry of the active key set: a key that is currently held,
// together with the most recent event reported for it.
type Press struct {
	// Key is the primary identifier of the held key.
	Key string

	// Aliases holds the alternate identifiers of the held key.
	Aliases map[string]struct{}

	// Event is the latest press event (initial or repeat) for the key.
	Event Event
}

// NewPress creates an active key entry from a normalized event.
func NewPress(e Event) *Press {
	aliases := make(map[string]struct{}, len(e.Aliases))
	for _, a := range e.Aliases {
		aliases[a] = struct{}{}
	}
	return &Press{
		Key:     e.Key,
		Aliases: aliases,
		Event:   e,
	}
}

// Matches reports whether id names the held key or one of its aliases.
func (p *Press) Matches(id string) bool {
	if p.Key == id {
		return true
	}
	_, ok := p.Aliases[id]
	return ok
}

// SameKey reports whether p and other share any identifier, meaning they
// describe the same logical key.
func (p *Press) SameKey(other *Press) bool {
	if other == nil {
		return false
	}
	if other.Matches(p.Key) {
		return true
	}
	for a := range p.Aliases {
		if other.Matches(a) {
			return true
		}
	}
	return false
}
