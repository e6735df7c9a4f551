package input

// Phase tells whether a key event is a press or a release.
type Phase uint8

const (
	// PhasePressed marks a key press, including repeats.
	PhasePressed Phase = iota
	// PhaseReleased marks a key release.
	PhaseReleased
)

// String returns a string representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhasePressed:
		return "pressed"
	case PhaseReleased:
		return "released"
	default:
		return "unknown"
	}
}
