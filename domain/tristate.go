package domain

// TriState is a three-valued boolean for facts a remote service may not
// have reported yet, e.g. whether an actor is followed by me.
type TriState int

const (
	TriUnknown TriState = iota
	TriTrue
	TriFalse
)

func TriStateFromBool(b bool) TriState {
	if b {
		return TriTrue
	}
	return TriFalse
}

// ToBool coerces the tri-state to a plain boolean, substituting
// unknownValue when the fact was never reported.
func (t TriState) ToBool(unknownValue bool) bool {
	switch t {
	case TriTrue:
		return true
	case TriFalse:
		return false
	default:
		return unknownValue
	}
}

func (t TriState) Known() bool {
	return t != TriUnknown
}

func (t TriState) String() string {
	switch t {
	case TriTrue:
		return "true"
	case TriFalse:
		return "false"
	default:
		return "unknown"
	}
}
