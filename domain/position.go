package domain

// TimelinePosition is an opaque pagination cursor. Only the adapter
// that issued a position may interpret it; no cross-adapter comparison
// is meaningful.
type TimelinePosition struct {
	Position string
}

// EmptyPosition is the distinguished absent-cursor value.
var EmptyPosition = TimelinePosition{}

func NewTimelinePosition(position string) TimelinePosition {
	return TimelinePosition{Position: position}
}

func (p TimelinePosition) IsEmpty() bool {
	return p.Position == ""
}
