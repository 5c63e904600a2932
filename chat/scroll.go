package chat

// DefaultScrollThreshold is the distance from the bottom, in whatever
// unit the view measures, that still counts as "at the bottom"
const DefaultScrollThreshold = 100

// ScrollState decides whether new transcript lines should pull the view
// down. It starts at the bottom.
type ScrollState struct {
	threshold  int
	nearBottom bool
}

// NewScrollState returns a state with the given threshold. A threshold
// below 1 uses DefaultScrollThreshold.
func NewScrollState(threshold int) *ScrollState {
	if threshold < 1 {
		threshold = DefaultScrollThreshold
	}
	return &ScrollState{threshold: threshold, nearBottom: true}
}

// Observe records a scroll position
func (s *ScrollState) Observe(offset, contentHeight, viewportHeight int) {
	s.nearBottom = contentHeight-offset-viewportHeight < s.threshold
}

// NearBottom reports whether the view is within the threshold of the end
func (s *ScrollState) NearBottom() bool {
	return s.nearBottom
}

// ShowJumpToBottom reports whether the "scroll down" hint should be shown
func (s *ScrollState) ShowJumpToBottom() bool {
	return !s.nearBottom
}

// OnTranscriptGrowth reports whether the view should follow new entries
func (s *ScrollState) OnTranscriptGrowth() bool {
	return s.nearBottom
}

// JumpToBottom is called when the user asks to go to the end
func (s *ScrollState) JumpToBottom() {
	s.nearBottom = true
}
