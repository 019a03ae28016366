package workflow

import "github.com/mpataki/playcheck/internal/models"

// State is a snapshot of one workflow session.
type State struct {
	Step             models.Step
	PlaygroundImages []models.EncodedImage
	ToyImages        []models.EncodedImage
	Description      string

	// Submission is set once a submit succeeds; Step is Result from then on.
	Submission *models.Submission

	RequestStatus models.RequestStatus
	LastError     string

	// Suggestions is non-nil only while the suggestions overlay is open.
	Suggestions *SuggestionsView
}

// Images returns the sequence captured for slot.
func (s State) Images(slot models.Slot) []models.EncodedImage {
	if slot == models.SlotToy {
		return s.ToyImages
	}
	return s.PlaygroundImages
}

func (s State) clone() State {
	out := s
	out.PlaygroundImages = append([]models.EncodedImage(nil), s.PlaygroundImages...)
	out.ToyImages = append([]models.EncodedImage(nil), s.ToyImages...)
	if s.Suggestions != nil {
		view := *s.Suggestions
		out.Suggestions = &view
	}
	return out
}

type SuggestionsPhase string

const (
	PhaseLoading SuggestionsPhase = "loading"
	PhaseReady   SuggestionsPhase = "ready"
	PhaseError   SuggestionsPhase = "error"
)

// SuggestionsView is the state of the suggestions overlay.
type SuggestionsView struct {
	Phase SuggestionsPhase
	Data  *models.Suggestions
	// IsRegenerating is true only while a regenerate call is outstanding.
	IsRegenerating bool
	// ReloadPending is true between a successful regenerate and its reload.
	ReloadPending bool
	// Err is the message of the last failed fetch or regenerate.
	Err string
}
