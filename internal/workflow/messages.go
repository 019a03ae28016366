package workflow

import "github.com/mpataki/playcheck/internal/models"

// token ties an async result to the controller state it was issued from.
type token struct {
	session string
	seq     uint64
}

type submitDoneMsg struct {
	token
	submission *models.Submission
	err        error
}

type feedbackLoadedMsg struct {
	token
	submission *models.Submission
	err        error
}

type suggestionsLoadedMsg struct {
	token
	fetch       uint64
	suggestions *models.Suggestions
	err         error
}

type regenerateDoneMsg struct {
	token
	view uint64
	err  error
}

type reloadDueMsg struct {
	token
}

// Owns reports whether msg is a result issued by this controller, stale or
// not. Models use it to route messages.
func (c *Controller) Owns(msg any) bool {
	var t token
	switch m := msg.(type) {
	case submitDoneMsg:
		t = m.token
	case feedbackLoadedMsg:
		t = m.token
	case suggestionsLoadedMsg:
		t = m.token
	case regenerateDoneMsg:
		t = m.token
	case reloadDueMsg:
		t = m.token
	default:
		return false
	}
	return t.session == c.session
}

// IsResult reports whether msg is any workflow result message, from any
// session.
func IsResult(msg any) bool {
	switch msg.(type) {
	case submitDoneMsg, feedbackLoadedMsg, suggestionsLoadedMsg, regenerateDoneMsg, reloadDueMsg:
		return true
	}
	return false
}
