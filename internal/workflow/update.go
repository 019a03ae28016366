package workflow

import (
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

var errEmptyResponse = errors.New("empty response from evaluation backend")

// Update applies an async result to the state and returns any follow-up
// command. Messages that are not workflow results, or that belong to another
// session, are ignored.
func (c *Controller) Update(msg tea.Msg) tea.Cmd {
	switch m := msg.(type) {
	case submitDoneMsg:
		return c.handleSubmitDone(m)
	case feedbackLoadedMsg:
		return c.handleFeedbackLoaded(m)
	case suggestionsLoadedMsg:
		return c.handleSuggestionsLoaded(m)
	case regenerateDoneMsg:
		return c.handleRegenerateDone(m)
	case reloadDueMsg:
		return c.handleReloadDue(m)
	}
	return nil
}

// Run executes cmd and every follow-up command synchronously until the
// workflow settles. It is for callers without a bubbletea program; it blocks
// through reload delays.
func (c *Controller) Run(cmd tea.Cmd) {
	for cmd != nil {
		msg := cmd()
		if msg == nil {
			return
		}
		cmd = c.Update(msg)
	}
}

func (c *Controller) dropStale(msg any, kind string) {
	c.logger.Debug().Str("kind", kind).Str("msg", fmt.Sprintf("%T", msg)).Msg("Ignoring stale result")
}
