package workflow

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mpataki/playcheck/internal/models"
)

// OpenSuggestions shows the suggestions overlay for the current submission
// and fetches its suggestions. Nothing is cached between openings.
func (c *Controller) OpenSuggestions() tea.Cmd {
	if c.state.Step != models.StepResult || c.state.Submission == nil ||
		c.state.Suggestions != nil || c.busy() {
		return nil
	}
	c.viewSeq++
	c.pendingReloads = 0
	c.state.RequestStatus = models.RequestIdle
	c.state.LastError = ""
	c.state.Suggestions = &SuggestionsView{Phase: PhaseLoading}
	return c.fetchSuggestions()
}

// CloseSuggestions discards the overlay. Any outstanding fetch, regenerate
// or scheduled reload for it is ignored when it resolves.
func (c *Controller) CloseSuggestions() {
	if c.state.Suggestions == nil {
		return
	}
	c.state.Suggestions = nil
	c.viewSeq++
	c.pendingReloads = 0
	if c.inflight == opRegenerate {
		c.inflight = opNone
		c.requestSeq++
	}
	c.state.RequestStatus = models.RequestIdle
	c.state.LastError = ""
}

func (c *Controller) fetchSuggestions() tea.Cmd {
	c.fetchSeq++
	t := token{session: c.session, seq: c.viewSeq}
	fetch := c.fetchSeq
	id := c.state.Submission.ID
	gw, ctx := c.gw, c.ctx
	return func() tea.Msg {
		s, err := gw.GetSuggestions(ctx, id)
		return suggestionsLoadedMsg{token: t, fetch: fetch, suggestions: s, err: err}
	}
}

func (c *Controller) handleSuggestionsLoaded(m suggestionsLoadedMsg) tea.Cmd {
	v := c.state.Suggestions
	if v == nil || m.session != c.session || m.seq != c.viewSeq || m.fetch != c.fetchSeq {
		c.dropStale(m, "suggestions")
		return nil
	}
	if m.err != nil {
		v.Phase = PhaseError
		v.Err = ErrorMessage(m.err)
		c.logger.Warn().Err(m.err).Msg("Loading suggestions failed")
		return nil
	}
	v.Phase = PhaseReady
	v.Data = m.suggestions
	v.Err = ""
	return nil
}

// CanRegenerate reports whether Regenerate would issue a request.
func (c *Controller) CanRegenerate() bool {
	v := c.state.Suggestions
	return v != nil && v.Phase != PhaseLoading && !v.IsRegenerating && !c.busy()
}

// Regenerate asks the backend to recompute the suggestions. Success only
// means generation started, so a single reload is scheduled after the
// reload delay; a failure is surfaced and schedules nothing.
func (c *Controller) Regenerate() tea.Cmd {
	if !c.CanRegenerate() {
		return nil
	}
	v := c.state.Suggestions
	t := c.issue(opRegenerate)
	v.IsRegenerating = true
	v.Err = ""
	view := c.viewSeq
	id := c.state.Submission.ID
	gw, ctx := c.gw, c.ctx
	return func() tea.Msg {
		err := gw.RegenerateSuggestions(ctx, id)
		return regenerateDoneMsg{token: t, view: view, err: err}
	}
}

func (c *Controller) handleRegenerateDone(m regenerateDoneMsg) tea.Cmd {
	v := c.state.Suggestions
	if v == nil || m.view != c.viewSeq || !c.settle(m.token, opRegenerate) {
		c.dropStale(m, "regenerate")
		return nil
	}
	v.IsRegenerating = false
	if m.err != nil {
		c.fail(opRegenerate, m.err)
		v.Err = c.state.LastError
		return nil
	}
	c.state.RequestStatus = models.RequestIdle
	c.pendingReloads++
	v.ReloadPending = true

	t := token{session: c.session, seq: c.viewSeq}
	return tea.Tick(c.reloadDelay, func(time.Time) tea.Msg {
		return reloadDueMsg{token: t}
	})
}

func (c *Controller) handleReloadDue(m reloadDueMsg) tea.Cmd {
	v := c.state.Suggestions
	if v == nil || m.session != c.session || m.seq != c.viewSeq {
		c.dropStale(m, "reload")
		return nil
	}
	if c.pendingReloads > 0 {
		c.pendingReloads--
	}
	v.ReloadPending = c.pendingReloads > 0
	v.Phase = PhaseLoading
	return c.fetchSuggestions()
}
