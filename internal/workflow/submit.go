package workflow

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mpataki/playcheck/internal/models"
)

func (c *Controller) canSubmit() bool {
	return c.state.Step == models.StepDescribe &&
		!c.busy() &&
		len(c.state.PlaygroundImages) > 0 &&
		len(c.state.ToyImages) > 0 &&
		ValidDescription(c.state.Description)
}

// issue marks op as the one in-flight request and returns its token.
func (c *Controller) issue(op operation) token {
	c.requestSeq++
	c.inflight = op
	c.state.RequestStatus = models.RequestPending
	c.state.LastError = ""
	return token{session: c.session, seq: c.requestSeq}
}

// settle clears the in-flight request if t is its token.
func (c *Controller) settle(t token, op operation) bool {
	if t.session != c.session || t.seq != c.requestSeq || c.inflight != op {
		return false
	}
	c.inflight = opNone
	return true
}

func (c *Controller) fail(op operation, err error) {
	msg := ErrorMessage(err)
	c.state.RequestStatus = models.RequestFailed
	c.state.LastError = msg
	c.logger.Warn().Err(err).Stringer("op", op).Str("message", msg).Msg("Request failed")
}

// Submit sends the captured images and description for evaluation. It does
// nothing unless the session is on Describe with both slots filled, a valid
// description and no request in flight.
func (c *Controller) Submit() tea.Cmd {
	if !c.canSubmit() {
		return nil
	}
	t := c.issue(opSubmit)
	req := models.SubmitRequest{
		PlaygroundImages:    models.DataURLs(c.state.PlaygroundImages),
		ToyImages:           models.DataURLs(c.state.ToyImages),
		ActivityDescription: strings.TrimSpace(c.state.Description),
	}
	c.logger.Info().
		Int("playgroundImages", len(req.PlaygroundImages)).
		Int("toyImages", len(req.ToyImages)).
		Msg("Submitting")

	gw, ctx := c.gw, c.ctx
	return func() tea.Msg {
		sub, err := gw.SubmitDesign(ctx, req)
		return submitDoneMsg{token: t, submission: sub, err: err}
	}
}

func (c *Controller) handleSubmitDone(m submitDoneMsg) tea.Cmd {
	if !c.settle(m.token, opSubmit) {
		c.dropStale(m, "submit")
		return nil
	}
	if m.err == nil && m.submission == nil {
		m.err = errEmptyResponse
	}
	if m.err != nil {
		c.fail(opSubmit, m.err)
		return nil
	}
	c.state.Submission = m.submission
	c.state.RequestStatus = models.RequestIdle
	c.state.Step = models.StepResult
	c.logger.Info().Str("submissionId", m.submission.ID).Msg("Submission evaluated")
	return nil
}

// ReloadFeedback re-fetches the feedback of the current submission. Only
// available on Result with the suggestions overlay closed.
func (c *Controller) ReloadFeedback() tea.Cmd {
	if c.state.Step != models.StepResult || c.state.Submission == nil ||
		c.state.Suggestions != nil || c.busy() {
		return nil
	}
	t := c.issue(opReloadFeedback)
	id := c.state.Submission.ID
	gw, ctx := c.gw, c.ctx
	return func() tea.Msg {
		sub, err := gw.GetFeedback(ctx, id)
		return feedbackLoadedMsg{token: t, submission: sub, err: err}
	}
}

func (c *Controller) handleFeedbackLoaded(m feedbackLoadedMsg) tea.Cmd {
	if !c.settle(m.token, opReloadFeedback) {
		c.dropStale(m, "feedback")
		return nil
	}
	if m.err == nil && m.submission == nil {
		m.err = errEmptyResponse
	}
	if m.err != nil {
		c.fail(opReloadFeedback, m.err)
		return nil
	}
	c.state.Submission = m.submission
	c.state.RequestStatus = models.RequestIdle
	return nil
}
