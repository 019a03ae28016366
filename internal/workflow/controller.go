// Package workflow drives one evaluation session: capturing the playground and
// toy photos, describing the activity, submitting for evaluation, and the
// suggestions overlay with its regenerate-then-reload cycle.
//
// The Controller is meant to be owned by a bubbletea model. Every method runs
// on the program's event loop; gateway calls happen inside the returned
// tea.Cmds and report back through messages that must be handed to Update.
// Each message carries the session and generation it was issued under, and
// results that no longer match the current state are dropped.
package workflow

import (
	"context"
	"errors"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/rivo/uniseg"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mpataki/playcheck/internal/gateway"
	"github.com/mpataki/playcheck/internal/models"
)

const (
	// MaxDescriptionLength bounds the description, in user-perceived characters.
	MaxDescriptionLength = 240

	// DescriptionBufferLimit is the soft cap for the input buffer; typing may
	// run past MaxDescriptionLength but submission is disabled until trimmed.
	DescriptionBufferLimit = MaxDescriptionLength + 50

	// DefaultReloadDelay is how long to wait after a successful regenerate
	// before re-fetching suggestions.
	DefaultReloadDelay = 2 * time.Second

	// GenericErrorMessage is shown when a failure carries no server detail.
	GenericErrorMessage = "An unexpected error occurred."
)

// Gateway is the evaluation backend as the controller needs it.
type Gateway interface {
	SubmitDesign(ctx context.Context, req models.SubmitRequest) (*models.Submission, error)
	GetFeedback(ctx context.Context, submissionID string) (*models.Submission, error)
	GetSuggestions(ctx context.Context, submissionID string) (*models.Suggestions, error)
	RegenerateSuggestions(ctx context.Context, submissionID string) error
}

type Options struct {
	// ReloadDelay defaults to DefaultReloadDelay.
	ReloadDelay time.Duration
	// Context bounds every gateway call; defaults to context.Background().
	Context context.Context
}

type operation int

const (
	opNone operation = iota
	opSubmit
	opReloadFeedback
	opRegenerate
)

func (o operation) String() string {
	switch o {
	case opSubmit:
		return "submit"
	case opReloadFeedback:
		return "reload-feedback"
	case opRegenerate:
		return "regenerate"
	default:
		return "none"
	}
}

// Controller owns the workflow state of one session. It is not safe for
// concurrent use; call it only from the bubbletea Update loop.
type Controller struct {
	gw          Gateway
	ctx         context.Context
	reloadDelay time.Duration
	session     string
	logger      zerolog.Logger

	state State

	// inflight is the request-status operation currently outstanding and
	// requestSeq the token it was issued with.
	inflight   operation
	requestSeq uint64

	// viewSeq identifies the open suggestions view; fetchSeq the most
	// recently issued suggestions fetch.
	viewSeq  uint64
	fetchSeq uint64

	// pendingReloads counts scheduled reloads not yet fired for the view.
	pendingReloads int
}

// New returns a controller at the first capture step.
func New(gw Gateway, opts Options) *Controller {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	delay := opts.ReloadDelay
	if delay <= 0 {
		delay = DefaultReloadDelay
	}
	session := uuid.NewString()
	return &Controller{
		gw:          gw,
		ctx:         ctx,
		reloadDelay: delay,
		session:     session,
		logger:      log.With().Str("session", session).Logger(),
		state: State{
			Step:          models.StepCapturePlayground,
			RequestStatus: models.RequestIdle,
		},
	}
}

// Session identifies this controller instance. Messages from other sessions
// are ignored by Update.
func (c *Controller) Session() string {
	return c.session
}

// State returns a snapshot of the workflow state.
func (c *Controller) State() State {
	return c.state.clone()
}

// ReloadDelay is the wait between a successful regenerate and the reload.
func (c *Controller) ReloadDelay() time.Duration {
	return c.reloadDelay
}

// DescriptionLength counts the trimmed description in grapheme clusters.
func DescriptionLength(description string) int {
	return uniseg.GraphemeClusterCount(strings.TrimSpace(description))
}

// ValidDescription reports whether description may be submitted.
func ValidDescription(description string) bool {
	n := DescriptionLength(description)
	return n > 0 && n <= MaxDescriptionLength
}

// ErrorMessage is the user-facing text for a failed gateway call.
func ErrorMessage(err error) string {
	var apiErr *gateway.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message()
	}
	return GenericErrorMessage
}

func (c *Controller) busy() bool {
	return c.state.RequestStatus == models.RequestPending
}

func (c *Controller) capturing() bool {
	return c.state.Step != models.StepResult && !c.busy()
}

// SetImages replaces the image sequence of slot. It refuses more than
// models.MaxImagesPerSlot images and any change once submitting or done.
func (c *Controller) SetImages(slot models.Slot, images []models.EncodedImage) bool {
	if !c.capturing() || len(images) > models.MaxImagesPerSlot {
		return false
	}
	cp := append([]models.EncodedImage(nil), images...)
	if slot == models.SlotToy {
		c.state.ToyImages = cp
	} else {
		c.state.PlaygroundImages = cp
	}
	return true
}

// SetDescription replaces the activity description buffer.
func (c *Controller) SetDescription(description string) bool {
	if !c.capturing() {
		return false
	}
	c.state.Description = description
	return true
}

// CanAdvance reports whether Advance would do anything from the current step.
func (c *Controller) CanAdvance() bool {
	if c.busy() {
		return false
	}
	switch c.state.Step {
	case models.StepCapturePlayground:
		return len(c.state.PlaygroundImages) > 0
	case models.StepCaptureToy:
		return len(c.state.ToyImages) > 0
	case models.StepDescribe:
		return c.canSubmit()
	default:
		return false
	}
}

// Advance moves to the next capture step, or submits from Describe.
func (c *Controller) Advance() tea.Cmd {
	if !c.CanAdvance() {
		return nil
	}
	switch c.state.Step {
	case models.StepCapturePlayground:
		c.state.Step = models.StepCaptureToy
	case models.StepCaptureToy:
		c.state.Step = models.StepDescribe
	case models.StepDescribe:
		return c.Submit()
	}
	c.logger.Debug().Stringer("step", c.state.Step).Msg("Advanced")
	return nil
}

// Back returns to the previous capture step. It is a no-op on the first
// step, on Result and while a request is in flight.
func (c *Controller) Back() {
	if c.busy() {
		return
	}
	switch c.state.Step {
	case models.StepCaptureToy:
		c.state.Step = models.StepCapturePlayground
	case models.StepDescribe:
		c.state.Step = models.StepCaptureToy
	default:
		return
	}
	c.state.LastError = ""
	if c.state.RequestStatus == models.RequestFailed {
		c.state.RequestStatus = models.RequestIdle
	}
	c.logger.Debug().Stringer("step", c.state.Step).Msg("Went back")
}
