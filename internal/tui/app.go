package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"

	"github.com/mpataki/playcheck/internal/media"
	"github.com/mpataki/playcheck/internal/models"
	"github.com/mpataki/playcheck/internal/rubric"
	"github.com/mpataki/playcheck/internal/workflow"
)

// History persists evaluated submissions.
type History interface {
	SaveSubmission(sub *models.Submission) error
}

type Options struct {
	Workflow workflow.Options
	// History is optional; without it nothing is saved.
	History History
	Rubric  *rubric.Rubric
}

type App struct {
	gw      workflow.Gateway
	opts    Options
	ctrl    *workflow.Controller
	history History
	rubric  *rubric.Rubric

	slots       map[models.Slot]*media.Slot
	selectedIdx int
	pathInput   textinput.Model
	description textarea.Model
	spinner     spinner.Model

	// current is the submission record last seen from the controller;
	// summaries are scored from it once, when it changes.
	current   *models.Submission
	summaries []rubric.Summary
	notice    string

	width  int
	height int
	err    error
}

func NewApp(gw workflow.Gateway, opts Options) *App {
	a := &App{
		gw:      gw,
		opts:    opts,
		history: opts.History,
		rubric:  opts.Rubric,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(statusRunning)),
	}
	a.restart()
	return a
}

// restart discards the session and starts a fresh one. Results still in
// flight for the old session are ignored when they arrive.
func (a *App) restart() {
	a.ctrl = workflow.New(a.gw, a.opts.Workflow)
	a.slots = map[models.Slot]*media.Slot{
		models.SlotPlayground: media.NewSlot(nil),
		models.SlotToy:        media.NewSlot(nil),
	}
	a.selectedIdx = 0
	a.current = nil
	a.summaries = nil
	a.notice = ""
	a.err = nil

	a.pathInput = textinput.New()
	a.pathInput.Prompt = "Photo path: "
	a.pathInput.Placeholder = "~/Pictures/playground.jpg"
	a.pathInput.Cursor.SetMode(cursor.CursorStatic)

	a.description = textarea.New()
	a.description.Placeholder = "What do children do here?"
	a.description.CharLimit = workflow.DescriptionBufferLimit
	a.description.ShowLineNumbers = false
	a.description.SetHeight(4)
	a.description.Cursor.SetMode(cursor.CursorStatic)

	a.syncFocus()
	log.Info().Str("session", a.ctrl.Session()).Msg("Session started")
}

// Controller exposes the current session.
func (a *App) Controller() *workflow.Controller {
	return a.ctrl
}

func (a *App) Init() tea.Cmd {
	return a.spinner.Tick
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a.handleKey(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.description.SetWidth(min(max(msg.Width-4, 20), 80))
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case imageLoadedMsg:
		a.handleImageLoaded(msg)
		return a, nil

	case historySavedMsg:
		if msg.err != nil {
			log.Warn().Err(msg.err).Str("submissionId", msg.id).Msg("Saving history failed")
			a.err = msg.err
		}
		return a, nil
	}

	if workflow.IsResult(msg) {
		if !a.ctrl.Owns(msg) {
			log.Debug().Msg("Ignoring result from a previous session")
			return a, nil
		}
		return a, a.afterWorkflow(a.ctrl.Update(msg))
	}

	return a, nil
}

// afterWorkflow syncs widgets with the controller. A newly received
// submission record is scored and persisted.
func (a *App) afterWorkflow(cmd tea.Cmd) tea.Cmd {
	a.syncFocus()
	sub := a.ctrl.State().Submission
	if sub == nil || sub == a.current {
		return cmd
	}
	a.current = sub
	a.summaries = a.summaries[:0]
	for _, side := range []models.Slot{models.SlotPlayground, models.SlotToy} {
		a.summaries = append(a.summaries, a.rubric.Summarize(side, sub.FeedbackFor(side)))
	}
	if a.history == nil {
		return cmd
	}
	return tea.Batch(cmd, a.saveHistory(sub))
}

func (a *App) syncFocus() {
	switch a.ctrl.State().Step {
	case models.StepCapturePlayground, models.StepCaptureToy:
		a.description.Blur()
		a.pathInput.Focus()
	case models.StepDescribe:
		a.pathInput.Blur()
		a.description.Focus()
	default:
		a.pathInput.Blur()
		a.description.Blur()
	}
}

func (a *App) currentSlot() (models.Slot, bool) {
	step := a.ctrl.State().Step
	for _, slot := range []models.Slot{models.SlotPlayground, models.SlotToy} {
		if slot.CaptureStep() == step {
			return slot, true
		}
	}
	return "", false
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return a, tea.Quit
	}

	state := a.ctrl.State()
	switch {
	case state.Suggestions != nil:
		return a.handleSuggestionsKey(msg)
	case state.Step == models.StepResult:
		return a.handleResultKey(msg)
	case state.Step == models.StepDescribe:
		return a.handleDescribeKey(msg)
	default:
		return a.handleCaptureKey(msg)
	}
}

func (a *App) handleCaptureKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	slot, _ := a.currentSlot()
	photos := a.slots[slot]

	switch msg.String() {
	case "enter":
		path := strings.TrimSpace(a.pathInput.Value())
		if path == "" {
			a.advance()
			return a, nil
		}
		if photos.Full() {
			a.notice = media.ErrSlotFull.Error()
			return a, nil
		}
		return a, a.loadImage(slot, -1, path)

	case "ctrl+r":
		path := strings.TrimSpace(a.pathInput.Value())
		if path != "" && a.selectedIdx < photos.Len() {
			return a, a.loadImage(slot, a.selectedIdx, path)
		}
		return a, nil

	case "ctrl+x":
		candidate := media.NewSlot(photos.Images())
		if candidate.Remove(a.selectedIdx) != nil || !a.ctrl.SetImages(slot, candidate.Images()) {
			return a, nil
		}
		a.slots[slot] = candidate
		if a.selectedIdx >= candidate.Len() && a.selectedIdx > 0 {
			a.selectedIdx--
		}
		return a, nil

	case "up":
		if a.selectedIdx > 0 {
			a.selectedIdx--
		}
		return a, nil

	case "down":
		if a.selectedIdx < photos.Len()-1 {
			a.selectedIdx++
		}
		return a, nil

	case "esc":
		a.back()
		return a, nil
	}

	var cmd tea.Cmd
	a.pathInput, cmd = a.pathInput.Update(msg)
	return a, cmd
}

func (a *App) handleDescribeKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if a.ctrl.State().RequestStatus == models.RequestPending {
		return a, nil
	}
	switch msg.String() {
	case "ctrl+s":
		return a, a.ctrl.Advance()
	case "esc":
		a.back()
		return a, nil
	}

	var cmd tea.Cmd
	a.description, cmd = a.description.Update(msg)
	a.ctrl.SetDescription(a.description.Value())
	return a, cmd
}

func (a *App) handleResultKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return a, tea.Quit
	case "s":
		return a, a.ctrl.OpenSuggestions()
	case "r":
		return a, a.ctrl.ReloadFeedback()
	case "n":
		if a.ctrl.State().RequestStatus != models.RequestPending {
			a.restart()
		}
	}
	return a, nil
}

func (a *App) handleSuggestionsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return a, tea.Quit
	case "esc", "s":
		a.ctrl.CloseSuggestions()
	case "g":
		return a, a.ctrl.Regenerate()
	}
	return a, nil
}

func (a *App) advance() {
	before := a.ctrl.State().Step
	a.ctrl.Advance()
	if a.ctrl.State().Step != before {
		a.selectedIdx = 0
		a.notice = ""
		a.pathInput.Reset()
		a.syncFocus()
	}
}

func (a *App) back() {
	before := a.ctrl.State().Step
	a.ctrl.Back()
	if a.ctrl.State().Step != before {
		a.selectedIdx = 0
		a.notice = ""
		a.syncFocus()
	}
}

func (a *App) handleImageLoaded(msg imageLoadedMsg) {
	if msg.session != a.ctrl.Session() {
		return
	}
	if msg.err != nil {
		a.notice = msg.err.Error()
		return
	}
	// The slot is only committed once the controller accepts the images.
	photos := media.NewSlot(a.slots[msg.slot].Images())
	var err error
	if msg.index >= 0 {
		err = photos.Replace(msg.index, msg.image)
	} else {
		err = photos.Add(msg.image)
	}
	if err != nil {
		a.notice = err.Error()
		return
	}
	if !a.ctrl.SetImages(msg.slot, photos.Images()) {
		log.Debug().Str("slot", string(msg.slot)).Msg("Photo arrived after capture closed")
		return
	}
	a.slots[msg.slot] = photos
	a.notice = ""
	a.pathInput.Reset()
	if msg.index < 0 {
		a.selectedIdx = photos.Len() - 1
	}
}

// Messages

type imageLoadedMsg struct {
	session string
	slot    models.Slot
	index   int
	image   models.EncodedImage
	err     error
}

type historySavedMsg struct {
	id  string
	err error
}

// Commands

func (a *App) loadImage(slot models.Slot, index int, path string) tea.Cmd {
	session := a.ctrl.Session()
	return func() tea.Msg {
		img, err := media.Load(expandHome(path))
		return imageLoadedMsg{session: session, slot: slot, index: index, image: img, err: err}
	}
}

func (a *App) saveHistory(sub *models.Submission) tea.Cmd {
	history := a.history
	return func() tea.Msg {
		return historySavedMsg{id: sub.ID, err: history.SaveSubmission(sub)}
	}
}
