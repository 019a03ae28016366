package tui

import (
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"

	"github.com/mpataki/playcheck/internal/gateway"
	"github.com/mpataki/playcheck/internal/models"
	"github.com/mpataki/playcheck/internal/rubric"
	"github.com/mpataki/playcheck/internal/workflow"
)

type fakeGateway struct {
	mu          sync.Mutex
	submitErr   error
	suggestions []*models.Suggestions
	fetches     int
	regenerates int
}

func (g *fakeGateway) SubmitDesign(_ context.Context, req models.SubmitRequest) (*models.Submission, error) {
	if g.submitErr != nil {
		return nil, g.submitErr
	}
	return &models.Submission{
		ID:                  "sub-1",
		ActivityDescription: req.ActivityDescription,
		PlaygroundFeedback: models.Feedback{
			{Criterion: "Boundary", CriterionScore: models.CriterionScore{Score: 1, WhatWentWell: "Clear zones."}},
		},
		ToyFeedback: models.Feedback{
			{Criterion: "Purpose", CriterionScore: models.CriterionScore{Score: 0, WhatCouldBeImproved: "Label it."}},
		},
	}, nil
}

func (g *fakeGateway) GetFeedback(_ context.Context, id string) (*models.Submission, error) {
	return &models.Submission{ID: id, ActivityDescription: "reloaded"}, nil
}

func (g *fakeGateway) GetSuggestions(_ context.Context, id string) (*models.Suggestions, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	i := min(g.fetches, len(g.suggestions)-1)
	g.fetches++
	return g.suggestions[i], nil
}

func (g *fakeGateway) RegenerateSuggestions(_ context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.regenerates++
	return nil
}

type memoryHistory struct {
	saved []*models.Submission
}

func (h *memoryHistory) SaveSubmission(sub *models.Submission) error {
	h.saved = append(h.saved, sub)
	return nil
}

func newTestApp(t *testing.T, gw workflow.Gateway, history History) *App {
	t.Helper()
	return NewApp(gw, Options{
		Workflow: workflow.Options{ReloadDelay: time.Millisecond},
		History:  history,
	})
}

// runCommands executes cmd and feeds every resulting message back into the
// app until no commands remain.
func runCommands(t *testing.T, model tea.Model, cmd tea.Cmd) *App {
	t.Helper()
	app, ok := model.(*App)
	if !ok {
		t.Fatalf("unexpected model type: %T", model)
	}
	queue := []tea.Cmd{cmd}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if next == nil {
			continue
		}
		msg := next()
		if batch, ok := msg.(tea.BatchMsg); ok {
			queue = append(queue, batch...)
			continue
		}
		if msg == nil {
			continue
		}
		nextModel, nextCmd := app.Update(msg)
		app, ok = nextModel.(*App)
		if !ok {
			t.Fatalf("unexpected model type: %T", nextModel)
		}
		queue = append(queue, nextCmd)
	}
	return app
}

func press(t *testing.T, app *App, key tea.KeyMsg) *App {
	t.Helper()
	model, cmd := app.Update(key)
	return runCommands(t, model, cmd)
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func writePhoto(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, image.NewRGBA(image.Rect(0, 0, 64, 48))))
	return path
}

func addPhoto(t *testing.T, app *App, path string) *App {
	t.Helper()
	app.pathInput.SetValue(path)
	return press(t, app, tea.KeyMsg{Type: tea.KeyEnter})
}

// describeStep drives a new app to Describe with one photo per slot.
func describeStep(t *testing.T, app *App) *App {
	t.Helper()
	dir := t.TempDir()
	app = addPhoto(t, app, writePhoto(t, dir, "swing.png"))
	app = press(t, app, tea.KeyMsg{Type: tea.KeyEnter})
	require.Equal(t, models.StepCaptureToy, app.ctrl.State().Step)
	app = addPhoto(t, app, writePhoto(t, dir, "blocks.png"))
	app = press(t, app, tea.KeyMsg{Type: tea.KeyEnter})
	require.Equal(t, models.StepDescribe, app.ctrl.State().Step)
	return app
}

func TestCaptureAddsPhotosAndAdvances(t *testing.T) {
	app := newTestApp(t, &fakeGateway{}, nil)

	// Nothing to advance with yet.
	app = press(t, app, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, models.StepCapturePlayground, app.ctrl.State().Step)

	app = addPhoto(t, app, writePhoto(t, t.TempDir(), "swing.png"))
	images := app.ctrl.State().PlaygroundImages
	require.Len(t, images, 1)
	assert.Equal(t, "swing.png", images[0].Name)
	assert.Empty(t, app.pathInput.Value())
	assert.Contains(t, app.View(), "swing.png")

	app = press(t, app, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, models.StepCaptureToy, app.ctrl.State().Step)

	app = press(t, app, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, models.StepCapturePlayground, app.ctrl.State().Step)
	assert.Len(t, app.ctrl.State().PlaygroundImages, 1)
}

func TestCaptureRejectsBadFileAndFourthPhoto(t *testing.T) {
	app := newTestApp(t, &fakeGateway{}, nil)
	dir := t.TempDir()

	bad := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(bad, []byte("hello"), 0o644))
	app = addPhoto(t, app, bad)
	assert.Empty(t, app.ctrl.State().PlaygroundImages)
	assert.Contains(t, app.notice, "notes.txt")

	for _, name := range []string{"a.png", "b.png", "c.png"} {
		app = addPhoto(t, app, writePhoto(t, dir, name))
	}
	require.Len(t, app.ctrl.State().PlaygroundImages, 3)

	app = addPhoto(t, app, writePhoto(t, dir, "d.png"))
	assert.Len(t, app.ctrl.State().PlaygroundImages, 3)
	assert.NotEmpty(t, app.notice)

	app.selectedIdx = 0
	app = press(t, app, tea.KeyMsg{Type: tea.KeyCtrlX})
	images := app.ctrl.State().PlaygroundImages
	require.Len(t, images, 2)
	assert.Equal(t, "b.png", images[0].Name)
}

func TestSubmitShowsFeedbackAndSavesHistory(t *testing.T) {
	history := &memoryHistory{}
	app := describeStep(t, newTestApp(t, &fakeGateway{}, history))

	app = press(t, app, keyRunes("Kids climb and slide"))
	assert.Equal(t, "Kids climb and slide", app.ctrl.State().Description)

	app = press(t, app, tea.KeyMsg{Type: tea.KeyCtrlS})
	state := app.ctrl.State()
	require.Equal(t, models.StepResult, state.Step)
	assert.Equal(t, "Kids climb and slide", state.Submission.ActivityDescription)

	require.Len(t, history.saved, 1)
	assert.Equal(t, "sub-1", history.saved[0].ID)

	view := app.View()
	assert.Contains(t, view, "Boundary")
	assert.Contains(t, view, "Clear zones.")
	assert.Contains(t, view, "Needs work")
}

func TestSubmitFailureStaysOnDescribe(t *testing.T) {
	gw := &fakeGateway{submitErr: &gateway.APIError{Status: 400, Detail: "Invalid image format"}}
	app := describeStep(t, newTestApp(t, gw, nil))

	app = press(t, app, keyRunes("Fun"))
	app = press(t, app, tea.KeyMsg{Type: tea.KeyCtrlS})

	state := app.ctrl.State()
	assert.Equal(t, models.StepDescribe, state.Step)
	assert.Equal(t, "Invalid image format", state.LastError)
	assert.Contains(t, app.View(), "Invalid image format")
}

func TestSubmitDisabledForLongDescription(t *testing.T) {
	app := describeStep(t, newTestApp(t, &fakeGateway{}, nil))

	app = press(t, app, keyRunes(strings.Repeat("a", workflow.MaxDescriptionLength+1)))
	app = press(t, app, tea.KeyMsg{Type: tea.KeyCtrlS})
	assert.Equal(t, models.StepDescribe, app.ctrl.State().Step)
	assert.NotContains(t, app.View(), "[ctrl+s] submit")
}

func TestSuggestionsRegenerateAndReload(t *testing.T) {
	gw := &fakeGateway{suggestions: []*models.Suggestions{
		{Playground: models.SuggestionList{{Criterion: "Boundary", Suggestions: []string{"Add a rug"}}}},
		{Playground: models.SuggestionList{{Criterion: "Boundary", Suggestions: []string{"Use low shelves"}}}},
	}}
	app := describeStep(t, newTestApp(t, gw, nil))
	app = press(t, app, keyRunes("Fun"))
	app = press(t, app, tea.KeyMsg{Type: tea.KeyCtrlS})

	app = press(t, app, keyRunes("s"))
	require.NotNil(t, app.ctrl.State().Suggestions)
	assert.Contains(t, app.View(), "Add a rug")
	assert.Contains(t, app.View(), "Boundary ●")

	app = press(t, app, keyRunes("g"))
	v := app.ctrl.State().Suggestions
	assert.Equal(t, workflow.PhaseReady, v.Phase)
	assert.Contains(t, app.View(), "Use low shelves")
	assert.Equal(t, 1, gw.regenerates)
	assert.Equal(t, 2, gw.fetches)

	app = press(t, app, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Nil(t, app.ctrl.State().Suggestions)
}

func TestRestartIgnoresOldSession(t *testing.T) {
	gw := &fakeGateway{suggestions: []*models.Suggestions{{}}}
	app := describeStep(t, newTestApp(t, gw, nil))
	app = press(t, app, keyRunes("Fun"))
	app = press(t, app, tea.KeyMsg{Type: tea.KeyCtrlS})
	require.Equal(t, models.StepResult, app.ctrl.State().Step)

	_, open := app.Update(keyRunes("s"))
	require.NotNil(t, open)
	app.Update(tea.KeyMsg{Type: tea.KeyEsc})
	app.Update(keyRunes("n"))

	old := open()
	model, cmd := app.Update(old)
	app = runCommands(t, model, cmd)

	state := app.ctrl.State()
	assert.Equal(t, models.StepCapturePlayground, state.Step)
	assert.Nil(t, state.Suggestions)
	assert.Nil(t, state.Submission)
	assert.Empty(t, state.PlaygroundImages)
}

func TestHistoryErrorIsShown(t *testing.T) {
	app := newTestApp(t, &fakeGateway{}, nil)
	model, _ := app.Update(historySavedMsg{id: "sub-1", err: errors.New("disk full")})
	assert.Contains(t, model.View(), "disk full")
}

func TestResultIsScoredOncePerSubmission(t *testing.T) {
	rt, err := rubric.LoadString(`
calls = 0
function verdict(side, total, max)
	calls = calls + 1
	log("scored " .. side)
	return "checked " .. side
end`)
	require.NoError(t, err)
	defer rt.Close()

	app := NewApp(&fakeGateway{}, Options{Rubric: rubric.New(rt)})
	app = describeStep(t, app)
	app = press(t, app, keyRunes("Fun"))
	app = press(t, app, tea.KeyMsg{Type: tea.KeyCtrlS})
	require.Equal(t, models.StepResult, app.ctrl.State().Step)

	for i := 0; i < 5; i++ {
		assert.Contains(t, app.View(), "checked playground")
	}
	assert.Equal(t, lua.LNumber(2), rt.L.GetGlobal("calls"))

	// A reloaded record is scored again.
	app = press(t, app, keyRunes("r"))
	assert.Contains(t, app.View(), "reloaded")
	assert.Equal(t, lua.LNumber(4), rt.L.GetGlobal("calls"))
}

func TestLatePhotoLeavesSlotUnchanged(t *testing.T) {
	app := describeStep(t, newTestApp(t, &fakeGateway{}, nil))
	app = press(t, app, keyRunes("Fun"))

	// Submit without running the request so it stays pending.
	app.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	require.Equal(t, models.RequestPending, app.ctrl.State().RequestStatus)

	app.Update(imageLoadedMsg{
		session: app.ctrl.Session(),
		slot:    models.SlotToy,
		index:   -1,
		image:   models.EncodedImage{Name: "late.png"},
	})

	assert.Len(t, app.ctrl.State().ToyImages, 1)
	assert.Equal(t, 1, app.slots[models.SlotToy].Len())
	assert.Equal(t, "blocks.png", app.slots[models.SlotToy].Images()[0].Name)
}
