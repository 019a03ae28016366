package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mpataki/playcheck/internal/models"
	"github.com/mpataki/playcheck/internal/rubric"
	"github.com/mpataki/playcheck/internal/workflow"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("229")).
			Background(lipgloss.Color("57"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	statusRunning  = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	statusComplete = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	statusFailed   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

	// Score colors
	scoreFull    = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))  // green
	scorePartial = lipgloss.NewStyle().Foreground(lipgloss.Color("220")) // yellow
	scoreNone    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")) // red

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))
)

var stepLabels = []struct {
	step  models.Step
	label string
}{
	{models.StepCapturePlayground, "Playground"},
	{models.StepCaptureToy, "Toy"},
	{models.StepDescribe, "Describe"},
	{models.StepResult, "Feedback"},
}

func (a *App) View() string {
	state := a.ctrl.State()

	s := titleStyle.Render("Playcheck") + "  " + a.viewProgress(state.Step) + "\n\n"

	switch {
	case state.Suggestions != nil:
		s += a.viewSuggestions(state)
	case state.Step == models.StepResult:
		s += a.viewResult(state)
	case state.Step == models.StepDescribe:
		s += a.viewDescribe(state)
	default:
		s += a.viewCapture(state)
	}

	if a.err != nil {
		s += "\n" + statusFailed.Render(fmt.Sprintf("Error: %v", a.err)) + "\n"
	}
	return s
}

func (a *App) viewProgress(current models.Step) string {
	parts := make([]string, len(stepLabels))
	for i, sl := range stepLabels {
		label := fmt.Sprintf("%d %s", i+1, sl.label)
		switch {
		case sl.step == current:
			parts[i] = selectedStyle.Render(" " + label + " ")
		case sl.step < current:
			parts[i] = statusComplete.Render(label)
		default:
			parts[i] = dimStyle.Render(label)
		}
	}
	return strings.Join(parts, dimStyle.Render(" › "))
}

func (a *App) viewCapture(state workflow.State) string {
	slot, _ := a.currentSlot()
	images := state.Images(slot)

	var s string
	if slot == models.SlotToy {
		s += "Add up to 3 photos of the toy or activity station.\n\n"
	} else {
		s += "Add up to 3 photos of the play space.\n\n"
	}

	if len(images) == 0 {
		s += dimStyle.Render("(no photos yet)") + "\n"
	}
	for i, img := range images {
		line := fmt.Sprintf("%d. %-24s %dx%d", i+1, truncate(img.Name, 24), img.Width, img.Height)
		if !img.TakenAt.IsZero() {
			line += "  " + img.TakenAt.Format("Jan 2 2006")
		}
		if i == a.selectedIdx {
			line = selectedStyle.Render("▶ " + line)
		} else {
			line = "  " + line
		}
		s += line + "\n"
	}

	s += fmt.Sprintf("\n%s %d/%d\n", labelStyle.Render("Photos:"), len(images), models.MaxImagesPerSlot)
	s += a.pathInput.View() + "\n"

	if a.notice != "" {
		s += statusFailed.Render(a.notice) + "\n"
	}

	help := "[enter] add photo  [ctrl+r] replace  [ctrl+x] remove"
	if a.ctrl.CanAdvance() {
		help += "  [enter on empty] next"
	}
	if state.Step != models.StepCapturePlayground {
		help += "  [esc] back"
	}
	s += "\n" + helpStyle.Render(help+"  [ctrl+c] quit")
	return s
}

func (a *App) viewDescribe(state workflow.State) string {
	s := "Describe how children use this space (up to 240 characters).\n\n"
	s += a.description.View() + "\n"

	n := workflow.DescriptionLength(state.Description)
	counter := fmt.Sprintf("%d/%d", n, workflow.MaxDescriptionLength)
	if n > workflow.MaxDescriptionLength {
		counter = statusFailed.Render(counter)
	} else {
		counter = dimStyle.Render(counter)
	}
	s += counter + "\n"

	s += labelStyle.Render(fmt.Sprintf("%d playground photo(s), %d toy photo(s)",
		len(state.PlaygroundImages), len(state.ToyImages))) + "\n"

	switch state.RequestStatus {
	case models.RequestPending:
		s += "\n" + a.spinner.View() + " Evaluating your design...\n"
	case models.RequestFailed:
		s += "\n" + statusFailed.Render(state.LastError) + "\n"
	}

	help := "[esc] back  [ctrl+c] quit"
	if a.ctrl.CanAdvance() {
		help = "[ctrl+s] submit  " + help
	}
	s += "\n" + helpStyle.Render(help)
	return s
}

func (a *App) viewResult(state workflow.State) string {
	sub := state.Submission
	if sub == nil {
		return "No submission\n"
	}

	var s string
	if sub.ActivityDescription != "" {
		s += a.wrap(sub.ActivityDescription) + "\n\n"
	}

	for _, summary := range a.summaries {
		fb := sub.FeedbackFor(summary.Side)
		s += a.viewSummaryHeader(summary) + "\n"
		if len(fb) == 0 {
			s += dimStyle.Render("  (no feedback)") + "\n"
		}
		for _, c := range fb {
			s += fmt.Sprintf("  %s %s\n", formatScore(c.Score), c.Criterion)
			if c.WhatWentWell != "" {
				s += a.wrapIndented("+ "+c.WhatWentWell, 6) + "\n"
			}
			if c.WhatCouldBeImproved != "" {
				s += dimStyle.Render(a.wrapIndented("- "+c.WhatCouldBeImproved, 6)) + "\n"
			}
		}
		s += "\n"
	}

	switch state.RequestStatus {
	case models.RequestPending:
		s += a.spinner.View() + " Reloading feedback...\n"
	case models.RequestFailed:
		s += statusFailed.Render(state.LastError) + "\n"
	}

	s += labelStyle.Render("Submission: ") + dimStyle.Render(sub.ID) + "\n"
	s += "\n" + helpStyle.Render("[s] suggestions  [r] reload  [n] new evaluation  [q] quit")
	return s
}

func (a *App) viewSummaryHeader(summary rubric.Summary) string {
	name := "Playground"
	if summary.Side == models.SlotToy {
		name = "Toy"
	}
	line := titleStyle.Render(name)
	if summary.Max > 0 {
		line += fmt.Sprintf("  %s/%d (%.0f%%)", formatPoints(summary.Total), summary.Max, summary.Percent)
	}
	return line + "  " + labelStyle.Render(summary.Verdict)
}

func (a *App) viewSuggestions(state workflow.State) string {
	v := state.Suggestions
	s := titleStyle.Render("Improvement suggestions") + "\n\n"

	switch v.Phase {
	case workflow.PhaseLoading:
		s += a.spinner.View() + " Loading suggestions...\n"
	case workflow.PhaseError:
		s += statusFailed.Render(v.Err) + "\n"
	case workflow.PhaseReady:
		if v.Data == nil || v.Data.Empty() {
			s += dimStyle.Render("No suggestions yet.") + "\n"
			break
		}
		for _, side := range []models.Slot{models.SlotPlayground, models.SlotToy} {
			list := v.Data.For(side)
			if len(list) == 0 {
				continue
			}
			if side == models.SlotToy {
				s += labelStyle.Render("Toy") + "\n"
			} else {
				s += labelStyle.Render("Playground") + "\n"
			}
			var fb models.Feedback
			if state.Submission != nil {
				fb = state.Submission.FeedbackFor(side)
			}
			for _, c := range list {
				line := "  " + c.Criterion
				if score, ok := fb.Get(c.Criterion); ok {
					line += " " + formatScore(score.Score)
				}
				s += line + "\n"
				for _, item := range c.Suggestions {
					s += a.wrapIndented("• "+item, 4) + "\n"
				}
			}
			s += "\n"
		}
		if v.Err != "" {
			s += statusFailed.Render(v.Err) + "\n"
		}
	}

	if v.IsRegenerating {
		s += "\n" + a.spinner.View() + " Regenerating...\n"
	} else if v.ReloadPending {
		s += "\n" + statusRunning.Render("Regeneration started, refreshing shortly") + "\n"
	}

	help := "[esc] close  [q] quit"
	if a.ctrl.CanRegenerate() {
		help = "[g] regenerate  " + help
	}
	s += "\n" + helpStyle.Render(help)
	return s
}

func formatScore(score float64) string {
	switch score {
	case 1:
		return scoreFull.Render("●")
	case 0.5:
		return scorePartial.Render("◐")
	default:
		return scoreNone.Render("○")
	}
}

func formatPoints(total float64) string {
	if total == float64(int(total)) {
		return fmt.Sprintf("%d", int(total))
	}
	return fmt.Sprintf("%.1f", total)
}

func (a *App) wrap(text string) string {
	if a.width <= 0 {
		return text
	}
	return lipgloss.NewStyle().Width(a.width - 2).Render(text)
}

func (a *App) wrapIndented(text string, indent int) string {
	style := lipgloss.NewStyle().PaddingLeft(indent)
	if a.width > indent+10 {
		style = style.Width(a.width - 2)
	}
	return style.Render(text)
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
