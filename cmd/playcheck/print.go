package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/mpataki/playcheck/internal/models"
	"github.com/mpataki/playcheck/internal/rubric"
	"github.com/mpataki/playcheck/internal/storage"
)

func sideName(side models.Slot) string {
	if side == models.SlotToy {
		return "Toy"
	}
	return "Playground"
}

func printSubmission(w io.Writer, sub *models.Submission, rb *rubric.Rubric) {
	fmt.Fprintf(w, "Submission %s\n", sub.ID)
	if !sub.CreatedAt.IsZero() {
		fmt.Fprintf(w, "Created: %s\n", sub.CreatedAt.Local().Format("Jan 2 2006 15:04"))
	}
	if sub.ActivityDescription != "" {
		fmt.Fprintf(w, "Activity: %s\n", sub.ActivityDescription)
	}

	for _, side := range []models.Slot{models.SlotPlayground, models.SlotToy} {
		fb := sub.FeedbackFor(side)
		summary := rb.Summarize(side, fb)
		fmt.Fprintf(w, "\n%s: %g/%d (%.0f%%) %s\n", sideName(side), summary.Total, summary.Max, summary.Percent, summary.Verdict)
		for _, c := range fb {
			fmt.Fprintf(w, "  [%g] %s\n", c.Score, c.Criterion)
			if c.WhatWentWell != "" {
				fmt.Fprintf(w, "      + %s\n", c.WhatWentWell)
			}
			if c.WhatCouldBeImproved != "" {
				fmt.Fprintf(w, "      - %s\n", c.WhatCouldBeImproved)
			}
		}
	}
}

func printSuggestions(w io.Writer, s *models.Suggestions) {
	if s.Empty() {
		fmt.Fprintln(w, "No suggestions yet.")
		return
	}
	for _, side := range []models.Slot{models.SlotPlayground, models.SlotToy} {
		list := s.For(side)
		if len(list) == 0 {
			continue
		}
		fmt.Fprintf(w, "%s\n", sideName(side))
		for _, c := range list {
			fmt.Fprintf(w, "  %s\n", c.Criterion)
			for _, item := range c.Suggestions {
				fmt.Fprintf(w, "    • %s\n", item)
			}
		}
	}
}

func printHistory(w io.Writer, entries []*models.HistoryEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No saved evaluations.")
		return
	}
	for _, e := range entries {
		fmt.Fprintf(w, "%s  %-8s  P:%d T:%d  %s\n",
			e.ID,
			storage.FormatTimeAgo(e.SavedAt),
			e.PlaygroundCount,
			e.ToyCount,
			truncate(strings.ReplaceAll(e.Description, "\n", " "), 40),
		)
	}
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
