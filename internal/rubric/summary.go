// Package rubric condenses per-criterion feedback into a score summary and a
// short verdict, optionally computed by a user-supplied Lua script.
package rubric

import (
	"github.com/rs/zerolog/log"

	"github.com/mpataki/playcheck/internal/models"
)

const (
	VerdictStrong     = "Strong setup"
	VerdictDeveloping = "Developing"
	VerdictNeedsWork  = "Needs work"
	VerdictUnscored   = "Not scored"
)

// Summary is the score of one side of a submission. Each criterion is worth
// at most one point.
type Summary struct {
	Side    models.Slot
	Total   float64
	Max     int
	Percent float64
	Verdict string
}

// Rubric produces summaries. A nil *Rubric, or one without a script, uses
// the built-in verdicts.
type Rubric struct {
	script *Runtime
}

func New(script *Runtime) *Rubric {
	return &Rubric{script: script}
}

// Summarize scores fb. If the script fails, the built-in verdict is used.
func (r *Rubric) Summarize(side models.Slot, fb models.Feedback) Summary {
	s := Score(side, fb)
	s.Verdict = BuiltinVerdict(s)
	if r == nil || r.script == nil {
		return s
	}
	verdict, err := r.script.Verdict(s, fb)
	if err != nil {
		log.Warn().Err(err).Str("side", string(side)).Msg("Rubric script failed, using built-in verdict")
		return s
	}
	s.Verdict = verdict
	return s
}

// Score totals fb without a verdict.
func Score(side models.Slot, fb models.Feedback) Summary {
	s := Summary{Side: side, Max: len(fb)}
	for _, c := range fb {
		s.Total += c.Score
	}
	if s.Max > 0 {
		s.Percent = s.Total / float64(s.Max) * 100
	}
	return s
}

func BuiltinVerdict(s Summary) string {
	switch {
	case s.Max == 0:
		return VerdictUnscored
	case s.Percent >= 80:
		return VerdictStrong
	case s.Percent >= 50:
		return VerdictDeveloping
	default:
		return VerdictNeedsWork
	}
}
