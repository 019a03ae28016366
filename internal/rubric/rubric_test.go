package rubric

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpataki/playcheck/internal/models"
)

func feedback(scores ...float64) models.Feedback {
	names := []string{"Narrative Setting", "Multi Sensory", "Boundary", "Purpose", "Open Ended"}
	fb := make(models.Feedback, len(scores))
	for i, s := range scores {
		fb[i] = models.CriterionFeedback{Criterion: names[i], CriterionScore: models.CriterionScore{Score: s}}
	}
	return fb
}

func TestScore(t *testing.T) {
	s := Score(models.SlotPlayground, feedback(1, 0.5, 0, 1))
	assert.Equal(t, 2.5, s.Total)
	assert.Equal(t, 4, s.Max)
	assert.InDelta(t, 62.5, s.Percent, 0.001)
}

func TestBuiltinVerdict(t *testing.T) {
	var r *Rubric
	assert.Equal(t, VerdictStrong, r.Summarize(models.SlotToy, feedback(1, 1, 1, 1, 0.5)).Verdict)
	assert.Equal(t, VerdictDeveloping, r.Summarize(models.SlotToy, feedback(1, 0)).Verdict)
	assert.Equal(t, VerdictNeedsWork, r.Summarize(models.SlotToy, feedback(0.5, 0, 0)).Verdict)
	assert.Equal(t, VerdictUnscored, r.Summarize(models.SlotToy, nil).Verdict)
}

func TestScriptVerdict(t *testing.T) {
	var logs bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&logs)
	t.Cleanup(func() { log.Logger = prev })

	rt, err := LoadString(`
function verdict(side, total, max, scores)
	log("scoring " .. side)
	if scores["Boundary"] == 0 then
		return side .. ": fix boundaries first"
	end
	return string.format("%s %.1f/%d", side, total, max)
end`)
	require.NoError(t, err)
	defer rt.Close()

	r := New(rt)
	s := r.Summarize(models.SlotPlayground, feedback(1, 0.5, 0))
	assert.Equal(t, "playground: fix boundaries first", s.Verdict)
	assert.Equal(t, 1.5, s.Total)

	s = r.Summarize(models.SlotToy, feedback(1, 0.5))
	assert.Equal(t, "toy 1.5/2", s.Verdict)

	out := logs.String()
	assert.Contains(t, out, `"component":"rubric"`)
	assert.Contains(t, out, `"message":"scoring playground"`)
	assert.Contains(t, out, `"message":"scoring toy"`)
}

func TestScriptSeesCriteriaInOrder(t *testing.T) {
	rt, err := LoadString(`
function verdict(side, total, max, scores, criteria)
	local parts = {}
	for i, name in ipairs(criteria) do
		parts[i] = name .. "=" .. scores[name]
	end
	return table.concat(parts, ",")
end`)
	require.NoError(t, err)
	defer rt.Close()

	s := New(rt).Summarize(models.SlotPlayground, feedback(1, 0.5, 0))
	assert.Equal(t, "Narrative Setting=1,Multi Sensory=0.5,Boundary=0", s.Verdict)
}

func TestScriptFailureFallsBack(t *testing.T) {
	rt, err := LoadString(`function verdict() error("boom") end`)
	require.NoError(t, err)
	defer rt.Close()

	s := New(rt).Summarize(models.SlotToy, feedback(1, 1))
	assert.Equal(t, VerdictStrong, s.Verdict)
}

func TestScriptMustReturnString(t *testing.T) {
	rt, err := LoadString(`function verdict() return 42 end`)
	require.NoError(t, err)
	defer rt.Close()

	_, err = rt.Verdict(Score(models.SlotToy, feedback(1)), feedback(1))
	assert.Error(t, err)
}

func TestScriptTimeout(t *testing.T) {
	rt, err := LoadString(`function verdict() while true do end end`)
	require.NoError(t, err)
	defer rt.Close()

	_, err = rt.Verdict(Score(models.SlotToy, feedback(1)), feedback(1))
	assert.Error(t, err)
}

func TestSandbox(t *testing.T) {
	for _, script := range []string{
		`dofile("/etc/passwd") function verdict() return "x" end`,
		`local n = math.random() function verdict() return "x" end`,
		`os.exit(1) function verdict() return "x" end`,
		`io.write("x") function verdict() return "x" end`,
	} {
		_, err := LoadString(script)
		assert.Error(t, err, script)
	}
}

func TestLoadRequiresVerdict(t *testing.T) {
	_, err := LoadString(`x = 1`)
	assert.ErrorContains(t, err, "verdict")
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rubric.lua")
	require.NoError(t, os.WriteFile(path, []byte(`function verdict(side) return "ok " .. side end`), 0o644))

	rt, err := Load(path)
	require.NoError(t, err)
	defer rt.Close()

	v, err := rt.Verdict(Score(models.SlotPlayground, nil), nil)
	require.NoError(t, err)
	assert.Equal(t, "ok playground", v)

	_, err = Load(filepath.Join(t.TempDir(), "missing.lua"))
	assert.Error(t, err)
}
