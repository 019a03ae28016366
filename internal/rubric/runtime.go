package rubric

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"

	"github.com/mpataki/playcheck/internal/models"
)

// callTimeout bounds a single verdict() call.
const callTimeout = time.Second

// Runtime holds a loaded verdict script in a sandboxed Lua state. It is not
// safe for concurrent use.
type Runtime struct {
	L      *lua.LState
	logger zerolog.Logger
}

// Load reads and runs the script at path, which must define
// verdict(side, total, max, scores, criteria).
func Load(path string) (*Runtime, error) {
	script, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rubric script: %w", err)
	}
	return LoadString(string(script))
}

func LoadString(script string) (*Runtime, error) {
	r := &Runtime{logger: log.With().Str("component", "rubric").Logger()}
	r.L = lua.NewState(lua.Options{
		SkipOpenLibs: true,
	})

	r.openSafeLibs()
	r.L.SetGlobal("log", r.L.NewFunction(r.luaLog))

	if err := r.L.DoString(script); err != nil {
		r.L.Close()
		return nil, fmt.Errorf("failed to load rubric script: %w", err)
	}
	if r.L.GetGlobal("verdict").Type() != lua.LTFunction {
		r.L.Close()
		return nil, fmt.Errorf("rubric script must define a 'verdict' function")
	}
	return r, nil
}

func (r *Runtime) Close() {
	r.L.Close()
}

// openSafeLibs loads base, table, string and math without file access,
// dynamic loading, printing or randomness.
func (r *Runtime) openSafeLibs() {
	L := r.L
	lua.OpenBase(L)

	L.SetGlobal("loadfile", lua.LNil)
	L.SetGlobal("dofile", lua.LNil)
	L.SetGlobal("load", lua.LNil)
	L.SetGlobal("loadstring", lua.LNil)
	L.SetGlobal("print", lua.LNil) // Use log() instead

	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	math := L.GetGlobal("math")
	if tbl, ok := math.(*lua.LTable); ok {
		L.SetField(tbl, "random", lua.LNil)
		L.SetField(tbl, "randomseed", lua.LNil)
	}
}

// Verdict calls verdict(side, total, max, scores, criteria) where scores
// maps each criterion name to its score and criteria lists the names in
// evaluation order.
func (r *Runtime) Verdict(s Summary, fb models.Feedback) (string, error) {
	L := r.L
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	L.SetContext(ctx)
	defer L.RemoveContext()

	scores := L.NewTable()
	for _, c := range fb {
		L.SetField(scores, c.Criterion, lua.LNumber(c.Score))
	}
	criteria := L.NewTable()
	for _, name := range fb.Criteria() {
		criteria.Append(lua.LString(name))
	}

	err := L.CallByParam(lua.P{
		Fn:      L.GetGlobal("verdict"),
		NRet:    1,
		Protect: true,
	}, lua.LString(string(s.Side)), lua.LNumber(s.Total), lua.LNumber(s.Max), scores, criteria)
	if err != nil {
		return "", fmt.Errorf("verdict failed: %w", err)
	}

	ret := L.Get(-1)
	L.Pop(1)
	str, ok := ret.(lua.LString)
	if !ok || str == "" {
		return "", fmt.Errorf("verdict must return a non-empty string, got %s", ret.Type())
	}
	return string(str), nil
}

// luaLog implements the log(message) API
func (r *Runtime) luaLog(L *lua.LState) int {
	message := L.CheckString(1)
	r.logger.Info().Msg(message)
	return 0
}
