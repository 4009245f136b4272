// Package symbol defines the runtime elements the CSE machine operates
// on: the tagged Symbol variant of spec.md §3, plus the environment
// frame and delta (compiled body) types that make up the machine's
// addressable state.
package symbol

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind discriminates the Symbol variants.
type Kind int

const (
	KindID Kind = iota
	KindInt
	KindStr
	KindBool
	KindDummy
	KindTuple
	KindLambda
	KindEta
	KindGamma
	KindBeta
	KindTau
	KindYstar
	KindDelta
	KindUnaryOp
	KindBinaryOp
	KindEnvMarker
	KindError
	KindBoundPrimitive
)

// Symbol is a tagged runtime value. Only the fields relevant to Kind are
// populated; this mirrors spec.md §3's "tagged variant" data model in a
// single Go struct rather than an interface hierarchy, since the CSE
// machine's control list is a homogeneous stack of these.
type Symbol struct {
	Kind Kind

	// KindID
	Name string
	// KindInt
	Int int
	// KindStr
	Str string
	// KindBool
	Bool bool
	// KindTuple
	Elements []Symbol

	// KindBeta: the then-branch and else-branch bodies, selected by the
	// popped condition.
	Branches [2]*Delta

	// KindLambda / KindEta
	LambdaIndex    int
	ParamNames     []string
	Body           *Delta
	CapturedEnvIdx int

	// KindTau
	Arity int

	// KindDelta
	DeltaRef *Delta

	// KindUnaryOp / KindBinaryOp
	Op string

	// KindEnvMarker
	EnvIndex int

	// KindError
	ErrMessage string
}

// Delta is a flat, numbered control-symbol sequence compiled from a
// subtree (spec.md §3 "Delta pool").
type Delta struct {
	Index   int
	Symbols []Symbol
}

func Id(name string) Symbol      { return Symbol{Kind: KindID, Name: name} }
func Int(n int) Symbol           { return Symbol{Kind: KindInt, Int: n} }
func Str(s string) Symbol        { return Symbol{Kind: KindStr, Str: s} }
func Bool(b bool) Symbol         { return Symbol{Kind: KindBool, Bool: b} }
func Dummy() Symbol              { return Symbol{Kind: KindDummy} }
func Tuple(elems []Symbol) Symbol { return Symbol{Kind: KindTuple, Elements: elems} }
func Nil() Symbol                { return Symbol{Kind: KindTuple, Elements: nil} }
func Gamma() Symbol              { return Symbol{Kind: KindGamma} }
func Beta() Symbol               { return Symbol{Kind: KindBeta} }
func Ystar() Symbol              { return Symbol{Kind: KindYstar} }
func Tau(n int) Symbol           { return Symbol{Kind: KindTau, Arity: n} }
func UnaryOp(op string) Symbol   { return Symbol{Kind: KindUnaryOp, Op: op} }
func BinaryOp(op string) Symbol  { return Symbol{Kind: KindBinaryOp, Op: op} }
func DeltaSym(d *Delta) Symbol   { return Symbol{Kind: KindDelta, DeltaRef: d} }
func Error(msg string) Symbol    { return Symbol{Kind: KindError, ErrMessage: msg} }
func EnvMarker(idx int) Symbol   { return Symbol{Kind: KindEnvMarker, EnvIndex: idx} }

// BoundPrimitive captures a curried primitive's first argument (only
// Conc needs this: spec.md §6 "two successive applications"). A second
// Gamma applied to this value supplies the remaining argument.
func BoundPrimitive(op string, first Symbol) Symbol {
	return Symbol{Kind: KindBoundPrimitive, Op: op, Elements: []Symbol{first}}
}

func Lambda(index int, params []string, body *Delta) Symbol {
	return Symbol{Kind: KindLambda, LambdaIndex: index, ParamNames: params, Body: body, CapturedEnvIdx: -1}
}

func Eta(l Symbol) Symbol {
	return Symbol{
		Kind: KindEta, LambdaIndex: l.LambdaIndex, ParamNames: l.ParamNames,
		Body: l.Body, CapturedEnvIdx: l.CapturedEnvIdx,
	}
}

// AsLambda returns the Eta's wrapped Lambda symbol.
func (s Symbol) AsLambda() Symbol {
	return Lambda(s.LambdaIndex, s.ParamNames, s.Body).withEnv(s.CapturedEnvIdx)
}

func (s Symbol) withEnv(idx int) Symbol {
	s.CapturedEnvIdx = idx
	return s
}

// IsTruthy reports whether s is a Bool; callers must check this before
// reading s.Bool (beta conditions and &/or/not operands).
func (s Symbol) IsTruthy() bool { return s.Kind == KindBool }

// Text returns the textual form of s used for +/eq/ne and lexicographic
// fallback comparisons.
func (s Symbol) Text() string {
	switch s.Kind {
	case KindID:
		return s.Name
	case KindInt:
		return strconv.Itoa(s.Int)
	case KindStr:
		return s.Str
	case KindBool:
		return strconv.FormatBool(s.Bool)
	case KindDummy:
		return "dummy"
	case KindTuple:
		return s.Format()
	default:
		return fmt.Sprintf("<%v>", s.Kind)
	}
}

// Format renders s as final program output (spec.md §4.5 "Final
// result"): tuples format recursively as "(e1, e2, ...)".
func (s Symbol) Format() string {
	switch s.Kind {
	case KindTuple:
		if len(s.Elements) == 0 {
			return "nil"
		}
		parts := make([]string, len(s.Elements))
		for i, e := range s.Elements {
			parts[i] = e.Format()
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case KindStr:
		return s.Str
	case KindError:
		return "Error: " + s.ErrMessage
	default:
		return s.Text()
	}
}

// Env is an environment frame: owns its bindings, holds a non-owning
// index reference to its parent frame. Removed marks a frame popped from
// the active chain but still addressable (spec.md §3 "Environment
// frame").
type Env struct {
	Index      int
	ParentIdx  int // -1 for the global frame
	Bindings   map[string]Symbol
	Removed    bool
}

// NewEnv allocates a fresh, empty frame at the given pool index.
func NewEnv(index, parentIdx int) *Env {
	return &Env{Index: index, ParentIdx: parentIdx, Bindings: make(map[string]Symbol)}
}

// Pool is the append-only arena of environment frames, addressed by
// stable index (spec.md §3 "Delta pool" / "Environment frame" lifetime
// note: frames are never relocated once allocated).
type Pool struct {
	frames []*Env
}

// NewPool creates a pool containing only the global frame at index 0.
func NewPool() *Pool {
	p := &Pool{}
	p.frames = append(p.frames, NewEnv(0, -1))
	return p
}

// Alloc appends a new frame with the given parent index and returns it.
func (p *Pool) Alloc(parentIdx int) *Env {
	e := NewEnv(len(p.frames), parentIdx)
	p.frames = append(p.frames, e)
	return e
}

// At returns the frame at index idx.
func (p *Pool) At(idx int) *Env {
	return p.frames[idx]
}

// Lookup walks the parent chain starting at idx looking for name.
func (p *Pool) Lookup(idx int, name string) (Symbol, bool) {
	for idx != -1 {
		frame := p.frames[idx]
		if v, ok := frame.Bindings[name]; ok {
			return v, true
		}
		idx = frame.ParentIdx
	}
	return Symbol{}, false
}

// NearestActive scans the pool from newest to oldest for the innermost
// non-removed frame — used after a frame marker pops to restore
// current_env (spec.md §4.5 "Environment frame marker" action).
func (p *Pool) NearestActive(from int) int {
	for i := len(p.frames) - 1; i >= 0; i-- {
		if !p.frames[i].Removed {
			return p.frames[i].Index
		}
	}
	return 0
}
