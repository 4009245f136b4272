// Package cse implements the CSE (Control/Stack/Environment) machine of
// spec.md §4.5: the final stage of the pipeline, executing a compiled
// delta pool to a value.
package cse

import (
	"fmt"
	"io"

	"github.com/emirpasic/gods/stacks/arraystack"

	"github.com/aledsdavies/rpal/internal/primitives"
	"github.com/aledsdavies/rpal/internal/symbol"
)

// RuntimeError is one of spec.md §7's RuntimeError cases: unbound name
// with no primitive binding, wrong variant applied by gamma, a
// non-integer operand to a numeric op, a tuple index out of range, a
// non-boolean condition to beta, or a non-boolean operand to
// not/&/or. Context and Suggestion are filled in where the machine can
// say more than "wrong kind of value".
type RuntimeError struct {
	Message    string
	Context    string
	Suggestion string
}

func (e *RuntimeError) Error() string {
	msg := e.Message
	if e.Context != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Context)
	}
	if e.Suggestion != "" {
		msg = fmt.Sprintf("%s — %s", msg, e.Suggestion)
	}
	return msg
}

// Machine holds the control list, value stack, and environment pool
// spec.md §4.5 defines as the machine's entire mutable state. The
// control list is a stack (top is the last element, per spec.md §9(b));
// the value stack's top is conventionally "element 0", but since values
// are only ever pushed/popped one at a time (never spliced in bulk),
// any LIFO representation is equivalent — both are backed by
// github.com/emirpasic/gods' arraystack.
type Machine struct {
	control    *arraystack.Stack
	values     *arraystack.Stack
	envs       *symbol.Pool
	currentEnv int
	out        io.Writer
}

// New builds a machine whose initial control is root's symbols (spec.md
// §4.5: "the initial control is [e0, delta0] where delta0 wraps the
// root" — e0 is implicit here as the pool's seeded global frame, current
// from the start). out receives Print's output.
func New(root *symbol.Delta, out io.Writer) *Machine {
	m := &Machine{
		control: arraystack.New(),
		values:  arraystack.New(),
		envs:    symbol.NewPool(),
		out:     out,
	}
	spliceDelta(m.control, root)
	return m
}

// Run executes until the control is empty and returns the final value
// (spec.md §4.5 "Final result": the top of the value stack).
func (m *Machine) Run() (symbol.Symbol, error) {
	for !m.control.Empty() {
		v, _ := m.control.Pop()
		if err := m.step(v.(symbol.Symbol)); err != nil {
			return symbol.Symbol{}, err
		}
	}
	top, ok := m.values.Peek()
	if !ok {
		return symbol.Symbol{}, &RuntimeError{Message: "evaluation produced no result"}
	}
	return top.(symbol.Symbol), nil
}

// spliceDelta pushes d's symbols onto control so that d.Symbols[0] pops
// first: since control pops from the top (the most recently pushed
// element), the symbols must be pushed in reverse so the first one ends
// up on top.
func spliceDelta(control *arraystack.Stack, d *symbol.Delta) {
	for i := len(d.Symbols) - 1; i >= 0; i-- {
		control.Push(d.Symbols[i])
	}
}

func (m *Machine) pushValue(s symbol.Symbol) { m.values.Push(s) }

func (m *Machine) popValue(context string) (symbol.Symbol, error) {
	v, ok := m.values.Pop()
	if !ok {
		return symbol.Symbol{}, &RuntimeError{Message: "value stack underflow", Context: context}
	}
	return v.(symbol.Symbol), nil
}

func (m *Machine) step(s symbol.Symbol) error {
	switch s.Kind {
	case symbol.KindID:
		return m.stepIdentifier(s)
	case symbol.KindLambda:
		s.CapturedEnvIdx = m.currentEnv
		m.pushValue(s)
		return nil
	case symbol.KindEnvMarker:
		return m.stepEnvMarker(s)
	case symbol.KindUnaryOp:
		return m.stepUnary(s)
	case symbol.KindBinaryOp:
		return m.stepBinary(s)
	case symbol.KindBeta:
		return m.stepBeta(s)
	case symbol.KindTau:
		return m.stepTau(s)
	case symbol.KindDelta:
		spliceDelta(m.control, s.DeltaRef)
		return nil
	case symbol.KindGamma:
		return m.stepGamma()
	default:
		m.pushValue(s)
		return nil
	}
}

// Identifier: look it up through the environment chain; push the bound
// value. Unresolved names push themselves unchanged, carrying the
// identifier text forward for primitive dispatch at Gamma time.
func (m *Machine) stepIdentifier(s symbol.Symbol) error {
	if v, ok := m.envs.Lookup(m.currentEnv, s.Name); ok {
		m.pushValue(v)
		return nil
	}
	m.pushValue(s)
	return nil
}

// Environment frame marker: remove the marker pushed at the matching
// Gamma's entry (sitting just below the top of the value stack, i.e.
// the lambda body's result), mark that frame removed, and restore
// current_env to the nearest still-active frame.
func (m *Machine) stepEnvMarker(s symbol.Symbol) error {
	result, err := m.popValue("environment frame exit")
	if err != nil {
		return err
	}
	marker, err := m.popValue("environment frame exit")
	if err != nil {
		return err
	}
	if marker.Kind != symbol.KindEnvMarker {
		return &RuntimeError{Message: "environment frame marker mismatch on value stack"}
	}
	m.pushValue(result)

	frame := m.envs.At(marker.EnvIndex)
	frame.Removed = true
	m.currentEnv = m.envs.NearestActive(m.currentEnv)
	return nil
}

func (m *Machine) stepUnary(op symbol.Symbol) error {
	operand, err := m.popValue(op.Op)
	if err != nil {
		return err
	}
	switch op.Op {
	case "neg":
		if operand.Kind != symbol.KindInt {
			return &RuntimeError{Message: "neg requires an integer operand", Context: operand.Text()}
		}
		m.pushValue(symbol.Int(-operand.Int))
	case "not":
		if operand.Kind != symbol.KindBool {
			return &RuntimeError{Message: "not requires a boolean operand", Context: operand.Text()}
		}
		m.pushValue(symbol.Bool(!operand.Bool))
	default:
		return &RuntimeError{Message: "unknown unary operator", Context: op.Op}
	}
	return nil
}

// Binary ops: operand order on the stack is right-then-left (spec.md
// §4.5) — the caller pops right first, then left.
func (m *Machine) stepBinary(op symbol.Symbol) error {
	right, err := m.popValue(op.Op)
	if err != nil {
		return err
	}
	left, err := m.popValue(op.Op)
	if err != nil {
		return err
	}
	result, err := applyBinary(op.Op, left, right)
	if err != nil {
		return err
	}
	m.pushValue(result)
	return nil
}

func applyBinary(op string, left, right symbol.Symbol) (symbol.Symbol, error) {
	switch op {
	case "+":
		if left.Kind == symbol.KindInt && right.Kind == symbol.KindInt {
			return symbol.Int(left.Int + right.Int), nil
		}
		return symbol.Str(left.Text() + right.Text()), nil
	case "-", "*", "/", "**":
		if left.Kind != symbol.KindInt || right.Kind != symbol.KindInt {
			return symbol.Symbol{}, &RuntimeError{
				Message: fmt.Sprintf("%q requires integer operands", op),
				Context: fmt.Sprintf("%s, %s", left.Text(), right.Text()),
			}
		}
		switch op {
		case "-":
			return symbol.Int(left.Int - right.Int), nil
		case "*":
			return symbol.Int(left.Int * right.Int), nil
		case "/":
			if right.Int == 0 {
				return symbol.Symbol{}, &RuntimeError{Message: "division by zero"}
			}
			return symbol.Int(left.Int / right.Int), nil
		case "**":
			return symbol.Int(intPow(left.Int, right.Int)), nil
		}
	case "&":
		if left.Kind != symbol.KindBool || right.Kind != symbol.KindBool {
			return symbol.Symbol{}, &RuntimeError{Message: "'&' requires boolean operands"}
		}
		return symbol.Bool(left.Bool && right.Bool), nil
	case "or":
		if left.Kind != symbol.KindBool || right.Kind != symbol.KindBool {
			return symbol.Symbol{}, &RuntimeError{Message: "'or' requires boolean operands"}
		}
		return symbol.Bool(left.Bool || right.Bool), nil
	case "eq":
		return symbol.Bool(left.Text() == right.Text()), nil
	case "ne":
		return symbol.Bool(left.Text() != right.Text()), nil
	case "ls", "le", "gr", "ge":
		return compare(op, left, right), nil
	case "aug":
		return applyAug(left, right), nil
	}
	return symbol.Symbol{}, &RuntimeError{Message: "unknown binary operator", Context: op}
}

func intPow(base, exp int) int {
	result := 1
	for i := 0; i < exp; i++ {
		result *= base
	}
	return result
}

// ls/le/gr/ge: numeric comparison if both operands are integers,
// otherwise lexicographic comparison of their textual forms.
func compare(op string, left, right symbol.Symbol) symbol.Symbol {
	if left.Kind == symbol.KindInt && right.Kind == symbol.KindInt {
		switch op {
		case "ls":
			return symbol.Bool(left.Int < right.Int)
		case "le":
			return symbol.Bool(left.Int <= right.Int)
		case "gr":
			return symbol.Bool(left.Int > right.Int)
		case "ge":
			return symbol.Bool(left.Int >= right.Int)
		}
	}
	l, r := left.Text(), right.Text()
	switch op {
	case "ls":
		return symbol.Bool(l < r)
	case "le":
		return symbol.Bool(l <= r)
	case "gr":
		return symbol.Bool(l > r)
	case "ge":
		return symbol.Bool(l >= r)
	}
	return symbol.Bool(false)
}

// aug: if the right operand is a Tuple, extend the left tuple with its
// elements; otherwise append the right operand as a single element. A
// fresh tuple is produced rather than mutating left in place (spec.md
// §9 "Tuple mutation by aug").
func applyAug(left, right symbol.Symbol) symbol.Symbol {
	elems := make([]symbol.Symbol, len(left.Elements))
	copy(elems, left.Elements)
	if right.Kind == symbol.KindTuple {
		elems = append(elems, right.Elements...)
	} else {
		elems = append(elems, right)
	}
	return symbol.Tuple(elems)
}

// Beta: pop the condition; splice the then-delta's symbols onto control
// if true, else the else-delta's.
func (m *Machine) stepBeta(beta symbol.Symbol) error {
	cond, err := m.popValue("conditional")
	if err != nil {
		return err
	}
	if cond.Kind != symbol.KindBool {
		return &RuntimeError{Message: "conditional requires a boolean", Context: cond.Text()}
	}
	if cond.Bool {
		spliceDelta(m.control, beta.Branches[0])
	} else {
		spliceDelta(m.control, beta.Branches[1])
	}
	return nil
}

// Tau(n): pop n values, construct a Tuple with those values in stack
// order reversed (the first popped becomes the last element).
func (m *Machine) stepTau(tau symbol.Symbol) error {
	n := tau.Arity
	popped := make([]symbol.Symbol, n)
	for i := 0; i < n; i++ {
		v, err := m.popValue("tuple construction")
		if err != nil {
			return err
		}
		popped[i] = v
	}
	elems := make([]symbol.Symbol, n)
	for i, v := range popped {
		elems[n-1-i] = v
	}
	m.pushValue(symbol.Tuple(elems))
	return nil
}

// Gamma: pop the callee and dispatch on its variant.
func (m *Machine) stepGamma() error {
	callee, err := m.popValue("function application")
	if err != nil {
		return err
	}
	switch callee.Kind {
	case symbol.KindLambda:
		return m.applyLambda(callee)
	case symbol.KindTuple:
		return m.applyTupleSelect(callee)
	case symbol.KindYstar:
		return m.applyYstar()
	case symbol.KindEta:
		return m.applyEta(callee)
	case symbol.KindBoundPrimitive:
		return m.applyBoundPrimitive(callee)
	case symbol.KindID:
		return m.applyPrimitive(callee)
	default:
		return &RuntimeError{Message: "gamma applied to a non-applicable value", Context: callee.Text()}
	}
}

// Lambda application: allocate a fresh frame, bind parameter(s), push
// the frame marker onto control below the body's symbols (so the body
// runs first and the marker pops on exit), and make the frame current.
func (m *Machine) applyLambda(lambda symbol.Symbol) error {
	frame := m.envs.Alloc(lambda.CapturedEnvIdx)

	if len(lambda.ParamNames) == 0 {
		// A zero-parameter lambda (Vb -> "()") still receives exactly one
		// argument from Gamma, conventionally `dummy`; the frame binds
		// nothing, the argument is simply discarded.
		if _, err := m.popValue("function application"); err != nil {
			return err
		}
	} else if len(lambda.ParamNames) == 1 {
		arg, err := m.popValue("function application")
		if err != nil {
			return err
		}
		frame.Bindings[lambda.ParamNames[0]] = arg
	} else {
		arg, err := m.popValue("function application")
		if err != nil {
			return err
		}
		if arg.Kind != symbol.KindTuple || len(arg.Elements) != len(lambda.ParamNames) {
			return &RuntimeError{Message: "multi-parameter lambda requires a matching tuple argument", Context: arg.Text()}
		}
		for i, name := range lambda.ParamNames {
			frame.Bindings[name] = arg.Elements[i]
		}
	}

	m.currentEnv = frame.Index
	marker := symbol.EnvMarker(frame.Index)
	m.control.Push(marker)
	spliceDelta(m.control, lambda.Body)
	m.pushValue(marker)
	return nil
}

// Tuple selection: pop an Integer index, push the tuple's 1-based
// element at that index.
func (m *Machine) applyTupleSelect(tuple symbol.Symbol) error {
	idx, err := m.popValue("tuple selection")
	if err != nil {
		return err
	}
	if idx.Kind != symbol.KindInt {
		return &RuntimeError{Message: "tuple selection requires an integer index", Context: idx.Text()}
	}
	i := idx.Int
	if i < 1 || i > len(tuple.Elements) {
		return &RuntimeError{Message: "tuple index out of range", Context: fmt.Sprintf("index %d, length %d", i, len(tuple.Elements))}
	}
	m.pushValue(tuple.Elements[i-1])
	return nil
}

// Y*: pop a Lambda, wrap it in an Eta carrying the same index, captured
// environment, parameter names, and body; push the Eta.
func (m *Machine) applyYstar() error {
	lambda, err := m.popValue("Y*")
	if err != nil {
		return err
	}
	if lambda.Kind != symbol.KindLambda {
		return &RuntimeError{Message: "Y* requires a lambda operand", Context: lambda.Text()}
	}
	m.pushValue(symbol.Eta(lambda))
	return nil
}

// Eta: push two Gammas onto control, and the Eta then its wrapped
// Lambda onto the value stack. The next Gamma applies the Lambda to the
// Eta itself, binding the recursive name to this same Eta and realizing
// the fixed point; the second Gamma applies that result to the real
// argument.
func (m *Machine) applyEta(eta symbol.Symbol) error {
	m.control.Push(symbol.Gamma())
	m.control.Push(symbol.Gamma())
	m.pushValue(eta)
	m.pushValue(eta.AsLambda())
	return nil
}

func (m *Machine) applyPrimitive(name symbol.Symbol) error {
	n, ok := primitives.Arity(name.Name)
	if !ok {
		return &RuntimeError{
			Message:    "unbound name with no primitive binding",
			Context:    name.Name,
			Suggestion: "check for a typo, or that the name is bound before use",
		}
	}
	arg, err := m.popValue("primitive application")
	if err != nil {
		return err
	}
	if n == 1 {
		result, err := primitives.Apply(name.Name, []symbol.Symbol{arg}, m.out)
		if err != nil {
			return translatePrimitiveError(err)
		}
		m.pushValue(result)
		return nil
	}
	m.pushValue(symbol.BoundPrimitive(name.Name, arg))
	return nil
}

func (m *Machine) applyBoundPrimitive(bound symbol.Symbol) error {
	arg, err := m.popValue("primitive application")
	if err != nil {
		return err
	}
	result, err := primitives.Apply(bound.Op, []symbol.Symbol{bound.Elements[0], arg}, m.out)
	if err != nil {
		return translatePrimitiveError(err)
	}
	m.pushValue(result)
	return nil
}

func translatePrimitiveError(err error) error {
	if pe, ok := err.(*primitives.Error); ok {
		return &RuntimeError{Message: pe.Message, Context: pe.Name}
	}
	return &RuntimeError{Message: err.Error()}
}
