// Package control compiles a standardized tree (ST) into the delta pool
// the CSE machine executes: spec.md §4.4's pre-order traversal, emitting
// a flat control-symbol sequence per delta and addressing nested bodies
// (lambda bodies, beta branches) by reference rather than by inlining
// their symbols into the parent sequence.
package control

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/aledsdavies/rpal/internal/ast"
	"github.com/aledsdavies/rpal/internal/symbol"
)

// Error reports an ST shape the generator did not expect — spec.md §7
// notes this should not occur downstream of a correct standardizer, so
// it signals an internal inconsistency rather than a user mistake.
type Error struct {
	Tag     string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("control generation error at %q: %s", e.Tag, e.Message)
}

var binaryOps = map[string]bool{
	"+": true, "-": true, "*": true, "/": true, "**": true,
	"&": true, "or": true, "eq": true, "ne": true,
	"ls": true, "le": true, "gr": true, "ge": true, "aug": true,
}

var unaryOps = map[string]bool{"neg": true, "not": true}

type generator struct {
	nextDelta  int
	nextLambda int
}

// Generate compiles root into the delta pool's root body, delta0, per
// spec.md §4.4: "the initial control is [e0, delta0] where delta0 wraps
// the root". Delta indices are assigned in allocation order starting at
// 0; only bodies actually referenced by a Lambda or a Beta branch get
// their own pool entry, nested expressions compile straight into their
// enclosing delta's symbol sequence.
func Generate(root *ast.Node) (*symbol.Delta, error) {
	g := &generator{}
	return g.compileBody(root)
}

func (g *generator) compileBody(n *ast.Node) (*symbol.Delta, error) {
	d := &symbol.Delta{Index: g.nextDelta}
	g.nextDelta++
	syms, err := g.emit(n)
	if err != nil {
		return nil, err
	}
	d.Symbols = syms
	return d, nil
}

// emit returns the flat symbol sequence for n, to be inlined into
// whichever delta is currently being built.
func (g *generator) emit(n *ast.Node) ([]symbol.Symbol, error) {
	switch {
	case n.Tag == "lambda":
		return g.emitLambda(n)
	case n.Tag == "->":
		return g.emitConditional(n)
	case n.Tag == "tau":
		return g.emitTau(n)
	case n.Tag == "<Y*>":
		return []symbol.Symbol{symbol.Ystar()}, nil
	case n.Tag == "gamma":
		return g.emitGamma(n)
	case binaryOps[n.Tag]:
		return g.emitBinary(n)
	case unaryOps[n.Tag]:
		return g.emitUnary(n)
	default:
		return g.emitLeaf(n)
	}
}

// lambda emits a single Lambda symbol: a freshly assigned lambda index,
// the parameter name list taken from its first child (a single
// identifier, or a ','-node produced by the 'and' rewrite feeding a
// tuple-destructuring let binding), and a reference to the delta
// compiled from its body (second child). The lambda's own body symbols
// are never inlined into the enclosing delta — only reachable by
// following Body once the CSE machine applies the lambda.
func (g *generator) emitLambda(n *ast.Node) ([]symbol.Symbol, error) {
	if len(n.Children) != 2 {
		return nil, &Error{Tag: "lambda", Message: "expected a single parameter and a body"}
	}
	params, err := paramNames(n.Children[0])
	if err != nil {
		return nil, err
	}
	index := g.nextLambda
	g.nextLambda++
	body, err := g.compileBody(n.Children[1])
	if err != nil {
		return nil, err
	}
	return []symbol.Symbol{symbol.Lambda(index, params, body)}, nil
}

func paramNames(n *ast.Node) ([]string, error) {
	if n.Tag == "empty_params" {
		return nil, nil
	}
	if n.Tag == "," {
		names := make([]string, len(n.Children))
		for i, c := range n.Children {
			name, err := identifierName(c)
			if err != nil {
				return nil, err
			}
			names[i] = name
		}
		return names, nil
	}
	name, err := identifierName(n)
	if err != nil {
		return nil, err
	}
	return []string{name}, nil
}

// -> emits the condition's symbols, then a Beta marker whose two branch
// deltas (then, else) hang off it by reference in Branches; neither
// branch is placed on the control until Beta runs and splices the one
// its condition selects.
func (g *generator) emitConditional(n *ast.Node) ([]symbol.Symbol, error) {
	if len(n.Children) != 3 {
		return nil, &Error{Tag: "->", Message: "expected condition, then-branch, else-branch"}
	}
	cond, err := g.emit(n.Children[0])
	if err != nil {
		return nil, err
	}
	thenDelta, err := g.compileBody(n.Children[1])
	if err != nil {
		return nil, err
	}
	elseDelta, err := g.compileBody(n.Children[2])
	if err != nil {
		return nil, err
	}
	beta := symbol.Beta()
	beta.Branches = [2]*symbol.Delta{thenDelta, elseDelta}
	return append(cond, beta), nil
}

// tau emits its children's symbols in order, then a Tau(n) marker; the
// CSE machine pops n values off the value stack to build the tuple.
func (g *generator) emitTau(n *ast.Node) ([]symbol.Symbol, error) {
	var out []symbol.Symbol
	for _, c := range n.Children {
		syms, err := g.emit(c)
		if err != nil {
			return nil, err
		}
		out = append(out, syms...)
	}
	return append(out, symbol.Tau(len(n.Children))), nil
}

// gamma emits the argument subtree's symbols, then the function
// subtree's, then a Gamma marker. The function must be the last thing
// pushed before the marker runs, since the machine's control discipline
// (spec.md §9(b): pop-back/splice-onto-top) processes a delta's symbols
// in their listed order, and Gamma pops its callee off the top of the
// value stack — the most recently pushed value.
func (g *generator) emitGamma(n *ast.Node) ([]symbol.Symbol, error) {
	if len(n.Children) != 2 {
		return nil, &Error{Tag: "gamma", Message: "expected function and argument children"}
	}
	arg, err := g.emit(n.Children[1])
	if err != nil {
		return nil, err
	}
	fn, err := g.emit(n.Children[0])
	if err != nil {
		return nil, err
	}
	out := append(arg, fn...)
	return append(out, symbol.Gamma()), nil
}

// Binary operators emit the left operand, then the right, then the
// operator: operands precede the operator.
func (g *generator) emitBinary(n *ast.Node) ([]symbol.Symbol, error) {
	if len(n.Children) != 2 {
		return nil, &Error{Tag: n.Tag, Message: "expected two operands"}
	}
	lhs, err := g.emit(n.Children[0])
	if err != nil {
		return nil, err
	}
	rhs, err := g.emit(n.Children[1])
	if err != nil {
		return nil, err
	}
	out := append(lhs, rhs...)
	return append(out, symbol.BinaryOp(n.Tag)), nil
}

func (g *generator) emitUnary(n *ast.Node) ([]symbol.Symbol, error) {
	if len(n.Children) != 1 {
		return nil, &Error{Tag: n.Tag, Message: "expected one operand"}
	}
	operand, err := g.emit(n.Children[0])
	if err != nil {
		return nil, err
	}
	return append(operand, symbol.UnaryOp(n.Tag)), nil
}

// emitLeaf dispatches terminal tags: <IDENTIFIER:..>, <INTEGER:..>,
// <STRING:..>, <TRUE_VALUE:..>, <FALSE_VALUE:..>, <NIL:..>, <DUMMY:..>.
func (g *generator) emitLeaf(n *ast.Node) ([]symbol.Symbol, error) {
	if len(n.Children) != 0 {
		return nil, &Error{Tag: n.Tag, Message: "unrecognized non-leaf tag in standardized tree"}
	}
	kind, value, ok := splitLeaf(n.Tag)
	if !ok {
		return nil, &Error{Tag: n.Tag, Message: "malformed leaf tag"}
	}
	switch kind {
	case "IDENTIFIER":
		return []symbol.Symbol{symbol.Id(value)}, nil
	case "INTEGER":
		v, err := strconv.Atoi(value)
		if err != nil {
			return nil, &Error{Tag: n.Tag, Message: "malformed integer literal"}
		}
		return []symbol.Symbol{symbol.Int(v)}, nil
	case "STRING":
		return []symbol.Symbol{symbol.Str(strings.Trim(value, "'"))}, nil
	case "TRUE_VALUE":
		return []symbol.Symbol{symbol.Bool(true)}, nil
	case "FALSE_VALUE":
		return []symbol.Symbol{symbol.Bool(false)}, nil
	case "NIL":
		return []symbol.Symbol{symbol.Nil()}, nil
	case "DUMMY":
		return []symbol.Symbol{symbol.Dummy()}, nil
	default:
		return nil, &Error{Tag: n.Tag, Message: "unrecognized leaf kind"}
	}
}

// Dump renders root and every delta reachable from it (lambda bodies,
// beta branches) as a flattened, indexed notation: one "delta N" block
// per pool entry, each line one control symbol. Lambda and Beta lines
// refer to other blocks by index ("body=deltaN", "then=deltaN") rather
// than embedding them inline, the same addressing scheme the generator
// itself uses at runtime. Grounded on the dotted-depth notation
// internal/ast's Dump uses for --ast/--st, adapted here to a pool of
// named blocks instead of a single tree.
func Dump(root *symbol.Delta) string {
	pool := collectDeltas(root)
	var b strings.Builder
	for _, d := range pool {
		fmt.Fprintf(&b, "delta %d\n", d.Index)
		for _, s := range d.Symbols {
			b.WriteString("  ")
			b.WriteString(dumpSymbol(s))
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// collectDeltas walks root and every delta reachable from it exactly
// once, keyed by Index, and returns them sorted by Index.
func collectDeltas(root *symbol.Delta) []*symbol.Delta {
	seen := make(map[int]*symbol.Delta)
	var walk func(d *symbol.Delta)
	walk = func(d *symbol.Delta) {
		if _, ok := seen[d.Index]; ok {
			return
		}
		seen[d.Index] = d
		for _, s := range d.Symbols {
			switch s.Kind {
			case symbol.KindLambda:
				walk(s.Body)
			case symbol.KindBeta:
				walk(s.Branches[0])
				walk(s.Branches[1])
			}
		}
	}
	walk(root)
	out := make([]*symbol.Delta, 0, len(seen))
	for _, d := range seen {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

func dumpSymbol(s symbol.Symbol) string {
	switch s.Kind {
	case symbol.KindID:
		return fmt.Sprintf("<IDENTIFIER:%s>", s.Name)
	case symbol.KindInt:
		return fmt.Sprintf("<INTEGER:%d>", s.Int)
	case symbol.KindStr:
		return fmt.Sprintf("<STRING:'%s'>", s.Str)
	case symbol.KindBool:
		if s.Bool {
			return "true"
		}
		return "false"
	case symbol.KindDummy:
		return "dummy"
	case symbol.KindTuple:
		return "nil"
	case symbol.KindGamma:
		return "gamma"
	case symbol.KindYstar:
		return "Y*"
	case symbol.KindTau:
		return fmt.Sprintf("tau %d", s.Arity)
	case symbol.KindUnaryOp, symbol.KindBinaryOp:
		return s.Op
	case symbol.KindBeta:
		return fmt.Sprintf("beta then=delta%d else=delta%d", s.Branches[0].Index, s.Branches[1].Index)
	case symbol.KindLambda:
		return fmt.Sprintf("lambda %d %s body=delta%d", s.LambdaIndex, strings.Join(s.ParamNames, ","), s.Body.Index)
	default:
		return fmt.Sprintf("<?kind:%d>", s.Kind)
	}
}

// Parse reconstructs a delta pool from Dump's notation, resolving
// "deltaN" references across blocks regardless of declaration order.
// Used by cmd/rpal's --run-control, which feeds a hand-edited or
// previously dumped control structure straight to the CSE machine,
// bypassing lexing, parsing, standardization, and generation entirely.
func Parse(text string) (*symbol.Delta, error) {
	type block struct {
		index int
		lines []string
	}
	var blocks []block
	for _, raw := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "delta ") {
			idx, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(trimmed, "delta ")))
			if err != nil {
				return nil, fmt.Errorf("control: malformed delta header %q", trimmed)
			}
			blocks = append(blocks, block{index: idx})
			continue
		}
		if len(blocks) == 0 {
			return nil, fmt.Errorf("control: symbol line before any delta header: %q", trimmed)
		}
		blocks[len(blocks)-1].lines = append(blocks[len(blocks)-1].lines, trimmed)
	}
	if len(blocks) == 0 {
		return nil, fmt.Errorf("control: empty control dump")
	}

	deltas := make(map[int]*symbol.Delta, len(blocks))
	for _, blk := range blocks {
		deltas[blk.index] = &symbol.Delta{Index: blk.index}
	}
	lookup := func(idx int) (*symbol.Delta, error) {
		d, ok := deltas[idx]
		if !ok {
			return nil, fmt.Errorf("control: reference to undefined delta %d", idx)
		}
		return d, nil
	}

	for _, blk := range blocks {
		d := deltas[blk.index]
		for _, line := range blk.lines {
			s, err := parseSymbolLine(line, lookup)
			if err != nil {
				return nil, err
			}
			d.Symbols = append(d.Symbols, s)
		}
	}

	root, ok := deltas[0]
	if !ok {
		return nil, fmt.Errorf("control: control dump has no delta 0")
	}
	return root, nil
}

func parseSymbolLine(line string, lookup func(int) (*symbol.Delta, error)) (symbol.Symbol, error) {
	switch {
	case line == "gamma":
		return symbol.Gamma(), nil
	case line == "Y*":
		return symbol.Ystar(), nil
	case line == "true":
		return symbol.Bool(true), nil
	case line == "false":
		return symbol.Bool(false), nil
	case line == "dummy":
		return symbol.Dummy(), nil
	case line == "nil":
		return symbol.Nil(), nil
	case unaryOps[line]:
		return symbol.UnaryOp(line), nil
	case binaryOps[line]:
		return symbol.BinaryOp(line), nil
	case strings.HasPrefix(line, "tau "):
		n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "tau ")))
		if err != nil {
			return symbol.Symbol{}, fmt.Errorf("control: malformed tau line %q", line)
		}
		return symbol.Tau(n), nil
	case strings.HasPrefix(line, "beta "):
		fields := strings.Fields(strings.TrimPrefix(line, "beta "))
		if len(fields) != 2 {
			return symbol.Symbol{}, fmt.Errorf("control: malformed beta line %q", line)
		}
		thenIdx, err := parseDeltaRef(fields[0], "then=delta")
		if err != nil {
			return symbol.Symbol{}, err
		}
		elseIdx, err := parseDeltaRef(fields[1], "else=delta")
		if err != nil {
			return symbol.Symbol{}, err
		}
		thenD, err := lookup(thenIdx)
		if err != nil {
			return symbol.Symbol{}, err
		}
		elseD, err := lookup(elseIdx)
		if err != nil {
			return symbol.Symbol{}, err
		}
		beta := symbol.Beta()
		beta.Branches = [2]*symbol.Delta{thenD, elseD}
		return beta, nil
	case strings.HasPrefix(line, "lambda "):
		fields := strings.Fields(strings.TrimPrefix(line, "lambda "))
		// Dump writes an empty name list for a zero-parameter lambda,
		// leaving only the index and body fields.
		if len(fields) != 2 && len(fields) != 3 {
			return symbol.Symbol{}, fmt.Errorf("control: malformed lambda line %q", line)
		}
		lambdaIdx, err := strconv.Atoi(fields[0])
		if err != nil {
			return symbol.Symbol{}, fmt.Errorf("control: malformed lambda index in %q", line)
		}
		var params []string
		if len(fields) == 3 {
			params = strings.Split(fields[1], ",")
		}
		bodyIdx, err := parseDeltaRef(fields[len(fields)-1], "body=delta")
		if err != nil {
			return symbol.Symbol{}, err
		}
		body, err := lookup(bodyIdx)
		if err != nil {
			return symbol.Symbol{}, err
		}
		return symbol.Lambda(lambdaIdx, params, body), nil
	case strings.HasPrefix(line, "<"):
		kind, value, ok := splitLeaf(line)
		if !ok {
			return symbol.Symbol{}, fmt.Errorf("control: malformed leaf line %q", line)
		}
		switch kind {
		case "IDENTIFIER":
			return symbol.Id(value), nil
		case "INTEGER":
			v, err := strconv.Atoi(value)
			if err != nil {
				return symbol.Symbol{}, fmt.Errorf("control: malformed integer line %q", line)
			}
			return symbol.Int(v), nil
		case "STRING":
			return symbol.Str(strings.Trim(value, "'")), nil
		default:
			return symbol.Symbol{}, fmt.Errorf("control: unrecognized leaf kind in %q", line)
		}
	default:
		return symbol.Symbol{}, fmt.Errorf("control: unrecognized control symbol %q", line)
	}
}

func parseDeltaRef(field, prefix string) (int, error) {
	if !strings.HasPrefix(field, prefix) {
		return 0, fmt.Errorf("control: expected %q prefix in %q", prefix, field)
	}
	return strconv.Atoi(strings.TrimPrefix(field, prefix))
}

func identifierName(n *ast.Node) (string, error) {
	kind, value, ok := splitLeaf(n.Tag)
	if !ok || kind != "IDENTIFIER" {
		return "", &Error{Tag: n.Tag, Message: "expected an identifier"}
	}
	return value, nil
}

// splitLeaf parses the "<KIND:value>" tag format produced by ast.Leaf.
func splitLeaf(tag string) (kind, value string, ok bool) {
	if len(tag) < 2 || tag[0] != '<' || tag[len(tag)-1] != '>' {
		return "", "", false
	}
	body := tag[1 : len(tag)-1]
	i := strings.IndexByte(body, ':')
	if i < 0 {
		return "", "", false
	}
	return body[:i], body[i+1:], true
}
