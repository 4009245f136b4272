package control

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aledsdavies/rpal/internal/lexer"
	"github.com/aledsdavies/rpal/internal/parser"
	"github.com/aledsdavies/rpal/internal/standardize"
	"github.com/aledsdavies/rpal/internal/symbol"
)

func compile(t *testing.T, source string) *symbol.Delta {
	t.Helper()
	tokens, err := lexer.Lex(source)
	require.NoError(t, err)
	root, err := parser.Parse(tokens)
	require.NoError(t, err)
	st, err := standardize.Standardize(root)
	require.NoError(t, err)
	delta, err := Generate(st)
	require.NoError(t, err)
	return delta
}

// let x = 5 in x + 3 standardizes to gamma(lambda(x, x+3), 5); delta0
// holds the argument (5) then the lambda, then gamma — emitGamma puts
// the argument before the function per the stack-discipline ordering
// rule. The lambda's body compiles into its own delta.
func TestGenerateLetBindingSplitsLambdaBodyIntoOwnDelta(t *testing.T) {
	delta := compile(t, "let x = 5 in x + 3")
	require.Equal(t, 0, delta.Index)
	require.Len(t, delta.Symbols, 3)
	require.Equal(t, symbol.KindInt, delta.Symbols[0].Kind)
	require.Equal(t, 5, delta.Symbols[0].Int)
	require.Equal(t, symbol.KindLambda, delta.Symbols[1].Kind)
	require.Equal(t, symbol.KindGamma, delta.Symbols[2].Kind)

	body := delta.Symbols[1].Body
	require.Equal(t, 1, body.Index)
	require.Len(t, body.Symbols, 3)
	require.Equal(t, symbol.KindID, body.Symbols[0].Kind)
	require.Equal(t, "x", body.Symbols[0].Name)
	require.Equal(t, symbol.KindInt, body.Symbols[1].Kind)
	require.Equal(t, 3, body.Symbols[1].Int)
	require.Equal(t, symbol.KindBinaryOp, body.Symbols[2].Kind)
	require.Equal(t, "+", body.Symbols[2].Op)
}

// x eq 0 -> 1 | 2 emits the condition, then a Beta referencing two
// freshly allocated branch deltas.
func TestGenerateConditionalEmitsBetaWithTwoBranches(t *testing.T) {
	delta := compile(t, "let x = 1 in x eq 0 -> 1 | 2")
	body := delta.Symbols[1].Body
	last := body.Symbols[len(body.Symbols)-1]
	require.Equal(t, symbol.KindBeta, last.Kind)
	require.NotNil(t, last.Branches[0])
	require.NotNil(t, last.Branches[1])
	require.Equal(t, symbol.KindInt, last.Branches[0].Symbols[0].Kind)
	require.Equal(t, 1, last.Branches[0].Symbols[0].Int)
	require.Equal(t, symbol.KindInt, last.Branches[1].Symbols[0].Kind)
	require.Equal(t, 2, last.Branches[1].Symbols[0].Int)
}

// 1, 2, 3 emits each element then a Tau marker carrying its arity.
func TestGenerateTupleEmitsTauWithArity(t *testing.T) {
	delta := compile(t, "let x = 1 in x, 2, 3")
	body := delta.Symbols[1].Body
	last := body.Symbols[len(body.Symbols)-1]
	require.Equal(t, symbol.KindTau, last.Kind)
	require.Equal(t, 3, last.Arity)
}

// A zero-parameter lambda (Vb -> "()") standardizes to a plain unary
// lambda whose first child is the "empty_params" tag; emitLambda must
// recognize that tag rather than require an identifier.
func TestGenerateZeroParameterLambda(t *testing.T) {
	delta := compile(t, "(fn () . 5) dummy")
	var lambdaSym symbol.Symbol
	for _, s := range delta.Symbols {
		if s.Kind == symbol.KindLambda {
			lambdaSym = s
		}
	}
	require.Equal(t, symbol.KindLambda, lambdaSym.Kind)
	require.Empty(t, lambdaSym.ParamNames)
}

// TestDumpParseRoundTrip confirms that dumping a delta pool and parsing
// it back produces textually identical output — the notation's
// "deltaN" references resolve the same way regardless of which pass
// built the pool.
func TestDumpParseRoundTrip(t *testing.T) {
	delta := compile(t, "let rec f x = x eq 0 -> 1 | f x in f 5")
	dump := Dump(delta)
	require.NotEmpty(t, dump)

	reparsed, err := Parse(dump)
	require.NoError(t, err)
	require.Equal(t, dump, Dump(reparsed))
}

func TestParseRejectsMissingDeltaZero(t *testing.T) {
	_, err := Parse("delta 1\n  <INTEGER:1>\n")
	require.Error(t, err)
}

func TestParseRejectsUnknownDeltaReference(t *testing.T) {
	_, err := Parse("delta 0\n  lambda 0 x body=delta7\n")
	require.Error(t, err)
}

func TestParseForwardReferenceResolves(t *testing.T) {
	// delta1 is declared after delta0 references it.
	text := "delta 0\n" +
		"  lambda 0 x body=delta1\n" +
		"delta 1\n" +
		"  <IDENTIFIER:x>\n"
	root, err := Parse(text)
	require.NoError(t, err)
	require.Equal(t, symbol.KindLambda, root.Symbols[0].Kind)
	require.Equal(t, 1, root.Symbols[0].Body.Index)
	require.Equal(t, "x", root.Symbols[0].Body.Symbols[0].Name)
}
