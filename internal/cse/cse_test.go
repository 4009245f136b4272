package cse

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aledsdavies/rpal/internal/control"
	"github.com/aledsdavies/rpal/internal/lexer"
	"github.com/aledsdavies/rpal/internal/parser"
	"github.com/aledsdavies/rpal/internal/standardize"
)

// eval runs source through the full pipeline (the same sequence
// cmd/rpal's compileControl uses) and returns the final value's
// formatted text plus anything written to stdout via Print.
func eval(t *testing.T, source string) (string, string) {
	t.Helper()
	tokens, err := lexer.Lex(source)
	require.NoError(t, err)
	root, err := parser.Parse(tokens)
	require.NoError(t, err)
	st, err := standardize.Standardize(root)
	require.NoError(t, err)
	delta, err := control.Generate(st)
	require.NoError(t, err)

	var out bytes.Buffer
	result, err := New(delta, &out).Run()
	require.NoError(t, err)
	return result.Format(), out.String()
}

func TestLetBindingArithmetic(t *testing.T) {
	got, _ := eval(t, "let x = 5 in x + 3")
	require.Equal(t, "8", got)
}

func TestRecFactorial(t *testing.T) {
	got, _ := eval(t, "let rec fact n = n eq 0 -> 1 | n * fact (n - 1) in fact 5")
	require.Equal(t, "120", got)
}

func TestTupleOfSquares(t *testing.T) {
	got, _ := eval(t, "let sq n = n * n in sq 2, sq 3, sq 4")
	require.Equal(t, "(4, 9, 16)", got)
}

// aug extends a tuple with either a single value or, when the right
// operand is itself a tuple, all of its elements.
func TestAugExtendsTuple(t *testing.T) {
	got, _ := eval(t, "let t = (nil aug 1) aug 2 in t")
	require.Equal(t, "(1, 2)", got)
}

func TestAugExtendsWithTupleElements(t *testing.T) {
	got, _ := eval(t, "let t = (nil aug 1) aug (2, 3) in t")
	require.Equal(t, "(1, 2, 3)", got)
}

func TestConcIsCurriedAcrossTwoApplications(t *testing.T) {
	got, _ := eval(t, "Conc 'foo' 'bar'")
	require.Equal(t, "foobar", got)
}

func TestCurriedLambdaAppliedToTwoArguments(t *testing.T) {
	got, _ := eval(t, "(fn x . fn y . x + y) 2 3")
	require.Equal(t, "5", got)
}

// A zero-parameter lambda (Vb -> "()", spec.md §4.2) still receives one
// argument from Gamma; the frame binds nothing and the argument is
// discarded.
func TestZeroParameterLambdaDiscardsItsArgument(t *testing.T) {
	got, _ := eval(t, "(fn () . 5) dummy")
	require.Equal(t, "5", got)
}

func TestPrintWritesToOutAndReturnsItsArgument(t *testing.T) {
	got, out := eval(t, "Print 42")
	require.Equal(t, "42", got)
	require.Equal(t, "42", out)
}
