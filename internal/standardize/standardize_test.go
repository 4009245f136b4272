package standardize

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aledsdavies/rpal/internal/ast"
	"github.com/aledsdavies/rpal/internal/lexer"
	"github.com/aledsdavies/rpal/internal/parser"
)

func standardizeSource(t *testing.T, source string) *ast.Node {
	t.Helper()
	tokens, err := lexer.Lex(source)
	require.NoError(t, err)
	root, err := parser.Parse(tokens)
	require.NoError(t, err)
	st, err := Standardize(root)
	require.NoError(t, err)
	return st
}

// let(=(X,E), P) -> gamma(lambda(X,P), E)
func TestStandardizeLet(t *testing.T) {
	st := standardizeSource(t, "let x = 5 in x")
	require.Equal(t, "gamma", st.Tag)
	require.Equal(t, "lambda", st.Children[0].Tag)
	require.Equal(t, "<IDENTIFIER:x>", st.Children[0].Children[0].Tag)
	require.Equal(t, "<IDENTIFIER:x>", st.Children[0].Children[1].Tag)
	require.Equal(t, "<INTEGER:5>", st.Children[1].Tag)
}

// where(P, =(X,E)) rewrites to the same shape as let.
func TestStandardizeWhere(t *testing.T) {
	st := standardizeSource(t, "x where x = 5")
	require.Equal(t, "gamma", st.Tag)
	require.Equal(t, "lambda", st.Children[0].Tag)
}

// function_form(P, V1..Vk, E) -> =(P, lambda(V1, lambda(...))); function_form
// is a definition (D) production, only reachable inside a let or where
// definition, so this goes through the same let(=(X,E),P) -> gamma(lambda(X,P),E)
// rewrite and the curried lambda chain surfaces as the outer gamma's second
// child (the bound expression), same as TestStandardizeLet.
func TestStandardizeFunctionFormCurries(t *testing.T) {
	st := standardizeSource(t, "let f x y = x + y in f")
	require.Equal(t, "gamma", st.Tag)
	require.Equal(t, "lambda", st.Children[0].Tag)
	require.Equal(t, "<IDENTIFIER:f>", st.Children[0].Children[0].Tag)

	outer := st.Children[1]
	require.Equal(t, "lambda", outer.Tag)
	require.Equal(t, "<IDENTIFIER:x>", outer.Children[0].Tag)
	inner := outer.Children[1]
	require.Equal(t, "lambda", inner.Tag)
	require.Equal(t, "<IDENTIFIER:y>", inner.Children[0].Tag)
	require.Equal(t, "+", inner.Children[1].Tag)
}

// and(=(X1,E1), =(X2,E2)) -> =(,(X1,X2), tau(E1,E2))
func TestStandardizeAnd(t *testing.T) {
	st := standardizeSource(t, "let x = 1 and y = 2 in x")
	require.Equal(t, "gamma", st.Tag)
	lambda := st.Children[0]
	require.Equal(t, "lambda", lambda.Tag)
	require.Equal(t, ",", lambda.Children[0].Tag)
	require.Len(t, lambda.Children[0].Children, 2)
	require.Equal(t, "tau", st.Children[1].Tag)
}

// rec(=(X,E)) -> =(X, gamma(Y*, lambda(X,E))); then let(=(X,E'), P) ->
// gamma(lambda(X,P), E') wraps that in turn, so the Y*/Eta construct
// ends up as the outer gamma's second child (the bound expression).
func TestStandardizeRec(t *testing.T) {
	st := standardizeSource(t, "let rec f x = f x in f")
	require.Equal(t, "gamma", st.Tag)
	require.Equal(t, "lambda", st.Children[0].Tag)

	fixpoint := st.Children[1]
	require.Equal(t, "gamma", fixpoint.Tag)
	require.Equal(t, "<Y*>", fixpoint.Children[0].Tag)
	require.Equal(t, "lambda", fixpoint.Children[1].Tag)
}

// within(=(X1,E1), =(X2,E2)) -> =(X2, gamma(lambda(X1,E2), E1)); the
// outer let then wraps that "=" as gamma(lambda(X2,P), gamma(lambda(X1,E2),E1)).
func TestStandardizeWithin(t *testing.T) {
	st := standardizeSource(t, "let f = 1 within g = f in g")
	require.Equal(t, "gamma", st.Tag)
	require.Equal(t, "lambda", st.Children[0].Tag)
	require.Equal(t, "<IDENTIFIER:g>", st.Children[0].Children[0].Tag)

	e := st.Children[1]
	require.Equal(t, "gamma", e.Tag)
	require.Equal(t, "lambda", e.Children[0].Tag)
	require.Equal(t, "<IDENTIFIER:f>", e.Children[0].Children[0].Tag)
	require.Equal(t, "<INTEGER:1>", e.Children[1].Tag)
}

// @(E1, N, E2) -> gamma(gamma(N, E1), E2)
func TestStandardizeAt(t *testing.T) {
	st := standardizeSource(t, "let r = x @ f y in r")
	require.Equal(t, "gamma", st.Tag)
	// let(=(r, E), P) -> gamma(lambda(r, P), E): E is the gamma's second
	// child, carrying the standardized "@" rewrite.
	e := st.Children[1]
	require.Equal(t, "gamma", e.Tag)
	require.Equal(t, "gamma", e.Children[0].Tag)
	require.Equal(t, "<IDENTIFIER:f>", e.Children[0].Children[0].Tag)
	require.Equal(t, "<IDENTIFIER:x>", e.Children[0].Children[1].Tag)
	require.Equal(t, "<IDENTIFIER:y>", e.Children[1].Tag)
}

func TestStandardizeLambdaCurriesMultipleParams(t *testing.T) {
	st := standardizeSource(t, "(fn x y . x + y) 1 2")
	// the application chain's innermost callee is the lambda; standardize
	// doesn't touch gamma nodes, only the lambda's own shape.
	require.Equal(t, "gamma", st.Tag)
	require.Equal(t, "gamma", st.Children[0].Tag)

	outer := st.Children[0].Children[0]
	require.Equal(t, "lambda", outer.Tag)
	require.Len(t, outer.Children, 2)
	require.Equal(t, "<IDENTIFIER:x>", outer.Children[0].Tag)
	inner := outer.Children[1]
	require.Equal(t, "lambda", inner.Tag)
	require.Len(t, inner.Children, 2)
	require.Equal(t, "<IDENTIFIER:y>", inner.Children[0].Tag)
	require.Equal(t, "+", inner.Children[1].Tag)
}
