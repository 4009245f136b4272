// Package standardize rewrites an RPAL AST into its standardized tree
// (ST) via the eight local rewrites of spec.md §4.3, applied bottom-up:
// a node is only rewritten after all of its children have been.
package standardize

import (
	"fmt"

	"github.com/aledsdavies/rpal/internal/ast"
)

// Error reports a structural mismatch encountered while applying a
// rewrite rule — spec.md §7 notes this "should not occur if the parser
// is correct", so it signals an internal inconsistency rather than a
// user-facing mistake.
type Error struct {
	Rule    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("standardization error in rule %q: %s", e.Rule, e.Message)
}

// Standardize rewrites root in place (mutating Tag/Children the way each
// rule dictates) and returns it. Calling Standardize a second time on an
// already-standardized tree is a no-op: of the eight trigger tags only
// "lambda" remains, and every remaining lambda already has a single
// bound variable, so its rule returns the node unchanged.
func Standardize(root *ast.Node) (*ast.Node, error) {
	for _, c := range root.Children {
		if _, err := Standardize(c); err != nil {
			return nil, err
		}
	}
	return applyRule(root)
}

func applyRule(n *ast.Node) (*ast.Node, error) {
	switch n.Tag {
	case "let":
		return standardizeLet(n)
	case "where":
		return standardizeWhere(n)
	case "function_form":
		return standardizeFunctionForm(n)
	case "lambda":
		return standardizeLambda(n)
	case "within":
		return standardizeWithin(n)
	case "@":
		return standardizeAt(n)
	case "and":
		return standardizeAnd(n)
	case "rec":
		return standardizeRec(n)
	default:
		return n, nil
	}
}

// let(=(X,E), P) -> gamma(lambda(X,P), E)
func standardizeLet(n *ast.Node) (*ast.Node, error) {
	if len(n.Children) != 2 || n.Children[0].Tag != "=" {
		return nil, &Error{Rule: "let", Message: "expected =(X,E) and P children"}
	}
	eq, p := n.Children[0], n.Children[1]
	if len(eq.Children) != 2 {
		return nil, &Error{Rule: "let", Message: "malformed '=' node"}
	}
	x, e := eq.Children[0], eq.Children[1]

	eq.Tag = "lambda"
	eq.SetChildren([]*ast.Node{x, p})
	n.Tag = "gamma"
	n.SetChildren([]*ast.Node{eq, e})
	return n, nil
}

// where(P, =(X,E)) -> let(=(X,E), P), then apply the let rule immediately.
func standardizeWhere(n *ast.Node) (*ast.Node, error) {
	if len(n.Children) != 2 {
		return nil, &Error{Rule: "where", Message: "expected P and =(X,E) children"}
	}
	p, eq := n.Children[0], n.Children[1]
	n.Tag = "let"
	n.SetChildren([]*ast.Node{eq, p})
	return applyRule(n)
}

// function_form(P, V1..Vk, E) -> =(P, lambda(V1, lambda(V2, ... lambda(Vk, E))))
func standardizeFunctionForm(n *ast.Node) (*ast.Node, error) {
	if len(n.Children) < 3 {
		return nil, &Error{Rule: "function_form", Message: "expected name, >=1 param, and body"}
	}
	name := n.Children[0]
	params := n.Children[1 : len(n.Children)-1]
	body := n.Children[len(n.Children)-1]

	chain := nestLambdas(params, body)
	n.Tag = "="
	n.SetChildren([]*ast.Node{name, chain})
	return n, nil
}

// lambda with more than one bound variable is rewritten into a
// right-nested chain of unary lambdas.
func standardizeLambda(n *ast.Node) (*ast.Node, error) {
	if len(n.Children) <= 2 {
		return n, nil
	}
	params := n.Children[:len(n.Children)-1]
	body := n.Children[len(n.Children)-1]
	chain := nestLambdas(params, body)
	n.Tag = chain.Tag
	n.SetChildren(chain.Children)
	return n, nil
}

// nestLambdas builds lambda(V1, lambda(V2, ... lambda(Vk, body))).
func nestLambdas(params []*ast.Node, body *ast.Node) *ast.Node {
	result := body
	for i := len(params) - 1; i >= 0; i-- {
		result = ast.New("lambda", params[i], result)
	}
	return result
}

// within(=(X1,E1), =(X2,E2)) -> =(X2, gamma(lambda(X1,E2), E1))
func standardizeWithin(n *ast.Node) (*ast.Node, error) {
	if len(n.Children) != 2 || n.Children[0].Tag != "=" || n.Children[1].Tag != "=" {
		return nil, &Error{Rule: "within", Message: "expected two '=' children"}
	}
	eq1, eq2 := n.Children[0], n.Children[1]
	x1, e1 := eq1.Children[0], eq1.Children[1]
	x2, e2 := eq2.Children[0], eq2.Children[1]

	lambda := ast.New("lambda", x1, e2)
	gamma := ast.New("gamma", lambda, e1)
	n.Tag = "="
	n.SetChildren([]*ast.Node{x2, gamma})
	return n, nil
}

// @(E1, N, E2) -> gamma(gamma(N, E1), E2)
func standardizeAt(n *ast.Node) (*ast.Node, error) {
	if len(n.Children) != 3 {
		return nil, &Error{Rule: "@", Message: "expected three children E1, N, E2"}
	}
	e1, name, e2 := n.Children[0], n.Children[1], n.Children[2]
	inner := ast.New("gamma", name, e1)
	n.Tag = "gamma"
	n.SetChildren([]*ast.Node{inner, e2})
	return n, nil
}

// and(=(X1,E1), ..., =(Xk,Ek)) -> =(,(X1..Xk), tau(E1..Ek))
func standardizeAnd(n *ast.Node) (*ast.Node, error) {
	xs := make([]*ast.Node, 0, len(n.Children))
	es := make([]*ast.Node, 0, len(n.Children))
	for _, eq := range n.Children {
		if eq.Tag != "=" || len(eq.Children) != 2 {
			return nil, &Error{Rule: "and", Message: "expected only '=' children"}
		}
		xs = append(xs, eq.Children[0])
		es = append(es, eq.Children[1])
	}
	comma := ast.New(",", xs...)
	tau := ast.New("tau", es...)
	n.Tag = "="
	n.SetChildren([]*ast.Node{comma, tau})
	return n, nil
}

// rec(=(X,E)) -> =(X, gamma(Y*, lambda(X,E)))
func standardizeRec(n *ast.Node) (*ast.Node, error) {
	if len(n.Children) != 1 || n.Children[0].Tag != "=" {
		return nil, &Error{Rule: "rec", Message: "expected a single '=' child"}
	}
	eq := n.Children[0]
	x, e := eq.Children[0], eq.Children[1]

	ystar := ast.New("<Y*>")
	lambda := ast.New("lambda", x, e)
	gamma := ast.New("gamma", ystar, lambda)
	n.Tag = "="
	n.SetChildren([]*ast.Node{x.Clone(), gamma})
	return n, nil
}
