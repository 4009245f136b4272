// Package primitives implements the built-in functions of spec.md §6,
// dispatched by the CSE machine whenever Gamma's callee is an unbound
// identifier whose text names one of these.
package primitives

import (
	"fmt"
	"io"
	"strconv"

	"github.com/aledsdavies/rpal/internal/symbol"
)

// arity lists how many arguments each primitive consumes before it can
// be applied. Every primitive here takes 1 except Conc, which spec.md
// §6 calls out as curried across two successive Gamma applications.
var arity = map[string]int{
	"Print": 1, "Stem": 1, "Stern": 1, "Conc": 2, "Order": 1, "Null": 1,
	"Itos": 1, "Isinteger": 1, "Isstring": 1, "Istuple": 1, "Isdummy": 1,
	"Istruthvalue": 1, "Isfunction": 1,
}

// Arity reports name's argument count, or ok=false if name is not a
// recognized primitive.
func Arity(name string) (n int, ok bool) {
	n, ok = arity[name]
	return n, ok
}

// Error is a primitive-function misuse: wrong argument variant, empty
// string operand, etc. — one of spec.md §7's RuntimeError cases.
type Error struct {
	Name    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Name, e.Message)
}

// Apply evaluates a fully-saturated call to a primitive. out receives
// Print's side-effecting write; it is otherwise unused.
func Apply(name string, args []symbol.Symbol, out io.Writer) (symbol.Symbol, error) {
	switch name {
	case "Print":
		fmt.Fprint(out, args[0].Format())
		return args[0], nil

	case "Stem":
		s, err := requireStr(name, args[0])
		if err != nil {
			return symbol.Symbol{}, err
		}
		if len(s) == 0 {
			return symbol.Symbol{}, &Error{name, "argument is an empty string"}
		}
		return symbol.Str(string(s[0])), nil

	case "Stern":
		s, err := requireStr(name, args[0])
		if err != nil {
			return symbol.Symbol{}, err
		}
		if len(s) == 0 {
			return symbol.Symbol{}, &Error{name, "argument is an empty string"}
		}
		return symbol.Str(s[1:]), nil

	case "Conc":
		s1, err := requireStr(name, args[0])
		if err != nil {
			return symbol.Symbol{}, err
		}
		s2, err := requireStr(name, args[1])
		if err != nil {
			return symbol.Symbol{}, err
		}
		return symbol.Str(s1 + s2), nil

	case "Order":
		if args[0].Kind != symbol.KindTuple {
			return symbol.Symbol{}, &Error{name, "argument is not a tuple"}
		}
		return symbol.Int(len(args[0].Elements)), nil

	case "Null":
		if args[0].Kind != symbol.KindTuple {
			return symbol.Symbol{}, &Error{name, "argument is not a tuple"}
		}
		return symbol.Bool(len(args[0].Elements) == 0), nil

	case "Itos":
		if args[0].Kind != symbol.KindInt {
			return symbol.Symbol{}, &Error{name, "argument is not an integer"}
		}
		return symbol.Str(strconv.Itoa(args[0].Int)), nil

	case "Isinteger":
		return symbol.Bool(args[0].Kind == symbol.KindInt), nil
	case "Isstring":
		return symbol.Bool(args[0].Kind == symbol.KindStr), nil
	case "Istuple":
		return symbol.Bool(args[0].Kind == symbol.KindTuple), nil
	case "Isdummy":
		return symbol.Bool(args[0].Kind == symbol.KindDummy), nil
	case "Istruthvalue":
		return symbol.Bool(args[0].Kind == symbol.KindBool), nil
	case "Isfunction":
		return symbol.Bool(args[0].Kind == symbol.KindLambda || args[0].Kind == symbol.KindEta), nil

	default:
		return symbol.Symbol{}, &Error{name, "unknown primitive"}
	}
}

func requireStr(name string, s symbol.Symbol) (string, error) {
	if s.Kind != symbol.KindStr {
		return "", &Error{name, "argument is not a string"}
	}
	return s.Str, nil
}
