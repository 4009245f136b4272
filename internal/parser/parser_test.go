package parser

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aledsdavies/rpal/internal/ast"
	"github.com/aledsdavies/rpal/internal/lexer"
)

func parseSource(t *testing.T, source string) *ast.Node {
	t.Helper()
	tokens, err := lexer.Lex(source)
	require.NoError(t, err)
	root, err := Parse(tokens)
	require.NoError(t, err)
	return root
}

func TestParseDumpShapes(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{
			name:   "let binding",
			source: "let x = 5 in x",
			want: "let\n" +
				".=\n" +
				"..<IDENTIFIER:x>\n" +
				"..<INTEGER:5>\n" +
				".<IDENTIFIER:x>\n",
		},
		{
			name:   "single-parameter lambda",
			source: "fn x . x + 1",
			want: "lambda\n" +
				".<IDENTIFIER:x>\n" +
				".+\n" +
				"..<IDENTIFIER:x>\n" +
				"..<INTEGER:1>\n",
		},
		{
			name:   "left-associated application",
			source: "f x y",
			want: "gamma\n" +
				".gamma\n" +
				"..<IDENTIFIER:f>\n" +
				"..<IDENTIFIER:x>\n" +
				".<IDENTIFIER:y>\n",
		},
		{
			name:   "tuple",
			source: "1, 2, 3",
			want: "tau\n" +
				".<INTEGER:1>\n" +
				".<INTEGER:2>\n" +
				".<INTEGER:3>\n",
		},
		{
			name:   "conditional",
			source: "x eq 0 -> 1 | 2",
			want: "->\n" +
				".eq\n" +
				"..<IDENTIFIER:x>\n" +
				"..<INTEGER:0>\n" +
				".<INTEGER:1>\n" +
				".<INTEGER:2>\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := parseSource(t, tt.source)
			require.Equal(t, tt.want, ast.Dump(root))
		})
	}
}

func TestParseTrailingInputIsAnError(t *testing.T) {
	tokens, err := lexer.Lex("x y )")
	require.NoError(t, err)
	_, err = Parse(tokens)
	require.Error(t, err)
}

func TestParseMisspelledReservedWordIsAnError(t *testing.T) {
	tokens, err := lexer.Lex("lett x = 1 in x")
	require.NoError(t, err)
	_, err = Parse(tokens)
	require.Error(t, err)
}


func TestParseFunctionForm(t *testing.T) {
	// function_form is a definition (D) production, only reachable inside
	// a let or where definition, never as a standalone top-level program.
	root := parseSource(t, "let f x y = x + y in f")
	require.Equal(t, "let", root.Tag)
	def := root.Children[0]
	require.Equal(t, "function_form", def.Tag)
	require.Len(t, def.Children, 4)
}

func TestParseRecAndWithin(t *testing.T) {
	root := parseSource(t, "let rec f x = f x within g = 1 in g")
	require.Equal(t, "let", root.Tag)
	require.Equal(t, "within", root.Children[0].Tag)
}
