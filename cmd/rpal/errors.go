package main

import (
	"fmt"
	"io"

	"github.com/aledsdavies/rpal/internal/control"
	"github.com/aledsdavies/rpal/internal/cse"
	"github.com/aledsdavies/rpal/internal/lexer"
	"github.com/aledsdavies/rpal/internal/parser"
	"github.com/aledsdavies/rpal/internal/standardize"
)

// FormatError prints err to w, colorized and annotated with whichever
// pipeline stage produced it. Every stage's error type already carries
// a plain-English Error() string; this only adds the stage label, color,
// and (for parser/runtime errors) the Suggestion line.
func FormatError(w io.Writer, err error, useColor bool) {
	if err == nil {
		return
	}
	stage, suggestion := classify(err)
	fmt.Fprintf(w, "%s%s\n", Colorize(stage+": ", ColorRed, useColor), err.Error())
	if suggestion != "" {
		fmt.Fprintf(w, "%s%s\n", Colorize("Hint: ", ColorYellow, useColor), suggestion)
	}
}

func classify(err error) (stage, suggestion string) {
	switch e := err.(type) {
	case *lexer.Error:
		return "lex error", ""
	case *parser.Error:
		return "parse error", e.Suggestion
	case *standardize.Error:
		return "standardization error", ""
	case *control.Error:
		return "control generation error", ""
	case *cse.RuntimeError:
		return "runtime error", e.Suggestion
	default:
		return "error", ""
	}
}
