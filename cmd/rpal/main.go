// Command rpal is the RPAL interpreter's driver: lex, parse, standardize,
// compile to a delta pool, and run it on the CSE machine, or dump an
// intermediate tree along the way.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/aledsdavies/rpal/internal/ast"
	"github.com/aledsdavies/rpal/internal/cache"
	"github.com/aledsdavies/rpal/internal/config"
	"github.com/aledsdavies/rpal/internal/control"
	"github.com/aledsdavies/rpal/internal/cse"
	"github.com/aledsdavies/rpal/internal/lexer"
	"github.com/aledsdavies/rpal/internal/parser"
	"github.com/aledsdavies/rpal/internal/standardize"
	"github.com/aledsdavies/rpal/internal/symbol"
)

func main() {
	var (
		dumpAST    bool
		dumpST     bool
		noColor    bool
		cacheDir   string
		watch      bool
		runControl string
	)

	rootCmd := &cobra.Command{
		Use:           "rpal [file]",
		Short:         "Run an RPAL program",
		Args:          cobra.MaximumNArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(".")
			if err != nil {
				return err
			}
			useColor := ShouldUseColor(noColor)
			if cfg.Color != nil && !noColor {
				useColor = *cfg.Color
			}
			if cacheDir == "" {
				cacheDir = cfg.CacheDir
			}

			if runControl != "" {
				return runFromControlDump(runControl, cmd.OutOrStdout())
			}

			if len(args) != 1 {
				return fmt.Errorf("expected exactly one source file argument")
			}
			file := args[0]

			var runErr error
			if watch {
				runErr = runWatch(file, dumpAST, dumpST, cacheDir, cmd.OutOrStdout())
			} else {
				runErr = runOnce(file, dumpAST, dumpST, cacheDir, cmd.OutOrStdout())
			}
			if runErr != nil {
				FormatError(os.Stderr, runErr, useColor)
				os.Exit(1)
			}
			return nil
		},
	}

	rootCmd.Flags().BoolVar(&dumpAST, "ast", false, "print the parsed AST and exit")
	rootCmd.Flags().BoolVar(&dumpST, "st", false, "print the standardized tree and exit")
	rootCmd.Flags().BoolVar(&noColor, "no-color", false, "disable colored diagnostics")
	rootCmd.Flags().StringVar(&cacheDir, "cache-dir", "", "reuse a compiled delta pool across runs of the same source")
	rootCmd.Flags().BoolVar(&watch, "watch", false, "re-run the full pipeline whenever the source file changes")
	rootCmd.Flags().StringVar(&runControl, "run-control", "", "feed a flattened control dump straight to the CSE machine")

	if err := rootCmd.Execute(); err != nil {
		FormatError(os.Stderr, err, ShouldUseColor(noColor))
		os.Exit(1)
	}
}

// compileTree runs the lex/parse/standardize stages shared by every mode
// that reaches the standardized tree (plain evaluation, --st, --watch);
// --ast stops after parsing and lexes/parses on its own in runOnce.
func compileTree(source []byte) (tree *ast.Node, err error) {
	tokens, err := lexer.Lex(string(source))
	if err != nil {
		return nil, err
	}
	root, err := parser.Parse(tokens)
	if err != nil {
		return nil, err
	}
	st, err := standardize.Standardize(root)
	if err != nil {
		return nil, err
	}
	return st, nil
}

// runOnce lexes, parses, standardizes, compiles, and either dumps a
// tree (--ast/--st) or runs the result to a value (SPEC_FULL.md §1's
// driver module).
func runOnce(file string, dumpAST, dumpST bool, cacheDir string, out io.Writer) error {
	source, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("reading %s: %w", file, err)
	}

	if dumpAST {
		tokens, err := lexer.Lex(string(source))
		if err != nil {
			return err
		}
		root, err := parser.Parse(tokens)
		if err != nil {
			return err
		}
		fmt.Fprint(out, ast.Dump(root))
		return nil
	}

	if dumpST {
		st, err := compileTree(source)
		if err != nil {
			return err
		}
		fmt.Fprint(out, ast.Dump(st))
		return nil
	}

	delta, err := compileControl(source, cacheDir)
	if err != nil {
		return err
	}
	result, err := cse.New(delta, out).Run()
	if err != nil {
		return err
	}
	fmt.Fprintln(out, result.Format())
	return nil
}

// compileControl runs the full compile pipeline, consulting cacheDir
// (if set) before and after the expensive stages (SPEC_FULL.md §3
// "internal/cache"): a hit skips lexing, parsing, standardization, and
// control generation entirely.
func compileControl(source []byte, cacheDir string) (*symbol.Delta, error) {
	var store *cache.Store
	if cacheDir != "" {
		store = cache.Open(cacheDir)
	}
	fingerprint := cache.Fingerprint(source)
	if store != nil {
		if delta, ok := store.Load(fingerprint); ok {
			return delta, nil
		}
	}

	tree, err := compileTree(source)
	if err != nil {
		return nil, err
	}
	delta, err := control.Generate(tree)
	if err != nil {
		return nil, err
	}
	if store != nil {
		if err := store.Save(fingerprint, delta); err != nil {
			return nil, err
		}
	}
	return delta, nil
}

// runWatch re-runs the full pipeline from scratch on every save
// (SPEC_FULL.md §3, `fsnotify`): no evaluator state is retained between
// runs, matching spec.md §5's "distinct evaluator instances in
// independent threads" — a watch session is just many single-shot runs.
func runWatch(file string, dumpAST, dumpST bool, cacheDir string, out io.Writer) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(file); err != nil {
		return fmt.Errorf("watching %s: %w", file, err)
	}

	run := func() {
		if err := runOnce(file, dumpAST, dumpST, cacheDir, out); err != nil {
			FormatError(os.Stderr, err, ShouldUseColor(false))
		}
	}
	run()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				run()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintln(os.Stderr, "watch error:", err)
		}
	}
}

// runFromControlDump reads a flattened control dump (control.Dump's
// notation) and feeds it straight to the CSE machine, bypassing lexing,
// parsing, standardization, and control generation entirely.
func runFromControlDump(file string, out io.Writer) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("reading %s: %w", file, err)
	}
	root, err := control.Parse(string(data))
	if err != nil {
		return err
	}
	result, err := cse.New(root, out).Run()
	if err != nil {
		return err
	}
	fmt.Fprintln(out, result.Format())
	return nil
}
