// Command epsilonc compiles Epsilon source into a bytecode artifact.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/xirelogy/go-epsilon/internal/artifact"
	"github.com/xirelogy/go-epsilon/internal/ast"
	"github.com/xirelogy/go-epsilon/internal/compiler"
	"github.com/xirelogy/go-epsilon/internal/diag"
	"github.com/xirelogy/go-epsilon/internal/lexer"
	"github.com/xirelogy/go-epsilon/internal/parser"
)

const defaultSource = `var x = 10;
var y = 20;
print x + y;
fn add(a, b) {
  return a + b;
}
`

const defaultOutput = "program.evm"

type options struct {
	check   bool
	output  string
	verbose bool
	quiet   bool
	noColor bool
}

// exitError ends the process with code after diagnostics were already printed.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			return ee.code
		}
		fmt.Fprintf(stderr, "%s %v\n", color.New(color.FgRed, color.Bold).Sprint("error:"), err)
		return 1
	}
	return 0
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "epsilonc [file]",
		Short:         "Compile Epsilon source to a bytecode artifact",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.noColor {
				color.NoColor = true
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return compileCommand(args, opts, stdout, stderr)
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&opts.check, "check", false, "parse only; report errors through the exit status")
	flags.StringVarP(&opts.output, "output", "o", defaultOutput, "artifact path")
	flags.BoolVarP(&opts.quiet, "quiet", "q", false, "print only diagnostics and the final status")

	pflags := cmd.PersistentFlags()
	pflags.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	pflags.BoolVar(&opts.noColor, "no-color", false, "disable coloured output")

	cmd.AddCommand(newReplCmd(opts, stdout, stderr))
	cmd.AddCommand(newDumpCmd(stdout))
	return cmd
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func loadSource(args []string) (name, src string, err error) {
	if len(args) == 0 {
		return "<default>", defaultSource, nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", "", err
	}
	return args[0], string(data), nil
}

func compileCommand(args []string, opts *options, stdout, stderr io.Writer) error {
	name, src, err := loadSource(args)
	if err != nil {
		return err
	}

	if opts.check {
		if _, err := parser.ParseSource(src); err != nil {
			return &exitError{code: 1}
		}
		return nil
	}

	logger := newLogger(stderr, opts.verbose)
	logger.Debug("compiling", "source", name, "bytes", len(src))
	printer := diag.NewPrinter(stderr, src, opts.noColor)
	heading := color.New(color.FgCyan, color.Bold)

	tokens := lexer.Tokenize(src)
	if !opts.quiet {
		heading.Fprintf(stdout, "== source: %s ==\n", name)
		fmt.Fprintln(stdout, strings.TrimRight(src, "\n"))
		heading.Fprintln(stdout, "== tokens ==")
		for _, tok := range tokens {
			fmt.Fprintf(stdout, "%4d:%-3d %-12s %q\n", tok.Pos.Line, tok.Pos.Column, tok.Type, tok.Literal)
		}
	}

	p := parser.New(tokens)
	prog := p.ParseProgram()
	if err := p.Errors().Err(); err != nil {
		printer.PrintError(err)
		return &exitError{code: 1}
	}
	if !opts.quiet {
		heading.Fprintln(stdout, "== ast ==")
		fmt.Fprintln(stdout, ast.Format(prog))
	}

	chunk, err := compiler.Compile(prog, compiler.WithLogger(logger))
	if err != nil {
		printer.PrintError(err)
		return &exitError{code: 1}
	}
	if !opts.quiet {
		heading.Fprintln(stdout, "== bytecode ==")
		fmt.Fprint(stdout, chunk.Disassemble())
	}

	if err := artifact.WriteFile(opts.output, chunk); err != nil {
		printer.PrintError(err)
		return &exitError{code: 1}
	}
	color.New(color.FgGreen).Fprintf(stdout, "wrote %s (%d instructions, %d constants)\n",
		opts.output, len(chunk.Code), len(chunk.Consts))
	return nil
}
