package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/xirelogy/go-epsilon/internal/compiler"
	"github.com/xirelogy/go-epsilon/internal/diag"
	"github.com/xirelogy/go-epsilon/internal/parser"
)

const (
	historyFile = ".epsilon_history"
	promptMain  = "eps> "
	promptCont  = "...  "
	replBanner  = "Epsilon compiler REPL\nEach entry is compiled on its own and disassembled. Ctrl+D or :quit exits."
)

func newReplCmd(opts *options, stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Compile entries interactively and show their bytecode",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRepl(opts, stdout, stderr)
		},
	}
}

func runRepl(opts *options, stdout, stderr io.Writer) error {
	fmt.Fprintln(stdout, replBanner)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)
	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	logger := newLogger(stderr, opts.verbose)
	for {
		src, ok := readEntry(ln)
		if !ok {
			fmt.Fprintln(stdout)
			return nil
		}
		entry := strings.TrimSpace(src)
		if entry == "" {
			continue
		}
		if strings.HasPrefix(entry, ":") {
			switch strings.ToLower(entry) {
			case ":quit", ":q":
				return nil
			default:
				fmt.Fprintln(stdout, "unknown command. Type :quit to exit.")
			}
			continue
		}
		ln.AppendHistory(strings.ReplaceAll(src, "\n", " "))

		printer := diag.NewPrinter(stderr, src, opts.noColor)
		prog, err := parser.ParseSource(src)
		if err != nil {
			printer.PrintError(err)
			continue
		}
		chunk, err := compiler.Compile(prog, compiler.WithLogger(logger))
		if err != nil {
			printer.PrintError(err)
			continue
		}
		fmt.Fprint(stdout, chunk.Disassemble())
	}
}

// readEntry reads lines until they form a parse that does not stop at end of
// input. It returns false at EOF.
func readEntry(ln *liner.State) (string, bool) {
	var b strings.Builder
	for {
		prompt := promptMain
		if b.Len() > 0 {
			prompt = promptCont
		}
		line, err := ln.Prompt(prompt)
		if errors.Is(err, io.EOF) {
			return "", false
		}
		if errors.Is(err, liner.ErrPromptAborted) {
			return "", true
		}
		if err != nil {
			return "", false
		}

		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)

		src := b.String()
		if !incomplete(src) {
			return src, true
		}
	}
}

// incomplete reports whether src fails to parse only because input ended.
func incomplete(src string) bool {
	_, err := parser.ParseSource(src)
	var list parser.ErrorList
	if !errors.As(err, &list) || len(list) == 0 {
		return false
	}
	last := list[len(list)-1]
	return last.Lexeme == "" && last.Pos.Offset >= len(strings.TrimRight(src, " \t\n"))
}
