// Command dspc dumps the intermediate stages of compiling one unit.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"dspc/pkg/compiler"
	"dspc/pkg/library"
	"dspc/pkg/parser"
	"dspc/pkg/types"
)

func main() {
	inPath := flag.String("in", "", "input source file path")
	showSource := flag.Bool("source", false, "print the preprocessed source")
	showTokens := flag.Bool("tokens", false, "print the token stream")
	showAST := flag.Bool("ast", false, "print the AST after all passes")
	showSymbols := flag.Bool("symbols", false, "print the unit's namespaces")
	showIR := flag.Bool("ir", false, "print the LLVM IR")
	all := flag.Bool("all", false, "print every stage, including internal namespaces")
	logLevel := flag.String("log-level", "warn", "log level")
	flag.Parse()

	if *inPath == "" {
		fmt.Fprintln(os.Stderr, "provide -in <file>")
		flag.Usage()
		os.Exit(2)
	}
	if !*showSource && !*showTokens && !*showAST && !*showSymbols && !*showIR {
		*all = true
	}

	fullPath, baseDir, err := library.HostPath(*inPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bad input path %q: %v\n", *inPath, err)
		os.Exit(1)
	}
	raw, err := os.ReadFile(fullPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read input file %q: %v\n", *inPath, err)
		os.Exit(1)
	}
	lib := library.NewStore()
	if _, err := lib.LoadFrom(baseDir); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load %q: %v\n", baseDir, err)
		os.Exit(1)
	}
	file := filepath.Base(fullPath)

	if *all || *showSource || *showTokens {
		text, lines, err := parser.Preprocess(string(raw), file, lib)
		if err != nil {
			fmt.Fprintf(os.Stderr, "preprocess error: %v\n", err)
			os.Exit(1)
		}
		if *all || *showSource {
			section("source")
			fmt.Println(text)
		}
		if *all || *showTokens {
			tokens, err := parser.Lex(text, lines)
			if err != nil {
				fmt.Fprintf(os.Stderr, "lex error: %v\n", err)
				os.Exit(1)
			}
			section("tokens")
			for _, tok := range tokens {
				fmt.Println(tok)
			}
		}
	}

	opts, err := compiler.OptionsFromEnv(compiler.DefaultOptions())
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid environment: %v\n", err)
		os.Exit(2)
	}
	if opts.LogLevel, err = logrus.ParseLevel(*logLevel); err != nil {
		fmt.Fprintf(os.Stderr, "invalid -log-level: %v\n", err)
		os.Exit(2)
	}
	log := logrus.New()
	log.SetOutput(os.Stderr)
	c, err := compiler.New(opts, lib, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	res, err := c.Compile(compiler.Unit{Name: "Main", File: file, Source: string(raw)})
	if err != nil {
		fmt.Fprintf(os.Stderr, "compilation failed: %v\n", err)
		os.Exit(1)
	}
	for _, w := range res.Warnings {
		fmt.Fprintln(os.Stderr, w)
	}

	if *all || *showAST {
		section("ast")
		compiler.DumpAST(os.Stdout, res.Root)
	}
	if *all || *showSymbols {
		section("symbols")
		compiler.DumpNamespaces(os.Stdout, c.Registry, types.NewID("Main"), *all)
	}
	if *all || *showIR {
		section("ir")
		fmt.Print(res.IR)
	}
	fmt.Fprintf(os.Stderr, "compiled in %s\n", res.Elapsed)
}

func section(name string) {
	fmt.Printf("==== %s ====\n", name)
}
