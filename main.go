package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"dspc/pkg/compiler"
	"dspc/pkg/diag"
	"dspc/pkg/library"
)

type dirList []string

func (d *dirList) String() string { return strings.Join(*d, ",") }
func (d *dirList) Set(v string) error {
	*d = append(*d, v)
	return nil
}

func main() {
	var includeDirs dirList
	inPath := flag.String("in", "", "input source file path")
	outPath := flag.String("out", "", "output LLVM IR path (default: input with .ll extension, - for stdout)")
	unit := flag.String("unit", "", "unit namespace (default: derived from the input file name)")
	safe := flag.Bool("safe", false, "warn about array accesses that can't be checked at compile time")
	optimize := flag.Bool("optimize", false, "only lower functions reachable from the unit's top-level functions")
	checkOnly := flag.Bool("check", false, "type check only, don't write IR")
	logLevel := flag.String("log-level", "", "log level (panic, fatal, error, warn, info, debug, trace)")
	vectorBits := flag.Int("vector-bits", -1, "SIMD width in bits, 0 for scalar code")
	flag.Var(&includeDirs, "I", "library directory loaded into the include store (repeatable)")
	flag.Parse()

	if *inPath == "" {
		fmt.Fprintln(os.Stderr, "nothing to do: provide -in <file>")
		flag.Usage()
		os.Exit(2)
	}

	opts, err := compiler.OptionsFromEnv(compiler.DefaultOptions())
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid environment: %v\n", err)
		os.Exit(2)
	}
	if *safe {
		opts.SafeMode = true
	}
	if *optimize {
		opts.Optimize = true
	}
	if *vectorBits >= 0 {
		opts.VectorBits = *vectorBits
	}
	if *logLevel != "" {
		lvl, err := logrus.ParseLevel(*logLevel)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid -log-level: %v\n", err)
			os.Exit(2)
		}
		opts.LogLevel = lvl
	}

	fullPath, baseDir, err := library.HostPath(*inPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bad input path %q: %v\n", *inPath, err)
		os.Exit(1)
	}
	source, err := os.ReadFile(fullPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read input file %q: %v\n", *inPath, err)
		os.Exit(1)
	}

	// -I directories first so files next to the input shadow them
	lib := library.NewStore()
	for _, dir := range append(includeDirs, baseDir) {
		if _, err := lib.LoadFrom(dir); err != nil {
			fmt.Fprintf(os.Stderr, "failed to load library %q: %v\n", dir, err)
			os.Exit(1)
		}
	}

	log := logrus.New()
	log.SetOutput(os.Stderr)
	c, err := compiler.New(opts, lib, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	u := compiler.Unit{
		Name:   *unit,
		File:   filepath.Base(fullPath),
		Source: string(source),
	}
	if u.Name == "" {
		u.Name = unitName(fullPath)
	}

	if *checkOnly {
		warnings, err := c.Check(u)
		printWarnings(warnings)
		if err != nil {
			fail(err)
		}
		fmt.Printf("%s: ok\n", *inPath)
		return
	}

	res, err := c.Compile(u)
	if err != nil {
		fail(err)
	}
	printWarnings(res.Warnings)

	output := *outPath
	if output == "" {
		output = defaultOutputPath(*inPath)
	}
	if output == "-" {
		fmt.Print(res.IR)
		return
	}
	if err := os.WriteFile(output, []byte(res.IR), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write %q: %v\n", output, err)
		os.Exit(1)
	}
	fmt.Printf("compiled %s in %s -> %s\n", u.Name, res.Elapsed.Round(time.Microsecond), output)
}

func fail(err error) {
	if de, ok := diag.AsError(err); ok {
		fmt.Fprintf(os.Stderr, "compilation failed: %v\n", de)
	} else {
		fmt.Fprintf(os.Stderr, "compilation failed: %v\n", err)
	}
	os.Exit(1)
}

func printWarnings(ws []diag.Warning) {
	for _, w := range ws {
		fmt.Fprintln(os.Stderr, w)
	}
}

func defaultOutputPath(inPath string) string {
	ext := filepath.Ext(inPath)
	if ext == "" {
		return inPath + ".ll"
	}
	return strings.TrimSuffix(inPath, ext) + ".ll"
}

// unitName turns a file name into a valid unit namespace: "my-osc.dsp"
// becomes "my_osc".
func unitName(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	var b strings.Builder
	for i, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteByte('_')
			}
		default:
			r = '_'
		}
		b.WriteRune(r)
	}
	if b.Len() == 0 {
		return "Main"
	}
	return b.String()
}
