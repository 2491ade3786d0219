// Command console is an interactive prompt that compiles declarations as
// they are typed.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"unicode"

	"github.com/lmorg/readline"
	"github.com/sirupsen/logrus"

	"dspc/pkg/compiler"
	"dspc/pkg/library"
)

func main() {
	libDir := flag.String("lib", "", "directory of include files")
	safe := flag.Bool("safe", false, "warn about unchecked array accesses")
	logLevel := flag.String("log-level", "warn", "log level")
	flag.Parse()

	opts, err := compiler.OptionsFromEnv(compiler.DefaultOptions())
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid environment: %v\n", err)
		os.Exit(2)
	}
	opts.SafeMode = opts.SafeMode || *safe
	if opts.LogLevel, err = logrus.ParseLevel(*logLevel); err != nil {
		fmt.Fprintf(os.Stderr, "invalid -log-level: %v\n", err)
		os.Exit(2)
	}

	lib := library.NewStore()
	if *libDir != "" {
		n, err := lib.LoadFrom(*libDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load %q: %v\n", *libDir, err)
			os.Exit(1)
		}
		fmt.Printf("loaded %d library files\n", n)
	}

	log := logrus.New()
	log.SetOutput(os.Stderr)
	c, err := compiler.New(opts, lib, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	s := newSession(c, os.Stdout)

	rl := readline.NewInstance()
	rl.TabCompleter = func(line []rune, pos int, _ readline.DelayedTabContext) (string, []string, map[string]string, readline.TabDisplayType) {
		word := lastWord(string(line[:pos]))
		stem := word
		if i := strings.LastIndex(word, "::"); i >= 0 {
			stem = word[i+2:]
		}
		var suggestions []string
		for _, comp := range s.candidates(word) {
			suggestions = append(suggestions, comp.Name[len(stem):])
		}
		return word, suggestions, nil, readline.TabDisplayGrid
	}

	fmt.Println("dspc console, :help for commands")
	for {
		rl.SetPrompt(s.prompt())
		line, err := rl.Readline()
		if err != nil {
			return
		}
		if s.handle(line) {
			return
		}
	}
}

// lastWord is the identifier (possibly qualified) the cursor sits at the
// end of.
func lastWord(s string) string {
	i := len(s)
	for i > 0 {
		r := rune(s[i-1])
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != ':' {
			break
		}
		i--
	}
	return s[i:]
}
