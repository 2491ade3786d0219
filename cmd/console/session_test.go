package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/nalgeon/be"

	"dspc/pkg/compiler"
	"dspc/pkg/types"
)

func newTestSession(t *testing.T) (*session, *bytes.Buffer) {
	t.Helper()
	c, err := compiler.New(compiler.DefaultOptions(), nil, nil)
	if err != nil {
		t.Fatalf("compiler.New() error = %v", err)
	}
	var out bytes.Buffer
	return newSession(c, &out), &out
}

func TestComplete(t *testing.T) {
	tests := []struct {
		src  string
		want bool
	}{
		{"float gain = 0.5f;\n", true},
		{"float f(float x) {\n", false},
		{"float f(float x) {\n  return x;\n}\n", true},
		{"float f(float x,\n", false},
		{"struct S { float a; }\n", false},
		{"struct S { float a; }\n;\n", true},
		{"enum class E { A, B };\n", true},
		{"template <typename T> struct P { T v; };\n", true},
		{`int n = 1; string s = "{";` + "\n", true},
		{`string s = "unterminated;` + "\n", false},
		{"int x = 1\n", false},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			be.Equal(t, complete(tt.src), tt.want)
		})
	}
}

func TestLastWord(t *testing.T) {
	tests := map[string]string{
		"":                   "",
		"float y = Math::si": "Math::si",
		"return ga":          "ga",
		"f(x, ":              "",
		"g_2":                "g_2",
	}
	for in, want := range tests {
		be.Equal(t, lastWord(in), want)
	}
}

func TestSession(t *testing.T) {
	s, out := newTestSession(t)

	t.Run("unit name is free", func(t *testing.T) {
		_, taken := s.c.Registry.Lookup(types.NewID(unitName))
		be.True(t, !taken)
	})

	t.Run("declaration", func(t *testing.T) {
		be.Equal(t, s.prompt(), "dsp> ")
		be.Equal(t, s.handle("float gain = 0.5f;"), false)
		be.Equal(t, len(s.decls), 1)
		be.True(t, strings.Contains(s.ir, "gain"))
	})

	t.Run("multi-line", func(t *testing.T) {
		s.handle("float f(float x) {")
		be.Equal(t, s.prompt(), "... ")
		be.Equal(t, len(s.decls), 1)
		s.handle("  return x * gain;")
		s.handle("}")
		be.Equal(t, s.prompt(), "dsp> ")
		be.Equal(t, len(s.decls), 2)
		be.True(t, strings.Contains(s.ir, "@Repl.f"))
	})

	t.Run("bad declaration is dropped", func(t *testing.T) {
		out.Reset()
		before := s.ir
		s.handle("float g() { return missing; }")
		be.Equal(t, len(s.decls), 2)
		be.Equal(t, s.ir, before)
		be.True(t, out.Len() > 0)
	})

	t.Run("symbols", func(t *testing.T) {
		out.Reset()
		s.handle(":symbols")
		be.True(t, strings.Contains(out.String(), "Repl [namespace]"))
		be.True(t, strings.Contains(out.String(), "variable gain float"))
	})

	t.Run("complete", func(t *testing.T) {
		out.Reset()
		s.handle(":complete ga")
		be.True(t, strings.HasPrefix(out.String(), "gain ("))

		out.Reset()
		s.handle(":complete Math::s")
		be.True(t, strings.Contains(out.String(), "sin ("))
		be.True(t, strings.Contains(out.String(), "sqrt ("))
		be.True(t, !strings.Contains(out.String(), "cos ("))
	})

	t.Run("source", func(t *testing.T) {
		out.Reset()
		s.handle(":source")
		be.True(t, strings.HasPrefix(out.String(), "float gain = 0.5f;\nfloat f(float x) {"))
	})

	t.Run("unknown command", func(t *testing.T) {
		out.Reset()
		s.handle(":frobnicate")
		be.Equal(t, out.String(), "unknown command :frobnicate, try :help\n")
	})

	t.Run("reset", func(t *testing.T) {
		out.Reset()
		s.handle(":reset")
		be.Equal(t, out.String(), "reset\n")
		be.Equal(t, len(s.decls), 0)
		be.Equal(t, len(s.c.Units()), 0)
		be.Equal(t, len(s.candidates("ga")), 0)
	})

	t.Run("quit", func(t *testing.T) {
		be.Equal(t, s.handle(":q"), true)
		be.Equal(t, s.handle(":quit"), true)
	})
}
