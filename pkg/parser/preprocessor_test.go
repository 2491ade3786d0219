package parser

import (
	"strings"
	"testing"

	"github.com/nalgeon/be"

	"dspc/pkg/library"
)

func TestPreprocess_Defines(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Simple",
			input:    "#define GAIN 2.0f\nfloat g = GAIN;",
			expected: "\nfloat g = 2.0f;\n",
		},
		{
			name:     "Function-like",
			input:    "#define SQ(x) ((x) * (x))\nfloat y = SQ(a + 1);",
			expected: "\nfloat y = ((a + 1) * (a + 1));\n",
		},
		{
			name:     "Nested arguments",
			input:    "#define MIX(a, b) (a + b)\nfloat y = MIX(f(1, 2), 3);",
			expected: "\nfloat y = (f(1, 2) + 3);\n",
		},
		{
			name:     "Defined in terms of another",
			input:    "#define RATE 48000\n#define HALF RATE / 2\nint n = HALF;",
			expected: "\n\nint n = 48000 / 2;\n",
		},
		{
			name:     "Word boundaries",
			input:    "#define N 4\nint NN = N;",
			expected: "\nint NN = 4;\n",
		},
		{
			name:     "Strings and comments untouched",
			input:    "#define N 4\nprint(\"N\"); // N",
			expected: "\nprint(\"N\"); // N\n",
		},
		{
			name:     "Function-like name without call",
			input:    "#define SQ(x) x * x\nint SQ = 1;",
			expected: "\nint SQ = 1;\n",
		},
		{
			name:     "Self reference stops",
			input:    "#define LOOP LOOP + 1\nint a = LOOP;",
			expected: "\nint a = LOOP + 1;\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _, err := Preprocess(tt.input, "main.dsp", nil)
			be.Err(t, err, nil)
			be.Equal(t, got, tt.expected)
		})
	}
}

func TestPreprocess_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"Unknown directive", "int a;\n#pragma once", "main.dsp:2: unknown preprocessor directive #pragma"},
		{"Empty define", "#define", "#define needs a name"},
		{"Bad macro name", "#define 1X 2", "invalid macro name"},
		{"Unterminated params", "#define F(a b", "unterminated macro parameter list"},
		{"Malformed include", "#include <osc.h>", "invalid include directive"},
		{"Include without library", `#include "osc.h"`, "no library configured"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Preprocess(tt.input, "main.dsp", nil)
			be.Err(t, err, tt.want)
		})
	}
}

func TestPreprocess_Includes(t *testing.T) {
	store := library.NewStore()
	be.Err(t, store.Write("lib/filters.h", "float cutoff;"), nil)
	be.Err(t, store.Write("std/math.h", "float pi = 3.14f;"), nil)
	be.Err(t, store.AddSearchPath("std"), nil)

	src := "#include \"lib/filters.h\"\n#include \"math.h\"\nfloat x;"
	got, lines, err := Preprocess(src, "main.dsp", store)
	be.Err(t, err, nil)
	be.Equal(t, got, "float cutoff;\nfloat pi = 3.14f;\nfloat x;\n")

	t.Run("LineMap", func(t *testing.T) {
		loc := lines.Locate(1, 7)
		be.Equal(t, loc.String(), "lib/filters.h:1:7")
		loc = lines.Locate(2, 1)
		be.Equal(t, loc.String(), "std/math.h:1:1")
		loc = lines.Locate(3, 1)
		be.Equal(t, loc.String(), "main.dsp:3:1")
	})

	t.Run("Relative to includer", func(t *testing.T) {
		be.Err(t, store.Write("lib/biquad.h", "#include \"filters.h\"\nfloat q;"), nil)
		got, _, err := Preprocess(`#include "lib/biquad.h"`, "main.dsp", store)
		be.Err(t, err, nil)
		be.Equal(t, got, "float cutoff;\nfloat q;\n")
	})

	t.Run("Expanded once", func(t *testing.T) {
		got, _, err := Preprocess("#include \"lib/filters.h\"\n#include \"lib/filters.h\"", "main.dsp", store)
		be.Err(t, err, nil)
		be.Equal(t, strings.Count(got, "cutoff"), 1)
	})

	t.Run("Defines cross files", func(t *testing.T) {
		be.Err(t, store.Write("config.h", "#define VOICES 8"), nil)
		got, _, err := Preprocess("#include \"config.h\"\nint n = VOICES;", "main.dsp", store)
		be.Err(t, err, nil)
		be.True(t, strings.Contains(got, "int n = 8;"))
	})

	t.Run("Missing", func(t *testing.T) {
		_, _, err := Preprocess(`#include "nope.h"`, "main.dsp", store)
		be.Err(t, err, "file not found")
	})

	t.Run("Circular", func(t *testing.T) {
		be.Err(t, store.Write("a.h", `#include "b.h"`), nil)
		be.Err(t, store.Write("b.h", `#include "a.h"`), nil)
		_, _, err := Preprocess(`#include "a.h"`, "main.dsp", store)
		be.Err(t, err, "b.h:1: circular include detected: a.h")
	})
}

func TestLineMap_Locate(t *testing.T) {
	var nilMap *LineMap
	be.Equal(t, nilMap.Locate(3, 4).String(), ":3:4")

	_, lines, err := Preprocess("a\nb", "x.dsp", nil)
	be.Err(t, err, nil)
	be.Equal(t, lines.Locate(2, 5).String(), "x.dsp:2:5")
	// past the end falls back to the raw position
	be.Equal(t, lines.Locate(9, 1).Line, 9)
}
