package library

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nalgeon/be"
)

func TestStore_Write(t *testing.T) {
	tests := []struct {
		name        string
		path        string
		source      string
		expectError bool
	}{
		{name: "Plain file", path: "filters.h", source: "int x = 1;"},
		{name: "Nested file", path: "dsp/filters.h", source: "int y = 2;"},
		{name: "Leading dot slash", path: "./osc.h", source: ""},
		{name: "Path traversal", path: "../secret.h", expectError: true},
		{name: "Absolute path", path: "/etc/passwd", expectError: true},
		{name: "Empty name", path: "", expectError: true},
		{name: "Too large", path: "big.h", source: string(make([]byte, MaxSourceBytes+1)), expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore()
			err := s.Write(tt.path, tt.source)
			if (err != nil) != tt.expectError {
				t.Fatalf("Write() error = %v, expectError %v", err, tt.expectError)
			}
			if tt.expectError {
				return
			}
			got, err := s.Read(tt.path)
			be.Err(t, err, nil)
			be.Equal(t, got, tt.source)
		})
	}
}

func TestStore_ReadDelete(t *testing.T) {
	s := NewStore()
	be.Err(t, s.Write("a.h", "A"), nil)

	_, err := s.Read("missing.h")
	be.Err(t, err, ErrFileNotFound)

	be.Err(t, s.Delete("a.h"), nil)
	_, err = s.Read("a.h")
	be.Err(t, err, ErrFileNotFound)
	be.Err(t, s.Delete("a.h"), ErrFileNotFound)
}

func TestStore_List(t *testing.T) {
	s := NewStore()
	for _, name := range []string{"z.h", "a.h", "dsp/m.h"} {
		be.Err(t, s.Write(name, ""), nil)
	}
	be.Equal(t, s.List(), []string{"a.h", "dsp/m.h", "z.h"})
}

func TestStore_Resolve(t *testing.T) {
	s := NewStore()
	be.Err(t, s.Write("dsp/filters.h", "local"), nil)
	be.Err(t, s.Write("std/filters.h", "std"), nil)
	be.Err(t, s.Write("std/math.h", "math"), nil)
	be.Err(t, s.AddSearchPath("std"), nil)
	be.Err(t, s.AddSearchPath("std"), nil)
	be.Equal(t, s.SearchPaths(), []string{"std"})

	t.Run("Includer directory wins", func(t *testing.T) {
		got, err := s.Resolve("filters.h", "dsp")
		be.Err(t, err, nil)
		be.Equal(t, got, "dsp/filters.h")
	})
	t.Run("Falls back to search path", func(t *testing.T) {
		got, err := s.Resolve("math.h", "dsp")
		be.Err(t, err, nil)
		be.Equal(t, got, "std/math.h")
	})
	t.Run("Relative to parent", func(t *testing.T) {
		got, err := s.Resolve("../std/math.h", "dsp")
		be.Err(t, err, nil)
		be.Equal(t, got, "std/math.h")
	})
	t.Run("Missing", func(t *testing.T) {
		_, err := s.Resolve("nothing.h", "dsp")
		be.Err(t, err, ErrFileNotFound)
		be.Err(t, err, `"std"`)
	})
}

func TestStore_LoadFrom(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "dsp"), 0755); err != nil {
		t.Fatal(err)
	}
	files := map[string]string{
		"osc.h":         "float phase;",
		"dsp/filters.h": "float cutoff;",
		"notes.txt":     "ignored",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(root, name), []byte(body), 0644); err != nil {
			t.Fatal(err)
		}
	}

	s := NewStore()
	n, err := s.LoadFrom(root)
	be.Err(t, err, nil)
	be.Equal(t, n, 2)
	be.Equal(t, s.List(), []string{"dsp/filters.h", "osc.h"})

	src, err := s.Read("dsp/filters.h")
	be.Err(t, err, nil)
	be.Equal(t, src, "float cutoff;")

	n, err = s.LoadFrom(filepath.Join(root, "missing"))
	be.Err(t, err, nil)
	be.Equal(t, n, 0)
}

func TestHostPath(t *testing.T) {
	full, dir, err := HostPath("x/y.dsp")
	be.Err(t, err, nil)
	be.True(t, filepath.IsAbs(full))
	be.Equal(t, filepath.Base(dir), "x")
}
