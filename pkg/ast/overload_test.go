package ast

import (
	"testing"

	"github.com/nalgeon/be"

	"dspc/pkg/symbols"
	"dspc/pkg/types"
)

func sig(name string, params ...types.NativeType) *symbols.Signature {
	s := &symbols.Signature{ID: types.NewID("Main", name), Return: types.Native(types.Void)}
	for i, p := range params {
		s.Params = append(s.Params, symbols.Parameter{Name: string(rune('a' + i)), Type: types.Native(p)})
	}
	return s
}

func natives(ts ...types.NativeType) []types.TypeInfo {
	out := make([]types.TypeInfo, len(ts))
	for i, t := range ts {
		out[i] = types.Native(t)
	}
	return out
}

func TestPickOverload(t *testing.T) {
	id := types.NewID("Main", "mix")
	byInt := sig("mix", types.Integer)
	byFloat := sig("mix", types.Float)
	pair := sig("mix", types.Float, types.Float)
	candidates := []*symbols.Signature{byInt, byFloat, pair}

	t.Run("Exact match wins over order", func(t *testing.T) {
		got, err := pickOverload(id, candidates, natives(types.Float))
		be.Err(t, err, nil)
		be.True(t, got == byFloat)
	})

	t.Run("First convertible", func(t *testing.T) {
		got, err := pickOverload(id, candidates, natives(types.Double))
		be.Err(t, err, nil)
		be.True(t, got == byInt)
	})

	t.Run("Arity", func(t *testing.T) {
		got, err := pickOverload(id, candidates, natives(types.Integer, types.Double))
		be.Err(t, err, nil)
		be.True(t, got == pair)
	})

	t.Run("No match", func(t *testing.T) {
		_, err := pickOverload(id, candidates, natives(types.String))
		be.Err(t, err, "no overload of mix matches (string)")
	})

	t.Run("Ambiguous", func(t *testing.T) {
		twin := sig("mix", types.Float)
		_, err := pickOverload(id, []*symbols.Signature{byFloat, twin}, natives(types.Float))
		be.Err(t, err, "call to mix is ambiguous")
	})

	t.Run("Constructor", func(t *testing.T) {
		ctor := sig("Voice", types.Float)
		ctor.ID = types.NewID("Main", "Voice", "Voice")
		ctor.Constructor = true
		_, err := pickOverload(ctor.ID, []*symbols.Signature{ctor}, natives(types.String))
		be.Err(t, err, "no constructor Main::Voice(string)")
	})
}
