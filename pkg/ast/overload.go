package ast

import (
	"strings"

	"github.com/pkg/errors"

	"dspc/pkg/symbols"
	"dspc/pkg/types"
)

// pickOverload chooses the overload of id to call with args: the unique
// exact match if there is one, else the first candidate the arguments
// convert to.
func pickOverload(id types.ID, candidates []*symbols.Signature, args []types.TypeInfo) (*symbols.Signature, error) {
	var first *symbols.Signature
	var exact []*symbols.Signature
	for _, s := range candidates {
		e, ok := s.Match(args)
		if !ok {
			continue
		}
		if e {
			exact = append(exact, s)
		}
		if first == nil {
			first = s
		}
	}
	switch {
	case len(exact) == 1:
		return exact[0], nil
	case len(exact) > 1:
		names := make([]string, len(exact))
		for i, s := range exact {
			names[i] = s.String()
		}
		return nil, errors.Errorf("call to %s is ambiguous: %s", id.Name(), strings.Join(names, ", "))
	case first != nil:
		return first, nil
	}

	names := make([]string, len(args))
	for i, a := range args {
		names[i] = a.Plain().String()
	}
	if len(candidates) > 0 && candidates[0].Constructor {
		return nil, errors.Errorf("no constructor %s(%s)", id.Parent(), strings.Join(names, ", "))
	}
	return nil, errors.Errorf("no overload of %s matches (%s)", id.Name(), strings.Join(names, ", "))
}
