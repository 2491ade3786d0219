package templates

import (
	"github.com/pkg/errors"

	"dspc/pkg/types"
)

type deduction struct {
	bound map[string]types.TemplateParameter
	// explicit formals are fixed by the caller; arguments convert to them
	explicit map[string]bool
}

func (d deduction) bind(id types.ID, p types.TemplateParameter) error {
	key := id.String()
	if existing, ok := d.bound[key]; ok {
		if !existing.Equals(p) {
			return errors.Errorf("conflicting arguments for %s: %s and %s", id.Name(), existing, p)
		}
		return nil
	}
	d.bound[key] = p
	return nil
}

// match walks a formal argument type and the actual argument type in
// parallel, binding template parameters where the formal mentions them.
// Only direct structural matches deduce; conversions are never considered.
func (d deduction) match(formal, actual types.TypeInfo) error {
	if id := formal.TemplateID(); id.IsValid() {
		if d.explicit[id.String()] {
			return nil
		}
		if actual.IsDynamic() || actual.IsVoid() {
			return errors.Errorf("can't deduce %s from %s", id.Name(), actual)
		}
		return d.bind(id, types.TypeArg(actual))
	}
	tc, ok := formal.Complex().(*types.TemplatedComplexType)
	if !ok {
		return nil
	}
	ac := actual.Complex()
	if ac == nil || ac.Template() != tc.Template() {
		return errors.Errorf("can't match %s against %s", actual, formal)
	}
	fp, ap := tc.TemplateParameters(), ac.TemplateParameters()
	if len(fp) != len(ap) {
		return errors.Errorf("can't match %s against %s", actual, formal)
	}
	for i := range fp {
		switch {
		case fp[i].Kind != ap[i].Kind:
			return errors.Errorf("can't match %s against %s", actual, formal)
		case fp[i].Kind == types.TypeParameter:
			if err := d.match(fp[i].Type, ap[i].Type); err != nil {
				return err
			}
		case !fp[i].IsResolved():
			if err := d.bind(fp[i].ID, ap[i]); err != nil {
				return err
			}
		case fp[i].Value != ap[i].Value:
			return errors.Errorf("can't match %s against %s", actual, formal)
		}
	}
	return nil
}

// Deduce completes the explicit arguments of a function template from the
// types of the call arguments. Explicit arguments bind the leading formals;
// the rest are deduced or fall back to their defaults.
func Deduce(formal, explicit types.ParameterList, formalArgs, args []types.TypeInfo) (types.ParameterList, error) {
	if !formal.IsVariadic() && len(explicit) > len(formal) {
		return nil, errors.Errorf("too many template arguments: expected %d, got %d", len(formal), len(explicit))
	}
	if len(formalArgs) != len(args) {
		return nil, errors.Errorf("expected %d arguments, got %d", len(formalArgs), len(args))
	}
	d := deduction{
		bound:    make(map[string]types.TemplateParameter),
		explicit: make(map[string]bool),
	}
	for i, f := range formal {
		if i >= len(explicit) || f.Variadic {
			break
		}
		if err := d.bind(f.ID, explicit[i]); err != nil {
			return nil, err
		}
		d.explicit[f.ID.String()] = true
	}
	for i := range formalArgs {
		if err := d.match(formalArgs[i], args[i]); err != nil {
			return nil, err
		}
	}

	var out types.ParameterList
	for i, f := range formal {
		if f.Variadic {
			if i < len(explicit) {
				out = append(out, explicit[i:]...)
			}
			break
		}
		if p, ok := d.bound[f.ID.String()]; ok {
			if p.Kind != f.Kind {
				return nil, errors.Errorf("template argument %s: expected %s, got %s", f.ID.Name(), f.Kind, p.Kind)
			}
			out = append(out, p)
			continue
		}
		if f.HasDefault() {
			out = append(out, f.Default())
			continue
		}
		return nil, errors.Errorf("can't deduce template argument %s", f.ID.Name())
	}
	if err := out.Validate(formal); err != nil {
		return nil, err
	}
	return out, nil
}
