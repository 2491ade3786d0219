// Package templates instantiates class and function templates on demand.
//
// A template is stored as an Object: its identifier, formal parameter list and
// a builder that produces the concrete entity once all parameters are bound.
// Instantiations are memoized per (template, resolved parameters), so asking
// twice for Array<float, 4> yields the same ComplexType.
package templates

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"dspc/pkg/diag"
	"dspc/pkg/symbols"
	"dspc/pkg/types"
)

// ClassRequest is handed to a ClassBuilder.
type ClassRequest struct {
	Template *Object
	ID       types.ID // e.g. Array<float, 4>
	Params   types.ParameterList
	Bindings []types.Binding
}

// ClassBuilder constructs a class template instance.
type ClassBuilder interface {
	BuildClass(req *ClassRequest) (types.ComplexType, error)
}

// ClassBuilderFunc adapts a function to ClassBuilder.
type ClassBuilderFunc func(req *ClassRequest) (types.ComplexType, error)

func (f ClassBuilderFunc) BuildClass(req *ClassRequest) (types.ComplexType, error) { return f(req) }

// FunctionRequest is handed to a FunctionBuilder.
type FunctionRequest struct {
	Template *Object
	ID       types.ID // e.g. max<float>
	Params   types.ParameterList
	Bindings []types.Binding
}

// FunctionBuilder synthesizes a concrete function from a template.
type FunctionBuilder interface {
	BuildFunction(req *FunctionRequest) (*symbols.Signature, error)
}

// FunctionBuilderFunc adapts a function to FunctionBuilder.
type FunctionBuilderFunc func(req *FunctionRequest) (*symbols.Signature, error)

func (f FunctionBuilderFunc) BuildFunction(req *FunctionRequest) (*symbols.Signature, error) {
	return f(req)
}

// Object is a template definition.
type Object struct {
	ID     types.ID
	Params types.ParameterList
	// Args are the formal argument types of a function template; they may
	// mention the template's parameters.
	Args     []types.TypeInfo
	Class    ClassBuilder
	Function FunctionBuilder
	Loc      diag.Location
}

// Engine owns the template definitions and instantiation memo of a compiler.
type Engine struct {
	registry *symbols.Registry
	types    *types.Registry
	log      *logrus.Entry

	classes   map[string]*Object
	functions map[string][]*Object
	classMemo map[string]types.ComplexType
	funcMemo  map[string]*symbols.Signature
	building  map[string]bool
}

// NewEngine creates an engine and installs it as the registry's template
// bridge.
func NewEngine(reg *symbols.Registry, tr *types.Registry, log *logrus.Entry) *Engine {
	e := &Engine{
		registry:  reg,
		types:     tr,
		log:       log,
		classes:   make(map[string]*Object),
		functions: make(map[string][]*Object),
		classMemo: make(map[string]types.ComplexType),
		funcMemo:  make(map[string]*symbols.Signature),
		building:  make(map[string]bool),
	}
	reg.SetTemplateBridge(e)
	return e
}

// AddTemplateClass registers a class template.
func (e *Engine) AddTemplateClass(o *Object) error {
	if o.Class == nil {
		return errors.Errorf("class template %s has no builder", o.ID)
	}
	if _, ok := e.classes[o.ID.String()]; ok {
		return errors.Errorf("template %s is already defined", o.ID)
	}
	if _, err := e.registry.AddSymbol(o.ID, types.Auto(), symbols.TemplatedClass, symbols.Public, symbols.DebugInfo{Loc: o.Loc}); err != nil {
		return err
	}
	e.classes[o.ID.String()] = o
	return nil
}

// AddTemplateFunction registers a function template. Several templates may
// share a name; they are tried in declaration order.
func (e *Engine) AddTemplateFunction(o *Object) error {
	if o.Function == nil {
		return errors.Errorf("function template %s has no builder", o.ID)
	}
	if a, ok := e.registry.Symbol(o.ID); !ok {
		if _, err := e.registry.AddSymbol(o.ID, types.Auto(), symbols.TemplatedFunction, symbols.Public, symbols.DebugInfo{Loc: o.Loc}); err != nil {
			return err
		}
	} else if a.Kind != symbols.TemplatedFunction {
		return errors.Errorf("%s is already defined as %s", o.ID, a.Kind)
	}
	key := o.ID.String()
	e.functions[key] = append(e.functions[key], o)
	return nil
}

func (e *Engine) IsTemplateClass(id types.ID) bool {
	_, ok := e.classes[id.String()]
	return ok
}

func (e *Engine) IsTemplateFunction(id types.ID) bool {
	return len(e.functions[id.String()]) > 0
}

// ClassTemplate returns the definition of a class template.
func (e *Engine) ClassTemplate(id types.ID) (*Object, bool) {
	o, ok := e.classes[id.String()]
	return o, ok
}

// CreateTemplateInstantiation returns the complex type for id<actual...>.
// Arguments that still mention unbound parameters yield a deduplicated
// placeholder type instead of an instance.
func (e *Engine) CreateTemplateInstantiation(id types.ID, actual types.ParameterList) (types.ComplexType, error) {
	o, ok := e.classes[id.String()]
	if !ok {
		return nil, errors.Errorf("%s is not a template class", id)
	}
	expanded := types.ExpandVariadics(actual, e.registry.LookupPack)
	merged, err := types.MergeParameters(o.Params, expanded)
	if err != nil {
		return nil, errors.Wrapf(err, "can't instantiate %s", id)
	}
	if !merged.IsResolved() {
		return e.types.Register(types.NewTemplatedComplexType(id, merged)), nil
	}
	if err := merged.Validate(o.Params); err != nil {
		return nil, errors.Wrapf(err, "can't instantiate %s", id)
	}

	inst := types.InstanceID(id, merged)
	key := inst.String()
	if ct, ok := e.classMemo[key]; ok {
		return ct, nil
	}
	if e.building[key] {
		return nil, errors.Errorf("%s depends on itself", inst)
	}
	e.building[key] = true
	defer delete(e.building, key)

	e.log.WithField("instance", key).Debug("instantiating class template")
	ct, err := o.Class.BuildClass(&ClassRequest{Template: o, ID: inst, Params: merged, Bindings: types.Bindings(o.Params, merged)})
	if err != nil {
		return nil, errors.Wrapf(err, "template instantiation %s failed", inst)
	}
	ct = e.types.Register(ct)
	e.classMemo[key] = ct
	return ct, nil
}

// CreateTemplateFunction instantiates the first function template named id
// whose parameters can be bound from the explicit arguments plus deduction
// against args.
func (e *Engine) CreateTemplateFunction(id types.ID, explicit types.ParameterList, args []types.TypeInfo) (*symbols.Signature, error) {
	candidates := e.functions[id.String()]
	if len(candidates) == 0 {
		return nil, errors.Errorf("%s is not a template function", id)
	}
	explicit = types.ExpandVariadics(explicit, e.registry.LookupPack)

	var firstErr error
	for i, o := range candidates {
		params, err := Deduce(o.Params, explicit, o.Args, args)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		inst := types.InstanceID(id, params)
		key := fmt.Sprintf("%s#%d", inst, i)
		if sig, ok := e.funcMemo[key]; ok {
			return sig, nil
		}
		if e.building[key] {
			return nil, errors.Errorf("%s depends on itself", inst)
		}
		e.building[key] = true
		e.log.WithField("instance", inst.String()).Debug("instantiating function template")
		sig, err := o.Function.BuildFunction(&FunctionRequest{Template: o, ID: inst, Params: params, Bindings: types.Bindings(o.Params, params)})
		delete(e.building, key)
		if err != nil {
			return nil, errors.Wrapf(err, "template instantiation %s failed", inst)
		}
		e.funcMemo[key] = sig
		return sig, nil
	}
	names := make([]string, len(args))
	for i, a := range args {
		names[i] = a.String()
	}
	return nil, errors.Wrapf(firstErr, "no template %s matches (%s)", id, strings.Join(names, ", "))
}

// Snapshot is a saved engine state.
type Snapshot struct {
	classes   map[string]*Object
	functions map[string][]*Object
	classMemo map[string]types.ComplexType
	funcMemo  map[string]*symbols.Signature
}

func (e *Engine) Checkpoint() Snapshot {
	s := Snapshot{
		classes:   make(map[string]*Object, len(e.classes)),
		functions: make(map[string][]*Object, len(e.functions)),
		classMemo: make(map[string]types.ComplexType, len(e.classMemo)),
		funcMemo:  make(map[string]*symbols.Signature, len(e.funcMemo)),
	}
	for k, v := range e.classes {
		s.classes[k] = v
	}
	for k, v := range e.functions {
		s.functions[k] = append([]*Object(nil), v...)
	}
	for k, v := range e.classMemo {
		s.classMemo[k] = v
	}
	for k, v := range e.funcMemo {
		s.funcMemo[k] = v
	}
	return s
}

func (e *Engine) Rollback(s Snapshot) {
	e.classes, e.functions, e.classMemo, e.funcMemo = s.classes, s.functions, s.classMemo, s.funcMemo
	e.building = make(map[string]bool)
}

// RemoveWithin forgets templates declared in ns and instances mentioning it.
func (e *Engine) RemoveWithin(ns types.ID) {
	prefix := ns.String() + types.Separator
	for k := range e.classes {
		if strings.HasPrefix(k, prefix) {
			delete(e.classes, k)
		}
	}
	for k := range e.functions {
		if strings.HasPrefix(k, prefix) {
			delete(e.functions, k)
		}
	}
	for k := range e.classMemo {
		if types.Mentions(k, ns) {
			delete(e.classMemo, k)
		}
	}
	for k := range e.funcMemo {
		if types.Mentions(k, ns) {
			delete(e.funcMemo, k)
		}
	}
}
