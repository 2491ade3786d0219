package templates

import (
	"io"
	"testing"

	"github.com/nalgeon/be"
	"github.com/sirupsen/logrus"

	"dspc/pkg/symbols"
	"dspc/pkg/types"
)

var (
	floatT = types.Native(types.Float)
	intT   = types.Native(types.Integer)
)

func newEngine() (*Engine, *symbols.Registry) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	reg := symbols.NewRegistry()
	return NewEngine(reg, types.NewRegistry(), logrus.NewEntry(log)), reg
}

// pairTemplate is "template <typename T, int N = 2> struct Pair" in Main.
func pairTemplate(calls *int) *Object {
	id := types.ParseID("Main::Pair")
	return &Object{
		ID: id,
		Params: types.ParameterList{
			types.FormalType(id.Child("T"), false),
			types.FormalConstant(id.Child("N"), false).WithDefaultConstant(2),
		},
		Class: ClassBuilderFunc(func(req *ClassRequest) (types.ComplexType, error) {
			*calls++
			st := types.NewStructType(req.ID)
			st.SetTemplate(req.Template.ID, req.Params)
			if _, err := st.AddMember("first", req.Params[0].Type, false); err != nil {
				return nil, err
			}
			st.Complete()
			return st, nil
		}),
	}
}

func TestEngine_ClassTemplate(t *testing.T) {
	e, reg := newEngine()
	calls := 0
	be.Err(t, e.AddTemplateClass(pairTemplate(&calls)), nil)
	be.Err(t, e.AddTemplateClass(pairTemplate(&calls)), "template Main::Pair is already defined")
	be.True(t, e.IsTemplateClass(types.ParseID("Main::Pair")))
	be.True(t, reg.IsTemplateClass(types.ParseID("Main::Pair")))

	a, ok := reg.Symbol(types.ParseID("Main::Pair"))
	be.True(t, ok)
	be.Equal(t, a.Kind, symbols.TemplatedClass)

	ct, err := e.CreateTemplateInstantiation(types.ParseID("Main::Pair"), types.ParameterList{types.TypeArg(floatT)})
	be.Err(t, err, nil)
	be.Equal(t, ct.String(), "Main::Pair<float, 2>")
	be.Equal(t, calls, 1)

	again, err := reg.CreateTemplateInstantiation(types.ParseID("Main::Pair"), types.ParameterList{types.TypeArg(floatT), types.ConstantArg(2)})
	be.Err(t, err, nil)
	be.True(t, again == ct)
	be.Equal(t, calls, 1)

	t.Run("placeholder", func(t *testing.T) {
		ct, err := e.CreateTemplateInstantiation(types.ParseID("Main::Pair"), types.ParameterList{types.TypeArg(types.TemplateParam(types.ParseID("f::T")))})
		be.Err(t, err, nil)
		_, ok := ct.(*types.TemplatedComplexType)
		be.True(t, ok)
		be.Equal(t, calls, 1)
	})

	t.Run("errors", func(t *testing.T) {
		_, err := e.CreateTemplateInstantiation(types.ParseID("Main::Nope"), nil)
		be.Err(t, err, "Main::Nope is not a template class")
		_, err = e.CreateTemplateInstantiation(types.ParseID("Main::Pair"), types.ParameterList{types.ConstantArg(1)})
		be.Err(t, err, "can't instantiate Main::Pair")
		_, err = e.CreateTemplateInstantiation(types.ParseID("Main::Pair"), types.ParameterList{types.TypeArg(types.Native(types.Void))})
		be.Err(t, err, "can't be void")
	})
}

func TestEngine_SelfDependentClass(t *testing.T) {
	e, _ := newEngine()
	id := types.ParseID("Main::Loop")
	err := e.AddTemplateClass(&Object{
		ID:     id,
		Params: types.ParameterList{types.FormalType(id.Child("T"), false)},
		Class: ClassBuilderFunc(func(req *ClassRequest) (types.ComplexType, error) {
			return e.CreateTemplateInstantiation(id, req.Params)
		}),
	})
	be.Err(t, err, nil)

	_, err = e.CreateTemplateInstantiation(id, types.ParameterList{types.TypeArg(intT)})
	be.Err(t, err, "Main::Loop<int> depends on itself")
}

func TestEngine_CheckpointRollback(t *testing.T) {
	e, _ := newEngine()
	calls := 0
	pair := types.ParseID("Main::Pair")
	be.Err(t, e.AddTemplateClass(pairTemplate(&calls)), nil)
	cp := e.Checkpoint()

	_, err := e.CreateTemplateInstantiation(pair, types.ParameterList{types.TypeArg(intT)})
	be.Err(t, err, nil)
	be.Equal(t, calls, 1)

	e.Rollback(cp)
	_, err = e.CreateTemplateInstantiation(pair, types.ParameterList{types.TypeArg(intT)})
	be.Err(t, err, nil)
	be.Equal(t, calls, 2)

	e.RemoveWithin(types.ParseID("Main"))
	be.True(t, !e.IsTemplateClass(pair))
	_, ok := e.ClassTemplate(pair)
	be.True(t, !ok)
}

// maxTemplate is "template <typename T> T max(T a, T b)" in Main.
func maxTemplate(calls *int) *Object {
	id := types.ParseID("Main::max")
	T := types.TemplateParam(id.Child("T"))
	return &Object{
		ID:     id,
		Params: types.ParameterList{types.FormalType(id.Child("T"), false)},
		Args:   []types.TypeInfo{T, T},
		Function: FunctionBuilderFunc(func(req *FunctionRequest) (*symbols.Signature, error) {
			*calls++
			elem := req.Bindings[0].Args[0].Type
			return &symbols.Signature{
				ID:     req.ID,
				Return: elem,
				Params: []symbols.Parameter{{Name: "a", Type: elem}, {Name: "b", Type: elem}},
			}, nil
		}),
	}
}

func TestEngine_FunctionTemplate(t *testing.T) {
	e, reg := newEngine()
	calls := 0
	maxID := types.ParseID("Main::max")
	be.Err(t, e.AddTemplateFunction(maxTemplate(&calls)), nil)
	be.True(t, reg.IsTemplateFunction(maxID))

	a, ok := reg.Symbol(maxID)
	be.True(t, ok)
	be.Equal(t, a.Kind, symbols.TemplatedFunction)

	sig, err := reg.CreateTemplateFunction(maxID, nil, []types.TypeInfo{floatT, floatT})
	be.Err(t, err, nil)
	be.Equal(t, sig.String(), "float Main::max<float>(float, float)")

	again, err := e.CreateTemplateFunction(maxID, nil, []types.TypeInfo{floatT, floatT})
	be.Err(t, err, nil)
	be.True(t, again == sig)
	be.Equal(t, calls, 1)

	sig, err = e.CreateTemplateFunction(maxID, types.ParameterList{types.TypeArg(intT)}, []types.TypeInfo{intT, intT})
	be.Err(t, err, nil)
	be.Equal(t, sig.ID.String(), "Main::max<int>")

	_, err = e.CreateTemplateFunction(maxID, nil, []types.TypeInfo{floatT, intT})
	be.Err(t, err, "no template Main::max matches (float, int)")
	_, err = e.CreateTemplateFunction(types.ParseID("Main::min"), nil, nil)
	be.Err(t, err, "Main::min is not a template function")

	_, err = reg.AddSymbol(types.ParseID("Main::gain"), floatT, symbols.Variable, symbols.Public, symbols.DebugInfo{})
	be.Err(t, err, nil)
	o := maxTemplate(&calls)
	o.ID = types.ParseID("Main::gain")
	be.Err(t, e.AddTemplateFunction(o), "Main::gain is already defined as variable")
}

func TestDeduce(t *testing.T) {
	f := types.ParseID("f")
	T, U := f.Child("T"), f.Child("U")
	formalT := types.ParameterList{types.FormalType(T, false)}

	tests := []struct {
		name       string
		formal     types.ParameterList
		explicit   types.ParameterList
		formalArgs []types.TypeInfo
		args       []types.TypeInfo
		want       string
		err        string
	}{
		{
			name:       "from argument",
			formal:     formalT,
			formalArgs: []types.TypeInfo{types.TemplateParam(T)},
			args:       []types.TypeInfo{floatT},
			want:       "float",
		},
		{
			name:     "explicit only",
			formal:   formalT,
			explicit: types.ParameterList{types.TypeArg(intT)},
			want:     "int",
		},
		{
			name:       "explicit converts argument",
			formal:     formalT,
			explicit:   types.ParameterList{types.TypeArg(floatT)},
			formalArgs: []types.TypeInfo{types.TemplateParam(T)},
			args:       []types.TypeInfo{intT},
			want:       "float",
		},
		{
			name:       "conflict",
			formal:     formalT,
			formalArgs: []types.TypeInfo{types.TemplateParam(T), types.TemplateParam(T)},
			args:       []types.TypeInfo{floatT, intT},
			err:        "conflicting arguments for T: float and int",
		},
		{
			name:       "undeducible",
			formal:     types.ParameterList{types.FormalType(T, false), types.FormalType(U, false)},
			formalArgs: []types.TypeInfo{types.TemplateParam(T)},
			args:       []types.TypeInfo{floatT},
			err:        "can't deduce template argument U",
		},
		{
			name:       "default",
			formal:     types.ParameterList{types.FormalType(T, false), types.FormalType(U, false).WithDefaultType(types.Native(types.Double))},
			formalArgs: []types.TypeInfo{types.TemplateParam(T)},
			args:       []types.TypeInfo{floatT},
			want:       "float, double",
		},
		{
			name:       "arity",
			formal:     formalT,
			formalArgs: []types.TypeInfo{types.TemplateParam(T)},
			err:        "expected 1 arguments, got 0",
		},
		{
			name:     "too many explicit",
			formal:   formalT,
			explicit: types.ParameterList{types.TypeArg(intT), types.TypeArg(intT)},
			err:      "too many template arguments",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Deduce(tt.formal, tt.explicit, tt.formalArgs, tt.args)
			if tt.err != "" {
				be.Err(t, err, tt.err)
				return
			}
			be.Err(t, err, nil)
			be.Equal(t, got.String(), tt.want)
		})
	}
}

func TestDeduce_ThroughSpan(t *testing.T) {
	f := types.ParseID("sum")
	T, N := f.Child("T"), f.Child("N")
	formal := types.ParameterList{types.FormalType(T, false), types.FormalConstant(N, false)}
	arg := types.Complex(types.NewTemplatedComplexType(types.NewID("span"), types.ParameterList{
		types.TypeArg(types.TemplateParam(T)),
		types.UnresolvedConstant(N),
	}))

	got, err := Deduce(formal, nil, []types.TypeInfo{arg}, []types.TypeInfo{types.Complex(types.NewSpanType(floatT, 4))})
	be.Err(t, err, nil)
	be.Equal(t, got.String(), "float, 4")

	_, err = Deduce(formal, nil, []types.TypeInfo{arg}, []types.TypeInfo{types.Complex(types.NewDynType(floatT))})
	be.Err(t, err, "can't match dyn<float> against span<T, N>")
}
