package types

import (
	"fmt"

	"github.com/pkg/errors"
)

// ComplexType is a user-visible aggregate: a struct, an array-like container
// or a deferred template instantiation. Identity is the canonical String();
// the Registry collapses structurally identical instances.
type ComplexType interface {
	ID() ID
	String() string
	Size() int
	// Template is the class template this type was instantiated from, or the
	// root ID.
	Template() ID
	TemplateParameters() ParameterList
	IsComplete() bool
	complexType()
}

// ArrayType is implemented by span, dyn and block.
type ArrayType interface {
	ComplexType
	Element() TypeInfo
	// Length is the element count, or -1 when it is only known at runtime.
	Length() int
}

// InstanceID names a template instantiation: "Array" + [float, 4] gives
// "Array<float, 4>" in Array's namespace.
func InstanceID(template ID, params ParameterList) ID {
	return template.Parent().Child(template.Name() + "<" + params.String() + ">")
}

// Member is a data member of a struct.
type Member struct {
	Name       string
	Type       TypeInfo
	Index      int
	Offset     int
	Private    bool
	Default    Constant
	HasDefault bool
}

// StructType is a user-defined struct or class.
type StructType struct {
	id       ID
	template ID
	params   ParameterList
	members  []*Member
	complete bool
	size     int
}

func NewStructType(id ID) *StructType { return &StructType{id: id} }

// SetTemplate records the class template and bound parameters this struct was
// instantiated from.
func (s *StructType) SetTemplate(origin ID, params ParameterList) {
	s.template, s.params = origin, params
}

func (s *StructType) ID() ID                            { return s.id }
func (s *StructType) String() string                    { return s.id.String() }
func (s *StructType) Template() ID                      { return s.template }
func (s *StructType) TemplateParameters() ParameterList { return s.params }
func (s *StructType) IsComplete() bool                  { return s.complete }
func (s *StructType) Members() []*Member                { return s.members }
func (*StructType) complexType()                        {}

func (s *StructType) Size() int {
	if !s.complete {
		return 0
	}
	return s.size
}

// AddMember appends a data member. Members cannot be added once the layout is
// complete.
func (s *StructType) AddMember(name string, t TypeInfo, private bool) (*Member, error) {
	if s.complete {
		return nil, errors.Errorf("can't add member %s to complete type %s", name, s.id)
	}
	if _, ok := s.Member(name); ok {
		return nil, errors.Errorf("duplicate member %s in %s", name, s.id)
	}
	if t.IsVoid() {
		return nil, errors.Errorf("member %s of %s can't be void", name, s.id)
	}
	m := &Member{Name: name, Type: t, Index: len(s.members), Private: private}
	s.members = append(s.members, m)
	return m, nil
}

func (s *StructType) Member(name string) (*Member, bool) {
	for _, m := range s.members {
		if m.Name == name {
			return m, true
		}
	}
	return nil, false
}

// SetDefault stores the default value a member is initialised with.
func (s *StructType) SetDefault(name string, c Constant) error {
	m, ok := s.Member(name)
	if !ok {
		return errors.Errorf("%s has no member %s", s.id, name)
	}
	if m.Type.IsComplex() {
		return errors.Errorf("member %s of %s has no scalar default", name, s.id)
	}
	m.Default, m.HasDefault = c.ConvertTo(m.Type.Native()), true
	return nil
}

// Complete computes member offsets with natural alignment.
func (s *StructType) Complete() {
	if s.complete {
		return
	}
	off := 0
	for _, m := range s.members {
		align := alignOf(m.Type)
		off = (off + align - 1) / align * align
		m.Offset = off
		off += m.Type.Size()
	}
	maxAlign := 1
	for _, m := range s.members {
		if a := alignOf(m.Type); a > maxAlign {
			maxAlign = a
		}
	}
	s.size = (off + maxAlign - 1) / maxAlign * maxAlign
	s.complete = true
}

func alignOf(t TypeInfo) int {
	switch c := t.Complex().(type) {
	case nil:
		if n := t.Native().Size(); n > 0 {
			return n
		}
		return 1
	case *SpanType:
		return alignOf(c.elem)
	case *StructType:
		a := 1
		for _, m := range c.members {
			if ma := alignOf(m.Type); ma > a {
				a = ma
			}
		}
		return a
	}
	return 8
}

// SpanType is a fixed-size array: span<T, N>.
type SpanType struct {
	elem TypeInfo
	size int
}

func NewSpanType(elem TypeInfo, size int) *SpanType {
	return &SpanType{elem: elem.Plain(), size: size}
}

func (s *SpanType) ID() ID { return NewID(s.String()) }
func (s *SpanType) String() string {
	return fmt.Sprintf("span<%s, %d>", s.elem, s.size)
}
func (s *SpanType) Size() int         { return s.elem.Size() * s.size }
func (s *SpanType) Template() ID      { return NewID("span") }
func (s *SpanType) IsComplete() bool  { return true }
func (s *SpanType) Element() TypeInfo { return s.elem }
func (s *SpanType) Length() int       { return s.size }
func (*SpanType) complexType()        {}
func (s *SpanType) TemplateParameters() ParameterList {
	return ParameterList{TypeArg(s.elem), ConstantArg(s.size)}
}

// DynType is a runtime-sized view onto array data: dyn<T>.
type DynType struct {
	elem TypeInfo
}

func NewDynType(elem TypeInfo) *DynType { return &DynType{elem: elem.Plain()} }

func (d *DynType) ID() ID                            { return NewID(d.String()) }
func (d *DynType) String() string                    { return fmt.Sprintf("dyn<%s>", d.elem) }
func (d *DynType) Size() int                         { return 16 }
func (d *DynType) Template() ID                      { return NewID("dyn") }
func (d *DynType) IsComplete() bool                  { return true }
func (d *DynType) Element() TypeInfo                 { return d.elem }
func (d *DynType) Length() int                       { return -1 }
func (d *DynType) TemplateParameters() ParameterList { return ParameterList{TypeArg(d.elem)} }
func (*DynType) complexType()                        {}

// BlockType is the legacy raw float buffer handed in by the host.
type BlockType struct{}

func (BlockType) ID() ID                            { return NewID("block") }
func (BlockType) String() string                    { return "block" }
func (BlockType) Size() int                         { return 16 }
func (BlockType) Template() ID                      { return ID{} }
func (BlockType) TemplateParameters() ParameterList { return nil }
func (BlockType) IsComplete() bool                  { return true }
func (BlockType) Element() TypeInfo                 { return Native(Float) }
func (BlockType) Length() int                       { return -1 }
func (BlockType) complexType()                      {}

// TemplatedComplexType stands in for an instantiation whose parameters are not
// all bound yet, e.g. span<T, N> inside a template definition.
type TemplatedComplexType struct {
	template ID
	params   ParameterList
}

func NewTemplatedComplexType(template ID, params ParameterList) *TemplatedComplexType {
	return &TemplatedComplexType{template: template, params: params}
}

func (t *TemplatedComplexType) ID() ID                            { return InstanceID(t.template, t.params) }
func (t *TemplatedComplexType) String() string                    { return t.ID().String() }
func (t *TemplatedComplexType) Size() int                         { return 0 }
func (t *TemplatedComplexType) Template() ID                      { return t.template }
func (t *TemplatedComplexType) TemplateParameters() ParameterList { return t.params }
func (t *TemplatedComplexType) IsComplete() bool                  { return false }
func (*TemplatedComplexType) complexType()                        {}
