package ast

// Module is a compilation unit's root node. Module nodes create a new
// symbol table chained to their parent.
type Module struct {
	Base
	Path    string
	Imports []*Import
	Defs    []*Definition
}

func (m *Module) Children() []Node {
	ch := make([]Node, 0, len(m.Imports)+len(m.Defs))
	for _, i := range m.Imports {
		ch = append(ch, i)
	}
	for _, d := range m.Defs {
		ch = append(ch, d)
	}
	return ch
}

// ImportKind discriminates the two import forms: a file import and a
// project import.
type ImportKind int

const (
	ImportFile ImportKind = iota
	ImportProject
)

type Import struct {
	Base
	Kind    ImportKind
	Path    string // file path, or project name
	Version string // optional "@version" constraint on ImportProject (supplemented feature)
}

func (*Import) Children() []Node { return nil }

// DefKind discriminates what a top-level `name :: value` defines.
// Dependency-analyser item creation branches on this.
type DefKind int

const (
	DefConst DefKind = iota // comptime non-function, non-struct value
	DefFunction
	DefStruct
	DefEnum
	DefBake
)

// Definition is a comptime top-level binding. Name is empty for a bare
// `bake { ... }` block that defines no symbol.
type Definition struct {
	Base
	Name string
	Kind DefKind

	// DefConst
	ConstType  TypeExpr // nil if inferred
	ConstValue Expr

	// DefFunction
	Params   []*Param
	RetType  TypeExpr // nil => void
	Body     *CodeBlock
	PolyVars []string // pattern variables ($T) declared in Params

	// DefStruct
	Fields    []*StructField
	UnionTag  string // discriminant member name, "" if not a tagged union
	Subtypes  []*StructVariant

	// DefEnum
	EnumValues []string

	// DefBake
	BakeBody *CodeBlock
}

func (d *Definition) Children() []Node {
	ch := []Node{}
	switch d.Kind {
	case DefConst:
		if d.ConstType != nil {
			ch = append(ch, d.ConstType)
		}
		ch = append(ch, d.ConstValue)
	case DefFunction:
		for _, p := range d.Params {
			ch = append(ch, p)
		}
		if d.RetType != nil {
			ch = append(ch, d.RetType)
		}
		if d.Body != nil {
			ch = append(ch, d.Body)
		}
	case DefStruct:
		for _, f := range d.Fields {
			ch = append(ch, f)
		}
		for _, s := range d.Subtypes {
			ch = append(ch, s)
		}
	case DefBake:
		ch = append(ch, d.BakeBody)
	}
	return ch
}

// Param is a call-signature parameter.
type Param struct {
	Base
	Name         string
	Type         TypeExpr // nil for a pattern variable parameter ($T)
	PatternVar   bool
	Comptime     bool
	Required     bool
	NamedOnly    bool
	MustNotBeSet bool
	Default      Expr // nil if none
}

func (p *Param) Children() []Node {
	ch := []Node{}
	if p.Type != nil {
		ch = append(ch, p.Type)
	}
	if p.Default != nil {
		ch = append(ch, p.Default)
	}
	return ch
}

// StructField is one member of a struct definition.
type StructField struct {
	Base
	Name string
	Type TypeExpr
}

func (f *StructField) Children() []Node { return []Node{f.Type} }

// StructVariant is one refinement of a tagged union (
// subtype-index chain).
type StructVariant struct {
	Base
	Tag    string
	Fields []*StructField
}

func (v *StructVariant) Children() []Node {
	ch := make([]Node, len(v.Fields))
	for i, f := range v.Fields {
		ch[i] = f
	}
	return ch
}
