// Package types implements Upp's canonical, pool-interned type system:
// base type variants, orthogonal modifiers (const/pointer-level/subtype
// index), and memory layout (size, alignment) once a type is finished.
package types

import (
	"fmt"
	"strings"
)

// Kind discriminates the base type variants.
type Kind int

const (
	Void Kind = iota
	Int8
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64
	Float32
	Float64
	Bool
	Pointer
	Optional
	FunctionPointer
	Array
	Slice
	Struct
	Enum
	TypeHandleKind // the type "Type" itself, i.e. a value that names a type
	Any
	Address
	Unknown
)

func (k Kind) String() string {
	switch k {
	case Void:
		return "void"
	case Int8, Int16, Int32, Int64, Uint8, Uint16, Uint32, Uint64:
		return intName(k)
	case Float32:
		return "f32"
	case Float64:
		return "f64"
	case Bool:
		return "bool"
	case Pointer:
		return "pointer"
	case Optional:
		return "optional"
	case FunctionPointer:
		return "function_pointer"
	case Array:
		return "array"
	case Slice:
		return "slice"
	case Struct:
		return "struct"
	case Enum:
		return "enum"
	case TypeHandleKind:
		return "Type"
	case Any:
		return "Any"
	case Address:
		return "address"
	default:
		return "unknown"
	}
}

func intName(k Kind) string {
	names := map[Kind]string{
		Int8: "i8", Int16: "i16", Int32: "i32", Int64: "i64",
		Uint8: "u8", Uint16: "u16", Uint32: "u32", Uint64: "u64",
	}
	return names[k]
}

// UnknownCount is the sentinel array element count meaning "unknown at
// this point in analysis".
const UnknownCount = -1

// Member describes one ordered member of a struct type.
type Member struct {
	Name *string // nil for anonymous/padding members
	Type *Type
	// SubtypeTag is set when this member belongs to a tagged-union
	// subtype refinement rather than the base struct.
	SubtypeTag int
}

// Struct-specific payload.
type structInfo struct {
	Name        string
	Members     []Member
	IsUnion     bool // tagged union
	Discriminant int // index of the discriminant member, -1 if none
	Subtypes    []*Type // child refinements, indexed by subtype index
}

// Type is a canonical, interned type value. Equal (Kind, modifiers,
// payload) always yields the same *Type pointer (the Registry interns
// by key).
type Type struct {
	Kind Kind

	// Modifiers, orthogonal to Kind.
	Const        bool
	PointerLevel int // >0 only meaningful combined with Kind==Pointer chains collapsed to Elem
	SubtypeIndex []int

	// Payload, meaningful per Kind.
	Elem        *Type // Pointer/Optional/Array/Slice element type
	ArrayCount  int   // Array element count, or UnknownCount
	Params      []*Type
	Return      *Type
	Struct      *structInfo
	EnumValues  []string

	// Handle is the stable runtime type-id (invariant a), unique within
	// the Registry that interned the type.
	Handle uint64

	// layout is populated once the type is finished; see
	// Registry.FinishStruct.
	size      int
	align     int
	finished  bool
	memberOffsets []int
}

// Finished reports whether size/align are defined (invariant b).
func (t *Type) Finished() bool { return t.finished }

// Size returns the type's byte size. Panics if the type is unfinished;
// callers must check Finished (or go through a member-in-memory
// dependency, which guarantees it) first.
func (t *Type) Size() int {
	if !t.finished {
		panic(fmt.Sprintf("types: Size() on unfinished type %s", t.key()))
	}
	return t.size
}

// Align returns the type's byte alignment, defined under the same
// condition as Size.
func (t *Type) Align() int {
	if !t.finished {
		panic(fmt.Sprintf("types: Align() on unfinished type %s", t.key()))
	}
	return t.align
}

// IsOptionalOfPointer recognises the aliasing rule that an optional of
// a pointer shares representation with the pointer, null meaning
// unavailable.
func (t *Type) IsOptionalOfPointer() bool {
	return t.Kind == Optional && t.Elem != nil && t.Elem.Kind == Pointer
}

func (t *Type) String() string {
	var sb strings.Builder
	if t.Const {
		sb.WriteString("const ")
	}
	switch t.Kind {
	case Pointer:
		sb.WriteByte('*')
		sb.WriteString(t.Elem.String())
	case Optional:
		sb.WriteByte('?')
		sb.WriteString(t.Elem.String())
	case Array:
		if t.ArrayCount == UnknownCount {
			sb.WriteString("[]")
		} else {
			fmt.Fprintf(&sb, "[%d]", t.ArrayCount)
		}
		sb.WriteString(t.Elem.String())
	case Slice:
		sb.WriteString("[..]")
		sb.WriteString(t.Elem.String())
	case Struct:
		if t.Struct != nil {
			sb.WriteString(t.Struct.Name)
		} else {
			sb.WriteString("struct")
		}
		for _, idx := range t.SubtypeIndex {
			fmt.Fprintf(&sb, ".$%d", idx)
		}
	case FunctionPointer:
		sb.WriteString("fn(")
		for i, p := range t.Params {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(p.String())
		}
		sb.WriteByte(')')
		if t.Return != nil && t.Return.Kind != Void {
			sb.WriteString(" -> ")
			sb.WriteString(t.Return.String())
		}
	default:
		sb.WriteString(t.Kind.String())
	}
	return sb.String()
}

// key is the structural identity used for interning: (base, modifiers).
// Two types are semantically equal iff their key is equal.
func (t *Type) key() string {
	var sb strings.Builder
	if t.Const {
		sb.WriteString("c:")
	}
	fmt.Fprintf(&sb, "%d", t.Kind)
	for _, s := range t.SubtypeIndex {
		fmt.Fprintf(&sb, ".%d", s)
	}
	switch t.Kind {
	case Pointer, Optional, Slice:
		sb.WriteByte('(')
		sb.WriteString(t.Elem.key())
		sb.WriteByte(')')
	case Array:
		fmt.Fprintf(&sb, "(%d,%s)", t.ArrayCount, t.Elem.key())
	case Struct:
		if t.Struct != nil {
			sb.WriteString(":")
			sb.WriteString(t.Struct.Name)
		}
	case Enum:
		sb.WriteString(":")
		sb.WriteString(strings.Join(t.EnumValues, ","))
	case FunctionPointer:
		sb.WriteByte('(')
		for _, p := range t.Params {
			sb.WriteString(p.key())
			sb.WriteByte(',')
		}
		sb.WriteByte(')')
		if t.Return != nil {
			sb.WriteString(t.Return.key())
		}
	}
	return sb.String()
}
