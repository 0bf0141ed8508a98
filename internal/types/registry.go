package types

import "sync"

// Registry interns types by structural key and assigns each distinct
// type a stable Handle, unique within this Registry: handles count up
// from 0 per registry, so two registries hand out the same handles.
// It also
// drives layout finalisation (invariant b).
type Registry struct {
	mu      sync.Mutex
	byKey   map[string]*Type
	byHandle []*Type
	nextHandle uint64

	// primitives, created once, returned by the Prim* accessors.
	prims map[Kind]*Type
}

// NewRegistry creates a registry pre-populated with every primitive
// type.
func NewRegistry() *Registry {
	r := &Registry{
		byKey: make(map[string]*Type, 256),
		prims: make(map[Kind]*Type, 16),
	}
	for _, k := range []Kind{
		Void, Int8, Int16, Int32, Int64, Uint8, Uint16, Uint32, Uint64,
		Float32, Float64, Bool, Address, Unknown, TypeHandleKind,
	} {
		t := &Type{Kind: k}
		sizeAlignPrimitive(t)
		r.register(t)
		r.prims[k] = t
	}
	return r
}

// Prim returns the canonical primitive type for k. Panics if k is not
// a primitive kind handled by NewRegistry.
func (r *Registry) Prim(k Kind) *Type {
	t, ok := r.prims[k]
	if !ok {
		panic("types: Prim called with a non-primitive or aggregate kind")
	}
	return t
}

func (r *Registry) register(t *Type) *Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := t.key()
	if existing, ok := r.byKey[key]; ok {
		return existing
	}
	t.Handle = r.nextHandle
	r.nextHandle++
	r.byKey[key] = t
	r.byHandle = append(r.byHandle, t)
	return t
}

// ByHandle resolves a previously-registered type from its runtime
// handle, as used by Any and Type_Information values at bake/run time.
func (r *Registry) ByHandle(h uint64) *Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	if int(h) >= len(r.byHandle) {
		return nil
	}
	return r.byHandle[h]
}

// Snapshot returns every registered type ordered by handle, letting a
// downstream phase (internal/bcgen builds a runtime
// Type_Information table from it) enumerate the whole registry
// without reaching into its locked internals.
func (r *Registry) Snapshot() []*Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Type(nil), r.byHandle...)
}

// Pointer interns *elem.
func (r *Registry) Pointer(elem *Type) *Type {
	t := &Type{Kind: Pointer, Elem: elem}
	t = r.register(t)
	sizeAlignPointerLike(t)
	return t
}

// Optional interns ?elem. When elem is itself a pointer the result
// aliases the pointer's representation (IsOptionalOfPointer), per
// invariant (c). This is a recognised aliasing rule, not a
// layout transformation: size/align are set to the pointer's own 8/8
// instead of the {present, value} layout other optionals get.
func (r *Registry) Optional(elem *Type) *Type {
	t := &Type{Kind: Optional, Elem: elem}
	t = r.register(t)
	if elem.Kind == Pointer {
		sizeAlignPointerLike(t)
	} else if elem.finished {
		// represented as {present: bool, value: elem}, naturally aligned
		t.align = maxInt(elem.align, 1)
		t.size = alignUp(elem.size+1, t.align)
		t.finished = true
	}
	return t
}

// Array interns [count]elem (count may be UnknownCount).
func (r *Registry) Array(elem *Type, count int) *Type {
	t := &Type{Kind: Array, Elem: elem, ArrayCount: count}
	t = r.register(t)
	if count != UnknownCount && elem.finished {
		t.align = elem.align
		t.size = elem.size * count
		t.finished = true
	}
	return t
}

// Slice interns a slice of elem: an implicit {data: *elem, size: i64}.
func (r *Registry) Slice(elem *Type) *Type {
	t := &Type{Kind: Slice, Elem: elem}
	t = r.register(t)
	t.align = 8
	t.size = 16
	t.finished = true
	return t
}

// FunctionPointer interns a function-pointer type: the single
// function-pointer representation used throughout the repo (no
// separate Signature_Type FUNCTION case); IsDirect distinguishes a
// direct call target from an indirect one at the IR layer, not at the
// type layer.
func (r *Registry) FunctionPointer(params []*Type, ret *Type) *Type {
	t := &Type{Kind: FunctionPointer, Params: params, Return: ret}
	t = r.register(t)
	t.align = 8
	t.size = 8
	t.finished = true
	return t
}

// Any interns the erased-value-plus-type-handle representation.
func (r *Registry) Any() *Type {
	t := &Type{Kind: Any}
	t = r.register(t)
	t.align = 8
	t.size = 16 // {data: ptr, type: u64}
	t.finished = true
	return t
}

// BeginStruct reserves a handle for a struct type before its members
// are known, so member-reference dependents can resolve the name while
// the struct is still unfinished.
func (r *Registry) BeginStruct(name string) *Type {
	t := &Type{Kind: Struct, Struct: &structInfo{Name: name, Discriminant: -1}}
	return r.register(t)
}

// FinishStruct assigns members and computes layout greedily: each
// member is placed at the next offset that is a multiple of its
// alignment, and the struct's own alignment is the max member
// alignment (the same greedy rule bytecode stack frames use).
func (r *Registry) FinishStruct(t *Type, members []Member) {
	if t.Kind != Struct {
		panic("types: FinishStruct on a non-struct type")
	}
	t.Struct.Members = members
	offset := 0
	align := 1
	offsets := make([]int, len(members))
	for i, m := range members {
		if !m.Type.finished {
			panic("types: FinishStruct requires every member to be finished")
		}
		ma := m.Type.align
		offset = alignUp(offset, ma)
		offsets[i] = offset
		offset += m.Type.size
		if ma > align {
			align = ma
		}
	}
	t.size = alignUp(offset, align)
	t.align = align
	t.finished = true
	t.memberOffsets = offsets
}

// MemberOffset returns the byte offset of the i-th member of a
// finished struct type.
func (t *Type) MemberOffset(i int) int {
	if !t.finished {
		panic("types: MemberOffset on an unfinished struct")
	}
	return t.memberOffsets[i]
}

// MakeUnion marks a struct as a tagged union with the given
// discriminant member index and subtype children (a subtype-index
// chain).
func (r *Registry) MakeUnion(t *Type, discriminant int, subtypes []*Type) {
	t.Struct.IsUnion = true
	t.Struct.Discriminant = discriminant
	t.Struct.Subtypes = subtypes
}

// Subtype interns a refinement of a tagged union along path idx,
// starting from the parent's layout; FinishSubtype then extends it with
// the subtype's own members.
func (r *Registry) Subtype(parent *Type, idx []int) *Type {
	t := &Type{
		Kind:         Struct,
		Struct:       parent.Struct,
		SubtypeIndex: append(append([]int{}, parent.SubtypeIndex...), idx...),
	}
	t = r.register(t)
	t.size = parent.size
	t.align = parent.align
	t.finished = parent.finished
	t.memberOffsets = parent.memberOffsets
	return t
}

// FinishSubtype lays out a tagged-union subtype's own refinement
// members directly after its parent's common fields, extending sub's
// size/align to cover them, and returns their offsets (to be indexed
// starting at len(parent.Struct.Members), continuing the base struct's
// member-index space). sub must come from Subtype(parent, ...); parent
// must already be finished.
func (r *Registry) FinishSubtype(sub *Type, extra []Member) []int {
	offset := sub.size
	align := sub.align
	offsets := make([]int, len(extra))
	for i, m := range extra {
		if !m.Type.finished {
			panic("types: FinishSubtype requires every member to be finished")
		}
		ma := m.Type.align
		offset = alignUp(offset, ma)
		offsets[i] = offset
		offset += m.Type.size
		if ma > align {
			align = ma
		}
	}
	sub.size = alignUp(offset, align)
	sub.align = align
	sub.memberOffsets = append(append([]int{}, sub.memberOffsets...), offsets...)
	return offsets
}

// Enum interns an enumeration backed by Int32.
func (r *Registry) Enum(name string, values []string) *Type {
	t := &Type{Kind: Enum, EnumValues: values}
	t = r.register(t)
	t.align = 4
	t.size = 4
	t.finished = true
	return t
}

// Const returns a const-qualified view of t, sharing layout.
func (r *Registry) Const(t *Type) *Type {
	c := *t
	c.Const = true
	return r.register(&c)
}

func sizeAlignPrimitive(t *Type) {
	sizes := map[Kind]int{
		Void: 0, Int8: 1, Int16: 2, Int32: 4, Int64: 8,
		Uint8: 1, Uint16: 2, Uint32: 4, Uint64: 8,
		Float32: 4, Float64: 8, Bool: 1,
		Address: 8, TypeHandleKind: 8,
	}
	if sz, ok := sizes[t.Kind]; ok {
		t.size = sz
		if sz == 0 {
			t.align = 1
		} else {
			t.align = sz
		}
		t.finished = true
	}
	if t.Kind == Unknown {
		// deliberately left unfinished: sizing an unknown type is a
		// caller bug, not a value to propagate.
	}
}

func sizeAlignPointerLike(t *Type) {
	t.size = 8
	t.align = 8
	t.finished = true
}

func alignUp(n, align int) int {
	if align <= 1 {
		return n
	}
	return (n + align - 1) / align * align
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
