// Package bcgen lowers typed IR (internal/ir) into the linear
// bytecode instruction set of internal/bytecode, 
// Every ir.Access resolves to either a direct in-frame value offset or
// a computed address that a memory read/write then dereferences;
// internal/ir.Access's projection algebra (member/array-element/
// dereference/address-of) maps directly onto the address-computation
// opcodes internal/bytecode exposes for exactly this purpose.
package bcgen

import (
	"fmt"

	"upp/internal/bytecode"
	"upp/internal/constpool"
	"upp/internal/ir"
	"upp/internal/types"
)

type alignerType struct{ t *types.Type }

func (a alignerType) Size() int  { return a.t.Size() }
func (a alignerType) Align() int { return a.t.Align() }

// Generate lowers every function in p into a single flat bytecode
// program, resolving forward references (calls to functions lowered
// later, gotos to later labels) in one patch pass at the end. reg is
// snapshotted into the program's runtime Type_Information table
// so size_of/align_of/type_info/struct_tag can answer at run time
// without the interpreter ever importing internal/types.
func Generate(p *ir.Program, reg *types.Registry) (*bytecode.Program, error) {
	out := bytecode.NewProgram()
	patcher := bytecode.NewPatcher()

	out.ConstantOffsets = internConstants(out, p.Consts)
	out.GlobalOffsets = internGlobals(out, p.Globals)
	out.Types = snapshotTypes(reg)

	for _, fn := range p.Functions {
		l := newLowerer(out, patcher, p.Consts, fn)
		l.lower()
	}

	unresolved := patcher.Resolve(out)
	if len(unresolved) != 0 {
		return out, fmt.Errorf("bcgen: %d unresolved forward reference(s) after lowering", len(unresolved))
	}
	return out, nil
}

// snapshotTypes flattens every type the registry has interned into the
// program's runtime-visible TypeMeta table, indexed by handle (the
// registry assigns handles densely from 0, so a plain slice suffices).
func snapshotTypes(reg *types.Registry) []bytecode.TypeMeta {
	if reg == nil {
		return nil
	}
	all := reg.Snapshot()
	metas := make([]bytecode.TypeMeta, len(all))
	for i, t := range all {
		m := bytecode.TypeMeta{Handle: t.Handle, Kind: t.Kind, Discriminant: -1}
		if t.Finished() {
			m.Size = int32(t.Size())
			m.Align = int32(t.Align())
		}
		switch t.Kind {
		case types.Pointer, types.Optional, types.Array, types.Slice:
			if t.Elem != nil {
				m.ElemHandle = t.Elem.Handle
			}
			if t.Kind == types.Array {
				if t.ArrayCount == types.UnknownCount {
					m.ArrayCount = -1
				} else {
					m.ArrayCount = int32(t.ArrayCount)
				}
			}
		case types.FunctionPointer:
			if t.Return != nil {
				m.ReturnHandle = t.Return.Handle
			}
		case types.Struct:
			if t.Struct != nil {
				m.Name = t.Struct.Name
				m.IsUnion = t.Struct.IsUnion
				m.Discriminant = int32(t.Struct.Discriminant)
				m.MemberNames = make([]string, len(t.Struct.Members))
				m.MemberOffsets = make([]int32, len(t.Struct.Members))
				for mi, mem := range t.Struct.Members {
					if mem.Name != nil {
						m.MemberNames[mi] = *mem.Name
					}
					if t.Finished() {
						m.MemberOffsets[mi] = int32(t.MemberOffset(mi))
					}
				}
			}
		case types.Enum:
			m.MemberNames = append([]string(nil), t.EnumValues...)
		}
		metas[i] = m
	}
	return metas
}

func internConstants(out *bytecode.Program, pool *constpool.Pool) []int {
	if pool == nil {
		return nil
	}
	offsets := make([]int, pool.Len())
	for i := 0; i < pool.Len(); i++ {
		e := pool.Get(constpool.Handle(i))
		offsets[i] = len(out.ConstantBytes)
		out.ConstantBytes = append(out.ConstantBytes, e.Bytes...)
	}
	return offsets
}

func internGlobals(out *bytecode.Program, globals []ir.Global) []int {
	offsets := make([]int, len(globals))
	offset := 0
	for i, g := range globals {
		align := g.Type.Align()
		if align <= 0 {
			align = 1
		}
		offset = alignUp(offset, align)
		offsets[i] = offset
		offset += g.Type.Size()
	}
	out.GlobalBytes = make([]byte, offset)
	return offsets
}

func alignUp(n, align int) int {
	if align <= 1 {
		return n
	}
	return (n + align - 1) / align * align
}

type lowerer struct {
	out     *bytecode.Program
	patcher *bytecode.Patcher
	consts  *constpool.Pool
	fn      *ir.Function

	regOffset map[*ir.Block]map[int]int32
	frame     bytecode.FrameLayout
	scratchAt int32

	labelSeq int
}

func newLowerer(out *bytecode.Program, patcher *bytecode.Patcher, consts *constpool.Pool, fn *ir.Function) *lowerer {
	return &lowerer{out: out, patcher: patcher, consts: consts, fn: fn, regOffset: map[*ir.Block]map[int]int32{}}
}

func (l *lowerer) emit(ins bytecode.Instruction) int { return l.out.Emit(ins) }

func (l *lowerer) newLabel(prefix string) string {
	l.labelSeq++
	return fmt.Sprintf("%s_%s_%d", l.fn.Name, prefix, l.labelSeq)
}

func (l *lowerer) scratch(t *types.Type) int32 {
	align := t.Align()
	if align <= 0 {
		align = 1
	}
	l.scratchAt = int32(alignUp(int(l.scratchAt), align))
	off := l.scratchAt
	l.scratchAt += int32(t.Size())
	return off
}

func (l *lowerer) lower() {
	paramAligners := make([]bytecode.SizeAligner, len(l.fn.Params))
	for i, p := range l.fn.Params {
		paramAligners[i] = alignerType{p}
	}
	var regAligners []bytecode.SizeAligner
	var regRefs []regRef
	collectRegisters(l, l.fn.Entry, &regAligners, &regRefs)

	layout := bytecode.LayoutFrame(paramAligners, regAligners)
	for i, off := range layout.RegisterOffsets {
		ref := regRefs[i]
		l.regOffset[ref.block][ref.idx] = int32(off)
	}
	l.frame = layout
	l.scratchAt = int32(layout.FrameSize)

	entryIdx := len(l.out.Instructions)
	bcFn := &bytecode.Function{Name: l.fn.Name, EntryIndex: entryIdx}
	l.out.Functions = append(l.out.Functions, bcFn)

	l.lowerBlock(l.fn.Entry)
	// Safety net: a well-typed function always ends in an explicit
	// return, but a void function falling off the end of its block
	// still needs one emitted.
	if len(l.out.Instructions) == entryIdx || l.out.Instructions[len(l.out.Instructions)-1].Kind != bytecode.OpReturn {
		l.emit(bytecode.Instruction{Kind: bytecode.OpReturn})
	}

	layout.FrameSize = int(l.scratchAt)
	bcFn.Layout = layout
	if l.fn.Return != nil {
		bcFn.ReturnSize = l.fn.Return.Size()
	}
}

// regRef names one register by its owning block and local index, used
// to map flattened frame-layout offsets back onto their block.
type regRef struct {
	block *ir.Block
	idx   int
}

// collectRegisters walks the block tree in allocation order, gathering
// every register's (size, align) alongside a regRef so the caller can
// zip LayoutFrame's resulting offsets back onto the right block.
func collectRegisters(l *lowerer, b *ir.Block, accum *[]bytecode.SizeAligner, refs *[]regRef) {
	l.regOffset[b] = make(map[int]int32, len(b.Registers))
	for i, r := range b.Registers {
		*accum = append(*accum, alignerType{r.Type})
		*refs = append(*refs, regRef{block: b, idx: i})
	}
	l.walkNestedBlocks(b, func(nested *ir.Block) { collectRegisters(l, nested, accum, refs) })
}

// walkNestedBlocks visits every child block owned by instructions in b
// (If/While/Switch/Block), in source order.
func (l *lowerer) walkNestedBlocks(b *ir.Block, visit func(*ir.Block)) {
	for _, ins := range b.Instructions {
		switch ins.Kind {
		case ir.InstrIf:
			visit(ins.Then)
			if ins.Else != nil {
				visit(ins.Else)
			}
		case ir.InstrWhile:
			visit(ins.CondBlock)
			visit(ins.Body)
		case ir.InstrSwitch:
			for _, c := range ins.Cases {
				visit(c.Body)
			}
			if ins.DefaultCase != nil {
				visit(ins.DefaultCase)
			}
		case ir.InstrBlock:
			visit(ins.Nested)
		}
	}
}
