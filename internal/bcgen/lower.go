package bcgen

import (
	"upp/internal/bytecode"
	"upp/internal/ir"
	"upp/internal/types"
)

func (l *lowerer) scratchRaw(size, align int32) int32 {
	if align <= 0 {
		align = 1
	}
	l.scratchAt = int32(alignUp(int(l.scratchAt), int(align)))
	off := l.scratchAt
	l.scratchAt += size
	return off
}

// materializeIndexI64 resolves idx to an offset holding its value
// widened to 8 bytes, so callers can compare/multiply it against a
// container length or element size without worrying that idx's source
// type (commonly i32) is narrower than those are always computed in.
func (l *lowerer) materializeIndexI64(idx *ir.Access) int32 {
	off := l.materializeValue(idx)
	if idx.Type != nil && idx.Type.Size() == 8 {
		return off
	}
	scratch := l.scratchRaw(8, 8)
	l.emit(bytecode.Instruction{
		Kind: bytecode.OpCastIntToInt, Op1: scratch, Op2: off,
		Op3: int32(bcType(idx.Type)), Op4: int32(bytecode.TypeI64),
	})
	return scratch
}

// lowerArrayToSlice builds a {data, length} slice value from an array
// access. Unlike every other cast (a same-width bit reinterpretation
// of one materialized value), this one needs the array's own address
// as the slice's data pointer and its element count from the source
// type, neither of which the generic Op3/Op4 type-tag operands carry,
// so it gets its own lowering instead of going through castOpcode's
// int-to-int fallback.
func (l *lowerer) lowerArrayToSlice(ins *ir.Instruction) {
	addr := l.materializeAddress(ins.Src)
	scratch := l.scratch(ins.Dst.Type)
	l.emit(bytecode.Instruction{Kind: bytecode.OpCastArrayToSlice, Op1: scratch, Op2: addr, Op3: int32(ins.Src.Type.ArrayCount)})
	l.store(ins.Dst, scratch, int32(ins.Dst.Type.Size()))
}

func (l *lowerer) emitLabel(name string) {
	idx := l.emit(bytecode.Instruction{Kind: bytecode.OpLabel})
	l.patcher.RecordLabel(name, idx)
}

func bcType(t *types.Type) bytecode.Type {
	switch t.Kind {
	case types.Int8:
		return bytecode.TypeI8
	case types.Int16:
		return bytecode.TypeI16
	case types.Int32:
		return bytecode.TypeI32
	case types.Int64:
		return bytecode.TypeI64
	case types.Uint8:
		return bytecode.TypeU8
	case types.Uint16:
		return bytecode.TypeU16
	case types.Uint32:
		return bytecode.TypeU32
	case types.Uint64:
		return bytecode.TypeU64
	case types.Float32:
		return bytecode.TypeF32
	case types.Float64:
		return bytecode.TypeF64
	case types.Bool:
		return bytecode.TypeBool
	default:
		return bytecode.TypeAddress
	}
}

func binOpcode(op ir.BinaryOp) bytecode.Kind {
	switch op {
	case ir.BinAdd:
		return bytecode.OpBinaryAdd
	case ir.BinSub:
		return bytecode.OpBinarySub
	case ir.BinMul:
		return bytecode.OpBinaryMul
	case ir.BinDiv:
		return bytecode.OpBinaryDiv
	case ir.BinMod:
		return bytecode.OpBinaryMod
	case ir.BinEq:
		return bytecode.OpBinaryEq
	case ir.BinNe:
		return bytecode.OpBinaryNe
	case ir.BinLt:
		return bytecode.OpBinaryLt
	case ir.BinGt:
		return bytecode.OpBinaryGt
	case ir.BinLe:
		return bytecode.OpBinaryLe
	case ir.BinGe:
		return bytecode.OpBinaryGe
	case ir.BinAnd:
		return bytecode.OpBinaryAnd
	case ir.BinOr:
		return bytecode.OpBinaryOr
	case ir.BinBitAnd:
		return bytecode.OpBinaryBitAnd
	case ir.BinBitOr:
		return bytecode.OpBinaryBitOr
	case ir.BinBitXor:
		return bytecode.OpBinaryBitXor
	case ir.BinShl:
		return bytecode.OpBinaryShl
	case ir.BinShr:
		return bytecode.OpBinaryShr
	default:
		panic("bcgen: unhandled BinaryOp")
	}
}

func unOpcode(op ir.UnaryOp) bytecode.Kind {
	switch op {
	case ir.UnNeg:
		return bytecode.OpUnaryNegate
	case ir.UnNot:
		return bytecode.OpUnaryNot
	case ir.UnBitNot:
		return bytecode.OpUnaryBitNot
	default:
		panic("bcgen: unhandled UnaryOp")
	}
}

func castOpcode(k ir.CastKind) bytecode.Kind {
	switch k {
	case ir.CastFloatWidth:
		return bytecode.OpCastFloatToFloat
	case ir.CastFloatToInt:
		return bytecode.OpCastFloatToInt
	case ir.CastIntToFloat:
		return bytecode.OpCastIntToFloat
	case ir.CastArrayToSlice:
		return bytecode.OpCastArrayToSlice
	default:
		// every remaining cast variant (widen/narrow/signed-unsigned,
		// enum<->int, pointer<->pointer, pointer<->address, subtype
		// up/downcast, value<->any, value->optional) moves a
		// reinterpreted bit pattern of known width, so they all share
		// the int<->int lowering; the analyser has already validated
		// the conversion is legal and inserted any runtime tag-check
		// as a separate hardcoded call where one is required.
		return bytecode.OpCastIntToInt
	}
}

// materializeAddress resolves a to an offset in the current frame
// holding a computed ADDRESS (a pointer value), recursively applying
// the projection algebra.
func (l *lowerer) materializeAddress(a *ir.Access) int32 {
	switch a.Kind {
	case ir.AccessRegister:
		off := l.regOffset[a.Block][a.RegIdx]
		scratch := l.scratchRaw(8, 8)
		l.emit(bytecode.Instruction{Kind: bytecode.OpLoadRegisterAddress, Op1: scratch, Op2: off})
		return scratch
	case ir.AccessParameter:
		off := int32(l.frame.ParamOffsets[a.ParamIdx])
		scratch := l.scratchRaw(8, 8)
		l.emit(bytecode.Instruction{Kind: bytecode.OpLoadRegisterAddress, Op1: scratch, Op2: off})
		return scratch
	case ir.AccessGlobal:
		scratch := l.scratchRaw(8, 8)
		l.emit(bytecode.Instruction{Kind: bytecode.OpLoadGlobalAddress, Op1: scratch, Op2: int32(a.Global)})
		return scratch
	case ir.AccessConstant:
		scratch := l.scratchRaw(8, 8)
		l.emit(bytecode.Instruction{Kind: bytecode.OpLoadConstantAddress, Op1: scratch, Op2: int32(a.Constant)})
		return scratch
	case ir.AccessDereference:
		return l.materializeValue(a.Inner)
	case ir.AccessAddressOf:
		return l.materializeAddress(a.Inner)
	case ir.AccessMember:
		base := l.materializeAddress(a.Inner)
		scratch := l.scratchRaw(8, 8)
		memberOffset := l.memberOffset(a.Inner.Type, a.MemberIdx)
		l.emit(bytecode.Instruction{Kind: bytecode.OpComputeMemberAddress, Op1: scratch, Op2: base, Op3: int32(memberOffset)})
		return scratch
	case ir.AccessArrayElement:
		base := l.materializeAddress(a.Inner)
		idxOff := l.materializeIndexI64(a.Index)
		l.emitBoundsCheck(a, idxOff)
		scratch := l.scratchRaw(8, 8)
		l.emit(bytecode.Instruction{Kind: bytecode.OpComputeElementAddress, Op1: scratch, Op2: base, Op3: idxOff, Op4: int32(a.Type.Size())})
		return scratch
	default:
		panic("bcgen: materializeAddress on a non-lvalue access")
	}
}

// memberOffset resolves AccessMember's byte offset. A struct looks its
// offset up from the layout Registry.FinishStruct computed; a slice
// has no registered member layout (types.Registry.Slice exposes no
// named members for its implicit {data, length} pair), so its two
// positions are addressed directly by index: 0 for the data pointer,
// 1 for the i64 length, both at their fixed 8-byte-aligned offsets.
func (l *lowerer) memberOffset(container *types.Type, idx int) int {
	if container.Kind == types.Slice {
		return idx * 8
	}
	return container.MemberOffset(idx)
}

// emitBoundsCheck guards an array-element access with a runtime
// OpBoundsCheck before the address is computed. A fixed-size array's
// length is known at lowering time; a slice's length is read from its
// runtime value (assumed laid out as {data address, length i64} at
// byte offsets 0 and 8, since types.Registry exposes no named member
// for a slice's implicit fields). Indexing through a bare pointer
// carries no length at all and is left unchecked, matching a pointer's
// unchecked-arithmetic semantics.
func (l *lowerer) emitBoundsCheck(a *ir.Access, idxOff int32) {
	container := a.Inner.Type
	switch container.Kind {
	case types.Array:
		if container.ArrayCount < 0 {
			return
		}
		lenOff := l.scratchRaw(8, 8)
		l.emit(bytecode.Instruction{Kind: bytecode.OpLoadImmediate, Op1: lenOff, Op2: int32(container.ArrayCount), Op3: 8})
		l.emit(bytecode.Instruction{Kind: bytecode.OpBoundsCheck, Op1: idxOff, Op2: lenOff})
	case types.Slice:
		base := l.materializeAddress(a.Inner)
		lenAddr := l.scratchRaw(8, 8)
		l.emit(bytecode.Instruction{Kind: bytecode.OpComputeMemberAddress, Op1: lenAddr, Op2: base, Op3: 8})
		lenOff := l.scratchRaw(8, 8)
		l.emit(bytecode.Instruction{Kind: bytecode.OpReadMemory, Op1: lenOff, Op2: lenAddr, Op3: 8})
		l.emit(bytecode.Instruction{Kind: bytecode.OpBoundsCheck, Op1: idxOff, Op2: lenOff})
	}
}

// materializeValue resolves a to an offset in the current frame
// holding its plain value, of a.Type.Size() bytes.
func (l *lowerer) materializeValue(a *ir.Access) int32 {
	switch a.Kind {
	case ir.AccessRegister:
		return l.regOffset[a.Block][a.RegIdx]
	case ir.AccessParameter:
		return int32(l.frame.ParamOffsets[a.ParamIdx])
	case ir.AccessConstant:
		scratch := l.scratch(a.Type)
		l.emit(bytecode.Instruction{Kind: bytecode.OpLoadConstant, Op1: scratch, Op2: int32(a.Constant), Op3: int32(a.Type.Size())})
		return scratch
	case ir.AccessGlobal:
		scratch := l.scratch(a.Type)
		l.emit(bytecode.Instruction{Kind: bytecode.OpReadGlobal, Op1: scratch, Op2: int32(a.Global), Op3: int32(a.Type.Size())})
		return scratch
	case ir.AccessDereference:
		ptr := l.materializeValue(a.Inner)
		scratch := l.scratch(a.Type)
		l.emit(bytecode.Instruction{Kind: bytecode.OpReadMemory, Op1: scratch, Op2: ptr, Op3: int32(a.Type.Size())})
		return scratch
	case ir.AccessMember, ir.AccessArrayElement:
		addr := l.materializeAddress(a)
		scratch := l.scratch(a.Type)
		l.emit(bytecode.Instruction{Kind: bytecode.OpReadMemory, Op1: scratch, Op2: addr, Op3: int32(a.Type.Size())})
		return scratch
	case ir.AccessAddressOf:
		return l.materializeAddress(a.Inner)
	default:
		panic("bcgen: materializeValue on an unrecognised access kind")
	}
}

// store writes the size bytes at srcOffset into dst's location.
func (l *lowerer) store(dst *ir.Access, srcOffset int32, size int32) {
	switch dst.Kind {
	case ir.AccessRegister:
		dstOff := l.regOffset[dst.Block][dst.RegIdx]
		l.emit(bytecode.Instruction{Kind: bytecode.OpMoveStackToStack, Op1: dstOff, Op2: srcOffset, Op3: size})
	case ir.AccessParameter:
		dstOff := int32(l.frame.ParamOffsets[dst.ParamIdx])
		l.emit(bytecode.Instruction{Kind: bytecode.OpMoveStackToStack, Op1: dstOff, Op2: srcOffset, Op3: size})
	case ir.AccessGlobal:
		l.emit(bytecode.Instruction{Kind: bytecode.OpWriteGlobal, Op1: int32(dst.Global), Op2: srcOffset, Op3: size})
	case ir.AccessDereference:
		ptr := l.materializeValue(dst.Inner)
		l.emit(bytecode.Instruction{Kind: bytecode.OpWriteMemory, Op1: ptr, Op2: srcOffset, Op3: size})
	case ir.AccessMember, ir.AccessArrayElement:
		addr := l.materializeAddress(dst)
		l.emit(bytecode.Instruction{Kind: bytecode.OpWriteMemory, Op1: addr, Op2: srcOffset, Op3: size})
	default:
		panic("bcgen: store into a non-lvalue access")
	}
}

func (l *lowerer) lowerBlock(b *ir.Block) {
	for i := range b.Instructions {
		l.lowerInstruction(&b.Instructions[i])
	}
}

func (l *lowerer) lowerInstruction(ins *ir.Instruction) {
	switch ins.Kind {
	case ir.InstrMove:
		src := l.materializeValue(ins.Src)
		l.store(ins.Dst, src, int32(ins.Dst.Type.Size()))

	case ir.InstrCast:
		if ins.Cast == ir.CastArrayToSlice {
			l.lowerArrayToSlice(ins)
			break
		}
		src := l.materializeValue(ins.Src)
		scratch := l.scratch(ins.Dst.Type)
		l.emit(bytecode.Instruction{
			Kind: castOpcode(ins.Cast), Op1: scratch, Op2: src,
			Op3: int32(bcType(ins.Src.Type)), Op4: int32(bcType(ins.Dst.Type)),
		})
		l.store(ins.Dst, scratch, int32(ins.Dst.Type.Size()))

	case ir.InstrFunctionAddress:
		scratch := l.scratch(ins.Dst.Type)
		idx := l.emit(bytecode.Instruction{Kind: bytecode.OpLoadFunctionAddress, Op1: scratch})
		l.patcher.Defer(bytecode.PatchFunctionAddress, idx, 2, ins.Function.Name)
		l.store(ins.Dst, scratch, 8)

	case ir.InstrBinary:
		lhs := l.materializeValue(ins.Lhs)
		rhs := l.materializeValue(ins.Rhs)
		scratch := l.scratch(ins.Dst.Type)
		l.emit(bytecode.Instruction{Kind: binOpcode(ins.BinOp), Op1: scratch, Op2: lhs, Op3: rhs, Op4: int32(bcType(ins.Lhs.Type))})
		l.store(ins.Dst, scratch, int32(ins.Dst.Type.Size()))

	case ir.InstrUnary:
		src := l.materializeValue(ins.Src)
		scratch := l.scratch(ins.Dst.Type)
		l.emit(bytecode.Instruction{Kind: unOpcode(ins.UnOp), Op1: scratch, Op2: src, Op4: int32(bcType(ins.Src.Type))})
		l.store(ins.Dst, scratch, int32(ins.Dst.Type.Size()))

	case ir.InstrIf:
		elseLabel := l.newLabel("else")
		endLabel := l.newLabel("endif")
		cond := l.materializeValue(ins.Cond)
		jf := l.emit(bytecode.Instruction{Kind: bytecode.OpJumpIfFalse, Op1: cond})
		l.patcher.Defer(bytecode.PatchJumpTarget, jf, 2, elseLabel)
		l.lowerBlock(ins.Then)
		j := l.emit(bytecode.Instruction{Kind: bytecode.OpJump})
		l.patcher.Defer(bytecode.PatchJumpTarget, j, 1, endLabel)
		l.emitLabel(elseLabel)
		if ins.Else != nil {
			l.lowerBlock(ins.Else)
		}
		l.emitLabel(endLabel)

	case ir.InstrWhile:
		// ir generation labels CondBlock/Body with the continue/break
		// goto targets a nested break/continue lowers to; fall back to a
		// fresh label when a loop has none (no break/continue inside it).
		contLabel := ins.CondBlock.Label
		if contLabel == "" {
			contLabel = l.newLabel("while_cond")
		}
		endLabel := ins.Body.Label
		if endLabel == "" {
			endLabel = l.newLabel("while_end")
		}
		l.emitLabel(contLabel)
		l.lowerBlock(ins.CondBlock)
		cond := l.materializeValue(ins.Cond)
		jf := l.emit(bytecode.Instruction{Kind: bytecode.OpJumpIfFalse, Op1: cond})
		l.patcher.Defer(bytecode.PatchJumpTarget, jf, 2, endLabel)
		l.lowerBlock(ins.Body)
		j := l.emit(bytecode.Instruction{Kind: bytecode.OpJump})
		l.patcher.Defer(bytecode.PatchJumpTarget, j, 1, contLabel)
		l.emitLabel(endLabel)

	case ir.InstrSwitch:
		l.lowerSwitch(ins)

	case ir.InstrBlock:
		l.lowerBlock(ins.Nested)

	case ir.InstrLabel:
		l.emitLabel(ins.LabelName)

	case ir.InstrGoto:
		j := l.emit(bytecode.Instruction{Kind: bytecode.OpJump})
		l.patcher.Defer(bytecode.PatchJumpTarget, j, 1, ins.LabelName)

	case ir.InstrReturn:
		switch {
		case ins.ExitCode != nil:
			code := l.materializeValue(ins.ExitCode)
			l.emit(bytecode.Instruction{Kind: bytecode.OpExit, Op1: code, Op2: bytecode.ExitUser})
		case ins.ReturnValue != nil:
			val := l.materializeValue(ins.ReturnValue)
			l.emit(bytecode.Instruction{Kind: bytecode.OpLoadReturnValue, Op1: val, Op2: int32(ins.ReturnValue.Type.Size())})
			l.emit(bytecode.Instruction{Kind: bytecode.OpReturn})
		default:
			l.emit(bytecode.Instruction{Kind: bytecode.OpReturn})
		}

	case ir.InstrCall:
		l.lowerCall(ins)

	case ir.InstrVariableDefinition:
		// debug-only bookkeeping; no bytecode is emitted for it.
	}
}

// stageArgs lays args out contiguously per paramTypes' greedy frame
// layout (callers write arguments into a fresh high-water-mark region
// aligned per parameter) and copies each
// argument's current value into that staging region, returning its
// base offset and total size.
func (l *lowerer) stageArgs(args []*ir.Access, paramTypes []*types.Type) (base int32, size int32) {
	aligners := make([]bytecode.SizeAligner, len(paramTypes))
	for i, t := range paramTypes {
		aligners[i] = alignerType{t}
	}
	layout := bytecode.LayoutFrame(aligners, nil)
	base = l.scratchRaw(int32(layout.ParamSize), 8)
	for i, a := range args {
		src := l.materializeValue(a)
		dst := base + int32(layout.ParamOffsets[i])
		l.emit(bytecode.Instruction{Kind: bytecode.OpMoveStackToStack, Op1: dst, Op2: src, Op3: int32(a.Type.Size())})
	}
	return base, int32(layout.ParamSize)
}

func (l *lowerer) lowerCall(ins *ir.Instruction) {
	var resultDst int32 = -1
	switch ins.CallKind {
	case ir.CallNormal:
		base, size := l.stageArgs(ins.Args, ins.Callee.Params)
		if ins.ResultDst != nil {
			resultDst = l.scratch(ins.ResultDst.Type)
		}
		idx := l.emit(bytecode.Instruction{Kind: bytecode.OpCallFunction, Op2: base, Op3: size, Op4: resultDst})
		l.patcher.Defer(bytecode.PatchCallTarget, idx, 1, ins.Callee.Name)

	case ir.CallIndirect:
		paramTypes := ins.CalleeAddr.Type.Params
		base, size := l.stageArgs(ins.Args, paramTypes)
		addr := l.materializeValue(ins.CalleeAddr)
		if ins.ResultDst != nil {
			resultDst = l.scratch(ins.ResultDst.Type)
		}
		l.emit(bytecode.Instruction{Kind: bytecode.OpCallFunctionPointer, Op1: addr, Op2: base, Op3: size, Op4: resultDst})

	case ir.CallHardcoded:
		argTypes := make([]*types.Type, len(ins.Args))
		for i, a := range ins.Args {
			argTypes[i] = a.Type
		}
		base, size := l.stageArgs(ins.Args, argTypes)
		if ins.ResultDst != nil {
			resultDst = l.scratch(ins.ResultDst.Type)
		}
		code := bytecode.HardcodedCodeByName(ins.Hardcoded)
		l.emit(bytecode.Instruction{Kind: bytecode.OpCallHardcoded, Op1: int32(code), Op2: base, Op3: size, Op4: resultDst})
	}
	if ins.ResultDst != nil {
		l.store(ins.ResultDst, resultDst, int32(ins.ResultDst.Type.Size()))
	}
}

func (l *lowerer) lowerSwitch(ins *ir.Instruction) {
	endLabel := l.newLabel("switch_end")
	defaultLabel := l.newLabel("switch_default")
	subject := l.materializeValue(ins.Subject)

	bodyLabels := make([]string, len(ins.Cases))
	for ci, c := range ins.Cases {
		bodyLabels[ci] = l.newLabel("case")
		for _, v := range c.Values {
			val := l.materializeValue(v)
			eq := l.scratchRaw(1, 1)
			l.emit(bytecode.Instruction{Kind: bytecode.OpBinaryEq, Op1: eq, Op2: subject, Op3: val, Op4: int32(bcType(ins.Subject.Type))})
			skip := l.newLabel("case_skip")
			jf := l.emit(bytecode.Instruction{Kind: bytecode.OpJumpIfFalse, Op1: eq})
			l.patcher.Defer(bytecode.PatchJumpTarget, jf, 2, skip)
			j := l.emit(bytecode.Instruction{Kind: bytecode.OpJump})
			l.patcher.Defer(bytecode.PatchJumpTarget, j, 1, bodyLabels[ci])
			l.emitLabel(skip)
		}
	}
	j := l.emit(bytecode.Instruction{Kind: bytecode.OpJump})
	l.patcher.Defer(bytecode.PatchJumpTarget, j, 1, defaultLabel)

	for ci, c := range ins.Cases {
		l.emitLabel(bodyLabels[ci])
		l.lowerBlock(c.Body)
		j := l.emit(bytecode.Instruction{Kind: bytecode.OpJump})
		l.patcher.Defer(bytecode.PatchJumpTarget, j, 1, endLabel)
	}

	l.emitLabel(defaultLabel)
	if ins.DefaultCase != nil {
		l.lowerBlock(ins.DefaultCase)
	} else {
		code := l.scratchRaw(4, 4)
		l.emit(bytecode.Instruction{Kind: bytecode.OpLoadImmediate, Op1: code, Op2: int32(bytecode.TrapInvalidSwitchCase), Op3: 4})
		l.emit(bytecode.Instruction{Kind: bytecode.OpExit, Op1: code, Op2: bytecode.ExitTrap})
	}
	l.emitLabel(endLabel)
}
