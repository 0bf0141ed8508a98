package interp

import (
	"encoding/binary"
	"math"

	"upp/internal/bytecode"
)

// exec runs one already-fetched instruction. It returns (exit, true)
// when the instruction ends the run (OpExit, or an OpReturn that pops
// the last frame); otherwise it returns (Exit{}, false) and the caller
// keeps looping.
func (m *Machine) exec(ins bytecode.Instruction) (Exit, bool) {
	switch ins.Kind {
	case bytecode.OpMoveStackToStack:
		m.move(ins.Op1, ins.Op2, ins.Op3)

	case bytecode.OpLoadConstant:
		off := m.prog.ConstantOffsets[ins.Op2]
		data := m.prog.ConstantBytes[off : off+int(ins.Op3)]
		m.writeFrame(ins.Op1, data)

	case bytecode.OpLoadImmediate:
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], uint64(int64(ins.Op2)))
		width := ins.Op3
		if width == 0 {
			width = 4
		}
		m.writeFrame(ins.Op1, b[:width])

	case bytecode.OpReadMemory:
		addr := m.readAddrAt(ins.Op2)
		m.writeFrame(ins.Op1, m.readBytes(addr, int(ins.Op3)))

	case bytecode.OpWriteMemory:
		addr := m.readAddrAt(ins.Op1)
		m.writeBytes(addr, m.readFrame(ins.Op2, int(ins.Op3)))

	case bytecode.OpReadGlobal:
		goff := m.prog.GlobalOffsets[ins.Op2]
		m.writeFrame(ins.Op1, m.globals[goff:goff+int(ins.Op3)])

	case bytecode.OpWriteGlobal:
		goff := m.prog.GlobalOffsets[ins.Op1]
		copy(m.globals[goff:goff+int(ins.Op3)], m.readFrame(ins.Op2, int(ins.Op3)))

	case bytecode.OpLoadRegisterAddress:
		m.writeAddrAt(ins.Op1, m.frameAddr(ins.Op2))

	case bytecode.OpLoadGlobalAddress:
		m.writeAddrAt(ins.Op1, globalBase+int64(m.prog.GlobalOffsets[ins.Op2]))

	case bytecode.OpLoadConstantAddress:
		m.writeAddrAt(ins.Op1, constBase+int64(m.prog.ConstantOffsets[ins.Op2]))

	case bytecode.OpLoadFunctionAddress:
		// Op2 is patched to the callee's absolute EntryIndex; stored
		// as a value, not an address region, since a function pointer
		// is an instruction index, never dereferenced through memory.
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], uint64(ins.Op2))
		m.writeFrame(ins.Op1, b[:])

	case bytecode.OpComputeMemberAddress:
		base := m.readAddrAt(ins.Op2)
		m.writeAddrAt(ins.Op1, base+int64(ins.Op3))

	case bytecode.OpComputeElementAddress:
		base := m.readAddrAt(ins.Op2)
		idx := int64(binary.LittleEndian.Uint64(m.readFrame(ins.Op3, 8)))
		m.writeAddrAt(ins.Op1, base+idx*int64(ins.Op4))

	case bytecode.OpBinaryAdd, bytecode.OpBinarySub, bytecode.OpBinaryMul,
		bytecode.OpBinaryDiv, bytecode.OpBinaryMod, bytecode.OpBinaryEq,
		bytecode.OpBinaryNe, bytecode.OpBinaryLt, bytecode.OpBinaryGt,
		bytecode.OpBinaryLe, bytecode.OpBinaryGe, bytecode.OpBinaryAnd,
		bytecode.OpBinaryOr, bytecode.OpBinaryBitAnd, bytecode.OpBinaryBitOr,
		bytecode.OpBinaryBitXor, bytecode.OpBinaryShl, bytecode.OpBinaryShr:
		m.execBinary(ins)

	case bytecode.OpUnaryNegate, bytecode.OpUnaryNot, bytecode.OpUnaryBitNot:
		m.execUnary(ins)

	case bytecode.OpCastIntToInt, bytecode.OpCastFloatToFloat,
		bytecode.OpCastIntToFloat, bytecode.OpCastFloatToInt:
		m.execCast(ins)

	case bytecode.OpCastArrayToSlice:
		addr := m.readAddrAt(ins.Op2)
		var buf [16]byte
		binary.LittleEndian.PutUint64(buf[0:8], uint64(addr))
		binary.LittleEndian.PutUint64(buf[8:16], uint64(ins.Op3))
		m.writeFrame(ins.Op1, buf[:])

	case bytecode.OpJump:
		m.ip = int(ins.Op1)

	case bytecode.OpJumpIfFalse:
		if m.readFrame(ins.Op1, 1)[0] == 0 {
			m.ip = int(ins.Op2)
		}

	case bytecode.OpLabel:
		// no-op marker, only meaningful to the patch pass

	case bytecode.OpCallFunction:
		fn := m.functionAtEntry(int(ins.Op1))
		if fn == nil {
			m.fault("interp: call to unresolved function at instruction %d", ins.Op1)
		}
		m.call(fn, ins.Op2, ins.Op3, ins.Op4)

	case bytecode.OpCallFunctionPointer:
		target := int64(binary.LittleEndian.Uint64(m.readFrame(ins.Op1, 8)))
		fn := m.functionAtEntry(int(target))
		if fn == nil {
			m.fault("call through invalid function pointer")
		}
		m.call(fn, ins.Op2, ins.Op3, ins.Op4)

	case bytecode.OpCallHardcoded:
		m.callHardcoded(bytecode.HardcodedCode(ins.Op1), ins.Op2, ins.Op3, ins.Op4)

	case bytecode.OpReturn:
		if exit, done := m.doReturn(); done {
			return exit, true
		}

	case bytecode.OpLoadReturnValue:
		f := m.curFrame()
		f.pendingReturn = append([]byte(nil), m.readFrame(ins.Op1, int(ins.Op2))...)

	case bytecode.OpBoundsCheck:
		idx := int64(binary.LittleEndian.Uint64(m.readFrame(ins.Op1, 8)))
		length := int64(binary.LittleEndian.Uint64(m.readFrame(ins.Op2, 8)))
		if idx < 0 || idx >= length {
			m.fault("Array out of bounds access")
		}

	case bytecode.OpExit:
		return m.execExit(ins), true

	default:
		m.fault("interp: unimplemented opcode %d", ins.Kind)
	}
	return Exit{}, false
}

// execExit reads a 4-byte int32 from the frame at ins.Op1: either a
// TrapCode (Op2 == ExitTrap) or a real source-level exit code.
func (m *Machine) execExit(ins bytecode.Instruction) Exit {
	code := int32(binary.LittleEndian.Uint32(m.readFrame(ins.Op1, 4)))
	switch ins.Op2 {
	case bytecode.ExitTrap:
		switch bytecode.TrapCode(code) {
		case bytecode.TrapInvalidSwitchCase:
			return Exit{Kind: ExitExecutionError, Message: "invalid switch case"}
		case bytecode.TrapBoundsCheck:
			return Exit{Kind: ExitExecutionError, Message: "Array out of bounds access"}
		case bytecode.TrapAssertFailed:
			return Exit{Kind: ExitExecutionError, Message: "Assertion failed"}
		default:
			return Exit{Kind: ExitExecutionError, Message: "unknown trap"}
		}
	default:
		return Exit{Kind: ExitCodeError, Code: code}
	}
}

func (m *Machine) functionAtEntry(entryIndex int) *bytecode.Function {
	for _, fn := range m.prog.Functions {
		if fn.EntryIndex == entryIndex {
			return fn
		}
	}
	return nil
}

// call pushes a new frame for fn directly atop the caller's current
// high-water mark. argsBase/argsSize name the region, already staged
// by the caller inside its own frame, that becomes the callee's
// parameter block; resultDst (-1 if the call's result is discarded)
// is an offset back in the CALLER's frame that OpReturn copies the
// callee's return value into once the callee's frame is gone.
func (m *Machine) call(fn *bytecode.Function, argsBase, argsSize, resultDst int32) {
	caller := m.curFrame()
	calleeBase := caller.base + int64(argsBase)
	m.ensureStack(int(argsBase) + fn.Layout.FrameSize)
	// Parameters already live at calleeBase relative offset 0 because
	// the caller staged them into its own outgoing-args scratch region
	// at exactly that address; nothing to copy.
	_ = argsSize
	m.pushFrame(frame{
		base:          calleeBase,
		returnIP:      m.ip,
		callerBase:    caller.base,
		resultDstAddr: caller.base + int64(resultDst),
		hasResultDst:  resultDst >= 0,
	})
	m.ip = fn.EntryIndex
}

// doReturn pops the current frame, copying any pending return bytes
// into the caller's expected slot, and resumes the caller. Returning
// from the outermost frame ends the run successfully.
func (m *Machine) doReturn() (Exit, bool) {
	f := m.popFrame()
	if m.frameCount == 0 {
		m.entryResult = f.pendingReturn
		return Exit{Kind: ExitSuccess}, true
	}
	if f.hasResultDst && len(f.pendingReturn) > 0 {
		m.writeBytes(f.resultDstAddr, f.pendingReturn)
	}
	m.ip = f.returnIP
	return Exit{}, false
}

func readF32(b []byte) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(b)) }
func readF64(b []byte) float64 { return math.Float64frombits(binary.LittleEndian.Uint64(b)) }
func writeF32(v float32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], math.Float32bits(v))
	return b[:]
}
func writeF64(v float64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
	return b[:]
}
