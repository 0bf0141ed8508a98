package interp

import (
	"encoding/binary"

	"upp/internal/bytecode"
)

// execBinary and execUnary both read their operand type from Op4 -
// lhs/rhs already agree on it, sema having rejected anything else -
// and compute the result at that same width, EXCEPT the comparison
// and logical family, which always produce a 1-byte bool regardless
// of how wide the operands were.
func isComparisonOrLogical(k bytecode.Kind) bool {
	switch k {
	case bytecode.OpBinaryEq, bytecode.OpBinaryNe, bytecode.OpBinaryLt,
		bytecode.OpBinaryGt, bytecode.OpBinaryLe, bytecode.OpBinaryGe,
		bytecode.OpBinaryAnd, bytecode.OpBinaryOr:
		return true
	default:
		return false
	}
}

func (m *Machine) execBinary(ins bytecode.Instruction) {
	typ := bytecode.Type(ins.Op4)
	lhsBytes := m.readFrame(ins.Op2, typ.Size())
	rhsBytes := m.readFrame(ins.Op3, typ.Size())

	if typ == bytecode.TypeF32 || typ == bytecode.TypeF64 {
		m.execBinaryFloat(ins, typ, lhsBytes, rhsBytes)
		return
	}

	lhs := decodeInt(typ, lhsBytes)
	rhs := decodeInt(typ, rhsBytes)
	unsigned := isUnsignedType(typ)

	var resultBool bool
	var resultVal int64
	switch ins.Kind {
	case bytecode.OpBinaryAdd:
		resultVal = lhs + rhs
	case bytecode.OpBinarySub:
		resultVal = lhs - rhs
	case bytecode.OpBinaryMul:
		resultVal = lhs * rhs
	case bytecode.OpBinaryDiv:
		if rhs == 0 {
			m.fault("division by zero")
		}
		if unsigned {
			resultVal = int64(uint64(lhs) / uint64(rhs))
		} else {
			resultVal = lhs / rhs
		}
	case bytecode.OpBinaryMod:
		if rhs == 0 {
			m.fault("division by zero")
		}
		if unsigned {
			resultVal = int64(uint64(lhs) % uint64(rhs))
		} else {
			resultVal = lhs % rhs
		}
	case bytecode.OpBinaryBitAnd:
		resultVal = lhs & rhs
	case bytecode.OpBinaryBitOr:
		resultVal = lhs | rhs
	case bytecode.OpBinaryBitXor:
		resultVal = lhs ^ rhs
	case bytecode.OpBinaryShl:
		resultVal = lhs << uint64(rhs)
	case bytecode.OpBinaryShr:
		if unsigned {
			resultVal = int64(uint64(lhs) >> uint64(rhs))
		} else {
			resultVal = lhs >> uint64(rhs)
		}
	case bytecode.OpBinaryEq:
		resultBool = lhs == rhs
	case bytecode.OpBinaryNe:
		resultBool = lhs != rhs
	case bytecode.OpBinaryLt:
		if unsigned {
			resultBool = uint64(lhs) < uint64(rhs)
		} else {
			resultBool = lhs < rhs
		}
	case bytecode.OpBinaryGt:
		if unsigned {
			resultBool = uint64(lhs) > uint64(rhs)
		} else {
			resultBool = lhs > rhs
		}
	case bytecode.OpBinaryLe:
		if unsigned {
			resultBool = uint64(lhs) <= uint64(rhs)
		} else {
			resultBool = lhs <= rhs
		}
	case bytecode.OpBinaryGe:
		if unsigned {
			resultBool = uint64(lhs) >= uint64(rhs)
		} else {
			resultBool = lhs >= rhs
		}
	case bytecode.OpBinaryAnd:
		resultBool = lhs != 0 && rhs != 0
	case bytecode.OpBinaryOr:
		resultBool = lhs != 0 || rhs != 0
	default:
		m.fault("interp: unhandled binary opcode %d", ins.Kind)
	}

	if isComparisonOrLogical(ins.Kind) {
		m.writeFrame(ins.Op1, boolByte(resultBool))
		return
	}
	m.writeFrame(ins.Op1, encodeInt(typ, resultVal))
}

func (m *Machine) execBinaryFloat(ins bytecode.Instruction, typ bytecode.Type, lhsBytes, rhsBytes []byte) {
	lhs := decodeFloat(typ, lhsBytes)
	rhs := decodeFloat(typ, rhsBytes)

	var resultBool bool
	var resultVal float64
	switch ins.Kind {
	case bytecode.OpBinaryAdd:
		resultVal = lhs + rhs
	case bytecode.OpBinarySub:
		resultVal = lhs - rhs
	case bytecode.OpBinaryMul:
		resultVal = lhs * rhs
	case bytecode.OpBinaryDiv:
		resultVal = lhs / rhs
	case bytecode.OpBinaryEq:
		resultBool = lhs == rhs
	case bytecode.OpBinaryNe:
		resultBool = lhs != rhs
	case bytecode.OpBinaryLt:
		resultBool = lhs < rhs
	case bytecode.OpBinaryGt:
		resultBool = lhs > rhs
	case bytecode.OpBinaryLe:
		resultBool = lhs <= rhs
	case bytecode.OpBinaryGe:
		resultBool = lhs >= rhs
	default:
		m.fault("interp: unhandled float binary opcode %d", ins.Kind)
	}

	if isComparisonOrLogical(ins.Kind) {
		m.writeFrame(ins.Op1, boolByte(resultBool))
		return
	}
	m.writeFrame(ins.Op1, encodeFloat(typ, resultVal))
}

func (m *Machine) execUnary(ins bytecode.Instruction) {
	typ := bytecode.Type(ins.Op4)
	src := m.readFrame(ins.Op2, typ.Size())

	if ins.Kind == bytecode.OpUnaryNot {
		m.writeFrame(ins.Op1, boolByte(src[0] == 0))
		return
	}
	if typ == bytecode.TypeF32 || typ == bytecode.TypeF64 {
		v := decodeFloat(typ, src)
		m.writeFrame(ins.Op1, encodeFloat(typ, -v))
		return
	}
	v := decodeInt(typ, src)
	switch ins.Kind {
	case bytecode.OpUnaryNegate:
		m.writeFrame(ins.Op1, encodeInt(typ, -v))
	case bytecode.OpUnaryBitNot:
		m.writeFrame(ins.Op1, encodeInt(typ, ^v))
	default:
		m.fault("interp: unhandled unary opcode %d", ins.Kind)
	}
}

func (m *Machine) execCast(ins bytecode.Instruction) {
	srcType := bytecode.Type(ins.Op3)
	dstType := bytecode.Type(ins.Op4)
	src := m.readFrame(ins.Op2, srcType.Size())

	switch ins.Kind {
	case bytecode.OpCastIntToInt:
		v := decodeInt(srcType, src)
		m.writeFrame(ins.Op1, encodeInt(dstType, v))
	case bytecode.OpCastFloatToFloat:
		v := decodeFloat(srcType, src)
		m.writeFrame(ins.Op1, encodeFloat(dstType, v))
	case bytecode.OpCastIntToFloat:
		v := decodeInt(srcType, src)
		var f float64
		if isUnsignedType(srcType) {
			f = float64(uint64(v))
		} else {
			f = float64(v)
		}
		m.writeFrame(ins.Op1, encodeFloat(dstType, f))
	case bytecode.OpCastFloatToInt:
		f := decodeFloat(srcType, src)
		m.writeFrame(ins.Op1, encodeInt(dstType, int64(f)))
	default:
		m.fault("interp: unhandled cast opcode %d", ins.Kind)
	}
}

func isUnsignedType(t bytecode.Type) bool {
	switch t {
	case bytecode.TypeU8, bytecode.TypeU16, bytecode.TypeU32, bytecode.TypeU64,
		bytecode.TypeAddress, bytecode.TypeBool:
		return true
	default:
		return false
	}
}

func boolByte(v bool) []byte {
	if v {
		return []byte{1}
	}
	return []byte{0}
}

func decodeInt(t bytecode.Type, b []byte) int64 {
	switch t {
	case bytecode.TypeI8:
		return int64(int8(b[0]))
	case bytecode.TypeU8, bytecode.TypeBool:
		return int64(b[0])
	case bytecode.TypeI16:
		return int64(int16(binary.LittleEndian.Uint16(b)))
	case bytecode.TypeU16:
		return int64(binary.LittleEndian.Uint16(b))
	case bytecode.TypeI32:
		return int64(int32(binary.LittleEndian.Uint32(b)))
	case bytecode.TypeU32:
		return int64(binary.LittleEndian.Uint32(b))
	case bytecode.TypeI64, bytecode.TypeU64, bytecode.TypeAddress:
		return int64(binary.LittleEndian.Uint64(b))
	default:
		return 0
	}
}

func encodeInt(t bytecode.Type, v int64) []byte {
	switch t {
	case bytecode.TypeI8, bytecode.TypeU8, bytecode.TypeBool:
		return []byte{byte(v)}
	case bytecode.TypeI16, bytecode.TypeU16:
		b := make([]byte, 2)
		binary.LittleEndian.PutUint16(b, uint16(v))
		return b
	case bytecode.TypeI32, bytecode.TypeU32:
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, uint32(v))
		return b
	default:
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, uint64(v))
		return b
	}
}

func decodeFloat(t bytecode.Type, b []byte) float64 {
	if t == bytecode.TypeF32 {
		return float64(readF32(b))
	}
	return readF64(b)
}

func encodeFloat(t bytecode.Type, v float64) []byte {
	if t == bytecode.TypeF32 {
		return writeF32(float32(v))
	}
	return writeF64(v)
}
