package interp

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"upp/internal/bytecode"
)

// callHardcoded executes one of the VM's built-in intrinsics natively:
// no callee frame is pushed (internal/bcgen never emits one for a
// hardcoded call, see lowerCall's CallHardcoded case), so argsBase and
// resultDst are both offsets inside the CURRENT frame. argsSize is the
// total byte span bcgen staged the arguments into; since OpCallHardcoded
// carries no per-argument type list, each intrinsic's fixed arity and
// per-argument width are hardcoded here to match exactly how
// internal/irgen emits calls to it.
func (m *Machine) callHardcoded(code bytecode.HardcodedCode, argsBase, argsSize, resultDst int32) {
	args := m.readFrame(argsBase, int(argsSize))
	result := m.dispatchHardcoded(code, args)
	if resultDst >= 0 && len(result) > 0 {
		m.writeFrame(resultDst, result)
	}
}

func (m *Machine) dispatchHardcoded(code bytecode.HardcodedCode, args []byte) []byte {
	switch code {
	case bytecode.HCAssert:
		if len(args) == 0 || args[0] == 0 {
			m.fault("Assertion failed")
		}
		return nil

	case bytecode.HCPanic:
		msg := "panic"
		if len(args) >= 16 {
			if s, ok := m.decodeStringArg(args[0:16]); ok {
				msg = s
			}
		}
		m.fault("%s", msg)
		return nil

	case bytecode.HCSizeOf:
		meta := m.typeMeta(args)
		return u64Bytes(uint64(meta.Size))

	case bytecode.HCAlignOf:
		meta := m.typeMeta(args)
		return u64Bytes(uint64(meta.Align))

	case bytecode.HCTypeOf:
		// type_of is always applied to a type-name operand, which the
		// analyser already evaluates to a type handle constant, so
		// this is the identity on that handle.
		return args[:8]

	case bytecode.HCTypeInfo:
		return m.buildTypeInfo(args)

	case bytecode.HCReturnType:
		meta := m.typeMeta(args)
		return u64Bytes(meta.ReturnHandle)

	case bytecode.HCStructTag:
		// The tagged union's discriminant member is always laid out
		// first among the subtype-distinguishing fields; the pointer
		// argument already addresses the union's base, so the
		// discriminant lives at offset 0 of the pointee.
		addr := int64(binary.LittleEndian.Uint64(args[0:8]))
		return m.readBytes(addr, 4)

	case bytecode.HCMemoryCopy:
		dst := int64(binary.LittleEndian.Uint64(args[0:8]))
		src := int64(binary.LittleEndian.Uint64(args[8:16]))
		n := int64(binary.LittleEndian.Uint64(args[16:24]))
		m.writeBytes(dst, m.readBytes(src, int(n)))
		return nil

	case bytecode.HCMemoryZero:
		dst := int64(binary.LittleEndian.Uint64(args[0:8]))
		n := int64(binary.LittleEndian.Uint64(args[8:16]))
		m.writeBytes(dst, make([]byte, n))
		return nil

	case bytecode.HCMemoryCompare:
		a := int64(binary.LittleEndian.Uint64(args[0:8]))
		b := int64(binary.LittleEndian.Uint64(args[8:16]))
		n := int64(binary.LittleEndian.Uint64(args[16:24]))
		cmp := 0
		ab, bb := m.readBytes(a, int(n)), m.readBytes(b, int(n))
		for i := range ab {
			if ab[i] != bb[i] {
				if ab[i] < bb[i] {
					cmp = -1
				} else {
					cmp = 1
				}
				break
			}
		}
		return encodeInt(bytecode.TypeI32, int64(cmp))

	case bytecode.HCSystemAlloc:
		size := int64(binary.LittleEndian.Uint64(args[0:8]))
		off := m.heap.alloc(size, 8)
		return u64Bytes(uint64(heapBase + off))

	case bytecode.HCSystemFree:
		addr := int64(binary.LittleEndian.Uint64(args[0:8]))
		if addr != 0 {
			m.heap.release(addr - heapBase)
		}
		return nil

	case bytecode.HCBitwiseAnd, bytecode.HCBitwiseOr, bytecode.HCBitwiseXor,
		bytecode.HCBitwiseShiftLeft, bytecode.HCBitwiseShiftRight:
		width := len(args) / 2
		typ := intTypeOfWidth(width)
		lhs := decodeInt(typ, args[0:width])
		rhs := decodeInt(typ, args[width:2*width])
		var result int64
		switch code {
		case bytecode.HCBitwiseAnd:
			result = lhs & rhs
		case bytecode.HCBitwiseOr:
			result = lhs | rhs
		case bytecode.HCBitwiseXor:
			result = lhs ^ rhs
		case bytecode.HCBitwiseShiftLeft:
			result = lhs << uint64(rhs)
		case bytecode.HCBitwiseShiftRight:
			result = int64(uint64(lhs) >> uint64(rhs))
		}
		return encodeInt(typ, result)

	case bytecode.HCBitwiseNot:
		typ := intTypeOfWidth(len(args))
		v := decodeInt(typ, args)
		return encodeInt(typ, ^v)

	case bytecode.HCPrintI32:
		m.printf("%d", decodeInt(bytecode.TypeI32, args))
		return nil
	case bytecode.HCPrintI64:
		m.printf("%d", decodeInt(bytecode.TypeI64, args))
		return nil
	case bytecode.HCPrintF32:
		m.printf("%v", decodeFloat(bytecode.TypeF32, args))
		return nil
	case bytecode.HCPrintF64:
		m.printf("%v", decodeFloat(bytecode.TypeF64, args))
		return nil
	case bytecode.HCPrintBool:
		m.printf("%v", args[0] != 0)
		return nil
	case bytecode.HCPrintLine:
		m.printf("\n")
		return nil
	case bytecode.HCPrintString:
		if s, ok := m.decodeStringArg(args); ok {
			m.printf("%s", s)
		}
		return nil

	case bytecode.HCReadI32:
		return encodeInt(bytecode.TypeI32, m.readIntLine())
	case bytecode.HCReadI64:
		return encodeInt(bytecode.TypeI64, m.readIntLine())
	case bytecode.HCReadF32:
		return encodeFloat(bytecode.TypeF32, m.readFloatLine())
	case bytecode.HCReadF64:
		return encodeFloat(bytecode.TypeF64, m.readFloatLine())
	case bytecode.HCReadBool:
		line := m.readLineRaw()
		return boolByte(strings.TrimSpace(line) == "true")
	case bytecode.HCReadLine:
		line := strings.TrimRight(m.readLineRaw(), "\r\n")
		off := m.heap.alloc(int64(len(line)), 1)
		copy(m.heap.bytes(int(off), len(line)), line)
		var buf [16]byte
		binary.LittleEndian.PutUint64(buf[0:8], uint64(heapBase+off))
		binary.LittleEndian.PutUint64(buf[8:16], uint64(len(line)))
		return buf[:]

	case bytecode.HCRandomI32:
		return encodeInt(bytecode.TypeI32, int64(m.rng.Int31()))

	default:
		m.fault("interp: unknown hardcoded function code %d", code)
		return nil
	}
}

func (m *Machine) printf(format string, args ...interface{}) {
	if m.stdout == nil {
		return
	}
	m.stdout.WriteString(fmt.Sprintf(format, args...))
}

func (m *Machine) readLineRaw() string {
	if m.stdin == nil {
		return ""
	}
	line, _ := m.stdin.ReadString('\n')
	return line
}

func (m *Machine) readIntLine() int64 {
	v, _ := strconv.ParseInt(strings.TrimSpace(m.readLineRaw()), 10, 64)
	return v
}

func (m *Machine) readFloatLine() float64 {
	v, _ := strconv.ParseFloat(strings.TrimSpace(m.readLineRaw()), 64)
	return v
}

// decodeStringArg reads a 16-byte {data,length} slice value and
// resolves it to a Go string; print_string/panic's message argument
// both use the Slice(Uint8) representation, there being no distinct
// runtime string type.
func (m *Machine) decodeStringArg(b []byte) (string, bool) {
	if len(b) < 16 {
		return "", false
	}
	addr := int64(binary.LittleEndian.Uint64(b[0:8]))
	length := int64(binary.LittleEndian.Uint64(b[8:16]))
	if addr == 0 || length <= 0 {
		return "", length == 0
	}
	return string(m.readBytes(addr, int(length))), true
}

func (m *Machine) typeMeta(args []byte) *bytecode.TypeMeta {
	handle := binary.LittleEndian.Uint64(args[0:8])
	meta, ok := m.typesByHandle[handle]
	if !ok {
		m.fault("interp: unknown type handle %d", handle)
	}
	return meta
}

// buildTypeInfo allocates a minimal runtime Type_Information block on
// the heap and returns an Any{data, type} value pointing to it. The
// options tagged-union member that would mirror each base type's
// own variant isn't reproduced field-for-field here; this
// carries the {size, alignment, kind} core every variant shares.
func (m *Machine) buildTypeInfo(args []byte) []byte {
	meta := m.typeMeta(args)
	handle := binary.LittleEndian.Uint64(args[0:8])

	off := m.heap.alloc(24, 8)
	block := m.heap.bytes(int(off), 24)
	binary.LittleEndian.PutUint64(block[0:8], handle)
	binary.LittleEndian.PutUint32(block[8:12], uint32(meta.Size))
	binary.LittleEndian.PutUint32(block[12:16], uint32(meta.Align))
	binary.LittleEndian.PutUint32(block[16:20], uint32(meta.Kind))
	binary.LittleEndian.PutUint32(block[20:24], 0)

	var any [16]byte
	binary.LittleEndian.PutUint64(any[0:8], uint64(heapBase+off))
	binary.LittleEndian.PutUint64(any[8:16], handle)
	return any[:]
}

func intTypeOfWidth(w int) bytecode.Type {
	switch w {
	case 1:
		return bytecode.TypeU8
	case 2:
		return bytecode.TypeU16
	case 4:
		return bytecode.TypeU32
	default:
		return bytecode.TypeU64
	}
}

func u64Bytes(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}
