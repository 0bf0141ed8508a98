// Package bytecode implements a fixed-width bytecode instruction set:
// a flat instruction array per program, one entry index per function,
// stack frames laid out by a greedy alignment-aware allocator, and a
// patch pass that resolves forward references recorded while
// functions are lowered out of order.
package bytecode

import "upp/internal/types"

// Type is the Bytecode_Type tag carried by typed instructions: which
// width/signedness/float-ness an arithmetic, cast, or move operates
// on.
type Type byte

const (
	TypeI8 Type = iota
	TypeI16
	TypeI32
	TypeI64
	TypeU8
	TypeU16
	TypeU32
	TypeU64
	TypeF32
	TypeF64
	TypeBool
	TypeAddress
)

func (t Type) Size() int {
	switch t {
	case TypeI8, TypeU8, TypeBool:
		return 1
	case TypeI16, TypeU16:
		return 2
	case TypeI32, TypeU32, TypeF32:
		return 4
	default:
		return 8
	}
}

// Kind discriminates a bytecode instruction's operation.
type Kind byte

const (
	// Stack moves
	OpMoveStackToStack Kind = iota
	OpLoadConstant
	OpLoadImmediate // small integer immediate in Op2, written to Op1 at Op3 bytes (4 if 0)

	// Memory read/write through a pointer
	OpReadMemory
	OpWriteMemory

	// Globals
	OpReadGlobal
	OpWriteGlobal

	// Address loads
	OpLoadRegisterAddress
	OpLoadGlobalAddress
	OpLoadConstantAddress
	OpLoadFunctionAddress

	// OpComputeMemberAddress: dst(addr) = base(addr) + Op3 (a constant
	// byte offset known at lowering time from the struct layout).
	OpComputeMemberAddress
	// OpComputeElementAddress: dst(addr) = base(addr) + index(value) * Op4 (element size).
	OpComputeElementAddress

	// Arithmetic (typed by Op4 as a Type tag)
	OpBinaryAdd
	OpBinarySub
	OpBinaryMul
	OpBinaryDiv
	OpBinaryMod
	OpBinaryEq
	OpBinaryNe
	OpBinaryLt
	OpBinaryGt
	OpBinaryLe
	OpBinaryGe
	OpBinaryAnd
	OpBinaryOr
	OpBinaryBitAnd
	OpBinaryBitOr
	OpBinaryBitXor
	OpBinaryShl
	OpBinaryShr

	OpUnaryNegate
	OpUnaryNot
	OpUnaryBitNot

	// Casts
	OpCastIntToInt
	OpCastFloatToFloat
	OpCastIntToFloat
	OpCastFloatToInt
	OpCastArrayToSlice

	// Control flow
	OpJump
	OpJumpIfFalse
	OpLabel // no-op marker kept only until the patch pass resolves gotos

	// Calls
	OpCallFunction
	OpCallFunctionPointer
	OpCallHardcoded
	OpReturn
	OpLoadReturnValue

	// Bounds/trap
	OpBoundsCheck
	OpExit
)

// Instruction is the fixed { kind, op1, op2, op3, op4 } instruction
// shape.
// Operand meaning is Kind-dependent: stack offsets,
// sizes, constant-pool offsets, instruction indices, hardcoded-function
// codes, or a Bytecode_Type tag.
type Instruction struct {
	Kind Kind
	Op1  int32
	Op2  int32
	Op3  int32
	Op4  int32
}

// FrameLayout is one function's stack-frame contract:
//   [param0][param1]...[paramN][return address][saved stack pointer][register0]...
type FrameLayout struct {
	ParamOffsets []int
	ParamSize    int // total bytes occupied by parameters

	ReturnAddrOffset int
	SavedSPOffset    int
	RegisterOffsets  []int
	FrameSize        int // total bytes, including parameters and registers
}

// SizeAligner is satisfied by any type description the layout builder
// needs: byte size and alignment.
type SizeAligner interface {
	Size() int
	Align() int
}

// LayoutFrame assigns offsets to params then registers by a greedy
// alignment-aware algorithm: each value is placed at the next offset
// that is a multiple of its alignment, and the next free offset
// advances by its size.
func LayoutFrame(params []SizeAligner, registers []SizeAligner) FrameLayout {
	offset := 0
	paramOffsets := make([]int, len(params))
	for i, p := range params {
		offset = alignUp(offset, p.Align())
		paramOffsets[i] = offset
		offset += p.Size()
	}
	paramSize := offset

	offset = alignUp(offset, 8)
	retAddrOffset := offset
	offset += 8
	savedSPOffset := offset
	offset += 8

	regOffsets := make([]int, len(registers))
	for i, r := range registers {
		offset = alignUp(offset, r.Align())
		regOffsets[i] = offset
		offset += r.Size()
	}

	return FrameLayout{
		ParamOffsets:     paramOffsets,
		ParamSize:        paramSize,
		ReturnAddrOffset: retAddrOffset,
		SavedSPOffset:    savedSPOffset,
		RegisterOffsets:  regOffsets,
		FrameSize:        offset,
	}
}

func alignUp(n, align int) int {
	if align <= 1 {
		return n
	}
	return (n + align - 1) / align * align
}

// Function is one lowered function: its entry instruction index and
// frame layout.
type Function struct {
	Name        string
	EntryIndex  int
	Layout      FrameLayout
	ReturnSize  int
}

// Program is the whole flat instruction array plus per-function
// metadata.
type Program struct {
	Instructions []Instruction
	Functions    []*Function
	// ConstantOffsets maps a constpool.Handle (by int) to its byte
	// offset in the append-only constant arena.
	ConstantOffsets []int
	ConstantBytes   []byte
	GlobalOffsets   []int
	GlobalBytes     []byte

	// Types is the runtime Type_Information table: one entry per
	// handle the type registry had assigned when this program was
	// generated, indexed by TypeMeta.Handle. Populated by
	// internal/bcgen so the interpreter can answer size_of/align_of/
	// type_info/struct_tag at run time without re-linking against
	// internal/types.
	Types []TypeMeta
}

// TypeMeta mirrors one internal/types.Type's runtime-visible shape
// (the language's Type_Information), flattened to what the interpreter needs to
// answer a hardcoded type-introspection call: no pointer back into
// internal/types survives past bcgen, so a bake or a running program
// can't accidentally observe an analysis-time type that later changed.
type TypeMeta struct {
	Handle uint64
	Kind   types.Kind
	Size   int32
	Align  int32

	Name         string   // struct/enum name, "" otherwise
	MemberNames  []string // struct members in declaration order
	MemberOffsets []int32
	IsUnion      bool
	Discriminant int32 // -1 if not a tagged union

	ElemHandle   uint64 // Pointer/Optional/Array/Slice element
	ArrayCount   int32  // Array only, -1 if unknown
	ReturnHandle uint64 // FunctionPointer only
}

// HardcodedCode identifies one of the VM's built-in intrinsic functions:
// the ones the interpreter implements natively rather than by calling
// into lowered bytecode.
type HardcodedCode int32

const (
	HCAssert HardcodedCode = iota
	HCPanic
	HCSizeOf
	HCAlignOf
	HCTypeOf
	HCTypeInfo
	HCReturnType
	HCStructTag
	HCMemoryCopy
	HCMemoryZero
	HCMemoryCompare
	HCSystemAlloc
	HCSystemFree
	HCBitwiseAnd
	HCBitwiseOr
	HCBitwiseXor
	HCBitwiseNot
	HCBitwiseShiftLeft
	HCBitwiseShiftRight
	HCPrintI32
	HCPrintI64
	HCPrintF32
	HCPrintF64
	HCPrintString
	HCPrintBool
	HCPrintLine
	HCReadI32
	HCReadI64
	HCReadF32
	HCReadF64
	HCReadBool
	HCReadLine
	HCRandomI32
	hcUnknown
)

var hardcodedNames = map[string]HardcodedCode{
	"assert":             HCAssert,
	"panic":              HCPanic,
	"size_of":            HCSizeOf,
	"align_of":           HCAlignOf,
	"type_of":            HCTypeOf,
	"type_info":          HCTypeInfo,
	"return_type":        HCReturnType,
	"struct_tag":         HCStructTag,
	"memory_copy":        HCMemoryCopy,
	"memory_zero":        HCMemoryZero,
	"memory_compare":     HCMemoryCompare,
	"system_alloc":       HCSystemAlloc,
	"system_free":        HCSystemFree,
	"bitwise_and":        HCBitwiseAnd,
	"bitwise_or":         HCBitwiseOr,
	"bitwise_xor":        HCBitwiseXor,
	"bitwise_not":        HCBitwiseNot,
	"bitwise_shift_left":  HCBitwiseShiftLeft,
	"bitwise_shift_right": HCBitwiseShiftRight,
	"print_i32":          HCPrintI32,
	"print_i64":          HCPrintI64,
	"print_f32":          HCPrintF32,
	"print_f64":          HCPrintF64,
	"print_string":       HCPrintString,
	"print_bool":         HCPrintBool,
	"print_line":         HCPrintLine,
	"read_i32":           HCReadI32,
	"read_i64":           HCReadI64,
	"read_f32":           HCReadF32,
	"read_f64":           HCReadF64,
	"read_bool":          HCReadBool,
	"read_line":          HCReadLine,
	"random_i32":         HCRandomI32,
}

// HardcodedCodeByName resolves a hardcoded-call's source name to its
// code. An unknown name is an internal invariant violation (the
// analyser only ever emits calls to intrinsics it recognises), so it
// resolves to hcUnknown rather than panicking here.
func HardcodedCodeByName(name string) HardcodedCode {
	if c, ok := hardcodedNames[name]; ok {
		return c
	}
	return hcUnknown
}

// TrapCode identifies why a bytecode EXIT instruction fired without an
// explicit source-level exit-with-code return.
type TrapCode int32

const (
	TrapInvalidSwitchCase TrapCode = iota
	TrapBoundsCheck
	TrapAssertFailed
)

// OpExit's Op2 discriminates whether Op1 is a TrapCode (an internal
// invariant violation the analyser couldn't rule out statically) or a
// real process exit code the program returned from main.
const (
	ExitTrap int32 = iota
	ExitUser
)

func NewProgram() *Program { return &Program{} }

func (p *Program) Emit(ins Instruction) int {
	idx := len(p.Instructions)
	p.Instructions = append(p.Instructions, ins)
	return idx
}
