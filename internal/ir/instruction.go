package ir

import "upp/internal/types"

// InstrKind discriminates an IR instruction's variant.
type InstrKind int

const (
	InstrMove InstrKind = iota
	InstrCast
	InstrFunctionAddress
	InstrCall
	InstrBinary
	InstrUnary
	InstrIf
	InstrWhile
	InstrSwitch
	InstrBlock
	InstrLabel
	InstrGoto
	InstrReturn
	InstrVariableDefinition // debug only
)

// CastKind enumerates the 16 cast variants.
type CastKind int

const (
	CastIntWiden CastKind = iota
	CastIntNarrow
	CastIntSignedUnsigned
	CastEnumToInt
	CastIntToEnum
	CastArrayToSlice
	CastValueToOptional
	CastAnyToConcrete
	CastValueToAny
	CastPointerToPointer
	CastPointerAddress
	CastSubtypeUpcast
	CastSubtypeDowncast
	CastFloatWidth
	CastFloatToInt
	CastIntToFloat
)

// CallKind discriminates the three function-call shapes.
type CallKind int

const (
	CallNormal CallKind = iota
	CallIndirect
	CallHardcoded
)

// BinaryOp mirrors ast.BinaryOp at the IR level, once the analyser has
// already picked a concrete instruction (not an operator overload).
type BinaryOp int

const (
	BinAdd BinaryOp = iota
	BinSub
	BinMul
	BinDiv
	BinMod
	BinEq
	BinNe
	BinLt
	BinGt
	BinLe
	BinGe
	BinAnd
	BinOr
	BinBitAnd
	BinBitOr
	BinBitXor
	BinShl
	BinShr
)

type UnaryOp int

const (
	UnNeg UnaryOp = iota
	UnNot
	UnBitNot
)

// Instruction is a tagged variant; only the fields meaningful for Kind
// are populated. Keeping one struct (rather than an interface per
// variant) mirrors the bytecode instruction's fixed shape one layer up
// and keeps the generator's switch dispatch simple.
type Instruction struct {
	Kind InstrKind

	// Move, Cast, Unary: Dst = op(Src)
	Dst, Src *Access
	Cast     CastKind
	TypeArg  *types.Type // target type for Cast / FunctionAddress

	// Binary: Dst = Lhs Op Rhs
	Lhs, Rhs *Access
	BinOp    BinaryOp
	UnOp     UnaryOp

	// FunctionAddress
	Function *Function

	// Call
	CallKind    CallKind
	Callee      *Function // CallNormal
	CalleeAddr  *Access   // CallIndirect
	Hardcoded   string    // CallHardcoded
	Args        []*Access
	ResultDst   *Access // nil if the call's result is discarded

	// If: if Cond { Then } else { Else }
	Cond       *Access
	Then, Else *Block

	// While: while Cond { Body }  (Cond re-evaluated in its own block
	// so IR generation can lower arbitrary condition expressions)
	CondBlock *Block
	Body      *Block

	// Switch
	Subject      *Access
	Cases        []SwitchCase
	DefaultCase  *Block // nil => traps with EXIT(invalid-switch-case)

	// Block (nested scope, e.g. a bare `{ }` or a function's entry)
	Nested *Block

	// Label / Goto
	LabelName string

	// Return
	ReturnValue *Access // nil for empty return
	ExitCode    *Access // set only for an exit-with-code return

	// VariableDefinition (debug only)
	DebugName string
	DebugReg  *Access
}

// SwitchCase is one labelled branch of a Switch instruction: either an
// enum value or a tagged-union subtype index.
type SwitchCase struct {
	Values []*Access // constant(s) this case matches
	Body   *Block
}

func Move(dst, src *Access) Instruction { return Instruction{Kind: InstrMove, Dst: dst, Src: src} }

func Cast(dst, src *Access, kind CastKind, target *types.Type) Instruction {
	return Instruction{Kind: InstrCast, Dst: dst, Src: src, Cast: kind, TypeArg: target}
}

func Binary(dst, lhs, rhs *Access, op BinaryOp) Instruction {
	return Instruction{Kind: InstrBinary, Dst: dst, Lhs: lhs, Rhs: rhs, BinOp: op}
}

func Unary(dst, src *Access, op UnaryOp) Instruction {
	return Instruction{Kind: InstrUnary, Dst: dst, Src: src, UnOp: op}
}

func If(cond *Access, then, els *Block) Instruction {
	return Instruction{Kind: InstrIf, Cond: cond, Then: then, Else: els}
}

func While(condBlock *Block, cond *Access, body *Block) Instruction {
	return Instruction{Kind: InstrWhile, CondBlock: condBlock, Cond: cond, Body: body}
}

func Switch(subject *Access, cases []SwitchCase, def *Block) Instruction {
	return Instruction{Kind: InstrSwitch, Subject: subject, Cases: cases, DefaultCase: def}
}

func Label(name string) Instruction { return Instruction{Kind: InstrLabel, LabelName: name} }
func Goto(name string) Instruction  { return Instruction{Kind: InstrGoto, LabelName: name} }

func Return(v *Access) Instruction { return Instruction{Kind: InstrReturn, ReturnValue: v} }
func ReturnEmpty() Instruction     { return Instruction{Kind: InstrReturn} }
func ExitWithCode(code *Access) Instruction {
	return Instruction{Kind: InstrReturn, ExitCode: code}
}

func FunctionAddress(dst *Access, fn *Function) Instruction {
	return Instruction{Kind: InstrFunctionAddress, Dst: dst, Function: fn}
}

func CallNormalInstr(callee *Function, args []*Access, dst *Access) Instruction {
	return Instruction{Kind: InstrCall, CallKind: CallNormal, Callee: callee, Args: args, ResultDst: dst}
}

func CallIndirectInstr(addr *Access, args []*Access, dst *Access) Instruction {
	return Instruction{Kind: InstrCall, CallKind: CallIndirect, CalleeAddr: addr, Args: args, ResultDst: dst}
}

func CallHardcodedInstr(name string, args []*Access, dst *Access) Instruction {
	return Instruction{Kind: InstrCall, CallKind: CallHardcoded, Hardcoded: name, Args: args, ResultDst: dst}
}
