package interp

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"strings"
	"testing"

	"upp/internal/bytecode"
)

// mainProgram builds a one-function bytecode.Program named "main",
// entering at instruction 0, with a frame big enough for every scratch
// offset the test's instructions touch. This mirrors
// internal/bytecode's own test style (bytecode_test.go): hand-built
// fixtures rather than routing through the full lexer-to-bcgen
// pipeline, since these tests exercise only the interpreter's own
// contract with an already-lowered program.
func mainProgram(frameSize int, instrs ...bytecode.Instruction) *bytecode.Program {
	p := bytecode.NewProgram()
	for _, ins := range instrs {
		p.Emit(ins)
	}
	p.Functions = append(p.Functions, &bytecode.Function{
		Name:       "main",
		EntryIndex: 0,
		Layout:     bytecode.FrameLayout{FrameSize: frameSize},
	})
	return p
}

func boolLoad(dst int32, v bool) bytecode.Instruction {
	n := int32(0)
	if v {
		n = 1
	}
	return bytecode.Instruction{Kind: bytecode.OpLoadImmediate, Op1: dst, Op2: n, Op3: 1}
}

func TestAssertSuccess(t *testing.T) {
	prog := mainProgram(64,
		boolLoad(0, true),
		bytecode.Instruction{Kind: bytecode.OpCallHardcoded, Op1: int32(bytecode.HCAssert), Op2: 0, Op3: 1, Op4: -1},
		bytecode.Instruction{Kind: bytecode.OpReturn},
	)
	m := NewMachine(prog, nil, nil)
	exit, err := m.RunFunction("main")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exit.Kind != ExitSuccess {
		t.Fatalf("expected SUCCESS, got %v", exit)
	}
}

func TestAssertFailureIsExecutionError(t *testing.T) {
	prog := mainProgram(64,
		boolLoad(0, false),
		bytecode.Instruction{Kind: bytecode.OpCallHardcoded, Op1: int32(bytecode.HCAssert), Op2: 0, Op3: 1, Op4: -1},
		bytecode.Instruction{Kind: bytecode.OpReturn},
	)
	m := NewMachine(prog, nil, nil)
	exit, err := m.RunFunction("main")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exit.Kind != ExitExecutionError {
		t.Fatalf("expected EXECUTION_ERROR, got %v", exit)
	}
}

// TestArrayOutOfBounds: indexing a 3-element
// array at index 3 traps with "Array out of bounds access".
func TestArrayOutOfBounds(t *testing.T) {
	const idxOff, lenOff = 0, 8
	prog := mainProgram(64,
		bytecode.Instruction{Kind: bytecode.OpLoadImmediate, Op1: idxOff, Op2: 3, Op3: 8},
		bytecode.Instruction{Kind: bytecode.OpLoadImmediate, Op1: lenOff, Op2: 3, Op3: 8},
		bytecode.Instruction{Kind: bytecode.OpBoundsCheck, Op1: idxOff, Op2: lenOff},
		bytecode.Instruction{Kind: bytecode.OpReturn},
	)
	m := NewMachine(prog, nil, nil)
	exit, err := m.RunFunction("main")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exit.Kind != ExitExecutionError || exit.Message != "Array out of bounds access" {
		t.Fatalf("expected out-of-bounds EXECUTION_ERROR, got %v", exit)
	}
}

// TestExitWithUserCode: returning a
// concrete exit code after a print along the way.
func TestExitWithUserCode(t *testing.T) {
	const i32Off, codeOff = 0, 4
	var out bytes.Buffer
	prog := mainProgram(64,
		bytecode.Instruction{Kind: bytecode.OpLoadImmediate, Op1: i32Off, Op2: 1, Op3: 4},
		bytecode.Instruction{Kind: bytecode.OpCallHardcoded, Op1: int32(bytecode.HCPrintI32), Op2: i32Off, Op3: 4, Op4: -1},
		bytecode.Instruction{Kind: bytecode.OpLoadImmediate, Op1: codeOff, Op2: 0, Op3: 4},
		bytecode.Instruction{Kind: bytecode.OpExit, Op1: codeOff, Op2: bytecode.ExitUser},
	)
	m := NewMachine(prog, &out, nil)
	exit, err := m.RunFunction("main")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exit.Kind != ExitCodeError || exit.Code != 0 {
		t.Fatalf("expected exit code 0, got %v", exit)
	}
	if out.String() != "1" {
		t.Fatalf("expected \"1\" printed before exit, got %q", out.String())
	}
}

// TestNewDeleteRoundTrip: system_alloc returns a
// non-zero address and system_free accepts it back without error.
func TestNewDeleteRoundTrip(t *testing.T) {
	const sizeOff, addrOff = 0, 8
	prog := mainProgram(64,
		bytecode.Instruction{Kind: bytecode.OpLoadImmediate, Op1: sizeOff, Op2: 4, Op3: 8},
		bytecode.Instruction{Kind: bytecode.OpCallHardcoded, Op1: int32(bytecode.HCSystemAlloc), Op2: sizeOff, Op3: 8, Op4: addrOff},
		bytecode.Instruction{Kind: bytecode.OpCallHardcoded, Op1: int32(bytecode.HCSystemFree), Op2: addrOff, Op3: 8, Op4: -1},
		bytecode.Instruction{Kind: bytecode.OpReturn},
	)
	m := NewMachine(prog, nil, nil)

	exit, err := m.RunFunction("main")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exit.Kind != ExitSuccess {
		t.Fatalf("expected SUCCESS, got %v", exit)
	}
	addr := int64(binary.LittleEndian.Uint64(m.stack[addrOff : addrOff+8]))
	if addr == 0 {
		t.Fatalf("expected system_alloc to return a non-zero address")
	}
}

func TestPrintString(t *testing.T) {
	var out bytes.Buffer
	prog := bytecode.NewProgram()
	prog.ConstantBytes = append(prog.ConstantBytes, []byte("hi")...)
	prog.ConstantOffsets = []int{0}

	const addrOff, argOff = 0, 16
	prog.Emit(bytecode.Instruction{Kind: bytecode.OpLoadConstantAddress, Op1: addrOff, Op2: 0})
	prog.Emit(bytecode.Instruction{Kind: bytecode.OpMoveStackToStack, Op1: argOff, Op2: addrOff, Op3: 8})
	prog.Emit(bytecode.Instruction{Kind: bytecode.OpLoadImmediate, Op1: argOff + 8, Op2: 2, Op3: 8})
	prog.Emit(bytecode.Instruction{Kind: bytecode.OpCallHardcoded, Op1: int32(bytecode.HCPrintString), Op2: argOff, Op3: 16, Op4: -1})
	prog.Emit(bytecode.Instruction{Kind: bytecode.OpReturn})
	prog.Functions = append(prog.Functions, &bytecode.Function{Name: "main", EntryIndex: 0, Layout: bytecode.FrameLayout{FrameSize: 64}})

	m := NewMachine(prog, &out, nil)
	exit, err := m.RunFunction("main")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exit.Kind != ExitSuccess {
		t.Fatalf("expected SUCCESS, got %v", exit)
	}
	if out.String() != "hi" {
		t.Fatalf("expected \"hi\" printed, got %q", out.String())
	}
}

// TestCallFunctionComputesSum exercises the real OpCallFunction path:
// args staged into the caller's scratch become the callee's own
// parameter slots, and the callee's return value lands back in the
// caller's frame once its own frame is gone.
func TestCallFunctionComputesSum(t *testing.T) {
	var out bytes.Buffer
	prog := bytecode.NewProgram()

	prog.Emit(bytecode.Instruction{Kind: bytecode.OpLoadImmediate, Op1: 0, Op2: 2, Op3: 4})
	prog.Emit(bytecode.Instruction{Kind: bytecode.OpLoadImmediate, Op1: 4, Op2: 3, Op3: 4})
	addEntry := 5 // filled in once "add"'s real entry index is known, patched below
	callIdx := prog.Emit(bytecode.Instruction{Kind: bytecode.OpCallFunction, Op2: 0, Op3: 8, Op4: 8})
	prog.Emit(bytecode.Instruction{Kind: bytecode.OpCallHardcoded, Op1: int32(bytecode.HCPrintI32), Op2: 8, Op3: 4, Op4: -1})
	prog.Emit(bytecode.Instruction{Kind: bytecode.OpReturn})

	addEntry = len(prog.Instructions)
	prog.Instructions[callIdx].Op1 = int32(addEntry)
	prog.Emit(bytecode.Instruction{Kind: bytecode.OpBinaryAdd, Op1: 24, Op2: 0, Op3: 4, Op4: int32(bytecode.TypeI32)})
	prog.Emit(bytecode.Instruction{Kind: bytecode.OpLoadReturnValue, Op1: 24, Op2: 4})
	prog.Emit(bytecode.Instruction{Kind: bytecode.OpReturn})

	prog.Functions = []*bytecode.Function{
		{Name: "main", EntryIndex: 0, Layout: bytecode.FrameLayout{FrameSize: 64}},
		{Name: "add", EntryIndex: addEntry, Layout: bytecode.FrameLayout{FrameSize: 32}},
	}

	m := NewMachine(prog, &out, nil)
	exit, err := m.RunFunction("main")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exit.Kind != ExitSuccess {
		t.Fatalf("expected SUCCESS, got %v", exit)
	}
	if out.String() != "5" {
		t.Fatalf("expected \"5\" printed, got %q", out.String())
	}
}

func TestReadLineAllocatesOnHeap(t *testing.T) {
	prog := mainProgram(64,
		bytecode.Instruction{Kind: bytecode.OpCallHardcoded, Op1: int32(bytecode.HCReadLine), Op2: 0, Op3: 0, Op4: 0},
		bytecode.Instruction{Kind: bytecode.OpReturn},
	)
	stdin := bufio.NewReader(strings.NewReader("hello\n"))
	m := NewMachine(prog, nil, stdin)
	exit, err := m.RunFunction("main")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exit.Kind != ExitSuccess {
		t.Fatalf("expected SUCCESS, got %v", exit)
	}
	addr := int64(binary.LittleEndian.Uint64(m.stack[0:8]))
	length := int64(binary.LittleEndian.Uint64(m.stack[8:16]))
	if length != 5 {
		t.Fatalf("expected a 5-byte line, got length %d", length)
	}
	if string(m.readBytes(addr, int(length))) != "hello" {
		t.Fatalf("expected \"hello\", got %q", m.readBytes(addr, int(length)))
	}
}
