package bytecode

import "testing"

type fixedSize struct{ size, align int }

func (f fixedSize) Size() int  { return f.size }
func (f fixedSize) Align() int { return f.align }

func TestLayoutFrameAlignsGreedily(t *testing.T) {
	params := []SizeAligner{fixedSize{1, 1}, fixedSize{4, 4}}
	registers := []SizeAligner{fixedSize{8, 8}}
	layout := LayoutFrame(params, registers)

	if layout.ParamOffsets[0] != 0 {
		t.Fatalf("first param should sit at offset 0, got %d", layout.ParamOffsets[0])
	}
	if layout.ParamOffsets[1] != 4 {
		t.Fatalf("4-byte-aligned param should round up past the 1-byte param, got %d", layout.ParamOffsets[1])
	}
	if layout.ParamSize != 8 {
		t.Fatalf("expected param region to total 8 bytes, got %d", layout.ParamSize)
	}
	if layout.RegisterOffsets[0] < layout.SavedSPOffset+8 {
		t.Fatalf("register must follow the saved-stack-pointer slot")
	}
}

func TestPatcherResolvesForwardCallAndJump(t *testing.T) {
	prog := NewProgram()
	callIdx := prog.Emit(Instruction{Kind: OpCallFunction})
	jumpIdx := prog.Emit(Instruction{Kind: OpJump})

	patcher := NewPatcher()
	patcher.Defer(PatchCallTarget, callIdx, 1, "callee")
	patcher.Defer(PatchJumpTarget, jumpIdx, 1, "loop_start")
	patcher.RecordLabel("loop_start", 5)

	calleeEntry := prog.Emit(Instruction{Kind: OpReturn})
	prog.Functions = append(prog.Functions, &Function{Name: "callee", EntryIndex: calleeEntry})

	unresolved := patcher.Resolve(prog)
	if len(unresolved) != 0 {
		t.Fatalf("expected every patch to resolve, got %d unresolved", len(unresolved))
	}
	if prog.Instructions[callIdx].Op1 != int32(calleeEntry) {
		t.Fatalf("call target should patch to callee's entry index, got %d", prog.Instructions[callIdx].Op1)
	}
	if prog.Instructions[jumpIdx].Op1 != 5 {
		t.Fatalf("jump target should patch to the label's instruction index, got %d", prog.Instructions[jumpIdx].Op1)
	}
}

func TestPatcherReportsUnresolvedReference(t *testing.T) {
	prog := NewProgram()
	idx := prog.Emit(Instruction{Kind: OpCallFunction})
	patcher := NewPatcher()
	patcher.Defer(PatchCallTarget, idx, 1, "never_defined")

	unresolved := patcher.Resolve(prog)
	if len(unresolved) != 1 {
		t.Fatalf("expected exactly one unresolved entry, got %d", len(unresolved))
	}
}
