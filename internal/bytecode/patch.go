package bytecode

import "golang.org/x/exp/slices"

// PatchKind discriminates what a forward reference ultimately resolves
// to: a call to a function not yet lowered, a goto to a
// label later in the stream, or a function-pointer load.
type PatchKind int

const (
	PatchCallTarget PatchKind = iota
	PatchJumpTarget
	PatchFunctionAddress
)

// PatchEntry is one forward reference recorded while a function body
// is lowered out of order; Resolve fills every entry's operand once
// every function has been lowered, letting partial programs (e.g.
// bakes) be compiled incrementally.
type PatchEntry struct {
	Kind PatchKind

	// InstrIndex is the instruction whose operand needs patching, and
	// Operand selects which of its four operand slots.
	InstrIndex int
	Operand    int

	TargetFunction string // PatchCallTarget / PatchFunctionAddress
	TargetLabel    string // PatchJumpTarget
}

// Patcher accumulates PatchEntry records during lowering and resolves
// them in one dedicated pass afterward.
type Patcher struct {
	entries []PatchEntry
	labels  map[string]int // label name -> resolved instruction index, filled as lowering discovers OpLabel sites
}

func NewPatcher() *Patcher {
	return &Patcher{labels: make(map[string]int)}
}

func (p *Patcher) RecordLabel(name string, instrIndex int) {
	p.labels[name] = instrIndex
}

func (p *Patcher) Defer(kind PatchKind, instrIndex, operand int, target string) {
	p.entries = append(p.entries, PatchEntry{
		Kind: kind, InstrIndex: instrIndex, Operand: operand,
		TargetFunction: target, TargetLabel: target,
	})
}

// Resolve fills every deferred operand now that prog's functions and
// labels are all known. It returns the entries it could not resolve
// (an unknown call target or label: an internal invariant violation,
// not a user diagnostic, since the semantic analyser already verified
// every reference resolves before IR generation ran).
func (p *Patcher) Resolve(prog *Program) []PatchEntry {
	byName := make(map[string]*Function, len(prog.Functions))
	for _, f := range prog.Functions {
		byName[f.Name] = f
	}

	var unresolved []PatchEntry
	// Sort for deterministic patch application order, helpful when a
	// test dumps the instruction stream and expects stable output.
	entries := append([]PatchEntry(nil), p.entries...)
	slices.SortFunc(entries, func(a, b PatchEntry) int { return a.InstrIndex - b.InstrIndex })

	for _, e := range entries {
		var value int32
		switch e.Kind {
		case PatchCallTarget, PatchFunctionAddress:
			fn, ok := byName[e.TargetFunction]
			if !ok {
				unresolved = append(unresolved, e)
				continue
			}
			value = int32(fn.EntryIndex)
		case PatchJumpTarget:
			idx, ok := p.labels[e.TargetLabel]
			if !ok {
				unresolved = append(unresolved, e)
				continue
			}
			value = int32(idx)
		}
		setOperand(&prog.Instructions[e.InstrIndex], e.Operand, value)
	}
	return unresolved
}

func setOperand(ins *Instruction, slot int, v int32) {
	switch slot {
	case 1:
		ins.Op1 = v
	case 2:
		ins.Op2 = v
	case 3:
		ins.Op3 = v
	default:
		ins.Op4 = v
	}
}
