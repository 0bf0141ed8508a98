package ir

import (
	"testing"

	"upp/internal/types"
)

func TestAddressOfDereferenceCancel(t *testing.T) {
	reg := types.NewRegistry()
	b := NewBlock(nil)
	x := b.NewRegister("x", reg.Prim(types.Int32))

	addrOfDeref := AddressOf(Dereference(x), reg.Pointer(reg.Prim(types.Int32)))
	if addrOfDeref != x {
		t.Fatalf("address-of(dereference(x)) must equal x by construction")
	}

	ptrType := reg.Pointer(reg.Prim(types.Int32))
	p := b.NewRegister("p", ptrType)
	derefAddrOf := Dereference(AddressOf(p, reg.Pointer(ptrType)))
	if derefAddrOf != p {
		t.Fatalf("dereference(address-of(x)) must equal x by construction")
	}
}

func TestMemberAndArrayElementAreProjections(t *testing.T) {
	reg := types.NewRegistry()
	i32 := reg.Prim(types.Int32)
	st := reg.BeginStruct("Point")
	reg.FinishStruct(st, []types.Member{{Type: i32}, {Type: i32}})

	b := NewBlock(nil)
	v := b.NewRegister("v", st)
	m := Member(v, 1, i32)
	if m.Kind != AccessMember || m.Inner != v || m.MemberIdx != 1 {
		t.Fatalf("Member should be a projection over its operand, got %+v", m)
	}

	idx := ConstantAccess(0, i32)
	elem := ArrayElement(v, idx, i32)
	if elem.Kind != AccessArrayElement || elem.Index != idx {
		t.Fatalf("ArrayElement should carry its index access, got %+v", elem)
	}
}
