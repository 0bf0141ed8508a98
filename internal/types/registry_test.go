package types

import "testing"

func TestPrimitiveLayout(t *testing.T) {
	r := NewRegistry()
	i32 := r.Prim(Int32)
	if !i32.Finished() || i32.Size() != 4 || i32.Align() != 4 {
		t.Fatalf("i32 layout wrong: size=%d align=%d finished=%v", i32.size, i32.align, i32.finished)
	}
}

func TestPointerInterning(t *testing.T) {
	r := NewRegistry()
	i32 := r.Prim(Int32)
	p1 := r.Pointer(i32)
	p2 := r.Pointer(i32)
	if p1 != p2 {
		t.Fatalf("Pointer(i32) returned distinct types: %p vs %p", p1, p2)
	}
	if p1.Handle != p2.Handle {
		t.Fatalf("equal (type,bytes)... equal types must share a handle")
	}
}

func TestOptionalOfPointerAliasesRepresentation(t *testing.T) {
	r := NewRegistry()
	i32 := r.Prim(Int32)
	p := r.Pointer(i32)
	opt := r.Optional(p)
	if !opt.IsOptionalOfPointer() {
		t.Fatalf("expected IsOptionalOfPointer")
	}
	if opt.Size() != p.Size() || opt.Align() != p.Align() {
		t.Fatalf("optional-of-pointer must share representation with the pointer")
	}
}

func TestStructLayoutAlignment(t *testing.T) {
	r := NewRegistry()
	i8 := r.Prim(Int8)
	i64 := r.Prim(Int64)
	st := r.BeginStruct("Pair")
	name1, name2 := "a", "b"
	r.FinishStruct(st, []Member{
		{Name: &name1, Type: i8},
		{Name: &name2, Type: i64},
	})
	if !st.Finished() {
		t.Fatalf("struct did not finish")
	}
	if st.MemberOffset(0) != 0 || st.MemberOffset(1) != 8 {
		t.Fatalf("expected padding before the i64 member, got offsets %d,%d", st.MemberOffset(0), st.MemberOffset(1))
	}
	if st.Size() != 16 {
		t.Fatalf("expected size 16 (padded to align 8), got %d", st.Size())
	}
	if st.Size()%st.Align() != 0 {
		t.Fatalf("align must divide size for aggregates")
	}
}

func TestArrayUnknownCountStaysUnfinished(t *testing.T) {
	r := NewRegistry()
	i32 := r.Prim(Int32)
	arr := r.Array(i32, UnknownCount)
	if arr.Finished() {
		t.Fatalf("array with unknown count must stay unfinished")
	}
}
