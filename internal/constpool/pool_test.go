package constpool

import (
	"testing"

	"upp/internal/types"
)

func TestDeduplication(t *testing.T) {
	reg := types.NewRegistry()
	i32 := reg.Prim(types.Int32)
	p := New()
	h1 := p.Insert(i32, EncodeInt32(42))
	h2 := p.Insert(i32, EncodeInt32(42))
	if h1 != h2 {
		t.Fatalf("equal (type,bytes) insertions returned different handles: %v vs %v", h1, h2)
	}
	h3 := p.Insert(i32, EncodeInt32(43))
	if h3 == h1 {
		t.Fatalf("distinct bytes collapsed to the same handle")
	}
	if p.Len() != 2 {
		t.Fatalf("expected 2 distinct entries, got %d", p.Len())
	}
}

func TestDifferentTypesSameBytesDistinct(t *testing.T) {
	reg := types.NewRegistry()
	i32 := reg.Prim(types.Int32)
	u32 := reg.Prim(types.Uint32)
	p := New()
	h1 := p.Insert(i32, EncodeInt32(1))
	h2 := p.Insert(u32, EncodeInt32(1))
	if h1 == h2 {
		t.Fatalf("same bytes under different types must not dedupe together")
	}
}
