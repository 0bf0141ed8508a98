package ident

import "testing"

func TestInternIdentity(t *testing.T) {
	p := New()
	a := p.Intern("foo")
	b := p.Intern("foo")
	if a != b {
		t.Fatalf("Intern(\"foo\") returned distinct pointers: %p != %p", a, b)
	}
	c := p.Intern("bar")
	if a == c {
		t.Fatalf("distinct names interned to the same pointer")
	}
}

func TestLookupMiss(t *testing.T) {
	p := New()
	if _, ok := p.Lookup("nope"); ok {
		t.Fatalf("Lookup found an identifier that was never interned")
	}
	p.Intern("nope")
	if _, ok := p.Lookup("nope"); !ok {
		t.Fatalf("Lookup missed an identifier that was interned")
	}
}

func TestByID(t *testing.T) {
	p := New()
	a := p.Intern("alpha")
	b := p.Intern("beta")
	if p.ByID(a.ID()) != a || p.ByID(b.ID()) != b {
		t.Fatalf("ByID did not round-trip")
	}
}
