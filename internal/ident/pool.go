// Package ident implements the compiler's identifier pool: interned,
// immutable strings shared across the whole compilation so that two
// identifiers with equal text always compare equal by address.
package ident

import "sync"

// Ident is an interned identifier. Two Idents are the same identifier
// iff they are the same pointer; callers must never compare by the
// Name field for identity, only for display.
type Ident struct {
	Name string
	id   uint32
}

// ID returns a small stable integer for this identifier, convenient as
// a map key or slice index when a pointer comparison isn't wanted.
func (i *Ident) ID() uint32 { return i.id }

func (i *Ident) String() string { return i.Name }

// Pool interns identifiers. The zero value is not usable; use New.
//
// The embedded mutex exists solely because an external component (the
// C-header importer, out of scope for this repo) runs as an embedded
// collaborator that may add identifiers while analysis is otherwise
// single-threaded. In a pure single-threaded build the lock is
// uncontended and cheap, never a no-op shim; we keep a real
// sync.RWMutex rather than special-casing it away.
type Pool struct {
	mu      sync.RWMutex
	byName  map[string]*Ident
	entries []*Ident
}

// New creates an empty identifier pool.
func New() *Pool {
	return &Pool{byName: make(map[string]*Ident, 1024)}
}

// Intern returns the canonical *Ident for name, allocating it on first
// use. Repeated calls with equal text return the identical pointer.
func (p *Pool) Intern(name string) *Ident {
	p.mu.RLock()
	if id, ok := p.byName[name]; ok {
		p.mu.RUnlock()
		return id
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	if id, ok := p.byName[name]; ok {
		return id
	}
	id := &Ident{Name: name, id: uint32(len(p.entries))}
	p.entries = append(p.entries, id)
	p.byName[name] = id
	return id
}

// Lookup returns the interned Ident for name without allocating, and
// reports whether it has been interned before.
func (p *Pool) Lookup(name string) (*Ident, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	id, ok := p.byName[name]
	return id, ok
}

// Len reports how many distinct identifiers have been interned.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries)
}

// ByID returns the identifier with the given stable ID. Panics if the
// ID was never issued by this pool: an invariant violation, not a
// user-diagnosable error.
func (p *Pool) ByID(id uint32) *Ident {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.entries[id]
}
