// Package bake implements sema.BakeRunner: it lowers one bake block's
// already-checked body into a standalone bytecode program via
// internal/irgen and internal/bcgen, runs it on internal/interp, and
// turns the entry function's own return value into a sema.ConstValue.
//
// Results are memoized in an on-disk cache keyed by a blake2b content
// hash of the block's compiled bytecode and result type, so a bake
// whose value is reused across compiles yields the same bytes without
// re-execution.
package bake

import (
	"database/sql"
	"fmt"

	"golang.org/x/crypto/blake2b"
	_ "modernc.org/sqlite"

	"upp/internal/ast"
	"upp/internal/bcgen"
	"upp/internal/bytecode"
	"upp/internal/interp"
	"upp/internal/irgen"
	"upp/internal/sema"
)

// Runner is the driver-owned implementation of sema.BakeRunner.
type Runner struct {
	data  *sema.Data
	cache *cache
}

// NewRunner builds a Runner over d. db may be nil, in which case every
// bake block is re-executed every time it is reached (no persistence).
func NewRunner(d *sema.Data, db *sql.DB) (*Runner, error) {
	r := &Runner{data: d}
	if db != nil {
		c, err := newCache(db)
		if err != nil {
			return nil, err
		}
		r.cache = c
	}
	return r, nil
}

// RunBake implements sema.BakeRunner.
func (r *Runner) RunBake(def *ast.Definition, sig *sema.Callable, info *sema.PassInfo) (*sema.ConstValue, error) {
	if def.BakeBody == nil {
		return &sema.ConstValue{Type: sig.Return}, nil
	}

	prog, err := irgen.GenerateBakeFunction(r.data, sig, info, def.BakeBody)
	if err != nil {
		return nil, fmt.Errorf("bake: lowering %s: %w", def.Name, err)
	}
	bc, err := bcgen.Generate(prog, r.data.Types)
	if err != nil {
		return nil, fmt.Errorf("bake: generating bytecode for %s: %w", def.Name, err)
	}

	key := cacheKey(sig, bc)
	if r.cache != nil {
		if v, ok, err := r.cache.lookup(key, r.data.Types); err == nil && ok {
			return v, nil
		}
	}

	m := interp.NewMachine(bc, nil, nil)
	exit, err := m.RunFunction(def.Name)
	if err != nil {
		return nil, fmt.Errorf("bake: running %s: %w", def.Name, err)
	}
	if exit.Kind != interp.ExitSuccess {
		return nil, fmt.Errorf("bake: %s did not complete successfully: %s", def.Name, exit)
	}

	result := &sema.ConstValue{Type: sig.Return, Bytes: m.EntryResult()}
	if r.cache != nil {
		if err := r.cache.store(key, sig.Return.Handle, result.Bytes); err != nil {
			return nil, fmt.Errorf("bake: caching %s: %w", def.Name, err)
		}
	}
	return result, nil
}

// cacheKey is a content hash of the block's compiled form: its result
// type plus every lowered instruction and the constant bytes they
// reference. A byte-identical block hits across compiles regardless
// of where it sits in the file, and any edit that changes the block's
// meaning changes the bytecode and misses. Execution is the expensive
// part of a bake, so hashing after lowering still saves the work that
// matters.
func cacheKey(sig *sema.Callable, bc *bytecode.Program) string {
	h, _ := blake2b.New256(nil)
	fmt.Fprintf(h, "%s:%s", sig.Name, sig.Return)
	for _, in := range bc.Instructions {
		fmt.Fprintf(h, "|%d,%d,%d,%d,%d", in.Kind, in.Op1, in.Op2, in.Op3, in.Op4)
	}
	h.Write(bc.ConstantBytes)
	return fmt.Sprintf("%x", h.Sum(nil))
}
