package irgen

import (
	"upp/internal/ast"
	"upp/internal/depanalysis"
	"upp/internal/ir"
	"upp/internal/sema"
)

// GenerateBakeFunction lowers one bake block's already-checked body
// into a standalone, zero-argument *ir.Program containing just that
// one function. A bake body runs at compile time through its own
// isolated irgen/bcgen/interp pipeline (see internal/bake) before the
// rest of the module is generated, so, unlike Generate's two-pass
// whole-module walk, it only needs to resolve hardcoded intrinsics
// and its own locals. Calling another user-defined function from a
// bake block is not supported; bake usage is meta-programming over
// types and constants rather than arbitrary module-to-module calls.
func GenerateBakeFunction(d *sema.Data, sig *sema.Callable, info *sema.PassInfo, body *ast.CodeBlock) (*ir.Program, error) {
	prog := &ir.Program{Consts: d.Consts}
	g := &generator{data: d, reg: d.Types, prog: prog, funcsByName: map[string]*ir.Function{}}

	fn := g.buildFunction(sig.Name, sig, nil, nil)
	g.funcsByName[fn.Name] = fn

	bodyItem := &depanalysis.Item{Node: body}
	if err := g.lowerBody(fn, sig, info, bodyItem); err != nil {
		return nil, err
	}
	prog.AddFunction(fn)
	return prog, nil
}
