package sema

import (
	"upp/internal/ast"
	"upp/internal/bytecode"
	"upp/internal/depanalysis"
	"upp/internal/diag"
	"upp/internal/types"
)

// checkCall resolves a call's callee, a hardcoded intrinsic, a
// (possibly overloaded, possibly polymorphic) named function, a
// struct initialiser, or an indirect call through a function-pointer
// value, and type-checks its arguments against the chosen Callable.
func (c *checker) checkCall(ce *ast.CallExpr, table *depanalysis.SymbolTable, scope *localScope) *ExprInfo {
	if path, ok := ce.Callee.(*ast.PathExpr); ok && len(path.Segments) == 1 {
		name := path.Segments[0]
		_, isLocal := scope.lookup(name)
		_, isUserSymbol := table.Lookup(name, c.item)
		if !isLocal && !isUserSymbol && bytecode.HardcodedCodeByName(name) != hcUnknownLocal {
			return c.checkHardcodedCall(ce, name, table, scope)
		}
		if candidates := c.data.lookupCallables(name); len(candidates) > 0 {
			return c.resolveOverloadedCall(ce, name, candidates, table, scope)
		}
	}

	// Indirect call through a function-pointer-valued expression.
	calleeInfo := c.checkExpr(ce.Callee, table, scope)
	args := make([]*ExprInfo, len(ce.Args))
	for i, a := range ce.Args {
		args[i] = c.checkExpr(a.Value, table, scope)
	}
	if calleeInfo.Type.Kind != types.FunctionPointer {
		return &ExprInfo{Type: typeError(c, ce.NodeRange(), "%s is not callable", calleeInfo.Type)}
	}
	for i, a := range args {
		if i < len(calleeInfo.Type.Params) {
			if kind, ok := c.implicitCast(a.Type, calleeInfo.Type.Params[i]); ok {
				a.Cast = kind
			}
		}
	}
	return &ExprInfo{Type: calleeInfo.Type.Return, Call: &CallableCall{Callee: &Callable{Kind: CallableFunctionPointer, Return: calleeInfo.Type.Return}}}
}

// hcUnknownLocal mirrors bytecode.hcUnknown (unexported there) so this
// package can recognise "not a hardcoded name" without needing the
// package to export its sentinel; any code other than a registered
// one means no match.
var hcUnknownLocal = bytecode.HardcodedCodeByName("\x00unknown\x00")

func (c *checker) checkHardcodedCall(ce *ast.CallExpr, name string, table *depanalysis.SymbolTable, scope *localScope) *ExprInfo {
	argInfos := make([]*ExprInfo, len(ce.Args))
	for i, a := range ce.Args {
		argInfos[i] = c.checkExpr(a.Value, table, scope)
	}
	callable := &Callable{Kind: CallableHardcoded, Name: name, Hardcoded: name, Return: hardcodedReturnType(c.data.Types, name, argInfos)}
	argToParam := make([]int, len(argInfos))
	for i := range argToParam {
		argToParam[i] = i
	}
	return &ExprInfo{Type: callable.Return, Call: &CallableCall{Callee: callable, ArgToParam: argToParam}}
}

// hardcodedReturnType special-cases the few hardcoded functions whose
// return type isn't a fixed primitive.
func hardcodedReturnType(reg *types.Registry, name string, args []*ExprInfo) *types.Type {
	switch name {
	case "size_of", "align_of":
		return reg.Prim(types.Int64)
	case "type_of":
		return reg.Prim(types.TypeHandleKind)
	case "type_info":
		return reg.Prim(types.Any)
	case "struct_tag":
		return reg.Prim(types.Int32)
	case "system_alloc":
		return reg.Pointer(reg.Prim(types.Uint8))
	case "memory_compare":
		return reg.Prim(types.Int32)
	case "print_i32", "print_i64", "print_f32", "print_f64", "print_string", "print_bool", "print_line",
		"memory_copy", "memory_zero", "system_free", "assert", "panic":
		return reg.Prim(types.Void)
	case "read_i32":
		return reg.Prim(types.Int32)
	case "read_i64":
		return reg.Prim(types.Int64)
	case "read_f32":
		return reg.Prim(types.Float32)
	case "read_f64":
		return reg.Prim(types.Float64)
	case "read_bool":
		return reg.Prim(types.Bool)
	case "read_line":
		return reg.Slice(reg.Prim(types.Uint8))
	case "random_i32":
		return reg.Prim(types.Int32)
	case "bitwise_and", "bitwise_or", "bitwise_xor", "bitwise_not", "bitwise_shift_left", "bitwise_shift_right":
		if len(args) > 0 {
			return args[0].Type
		}
		return reg.Prim(types.Int32)
	case "return_type":
		return reg.Prim(types.TypeHandleKind)
	default:
		return reg.Prim(types.Void)
	}
}

// resolveOverloadedCall picks the candidate requiring the fewest
// implicit casts across its arguments; a tie in that count goes to the
// candidate with fewer polymorphic parameters (polyParamCount), and only
// a tie on both is an ambiguous-call diagnostic.
func (c *checker) resolveOverloadedCall(ce *ast.CallExpr, name string, candidates []*Callable, table *depanalysis.SymbolTable, scope *localScope) *ExprInfo {
	argInfos := make([]*ExprInfo, len(ce.Args))
	argNames := make([]string, len(ce.Args))
	for i, a := range ce.Args {
		argInfos[i] = c.checkExpr(a.Value, table, scope)
		argNames[i] = a.Name
	}

	type scored struct {
		callable   *Callable
		casts      []CastKind
		bindings   map[string]*types.Type
		comptime   map[int]*ConstValue
		argToParam []int
		cost       int
	}
	var best *scored
	ambiguous := false

	for _, cand := range candidates {
		binding := map[string]*types.Type{}
		comptime := map[int]*ConstValue{}
		argToParam := make([]int, len(argInfos))
		casts := make([]CastKind, len(argInfos))
		cost := 0
		ok := true
		for i, argName := range argNames {
			pi := i
			if argName != "" {
				pi = paramIndexByName(cand, argName)
				if pi < 0 {
					ok = false
					break
				}
			}
			if pi >= len(cand.Params) {
				ok = false
				break
			}
			argToParam[i] = pi
			p := cand.Params[pi]
			if p.PatternVar {
				// a $T parameter consumes a type-handle constant and
				// binds T to the type the handle denotes, not to the
				// handle type itself.
				den := c.denotedType(argInfos[i])
				if den == nil {
					ok = false
					break
				}
				if bound, seen := binding[p.Name]; seen && !sameType(bound, den) {
					ok = false
					break
				}
				binding[p.Name] = den
				continue
			}
			if p.Comptime {
				// a comptime parameter's value is fixed at the call
				// site; the argument must fold to a constant.
				cv := argInfos[i].Const
				if cv == nil {
					ok = false
					break
				}
				if p.PatternVarName != "" {
					if bound, seen := binding[p.PatternVarName]; seen && !sameType(bound, argInfos[i].Type) {
						ok = false
						break
					}
					binding[p.PatternVarName] = argInfos[i].Type
				} else if p.Type != nil {
					kind, castOK := c.implicitCast(argInfos[i].Type, p.Type)
					if !castOK {
						ok = false
						break
					}
					casts[i] = kind
					if kind != CastNone {
						cost++
					}
				}
				comptime[pi] = cv
				continue
			}
			if p.PatternVarName != "" {
				if bound, seen := binding[p.PatternVarName]; seen {
					if sameType(bound, argInfos[i].Type) {
						continue
					}
					// a bare literal adapts to the already-bound
					// pattern type (context selects the width).
					if _, isLit := ce.Args[i].Value.(*ast.Literal); isLit {
						if rule, found := findCast(c.data.Types, argInfos[i].Type, bound); found {
							casts[i] = rule.Kind
							continue
						}
					}
					if kind, castOK := c.implicitCast(argInfos[i].Type, bound); castOK {
						casts[i] = kind
						cost++
						continue
					}
					ok = false
					break
				}
				binding[p.PatternVarName] = argInfos[i].Type
				continue
			}
			kind, castOK := c.implicitCast(argInfos[i].Type, p.Type)
			if !castOK {
				ok = false
				break
			}
			casts[i] = kind
			if kind != CastNone {
				cost++
			}
		}
		if !ok {
			continue
		}
		cand2 := &scored{callable: cand, casts: casts, bindings: binding, comptime: comptime, argToParam: argToParam, cost: cost}
		if best == nil || cost < best.cost {
			best = cand2
			ambiguous = false
		} else if cost == best.cost {
			// tie-break on specificity: fewer polymorphic parameters
			// wins, and only a genuine tie is ambiguous.
			bp, cp := polyParamCount(best.callable), polyParamCount(cand)
			switch {
			case cp < bp:
				best = cand2
				ambiguous = false
			case cp > bp:
				// keep best
			default:
				ambiguous = true
			}
		}
	}

	if best == nil {
		return &ExprInfo{Type: typeError(c, ce.NodeRange(), "no overload of %s matches these arguments", name)}
	}
	if ambiguous {
		c.data.Diags.Add(diag.AmbiguousOverload, ce.NodeRange(), "ambiguous call to %s", name)
	}
	for i, k := range best.casts {
		argInfos[i].Cast = k
	}

	callable := best.callable
	ret := callable.Return
	var polyKey string
	if callable.Polymorphic() {
		inst := c.instanciate(callable, best.bindings, best.comptime)
		ret = inst.Return
		polyKey = inst.PolyKey
	}
	return &ExprInfo{Type: ret, Call: &CallableCall{Callee: callable, ArgToParam: best.argToParam, PolyKey: polyKey, PolyArgs: best.bindings, ImplicitCasts: best.cost}}
}

func paramIndexByName(c *Callable, name string) int {
	for i, p := range c.Params {
		if p.Name == name {
			return i
		}
	}
	return -1
}

// polyParamCount counts a callable's polymorphic parameters (pattern
// variables and comptime parameters), the specificity measure used to
// break overload-cost ties.
func polyParamCount(c *Callable) int {
	n := 0
	for _, p := range c.Params {
		if p.PatternVar || p.PatternVarName != "" || p.Comptime {
			n++
		}
	}
	return n
}

// denotedType resolves the registry type a type-handle constant names;
// nil if info isn't a compile-time type value.
func (c *checker) denotedType(info *ExprInfo) *types.Type {
	if info == nil || info.Const == nil || info.Const.Type == nil ||
		info.Const.Type.Kind != types.TypeHandleKind {
		return nil
	}
	return c.data.Types.ByHandle(decodeHandle(info.Const.Bytes))
}

func decodeHandle(b []byte) uint64 {
	var h uint64
	for i := len(b) - 1; i >= 0; i-- {
		h = h<<8 | uint64(b[i])
	}
	return h
}

// isBuiltinName reports whether name resolves without a symbol-table
// entry: a primitive type name, Type/Any, or a hardcoded intrinsic.
func isBuiltinName(name string) bool {
	if _, ok := builtinPrims[name]; ok {
		return true
	}
	if name == "Type" || name == "Any" {
		return true
	}
	return bytecode.HardcodedCodeByName(name) != hcUnknownLocal
}
