package sema

import (
	"upp/internal/ast"
	"upp/internal/depanalysis"
	"upp/internal/types"
)

// analyseStruct resolves a struct definition's members and, when it
// declares a union tag, its tagged-union subtype chain. The struct's
// Symbol is promoted to TypeSym with an unfinished Type before any
// dependency is awaited, so a self-referential member behind a
// pointer (MemberReference, only RequireExists) can resolve
// immediately instead of deadlocking on its own completion.
func (c *checker) analyseStruct() error {
	def := c.item.Node.(*ast.Definition)
	table := c.item.Table

	base := c.data.Types.BeginStruct(def.Name)
	if c.item.Symbol != nil {
		c.item.Symbol.Kind = depanalysis.TypeSym
		c.item.Symbol.ResolvedType = base
	}

	c.resolveDeps()

	members := make([]types.Member, len(def.Fields))
	discriminant := -1
	for i, f := range def.Fields {
		name := f.Name
		members[i] = types.Member{Name: &name, Type: c.resolveType(f.Type, table)}
		if def.UnionTag != "" && f.Name == def.UnionTag {
			discriminant = i
		}
	}
	c.data.Types.FinishStruct(base, members)

	c.data.registerCallable(def.Name, structInitCallable(def.Name, members, base))

	if def.UnionTag == "" || len(def.Subtypes) == 0 {
		return nil
	}

	subtypes := make([]*types.Type, len(def.Subtypes))
	for i, v := range def.Subtypes {
		sub := c.data.Types.Subtype(base, []int{i})
		subtypes[i] = sub
		extra := make([]types.Member, len(v.Fields))
		for j, f := range v.Fields {
			name := f.Name
			extra[j] = types.Member{Name: &name, Type: c.resolveType(f.Type, table), SubtypeTag: i}
		}
		c.data.Types.FinishSubtype(sub, extra)
		c.data.setVariantFields(sub, extra)
		c.data.registerCallable(def.Name+"."+v.Tag, structInitCallable(def.Name+"."+v.Tag, append(append([]types.Member{}, members...), extra...), sub))
	}
	c.data.Types.MakeUnion(base, discriminant, subtypes)
	return nil
}

func structInitCallable(name string, members []types.Member, result *types.Type) *Callable {
	params := make([]Param, len(members))
	for i, m := range members {
		n := ""
		if m.Name != nil {
			n = *m.Name
		}
		params[i] = Param{Name: n, Type: m.Type, Required: true, NamedOnly: true}
	}
	return &Callable{Kind: CallableStructInit, Name: name, Params: params, Return: result}
}
