package sema

import (
	"fmt"
	"sort"
	"strings"

	"upp/internal/ast"
	"upp/internal/types"
)

// polyInstance is one concrete instanciation of a polymorphic Callable:
// the pattern-variable bindings a particular call site produced,
// substituted through the parameter/return positions that named them.
// Data.Instances exports each one as an Instantiation, which
// internal/irgen consumes to generate one specialized function body per
// distinct PolyKey, rather than one per call site.
type polyInstance struct {
	PolyKey  string
	Callable *Callable
	Params   []*types.Type
	Return   *types.Type
	Comptime map[int]*ConstValue
}

// instanciate resolves callable against bindings (the pattern-variable
// name -> concrete type map a call's argument matching produced) and
// comptime (the constant values bound to comptime parameters),
// memoizing by a key built from the callable's identity, the bound
// types, and the comptime bytes so repeated calls with the same
// concrete values share one instance. Concurrent fibers requesting
// the same key collapse onto a single build via the Data's
// singleflight group.
func (c *checker) instanciate(callable *Callable, bindings map[string]*types.Type, comptime map[int]*ConstValue) *polyInstance {
	key := polyKey(callable, bindings, comptime)

	c.data.mu.Lock()
	if inst, ok := c.data.instances[key]; ok {
		c.data.mu.Unlock()
		return inst
	}
	c.data.mu.Unlock()

	v, _, _ := c.data.instGroup.Do(key, func() (interface{}, error) {
		c.data.mu.Lock()
		if inst, ok := c.data.instances[key]; ok {
			c.data.mu.Unlock()
			return inst, nil
		}
		c.data.mu.Unlock()

		inst := &polyInstance{PolyKey: key, Callable: callable, Params: make([]*types.Type, len(callable.Params)), Comptime: comptime}
		for i, p := range callable.Params {
			switch {
			case p.PatternVar:
				inst.Params[i] = c.data.Types.Prim(types.TypeHandleKind)
			case p.PatternVarName != "":
				inst.Params[i] = bindings[p.PatternVarName]
			default:
				inst.Params[i] = p.Type
			}
		}
		if callable.ReturnPatternVar != "" {
			inst.Return = bindings[callable.ReturnPatternVar]
		} else {
			inst.Return = callable.Return
		}

		c.data.mu.Lock()
		c.data.instances[key] = inst
		c.data.mu.Unlock()
		return inst, nil
	})
	return v.(*polyInstance)
}

// Instantiation is one exported, resolved polymorphic instanciation:
// the concrete parameter/return types a call site's argument matching
// bound, paired with the Callable they specialise. internal/irgen
// consumes this to generate one specialized ir.Function per distinct
// Key, rather than one per call site.
type Instantiation struct {
	Key      string
	Callable *Callable
	Params   []*types.Type
	Return   *types.Type
	Comptime map[int]*ConstValue
}

// Instances returns every polymorphic instanciation recorded so far,
// sorted by key so generated output doesn't depend on map iteration or
// fiber-scheduling order.
func (d *Data) Instances() []*Instantiation {
	d.mu.Lock()
	keys := make([]string, 0, len(d.instances))
	for k := range d.instances {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]*Instantiation, len(keys))
	for i, k := range keys {
		inst := d.instances[k]
		out[i] = &Instantiation{Key: inst.PolyKey, Callable: inst.Callable, Params: inst.Params, Return: inst.Return, Comptime: inst.Comptime}
	}
	d.mu.Unlock()
	return out
}

// InstantiateBody re-runs the defining function body's checker against
// inst's concrete bindings, producing a fresh PassInfo keyed by a new
// Pass on the body item. It must only be called once every item the
// scheduler knows about has finished: the body's own Deps are assumed
// already satisfied, so the checker it runs never actually suspends
// despite carrying a nil Yield.
func (d *Data) InstantiateBody(inst *Instantiation) *PassInfo {
	header := inst.Callable.Item
	if header == nil || len(header.Children) == 0 {
		return newPassInfo()
	}
	bodyItem := header.Children[0]
	pass := bodyItem.NewPass(inst.Key)
	info := d.Info(pass)

	c := &checker{data: d, item: bodyItem, pass: pass, info: info}
	c.patternVars = map[string]bool{}
	for i, p := range inst.Callable.Params {
		if p.PatternVar || p.PatternVarName != "" {
			c.patternVars[p.Name] = true
			_ = i
		}
	}

	scope := newLocalScope(nil, bodyItem.Table)
	for i, p := range inst.Callable.Params {
		switch {
		case p.PatternVar:
			// bound to a Type value, not an ordinary local.
		case p.PatternVarName != "":
			scope.define(p.Name, inst.Params[i], false)
		default:
			scope.define(p.Name, p.Type, false)
		}
	}
	c.retType = inst.Return

	if body, ok := bodyItem.Node.(*ast.CodeBlock); ok && body != nil {
		c.checkBlock(body, scope)
	}
	return info
}

// polyKey builds a deterministic instanciation key from a callable's
// name, its bound pattern-variable types (sorted by variable name),
// and its comptime argument bytes (sorted by parameter index), so
// neither binding order nor map iteration affects the key.
func polyKey(callable *Callable, bindings map[string]*types.Type, comptime map[int]*ConstValue) string {
	names := make([]string, 0, len(bindings))
	for n := range bindings {
		names = append(names, n)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(callable.Name)
	for _, n := range names {
		b.WriteByte('|')
		b.WriteString(n)
		b.WriteByte('=')
		b.WriteString(bindings[n].String())
	}

	idxs := make([]int, 0, len(comptime))
	for i := range comptime {
		idxs = append(idxs, i)
	}
	sort.Ints(idxs)
	for _, i := range idxs {
		fmt.Fprintf(&b, "|#%d=%x", i, comptime[i].Bytes)
	}
	return b.String()
}
