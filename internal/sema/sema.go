// Package sema implements the semantic analyser: symbol resolution,
// type inference and checking, the cast matrix, operator and overload
// resolution, polymorphic instanciation, and bake evaluation. It is
// driven one analysis item at a time by internal/scheduler, through
// the Job returned by NewJob; a lookup the analyser cannot yet
// satisfy calls Yield.Await and the fiber suspends there.
package sema

import (
	"sync"

	"golang.org/x/sync/singleflight"

	"upp/internal/ast"
	"upp/internal/constpool"
	"upp/internal/depanalysis"
	"upp/internal/diag"
	"upp/internal/types"
)

// ExprInfo is the resolved semantic info for one expression node: its
// type before and after an inserted cast, the cast itself, and, for
// calls, which Callable was chosen.
type ExprInfo struct {
	InitialType *types.Type
	Type        *types.Type // post-cast type
	Cast        CastKind
	Const       *ConstValue // non-nil if the expression folded to a compile-time constant
	Call        *CallableCall
	Symbol      *depanalysis.Symbol // set for PathExpr / NamedTypeExpr reads
}

// ConstValue is a typed, resolved compile-time value, not yet
// interned into a constpool.Pool (that only happens for a constant
// that generated IR actually needs to reference).
type ConstValue struct {
	Type  *types.Type
	Bytes []byte
}

// CallableCall records one resolved call: the chosen Callable, the
// argument-to-parameter binding, and any polymorphic instanciation
// this call site produced.
type CallableCall struct {
	Callee      *Callable
	ArgToParam  []int // ArgToParam[i] = parameter index argument i binds to
	ImplicitCasts int // implicit-cast count (overload cost) of the chosen candidate
	PolyKey     string // "" unless Callee.Polymorphic
	PolyArgs    map[string]*types.Type // pattern-variable bindings for this instanciation
}

// CallableKind discriminates what sits on the left of a call.
type CallableKind int

const (
	CallableFunction CallableKind = iota
	CallablePolymorphicFunction
	CallableHardcoded
	CallableStructInit
	CallableSliceInit
	CallableFunctionPointer
)

// Param mirrors the call-signature parameter shape: name, type,
// required/named-only/must-not-be-set flags, and, for a polymorphic
// callable, whether it's a comptime or pattern-variable parameter.
type Param struct {
	Name         string
	Type         *types.Type // nil for a pattern-variable ($T) parameter, or one typed by a pattern variable
	Required     bool
	NamedOnly    bool
	MustNotBeSet bool
	Comptime     bool
	// PatternVar marks this parameter as the `$T` declarator itself,
	// the caller binds it to a Type value directly.
	PatternVar bool
	// PatternVarName is set instead, on an ordinary parameter whose
	// declared type is a bare pattern-variable name (e.g. `x: T` where
	// T was declared by a sibling `$T` parameter); its concrete type
	// is inferred from the argument at each call site.
	PatternVarName string
	Default        ast.Expr
}

// Callable is anything that can appear on the left of a call.
type Callable struct {
	Kind   CallableKind
	Name   string
	Params []Param
	Return *types.Type // nil when ReturnPatternVar != ""
	// ReturnPatternVar is set when the declared return type is a bare
	// pattern-variable name rather than a concrete type.
	ReturnPatternVar string
	Item             *depanalysis.Item // defining item, for polymorphic instanciation scheduling
	Def              *ast.Definition
	Hardcoded        string
}

func (c *Callable) Polymorphic() bool { return c.Kind == CallablePolymorphicFunction }

// PassInfo is the rich per-node semantic data for one analysis pass:
// the information a Pass carries beyond the bare (index, poly-key)
// tuple depanalysis.Pass owns, kept out-of-band to avoid an
// ast/sema import cycle back into depanalysis.
type PassInfo struct {
	Exprs    map[ast.Node]*ExprInfo
	VarTypes map[*ast.VarDeclStmt]*types.Type
	// Signature is populated once a function header item's pass
	// resolves its Callable shape.
	Signature *Callable
}

func newPassInfo() *PassInfo {
	return &PassInfo{Exprs: map[ast.Node]*ExprInfo{}, VarTypes: map[*ast.VarDeclStmt]*types.Type{}}
}

// Data is the semantic analyser's whole-compilation state: the type
// registry, constant pool, diagnostics, and the per-pass info table.
type Data struct {
	Types  *types.Registry
	Consts *constpool.Pool
	Diags  *diag.List

	// Ctx is the root module's context-change option set; child
	// modules may chain stricter contexts off it.
	Ctx *Context

	mu    sync.Mutex
	infos map[*depanalysis.Pass]*PassInfo

	// Callables indexes every resolved function and struct initialiser
	// by name for overload lookup; built up as function-header and
	// structure items complete. Hardcoded intrinsics are not listed here.
	callables map[string][]*Callable

	// signatures caches each function definition's resolved Callable,
	// keyed by the defining AST node so a function body's job can find
	// its own header's result without a scheduler round-trip.
	signatures map[*ast.Definition]*Callable

	// bakeResults caches a successful bake block's computed compile-time
	// value, keyed by its defining node, so internal/irgen can intern it
	// into the constant pool at every read site without re-running the
	// bake.
	bakeResults map[*ast.Definition]*ConstValue

	// symTypes holds the resolved type of every non-type symbol
	// (variable, parameter, global, constant, function); depanalysis.
	// Symbol.ResolvedType is reserved for TypeSym per its own contract,
	// so runtime-valued symbols get their type recorded here instead.
	symTypes map[*depanalysis.Symbol]*types.Type

	// variantFields holds each tagged-union subtype's own refinement
	// members; types.Registry.Subtype shares its parent's structInfo
	// wholesale, so the per-variant extra fields have nowhere to live
	// on the Type itself.
	variantFields map[*types.Type][]types.Member

	bake BakeRunner

	// instances memoizes polymorphic instanciations by key (callable
	// name + bound pattern-variable types), so every call site binding
	// the same concrete types shares one instance instead of rebuilding
	// it. instGroup collapses concurrent fibers requesting the same key
	// at once down to a single build.
	instances map[string]*polyInstance
	instGroup singleflight.Group

	// binOverloads holds registered binary-operator overloads,
	// consulted when the builtin operator table misses (see
	// RegisterBinaryOperator).
	binOverloads map[binaryOpKey]*Callable
}

// NewData creates an empty semantic-analysis state.
func NewData(reg *types.Registry, consts *constpool.Pool, diags *diag.List) *Data {
	return &Data{
		Types:     reg,
		Consts:    consts,
		Diags:     diags,
		infos:         map[*depanalysis.Pass]*PassInfo{},
		callables:     map[string][]*Callable{},
		signatures:    map[*ast.Definition]*Callable{},
		bakeResults:   map[*ast.Definition]*ConstValue{},
		symTypes:      map[*depanalysis.Symbol]*types.Type{},
		variantFields: map[*types.Type][]types.Member{},
		instances:     map[string]*polyInstance{},
		Ctx:           NewContext(nil),
	}
}

func (d *Data) setVariantFields(t *types.Type, members []types.Member) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.variantFields[t] = members
}

// VariantFields returns a tagged-union subtype's own refinement
// members, previously recorded by analyseStruct.
func (d *Data) VariantFields(t *types.Type) []types.Member {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.variantFields[t]
}

func (d *Data) setSymbolType(sym *depanalysis.Symbol, t *types.Type) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.symTypes[sym] = t
}

// SymbolType returns the runtime type previously recorded for sym via
// setSymbolType, or nil if none was ever set (e.g. for a TypeSym,
// whose type lives on Symbol.ResolvedType instead).
func (d *Data) SymbolType(sym *depanalysis.Symbol) *types.Type {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.symTypes[sym]
}

// SetSignature records def's resolved Callable. Called once by the
// function-header job after it finishes building the signature.
func (d *Data) SetSignature(def *ast.Definition, c *Callable) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.signatures[def] = c
}

// Signature returns def's previously resolved Callable, or nil if its
// header item hasn't completed yet.
func (d *Data) Signature(def *ast.Definition) *Callable {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.signatures[def]
}

func (d *Data) setBakeResult(def *ast.Definition, v *ConstValue) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.bakeResults[def] = v
}

// BakeResult returns a previously-computed bake block's compile-time
// value, or nil if def hasn't baked successfully (yet, or at all).
func (d *Data) BakeResult(def *ast.Definition) *ConstValue {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.bakeResults[def]
}

// SetBakeRunner wires the compile-time evaluator used by analyseBake.
// Kept settable (not constructor-only) so internal/driver can build
// Data and BakeRunner in either order without an import cycle (the
// runner itself depends on sema.Data to resolve the bake body's types).
func (d *Data) SetBakeRunner(r BakeRunner) { d.bake = r }

// Info returns (creating if necessary) the PassInfo for pass.
func (d *Data) Info(pass *depanalysis.Pass) *PassInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	info, ok := d.infos[pass]
	if !ok {
		info = newPassInfo()
		d.infos[pass] = info
	}
	return info
}

func (d *Data) registerCallable(name string, c *Callable) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.callables[name] = append(d.callables[name], c)
}

func (d *Data) lookupCallables(name string) []*Callable {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Callable(nil), d.callables[name]...)
}

// CastKind is the cast variant an ExprInfo.Cast carries; internal/irgen
// translates it to the matching ir.CastKind when it lowers the cast.
type CastKind int

const (
	CastNone CastKind = iota
	CastIntWiden
	CastIntNarrow
	CastIntSignedUnsigned
	CastEnumToInt
	CastIntToEnum
	CastArrayToSlice
	CastValueToOptional
	CastAnyToConcrete
	CastValueToAny
	CastPointerToPointer
	CastPointerAddress
	CastSubtypeUpcast
	CastSubtypeDowncast
	CastFloatWidth
	CastFloatToInt
	CastIntToFloat
)
