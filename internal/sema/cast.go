package sema

import "upp/internal/types"

// castRule is one entry in the cast matrix: whether the cast is
// reachable at all, and whether it is reachable implicitly (inserted
// automatically at a call/assignment boundary) or only when the
// source writes an explicit cast.
type castRule struct {
	Kind     CastKind
	Implicit bool
}

// findCast looks up how to get from `from` to `to`, trying same-type
// first. ok is false when no cast, implicit or explicit, connects
// the two types.
func findCast(reg *types.Registry, from, to *types.Type) (castRule, bool) {
	if from == to || (from != nil && to != nil && from.Kind == to.Kind && sameStruct(from, to)) {
		return castRule{Kind: CastNone, Implicit: true}, true
	}
	if from == nil || to == nil {
		return castRule{}, false
	}

	switch {
	case isInt(from.Kind) && isInt(to.Kind):
		return intCast(from, to), true

	case from.Kind == types.Enum && isInt(to.Kind):
		return castRule{Kind: CastEnumToInt, Implicit: true}, true
	case isInt(from.Kind) && to.Kind == types.Enum:
		return castRule{Kind: CastIntToEnum, Implicit: false}, true

	case from.Kind == types.Array && to.Kind == types.Slice && sameType(from.Elem, to.Elem):
		return castRule{Kind: CastArrayToSlice, Implicit: true}, true

	case to.Kind == types.Optional && to.Elem != nil && sameType(from, to.Elem):
		return castRule{Kind: CastValueToOptional, Implicit: true}, true
	// null literal -> any optional is handled by the caller recognising
	// LitNull directly, not through this matrix.

	case from.Kind == types.Any && to.Kind != types.Any:
		return castRule{Kind: CastAnyToConcrete, Implicit: false}, true
	case from.Kind != types.Any && to.Kind == types.Any:
		return castRule{Kind: CastValueToAny, Implicit: true}, true

	case from.Kind == types.Pointer && to.Kind == types.Pointer:
		if sameType(from.Elem, to.Elem) {
			return castRule{Kind: CastNone, Implicit: true}, true
		}
		if to.Elem.Kind == types.Void {
			return castRule{Kind: CastPointerToPointer, Implicit: true}, true
		}
		return castRule{Kind: CastPointerToPointer, Implicit: false}, true

	case from.Kind == types.Pointer && to.Kind == types.Address:
		return castRule{Kind: CastPointerAddress, Implicit: false}, true
	case from.Kind == types.Address && to.Kind == types.Pointer:
		return castRule{Kind: CastPointerAddress, Implicit: false}, true

	case from.Kind == types.Struct && to.Kind == types.Struct && sameBaseStruct(from, to):
		if isSubtypePrefix(from.SubtypeIndex, to.SubtypeIndex) {
			return castRule{Kind: CastSubtypeUpcast, Implicit: true}, true
		}
		if isSubtypePrefix(to.SubtypeIndex, from.SubtypeIndex) {
			return castRule{Kind: CastSubtypeDowncast, Implicit: false}, true
		}

	case from.Kind == types.Float32 && to.Kind == types.Float64:
		return castRule{Kind: CastFloatWidth, Implicit: true}, true
	case from.Kind == types.Float64 && to.Kind == types.Float32:
		return castRule{Kind: CastFloatWidth, Implicit: false}, true

	case isFloat(from.Kind) && isInt(to.Kind):
		return castRule{Kind: CastFloatToInt, Implicit: false}, true
	case isInt(from.Kind) && isFloat(to.Kind):
		return castRule{Kind: CastIntToFloat, Implicit: false}, true
	}
	return castRule{}, false
}

func intCast(from, to *types.Type) castRule {
	fw, fs := intWidth(from.Kind), isSignedInt(from.Kind)
	tw, ts := intWidth(to.Kind), isSignedInt(to.Kind)
	switch {
	case fs == ts && fw < tw:
		return castRule{Kind: CastIntWiden, Implicit: true}
	case fs == ts && fw > tw:
		return castRule{Kind: CastIntNarrow, Implicit: false}
	case fs == ts && fw == tw:
		return castRule{Kind: CastNone, Implicit: true}
	default:
		return castRule{Kind: CastIntSignedUnsigned, Implicit: false}
	}
}

func isInt(k types.Kind) bool {
	switch k {
	case types.Int8, types.Int16, types.Int32, types.Int64,
		types.Uint8, types.Uint16, types.Uint32, types.Uint64:
		return true
	}
	return false
}

func isFloat(k types.Kind) bool { return k == types.Float32 || k == types.Float64 }

func isSignedInt(k types.Kind) bool {
	switch k {
	case types.Int8, types.Int16, types.Int32, types.Int64:
		return true
	}
	return false
}

func intWidth(k types.Kind) int {
	switch k {
	case types.Int8, types.Uint8:
		return 8
	case types.Int16, types.Uint16:
		return 16
	case types.Int32, types.Uint32:
		return 32
	default:
		return 64
	}
}

func sameType(a, b *types.Type) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.String() == b.String()
}

func sameStruct(a, b *types.Type) bool { return a.Kind == types.Struct && sameBaseStruct(a, b) }

func sameBaseStruct(a, b *types.Type) bool {
	return a.Struct != nil && b.Struct != nil && a.Struct == b.Struct
}

func isSubtypePrefix(short, long []int) bool {
	if len(short) > len(long) {
		return false
	}
	for i, v := range short {
		if long[i] != v {
			return false
		}
	}
	return true
}

// tryImplicitCast reports whether value of type from may flow into a
// position of type to without a source-level cast, and if so what IR
// cast (if any) the assignment needs.
func tryImplicitCast(reg *types.Registry, from, to *types.Type) (CastKind, bool) {
	rule, ok := findCast(reg, from, to)
	if !ok || !rule.Implicit {
		return CastNone, false
	}
	return rule.Kind, true
}

// tryExplicitCast reports whether a `cast(to) value` expression is
// reachable; implicit casts are always also reachable explicitly.
func tryExplicitCast(reg *types.Registry, from, to *types.Type) (CastKind, bool) {
	rule, ok := findCast(reg, from, to)
	if !ok {
		return CastNone, false
	}
	return rule.Kind, true
}
