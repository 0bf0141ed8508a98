// Package diag implements the error taxonomy: a Diagnostic carries a
// Kind, a human message, and the source range the
// CLI formatter underlines. Every phase accumulates diagnostics in a
// List rather than returning early; one cause produces one
// diagnostic, and analysis keeps going with the offending node's
// result type set to Unknown.
package diag

import (
	"fmt"
	"sort"

	"upp/internal/ast"
)

// Kind discriminates the diagnostic taxonomy.
type Kind int

const (
	// Lex errors
	IllegalCharacter Kind = iota
	UnterminatedString
	UnterminatedChar
	UnterminatedComment
	MalformedNumber

	// Parse errors
	UnexpectedToken
	MissingCloser
	MissingIdentifier

	// Symbol errors
	DuplicateDefinition
	DependencyCycle
	UnresolvedSymbol

	// Type errors
	TypeMismatch
	NonLvalueAssignment
	ImplicitCastDisallowed
	CallSignatureMismatch
	AmbiguousOverload
	BadMemberAccess
	NoSuchOperator

	// Execution errors (surfaced by the interpreter, not accumulated
	// in a List (see internal/interp.Exit) but sharing this
	// taxonomy so the driver can report both uniformly)
	AssertionFailed
	OutOfBounds
	StackOverflow
	ReturnValueOverflow
	AnyCastFailed
	SwitchCaseMissing
	InstructionLimitExceeded
)

func (k Kind) String() string {
	names := [...]string{
		"illegal-character", "unterminated-string", "unterminated-char",
		"unterminated-comment", "malformed-number",
		"unexpected-token", "missing-closer", "missing-identifier",
		"duplicate-definition", "dependency-cycle", "unresolved-symbol",
		"type-mismatch", "non-lvalue-assignment", "implicit-cast-disallowed",
		"call-signature-mismatch", "ambiguous-overload", "bad-member-access",
		"no-such-operator",
		"assertion-failed", "out-of-bounds", "stack-overflow",
		"return-value-overflow", "any-cast-failed", "switch-case-missing",
		"instruction-limit-exceeded",
	}
	if int(k) < 0 || int(k) >= len(names) {
		return "unknown-diagnostic"
	}
	return names[k]
}

// Diagnostic is one accumulated error record.
type Diagnostic struct {
	Kind    Kind
	Message string
	Range   ast.Range
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s:%d:%d: %s: %s",
		d.Range.Start.File, d.Range.Start.Line, d.Range.Start.Column, d.Kind, d.Message)
}

// List accumulates diagnostics across every phase of one compilation.
// Phases never stop at the first error; they push here and continue.
type List struct {
	items []Diagnostic
}

// Add records one diagnostic.
func (l *List) Add(kind Kind, r ast.Range, format string, args ...interface{}) {
	l.items = append(l.items, Diagnostic{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Range:   r,
	})
}

// Empty reports whether zero diagnostics were accumulated, which is
// the driver's signal that code generation and execution may proceed.
func (l *List) Empty() bool { return len(l.items) == 0 }

// Len reports how many diagnostics were accumulated.
func (l *List) Len() int { return len(l.items) }

// All returns every diagnostic sorted by (file, line, column).
func (l *List) All() []Diagnostic {
	sorted := append([]Diagnostic(nil), l.items...)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i].Range.Start, sorted[j].Range.Start
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Column < b.Column
	})
	return sorted
}
