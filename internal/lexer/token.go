package lexer

import "fmt"

// Kind discriminates a token's lexical category.
type Kind int

const (
	EOF Kind = iota
	Error

	Ident
	Int
	Float
	String
	Char

	// Keywords
	KwFn
	KwLet
	KwVar
	KwConst
	KwStruct
	KwEnum
	KwIf
	KwElse
	KwReturn
	KwWhile
	KwFor
	KwForeach
	KwIn
	KwBreak
	KwContinue
	KwSwitch
	KwCase
	KwDefault
	KwDefer
	KwDeferRestore
	KwImport
	KwProject
	KwBake
	KwNew
	KwDelete
	KwTrue
	KwFalse
	KwNull
	KwCast
	KwAs
	KwModule

	// Punctuation
	LParen
	RParen
	LBrace
	RBrace
	LBracket
	RBracket
	Plus
	Minus
	Star
	Slash
	Percent
	Assign
	Arrow    // ->
	FatArrow // =>
	Colon
	DoubleColon
	Dot
	DotBracket // .[ array literal opener
	Comma
	Semicolon
	Question
	Ampersand
	Pipe
	Caret
	Tilde
	Bang
	Eq
	Ne
	Lt
	Gt
	Le
	Ge
	AndAnd
	OrOr
	Dollar // $T pattern variables
	At     // @version constraint on project imports
)

var keywords = map[string]Kind{
	"fn": KwFn, "let": KwLet, "var": KwVar, "const": KwConst,
	"struct": KwStruct, "enum": KwEnum, "if": KwIf, "else": KwElse,
	"return": KwReturn, "while": KwWhile, "for": KwFor, "foreach": KwForeach,
	"in": KwIn, "break": KwBreak, "continue": KwContinue, "switch": KwSwitch,
	"case": KwCase, "default": KwDefault, "defer": KwDefer,
	"defer_restore": KwDeferRestore, "import": KwImport, "project": KwProject,
	"bake": KwBake, "new": KwNew, "delete": KwDelete, "true": KwTrue,
	"false": KwFalse, "null": KwNull, "cast": KwCast, "as": KwAs,
	"module": KwModule,
}

// Position is a single point in a source file.
type Position struct {
	File   string
	Line   int
	Column int
	Offset int
}

func (p Position) String() string {
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
}

// Span is a half-open byte range with its start position, covering the
// lexeme plus enough information to re-derive the end position.
type Span struct {
	Start  Position
	Length int
}

func (s Span) String() string { return fmt.Sprintf("%s+%d", s.Start, s.Length) }

// NumberKind records how a numeric literal's width was determined.
type NumberKind int

const (
	NumberInt NumberKind = iota
	NumberFloat
)

// Token is a tagged lexical unit: kind, span, and payload. Only one of
// the payload fields is meaningful, selected by Kind.
type Token struct {
	Kind Kind
	Span Span
	Text string // raw lexeme, always populated

	IntValue    int64
	FloatValue  float64
	IntSuffix   string // e.g. "i8", "u64"; "" if none given
	StringValue string // decoded (escapes resolved)

	ErrorMessage string // populated when Kind == Error
}

func (t Token) String() string {
	return fmt.Sprintf("%v %q @%s", t.Kind, t.Text, t.Span)
}
