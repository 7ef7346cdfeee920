// Package sqllex splits SQL text into just enough tokens to find :name
// parameter references. It does not try to verify syntax or recognize every
// token in detail: quoted literals, quoted identifiers and comments are
// opaque, and runs of whitespace and comments collapse to a single space.
//
// The dialect accepted is mostly ANSI/ISO SQL with a few MySQL and Postgres
// spellings thrown in (backtick identifiers, backslash escapes, :: casts).
package sqllex

import "fmt"

// Kind identifies which rule produced a token.
type Kind int

const (
	Space Kind = iota
	QuotedIdent
	AnnotatedString
	Ident
	Param
	String
	Operator
	Special
)

var kindNames = [...]string{
	Space:           "space",
	QuotedIdent:     "quoted-ident",
	AnnotatedString: "annotated-string",
	Ident:           "ident",
	Param:           "param",
	String:          "string",
	Operator:        "operator",
	Special:         "special",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Token is one lexical unit exactly as it appeared in the source, or a single
// space standing in for a run of whitespace and comments.
type Token struct {
	Kind  Kind
	Text  string
	Param bool
}

// Name returns the parameter name without its leading colon. It is empty for
// tokens that are not parameters.
func (t Token) Name() string {
	if !t.Param {
		return ""
	}
	return t.Text[1:]
}

// LexError reports a position in the input that no rule could match.
type LexError struct {
	Offset int // byte offset into the SQL text
}

func (e *LexError) Error() string {
	return fmt.Sprintf("bad SQL token at offset %d", e.Offset)
}
