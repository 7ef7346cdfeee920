package sqllex

import (
	"io"
	"iter"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Rule is one entry in the ordered recognition list. At each position the
// rules are tried top to bottom and the first that matches wins, regardless
// of how much input a later rule could have consumed.
type Rule struct {
	Kind  Kind
	match func(src string, pos int) int // end offset, or -1
}

// operators are tried in this order; all are two bytes long.
var operators = []string{"<>", "<=", ">=", "||", "..", "!=", "::"}

// specials are single characters that are emitted as their own token.
const specials = `"%&'()*+,-./;<=>?_|[]:!@#$^~{}`

var rules = []Rule{
	{Space, matchSpace},
	{QuotedIdent, matchQuotedIdent},
	{AnnotatedString, matchAnnotatedString},
	{Ident, matchIdent},
	{Param, matchParam},
	{String, matchString},
	{Operator, matchOperator},
	{Special, matchSpecial},
}

// Rules returns the kinds in the order they are consulted.
func Rules() []Kind {
	out := make([]Kind, len(rules))
	for i, r := range rules {
		out[i] = r.Kind
	}
	return out
}

// Scanner produces tokens from one SQL string. A Scanner is not safe for
// concurrent use, but separate Scanners share nothing.
type Scanner struct {
	src string
	pos int
	err error
}

func NewScanner(sql string) *Scanner {
	return &Scanner{src: sql}
}

// Next returns the next token, io.EOF at the end of input, or a *LexError.
// Once an error has been returned every later call returns it again.
func (s *Scanner) Next() (Token, error) {
	if s.err != nil {
		return Token{}, s.err
	}
	if s.pos >= len(s.src) {
		s.err = io.EOF
		return Token{}, s.err
	}
	for _, r := range rules {
		end := r.match(s.src, s.pos)
		if end < 0 {
			continue
		}
		text := s.src[s.pos:end]
		if r.Kind == Space {
			text = " "
		}
		s.pos = end
		return Token{Kind: r.Kind, Text: text, Param: r.Kind == Param}, nil
	}
	s.err = &LexError{Offset: s.pos}
	return Token{}, s.err
}

// Tokens lazily scans sql. A lex failure is yielded once as the error of the
// final pair.
func Tokens(sql string) iter.Seq2[Token, error] {
	return func(yield func(Token, error) bool) {
		s := NewScanner(sql)
		for {
			tok, err := s.Next()
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(Token{}, err)
				return
			}
			if !yield(tok, nil) {
				return
			}
		}
	}
}

// All scans sql completely.
func All(sql string) ([]Token, error) {
	var out []Token
	for tok, err := range Tokens(sql) {
		if err != nil {
			return nil, err
		}
		out = append(out, tok)
	}
	return out, nil
}

// --- rules ---

func matchSpace(src string, pos int) int {
	i := pos
	for i < len(src) {
		r, w := utf8.DecodeRuneInString(src[i:])
		switch {
		case unicode.IsSpace(r):
			i += w
		case strings.HasPrefix(src[i:], "--"):
			nl := strings.IndexByte(src[i:], '\n')
			if nl < 0 {
				i = len(src)
			} else {
				i += nl + 1
			}
		case strings.HasPrefix(src[i:], "/*"):
			end := strings.Index(src[i+2:], "*/")
			if end < 0 {
				// unterminated; leave "/" and "*" to the special rule
				return result(pos, i)
			}
			i += 2 + end + 2
		default:
			return result(pos, i)
		}
	}
	return result(pos, i)
}

func matchQuotedIdent(src string, pos int) int {
	switch src[pos] {
	case '"', '`':
		return quoted(src, pos, src[pos])
	}
	return -1
}

func matchAnnotatedString(src string, pos int) int {
	i := wordEnd(src, pos)
	if i == pos || i >= len(src) || src[i] != '\'' {
		return -1
	}
	return quoted(src, i, '\'')
}

func matchIdent(src string, pos int) int {
	return result(pos, wordEnd(src, pos))
}

func matchParam(src string, pos int) int {
	if src[pos] != ':' {
		return -1
	}
	end := wordEnd(src, pos+1)
	if end == pos+1 {
		return -1
	}
	return end
}

func matchString(src string, pos int) int {
	if src[pos] != '\'' {
		return -1
	}
	return quoted(src, pos, '\'')
}

func matchOperator(src string, pos int) int {
	for _, op := range operators {
		if strings.HasPrefix(src[pos:], op) {
			return pos + len(op)
		}
	}
	return -1
}

func matchSpecial(src string, pos int) int {
	if strings.IndexByte(specials, src[pos]) >= 0 {
		return pos + 1
	}
	return -1
}

// --- helpers ---

// quoted scans a literal opened by q at pos. The quote character is escaped
// either by doubling it or by a preceding backslash.
func quoted(src string, pos int, q byte) int {
	i := pos + 1
	for i < len(src) {
		c := src[i]
		switch {
		case c == '\\' && i+1 < len(src):
			i += 2
		case c == q && i+1 < len(src) && src[i+1] == q:
			i += 2
		case c == q:
			return i + 1
		default:
			i++
		}
	}
	return -1
}

// wordEnd returns the end of the run of word characters starting at pos.
func wordEnd(src string, pos int) int {
	i := pos
	for i < len(src) {
		r, w := utf8.DecodeRuneInString(src[i:])
		if !isWord(r) {
			break
		}
		i += w
	}
	return i
}

func isWord(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func result(start, end int) int {
	if end == start {
		return -1
	}
	return end
}

// IsName reports whether s is usable as a parameter name, that is whether
// ":"+s scans as a single parameter token.
func IsName(s string) bool {
	return s != "" && wordEnd(s, 0) == len(s)
}
