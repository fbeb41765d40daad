// Package diff decodes the incremental fragment protocol.
//
// A component's last received markup is kept as a sequence of fragments. The
// server sends an edit script of three token kinds:
//
//   - Literal(text): emit text as a new fragment
//   - Copy(n):       emit the next n fragments of the previous sequence
//   - Skip(n):       drop the next n fragments of the previous sequence
//
// On the wire a token is a JSON string (Literal), a positive integer (Copy)
// or a negative integer (Skip of its absolute value).
package diff

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrRangeExceeded means a Copy or Skip ran past the previous sequence
	ErrRangeExceeded = errors.New("diff range exceeds previous fragments")
	// ErrBadToken means a token of an unknown kind or negative count
	ErrBadToken = errors.New("malformed diff token")
)

// Kind identifies a diff token
type Kind uint8

const (
	Literal Kind = iota
	Copy
	Skip
)

// String returns the token kind name
func (k Kind) String() string {
	switch k {
	case Literal:
		return "literal"
	case Copy:
		return "copy"
	case Skip:
		return "skip"
	default:
		return "unknown"
	}
}

// Token is one instruction of a diff
type Token struct {
	Kind  Kind
	Text  string
	Count int
}

// Lit builds a Literal token
func Lit(text string) Token { return Token{Kind: Literal, Text: text} }

// CopyN builds a Copy token
func CopyN(n int) Token { return Token{Kind: Copy, Count: n} }

// SkipN builds a Skip token
func SkipN(n int) Token { return Token{Kind: Skip, Count: n} }

// Diff is an ordered edit script
type Diff []Token

// ProtocolViolation reports a diff that cannot be applied to its baseline
type ProtocolViolation struct {
	Index  int // position of the offending token
	Token  Token
	Cursor int
	Len    int // length of the previous sequence
	Err    error
}

func (e *ProtocolViolation) Error() string {
	return fmt.Sprintf("protocol violation at token %d (%s %d, cursor %d, baseline %d): %v",
		e.Index, e.Token.Kind, e.Token.Count, e.Cursor, e.Len, e.Err)
}

func (e *ProtocolViolation) Unwrap() error {
	return e.Err
}

// Decode applies tokens to previous and returns the new fragment sequence.
// previous is never modified; on error nothing is returned so the caller
// keeps its baseline.
func Decode(tokens Diff, previous []string) ([]string, error) {
	out := make([]string, 0, len(tokens))
	cursor := 0
	for i, tok := range tokens {
		switch tok.Kind {
		case Literal:
			out = append(out, tok.Text)
		case Copy, Skip:
			if tok.Count < 0 {
				return nil, &ProtocolViolation{Index: i, Token: tok, Cursor: cursor, Len: len(previous), Err: ErrBadToken}
			}
			if cursor+tok.Count > len(previous) {
				return nil, &ProtocolViolation{Index: i, Token: tok, Cursor: cursor, Len: len(previous), Err: ErrRangeExceeded}
			}
			if tok.Kind == Copy {
				out = append(out, previous[cursor:cursor+tok.Count]...)
			}
			cursor += tok.Count
		default:
			return nil, &ProtocolViolation{Index: i, Token: tok, Cursor: cursor, Len: len(previous), Err: ErrBadToken}
		}
	}
	return out, nil
}

// Reconstruct joins fragments into markup separated by single spaces
func Reconstruct(fragments []string) string {
	return strings.Join(fragments, " ")
}
