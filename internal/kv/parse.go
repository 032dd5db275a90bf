package kv

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// ParseError reports a syntax error with its location.
type ParseError struct {
	File string
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Msg)
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokString
	tokOpen
	tokClose
)

type token struct {
	kind  tokenKind
	value string
	line  int
}

type lexer struct {
	r      *bufio.Reader
	file   string
	line   int
	peeked *token
}

// Parse reads a key-values document. The result is an unnamed root block.
func Parse(r io.Reader, filename string) (*Property, error) {
	lx := &lexer{r: bufio.NewReader(r), file: filename, line: 1}
	root := NewRoot()
	if err := lx.parseBody(root, 0); err != nil {
		return nil, err
	}
	return root, nil
}

// ParseString is Parse over a string.
func ParseString(s, filename string) (*Property, error) {
	return Parse(strings.NewReader(s), filename)
}

func (lx *lexer) parseBody(block *Property, depth int) error {
	for {
		tok, err := lx.next()
		if err != nil {
			return err
		}
		switch tok.kind {
		case tokEOF:
			if depth > 0 {
				return lx.errorf(tok.line, "unterminated block %q", block.Name)
			}
			return nil
		case tokClose:
			if depth == 0 {
				return lx.errorf(tok.line, "unexpected '}'")
			}
			return nil
		case tokOpen:
			return lx.errorf(tok.line, "block has no name")
		}

		value, err := lx.next()
		if err != nil {
			return err
		}
		switch value.kind {
		case tokString:
			block.Append(NewLeaf(tok.value, value.value))
		case tokOpen:
			child := NewBlock(tok.value)
			block.Append(child)
			if err := lx.parseBody(child, depth+1); err != nil {
				return err
			}
		default:
			return lx.errorf(value.line, "key %q has no value", tok.value)
		}
	}
}

func (lx *lexer) errorf(line int, format string, args ...interface{}) error {
	return &ParseError{File: lx.file, Line: line, Msg: fmt.Sprintf(format, args...)}
}

// next returns the next token, skipping whitespace, comments and
// [$PLATFORM] conditional flags.
func (lx *lexer) next() (token, error) {
	if lx.peeked != nil {
		t := *lx.peeked
		lx.peeked = nil
		return t, nil
	}
	for {
		ch, _, err := lx.r.ReadRune()
		if err == io.EOF {
			return token{kind: tokEOF, line: lx.line}, nil
		}
		if err != nil {
			return token{}, err
		}

		switch {
		case ch == '\n':
			lx.line++
		case ch == ' ' || ch == '\t' || ch == '\r' || ch == '\uFEFF':
		case ch == '{':
			return token{kind: tokOpen, line: lx.line}, nil
		case ch == '}':
			return token{kind: tokClose, line: lx.line}, nil
		case ch == '/':
			next, _, err := lx.r.ReadRune()
			if err != nil || next != '/' {
				return token{}, lx.errorf(lx.line, "single '/' outside of a string")
			}
			if _, err := lx.r.ReadString('\n'); err != nil && err != io.EOF {
				return token{}, err
			}
			lx.line++
		case ch == '[':
			if _, err := lx.r.ReadString(']'); err != nil {
				return token{}, lx.errorf(lx.line, "unterminated '[' flag")
			}
		case ch == '"':
			return lx.quoted()
		default:
			return lx.bare(ch)
		}
	}
}

func (lx *lexer) quoted() (token, error) {
	start := lx.line
	var sb strings.Builder
	for {
		ch, _, err := lx.r.ReadRune()
		if err == io.EOF {
			return token{}, lx.errorf(start, "unterminated string")
		}
		if err != nil {
			return token{}, err
		}
		switch ch {
		case '"':
			return token{kind: tokString, value: sb.String(), line: start}, nil
		case '\n':
			lx.line++
			sb.WriteRune(ch)
		case '\\':
			esc, _, err := lx.r.ReadRune()
			if err != nil {
				return token{}, lx.errorf(start, "unterminated string")
			}
			switch esc {
			case 'n':
				sb.WriteRune('\n')
			case 't':
				sb.WriteRune('\t')
			case '"', '\\':
				sb.WriteRune(esc)
			default:
				sb.WriteRune('\\')
				sb.WriteRune(esc)
			}
		default:
			sb.WriteRune(ch)
		}
	}
}

func (lx *lexer) bare(first rune) (token, error) {
	var sb strings.Builder
	sb.WriteRune(first)
	for {
		ch, _, err := lx.r.ReadRune()
		if err == io.EOF {
			break
		}
		if err != nil {
			return token{}, err
		}
		if ch == ' ' || ch == '\t' || ch == '\r' || ch == '\n' || ch == '{' || ch == '}' || ch == '"' {
			if err := lx.r.UnreadRune(); err != nil {
				return token{}, err
			}
			break
		}
		sb.WriteRune(ch)
	}
	return token{kind: tokString, value: sb.String(), line: lx.line}, nil
}
