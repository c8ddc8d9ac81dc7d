package pdf

import (
	"errors"
	"fmt"
	"strconv"
)

// errEOF is returned by the lexer when the input is exhausted mid-value.
var errEOF = errors.New("unexpected end of input")

// lexer is a positioned cursor over a PDF byte stream. It produces the raw
// object grammar (numbers, names, strings, dicts, arrays, keywords); higher
// layers assemble indirect objects and streams from it.
type lexer struct {
	data []byte
	pos  int
}

func newLexer(data []byte) *lexer { return &lexer{data: data} }

func isWhitespace(c byte) bool {
	switch c {
	case 0x00, 0x09, 0x0A, 0x0C, 0x0D, 0x20:
		return true
	}
	return false
}

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

// skipSpace advances past whitespace and %-comments.
func (l *lexer) skipSpace() {
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		if isWhitespace(c) {
			l.pos++
			continue
		}
		if c == '%' {
			for l.pos < len(l.data) && l.data[l.pos] != '\n' && l.data[l.pos] != '\r' {
				l.pos++
			}
			continue
		}
		return
	}
}

func (l *lexer) peek() (byte, bool) {
	if l.pos >= len(l.data) {
		return 0, false
	}
	return l.data[l.pos], true
}

// readKeyword consumes a bare keyword token (obj, endobj, stream, R, true...).
func (l *lexer) readKeyword() string {
	start := l.pos
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		if isWhitespace(c) || isDelimiter(c) {
			break
		}
		l.pos++
	}
	return string(l.data[start:l.pos])
}

// readName consumes a /Name token, decoding #xx escapes.
func (l *lexer) readName() (Name, error) {
	if c, ok := l.peek(); !ok || c != '/' {
		return "", fmt.Errorf("name must start with '/' at offset %d", l.pos)
	}
	l.pos++
	var out []byte
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		if isWhitespace(c) || isDelimiter(c) {
			break
		}
		if c == '#' && l.pos+2 < len(l.data) {
			if v, err := strconv.ParseUint(string(l.data[l.pos+1:l.pos+3]), 16, 8); err == nil {
				out = append(out, byte(v))
				l.pos += 3
				continue
			}
		}
		out = append(out, c)
		l.pos++
	}
	return Name(out), nil
}

// readLiteralString consumes a (...) string with escapes and balanced parens.
func (l *lexer) readLiteralString() ([]byte, error) {
	l.pos++ // consume '('
	var out []byte
	depth := 1
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		switch c {
		case '\\':
			l.pos++
			if l.pos >= len(l.data) {
				return nil, errEOF
			}
			e := l.data[l.pos]
			switch e {
			case 'n':
				out = append(out, '\n')
			case 'r':
				out = append(out, '\r')
			case 't':
				out = append(out, '\t')
			case 'b':
				out = append(out, '\b')
			case 'f':
				out = append(out, '\f')
			case '(', ')', '\\':
				out = append(out, e)
			case '\r':
				// line continuation; swallow optional \n
				if l.pos+1 < len(l.data) && l.data[l.pos+1] == '\n' {
					l.pos++
				}
			case '\n':
				// line continuation
			default:
				if e >= '0' && e <= '7' {
					v := int(e - '0')
					for i := 0; i < 2 && l.pos+1 < len(l.data); i++ {
						n := l.data[l.pos+1]
						if n < '0' || n > '7' {
							break
						}
						v = v*8 + int(n-'0')
						l.pos++
					}
					out = append(out, byte(v))
				} else {
					out = append(out, e)
				}
			}
			l.pos++
		case '(':
			depth++
			out = append(out, c)
			l.pos++
		case ')':
			depth--
			l.pos++
			if depth == 0 {
				return out, nil
			}
			out = append(out, c)
		default:
			out = append(out, c)
			l.pos++
		}
	}
	return nil, errEOF
}

// readHexString consumes a <...> hex string. The caller has already checked
// that this is not a dictionary open.
func (l *lexer) readHexString() ([]byte, error) {
	l.pos++ // consume '<'
	var digits []byte
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		if c == '>' {
			l.pos++
			if len(digits)%2 == 1 {
				digits = append(digits, '0')
			}
			out := make([]byte, len(digits)/2)
			for i := 0; i < len(digits); i += 2 {
				v, err := strconv.ParseUint(string(digits[i:i+2]), 16, 8)
				if err != nil {
					return nil, fmt.Errorf("bad hex string digit: %w", err)
				}
				out[i/2] = byte(v)
			}
			return out, nil
		}
		if !isWhitespace(c) {
			digits = append(digits, c)
		}
		l.pos++
	}
	return nil, errEOF
}

// readNumber consumes an integer or real.
func (l *lexer) readNumber() (Object, error) {
	start := l.pos
	if c, ok := l.peek(); ok && (c == '+' || c == '-') {
		l.pos++
	}
	real := false
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		if c >= '0' && c <= '9' {
			l.pos++
			continue
		}
		if c == '.' && !real {
			real = true
			l.pos++
			continue
		}
		break
	}
	tok := string(l.data[start:l.pos])
	if tok == "" || tok == "+" || tok == "-" {
		return nil, fmt.Errorf("malformed number at offset %d", start)
	}
	if real {
		f, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return nil, fmt.Errorf("parse real %q: %w", tok, err)
		}
		return Real(f), nil
	}
	n, err := strconv.ParseInt(tok, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse integer %q: %w", tok, err)
	}
	return Integer(n), nil
}

// parseValue reads the next complete object from the stream. Indirect
// references ("N G R") are recognized by lookahead after an integer.
func (l *lexer) parseValue() (Object, error) {
	l.skipSpace()
	c, ok := l.peek()
	if !ok {
		return nil, errEOF
	}
	switch {
	case c == '/':
		return l.readName()
	case c == '(':
		s, err := l.readLiteralString()
		if err != nil {
			return nil, err
		}
		return String(s), nil
	case c == '<':
		if l.pos+1 < len(l.data) && l.data[l.pos+1] == '<' {
			return l.parseDict()
		}
		s, err := l.readHexString()
		if err != nil {
			return nil, err
		}
		return String(s), nil
	case c == '[':
		return l.parseArray()
	case c == ']' || c == '>' || c == ')' || c == '}' || c == '{':
		return nil, fmt.Errorf("unexpected delimiter %q at offset %d", c, l.pos)
	case c >= '0' && c <= '9' || c == '+' || c == '-' || c == '.':
		return l.parseNumberOrRef()
	default:
		kw := l.readKeyword()
		switch kw {
		case "true":
			return Boolean(true), nil
		case "false":
			return Boolean(false), nil
		case "null":
			return Null{}, nil
		case "":
			return nil, fmt.Errorf("stray byte %q at offset %d", c, l.pos)
		default:
			return Keyword(kw), nil
		}
	}
}

// parseNumberOrRef reads a number and, if it is an integer followed by another
// integer and the keyword R, collapses the triple into a Ref.
func (l *lexer) parseNumberOrRef() (Object, error) {
	first, err := l.readNumber()
	if err != nil {
		return nil, err
	}
	num, isInt := first.(Integer)
	if !isInt || num < 0 {
		return first, nil
	}
	save := l.pos
	l.skipSpace()
	c, ok := l.peek()
	if !ok || c < '0' || c > '9' {
		l.pos = save
		return first, nil
	}
	second, err := l.readNumber()
	if err != nil {
		l.pos = save
		return first, nil
	}
	gen, isInt := second.(Integer)
	if !isInt {
		l.pos = save
		return first, nil
	}
	l.skipSpace()
	if kw := l.readKeyword(); kw == "R" {
		return Ref{Num: int(num), Gen: int(gen)}, nil
	}
	l.pos = save
	return first, nil
}

func (l *lexer) parseDict() (Object, error) {
	l.pos += 2 // consume "<<"
	d := Dict{}
	for {
		l.skipSpace()
		c, ok := l.peek()
		if !ok {
			return nil, errEOF
		}
		if c == '>' {
			if l.pos+1 < len(l.data) && l.data[l.pos+1] == '>' {
				l.pos += 2
				return d, nil
			}
			return nil, fmt.Errorf("single '>' in dictionary at offset %d", l.pos)
		}
		key, err := l.readName()
		if err != nil {
			return nil, fmt.Errorf("dictionary key: %w", err)
		}
		val, err := l.parseValue()
		if err != nil {
			return nil, fmt.Errorf("dictionary value for /%s: %w", key, err)
		}
		d[key] = val
	}
}

func (l *lexer) parseArray() (Object, error) {
	l.pos++ // consume '['
	var arr Array
	for {
		l.skipSpace()
		c, ok := l.peek()
		if !ok {
			return nil, errEOF
		}
		if c == ']' {
			l.pos++
			return arr, nil
		}
		v, err := l.parseValue()
		if err != nil {
			return nil, fmt.Errorf("array element %d: %w", len(arr), err)
		}
		arr = append(arr, v)
	}
}
