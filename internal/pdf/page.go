package pdf

import (
	"errors"
	"io"
	"strings"
	"unicode/utf16"
)

// Index returns the zero-based position of the page in the document.
func (p *Page) Index() int { return p.index }

// contentStreams collects the page's /Contents data, concatenating arrays of
// streams in order.
func (p *Page) contentStreams() [][]byte {
	return p.collectContents(p.doc.resolve(p.dict["Contents"]), 0)
}

func (p *Page) collectContents(obj Object, depth int) [][]byte {
	if depth > 16 {
		return nil
	}
	switch v := obj.(type) {
	case Stream:
		if data, _, ok := p.doc.streamData(v); ok {
			return [][]byte{data}
		}
	case Array:
		var out [][]byte
		for _, item := range v {
			out = append(out, p.collectContents(p.doc.resolve(item), depth+1)...)
		}
		return out
	}
	return nil
}

// Text extracts the page's embedded text by scanning show operators in its
// content streams. Pages with no extractable text return "".
func (p *Page) Text() string {
	var b strings.Builder
	for _, data := range p.contentStreams() {
		extractStreamText(&b, data)
	}
	return strings.TrimSpace(b.String())
}

// extractStreamText walks one content stream, emitting text for Tj, ', ", and
// TJ, and newlines for BT, T*, and vertical Td/TD moves.
func extractStreamText(out *strings.Builder, data []byte) {
	lx := newLexer(data)
	var operands []Object
	for {
		lx.skipSpace()
		if _, ok := lx.peek(); !ok {
			return
		}
		obj, err := lx.parseValue()
		if err != nil {
			if errors.Is(err, errEOF) || errors.Is(err, io.EOF) {
				return
			}
			// Skip one byte past unparseable content and continue; text
			// extraction is best-effort.
			lx.pos++
			continue
		}
		kw, isKeyword := obj.(Keyword)
		if !isKeyword {
			operands = append(operands, obj)
			continue
		}
		switch kw {
		case "BT", "T*":
			newlineIfNeeded(out)
		case "Td", "TD":
			if len(operands) >= 2 {
				if dy, ok := asFloat(operands[len(operands)-1]); ok && dy != 0 {
					newlineIfNeeded(out)
				}
			}
		case "Tj":
			if len(operands) > 0 {
				writeText(out, operands[len(operands)-1])
			}
		case "'", "\"":
			if len(operands) > 0 {
				newlineIfNeeded(out)
				writeText(out, operands[len(operands)-1])
			}
		case "TJ":
			if len(operands) > 0 {
				if arr, ok := operands[len(operands)-1].(Array); ok {
					for _, item := range arr {
						writeText(out, item)
					}
				}
			}
		}
		operands = operands[:0]
	}
}

func newlineIfNeeded(out *strings.Builder) {
	if out.Len() > 0 {
		out.WriteByte('\n')
	}
}

func writeText(out *strings.Builder, obj Object) {
	s, ok := obj.(String)
	if !ok || len(s) == 0 {
		return
	}
	out.WriteString(decodeTextBytes(s))
}

// decodeTextBytes interprets a show-operator string: UTF-16BE when it carries
// a BOM, raw bytes otherwise. CID fonts with ToUnicode CMaps are not
// decoded; scanned documents carry no Tj text at all and text-native
// documents from our own writer use simple encodings.
func decodeTextBytes(data []byte) string {
	if len(data) >= 2 && data[0] == 0xFE && data[1] == 0xFF {
		return decodeUTF16BE(data[2:])
	}
	return string(data)
}

func decodeUTF16BE(data []byte) string {
	if len(data)%2 != 0 {
		data = data[:len(data)-1]
	}
	buf := make([]uint16, len(data)/2)
	for i := range buf {
		buf[i] = uint16(data[2*i])<<8 | uint16(data[2*i+1])
	}
	return string(utf16.Decode(buf))
}

func asFloat(obj Object) (float64, bool) {
	switch v := obj.(type) {
	case Integer:
		return float64(v), true
	case Real:
		return float64(v), true
	}
	return 0, false
}
