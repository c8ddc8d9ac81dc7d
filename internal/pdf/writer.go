package pdf

import (
	"bytes"
	"fmt"
	"strings"
)

// Builder assembles a simple text-and-image PDF. Output is deterministic for
// identical input: fixed object numbering, uncompressed content streams, and
// no generation timestamps.
type Builder struct {
	pages []*PageBuilder
}

// PageBuilder accumulates draw operations for one A4 page (595x842 pt).
type PageBuilder struct {
	texts  []textOp
	images []imageOp
}

type textOp struct {
	x, y, size float64
	text       string
}

type imageOp struct {
	x, y, w, h    float64
	width, height int
	gray          []byte
}

// NewBuilder creates an empty document builder.
func NewBuilder() *Builder { return &Builder{} }

// AddPage appends a page and returns its builder.
func (b *Builder) AddPage() *PageBuilder {
	p := &PageBuilder{}
	b.pages = append(b.pages, p)
	return p
}

// Text places a Helvetica string with its baseline at (x, y) in page points,
// origin bottom-left.
func (p *PageBuilder) Text(x, y, size float64, text string) {
	p.texts = append(p.texts, textOp{x: x, y: y, size: size, text: text})
}

// GrayImage embeds an 8-bit grayscale raster drawn into the rectangle
// (x, y, w, h). pix must hold width*height bytes in row-major order.
func (p *PageBuilder) GrayImage(x, y, w, h float64, width, height int, pix []byte) {
	p.images = append(p.images, imageOp{x: x, y: y, w: w, h: h, width: width, height: height, gray: pix})
}

const pageWidth, pageHeight = 595, 842

// Bytes serializes the document with a classic cross-reference table.
func (b *Builder) Bytes() ([]byte, error) {
	for _, p := range b.pages {
		for _, img := range p.images {
			if len(img.gray) != img.width*img.height {
				return nil, fmt.Errorf("image data length %d does not match %dx%d", len(img.gray), img.width, img.height)
			}
		}
	}

	var buf bytes.Buffer
	offsets := map[int]int{}
	writeObj := func(num int, body string) {
		offsets[num] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", num, body)
	}
	writeStreamObj := func(num int, dict string, data []byte) {
		offsets[num] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n<< %s /Length %d >>\nstream\n", num, dict, len(data))
		buf.Write(data)
		buf.WriteString("\nendstream\nendobj\n")
	}

	buf.WriteString("%PDF-1.4\n")

	// Fixed numbering: 1 catalog, 2 page tree, 3 font, then per page the page
	// object, its content stream, and its image XObjects.
	next := 4
	type pageObjs struct {
		page, content int
		images        []int
	}
	layout := make([]pageObjs, len(b.pages))
	for i, p := range b.pages {
		layout[i].page = next
		layout[i].content = next + 1
		next += 2
		for range p.images {
			layout[i].images = append(layout[i].images, next)
			next++
		}
	}

	var kids []string
	for i := range b.pages {
		kids = append(kids, fmt.Sprintf("%d 0 R", layout[i].page))
	}
	writeObj(1, "<< /Type /Catalog /Pages 2 0 R >>")
	writeObj(2, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(b.pages)))
	writeObj(3, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")

	for i, p := range b.pages {
		resources := "<< /Font << /F1 3 0 R >>"
		if len(p.images) > 0 {
			var xo []string
			for j, num := range layout[i].images {
				xo = append(xo, fmt.Sprintf("/Im%d %d 0 R", j+1, num))
			}
			resources += fmt.Sprintf(" /XObject << %s >>", strings.Join(xo, " "))
		}
		resources += " >>"

		writeObj(layout[i].page, fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %d %d] /Resources %s /Contents %d 0 R >>",
			pageWidth, pageHeight, resources, layout[i].content,
		))
		writeStreamObj(layout[i].content, "", p.contentStream())
		for j, img := range p.images {
			dict := fmt.Sprintf(
				"/Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace /DeviceGray /BitsPerComponent 8",
				img.width, img.height,
			)
			writeStreamObj(layout[i].images[j], dict, img.gray)
		}
	}

	xrefOffset := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", next)
	buf.WriteString("0000000000 65535 f \n")
	for num := 1; num < next; num++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[num])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", next, xrefOffset)
	return buf.Bytes(), nil
}

func (p *PageBuilder) contentStream() []byte {
	var b strings.Builder
	for _, t := range p.texts {
		fmt.Fprintf(&b, "BT /F1 %s Tf %s %s Td (%s) Tj ET\n",
			formatNum(t.size), formatNum(t.x), formatNum(t.y), escapeString(t.text))
	}
	for i, img := range p.images {
		fmt.Fprintf(&b, "q %s 0 0 %s %s %s cm /Im%d Do Q\n",
			formatNum(img.w), formatNum(img.h), formatNum(img.x), formatNum(img.y), i+1)
	}
	return []byte(b.String())
}

func formatNum(f float64) string {
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%.2f", f)
}

// escapeString escapes the literal-string delimiters. Non-ASCII bytes are
// written as octal escapes so the output stays 7-bit clean.
func escapeString(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '(' || c == ')' || c == '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		case c == '\n':
			b.WriteString(`\n`)
		case c == '\r':
			b.WriteString(`\r`)
		case c < 0x20 || c > 0x7E:
			fmt.Fprintf(&b, `\%03o`, c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
