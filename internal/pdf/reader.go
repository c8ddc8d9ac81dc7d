package pdf

import (
	"bytes"
	"compress/zlib"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
)

// ErrNotPDF is returned by Parse when the input lacks a %PDF header.
var ErrNotPDF = errors.New("input is not a PDF byte stream")

// Document is a parsed PDF with its page tree flattened.
type Document struct {
	data    []byte
	offsets map[int]int // object number → byte offset
	trailer Dict
	cache   map[int]Object
	pages   []*Page
}

// Page is a single page with its inherited resources resolved.
type Page struct {
	doc       *Document
	dict      Dict
	resources Dict
	index     int
}

var objHeaderRe = regexp.MustCompile(`(?m)^[ \t]*(\d+)[ \t]+(\d+)[ \t]+obj\b`)

// Parse reads a complete PDF byte stream. Malformed input yields an error,
// never a panic; a damaged xref falls back to scanning for object headers.
func Parse(data []byte) (*Document, error) {
	if !bytes.HasPrefix(bytes.TrimLeft(data, "\x00\r\n \t"), []byte("%PDF-")) {
		return nil, ErrNotPDF
	}
	d := &Document{
		data:    data,
		offsets: make(map[int]int),
		cache:   make(map[int]Object),
	}
	if err := d.loadXref(); err != nil {
		// Damaged or exotic xref: recover by scanning for "N G obj" headers.
		d.scanObjects()
		if len(d.offsets) == 0 {
			return nil, fmt.Errorf("decode pdf: %w", err)
		}
		if d.trailer == nil {
			d.recoverTrailer()
		}
	}
	if err := d.loadPages(); err != nil {
		return nil, fmt.Errorf("decode pdf page tree: %w", err)
	}
	return d, nil
}

// PageCount returns the number of pages. A document whose page tree is empty
// reports zero; callers guard their own division.
func (d *Document) PageCount() int { return len(d.pages) }

// Pages returns the flattened page list in document order.
func (d *Document) Pages() []*Page { return d.pages }

// loadXref walks the startxref pointer and the /Prev chain of classic
// cross-reference tables, recording object offsets and the merged trailer.
func (d *Document) loadXref() error {
	tail := d.data
	if len(tail) > 2048 {
		tail = tail[len(tail)-2048:]
	}
	idx := bytes.LastIndex(tail, []byte("startxref"))
	if idx < 0 {
		return errors.New("startxref not found")
	}
	lx := newLexer(tail[idx+len("startxref"):])
	obj, err := lx.parseValue()
	if err != nil {
		return fmt.Errorf("startxref offset: %w", err)
	}
	off, ok := obj.(Integer)
	if !ok {
		return errors.New("startxref offset is not an integer")
	}

	seen := make(map[int]bool)
	for pos := int(off); pos > 0; {
		if seen[pos] || pos >= len(d.data) {
			break
		}
		seen[pos] = true
		trailer, prev, err := d.parseXrefSection(pos)
		if err != nil {
			return err
		}
		if d.trailer == nil {
			d.trailer = trailer
		}
		pos = prev
	}
	if d.trailer == nil {
		return errors.New("no trailer found")
	}
	return nil
}

// parseXrefSection parses one classic xref table plus its trailer, returning
// the trailer dict and the /Prev offset (0 when absent).
func (d *Document) parseXrefSection(pos int) (Dict, int, error) {
	lx := newLexer(d.data)
	lx.pos = pos
	lx.skipSpace()
	if kw := lx.readKeyword(); kw != "xref" {
		return nil, 0, fmt.Errorf("expected 'xref' at offset %d, found %q", pos, kw)
	}
	for {
		lx.skipSpace()
		c, ok := lx.peek()
		if !ok {
			return nil, 0, errEOF
		}
		if c < '0' || c > '9' {
			break // trailer keyword next
		}
		startObj, err := lx.readNumber()
		if err != nil {
			return nil, 0, err
		}
		count, err2 := func() (Object, error) { lx.skipSpace(); return lx.readNumber() }()
		if err2 != nil {
			return nil, 0, err2
		}
		first, n := int(startObj.(Integer)), int(count.(Integer))
		for i := 0; i < n; i++ {
			lx.skipSpace()
			entry := lx.data[lx.pos:]
			if len(entry) < 18 {
				return nil, 0, errEOF
			}
			offset, err := strconv.Atoi(string(bytes.TrimLeft(entry[0:10], "0 ")))
			if err != nil {
				offset = 0
			}
			kind := entry[17]
			if kind == 'n' {
				num := first + i
				if _, exists := d.offsets[num]; !exists {
					d.offsets[num] = offset
				}
			}
			lx.pos += 18
			// entries are 20 bytes fixed width; tolerate 19 for lax writers
			for lx.pos < len(lx.data) && (lx.data[lx.pos] == '\r' || lx.data[lx.pos] == '\n' || lx.data[lx.pos] == ' ') {
				lx.pos++
			}
		}
	}
	lx.skipSpace()
	if kw := lx.readKeyword(); kw != "trailer" {
		return nil, 0, fmt.Errorf("expected 'trailer', found %q", kw)
	}
	obj, err := lx.parseValue()
	if err != nil {
		return nil, 0, fmt.Errorf("trailer dict: %w", err)
	}
	trailer, ok := obj.(Dict)
	if !ok {
		return nil, 0, errors.New("trailer is not a dictionary")
	}
	prev, _ := trailer.integer("Prev")
	return trailer, prev, nil
}

// scanObjects linearly indexes every "N G obj" header in the file. Later
// definitions win, matching incremental-update semantics.
func (d *Document) scanObjects() {
	for _, m := range objHeaderRe.FindAllSubmatchIndex(d.data, -1) {
		num, err := strconv.Atoi(string(d.data[m[2]:m[3]]))
		if err != nil {
			continue
		}
		d.offsets[num] = m[0]
	}
}

// recoverTrailer finds a trailer dictionary (or any dict with /Root) so a
// scanned document still resolves its catalog.
func (d *Document) recoverTrailer() {
	idx := bytes.LastIndex(d.data, []byte("trailer"))
	if idx < 0 {
		// Last resort: any object that looks like a catalog.
		for num := range d.offsets {
			if dict, ok := d.object(Ref{Num: num}).(Dict); ok {
				if t, _ := dict.name("Type"); t == "Catalog" {
					d.trailer = Dict{"Root": Ref{Num: num}}
					return
				}
			}
		}
		return
	}
	lx := newLexer(d.data)
	lx.pos = idx + len("trailer")
	if obj, err := lx.parseValue(); err == nil {
		if t, ok := obj.(Dict); ok {
			d.trailer = t
		}
	}
}

// object parses and caches the indirect object behind ref. Unknown references
// resolve to Null, mirroring the PDF spec's treatment of dangling refs.
func (d *Document) object(ref Ref) Object {
	if cached, ok := d.cache[ref.Num]; ok {
		return cached
	}
	off, ok := d.offsets[ref.Num]
	if !ok || off >= len(d.data) {
		return Null{}
	}
	obj := d.parseObjectAt(off)
	d.cache[ref.Num] = obj
	return obj
}

// parseObjectAt reads "N G obj <value> [stream ... endstream] endobj".
func (d *Document) parseObjectAt(off int) Object {
	lx := newLexer(d.data)
	lx.pos = off
	lx.skipSpace()
	if _, err := lx.readNumber(); err != nil {
		return Null{}
	}
	lx.skipSpace()
	if _, err := lx.readNumber(); err != nil {
		return Null{}
	}
	lx.skipSpace()
	if kw := lx.readKeyword(); kw != "obj" {
		return Null{}
	}
	val, err := lx.parseValue()
	if err != nil {
		return Null{}
	}
	dict, isDict := val.(Dict)
	if !isDict {
		return val
	}
	save := lx.pos
	lx.skipSpace()
	if kw := lx.readKeyword(); kw != "stream" {
		lx.pos = save
		return dict
	}
	// Raw stream data begins after an EOL following the keyword.
	if c, ok := lx.peek(); ok && c == '\r' {
		lx.pos++
	}
	if c, ok := lx.peek(); ok && c == '\n' {
		lx.pos++
	}
	length := d.streamLength(dict)
	start := lx.pos
	end := start + length
	if length <= 0 || end > len(d.data) || !d.endstreamFollows(end) {
		// /Length missing, indirect-and-broken, or wrong: scan for endstream.
		scanned := bytes.Index(d.data[start:], []byte("endstream"))
		if scanned < 0 {
			return dict
		}
		end = start + scanned
		for end > start && (d.data[end-1] == '\n' || d.data[end-1] == '\r') {
			end--
		}
	}
	raw := make([]byte, end-start)
	copy(raw, d.data[start:end])
	return Stream{Dict: dict, Raw: raw}
}

func (d *Document) endstreamFollows(end int) bool {
	rest := d.data[end:]
	rest = bytes.TrimLeft(rest, "\r\n")
	return bytes.HasPrefix(rest, []byte("endstream"))
}

// streamLength resolves a stream's /Length, following one indirect hop.
func (d *Document) streamLength(dict Dict) int {
	switch v := dict["Length"].(type) {
	case Integer:
		return int(v)
	case Ref:
		if n, ok := d.resolve(v).(Integer); ok {
			return int(n)
		}
	}
	return -1
}

// resolve follows reference chains until a direct object is reached.
func (d *Document) resolve(obj Object) Object {
	for i := 0; i < 32; i++ {
		ref, ok := obj.(Ref)
		if !ok {
			return obj
		}
		obj = d.object(ref)
	}
	return Null{}
}

func (d *Document) resolveDict(obj Object) Dict {
	dict, _ := d.resolve(obj).(Dict)
	return dict
}

// loadPages flattens the /Root → /Pages tree into d.pages, carrying inherited
// /Resources down the tree.
func (d *Document) loadPages() error {
	root := d.resolveDict(d.trailer["Root"])
	if root == nil {
		return errors.New("catalog not found")
	}
	pagesNode := d.resolve(root["Pages"])
	d.walkPageTree(pagesNode, nil, 0)
	return nil
}

func (d *Document) walkPageTree(node Object, inherited Dict, depth int) {
	if depth > 64 {
		return
	}
	dict, ok := node.(Dict)
	if !ok {
		return
	}
	resources := inherited
	if r := d.resolveDict(dict["Resources"]); r != nil {
		resources = r
	}
	typ, _ := dict.name("Type")
	if typ == "Page" {
		d.pages = append(d.pages, &Page{
			doc:       d,
			dict:      dict,
			resources: resources,
			index:     len(d.pages),
		})
		return
	}
	kids, _ := d.resolve(dict["Kids"]).(Array)
	for _, kid := range kids {
		d.walkPageTree(d.resolve(kid), resources, depth+1)
	}
}

// streamData returns a stream's data with FlateDecode applied and reports the
// filter chain. Filters other than Flate are passed through undecoded; the
// caller sees them in the returned list.
func (d *Document) streamData(obj Object) (data []byte, filters []string, ok bool) {
	s, isStream := d.resolve(obj).(Stream)
	if !isStream {
		return nil, nil, false
	}
	switch f := d.resolve(s.Dict["Filter"]).(type) {
	case Name:
		filters = []string{string(f)}
	case Array:
		for _, item := range f {
			if n, isName := d.resolve(item).(Name); isName {
				filters = append(filters, string(n))
			}
		}
	}
	data = s.Raw
	for _, f := range filters {
		if f != "FlateDecode" {
			break
		}
		inflated, err := inflate(data)
		if err != nil {
			return s.Raw, filters, true
		}
		data = inflated
	}
	return data, filters, true
}

func inflate(data []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil && len(out) == 0 {
		return nil, err
	}
	// Truncated tails are tolerated: partial content beats none.
	return out, nil
}
