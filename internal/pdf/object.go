// Package pdf implements the minimal PDF object model the verification core
// needs: reading page text and embedded images out of arbitrary documents,
// and writing the single-page documents the anchoring flow renders.
//
// The reader handles classic cross-reference tables, FlateDecode content
// streams, and nested page trees, and falls back to a linear object scan when
// the xref is damaged. It is deliberately not a general PDF toolkit; anything
// it cannot decode degrades per page rather than failing the document.
package pdf

// Object is any value of the PDF object grammar.
type Object interface{}

// Name is a /Name token with escapes decoded.
type Name string

// Integer and Real are the two PDF number kinds.
type (
	Integer int64
	Real    float64
)

// String holds the decoded bytes of a literal or hex string.
type String []byte

// Boolean, Null, and Keyword round out the grammar. Keyword covers the bare
// operator tokens that appear in content streams (Tj, BT, ...).
type (
	Boolean bool
	Null    struct{}
	Keyword string
)

// Ref is an indirect object reference ("N G R").
type Ref struct {
	Num int
	Gen int
}

// Dict is a PDF dictionary.
type Dict map[Name]Object

// Array is a PDF array.
type Array []Object

// Stream couples a stream dictionary with its raw (still-encoded) data.
type Stream struct {
	Dict Dict
	Raw  []byte
}

func (d Dict) name(key Name) (Name, bool) {
	n, ok := d[key].(Name)
	return n, ok
}

func (d Dict) integer(key Name) (int, bool) {
	switch v := d[key].(type) {
	case Integer:
		return int(v), true
	case Real:
		return int(v), true
	}
	return 0, false
}
