// Package jsonb implements a compact binary encoding for JSON documents.
//
// A document is a single flat byte buffer of length-prefixed nodes.  Object
// and array nodes carry offset tables for their children, so member lookup
// and element access do not decode siblings.  Object keys are stored sorted
// by (length, bytes), and FindKey binary-searches them; enumeration yields
// this native order.  The byte offset of every container within its document
// is observable, which callers use to derive stable object identifiers.
package jsonb

import (
	"encoding/binary"
	"fmt"

	"github.com/cockroachdb/apd/v3"
)

// Node tags.
const (
	tagNull   = 0x00
	tagFalse  = 0x01
	tagTrue   = 0x02
	tagNumber = 0x03
	tagString = 0x04
	tagArray  = 0x05
	tagObject = 0x06
	tagScalar = 0x07 // document root wrapping a single scalar
)

// Kind classifies a container node.
type Kind int

const (
	Scalar Kind = iota
	Object
	Array
)

func (k Kind) String() string {
	switch k {
	case Object:
		return "object"
	case Array:
		return "array"
	default:
		return "scalar"
	}
}

// Type classifies a decoded value.
type Type int

const (
	TypeNull Type = iota
	TypeBool
	TypeNumber
	TypeString
	TypeObject
	TypeArray
)

// Container is a handle to an encoded container node within a document.
// The zero Container is not valid; obtain one from Parse, FromGo,
// BuildObject, or BuildArray, or from a decoded Value.
type Container struct {
	buf []byte
	off int
}

// Value is a single decoded element of a container.  Exactly one of the
// payload fields is meaningful, selected by Type.  Str and Num may alias the
// document buffer; the document must stay live while they are used.
type Value struct {
	Type  Type
	Bool  bool
	Num   *apd.Decimal
	Str   []byte
	Child *Container
}

// SameDocument reports whether two containers live in the same buffer.
func SameDocument(a, b *Container) bool {
	return a != nil && b != nil && len(a.buf) > 0 && len(b.buf) > 0 &&
		&a.buf[0] == &b.buf[0]
}

// Offset returns the byte offset of the container node within its document.
func (c *Container) Offset() int { return c.off }

// Kind returns the kind of the container node.
func (c *Container) Kind() Kind {
	switch c.buf[c.off] {
	case tagObject:
		return Object
	case tagArray:
		return Array
	default:
		return Scalar
	}
}

// Len returns the number of elements (array) or key-value pairs (object).
// A scalar container has length 1.
func (c *Container) Len() int {
	switch c.buf[c.off] {
	case tagObject, tagArray:
		return c.u32(c.off + 5)
	default:
		return 1
	}
}

// Scalar returns the wrapped scalar value if the container is a scalar
// document root.
func (c *Container) Scalar() (Value, bool) {
	if c.buf[c.off] != tagScalar {
		return Value{}, false
	}
	return c.decode(c.off + 5), true
}

// Index returns the i-th array element.
func (c *Container) Index(i int) (Value, bool) {
	if c.buf[c.off] != tagArray || i < 0 || i >= c.Len() {
		return Value{}, false
	}
	rel := c.u32(c.off + 9 + 4*i)
	return c.decode(c.off + rel), true
}

// Key returns the i-th object key.
func (c *Container) Key(i int) []byte {
	rel := c.u32(c.off + 9 + 8*i)
	off := c.off + rel
	n := c.u32(off + 1)
	return c.buf[off+5 : off+5+n]
}

// Entry returns the i-th object value.
func (c *Container) Entry(i int) Value {
	rel := c.u32(c.off + 9 + 8*i + 4)
	return c.decode(c.off + rel)
}

// FindKey binary-searches the object for the given key.
func (c *Container) FindKey(key []byte) (Value, bool) {
	if c.buf[c.off] != tagObject {
		return Value{}, false
	}
	lo, hi := 0, c.Len()
	for lo < hi {
		mid := (lo + hi) / 2
		if compareKeys(c.Key(mid), key) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < c.Len() && compareKeys(c.Key(lo), key) == 0 {
		return c.Entry(lo), true
	}
	return Value{}, false
}

// compareKeys orders keys by length first, then bytes.  This is the storage
// order of object keys.
func compareKeys(a, b []byte) int {
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

func (c *Container) u32(off int) int {
	return int(binary.BigEndian.Uint32(c.buf[off:]))
}

// nodeLen returns the total encoded length of the node at off.
func nodeLen(buf []byte, off int) int {
	switch buf[off] {
	case tagNull, tagFalse, tagTrue:
		return 1
	case tagNumber, tagString:
		return 5 + int(binary.BigEndian.Uint32(buf[off+1:]))
	default:
		return int(binary.BigEndian.Uint32(buf[off+1:]))
	}
}

func (c *Container) decode(off int) Value {
	switch c.buf[off] {
	case tagNull:
		return Value{Type: TypeNull}
	case tagFalse:
		return Value{Type: TypeBool}
	case tagTrue:
		return Value{Type: TypeBool, Bool: true}
	case tagNumber:
		n := c.u32(off + 1)
		d, _, err := apd.NewFromString(string(c.buf[off+5 : off+5+n]))
		if err != nil {
			panic(fmt.Sprintf("jsonb: corrupt number node at offset %d: %v", off, err))
		}
		return Value{Type: TypeNumber, Num: d}
	case tagString:
		n := c.u32(off + 1)
		return Value{Type: TypeString, Str: c.buf[off+5 : off+5+n]}
	case tagArray:
		return Value{Type: TypeArray, Child: &Container{buf: c.buf, off: off}}
	case tagObject:
		return Value{Type: TypeObject, Child: &Container{buf: c.buf, off: off}}
	default:
		panic(fmt.Sprintf("jsonb: invalid node tag 0x%02x at offset %d", c.buf[off], off))
	}
}

// Token identifies one step of a container iteration.
type Token int

const (
	TokBeginObject Token = iota
	TokKey
	TokValue
	TokBeginArray
	TokElem
	TokEnd
)

// Iterator walks a single container level.  Objects yield TokBeginObject,
// then TokKey/TokValue pairs, then TokEnd; arrays yield TokBeginArray, then
// TokElem per element, then TokEnd.  Nested containers are yielded as Values
// with a Child handle, not descended into.
type Iterator struct {
	c     *Container
	state int // 0 begin, 1 walking, 2 end emitted
	i     int
	onKey bool
}

// Iterate returns an iterator over the container.  Scalar containers yield
// their single value as TokElem between begin and end array tokens.
func (c *Container) Iterate() *Iterator {
	return &Iterator{c: c}
}

// Next returns the next token.  The third result is false when iteration is
// complete.
func (it *Iterator) Next() (Token, Value, bool) {
	c := it.c
	switch it.state {
	case 0:
		it.state = 1
		it.onKey = true
		if c.Kind() == Object {
			return TokBeginObject, Value{}, true
		}
		return TokBeginArray, Value{}, true
	case 1:
		switch c.buf[c.off] {
		case tagObject:
			if it.i >= c.Len() {
				break
			}
			if it.onKey {
				it.onKey = false
				return TokKey, Value{Type: TypeString, Str: c.Key(it.i)}, true
			}
			v := c.Entry(it.i)
			it.i++
			it.onKey = true
			return TokValue, v, true
		case tagArray:
			if it.i >= c.Len() {
				break
			}
			v, _ := c.Index(it.i)
			it.i++
			return TokElem, v, true
		default: // scalar root
			if it.i == 0 {
				it.i++
				v, _ := c.Scalar()
				return TokElem, v, true
			}
		}
		it.state = 2
		return TokEnd, Value{}, true
	}
	return TokEnd, Value{}, false
}
