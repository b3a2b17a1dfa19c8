package jsonb

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/cockroachdb/apd/v3"
)

// Parse decodes JSON text and encodes it as a document.
func Parse(data []byte) (*Container, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("jsonb: %w", err)
	}
	// Reject trailing garbage after the first value.
	if dec.More() {
		return nil, fmt.Errorf("jsonb: trailing data after JSON value")
	}
	return FromGo(v)
}

// FromGo encodes a Go value as a document.  Accepted types are nil, bool,
// string, json.Number, int, int64, float64, *apd.Decimal, []byte (string),
// []any, map[string]any, and Value.
func FromGo(v any) (*Container, error) {
	buf, err := appendNode(nil, v)
	if err != nil {
		return nil, err
	}
	switch v.(type) {
	case map[string]any, []any:
		return &Container{buf: buf}, nil
	}
	if val, ok := v.(Value); ok && (val.Type == TypeObject || val.Type == TypeArray) {
		return &Container{buf: buf}, nil
	}
	return &Container{buf: wrapScalar(buf)}, nil
}

// Field is one key-value pair for BuildObject.
type Field struct {
	Key string
	Val Value
}

// BuildObject constructs a fresh single-object document.  Duplicate keys keep
// the last value.
func BuildObject(fields []Field) (*Container, error) {
	m := make(map[string]any, len(fields))
	for _, f := range fields {
		m[f.Key] = f.Val
	}
	return FromGo(m)
}

// BuildArray constructs a fresh single-array document.
func BuildArray(elems []Value) (*Container, error) {
	vs := make([]any, len(elems))
	for i, e := range elems {
		vs[i] = e
	}
	return FromGo(vs)
}

func wrapScalar(node []byte) []byte {
	buf := make([]byte, 0, len(node)+5)
	buf = append(buf, tagScalar)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(node)+5))
	return append(buf, node...)
}

func appendNode(dst []byte, v any) ([]byte, error) {
	switch v := v.(type) {
	case nil:
		return append(dst, tagNull), nil
	case bool:
		if v {
			return append(dst, tagTrue), nil
		}
		return append(dst, tagFalse), nil
	case string:
		return appendBytesNode(dst, tagString, []byte(v)), nil
	case []byte:
		return appendBytesNode(dst, tagString, v), nil
	case json.Number:
		if _, _, err := apd.NewFromString(string(v)); err != nil {
			return nil, fmt.Errorf("jsonb: invalid number %q", v)
		}
		return appendBytesNode(dst, tagNumber, []byte(v)), nil
	case int:
		return appendNode(dst, json.Number(fmt.Sprintf("%d", v)))
	case int64:
		return appendNode(dst, json.Number(fmt.Sprintf("%d", v)))
	case float64:
		return appendNode(dst, json.Number(formatFloat(v)))
	case *apd.Decimal:
		if v.Form != apd.Finite {
			return nil, fmt.Errorf("jsonb: cannot encode non-finite number %s", v)
		}
		return appendBytesNode(dst, tagNumber, []byte(v.String())), nil
	case Value:
		return appendValueNode(dst, v)
	case []any:
		return appendArrayNode(dst, v)
	case map[string]any:
		return appendObjectNode(dst, v)
	default:
		return nil, fmt.Errorf("jsonb: unsupported type %T", v)
	}
}

func formatFloat(f float64) string {
	b, _ := json.Marshal(f)
	return string(b)
}

func appendValueNode(dst []byte, v Value) ([]byte, error) {
	switch v.Type {
	case TypeNull:
		return append(dst, tagNull), nil
	case TypeBool:
		return appendNode(dst, v.Bool)
	case TypeNumber:
		return appendNode(dst, v.Num)
	case TypeString:
		return appendBytesNode(dst, tagString, v.Str), nil
	case TypeObject, TypeArray:
		// Copy the encoded subtree verbatim; child offsets are relative.
		c := v.Child
		return append(dst, c.buf[c.off:c.off+nodeLen(c.buf, c.off)]...), nil
	default:
		return nil, fmt.Errorf("jsonb: invalid value type %d", v.Type)
	}
}

func appendBytesNode(dst []byte, tag byte, b []byte) []byte {
	dst = append(dst, tag)
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(b)))
	return append(dst, b...)
}

func appendArrayNode(dst []byte, elems []any) ([]byte, error) {
	children := make([][]byte, len(elems))
	for i, e := range elems {
		c, err := appendNode(nil, e)
		if err != nil {
			return nil, err
		}
		children[i] = c
	}
	header := 9 + 4*len(elems)
	total := header
	for _, c := range children {
		total += len(c)
	}
	dst = append(dst, tagArray)
	dst = binary.BigEndian.AppendUint32(dst, uint32(total))
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(elems)))
	rel := header
	for _, c := range children {
		dst = binary.BigEndian.AppendUint32(dst, uint32(rel))
		rel += len(c)
	}
	for _, c := range children {
		dst = append(dst, c...)
	}
	return dst, nil
}

func appendObjectNode(dst []byte, m map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return compareKeys([]byte(keys[i]), []byte(keys[j])) < 0
	})
	keyNodes := make([][]byte, len(keys))
	valNodes := make([][]byte, len(keys))
	for i, k := range keys {
		keyNodes[i] = appendBytesNode(nil, tagString, []byte(k))
		v, err := appendNode(nil, m[k])
		if err != nil {
			return nil, err
		}
		valNodes[i] = v
	}
	header := 9 + 8*len(keys)
	total := header
	for i := range keys {
		total += len(keyNodes[i]) + len(valNodes[i])
	}
	dst = append(dst, tagObject)
	dst = binary.BigEndian.AppendUint32(dst, uint32(total))
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(keys)))
	rel := header
	for i := range keys {
		dst = binary.BigEndian.AppendUint32(dst, uint32(rel))
		rel += len(keyNodes[i])
		dst = binary.BigEndian.AppendUint32(dst, uint32(rel))
		rel += len(valNodes[i])
	}
	for i := range keys {
		dst = append(dst, keyNodes[i]...)
		dst = append(dst, valNodes[i]...)
	}
	return dst, nil
}

// ToGo decodes the container back into Go values.  Numbers come back as
// json.Number so no precision is lost on re-encoding.
func (c *Container) ToGo() any {
	switch c.Kind() {
	case Object:
		m := make(map[string]any, c.Len())
		for i := 0; i < c.Len(); i++ {
			m[string(c.Key(i))] = valueToGo(c.Entry(i))
		}
		return m
	case Array:
		vs := make([]any, c.Len())
		for i := range vs {
			v, _ := c.Index(i)
			vs[i] = valueToGo(v)
		}
		return vs
	default:
		v, _ := c.Scalar()
		return valueToGo(v)
	}
}

func valueToGo(v Value) any {
	switch v.Type {
	case TypeNull:
		return nil
	case TypeBool:
		return v.Bool
	case TypeNumber:
		return json.Number(v.Num.String())
	case TypeString:
		return string(v.Str)
	default:
		return v.Child.ToGo()
	}
}

// String renders the container as JSON text.
func (c *Container) String() string {
	b, err := json.Marshal(c.ToGo())
	if err != nil {
		return fmt.Sprintf("jsonb(%v)", err)
	}
	return string(b)
}
