package jsonpath

import (
	"encoding/json"

	"github.com/cockroachdb/apd/v3"

	"github.com/jsonpath-go/jsonpath/jsonb"
)

// Kind identifies the kind of a document value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumeric
	KindString
	KindDatetime
	KindBinary // undecoded container; effective kind is KindArray or KindObject
	KindArray
	KindObject
)

// Value is a single SQL/JSON item.  Scalars are always carried unboxed;
// arrays and objects are carried as binary container handles, and their
// payloads may alias the input document, which must stay live while results
// are consumed.
type Value struct {
	kind Kind
	b    bool
	num  *apd.Decimal
	str  []byte
	dt   *DateTime
	bin  *jsonb.Container
}

func nullValue() *Value               { return &Value{kind: KindNull} }
func boolValue(b bool) *Value         { return &Value{kind: KindBool, b: b} }
func numericValue(d *apd.Decimal) *Value {
	return &Value{kind: KindNumeric, num: d}
}
func stringValue(s []byte) *Value  { return &Value{kind: KindString, str: s} }
func stringValueOf(s string) *Value { return stringValue([]byte(s)) }
func datetimeValue(dt *DateTime) *Value {
	return &Value{kind: KindDatetime, dt: dt}
}
func binaryValue(c *jsonb.Container) *Value {
	return &Value{kind: KindBinary, bin: c}
}

func intValue(i int64) *Value {
	return numericValue(apd.New(i, 0))
}

// valueFromJsonb converts a decoded codec element into an item.
func valueFromJsonb(v jsonb.Value) *Value {
	switch v.Type {
	case jsonb.TypeNull:
		return nullValue()
	case jsonb.TypeBool:
		return boolValue(v.Bool)
	case jsonb.TypeNumber:
		return numericValue(v.Num)
	case jsonb.TypeString:
		return stringValue(v.Str)
	default:
		return binaryValue(v.Child)
	}
}

// documentValue makes the root item for a document, eagerly extracting
// top-level scalars.
func documentValue(c *jsonb.Container) *Value {
	if s, ok := c.Scalar(); ok {
		return valueFromJsonb(s)
	}
	return binaryValue(c)
}

// Kind returns the effective kind of the value, resolving binary containers
// to KindArray or KindObject.
func (v *Value) Kind() Kind {
	if v.kind == KindBinary {
		if v.bin.Kind() == jsonb.Object {
			return KindObject
		}
		return KindArray
	}
	return v.kind
}

// IsNull reports whether the value is the JSON null.
func (v *Value) IsNull() bool { return v.kind == KindNull }

// Bool returns the boolean payload.
func (v *Value) Bool() bool { return v.b }

// Numeric returns the numeric payload.
func (v *Value) Numeric() *apd.Decimal { return v.num }

// Text returns the string payload.
func (v *Value) Text() string { return string(v.str) }

// DateTime returns the datetime payload.
func (v *Value) DateTime() *DateTime { return v.dt }

// Container returns the container handle of an array or object value.
func (v *Value) Container() *jsonb.Container { return v.bin }

// asNumeric returns the numeric payload, or false for any other kind.
func (v *Value) asNumeric() (*apd.Decimal, bool) {
	if v.kind == KindNumeric {
		return v.num, true
	}
	return nil, false
}

func (v *Value) asString() ([]byte, bool) {
	if v.kind == KindString {
		return v.str, true
	}
	return nil, false
}

// arraySize returns the element count, or -1 if the value is not an array.
func (v *Value) arraySize() int {
	if v.kind == KindBinary && v.bin.Kind() == jsonb.Array {
		return v.bin.Len()
	}
	return -1
}

// typeName returns the SQL/JSON type name used by the .type() item method.
func (v *Value) typeName() string {
	switch v.Kind() {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindNumeric:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	case KindDatetime:
		switch v.dt.Type {
		case Date:
			return "date"
		case Time:
			return "time without time zone"
		case TimeTz:
			return "time with time zone"
		case Timestamp:
			return "timestamp without time zone"
		default:
			return "timestamp with time zone"
		}
	default:
		return "unknown"
	}
}

// Interface converts the value into plain Go data: nil, bool, json.Number,
// string, []any, or map[string]any.  Datetimes convert to their ISO text.
func (v *Value) Interface() any {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.b
	case KindNumeric:
		return json.Number(v.num.String())
	case KindString:
		return string(v.str)
	case KindDatetime:
		return v.dt.String()
	case KindBinary:
		return v.bin.ToGo()
	default:
		return nil
	}
}

// MarshalJSON renders the value as JSON.
func (v *Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// String renders the value as JSON text.
func (v *Value) String() string {
	b, err := v.MarshalJSON()
	if err != nil {
		return "<invalid>"
	}
	return string(b)
}

// toJsonb converts the item into a codec element for container building.
func (v *Value) toJsonb() jsonb.Value {
	switch v.kind {
	case KindNull:
		return jsonb.Value{Type: jsonb.TypeNull}
	case KindBool:
		return jsonb.Value{Type: jsonb.TypeBool, Bool: v.b}
	case KindNumeric:
		return jsonb.Value{Type: jsonb.TypeNumber, Num: v.num}
	case KindString:
		return jsonb.Value{Type: jsonb.TypeString, Str: v.str}
	case KindDatetime:
		return jsonb.Value{Type: jsonb.TypeString, Str: []byte(v.dt.String())}
	default:
		if v.bin.Kind() == jsonb.Object {
			return jsonb.Value{Type: jsonb.TypeObject, Child: v.bin}
		}
		return jsonb.Value{Type: jsonb.TypeArray, Child: v.bin}
	}
}
