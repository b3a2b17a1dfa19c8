package jsonpath

import (
	"bytes"
	"time"
)

// compareItems compares two SQL/JSON items under the given operator and
// returns a tri-valued result.  Items of different kinds are not comparable,
// except that null against non-null yields true for != and false for every
// other operator.
func compareItems(op Op, a, b *Value, useTz bool, loc *time.Location) (triBool, error) {
	if a.kind != b.kind {
		if a.kind == KindNull || b.kind == KindNull {
			if op == OpNotEqual {
				return triTrue, nil
			}
			return triFalse, nil
		}
		return triUnknown, nil
	}

	var cmp int
	switch a.kind {
	case KindNull:
		cmp = 0
	case KindBool:
		switch {
		case a.b == b.b:
			cmp = 0
		case a.b:
			cmp = 1
		default:
			cmp = -1
		}
	case KindNumeric:
		cmp = a.num.Cmp(b.num)
	case KindString:
		if op == OpEqual {
			if bytes.Equal(a.str, b.str) {
				return triTrue, nil
			}
			return triFalse, nil
		}
		cmp = compareStrings(a.str, b.str)
	case KindDatetime:
		var castErr bool
		var err error
		cmp, castErr, err = compareDateTime(a.dt, b.dt, useTz, loc)
		if err != nil {
			return triUnknown, err
		}
		if castErr {
			return triUnknown, nil
		}
	default:
		// Arrays, objects, and other non-scalars are not comparable.
		return triUnknown, nil
	}

	var res bool
	switch op {
	case OpEqual:
		res = cmp == 0
	case OpNotEqual:
		res = cmp != 0
	case OpLess:
		res = cmp < 0
	case OpGreater:
		res = cmp > 0
	case OpLessOrEqual:
		res = cmp <= 0
	case OpGreaterOrEqual:
		res = cmp >= 0
	default:
		return triUnknown, &internalError{"unrecognized comparison operator " + op.String()}
	}
	if res {
		return triTrue, nil
	}
	return triFalse, nil
}

// compareStrings orders strings by Unicode codepoint.  Document strings are
// UTF-8, whose byte order matches codepoint order, so a byte comparison
// suffices.
func compareStrings(a, b []byte) int {
	return bytes.Compare(a, b)
}
