package jsonpath

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/cockroachdb/apd/v3"
)

// Op identifies a path item kind.
type Op int

const (
	OpNull Op = iota
	OpBool
	OpNumeric
	OpString
	OpVariable
	OpRoot
	OpCurrent
	OpKey
	OpAnyKey
	OpAnyArray
	OpIndexArray
	OpAnyPath
	OpFilter
	OpExists
	OpIsUnknown
	OpNot
	OpAnd
	OpOr
	OpEqual
	OpNotEqual
	OpLess
	OpGreater
	OpLessOrEqual
	OpGreaterOrEqual
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpPlus
	OpMinus
	OpStartsWith
	OpLikeRegex
	OpType
	OpSize
	OpAbs
	OpFloor
	OpCeiling
	OpDouble
	OpDatetime
	OpDate
	OpTime
	OpTimeTz
	OpTimestamp
	OpTimestampTz
	OpKeyValue
	OpBigint
	OpBoolean
	OpDecimal
	OpInteger
	OpNumber
	OpStringFunc
	OpLast
)

// String returns the operation name used in error messages.
func (op Op) String() string {
	switch op {
	case OpAdd, OpPlus:
		return "+"
	case OpSub, OpMinus:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "/"
	case OpMod:
		return "%"
	case OpEqual:
		return "=="
	case OpNotEqual:
		return "!="
	case OpLess:
		return "<"
	case OpGreater:
		return ">"
	case OpLessOrEqual:
		return "<="
	case OpGreaterOrEqual:
		return ">="
	case OpAnd:
		return "&&"
	case OpOr:
		return "||"
	case OpNot:
		return "!"
	case OpLikeRegex:
		return "like_regex"
	case OpStartsWith:
		return "starts with"
	case OpExists:
		return "exists"
	case OpIsUnknown:
		return "is unknown"
	case OpType:
		return "type"
	case OpSize:
		return "size"
	case OpAbs:
		return "abs"
	case OpFloor:
		return "floor"
	case OpCeiling:
		return "ceiling"
	case OpDouble:
		return "double"
	case OpDatetime:
		return "datetime"
	case OpDate:
		return "date"
	case OpTime:
		return "time"
	case OpTimeTz:
		return "time_tz"
	case OpTimestamp:
		return "timestamp"
	case OpTimestampTz:
		return "timestamp_tz"
	case OpKeyValue:
		return "keyvalue"
	case OpBigint:
		return "bigint"
	case OpBoolean:
		return "boolean"
	case OpDecimal:
		return "decimal"
	case OpInteger:
		return "integer"
	case OpNumber:
		return "number"
	case OpStringFunc:
		return "string"
	case OpLast:
		return "last"
	default:
		return "?"
	}
}

// anyUnbounded marks an unbounded .** depth.
const anyUnbounded = math.MaxUint32

// item is one node of a compiled path.  Path steps chain through next;
// expression operands hang off left and right.
type item struct {
	op   Op
	next *item

	b   bool
	num *apd.Decimal
	str string

	left  *item
	right *item

	subs []subscript // OpIndexArray

	anyFirst uint32 // OpAnyPath
	anyLast  uint32

	pattern string // OpLikeRegex
	flags   string
	re      *regexp.Regexp // compiled on first use
	reErr   error
	reDone  bool
}

// subscript is one element of an array accessor; to is nil for a single
// index.
type subscript struct {
	from *item
	to   *item
}

// isBoolean reports whether the item is a predicate.
func (it *item) isBoolean() bool {
	switch it.op {
	case OpAnd, OpOr, OpNot, OpIsUnknown, OpEqual, OpNotEqual, OpLess,
		OpGreater, OpLessOrEqual, OpGreaterOrEqual, OpExists, OpStartsWith,
		OpLikeRegex:
		return true
	}
	return false
}

// Path is a compiled path expression ready for evaluation.
type Path struct {
	root *item
	lax  bool
}

// IsLax reports whether the path uses lax mode.
func (p *Path) IsLax() bool { return p.lax }

// IsPredicate reports whether the path is a boolean predicate check
// expression rather than a SQL-standard path.
func (p *Path) IsPredicate() bool { return p.root.isBoolean() }

// String returns the canonical text of the path.
func (p *Path) String() string {
	var sb strings.Builder
	if !p.lax {
		sb.WriteString("strict ")
	}
	printItem(&sb, p.root)
	return sb.String()
}

func printItem(sb *strings.Builder, it *item) {
	for ; it != nil; it = it.next {
		printItemHead(sb, it)
	}
}

// printItemBare prints an expression that is already delimited by the
// caller, dropping the outer parentheses of a top-level binary node.
func printItemBare(sb *strings.Builder, it *item) {
	if it.next == nil {
		switch it.op {
		case OpAnd, OpOr, OpEqual, OpNotEqual, OpLess, OpGreater,
			OpLessOrEqual, OpGreaterOrEqual, OpAdd, OpSub, OpMul, OpDiv,
			OpMod, OpStartsWith:
			printItem(sb, it.left)
			sb.WriteByte(' ')
			sb.WriteString(it.op.String())
			sb.WriteByte(' ')
			printItem(sb, it.right)
			return
		case OpLikeRegex:
			printItem(sb, it.left)
			sb.WriteString(" like_regex ")
			sb.WriteString(quoteString(it.pattern))
			if it.flags != "" {
				sb.WriteString(" flag ")
				sb.WriteString(quoteString(it.flags))
			}
			return
		}
	}
	printItem(sb, it)
}

func printItemHead(sb *strings.Builder, it *item) {
	switch it.op {
	case OpNull:
		sb.WriteString("null")
	case OpBool:
		if it.b {
			sb.WriteString("true")
		} else {
			sb.WriteString("false")
		}
	case OpNumeric:
		sb.WriteString(it.num.String())
	case OpString:
		sb.WriteString(quoteString(it.str))
	case OpVariable:
		sb.WriteByte('$')
		if isIdentifier(it.str) {
			sb.WriteString(it.str)
		} else {
			sb.WriteString(quoteString(it.str))
		}
	case OpRoot:
		sb.WriteByte('$')
	case OpCurrent:
		sb.WriteByte('@')
	case OpKey:
		sb.WriteByte('.')
		if isIdentifier(it.str) {
			sb.WriteString(it.str)
		} else {
			sb.WriteString(quoteString(it.str))
		}
	case OpAnyKey:
		sb.WriteString(".*")
	case OpAnyArray:
		sb.WriteString("[*]")
	case OpIndexArray:
		sb.WriteByte('[')
		for i, s := range it.subs {
			if i > 0 {
				sb.WriteString(", ")
			}
			printItem(sb, s.from)
			if s.to != nil {
				sb.WriteString(" to ")
				printItem(sb, s.to)
			}
		}
		sb.WriteByte(']')
	case OpAnyPath:
		sb.WriteString(".**")
		switch {
		case it.anyFirst == 0 && it.anyLast == anyUnbounded:
		case it.anyFirst == it.anyLast:
			sb.WriteByte('{')
			printAnyBound(sb, it.anyFirst)
			sb.WriteByte('}')
		default:
			sb.WriteByte('{')
			printAnyBound(sb, it.anyFirst)
			sb.WriteString(" to ")
			printAnyBound(sb, it.anyLast)
			sb.WriteByte('}')
		}
	case OpFilter:
		sb.WriteString("?(")
		printItemBare(sb, it.left)
		sb.WriteByte(')')
	case OpExists:
		sb.WriteString("exists (")
		printItemBare(sb, it.left)
		sb.WriteByte(')')
	case OpIsUnknown:
		sb.WriteByte('(')
		printItemBare(sb, it.left)
		sb.WriteString(") is unknown")
	case OpNot:
		sb.WriteString("!(")
		printItemBare(sb, it.left)
		sb.WriteByte(')')
	case OpAnd, OpOr, OpEqual, OpNotEqual, OpLess, OpGreater, OpLessOrEqual,
		OpGreaterOrEqual, OpAdd, OpSub, OpMul, OpDiv, OpMod:
		sb.WriteByte('(')
		printItem(sb, it.left)
		sb.WriteByte(' ')
		sb.WriteString(it.op.String())
		sb.WriteByte(' ')
		printItem(sb, it.right)
		sb.WriteByte(')')
	case OpStartsWith:
		sb.WriteByte('(')
		printItem(sb, it.left)
		sb.WriteString(" starts with ")
		printItem(sb, it.right)
		sb.WriteByte(')')
	case OpLikeRegex:
		sb.WriteByte('(')
		printItem(sb, it.left)
		sb.WriteString(" like_regex ")
		sb.WriteString(quoteString(it.pattern))
		if it.flags != "" {
			sb.WriteString(" flag ")
			sb.WriteString(quoteString(it.flags))
		}
		sb.WriteByte(')')
	case OpPlus, OpMinus:
		sb.WriteString(it.op.String())
		printItem(sb, it.left)
	case OpLast:
		sb.WriteString("last")
	case OpDatetime:
		sb.WriteString(".datetime(")
		if it.left != nil {
			sb.WriteString(quoteString(it.left.str))
		}
		sb.WriteByte(')')
	case OpDecimal:
		sb.WriteString(".decimal(")
		if it.left != nil {
			sb.WriteString(it.left.num.String())
			if it.right != nil {
				sb.WriteString(", ")
				sb.WriteString(it.right.num.String())
			}
		}
		sb.WriteByte(')')
	case OpTime, OpTimeTz, OpTimestamp, OpTimestampTz:
		sb.WriteByte('.')
		sb.WriteString(it.op.String())
		sb.WriteByte('(')
		if it.left != nil {
			sb.WriteString(it.left.num.String())
		}
		sb.WriteByte(')')
	default: // argument-less item methods
		sb.WriteByte('.')
		sb.WriteString(it.op.String())
		sb.WriteString("()")
	}
}

func printAnyBound(sb *strings.Builder, bound uint32) {
	if bound == anyUnbounded {
		sb.WriteString("last")
	} else {
		sb.WriteString(strconv.FormatUint(uint64(bound), 10))
	}
}

func quoteString(s string) string {
	return strconv.Quote(s)
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		switch {
		case c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_' || c >= 0x80:
		case c >= '0' && c <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
