package jsonpath

import (
	"context"
	"strconv"
	"strings"

	"github.com/cockroachdb/apd/v3"

	"github.com/jsonpath-go/jsonpath/jsonb"
)

// executePath is the entry point of path evaluation.  The document is bound
// to $, the execution context is initialized from the options, and the root
// item is evaluated with the document as the current value.  When result is
// nil the caller only needs an existence check and evaluation stops at the
// first item, except that strict mode drains the full sequence to prove the
// absence of errors.
func executePath(ctx context.Context, p *Path, doc *jsonb.Container, o execOptions, result *valueList) (execResult, error) {
	return executePathOnValue(ctx, p, documentValue(doc), o, result)
}

// executePathOnValue runs a path with an already-extracted item as the $
// binding; the tabular driver uses it to evaluate nested paths against row
// values.
func executePathOnValue(ctx context.Context, p *Path, jbv *Value, o execOptions, result *valueList) (execResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	vars, err := o.variables()
	if err != nil {
		return resError, err
	}
	e := &executor{
		ctx:                    ctx,
		vars:                   vars,
		root:                   jbv,
		current:                jbv,
		lastGeneratedObjectID:  1,
		innermostArraySize:     -1,
		laxMode:                p.lax,
		ignoreStructuralErrors: p.lax,
		throwErrors:            !o.silent,
		useTz:                  o.useTz,
		loc:                    o.loc,
	}
	if vars != nil {
		e.lastGeneratedObjectID = 1 + vars.Count()
	}

	if e.strictAbsenceOfErrors() && result == nil {
		// In strict mode a complete list of values is needed to check that
		// there are no errors at all.
		var vals valueList
		res, err := e.executeItem(p.root, jbv, &vals)
		if err != nil || isError(res) {
			return res, err
		}
		if vals.isEmpty() {
			return resNotFound, nil
		}
		return resOK, nil
	}
	return e.executeItem(p.root, jbv, result)
}

// executeItem evaluates one path item with automatic unwrapping of the
// current item in lax mode.
func (e *executor) executeItem(jsp *item, jb *Value, found *valueList) (execResult, error) {
	return e.executeItemOptUnwrapTarget(jsp, jb, found, e.autoUnwrap())
}

// executeItemOptUnwrapTarget walks the path structure, finds the relevant
// parts of the document, and evaluates expressions over them.  When unwrap
// is true an array current item is processed elementwise.
func (e *executor) executeItemOptUnwrapTarget(jsp *item, jb *Value, found *valueList, unwrap bool) (execResult, error) {
	if err := e.enter(); err != nil {
		return resError, err
	}
	defer e.leave()

	switch jsp.op {
	case OpNull, OpBool, OpNumeric, OpString, OpVariable:
		hasNext := jsp.next != nil
		if !hasNext && found == nil && jsp.op != OpVariable {
			// Skip evaluation, but not for variables: a missing variable
			// must still raise.
			return resOK, nil
		}
		baseObject := e.baseObject
		v, err := e.getPathItemValue(jsp)
		if err != nil {
			return resError, err
		}
		res, err := e.executeNextItem(jsp, v, found)
		e.baseObject = baseObject
		return res, err

	case OpAnd, OpOr, OpNot, OpIsUnknown, OpEqual, OpNotEqual, OpLess,
		OpGreater, OpLessOrEqual, OpGreaterOrEqual, OpExists, OpStartsWith,
		OpLikeRegex:
		st, err := e.executeBoolItem(jsp, jb, true)
		if err != nil {
			return resError, err
		}
		return e.appendBoolResult(jsp, found, st)

	case OpAdd:
		return e.executeBinaryArithm(jsp, jb, numericAdd, found)
	case OpSub:
		return e.executeBinaryArithm(jsp, jb, numericSub, found)
	case OpMul:
		return e.executeBinaryArithm(jsp, jb, numericMul, found)
	case OpDiv:
		return e.executeBinaryArithm(jsp, jb, numericDiv, found)
	case OpMod:
		return e.executeBinaryArithm(jsp, jb, numericMod, found)
	case OpPlus:
		return e.executeUnaryArithm(jsp, jb, false, found)
	case OpMinus:
		return e.executeUnaryArithm(jsp, jb, true, found)

	case OpAnyArray:
		if jb.arraySize() >= 0 {
			return e.executeItemUnwrapTargetArray(jsp.next, jb, found, e.autoUnwrap())
		}
		if e.autoWrap() {
			return e.executeNextItem(jsp, jb, found)
		}
		if !e.ignoreStructuralErrors {
			return e.suppressError(wildcardArrayError())
		}
		return resNotFound, nil

	case OpAnyKey:
		if jb.Kind() == KindObject {
			return e.executeAnyItem(jsp.next, jb.bin, found, 1, 1, 1, false, e.autoUnwrap())
		}
		if unwrap && jb.Kind() == KindArray {
			return e.executeItemUnwrapTargetArray(jsp, jb, found, false)
		}
		if !e.ignoreStructuralErrors {
			return e.suppressError(wildcardMemberError())
		}
		return resNotFound, nil

	case OpIndexArray:
		if jb.arraySize() >= 0 || e.autoWrap() {
			return e.executeArraySubscripts(jsp, jb, found)
		}
		if !e.ignoreStructuralErrors {
			return e.suppressError(arrayAccessorError())
		}
		return resNotFound, nil

	case OpAnyPath:
		res := resNotFound
		if jsp.anyFirst == 0 {
			// First try the next step on the current item itself, with
			// structural errors suppressed.
			saved := e.ignoreStructuralErrors
			e.ignoreStructuralErrors = true
			r, err := e.executeNextItem(jsp, jb, found)
			e.ignoreStructuralErrors = saved
			if err != nil {
				return r, err
			}
			if r == resOK && found == nil {
				return r, nil
			}
			res = r
		}
		if jb.kind == KindBinary {
			return e.executeAnyItem(jsp.next, jb.bin, found, 1,
				jsp.anyFirst, jsp.anyLast, true, e.autoUnwrap())
		}
		return res, nil

	case OpKey:
		if jb.Kind() == KindObject {
			if v, ok := jb.bin.FindKey([]byte(jsp.str)); ok {
				return e.executeNextItem(jsp, valueFromJsonb(v), found)
			}
			if !e.ignoreStructuralErrors {
				return e.suppressError(&memberNotFoundError{jsp.str})
			}
			return resNotFound, nil
		}
		if unwrap && jb.Kind() == KindArray {
			return e.executeItemUnwrapTargetArray(jsp, jb, found, false)
		}
		if !e.ignoreStructuralErrors {
			return e.suppressError(memberAccessorError())
		}
		return resNotFound, nil

	case OpCurrent:
		return e.executeNextItem(jsp, e.current, found)

	case OpRoot:
		jb = e.root
		baseObject := e.setBaseObject(jb, 0)
		res, err := e.executeNextItem(jsp, jb, found)
		e.baseObject = baseObject
		return res, err

	case OpFilter:
		if unwrap && jb.Kind() == KindArray {
			return e.executeItemUnwrapTargetArray(jsp, jb, found, false)
		}
		st, err := e.executeNestedBoolItem(jsp.left, jb)
		if err != nil {
			return resError, err
		}
		if st != triTrue {
			return resNotFound, nil
		}
		return e.executeNextItem(jsp, jb, found)

	case OpType:
		return e.executeNextItem(jsp, stringValueOf(jb.typeName()), found)

	case OpSize:
		size := jb.arraySize()
		if size < 0 {
			if !e.autoWrap() {
				if !e.ignoreStructuralErrors {
					return e.suppressError(&methodTypeError{"size", "an array", CodeStructural})
				}
				return resNotFound, nil
			}
			size = 1
		}
		return e.executeNextItem(jsp, intValue(int64(size)), found)

	case OpAbs:
		return e.executeNumericItemMethod(jsp, jb, unwrap, numericAbs, found)
	case OpFloor:
		return e.executeNumericItemMethod(jsp, jb, unwrap, numericFloor, found)
	case OpCeiling:
		return e.executeNumericItemMethod(jsp, jb, unwrap, numericCeil, found)

	case OpDouble:
		if unwrap && jb.Kind() == KindArray {
			return e.executeItemUnwrapTargetArray(jsp, jb, found, false)
		}
		return e.executeDoubleMethod(jsp, jb, found)

	case OpDatetime, OpDate, OpTime, OpTimeTz, OpTimestamp, OpTimestampTz:
		if unwrap && jb.Kind() == KindArray {
			return e.executeItemUnwrapTargetArray(jsp, jb, found, false)
		}
		return e.executeDateTimeMethod(jsp, jb, found)

	case OpKeyValue:
		if unwrap && jb.Kind() == KindArray {
			return e.executeItemUnwrapTargetArray(jsp, jb, found, false)
		}
		return e.executeKeyValueMethod(jsp, jb, found)

	case OpLast:
		if e.innermostArraySize < 0 {
			return resError, &internalError{"evaluating jsonpath LAST outside of array subscript"}
		}
		if jsp.next == nil && found == nil {
			return resOK, nil
		}
		last := int64(e.innermostArraySize - 1)
		return e.executeNextItem(jsp, intValue(last), found)

	case OpBigint:
		if unwrap && jb.Kind() == KindArray {
			return e.executeItemUnwrapTargetArray(jsp, jb, found, false)
		}
		return e.executeIntegerMethod(jsp, jb, found, 64)

	case OpInteger:
		if unwrap && jb.Kind() == KindArray {
			return e.executeItemUnwrapTargetArray(jsp, jb, found, false)
		}
		return e.executeIntegerMethod(jsp, jb, found, 32)

	case OpBoolean:
		if unwrap && jb.Kind() == KindArray {
			return e.executeItemUnwrapTargetArray(jsp, jb, found, false)
		}
		return e.executeBooleanMethod(jsp, jb, found)

	case OpDecimal, OpNumber:
		if unwrap && jb.Kind() == KindArray {
			return e.executeItemUnwrapTargetArray(jsp, jb, found, false)
		}
		return e.executeNumberMethod(jsp, jb, found)

	case OpStringFunc:
		if unwrap && jb.Kind() == KindArray {
			return e.executeItemUnwrapTargetArray(jsp, jb, found, false)
		}
		return e.executeStringMethod(jsp, jb, found)
	}
	return resError, &internalError{"unrecognized jsonpath item " + strconv.Itoa(int(jsp.op))}
}

// getPathItemValue converts a scalar or variable path node into an item.
func (e *executor) getPathItemValue(jsp *item) (*Value, error) {
	switch jsp.op {
	case OpNull:
		return nullValue(), nil
	case OpBool:
		return boolValue(jsp.b), nil
	case OpNumeric:
		return numericValue(jsp.num), nil
	case OpString:
		return stringValueOf(jsp.str), nil
	default: // OpVariable
		return e.lookupVariable(jsp.str)
	}
}

// executeItemUnwrapTargetArray unwraps the current array item and executes
// jsp (the same or the next path item) for each of its elements.
func (e *executor) executeItemUnwrapTargetArray(jsp *item, jb *Value, found *valueList, unwrapElements bool) (execResult, error) {
	if jb.kind != KindBinary {
		return resError, &internalError{"invalid array value type"}
	}
	return e.executeAnyItem(jsp, jb.bin, found, 1, 1, 1, false, unwrapElements)
}

// executeNextItem executes the item's next step if any, otherwise appends
// the produced value to the result list.
func (e *executor) executeNextItem(cur *item, v *Value, found *valueList) (execResult, error) {
	if cur.next != nil {
		return e.executeItem(cur.next, v, found)
	}
	if found != nil {
		found.append(v)
	}
	return resOK, nil
}

// executeItemOptUnwrapResult is like executeItem, but in lax mode each array
// item of the resulting sequence is unwrapped when unwrap is true.
func (e *executor) executeItemOptUnwrapResult(jsp *item, jb *Value, unwrap bool, found *valueList) (execResult, error) {
	if unwrap && e.autoUnwrap() {
		var seq valueList
		res, err := e.executeItem(jsp, jb, &seq)
		if err != nil || isError(res) {
			return res, err
		}
		it := seq.iterator()
		for v := it.next(); v != nil; v = it.next() {
			if v.Kind() == KindArray {
				for i := 0; i < v.bin.Len(); i++ {
					elem, _ := v.bin.Index(i)
					found.append(valueFromJsonb(elem))
				}
			} else {
				found.append(v)
			}
		}
		return resOK, nil
	}
	return e.executeItem(jsp, jb, found)
}

// executeItemOptUnwrapResultSilent additionally suppresses errors.
func (e *executor) executeItemOptUnwrapResultSilent(jsp *item, jb *Value, unwrap bool, found *valueList) (execResult, error) {
	throwErrors := e.throwErrors
	e.throwErrors = false
	res, err := e.executeItemOptUnwrapResult(jsp, jb, unwrap, found)
	e.throwErrors = throwErrors
	return res, err
}

// executeAnyItem implements the .* and [*] accessors and the recursive
// descent of .**.  Children of the container are visited in native order;
// recursion is depth first, parents before children.
func (e *executor) executeAnyItem(jsp *item, c *jsonb.Container, found *valueList, level, first, last uint32, ignoreStructuralErrors, unwrapNext bool) (execResult, error) {
	if err := e.enter(); err != nil {
		return resError, err
	}
	defer e.leave()

	res := resNotFound
	if level > last {
		return res, nil
	}
	it := c.Iterate()
	for {
		tok, elem, ok := it.Next()
		if !ok {
			break
		}
		if tok != jsonb.TokValue && tok != jsonb.TokElem {
			continue
		}
		v := valueFromJsonb(elem)

		if level >= first ||
			first == anyUnbounded && last == anyUnbounded && v.kind != KindBinary {
			if jsp != nil {
				var err error
				if ignoreStructuralErrors {
					saved := e.ignoreStructuralErrors
					e.ignoreStructuralErrors = true
					res, err = e.executeItemOptUnwrapTarget(jsp, v, found, unwrapNext)
					e.ignoreStructuralErrors = saved
				} else {
					res, err = e.executeItemOptUnwrapTarget(jsp, v, found, unwrapNext)
				}
				if err != nil || isError(res) {
					return res, err
				}
				if res == resOK && found == nil {
					return res, nil
				}
			} else if found != nil {
				found.append(v)
			} else {
				return resOK, nil
			}
		}

		if level < last && v.kind == KindBinary {
			var err error
			res, err = e.executeAnyItem(jsp, v.bin, found, level+1, first, last,
				ignoreStructuralErrors, unwrapNext)
			if err != nil || isError(res) {
				return res, err
			}
			if res == resOK && found == nil {
				return res, nil
			}
		}
	}
	return res, nil
}

// executeArraySubscripts evaluates the subscript list of an array accessor.
// Each subscript yields a single numeric index or a from-to range; LAST is
// bound to the size of the innermost array while subscripts are evaluated.
func (e *executor) executeArraySubscripts(jsp *item, jb *Value, found *valueList) (execResult, error) {
	size := jb.arraySize()
	singleton := size < 0
	if singleton {
		size = 1
	}
	savedSize := e.innermostArraySize
	e.innermostArraySize = size
	defer func() { e.innermostArraySize = savedSize }()

	res := resNotFound
	for _, sub := range jsp.subs {
		indexFrom, r, err := e.getArrayIndex(sub.from, jb)
		if err != nil || isError(r) {
			return r, err
		}
		indexTo := indexFrom
		if sub.to != nil {
			indexTo, r, err = e.getArrayIndex(sub.to, jb)
			if err != nil || isError(r) {
				return r, err
			}
		}
		if !e.ignoreStructuralErrors &&
			(indexFrom < 0 || indexFrom > indexTo || indexTo >= int32(size)) {
			return e.suppressError(subscriptOutOfBoundsError())
		}
		if indexFrom < 0 {
			indexFrom = 0
		}
		if indexTo >= int32(size) {
			indexTo = int32(size) - 1
		}
		res = resNotFound
		for index := indexFrom; index <= indexTo; index++ {
			var v *Value
			if singleton {
				v = jb
			} else {
				elem, ok := jb.bin.Index(int(index))
				if !ok {
					continue
				}
				v = valueFromJsonb(elem)
			}
			if jsp.next == nil && found == nil {
				return resOK, nil
			}
			res, err = e.executeNextItem(jsp, v, found)
			if err != nil || isError(res) {
				return res, err
			}
			if res == resOK && found == nil {
				break
			}
		}
		if res == resOK && found == nil {
			break
		}
	}
	return res, nil
}

// getArrayIndex evaluates a subscript expression and truncates the
// resulting numeric to a 32-bit index.
func (e *executor) getArrayIndex(jsp *item, jb *Value) (int32, execResult, error) {
	var seq valueList
	res, err := e.executeItem(jsp, jb, &seq)
	if err != nil || isError(res) {
		return 0, res, err
	}
	if seq.length() != 1 {
		r, err := e.suppressError(subscriptNotNumericError())
		return 0, r, err
	}
	num, ok := seq.head().asNumeric()
	if !ok {
		r, err := e.suppressError(subscriptNotNumericError())
		return 0, r, err
	}
	index, ok := numericTruncToInt32(num)
	if !ok {
		r, err := e.suppressError(subscriptOutOfRangeError())
		return 0, r, err
	}
	return index, resOK, nil
}

// executeBinaryArithm evaluates both operands as sequences with lax
// auto-unwrapping and applies fn to the two singleton numerics.
func (e *executor) executeBinaryArithm(jsp *item, jb *Value, fn binaryNumericFunc, found *valueList) (execResult, error) {
	var lseq, rseq valueList
	res, err := e.executeItemOptUnwrapResult(jsp.left, jb, true, &lseq)
	if err != nil || isError(res) {
		return res, err
	}
	res, err = e.executeItemOptUnwrapResult(jsp.right, jb, true, &rseq)
	if err != nil || isError(res) {
		return res, err
	}

	lnum, ok := singletonNumeric(&lseq)
	if !ok {
		return e.suppressError(&singletonNumericError{"left", jsp.op})
	}
	rnum, ok := singletonNumeric(&rseq)
	if !ok {
		return e.suppressError(&singletonNumericError{"right", jsp.op})
	}

	num, err := fn(lnum, rnum)
	if err != nil {
		return e.suppressError(err)
	}
	if jsp.next == nil && found == nil {
		return resOK, nil
	}
	return e.executeNextItem(jsp, numericValue(num), found)
}

func singletonNumeric(seq *valueList) (*apd.Decimal, bool) {
	if seq.length() != 1 {
		return nil, false
	}
	return seq.head().asNumeric()
}

// executeUnaryArithm applies unary plus or minus to each numeric item of
// the operand's sequence.
func (e *executor) executeUnaryArithm(jsp *item, jb *Value, negate bool, found *valueList) (execResult, error) {
	var seq valueList
	res, err := e.executeItemOptUnwrapResult(jsp.left, jb, true, &seq)
	if err != nil || isError(res) {
		return res, err
	}
	hasNext := jsp.next != nil
	res = resNotFound
	it := seq.iterator()
	for v := it.next(); v != nil; v = it.next() {
		num, ok := v.asNumeric()
		if ok {
			if found == nil && !hasNext {
				return resOK, nil
			}
		} else {
			if found == nil && !hasNext {
				// Skip non-numerics when only existence matters.
				continue
			}
			return e.suppressError(&unaryOperandError{jsp.op})
		}
		if negate {
			num = numericUMinus(num)
		}
		res2, err := e.executeNextItem(jsp, numericValue(num), found)
		if err != nil || isError(res2) {
			return res2, err
		}
		if res2 == resOK {
			if found == nil {
				return resOK, nil
			}
			res = resOK
		}
	}
	return res, nil
}

// executeNumericItemMethod executes .abs(), .floor(), and .ceiling().
func (e *executor) executeNumericItemMethod(jsp *item, jb *Value, unwrap bool, fn func(*apd.Decimal) (*apd.Decimal, error), found *valueList) (execResult, error) {
	if unwrap && jb.Kind() == KindArray {
		return e.executeItemUnwrapTargetArray(jsp, jb, found, false)
	}
	num, ok := jb.asNumeric()
	if !ok {
		return e.suppressError(&methodTypeError{jsp.op.String(), "a numeric value", CodeNumeric})
	}
	res, err := fn(num)
	if err != nil {
		return e.suppressError(err)
	}
	if jsp.next == nil && found == nil {
		return resOK, nil
	}
	return e.executeNextItem(jsp, numericValue(res), found)
}

// executeDoubleMethod implements .double().  A numeric input is validated
// against the double range and passed through unchanged; a string input is
// converted through an IEEE double.
func (e *executor) executeDoubleMethod(jsp *item, jb *Value, found *valueList) (execResult, error) {
	switch jb.kind {
	case KindNumeric:
		f, ok := numericFloat64(jb.num)
		if !ok || isInfOrNaN(f) {
			return e.suppressError(&nanInfError{"double"})
		}
		return e.executeNextItem(jsp, jb, found)
	case KindString:
		text := string(jb.str)
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return e.suppressError(&methodArgumentError{text, "double", "double precision"})
		}
		if isInfOrNaN(f) {
			return e.suppressError(&nanInfError{"double"})
		}
		return e.executeNextItem(jsp, numericValue(numericFromFloat64(f)), found)
	}
	return e.suppressError(&methodTypeError{"double", "a string or numeric value", CodeNumeric})
}

func isInfOrNaN(f float64) bool {
	return f != f || f > 1.7976931348623157e308 || f < -1.7976931348623157e308
}

// executeIntegerMethod implements .bigint() and .integer().
func (e *executor) executeIntegerMethod(jsp *item, jb *Value, found *valueList, bits int) (execResult, error) {
	name, typ := "bigint", "bigint"
	if bits == 32 {
		name, typ = "integer", "integer"
	}
	var val int64
	switch jb.kind {
	case KindNumeric:
		var ok bool
		if bits == 32 {
			var i int32
			i, ok = numericRoundToInt32(jb.num)
			val = int64(i)
		} else {
			val, ok = numericRoundToInt64(jb.num)
		}
		if !ok {
			return e.suppressError(&methodArgumentError{jb.num.String(), name, typ})
		}
	case KindString:
		text := string(jb.str)
		i, err := strconv.ParseInt(strings.TrimSpace(text), 10, bits)
		if err != nil {
			return e.suppressError(&methodArgumentError{text, name, typ})
		}
		val = i
	default:
		return e.suppressError(&methodTypeError{name, "a string or numeric value", CodeNumeric})
	}
	return e.executeNextItem(jsp, intValue(val), found)
}

// executeBooleanMethod implements .boolean().
func (e *executor) executeBooleanMethod(jsp *item, jb *Value, found *valueList) (execResult, error) {
	var bval bool
	switch jb.kind {
	case KindBool:
		bval = jb.b
	case KindNumeric:
		i, err := jb.num.Int64()
		if err != nil {
			return e.suppressError(&methodArgumentError{jb.num.String(), "boolean", "boolean"})
		}
		if i < -2147483648 || i > 2147483647 {
			return e.suppressError(&methodArgumentError{jb.num.String(), "boolean", "boolean"})
		}
		bval = i != 0
	case KindString:
		b, ok := parseBoolString(string(jb.str))
		if !ok {
			return e.suppressError(&methodArgumentError{string(jb.str), "boolean", "boolean"})
		}
		bval = b
	default:
		return e.suppressError(&methodTypeError{"boolean", "a boolean, string, or numeric value", CodeNumeric})
	}
	return e.executeNextItem(jsp, boolValue(bval), found)
}

// parseBoolString accepts the usual boolean spellings, including unique
// prefixes of "true", "false", "yes", and "no".
func parseBoolString(s string) (bool, bool) {
	switch t := strings.ToLower(strings.TrimSpace(s)); t {
	case "t", "tr", "tru", "true", "y", "ye", "yes", "on", "1":
		return true, true
	case "f", "fa", "fal", "fals", "false", "n", "no", "off", "of", "0":
		return false, true
	}
	return false, false
}

// executeNumberMethod implements .number() and .decimal(p, s).
func (e *executor) executeNumberMethod(jsp *item, jb *Value, found *valueList) (execResult, error) {
	name := jsp.op.String()
	var num *apd.Decimal
	switch jb.kind {
	case KindNumeric:
		num = jb.num
	case KindString:
		var ok bool
		num, ok = parseNumeric(string(jb.str))
		if !ok {
			return e.suppressError(&methodArgumentError{string(jb.str), name, "numeric"})
		}
	default:
		return e.suppressError(&methodTypeError{name, "a string or numeric value", CodeNumeric})
	}
	if isNaNOrInf(num) {
		return e.suppressError(&nanInfError{name})
	}

	if jsp.op == OpDecimal && jsp.left != nil {
		precision, ok := numericRoundToInt32(jsp.left.num)
		if !ok {
			return e.suppressError(&precisionRangeError{"precision", name})
		}
		scale := int32(0)
		if jsp.right != nil {
			scale, ok = numericRoundToInt32(jsp.right.num)
			if !ok {
				return e.suppressError(&precisionRangeError{"scale", name})
			}
		}
		if precision < 1 || precision > 1000 {
			return e.suppressError(&numericOpError{errPrecisionBounds(int(precision))})
		}
		if scale < -1000 || scale > 1000 {
			return e.suppressError(&numericOpError{errScaleBounds(int(scale))})
		}
		res, err := numericWithTypmod(num, int(precision), int(scale))
		if err != nil {
			return e.suppressError(err)
		}
		num = res
	}
	return e.executeNextItem(jsp, numericValue(num), found)
}

// executeStringMethod implements .string().
func (e *executor) executeStringMethod(jsp *item, jb *Value, found *valueList) (execResult, error) {
	var text string
	switch jb.kind {
	case KindString:
		text = string(jb.str)
	case KindNumeric:
		text = jb.num.String()
	case KindBool:
		if jb.b {
			text = "true"
		} else {
			text = "false"
		}
	case KindDatetime:
		text = jb.dt.String()
	default:
		return e.suppressError(&methodTypeError{"string",
			"a boolean, string, numeric, or datetime value", CodeNumeric})
	}
	return e.executeNextItem(jsp, stringValueOf(text), found)
}

// executeDateTimeMethod implements .datetime() and the typed datetime
// methods.  The input string is parsed with the supplied template or the
// ISO format cascade, then cast to the method's target type.
func (e *executor) executeDateTimeMethod(jsp *item, jb *Value, found *valueList) (execResult, error) {
	name := jsp.op.String()
	str, ok := jb.asString()
	if !ok {
		return e.suppressError(&methodTypeError{name, "a string", CodeDatetime})
	}
	text := string(str)

	var dt *DateTime
	if jsp.op == OpDatetime && jsp.left != nil {
		dt, ok = parseDateTimeTemplate(text, jsp.left.str)
		if !ok {
			return e.suppressError(&datetimeFormatError{"datetime", text, false})
		}
	} else {
		dt, ok = parseDateTimeText(text)
		if !ok {
			return e.suppressError(&datetimeFormatError{name, text, jsp.op == OpDatetime})
		}
	}

	var target DateTimeType
	hasTarget := true
	switch jsp.op {
	case OpDate:
		target = Date
	case OpTime:
		target = Time
	case OpTimeTz:
		target = TimeTz
	case OpTimestamp:
		target = Timestamp
	case OpTimestampTz:
		target = TimestampTz
	default:
		hasTarget = false
	}
	if hasTarget {
		cast, err := dt.castTo(target, e.useTz, e.loc)
		if err == errIncompatibleCast {
			return e.suppressError(&datetimeFormatError{name, text, false})
		}
		if err != nil {
			// Timezone policy violations raise even with suppression on.
			return resError, err
		}
		dt = cast
		if jsp.op != OpDate && jsp.left != nil {
			precision, ok := numericRoundToInt32(jsp.left.num)
			if !ok {
				return e.suppressError(&precisionRangeError{"time precision", name})
			}
			p, err := checkTimePrecision(int(precision), name)
			if err != nil {
				return e.suppressError(err)
			}
			dt = dt.withPrecision(p)
		}
	}

	if jsp.next == nil && found == nil {
		return resOK, nil
	}
	return e.executeNextItem(jsp, datetimeValue(dt), found)
}

// keyvalueIDMultiplier separates the base object id from the container
// offset in generated ids; it is the first power of ten above 2^32.
const keyvalueIDMultiplier = 10_000_000_000

// executeKeyValueMethod implements .keyvalue(), emitting one {key, value,
// id} object per entry of the input object.  Each emitted object becomes
// the base object for its own next step.
func (e *executor) executeKeyValueMethod(jsp *item, jb *Value, found *valueList) (execResult, error) {
	if jb.Kind() != KindObject {
		return e.suppressError(&methodTypeError{"keyvalue", "an object", CodeStructural})
	}
	c := jb.bin
	if c.Len() == 0 {
		return resNotFound, nil
	}

	offset := c.Offset()
	if e.baseObject.c != nil && jsonb.SameDocument(c, e.baseObject.c) {
		offset = c.Offset() - e.baseObject.c.Offset()
	}
	id := int64(e.baseObject.id)*keyvalueIDMultiplier + int64(offset)
	idNum := apd.New(id, 0)

	res := resNotFound
	for i := 0; i < c.Len(); i++ {
		res = resOK
		if jsp.next == nil && found == nil {
			break
		}
		obj, err := jsonb.BuildObject([]jsonb.Field{
			{Key: "key", Val: jsonb.Value{Type: jsonb.TypeString, Str: c.Key(i)}},
			{Key: "value", Val: c.Entry(i)},
			{Key: "id", Val: jsonb.Value{Type: jsonb.TypeNumber, Num: idNum}},
		})
		if err != nil {
			return resError, &internalError{err.Error()}
		}
		v := binaryValue(obj)
		baseObject := e.setBaseObject(v, e.lastGeneratedObjectID)
		e.lastGeneratedObjectID++
		res2, err := e.executeNextItem(jsp, v, found)
		e.baseObject = baseObject
		if err != nil || isError(res2) {
			return res2, err
		}
		if res2 == resOK && found == nil {
			break
		}
		res = res2
	}
	return res, nil
}

// appendBoolResult converts a tri-valued predicate outcome into a boolean
// or null item and executes the next path step.
func (e *executor) appendBoolResult(jsp *item, found *valueList, res triBool) (execResult, error) {
	if jsp.next == nil && found == nil {
		return resOK, nil // found singleton boolean value
	}
	var v *Value
	if res == triUnknown {
		v = nullValue()
	} else {
		v = boolValue(res == triTrue)
	}
	return e.executeNextItem(jsp, v, found)
}

func errPrecisionBounds(p int) error {
	return &boundsError{"NUMERIC precision " + strconv.Itoa(p) + " must be between 1 and 1000"}
}

func errScaleBounds(s int) error {
	return &boundsError{"NUMERIC scale " + strconv.Itoa(s) + " must be between -1000 and 1000"}
}

type boundsError struct {
	msg string
}

func (err *boundsError) Error() string { return err.msg }
