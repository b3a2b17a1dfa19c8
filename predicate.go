package jsonpath

import (
	"bytes"
	"errors"
	"regexp"
	"strings"
)

// triBool is the tri-valued result of predicate evaluation.  Unknown models
// both an undefined answer and a suppressed error.
type triBool int

const (
	triFalse triBool = iota
	triTrue
	triUnknown
)

// predicateCallback checks one pair of operand items.
type predicateCallback func(pred *item, l, r *Value) (triBool, error)

// executeBoolItem evaluates a boolean-valued path item.
func (e *executor) executeBoolItem(jsp *item, jb *Value, canHaveNext bool) (triBool, error) {
	if err := e.enter(); err != nil {
		return triUnknown, err
	}
	defer e.leave()

	if !canHaveNext && jsp.next != nil {
		return triUnknown, &internalError{"boolean jsonpath item cannot have next item"}
	}

	switch jsp.op {
	case OpAnd:
		res, err := e.executeBoolItem(jsp.left, jb, false)
		if err != nil {
			return triUnknown, err
		}
		if res == triFalse {
			return triFalse, nil
		}
		// The second argument is evaluated even on Unknown, since it may
		// yield False.
		res2, err := e.executeBoolItem(jsp.right, jb, false)
		if err != nil {
			return triUnknown, err
		}
		if res2 == triTrue {
			return res, nil
		}
		return res2, nil

	case OpOr:
		res, err := e.executeBoolItem(jsp.left, jb, false)
		if err != nil {
			return triUnknown, err
		}
		if res == triTrue {
			return triTrue, nil
		}
		res2, err := e.executeBoolItem(jsp.right, jb, false)
		if err != nil {
			return triUnknown, err
		}
		if res2 == triFalse {
			return res, nil
		}
		return res2, nil

	case OpNot:
		res, err := e.executeBoolItem(jsp.left, jb, false)
		if err != nil || res == triUnknown {
			return triUnknown, err
		}
		if res == triTrue {
			return triFalse, nil
		}
		return triTrue, nil

	case OpIsUnknown:
		res, err := e.executeBoolItem(jsp.left, jb, false)
		if err != nil {
			return triUnknown, err
		}
		if res == triUnknown {
			return triTrue, nil
		}
		return triFalse, nil

	case OpEqual, OpNotEqual, OpLess, OpGreater, OpLessOrEqual, OpGreaterOrEqual:
		return e.executePredicate(jsp, jsp.left, jsp.right, jb, true, e.compareCallback)

	case OpStartsWith:
		return e.executePredicate(jsp, jsp.left, jsp.right, jb, false, startsWithCallback)

	case OpLikeRegex:
		return e.executePredicate(jsp, jsp.left, nil, jb, false, likeRegexCallback)

	case OpExists:
		if e.strictAbsenceOfErrors() {
			// A complete list of values is needed to check that there are
			// no errors at all.
			var vals valueList
			res, err := e.executeItemOptUnwrapResultSilent(jsp.left, jb, false, &vals)
			if err != nil {
				return triUnknown, err
			}
			if isError(res) {
				return triUnknown, nil
			}
			if vals.isEmpty() {
				return triFalse, nil
			}
			return triTrue, nil
		}
		res, err := e.executeItemOptUnwrapResultSilent(jsp.left, jb, false, nil)
		if err != nil {
			return triUnknown, err
		}
		if isError(res) {
			return triUnknown, nil
		}
		if res == resOK {
			return triTrue, nil
		}
		return triFalse, nil
	}
	return triUnknown, &internalError{"invalid boolean jsonpath item " + jsp.op.String()}
}

// executeNestedBoolItem evaluates a nested boolean expression, pushing the
// current item onto the @ stack.
func (e *executor) executeNestedBoolItem(jsp *item, jb *Value) (triBool, error) {
	prev := e.current
	e.current = jb
	res, err := e.executeBoolItem(jsp, jb, false)
	e.current = prev
	return res, err
}

// executePredicate executes a unary or binary predicate.  Predicates have
// existence semantics: pairs of items from the operand sequences are
// checked and True is returned as soon as any pair satisfies the condition.
// In strict mode all pairs are examined regardless, to check the absence of
// errors; any error makes the result Unknown.
func (e *executor) executePredicate(pred, larg, rarg *item, jb *Value, unwrapRightArg bool, cb predicateCallback) (triBool, error) {
	var lseq, rseq valueList

	// Left argument is always auto-unwrapped.
	res, err := e.executeItemOptUnwrapResultSilent(larg, jb, true, &lseq)
	if err != nil {
		return triUnknown, err
	}
	if isError(res) {
		return triUnknown, nil
	}
	if rarg != nil {
		// Right argument is conditionally auto-unwrapped.
		res, err = e.executeItemOptUnwrapResultSilent(rarg, jb, unwrapRightArg, &rseq)
		if err != nil {
			return triUnknown, err
		}
		if isError(res) {
			return triUnknown, nil
		}
	}

	errored := false
	found := false
	lit := lseq.iterator()
	for lval := lit.next(); lval != nil; lval = lit.next() {
		rit := rseq.iterator()
		var rval *Value
		first := true
		if rarg != nil {
			rval = rit.next()
		}
		for rarg != nil && rval != nil || rarg == nil && first {
			res, err := cb(pred, lval, rval)
			if err != nil {
				return triUnknown, err
			}
			switch res {
			case triUnknown:
				if e.strictAbsenceOfErrors() {
					return triUnknown, nil
				}
				errored = true
			case triTrue:
				if !e.strictAbsenceOfErrors() {
					return triTrue, nil
				}
				found = true
			}
			first = false
			if rarg != nil {
				rval = rit.next()
			}
		}
	}

	if found { // possible only in strict mode
		return triTrue, nil
	}
	if errored { // possible only in lax mode
		return triUnknown, nil
	}
	return triFalse, nil
}

func (e *executor) compareCallback(pred *item, l, r *Value) (triBool, error) {
	return compareItems(pred.op, l, r, e.useTz, e.loc)
}

// startsWithCallback checks whether the whole string starts with the
// initial string.  Non-string operands yield Unknown.
func startsWithCallback(_ *item, whole, initial *Value) (triBool, error) {
	w, ok := whole.asString()
	if !ok {
		return triUnknown, nil
	}
	i, ok := initial.asString()
	if !ok {
		return triUnknown, nil
	}
	if bytes.HasPrefix(w, i) {
		return triTrue, nil
	}
	return triFalse, nil
}

// likeRegexCallback checks the string against the item's regex, compiled on
// first use.
func likeRegexCallback(pred *item, str, _ *Value) (triBool, error) {
	s, ok := str.asString()
	if !ok {
		return triUnknown, nil
	}
	re, err := pred.compileRegex()
	if err != nil {
		return triUnknown, err
	}
	if re.Match(s) {
		return triTrue, nil
	}
	return triFalse, nil
}

// compileRegex converts the like_regex flags to Go regexp inline flags and
// compiles the pattern once.  Compilation failures raise regardless of
// error suppression.
func (it *item) compileRegex() (*regexp.Regexp, error) {
	if it.reDone {
		return it.re, it.reErr
	}
	it.reDone = true
	pat := it.pattern
	quote := strings.ContainsRune(it.flags, 'q')
	var inline strings.Builder
	for _, f := range it.flags {
		switch f {
		case 'i':
			inline.WriteByte('i')
		case 's':
			if !quote {
				inline.WriteByte('s')
			}
		case 'm':
			if !quote {
				inline.WriteByte('m')
			}
		case 'x':
			if !quote {
				it.reErr = errors.New(`XQuery "x" flag (expanded regular expressions) is not implemented`)
				return nil, it.reErr
			}
		case 'q':
		}
	}
	if quote {
		pat = regexp.QuoteMeta(pat)
	}
	expr := pat
	if inline.Len() > 0 {
		expr = "(?" + inline.String() + ")" + pat
	}
	it.re, it.reErr = regexp.Compile(expr)
	return it.re, it.reErr
}
