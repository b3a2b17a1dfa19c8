package jsonpath

import (
	"context"
	"time"

	"github.com/jsonpath-go/jsonpath/jsonb"
)

// execResult is the disposition of one evaluation step.
type execResult int

const (
	resOK       execResult = iota // sequence is not empty
	resNotFound                   // sequence is empty
	resError                      // a suppressed error occurred
)

func isError(res execResult) bool { return res == resError }

// Variables supplies values for $name references in a path.
type Variables interface {
	// Get returns the value of the named variable together with the base
	// object to install for .keyvalue() identity and that object's id.
	// ok is false when the variable is not defined.
	Get(name string) (v, base *Value, id int, ok bool)
	// Count returns the number of base objects the environment contributes.
	Count() int
}

// mapVariables exposes a single JSON object as the variable environment.
// The whole object is one base object with id 1.
type mapVariables struct {
	obj *jsonb.Container
}

func newMapVariables(m map[string]any) (*mapVariables, error) {
	obj, err := jsonb.FromGo(toAnyMap(m))
	if err != nil {
		return nil, err
	}
	return &mapVariables{obj: obj}, nil
}

func toAnyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func (vars *mapVariables) Get(name string) (*Value, *Value, int, bool) {
	v, ok := vars.obj.FindKey([]byte(name))
	if !ok {
		return nil, nil, 0, false
	}
	return valueFromJsonb(v), binaryValue(vars.obj), 1, true
}

func (vars *mapVariables) Count() int { return 1 }

// Var is one named variable for VarList.
type Var struct {
	Name  string
	Value any
}

// VarList is an ordered variable environment: each entry is its own base
// object with a 1-based ordinal id.
type VarList []Var

// Get implements Variables.
func (vars VarList) Get(name string) (*Value, *Value, int, bool) {
	for i, v := range vars {
		if v.Name == name {
			val, err := goValue(v.Value)
			if err != nil {
				return nil, nil, 0, false
			}
			return val, val, i + 1, true
		}
	}
	return nil, nil, 0, false
}

// Count implements Variables.
func (vars VarList) Count() int { return len(vars) }

// goValue converts a Go value into an item, encoding containers through the
// codec.
func goValue(v any) (*Value, error) {
	switch v := v.(type) {
	case *Value:
		return v, nil
	case *DateTime:
		return datetimeValue(v), nil
	case *jsonb.Container:
		return documentValue(v), nil
	}
	c, err := jsonb.FromGo(v)
	if err != nil {
		return nil, err
	}
	return documentValue(c), nil
}

// baseObject identifies the container that .keyvalue() ids are derived
// from.
type baseObject struct {
	c  *jsonb.Container
	id int
}

// maxStackDepth bounds evaluator recursion, converting runaway recursion
// into an error before the goroutine stack is exhausted.
const maxStackDepth = 4096

// executor is the context of one path evaluation.
type executor struct {
	ctx  context.Context
	vars Variables

	root    *Value // the $ item
	current *Value // the @ item

	baseObject            baseObject
	lastGeneratedObjectID int

	innermostArraySize int // for LAST; -1 outside any subscript

	laxMode                bool
	ignoreStructuralErrors bool
	throwErrors            bool
	useTz                  bool
	loc                    *time.Location

	depth int
}

func (e *executor) strictAbsenceOfErrors() bool { return !e.laxMode }
func (e *executor) autoUnwrap() bool            { return e.laxMode }
func (e *executor) autoWrap() bool              { return e.laxMode }

// enter guards one recursion step: stack depth and cooperative cancel.
func (e *executor) enter() error {
	e.depth++
	if e.depth > maxStackDepth {
		return &stackDepthError{}
	}
	if err := e.ctx.Err(); err != nil {
		return err
	}
	return nil
}

func (e *executor) leave() { e.depth-- }

// suppressError converts a suppressible error into the error disposition
// when errors are not thrown.
func (e *executor) suppressError(err error) (execResult, error) {
	if e.throwErrors {
		return resError, err
	}
	return resError, nil
}

// setBaseObject installs a new base object and returns the previous one.
func (e *executor) setBaseObject(v *Value, id int) baseObject {
	prev := e.baseObject
	if v.kind == KindBinary {
		e.baseObject = baseObject{c: v.bin, id: id}
	} else {
		e.baseObject = baseObject{id: id}
	}
	return prev
}

// lookupVariable resolves a $name reference, installing the variable's base
// object.  A missing variable is an error even when errors are suppressed.
func (e *executor) lookupVariable(name string) (*Value, error) {
	if e.vars != nil {
		if v, base, id, ok := e.vars.Get(name); ok {
			if id > 0 {
				e.setBaseObject(base, id)
			}
			return v, nil
		}
	}
	return nil, &variableNotFoundError{name}
}
