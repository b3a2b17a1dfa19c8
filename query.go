// Package jsonpath implements SQL/JSON path expressions over a binary JSON
// document model: parsing path text, evaluating it against documents in
// both lax and strict modes, and driving table-shaped row extraction.
package jsonpath

import (
	"context"
	"encoding/json"

	"github.com/jsonpath-go/jsonpath/jsonb"
)

// documentContainer encodes the query input as a document.  Accepted inputs
// are an encoded *jsonb.Container, JSON text as []byte or json.RawMessage,
// or plain Go data (nil, bool, string, numbers, []any, map[string]any).
func documentContainer(doc any) (*jsonb.Container, error) {
	switch d := doc.(type) {
	case *jsonb.Container:
		return d, nil
	case []byte:
		return jsonb.Parse(d)
	case json.RawMessage:
		return jsonb.Parse(d)
	default:
		return jsonb.FromGo(d)
	}
}

// Exists checks whether the path returns at least one item for the
// document.  When the result is unknown, for example a suppressed error
// under WithSilent, it returns false and ErrUnknown.
func (p *Path) Exists(ctx context.Context, doc any, opts ...Option) (bool, error) {
	c, err := documentContainer(doc)
	if err != nil {
		return false, err
	}
	res, err := executePath(ctx, p, c, buildOptions(opts), nil)
	if err != nil {
		return false, err
	}
	if isError(res) {
		return false, ErrUnknown
	}
	return res == resOK, nil
}

// Match evaluates a predicate check expression, which must produce a single
// boolean or null.  A null result yields ErrUnknown; any other non-boolean
// result is an error, reported as ErrUnknown under WithSilent.
func (p *Path) Match(ctx context.Context, doc any, opts ...Option) (bool, error) {
	c, err := documentContainer(doc)
	if err != nil {
		return false, err
	}
	o := buildOptions(opts)
	var found valueList
	res, err := executePath(ctx, p, c, o, &found)
	if err != nil {
		return false, err
	}
	if !isError(res) && found.length() == 1 {
		switch v := found.head(); v.kind {
		case KindBool:
			return v.b, nil
		case KindNull:
			return false, ErrUnknown
		}
	}
	if o.silent {
		return false, ErrUnknown
	}
	return false, &singleBooleanError{}
}

// Query returns all items the path selects from the document.  Suppressed
// errors under WithSilent yield an empty result.
func (p *Path) Query(ctx context.Context, doc any, opts ...Option) ([]*Value, error) {
	c, err := documentContainer(doc)
	if err != nil {
		return nil, err
	}
	var found valueList
	res, err := executePath(ctx, p, c, buildOptions(opts), &found)
	if err != nil {
		return nil, err
	}
	if isError(res) {
		return nil, nil
	}
	return found.values(), nil
}

// QueryArray is like Query but wraps the result sequence in a JSON array.
func (p *Path) QueryArray(ctx context.Context, doc any, opts ...Option) (*Value, error) {
	items, err := p.Query(ctx, doc, opts...)
	if err != nil {
		return nil, err
	}
	return wrapItemsInArray(items)
}

// QueryFirst returns the first item the path selects, or nil when there is
// none.
func (p *Path) QueryFirst(ctx context.Context, doc any, opts ...Option) (*Value, error) {
	c, err := documentContainer(doc)
	if err != nil {
		return nil, err
	}
	var found valueList
	res, err := executePath(ctx, p, c, buildOptions(opts), &found)
	if err != nil {
		return nil, err
	}
	if isError(res) || found.isEmpty() {
		return nil, nil
	}
	return found.head(), nil
}

// Wrapper selects how QueryValue wraps multi-item results.
type Wrapper int

const (
	WrapperUnspec Wrapper = iota // same as WrapperNone
	WrapperNone
	WrapperConditional   // wrap only when there is more than one item
	WrapperUnconditional // always wrap
)

// QueryValue returns the single item the path selects, applying the given
// wrapper mode.  It returns nil for an empty result, ErrUnknown for a
// suppressed evaluation error, and an error when multiple items remain
// without a wrapper.
func (p *Path) QueryValue(ctx context.Context, doc any, wrapper Wrapper, opts ...Option) (*Value, error) {
	c, err := documentContainer(doc)
	if err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	var found valueList
	res, err := executePath(ctx, p, c, o, &found)
	if err != nil {
		return nil, err
	}
	if isError(res) {
		return nil, ErrUnknown
	}
	count := found.length()
	if count == 0 {
		return nil, nil
	}
	wrap := false
	switch wrapper {
	case WrapperUnconditional:
		wrap = true
	case WrapperConditional:
		wrap = count > 1
	}
	if wrap {
		return wrapItemsInArray(found.values())
	}
	if count > 1 {
		if o.silent {
			return nil, ErrUnknown
		}
		return nil, &multipleItemsError{}
	}
	return found.head(), nil
}

// wrapItemsInArray constructs a JSON array item from the result list.
func wrapItemsInArray(items []*Value) (*Value, error) {
	elems := make([]jsonb.Value, len(items))
	for i, v := range items {
		elems[i] = v.toJsonb()
	}
	c, err := jsonb.BuildArray(elems)
	if err != nil {
		return nil, &internalError{err.Error()}
	}
	return binaryValue(c), nil
}
