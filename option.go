package jsonpath

import "time"

// Option configures one path evaluation.
type Option func(*execOptions)

type execOptions struct {
	vars    map[string]any
	varList Variables
	silent  bool
	useTz   bool
	loc     *time.Location
}

// WithVars provides named values to substitute into the path.  The values
// are exposed as a single variables object, like passing a JSON object of
// variables to the query functions.
func WithVars(vars map[string]any) Option {
	return func(o *execOptions) {
		o.vars = vars
	}
}

// WithVariables provides a custom variable environment, e.g. a VarList with
// per-variable base-object ids.
func WithVariables(vars Variables) Option {
	return func(o *execOptions) {
		o.varList = vars
	}
}

// WithSilent suppresses suppressible evaluation errors: missing object
// fields, unexpected item types, numeric and datetime failures.  Structural
// errors in strict mode then yield empty or unknown results instead of
// failing the query.
func WithSilent() Option {
	return func(o *execOptions) {
		o.silent = true
	}
}

// WithTZ permits datetime casts and comparisons that require timezone
// knowledge.  Without it such operations fail even under WithSilent.
func WithTZ() Option {
	return func(o *execOptions) {
		o.useTz = true
	}
}

// WithLocation sets the timezone used for casts enabled by WithTZ.  The
// default is UTC.
func WithLocation(loc *time.Location) Option {
	return func(o *execOptions) {
		o.loc = loc
	}
}

func buildOptions(opts []Option) execOptions {
	var o execOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.loc == nil {
		o.loc = time.UTC
	}
	return o
}

func (o *execOptions) variables() (Variables, error) {
	if o.varList != nil {
		return o.varList, nil
	}
	if o.vars == nil {
		return nil, nil
	}
	return newMapVariables(o.vars)
}
