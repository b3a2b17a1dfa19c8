package jsonpath

import (
	"context"
)

// TablePlan describes how row patterns are derived for a table scan.  A
// PathScan evaluates a path against its parent row (or the input document
// at the root) and yields one row per resulting item; a SiblingJoin
// concatenates the row streams of two sibling plans.
type TablePlan interface {
	isTablePlan()
}

// PathScan is a plan node that scans the result sequence of a path.
type PathScan struct {
	Path *Path
	// ErrorOnError propagates row-pattern evaluation errors instead of
	// yielding an empty row set.
	ErrorOnError bool
	// ColMin and ColMax delimit the column range owned by this scan,
	// inclusive.  Set ColMax < ColMin for a scan owning no columns.
	ColMin, ColMax int
	// Child computes nested rows against each row of this scan.
	Child TablePlan
}

func (*PathScan) isTablePlan() {}

// SiblingJoin unions the rows of two sibling plans.
type SiblingJoin struct {
	Left, Right TablePlan
}

func (*SiblingJoin) isTablePlan() {}

// TableColumn describes one output column.  A nil Path makes it an ordinal
// column counting the rows of its owning scan.
type TableColumn struct {
	Name    string
	Path    *Path
	Wrapper Wrapper
}

// Table drives row-by-row evaluation of a table plan over one document.
// Use SetDocument to install the input, then FetchRow and GetValue.
type Table struct {
	ctx       context.Context
	opts      execOptions
	cols      []TableColumn
	colStates []*tablePlanState
	root      *tablePlanState
}

type tablePlanState struct {
	t    *Table
	plan TablePlan

	// PathScan state
	path         *Path
	errorOnError bool
	found        valueList
	iter         valueIterator
	current      *Value // nil when no row is selected
	ordinal      int
	nested       *tablePlanState
	parent       *tablePlanState

	// SiblingJoin state
	left  *tablePlanState
	right *tablePlanState
}

// NewTable initializes the plan state for the given plan tree and columns.
// PASSING arguments are supplied via WithVars or WithVariables.
func NewTable(ctx context.Context, plan TablePlan, cols []TableColumn, opts ...Option) (*Table, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	t := &Table{
		ctx:       ctx,
		opts:      buildOptions(opts),
		cols:      cols,
		colStates: make([]*tablePlanState, len(cols)),
	}
	t.root = t.initPlan(plan, nil)
	for i, ps := range t.colStates {
		if ps == nil {
			return nil, &internalError{"table column " + cols[i].Name + " is not owned by any plan"}
		}
	}
	return t, nil
}

func (t *Table) initPlan(plan TablePlan, parent *tablePlanState) *tablePlanState {
	ps := &tablePlanState{t: t, plan: plan, parent: parent}
	switch p := plan.(type) {
	case *PathScan:
		ps.path = p.Path
		ps.errorOnError = p.ErrorOnError
		for i := p.ColMin; i >= 0 && i <= p.ColMax && i < len(t.colStates); i++ {
			t.colStates[i] = ps
		}
		if p.Child != nil {
			ps.nested = t.initPlan(p.Child, ps)
		}
	case *SiblingJoin:
		ps.left = t.initPlan(p.Left, parent)
		ps.right = t.initPlan(p.Right, parent)
	}
	return ps
}

// SetDocument installs the input document and evaluates the root row
// pattern.
func (t *Table) SetDocument(doc any) error {
	c, err := documentContainer(doc)
	if err != nil {
		return err
	}
	return t.resetRowPattern(t.root, documentValue(c))
}

// resetRowPattern re-runs a scan's path against the given item and rewinds
// its iterator.
func (t *Table) resetRowPattern(ps *tablePlanState, item *Value) error {
	ps.found.clear()
	o := t.opts
	o.silent = !ps.errorOnError
	res, err := executePathOnValue(t.ctx, ps.path, item, o, &ps.found)
	if err != nil {
		return err
	}
	if isError(res) {
		ps.found.clear()
	}
	ps.iter = ps.found.iterator()
	ps.current = nil
	ps.ordinal = 0
	return nil
}

// FetchRow advances to the next row.  It returns false when the plan has
// run out of rows.
func (t *Table) FetchRow() (bool, error) {
	return t.root.nextRow()
}

func (ps *tablePlanState) nextRow() (bool, error) {
	if _, ok := ps.plan.(*PathScan); ok {
		return ps.scanNextRow()
	}
	return ps.joinNextRow()
}

// scanNextRow fetches the next row from the scan's result sequence and from
// any nested plans.  Nested rows are joined against the current parent row;
// a nested plan with no matching rows still leaves its columns NULL, making
// the join an outer one.
func (ps *tablePlanState) scanNextRow() (bool, error) {
	// If there is an active row and a nested plan, try to advance the
	// nested plan first.
	if ps.current != nil && ps.nested != nil {
		ok, err := ps.nested.nextRow()
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}

	v := ps.iter.next()
	if v == nil {
		ps.current = nil
		return false, nil
	}
	ps.current = v
	ps.ordinal++

	if ps.nested != nil {
		if err := ps.nested.resetNested(); err != nil {
			return false, err
		}
		// Prime the nested plan; an empty nested result is still a valid
		// joined row with NULL nested columns.
		if _, err := ps.nested.nextRow(); err != nil {
			return false, err
		}
	}
	return true, nil
}

// resetNested re-evaluates a nested plan's row pattern against the new
// parent row.
func (ps *tablePlanState) resetNested() error {
	if _, ok := ps.plan.(*PathScan); ok {
		if ps.parent.current != nil {
			return ps.t.resetRowPattern(ps, ps.parent.current)
		}
		return nil
	}
	if err := ps.left.resetNested(); err != nil {
		return err
	}
	return ps.right.resetNested()
}

// joinNextRow exhausts the left sibling, then the right: a UNION ALL of the
// two row streams.
func (ps *tablePlanState) joinNextRow() (bool, error) {
	ok, err := ps.left.nextRow()
	if err != nil || ok {
		return ok, err
	}
	return ps.right.nextRow()
}

// GetValue computes the value of the given column for the current row.  A
// column whose owning scan has no current row is NULL (nil).
func (t *Table) GetValue(colnum int) (*Value, error) {
	if colnum < 0 || colnum >= len(t.colStates) {
		return nil, &internalError{"table column number out of range"}
	}
	ps := t.colStates[colnum]
	if ps.current == nil {
		return nil, nil
	}
	col := t.cols[colnum]
	if col.Path == nil {
		return intValue(int64(ps.ordinal)), nil
	}

	var found valueList
	res, err := executePathOnValue(t.ctx, col.Path, ps.current, t.opts, &found)
	if err != nil {
		return nil, err
	}
	if isError(res) || found.isEmpty() {
		return nil, nil
	}
	count := found.length()
	wrap := false
	switch col.Wrapper {
	case WrapperUnconditional:
		wrap = true
	case WrapperConditional:
		wrap = count > 1
	}
	if wrap {
		return wrapItemsInArray(found.values())
	}
	if count > 1 {
		if t.opts.silent {
			return nil, nil
		}
		return nil, &multipleItemsError{}
	}
	return found.head(), nil
}

// Destroy releases the plan state.
func (t *Table) Destroy() {
	t.root = nil
	t.colStates = nil
}
