package core

// Column describes one column of a tabular result.
type Column struct {
	Name string
	// Type is the driver-reported database type name (e.g. "INTEGER", "VARCHAR").
	// It may be empty when the driver cannot infer it.
	Type string
}

// Result is a materialized tabular result: ordered columns plus rows of
// column-indexed scalar values, in the order the store returned them.
type Result struct {
	Columns []Column
	Rows    [][]any
}

// ColumnNames returns the column names in order.
func (r *Result) ColumnNames() []string {
	names := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		names[i] = c.Name
	}
	return names
}

// ColumnIndex returns the index of the named column, or -1.
func (r *Result) ColumnIndex(name string) int {
	for i, c := range r.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Len returns the number of rows.
func (r *Result) Len() int {
	return len(r.Rows)
}

// Value returns the cell at row i for the named column.
// ok is false when the row is out of range or the column does not exist.
func (r *Result) Value(i int, column string) (v any, ok bool) {
	if i < 0 || i >= len(r.Rows) {
		return nil, false
	}
	j := r.ColumnIndex(column)
	if j < 0 {
		return nil, false
	}
	return r.Rows[i][j], true
}
