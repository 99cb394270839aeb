package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResult_Value(t *testing.T) {
	r := &Result{
		Columns: []Column{{Name: "x", Type: "INTEGER"}, {Name: "label"}},
		Rows:    [][]any{{int64(1), "one"}, {int64(2), "two"}},
	}

	tests := []struct {
		name   string
		row    int
		column string
		want   any
		ok     bool
	}{
		{"first row", 0, "x", int64(1), true},
		{"second row label", 1, "label", "two", true},
		{"unknown column", 0, "y", nil, false},
		{"row out of range", 2, "x", nil, false},
		{"negative row", -1, "x", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := r.Value(tt.row, tt.column)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, v)
		})
	}

	assert.Equal(t, []string{"x", "label"}, r.ColumnNames())
	assert.Equal(t, 2, r.Len())
}

func TestStoreError(t *testing.T) {
	cause := errors.New(`relation "missing" does not exist`)
	err := &StoreError{Message: cause.Error(), Code: "42P01", Err: cause}

	assert.Equal(t, `store error [42P01]: relation "missing" does not exist`, err.Error())
	assert.ErrorIs(t, err, cause)

	noCode := &StoreError{Message: "boom"}
	assert.Equal(t, "store error: boom", noCode.Error())
}
