package core

import "fmt"

// StoreError is returned when the relational store rejects or fails to
// execute a statement (syntax error, undefined relation, constraint
// violation, connectivity failure). The driver error is preserved.
type StoreError struct {
	// Message is the driver's error message.
	Message string
	// Code is the driver's error classification (SQLSTATE, SQLite result
	// code, MySQL error number, ...). Empty when the driver has none.
	Code string
	// SQL is the statement that failed.
	SQL string
	Err error
}

func (e *StoreError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("store error [%s]: %s", e.Code, e.Message)
	}
	return "store error: " + e.Message
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
