package app

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidStatementID is returned for statement ids the service does
	// not know.
	ErrInvalidStatementID = errors.New("Invalid statement ID.")
	// ErrDuplicateStatement is returned when a statement id is already in use.
	ErrDuplicateStatement = errors.New("statement id already in use")
	// ErrStatementBusy is returned when freeing a statement, or closing its
	// connection, while it is still being prepared.
	ErrStatementBusy = errors.New("statement is still being prepared")
	// ErrUnknownConnection is returned for connection ids that are not open.
	ErrUnknownConnection = errors.New("unknown connection")
	// ErrHostVariables is returned when the number of arguments does not
	// match the statement's input parameters.
	ErrHostVariables = errors.New("Too many or too few host variables given.")
)

// ErrConnection represents a database connection error.
type ErrConnection struct {
	ConnID string
	Cause  error
}

func (e *ErrConnection) Error() string {
	return fmt.Sprintf("connection error: %v", e.Cause)
}

func (e *ErrConnection) Unwrap() error {
	return e.Cause
}

// ErrPrepare represents a failed preparation.
type ErrPrepare struct {
	StmtID string
	Cause  error
}

func (e *ErrPrepare) Error() string {
	return fmt.Sprintf("prepare error: %v", e.Cause)
}

func (e *ErrPrepare) Unwrap() error {
	return e.Cause
}

// ErrConfig represents a configuration error.
type ErrConfig struct {
	Cause error
}

func (e *ErrConfig) Error() string {
	return fmt.Sprintf("config error: %v", e.Cause)
}

func (e *ErrConfig) Unwrap() error {
	return e.Cause
}
