// Package cerr defines the composer's error taxonomy.
//
// Kinds, not classes: BuildError and LowerError/CompileError are compile-time
// and fatal; RuntimeError and BadRequest are conductor-time and map to HTTP
// status codes; UserError is the only kind a "try" frame can recover from.
package cerr

import "fmt"

// BuildError is raised synchronously by the Builder for an invalid argument
// to a combinator constructor.
type BuildError struct {
	Message  string
	Argument interface{}
}

func (e *BuildError) Error() string {
	return e.Message
}

func NewBuildError(message string, argument interface{}) *BuildError {
	return &BuildError{Message: message, Argument: argument}
}

// LowerError signals a lowering rule that could not apply to an otherwise
// well-built AST — unreachable unless the Builder let something malformed
// through.
type LowerError struct {
	Message string
}

func (e *LowerError) Error() string { return e.Message }

func NewLowerError(format string, args ...interface{}) *LowerError {
	return &LowerError{Message: fmt.Sprintf(format, args...)}
}

// CompileError signals a structural inconsistency discovered by the
// Flattener — also unreachable in correctly built and lowered trees.
type CompileError struct {
	Message string
}

func (e *CompileError) Error() string { return e.Message }

func NewCompileError(format string, args ...interface{}) *CompileError {
	return &CompileError{Message: fmt.Sprintf(format, args...)}
}

// RuntimeError is an internal conductor invariant violation (e.g. exit on an
// empty stack). It maps to HTTP 500.
type RuntimeError struct {
	Message string
}

func (e *RuntimeError) Error() string { return e.Message }

func NewRuntimeError(format string, args ...interface{}) *RuntimeError {
	return &RuntimeError{Message: fmt.Sprintf(format, args...)}
}

// UserError wraps an application-level error surfaced by an action or inline
// function through the params.error field. Only a "try" frame recovers it.
type UserError struct {
	Value interface{}
}

func (e *UserError) Error() string {
	return fmt.Sprintf("user error: %v", e.Value)
}

func NewUserError(value interface{}) *UserError {
	return &UserError{Value: value}
}

// BadRequest signals a malformed $resume envelope. Maps to HTTP 400.
type BadRequest struct {
	Message string
}

func (e *BadRequest) Error() string { return e.Message }

func NewBadRequest(format string, args ...interface{}) *BadRequest {
	return &BadRequest{Message: fmt.Sprintf(format, args...)}
}

// Code maps an error produced anywhere in the conductor to the terminal
// output status code defined in spec §6.4.
func Code(err error) int {
	switch err.(type) {
	case *BadRequest:
		return 400
	default:
		return 500
	}
}
