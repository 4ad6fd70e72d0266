package formula

import (
	"errors"
	"fmt"
)

// Sentinel errors. Every error returned by this package matches exactly one of
// these with errors.Is (empty input matches both ErrSyntax and
// ErrEmptyExpression).
var (
	ErrSyntax           = errors.New("formula: syntax error")
	ErrEmptyExpression  = errors.New("formula: empty expression")
	ErrUnknownVariable  = errors.New("formula: unknown variable")
	ErrUnknownFunction  = errors.New("formula: unknown function")
	ErrDivisionByZero   = errors.New("formula: division by zero")
	ErrInvalidArguments = errors.New("formula: invalid function arguments")
	ErrDiceTooLarge     = errors.New("formula: dice term too large to average")
)

// SyntaxError describes why a source string could not be parsed.
type SyntaxError struct {
	Source string
	// Offset is the byte offset of the offending token, or -1 when unknown.
	Offset int
	Reason string
	empty  bool
}

func (e *SyntaxError) Error() string {
	if e.empty {
		return ErrEmptyExpression.Error()
	}
	if e.Offset >= 0 {
		return fmt.Sprintf("formula: syntax error in %q at offset %d: %s", e.Source, e.Offset, e.Reason)
	}
	return fmt.Sprintf("formula: syntax error in %q: %s", e.Source, e.Reason)
}

// Is matches ErrSyntax, and ErrEmptyExpression for blank input.
func (e *SyntaxError) Is(target error) bool {
	switch target {
	case ErrSyntax:
		return true
	case ErrEmptyExpression:
		return e.empty
	}
	return false
}

// UnknownVariableError is returned when a Variable has no binding.
type UnknownVariableError struct {
	Name string
}

func (e *UnknownVariableError) Error() string {
	return fmt.Sprintf("formula: unknown variable %q", e.Name)
}

func (e *UnknownVariableError) Unwrap() error { return ErrUnknownVariable }

// UnknownFunctionError is returned when a FunctionCall names no library function.
type UnknownFunctionError struct {
	Name string
}

func (e *UnknownFunctionError) Error() string {
	return fmt.Sprintf("formula: unknown function %q", e.Name)
}

func (e *UnknownFunctionError) Unwrap() error { return ErrUnknownFunction }

func arityError(name string, got int, want string) error {
	return fmt.Errorf("%w: %s takes %s argument(s), got %d", ErrInvalidArguments, name, want, got)
}
