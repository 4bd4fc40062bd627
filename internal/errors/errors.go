// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrUnauthorized  = errors.New("sender is not authorized")
	ErrTimeout       = errors.New("operation timed out")
	ErrConfigInvalid = errors.New("invalid configuration")
)

// ParseReason classifies why an incoming signal failed to parse.
type ParseReason string

const (
	ReasonInvalidOrderType ParseReason = "invalid order type"
	ReasonInvalidSymbol    ParseReason = "invalid symbol"
	ReasonInvalidNumber    ParseReason = "invalid number"
	ReasonMissingLine      ParseReason = "missing line"
)

// ParseError reports a defect in an incoming signal message. It is terminal
// for that message only; the service keeps accepting subsequent messages.
type ParseError struct {
	Reason ParseReason
	Line   int
	Detail string
}

func (e *ParseError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("parse error on line %d: %s: %s", e.Line+1, e.Reason, e.Detail)
	}
	return fmt.Sprintf("parse error on line %d: %s", e.Line+1, e.Reason)
}

// NewParseError creates a new ParseError.
func NewParseError(reason ParseReason, line int, detail string) *ParseError {
	return &ParseError{Reason: reason, Line: line, Detail: detail}
}

// ConnectionError wraps a failure at one stage of the remote account
// lifecycle (deploy, wait-connected, connect, wait-synchronized, or a
// fetch). It aborts the whole trade attempt.
type ConnectionError struct {
	Stage string
	Err   error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error [%s]: %v", e.Stage, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// NewConnectionError creates a new ConnectionError.
func NewConnectionError(stage string, err error) *ConnectionError {
	return &ConnectionError{Stage: stage, Err: err}
}

// OrderError reports a failed submission of a single take-profit leg.
// Sibling legs are unaffected by it.
type OrderError struct {
	Leg        int
	Symbol     string
	TakeProfit float64
	Err        error
}

func (e *OrderError) Error() string {
	return fmt.Sprintf("order error [leg %d] %s tp=%v: %v", e.Leg+1, e.Symbol, e.TakeProfit, e.Err)
}

func (e *OrderError) Unwrap() error {
	return e.Err
}

// NewOrderError creates a new OrderError.
func NewOrderError(leg int, symbol string, takeProfit float64, err error) *OrderError {
	return &OrderError{Leg: leg, Symbol: symbol, TakeProfit: takeProfit, Err: err}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
