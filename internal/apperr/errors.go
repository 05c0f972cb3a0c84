// Package apperr classifies failures into the kinds the storefront UI
// reacts to differently: inline field errors, transient notifications,
// stock conflicts, payment retries and login redirects.
package apperr

import (
	"errors"
	"net/http"
)

// Kind is the recovery class of an error.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindNetwork       Kind = "network"
	KindStockConflict Kind = "stock_conflict"
	KindPayment       Kind = "payment"
	KindAuthRequired  Kind = "auth_required"
)

// Error is a classified, user-presentable error.
type Error struct {
	Kind       Kind              `json:"kind"`
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Fields     map[string]string `json:"fields,omitempty"`
	ReturnPath string            `json:"returnPath,omitempty"`
	Err        error             `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap creates a classified error around a cause
func Wrap(kind Kind, code, message string, err error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: err}
}

// Validation creates a field-level validation error
func Validation(message string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Code: "invalid_fields", Message: message, Fields: fields}
}

// AuthRequired creates an error that sends the visitor to login and back to returnPath
func AuthRequired(returnPath string) *Error {
	return &Error{
		Kind:       KindAuthRequired,
		Code:       "auth_required",
		Message:    "Please log in to continue",
		ReturnPath: returnPath,
	}
}

// As extracts a classified error from an error chain
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of err, or an empty Kind when err is unclassified
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return ""
}

// HTTPStatus maps a kind to the status code the storefront API answers with
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindNetwork:
		return http.StatusBadGateway
	case KindStockConflict:
		return http.StatusConflict
	case KindPayment:
		return http.StatusPaymentRequired
	case KindAuthRequired:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
