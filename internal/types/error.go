package types

import (
	"errors"
	"fmt"
	"net/http"
)

// Error type names rendered in the response envelope.
const (
	TypeValidation   = "validation"
	TypeBadRequest   = "bad-request"
	TypeNotFound     = "not-found"
	TypeConflict     = "conflict"
	TypeForbidden    = "forbidden"
	TypeUnauthorized = "unauthorized"
	TypeVersion      = "version"
	TypeInternal     = "internal"
)

type CustomError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Type    string      `json:"type"`
	Details interface{} `json:"details,omitempty"`
}

func (e *CustomError) Error() string {
	return fmt.Sprintf("%d: %s [type: %s]", e.Code, e.Message, e.Type)
}

// WithDetails returns a copy of the error carrying details.
func (e *CustomError) WithDetails(details interface{}) *CustomError {
	cp := *e
	cp.Details = details
	return &cp
}

func ValidationError(message string, details interface{}) *CustomError {
	return &CustomError{Code: http.StatusBadRequest, Message: message, Type: TypeValidation, Details: details}
}

func BadRequestError(message string) *CustomError {
	return &CustomError{Code: http.StatusBadRequest, Message: message, Type: TypeBadRequest}
}

func NotFoundError(message string) *CustomError {
	return &CustomError{Code: http.StatusNotFound, Message: message, Type: TypeNotFound}
}

// ConflictError reports a state precondition failure. currentStatus is omitted when empty.
func ConflictError(message, currentStatus string) *CustomError {
	e := &CustomError{Code: http.StatusConflict, Message: message, Type: TypeConflict}
	if currentStatus != "" {
		e.Details = map[string]string{"currentStatus": currentStatus}
	}
	return e
}

// VersionError is the optimistic concurrency conflict for form edits.
func VersionError(currentVersion uint64) *CustomError {
	return &CustomError{
		Code:    http.StatusConflict,
		Message: "E_VERSION - Refresh and reconcile with current version and retry.",
		Type:    TypeVersion,
		Details: map[string]string{"currentVersion": fmt.Sprintf("%d", currentVersion)},
	}
}

func ForbiddenError(message string) *CustomError {
	return &CustomError{Code: http.StatusForbidden, Message: message, Type: TypeForbidden}
}

func UnauthorizedError(message string) *CustomError {
	return &CustomError{Code: http.StatusUnauthorized, Message: message, Type: TypeUnauthorized}
}

func InternalError(message string) *CustomError {
	return &CustomError{Code: http.StatusInternalServerError, Message: message, Type: TypeInternal}
}

// AsCustomError unwraps err into a CustomError, if it carries one.
func AsCustomError(err error) (*CustomError, bool) {
	var ce *CustomError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// HasCode reports whether err is a CustomError with the given status code.
func HasCode(err error, code int) bool {
	ce, ok := AsCustomError(err)
	return ok && ce.Code == code
}
