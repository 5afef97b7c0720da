package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound           = NewError("NOT_FOUND", "resource not found", http.StatusNotFound)
	ErrValidation         = NewError("VALIDATION_ERROR", "validation failed", http.StatusBadRequest)
	ErrInternal           = NewError("INTERNAL_ERROR", "internal server error", http.StatusInternalServerError)
	ErrConflict           = NewError("CONFLICT", "resource conflict", http.StatusConflict)
	ErrTimeout            = NewError("TIMEOUT", "operation timed out", http.StatusRequestTimeout)
	ErrRateLimited        = NewError("RATE_LIMIT_EXCEEDED", "rate limit exceeded", http.StatusTooManyRequests)
)

// Pipeline failures. Classification errors are fatal for the message that
// caused them; everything else stays retry eligible for redelivery.
var (
	ErrClassification = NewError("CLASSIFICATION_ERROR", "message cannot be classified", http.StatusUnprocessableEntity).AsFatal()
	ErrStoreOperation = NewError("STORE_OPERATION_FAILED", "completion tracking store operation failed", http.StatusInternalServerError)
	ErrCatalogClient  = NewError("CATALOG_CLIENT_ERROR", "catalog query rejected", http.StatusBadGateway)
	ErrCatalogServer  = NewError("CATALOG_SERVER_ERROR", "catalog server error", http.StatusBadGateway)
	ErrCatalogQuery   = NewError("CATALOG_QUERY_ERROR", "catalog query failed", http.StatusBadGateway)
	ErrFileOperation  = NewError("FILE_OPERATION_ERROR", "object storage operation failed", http.StatusBadGateway)
	ErrDispatch       = NewError("DISPATCH_FAILED", "downstream dispatch failed", http.StatusInternalServerError)
	ErrExecution      = NewError("EXECUTION_FAILED", "processing run failed", http.StatusInternalServerError)
)

// Detail keys attached to pipeline errors.
const (
	DetailProductFamily = "product_family"
	DetailStoragePath   = "storage_path"
	DetailKey           = "key"
	DetailDatastripID   = "datastrip_id"
)

// FatalError is implemented by errors that know whether a retry could help.
type FatalError interface {
	error
	IsFatal() bool
}

// Error is a coded pipeline error. The With* and As* methods return copies,
// so the package level values can be used as templates.
type Error struct {
	Code    string
	Message string
	Status  int
	Details map[string]interface{}
	Cause   error
	fatal   *bool
}

func NewError(code, message string, status int) *Error {
	return &Error{Code: code, Message: message, Status: status}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// IsFatal uses, in order: an explicit AsFatal, the verdict of a cause that
// knows, and the code. Validation and not-found errors are fatal by default.
func (e *Error) IsFatal() bool {
	if e.fatal != nil {
		return *e.fatal
	}
	var cause FatalError
	if e.Cause != nil && errors.As(e.Cause, &cause) {
		return cause.IsFatal()
	}
	return e.Code == ErrValidation.Code || e.Code == ErrNotFound.Code
}

func (e *Error) WithCause(cause error) *Error {
	err := *e
	err.Cause = cause
	return &err
}

func (e *Error) WithDetail(key string, value interface{}) *Error {
	err := *e
	err.Details = make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		err.Details[k] = v
	}
	err.Details[key] = value
	return &err
}

// WithMessage overrides the human readable message without touching Code.
func (e *Error) WithMessage(message string) *Error {
	err := *e
	err.Message = message
	return &err
}

func (e *Error) AsFatal() *Error {
	err := *e
	fatal := true
	err.fatal = &fatal
	return &err
}

func IsNotFound(err error) bool {
	return HasCode(err, ErrNotFound.Code)
}

func IsValidation(err error) bool {
	return HasCode(err, ErrValidation.Code)
}

func IsConflict(err error) bool {
	return HasCode(err, ErrConflict.Code)
}

// HasCode reports whether any *Error in err's chain carries code.
func HasCode(err error, code string) bool {
	var appErr *Error
	for errors.As(err, &appErr) {
		if appErr.Code == code {
			return true
		}
		err = appErr.Cause
	}
	return false
}

func IsClassification(err error) bool {
	return HasCode(err, ErrClassification.Code)
}

func IsStoreOperation(err error) bool {
	return HasCode(err, ErrStoreOperation.Code)
}

func IsFileOperation(err error) bool {
	return HasCode(err, ErrFileOperation.Code)
}

// IsCatalogError reports whether err is any of the catalog query failures.
func IsCatalogError(err error) bool {
	return HasCode(err, ErrCatalogClient.Code) || HasCode(err, ErrCatalogServer.Code) || HasCode(err, ErrCatalogQuery.Code)
}

// IsFatal reports whether err must not be retried.
func IsFatal(err error) bool {
	var fatalErr FatalError
	if errors.As(err, &fatalErr) {
		return fatalErr.IsFatal()
	}
	return false
}

func ToHTTPStatus(err error) int {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	return http.StatusInternalServerError
}

func ToErrorResponse(err error) map[string]interface{} {
	var appErr *Error
	if !errors.As(err, &appErr) {
		appErr = ErrInternal
	}

	response := map[string]interface{}{
		"error":      appErr.Message,
		"error_code": appErr.Code,
	}

	if len(appErr.Details) > 0 {
		response["details"] = appErr.Details
	}

	return response
}
