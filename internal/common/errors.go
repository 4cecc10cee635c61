package common

import (
	"errors"
	"net/http"
)

// AppError is an error carrying the HTTP status and code it renders with.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// ErrorRule maps any of Errs to Status and Code.
type ErrorRule struct {
	Status int
	Code   string
	Errs   []error
}

// Classify turns err into an AppError. An AppError already in the chain
// wins, then the first matching rule. Anything else is a 500 whose message
// is fallback, so internal details are not leaked.
func Classify(err error, fallback string, rules ...ErrorRule) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		if appErr.HTTPStatus == 0 {
			appErr.HTTPStatus = http.StatusBadRequest
		}
		return appErr
	}
	for _, rule := range rules {
		for _, target := range rule.Errs {
			if errors.Is(err, target) {
				return NewAppError(rule.Code, err.Error(), rule.Status, err)
			}
		}
	}
	return NewAppError("INTERNAL", fallback, http.StatusInternalServerError, err)
}

// WriteError classifies err and renders it.
func WriteError(w http.ResponseWriter, err error, fallback string, rules ...ErrorRule) {
	appErr := Classify(err, fallback, rules...)
	JSONError(w, appErr.HTTPStatus, appErr.Code, appErr.Message, appErr.Details)
}
