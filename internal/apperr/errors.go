// Package apperr holds the error kinds that handlers translate into HTTP
// responses.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// NonFieldErrors is the key used for errors that are not tied to one field.
const NonFieldErrors = "non_field_errors"

var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("you do not have permission to perform this action")
)

// ValidationError maps field names to the problems found with them.
type ValidationError struct {
	Fields map[string][]string
}

func NewValidation(field, msg string) *ValidationError {
	return (&ValidationError{}).Add(field, msg)
}

func (e *ValidationError) Add(field, msg string) *ValidationError {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], msg)
	return e
}

// Err returns nil when nothing was recorded.
func (e *ValidationError) Err() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, strings.Join(e.Fields[k], "; ")))
	}

	return "validation failed: " + strings.Join(parts, ", ")
}

// HasField reports whether err is a ValidationError mentioning field.
func HasField(err error, field string) bool {
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		return false
	}
	_, ok := vErr.Fields[field]
	return ok
}

const (
	CodeInvalidToken     = "invalid_token"
	CodeNoLinkedAccount  = "no_linked_account"
	CodeNoExternalToken  = "no_external_token"
	CodeNotAuthenticated = "not_authenticated"
	CodeAccountDisabled  = "account_disabled"
)

// AuthError is an authentication failure with a machine readable code.
type AuthError struct {
	Code    string
	Message string
	Status  int
}

func (e *AuthError) Error() string {
	return e.Code + ": " + e.Message
}

func (e *AuthError) Is(target error) bool {
	t, ok := target.(*AuthError)
	return ok && t.Code == e.Code
}

var (
	ErrInvalidToken     = &AuthError{Code: CodeInvalidToken, Message: "Invalid token", Status: http.StatusBadRequest}
	ErrNoLinkedAccount  = &AuthError{Code: CodeNoLinkedAccount, Message: "No linked Google account", Status: http.StatusBadRequest}
	ErrNoExternalToken  = &AuthError{Code: CodeNoExternalToken, Message: "No Google token found", Status: http.StatusBadRequest}
	ErrNotAuthenticated = &AuthError{Code: CodeNotAuthenticated, Message: "Authentication credentials were not provided", Status: http.StatusUnauthorized}
	ErrAccountDisabled  = &AuthError{Code: CodeAccountDisabled, Message: "User account is disabled", Status: http.StatusForbidden}
)
