package budgetclient

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionExpired возвращается на любой 401; сессия к этому моменту уже очищена.
	ErrSessionExpired = errors.New("session expired")

	ErrNotAuthenticated = errors.New("not authenticated")
	ErrBadRequest       = errors.New("bad request")
	ErrForbidden        = errors.New("forbidden")
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrServer           = errors.New("server error")
)

// APIError описывает неуспешный ответ API. Err позволяет сравнивать через errors.Is
// с ErrForbidden, ErrNotFound, ErrServer и другими.
type APIError struct {
	StatusCode int
	Message    string
	Fields     map[string]string
	Err        error
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("budget api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("budget api: status %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

func kindForStatus(status int) error {
	switch {
	case status == 400 || status == 422:
		return ErrBadRequest
	case status == 403:
		return ErrForbidden
	case status == 404:
		return ErrNotFound
	case status == 409:
		return ErrConflict
	case status >= 500:
		return ErrServer
	default:
		return nil
	}
}
