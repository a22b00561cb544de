package api

import (
	"errors"
	"net/http"

	"github.com/okian/chartrank/internal/domain/errs"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest    = errors.New("bad request")
	ErrLimitExceeded = errors.New("limit exceeded")
)

// requestError is a malformed request rejected before it reaches the service.
type requestError struct {
	op  string
	err error
}

func (e *requestError) Error() string { return e.op + ": " + e.err.Error() }

func (e *requestError) Unwrap() []error { return []error{ErrBadRequest, e.err} }

func badRequest(op string, err error) error {
	return &requestError{op: op, err: err}
}

type errorResponse struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// statusFor maps an error kind onto an HTTP status.
func statusFor(err error) (int, string) {
	if errors.Is(err, ErrBadRequest) {
		return http.StatusBadRequest, "bad_request"
	}
	switch errs.KindOf(err) {
	case errs.KindNotFound:
		return http.StatusNotFound, string(errs.KindNotFound)
	case errs.KindValidation:
		return http.StatusUnprocessableEntity, string(errs.KindValidation)
	case errs.KindInvalidPivot:
		return http.StatusBadRequest, string(errs.KindInvalidPivot)
	case errs.KindIntegrity:
		return http.StatusConflict, string(errs.KindIntegrity)
	case errs.KindConflict:
		return http.StatusConflict, string(errs.KindConflict)
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	msg := http.StatusText(status)
	if err != nil && status != http.StatusInternalServerError {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg, Fields: errs.FieldsOf(err)})
}
