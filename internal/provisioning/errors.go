package provisioning

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies a provisioning failure.
type ErrorKind string

const (
	KindValidation   ErrorKind = "validation"
	KindConflict     ErrorKind = "conflict"
	KindIO           ErrorKind = "io"
	KindGeneration   ErrorKind = "generation"
	KindPersistence  ErrorKind = "persistence"
	KindVerification ErrorKind = "verification"
)

// Stage names reported to the caller.
const (
	StageValidate = "validate"
	StageIntake   = "intake"
	StagePrecheck = "precheck"
	StageMove     = "move"
	StageAssign   = "assign"
	StageGenerate = "generate"
	StagePersist  = "persist"
	StageVerify   = "verify"
	StageReclaim  = "reclaim"
)

// Error is a failure of one pipeline stage.
type Error struct {
	Kind    ErrorKind
	Stage   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Stage, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Stage, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus maps the error kind onto a response code.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func newError(kind ErrorKind, stage string, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Stage: stage, Message: fmt.Sprintf(format, args...), Err: err}
}

func validationError(format string, args ...any) *Error {
	return newError(KindValidation, StageValidate, nil, format, args...)
}

func conflictError(format string, args ...any) *Error {
	return newError(KindConflict, StagePrecheck, nil, format, args...)
}

// AsError extracts a provisioning error from err.
func AsError(err error) (*Error, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// IsKind reports whether err is a provisioning error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	pe, ok := AsError(err)
	return ok && pe.Kind == kind
}
