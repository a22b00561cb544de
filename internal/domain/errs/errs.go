// Package errs defines the error kinds shared by the ranking core and the
// helpers used to tag errors with the operation that produced them.
//
// Callers match kinds with errors.Is against the exported sentinels:
//
//	if errors.Is(err, errs.ErrNotFound) {
//		// 404
//	}
package errs

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind classifies an error for callers that need to branch on it.
type Kind string

// Error kinds.
const (
	KindNotFound               Kind = "not_found"
	KindValidation             Kind = "validation"
	KindInvalidPivot           Kind = "invalid_pivot"
	KindIntegrity              Kind = "integrity"
	KindConflict               Kind = "conflict"
	KindAggregateInconsistency Kind = "aggregate_inconsistency"
	KindInternal               Kind = "internal"
)

// Sentinels for errors.Is. An *Error matches a sentinel when the kinds agree.
var (
	ErrNotFound               = &Error{Kind: KindNotFound}
	ErrValidation             = &Error{Kind: KindValidation}
	ErrInvalidPivot           = &Error{Kind: KindInvalidPivot}
	ErrIntegrity              = &Error{Kind: KindIntegrity}
	ErrConflict               = &Error{Kind: KindConflict}
	ErrAggregateInconsistency = &Error{Kind: KindAggregateInconsistency}
	ErrInternal               = &Error{Kind: KindInternal}
)

// Error is an operation-tagged error with a kind and optional field details.
type Error struct {
	// Op names the operation, e.g. "app.submit_skill".
	Op string
	// Kind classifies the failure.
	Kind Kind
	// Fields carries field-level messages for validation failures.
	Fields map[string]string
	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	switch {
	case e.Err != nil:
		b.WriteString(e.Err.Error())
	default:
		b.WriteString(strings.ReplaceAll(string(e.Kind), "_", " "))
	}
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+" "+e.Fields[k])
		}
		b.WriteString(" (")
		b.WriteString(strings.Join(parts, "; "))
		b.WriteString(")")
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

// NewKind returns an error of the given kind for op without a cause.
func NewKind(op string, kind *Error) error {
	return &Error{Op: op, Kind: kind.Kind}
}

// New returns an error of kind for op with a formatted message as cause.
func New(op string, kind Kind, format string, args ...any) error {
	return &Error{Op: op, Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Wrap tags err with op. The kind of an inner *Error is preserved; any other
// error becomes KindInternal. Wrap returns nil for a nil err.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: KindOf(err), Err: err}
}

// WrapKind tags err with op and forces kind.
func WrapKind(op string, kind *Error, err error) error {
	return &Error{Op: op, Kind: kind.Kind, Err: err}
}

// Validation returns a validation error carrying field-level messages.
func Validation(op string, fields map[string]string) error {
	return &Error{Op: op, Kind: KindValidation, Fields: fields}
}

// KindOf reports the kind of the outermost *Error in err's chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// FieldsOf collects field messages from every *Error in err's chain.
func FieldsOf(err error) map[string]string {
	out := map[string]string{}
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			break
		}
		for k, v := range e.Fields {
			if _, ok := out[k]; !ok {
				out[k] = v
			}
		}
		err = e.Err
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
