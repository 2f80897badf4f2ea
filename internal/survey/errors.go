package survey

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Error kinds. Match with errors.Is.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrStorage    = errors.New("storage failure")
	ErrMigration  = errors.New("migration failed")
)

// Error is returned by every data-layer operation that fails.
type Error struct {
	Kind    error
	Op      string
	Msg     string
	Details []string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Msg != "" {
		b.WriteString(e.Msg)
	} else {
		b.WriteString(e.Kind.Error())
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Is(target error) bool { return target == e.Kind }

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns a short machine name for err's kind, or "" for foreign errors.
func KindOf(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrMigration):
		return "migration"
	case errors.Is(err, ErrStorage):
		return "storage"
	}
	return ""
}

// Details returns the violation list attached to err, if any.
func Details(err error) []string {
	var e *Error
	if errors.As(err, &e) {
		return e.Details
	}
	return nil
}

// NewValidationError builds a validation error for callers outside the store,
// such as the CSV importer.
func NewValidationError(op, msg string, details ...string) *Error {
	return &Error{Kind: ErrValidation, Op: op, Msg: msg, Details: details}
}

func validationError(op, msg string, details ...string) *Error {
	return NewValidationError(op, msg, details...)
}

func notFoundError(op, entity, id string) *Error {
	return &Error{Kind: ErrNotFound, Op: op, Msg: fmt.Sprintf("%s %q not found", entity, id)}
}

func migrationError(op string, err error) *Error {
	return &Error{Kind: ErrMigration, Op: op, Err: err}
}

// Classify wraps a raw gorm or driver error into the data-layer taxonomy.
// Errors that are already classified pass through untouched.
func Classify(op string, err error) error { return wrapStorage(op, err) }

func wrapStorage(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return &Error{Kind: ErrNotFound, Op: op, Err: err}
	case isConstraintViolation(err):
		return &Error{Kind: ErrValidation, Op: op, Msg: "constraint violated", Err: err}
	}
	return &Error{Kind: ErrStorage, Op: op, Err: err}
}

func isConstraintViolation(err error) bool {
	if errors.Is(err, gorm.ErrCheckConstraintViolated) ||
		errors.Is(err, gorm.ErrForeignKeyViolated) ||
		errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// SQLSTATE class 23: integrity constraint violation
		return strings.HasPrefix(pgErr.Code, "23")
	}
	return strings.Contains(strings.ToLower(err.Error()), "constraint failed")
}
