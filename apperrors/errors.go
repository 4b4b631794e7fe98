package apperrors

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/lib/pq"
)

var (
	// ErrMissingRow is returned when an insert with RETURNING produced no row.
	ErrMissingRow = errors.New("expected record after create")
	// ErrSessionLost signals that the browser target backing a tab is gone.
	ErrSessionLost = errors.New("browser session lost")
)

// MarkupInteractionError indicates an operation on a located element failed.
type MarkupInteractionError struct {
	Locator string
	Err     error
}

func (e MarkupInteractionError) Error() string {
	return fmt.Sprintf("markup interaction on %q: %v", e.Locator, e.Err)
}

func (e MarkupInteractionError) Unwrap() error {
	return e.Err
}

// AttributeNotFoundError indicates a required attribute was absent.
type AttributeNotFoundError struct {
	Attribute string
	Locator   string
}

func (e AttributeNotFoundError) Error() string {
	return fmt.Sprintf("attribute %q not found on %q", e.Attribute, e.Locator)
}

// ElementNotFoundError indicates a required element never appeared.
type ElementNotFoundError struct {
	Locator string
	Err     error
}

func (e ElementNotFoundError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("element not found %q: %v", e.Locator, e.Err)
	}
	return fmt.Sprintf("element not found %q", e.Locator)
}

func (e ElementNotFoundError) Unwrap() error {
	return e.Err
}

// UnexpectedError is an invariant violation in the scraped markup.
type UnexpectedError struct {
	Message string
}

func (e UnexpectedError) Error() string {
	return "unexpected: " + e.Message
}

// Unexpected builds an UnexpectedError from a format string.
func Unexpected(format string, args ...any) error {
	return UnexpectedError{Message: fmt.Sprintf(format, args...)}
}

// ParseError indicates scraped text could not be cleaned into its target form.
type ParseError struct {
	Raw string
	Err error
}

func (e ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %q: %v", e.Raw, e.Err)
	}
	return fmt.Sprintf("parse %q", e.Raw)
}

func (e ParseError) Unwrap() error {
	return e.Err
}

// PersistenceError wraps a failure from the relational store.
type PersistenceError struct {
	Op  string
	Err error
}

func (e PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e PersistenceError) Unwrap() error {
	return e.Err
}

// Persistence wraps err unless it is nil.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	return PersistenceError{Op: op, Err: err}
}

// Kind returns a stable label for err, used in logs and metric labels.
func Kind(err error) string {
	if err == nil {
		return "unknown"
	}
	if errors.Is(err, ErrSessionLost) {
		return "session_lost"
	}
	var markup MarkupInteractionError
	if errors.As(err, &markup) {
		return "markup_interaction"
	}
	var attr AttributeNotFoundError
	if errors.As(err, &attr) {
		return "attribute_not_found"
	}
	var notFound ElementNotFoundError
	if errors.As(err, &notFound) {
		return "element_not_found"
	}
	var unexpected UnexpectedError
	if errors.As(err, &unexpected) {
		return "unexpected"
	}
	var parse ParseError
	if errors.As(err, &parse) {
		return "parse"
	}
	var persistence PersistenceError
	if errors.As(err, &persistence) {
		return "persistence"
	}
	return "other"
}

// IsFatal reports whether err means the process can no longer make progress:
// the browser session is gone or the database connection is lost.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrSessionLost) {
		return true
	}
	var persistence PersistenceError
	if !errors.As(err, &persistence) {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// 08xxx: connection exception, 57P01: admin shutdown
		return pqErr.Code.Class() == "08" || pqErr.Code == "57P01"
	}
	return false
}
