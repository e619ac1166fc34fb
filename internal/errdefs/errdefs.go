// Package errdefs defines the error classes shared across the evaluation
// pipeline. Handlers map ExtractionError to 4xx responses; the remaining
// classes describe LLM failures and their retry policy.
package errdefs

import (
	"errors"
	"fmt"
)

// ExtractionError means the input itself is unusable: the PDF cannot be
// opened, no Q&A pairs are recoverable, or the mark scheme fails validation.
// Not retryable.
type ExtractionError struct {
	Msg string
}

func (e *ExtractionError) Error() string { return e.Msg }

// Extractionf builds an ExtractionError.
func Extractionf(format string, args ...any) error {
	return &ExtractionError{Msg: fmt.Sprintf(format, args...)}
}

// IsExtraction reports whether err is (or wraps) an ExtractionError.
func IsExtraction(err error) bool {
	var e *ExtractionError
	return errors.As(err, &e)
}

// SchemaEchoError means the model returned its JSON schema instead of an
// instance of it. The caller may retry the whole request.
type SchemaEchoError struct {
	Msg string
}

func (e *SchemaEchoError) Error() string { return e.Msg }

// IsSchemaEcho reports whether err is (or wraps) a SchemaEchoError.
func IsSchemaEcho(err error) bool {
	var e *SchemaEchoError
	return errors.As(err, &e)
}

// ProviderError means the LLM provider reported a failed run, timed out, or
// returned empty text. Retryable.
type ProviderError struct {
	Msg string
}

func (e *ProviderError) Error() string { return e.Msg }

// Providerf builds a ProviderError.
func Providerf(format string, args ...any) error {
	return &ProviderError{Msg: fmt.Sprintf(format, args...)}
}

// IsProvider reports whether err is (or wraps) a ProviderError.
func IsProvider(err error) bool {
	var e *ProviderError
	return errors.As(err, &e)
}

// ParseError means the response body could not be decoded after all repair
// passes. Retryable once, then surfaced.
type ParseError struct {
	Msg string
	Err error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsParse reports whether err is (or wraps) a ParseError.
func IsParse(err error) bool {
	var e *ParseError
	return errors.As(err, &e)
}
