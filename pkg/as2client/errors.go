package as2client

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sirosfoundation/go-peppol-as2/pkg/validation"
)

var (
	// ErrInvalidConfiguration is wrapped by BuilderError
	ErrInvalidConfiguration = errors.New("invalid AS2 client configuration")
	// ErrValidationFailed is wrapped by ValidationError
	ErrValidationFailed = errors.New("business document failed validation")
	// ErrMalformedCertificate is reported for unparsable receiver certificates
	ErrMalformedCertificate = errors.New("malformed receiver certificate")
	// ErrDocumentRead is returned when the business document cannot be read
	// or parsed
	ErrDocumentRead = errors.New("failed to read business document")
)

// BuilderError lists the verification errors that prevented sending
type BuilderError struct {
	Messages []string
	Cause    error
}

func (e *BuilderError) Error() string {
	var b strings.Builder
	b.WriteString(ErrInvalidConfiguration.Error())
	switch len(e.Messages) {
	case 0:
	case 1:
		b.WriteString(": " + e.Messages[0])
	default:
		fmt.Fprintf(&b, ": %d errors: %s", len(e.Messages), strings.Join(e.Messages, "; "))
	}
	if e.Cause != nil {
		b.WriteString(": " + e.Cause.Error())
	}
	return b.String()
}

// Unwrap supports errors.Is for ErrInvalidConfiguration and the cause
func (e *BuilderError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrInvalidConfiguration}
	}
	return []error{ErrInvalidConfiguration, e.Cause}
}

// ValidationError carries the results of a failed document validation
type ValidationError struct {
	RuleSetID string
	Results   validation.Results
}

func (e *ValidationError) Error() string {
	failures := e.Results.Failures()
	msg := fmt.Sprintf("%s against %q: %d error(s)", ErrValidationFailed, e.RuleSetID, len(failures))
	if len(failures) > 0 {
		msg += ", first: " + failures[0].String()
	}
	return msg
}

// Unwrap returns ErrValidationFailed
func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}
