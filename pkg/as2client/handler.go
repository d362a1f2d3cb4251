package as2client

import (
	"crypto/x509"
	"fmt"
	"log/slog"
	"time"

	"github.com/sirosfoundation/go-peppol-as2/pkg/certcheck"
	"github.com/sirosfoundation/go-peppol-as2/pkg/validation"
)

// MessageHandler receives the diagnostics of parameter verification.
// Error may return an error to abort verification immediately. Otherwise the
// full pass runs and sending is aborted when ErrorCount grew during it.
type MessageHandler interface {
	Warn(msg string)
	Error(msg string, cause error) error
	WarningCount() int
	ErrorCount() int
}

// DefaultMessageHandler logs diagnostics and counts them
type DefaultMessageHandler struct {
	logger   *slog.Logger
	warnings int
	errors   int
}

// NewDefaultMessageHandler creates a handler logging to logger, or to the
// default logger when nil
func NewDefaultMessageHandler(logger *slog.Logger) *DefaultMessageHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultMessageHandler{logger: logger}
}

// Warn logs a warning
func (h *DefaultMessageHandler) Warn(msg string) {
	h.warnings++
	h.logger.Warn(msg)
}

// Error logs an error and lets verification continue
func (h *DefaultMessageHandler) Error(msg string, cause error) error {
	h.errors++
	if cause != nil {
		h.logger.Error(msg, "error", cause)
	} else {
		h.logger.Error(msg)
	}
	return nil
}

// WarningCount returns the number of warnings
func (h *DefaultMessageHandler) WarningCount() int { return h.warnings }

// ErrorCount returns the number of errors
func (h *DefaultMessageHandler) ErrorCount() int { return h.errors }

// FailFastMessageHandler aborts verification on the first error
type FailFastMessageHandler struct {
	DefaultMessageHandler
}

// NewFailFastMessageHandler creates a handler that stops at the first error
func NewFailFastMessageHandler(logger *slog.Logger) *FailFastMessageHandler {
	return &FailFastMessageHandler{DefaultMessageHandler: *NewDefaultMessageHandler(logger)}
}

// Error records the error and returns it as a BuilderError
func (h *FailFastMessageHandler) Error(msg string, cause error) error {
	h.errors++
	return &BuilderError{Messages: []string{msg}, Cause: cause}
}

// Diagnostic is a verification message
type Diagnostic struct {
	Error   bool
	Message string
	Cause   error
}

// CollectingMessageHandler records diagnostics without logging
type CollectingMessageHandler struct {
	Diagnostics []Diagnostic
}

// Warn records a warning
func (h *CollectingMessageHandler) Warn(msg string) {
	h.Diagnostics = append(h.Diagnostics, Diagnostic{Message: msg})
}

// Error records an error
func (h *CollectingMessageHandler) Error(msg string, cause error) error {
	h.Diagnostics = append(h.Diagnostics, Diagnostic{Error: true, Message: msg, Cause: cause})
	return nil
}

// Warnings returns the recorded warning messages
func (h *CollectingMessageHandler) Warnings() []string { return h.messages(false) }

// Errors returns the recorded error messages
func (h *CollectingMessageHandler) Errors() []string { return h.messages(true) }

// WarningCount returns the number of warnings
func (h *CollectingMessageHandler) WarningCount() int { return len(h.Warnings()) }

// ErrorCount returns the number of errors
func (h *CollectingMessageHandler) ErrorCount() int { return len(h.Errors()) }

func (h *CollectingMessageHandler) messages(errs bool) []string {
	var out []string
	for _, d := range h.Diagnostics {
		if d.Error == errs {
			out = append(out, d.Message)
		}
	}
	return out
}

// ValidationResultHandler decides what happens after document validation.
// A non-nil error aborts sending.
type ValidationResultHandler interface {
	// OnSuccess is called when there are no error level results
	OnSuccess(ruleSetID string, results validation.Results) error
	// OnFailure is called when at least one error level result exists
	OnFailure(ruleSetID string, results validation.Results) error
}

// DefaultValidationResultHandler aborts sending on validation errors
type DefaultValidationResultHandler struct{}

// OnSuccess accepts the document
func (DefaultValidationResultHandler) OnSuccess(string, validation.Results) error { return nil }

// OnFailure returns a ValidationError
func (DefaultValidationResultHandler) OnFailure(ruleSetID string, results validation.Results) error {
	return &ValidationError{RuleSetID: ruleSetID, Results: results}
}

// AdvisoryResultHandler logs validation errors and lets the document be sent
// anyway. Use it only where validation is informational.
type AdvisoryResultHandler struct {
	Logger *slog.Logger
}

// OnSuccess accepts the document
func (AdvisoryResultHandler) OnSuccess(string, validation.Results) error { return nil }

// OnFailure logs every failure and accepts the document
func (h AdvisoryResultHandler) OnFailure(ruleSetID string, results validation.Results) error {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	for _, r := range results.Failures() {
		logger.Warn("validation failure", "rule_set", ruleSetID, "rule", r.RuleID, "location", r.Location, "message", r.Message)
	}
	return nil
}

// CertificateCheckResultHandler decides what a receiver certificate check
// result means. A non-nil error is reported as a verification error.
type CertificateCheckResultHandler interface {
	OnCertificateCheckResult(cert *x509.Certificate, at time.Time, result certcheck.Result) error
}

// CertificateCheckResultHandlerFunc adapts a function
type CertificateCheckResultHandlerFunc func(cert *x509.Certificate, at time.Time, result certcheck.Result) error

// OnCertificateCheckResult calls f
func (f CertificateCheckResultHandlerFunc) OnCertificateCheckResult(cert *x509.Certificate, at time.Time, result certcheck.Result) error {
	return f(cert, at, result)
}

// RejectInvalidCertificates is the default certificate check policy
var RejectInvalidCertificates = CertificateCheckResultHandlerFunc(
	func(cert *x509.Certificate, at time.Time, result certcheck.Result) error {
		if result.IsValid() {
			return nil
		}
		return fmt.Errorf("receiver certificate %q is %s at %s", cert.Subject.CommonName, result, at.Format(time.RFC3339))
	})
