package as2

import (
	"crypto/x509"
	"fmt"
	"strings"
	"time"
)

// Response describes the outcome of one send. Failures after the request
// has been built are reported in Exception; the receiver may still have got
// the message.
type Response struct {
	MessageID  string
	StatusCode int
	Exception  error
	MDN        *MDN
	// ReceiptCertificate is the certificate that verified the MDN signature
	ReceiptCertificate *x509.Certificate
	Duration           time.Duration
}

// HasException reports whether the send failed
func (r *Response) HasException() bool {
	return r.Exception != nil
}

// HasReceipt reports whether an MDN was received
func (r *Response) HasReceipt() bool {
	return r.MDN != nil
}

// HasWarning reports whether the receiver processed the message with a
// warning
func (r *Response) HasWarning() bool {
	return r.MDN != nil && r.MDN.Disposition.IsWarning()
}

// ReceiptVerificationCertificate returns the certificate the MDN signature
// was verified with, or nil
func (r *Response) ReceiptVerificationCertificate() *x509.Certificate {
	return r.ReceiptCertificate
}

// String returns a one-line diagnostic summary
func (r *Response) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "AS2 message %s", orNone(r.MessageID))
	if r.StatusCode != 0 {
		fmt.Fprintf(&b, " (HTTP %d)", r.StatusCode)
	}
	if r.Exception != nil {
		fmt.Fprintf(&b, " failed: %v", r.Exception)
	} else {
		b.WriteString(" sent")
	}
	if r.MDN != nil {
		fmt.Fprintf(&b, "; MDN %s", r.MDN.Disposition)
		if r.MDN.Signed && r.ReceiptCertificate != nil {
			fmt.Fprintf(&b, " signed by %s", r.ReceiptCertificate.Subject.CommonName)
		} else if !r.MDN.Signed {
			b.WriteString(" unsigned")
		}
	} else {
		b.WriteString("; no MDN")
	}
	if r.Duration > 0 {
		fmt.Fprintf(&b, " in %s", r.Duration.Round(time.Millisecond))
	}
	return b.String()
}

func orNone(s string) string {
	if s == "" {
		return "<none>"
	}
	return s
}
