// Package certcheck checks the certificates of AS2 partners: validity period,
// PKI chain to a trusted root and, optionally, revocation via OCSP and CRL.
package certcheck

import (
	"context"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"
)

var (
	// ErrCertificateRevoked is returned when a certificate has been revoked
	ErrCertificateRevoked = errors.New("certificate has been revoked")
	// ErrRevocationUnknown is returned when revocation status could not be determined
	ErrRevocationUnknown = errors.New("revocation status unknown")
	// ErrNoCertificates is returned for PEM data without certificates
	ErrNoCertificates = errors.New("no certificates found")
)

// Result is the outcome of a certificate check
type Result int

const (
	Valid Result = iota
	NotYetValid
	Expired
	Untrusted
	Revoked
	Unknown
)

func (r Result) String() string {
	switch r {
	case Valid:
		return "valid"
	case NotYetValid:
		return "not yet valid"
	case Expired:
		return "expired"
	case Untrusted:
		return "untrusted"
	case Revoked:
		return "revoked"
	default:
		return "unknown"
	}
}

// IsValid reports whether the certificate may be used
func (r Result) IsValid() bool {
	return r == Valid
}

// Checker checks a certificate at a point in time
type Checker interface {
	Check(ctx context.Context, cert *x509.Certificate, at time.Time) Result
}

// CheckerFunc adapts a function to Checker
type CheckerFunc func(ctx context.Context, cert *x509.Certificate, at time.Time) Result

// Check calls f
func (f CheckerFunc) Check(ctx context.Context, cert *x509.Certificate, at time.Time) Result {
	return f(ctx, cert, at)
}

// Config configures a PKIChecker
type Config struct {
	// Roots are the trusted CAs, e.g. the PEPPOL AP root. nil uses the
	// system pool.
	Roots *x509.CertPool
	// Intermediates are used to build chains
	Intermediates []*x509.Certificate
	// Revocation is consulted after a successful chain check when set
	Revocation RevocationChecker
	Logger     *slog.Logger
}

// PKIChecker validates certificates against a trust store
type PKIChecker struct {
	config *Config
	logger *slog.Logger
}

// NewPKIChecker creates a checker without revocation checking
func NewPKIChecker(roots *x509.CertPool) *PKIChecker {
	return NewPKICheckerWithConfig(&Config{Roots: roots})
}

// NewPKICheckerWithConfig creates a checker
func NewPKICheckerWithConfig(config *Config) *PKIChecker {
	if config == nil {
		config = &Config{}
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &PKIChecker{config: config, logger: logger}
}

// Check validates cert at the given time, the current time when zero
func (c *PKIChecker) Check(ctx context.Context, cert *x509.Certificate, at time.Time) Result {
	if cert == nil {
		return Unknown
	}
	if at.IsZero() {
		at = time.Now()
	}
	if at.Before(cert.NotBefore) {
		return NotYetValid
	}
	if at.After(cert.NotAfter) {
		return Expired
	}

	opts := x509.VerifyOptions{
		Roots:         c.config.Roots,
		CurrentTime:   at,
		Intermediates: x509.NewCertPool(),
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	}
	for _, intermediate := range c.config.Intermediates {
		opts.Intermediates.AddCert(intermediate)
	}

	chains, err := cert.Verify(opts)
	if err != nil {
		c.logger.Debug("certificate chain rejected", "subject", cert.Subject.String(), "error", err)
		return Untrusted
	}

	if c.config.Revocation == nil {
		return Valid
	}
	issuer := issuerOf(chains)
	if issuer == nil {
		return Valid
	}
	switch err := c.config.Revocation.CheckRevocation(ctx, cert, issuer); {
	case err == nil:
		return Valid
	case errors.Is(err, ErrCertificateRevoked):
		return Revoked
	default:
		c.logger.Warn("revocation check failed", "subject", cert.Subject.String(), "error", err)
		return Unknown
	}
}

// issuerOf returns the issuer of the leaf in the first chain
func issuerOf(chains [][]*x509.Certificate) *x509.Certificate {
	if len(chains) == 0 || len(chains[0]) < 2 {
		return nil
	}
	return chains[0][1]
}

// PoolFromPEM builds a certificate pool from PEM data
func PoolFromPEM(data []byte) (*x509.CertPool, error) {
	certs, err := ParsePEMCertificates(data)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	for _, cert := range certs {
		pool.AddCert(cert)
	}
	return pool, nil
}

// LoadPool reads a PEM bundle file into a certificate pool
func LoadPool(path string) (*x509.CertPool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading trust store: %w", err)
	}
	return PoolFromPEM(data)
}

// ParsePEMCertificates parses all CERTIFICATE blocks in data
func ParsePEMCertificates(data []byte) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parsing certificate: %w", err)
		}
		certs = append(certs, cert)
	}
	if len(certs) == 0 {
		return nil, ErrNoCertificates
	}
	return certs, nil
}
