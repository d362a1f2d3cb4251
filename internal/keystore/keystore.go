// Package keystore holds the AS2 credentials of the sending access point:
// the private key and certificate used to sign outgoing messages, plus the
// certificates of receiving partners.
//
// Three store types are supported:
//
//   - pem: a file of PEM blocks; "Alias" block headers name the entries
//   - pkcs12: a PKCS#12 (.p12/.pfx) file with one key entry
//   - pkcs11: keys held on a token or HSM (build with -tags pkcs11)
//
// Stores are safe for concurrent use, but persisting changes to a file is not
// coordinated between stores opened on the same path.
package keystore

import (
	"crypto"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Common errors
var (
	ErrKeyNotFound             = errors.New("key alias not found")
	ErrCertificateNotFound     = errors.New("certificate alias not found")
	ErrUnknownType             = errors.New("unknown keystore type")
	ErrPersistenceNotSupported = errors.New("keystore cannot persist changes")
	ErrNoSource                = errors.New("keystore has neither a path nor data")
)

// Type identifies a keystore format
type Type string

const (
	TypePEM    Type = "pem"
	TypePKCS12 Type = "pkcs12"
	TypePKCS11 Type = "pkcs11"
)

// ParseType parses a keystore type name. "p12" and "pfx" are accepted for
// PKCS#12.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pem":
		return TypePEM, nil
	case "pkcs12", "p12", "pfx":
		return TypePKCS12, nil
	case "pkcs11":
		return TypePKCS11, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownType, s)
	}
}

// Signer is a private key together with its certificate chain
type Signer interface {
	crypto.Signer

	// Certificate returns the X.509 certificate of the key
	Certificate() *x509.Certificate

	// Chain returns intermediate certificates, possibly empty
	Chain() []*x509.Certificate
}

// Store gives access to keys and partner certificates
type Store interface {
	// Signer returns the key entry stored under alias
	Signer(alias string) (Signer, error)

	// Certificate returns the certificate stored under alias. Key entries
	// expose their own certificate.
	Certificate(alias string) (*x509.Certificate, error)

	// SetCertificate stores or replaces a partner certificate in memory
	SetCertificate(alias string, cert *x509.Certificate) error

	// Aliases lists the entry names
	Aliases() ([]string, error)

	// Save persists in-memory changes to the backing file
	Save() error

	// Close releases any resources held by the store
	Close() error
}

// Config describes how to open a store
type Config struct {
	Type Type
	// Path is the keystore file. Ignored when Data is set.
	Path string
	// Data is the keystore content
	Data []byte
	// Password decrypts PKCS#12 files and is the PIN for PKCS#11 tokens
	Password string
	// PKCS11 configures the token for TypePKCS11
	PKCS11 PKCS11Config
}

// Open opens a keystore
func Open(cfg Config) (Store, error) {
	var (
		store Store
		err   error
	)
	switch cfg.Type {
	case TypePEM:
		store, err = OpenPEM(cfg.Path, cfg.Data)
	case TypePKCS12:
		store, err = OpenPKCS12(cfg.Path, cfg.Data, cfg.Password)
	case TypePKCS11:
		p11 := cfg.PKCS11
		if p11.PIN == "" {
			p11.PIN = cfg.Password
		}
		store, err = NewPKCS11Store(&p11)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, cfg.Type)
	}
	if err != nil {
		return nil, err
	}
	return store, nil
}

// AliasFromCertificate derives an entry name from the certificate subject
// common name, falling back to the serial number.
func AliasFromCertificate(cert *x509.Certificate) string {
	if cert.Subject.CommonName != "" {
		return cert.Subject.CommonName
	}
	return cert.SerialNumber.String()
}

type keyEntry struct {
	key   crypto.Signer
	cert  *x509.Certificate
	chain []*x509.Certificate
}

func (e *keyEntry) Public() crypto.PublicKey { return e.key.Public() }

func (e *keyEntry) Sign(rand io.Reader, digest []byte, opts crypto.SignerOpts) ([]byte, error) {
	return e.key.Sign(rand, digest, opts)
}

func (e *keyEntry) Certificate() *x509.Certificate { return e.cert }

func (e *keyEntry) Chain() []*x509.Certificate { return e.chain }
