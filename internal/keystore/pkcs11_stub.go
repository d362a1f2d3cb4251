//go:build !pkcs11

package keystore

import (
	"crypto/x509"
	"errors"
)

// PKCS11Store is a stub that returns an error when PKCS#11 support is not compiled in.
type PKCS11Store struct{}

// PKCS11Config holds configuration for the PKCS#11 store
type PKCS11Config struct {
	ModulePath string
	SlotID     *uint
	TokenLabel string
	PIN        string
}

// ErrPKCS11NotSupported is returned when PKCS#11 operations are attempted
// but the binary was not compiled with PKCS#11 support.
var ErrPKCS11NotSupported = errors.New("PKCS#11 support not compiled in (build with -tags pkcs11)")

// NewPKCS11Store returns an error because PKCS#11 is not compiled in.
func NewPKCS11Store(cfg *PKCS11Config) (*PKCS11Store, error) {
	return nil, ErrPKCS11NotSupported
}

// Signer returns an error because PKCS#11 is not compiled in.
func (s *PKCS11Store) Signer(alias string) (Signer, error) {
	return nil, ErrPKCS11NotSupported
}

// Certificate returns an error because PKCS#11 is not compiled in.
func (s *PKCS11Store) Certificate(alias string) (*x509.Certificate, error) {
	return nil, ErrPKCS11NotSupported
}

// SetCertificate returns an error because PKCS#11 is not compiled in.
func (s *PKCS11Store) SetCertificate(alias string, cert *x509.Certificate) error {
	return ErrPKCS11NotSupported
}

// Aliases returns an error because PKCS#11 is not compiled in.
func (s *PKCS11Store) Aliases() ([]string, error) {
	return nil, ErrPKCS11NotSupported
}

// Save is a no-op.
func (s *PKCS11Store) Save() error {
	return nil
}

// Close is a no-op.
func (s *PKCS11Store) Close() error {
	return nil
}
