//go:build pkcs11

package keystore

import (
	"crypto/sha1"
	"crypto/x509"
	"fmt"
	"sync"

	"github.com/ThalesIgnite/crypto11"
)

// PKCS11Store implements Store using a PKCS#11 token (HSM/smart card).
// Entries are addressed by their CKA_LABEL. Certificates written with
// SetCertificate are imported into the token immediately, so Save has
// nothing to do.
type PKCS11Store struct {
	ctx     *crypto11.Context
	mu      sync.RWMutex
	signers map[string]*keyEntry
}

// PKCS11Config holds configuration for the PKCS#11 store
type PKCS11Config struct {
	// ModulePath is the path to the PKCS#11 library (.so/.dylib/.dll)
	ModulePath string

	// SlotID is the slot number to use (optional if TokenLabel is provided)
	SlotID *uint

	// TokenLabel is the token label to search for (optional if SlotID is provided)
	TokenLabel string

	// PIN is the user PIN for authentication
	PIN string
}

// NewPKCS11Store creates a new PKCS#11 backed store
func NewPKCS11Store(cfg *PKCS11Config) (*PKCS11Store, error) {
	config := &crypto11.Config{
		Path: cfg.ModulePath,
		Pin:  cfg.PIN,
	}

	if cfg.SlotID != nil {
		slotID := int(*cfg.SlotID)
		config.SlotNumber = &slotID
	}
	if cfg.TokenLabel != "" {
		config.TokenLabel = cfg.TokenLabel
	}

	ctx, err := crypto11.Configure(config)
	if err != nil {
		return nil, fmt.Errorf("configuring PKCS#11: %w", err)
	}

	return &PKCS11Store{
		ctx:     ctx,
		signers: make(map[string]*keyEntry),
	}, nil
}

// Signer returns the key pair labelled alias
func (s *PKCS11Store) Signer(alias string) (Signer, error) {
	s.mu.RLock()
	if signer, ok := s.signers[alias]; ok {
		s.mu.RUnlock()
		return signer, nil
	}
	s.mu.RUnlock()

	key, err := s.ctx.FindKeyPair(nil, []byte(alias))
	if err != nil {
		return nil, fmt.Errorf("finding key pair: %w", err)
	}
	if key == nil {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, alias)
	}

	cert, err := s.ctx.FindCertificate(nil, []byte(alias), nil)
	if err != nil {
		return nil, fmt.Errorf("finding certificate: %w", err)
	}
	if cert == nil {
		return nil, fmt.Errorf("%w: %s", ErrCertificateNotFound, alias)
	}

	entry := &keyEntry{key: key, cert: cert}
	s.mu.Lock()
	s.signers[alias] = entry
	s.mu.Unlock()

	return entry, nil
}

// Certificate returns the certificate labelled alias
func (s *PKCS11Store) Certificate(alias string) (*x509.Certificate, error) {
	cert, err := s.ctx.FindCertificate(nil, []byte(alias), nil)
	if err != nil {
		return nil, fmt.Errorf("finding certificate: %w", err)
	}
	if cert == nil {
		return nil, fmt.Errorf("%w: %s", ErrCertificateNotFound, alias)
	}
	return cert, nil
}

// SetCertificate imports a partner certificate into the token
func (s *PKCS11Store) SetCertificate(alias string, cert *x509.Certificate) error {
	existing, err := s.ctx.FindCertificate(nil, []byte(alias), nil)
	if err == nil && existing != nil && existing.Equal(cert) {
		return nil
	}
	id := sha1.Sum(cert.Raw)
	if err := s.ctx.ImportCertificateWithLabel(id[:], []byte(alias), cert); err != nil {
		return fmt.Errorf("importing certificate: %w", err)
	}
	return nil
}

// Aliases is not supported for tokens; labels cannot be enumerated portably.
func (s *PKCS11Store) Aliases() ([]string, error) {
	return nil, fmt.Errorf("listing PKCS#11 labels is not supported")
}

// Save is a no-op; token objects are persistent.
func (s *PKCS11Store) Save() error {
	return nil
}

// Close releases PKCS#11 resources
func (s *PKCS11Store) Close() error {
	return s.ctx.Close()
}
