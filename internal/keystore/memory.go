package keystore

import (
	"crypto/x509"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// memoryStore keeps entries in memory. File backed stores embed it.
type memoryStore struct {
	mu    sync.RWMutex
	keys  map[string]*keyEntry
	certs map[string]*x509.Certificate
	dirty bool
}

func (s *memoryStore) init() {
	s.keys = make(map[string]*keyEntry)
	s.certs = make(map[string]*x509.Certificate)
}

// lookup finds an alias exactly first, then case-insensitively.
func lookup[T any](m map[string]T, alias string) (T, bool) {
	if v, ok := m[alias]; ok {
		return v, true
	}
	for k, v := range m {
		if strings.EqualFold(k, alias) {
			return v, true
		}
	}
	var zero T
	return zero, false
}

func (s *memoryStore) Signer(alias string) (Signer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := lookup(s.keys, alias)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, alias)
	}
	return entry, nil
}

func (s *memoryStore) Certificate(alias string) (*x509.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if cert, ok := lookup(s.certs, alias); ok {
		return cert, nil
	}
	if entry, ok := lookup(s.keys, alias); ok {
		return entry.cert, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrCertificateNotFound, alias)
}

func (s *memoryStore) SetCertificate(alias string, cert *x509.Certificate) error {
	if alias == "" || cert == nil {
		return fmt.Errorf("alias and certificate are required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.certs[alias]; ok && existing.Equal(cert) {
		return nil
	}
	s.certs[alias] = cert
	s.dirty = true
	return nil
}

func (s *memoryStore) Aliases() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	aliases := make([]string, 0, len(s.keys)+len(s.certs))
	for alias := range s.keys {
		aliases = append(aliases, alias)
	}
	for alias := range s.certs {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)
	return aliases, nil
}

func (s *memoryStore) Close() error {
	return nil
}
