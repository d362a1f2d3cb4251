package keystore

import (
	"crypto"
	"crypto/x509"
	"fmt"
	"os"

	"software.sslmate.com/src/go-pkcs12"
)

// PKCS12Store implements Store on a PKCS#12 file.
//
// The key entry is named after its certificate subject common name. CA
// certificates of the file are available as partner certificates and
// partner certificates added with SetCertificate are written back as CA
// certificates by Save.
type PKCS12Store struct {
	memoryStore
	path     string
	password string
	alias    string
}

// OpenPKCS12 loads a PKCS#12 keystore from data, or from path when data is nil
func OpenPKCS12(path string, data []byte, password string) (*PKCS12Store, error) {
	if data == nil {
		if path == "" {
			return nil, ErrNoSource
		}
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading keystore file: %w", err)
		}
	} else {
		path = ""
	}

	key, cert, caCerts, err := pkcs12.DecodeChain(data, password)
	if err != nil {
		return nil, fmt.Errorf("decoding PKCS#12: %w", err)
	}
	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("PKCS#12 key of type %T is not a signer", key)
	}

	s := &PKCS12Store{path: path, password: password, alias: AliasFromCertificate(cert)}
	s.init()
	entry := &keyEntry{key: signer, cert: cert}
	for _, ca := range caCerts {
		if ca.IsCA {
			entry.chain = append(entry.chain, ca)
		}
		s.certs[AliasFromCertificate(ca)] = ca
	}
	s.keys[s.alias] = entry
	return s, nil
}

// Save re-encodes the keystore file with the current partner certificates.
func (s *PKCS12Store) Save() error {
	if s.path == "" {
		return fmt.Errorf("%w: store was loaded from memory", ErrPersistenceNotSupported)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}

	entry := s.keys[s.alias]
	caCerts := make([]*x509.Certificate, 0, len(s.certs))
	for _, alias := range sortedKeys(s.certs) {
		caCerts = append(caCerts, s.certs[alias])
	}

	data, err := pkcs12.Modern.Encode(entry.key, entry.cert, caCerts, s.password)
	if err != nil {
		return fmt.Errorf("encoding PKCS#12: %w", err)
	}
	if err := writeFileAtomic(s.path, data); err != nil {
		return err
	}
	s.dirty = false
	return nil
}
