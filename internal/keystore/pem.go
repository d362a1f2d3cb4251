package keystore

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// aliasHeader names a PEM block's entry
const aliasHeader = "Alias"

// PEMStore implements Store on a file of PEM blocks.
//
// Private keys are matched to the certificate carrying the same public key.
// Blocks without an Alias header are named after the certificate subject
// common name.
type PEMStore struct {
	memoryStore
	path string
}

// OpenPEM loads a PEM keystore from data, or from path when data is nil
func OpenPEM(path string, data []byte) (*PEMStore, error) {
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

	s := &PEMStore{path: path}
	s.init()
	if err := s.load(data); err != nil {
		return nil, err
	}
	return s, nil
}

type pemKey struct {
	alias string
	key   crypto.Signer
}

func (s *PEMStore) load(data []byte) error {
	var keys []pemKey
	type pemCert struct {
		alias string
		cert  *x509.Certificate
	}
	var certs []pemCert

	rest := data
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		alias := block.Headers[aliasHeader]
		if block.Type == "CERTIFICATE" {
			cert, err := x509.ParseCertificate(block.Bytes)
			if err != nil {
				return fmt.Errorf("parsing certificate: %w", err)
			}
			certs = append(certs, pemCert{alias: alias, cert: cert})
			continue
		}
		key, err := parsePrivateKey(block)
		if err != nil {
			return fmt.Errorf("parsing private key: %w", err)
		}
		keys = append(keys, pemKey{alias: alias, key: key})
	}

	used := make(map[int]bool)
	for _, k := range keys {
		entry := &keyEntry{key: k.key}
		for i, c := range certs {
			if used[i] || !publicKeysEqual(k.key.Public(), c.cert.PublicKey) {
				continue
			}
			used[i] = true
			entry.cert = c.cert
			if k.alias == "" {
				k.alias = c.alias
			}
			break
		}
		if entry.cert == nil {
			return fmt.Errorf("no certificate for private key %q", k.alias)
		}
		if k.alias == "" {
			k.alias = AliasFromCertificate(entry.cert)
		}
		s.keys[k.alias] = entry
	}

	for i, c := range certs {
		if used[i] {
			continue
		}
		alias := c.alias
		if alias == "" {
			alias = AliasFromCertificate(c.cert)
		}
		s.certs[alias] = c.cert
	}
	return nil
}

// Save rewrites the keystore file with the current entries.
func (s *PEMStore) Save() error {
	if s.path == "" {
		return fmt.Errorf("%w: store was loaded from memory", ErrPersistenceNotSupported)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}

	data, err := s.encode()
	if err != nil {
		return err
	}
	if err := writeFileAtomic(s.path, data); err != nil {
		return err
	}
	s.dirty = false
	return nil
}

func (s *PEMStore) encode() ([]byte, error) {
	var buf bytes.Buffer

	keyAliases := sortedKeys(s.keys)
	for _, alias := range keyAliases {
		entry := s.keys[alias]
		der, err := x509.MarshalPKCS8PrivateKey(entry.key)
		if err != nil {
			return nil, fmt.Errorf("encoding key %s: %w", alias, err)
		}
		headers := map[string]string{aliasHeader: alias}
		if err := pem.Encode(&buf, &pem.Block{Type: "PRIVATE KEY", Headers: headers, Bytes: der}); err != nil {
			return nil, err
		}
		if err := pem.Encode(&buf, &pem.Block{Type: "CERTIFICATE", Headers: headers, Bytes: entry.cert.Raw}); err != nil {
			return nil, err
		}
	}

	for _, alias := range sortedKeys(s.certs) {
		headers := map[string]string{aliasHeader: alias}
		if err := pem.Encode(&buf, &pem.Block{Type: "CERTIFICATE", Headers: headers, Bytes: s.certs[alias].Raw}); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temporary keystore file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing keystore file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("writing keystore file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing keystore file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing keystore file: %w", err)
	}
	return nil
}

func parsePrivateKey(block *pem.Block) (crypto.Signer, error) {
	switch block.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "EC PRIVATE KEY":
		return x509.ParseECPrivateKey(block.Bytes)
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		signer, ok := key.(crypto.Signer)
		if !ok {
			return nil, fmt.Errorf("key is not a signer")
		}
		return signer, nil
	default:
		return nil, fmt.Errorf("unsupported PEM block type: %s", block.Type)
	}
}

func publicKeysEqual(a, b crypto.PublicKey) bool {
	type equaler interface {
		Equal(crypto.PublicKey) bool
	}
	if e, ok := a.(equaler); ok {
		return e.Equal(b)
	}
	return false
}

// KeyAlgorithmName names the algorithm of a public key
func KeyAlgorithmName(pub crypto.PublicKey) string {
	switch pub.(type) {
	case *ecdsa.PublicKey:
		return "EC"
	case *rsa.PublicKey:
		return "RSA"
	case ed25519.PublicKey:
		return "Ed25519"
	default:
		return "Unknown"
	}
}

// KeySize returns the size of a public key in bits
func KeySize(pub crypto.PublicKey) int {
	switch k := pub.(type) {
	case *ecdsa.PublicKey:
		return k.Curve.Params().BitSize
	case *rsa.PublicKey:
		return k.N.BitLen()
	case ed25519.PublicKey:
		return 256
	default:
		return 0
	}
}
