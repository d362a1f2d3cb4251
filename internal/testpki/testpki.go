// Package testpki creates throwaway certificates and keys for tests.
package testpki

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"sync/atomic"
	"testing"
	"time"
)

var serial atomic.Int64

// Identity is a key with its certificate
type Identity struct {
	Key  *rsa.PrivateKey
	Cert *x509.Certificate
}

// Signer returns the private key as a crypto.Signer
func (id *Identity) Signer() crypto.Signer { return id.Key }

// CertPEM returns the certificate PEM encoded
func (id *Identity) CertPEM() []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: id.Cert.Raw})
}

// KeyPEM returns the private key PEM encoded (PKCS#8)
func (id *Identity) KeyPEM(t testing.TB) []byte {
	t.Helper()
	der, err := x509.MarshalPKCS8PrivateKey(id.Key)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
}

// Options tweak generated certificates
type Options struct {
	NotBefore time.Time
	NotAfter  time.Time
	IsCA      bool
	OCSP      []string
	CRL       []string
}

// NewCA creates a self-signed CA
func NewCA(t testing.TB, cn string) *Identity {
	t.Helper()
	return issue(t, cn, nil, Options{IsCA: true})
}

// NewSelfSigned creates a self-signed end-entity certificate
func NewSelfSigned(t testing.TB, cn string) *Identity {
	t.Helper()
	return issue(t, cn, nil, Options{})
}

// Issue creates a certificate for cn signed by parent
func Issue(t testing.TB, cn string, parent *Identity, opts Options) *Identity {
	t.Helper()
	return issue(t, cn, parent, opts)
}

func issue(t testing.TB, cn string, parent *Identity, opts Options) *Identity {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	if opts.NotBefore.IsZero() {
		opts.NotBefore = time.Now().Add(-time.Hour)
	}
	if opts.NotAfter.IsZero() {
		opts.NotAfter = time.Now().Add(24 * time.Hour)
	}

	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(serial.Add(1) + 1000),
		Subject:               pkix.Name{CommonName: cn, Organization: []string{"Test AP"}},
		NotBefore:             opts.NotBefore,
		NotAfter:              opts.NotAfter,
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth, x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  opts.IsCA,
		OCSPServer:            opts.OCSP,
		CRLDistributionPoints: opts.CRL,
	}
	if opts.IsCA {
		tmpl.KeyUsage |= x509.KeyUsageCertSign | x509.KeyUsageCRLSign
	}

	signerCert, signerKey := tmpl, crypto.Signer(key)
	if parent != nil {
		signerCert, signerKey = parent.Cert, parent.Key
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, signerCert, &key.PublicKey, signerKey)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parse certificate: %v", err)
	}
	return &Identity{Key: key, Cert: cert}
}
