package keystore

import (
	"bytes"
	"crypto"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"software.sslmate.com/src/go-pkcs12"

	"github.com/sirosfoundation/go-peppol-as2/internal/testpki"
)

func withAlias(t *testing.T, data []byte, alias string) []byte {
	t.Helper()
	block, _ := pem.Decode(data)
	require.NotNil(t, block)
	block.Headers = map[string]string{aliasHeader: alias}
	return pem.EncodeToMemory(block)
}

func TestParseType(t *testing.T) {
	tests := []struct {
		in      string
		want    Type
		wantErr bool
	}{
		{"PEM", TypePEM, false},
		{"pkcs12", TypePKCS12, false},
		{"p12", TypePKCS12, false},
		{"PFX", TypePKCS12, false},
		{"pkcs11", TypePKCS11, false},
		{"jks", "", true},
	}
	for _, tt := range tests {
		got, err := ParseType(tt.in)
		if tt.wantErr {
			assert.True(t, errors.Is(err, ErrUnknownType), tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestPEMStore(t *testing.T) {
	sender := testpki.NewSelfSigned(t, "APP_1000000001")
	partner := testpki.NewSelfSigned(t, "APP_1000000002")

	var buf bytes.Buffer
	buf.Write(sender.KeyPEM(t))
	buf.Write(sender.CertPEM())
	buf.Write(withAlias(t, partner.CertPEM(), "partner"))

	store, err := OpenPEM("", buf.Bytes())
	require.NoError(t, err)

	signer, err := store.Signer("APP_1000000001")
	require.NoError(t, err)
	assert.True(t, signer.Certificate().Equal(sender.Cert))

	digest := sha256.Sum256([]byte("hello"))
	sig, err := signer.Sign(rand.Reader, digest[:], crypto.SHA256)
	require.NoError(t, err)
	assert.NotEmpty(t, sig)

	_, err = store.Signer("app_1000000001")
	assert.NoError(t, err, "aliases are case insensitive")

	cert, err := store.Certificate("partner")
	require.NoError(t, err)
	assert.True(t, cert.Equal(partner.Cert))

	cert, err = store.Certificate("APP_1000000001")
	require.NoError(t, err, "key entries expose their certificate")
	assert.True(t, cert.Equal(sender.Cert))

	_, err = store.Signer("unknown")
	assert.True(t, errors.Is(err, ErrKeyNotFound))
	_, err = store.Certificate("unknown")
	assert.True(t, errors.Is(err, ErrCertificateNotFound))

	aliases, err := store.Aliases()
	require.NoError(t, err)
	assert.Equal(t, []string{"APP_1000000001", "partner"}, aliases)

	err = store.Save()
	assert.True(t, errors.Is(err, ErrPersistenceNotSupported))
}

func TestPEMStoreKeyWithoutCertificate(t *testing.T) {
	id := testpki.NewSelfSigned(t, "APP_1")
	_, err := OpenPEM("", id.KeyPEM(t))
	assert.Error(t, err)
}

func TestPEMStoreSave(t *testing.T) {
	sender := testpki.NewSelfSigned(t, "APP_1000000001")
	receiver := testpki.NewSelfSigned(t, "APP_1000000002")

	path := filepath.Join(t.TempDir(), "keystore.pem")
	require.NoError(t, os.WriteFile(path, append(withAlias(t, sender.KeyPEM(t), "sender"), sender.CertPEM()...), 0o600))

	store, err := Open(Config{Type: TypePEM, Path: path})
	require.NoError(t, err)

	require.NoError(t, store.Save(), "saving an unchanged store is a no-op")

	require.NoError(t, store.SetCertificate("APP_1000000002", receiver.Cert))
	require.NoError(t, store.Save())

	reopened, err := OpenPEM(path, nil)
	require.NoError(t, err)

	_, err = reopened.Signer("sender")
	require.NoError(t, err)
	cert, err := reopened.Certificate("APP_1000000002")
	require.NoError(t, err)
	assert.True(t, cert.Equal(receiver.Cert))
}

func TestPKCS12Store(t *testing.T) {
	ca := testpki.NewCA(t, "Test CA")
	sender := testpki.Issue(t, "APP_1000000001", ca, testpki.Options{})
	receiver := testpki.NewSelfSigned(t, "APP_1000000002")

	data, err := pkcs12.Modern.Encode(sender.Key, sender.Cert, []*x509.Certificate{ca.Cert}, "secret")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "keystore.p12")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	_, err = Open(Config{Type: TypePKCS12, Path: path, Password: "wrong"})
	assert.Error(t, err)

	store, err := Open(Config{Type: TypePKCS12, Path: path, Password: "secret"})
	require.NoError(t, err)

	signer, err := store.Signer("APP_1000000001")
	require.NoError(t, err)
	require.Len(t, signer.Chain(), 1)
	assert.True(t, signer.Chain()[0].Equal(ca.Cert))

	require.NoError(t, store.SetCertificate("APP_1000000002", receiver.Cert))
	require.NoError(t, store.Save())

	reopened, err := OpenPKCS12(path, nil, "secret")
	require.NoError(t, err)
	cert, err := reopened.Certificate("APP_1000000002")
	require.NoError(t, err)
	assert.True(t, cert.Equal(receiver.Cert))
}

func TestOpenErrors(t *testing.T) {
	_, err := Open(Config{Type: "jks"})
	assert.True(t, errors.Is(err, ErrUnknownType))

	_, err = Open(Config{Type: TypePEM})
	assert.True(t, errors.Is(err, ErrNoSource))

	_, err = Open(Config{Type: TypePEM, Path: filepath.Join(t.TempDir(), "missing.pem")})
	assert.Error(t, err)
}

func TestKeyInfo(t *testing.T) {
	id := testpki.NewSelfSigned(t, "x")
	assert.Equal(t, "RSA", KeyAlgorithmName(id.Cert.PublicKey))
	assert.Equal(t, 2048, KeySize(id.Cert.PublicKey))
}
