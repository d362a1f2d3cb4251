package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sirosfoundation/go-peppol-as2/internal/testpki"
)

const invoice = `<Invoice xmlns="urn:oasis:names:specification:ubl:schema:xsd:Invoice-2"><ID>1</ID></Invoice>`

type env struct {
	dir          string
	configPath   string
	receiverCert string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()
	sender := testpki.NewSelfSigned(t, "APP_1000000001")
	receiver := testpki.NewSelfSigned(t, "APP_1000000002")

	keys := filepath.Join(dir, "keys.pem")
	require.NoError(t, os.WriteFile(keys, append(sender.KeyPEM(t), sender.CertPEM()...), 0o600))
	receiverCert := filepath.Join(dir, "receiver.pem")
	require.NoError(t, os.WriteFile(receiverCert, receiver.CertPEM(), 0o600))

	configPath := filepath.Join(dir, "peppol-as2.yaml")
	config := fmt.Sprintf(`sml:
  disabled: true
as2:
  senderID: "9915:sender"
  senderAS2ID: APP_1000000001
  senderEmail: as2@example.com
keystore:
  type: pem
  path: %s
log:
  level: error
`, keys)
	require.NoError(t, os.WriteFile(configPath, []byte(config), 0o600))

	return &env{dir: dir, configPath: configPath, receiverCert: receiverCert}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestKeyStoreList(t *testing.T) {
	e := newEnv(t)
	out, err := execute(t, "keystore", "list", "--config", e.configPath)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "ALIAS")
	assert.Contains(t, lines[1], "APP_1000000001 *")
	assert.Contains(t, lines[1], "RSA 2048")
}

func TestMissingConfig(t *testing.T) {
	_, err := execute(t, "keystore", "list", "--config", filepath.Join(t.TempDir(), "none.yaml"))
	assert.ErrorContains(t, err, "reading config file")
}

func TestSendTransportFailure(t *testing.T) {
	e := newEnv(t)
	var posts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		posts.Add(1)
		assert.Equal(t, "APP_1000000001", r.Header.Get("AS2-From"))
		assert.Equal(t, "APP_1000000002", r.Header.Get("AS2-To"))
		http.Error(w, "not today", http.StatusInternalServerError)
	}))
	defer server.Close()

	doc := filepath.Join(e.dir, "invoice.xml")
	require.NoError(t, os.WriteFile(doc, []byte(invoice), 0o600))

	out, err := execute(t, "send", "--config", e.configPath,
		"--receiver", "9915:receiver",
		"--doctype", "urn:oasis:names:specification:ubl:schema:xsd:Invoice-2::Invoice##urn:cen.eu:en16931:2017::2.1",
		"--process", "urn:fdc:peppol.eu:2017:poacc:billing:01:1.0",
		"--receiver-url", server.URL,
		"--receiver-cert", e.receiverCert,
		"--receiver-as2-id", "APP_1000000002",
		doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sending failed")
	assert.Contains(t, out, "HTTP 500")
	assert.Equal(t, int32(1), posts.Load())
}

func TestSendRejectsIncompleteParameters(t *testing.T) {
	e := newEnv(t)
	doc := filepath.Join(e.dir, "invoice.xml")
	require.NoError(t, os.WriteFile(doc, []byte(invoice), 0o600))

	_, err := execute(t, "send", "--config", e.configPath, doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid AS2 client configuration")
	assert.Contains(t, err.Error(), "receiver URL is missing")
}

func TestSendBadIdentifier(t *testing.T) {
	e := newEnv(t)
	_, err := execute(t, "send", "--config", e.configPath, "--receiver", " ", "invoice.xml")
	assert.Error(t, err)
}

func TestLookupDocumentTypes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<ServiceGroup>
  <ParticipantIdentifier scheme="iso6523-actorid-upis">9915:receiver</ParticipantIdentifier>
  <ServiceMetadataReferenceCollection>
    <ServiceMetadataReference href="http://smp.example.com/a/services/doc1"/>
  </ServiceMetadataReferenceCollection>
</ServiceGroup>`))
	}))
	defer server.Close()

	out, err := execute(t, "lookup", "9915:receiver", "--smp-url", server.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "smp: "+server.URL)
	assert.Contains(t, out, "document types: 1")
	assert.Contains(t, out, "http://smp.example.com/a/services/doc1")
}

func TestWatchRequiresFolder(t *testing.T) {
	e := newEnv(t)
	_, err := execute(t, "watch", "--config", e.configPath)
	assert.ErrorContains(t, err, "folders.sending is not configured")
}
