package as2client

import (
	"context"
	"crypto/x509"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sirosfoundation/go-peppol-as2/internal/testpki"
	"github.com/sirosfoundation/go-peppol-as2/pkg/as2"
	"github.com/sirosfoundation/go-peppol-as2/pkg/certcheck"
	"github.com/sirosfoundation/go-peppol-as2/pkg/discovery"
	"github.com/sirosfoundation/go-peppol-as2/pkg/identifier"
	"github.com/sirosfoundation/go-peppol-as2/pkg/resource"
	"github.com/sirosfoundation/go-peppol-as2/pkg/sbdh"
	"github.com/sirosfoundation/go-peppol-as2/pkg/validation"
)

const (
	senderAS2ID   = "APP_1000000001"
	receiverAS2ID = "APP_1000000002"
	receiverURL   = "https://ap.example.com/as2"
	testRuleSet   = "test:rules"
)

const testInvoice = `<Invoice xmlns="urn:oasis:names:specification:ubl:schema:xsd:Invoice-2" xmlns:cbc="urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2"><cbc:UBLVersionID>2.1</cbc:UBLVersionID><cbc:ID>INV-42</cbc:ID><cbc:Note>Tom &amp; Jerry</cbc:Note></Invoice>`

var (
	senderID   = identifier.NewParticipant("9915:sender")
	receiverID = identifier.NewParticipant("9915:receiver")
	docTypeID  = identifier.NewDocumentType("urn:oasis:names:specification:ubl:schema:xsd:Invoice-2::Invoice##urn:cen.eu:en16931:2017::2.1")
	processID  = identifier.NewProcess("urn:fdc:peppol.eu:2017:poacc:billing:01:1.0")
	fixedNow   = time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)
)

type spyDirectory struct {
	lookups  int
	selects  int
	metadata *discovery.ServiceMetadata
	err      error
}

func (s *spyDirectory) Lookup(_ context.Context, receiver, documentType identifier.ID) (*discovery.ServiceMetadata, error) {
	s.lookups++
	if s.err != nil {
		return nil, s.err
	}
	return s.metadata, nil
}

func (s *spyDirectory) SelectEndpoint(md *discovery.ServiceMetadata, process identifier.ID, tp string) *discovery.Endpoint {
	s.selects++
	return discovery.SelectEndpoint(md, process, tp)
}

type spySender struct {
	calls    int
	settings *as2.Settings
	request  *as2.Request
	response *as2.Response
}

func (s *spySender) Send(_ context.Context, settings *as2.Settings, req *as2.Request) *as2.Response {
	s.calls++
	s.settings = settings
	s.request = req
	if s.response != nil {
		return s.response
	}
	return &as2.Response{MessageID: "<test@example.com>", StatusCode: 200}
}

type fixture struct {
	sender    *testpki.Identity
	receiver  *testpki.Identity
	directory *spyDirectory
	transport *spySender
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	receiver := testpki.NewSelfSigned(t, receiverAS2ID)
	return &fixture{
		sender:   testpki.NewSelfSigned(t, senderAS2ID),
		receiver: receiver,
		directory: &spyDirectory{metadata: &discovery.ServiceMetadata{
			Participant:  receiverID,
			DocumentType: docTypeID,
			Processes: []discovery.ProcessMetadata{{
				Process: processID,
				Endpoints: []discovery.Endpoint{{
					TransportProfile: discovery.TransportAS2V2,
					URL:              receiverURL,
					Certificate:      receiver.Cert.Raw,
				}},
			}},
		}},
		transport: &spySender{},
	}
}

func parseXML(t *testing.T, s string) *etree.Element {
	t.Helper()
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(s))
	return doc.Root()
}

// lookupParams has every required field set except those the directory
// provides
func (f *fixture) lookupParams(t *testing.T) Params {
	p := NewParams()
	p.KeyStore = KeyStore{Type: KeyStorePEM, Data: append(f.sender.KeyPEM(t), f.sender.CertPEM()...)}
	p.SenderID = senderID
	p.ReceiverID = receiverID
	p.DocumentTypeID = docTypeID
	p.ProcessID = processID
	p.SenderAS2ID = senderAS2ID
	p.SenderEmail = "as2@sender.example.com"
	p.SenderKeyAlias = senderAS2ID
	p.DocumentElement = parseXML(t, testInvoice)
	p.ValidationRuleSetID = testRuleSet
	return p
}

func (f *fixture) completeParams(t *testing.T) Params {
	p := f.lookupParams(t)
	p.ReceiverURL = receiverURL
	p.ReceiverCertificate = f.receiver.Cert
	p.ReceiverAS2ID = receiverAS2ID
	return p
}

func passingRegistry() (validation.Registry, error) {
	r := validation.NewRegistry()
	r.Register(testRuleSet, validation.ExecutorFunc(func(*etree.Element) validation.Results { return nil }))
	return r, nil
}

func failingRegistry() (validation.Registry, error) {
	r := validation.NewRegistry()
	r.Register(testRuleSet, validation.ExecutorFunc(func(*etree.Element) validation.Results {
		return validation.Results{
			{Severity: validation.SeverityWarning, RuleID: "W-1", Message: "just a warning"},
			{Severity: validation.SeverityError, RuleID: "E-1", Location: "/Invoice/ID", Message: "bad document number"},
		}
	}))
	return r, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (f *fixture) builder(p Params, opts ...Option) *Builder {
	base := []Option{
		WithLogger(discardLogger()),
		WithDirectoryClient(f.directory),
		WithSenderFactory(func() as2.Sender { return f.transport }),
		WithRegistryFactory(passingRegistry),
	}
	b := New(p, append(base, opts...)...)
	b.now = func() time.Time { return fixedNow }
	return b
}

func TestSendSynchronousComplete(t *testing.T) {
	f := newFixture(t)
	b := f.builder(f.completeParams(t))

	resp, err := b.SendSynchronous(context.Background())
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, 1, f.transport.calls)
	assert.Zero(t, f.directory.lookups, "directory must not be used when everything is set")

	s := f.transport.settings
	assert.Equal(t, senderAS2ID, s.SenderAS2ID)
	assert.Equal(t, receiverAS2ID, s.ReceiverAS2ID)
	assert.Equal(t, receiverAS2ID, s.ReceiverKeyAlias)
	assert.Equal(t, receiverURL, s.ReceiverURL)
	assert.Equal(t, as2.SigningSHA256, s.SigningAlgorithm)
	assert.Equal(t, senderAS2ID+"-"+receiverAS2ID, s.PartnershipName)
	assert.True(t, s.DispositionOptions.SignedReceiptRequired())
	assert.Equal(t, as2.DefaultSubject, f.transport.request.Subject)
	assert.Equal(t, as2.DefaultContentType, f.transport.request.ContentType)
}

func TestSigningAlgorithmAliasIsNormalized(t *testing.T) {
	tests := []struct {
		in   as2.SigningAlgorithm
		want as2.SigningAlgorithm
	}{
		{"sha-1", as2.SigningSHA1},
		{"SHA256", as2.SigningSHA256},
		{"sha512", as2.SigningSHA512},
	}
	for _, tt := range tests {
		t.Run(string(tt.in), func(t *testing.T) {
			f := newFixture(t)
			p := f.completeParams(t)
			p.SigningAlgorithm = tt.in

			_, err := f.builder(p).SendSynchronous(context.Background())
			require.NoError(t, err)
			s := f.transport.settings
			assert.Equal(t, tt.want, s.SigningAlgorithm)
			assert.Equal(t, []as2.SigningAlgorithm{tt.want}, s.DispositionOptions.MICAlgs)
		})
	}
}

func TestUnsupportedSigningAlgorithm(t *testing.T) {
	f := newFixture(t)
	p := f.completeParams(t)
	p.SigningAlgorithm = "md5"

	_, err := f.builder(p).SendSynchronous(context.Background())
	require.ErrorIs(t, err, ErrInvalidConfiguration)
	assert.Contains(t, err.Error(), `signing algorithm "md5" is not supported`)
	assert.Zero(t, f.transport.calls)
}

func TestSendSynchronousEnvelopeRoundTrip(t *testing.T) {
	f := newFixture(t)
	p := f.completeParams(t)
	original, err := sbdh.PayloadBytes(p.DocumentElement)
	require.NoError(t, err)

	_, err = f.builder(p).SendSynchronous(context.Background())
	require.NoError(t, err)

	env, err := sbdh.Parse(f.transport.request.Data)
	require.NoError(t, err)
	assert.Equal(t, senderID, env.Sender)
	assert.Equal(t, receiverID, env.Receiver)
	assert.Equal(t, docTypeID, env.DocumentType)
	assert.Equal(t, processID, env.Process)
	assert.True(t, env.CreationTime.Equal(fixedNow))

	payload, err := sbdh.PayloadBytes(env.Payload)
	require.NoError(t, err)
	assert.Equal(t, string(original), string(payload))
}

func TestSendSynchronousPrefixedNamespace(t *testing.T) {
	f := newFixture(t)
	_, err := f.builder(f.completeParams(t), WithNamespaces(sbdh.Namespaces{Prefix: "sh"})).SendSynchronous(context.Background())
	require.NoError(t, err)
	assert.Contains(t, string(f.transport.request.Data), "<sh:StandardBusinessDocument")
}

func TestSendSynchronousMissingField(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Params)
		message string
	}{
		{"subject", func(p *Params) { p.Subject = "" }, "subject is missing"},
		{"sender AS2 ID", func(p *Params) { p.SenderAS2ID = "" }, "sender ID is missing"},
		{"sender email", func(p *Params) { p.SenderEmail = "" }, "sender email address is missing"},
		{"sender key alias", func(p *Params) { p.SenderKeyAlias = "" }, "sender key alias is missing"},
		{"keystore type", func(p *Params) { p.KeyStore.Type = "" }, "keystore type is missing"},
		{"keystore", func(p *Params) { p.KeyStore.Data = nil }, "no AS2 keystore is defined"},
		{"signing algorithm", func(p *Params) { p.SigningAlgorithm = "" }, "signing algorithm for the AS2 message is missing"},
		{"message ID format", func(p *Params) { p.MessageIDFormat = " " }, "message ID format is missing"},
		{"payload", func(p *Params) { p.DocumentElement = nil }, "business document to be sent is missing"},
		{"sender participant", func(p *Params) { p.SenderID = identifier.ID{} }, "sender participant ID is missing"},
		{"receiver participant", func(p *Params) { p.ReceiverID = identifier.ID{} }, "receiver participant ID is missing"},
		{"document type", func(p *Params) { p.DocumentTypeID = identifier.ID{} }, "document type ID is missing"},
		{"process", func(p *Params) { p.ProcessID = identifier.ID{} }, "process ID is missing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			p := f.lookupParams(t)
			tt.mutate(&p)
			collector := &CollectingMessageHandler{}

			resp, err := f.builder(p, WithMessageHandler(collector)).SendSynchronous(context.Background())
			require.Error(t, err)
			assert.Nil(t, resp)
			assert.ErrorIs(t, err, ErrInvalidConfiguration)
			assert.Zero(t, f.transport.calls)

			var be *BuilderError
			require.ErrorAs(t, err, &be)
			assert.Equal(t, collector.Errors(), be.Messages)
			found := false
			for _, msg := range be.Messages {
				if strings.Contains(msg, tt.message) {
					found = true
				}
			}
			assert.True(t, found, "expected an error containing %q in %v", tt.message, be.Messages)
		})
	}
}

func TestLookupStillRunsWhenVerificationFails(t *testing.T) {
	f := newFixture(t)
	p := f.lookupParams(t)
	p.SenderEmail = ""

	_, err := f.builder(p).SendSynchronous(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, f.directory.lookups)
	assert.Zero(t, f.transport.calls)
}

func TestApplyDefaultsIdempotent(t *testing.T) {
	p := NewParams()
	p.ReceiverAS2ID = receiverAS2ID
	p.ApplyDefaults()
	once := p
	p.ApplyDefaults()
	assert.Equal(t, once, p)
	assert.Equal(t, receiverAS2ID, p.ReceiverKeyAlias)

	p = NewParams()
	p.ReceiverAS2ID = receiverAS2ID
	p.ReceiverKeyAlias = "explicit"
	p.ApplyDefaults()
	assert.Equal(t, "explicit", p.ReceiverKeyAlias)
}

func TestPrepareLooksUpReceiver(t *testing.T) {
	f := newFixture(t)
	b := f.builder(f.lookupParams(t))

	p, err := b.Prepare(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, f.directory.lookups)
	assert.Equal(t, receiverURL, p.ReceiverURL)
	require.NotNil(t, p.ReceiverCertificate)
	assert.True(t, p.ReceiverCertificate.Equal(f.receiver.Cert))
	assert.Equal(t, receiverAS2ID, p.ReceiverAS2ID)
	assert.Equal(t, receiverAS2ID, p.ReceiverKeyAlias)

	// the builder keeps its own parameters
	assert.Empty(t, b.Params().ReceiverURL)
}

func TestPrepareOnlyFillsUnsetFields(t *testing.T) {
	f := newFixture(t)
	p := f.lookupParams(t)
	p.ReceiverURL = "https://override.example.com/as2"

	got, err := f.builder(p).Prepare(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, f.directory.lookups)
	assert.Equal(t, "https://override.example.com/as2", got.ReceiverURL)
	assert.Equal(t, receiverAS2ID, got.ReceiverAS2ID)
}

func TestPrepareVersion1UsesV1Profile(t *testing.T) {
	f := newFixture(t)
	p := f.lookupParams(t)
	p.SetVersion(as2.ProfileV1)

	_, err := f.builder(p).Prepare(context.Background())
	require.Error(t, err, "directory only publishes a v2 endpoint")
	assert.Equal(t, 1, f.directory.selects)

	f.directory.metadata.Processes[0].Endpoints[0].TransportProfile = discovery.TransportAS2V1
	got, err := f.builder(p).Prepare(context.Background())
	require.NoError(t, err)
	assert.Equal(t, as2.SigningSHA1, got.SigningAlgorithm)
	assert.Equal(t, receiverURL, got.ReceiverURL)
}

func TestReceiverNotFound(t *testing.T) {
	f := newFixture(t)
	f.directory.err = discovery.ErrParticipantNotFound
	collector := &CollectingMessageHandler{}

	_, err := f.builder(f.lookupParams(t), WithMessageHandler(collector)).SendSynchronous(context.Background())
	require.Error(t, err)
	assert.Zero(t, f.transport.calls)
	assert.Equal(t, 1, f.directory.lookups)

	errs := collector.Errors()
	for _, want := range []string{"receiver ID is missing", "receiver URL is missing", "receiver X.509 certificate is missing"} {
		n := 0
		for _, msg := range errs {
			if strings.Contains(msg, want) {
				n++
			}
		}
		assert.Equal(t, 1, n, "expected exactly one %q error in %v", want, errs)
	}
	assert.NotEmpty(t, collector.Warnings())
}

func TestLookupMissingIdentifiers(t *testing.T) {
	f := newFixture(t)
	p := f.lookupParams(t)
	p.ProcessID = identifier.ID{}
	p.DocumentTypeID = identifier.ID{}
	collector := &CollectingMessageHandler{}

	_, err := f.builder(p, WithMessageHandler(collector)).Prepare(context.Background())
	require.Error(t, err)
	assert.Zero(t, f.directory.lookups)
	require.NotEmpty(t, collector.Warnings())
	assert.Contains(t, collector.Warnings()[0], "document type ID, process ID")
}

func TestMalformedLookupCertificate(t *testing.T) {
	f := newFixture(t)
	f.directory.metadata.Processes[0].Endpoints[0].Certificate = []byte("not a certificate")
	collector := &CollectingMessageHandler{}

	_, err := f.builder(f.lookupParams(t), WithMessageHandler(collector)).SendSynchronous(context.Background())
	require.Error(t, err)
	assert.Zero(t, f.transport.calls)

	var malformed bool
	for _, d := range collector.Diagnostics {
		if d.Error && errors.Is(d.Cause, ErrMalformedCertificate) {
			malformed = true
		}
	}
	assert.True(t, malformed)
}

func TestValidationFailureAbortsSend(t *testing.T) {
	f := newFixture(t)
	_, err := f.builder(f.completeParams(t), WithRegistryFactory(failingRegistry)).SendSynchronous(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidationFailed)
	assert.Zero(t, f.transport.calls)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, testRuleSet, ve.RuleSetID)
	failures := ve.Results.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, "E-1", failures[0].RuleID)
}

type recordingResultHandler struct {
	successes int
	failures  int
}

func (h *recordingResultHandler) OnSuccess(string, validation.Results) error {
	h.successes++
	return nil
}

func (h *recordingResultHandler) OnFailure(string, validation.Results) error {
	h.failures++
	return nil
}

func TestValidationSuccessSends(t *testing.T) {
	f := newFixture(t)
	handler := &recordingResultHandler{}
	_, err := f.builder(f.completeParams(t), WithValidationResultHandler(handler)).SendSynchronous(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, handler.successes)
	assert.Zero(t, handler.failures)
	assert.Equal(t, 1, f.transport.calls)
}

func TestAdvisoryValidationSends(t *testing.T) {
	f := newFixture(t)
	_, err := f.builder(f.completeParams(t),
		WithRegistryFactory(failingRegistry),
		WithValidationResultHandler(AdvisoryResultHandler{Logger: discardLogger()}),
	).SendSynchronous(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, f.transport.calls)
}

func TestUnknownRuleSet(t *testing.T) {
	f := newFixture(t)
	p := f.completeParams(t)
	p.ValidationRuleSetID = "no:such:rules"

	_, err := f.builder(p).SendSynchronous(context.Background())
	assert.ErrorIs(t, err, validation.ErrUnknownRuleSet)
	assert.Zero(t, f.transport.calls)
}

func TestRegistryBuiltOnce(t *testing.T) {
	f := newFixture(t)
	calls := 0
	b := f.builder(f.completeParams(t), WithRegistryFactory(func() (validation.Registry, error) {
		calls++
		return passingRegistry()
	}))
	for i := 0; i < 2; i++ {
		_, err := b.SendSynchronous(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, 1, calls)
	assert.Equal(t, 2, f.transport.calls)
}

func TestNoValidationWarns(t *testing.T) {
	f := newFixture(t)
	p := f.completeParams(t)
	p.ValidationRuleSetID = ""
	collector := &CollectingMessageHandler{}

	_, err := f.builder(p, WithMessageHandler(collector)).SendSynchronous(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, f.transport.calls)
	assert.Contains(t, collector.Warnings(), "no validation rule set is configured, the business document will not be validated")
}

func TestUnconventionalSenderIDWarns(t *testing.T) {
	f := newFixture(t)
	p := f.completeParams(t)
	p.SenderAS2ID = "X123"
	collector := &CollectingMessageHandler{}

	_, err := f.builder(p, WithMessageHandler(collector)).SendSynchronous(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, f.transport.calls)
	assert.Empty(t, collector.Errors())

	var warned bool
	for _, w := range collector.Warnings() {
		if strings.Contains(w, `sender ID "X123"`) {
			warned = true
		}
	}
	assert.True(t, warned, "warnings: %v", collector.Warnings())
}

func TestAS2IDConventions(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"APP_1000000001", true},
		{"PBE000123", true},
		{"PBE00012", false},
		{"pbe000123", false},
		{"X123", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isConventionalAS2ID(tt.id), tt.id)
	}
}

func TestNonStandardIdentifierSchemeWarns(t *testing.T) {
	f := newFixture(t)
	p := f.completeParams(t)
	p.SenderID = identifier.New("custom-scheme", "9915:sender")
	collector := &CollectingMessageHandler{}

	_, err := f.builder(p, WithMessageHandler(collector)).SendSynchronous(context.Background())
	require.NoError(t, err)
	assert.Contains(t, collector.Warnings(), `the PEPPOL sender participant ID "custom-scheme::9915:sender" is using a non-standard scheme`)
}

func TestFailFastHandler(t *testing.T) {
	f := newFixture(t)
	p := f.completeParams(t)
	p.Subject = ""
	p.SenderEmail = ""

	_, err := f.builder(p, WithMessageHandler(NewFailFastMessageHandler(discardLogger()))).SendSynchronous(context.Background())
	var be *BuilderError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, []string{"the AS2 message subject is missing"}, be.Messages)
	assert.Zero(t, f.transport.calls)
}

func TestDefaultHandlerCollectsAllErrors(t *testing.T) {
	f := newFixture(t)
	p := f.completeParams(t)
	p.Subject = ""
	p.SenderEmail = ""
	handler := NewDefaultMessageHandler(discardLogger())

	_, err := f.builder(p, WithMessageHandler(handler)).SendSynchronous(context.Background())
	var be *BuilderError
	require.ErrorAs(t, err, &be)
	assert.Len(t, be.Messages, 2)
	assert.Equal(t, 2, handler.ErrorCount())
	assert.Contains(t, err.Error(), "2 errors")
}

// lenientHandler logs errors but never counts them, so nothing aborts
type lenientHandler struct {
	CollectingMessageHandler
}

func (h *lenientHandler) ErrorCount() int { return 0 }

func TestAbortDecidedByHandlerErrorCount(t *testing.T) {
	f := newFixture(t)
	p := f.completeParams(t)
	p.SenderEmail = ""
	handler := &lenientHandler{}

	_, err := f.builder(p, WithMessageHandler(handler)).SendSynchronous(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"the AS2 sender email address is missing"}, handler.Errors())
	assert.Equal(t, 1, f.transport.calls)
}

func TestHandlerReusedAcrossSends(t *testing.T) {
	f := newFixture(t)
	p := f.completeParams(t)
	p.Subject = ""
	handler := NewDefaultMessageHandler(discardLogger())
	b := f.builder(p, WithMessageHandler(handler))

	_, err := b.SendSynchronous(context.Background())
	require.ErrorIs(t, err, ErrInvalidConfiguration)
	assert.Equal(t, 1, handler.ErrorCount())

	b.Params().Subject = "fixed"
	_, err = b.SendSynchronous(context.Background())
	require.NoError(t, err, "errors of an earlier pass must not abort this one")
	assert.Equal(t, 1, f.transport.calls)
	assert.Equal(t, 1, handler.ErrorCount())
}

func TestCertificateChecker(t *testing.T) {
	f := newFixture(t)
	var checked *x509.Certificate
	checker := certcheck.CheckerFunc(func(_ context.Context, cert *x509.Certificate, at time.Time) certcheck.Result {
		checked = cert
		assert.Equal(t, fixedNow, at)
		return certcheck.Revoked
	})

	_, err := f.builder(f.completeParams(t), WithCertificateChecker(checker)).SendSynchronous(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "revoked")
	assert.Zero(t, f.transport.calls)
	require.NotNil(t, checked)
	assert.True(t, checked.Equal(f.receiver.Cert))

	// a lenient policy accepts the same result
	lenient := CertificateCheckResultHandlerFunc(func(*x509.Certificate, time.Time, certcheck.Result) error { return nil })
	_, err = f.builder(f.completeParams(t), WithCertificateChecker(checker), WithCertificateCheckResultHandler(lenient)).
		SendSynchronous(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, f.transport.calls)
}

func TestReceiverCertificateBytes(t *testing.T) {
	f := newFixture(t)
	p := f.completeParams(t)
	p.ReceiverCertificate = nil
	p.ReceiverCertificateBytes = f.receiver.CertPEM()

	got, err := f.builder(p).Prepare(context.Background())
	require.NoError(t, err)
	require.NotNil(t, got.ReceiverCertificate)
	assert.True(t, got.ReceiverCertificate.Equal(f.receiver.Cert))

	p.ReceiverCertificateBytes = []byte("garbage")
	_, err = f.builder(p).Prepare(context.Background())
	require.Error(t, err)
}

func TestKeyStoreChecks(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "keys.pem")
	require.NoError(t, os.WriteFile(path, f.sender.KeyPEM(t), 0o600))

	tests := []struct {
		name    string
		ks      KeyStore
		save    bool
		wantErr string
	}{
		{"pem file", KeyStore{Type: KeyStorePEM, Path: path}, false, ""},
		{"writable pem file", KeyStore{Type: KeyStorePEM, Path: path}, true, ""},
		{"missing file", KeyStore{Type: KeyStorePEM, Path: filepath.Join(dir, "nope.pem")}, false, "does not exist"},
		{"directory", KeyStore{Type: KeyStorePEM, Path: dir}, false, "is not a file but a directory"},
		{"pkcs12 without password", KeyStore{Type: KeyStorePKCS12, Path: path}, false, "password is provided"},
		{"pkcs12 with password", KeyStore{Type: KeyStorePKCS12, Path: path, Password: "secret"}, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := f.completeParams(t)
			p.KeyStore = tt.ks
			p.SaveKeyStoreChanges = tt.save

			_, err := f.builder(p).Prepare(context.Background())
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDocumentResource(t *testing.T) {
	f := newFixture(t)
	p := f.completeParams(t)
	p.DocumentElement = nil
	p.Document = resource.Bytes("invoice.xml", []byte(testInvoice))

	_, err := f.builder(p).SendSynchronous(context.Background())
	require.NoError(t, err)
	env, err := sbdh.Parse(f.transport.request.Data)
	require.NoError(t, err)
	assert.Equal(t, "Invoice", env.Payload.Tag)

	p.Document = resource.Bytes("broken.xml", []byte("this is not XML"))
	_, err = f.builder(p).SendSynchronous(context.Background())
	assert.ErrorIs(t, err, ErrDocumentRead)

	p.Document = resource.Bytes("missing.xml", nil)
	_, err = f.builder(p).SendSynchronous(context.Background())
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	p.DocumentElement = parseXML(t, testInvoice)
	p.Document = resource.Bytes("invoice.xml", []byte(testInvoice))
	_, err = f.builder(p).SendSynchronous(context.Background())
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestTransportFailureIsInResponse(t *testing.T) {
	f := newFixture(t)
	f.transport.response = &as2.Response{MessageID: "<m@x>", Exception: as2.ErrUnexpectedStatus}

	resp, err := f.builder(f.completeParams(t)).SendSynchronous(context.Background())
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.True(t, resp.HasException())
	assert.Equal(t, 1, f.transport.calls)
}
