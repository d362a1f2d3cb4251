package as2

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/sirosfoundation/go-peppol-as2/internal/keystore"
)

// Transport errors
var (
	ErrInvalidRequest     = errors.New("invalid AS2 request")
	ErrUnexpectedStatus   = errors.New("unexpected HTTP status")
	ErrNoReceiverCert     = errors.New("no certificate for receiver")
	ErrResponseTooLarge   = errors.New("response exceeds size limit")
	ErrReceiptUnavailable = errors.New("no receipt in response")
)

// maxResponseSize bounds the MDN read from the receiver
const maxResponseSize = 10 << 20

// Sender transmits one AS2 message synchronously
type Sender interface {
	Send(ctx context.Context, settings *Settings, req *Request) *Response
}

// Recommended TLS 1.2 cipher suites
var RecommendedTLS12CipherSuites = []uint16{
	tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
}

// HTTPSenderConfig configures an HTTPSender
type HTTPSenderConfig struct {
	MinTLSVersion uint16
	MaxTLSVersion uint16
	CipherSuites  []uint16
	RootCAs       *x509.CertPool
	// InsecureSkipVerify disables server certificate checks, for test
	// endpoints only
	InsecureSkipVerify bool
	UserAgent          string
	Logger             *slog.Logger
}

// DefaultHTTPSenderConfig returns the default configuration
func DefaultHTTPSenderConfig() *HTTPSenderConfig {
	return &HTTPSenderConfig{
		MinTLSVersion: tls.VersionTLS12,
		MaxTLSVersion: tls.VersionTLS13,
		CipherSuites:  RecommendedTLS12CipherSuites,
		UserAgent:     "go-peppol-as2/1.0",
	}
}

// HTTPSender posts signed AS2 messages and processes the synchronous MDN
type HTTPSender struct {
	config *HTTPSenderConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewHTTPSender creates a sender with the default configuration
func NewHTTPSender() *HTTPSender {
	return NewHTTPSenderWithConfig(nil)
}

// NewHTTPSenderWithConfig creates a sender
func NewHTTPSenderWithConfig(config *HTTPSenderConfig) *HTTPSender {
	defaults := DefaultHTTPSenderConfig()
	if config == nil {
		config = defaults
	}
	if config.MinTLSVersion == 0 {
		config.MinTLSVersion = defaults.MinTLSVersion
	}
	if config.UserAgent == "" {
		config.UserAgent = defaults.UserAgent
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPSender{config: config, logger: logger, now: time.Now}
}

// Send signs and posts the message. It makes exactly one attempt.
func (s *HTTPSender) Send(ctx context.Context, settings *Settings, req *Request) *Response {
	start := s.now()
	resp := &Response{}
	defer func() { resp.Duration = time.Since(start) }()

	if settings == nil || req == nil {
		resp.Exception = fmt.Errorf("%w: settings and request are required", ErrInvalidRequest)
		return resp
	}
	if settings.ReceiverURL == "" {
		resp.Exception = fmt.Errorf("%w: no receiver URL", ErrInvalidRequest)
		return resp
	}

	store, err := keystore.Open(settings.KeyStore)
	if err != nil {
		resp.Exception = fmt.Errorf("opening keystore: %w", err)
		return resp
	}
	defer store.Close()

	signer, err := store.Signer(settings.SenderKeyAlias)
	if err != nil {
		resp.Exception = fmt.Errorf("sender key %q: %w", settings.SenderKeyAlias, err)
		return resp
	}
	receiverCert, err := s.receiverCertificate(store, settings)
	if err != nil {
		resp.Exception = err
		return resp
	}

	subject := req.Subject
	if subject == "" {
		subject = DefaultSubject
	}
	format := settings.MessageIDFormat
	if format == "" {
		format = DefaultMessageIDFormat
	}
	resp.MessageID, err = FormatMessageID(format, MessageIDValues{
		SenderAS2ID:   settings.SenderAS2ID,
		ReceiverAS2ID: settings.ReceiverAS2ID,
		SenderEmail:   settings.SenderEmail,
		Subject:       subject,
		Now:           start,
	})
	if err != nil {
		resp.Exception = err
		return resp
	}

	alg := SigningSHA256
	if settings.SigningAlgorithm != "" {
		if alg, err = ParseSigningAlgorithm(string(settings.SigningAlgorithm)); err != nil {
			resp.Exception = fmt.Errorf("%w: %w", ErrInvalidRequest, err)
			return resp
		}
	}
	entity, err := buildEntity(req.Data, req.ContentType, settings.ContentTransferEncoding)
	if err != nil {
		resp.Exception = err
		return resp
	}
	signed, err := signEntity(entity, signer, alg)
	if err != nil {
		resp.Exception = err
		return resp
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, settings.ReceiverURL, bytes.NewReader(signed.body))
	if err != nil {
		resp.Exception = fmt.Errorf("failed to create request: %w", err)
		return resp
	}
	s.setHeaders(httpReq.Header, settings, resp.MessageID, subject, signed.contentType, start)

	s.logger.Info("sending AS2 message",
		"message_id", resp.MessageID,
		"partnership", settings.PartnershipName,
		"url", settings.ReceiverURL,
		"size", len(req.Data))

	httpResp, err := s.client(settings).Do(httpReq)
	if err != nil {
		resp.Exception = fmt.Errorf("failed to send request: %w", err)
		return resp
	}
	defer httpResp.Body.Close()
	resp.StatusCode = httpResp.StatusCode

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize+1))
	if err != nil {
		resp.Exception = fmt.Errorf("failed to read response: %w", err)
		return resp
	}
	if len(body) > maxResponseSize {
		resp.Exception = ErrResponseTooLarge
		return resp
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		resp.Exception = fmt.Errorf("%w %d: %s", ErrUnexpectedStatus, httpResp.StatusCode, truncate(body, 512))
		return resp
	}

	if settings.DispositionOptions.IsEmpty() {
		s.logger.Info("AS2 message sent", "message_id", resp.MessageID, "status", resp.StatusCode)
		return resp
	}
	if len(body) == 0 {
		resp.Exception = ErrReceiptUnavailable
		return resp
	}

	resp.Exception = s.processReceipt(resp, settings, httpResp.Header.Get("Content-Type"), body, receiverCert, signed.mic)
	switch {
	case resp.Exception != nil:
		s.logger.Warn("AS2 receipt rejected", "message_id", resp.MessageID, "error", resp.Exception)
	case resp.HasWarning():
		s.logger.Warn("AS2 message acknowledged with a warning",
			"message_id", resp.MessageID,
			"disposition", resp.MDN.Disposition.String())
	default:
		s.logger.Info("AS2 message acknowledged",
			"message_id", resp.MessageID,
			"disposition", resp.MDN.Disposition.String())
	}
	return resp
}

// receiverCertificate returns the configured receiver certificate or the one
// stored under the receiver alias. A configured certificate is written to the
// keystore when SaveKeyStoreChanges is set.
func (s *HTTPSender) receiverCertificate(store keystore.Store, settings *Settings) (*x509.Certificate, error) {
	cert := settings.ReceiverCertificate
	if cert == nil {
		stored, err := store.Certificate(settings.ReceiverKeyAlias)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %w", ErrNoReceiverCert, settings.ReceiverKeyAlias, err)
		}
		return stored, nil
	}

	if settings.SaveKeyStoreChanges {
		if err := store.SetCertificate(settings.ReceiverKeyAlias, cert); err != nil {
			s.logger.Warn("failed to store receiver certificate", "alias", settings.ReceiverKeyAlias, "error", err)
		} else if err := store.Save(); err != nil {
			s.logger.Warn("failed to save keystore", "path", settings.KeyStore.Path, "error", err)
		} else {
			s.logger.Debug("stored receiver certificate", "alias", settings.ReceiverKeyAlias)
		}
	}
	return cert, nil
}

func (s *HTTPSender) processReceipt(resp *Response, settings *Settings, contentType string, body []byte, receiverCert *x509.Certificate, mic string) error {
	mdn, sig, err := parseReceipt(contentType, body)
	if err != nil {
		return err
	}
	resp.MDN = mdn

	if sig != nil {
		cert, err := verifyDetached(sig.content, sig.signature, receiverCert)
		if err != nil {
			return err
		}
		resp.ReceiptCertificate = cert
	} else if settings.DispositionOptions.SignedReceiptRequired() {
		return ErrReceiptNotSigned
	}
	return mdn.check(resp.MessageID, mic)
}

func (s *HTTPSender) setHeaders(h http.Header, settings *Settings, messageID, subject, contentType string, now time.Time) {
	h.Set("AS2-Version", Version)
	h.Set("AS2-From", quoteAS2Name(settings.SenderAS2ID))
	h.Set("AS2-To", quoteAS2Name(settings.ReceiverAS2ID))
	h.Set("Message-ID", messageID)
	h.Set("Subject", subject)
	h.Set("Date", now.Format(time.RFC1123Z))
	h.Set("Mime-Version", "1.0")
	h.Set("Content-Type", contentType)
	h.Set("User-Agent", s.config.UserAgent)
	h.Set("Recipient-Address", settings.ReceiverURL)
	if settings.SenderEmail != "" {
		h.Set("From", settings.SenderEmail)
	}
	if !settings.DispositionOptions.IsEmpty() {
		to := settings.SenderEmail
		if to == "" {
			to = settings.SenderAS2ID
		}
		h.Set("Disposition-Notification-To", to)
		h.Set("Disposition-Notification-Options", settings.DispositionOptions.String())
	}
}

func (s *HTTPSender) client(settings *Settings) *http.Client {
	dialer := &net.Dialer{Timeout: settings.ConnectTimeout}
	transport := &http.Transport{
		Proxy:       http.ProxyFromEnvironment,
		DialContext: dialer.DialContext,
		TLSClientConfig: &tls.Config{
			MinVersion:         s.config.MinTLSVersion,
			MaxVersion:         s.config.MaxTLSVersion,
			CipherSuites:       s.config.CipherSuites,
			RootCAs:            s.config.RootCAs,
			InsecureSkipVerify: s.config.InsecureSkipVerify, //nolint:gosec // opt-in for test endpoints
		},
		TLSHandshakeTimeout:   settings.ConnectTimeout,
		ResponseHeaderTimeout: settings.ReadTimeout,
		DisableKeepAlives:     true,
	}
	client := &http.Client{Transport: transport}
	if settings.ConnectTimeout > 0 && settings.ReadTimeout > 0 {
		client.Timeout = settings.ConnectTimeout + settings.ReadTimeout
	}
	return client
}

// quoteAS2Name quotes AS2 names containing spaces (RFC 4130 section 6.2)
func quoteAS2Name(name string) string {
	for _, c := range name {
		if c == ' ' || c == '"' || c == '\\' {
			return fmt.Sprintf("%q", name)
		}
	}
	return name
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
