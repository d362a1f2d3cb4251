package as2client

import (
	"context"
	"log/slog"
	"time"

	"github.com/sirosfoundation/go-peppol-as2/pkg/as2"
	"github.com/sirosfoundation/go-peppol-as2/pkg/certcheck"
	"github.com/sirosfoundation/go-peppol-as2/pkg/sbdh"
	"github.com/sirosfoundation/go-peppol-as2/pkg/validation"
)

// Builder sends one business document configured through Params.
// A Builder is not safe for concurrent use; separate builders are
// independent.
type Builder struct {
	params Params

	directory         DirectoryClient
	senderFactory     func() as2.Sender
	namespaces        sbdh.Namespaces
	registryFactory   func() (validation.Registry, error)
	registry          validation.Registry
	resultHandler     ValidationResultHandler
	certChecker       certcheck.Checker
	certResultHandler CertificateCheckResultHandler
	handler           MessageHandler
	logger            *slog.Logger
	now               func() time.Time
}

// Option configures a Builder
type Option func(*Builder)

// New creates a Builder for params
func New(params Params, opts ...Option) *Builder {
	b := &Builder{
		params:            params,
		registryFactory:   validation.NewDefaultRegistry,
		resultHandler:     DefaultValidationResultHandler{},
		certResultHandler: RejectInvalidCertificates,
		logger:            slog.Default(),
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.senderFactory == nil {
		logger := b.logger
		b.senderFactory = func() as2.Sender {
			return as2.NewHTTPSenderWithConfig(&as2.HTTPSenderConfig{Logger: logger})
		}
	}
	if b.handler == nil {
		b.handler = NewDefaultMessageHandler(b.logger)
	}
	return b
}

// WithDirectoryClient enables receiver lookup
func WithDirectoryClient(c DirectoryClient) Option {
	return func(b *Builder) {
		b.directory = c
	}
}

// WithSenderFactory replaces the AS2 HTTP sender
func WithSenderFactory(f func() as2.Sender) Option {
	return func(b *Builder) {
		b.senderFactory = f
	}
}

// WithNamespaces sets how the SBDH namespace is declared
func WithNamespaces(ns sbdh.Namespaces) Option {
	return func(b *Builder) {
		b.namespaces = ns
	}
}

// WithRegistryFactory sets how the validation registry is built. The factory
// is called at most once per Builder.
func WithRegistryFactory(f func() (validation.Registry, error)) Option {
	return func(b *Builder) {
		b.registryFactory = f
		b.registry = nil
	}
}

// WithValidationResultHandler sets the validation policy
func WithValidationResultHandler(h ValidationResultHandler) Option {
	return func(b *Builder) {
		b.resultHandler = h
	}
}

// WithCertificateChecker enables checking the receiver certificate
func WithCertificateChecker(c certcheck.Checker) Option {
	return func(b *Builder) {
		b.certChecker = c
	}
}

// WithCertificateCheckResultHandler sets the certificate check policy
func WithCertificateCheckResultHandler(h CertificateCheckResultHandler) Option {
	return func(b *Builder) {
		b.certResultHandler = h
	}
}

// WithMessageHandler sets the sink for verification diagnostics
func WithMessageHandler(h MessageHandler) Option {
	return func(b *Builder) {
		b.handler = h
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// Params returns the parameters for modification before sending
func (b *Builder) Params() *Params {
	return &b.params
}

// Prepare resolves and verifies a copy of the parameters without sending:
// directory lookup, defaults, then verification. The Builder's own
// parameters are not changed.
func (b *Builder) Prepare(ctx context.Context) (*Params, error) {
	p := b.params
	d := newDiagnostics(b.handler)

	b.lookupReceiver(ctx, &p, d)
	if d.abort != nil {
		return nil, d.abort
	}
	p.ApplyDefaults()
	b.verify(ctx, &p, d)

	if err := d.result(); err != nil {
		b.logger.Error("AS2 client configuration rejected", "errors", d.errorCount(), "warnings", d.warningCount())
		return nil, err
	}
	b.logger.Debug("AS2 client configuration verified", "warnings", d.warningCount())
	return &p, nil
}

// SendSynchronous assembles the document and sends it. Errors are returned
// for problems found before anything is sent; transport problems are
// reported in the response.
func (b *Builder) SendSynchronous(ctx context.Context) (*as2.Response, error) {
	// 1. Lookup, defaults and verification
	p, err := b.Prepare(ctx)
	if err != nil {
		return nil, err
	}

	// 2. Read the business document
	root, err := documentRoot(p)
	if err != nil {
		return nil, err
	}

	// 3. Validate
	if err := b.validateDocument(p, root); err != nil {
		return nil, err
	}

	// 4. Build the SBDH envelope
	data, err := b.assembleEnvelope(p, root)
	if err != nil {
		return nil, err
	}

	// 5. Send, exactly once
	req := &as2.Request{Subject: p.Subject, Data: data, ContentType: as2.DefaultContentType}
	resp := b.senderFactory().Send(ctx, p.settings(), req)

	if resp.HasException() {
		b.logger.Error("AS2 send failed", "receiver", p.ReceiverID.String(), "url", p.ReceiverURL, "error", resp.Exception)
	} else {
		b.logger.Info("AS2 message sent", "receiver", p.ReceiverID.String(), "message_id", resp.MessageID, "receipt", resp.HasReceipt())
	}
	return resp, nil
}
