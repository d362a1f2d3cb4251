package config

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/sirosfoundation/go-peppol-as2/internal/keystore"
	"github.com/sirosfoundation/go-peppol-as2/pkg/as2"
	"github.com/sirosfoundation/go-peppol-as2/pkg/as2client"
	"github.com/sirosfoundation/go-peppol-as2/pkg/certcheck"
	"github.com/sirosfoundation/go-peppol-as2/pkg/discovery"
	"github.com/sirosfoundation/go-peppol-as2/pkg/identifier"
	"github.com/sirosfoundation/go-peppol-as2/pkg/validation"
)

// Params returns the parameters shared by every send: credentials, sender
// identity and AS2 settings. Receiver, document and routing identifiers are
// left to the caller.
func (c *Config) Params() (as2client.Params, error) {
	p := as2client.NewParams()

	version, err := as2.ParseProfileVersion(fmt.Sprint(c.AS2.Version))
	if err != nil {
		return p, err
	}
	p.SetVersion(version)

	if c.AS2.SenderID != "" {
		id, err := identifier.ParseWithDefault(c.AS2.SenderID, identifier.Participant)
		if err != nil {
			return p, fmt.Errorf("as2.senderID: %w", err)
		}
		p.SenderID = id
	}

	password := c.KeyStore.Password
	if password == "" && keystore.Type(c.KeyStore.Type) == keystore.TypePKCS11 {
		password = c.KeyStore.PKCS11.PIN
	}
	p.KeyStore = as2client.KeyStore{
		Type:     keystore.Type(c.KeyStore.Type),
		Path:     c.KeyStore.Path,
		Password: password,
		PKCS11: keystore.PKCS11Config{
			ModulePath: c.KeyStore.PKCS11.ModulePath,
			SlotID:     c.KeyStore.PKCS11.SlotID,
			TokenLabel: c.KeyStore.PKCS11.TokenLabel,
			PIN:        c.KeyStore.PKCS11.PIN,
		},
	}
	p.SaveKeyStoreChanges = c.KeyStore.SaveChanges

	p.Subject = c.AS2.Subject
	p.SenderAS2ID = c.AS2.SenderAS2ID
	p.SenderEmail = c.AS2.SenderEmail
	p.SenderKeyAlias = c.KeyStore.KeyAlias
	p.MessageIDFormat = c.AS2.MessageIDFormat
	p.ConnectTimeout = c.AS2.ConnectTimeout
	p.ReadTimeout = c.AS2.ReadTimeout
	p.ContentTransferEncoding = c.AS2.ContentTransferEncoding
	p.ValidationRuleSetID = c.Validation.RuleSet
	return p, nil
}

// DirectoryClient returns the receiver lookup client, or nil when lookup is
// disabled
func (c *Config) DirectoryClient() *discovery.Client {
	if c.SML.Disabled {
		return nil
	}
	return discovery.NewClientWithConfig(discovery.Config{
		SML: discovery.SMLClientConfig{
			Zone:      c.SML.Zone,
			Mode:      discovery.SMLMode(c.SML.Mode),
			DNSServer: c.SML.DNSServer,
		},
		SMPURL: c.SML.SMPURL,
	})
}

// SenderConfig returns the AS2 HTTP transport configuration
func (c *Config) SenderConfig(logger *slog.Logger) (*as2.HTTPSenderConfig, error) {
	cfg := as2.DefaultHTTPSenderConfig()
	cfg.Logger = logger
	cfg.InsecureSkipVerify = c.AS2.TLS.InsecureSkipVerify
	if c.AS2.UserAgent != "" {
		cfg.UserAgent = c.AS2.UserAgent
	}
	if c.AS2.TLS.MinVersion == "1.3" {
		cfg.MinTLSVersion = tls.VersionTLS13
	}
	if c.AS2.TLS.CAFile != "" {
		pool, err := certcheck.LoadPool(c.AS2.TLS.CAFile)
		if err != nil {
			return nil, fmt.Errorf("as2.tls.caFile: %w", err)
		}
		cfg.RootCAs = pool
	}
	return cfg, nil
}

// CertificateChecker returns the receiver certificate checker, or nil when
// no trust store is configured
func (c *Config) CertificateChecker(logger *slog.Logger) (certcheck.Checker, error) {
	ts := c.TrustStore
	if ts.Path == "" {
		return nil, nil
	}
	roots, err := certcheck.LoadPool(ts.Path)
	if err != nil {
		return nil, fmt.Errorf("truststore.path: %w", err)
	}

	var intermediates []*x509.Certificate
	if ts.IntermediatesPath != "" {
		data, err := os.ReadFile(ts.IntermediatesPath)
		if err != nil {
			return nil, fmt.Errorf("truststore.intermediatesPath: %w", err)
		}
		if intermediates, err = certcheck.ParsePEMCertificates(data); err != nil {
			return nil, fmt.Errorf("truststore.intermediatesPath: %w", err)
		}
	}

	cfg := &certcheck.Config{Roots: roots, Intermediates: intermediates, Logger: logger}
	if ts.Revocation.Enabled {
		cfg.Revocation = certcheck.NewOCSPChecker(&certcheck.RevocationConfig{
			Timeout:      ts.Revocation.Timeout,
			CRLFallback:  ts.Revocation.CRLFallback,
			CacheTimeout: ts.Revocation.CacheTimeout,
			StrictMode:   ts.Revocation.Strict,
		})
	}
	return certcheck.NewPKICheckerWithConfig(cfg), nil
}

// ClientOptions returns the builder options for the directory, transport,
// validation and certificate checks
func (c *Config) ClientOptions(logger *slog.Logger) ([]as2client.Option, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts := []as2client.Option{as2client.WithLogger(logger)}

	if dc := c.DirectoryClient(); dc != nil {
		opts = append(opts, as2client.WithDirectoryClient(dc))
	}

	senderCfg, err := c.SenderConfig(logger)
	if err != nil {
		return nil, err
	}
	opts = append(opts, as2client.WithSenderFactory(func() as2.Sender {
		cfg := *senderCfg
		return as2.NewHTTPSenderWithConfig(&cfg)
	}))

	if len(c.Validation.RuleFiles) > 0 {
		opts = append(opts, as2client.WithRegistryFactory(validation.RegistryWithFiles(c.Validation.RuleFiles...)))
	}
	if c.Validation.Advisory {
		opts = append(opts, as2client.WithValidationResultHandler(as2client.AdvisoryResultHandler{Logger: logger}))
	}

	checker, err := c.CertificateChecker(logger)
	if err != nil {
		return nil, err
	}
	if checker != nil {
		opts = append(opts, as2client.WithCertificateChecker(checker))
	}
	return opts, nil
}

// NewLogger creates the logger described by the log section
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Log.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
