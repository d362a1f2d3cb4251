package as2client

import (
	"context"
	"fmt"
	"net/mail"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/sirosfoundation/go-peppol-as2/pkg/as2"
	"github.com/sirosfoundation/go-peppol-as2/pkg/identifier"
)

// AS2 IDs are PEPPOL AP certificate CNs: "APP_" followed by digits, or the
// "PXX000000" form of the current PKI
var (
	as2IDPattern = regexp.MustCompile(`^P[A-Z]{2}[0-9]{6}$`)
)

const legacyAS2IDPrefix = "APP_"

// diagnostics forwards verification messages to the MessageHandler and keeps
// the error messages for the BuilderError. Once the handler aborts, later
// messages are dropped. The abort decision is taken from the handler's
// counts, relative to where they stood when the pass started, so a handler
// reused across sends only judges the current pass.
type diagnostics struct {
	handler     MessageHandler
	errorBase   int
	warningBase int
	errors      []string
	abort       error
}

func newDiagnostics(h MessageHandler) *diagnostics {
	return &diagnostics{handler: h, errorBase: h.ErrorCount(), warningBase: h.WarningCount()}
}

func (d *diagnostics) warn(format string, args ...any) {
	if d.abort != nil {
		return
	}
	d.handler.Warn(fmt.Sprintf(format, args...))
}

func (d *diagnostics) error(cause error, format string, args ...any) {
	if d.abort != nil {
		return
	}
	msg := fmt.Sprintf(format, args...)
	d.errors = append(d.errors, msg)
	d.abort = d.handler.Error(msg, cause)
}

func (d *diagnostics) errorCount() int   { return d.handler.ErrorCount() - d.errorBase }
func (d *diagnostics) warningCount() int { return d.handler.WarningCount() - d.warningBase }

// result returns the abort error, or a BuilderError when the handler counted
// errors during this pass
func (d *diagnostics) result() error {
	if d.abort != nil {
		return d.abort
	}
	if d.errorCount() > 0 {
		return &BuilderError{Messages: d.errors}
	}
	return nil
}

func isConventionalAS2ID(id string) bool {
	return strings.HasPrefix(id, legacyAS2IDPrefix) || as2IDPattern.MatchString(id)
}

// verify checks every parameter in a fixed order and reports each problem
func (b *Builder) verify(ctx context.Context, p *Params, d *diagnostics) {
	b.verifyKeyStore(p, d)

	if strings.TrimSpace(p.Subject) == "" {
		d.error(nil, "the AS2 message subject is missing")
	}

	b.verifySender(p, d)
	b.verifyReceiver(ctx, p, d)
	b.verifyPayload(p, d)

	verifyIdentifier(d, "sender participant ID", p.SenderID, identifier.Participant)
	verifyIdentifier(d, "receiver participant ID", p.ReceiverID, identifier.Participant)
	verifyIdentifier(d, "document type ID", p.DocumentTypeID, identifier.DocumentType)
	verifyIdentifier(d, "process ID", p.ProcessID, identifier.Process)

	if p.ValidationRuleSetID == "" {
		d.warn("no validation rule set is configured, the business document will not be validated")
	}
}

func (b *Builder) verifyKeyStore(p *Params, d *diagnostics) {
	ks := p.KeyStore
	if ks.Type == "" {
		d.error(nil, "the AS2 keystore type is missing")
	}

	switch {
	case ks.Type == KeyStorePKCS11:
		// keys live on the token
	case ks.Data != nil:
		if p.SaveKeyStoreChanges {
			d.warn("the AS2 keystore is held in memory, changes cannot be saved")
		}
	case ks.Path == "":
		d.error(nil, "no AS2 keystore is defined")
	default:
		info, err := os.Stat(ks.Path)
		switch {
		case err != nil:
			d.error(err, "the AS2 keystore %q does not exist", ks.Path)
		case info.IsDir():
			d.error(nil, "the AS2 keystore %q is not a file but a directory", ks.Path)
		case p.SaveKeyStoreChanges:
			f, err := os.OpenFile(ks.Path, os.O_WRONLY, 0)
			if err != nil {
				d.error(err, "the AS2 keystore %q is not writable but changes should be saved", ks.Path)
			} else {
				f.Close()
			}
		}
	}

	if ks.needsPassword() && ks.Password == "" {
		d.error(nil, "no AS2 keystore password is provided")
	}
}

func (b *Builder) verifySender(p *Params, d *diagnostics) {
	switch {
	case p.SenderAS2ID == "":
		d.error(nil, "the AS2 sender ID is missing")
	case !isConventionalAS2ID(p.SenderAS2ID):
		d.warn("the AS2 sender ID %q should start with %q or match the PEPPOL AP certificate CN format", p.SenderAS2ID, legacyAS2IDPrefix)
	}

	switch {
	case p.SenderEmail == "":
		d.error(nil, "the AS2 sender email address is missing")
	default:
		if _, err := mail.ParseAddress(p.SenderEmail); err != nil {
			d.warn("the AS2 sender email address %q seems to be invalid", p.SenderEmail)
		}
	}

	verifyKeyAlias(d, "sender", p.SenderKeyAlias, p.SenderAS2ID)
}

func (b *Builder) verifyReceiver(ctx context.Context, p *Params, d *diagnostics) {
	switch {
	case p.ReceiverAS2ID == "":
		d.error(nil, "the AS2 receiver ID is missing")
	case !isConventionalAS2ID(p.ReceiverAS2ID):
		d.warn("the AS2 receiver ID %q should start with %q or match the PEPPOL AP certificate CN format", p.ReceiverAS2ID, legacyAS2IDPrefix)
	}

	verifyKeyAlias(d, "receiver", p.ReceiverKeyAlias, p.ReceiverAS2ID)

	if p.ReceiverURL == "" {
		d.error(nil, "the AS2 receiver URL is missing")
	} else if u, err := url.Parse(p.ReceiverURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		d.error(err, "the AS2 receiver URL %q is not a valid http(s) URL", p.ReceiverURL)
	}

	switch {
	case p.ReceiverCertificate != nil:
	case len(p.ReceiverCertificateBytes) > 0:
		cert, err := parseCertificate(p.ReceiverCertificateBytes)
		if err != nil {
			d.error(fmt.Errorf("%w: %w", ErrMalformedCertificate, err), "the receiver certificate could not be parsed")
		} else {
			p.ReceiverCertificate = cert
		}
	default:
		d.error(nil, "the receiver X.509 certificate is missing, usually it is taken from the SMP")
	}
	if p.ReceiverCertificate != nil && b.certChecker != nil {
		at := b.now()
		result := b.certChecker.Check(ctx, p.ReceiverCertificate, at)
		b.logger.Debug("receiver certificate checked", "subject", p.ReceiverCertificate.Subject.String(), "result", result.String())
		if err := b.certResultHandler.OnCertificateCheckResult(p.ReceiverCertificate, at, result); err != nil {
			d.error(err, "the receiver certificate was rejected: %v", err)
		}
	}

	if p.SigningAlgorithm == "" {
		d.error(nil, "the signing algorithm for the AS2 message is missing")
	} else if alg, err := as2.ParseSigningAlgorithm(string(p.SigningAlgorithm)); err != nil {
		d.error(err, "the signing algorithm %q is not supported", p.SigningAlgorithm)
	} else {
		// "sha256" and "sha-1" become the names used for micalg
		p.SigningAlgorithm = alg
	}

	if strings.TrimSpace(p.MessageIDFormat) == "" {
		d.error(nil, "the AS2 message ID format is missing")
	} else if err := as2.ValidateMessageIDFormat(p.MessageIDFormat); err != nil {
		d.error(err, "the AS2 message ID format %q is invalid", p.MessageIDFormat)
	}

	if p.ConnectTimeout < 0 {
		d.error(nil, "the connect timeout must not be negative")
	}
	if p.ReadTimeout < 0 {
		d.error(nil, "the read timeout must not be negative")
	}
}

func verifyKeyAlias(d *diagnostics, role, alias, as2ID string) {
	switch {
	case alias == "":
		d.error(nil, "the AS2 %s key alias is missing", role)
	case !isConventionalAS2ID(alias):
		d.warn("the AS2 %s key alias %q should start with %q for dynamic AS2 partnerships", role, alias, legacyAS2IDPrefix)
	case as2ID != "" && alias != as2ID:
		d.warn("the AS2 %s key alias %q should match the AS2 %s ID %q", role, alias, role, as2ID)
	}
}

func (b *Builder) verifyPayload(p *Params, d *diagnostics) {
	switch {
	case p.Document == nil && p.DocumentElement == nil:
		d.error(nil, "the XML business document to be sent is missing")
	case p.Document != nil && p.DocumentElement != nil:
		d.error(nil, "both a business document resource and a parsed document element are set, only one is allowed")
	case p.Document != nil:
		if !p.Document.Exists() {
			d.error(nil, "the XML business document %q does not exist", p.Document.Name())
		}
	default:
		if p.DocumentElement.Tag == "" {
			d.error(nil, "the parsed business document element has no content")
		}
	}
}

func verifyIdentifier(d *diagnostics, name string, id identifier.ID, kind identifier.Kind) {
	switch {
	case id.IsEmpty():
		d.error(nil, "the PEPPOL %s is missing", name)
	case id.Scheme == "":
		d.error(nil, "the PEPPOL %s %q has no scheme", name, id.Value)
	case !id.HasDefaultScheme(kind):
		d.warn("the PEPPOL %s %q is using a non-standard scheme", name, id.URIEncoded())
	}
}
