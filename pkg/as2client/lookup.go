package as2client

import (
	"context"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"

	"github.com/sirosfoundation/go-peppol-as2/pkg/as2"
	"github.com/sirosfoundation/go-peppol-as2/pkg/discovery"
	"github.com/sirosfoundation/go-peppol-as2/pkg/identifier"
)

// DirectoryClient finds the AS2 endpoint of a receiver. discovery.Client
// implements it with SML and SMP lookups.
type DirectoryClient interface {
	Lookup(ctx context.Context, receiver, documentType identifier.ID) (*discovery.ServiceMetadata, error)
	SelectEndpoint(metadata *discovery.ServiceMetadata, process identifier.ID, transportProfile string) *discovery.Endpoint
}

// LookupResult is what the directory returned for a receiver
type LookupResult struct {
	URL         string
	Certificate []byte
	AS2ID       string
}

// transportProfile returns the SMP transport profile of the AS2 version
func transportProfile(v as2.ProfileVersion) string {
	if v == as2.ProfileV1 {
		return discovery.TransportAS2V1
	}
	return discovery.TransportAS2V2
}

// needsLookup reports whether any directory derived field is unset
func needsLookup(p *Params) bool {
	return p.ReceiverURL == "" || !p.hasReceiverCertificate() || p.ReceiverAS2ID == ""
}

// lookupReceiver fills unset receiver URL, certificate and AS2 ID from the
// directory. Lookup problems are warnings; a malformed certificate is an
// error.
func (b *Builder) lookupReceiver(ctx context.Context, p *Params, d *diagnostics) *LookupResult {
	if b.directory == nil || !needsLookup(p) {
		return nil
	}

	var missing []string
	if p.ReceiverID.IsEmpty() {
		missing = append(missing, "receiver participant ID")
	}
	if p.DocumentTypeID.IsEmpty() {
		missing = append(missing, "document type ID")
	}
	if p.ProcessID.IsEmpty() {
		missing = append(missing, "process ID")
	}
	if len(missing) > 0 {
		d.warn("cannot look up the receiver in the directory: missing %s", strings.Join(missing, ", "))
		return nil
	}

	b.logger.Debug("looking up receiver",
		"receiver", p.ReceiverID.String(),
		"document_type", p.DocumentTypeID.String(),
		"process", p.ProcessID.String())

	metadata, err := b.directory.Lookup(ctx, p.ReceiverID, p.DocumentTypeID)
	switch {
	case errors.Is(err, discovery.ErrParticipantNotFound):
		d.warn("receiver %s is not registered for document type %s in the directory", p.ReceiverID, p.DocumentTypeID)
		return nil
	case err != nil:
		d.warn("directory lookup for receiver %s failed: %v", p.ReceiverID, err)
		return nil
	}

	profile := transportProfile(p.Version)
	endpoint := b.directory.SelectEndpoint(metadata, p.ProcessID, profile)
	if endpoint == nil {
		d.warn("receiver %s has no %s endpoint for process %s", p.ReceiverID, profile, p.ProcessID)
		return nil
	}

	result := &LookupResult{URL: endpoint.URL, Certificate: endpoint.Certificate}
	if p.ReceiverURL == "" {
		p.ReceiverURL = endpoint.URL
	}
	if !p.hasReceiverCertificate() {
		cert, err := parseCertificate(endpoint.Certificate)
		if err != nil {
			d.error(fmt.Errorf("%w: %w", ErrMalformedCertificate, err),
				"the certificate published for receiver %s could not be parsed", p.ReceiverID)
			return result
		}
		p.ReceiverCertificate = cert
	}
	if cert := p.ReceiverCertificate; cert != nil {
		result.AS2ID = cert.Subject.CommonName
		if p.ReceiverAS2ID == "" {
			p.ReceiverAS2ID = result.AS2ID
		}
	}
	b.logger.Info("receiver found in directory", "receiver", p.ReceiverID.String(), "url", p.ReceiverURL, "as2_id", p.ReceiverAS2ID)
	return result
}

// parseCertificate accepts DER or PEM
func parseCertificate(data []byte) (*x509.Certificate, error) {
	if len(data) == 0 {
		return nil, errors.New("empty certificate")
	}
	if block, _ := pem.Decode(data); block != nil {
		data = block.Bytes
	}
	return x509.ParseCertificate(data)
}
