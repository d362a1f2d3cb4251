package as2client

import (
	"crypto/x509"
	"time"

	"github.com/beevik/etree"

	"github.com/sirosfoundation/go-peppol-as2/internal/keystore"
	"github.com/sirosfoundation/go-peppol-as2/pkg/as2"
	"github.com/sirosfoundation/go-peppol-as2/pkg/identifier"
	"github.com/sirosfoundation/go-peppol-as2/pkg/resource"
)

// Keystore types
const (
	KeyStorePEM    = keystore.TypePEM
	KeyStorePKCS12 = keystore.TypePKCS12
	KeyStorePKCS11 = keystore.TypePKCS11
)

// KeyStore locates the sender's credentials. Data takes precedence over
// Path.
type KeyStore struct {
	Type     keystore.Type
	Path     string
	Data     []byte
	Password string
	PKCS11   keystore.PKCS11Config
}

func (k KeyStore) config() keystore.Config {
	return keystore.Config{
		Type:     k.Type,
		Path:     k.Path,
		Data:     k.Data,
		Password: k.Password,
		PKCS11:   k.PKCS11,
	}
}

// needsPassword reports whether the keystore type is protected by a
// password or PIN
func (k KeyStore) needsPassword() bool {
	return k.Type == keystore.TypePKCS12 || k.Type == keystore.TypePKCS11
}

// Params is the complete configuration of one send
type Params struct {
	// PEPPOL identifiers placed in the SBDH
	SenderID       identifier.ID
	ReceiverID     identifier.ID
	DocumentTypeID identifier.ID
	ProcessID      identifier.ID

	KeyStore            KeyStore
	SaveKeyStoreChanges bool

	Subject        string
	SenderAS2ID    string
	SenderEmail    string
	SenderKeyAlias string

	ReceiverAS2ID       string
	ReceiverKeyAlias    string
	ReceiverURL         string
	ReceiverCertificate *x509.Certificate
	// ReceiverCertificateBytes is a DER or PEM certificate parsed during
	// verification when ReceiverCertificate is nil
	ReceiverCertificateBytes []byte

	Version                 as2.ProfileVersion
	SigningAlgorithm        as2.SigningAlgorithm
	MessageIDFormat         string
	ConnectTimeout          time.Duration
	ReadTimeout             time.Duration
	ContentTransferEncoding string

	// Exactly one of Document and DocumentElement must be set
	Document        resource.Resource
	DocumentElement *etree.Element

	// ValidationRuleSetID selects the rule set the document is validated
	// against. Empty skips validation.
	ValidationRuleSetID string
}

// NewParams returns parameters with the PEPPOL AS2 v2 defaults
func NewParams() Params {
	return Params{
		Subject:                 as2.DefaultSubject,
		Version:                 as2.ProfileV2,
		SigningAlgorithm:        as2.ProfileV2.SigningAlgorithm(),
		MessageIDFormat:         as2.DefaultMessageIDFormat,
		ConnectTimeout:          as2.DefaultConnectTimeout,
		ReadTimeout:             as2.DefaultReadTimeout,
		ContentTransferEncoding: as2.DefaultContentTransferEncoding,
	}
}

// SetVersion selects a PEPPOL AS2 profile version and its signing algorithm
func (p *Params) SetVersion(v as2.ProfileVersion) {
	p.Version = v
	p.SigningAlgorithm = v.SigningAlgorithm()
}

// ApplyDefaults derives unset values from set ones: the receiver key alias
// defaults to the receiver AS2 ID. Applying it again changes nothing.
func (p *Params) ApplyDefaults() {
	if p.ReceiverKeyAlias == "" {
		p.ReceiverKeyAlias = p.ReceiverAS2ID
	}
}

// hasReceiverCertificate reports whether a certificate was supplied in any
// form
func (p *Params) hasReceiverCertificate() bool {
	return p.ReceiverCertificate != nil || len(p.ReceiverCertificateBytes) > 0
}

// settings builds the transport settings
func (p *Params) settings() *as2.Settings {
	return &as2.Settings{
		KeyStore:                p.KeyStore.config(),
		SaveKeyStoreChanges:     p.SaveKeyStoreChanges,
		PartnershipName:         as2.PartnershipName(p.SenderAS2ID, p.ReceiverAS2ID),
		SenderAS2ID:             p.SenderAS2ID,
		SenderEmail:             p.SenderEmail,
		SenderKeyAlias:          p.SenderKeyAlias,
		ReceiverAS2ID:           p.ReceiverAS2ID,
		ReceiverKeyAlias:        p.ReceiverKeyAlias,
		ReceiverURL:             p.ReceiverURL,
		ReceiverCertificate:     p.ReceiverCertificate,
		SigningAlgorithm:        p.SigningAlgorithm,
		DispositionOptions:      as2.SignedReceiptOptions(p.SigningAlgorithm),
		MessageIDFormat:         p.MessageIDFormat,
		ConnectTimeout:          p.ConnectTimeout,
		ReadTimeout:             p.ReadTimeout,
		ContentTransferEncoding: p.ContentTransferEncoding,
	}
}
