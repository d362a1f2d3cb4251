package as2

import (
	"crypto/x509"
	"time"

	"github.com/sirosfoundation/go-peppol-as2/internal/keystore"
)

// Header values sent with every message
const (
	Version                        = "1.1"
	DefaultSubject                 = "OpenPEPPOL AS2 message"
	DefaultContentType             = "application/xml"
	DefaultContentTransferEncoding = "binary"
	DefaultConnectTimeout          = 5 * time.Second
	DefaultReadTimeout             = 60 * time.Second
)

// Settings is everything the sender needs to transmit one message
type Settings struct {
	// KeyStore holds the sender's key and receives the receiver certificate
	// when SaveKeyStoreChanges is set
	KeyStore            keystore.Config
	SaveKeyStoreChanges bool

	// PartnershipName is "<sender AS2 ID>-<receiver AS2 ID>"
	PartnershipName string

	SenderAS2ID    string
	SenderEmail    string
	SenderKeyAlias string

	ReceiverAS2ID       string
	ReceiverKeyAlias    string
	ReceiverURL         string
	ReceiverCertificate *x509.Certificate

	SigningAlgorithm   SigningAlgorithm
	DispositionOptions DispositionOptions
	MessageIDFormat    string

	ConnectTimeout time.Duration
	ReadTimeout    time.Duration

	ContentTransferEncoding string
}

// NewSettings returns settings for a PEPPOL AS2 profile version with the
// partnership and receipt options derived from the given IDs
func NewSettings(version ProfileVersion, senderAS2ID, receiverAS2ID string) *Settings {
	alg := version.SigningAlgorithm()
	return &Settings{
		PartnershipName:         PartnershipName(senderAS2ID, receiverAS2ID),
		SenderAS2ID:             senderAS2ID,
		ReceiverAS2ID:           receiverAS2ID,
		SigningAlgorithm:        alg,
		DispositionOptions:      SignedReceiptOptions(alg),
		MessageIDFormat:         DefaultMessageIDFormat,
		ConnectTimeout:          DefaultConnectTimeout,
		ReadTimeout:             DefaultReadTimeout,
		ContentTransferEncoding: DefaultContentTransferEncoding,
	}
}

// PartnershipName joins the two AS2 IDs
func PartnershipName(senderAS2ID, receiverAS2ID string) string {
	return senderAS2ID + "-" + receiverAS2ID
}

// Request is the payload of one message
type Request struct {
	Subject     string
	Data        []byte
	ContentType string
}
