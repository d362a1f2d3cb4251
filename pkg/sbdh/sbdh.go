// Package sbdh implements the Standard Business Document Header (SBDH)
// envelope used by PEPPOL to carry routing metadata next to a business
// document.
//
// The envelope carries:
//   - the sender and receiver participant identifiers
//   - the document type and process identifiers as business scopes
//   - a document identification derived from the payload root element
//
// Reference: UN/CEFACT Standard Business Document Header 1.3 and the
// PEPPOL Business Message Envelope specification.
package sbdh

import (
	"errors"
	"fmt"
	"time"

	"github.com/beevik/etree"
	"github.com/google/uuid"

	"github.com/sirosfoundation/go-peppol-as2/pkg/identifier"
)

// Namespace constants for SBDH
const (
	// Namespace is the SBDH namespace
	Namespace = "http://www.unece.org/cefact/namespaces/StandardBusinessDocumentHeader"
	// HeaderVersion is the only supported header version
	HeaderVersion = "1.0"
	// DefaultTypeVersion is used when the payload carries no UBLVersionID
	DefaultTypeVersion = "2.1"

	// ScopeDocumentID is the business scope type holding the document type identifier
	ScopeDocumentID = "DOCUMENTID"
	// ScopeProcessID is the business scope type holding the process identifier
	ScopeProcessID = "PROCESSID"

	creationTimeLayout = "2006-01-02T15:04:05.000Z07:00"
)

var (
	// ErrSerialization is returned when an envelope cannot be written
	ErrSerialization = errors.New("failed to serialize SBDH envelope")
	// ErrInvalidEnvelope is returned when a document is not a usable SBD
	ErrInvalidEnvelope = errors.New("invalid SBDH envelope")
)

// Envelope is a Standard Business Document: header metadata plus the
// business payload.
type Envelope struct {
	Sender       identifier.ID
	Receiver     identifier.ID
	DocumentType identifier.ID
	Process      identifier.ID

	// Standard is the namespace URI of the payload root element
	Standard string
	// TypeVersion is the version of the payload standard
	TypeVersion string
	// Type is the local name of the payload root element
	Type string
	// InstanceIdentifier uniquely identifies this envelope
	InstanceIdentifier string
	// CreationTime is when the envelope was created
	CreationTime time.Time

	// Payload is the root element of the business document
	Payload *etree.Element
}

// Builder provides a fluent interface for creating SBDH envelopes
type Builder struct {
	env *Envelope
	err error
}

// NewBuilder creates a new SBDH builder
func NewBuilder() *Builder {
	return &Builder{env: &Envelope{}}
}

// WithSender sets the sender participant
func (b *Builder) WithSender(id identifier.ID) *Builder {
	if b.err != nil {
		return b
	}
	b.env.Sender = id
	return b
}

// WithReceiver sets the receiver participant
func (b *Builder) WithReceiver(id identifier.ID) *Builder {
	if b.err != nil {
		return b
	}
	b.env.Receiver = id
	return b
}

// WithDocumentType sets the document type identifier
func (b *Builder) WithDocumentType(id identifier.ID) *Builder {
	if b.err != nil {
		return b
	}
	b.env.DocumentType = id
	return b
}

// WithProcess sets the process identifier
func (b *Builder) WithProcess(id identifier.ID) *Builder {
	if b.err != nil {
		return b
	}
	b.env.Process = id
	return b
}

// WithInstanceIdentifier overrides the generated instance identifier
func (b *Builder) WithInstanceIdentifier(id string) *Builder {
	if b.err != nil {
		return b
	}
	b.env.InstanceIdentifier = id
	return b
}

// WithCreationTime sets the creation timestamp
func (b *Builder) WithCreationTime(t time.Time) *Builder {
	if b.err != nil {
		return b
	}
	b.env.CreationTime = t
	return b
}

// WithPayload sets the business document root element and derives the
// document identification from it.
func (b *Builder) WithPayload(root *etree.Element) *Builder {
	if b.err != nil {
		return b
	}
	if root == nil {
		b.err = fmt.Errorf("%w: payload element is nil", ErrInvalidEnvelope)
		return b
	}
	b.env.Payload = root
	b.env.Standard = root.NamespaceURI()
	b.env.Type = root.Tag
	b.env.TypeVersion = DefaultTypeVersion
	if v := root.SelectElement("UBLVersionID"); v != nil && v.Text() != "" {
		b.env.TypeVersion = v.Text()
	}
	return b
}

// WithDocumentIdentification overrides the values derived from the payload
func (b *Builder) WithDocumentIdentification(standard, typeVersion, typ string) *Builder {
	if b.err != nil {
		return b
	}
	b.env.Standard = standard
	b.env.TypeVersion = typeVersion
	b.env.Type = typ
	return b
}

// Build creates the envelope
func (b *Builder) Build() (*Envelope, error) {
	if b.err != nil {
		return nil, b.err
	}

	switch {
	case b.env.Sender.IsEmpty():
		return nil, fmt.Errorf("%w: sender is required", ErrInvalidEnvelope)
	case b.env.Receiver.IsEmpty():
		return nil, fmt.Errorf("%w: receiver is required", ErrInvalidEnvelope)
	case b.env.DocumentType.IsEmpty():
		return nil, fmt.Errorf("%w: document type is required", ErrInvalidEnvelope)
	case b.env.Process.IsEmpty():
		return nil, fmt.Errorf("%w: process is required", ErrInvalidEnvelope)
	case b.env.Payload == nil:
		return nil, fmt.Errorf("%w: payload is required", ErrInvalidEnvelope)
	}

	if b.env.InstanceIdentifier == "" {
		b.env.InstanceIdentifier = uuid.New().String()
	}
	if b.env.CreationTime.IsZero() {
		b.env.CreationTime = time.Now().UTC()
	}

	return b.env, nil
}
