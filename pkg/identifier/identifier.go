// Package identifier implements PEPPOL participant, document type and process
// identifiers.
//
// Every identifier is a (scheme, value) pair. The PEPPOL policy for use of
// identifiers defines one default scheme per identifier kind:
//
//	participant:   iso6523-actorid-upis   (e.g. 0088:5798000000001)
//	document type: busdox-docid-qns       (e.g. urn:oasis:...:Invoice-2::Invoice##...::2.1)
//	process:       cenbii-procid-ubl      (e.g. urn:fdc:peppol.eu:2017:poacc:billing:01:1.0)
//
// The URI encoded form joins scheme and value with a double colon
// ("iso6523-actorid-upis::0088:5798000000001") and is what SMP URLs and log
// output use.
package identifier

import (
	"errors"
	"fmt"
	"strings"
)

// Default schemes
const (
	// DefaultParticipantScheme is the PEPPOL participant identifier scheme
	DefaultParticipantScheme = "iso6523-actorid-upis"
	// DefaultDocumentTypeScheme is the PEPPOL document type identifier scheme
	DefaultDocumentTypeScheme = "busdox-docid-qns"
	// DefaultProcessScheme is the PEPPOL process identifier scheme
	DefaultProcessScheme = "cenbii-procid-ubl"

	// WildcardDocumentTypeScheme is the PEPPOL wildcard document type scheme
	WildcardDocumentTypeScheme = "peppol-doctype-wildcard"
)

// URISeparator separates scheme and value in the URI encoded form
const URISeparator = "::"

var (
	// ErrInvalidIdentifier is returned when an identifier cannot be parsed
	ErrInvalidIdentifier = errors.New("invalid identifier")
)

// Kind distinguishes the three identifier families
type Kind int

const (
	// Participant identifies a sender or receiver
	Participant Kind = iota
	// DocumentType identifies the business document type
	DocumentType
	// Process identifies the business process
	Process
)

// String returns the kind name
func (k Kind) String() string {
	switch k {
	case Participant:
		return "participant"
	case DocumentType:
		return "document type"
	case Process:
		return "process"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// DefaultScheme returns the PEPPOL default scheme for the kind
func (k Kind) DefaultScheme() string {
	switch k {
	case Participant:
		return DefaultParticipantScheme
	case DocumentType:
		return DefaultDocumentTypeScheme
	case Process:
		return DefaultProcessScheme
	default:
		return ""
	}
}

// ID is a (scheme, value) identifier
type ID struct {
	Scheme string `yaml:"scheme"`
	Value  string `yaml:"value"`
}

// New creates an identifier with an explicit scheme
func New(scheme, value string) ID {
	return ID{Scheme: scheme, Value: value}
}

// NewParticipant creates a participant identifier using the default scheme.
// Participant values are case insensitive and normalized to lower case.
func NewParticipant(value string) ID {
	return ID{Scheme: DefaultParticipantScheme, Value: strings.ToLower(strings.TrimSpace(value))}
}

// NewDocumentType creates a document type identifier using the default scheme
func NewDocumentType(value string) ID {
	return ID{Scheme: DefaultDocumentTypeScheme, Value: strings.TrimSpace(value)}
}

// NewProcess creates a process identifier using the default scheme
func NewProcess(value string) ID {
	return ID{Scheme: DefaultProcessScheme, Value: strings.TrimSpace(value)}
}

// IsEmpty reports whether the identifier has no value
func (id ID) IsEmpty() bool {
	return id.Value == ""
}

// HasDefaultScheme reports whether the identifier uses the default scheme of
// the given kind. The wildcard document type scheme counts as default.
func (id ID) HasDefaultScheme(kind Kind) bool {
	if kind == DocumentType && id.Scheme == WildcardDocumentTypeScheme {
		return true
	}
	return id.Scheme == kind.DefaultScheme()
}

// URIEncoded returns "scheme::value"
func (id ID) URIEncoded() string {
	return id.Scheme + URISeparator + id.Value
}

// String implements fmt.Stringer
func (id ID) String() string {
	if id.IsEmpty() {
		return ""
	}
	return id.URIEncoded()
}

// Equal compares two identifiers. Participant identifiers compare
// case-insensitively as required by the PEPPOL identifier policy.
func (id ID) Equal(other ID, kind Kind) bool {
	if id.Scheme != other.Scheme {
		return false
	}
	if kind == Participant {
		return strings.EqualFold(id.Value, other.Value)
	}
	return id.Value == other.Value
}

// Parse parses the URI encoded form "scheme::value".
func Parse(uri string) (ID, error) {
	idx := strings.Index(uri, URISeparator)
	if idx <= 0 || idx+len(URISeparator) >= len(uri) {
		return ID{}, fmt.Errorf("%w: %q", ErrInvalidIdentifier, uri)
	}
	return ID{Scheme: uri[:idx], Value: uri[idx+len(URISeparator):]}, nil
}

// ParseWithDefault parses "scheme::value" or, when no scheme is present,
// uses the default scheme of the kind. Schemes never contain a colon, so
// document type values such as "urn:...::Invoice##..." keep their "::".
func ParseWithDefault(s string, kind Kind) (ID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ID{}, fmt.Errorf("%w: empty %s identifier", ErrInvalidIdentifier, kind)
	}
	if idx := strings.Index(s, URISeparator); idx >= 0 && !strings.Contains(s[:idx], ":") {
		return Parse(s)
	}
	switch kind {
	case Participant:
		return NewParticipant(s), nil
	case DocumentType:
		return NewDocumentType(s), nil
	default:
		return NewProcess(s), nil
	}
}

// ParticipantParts splits a participant value "0088:5798000000001" into the
// ISO 6523 issuing agency code and the local identifier.
func ParticipantParts(value string) (icd, local string, err error) {
	parts := strings.SplitN(value, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: %s", ErrInvalidIdentifier, value)
	}
	return parts[0], parts[1], nil
}
