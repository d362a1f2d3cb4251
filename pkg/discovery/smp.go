package discovery

import (
	"context"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirosfoundation/go-peppol-as2/pkg/identifier"
)

// SMP errors
var (
	// ErrParticipantNotFound is returned when the participant is not registered
	ErrParticipantNotFound = errors.New("participant not found in SMP")
	// ErrDocumentTypeNotFound is returned when the document type is not found
	ErrDocumentTypeNotFound = errors.New("document type not found")
	// ErrProcessNotFound is returned when the process is not found
	ErrProcessNotFound = errors.New("process not found")
	// ErrTooManyRedirects is returned when SMP redirects form a loop
	ErrTooManyRedirects = errors.New("too many SMP redirects")
)

const maxRedirects = 1

// SMPClientConfig contains configuration for the SMP client
type SMPClientConfig struct {
	// HTTPClient is the HTTP client to use (optional)
	// If nil, a default client with 30s timeout is used
	HTTPClient *http.Client

	// UserAgent is the User-Agent header to send
	UserAgent string

	// AcceptHeader specifies the Accept header
	// Defaults to "application/xml"
	AcceptHeader string
}

// SMPClient queries an OASIS SMP 1.0 / PEPPOL SMP
type SMPClient struct {
	config     SMPClientConfig
	httpClient *http.Client
}

// NewSMPClient creates a new SMP client
func NewSMPClient() *SMPClient {
	return NewSMPClientWithConfig(SMPClientConfig{})
}

// NewSMPClientWithConfig creates a new SMP client with custom configuration
func NewSMPClientWithConfig(config SMPClientConfig) *SMPClient {
	client := config.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if config.UserAgent == "" {
		config.UserAgent = "go-peppol-as2-smp-client/1.0"
	}
	if config.AcceptHeader == "" {
		config.AcceptHeader = "application/xml"
	}
	return &SMPClient{
		config:     config,
		httpClient: client,
	}
}

// ServiceGroup represents an SMP ServiceGroup
type ServiceGroup struct {
	Participant       identifier.ID
	ServiceReferences []string
}

// ServiceMetadata represents SMP ServiceMetadata for one participant and
// document type
type ServiceMetadata struct {
	Participant  identifier.ID
	DocumentType identifier.ID
	Processes    []ProcessMetadata
}

// ProcessMetadata represents a process within ServiceMetadata
type ProcessMetadata struct {
	Process   identifier.ID
	Endpoints []Endpoint
}

// Endpoint represents a service endpoint
type Endpoint struct {
	// TransportProfile is the transport protocol (e.g. "busdox-transport-as2-ver2p0")
	TransportProfile string
	// URL is the address of the access point
	URL string
	// Certificate is the DER encoded endpoint certificate. If the SMP
	// response carried something that is not valid base64 the raw text is
	// kept so that certificate parsing reports the problem.
	Certificate []byte
	// ServiceActivationDate is when the service becomes active
	ServiceActivationDate *time.Time
	// ServiceExpirationDate is when the service expires
	ServiceExpirationDate *time.Time
	// TechnicalContactURL is the URL for technical contact
	TechnicalContactURL string
	// Description is a human-readable description
	Description string
	// RequireBusinessLevelSignature mirrors the SMP flag
	RequireBusinessLevelSignature bool
}

// GetServiceGroup retrieves the ServiceGroup for a participant from an SMP.
func (c *SMPClient) GetServiceGroup(ctx context.Context, smpURL string, participant identifier.ID) (*ServiceGroup, error) {
	reqURL := c.formatServiceGroupURL(smpURL, participant)

	body, err := c.doRequest(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	return c.parseServiceGroup(body, participant)
}

// GetServiceMetadata retrieves ServiceMetadata for a participant and document
// type. A single SMP redirect is followed.
func (c *SMPClient) GetServiceMetadata(ctx context.Context, smpURL string, participant, documentType identifier.ID) (*ServiceMetadata, error) {
	reqURL := c.formatServiceMetadataURL(smpURL, participant, documentType)

	for redirects := 0; ; redirects++ {
		body, err := c.doRequest(ctx, reqURL)
		if err != nil {
			return nil, err
		}

		metadata, redirect, err := c.parseServiceMetadata(body)
		if err != nil {
			return nil, err
		}
		if redirect == "" {
			return metadata, nil
		}
		if redirects >= maxRedirects {
			return nil, fmt.Errorf("%w: %s", ErrTooManyRedirects, redirect)
		}
		reqURL = redirect
	}
}

// GetEndpoint retrieves the endpoint for a participant, document type, process
// and transport profile.
func (c *SMPClient) GetEndpoint(ctx context.Context, smpURL string, participant, documentType, process identifier.ID, transportProfile string) (*Endpoint, error) {
	metadata, err := c.GetServiceMetadata(ctx, smpURL, participant, documentType)
	if err != nil {
		return nil, err
	}

	endpoint := SelectEndpoint(metadata, process, transportProfile)
	if endpoint == nil {
		return nil, fmt.Errorf("%w: %s (%s)", ErrProcessNotFound, process, transportProfile)
	}
	return endpoint, nil
}

// escapeIdentifier percent-encodes an identifier URI for use as one path
// segment. Colons are encoded as well, as PEPPOL SMPs expect.
func escapeIdentifier(id identifier.ID) string {
	return strings.ReplaceAll(url.PathEscape(id.URIEncoded()), ":", "%3A")
}

// formatServiceGroupURL constructs the URL for ServiceGroup lookup:
// <smpURL>/<participant URI, percent-encoded>
func (c *SMPClient) formatServiceGroupURL(smpURL string, participant identifier.ID) string {
	base := strings.TrimRight(smpURL, "/")
	return fmt.Sprintf("%s/%s", base, escapeIdentifier(participant))
}

// formatServiceMetadataURL constructs the URL for ServiceMetadata lookup:
// <smpURL>/<participant URI>/services/<document type URI>
func (c *SMPClient) formatServiceMetadataURL(smpURL string, participant, documentType identifier.ID) string {
	base := strings.TrimRight(smpURL, "/")
	return fmt.Sprintf("%s/%s/services/%s", base,
		escapeIdentifier(participant),
		escapeIdentifier(documentType))
}

// doRequest performs an HTTP request and returns the response body.
func (c *SMPClient) doRequest(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", c.config.AcceptHeader)
	req.Header.Set("User-Agent", c.config.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("SMP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrParticipantNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("SMP returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return body, nil
}

// SMP 1.0 XML structures
type smpIdentifier struct {
	Value  string `xml:",chardata"`
	Scheme string `xml:"scheme,attr"`
}

func (i smpIdentifier) id() identifier.ID {
	return identifier.New(strings.TrimSpace(i.Scheme), strings.TrimSpace(i.Value))
}

type smp10ServiceGroup struct {
	XMLName                            xml.Name      `xml:"ServiceGroup"`
	ParticipantIdentifier              smpIdentifier `xml:"ParticipantIdentifier"`
	ServiceMetadataReferenceCollection struct {
		ServiceMetadataReferences []struct {
			Href string `xml:"href,attr"`
		} `xml:"ServiceMetadataReference"`
	} `xml:"ServiceMetadataReferenceCollection"`
}

type smp10Endpoint struct {
	TransportProfile        string `xml:"transportProfile,attr"`
	EndpointURI             string `xml:"EndpointURI"`
	EndpointReferenceAddr   string `xml:"EndpointReference>Address"`
	Certificate             string `xml:"Certificate"`
	ServiceActivationDate   string `xml:"ServiceActivationDate"`
	ServiceExpirationDate   string `xml:"ServiceExpirationDate"`
	TechnicalContactUrl     string `xml:"TechnicalContactUrl"`
	ServiceDescription      string `xml:"ServiceDescription"`
	RequireBusinessLevelSig string `xml:"RequireBusinessLevelSignature"`
}

type smp10ServiceMetadata struct {
	ServiceInformation *struct {
		ParticipantIdentifier smpIdentifier `xml:"ParticipantIdentifier"`
		DocumentIdentifier    smpIdentifier `xml:"DocumentIdentifier"`
		ProcessList           struct {
			Processes []struct {
				ProcessIdentifier   smpIdentifier `xml:"ProcessIdentifier"`
				ServiceEndpointList struct {
					Endpoints []smp10Endpoint `xml:"Endpoint"`
				} `xml:"ServiceEndpointList"`
			} `xml:"Process"`
		} `xml:"ProcessList"`
	} `xml:"ServiceInformation"`
	Redirect *struct {
		Href string `xml:"href,attr"`
	} `xml:"Redirect"`
}

// parseServiceGroup parses an SMP ServiceGroup response.
func (c *SMPClient) parseServiceGroup(data []byte, participant identifier.ID) (*ServiceGroup, error) {
	var sg smp10ServiceGroup
	if err := xml.Unmarshal(data, &sg); err != nil {
		return nil, fmt.Errorf("failed to parse ServiceGroup: %w", err)
	}

	result := &ServiceGroup{
		Participant: participant,
	}

	for _, ref := range sg.ServiceMetadataReferenceCollection.ServiceMetadataReferences {
		result.ServiceReferences = append(result.ServiceReferences, ref.Href)
	}

	return result, nil
}

// parseServiceMetadata parses a SignedServiceMetadata or ServiceMetadata
// response. When the SMP answers with a redirect, the redirect URL is returned
// instead of metadata.
func (c *SMPClient) parseServiceMetadata(data []byte) (*ServiceMetadata, string, error) {
	var root struct {
		XMLName         xml.Name
		ServiceMetadata smp10ServiceMetadata `xml:"ServiceMetadata"`
		smp10ServiceMetadata
	}
	if err := xml.Unmarshal(data, &root); err != nil {
		return nil, "", fmt.Errorf("failed to parse ServiceMetadata: %w", err)
	}

	sm := root.smp10ServiceMetadata
	if root.XMLName.Local == "SignedServiceMetadata" {
		sm = root.ServiceMetadata
	}

	if sm.Redirect != nil && sm.Redirect.Href != "" {
		return nil, sm.Redirect.Href, nil
	}
	if sm.ServiceInformation == nil {
		return nil, "", fmt.Errorf("failed to parse ServiceMetadata: no ServiceInformation in %s", root.XMLName.Local)
	}

	si := sm.ServiceInformation
	result := &ServiceMetadata{
		Participant:  si.ParticipantIdentifier.id(),
		DocumentType: si.DocumentIdentifier.id(),
	}

	for _, p := range si.ProcessList.Processes {
		pm := ProcessMetadata{
			Process: p.ProcessIdentifier.id(),
		}
		for _, ep := range p.ServiceEndpointList.Endpoints {
			pm.Endpoints = append(pm.Endpoints, convertEndpoint(ep))
		}
		result.Processes = append(result.Processes, pm)
	}

	return result, "", nil
}

func convertEndpoint(ep smp10Endpoint) Endpoint {
	address := strings.TrimSpace(ep.EndpointURI)
	if address == "" {
		address = strings.TrimSpace(ep.EndpointReferenceAddr)
	}
	endpoint := Endpoint{
		TransportProfile:              strings.TrimSpace(ep.TransportProfile),
		URL:                           address,
		Certificate:                   decodeCertificate(ep.Certificate),
		TechnicalContactURL:           strings.TrimSpace(ep.TechnicalContactUrl),
		Description:                   strings.TrimSpace(ep.ServiceDescription),
		RequireBusinessLevelSignature: strings.TrimSpace(ep.RequireBusinessLevelSig) == "true",
	}
	if t, ok := parseSMPTime(ep.ServiceActivationDate); ok {
		endpoint.ServiceActivationDate = &t
	}
	if t, ok := parseSMPTime(ep.ServiceExpirationDate); ok {
		endpoint.ServiceExpirationDate = &t
	}
	return endpoint
}

// decodeCertificate decodes the base64 certificate text of an SMP endpoint
func decodeCertificate(text string) []byte {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\r', '\n':
			return -1
		}
		return r
	}, text)
	if cleaned == "" {
		return nil
	}
	der, err := base64.StdEncoding.DecodeString(cleaned)
	if err != nil {
		return []byte(text)
	}
	return der
}

func parseSMPTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Transport profile constants
const (
	// TransportAS2V1 is the deprecated PEPPOL AS2 (SHA-1) transport profile
	TransportAS2V1 = "busdox-transport-as2-ver1p0"
	// TransportAS2V2 is the PEPPOL AS2 v2 (SHA-256) transport profile
	TransportAS2V2 = "busdox-transport-as2-ver2p0"
	// TransportPeppolAS4 is the PEPPOL AS4 transport profile
	TransportPeppolAS4 = "peppol-transport-as4-v2_0"
)

// SelectEndpoint picks the first active endpoint of the given process and
// transport profile. It returns nil when nothing matches.
func SelectEndpoint(metadata *ServiceMetadata, process identifier.ID, transportProfile string) *Endpoint {
	if metadata == nil {
		return nil
	}
	for _, p := range metadata.Processes {
		if !p.Process.Equal(process, identifier.Process) {
			continue
		}
		active := GetActiveEndpoints(FilterEndpointsByTransport(p.Endpoints, transportProfile))
		if len(active) > 0 {
			return &active[0]
		}
	}
	return nil
}

// FilterEndpointsByTransport filters endpoints by transport profile.
func FilterEndpointsByTransport(endpoints []Endpoint, transportProfile string) []Endpoint {
	var result []Endpoint
	for _, ep := range endpoints {
		if ep.TransportProfile == transportProfile {
			result = append(result, ep)
		}
	}
	return result
}

// GetActiveEndpoints filters endpoints to only include currently active ones.
func GetActiveEndpoints(endpoints []Endpoint) []Endpoint {
	now := time.Now()
	var result []Endpoint
	for _, ep := range endpoints {
		if ep.ServiceActivationDate != nil && ep.ServiceActivationDate.After(now) {
			continue
		}
		if ep.ServiceExpirationDate != nil && ep.ServiceExpirationDate.Before(now) {
			continue
		}
		result = append(result, ep)
	}
	return result
}
