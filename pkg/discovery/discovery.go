package discovery

import (
	"context"
	"fmt"

	"github.com/sirosfoundation/go-peppol-as2/pkg/identifier"
)

// Client combines SML and SMP lookups. It satisfies the directory client
// used by the AS2 sending builder:
//  1. Locate the SMP of the receiver through the SML (or use a fixed SMP)
//  2. Fetch the service metadata for the receiver and document type
//  3. Select the endpoint for a process and transport profile
type Client struct {
	sml       *SMLClient
	smp       *SMPClient
	staticSMP string
}

// Config contains configuration for the discovery client
type Config struct {
	// SML is the configuration for SML lookups
	SML SMLClientConfig

	// SMP is the configuration for SMP queries
	SMP SMPClientConfig

	// SMPURL, when set, is used for every participant and the SML is not
	// consulted.
	SMPURL string
}

// NewClient creates a discovery client using the given SML zone.
func NewClient(zone string) *Client {
	return NewClientWithConfig(Config{SML: SMLClientConfig{Zone: zone}})
}

// NewClientWithConfig creates a discovery client with custom configuration.
func NewClientWithConfig(config Config) *Client {
	return &Client{
		sml:       NewSMLClientWithConfig(config.SML),
		smp:       NewSMPClientWithConfig(config.SMP),
		staticSMP: config.SMPURL,
	}
}

// NewStaticClient creates a discovery client bound to a single SMP.
func NewStaticClient(smpURL string) *Client {
	return NewClientWithConfig(Config{SMPURL: smpURL})
}

// LocateSMP returns the SMP base URL for the receiver.
func (c *Client) LocateSMP(ctx context.Context, receiver identifier.ID) (string, error) {
	if c.staticSMP != "" {
		return c.staticSMP, nil
	}
	smpURL, err := c.sml.LocateSMP(ctx, receiver)
	if err != nil {
		return "", fmt.Errorf("SML lookup failed: %w", err)
	}
	return smpURL, nil
}

// Lookup fetches the service metadata registered for the receiver and
// document type. Errors for unknown participants wrap ErrParticipantNotFound.
func (c *Client) Lookup(ctx context.Context, receiver, documentType identifier.ID) (*ServiceMetadata, error) {
	smpURL, err := c.LocateSMP(ctx, receiver)
	if err != nil {
		return nil, err
	}

	metadata, err := c.smp.GetServiceMetadata(ctx, smpURL, receiver, documentType)
	if err != nil {
		return nil, fmt.Errorf("SMP lookup failed: %w", err)
	}
	return metadata, nil
}

// SelectEndpoint picks the active endpoint for the process and transport
// profile, or nil.
func (c *Client) SelectEndpoint(metadata *ServiceMetadata, process identifier.ID, transportProfile string) *Endpoint {
	return SelectEndpoint(metadata, process, transportProfile)
}

// ListDocumentTypes lists all document type references registered for a
// participant.
func (c *Client) ListDocumentTypes(ctx context.Context, participant identifier.ID) ([]string, error) {
	smpURL, err := c.LocateSMP(ctx, participant)
	if err != nil {
		return nil, err
	}

	serviceGroup, err := c.smp.GetServiceGroup(ctx, smpURL, participant)
	if err != nil {
		return nil, fmt.Errorf("SMP lookup failed: %w", err)
	}
	return serviceGroup.ServiceReferences, nil
}

// SMLClient returns the underlying SML client for advanced usage.
func (c *Client) SMLClient() *SMLClient {
	return c.sml
}

// SMPClient returns the underlying SMP client for advanced usage.
func (c *Client) SMPClient() *SMPClient {
	return c.smp
}
