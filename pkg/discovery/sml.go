package discovery

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/base32"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/miekg/dns"

	"github.com/sirosfoundation/go-peppol-as2/pkg/identifier"
)

// SML errors
var (
	// ErrNoRecordsFound is returned when the SML has no DNS entry for the participant
	ErrNoRecordsFound = errors.New("no SML records found for participant")
	// ErrInvalidParticipant is returned when the participant identifier cannot be hashed
	ErrInvalidParticipant = errors.New("invalid participant identifier")
	// ErrServiceNotFound is returned when no U-NAPTR record points to an SMP
	ErrServiceNotFound = errors.New("no Meta:SMP service found in NAPTR records")
	// ErrInvalidNAPTRRecord is returned when a NAPTR record has invalid format
	ErrInvalidNAPTRRecord = errors.New("invalid NAPTR record format")
)

// SML DNS zones operated by OpenPEPPOL
const (
	SMLZoneProduction = "edelivery.tech.ec.europa.eu"
	SMLZoneTest       = "acc.edelivery.tech.ec.europa.eu"
)

// ServiceTypeSMP is the U-NAPTR service of PEPPOL SMP records
const ServiceTypeSMP = "Meta:SMP"

// SMLMode selects how a participant hostname is derived.
type SMLMode string

const (
	// SMLModeNAPTR uses BASE32(SHA256(value)) hostnames resolved through U-NAPTR records
	SMLModeNAPTR SMLMode = "naptr"
	// SMLModeCNAME uses the classic "B-" + MD5(value) hostnames
	SMLModeCNAME SMLMode = "cname"
)

// SMLClientConfig contains configuration for the SML client
type SMLClientConfig struct {
	// Zone is the SML DNS zone. Defaults to SMLZoneProduction.
	Zone string

	// Mode selects the hostname scheme. Defaults to SMLModeNAPTR.
	Mode SMLMode

	// DNSServer is the DNS server to use for lookups (optional)
	// Format: "ip:port" (e.g., "8.8.8.8:53")
	// If empty, the first server of /etc/resolv.conf is used
	DNSServer string

	// SkipDNSCheck makes CNAME mode return the SMP URL without resolving
	// the participant hostname first.
	SkipDNSCheck bool
}

// SMLClient locates the SMP of a participant through the SML
type SMLClient struct {
	config    SMLClientConfig
	dnsClient *dns.Client
}

// NewSMLClient creates an SML client for the given zone
func NewSMLClient(zone string) *SMLClient {
	return NewSMLClientWithConfig(SMLClientConfig{Zone: zone})
}

// NewSMLClientWithConfig creates an SML client with custom configuration
func NewSMLClientWithConfig(config SMLClientConfig) *SMLClient {
	if config.Zone == "" {
		config.Zone = SMLZoneProduction
	}
	if config.Mode == "" {
		config.Mode = SMLModeNAPTR
	}
	config.Zone = strings.Trim(config.Zone, ".")
	return &SMLClient{
		config:    config,
		dnsClient: new(dns.Client),
	}
}

// LocateSMP returns the base URL of the SMP publishing the participant.
// A participant unknown to the SML yields an error wrapping
// ErrParticipantNotFound.
func (c *SMLClient) LocateSMP(ctx context.Context, participant identifier.ID) (string, error) {
	if participant.IsEmpty() {
		return "", ErrInvalidParticipant
	}

	switch c.config.Mode {
	case SMLModeCNAME:
		host := CNAMEHostname(participant, c.config.Zone)
		if !c.config.SkipDNSCheck {
			if err := c.checkHost(ctx, host); err != nil {
				return "", err
			}
		}
		return "http://" + host, nil
	case SMLModeNAPTR:
		return c.lookupNAPTR(ctx, NAPTRHostname(participant, c.config.Zone))
	default:
		return "", fmt.Errorf("unsupported SML mode %q", c.config.Mode)
	}
}

// CNAMEHostname builds the classic PEPPOL participant hostname:
// B-<md5 hex of lowercased value>.<scheme>.<zone>
func CNAMEHostname(participant identifier.ID, zone string) string {
	sum := md5.Sum([]byte(strings.ToLower(participant.Value)))
	return fmt.Sprintf("B-%s.%s.%s", hex.EncodeToString(sum[:]), participant.Scheme, zone)
}

// NAPTRHostname builds the participant hostname used for U-NAPTR lookups:
// <base32 sha256 of lowercased value, unpadded>.<scheme>.<zone>
func NAPTRHostname(participant identifier.ID, zone string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(participant.Value)))
	encoded := strings.TrimRight(base32.StdEncoding.EncodeToString(sum[:]), "=")
	return fmt.Sprintf("%s.%s.%s", encoded, participant.Scheme, zone)
}

func (c *SMLClient) server() (string, error) {
	if c.config.DNSServer != "" {
		return c.config.DNSServer, nil
	}
	config, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil {
		return "", fmt.Errorf("failed to read DNS config: %w", err)
	}
	if len(config.Servers) == 0 {
		return "", errors.New("no DNS servers configured")
	}
	return config.Servers[0] + ":" + config.Port, nil
}

func (c *SMLClient) exchange(ctx context.Context, name string, qtype uint16) (*dns.Msg, error) {
	server, err := c.server()
	if err != nil {
		return nil, err
	}

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), qtype)
	msg.RecursionDesired = true

	resp, _, err := c.dnsClient.ExchangeContext(ctx, msg, server)
	if err != nil {
		return nil, fmt.Errorf("DNS lookup failed for %s: %w", name, err)
	}
	if resp.Rcode == dns.RcodeNameError {
		return nil, fmt.Errorf("%w: %w: %s", ErrParticipantNotFound, ErrNoRecordsFound, name)
	}
	if resp.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("DNS lookup failed for %s: rcode=%s", name, dns.RcodeToString[resp.Rcode])
	}
	return resp, nil
}

// checkHost verifies that the participant hostname resolves.
func (c *SMLClient) checkHost(ctx context.Context, host string) error {
	resp, err := c.exchange(ctx, host, dns.TypeA)
	if err != nil {
		return err
	}
	if len(resp.Answer) == 0 {
		return fmt.Errorf("%w: %w: %s", ErrParticipantNotFound, ErrNoRecordsFound, host)
	}
	return nil
}

// lookupNAPTR performs the DNS U-NAPTR lookup and extracts the SMP URL.
func (c *SMLClient) lookupNAPTR(ctx context.Context, host string) (string, error) {
	resp, err := c.exchange(ctx, host, dns.TypeNAPTR)
	if err != nil {
		return "", err
	}

	var records []*dns.NAPTR
	for _, rr := range resp.Answer {
		if naptr, ok := rr.(*dns.NAPTR); ok {
			records = append(records, naptr)
		}
	}
	if len(records) == 0 {
		return "", fmt.Errorf("%w: %w: %s", ErrParticipantNotFound, ErrNoRecordsFound, host)
	}

	return selectBestRecord(records)
}

// selectBestRecord picks the Meta:SMP U-NAPTR record with the lowest order
// and preference.
func selectBestRecord(records []*dns.NAPTR) (string, error) {
	var best *dns.NAPTR
	bestPriority := 0

	for _, record := range records {
		if !strings.EqualFold(record.Flags, "U") {
			continue
		}
		if !strings.EqualFold(record.Service, ServiceTypeSMP) {
			continue
		}
		priority := int(record.Order)<<16 | int(record.Preference)
		if best == nil || priority < bestPriority {
			best = record
			bestPriority = priority
		}
	}

	if best == nil {
		return "", ErrServiceNotFound
	}
	return extractURLFromRegexp(best.Regexp)
}

// extractURLFromRegexp extracts the URL from a NAPTR regexp field.
// Format: "!<pattern>!<replacement>!", e.g. "!^.*$!https://smp.example.com!"
func extractURLFromRegexp(regexpField string) (string, error) {
	if regexpField == "" {
		return "", ErrInvalidNAPTRRecord
	}

	parts := strings.Split(regexpField, "!")
	if len(parts) < 3 {
		return "", fmt.Errorf("%w: invalid regexp format: %s", ErrInvalidNAPTRRecord, regexpField)
	}

	replacement := parts[2]
	if replacement == "" {
		return "", fmt.Errorf("%w: empty URL in regexp: %s", ErrInvalidNAPTRRecord, regexpField)
	}

	parsedURL, err := url.Parse(replacement)
	if err != nil {
		return "", fmt.Errorf("invalid URL in NAPTR record: %w", err)
	}
	if parsedURL.Scheme != "https" && parsedURL.Scheme != "http" {
		return "", fmt.Errorf("invalid URL scheme in NAPTR record: %s", parsedURL.Scheme)
	}

	return replacement, nil
}
