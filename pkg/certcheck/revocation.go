package certcheck

import (
	"bytes"
	"context"
	"crypto"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/crypto/ocsp"
)

// RevocationChecker checks whether a certificate has been revoked.
// It returns nil when the certificate is good, ErrCertificateRevoked when it
// is revoked and any other error when the status could not be determined.
type RevocationChecker interface {
	CheckRevocation(ctx context.Context, cert, issuer *x509.Certificate) error
}

// RevocationConfig configures OCSP and CRL checking
type RevocationConfig struct {
	HTTPClient *http.Client
	Timeout    time.Duration
	// CRLFallback consults CRL distribution points when OCSP fails
	CRLFallback bool
	// CacheTimeout bounds how long OCSP results and CRLs are reused
	CacheTimeout time.Duration
	// StrictMode reports ErrRevocationUnknown instead of accepting a
	// certificate whose status could not be determined
	StrictMode bool
}

// DefaultRevocationConfig returns the default configuration
func DefaultRevocationConfig() *RevocationConfig {
	return &RevocationConfig{
		Timeout:      10 * time.Second,
		CRLFallback:  true,
		CacheTimeout: time.Hour,
	}
}

// OCSPChecker implements RevocationChecker using OCSP with optional CRL
// fallback
type OCSPChecker struct {
	config     *RevocationConfig
	httpClient *http.Client
	crls       *cache[*x509.RevocationList]
	responses  *cache[error]
}

// NewOCSPChecker creates a revocation checker
func NewOCSPChecker(config *RevocationConfig) *OCSPChecker {
	if config == nil {
		config = DefaultRevocationConfig()
	}
	client := config.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: config.Timeout}
	}
	return &OCSPChecker{
		config:     config,
		httpClient: client,
		crls:       newCache[*x509.RevocationList](config.CacheTimeout),
		responses:  newCache[error](config.CacheTimeout),
	}
}

// CheckRevocation checks cert, issued by issuer
func (c *OCSPChecker) CheckRevocation(ctx context.Context, cert, issuer *x509.Certificate) error {
	if cert == nil || issuer == nil {
		return fmt.Errorf("%w: certificate and issuer are required", ErrRevocationUnknown)
	}

	ocspErr := c.checkOCSP(ctx, cert, issuer)
	if ocspErr == nil || errors.Is(ocspErr, ErrCertificateRevoked) {
		return ocspErr
	}

	if c.config.CRLFallback {
		crlErr := c.checkCRL(ctx, cert, issuer)
		if crlErr == nil || errors.Is(crlErr, ErrCertificateRevoked) {
			return crlErr
		}
		if c.config.StrictMode {
			return fmt.Errorf("%w: OCSP: %v, CRL: %v", ErrRevocationUnknown, ocspErr, crlErr)
		}
	}

	if c.config.StrictMode {
		return fmt.Errorf("%w: %v", ErrRevocationUnknown, ocspErr)
	}
	return nil
}

func (c *OCSPChecker) checkOCSP(ctx context.Context, cert, issuer *x509.Certificate) error {
	key := issuer.SerialNumber.String() + "/" + cert.SerialNumber.String()
	if cached, ok := c.responses.get(key); ok {
		return cached
	}
	if len(cert.OCSPServer) == 0 {
		return errors.New("no OCSP server URL in certificate")
	}

	request, err := ocsp.CreateRequest(cert, issuer, &ocsp.RequestOptions{Hash: crypto.SHA256})
	if err != nil {
		return fmt.Errorf("failed to create OCSP request: %w", err)
	}
	raw, err := c.doOCSPRequest(ctx, cert.OCSPServer[0], request)
	if err != nil {
		return fmt.Errorf("OCSP request failed: %w", err)
	}
	resp, err := ocsp.ParseResponseForCert(raw, cert, issuer)
	if err != nil {
		return fmt.Errorf("failed to parse OCSP response: %w", err)
	}

	var result error
	switch resp.Status {
	case ocsp.Good:
	case ocsp.Revoked:
		result = ErrCertificateRevoked
	default:
		// not cached, the responder may learn about the certificate later
		return errors.New("OCSP status unknown")
	}
	c.responses.set(key, result)
	return result
}

// doOCSPRequest posts the request, falling back to GET
func (c *OCSPChecker) doOCSPRequest(ctx context.Context, ocspURL string, request []byte) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, ocspURL, bytes.NewReader(request))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/ocsp-request")
	httpReq.Header.Set("Accept", "application/ocsp-response")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return c.doOCSPGet(ctx, ocspURL, request)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return c.doOCSPGet(ctx, ocspURL, request)
	}
	return io.ReadAll(resp.Body)
}

func (c *OCSPChecker) doOCSPGet(ctx context.Context, ocspURL string, request []byte) ([]byte, error) {
	reqURL := ocspURL + "/" + url.PathEscape(base64.StdEncoding.EncodeToString(request))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/ocsp-response")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("OCSP server returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (c *OCSPChecker) checkCRL(ctx context.Context, cert, issuer *x509.Certificate) error {
	if len(cert.CRLDistributionPoints) == 0 {
		return errors.New("no CRL distribution points in certificate")
	}

	var lastErr error
	for _, dp := range cert.CRLDistributionPoints {
		crl, err := c.fetchCRL(ctx, dp, issuer)
		if err != nil {
			lastErr = err
			continue
		}
		for _, revoked := range crl.RevokedCertificateEntries {
			if revoked.SerialNumber.Cmp(cert.SerialNumber) == 0 {
				return ErrCertificateRevoked
			}
		}
		return nil
	}
	return fmt.Errorf("failed to check CRL: %w", lastErr)
}

func (c *OCSPChecker) fetchCRL(ctx context.Context, dp string, issuer *x509.Certificate) (*x509.RevocationList, error) {
	if cached, ok := c.crls.get(dp); ok {
		return cached, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, dp, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("CRL server returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	crl, err := x509.ParseRevocationList(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse CRL: %w", err)
	}
	if err := crl.CheckSignatureFrom(issuer); err != nil {
		return nil, fmt.Errorf("CRL signature: %w", err)
	}
	c.crls.set(dp, crl)
	return crl, nil
}

// cache is a concurrency-safe map with expiring entries
type cache[V any] struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry[V]
	timeout time.Duration
}

type cacheEntry[V any] struct {
	value   V
	created time.Time
}

func newCache[V any](timeout time.Duration) *cache[V] {
	return &cache[V]{entries: make(map[string]cacheEntry[V]), timeout: timeout}
}

func (c *cache[V]) get(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[key]
	if !ok || time.Since(entry.created) > c.timeout {
		var zero V
		return zero, false
	}
	return entry.value, true
}

func (c *cache[V]) set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry[V]{value: value, created: time.Now()}
}
