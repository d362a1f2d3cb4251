package as2

import (
	"crypto"
	"encoding/asn1"
	"fmt"
	"strings"

	"github.com/smallstep/pkcs7"
)

// SigningAlgorithm is a MIC / signature digest algorithm
type SigningAlgorithm string

const (
	SigningSHA1   SigningAlgorithm = "sha1"
	SigningSHA256 SigningAlgorithm = "sha-256"
	SigningSHA384 SigningAlgorithm = "sha-384"
	SigningSHA512 SigningAlgorithm = "sha-512"
)

// ParseSigningAlgorithm accepts the RFC 5751 names ("sha-256") and the older
// RFC 3851 names ("sha256").
func ParseSigningAlgorithm(s string) (SigningAlgorithm, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sha1", "sha-1":
		return SigningSHA1, nil
	case "sha-256", "sha256":
		return SigningSHA256, nil
	case "sha-384", "sha384":
		return SigningSHA384, nil
	case "sha-512", "sha512":
		return SigningSHA512, nil
	default:
		return "", fmt.Errorf("unsupported signing algorithm %q", s)
	}
}

// String returns the micalg name
func (a SigningAlgorithm) String() string {
	return string(a)
}

// IsValid reports whether the algorithm is one of the canonical constants.
// Alias spellings must go through ParseSigningAlgorithm first.
func (a SigningAlgorithm) IsValid() bool {
	switch a {
	case SigningSHA1, SigningSHA256, SigningSHA384, SigningSHA512:
		return true
	}
	return false
}

// Hash returns the digest function
func (a SigningAlgorithm) Hash() crypto.Hash {
	switch a {
	case SigningSHA1:
		return crypto.SHA1
	case SigningSHA384:
		return crypto.SHA384
	case SigningSHA512:
		return crypto.SHA512
	default:
		return crypto.SHA256
	}
}

func (a SigningAlgorithm) digestOID() asn1.ObjectIdentifier {
	switch a {
	case SigningSHA1:
		return pkcs7.OIDDigestAlgorithmSHA1
	case SigningSHA384:
		return pkcs7.OIDDigestAlgorithmSHA384
	case SigningSHA512:
		return pkcs7.OIDDigestAlgorithmSHA512
	default:
		return pkcs7.OIDDigestAlgorithmSHA256
	}
}

// ProfileVersion is the PEPPOL AS2 profile version
type ProfileVersion int

const (
	// ProfileV1 is PEPPOL AS2 v1 (SHA-1), deprecated
	ProfileV1 ProfileVersion = 1
	// ProfileV2 is PEPPOL AS2 v2 (SHA-256)
	ProfileV2 ProfileVersion = 2
)

// SigningAlgorithm returns the signing algorithm mandated by the profile
func (v ProfileVersion) SigningAlgorithm() SigningAlgorithm {
	if v == ProfileV1 {
		return SigningSHA1
	}
	return SigningSHA256
}

func (v ProfileVersion) String() string {
	return fmt.Sprintf("v%d", int(v))
}

// ParseProfileVersion parses "v1", "1", "v2" or "2"
func ParseProfileVersion(s string) (ProfileVersion, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "v1", "1":
		return ProfileV1, nil
	case "", "v2", "2":
		return ProfileV2, nil
	default:
		return 0, fmt.Errorf("unknown PEPPOL AS2 profile version %q", s)
	}
}
