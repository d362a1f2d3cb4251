// Package config handles configuration loading for the PEPPOL AS2 client.
//
// Configuration is loaded from a YAML file with support for environment
// variable expansion (${VAR} or $VAR syntax). This allows secrets like the
// keystore password or the PKCS#11 PIN to be injected at runtime.
//
// # Configuration Sections
//
//   - sml: directory lookup (SML zone, hostname mode, static SMP)
//   - as2: sender identity and AS2 transport settings
//   - keystore: the sending access point's key and partner certificates
//   - truststore: receiver certificate checks (PKI roots, OCSP/CRL)
//   - validation: business document rule sets
//   - folders: outbox folders watched by the folder sender
//   - log: log level and format
//
// # Example Configuration
//
//	sml:
//	  zone: acc.edelivery.tech.ec.europa.eu
//
//	as2:
//	  senderID: "9915:test"
//	  senderAS2ID: APP_1000000001
//	  senderEmail: as2@example.com
//
//	keystore:
//	  type: pkcs12
//	  path: /etc/peppol/ap.p12
//	  password: ${KEYSTORE_PASSWORD}
//	  keyAlias: APP_1000000001
//
//	folders:
//	  sending: /var/peppol/outbox
//	  sendingError: /var/peppol/outbox-error
//
// See [Load] for loading configuration from a file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sirosfoundation/go-peppol-as2/internal/keystore"
	"github.com/sirosfoundation/go-peppol-as2/pkg/as2"
	"github.com/sirosfoundation/go-peppol-as2/pkg/discovery"
)

// Config is the root configuration structure
type Config struct {
	SML        SMLConfig        `yaml:"sml"`
	AS2        AS2Config        `yaml:"as2"`
	KeyStore   KeyStoreConfig   `yaml:"keystore"`
	TrustStore TrustStoreConfig `yaml:"truststore"`
	Validation ValidationConfig `yaml:"validation"`
	Folders    FoldersConfig    `yaml:"folders"`
	Log        LogConfig        `yaml:"log"`
}

// SMLConfig holds directory lookup settings
type SMLConfig struct {
	// Disabled turns receiver lookup off; receiver URL and certificate must
	// then be given for every send
	Disabled bool   `yaml:"disabled"`
	Zone     string `yaml:"zone"`
	// Mode is "naptr" or "cname"
	Mode      string `yaml:"mode"`
	DNSServer string `yaml:"dnsServer"`
	// SMPURL bypasses the SML and queries this SMP for every participant
	SMPURL string `yaml:"smpURL"`
}

// AS2Config holds the sender identity and transport settings
type AS2Config struct {
	// Version is the PEPPOL AS2 profile version, 1 or 2
	Version int `yaml:"version"`
	// SenderID is the default sender participant identifier
	SenderID                string        `yaml:"senderID"`
	SenderAS2ID             string        `yaml:"senderAS2ID"`
	SenderEmail             string        `yaml:"senderEmail"`
	Subject                 string        `yaml:"subject"`
	MessageIDFormat         string        `yaml:"messageIDFormat"`
	ConnectTimeout          time.Duration `yaml:"connectTimeout"`
	ReadTimeout             time.Duration `yaml:"readTimeout"`
	ContentTransferEncoding string        `yaml:"contentTransferEncoding"`
	UserAgent               string        `yaml:"userAgent"`
	TLS                     struct {
		// MinVersion is "1.2" or "1.3"
		MinVersion         string `yaml:"minVersion"`
		CAFile             string `yaml:"caFile"`
		InsecureSkipVerify bool   `yaml:"insecureSkipVerify"`
	} `yaml:"tls"`
}

// KeyStoreConfig holds the credential store settings
type KeyStoreConfig struct {
	Type     string `yaml:"type"`
	Path     string `yaml:"path"`
	Password string `yaml:"password"`
	// KeyAlias names the signing key, defaulting to as2.senderAS2ID
	KeyAlias string `yaml:"keyAlias"`
	// SaveChanges writes looked-up receiver certificates back to the store
	SaveChanges bool         `yaml:"saveChanges"`
	PKCS11      PKCS11Config `yaml:"pkcs11"`
}

// PKCS11Config holds PKCS#11 token settings
type PKCS11Config struct {
	// Path to the PKCS#11 library (.so/.dylib/.dll)
	ModulePath string `yaml:"modulePath"`
	// Slot ID or token label to use
	SlotID     *uint  `yaml:"slotId"`
	TokenLabel string `yaml:"tokenLabel"`
	// PIN for authentication (can be env var reference like ${HSM_PIN})
	PIN string `yaml:"pin"`
}

// TrustStoreConfig enables checking receiver certificates
type TrustStoreConfig struct {
	// Path to a PEM file with the trusted AP CA certificates. Empty
	// disables certificate checks.
	Path string `yaml:"path"`
	// IntermediatesPath is a PEM file with intermediate CA certificates
	IntermediatesPath string `yaml:"intermediatesPath"`
	Revocation        struct {
		Enabled      bool          `yaml:"enabled"`
		CRLFallback  bool          `yaml:"crlFallback"`
		Strict       bool          `yaml:"strict"`
		Timeout      time.Duration `yaml:"timeout"`
		CacheTimeout time.Duration `yaml:"cacheTimeout"`
	} `yaml:"revocation"`
}

// ValidationConfig holds business document validation settings
type ValidationConfig struct {
	// RuleSet is the default rule set identifier. Empty disables validation.
	RuleSet string `yaml:"ruleSet"`
	// RuleFiles are YAML rule files or directories added to the built-in
	// rule sets
	RuleFiles []string `yaml:"ruleFiles"`
	// Advisory sends documents even when validation fails
	Advisory bool `yaml:"advisory"`
}

// FoldersConfig holds the folder sender settings
type FoldersConfig struct {
	Sending      string        `yaml:"sending"`
	SendingError string        `yaml:"sendingError"`
	PollInterval time.Duration `yaml:"pollInterval"`
}

// LogConfig holds logging settings
type LogConfig struct {
	// Level is debug, info, warn or error
	Level string `yaml:"level"`
	// Format is text or json
	Format string `yaml:"format"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse reads configuration from YAML bytes
func Parse(data []byte) (*Config, error) {
	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.SML.Zone == "" {
		c.SML.Zone = discovery.SMLZoneProduction
	}
	if c.SML.Mode == "" {
		c.SML.Mode = string(discovery.SMLModeNAPTR)
	}
	if c.AS2.Version == 0 {
		c.AS2.Version = int(as2.ProfileV2)
	}
	if c.AS2.Subject == "" {
		c.AS2.Subject = as2.DefaultSubject
	}
	if c.AS2.MessageIDFormat == "" {
		c.AS2.MessageIDFormat = as2.DefaultMessageIDFormat
	}
	if c.AS2.ConnectTimeout == 0 {
		c.AS2.ConnectTimeout = as2.DefaultConnectTimeout
	}
	if c.AS2.ReadTimeout == 0 {
		c.AS2.ReadTimeout = as2.DefaultReadTimeout
	}
	if c.AS2.ContentTransferEncoding == "" {
		c.AS2.ContentTransferEncoding = as2.DefaultContentTransferEncoding
	}
	if c.AS2.TLS.MinVersion == "" {
		c.AS2.TLS.MinVersion = "1.2"
	}
	if c.KeyStore.Type == "" {
		c.KeyStore.Type = string(keystore.TypePKCS12)
	}
	if c.KeyStore.KeyAlias == "" {
		c.KeyStore.KeyAlias = c.AS2.SenderAS2ID
	}
	if c.TrustStore.Revocation.Timeout == 0 {
		c.TrustStore.Revocation.Timeout = 10 * time.Second
	}
	if c.TrustStore.Revocation.CacheTimeout == 0 {
		c.TrustStore.Revocation.CacheTimeout = time.Hour
	}
	if c.Folders.PollInterval == 0 {
		c.Folders.PollInterval = 30 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

func (c *Config) validate() error {
	switch discovery.SMLMode(c.SML.Mode) {
	case discovery.SMLModeNAPTR, discovery.SMLModeCNAME:
	default:
		return fmt.Errorf("sml.mode must be 'naptr' or 'cname', got '%s'", c.SML.Mode)
	}

	if _, err := as2.ParseProfileVersion(fmt.Sprint(c.AS2.Version)); err != nil {
		return fmt.Errorf("as2.version: %w", err)
	}

	switch c.AS2.TLS.MinVersion {
	case "1.2", "1.3":
	default:
		return fmt.Errorf("as2.tls.minVersion must be '1.2' or '1.3', got '%s'", c.AS2.TLS.MinVersion)
	}

	ksType, err := keystore.ParseType(c.KeyStore.Type)
	if err != nil {
		return fmt.Errorf("keystore.type: %w", err)
	}
	c.KeyStore.Type = string(ksType)
	if ksType == keystore.TypePKCS11 {
		if c.KeyStore.PKCS11.ModulePath == "" {
			return fmt.Errorf("keystore.pkcs11.modulePath is required when type is 'pkcs11'")
		}
	} else if c.KeyStore.Path == "" {
		return fmt.Errorf("keystore.path is required")
	}

	if c.Folders.Sending != "" && c.Folders.SendingError == "" {
		return fmt.Errorf("folders.sendingError is required when folders.sending is set")
	}
	if c.Folders.Sending != "" && c.Folders.Sending == c.Folders.SendingError {
		return fmt.Errorf("folders.sending and folders.sendingError must differ")
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be 'text' or 'json', got '%s'", c.Log.Format)
	}

	return nil
}
