package main

import (
	"crypto/x509"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sirosfoundation/go-peppol-as2/pkg/as2"
	"github.com/sirosfoundation/go-peppol-as2/pkg/discovery"
	"github.com/sirosfoundation/go-peppol-as2/pkg/identifier"
)

type lookupOptions struct {
	docType   string
	process   string
	version   string
	zone      string
	mode      string
	smpURL    string
	dnsServer string
}

// NewLookupCommand creates the lookup command
func NewLookupCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &lookupOptions{}

	cmd := &cobra.Command{
		Use:   "lookup <participant>",
		Short: "Look up a participant in the SML/SMP",
		Long: `Without --doctype the document types registered for the participant are listed.
With --doctype the endpoints are shown; adding --process selects the AS2
endpoint the client would use.

The directory settings of the configuration file are used when --config is
given explicitly, otherwise the command line flags.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLookup(cmd, rootOpts, opts, args[0])
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.docType, "doctype", "", "document type ID")
	f.StringVar(&opts.process, "process", "", "process ID")
	f.StringVar(&opts.version, "version", "2", "PEPPOL AS2 profile version (1|2)")
	f.StringVar(&opts.zone, "zone", discovery.SMLZoneProduction, "SML DNS zone")
	f.StringVar(&opts.mode, "mode", string(discovery.SMLModeNAPTR), "SML hostname mode (naptr|cname)")
	f.StringVar(&opts.smpURL, "smp-url", "", "query this SMP directly")
	f.StringVar(&opts.dnsServer, "dns", "", "DNS server (ip:port)")

	return cmd
}

func (o *lookupOptions) client(cmd *cobra.Command, rootOpts *RootOptions) (*discovery.Client, error) {
	if cmd.Flags().Changed("config") {
		cfg, _, err := rootOpts.load(cmd)
		if err != nil {
			return nil, err
		}
		if dc := cfg.DirectoryClient(); dc != nil {
			return dc, nil
		}
		return nil, fmt.Errorf("directory lookup is disabled in %s", rootOpts.ConfigPath)
	}
	return discovery.NewClientWithConfig(discovery.Config{
		SML: discovery.SMLClientConfig{
			Zone:      o.zone,
			Mode:      discovery.SMLMode(o.mode),
			DNSServer: o.dnsServer,
		},
		SMPURL: o.smpURL,
	}), nil
}

func runLookup(cmd *cobra.Command, rootOpts *RootOptions, opts *lookupOptions, participant string) error {
	receiver, err := identifier.ParseWithDefault(participant, identifier.Participant)
	if err != nil {
		return err
	}
	client, err := opts.client(cmd, rootOpts)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	smpURL, err := client.LocateSMP(ctx, receiver)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "participant: %s\nsmp: %s\n", receiver, smpURL)

	if opts.docType == "" {
		refs, err := client.ListDocumentTypes(ctx, receiver)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "document types: %d\n", len(refs))
		for _, ref := range refs {
			fmt.Fprintf(out, "  %s\n", ref)
		}
		return nil
	}

	docType, err := identifier.ParseWithDefault(opts.docType, identifier.DocumentType)
	if err != nil {
		return err
	}
	metadata, err := client.Lookup(ctx, receiver, docType)
	if err != nil {
		return err
	}

	if opts.process == "" {
		for _, p := range metadata.Processes {
			fmt.Fprintf(out, "process: %s\n", p.Process)
			for i := range p.Endpoints {
				printEndpoint(out, &p.Endpoints[i])
			}
		}
		return nil
	}

	process, err := identifier.ParseWithDefault(opts.process, identifier.Process)
	if err != nil {
		return err
	}
	version, err := as2.ParseProfileVersion(opts.version)
	if err != nil {
		return err
	}
	profile := discovery.TransportAS2V2
	if version == as2.ProfileV1 {
		profile = discovery.TransportAS2V1
	}
	endpoint := client.SelectEndpoint(metadata, process, profile)
	if endpoint == nil {
		return fmt.Errorf("no active %s endpoint for process %s", profile, process)
	}
	printEndpoint(out, endpoint)
	return nil
}

func printEndpoint(w io.Writer, ep *discovery.Endpoint) {
	fmt.Fprintf(w, "  endpoint: %s\n    transport: %s\n", ep.URL, ep.TransportProfile)
	if ep.Description != "" {
		fmt.Fprintf(w, "    description: %s\n", ep.Description)
	}
	if ep.TechnicalContactURL != "" {
		fmt.Fprintf(w, "    contact: %s\n", ep.TechnicalContactURL)
	}
	if len(ep.Certificate) == 0 {
		return
	}
	cert, err := x509.ParseCertificate(ep.Certificate)
	if err != nil {
		fmt.Fprintf(w, "    certificate: unparsable (%v)\n", err)
		return
	}
	fmt.Fprintf(w, "    certificate: %s\n    issuer: %s\n    valid: %s to %s\n",
		cert.Subject.CommonName, cert.Issuer.CommonName,
		cert.NotBefore.Format("2006-01-02"), cert.NotAfter.Format("2006-01-02"))
}
