package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sirosfoundation/go-peppol-as2/pkg/as2client"
	"github.com/sirosfoundation/go-peppol-as2/pkg/identifier"
	"github.com/sirosfoundation/go-peppol-as2/pkg/resource"
	"github.com/sirosfoundation/go-peppol-as2/pkg/sbdh"
)

type sendOptions struct {
	sender        string
	receiver      string
	docType       string
	process       string
	receiverURL   string
	receiverCert  string
	receiverAS2ID string
	ruleSet       string
	noValidate    bool
	subject       string
	sbd           bool
	nsPrefix      string
}

// NewSendCommand creates the send command
func NewSendCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &sendOptions{}

	cmd := &cobra.Command{
		Use:   "send <document>",
		Short: "Send one business document",
		Long: `Send one XML business document (optionally gzip compressed) to a PEPPOL receiver.

The receiver endpoint is looked up in the SML/SMP unless --receiver-url and
--receiver-cert are given. With --sbd the document is an existing Standard
Business Document whose header provides the identifiers.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(cmd, rootOpts, opts, args[0])
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.sender, "sender", "", "sender participant ID, overrides as2.senderID")
	f.StringVar(&opts.receiver, "receiver", "", "receiver participant ID")
	f.StringVar(&opts.docType, "doctype", "", "document type ID")
	f.StringVar(&opts.process, "process", "", "process ID")
	f.StringVar(&opts.receiverURL, "receiver-url", "", "receiver AS2 URL, skips the lookup when all receiver flags are set")
	f.StringVar(&opts.receiverCert, "receiver-cert", "", "receiver certificate file (PEM or DER)")
	f.StringVar(&opts.receiverAS2ID, "receiver-as2-id", "", "receiver AS2 ID")
	f.StringVar(&opts.ruleSet, "rule-set", "", "validation rule set, overrides validation.ruleSet")
	f.BoolVar(&opts.noValidate, "no-validate", false, "do not validate the document")
	f.StringVar(&opts.subject, "subject", "", "AS2 message subject")
	f.BoolVar(&opts.sbd, "sbd", false, "the document already is a Standard Business Document")
	f.StringVar(&opts.nsPrefix, "sbdh-prefix", "", "namespace prefix for SBDH elements")

	return cmd
}

func runSend(cmd *cobra.Command, rootOpts *RootOptions, opts *sendOptions, path string) error {
	cfg, logger, err := rootOpts.load(cmd)
	if err != nil {
		return err
	}

	// 1. Shared parameters from the configuration
	params, err := cfg.Params()
	if err != nil {
		return err
	}

	// 2. The document
	doc := resource.ForPath(path)
	if opts.sbd {
		data, err := resource.ReadAll(doc)
		if err != nil {
			return err
		}
		env, err := sbdh.Parse(data)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if !env.Sender.IsEmpty() {
			params.SenderID = env.Sender
		}
		params.ReceiverID = env.Receiver
		params.DocumentTypeID = env.DocumentType
		params.ProcessID = env.Process
		params.DocumentElement = env.Payload
	} else {
		params.Document = doc
	}

	// 3. Command line overrides
	if err := opts.apply(&params); err != nil {
		return err
	}

	clientOpts, err := cfg.ClientOptions(logger)
	if err != nil {
		return err
	}
	if opts.nsPrefix != "" {
		clientOpts = append(clientOpts, as2client.WithNamespaces(sbdh.Namespaces{Prefix: opts.nsPrefix}))
	}

	// 4. Send
	resp, err := as2client.New(params, clientOpts...).SendSynchronous(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), resp.String())
	if resp.HasException() {
		return fmt.Errorf("sending failed: %w", resp.Exception)
	}
	return nil
}

func (o *sendOptions) apply(p *as2client.Params) error {
	ids := []struct {
		value string
		kind  identifier.Kind
		dst   *identifier.ID
	}{
		{o.sender, identifier.Participant, &p.SenderID},
		{o.receiver, identifier.Participant, &p.ReceiverID},
		{o.docType, identifier.DocumentType, &p.DocumentTypeID},
		{o.process, identifier.Process, &p.ProcessID},
	}
	for _, id := range ids {
		if id.value == "" {
			continue
		}
		parsed, err := identifier.ParseWithDefault(id.value, id.kind)
		if err != nil {
			return fmt.Errorf("%s identifier %q: %w", id.kind, id.value, err)
		}
		*id.dst = parsed
	}

	if o.receiverURL != "" {
		p.ReceiverURL = o.receiverURL
	}
	if o.receiverAS2ID != "" {
		p.ReceiverAS2ID = o.receiverAS2ID
	}
	if o.receiverCert != "" {
		data, err := os.ReadFile(o.receiverCert)
		if err != nil {
			return fmt.Errorf("reading receiver certificate: %w", err)
		}
		p.ReceiverCertificateBytes = data
	}
	if o.subject != "" {
		p.Subject = o.subject
	}
	switch {
	case o.noValidate:
		p.ValidationRuleSetID = ""
	case o.ruleSet != "":
		p.ValidationRuleSetID = o.ruleSet
	}
	return nil
}
