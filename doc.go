// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package peppolas2 is a sending client for the PEPPOL AS2 transport profiles.

# Overview

go-peppol-as2 delivers business documents to PEPPOL access points over AS2.
A send resolves the receiver through the PEPPOL directory, checks the
configuration, optionally validates the document, wraps it in a Standard
Business Document Header and transmits it as a signed AS2 message whose
signed MDN is verified against the receiver certificate.

# Specifications Implemented

  - PEPPOL AS2 Profile v1 (busdox-transport-as2-ver1p0, SHA-1)
  - PEPPOL AS2 Profile v2 (busdox-transport-as2-ver2p0, SHA-256)
  - PEPPOL Transport Infrastructure SML and SMP 1.0
  - PEPPOL Policy for use of Identifiers
  - PEPPOL Envelope Specification (SBDH)
  - RFC 4130: AS2
  - RFC 8551 / RFC 5751: S/MIME multipart/signed
  - RFC 3798 / RFC 8098: Message Disposition Notification
  - RFC 6960: OCSP

# Package Structure

	github.com/sirosfoundation/go-peppol-as2/pkg/as2client  - Send pipeline and its policies
	github.com/sirosfoundation/go-peppol-as2/pkg/as2        - AS2 signing, HTTP transport and MDN processing
	github.com/sirosfoundation/go-peppol-as2/pkg/discovery  - SML (NAPTR/CNAME) and SMP lookup
	github.com/sirosfoundation/go-peppol-as2/pkg/identifier - PEPPOL participant, document type and process IDs
	github.com/sirosfoundation/go-peppol-as2/pkg/sbdh       - Standard Business Document Header
	github.com/sirosfoundation/go-peppol-as2/pkg/validation - Rule based business document validation
	github.com/sirosfoundation/go-peppol-as2/pkg/certcheck  - Certificate path and revocation checks
	github.com/sirosfoundation/go-peppol-as2/pkg/resource   - Document sources (files, bytes, gzip)

The internal packages hold the key stores (PEM, PKCS#12, PKCS#11), the YAML
configuration and the outbox folder sender used by cmd/peppol-as2.

# Quick Start

	params := as2client.NewParams()
	params.KeyStore = as2client.KeyStore{Type: as2client.KeyStorePKCS12, Path: "ap.p12", Password: "secret"}
	params.SenderAS2ID = "APP_1000000001"
	params.SenderKeyAlias = "APP_1000000001"
	params.SenderEmail = "as2@example.com"
	params.SenderID = identifier.NewParticipant("9915:sender")
	params.ReceiverID = identifier.NewParticipant("9915:receiver")
	params.DocumentTypeID = identifier.NewDocumentType(docType)
	params.ProcessID = identifier.NewProcess(process)
	params.Document = resource.File("invoice.xml")

	client := as2client.New(params,
	    as2client.WithDirectoryClient(discovery.NewClient(discovery.SMLZoneProduction)))
	resp, err := client.SendSynchronous(ctx)
	if err != nil {
	    // configuration, validation or envelope problem; nothing was sent
	}
	if resp.HasException() {
	    // transport or MDN problem
	}

# Command Line

cmd/peppol-as2 wraps the client: "send" transmits one document, "lookup"
queries the directory, "watch" sends everything dropped into an outbox
folder and "keystore list" shows the configured key store.

# Security Considerations

  - Messages are signed with the sender key; v1 uses SHA-1, v2 SHA-256
  - MDNs must be signed by the receiver certificate found in the SMP
  - The receiver certificate can be checked against a trust store with
    OCSP and CRL revocation checking
  - TLS 1.2 is the minimum for the HTTP transport
*/
package peppolas2
