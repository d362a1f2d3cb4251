// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package as2client sends PEPPOL business documents over AS2 in one
synchronous call.

# Pipeline

SendSynchronous runs a fixed pipeline:

 1. Directory lookup: receiver URL, certificate and AS2 ID that are not set
    are taken from the receiver's SMP registration
 2. Defaults: the receiver key alias defaults to the receiver AS2 ID
 3. Verification: every parameter is checked and all problems are reported
    before sending is aborted
 4. Validation: the business document is checked against a rule set, when
    one is configured
 5. Envelope: the document is wrapped in a Standard Business Document Header
 6. Transport: the envelope is signed and sent, and the MDN is processed

Anything that goes wrong before step 6 is returned as an error and nothing is
sent. Transport problems are reported in the returned *as2.Response.

# Usage

	params := as2client.NewParams()
	params.KeyStore = as2client.KeyStore{Type: as2client.KeyStorePKCS12, Path: "ap.p12", Password: "secret"}
	params.SenderAS2ID = "APP_1000000001"
	params.SenderEmail = "as2@example.com"
	params.SenderKeyAlias = "APP_1000000001"
	params.SenderID = identifier.NewParticipant("9915:sender")
	params.ReceiverID = identifier.NewParticipant("9915:receiver")
	params.DocumentTypeID = identifier.NewDocumentType(invoiceDocType)
	params.ProcessID = identifier.NewProcess(billingProcess)
	params.Document = resource.File("invoice.xml")

	client := as2client.New(params,
	    as2client.WithDirectoryClient(discovery.NewClient(discovery.SMLZoneProduction)))
	resp, err := client.SendSynchronous(ctx)

# Policies

MessageHandler decides what happens with verification diagnostics,
ValidationResultHandler with rule violations and
CertificateCheckResultHandler with the receiver certificate check. The
defaults abort on errors; AdvisoryResultHandler sends documents that failed
validation.
*/
package as2client
