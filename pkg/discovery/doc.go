// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package discovery implements PEPPOL dynamic discovery of receiving access
points.

A receiver's Service Metadata Publisher (SMP) is located through the
Service Metadata Locator (SML), a DNS zone operated by OpenPEPPOL. Two
hostname forms are supported:

  - NAPTR: BASE32(SHA-256(lowercased participant value)) + "." + scheme + "." + zone,
    resolved through a U-NAPTR record with service "Meta:SMP"
  - CNAME: "B-" + hex(MD5(lowercased participant value)) + "." + scheme + "." + zone,
    where the hostname itself is the SMP

The SMP is then queried over HTTP for the SignedServiceMetadata of the
participant and document type:

	{smp}/{participant URI}/services/{document type URI}

and the endpoint for the wanted process and transport profile is selected.

# Usage

	client := discovery.NewClient(discovery.SMLZoneTest)
	metadata, err := client.Lookup(ctx, receiver, documentType)
	if err != nil {
	    return err
	}
	endpoint := client.SelectEndpoint(metadata, process, discovery.TransportAS2V2)

# References

  - PEPPOL Policy for use of Identifiers
  - PEPPOL Transport Infrastructure SML and SMP specifications
  - RFC 4848 (U-NAPTR DNS records)
*/
package discovery
