// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package resource provides references to business documents that are read
lazily, when a message is assembled.

# Resources

A Resource has a name, can report whether it exists, and can be opened:

	doc := resource.File("/data/outbox/invoice.xml")
	if !doc.Exists() {
	    // report a configuration error
	}
	data, err := resource.ReadAll(doc)

In-memory documents use Bytes:

	doc := resource.Bytes("invoice.xml", payload)

# Compression

Gzip wraps another resource and decompresses on open. ForPath picks Gzip for
files ending in ".gz":

	doc := resource.ForPath("/archive/invoice.xml.gz")
*/
package resource
