// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package validation runs conformance rule sets against business documents
before they are sent.

A Registry maps rule set identifiers (for example
"eu.peppol.bis3:invoice:basic") to Executors. The built-in rule sets cover
the structural PEPPOL BIS Billing 3.0 checks that can be expressed as
element paths; further rule sets can be loaded from YAML files:

	ruleSets:
	  - id: com.example:order:1.0
	    name: Example order rules
	    rules:
	      - id: ORD-01
	        severity: error
	        require: ./ID
	        notEmpty: true
	        message: An order shall have an identifier

Paths use the etree path syntax. Unprefixed element names match any
namespace.
*/
package validation
