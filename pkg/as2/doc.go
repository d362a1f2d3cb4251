// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package as2 implements the sending side of AS2 (RFC 4130) as profiled by
PEPPOL.

A message is a single MIME entity holding the business document. It is
signed as multipart/signed with a detached PKCS#7 signature, posted to the
receiver over HTTP(S) and answered synchronously with a Message Disposition
Notification (MDN). The MDN is a multipart/report, normally signed by the
receiver, that carries the MIC (message integrity check) the receiver
computed over the signed content.

The PEPPOL AS2 profile fixes most options:

  - v1 (busdox-transport-as2-ver1p0) signs with SHA-1
  - v2 (busdox-transport-as2-ver2p0) signs with SHA-256
  - a signed receipt using pkcs7-signature with the same MIC algorithm is
    required
  - messages are not encrypted or compressed

Transport problems are reported in the Response rather than as errors,
because a message may have been received even when its receipt could not
be processed.
*/
package as2
