package as2

import (
	"bytes"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"mime/quotedprintable"
	"strings"

	"github.com/google/uuid"
	"github.com/smallstep/pkcs7"

	"github.com/sirosfoundation/go-peppol-as2/internal/keystore"
)

// Signature errors
var (
	ErrSigning          = errors.New("signing failed")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrMalformedMIME    = errors.New("malformed MIME message")
)

const (
	signatureContentType = "application/pkcs7-signature"
	crlf                 = "\r\n"
	base64LineLength     = 76
)

// signedMessage is a multipart/signed body and the MIC of its first part
type signedMessage struct {
	body        []byte
	contentType string
	mic         string
}

// buildEntity writes the MIME entity that carries the payload
func buildEntity(data []byte, contentType, transferEncoding string) ([]byte, error) {
	if contentType == "" {
		contentType = DefaultContentType
	}
	if transferEncoding == "" {
		transferEncoding = DefaultContentTransferEncoding
	}

	var buf bytes.Buffer
	buf.WriteString("Content-Type: " + contentType + crlf)
	buf.WriteString("Content-Transfer-Encoding: " + transferEncoding + crlf)
	buf.WriteString(crlf)

	switch strings.ToLower(transferEncoding) {
	case "binary", "8bit", "7bit":
		buf.Write(data)
	case "base64":
		buf.Write(wrapBase64(data))
	case "quoted-printable":
		w := quotedprintable.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported content transfer encoding %q", transferEncoding)
	}
	return buf.Bytes(), nil
}

// signEntity wraps entity in a multipart/signed body with a detached PKCS#7
// signature
func signEntity(entity []byte, signer keystore.Signer, alg SigningAlgorithm) (*signedMessage, error) {
	sd, err := pkcs7.NewSignedData(entity)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSigning, err)
	}
	sd.SetDigestAlgorithm(alg.digestOID())
	if err := sd.AddSignerChain(signer.Certificate(), signer, signer.Chain(), pkcs7.SignerInfoConfig{}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSigning, err)
	}
	sd.Detach()
	sig, err := sd.Finish()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSigning, err)
	}

	boundary := generateBoundary()
	var buf bytes.Buffer
	buf.WriteString("--" + boundary + crlf)
	buf.Write(entity)
	buf.WriteString(crlf + "--" + boundary + crlf)
	buf.WriteString("Content-Type: " + signatureContentType + "; name=smime.p7s" + crlf)
	buf.WriteString("Content-Transfer-Encoding: base64" + crlf)
	buf.WriteString("Content-Disposition: attachment; filename=smime.p7s" + crlf)
	buf.WriteString(crlf)
	buf.Write(wrapBase64(sig))
	buf.WriteString(crlf + "--" + boundary + "--" + crlf)

	contentType := mime.FormatMediaType("multipart/signed", map[string]string{
		"protocol": signatureContentType,
		"micalg":   alg.String(),
		"boundary": boundary,
	})
	return &signedMessage{
		body:        buf.Bytes(),
		contentType: contentType,
		mic:         computeMIC(entity, alg),
	}, nil
}

// verifyDetached checks a detached PKCS#7 signature over content and returns
// the signing certificate. When expected is set the signature must be made
// with that certificate.
func verifyDetached(content, signature []byte, expected *x509.Certificate) (*x509.Certificate, error) {
	p7, err := pkcs7.Parse(signature)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	p7.Content = content
	if len(p7.Certificates) == 0 && expected != nil {
		p7.Certificates = []*x509.Certificate{expected}
	}
	if err := p7.Verify(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	signer := p7.GetOnlySigner()
	if signer == nil {
		return nil, fmt.Errorf("%w: expected exactly one signer", ErrInvalidSignature)
	}
	if expected != nil && !signer.Equal(expected) {
		return nil, fmt.Errorf("%w: signed by %q, expected %q", ErrInvalidSignature,
			signer.Subject.String(), expected.Subject.String())
	}
	return signer, nil
}

// computeMIC returns "<base64 digest>, <micalg>"
func computeMIC(entity []byte, alg SigningAlgorithm) string {
	h := alg.Hash().New()
	h.Write(entity)
	return base64.StdEncoding.EncodeToString(h.Sum(nil)) + ", " + alg.String()
}

// splitMultipart returns the raw parts of a multipart body, each with its
// headers. The CRLF before a delimiter belongs to the delimiter.
func splitMultipart(body []byte, boundary string) ([][]byte, error) {
	if boundary == "" {
		return nil, fmt.Errorf("%w: missing boundary", ErrMalformedMIME)
	}
	eol := crlf
	if !bytes.Contains(body, []byte(crlf+"--"+boundary)) && !bytes.HasPrefix(body, []byte("--"+boundary+crlf)) {
		eol = "\n"
	}
	delim := []byte(eol + "--" + boundary)
	data := append([]byte(eol), body...)

	start := bytes.Index(data, delim)
	if start < 0 {
		return nil, fmt.Errorf("%w: boundary %q not found", ErrMalformedMIME, boundary)
	}
	pos := start + len(delim)

	var parts [][]byte
	for {
		if bytes.HasPrefix(data[pos:], []byte("--")) {
			return parts, nil
		}
		// skip transport padding up to the end of the delimiter line
		nl := bytes.IndexByte(data[pos:], '\n')
		if nl < 0 {
			return nil, fmt.Errorf("%w: truncated part", ErrMalformedMIME)
		}
		pos += nl + 1

		next := bytes.Index(data[pos:], delim)
		if next < 0 {
			return nil, fmt.Errorf("%w: missing close delimiter", ErrMalformedMIME)
		}
		parts = append(parts, data[pos:pos+next])
		pos += next + len(delim)
	}
}

// splitEntity separates the header block of a MIME entity from its body
func splitEntity(entity []byte) (header, body []byte, err error) {
	switch {
	case bytes.HasPrefix(entity, []byte(crlf)):
		return entity[:2], entity[2:], nil
	case bytes.HasPrefix(entity, []byte("\n")):
		return entity[:1], entity[1:], nil
	}
	for _, sep := range []string{crlf + crlf, "\n\n"} {
		if i := bytes.Index(entity, []byte(sep)); i >= 0 {
			return entity[:i+len(sep)], entity[i+len(sep):], nil
		}
	}
	return nil, nil, fmt.Errorf("%w: no header terminator", ErrMalformedMIME)
}

func wrapBase64(data []byte) []byte {
	enc := base64.StdEncoding.EncodeToString(data)
	var buf bytes.Buffer
	for len(enc) > base64LineLength {
		buf.WriteString(enc[:base64LineLength] + crlf)
		enc = enc[base64LineLength:]
	}
	buf.WriteString(enc)
	return buf.Bytes()
}

func decodeBase64(data []byte) ([]byte, error) {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\r', '\n':
			return -1
		}
		return r
	}, string(data))
	return base64.StdEncoding.DecodeString(clean)
}

func generateBoundary() string {
	return fmt.Sprintf("----=_Part_%s", strings.ReplaceAll(uuid.New().String(), "-", ""))
}
