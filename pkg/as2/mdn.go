package as2

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/textproto"
	"strings"
)

// Receipt errors
var (
	ErrReceiptNotSigned   = errors.New("receipt is not signed")
	ErrMICMismatch        = errors.New("receipt MIC does not match")
	ErrMessageIDMismatch  = errors.New("receipt refers to another message")
	ErrDispositionFailure = errors.New("receiver reported a failed disposition")
)

const (
	reportContentType = "multipart/report"
	dispositionType   = "message/disposition-notification"
)

// Disposition is the parsed Disposition field of an MDN:
//
//	automatic-action/MDN-sent-automatically; processed/error: decryption-failed
type Disposition struct {
	ActionMode   string
	SendingMode  string
	Type         string
	Modifier     string
	ModifierText string
}

// ParseDisposition parses a Disposition field value
func ParseDisposition(s string) (Disposition, error) {
	var d Disposition
	mode, typ, ok := strings.Cut(s, ";")
	if !ok {
		return d, fmt.Errorf("%w: disposition %q", ErrMalformedMIME, s)
	}
	d.ActionMode, d.SendingMode, _ = strings.Cut(strings.TrimSpace(mode), "/")

	typ, text, _ := strings.Cut(strings.TrimSpace(typ), ":")
	d.Type, d.Modifier, _ = strings.Cut(strings.TrimSpace(typ), "/")
	d.Type = strings.ToLower(strings.TrimSpace(d.Type))
	d.Modifier = strings.ToLower(strings.TrimSpace(d.Modifier))
	d.ModifierText = strings.TrimSpace(text)
	return d, nil
}

// IsSuccess reports a "processed" disposition, with or without a warning
// modifier
func (d Disposition) IsSuccess() bool {
	return d.Type == "processed" && (d.Modifier == "" || d.IsWarning())
}

// IsWarning reports a "processed/warning" disposition
func (d Disposition) IsWarning() bool {
	return d.Type == "processed" && d.Modifier == "warning"
}

func (d Disposition) String() string {
	s := d.ActionMode + "/" + d.SendingMode + "; " + d.Type
	if d.Modifier != "" {
		s += "/" + d.Modifier
		if d.ModifierText != "" {
			s += ": " + d.ModifierText
		}
	}
	return s
}

// MDN is a message disposition notification received for a sent message
type MDN struct {
	Signed            bool
	Text              string
	ReportingUA       string
	OriginalRecipient string
	FinalRecipient    string
	OriginalMessageID string
	Disposition       Disposition
	// ReceivedMIC is "<base64 digest>, <micalg>"
	ReceivedMIC string
	Fields      textproto.MIMEHeader
}

// detachedSignature is a signed MDN's content and PKCS#7 signature
type detachedSignature struct {
	content   []byte
	signature []byte
}

// parseReceipt parses an MDN from an HTTP response body. A multipart/signed
// receipt yields its signature for verification.
func parseReceipt(contentType string, body []byte) (*MDN, *detachedSignature, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: receipt content type: %w", ErrMalformedMIME, err)
	}

	switch mediaType {
	case "multipart/signed":
		parts, err := splitMultipart(body, params["boundary"])
		if err != nil {
			return nil, nil, err
		}
		if len(parts) != 2 {
			return nil, nil, fmt.Errorf("%w: signed receipt has %d parts", ErrMalformedMIME, len(parts))
		}
		sig, err := readSignaturePart(parts[1])
		if err != nil {
			return nil, nil, err
		}
		mdn, err := parseReportEntity(parts[0])
		if err != nil {
			return nil, nil, err
		}
		mdn.Signed = true
		return mdn, &detachedSignature{content: parts[0], signature: sig}, nil

	case reportContentType:
		mdn, err := parseReport(params["boundary"], body)
		if err != nil {
			return nil, nil, err
		}
		return mdn, nil, nil
	}
	return nil, nil, fmt.Errorf("%w: unexpected receipt type %q", ErrMalformedMIME, mediaType)
}

func readSignaturePart(part []byte) ([]byte, error) {
	header, body, err := parseEntity(part)
	if err != nil {
		return nil, err
	}
	mediaType, _, _ := mime.ParseMediaType(header.Get("Content-Type"))
	if mediaType != signatureContentType && mediaType != "application/x-pkcs7-signature" {
		return nil, fmt.Errorf("%w: unexpected signature type %q", ErrMalformedMIME, mediaType)
	}
	if strings.EqualFold(header.Get("Content-Transfer-Encoding"), "base64") {
		return decodeBase64(body)
	}
	return body, nil
}

func parseReportEntity(entity []byte) (*MDN, error) {
	header, body, err := parseEntity(entity)
	if err != nil {
		return nil, err
	}
	mediaType, params, err := mime.ParseMediaType(header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("%w: report content type: %w", ErrMalformedMIME, err)
	}
	if mediaType != reportContentType {
		return nil, fmt.Errorf("%w: expected %s, got %q", ErrMalformedMIME, reportContentType, mediaType)
	}
	return parseReport(params["boundary"], body)
}

func parseReport(boundary string, body []byte) (*MDN, error) {
	if boundary == "" {
		return nil, fmt.Errorf("%w: report without boundary", ErrMalformedMIME)
	}
	mdn := &MDN{}
	found := false
	reader := multipart.NewReader(bytes.NewReader(body), boundary)
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedMIME, err)
		}
		content, err := io.ReadAll(part)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedMIME, err)
		}
		if strings.EqualFold(part.Header.Get("Content-Transfer-Encoding"), "base64") {
			if content, err = decodeBase64(content); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrMalformedMIME, err)
			}
		}

		mediaType, _, _ := mime.ParseMediaType(part.Header.Get("Content-Type"))
		switch mediaType {
		case "text/plain":
			mdn.Text = strings.TrimSpace(string(content))
		case dispositionType:
			if err := mdn.readFields(content); err != nil {
				return nil, err
			}
			found = true
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: report has no %s part", ErrMalformedMIME, dispositionType)
	}
	return mdn, nil
}

func (m *MDN) readFields(content []byte) error {
	// a notification may end without the blank line that closes a header block
	content = append(bytes.TrimRight(content, "\r\n"), crlf+crlf...)
	fields, err := textproto.NewReader(bufio.NewReader(bytes.NewReader(content))).ReadMIMEHeader()
	if err != nil {
		return fmt.Errorf("%w: disposition notification: %w", ErrMalformedMIME, err)
	}
	m.Fields = fields
	m.ReportingUA = fields.Get("Reporting-UA")
	m.OriginalRecipient = fields.Get("Original-Recipient")
	m.FinalRecipient = fields.Get("Final-Recipient")
	m.OriginalMessageID = fields.Get("Original-Message-ID")
	m.ReceivedMIC = fields.Get("Received-Content-MIC")
	if v := fields.Get("Disposition"); v != "" {
		if m.Disposition, err = ParseDisposition(v); err != nil {
			return err
		}
	}
	return nil
}

// check compares the receipt against the message it acknowledges
func (m *MDN) check(messageID, mic string) error {
	if m.OriginalMessageID != "" && m.OriginalMessageID != messageID {
		return fmt.Errorf("%w: got %s, sent %s", ErrMessageIDMismatch, m.OriginalMessageID, messageID)
	}
	if !m.Disposition.IsSuccess() {
		return fmt.Errorf("%w: %s", ErrDispositionFailure, m.Disposition)
	}
	if !micEqual(m.ReceivedMIC, mic) {
		return fmt.Errorf("%w: got %q, computed %q", ErrMICMismatch, m.ReceivedMIC, mic)
	}
	return nil
}

func micEqual(a, b string) bool {
	ad, aa, _ := strings.Cut(a, ",")
	bd, ba, _ := strings.Cut(b, ",")
	if strings.TrimSpace(ad) != strings.TrimSpace(bd) {
		return false
	}
	algA, errA := ParseSigningAlgorithm(aa)
	algB, errB := ParseSigningAlgorithm(ba)
	return errA == nil && errB == nil && algA == algB
}

// parseEntity splits a MIME entity into parsed headers and the raw body
func parseEntity(entity []byte) (textproto.MIMEHeader, []byte, error) {
	head, body, err := splitEntity(entity)
	if err != nil {
		return nil, nil, err
	}
	header, err := textproto.NewReader(bufio.NewReader(bytes.NewReader(head))).ReadMIMEHeader()
	if err != nil && err != io.EOF {
		return nil, nil, fmt.Errorf("%w: %w", ErrMalformedMIME, err)
	}
	return header, body, nil
}
