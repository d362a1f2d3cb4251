package as2

import (
	"fmt"
	"strings"
)

// Disposition option importance values
const (
	ImportanceRequired = "required"
	ImportanceOptional = "optional"
)

// ProtocolPKCS7Signature is the only supported receipt signature protocol
const ProtocolPKCS7Signature = "pkcs7-signature"

// DispositionOptions is the Disposition-Notification-Options header:
//
//	signed-receipt-protocol=required, pkcs7-signature; signed-receipt-micalg=required, sha-256
type DispositionOptions struct {
	Protocol           string
	ProtocolImportance string
	MICAlgs            []SigningAlgorithm
	MICAlgImportance   string
}

// SignedReceiptOptions requests a pkcs7-signature receipt using alg, both
// marked required.
func SignedReceiptOptions(alg SigningAlgorithm) DispositionOptions {
	return DispositionOptions{
		Protocol:           ProtocolPKCS7Signature,
		ProtocolImportance: ImportanceRequired,
		MICAlgs:            []SigningAlgorithm{alg},
		MICAlgImportance:   ImportanceRequired,
	}
}

// IsEmpty reports whether no receipt options are set
func (o DispositionOptions) IsEmpty() bool {
	return o.Protocol == "" && len(o.MICAlgs) == 0
}

// SignedReceiptRequired reports whether an unsigned MDN must be rejected
func (o DispositionOptions) SignedReceiptRequired() bool {
	return o.Protocol != "" && importanceOrDefault(o.ProtocolImportance) == ImportanceRequired
}

// String formats the header value
func (o DispositionOptions) String() string {
	var parts []string
	if o.Protocol != "" {
		parts = append(parts, fmt.Sprintf("signed-receipt-protocol=%s, %s", importanceOrDefault(o.ProtocolImportance), o.Protocol))
	}
	if len(o.MICAlgs) > 0 {
		algs := make([]string, len(o.MICAlgs))
		for i, a := range o.MICAlgs {
			algs[i] = a.String()
		}
		parts = append(parts, fmt.Sprintf("signed-receipt-micalg=%s, %s", importanceOrDefault(o.MICAlgImportance), strings.Join(algs, ", ")))
	}
	return strings.Join(parts, "; ")
}

func importanceOrDefault(s string) string {
	if s == "" {
		return ImportanceRequired
	}
	return s
}

// ParseDispositionOptions parses a Disposition-Notification-Options value
func ParseDispositionOptions(s string) (DispositionOptions, error) {
	var o DispositionOptions
	for _, param := range strings.Split(s, ";") {
		param = strings.TrimSpace(param)
		if param == "" {
			continue
		}
		name, value, ok := strings.Cut(param, "=")
		if !ok {
			return o, fmt.Errorf("malformed disposition option %q", param)
		}
		values := strings.Split(value, ",")
		for i := range values {
			values[i] = strings.TrimSpace(values[i])
		}
		if len(values) < 2 {
			return o, fmt.Errorf("disposition option %q lacks a value", name)
		}

		switch strings.ToLower(strings.TrimSpace(name)) {
		case "signed-receipt-protocol":
			o.ProtocolImportance = strings.ToLower(values[0])
			o.Protocol = strings.ToLower(values[1])
		case "signed-receipt-micalg":
			o.MICAlgImportance = strings.ToLower(values[0])
			for _, v := range values[1:] {
				alg, err := ParseSigningAlgorithm(v)
				if err != nil {
					return o, err
				}
				o.MICAlgs = append(o.MICAlgs, alg)
			}
		default:
			return o, fmt.Errorf("unknown disposition option %q", name)
		}
	}
	return o, nil
}
