package as2

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// DefaultMessageIDFormat is the PEPPOL AS2 message-ID template
const DefaultMessageIDFormat = "OpenPEPPOL-$date.ddMMyyyyHHmmssZ$-$rand.1234$@$msg.sender.as2_id$_$msg.receiver.as2_id$"

// ErrInvalidMessageIDFormat is returned for templates with unknown or
// unterminated placeholders
var ErrInvalidMessageIDFormat = errors.New("invalid message-ID format")

// MessageIDValues are the values available to message-ID placeholders
type MessageIDValues struct {
	SenderAS2ID   string
	ReceiverAS2ID string
	SenderEmail   string
	Subject       string
	Now           time.Time
}

// FormatMessageID expands a message-ID template and wraps the result in
// angle brackets. Placeholders are delimited by '$':
//
//	$date.<pattern>$       current time, pattern letters as in ddMMyyyyHHmmssZ
//	$rand.<digits>$        one random digit per template digit
//	$msg.sender.as2_id$    sender AS2 ID
//	$msg.receiver.as2_id$  receiver AS2 ID
//	$msg.sender.email$     sender email address
//	$msg.subject$          message subject
func FormatMessageID(format string, v MessageIDValues) (string, error) {
	if v.Now.IsZero() {
		v.Now = time.Now()
	}
	var b strings.Builder
	b.WriteByte('<')
	rest := format
	for {
		start := strings.IndexByte(rest, '$')
		if start < 0 {
			b.WriteString(rest)
			break
		}
		b.WriteString(rest[:start])
		rest = rest[start+1:]
		end := strings.IndexByte(rest, '$')
		if end < 0 {
			return "", fmt.Errorf("%w: unterminated placeholder in %q", ErrInvalidMessageIDFormat, format)
		}
		expanded, err := expandPlaceholder(rest[:end], v)
		if err != nil {
			return "", err
		}
		b.WriteString(expanded)
		rest = rest[end+1:]
	}
	b.WriteByte('>')
	return b.String(), nil
}

// ValidateMessageIDFormat checks a template without using its result
func ValidateMessageIDFormat(format string) error {
	if strings.TrimSpace(format) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidMessageIDFormat)
	}
	_, err := FormatMessageID(format, MessageIDValues{Now: time.Unix(0, 0)})
	return err
}

func expandPlaceholder(name string, v MessageIDValues) (string, error) {
	switch {
	case strings.HasPrefix(name, "date."):
		return formatDatePattern(strings.TrimPrefix(name, "date."), v.Now)
	case strings.HasPrefix(name, "rand."):
		return randomDigits(strings.TrimPrefix(name, "rand.")), nil
	case name == "msg.sender.as2_id":
		return v.SenderAS2ID, nil
	case name == "msg.receiver.as2_id":
		return v.ReceiverAS2ID, nil
	case name == "msg.sender.email":
		return v.SenderEmail, nil
	case name == "msg.subject":
		return v.Subject, nil
	}
	return "", fmt.Errorf("%w: unknown placeholder $%s$", ErrInvalidMessageIDFormat, name)
}

func randomDigits(template string) string {
	out := []byte(template)
	for i, c := range out {
		if c >= '0' && c <= '9' {
			out[i] = byte('0' + rand.Intn(10))
		}
	}
	return string(out)
}

// formatDatePattern formats t with a date pattern made of runs of letters:
// y (year), M (month), d (day), H (hour 0-23), h (hour 1-12), m (minute),
// s (second), S (millisecond), a (AM/PM) and Z (zone offset). Text between
// single quotes is copied literally.
func formatDatePattern(pattern string, t time.Time) (string, error) {
	var b strings.Builder
	for i := 0; i < len(pattern); {
		c := pattern[i]
		if c == '\'' {
			end := strings.IndexByte(pattern[i+1:], '\'')
			if end < 0 {
				return "", fmt.Errorf("%w: unterminated quote in date pattern %q", ErrInvalidMessageIDFormat, pattern)
			}
			b.WriteString(pattern[i+1 : i+1+end])
			i += end + 2
			continue
		}
		if !isASCIILetter(c) {
			b.WriteByte(c)
			i++
			continue
		}

		n := 1
		for i+n < len(pattern) && pattern[i+n] == c {
			n++
		}
		i += n

		switch c {
		case 'y':
			if n == 2 {
				fmt.Fprintf(&b, "%02d", t.Year()%100)
			} else {
				fmt.Fprintf(&b, "%0*d", n, t.Year())
			}
		case 'M':
			if n >= 3 {
				b.WriteString(t.Month().String()[:3])
			} else {
				fmt.Fprintf(&b, "%0*d", n, int(t.Month()))
			}
		case 'd':
			fmt.Fprintf(&b, "%0*d", n, t.Day())
		case 'H':
			fmt.Fprintf(&b, "%0*d", n, t.Hour())
		case 'h':
			h := t.Hour() % 12
			if h == 0 {
				h = 12
			}
			fmt.Fprintf(&b, "%0*d", n, h)
		case 'm':
			fmt.Fprintf(&b, "%0*d", n, t.Minute())
		case 's':
			fmt.Fprintf(&b, "%0*d", n, t.Second())
		case 'S':
			fmt.Fprintf(&b, "%0*d", n, t.Nanosecond()/int(time.Millisecond))
		case 'a':
			b.WriteString(t.Format("PM"))
		case 'Z':
			b.WriteString(t.Format("-0700"))
		default:
			return "", fmt.Errorf("%w: unsupported date letter %q", ErrInvalidMessageIDFormat, c)
		}
	}
	return b.String(), nil
}

func isASCIILetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
