package disposition

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

var errExtendedValue = fmt.Errorf("%w: invalid extended field value", ErrInvalidHeader)

// charsets is the closed set of charsets accepted in extended values.
var charsets = map[string]encoding.Encoding{
	"utf-8":      unicode.UTF8,
	"iso-8859-1": charmap.ISO8859_1,
}

// DecodeExtValue decodes an RFC 5987 extended value of the form
// charset'lang'pct-encoded. Bytes that are invalid in the declared charset
// decode to U+FFFD.
func DecodeExtValue(raw string) (string, error) {
	charset, rest, ok := strings.Cut(raw, "'")
	if !ok || charset == "" {
		return "", errExtendedValue
	}
	_, encoded, ok := strings.Cut(rest, "'")
	if !ok {
		return "", errExtendedValue
	}

	enc, ok := charsets[strings.ToLower(charset)]
	if !ok {
		return "", errExtendedValue
	}

	decoded, err := percentDecode(encoded)
	if err != nil {
		return "", err
	}

	out, err := enc.NewDecoder().Bytes(decoded)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errExtendedValue, err)
	}
	return string(out), nil
}

func percentDecode(s string) ([]byte, error) {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '%' {
			out = append(out, s[i])
			continue
		}
		if i+2 >= len(s) {
			return nil, errExtendedValue
		}
		hi, ok1 := unhex(s[i+1])
		lo, ok2 := unhex(s[i+2])
		if !ok1 || !ok2 {
			return nil, errExtendedValue
		}
		out = append(out, hi<<4|lo)
		i += 2
	}
	return out, nil
}

func unhex(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
