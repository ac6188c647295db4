package disposition

import (
	"mime"
	"strings"
)

// Format builds a header value of the given type carrying filename. Non-ASCII
// names use the extended "filename*" form with the UTF-8 charset. Control
// characters in filename are replaced with '_'. Format returns "" when dispType
// is not a valid token.
func Format(dispType, filename string) string {
	if filename == "" {
		return mime.FormatMediaType(dispType, nil)
	}
	filename = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return '_'
		}
		return r
	}, filename)
	return mime.FormatMediaType(dispType, map[string]string{"filename": filename})
}
