package disposition

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidHeader is returned (wrapped) for every malformed header value.
var ErrInvalidHeader = errors.New("disposition: invalid header")

// Value is a parsed Content-Disposition header.
type Value struct {
	// Type is the lowercased disposition type, e.g. "inline" or "attachment".
	Type string `json:"type"`

	// Params maps lowercased parameter names to their values.
	Params map[string]string `json:"params"`
}

type paramKind int

const (
	paramPlain paramKind = iota
	paramExtended
	paramContinuation
)

// Parse parses a raw Content-Disposition header value.
func Parse(raw string) (*Value, error) {
	if raw == "" {
		return nil, invalid("empty header")
	}

	s := &scanner{s: raw}
	s.skipSpace()

	typ := s.token()
	if typ == "" {
		return nil, invalid("missing disposition type")
	}

	v := &Value{
		Type:   strings.ToLower(typ),
		Params: make(map[string]string),
	}

	s.skipSpace()
	for !s.eof() {
		if !s.consume(';') {
			return nil, invalid("unexpected character %q after %q", s.peek(), s.s[:s.pos])
		}
		s.skipSpace()
		if s.eof() {
			return nil, invalid("trailing separator")
		}
		if s.peek() == ';' {
			return nil, invalid("empty parameter")
		}
		if err := s.param(v.Params); err != nil {
			return nil, err
		}
		s.skipSpace()
	}

	return v, nil
}

func (s *scanner) param(params map[string]string) error {
	name := s.token()
	if name == "" {
		return invalid("missing parameter name")
	}
	name = strings.ToLower(name)

	kind, ok := classifyName(name)
	if !ok {
		return invalid("malformed parameter name %q", name)
	}

	s.skipSpace()
	if !s.consume('=') {
		return invalid("missing value for parameter %q", name)
	}
	s.skipSpace()

	var (
		value  string
		quoted bool
		err    error
	)
	if !s.eof() && s.peek() == '"' {
		quoted = true
		value, err = s.quotedString()
		if err != nil {
			return err
		}
	} else {
		value = s.token()
		if value == "" {
			return invalid("missing value for parameter %q", name)
		}
	}

	if kind == paramExtended {
		if quoted {
			return errExtendedValue
		}
		value, err = DecodeExtValue(value)
		if err != nil {
			return err
		}
	}

	if _, dup := params[name]; dup {
		return invalid("duplicate parameter %q", name)
	}
	params[name] = value
	return nil
}

// classifyName reports how a lowercased parameter name is interpreted.
// The bool result is false for names that carry '*' in an invalid position.
func classifyName(name string) (paramKind, bool) {
	i := strings.IndexByte(name, '*')
	if i < 0 {
		return paramPlain, true
	}
	if i == 0 {
		return 0, false
	}
	rest := name[i+1:]
	if rest == "" {
		return paramExtended, true
	}
	rest = strings.TrimSuffix(rest, "*")
	if rest == "" {
		return 0, false
	}
	for j := 0; j < len(rest); j++ {
		if rest[j] < '0' || rest[j] > '9' {
			return 0, false
		}
	}
	return paramContinuation, true
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidHeader, fmt.Sprintf(format, args...))
}

// scanner walks a header value byte by byte.
type scanner struct {
	s   string
	pos int
}

func (s *scanner) eof() bool { return s.pos >= len(s.s) }

func (s *scanner) peek() byte { return s.s[s.pos] }

func (s *scanner) consume(c byte) bool {
	if !s.eof() && s.s[s.pos] == c {
		s.pos++
		return true
	}
	return false
}

// skipSpace consumes SP, HTAB and folded line breaks.
func (s *scanner) skipSpace() {
	for !s.eof() {
		switch c := s.s[s.pos]; {
		case c == ' ' || c == '\t':
			s.pos++
		case c == '\r' && s.pos+2 < len(s.s) && s.s[s.pos+1] == '\n' &&
			(s.s[s.pos+2] == ' ' || s.s[s.pos+2] == '\t'):
			s.pos += 3
		default:
			return
		}
	}
}

// token consumes the longest run of token characters.
func (s *scanner) token() string {
	start := s.pos
	for !s.eof() && isTokenChar(s.s[s.pos]) {
		s.pos++
	}
	return s.s[start:s.pos]
}

// quotedString consumes a quoted-string starting at the opening quote and
// returns its unescaped content.
func (s *scanner) quotedString() (string, error) {
	s.pos++ // opening quote

	var b strings.Builder
	for !s.eof() {
		c := s.s[s.pos]
		switch {
		case c == '"':
			s.pos++
			return b.String(), nil
		case c == '\\':
			if s.pos+1 >= len(s.s) {
				return "", invalid("unterminated quoted string")
			}
			b.WriteByte(s.s[s.pos+1])
			s.pos += 2
		case isControl(c):
			return "", invalid("control character %q in quoted string", c)
		default:
			b.WriteByte(c)
			s.pos++
		}
	}
	return "", invalid("unterminated quoted string")
}

func isControl(c byte) bool {
	return c < 0x20 || c == 0x7f
}

func isTokenChar(c byte) bool {
	if c <= ' ' || c >= 0x7f {
		return false
	}
	return strings.IndexByte(`()<>@,;:\"/[]?={}`, c) < 0
}
