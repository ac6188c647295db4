package disposition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilenameFromHeader(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"bare", "inline;filename=foo.pdf", "foo.pdf"},
		{"spaces", " inline ; filename = foo.pdf ", "foo.pdf"},
		{"many spaces", "  inline  ;  filename  =  foo.pdf  ", "foo.pdf"},
		{"upper name", "inline; FILENAME=foo.pdf", "foo.pdf"},
		{"mixed name", "inline; FiLeNaMe=foo.pdf", "foo.pdf"},
		{"upper type", "INLINE;filename=foo.pdf", "foo.pdf"},
		{"title type", "Attachment;filename=foo.pdf", "foo.pdf"},
		{"tabs", "\tinline\t;\tfilename\t=\tfoo.pdf\t", "foo.pdf"},
		{"double tabs", "\t\tinline\t\t;\t\tfilename\t\t=\t\tfoo.pdf\t\t", "foo.pdf"},
		{"tab space", "\t inline\t ;\t filename\t =\t foo.pdf\t ", "foo.pdf"},
		{"folded", "\r\n inline\r\n ;\r\n filename\r\n =\r\n foo.pdf\r\n ", "foo.pdf"},
		{"folded tab", "inline\r\n\t;filename=foo.pdf", "foo.pdf"},
		{"folded twice", "inline\r\n \r\n ;filename=foo.pdf", "foo.pdf"},
		{"other param after", "inline;filename=foo.pdf;bar=baz", "foo.pdf"},
		{"other param before", "inline;bar=baz;filename=foo.pdf", "foo.pdf"},
		{"quoted space", `inline;filename="foo bar.pdf"`, "foo bar.pdf"},
		{"quoted leading space", `inline;filename = " foo.pdf" `, " foo.pdf"},
		{"quoted", `inline;filename="foo.pdf"`, "foo.pdf"},
		{"quoted spaced", `inline;filename = "foo.pdf"`, "foo.pdf"},
		{"escaped quotes", `inline;filename="foo \"bar\" baz.pdf"`, `foo "bar" baz.pdf`},
		{"escaped control", "inline;filename=\"foo\\\n.pdf\"", "foo\n.pdf"},
		{"escaped normal", `inline;filename="foo.p\df"`, "foo.pdf"},
		{"quoted separators", `inline;filename="foo<>.pdf"`, "foo<>.pdf"},
		{"quoted at", `inline;filename="foo@bar.pdf"`, "foo@bar.pdf"},
		{"attribute inside quotes", `inline;bar="bar;filename=baz.pdf;qux";filename=foo.pdf`, "foo.pdf"},
		{"attribute inside trailing quotes", `inline;filename=foo.pdf;bar="bar;filename=baz.pdf"`, "foo.pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FilenameFromHeader(tt.header)
			require.True(t, ok, "header %q", tt.header)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFilenameAbsent(t *testing.T) {
	headers := []string{
		"",
		"inline",
		"attachment",
		"inline;",
		"attachment; ",
		"inline; bar=baz",
		"inline; filename=",
		`inline; filename=""`,
		`attachment; filename*=UTF-8''`,
		"filename=foo.pdf",
		";filename=foo.pdf",
		" ;filename=foo.pdf",
		"inline;filename=foo<>.pdf",
		"inline;filename=foo@bar.pdf",
		"inline;filename=foo\r\n.pdf",
		"inline;filename=foo\b.pdf",
		"inline;filename=foo bar.pdf",
		"inline;filename=foo\tbar.pdf",
		`inline;filename="foo bar.pdf`,
		`inline;filename="foo bar.pdf\"`,
		`inline;filename="foo "bar" baz.pdf"`,
		"inline;filename=\"foo\r\n.pdf\"",
		"inline;filename=\"foo\bbar.pdf\"",
		"inline;filename=foo.pdf;bar=baz@.pdf",
		"inline;;filename=foo.pdf",
		"inline;filename=foo.pdf;",
		"inline;filename=foo.pdf; ",
		"inline;filename=foo.pdf;filename=bar.pdf",
		`"inline";filename=foo.pdf`,
		"inline foo;filename=foo.pdf",
	}

	for _, h := range headers {
		got, ok := FilenameFromHeader(h)
		assert.False(t, ok, "header %q resolved to %q", h, got)
	}
}

func TestParseErrors(t *testing.T) {
	headers := []string{
		"",
		"inline;",
		"inline;;a=b",
		"inline;a=b;A=c",
		"inline;a*=UTF-8''x;A*=UTF-8''y",
		"inline;*=b",
		"inline;a*b=c",
		"inline;a**=c",
		"inline;a=",
		"inline;a",
		`inline;a="b`,
		"inline;a=b c",
		`attachment; filename*=UTF-8''%E2%82%AC%20rates.pdf"`,
	}

	for _, h := range headers {
		_, err := Parse(h)
		assert.ErrorIs(t, err, ErrInvalidHeader, "header %q", h)
	}
}

func TestParseTokenRoundTrip(t *testing.T) {
	values := []string{"foo.pdf", "a", "x-y_z~1", "!#$%&'*+.^`|", "UPPER.PDF"}
	for _, val := range values {
		v, err := Parse("attachment; name=" + val)
		require.NoError(t, err, "value %q", val)
		assert.Equal(t, "attachment", v.Type)
		assert.Equal(t, val, v.Params["name"])
	}
}

func TestParseEscapes(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{`inline; a="\""`, `"`},
		{`inline; a="\\"`, `\`},
		{"inline; a=\"\\\x01\\\x1f\"", "\x01\x1f"},
		{`inline; a="x\yz"`, "xyz"},
		{"inline; a=\"\\\r\\\n\"", "\r\n"},
	}
	for _, tt := range tests {
		v, err := Parse(tt.header)
		require.NoError(t, err, "header %q", tt.header)
		assert.Equal(t, tt.want, v.Params["a"])
	}
}

func TestParseLowercasesNamesAndType(t *testing.T) {
	v, err := Parse("ATTACHMENT; Size=42; FileName=Report.PDF")
	require.NoError(t, err)
	assert.Equal(t, "attachment", v.Type)
	assert.Equal(t, map[string]string{"size": "42", "filename": "Report.PDF"}, v.Params)
}

func TestParseExtended(t *testing.T) {
	v, err := Parse("attachment; filename*=UTF-8''%E2%82%AC%20rates.pdf")
	require.NoError(t, err)
	assert.Equal(t, "€ rates.pdf", v.Params["filename*"])

	_, err = Parse(`attachment; filename*="UTF-8''foo.pdf"`)
	require.ErrorIs(t, err, ErrInvalidHeader)
	assert.Contains(t, err.Error(), "invalid extended field value")
}

func TestFilenamePrefersExtended(t *testing.T) {
	headers := []string{
		`attachment; filename="EURO rates.pdf"; filename*=UTF-8''%E2%82%AC%20rates.pdf`,
		`attachment; filename*=UTF-8''%E2%82%AC%20rates.pdf; filename="EURO rates.pdf"`,
		`attachment; FILENAME*=utf-8''%E2%82%AC%20rates.pdf; Filename=EURO.pdf`,
	}
	for _, h := range headers {
		got, ok := FilenameFromHeader(h)
		require.True(t, ok, "header %q", h)
		assert.Equal(t, "€ rates.pdf", got)
	}
}

func TestContinuationsAreNotReassembled(t *testing.T) {
	v, err := Parse(`attachment; filename*0="foo"; filename*1=".pdf"; filename*02*=UTF-8''x`)
	require.NoError(t, err)
	assert.Equal(t, "foo", v.Params["filename*0"])
	assert.Equal(t, ".pdf", v.Params["filename*1"])
	assert.Equal(t, "UTF-8''x", v.Params["filename*02*"])

	_, ok := Filename(v)
	assert.False(t, ok)

	_, err = Parse("attachment; filename*0=a; FILENAME*0=b")
	assert.ErrorIs(t, err, ErrInvalidHeader)
}

func TestFilenameNil(t *testing.T) {
	_, ok := Filename(nil)
	assert.False(t, ok)
}

func TestFilenameEmptyValue(t *testing.T) {
	v, err := Parse(`attachment; filename=""`)
	require.NoError(t, err)
	assert.Contains(t, v.Params, "filename")

	name, ok := Filename(v)
	assert.False(t, ok)
	assert.Empty(t, name)
}
