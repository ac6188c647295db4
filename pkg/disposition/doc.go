// Package disposition parses Content-Disposition header values.
//
// The parser is strict: any deviation from the grammar makes the whole value
// invalid, and callers treat an invalid header as carrying no filename.
//
// # Grammar
//
//	disposition = type *( ";" param )
//	param       = name [ "*" ] [ "*" digits ] "=" ( token / quoted-string )
//
// Whitespace (SP, HTAB) and folded line breaks (CRLF followed by SP or HTAB)
// may appear around the type, separators, names and "=". Inside a
// quoted-string a backslash escapes the next character verbatim, including
// control characters and quotes.
//
// # Parameters
//
// Names are case-insensitive and stored lowercased:
//   - "name" holds a plain value.
//   - "name*" holds an RFC 5987 extended value (charset'lang'pct-encoded),
//     stored decoded. Extended values may not be quoted.
//   - "name*N" and "name*N*" are RFC 2231 continuation segments, stored raw
//     under their literal name and never reassembled.
//
// # Usage
//
//	name, ok := disposition.FilenameFromHeader(resp.Header.Get("Content-Disposition"))
//	if !ok {
//	    // no usable filename
//	}
package disposition
