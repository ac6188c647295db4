package disposition

// Filename returns the filename carried by v. The extended "filename*" form
// takes precedence over the plain "filename" form. Continuation segments
// ("filename*0", ...) are not reassembled and count as absent, as does an
// empty value.
func Filename(v *Value) (string, bool) {
	if v == nil {
		return "", false
	}
	if name := v.Params["filename*"]; name != "" {
		return name, true
	}
	if name := v.Params["filename"]; name != "" {
		return name, true
	}
	return "", false
}

// FilenameFromHeader parses raw and resolves its filename. A malformed header
// yields no filename.
func FilenameFromHeader(raw string) (string, bool) {
	v, err := Parse(raw)
	if err != nil {
		return "", false
	}
	return Filename(v)
}
