package domain

// Tokens is the access/refresh bearer pair. Both strings are opaque; the
// client never parses expiry and discovers staleness reactively through a
// 401 on use.
type Tokens struct {
	Access  string
	Refresh string
}

// Complete reports whether both halves of the pair are present.
func (t Tokens) Complete() bool {
	return t.Access != "" && t.Refresh != ""
}

// Empty reports whether neither token is present.
func (t Tokens) Empty() bool {
	return t.Access == "" && t.Refresh == ""
}
