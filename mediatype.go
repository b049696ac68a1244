package restree

import (
	"fmt"
	"mime"
	"strings"
)

// MediaType is a parsed media type such as "application/json".
type MediaType struct {
	Type    string
	Subtype string
	Params  map[string]string
}

// Common media types.
var (
	MediaTypeWildcard = MediaType{Type: "*", Subtype: "*"}
	MediaTypeJSON     = MediaType{Type: "application", Subtype: "json"}
	MediaTypeXML      = MediaType{Type: "application", Subtype: "xml"}
	MediaTypeText     = MediaType{Type: "text", Subtype: "plain"}
	MediaTypeForm     = MediaType{Type: "application", Subtype: "x-www-form-urlencoded"}
)

// ParseMediaType parses s, e.g. "application/json; charset=utf-8".
func ParseMediaType(s string) (MediaType, error) {
	full, params, err := mime.ParseMediaType(s)
	if err != nil {
		return MediaType{}, fmt.Errorf("parse media type %q: %w", s, err)
	}
	typ, sub, ok := strings.Cut(full, "/")
	if !ok {
		return MediaType{}, fmt.Errorf("parse media type %q: missing subtype", s)
	}
	if len(params) == 0 {
		params = nil
	}
	return MediaType{Type: typ, Subtype: sub, Params: params}, nil
}

// MustParseMediaType is like ParseMediaType but panics on error.
func MustParseMediaType(s string) MediaType {
	mt, err := ParseMediaType(s)
	if err != nil {
		panic(err)
	}
	return mt
}

func (m MediaType) String() string {
	return mime.FormatMediaType(m.Type+"/"+m.Subtype, m.Params)
}

// IsWildcard reports whether m is */*.
func (m MediaType) IsWildcard() bool {
	return m.Type == "*" && m.Subtype == "*"
}

// Compatible reports whether m and other match, honoring wildcards on
// either side. Parameters are ignored.
func (m MediaType) Compatible(other MediaType) bool {
	if m.Type == "*" || other.Type == "*" {
		return true
	}
	if !strings.EqualFold(m.Type, other.Type) {
		return false
	}
	return m.Subtype == "*" || other.Subtype == "*" || strings.EqualFold(m.Subtype, other.Subtype)
}

// matchesAny reports whether mt is compatible with any entry of set.
// An empty set matches everything.
func matchesAny(set []MediaType, mt MediaType) bool {
	if len(set) == 0 {
		return true
	}
	for _, s := range set {
		if s.Compatible(mt) {
			return true
		}
	}
	return false
}
