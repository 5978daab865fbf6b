package request

import (
	"fmt"
	"net/http"
	"strings"
)

// Verb is the HTTP method of a request.
type Verb string

const (
	VerbGet     = Verb(http.MethodGet)
	VerbHead    = Verb(http.MethodHead)
	VerbPost    = Verb(http.MethodPost)
	VerbPut     = Verb(http.MethodPut)
	VerbDelete  = Verb(http.MethodDelete)
	VerbOptions = Verb(http.MethodOptions)
	VerbPatch   = Verb(http.MethodPatch)
)

// Verbs returns all supported verbs.
func Verbs() []Verb {
	return []Verb{VerbGet, VerbHead, VerbPost, VerbPut, VerbDelete, VerbOptions, VerbPatch}
}

// ParseVerb converts a case-insensitive method name to a supported Verb.
func ParseVerb(method string) (Verb, error) {
	v := Verb(strings.ToUpper(strings.TrimSpace(method)))
	if !v.IsSupported() {
		return "", fmt.Errorf(`verb "%s" is not supported`, method)
	}
	return v, nil
}

// IsSupported returns true if the verb is one of Verbs.
func (v Verb) IsSupported() bool {
	switch v {
	case VerbGet, VerbHead, VerbPost, VerbPut, VerbDelete, VerbOptions, VerbPatch:
		return true
	default:
		return false
	}
}

// InQuery returns true if the payload travels in the query string, it is true for GET and HEAD.
func (v Verb) InQuery() bool {
	return v == VerbGet || v == VerbHead
}

func (v Verb) String() string {
	return string(v)
}
