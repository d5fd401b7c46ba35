package cache

import (
	"encoding/json"
	"net/url"
	"strings"
)

// Key addresses one cached value: a resource name followed by normalized
// parameters. Keys compare by value.
type Key struct {
	parts []string
}

// NewKey builds a key from its parts. The first part names the resource.
func NewKey(parts ...string) Key {
	return Key{parts: append([]string(nil), parts...)}
}

// ParamsKey appends the canonical encoding of params to resource and scope.
// Empty values are dropped and the rest are sorted, so two parameter sets
// selecting the same data map to the same key.
func ParamsKey(params url.Values, parts ...string) Key {
	clean := url.Values{}
	for k, vs := range params {
		for _, v := range vs {
			if v = strings.TrimSpace(v); v != "" {
				clean.Add(k, v)
			}
		}
	}
	return NewKey(append(parts, clean.Encode())...)
}

func (k Key) Parts() []string { return append([]string(nil), k.parts...) }

func (k Key) Len() int { return len(k.parts) }

// Part returns the i-th part or "" when out of range.
func (k Key) Part(i int) string {
	if i < 0 || i >= len(k.parts) {
		return ""
	}
	return k.parts[i]
}

// Resource is the first part of the key.
func (k Key) Resource() string { return k.Part(0) }

// Append returns a new key with extra parts.
func (k Key) Append(parts ...string) Key {
	out := make([]string, 0, len(k.parts)+len(parts))
	out = append(out, k.parts...)
	return Key{parts: append(out, parts...)}
}

// HasPrefix reports whether every part of prefix leads k.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix.parts) > len(k.parts) {
		return false
	}
	for i, p := range prefix.parts {
		if k.parts[i] != p {
			return false
		}
	}
	return true
}

func (k Key) Equal(o Key) bool {
	return len(k.parts) == len(o.parts) && k.HasPrefix(o)
}

// String renders the key as a JSON array, e.g. ["budgets","2024-05"].
func (k Key) String() string {
	parts := k.parts
	if parts == nil {
		parts = []string{}
	}
	b, _ := json.Marshal(parts)
	return string(b)
}
