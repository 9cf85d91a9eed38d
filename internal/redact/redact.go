// Package redact scrubs sensitive values from log payloads.
//
// Logging must never be the reason a request fails: every function in this
// package returns a scrubbed copy and never panics or returns an error.
package redact

import (
	"encoding/json"
	"net/url"
	"regexp"
	"strings"
)

// Mask replaces sensitive values in structured payloads.
const Mask = "*****"

// MaskXML replaces sensitive element content in markup payloads.
const MaskXML = "********"

// DefaultKeys are the field names treated as sensitive when no custom set is
// configured. Matching is case-insensitive.
var DefaultKeys = []string{
	"password",
	"passwd",
	"secret",
	"client_secret",
	"authorization",
	"access_token",
	"refresh_token",
	"id_token",
	"token",
	"code",
	"api_key",
	"apikey",
	"card_number",
	"cvv",
}

// Filter holds the configured sensitive-key set.
type Filter struct {
	keys map[string]struct{}
}

// New creates a Filter for the given keys. With no arguments it uses
// DefaultKeys.
func New(keys ...string) *Filter {
	if len(keys) == 0 {
		keys = DefaultKeys
	}
	f := &Filter{keys: make(map[string]struct{}, len(keys))}
	for _, k := range keys {
		f.keys[strings.ToLower(k)] = struct{}{}
	}
	return f
}

// Sensitive reports whether key is in the filter set.
func (f *Filter) Sensitive(key string) bool {
	_, ok := f.keys[strings.ToLower(key)]
	return ok
}

// Value walks a decoded JSON-shaped value (map / slice / scalar) and returns
// a new value with every sensitive key masked. The input is never mutated.
func (f *Filter) Value(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if f.Sensitive(k) {
				out[k] = Mask
				continue
			}
			out[k] = f.Value(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = f.Value(val)
		}
		return out
	default:
		return v
	}
}

// String scrubs an arbitrary log payload. JSON payloads are decoded, walked
// and re-encoded; anything unparseable falls back to the flat form-encoded
// treatment.
func (f *Filter) String(data string) string {
	trimmed := strings.TrimSpace(data)
	if trimmed == "" {
		return data
	}

	var decoded any
	if err := json.Unmarshal([]byte(trimmed), &decoded); err == nil {
		if _, ok := decoded.(map[string]any); ok {
			scrubbed, err := json.Marshal(f.Value(decoded))
			if err == nil {
				return string(scrubbed)
			}
		}
		if _, ok := decoded.([]any); ok {
			scrubbed, err := json.Marshal(f.Value(decoded))
			if err == nil {
				return string(scrubbed)
			}
		}
	}

	return f.Form(data)
}

// Form scrubs a "key=value&key=value" encoded string, re-assembled with one
// pair per line for log readability.
func (f *Filter) Form(data string) string {
	if data == "" {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n")
	for _, param := range strings.Split(data, "&") {
		key, value, hasValue := strings.Cut(param, "=")
		if key == "" && !hasValue {
			continue
		}
		if hasValue && f.Sensitive(key) {
			value = Mask
		}
		if hasValue {
			b.WriteString(decodeComponent(key + "=" + value))
		} else {
			b.WriteString(decodeComponent(key))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// XML scrubs sensitive element and custom-attribute content in markup
// payloads using a tag scan rather than full parsing.
func (f *Filter) XML(data string) string {
	out := data
	for key := range f.keys {
		k := regexp.QuoteMeta(key)
		elem := regexp.MustCompile(`(?i)(<` + k + `>)(.*?)(</` + k + `>)`)
		out = elem.ReplaceAllString(out, "${1}"+MaskXML+"${3}")
		attr := regexp.MustCompile(`(?i)(<custom-attribute attribute-id="` + k + `">)(.*?)(</custom-attribute>)`)
		out = attr.ReplaceAllString(out, "${1}"+MaskXML+"${3}")
	}
	return out
}

func decodeComponent(s string) string {
	decoded, err := url.QueryUnescape(s)
	if err != nil {
		return s
	}
	return decoded
}
