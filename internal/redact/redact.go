// Package redact replaces values at sensitive keys and headers with a
// fixed redaction marker.
package redact

import (
	"reflect"
	"strings"
)

// Marker is the value substituted for redacted fields
const Marker = "[REDACTED]"

// DefaultSensitiveFields are matched as case-insensitive substrings
// against object keys at any nesting depth.
var DefaultSensitiveFields = []string{
	"password",
	"passwd",
	"secret",
	"token",
	"api_key",
	"apikey",
	"authorization",
	"credential",
	"private_key",
	"credit_card",
	"card_number",
	"cvv",
	"ssn",
	"session_id",
}

// DefaultSensitiveHeaders are matched case-insensitively by exact name.
var DefaultSensitiveHeaders = []string{
	"authorization",
	"proxy-authorization",
	"cookie",
	"set-cookie",
	"x-api-key",
	"x-auth-token",
	"x-csrf-token",
}

// Headers returns a shallow copy of the header map with values at
// sensitive header names replaced by the marker. Matching is
// case-insensitive and exact.
func Headers(headers map[string]string, sensitive []string) map[string]string {
	if headers == nil {
		return nil
	}

	lookup := make(map[string]bool, len(sensitive))
	for _, name := range sensitive {
		lookup[strings.ToLower(name)] = true
	}

	out := make(map[string]string, len(headers))
	for name, value := range headers {
		if lookup[strings.ToLower(name)] {
			out[name] = Marker
		} else {
			out[name] = value
		}
	}
	return out
}

// Value deep-clones v and replaces the value at every key whose
// lowercased form contains a sensitive substring. Children of a
// redacted key are not visited again. A recursion-path set keyed by
// object identity guards against cyclic native structures.
func Value(v interface{}, sensitive []string) interface{} {
	lowered := make([]string, len(sensitive))
	for i, s := range sensitive {
		lowered[i] = strings.ToLower(s)
	}
	return redactValue(v, lowered, make(map[uintptr]bool))
}

// KeyMatches reports whether the key matches any sensitive substring
func KeyMatches(key string, sensitive []string) bool {
	lowered := strings.ToLower(key)
	for _, s := range sensitive {
		if s != "" && strings.Contains(lowered, strings.ToLower(s)) {
			return true
		}
	}
	return false
}

// seen holds the identities of containers on the current recursion
// path only; entries are removed on the way back up so a container
// referenced twice as a sibling is cloned twice, not nil'd. Zero-length
// containers are never tracked: they cannot participate in a cycle,
// and all empty slices share one backing address.
func redactValue(v interface{}, sensitive []string, seen map[uintptr]bool) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		if len(val) > 0 {
			ptr := reflect.ValueOf(val).Pointer()
			if seen[ptr] {
				// Cycle in the native object graph
				return nil
			}
			seen[ptr] = true
			defer delete(seen, ptr)
		}

		out := make(map[string]interface{}, len(val))
		for key, child := range val {
			if keyMatchesLowered(key, sensitive) {
				out[key] = Marker
				continue
			}
			out[key] = redactValue(child, sensitive, seen)
		}
		return out

	case []interface{}:
		if len(val) > 0 {
			ptr := reflect.ValueOf(val).Pointer()
			if seen[ptr] {
				return nil
			}
			seen[ptr] = true
			defer delete(seen, ptr)
		}

		out := make([]interface{}, len(val))
		for i, child := range val {
			out[i] = redactValue(child, sensitive, seen)
		}
		return out

	default:
		return v
	}
}

func keyMatchesLowered(key string, lowered []string) bool {
	k := strings.ToLower(key)
	for _, s := range lowered {
		if s != "" && strings.Contains(k, s) {
			return true
		}
	}
	return false
}
