// Package fingerprint derives the deterministic cache key every request
// collapses to: two requests that are semantically equivalent must produce
// byte-identical fingerprints, and requests that differ in any
// observable way must not collide.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
)

// Generator overrides the default canonicalization for an endpoint that
// needs custom cache-key semantics (e.g. ignoring a parameter that doesn't
// affect the response).
type Generator func(adapterName, endpointName, transportName string, params map[string]interface{}) string

// Compute derives the fingerprint for (adapterName, endpointName,
// transportName, params). If gen is non-nil it is used instead of the
// default canonicalization.
func Compute(adapterName, endpointName, transportName string, params map[string]interface{}, gen Generator) string {
	if gen != nil {
		return gen(adapterName, endpointName, transportName, params)
	}

	canonical := canonicalize(params)
	raw := fmt.Sprintf("%s\x1f%s\x1f%s\x1f%s", adapterName, endpointName, transportName, canonical)
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// canonicalize renders params as a stable string: map keys sorted
// recursively, same-type numeric encodings normalized so that e.g. 1 and
// 1.0 collapse to the same token. A string value is always quoted as a
// string and never reinterpreted as a number — "1" and 1 are distinct
// parameters, since JSON types are part of a request's semantics.
func canonicalize(value interface{}) string {
	switch v := value.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := "{"
		for i, k := range keys {
			if i > 0 {
				out += ","
			}
			out += strconv.Quote(k) + ":" + canonicalize(v[k])
		}
		return out + "}"
	case []interface{}:
		out := "["
		for i, elem := range v {
			if i > 0 {
				out += ","
			}
			out += canonicalize(elem)
		}
		return out + "]"
	case string:
		return strconv.Quote(v)
	case float64:
		return normalizeNumber(v)
	case int:
		return normalizeNumber(float64(v))
	case int64:
		return normalizeNumber(float64(v))
	case bool:
		return strconv.FormatBool(v)
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%v", v)
	}
}

// normalizeNumber renders a float so 1, 1.0, and 1.00 all produce "1" —
// integral values drop the fractional part and trailing zeros, matching
// the fingerprint invariant that numeric encoding differences don't
// distinguish otherwise-identical requests.
func normalizeNumber(n float64) string {
	if n == float64(int64(n)) {
		return strconv.FormatInt(int64(n), 10)
	}
	return strconv.FormatFloat(n, 'g', -1, 64)
}
