package mediacloud

import (
	"crypto/sha1" // #nosec G505 - digest mandated by the provider's signing protocol
	"encoding/base64"
	"encoding/hex"
	"sort"
	"strings"
)

// SignParams computes the provider's request signature: parameters are
// sorted by key (byte-wise), joined as "key=value" with "&", the raw API
// secret is appended, and the SHA-1 digest of the result is hex-encoded.
// Entries with empty values are dropped; the api_key and signature
// parameters must not be included by the caller.
// Provider verification is strict, so this canonical form is reproduced
// bit for bit.
func SignParams(params map[string]string, apiSecret string) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if v == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}

	canonical := strings.Join(pairs, "&") + apiSecret
	sum := sha1.Sum([]byte(canonical)) // #nosec G401 - provider protocol
	return hex.EncodeToString(sum[:])
}

// BasicAuth returns the Authorization header value for the provider's
// read-only endpoints: base64("apiKey:apiSecret") with the Basic prefix.
func BasicAuth(apiKey, apiSecret string) string {
	token := base64.StdEncoding.EncodeToString([]byte(apiKey + ":" + apiSecret))
	return "Basic " + token
}
