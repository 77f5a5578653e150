// Package commitment provides deterministic canonical-JSON hashing used
// wherever two independent nodes must agree on a byte-identical digest of a
// Go value: transaction identifiers, the genesis document hash recorded in
// InitChain, and query-response ETags. It does not touch the TCT's
// commitment/nullifier arithmetic (pkg/tct owns that) or the verifiable
// state root (pkg/store/tree.go owns that) — this package only ever hashes
// values that are not already part of consensus-critical state, so a
// change to its hash has no bearing on chain determinism beyond whatever
// caller embeds the result in a transaction or log line.
package commitment

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// CanonicalizeJSON re-encodes raw JSON with map keys sorted and stable
// number/string formatting, so two semantically-equal JSON documents
// produced by different encoders hash identically.
func CanonicalizeJSON(raw []byte) ([]byte, error) {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return json.Marshal(canonicalizeValue(v))
}

func canonicalizeValue(v interface{}) interface{} {
	switch vv := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(vv))
		for k := range vv {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		ordered := make(map[string]interface{}, len(vv))
		for _, k := range keys {
			ordered[k] = canonicalizeValue(vv[k])
		}
		return ordered
	case []interface{}:
		out := make([]interface{}, len(vv))
		for i, e := range vv {
			out[i] = canonicalizeValue(e)
		}
		return out
	default:
		return vv
	}
}

// MarshalCanonical marshals v to JSON and canonicalizes the result.
func MarshalCanonical(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return CanonicalizeJSON(raw)
}

// HashBytes returns the hex-encoded SHA-256 digest of data.
func HashBytes(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// HashCanonical canonicalizes v and returns its hex-encoded SHA-256 digest.
// Used for the genesis document hash (pkg/genesis) and transaction
// identifiers (pkg/wire) — anything that needs a stable content-addressed
// id for a value that isn't itself part of the verifiable state tree.
func HashCanonical(v interface{}) (string, error) {
	canon, err := MarshalCanonical(v)
	if err != nil {
		return "", err
	}
	return HashBytes(canon), nil
}
