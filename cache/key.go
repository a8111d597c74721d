package cache

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"reflect"

	"golang.org/x/crypto/blake2b"
)

// KeyParams describes a logical query: the type tag plus whatever parameters
// identify the data being cached (search text, country, channel ID set, ...).
type KeyParams map[string]any

// maxEncodedKeyLen bounds the reversible token form. Canonical JSON longer
// than this is digested instead so keys stay usable as primary keys and
// Redis keys.
const maxEncodedKeyLen = 200

// DeriveKey maps a logical query onto an opaque, deterministic cache key.
//
// Parameters that are nil, empty strings, or empty slices/maps are dropped,
// the remainder is marshalled as canonical JSON (object keys sorted), and the
// result is encoded as unpadded base64url. Oversized canonical forms are
// replaced by a BLAKE2b-256 hex digest of the same bytes. Two semantically
// equal queries therefore always derive the same key regardless of parameter
// order, and distinct queries collide only with digest probability.
func DeriveKey(params KeyParams) (string, error) {
	canonical, err := json.Marshal(pruneMap(params))
	if err != nil {
		return "", fmt.Errorf("cache: derive key: %w", err)
	}

	encoded := base64.RawURLEncoding.EncodeToString(canonical)
	if len(encoded) <= maxEncodedKeyLen {
		return encoded, nil
	}

	digest := blake2b.Sum256(canonical)
	return hex.EncodeToString(digest[:]), nil
}

// pruneMap removes semantically empty values so that an unset parameter and
// an absent one derive the same key.
func pruneMap(params map[string]any) map[string]any {
	pruned := make(map[string]any, len(params))
	for name, value := range params {
		if v, ok := pruneValue(value); ok {
			pruned[name] = v
		}
	}
	return pruned
}

func pruneValue(value any) (any, bool) {
	if value == nil {
		return nil, false
	}
	switch v := value.(type) {
	case string:
		if v == "" {
			return nil, false
		}
		return v, true
	case map[string]any:
		pruned := pruneMap(v)
		if len(pruned) == 0 {
			return nil, false
		}
		return pruned, true
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		if rv.Len() == 0 {
			return nil, false
		}
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return nil, false
		}
		return pruneValue(rv.Elem().Interface())
	}
	return value, true
}
