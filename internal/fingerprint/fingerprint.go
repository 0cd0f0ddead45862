// Package fingerprint derives stable dedup keys from request content.
//
// Two requests whose JSON bodies differ only in object key order or whitespace
// produce the same fingerprint; array order is preserved because it is
// semantically meaningful.
package fingerprint

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/verigate/verigate/internal/domain"
)

// Compute hashes method, path and the canonical rendering of body into a hex
// sha256 digest. body may be raw JSON bytes ([]byte or json.RawMessage), any
// JSON-serializable Go value, or nil. It is pure: no clock or I/O access.
func Compute(method, path string, body any) (string, error) {
	canonical, err := Canonicalize(body)
	if err != nil {
		return "", err
	}

	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Canonicalize renders body into a deterministic JSON encoding: object keys
// sorted lexicographically, array order preserved, scalars serialized stably.
// Non-serializable values (cycles, channels, invalid JSON bytes) fail closed.
func Canonicalize(body any) ([]byte, error) {
	if body == nil {
		return []byte("null"), nil
	}

	var raw []byte
	switch b := body.(type) {
	case []byte:
		raw = b
	case json.RawMessage:
		raw = b
	case string:
		raw = []byte(b)
	default:
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrNotSerializable, err)
		}
		raw = encoded
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		return []byte("null"), nil
	}

	// Decode with json.Number so numeric literals keep their original
	// formatting instead of round-tripping through float64.
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrNotSerializable, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after JSON value", domain.ErrNotSerializable)
	}

	var buf bytes.Buffer
	if err := writeCanonical(&buf, value); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, value any) error {
	switch v := value.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if v {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case json.Number:
		buf.WriteString(v.String())
	case string:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrNotSerializable, err)
		}
		buf.Write(encoded)
	case []any:
		buf.WriteByte('[')
		for i, elem := range v {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, elem); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			encodedKey, err := json.Marshal(k)
			if err != nil {
				return fmt.Errorf("%w: %v", domain.ErrNotSerializable, err)
			}
			buf.Write(encodedKey)
			buf.WriteByte(':')
			if err := writeCanonical(buf, v[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("%w: unsupported type %T", domain.ErrNotSerializable, value)
	}
	return nil
}
