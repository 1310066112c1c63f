package chat

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"golang.org/x/text/unicode/norm"
)

// DomainArchive prefixes archive digests. The version suffix allows the
// encoding to change without colliding with old digests.
const DomainArchive = "grouparchive/archive/v1"

// Digest returns the content hash of an archive.
// Format: hex(SHA256(DomainArchive + 0x00 + canonical JSON)).
func Digest(a Archive) (string, error) {
	people := make(map[string]Person, len(a.People))
	for id, p := range a.People {
		people[id] = p
	}
	messages := a.Messages
	if messages == nil {
		messages = []Message{}
	}

	canonical, err := CanonicalJSON(map[string]any{
		"group":    a.Group,
		"people":   people,
		"messages": messages,
	})
	if err != nil {
		return "", fmt.Errorf("digest: %w", err)
	}

	h := sha256.New()
	h.Write([]byte(DomainArchive))
	h.Write([]byte{0x00})
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// CanonicalJSON encodes v with object keys sorted bytewise, strings NFC
// normalized, no insignificant whitespace and no HTML escaping.
// Integers are written in decimal. Other numbers, which only occur inside
// preserved attachments, are written in the shortest form that parses back
// to the same float64, so 40.70 and 4.07e1 encode alike.
func CanonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var tree any
	if err := dec.Decode(&tree); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := writeCanonical(&buf, tree); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		buf.WriteString(strconv.FormatBool(val))
	case json.Number:
		if i, err := val.Int64(); err == nil {
			buf.WriteString(strconv.FormatInt(i, 10))
			return nil
		}
		f, err := val.Float64()
		if err != nil {
			return fmt.Errorf("number %s: %w", val, err)
		}
		buf.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
	case string:
		writeCanonicalString(buf, val)
	case []any:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, elem); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeCanonicalString(buf, k)
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[k]); err != nil {
				return fmt.Errorf("[%q]: %w", k, err)
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("unsupported type %T", v)
	}
	return nil
}

func writeCanonicalString(buf *bytes.Buffer, s string) {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	// Encode cannot fail for a string.
	_ = enc.Encode(norm.NFC.String(s))
	// Encoder appends a newline.
	buf.Truncate(buf.Len() - 1)
}
