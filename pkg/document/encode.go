package document

import (
	"bytes"
	"encoding/json"
	"unicode/utf8"
)

// Canonical returns the canonical serialized form of d: compact JSON with
// object keys in sorted order and no HTML escaping.
func (d Document) Canonical() []byte {
	var buf bytes.Buffer
	d.appendTo(&buf)
	return buf.Bytes()
}

// MarshalJSON implements json.Marshaler using the canonical form.
func (d Document) MarshalJSON() ([]byte, error) {
	return d.Canonical(), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Document) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// KeyToken returns the longest run of key made only of characters that JSON
// encoders write verbatim. Any serialization of a document holding key
// contains the token, whichever encoder produced it: Go, PostgreSQL jsonb and
// HTML-safe encoders differ only in how they escape the excluded characters.
// A key with no such run yields "", which every document contains.
func KeyToken(key string) string {
	best, start := "", -1
	end := func(i int) {
		if start >= 0 && i-start > len(best) {
			best = key[start:i]
		}
		start = -1
	}
	for i, r := range key {
		if !verbatim(r) {
			end(i)
			continue
		}
		if start < 0 {
			start = i
		}
	}
	end(len(key))
	return best
}

// verbatim reports whether r is written unescaped by every JSON encoder.
// utf8.RuneError also stands for invalid bytes, which encoders replace.
func verbatim(r rune) bool {
	switch r {
	case '"', '\\', '<', '>', '&', 0x7f, '\u2028', '\u2029', utf8.RuneError:
		return false
	}
	return r >= 0x20
}

func (d Document) appendTo(buf *bytes.Buffer) {
	switch d.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		if d.b {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case KindNumber:
		buf.WriteString(d.s)
	case KindString:
		buf.WriteString(quote(d.s))
	case KindArray:
		buf.WriteByte('[')
		for i, item := range d.arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			item.appendTo(buf)
		}
		buf.WriteByte(']')
	case KindObject:
		buf.WriteByte('{')
		for i, k := range d.Keys() {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteString(quote(k))
			buf.WriteByte(':')
			d.obj[k].appendTo(buf)
		}
		buf.WriteByte('}')
	}
}

// quote JSON-encodes s without escaping <, > and &.
func quote(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s) // encoding a string cannot fail
	return string(bytes.TrimRight(buf.Bytes(), "\n"))
}
