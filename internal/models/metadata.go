package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Metadata is an ordered multimap from element name to values. Keys keep
// their first insertion position; values keep insertion order per key.
type Metadata struct {
	keys   []string
	values map[string][]string
}

// NewMetadata returns an empty Metadata.
func NewMetadata() *Metadata {
	return &Metadata{values: make(map[string][]string)}
}

func (m *Metadata) init() {
	if m.values == nil {
		m.values = make(map[string][]string)
	}
}

// Add appends values to key, creating the key when absent.
func (m *Metadata) Add(key string, values ...string) {
	m.init()
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
		m.values[key] = nil
	}
	m.values[key] = append(m.values[key], values...)
}

// Replace sets key to exactly values.
func (m *Metadata) Replace(key string, values ...string) {
	m.init()
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = append([]string(nil), values...)
}

// Remove deletes key and all its values.
func (m *Metadata) Remove(key string) {
	if _, ok := m.values[key]; !ok {
		return
	}
	delete(m.values, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

// Get returns the first value for key.
func (m *Metadata) Get(key string) (string, bool) {
	if m == nil {
		return "", false
	}
	vals := m.values[key]
	if len(vals) == 0 {
		return "", false
	}
	return vals[0], true
}

// Values returns a copy of all values for key.
func (m *Metadata) Values(key string) []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.values[key]...)
}

// Has reports whether key is present.
func (m *Metadata) Has(key string) bool {
	if m == nil {
		return false
	}
	_, ok := m.values[key]
	return ok
}

// Keys returns keys in insertion order.
func (m *Metadata) Keys() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.keys...)
}

// Len returns the number of keys.
func (m *Metadata) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Equal compares two metadata sets. With ordered set, key order and value
// order must match; otherwise only the per-key value multisets are compared.
func (m *Metadata) Equal(other *Metadata, ordered bool) bool {
	if m.Len() != other.Len() {
		return false
	}
	if ordered {
		for i, k := range m.keys {
			if other.keys[i] != k || !equalStrings(m.values[k], other.values[k]) {
				return false
			}
		}
		return true
	}
	for _, k := range m.keys {
		theirs, ok := other.values[k]
		if !ok || !sameMultiset(m.values[k], theirs) {
			return false
		}
	}
	return true
}

// MarshalJSON renders the metadata as an object of string arrays in key order.
func (m *Metadata) MarshalJSON() ([]byte, error) {
	buf := &bytes.Buffer{}
	buf.WriteByte('{')
	for i, k := range m.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vals := m.values[k]
		if vals == nil {
			vals = []string{}
		}
		encoded, err := json.Marshal(vals)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(encoded)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON accepts an object whose values are strings or string arrays,
// keeping the document's key order.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("metadata must be a JSON object")
	}
	*m = Metadata{values: make(map[string][]string)}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("metadata key must be a string")
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		var many []string
		if err := json.Unmarshal(raw, &many); err == nil {
			m.Add(key, many...)
			continue
		}
		var one string
		if err := json.Unmarshal(raw, &one); err != nil {
			return fmt.Errorf("metadata %s: values must be strings", key)
		}
		m.Add(key, one)
	}
	_, err = dec.Token()
	return err
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func sameMultiset(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[string]int, len(a))
	for _, v := range a {
		counts[v]++
	}
	for _, v := range b {
		counts[v]--
		if counts[v] < 0 {
			return false
		}
	}
	return true
}
