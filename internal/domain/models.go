package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Well-known record keys.
const (
	KeyTitle       = "title"
	KeyImage       = "image"
	KeyURL         = "url"
	KeyDescription = "description"
)

// ErrNotObject is returned when a record is decoded from JSON that is not an object.
var ErrNotObject = errors.New("record is not a JSON object")

// Field is one key of a Record with its raw JSON value.
type Field struct {
	Key   string
	Value json.RawMessage
}

// Record is one game entry: a flat key/value mapping that keeps the key order
// and raw values it was decoded with.
type Record struct {
	fields []Field
}

// NewRecord builds the record shape the dev server appends.
func NewRecord(title, image, description string) Record {
	var r Record
	r.Set(KeyTitle, title)
	r.Set(KeyImage, image)
	r.Set(KeyDescription, description)
	return r
}

// Fields returns a copy of the record fields in order.
func (r Record) Fields() []Field {
	out := make([]Field, len(r.fields))
	copy(out, r.fields)
	return out
}

// Clone returns a deep copy that can be modified without affecting r.
func (r Record) Clone() Record {
	out := Record{fields: make([]Field, len(r.fields))}
	for i, f := range r.fields {
		out.fields[i] = Field{Key: f.Key, Value: append(json.RawMessage(nil), f.Value...)}
	}
	return out
}

// Len returns the number of fields.
func (r Record) Len() int { return len(r.fields) }

// Has reports whether key is present, whatever its value type.
func (r Record) Has(key string) bool {
	return r.index(key) >= 0
}

// Get returns the string value for key. ok is false when the key is absent or
// its value is not a JSON string.
func (r Record) Get(key string) (string, bool) {
	i := r.index(key)
	if i < 0 {
		return "", false
	}
	res := gjson.ParseBytes(r.fields[i].Value)
	if res.Type != gjson.String {
		return "", false
	}
	return res.String(), true
}

// Raw returns the raw JSON value for key.
func (r Record) Raw(key string) (json.RawMessage, bool) {
	i := r.index(key)
	if i < 0 {
		return nil, false
	}
	return r.fields[i].Value, true
}

// Title returns the title string, or "" when absent.
func (r Record) Title() string {
	title, _ := r.Get(KeyTitle)
	return title
}

// Set stores a string value, replacing an existing key in place or appending a new one.
func (r *Record) Set(key, value string) {
	r.SetRaw(key, encodeString(value))
}

func encodeString(s string) json.RawMessage {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	return bytes.TrimRight(buf.Bytes(), "\n")
}

// SetRaw stores a raw JSON value. The caller guarantees value is valid JSON.
func (r *Record) SetRaw(key string, value json.RawMessage) {
	v := append(json.RawMessage(nil), value...)
	if i := r.index(key); i >= 0 {
		r.fields[i].Value = v
		return
	}
	r.fields = append(r.fields, Field{Key: key, Value: v})
}

func (r Record) index(key string) int {
	for i, f := range r.fields {
		if f.Key == key {
			return i
		}
	}
	return -1
}

// MarshalJSON encodes the fields in their stored order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		if len(f.Value) == 0 {
			buf.WriteString("null")
			continue
		}
		buf.Write(f.Value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object keeping key order and raw values. A repeated
// key stays at its first position and takes the last value.
func (r *Record) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid record json")
	}
	res := gjson.ParseBytes(data)
	if !res.IsObject() {
		return ErrNotObject
	}

	fields := make([]Field, 0, 4)
	seen := make(map[string]int, 4)
	res.ForEach(func(key, value gjson.Result) bool {
		k, v := key.String(), json.RawMessage(value.Raw)
		if i, ok := seen[k]; ok {
			fields[i].Value = v
			return true
		}
		seen[k] = len(fields)
		fields = append(fields, Field{Key: k, Value: v})
		return true
	})
	r.fields = fields
	return nil
}

// Slug derives the folder name of a game from its title: lower-cased, spaces to hyphens.
func Slug(title string) string {
	return strings.ReplaceAll(strings.ToLower(title), " ", "-")
}

// Change describes one field rewritten by a migration.
type Change struct {
	Index int    `json:"index"`
	Title string `json:"title"`
	Field string `json:"field"`
	Old   string `json:"old"`
	New   string `json:"new"`
}
