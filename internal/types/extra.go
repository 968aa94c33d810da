package types

import (
	"bytes"
	"encoding/json"
	"reflect"
	"sort"
	"strings"
)

var (
	transcriptKeys = jsonKeys(reflect.TypeOf(Transcript{}))
	shortKeys      = jsonKeys(reflect.TypeOf(Short{}))
)

// jsonKeys lists the object keys a struct's json tags claim.
func jsonKeys(t reflect.Type) map[string]bool {
	keys := make(map[string]bool, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("json"), ",")
		if name == "" || name == "-" {
			continue
		}
		keys[name] = true
	}
	return keys
}

// splitExtra returns the members of the JSON object b that known does not
// claim, nil when there are none.
func splitExtra(b []byte, known map[string]bool) (map[string]json.RawMessage, error) {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(b, &all); err != nil {
		return nil, err
	}
	var extra map[string]json.RawMessage
	for k, v := range all {
		if known[k] {
			continue
		}
		if extra == nil {
			extra = make(map[string]json.RawMessage)
		}
		extra[k] = v
	}
	return extra, nil
}

// appendExtra adds extra members to the encoded object b, in key order,
// after the modelled ones.
func appendExtra(b []byte, extra map[string]json.RawMessage, known map[string]bool) ([]byte, error) {
	keys := make([]string, 0, len(extra))
	for k := range extra {
		if !known[k] {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return b, nil
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.Write(b[:len(b)-1])
	empty := bytes.Equal(bytes.TrimSpace(b), []byte("{}"))
	for i, k := range keys {
		if i > 0 || !empty {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(extra[k])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (t *Transcript) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		return nil
	}
	type plain Transcript
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	extra, err := splitExtra(b, transcriptKeys)
	if err != nil {
		return err
	}
	p.Extra = extra
	*t = Transcript(p)
	return nil
}

func (t Transcript) MarshalJSON() ([]byte, error) {
	type plain Transcript
	b, err := json.Marshal(plain(t))
	if err != nil {
		return nil, err
	}
	return appendExtra(b, t.Extra, transcriptKeys)
}

func (s *Short) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		return nil
	}
	type plain Short
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	extra, err := splitExtra(b, shortKeys)
	if err != nil {
		return err
	}
	p.Extra = extra
	*s = Short(p)
	return nil
}

func (s Short) MarshalJSON() ([]byte, error) {
	type plain Short
	b, err := json.Marshal(plain(s))
	if err != nil {
		return nil, err
	}
	return appendExtra(b, s.Extra, shortKeys)
}
