package domain

import (
	"bytes"
	"encoding/json"
)

// jsonField is one key/value pair of an ordered JSON object.
type jsonField struct {
	key   string
	value any
}

// jsonObject marshals its fields in insertion order. CSV-derived payloads
// keep the column order of the source file this way.
type jsonObject []jsonField

func (o jsonObject) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(f.value)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
