package answerkey

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

func decodeJSON(doc []byte) ([]entry, error) {
	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedKeyDocument, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after document", ErrMalformedKeyDocument)
	}

	switch t := v.(type) {
	case map[string]any:
		out := make([]entry, 0, len(t))
		for _, k := range sortedKeys(t) {
			letter, _ := t[k].(string)
			out = append(out, entry{numeral: k, letter: letter})
		}
		return out, nil
	case []any:
		out := make([]entry, 0, len(t))
		for _, it := range t {
			rec, ok := it.(map[string]any)
			if !ok {
				out = append(out, entry{})
				continue
			}
			letter, _ := rec["answer"].(string)
			out = append(out, entry{numeral: scalarString(rec["number"]), letter: letter})
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: top level must be an object or an array", ErrMalformedKeyDocument)
	}
}

func scalarString(v any) string {
	switch t := v.(type) {
	case json.Number:
		return t.String()
	case string:
		return t
	default:
		return ""
	}
}

// ExportJSON encodes the flat form produced by Export.
func ExportJSON(flat map[string]string) ([]byte, error) {
	return json.Marshal(flat)
}
