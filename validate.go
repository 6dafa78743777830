package mendz

import (
	"encoding/json"
	"fmt"
	"strings"
)

// parseResponse is the syntactic gate: it decodes the raw model output into
// a generic structural value. Models occasionally wrap JSON in markdown
// fences or prose despite instructions, so the outermost JSON value is
// extracted before decoding. Numbers are preserved as json.Number so the
// materializer can apply range and precision checks later.
func parseResponse(raw string) (interface{}, *Rejection) {
	text := extractJSON(raw)
	if text == "" {
		return nil, &Rejection{Want: "json", Got: "empty response"}
	}

	decoder := json.NewDecoder(strings.NewReader(text))
	decoder.UseNumber()

	var value interface{}
	if err := decoder.Decode(&value); err != nil {
		return nil, &Rejection{Want: "json", Got: fmt.Sprintf("unparseable text (%v)", err)}
	}
	return value, nil
}

// extractJSON strips markdown fences and surrounding prose, returning the
// outermost JSON value in the text.
func extractJSON(raw string) string {
	text := strings.TrimSpace(raw)

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}

	// If the text doesn't start with a JSON value, look for an embedded
	// object or array.
	if len(text) > 0 && !strings.ContainsRune("{[\"-0123456789tfn", rune(text[0])) {
		start := strings.IndexAny(text, "{[")
		if start < 0 {
			return ""
		}
		closer := "}"
		if text[start] == '[' {
			closer = "]"
		}
		end := strings.LastIndex(text, closer)
		if end <= start {
			return ""
		}
		text = text[start : end+1]
	}

	return text
}

// conform is the structural gate: it checks a parsed value against the
// descriptor, reporting the first failing field path. Pure and
// deterministic.
func conform(value interface{}, d *Descriptor, path string) *Rejection {
	switch d.Kind {
	case KindBool:
		if _, ok := value.(bool); !ok {
			return reject(path, d, value)
		}

	case KindInt, KindUint, KindFloat:
		if _, ok := value.(json.Number); !ok {
			return reject(path, d, value)
		}

	case KindString:
		if _, ok := value.(string); !ok {
			return reject(path, d, value)
		}

	case KindSequence:
		seq, ok := value.([]interface{})
		if !ok {
			return reject(path, d, value)
		}
		for i, elem := range seq {
			if r := conform(elem, d.Elem, fmt.Sprintf("%s[%d]", path, i)); r != nil {
				return r
			}
		}

	case KindMapping:
		mapping, ok := value.(map[string]interface{})
		if !ok {
			return reject(path, d, value)
		}
		for key, elem := range mapping {
			if r := conform(elem, d.Elem, joinPath(path, key)); r != nil {
				return r
			}
		}

	case KindRecord:
		record, ok := value.(map[string]interface{})
		if !ok {
			return reject(path, d, value)
		}
		known := make(map[string]bool, len(d.Fields))
		for _, f := range d.Fields {
			known[f.Name] = true
			fieldValue, present := record[f.Name]
			if !present || fieldValue == nil {
				if f.Required {
					return &Rejection{
						Path: joinPath(path, f.Name),
						Want: f.Schema.Kind.String(),
						Got:  "missing",
					}
				}
				continue
			}
			if r := conform(fieldValue, f.Schema, joinPath(path, f.Name)); r != nil {
				return r
			}
		}
		if d.Closed {
			for key := range record {
				if !known[key] {
					return &Rejection{
						Path: joinPath(path, key),
						Want: "no such field",
						Got:  observedKind(record[key]),
					}
				}
			}
		}

	default:
		return &Rejection{Path: path, Want: "invalid", Got: observedKind(value)}
	}

	return nil
}

// reject builds a kind-mismatch rejection for the given path.
func reject(path string, d *Descriptor, value interface{}) *Rejection {
	return &Rejection{Path: path, Want: d.Kind.String(), Got: observedKind(value)}
}

// observedKind names the structural kind of a parsed JSON value.
func observedKind(value interface{}) string {
	switch value.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case json.Number:
		return "number"
	case string:
		return "string"
	case []interface{}:
		return "array"
	case map[string]interface{}:
		return "object"
	default:
		return fmt.Sprintf("%T", value)
	}
}

// joinPath appends a field name to a JSON path.
func joinPath(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}
