package mendz

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/zoobzio/sentinel"
)

// Kind identifies the structural category of a descriptor node.
type Kind int

// Structural kinds.
const (
	KindInvalid Kind = iota
	KindBool
	KindInt
	KindUint
	KindFloat
	KindString
	KindSequence
	KindMapping
	KindRecord
)

// String returns the kind name used in schema contracts and rejections.
func (k Kind) String() string {
	switch k {
	case KindBool:
		return "boolean"
	case KindInt, KindUint:
		return "integer"
	case KindFloat:
		return "number"
	case KindString:
		return "string"
	case KindSequence:
		return "array"
	case KindMapping, KindRecord:
		return "object"
	default:
		return "invalid"
	}
}

// Descriptor is a recursive structural description of a target type.
// Descriptors are built once per type, cached process-wide, and never
// mutated after construction.
type Descriptor struct {
	Kind   Kind
	Bits   int         // Bit size for numeric kinds (8, 16, 32, 64)
	Elem   *Descriptor // Element descriptor for sequences and mapping values
	Fields []Field     // Ordered fields for records
	Closed bool        // Closed records reject unknown fields during validation
}

// Field describes a single record field.
type Field struct {
	Name        string      // JSON name of the field
	Schema      *Descriptor // Structural descriptor of the field value
	Required    bool        // False when the field is omitempty
	Description string      // From the `desc` struct tag, embedded in contracts
}

// maxSchemaDepth bounds descriptor recursion. Types nesting deeper than
// this (including self-referential types) are rejected as unsupported.
const maxSchemaDepth = 12

// descriptorCache memoizes descriptors by type identity for the process
// lifetime. Builds are pure, so a racing double-build is harmless; the
// first stored descriptor wins.
var descriptorCache sync.Map // reflect.Type -> *Descriptor

// Describe builds the structural descriptor for T, returning the cached
// descriptor on subsequent calls. It fails with ErrUnsupportedType when T
// contains a construct with no structural representation.
func Describe[T any]() (*Descriptor, error) {
	rt := reflect.TypeFor[T]()
	if cached, ok := descriptorCache.Load(rt); ok {
		return cached.(*Descriptor), nil
	}

	var d *Descriptor
	var err error
	if rt.Kind() == reflect.Struct {
		// At the typed boundary, field metadata (json names, optionality,
		// descriptions) comes from sentinel; only the field types recurse
		// through reflection.
		d, err = describeRoot(rt, sentinel.Inspect[T]().Fields)
	} else {
		d, err = describeType(rt, 0)
	}
	if err != nil {
		return nil, err
	}

	stored, _ := descriptorCache.LoadOrStore(rt, d)
	return stored.(*Descriptor), nil
}

// describeRoot builds a record descriptor for a top-level struct using
// sentinel field metadata for names, optionality, and descriptions.
func describeRoot(rt reflect.Type, fields []sentinel.FieldMetadata) (*Descriptor, error) {
	d := &Descriptor{Kind: KindRecord}
	seen := make(map[string]bool)

	for _, meta := range fields {
		jsonName := jsonFieldName(meta.Name, meta.Tags["json"])
		if jsonName == "-" {
			continue
		}
		if seen[jsonName] {
			return nil, fmt.Errorf("%w: %s: duplicate field %q", ErrUnsupportedType, rt, jsonName)
		}
		seen[jsonName] = true

		sf, ok := rt.FieldByName(meta.Name)
		if !ok {
			continue
		}
		fieldSchema, err := describeType(sf.Type, 1)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", rt, meta.Name, err)
		}

		d.Fields = append(d.Fields, Field{
			Name:        jsonName,
			Schema:      fieldSchema,
			Required:    !hasOmitempty(meta.Tags["json"]),
			Description: meta.Tags["desc"],
		})
	}

	return d, nil
}

// describeType recursively builds a descriptor for a reflected type.
func describeType(rt reflect.Type, depth int) (*Descriptor, error) {
	if depth > maxSchemaDepth {
		return nil, fmt.Errorf("%w: nesting exceeds depth %d (self-referential type?)", ErrUnsupportedType, maxSchemaDepth)
	}

	switch rt.Kind() {
	case reflect.Bool:
		return &Descriptor{Kind: KindBool}, nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return &Descriptor{Kind: KindInt, Bits: rt.Bits()}, nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &Descriptor{Kind: KindUint, Bits: rt.Bits()}, nil

	case reflect.Float32, reflect.Float64:
		return &Descriptor{Kind: KindFloat, Bits: rt.Bits()}, nil

	case reflect.String:
		return &Descriptor{Kind: KindString}, nil

	case reflect.Pointer:
		// Pointers are structurally transparent; optionality is a field
		// property (omitempty), not a type property.
		return describeType(rt.Elem(), depth+1)

	case reflect.Slice, reflect.Array:
		if rt.Elem().Kind() == reflect.Uint8 {
			// []byte marshals as a base64 string.
			return &Descriptor{Kind: KindString}, nil
		}
		elem, err := describeType(rt.Elem(), depth+1)
		if err != nil {
			return nil, err
		}
		return &Descriptor{Kind: KindSequence, Elem: elem}, nil

	case reflect.Map:
		if rt.Key().Kind() != reflect.String {
			return nil, fmt.Errorf("%w: map key %s (only string keys)", ErrUnsupportedType, rt.Key())
		}
		elem, err := describeType(rt.Elem(), depth+1)
		if err != nil {
			return nil, err
		}
		return &Descriptor{Kind: KindMapping, Elem: elem}, nil

	case reflect.Struct:
		return describeStruct(rt, depth)

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, rt.Kind())
	}
}

// describeStruct builds a record descriptor for a nested struct from
// reflected struct tags.
func describeStruct(rt reflect.Type, depth int) (*Descriptor, error) {
	d := &Descriptor{Kind: KindRecord}
	seen := make(map[string]bool)

	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if sf.PkgPath != "" {
			continue // unexported
		}
		jsonTag := sf.Tag.Get("json")
		jsonName := jsonFieldName(sf.Name, jsonTag)
		if jsonName == "-" {
			continue
		}
		if seen[jsonName] {
			return nil, fmt.Errorf("%w: %s: duplicate field %q", ErrUnsupportedType, rt, jsonName)
		}
		seen[jsonName] = true

		fieldSchema, err := describeType(sf.Type, depth+1)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", rt, sf.Name, err)
		}

		d.Fields = append(d.Fields, Field{
			Name:        jsonName,
			Schema:      fieldSchema,
			Required:    !hasOmitempty(jsonTag),
			Description: sf.Tag.Get("desc"),
		})
	}

	return d, nil
}

// jsonFieldName resolves the JSON name for a field from its json tag,
// defaulting to the lowercased field name.
func jsonFieldName(fieldName, jsonTag string) string {
	if jsonTag != "" {
		parts := strings.Split(jsonTag, ",")
		if parts[0] != "" {
			return parts[0]
		}
	}
	return strings.ToLower(fieldName[:1]) + fieldName[1:]
}

// hasOmitempty checks if the json tag contains omitempty.
func hasOmitempty(jsonTag string) bool {
	return strings.Contains(jsonTag, "omitempty")
}

// JSONSchema renders the descriptor as a JSON Schema document, the
// machine-readable contract embedded in prompts and passed to providers
// with native structured output.
func (d *Descriptor) JSONSchema() string {
	jsonBytes, err := json.MarshalIndent(d.schemaValue(), "", "  ")
	if err != nil {
		return "{}"
	}
	return string(jsonBytes)
}

// schemaValue builds the JSON Schema object tree for the descriptor.
func (d *Descriptor) schemaValue() map[string]interface{} {
	switch d.Kind {
	case KindBool:
		return map[string]interface{}{"type": "boolean"}
	case KindInt:
		return map[string]interface{}{"type": "integer"}
	case KindUint:
		return map[string]interface{}{"type": "integer", "minimum": 0}
	case KindFloat:
		return map[string]interface{}{"type": "number"}
	case KindString:
		return map[string]interface{}{"type": "string"}
	case KindSequence:
		return map[string]interface{}{
			"type":  "array",
			"items": d.Elem.schemaValue(),
		}
	case KindMapping:
		return map[string]interface{}{
			"type":                 "object",
			"additionalProperties": d.Elem.schemaValue(),
		}
	case KindRecord:
		properties := make(map[string]interface{}, len(d.Fields))
		required := make([]string, 0, len(d.Fields))
		for _, f := range d.Fields {
			prop := f.Schema.schemaValue()
			if f.Description != "" {
				prop["description"] = f.Description
			}
			properties[f.Name] = prop
			if f.Required {
				required = append(required, f.Name)
			}
		}
		return map[string]interface{}{
			"type":                 "object",
			"properties":           properties,
			"required":             required,
			"additionalProperties": false,
		}
	default:
		return map[string]interface{}{}
	}
}

// Zero builds the minimal valid structural instance of the descriptor:
// zero primitives, empty sequences and mappings, and only required fields
// populated. This is the deterministic terminal fallback, deliberately
// distinguishable from model-sourced data.
func (d *Descriptor) Zero() interface{} {
	switch d.Kind {
	case KindBool:
		return false
	case KindInt, KindUint:
		return 0
	case KindFloat:
		return 0.0
	case KindString:
		return ""
	case KindSequence:
		return []interface{}{}
	case KindMapping:
		return map[string]interface{}{}
	case KindRecord:
		record := make(map[string]interface{}, len(d.Fields))
		for _, f := range d.Fields {
			if f.Required {
				record[f.Name] = f.Schema.Zero()
			}
		}
		return record
	default:
		return nil
	}
}

// closedCopy returns a deep copy of the descriptor with every record
// marked closed. The cached original is never mutated.
func (d *Descriptor) closedCopy() *Descriptor {
	if d == nil {
		return nil
	}
	copied := &Descriptor{
		Kind: d.Kind,
		Bits: d.Bits,
		Elem: d.Elem.closedCopy(),
	}
	if d.Kind == KindRecord {
		copied.Closed = true
	}
	if d.Fields != nil {
		copied.Fields = make([]Field, len(d.Fields))
		for i, f := range d.Fields {
			copied.Fields[i] = Field{
				Name:        f.Name,
				Schema:      f.Schema.closedCopy(),
				Required:    f.Required,
				Description: f.Description,
			}
		}
	}
	return copied
}
