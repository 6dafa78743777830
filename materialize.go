package mendz

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// materialize converts a validated structural value into the concrete
// target type. It is the final type-safety gate: numeric range and
// precision checks the structural schema cannot express run first, then
// the value is decoded into T, then the type's own Validate (if
// implemented) has the last word.
func materialize[T any](value interface{}, d *Descriptor) (T, error) {
	var result T

	if err := checkNumeric(value, d, ""); err != nil {
		return result, err
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return result, &MaterializationError{Reason: fmt.Sprintf("encode: %v", err)}
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return result, &MaterializationError{Reason: fmt.Sprintf("decode into target type: %v", err)}
	}

	if err := validateTarget(&result); err != nil {
		var zero T
		return zero, &MaterializationError{Reason: err.Error()}
	}

	return result, nil
}

// validateTarget invokes the target type's Validate method when present,
// on either the value or its pointer.
func validateTarget[T any](result *T) error {
	if v, ok := interface{}(*result).(Validator); ok {
		return v.Validate()
	}
	if v, ok := interface{}(result).(Validator); ok {
		return v.Validate()
	}
	return nil
}

// checkNumeric walks the descriptor and verifies every numeric position:
// integer kinds must hold whole numbers within their bit size, unsigned
// kinds must be non-negative, floats must be representable. The structural
// gate has already established kinds, so only numbers need inspection here.
func checkNumeric(value interface{}, d *Descriptor, path string) error {
	switch d.Kind {
	case KindInt:
		n, ok := value.(json.Number)
		if !ok {
			return nil // native zero instance, nothing to check
		}
		if _, err := strconv.ParseInt(n.String(), 10, d.Bits); err != nil {
			return &MaterializationError{
				Path:   path,
				Reason: fmt.Sprintf("%s does not fit int%d", n, d.Bits),
			}
		}

	case KindUint:
		n, ok := value.(json.Number)
		if !ok {
			return nil
		}
		if _, err := strconv.ParseUint(n.String(), 10, d.Bits); err != nil {
			return &MaterializationError{
				Path:   path,
				Reason: fmt.Sprintf("%s does not fit uint%d", n, d.Bits),
			}
		}

	case KindFloat:
		n, ok := value.(json.Number)
		if !ok {
			return nil
		}
		if _, err := strconv.ParseFloat(n.String(), d.Bits); err != nil {
			return &MaterializationError{
				Path:   path,
				Reason: fmt.Sprintf("%s does not fit float%d", n, d.Bits),
			}
		}

	case KindSequence:
		seq, _ := value.([]interface{})
		for i, elem := range seq {
			if err := checkNumeric(elem, d.Elem, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}

	case KindMapping:
		mapping, _ := value.(map[string]interface{})
		for key, elem := range mapping {
			if err := checkNumeric(elem, d.Elem, joinPath(path, key)); err != nil {
				return err
			}
		}

	case KindRecord:
		record, _ := value.(map[string]interface{})
		for _, f := range d.Fields {
			if fieldValue, ok := record[f.Name]; ok && fieldValue != nil {
				if err := checkNumeric(fieldValue, f.Schema, joinPath(path, f.Name)); err != nil {
					return err
				}
			}
		}
	}

	return nil
}

// zeroInstance materializes the descriptor's deterministic zero value into
// T. The zero instance conforms to the schema by construction, so decoding
// cannot fail for supported types.
func zeroInstance[T any](d *Descriptor) T {
	var result T
	raw, err := json.Marshal(d.Zero())
	if err != nil {
		return result
	}
	_ = json.Unmarshal(raw, &result)
	return result
}
