package ai

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrNoJSONObject means the reply holds no {...} span.
var ErrNoJSONObject = errors.New("no JSON object in response")

// ExtractJSONObject returns the span from the first '{' to the last '}'.
func ExtractJSONObject(s string) (string, error) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", ErrNoJSONObject
	}
	return s[start : end+1], nil
}

// ProductInfoSchema accepts an object whose known product fields are
// strings, numbers or null. Unknown keys are allowed.
var ProductInfoSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"product_name":       scalar(),
		"strength":           scalar(),
		"batch_size":         scalar(),
		"dosage_form":        scalar(),
		"pack_size":          scalar(),
		"manufacturing_site": scalar(),
	},
}

func scalar() map[string]any {
	return map[string]any{"type": []any{"string", "number", "null"}}
}

// Validator checks documents against one compiled schema.
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator compiles schemaMap.
func NewValidator(schemaMap map[string]any) (*Validator, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Validator{schema: schema}, nil
}

// Validate decodes data and checks it against the schema.
func (v *Validator) Validate(data []byte) error {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := v.schema.Validate(doc); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

var (
	productValidator     *Validator
	productValidatorErr  error
	productValidatorOnce sync.Once
)

// DecodeProductInfo pulls the JSON object out of a model reply, validates it
// against ProductInfoSchema and returns the fields as strings. Numbers are
// rendered without trailing zeros; null becomes "".
func DecodeProductInfo(reply string) (map[string]string, error) {
	productValidatorOnce.Do(func() {
		productValidator, productValidatorErr = NewValidator(ProductInfoSchema)
	})
	if productValidatorErr != nil {
		return nil, productValidatorErr
	}

	span, err := ExtractJSONObject(reply)
	if err != nil {
		return nil, err
	}
	if err := productValidator.Validate([]byte(span)); err != nil {
		return nil, err
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(span), &raw); err != nil {
		return nil, fmt.Errorf("decode product info: %w", err)
	}

	out := make(map[string]string, len(raw))
	for k, v := range raw {
		switch x := v.(type) {
		case string:
			out[k] = x
		case float64:
			out[k] = strconv.FormatFloat(x, 'f', -1, 64)
		}
	}
	return out, nil
}
