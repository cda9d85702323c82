package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"bare object", `{"a":1}`, `{"a":1}`, false},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`, false},
		{"prose around", `Here you go: {"a":{"b":2}} hope it helps`, `{"a":{"b":2}}`, false},
		{"not json", "not json", "", true},
		{"reversed braces", "} {", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSONObject(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNoJSONObject)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeProductInfo(t *testing.T) {
	got, err := DecodeProductInfo(`{"product_name":"Fluorouracil Injection","strength":"50 mg/ml","batch_size":10000,"pack_size":null,"extra":true}`)
	require.NoError(t, err)
	assert.Equal(t, "Fluorouracil Injection", got["product_name"])
	assert.Equal(t, "50 mg/ml", got["strength"])
	assert.Equal(t, "10000", got["batch_size"])
	assert.NotContains(t, got, "pack_size")
	assert.NotContains(t, got, "extra")
}

func TestDecodeProductInfo_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"no object", "not json"},
		{"malformed", `{"product_name": }`},
		{"wrong type", `{"product_name": ["a", "b"]}`},
		{"nested object", `{"strength": {"value": 5}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeProductInfo(tt.reply)
			assert.Error(t, err)
		})
	}
}

func TestValidator(t *testing.T) {
	v, err := NewValidator(map[string]any{
		"type":     "object",
		"required": []any{"name"},
	})
	require.NoError(t, err)
	assert.NoError(t, v.Validate([]byte(`{"name":"x"}`)))
	assert.Error(t, v.Validate([]byte(`{}`)))
	assert.Error(t, v.Validate([]byte(`[`)))
}
