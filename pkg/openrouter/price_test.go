package openrouter

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrice_Unmarshal(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Price
	}{
		{"string zero", `"0"`, "0"},
		{"number zero", `0`, "0"},
		{"string price", `"0.000007"`, "0.000007"},
		{"number price", `0.01`, "0.01"},
		{"null", `null`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p Price
			require.NoError(t, json.Unmarshal([]byte(tt.in), &p))
			assert.Equal(t, tt.want, p)
		})
	}
}

func TestPrice_UnmarshalRejectsGarbage(t *testing.T) {
	var p Price
	assert.Error(t, json.Unmarshal([]byte(`{"nested":true}`), &p))
}

func TestPrice_IsZero(t *testing.T) {
	assert.True(t, Price("0").IsZero())
	assert.True(t, Price("0.0").IsZero())
	assert.True(t, Price("").IsZero())
	assert.False(t, Price("0.01").IsZero())
	assert.False(t, Price("garbage").IsZero())
}

func TestPricing_IsFree(t *testing.T) {
	// The API mixes numeric and string zeros; both spell free.
	var mixed Pricing
	require.NoError(t, json.Unmarshal([]byte(`{"prompt":"0","completion":0}`), &mixed))
	assert.True(t, mixed.IsFree())

	var paid Pricing
	require.NoError(t, json.Unmarshal([]byte(`{"prompt":0.01,"completion":0}`), &paid))
	assert.False(t, paid.IsFree())
}
