package openrouter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Price is a per-token price as reported by the models endpoint. The API is
// inconsistent about the wire type and returns either a JSON number or a
// numeric string; normalization happens here, once, at the gateway boundary.
type Price string

func (p *Price) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*p = ""
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*p = Price(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*p = Price(n.String())
		return nil
	}

	return fmt.Errorf("price is neither a number nor a string: %s", data)
}

func (p Price) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(p))
}

// IsZero reports whether the price is absent or exactly zero.
func (p Price) IsZero() bool {
	if p == "" {
		return true
	}
	f, err := strconv.ParseFloat(string(p), 64)
	return err == nil && f == 0
}

// Pricing holds the prompt and completion prices of a model.
type Pricing struct {
	Prompt     Price `json:"prompt"`
	Completion Price `json:"completion"`
}

// IsFree reports whether both prices are exactly zero.
func (p Pricing) IsFree() bool {
	return p.Prompt.IsZero() && p.Completion.IsZero()
}
