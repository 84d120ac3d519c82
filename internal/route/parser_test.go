package route

import (
	"encoding/json"
	"testing"

	"github.com/ctanbus/ctanbus_core/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected models.Route
	}{
		{
			name:  "drops malformed points and keeps order",
			input: `[["37.1,-5.9"], ["bad,data"], ["37.2,-5.8,1"]]`,
			expected: models.Route{
				{Latitude: 37.1, Longitude: -5.9},
				{Latitude: 37.2, Longitude: -5.8},
			},
		},
		{
			name:     "not an array",
			input:    `{"lat": 37.1}`,
			expected: models.Route{},
		},
		{
			name:     "null",
			input:    `null`,
			expected: models.Route{},
		},
		{
			name:     "all malformed",
			input:    `[["x,y"], ["1"], [], [42], "37.1,-5.9"]`,
			expected: models.Route{},
		},
		{
			name:     "NaN and out of range",
			input:    `[["NaN,-5.9"], ["95.0,-5.9"], ["37.3, -5.99"]]`,
			expected: models.Route{{Latitude: 37.3, Longitude: -5.99}},
		},
		{
			name:     "empty input",
			input:    ``,
			expected: models.Route{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Parse(json.RawMessage(tt.input))
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestParsePoints(t *testing.T) {
	result := ParsePoints([][]string{{"37.1,-5.9"}, {}, {"bad"}, {"37.2,-5.8,0", "ignored"}})
	assert.Equal(t, models.Route{
		{Latitude: 37.1, Longitude: -5.9},
		{Latitude: 37.2, Longitude: -5.8},
	}, result)
}

func TestSelect(t *testing.T) {
	outbound := json.RawMessage(`[["1,1"]]`)
	generic := json.RawMessage(`[["2,2"]]`)

	assert.Equal(t, outbound, Select(outbound, generic))
	assert.Equal(t, generic, Select(nil, generic))
	assert.Equal(t, generic, Select(json.RawMessage(`null`), generic))

	// An empty outbound list is still the provider's answer
	assert.Equal(t, json.RawMessage(`[]`), Select(json.RawMessage(`[]`), generic))
}
