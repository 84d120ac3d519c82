package geo

import (
	"math"
	"testing"

	"github.com/ctanbus/ctanbus_core/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestHaversine(t *testing.T) {
	tests := []struct {
		name     string
		a, b     models.Coordinate
		expected float64
		delta    float64
	}{
		{
			name:     "Zero distance",
			a:        models.Coordinate{Latitude: 37.3886, Longitude: -5.9953},
			b:        models.Coordinate{Latitude: 37.3886, Longitude: -5.9953},
			expected: 0,
			delta:    1,
		},
		{
			name:     "Approximately 1km north",
			a:        models.Coordinate{Latitude: 37.3886, Longitude: -5.9953},
			b:        models.Coordinate{Latitude: 37.3976, Longitude: -5.9953},
			expected: 1000,
			delta:    10,
		},
		{
			name:     "Seville to Cordoba",
			a:        models.Coordinate{Latitude: 37.3886, Longitude: -5.9953},
			b:        models.Coordinate{Latitude: 37.8882, Longitude: -4.7794},
			expected: 119000,
			delta:    2000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, Haversine(tt.a, tt.b), tt.delta)
		})
	}
}

func TestHaversineIsSymmetric(t *testing.T) {
	a := models.Coordinate{Latitude: 37.3886, Longitude: -5.9953}
	b := models.Coordinate{Latitude: 36.7213, Longitude: -4.4214}
	assert.InDelta(t, Haversine(a, b), Haversine(b, a), 1e-6)
}

func TestFormatDistance(t *testing.T) {
	tests := []struct {
		meters   float64
		expected string
	}{
		{0, "0m"},
		{42.4, "42m"},
		{99.4, "99m"},
		{123, "120m"},
		{456, "460m"},
		{1000, "1.0km"},
		{2345, "2.3km"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatDistance(tt.meters))
		})
	}
}

func TestQuantizeCoordinate(t *testing.T) {
	tests := []struct {
		name     string
		input    models.Coordinate
		expected models.Coordinate
	}{
		{
			name:     "truncates toward zero",
			input:    models.Coordinate{Latitude: 37.12345, Longitude: -5.98765},
			expected: models.Coordinate{Latitude: 37.1234, Longitude: -5.9876},
		},
		{
			name:     "representation error does not drop a bucket",
			input:    models.Coordinate{Latitude: 37.3886, Longitude: -5.9953},
			expected: models.Coordinate{Latitude: 37.3886, Longitude: -5.9953},
		},
		{
			name:     "zero",
			input:    models.Coordinate{},
			expected: models.Coordinate{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := QuantizeCoordinate(tt.input)
			assert.InDelta(t, tt.expected.Latitude, result.Latitude, 1e-9)
			assert.InDelta(t, tt.expected.Longitude, result.Longitude, 1e-9)
		})
	}
}

func TestQuantizeSharesBucket(t *testing.T) {
	a := QuantizeCoordinate(models.Coordinate{Latitude: 37.12345, Longitude: -5.98765})
	b := QuantizeCoordinate(models.Coordinate{Latitude: 37.12341, Longitude: -5.98761})
	assert.Equal(t, a, b)
}

func TestQuantizeNeverReturnsNegativeZero(t *testing.T) {
	for _, v := range []float64{-0.00003, -0.00009999, math.Copysign(0, -1)} {
		q := Quantize(v, KeyPrecision)
		assert.Equal(t, 0.0, q)
		assert.False(t, math.Signbit(q), "%v quantized to -0", v)
	}
	assert.Equal(t, -0.0001, Quantize(-0.00012, KeyPrecision))
}

func TestValidators(t *testing.T) {
	assert.NoError(t, ValidateLatitude(37.38))
	assert.Error(t, ValidateLatitude(90.1))
	assert.NoError(t, ValidateLongitude(-180))
	assert.Error(t, ValidateLongitude(181))
	assert.NoError(t, ValidateRadius(500))
	assert.Error(t, ValidateRadius(0))
	assert.Error(t, ValidateRadius(MaxRadius+1))
}
