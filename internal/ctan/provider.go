package ctan

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// The provider is loose with JSON types: ids, coordinates and distances show
// up both as numbers and as numeric strings depending on the endpoint.

// number is a float that accepts JSON numbers and numeric strings
type number struct {
	value float64
	set   bool
}

func (n *number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}

	s := string(b)
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("invalid number %s", b)
	}
	n.value, n.set = v, true
	return nil
}

// text is a string that accepts JSON strings and numbers
type text struct {
	value string
	set   bool
}

func (t *text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		return nil
	case len(b) > 0 && b[0] == '"':
		if err := json.Unmarshal(b, &t.value); err != nil {
			return err
		}
	case len(b) > 0 && (b[0] == '-' || (b[0] >= '0' && b[0] <= '9')):
		t.value = string(b)
	default:
		return fmt.Errorf("invalid text %s", b)
	}
	t.set = true
	return nil
}

// parada is a stop as sent by the provider
type parada struct {
	IDParada    text            `json:"idParada"`
	IDNucleo    text            `json:"idNucleo"`
	IDZona      text            `json:"idZona"`
	IDMunicipio text            `json:"idMunicipio"`
	Nombre      text            `json:"nombre"`
	Latitud     number          `json:"latitud"`
	Longitud    number          `json:"longitud"`
	Municipio   text            `json:"municipio"`
	Nucleo      text            `json:"nucleo"`
	Modos       text            `json:"modos"`
	Distancia   number          `json:"distancia"`
	Orden       number          `json:"orden"`
	Lineas      json.RawMessage `json:"lineas"`
}

// linea is a line as sent by the provider
type linea struct {
	IDLinea     text   `json:"idLinea"`
	Codigo      text   `json:"codigo"`
	Nombre      text   `json:"nombre"`
	NombreLinea text   `json:"nombreLinea"`
	Descripcion text   `json:"descripcion"`
	Modo        text   `json:"modo"`
	Prioridad   number `json:"prioridad"`
}

// lineaDetalle is the /lineas/{id} payload
type lineaDetalle struct {
	Paradas      json.RawMessage `json:"paradas"`
	PolilineaIda json.RawMessage `json:"polilineaIda"`
	Polilinea    json.RawMessage `json:"polilinea"`
}

var errMissingArray = errors.New("missing array field")

// decodeParadas extracts the required top-level "paradas" array
func decodeParadas(body []byte) ([]parada, error) {
	var envelope struct {
		Paradas json.RawMessage `json:"paradas"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, err
	}
	return decodeArray[parada](envelope.Paradas, "paradas")
}

// decodeLineas accepts either a bare array or an object with a "lineas" array
func decodeLineas(body []byte) ([]linea, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return decodeArray[linea](trimmed, "lineas")
	}

	var envelope struct {
		Lineas json.RawMessage `json:"lineas"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, err
	}
	return decodeArray[linea](envelope.Lineas, "lineas")
}

func decodeArray[T any](raw json.RawMessage, field string) ([]T, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		return nil, fmt.Errorf("%w %q", errMissingArray, field)
	}

	var out []T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", field, err)
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

func jsonUnmarshal(body []byte, v any) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return errors.New("expected a JSON object")
	}
	return json.Unmarshal(trimmed, v)
}
