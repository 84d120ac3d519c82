package ctan

import (
	"fmt"
	"math"
	"strings"

	"github.com/ctanbus/ctanbus_core/internal/models"
)

// InferMode determines the transit mode of a line from its description,
// code and name. Defaults to bus.
func InferMode(line models.BusLine) models.TransitMode {
	label := strings.ToUpper(line.Description + " " + line.Code + " " + line.Name)

	switch {
	case strings.Contains(label, "METRO"):
		return models.ModeMetro
	case strings.Contains(label, "TRANV"), strings.Contains(label, "TRAM"):
		return models.ModeTram
	case strings.Contains(label, "TREN"), strings.Contains(label, "CERCAN"), strings.Contains(label, "RENFE"):
		return models.ModeTrain
	case strings.Contains(label, "BARCO"), strings.Contains(label, "CATAMAR"), strings.Contains(label, "FERRY"):
		return models.ModeFerry
	}

	return models.ModeBus
}

// normalizeStop converts a provider stop into the internal shape. The stop
// id and both coordinates are required.
func normalizeStop(p parada) (models.BusStop, error) {
	if !p.IDParada.set || p.IDParada.value == "" {
		return models.BusStop{}, fmt.Errorf("stop without idParada")
	}
	if !p.Latitud.set || !p.Longitud.set {
		return models.BusStop{}, fmt.Errorf("stop %s without coordinates", p.IDParada.value)
	}

	stop := models.BusStop{
		ID:             p.IDParada.value,
		Name:           p.Nombre.value,
		Latitude:       p.Latitud.value,
		Longitude:      p.Longitud.value,
		Municipality:   p.Municipio.value,
		MunicipalityID: p.IDMunicipio.value,
		Nucleus:        p.Nucleo.value,
		NucleusID:      p.IDNucleo.value,
		ZoneID:         p.IDZona.value,
		TransportModes: p.Modos.value,
		Lines:          []models.BusLine{},
	}
	if !stop.Coordinate().Valid() {
		return models.BusStop{}, fmt.Errorf("stop %s has out of range coordinates", stop.ID)
	}

	if p.Distancia.set {
		d := p.Distancia.value
		stop.Distance = &d
	}
	if p.Orden.set {
		o := int(math.Round(p.Orden.value))
		stop.Order = &o
	}

	if len(p.Lineas) > 0 && string(p.Lineas) != "null" {
		raw, err := decodeArray[linea](p.Lineas, "lineas")
		if err != nil {
			return models.BusStop{}, fmt.Errorf("stop %s: %w", stop.ID, err)
		}
		lines, err := normalizeLines(raw)
		if err != nil {
			return models.BusStop{}, fmt.Errorf("stop %s: %w", stop.ID, err)
		}
		stop.Lines = lines
	}

	return stop, nil
}

func normalizeStops(raw []parada) ([]models.BusStop, error) {
	stops := make([]models.BusStop, 0, len(raw))
	for _, p := range raw {
		stop, err := normalizeStop(p)
		if err != nil {
			return nil, err
		}
		stops = append(stops, stop)
	}
	return stops, nil
}

// normalizeLine converts a provider line into the internal shape. Only the
// line id is required.
func normalizeLine(l linea) (models.BusLine, error) {
	if !l.IDLinea.set || l.IDLinea.value == "" {
		return models.BusLine{}, fmt.Errorf("line without idLinea")
	}

	name := l.Nombre.value
	if name == "" {
		name = l.NombreLinea.value
	}
	description := l.Descripcion.value
	if description == "" {
		description = l.Modo.value
	}

	line := models.BusLine{
		ID:          l.IDLinea.value,
		Code:        l.Codigo.value,
		Name:        name,
		Description: description,
		Priority:    int(math.Round(l.Prioridad.value)),
	}
	line.Mode = InferMode(line)
	return line, nil
}

func normalizeLines(raw []linea) ([]models.BusLine, error) {
	lines := make([]models.BusLine, 0, len(raw))
	for _, l := range raw {
		line, err := normalizeLine(l)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, nil
}
