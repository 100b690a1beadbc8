package ngsild

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Entity type names handled by the pipeline.
const (
	TypeWeatherObserved    = "WeatherObserved"
	TypeWeatherForecast    = "WeatherForecast"
	TypeAirQualityObserved = "AirQualityObserved"
	TypeAirQualityForecast = "AirQualityForecast"
)

// Entity is an NGSI-LD entity in normalized form.
type Entity struct {
	ID         string
	Type       string
	Context    []string
	Attributes map[string]Attribute
}

// New creates an empty entity with the given id and type.
func New(id, entityType string) Entity {
	return Entity{
		ID:         id,
		Type:       entityType,
		Attributes: make(map[string]Attribute),
	}
}

// Set stores an attribute, replacing any previous value with the same name.
func (e *Entity) Set(name string, attr Attribute) {
	if e.Attributes == nil {
		e.Attributes = make(map[string]Attribute)
	}
	e.Attributes[name] = attr
}

// Attr returns the named attribute.
func (e Entity) Attr(name string) (Attribute, bool) {
	a, ok := e.Attributes[name]
	return a, ok
}

// Value returns the extracted value of the named attribute, or nil.
func (e Entity) Value(name string) any {
	a, ok := e.Attributes[name]
	if !ok {
		return nil
	}
	return ExtractValue(a)
}

// MarshalJSON encodes the entity in NGSI-LD normalized form.
func (e Entity) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Attributes)+3)
	out["id"] = e.ID
	out["type"] = e.Type
	if len(e.Context) > 0 {
		out["@context"] = e.Context
	}
	for name, attr := range e.Attributes {
		out[name] = attr
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes an entity. Attribute shapes that are not recognised
// are kept as RawValue rather than rejected.
func (e *Entity) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("decode entity: %w", err)
	}

	*e = Entity{Attributes: make(map[string]Attribute, len(fields))}
	for name, raw := range fields {
		switch name {
		case "id":
			if err := json.Unmarshal(raw, &e.ID); err != nil {
				return fmt.Errorf("decode entity id: %w", err)
			}
		case "type":
			if err := json.Unmarshal(raw, &e.Type); err != nil {
				return fmt.Errorf("decode entity type: %w", err)
			}
		case "@context":
			e.Context = decodeContext(raw)
		default:
			e.Attributes[name] = decodeAttribute(raw)
		}
	}
	return nil
}

func decodeContext(raw json.RawMessage) []string {
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return []string{single}
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil {
		return many
	}
	return nil
}

func decodeAttribute(raw json.RawMessage) Attribute {
	raw = bytes.TrimSpace(raw)
	var obj map[string]json.RawMessage
	if len(raw) == 0 || raw[0] != '{' || json.Unmarshal(raw, &obj) != nil {
		return RawValue{Value: decodeAny(raw)}
	}

	var tag string
	if t, ok := obj["type"]; ok {
		_ = json.Unmarshal(t, &tag)
	}
	_, hasValue := obj["value"]
	_, hasObject := obj["object"]

	switch {
	case tag == "Relationship" || (tag == "" && hasObject):
		var r Relationship
		_ = json.Unmarshal(obj["object"], &r.Object)
		return r
	case tag == "GeoProperty":
		var p Point
		if err := json.Unmarshal(obj["value"], &p); err != nil {
			return Property{Value: decodeAny(obj["value"])}
		}
		return GeoProperty{Value: p}
	case tag == "Property" || (tag == "" && hasValue):
		p := Property{Value: decodeAny(obj["value"])}
		if v, ok := obj["observedAt"]; ok {
			_ = json.Unmarshal(v, &p.ObservedAt)
		}
		if v, ok := obj["unitCode"]; ok {
			_ = json.Unmarshal(v, &p.UnitCode)
		}
		return p
	default:
		return RawValue{Value: decodeAny(raw)}
	}
}

func decodeAny(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}
