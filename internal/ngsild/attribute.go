package ngsild

import "encoding/json"

// Attribute is one of Property, Relationship, GeoProperty or RawValue.
type Attribute interface {
	attribute()
}

// Property holds a scalar or structured value.
type Property struct {
	Value      any
	ObservedAt string
	UnitCode   string
}

// Relationship references another entity by URN.
type Relationship struct {
	Object string
}

// GeoProperty holds a GeoJSON point.
type GeoProperty struct {
	Value Point
}

// RawValue is an attribute received without an NGSI-LD type tag
// (for example a keyValues notification).
type RawValue struct {
	Value any
}

func (Property) attribute()     {}
func (Relationship) attribute() {}
func (GeoProperty) attribute()  {}
func (RawValue) attribute()     {}

// Point is a GeoJSON point; coordinates are [lon, lat].
type Point struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

// NewPoint builds a GeoJSON point from latitude and longitude.
func NewPoint(lat, lon float64) Point {
	return Point{Type: "Point", Coordinates: []float64{lon, lat}}
}

// LatLon returns the point latitude and longitude; ok is false for a malformed point.
func (p Point) LatLon() (lat, lon float64, ok bool) {
	if len(p.Coordinates) < 2 {
		return 0, 0, false
	}
	return p.Coordinates[1], p.Coordinates[0], true
}

// ExtractValue returns the payload of an attribute: the value of a
// Property or GeoProperty, the object of a Relationship, or the raw value.
func ExtractValue(a Attribute) any {
	switch v := a.(type) {
	case Property:
		return v.Value
	case Relationship:
		return v.Object
	case GeoProperty:
		return v.Value
	case RawValue:
		return v.Value
	default:
		return nil
	}
}

func (p Property) MarshalJSON() ([]byte, error) {
	out := map[string]any{"type": "Property", "value": p.Value}
	if p.ObservedAt != "" {
		out["observedAt"] = p.ObservedAt
	}
	if p.UnitCode != "" {
		out["unitCode"] = p.UnitCode
	}
	return json.Marshal(out)
}

func (r Relationship) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{"type": "Relationship", "object": r.Object})
}

func (g GeoProperty) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{"type": "GeoProperty", "value": g.Value})
}

func (r RawValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Value)
}
