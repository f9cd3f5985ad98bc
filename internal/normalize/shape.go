// Package normalize turns the loosely-typed JSON envelopes sent by the
// marketplace into canonical values. Every function here is pure and total:
// unrecognized input yields zero values, never an error or a panic.
//
// Envelopes arrive in several shapes depending on API version and event type.
// Instead of ad hoc optional chaining, the known shapes form a small sum type
// (Shape) and are probed in the fixed order of ShapeProbes.
package normalize

import (
	"bytes"
	"encoding/json"
)

// Shape identifies which envelope layout carried the message value.
type Shape int

const (
	ShapeUnknown      Shape = iota // document is not a JSON object
	ShapePayloadValue              // {payload: {value: {...}}}
	ShapePayload                   // {payload: {...}}
	ShapeDataValue                 // {data: {value: {...}}}
	ShapeData                      // {data: {...}}
	ShapeValue                     // {value: {...}}
	ShapeTopLevel                  // the document itself
)

var shapeNames = map[Shape]string{
	ShapeUnknown:      "unknown",
	ShapePayloadValue: "payload.value",
	ShapePayload:      "payload",
	ShapeDataValue:    "data.value",
	ShapeData:         "data",
	ShapeValue:        "value",
	ShapeTopLevel:     "top_level",
}

func (s Shape) String() string {
	if n, ok := shapeNames[s]; ok {
		return n
	}
	return "unknown"
}

// ShapeProbe pairs a shape with the key path that must resolve to an object
// for the shape to match.
type ShapeProbe struct {
	Shape Shape
	Path  []string
}

// ShapeProbes is the probing priority. The first probe whose path resolves
// to a JSON object wins; ShapeTopLevel (empty path) always matches an object.
var ShapeProbes = []ShapeProbe{
	{ShapePayloadValue, []string{"payload", "value"}},
	{ShapePayload, []string{"payload"}},
	{ShapeDataValue, []string{"data", "value"}},
	{ShapeData, []string{"data"}},
	{ShapeValue, []string{"value"}},
	{ShapeTopLevel, nil},
}

// Detect returns the envelope shape of doc and the object holding the
// message value. For ShapeUnknown the returned object is empty, not nil.
func Detect(doc any) (Shape, map[string]any) {
	root, ok := doc.(map[string]any)
	if !ok {
		return ShapeUnknown, map[string]any{}
	}
	for _, p := range ShapeProbes {
		if obj, ok := dig(root, p.Path...).(map[string]any); ok {
			return p.Shape, obj
		}
	}
	return ShapeUnknown, map[string]any{}
}

// envelope returns the object that carries the event type for a shape:
// payload for payload shapes, data for data shapes, the document otherwise.
func envelope(doc map[string]any, s Shape) map[string]any {
	switch s {
	case ShapePayloadValue, ShapePayload:
		if m, ok := doc["payload"].(map[string]any); ok {
			return m
		}
	case ShapeDataValue, ShapeData:
		if m, ok := doc["data"].(map[string]any); ok {
			return m
		}
	}
	return doc
}

// Decode parses body into a generic JSON document. Numbers are kept as
// json.Number so large ids survive without float rounding.
func Decode(body []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}
