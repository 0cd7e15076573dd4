// Package annot reads QuPath annotation sidecars (the GeoJSON export format)
// and filters them down to the geometry types the exports support.
package annot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Annotation is one user-drawn region of interest with its classification.
type Annotation struct {
	Geometry       orb.Geometry
	Classification string
	Feature        *geojson.Feature
}

const Unclassified = "unclassified"

// ReadFile parses an entry's annotations.geojson. QuPath writes either a
// FeatureCollection or a bare feature array depending on version; both are
// accepted.
func ReadFile(path string) ([]Annotation, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read annotations: %w", err)
	}
	anns, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return anns, nil
}

func Parse(data []byte) ([]Annotation, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty document")
	}

	var features []*geojson.Feature
	if trimmed[0] == '[' {
		var raws []json.RawMessage
		if err := json.Unmarshal(trimmed, &raws); err != nil {
			return nil, fmt.Errorf("parse feature array: %w", err)
		}
		for i, r := range raws {
			f, err := geojson.UnmarshalFeature(r)
			if err != nil {
				return nil, fmt.Errorf("feature %d: %w", i, err)
			}
			features = append(features, f)
		}
	} else {
		var root map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &root); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
		tRaw, ok := root["type"]
		if !ok {
			return nil, fmt.Errorf(`missing required member "type"`)
		}
		var typ string
		if err := json.Unmarshal(tRaw, &typ); err != nil {
			return nil, fmt.Errorf(`parse "type": %w`, err)
		}
		if typ != "FeatureCollection" {
			return nil, fmt.Errorf(`type is %q (want "FeatureCollection")`, typ)
		}
		fc, err := geojson.UnmarshalFeatureCollection(trimmed)
		if err != nil {
			return nil, fmt.Errorf("parse feature collection: %w", err)
		}
		features = fc.Features
	}

	out := make([]Annotation, 0, len(features))
	for _, f := range features {
		if !isAnnotation(f) {
			continue
		}
		out = append(out, Annotation{
			Geometry:       f.Geometry,
			Classification: classificationName(f),
			Feature:        f,
		})
	}
	return out, nil
}

// isAnnotation keeps features whose objectType is "annotation"; exports that
// omit objectType entirely are kept as well.
func isAnnotation(f *geojson.Feature) bool {
	v, ok := f.Properties["objectType"]
	if !ok {
		return true
	}
	s, ok := v.(string)
	return ok && s == "annotation"
}

// classificationName digs the class label out of the properties. QuPath
// writes either {"classification": {"name": ...}} or a bare string.
func classificationName(f *geojson.Feature) string {
	switch c := f.Properties["classification"].(type) {
	case string:
		return c
	case map[string]interface{}:
		if n, ok := c["name"].(string); ok {
			return n
		}
	}
	return ""
}

// Supported reports whether the geometry type is one the GeoJSON export
// emits. Everything else, including a nil geometry from a feature written
// with "geometry": null, is skipped with a warning by callers.
func Supported(g orb.Geometry) bool {
	switch g.(type) {
	case orb.Polygon, orb.MultiPolygon, orb.Point, orb.LineString:
		return true
	default:
		return false
	}
}

// GeometryType names a geometry for log output. GeoJSON allows a null
// geometry, which unmarshals to a nil interface.
func GeometryType(g orb.Geometry) string {
	if g == nil {
		return "null"
	}
	return g.GeoJSONType()
}
