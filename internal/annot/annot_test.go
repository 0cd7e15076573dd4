package annot

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
)

const sidecarFC = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "geometry": {"type": "Polygon", "coordinates": [[[0,0],[100,0],[100,80],[0,80],[0,0]]]},
      "properties": {"objectType": "annotation", "classification": {"name": "Tumor", "color": [255,0,0]}}
    },
    {
      "type": "Feature",
      "geometry": {"type": "Point", "coordinates": [12.5, 30]},
      "properties": {"objectType": "annotation"}
    },
    {
      "type": "Feature",
      "geometry": {"type": "LineString", "coordinates": [[0,0],[50,50]]},
      "properties": {"objectType": "detection", "classification": {"name": "Cell"}}
    }
  ]
}`

func TestParse_KeepsAnnotationsOnly(t *testing.T) {
	anns, err := Parse([]byte(sidecarFC))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(anns) != 2 {
		t.Fatalf("annotations=%d want 2 (detection filtered)", len(anns))
	}
	if anns[0].Classification != "Tumor" {
		t.Fatalf("classification=%q", anns[0].Classification)
	}
	if _, ok := anns[0].Geometry.(orb.Polygon); !ok {
		t.Fatalf("geometry type=%T", anns[0].Geometry)
	}
	// annotation without classification has empty label
	if anns[1].Classification != "" {
		t.Fatalf("classification=%q want empty", anns[1].Classification)
	}
}

func TestParse_PolygonRingPointCountsPreserved(t *testing.T) {
	anns, err := Parse([]byte(sidecarFC))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	poly := anns[0].Geometry.(orb.Polygon)
	if len(poly) != 1 {
		t.Fatalf("rings=%d want 1", len(poly))
	}
	if len(poly[0]) != 5 {
		t.Fatalf("ring points=%d want 5", len(poly[0]))
	}
}

func TestParse_BareFeatureArray(t *testing.T) {
	doc := `[
	  {"type":"Feature","geometry":{"type":"Point","coordinates":[1,2]},
	   "properties":{"classification":"Necrosis"}}
	]`
	anns, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(anns) != 1 {
		t.Fatalf("annotations=%d want 1", len(anns))
	}
	// string-form classification is accepted
	if anns[0].Classification != "Necrosis" {
		t.Fatalf("classification=%q", anns[0].Classification)
	}
}

func TestParse_MissingTypeMemberIsAnError(t *testing.T) {
	if _, err := Parse([]byte(`{"features":[]}`)); err == nil {
		t.Fatal("expected error for missing type")
	}
}

func TestParse_WrongTypeMemberIsAnError(t *testing.T) {
	if _, err := Parse([]byte(`{"type":"Feature","features":[]}`)); err == nil {
		t.Fatal("expected error for wrong type")
	}
}

func TestParse_EmptyDocumentIsAnError(t *testing.T) {
	if _, err := Parse([]byte("   \n")); err == nil {
		t.Fatal("expected error")
	}
}

func TestParse_NullGeometryIsKeptWithNilGeometry(t *testing.T) {
	doc := `{
	  "type": "FeatureCollection",
	  "features": [
	    {"type": "Feature", "geometry": null,
	     "properties": {"objectType": "annotation", "classification": {"name": "Empty"}}}
	  ]
	}`
	anns, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(anns) != 1 {
		t.Fatalf("annotations=%d want 1", len(anns))
	}
	if anns[0].Geometry != nil {
		t.Fatalf("geometry=%T want nil", anns[0].Geometry)
	}
	if Supported(anns[0].Geometry) {
		t.Fatal("nil geometry must not be supported")
	}
}

func TestSupported(t *testing.T) {
	cases := []struct {
		g    orb.Geometry
		want bool
	}{
		{orb.Polygon{}, true},
		{orb.MultiPolygon{}, true},
		{orb.Point{1, 2}, true},
		{orb.LineString{}, true},
		{orb.MultiPoint{}, false},
		{orb.MultiLineString{}, false},
		{orb.Collection{}, false},
		{nil, false},
	}
	for _, c := range cases {
		if got := Supported(c.g); got != c.want {
			t.Fatalf("Supported(%T)=%v want %v", c.g, got, c.want)
		}
	}
}

func TestGeometryType(t *testing.T) {
	if got := GeometryType(nil); got != "null" {
		t.Fatalf("GeometryType(nil)=%q", got)
	}
	if got := GeometryType(orb.Point{1, 2}); got != "Point" {
		t.Fatalf("GeometryType(Point)=%q", got)
	}
}

func TestReadFile_MissingFile(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "annotations.geojson"))
	if err == nil {
		t.Fatal("expected error")
	}
	// callers treat a missing sidecar as an unannotated image
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("err=%v, want fs.ErrNotExist in chain", err)
	}
}

func TestReadFile_Roundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "annotations.geojson")
	if err := os.WriteFile(path, []byte(sidecarFC), 0o644); err != nil {
		t.Fatal(err)
	}
	anns, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(anns) != 2 {
		t.Fatalf("annotations=%d want 2", len(anns))
	}
}
