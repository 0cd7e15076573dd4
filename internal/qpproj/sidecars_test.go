package qpproj

import (
	"os"
	"path/filepath"
	"testing"
)

func Test_LoadClasses(t *testing.T) {
	dir := t.TempDir()

	classes, err := LoadClasses(dir)
	if err != nil || classes != nil {
		t.Fatalf("missing file: classes=%v err=%v", classes, err)
	}

	if err := os.MkdirAll(filepath.Join(dir, "classifiers"), 0o755); err != nil {
		t.Fatal(err)
	}
	doc := `{"pathClasses": [{"name": "Tumor", "color": -3670016}, {"name": "Stroma", "color": -6895466}]}`
	if err := os.WriteFile(filepath.Join(dir, "classifiers", "classes.json"), []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	classes, err = LoadClasses(dir)
	if err != nil {
		t.Fatalf("LoadClasses: %v", err)
	}
	if len(classes) != 2 || classes[0].Name != "Tumor" || classes[0].Color != -3670016 {
		t.Fatalf("classes=%+v", classes)
	}
}

func Test_ReadSummary(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "summary.json")

	s, err := ReadSummary(path)
	if err != nil || s != nil {
		t.Fatalf("missing file: s=%v err=%v", s, err)
	}

	doc := `{
	  "imageType": "Brightfield (H&E)",
	  "hierarchy": {
	    "nObjects": 42,
	    "objectTypeCounts": {"annotation": 7, "detection": 35},
	    "annotationClassificationCounts": {"Tumor": 5, "Stroma": 2}
	  }
	}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err = ReadSummary(path)
	if err != nil {
		t.Fatalf("ReadSummary: %v", err)
	}
	if s.ImageType != "Brightfield (H&E)" || s.Hierarchy.NObjects != 42 {
		t.Fatalf("summary=%+v", s)
	}
	if s.Hierarchy.ObjectTypeCounts["annotation"] != 7 {
		t.Fatalf("objectTypeCounts=%v", s.Hierarchy.ObjectTypeCounts)
	}
	if s.Hierarchy.AnnotationClassificationCounts["Tumor"] != 5 {
		t.Fatalf("classificationCounts=%v", s.Hierarchy.AnnotationClassificationCounts)
	}
}
