package qpproj

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// PathClass is one entry of classifiers/classes.json. Color is QuPath's
// packed ARGB int.
type PathClass struct {
	Name  string `json:"name"`
	Color int32  `json:"color"`
}

// LoadClasses reads the project's classification palette. A missing file is
// not an error; projects without classifiers simply have none.
func LoadClasses(dir string) ([]PathClass, error) {
	path := filepath.Join(dir, "classifiers", "classes.json")
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read classes: %w", err)
	}
	var doc struct {
		PathClasses []PathClass `json:"pathClasses"`
	}
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc.PathClasses, nil
}

type Summary struct {
	ImageType string `json:"imageType"`
	Hierarchy struct {
		NObjects                       int            `json:"nObjects"`
		ObjectTypeCounts               map[string]int `json:"objectTypeCounts"`
		AnnotationClassificationCounts map[string]int `json:"annotationClassificationCounts"`
		DetectionClassificationCounts  map[string]int `json:"detectionClassificationCounts"`
	} `json:"hierarchy"`
}

// ReadSummary reads an entry's summary.json when present.
func ReadSummary(path string) (*Summary, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read summary: %w", err)
	}
	var s Summary
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &s, nil
}
