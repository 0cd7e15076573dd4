// Package qpproj reads and writes QuPath project directories: the
// project.qpproj index, per-entry data files, and the stored image URIs.
package qpproj

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strconv"
)

// Project is the parsed project.qpproj. Unknown members are kept verbatim so
// Save round-trips files written by any QuPath version.
type Project struct {
	Version string
	Images  []*ImageEntry

	dir  string
	path string
	raw  map[string]json.RawMessage
}

type ImageEntry struct {
	EntryID   int64
	ImageName string

	server map[string]json.RawMessage
	raw    map[string]json.RawMessage
}

// Load parses <dir>/project.qpproj. A load failure is fatal for a run.
func Load(dir string) (*Project, error) {
	path := filepath.Join(dir, "project.qpproj")
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read project: %w", err)
	}
	var p Project
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	p.dir = dir
	p.path = path
	return &p, nil
}

func (p *Project) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	p.raw = raw
	if v, ok := raw["version"]; ok {
		_ = json.Unmarshal(v, &p.Version)
	}
	if v, ok := raw["images"]; ok {
		if err := json.Unmarshal(v, &p.Images); err != nil {
			return fmt.Errorf(`parse "images": %w`, err)
		}
	}
	return nil
}

func (p *Project) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(p.raw)+1)
	maps.Copy(out, p.raw)
	imgs, err := json.Marshal(p.Images)
	if err != nil {
		return nil, fmt.Errorf(`marshal "images": %w`, err)
	}
	out["images"] = imgs
	return json.Marshal(out)
}

func (e *ImageEntry) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	e.raw = raw
	if v, ok := raw["entryID"]; ok {
		_ = json.Unmarshal(v, &e.EntryID)
	}
	if v, ok := raw["imageName"]; ok {
		_ = json.Unmarshal(v, &e.ImageName)
	}
	if v, ok := raw["serverBuilder"]; ok {
		if err := json.Unmarshal(v, &e.server); err != nil {
			return fmt.Errorf(`entry %d: parse "serverBuilder": %w`, e.EntryID, err)
		}
	}
	return nil
}

func (e *ImageEntry) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(e.raw)+1)
	maps.Copy(out, e.raw)
	if e.server != nil {
		sb, err := json.Marshal(e.server)
		if err != nil {
			return nil, fmt.Errorf(`entry %d: marshal "serverBuilder": %w`, e.EntryID, err)
		}
		out["serverBuilder"] = sb
	}
	return json.Marshal(out)
}

// URIs returns every stored server URI, including ones held by nested
// wrapped builders (rotated or cropped servers).
func (e *ImageEntry) URIs() []string {
	if e.server == nil {
		return nil
	}
	return collectURIs(e.server)
}

// UpdateURIs rewrites stored URIs per the old-to-new map and reports how many
// were replaced.
func (e *ImageEntry) UpdateURIs(repl map[string]string) (int, error) {
	if e.server == nil || len(repl) == 0 {
		return 0, nil
	}
	return updateURIs(e.server, repl)
}

func collectURIs(m map[string]json.RawMessage) []string {
	var out []string
	if r, ok := m["uri"]; ok {
		var s string
		if json.Unmarshal(r, &s) == nil && s != "" {
			out = append(out, s)
		}
	}
	if r, ok := m["builder"]; ok {
		var nested map[string]json.RawMessage
		if json.Unmarshal(r, &nested) == nil {
			out = append(out, collectURIs(nested)...)
		}
	}
	return out
}

func updateURIs(m map[string]json.RawMessage, repl map[string]string) (int, error) {
	n := 0
	if r, ok := m["uri"]; ok {
		var s string
		if json.Unmarshal(r, &s) == nil {
			if nu, ok := repl[s]; ok && nu != s {
				b, err := json.Marshal(nu)
				if err != nil {
					return n, fmt.Errorf("encode uri: %w", err)
				}
				m["uri"] = b
				n++
			}
		}
	}
	if r, ok := m["builder"]; ok {
		var nested map[string]json.RawMessage
		if json.Unmarshal(r, &nested) == nil {
			k, err := updateURIs(nested, repl)
			n += k
			if err != nil {
				return n, err
			}
			if k > 0 {
				b, err := json.Marshal(nested)
				if err != nil {
					return n, fmt.Errorf("encode builder: %w", err)
				}
				m["builder"] = b
			}
		}
	}
	return n, nil
}

func (p *Project) Dir() string { return p.dir }

func (p *Project) DataDir(e *ImageEntry) string {
	return filepath.Join(p.dir, "data", strconv.FormatInt(e.EntryID, 10))
}

func (p *Project) DataFilePath(e *ImageEntry) string {
	return filepath.Join(p.DataDir(e), "data.qpdata")
}

func (p *Project) AnnotationsPath(e *ImageEntry) string {
	return filepath.Join(p.DataDir(e), "annotations.geojson")
}

func (p *Project) SummaryPath(e *ImageEntry) string {
	return filepath.Join(p.DataDir(e), "summary.json")
}

// Save writes project.qpproj back in place. Only called when URI repair is
// asked to persist.
func (p *Project) Save() error {
	b, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal project: %w", err)
	}
	if err := os.WriteFile(p.path, append(b, '\n'), 0o644); err != nil {
		return fmt.Errorf("write project: %w", err)
	}
	return nil
}
