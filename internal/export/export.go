// Package export assembles one GeoJSON FeatureCollection out of every
// annotation in a project.
package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/paulmach/orb/geojson"

	"github.com/mvoisin/qpexport/internal/annot"
	"github.com/mvoisin/qpexport/internal/imgserver"
	"github.com/mvoisin/qpexport/internal/logger"
	"github.com/mvoisin/qpexport/internal/metrics"
	"github.com/mvoisin/qpexport/internal/qpproj"
)

type Builder struct {
	log      *slog.Logger
	counters *metrics.Batch
	server   *imgserver.Server
}

func New(log *slog.Logger, counters *metrics.Batch, server *imgserver.Server) *Builder {
	return &Builder{log: log, counters: counters, server: server}
}

// BuildCollection walks every image entry and collects its annotations into
// a single feature collection. Per-entry and per-annotation failures are
// logged, counted, and skipped.
func (b *Builder) BuildCollection(ctx context.Context, proj *qpproj.Project) (*geojson.FeatureCollection, error) {
	fc := geojson.NewFeatureCollection()

	if classes, err := qpproj.LoadClasses(proj.Dir()); err != nil {
		b.log.Warn("load classifiers", "err", err)
	} else if len(classes) > 0 {
		fc.ExtraMembers = geojson.Properties{"classes": classes}
	}

	for _, e := range proj.Images {
		if err := ctx.Err(); err != nil {
			return fc, err
		}
		ictx := logger.WithImage(logger.WithEntryID(ctx, e.EntryID), e.ImageName)
		b.log.InfoContext(ictx, "processing image")
		b.counters.ImagesProcessed.Inc()

		if s, err := qpproj.ReadSummary(proj.SummaryPath(e)); err == nil && s != nil {
			b.log.DebugContext(ictx, "entry summary",
				"objects", s.Hierarchy.NObjects,
				"image_type", s.ImageType)
		}

		anns, err := annot.ReadFile(proj.AnnotationsPath(e))
		if errors.Is(err, fs.ErrNotExist) {
			// the sidecar is optional; an image nobody annotated is normal
			b.log.InfoContext(ictx, "no annotations found")
			continue
		}
		if err != nil {
			b.log.ErrorContext(ictx, "read annotations", "err", err)
			b.counters.ItemErrors.WithLabelValues("annotations").Inc()
			continue
		}
		if len(anns) == 0 {
			b.log.InfoContext(ictx, "no annotations found")
			continue
		}

		width, height := b.baseDimensions(ictx, proj, e)

		for _, a := range anns {
			if !annot.Supported(a.Geometry) {
				b.log.WarnContext(ictx, "unsupported geometry type",
					"type", annot.GeometryType(a.Geometry))
				b.counters.AnnotationsSkipped.WithLabelValues("unsupported_geometry").Inc()
				continue
			}
			cls := a.Classification
			if cls == "" {
				cls = annot.Unclassified
			}
			f := geojson.NewFeature(a.Geometry)
			f.Properties = geojson.Properties{
				"image_name":        e.ImageName,
				"classification":    cls,
				"image_width_base":  width,
				"image_height_base": height,
			}
			fc.Append(f)
			b.counters.AnnotationsExported.Inc()
		}
	}
	return fc, nil
}

// baseDimensions prefers the data file's embedded metadata and falls back to
// the image header; entries with neither report 0x0.
func (b *Builder) baseDimensions(ctx context.Context, proj *qpproj.Project, e *qpproj.ImageEntry) (int, int) {
	df, err := qpproj.ReadDataFile(proj.DataFilePath(e))
	if err != nil {
		b.log.DebugContext(ctx, "data file metadata unavailable", "err", err)
	} else if df.Metadata != nil {
		md := df.Metadata.Server.Metadata
		if md.Width > 0 && md.Height > 0 {
			return md.Width, md.Height
		}
	}

	for _, uri := range e.URIs() {
		if w, h, err := b.server.Dimensions(uri); err == nil {
			return w, h
		}
	}
	b.log.WarnContext(ctx, "base image dimensions unknown")
	return 0, 0
}

// WriteFile writes the collection as pretty-printed GeoJSON, creating the
// output directory as needed.
func WriteFile(path string, fc *geojson.FeatureCollection) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	b, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal feature collection: %w", err)
	}
	if err := os.WriteFile(path, append(b, '\n'), 0o644); err != nil {
		return fmt.Errorf("write geojson: %w", err)
	}
	return nil
}
