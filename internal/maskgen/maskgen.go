// Package maskgen extracts per-annotation image regions and writes them with
// their rasterized binary masks as paired PNG files.
package maskgen

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mvoisin/qpexport/internal/annot"
	"github.com/mvoisin/qpexport/internal/imgserver"
	"github.com/mvoisin/qpexport/internal/logger"
	"github.com/mvoisin/qpexport/internal/mask"
	"github.com/mvoisin/qpexport/internal/metrics"
	"github.com/mvoisin/qpexport/internal/names"
	"github.com/mvoisin/qpexport/internal/qpproj"
)

type Generator struct {
	log      *slog.Logger
	counters *metrics.Batch
	server   *imgserver.Server
	maxEdge  int

	imagesDir string
	masksDir  string
}

// New prepares the output layout under outRoot. Failing to create the output
// directories is fatal for the run.
func New(outRoot string, maxEdge int, server *imgserver.Server, counters *metrics.Batch, log *slog.Logger) (*Generator, error) {
	g := &Generator{
		log:       log,
		counters:  counters,
		server:    server,
		maxEdge:   maxEdge,
		imagesDir: filepath.Join(outRoot, "images"),
		masksDir:  filepath.Join(outRoot, "masks"),
	}
	for _, dir := range []string{g.imagesDir, g.masksDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output dir: %w", err)
		}
	}
	return g, nil
}

// Run walks every entry and writes an image/mask PNG pair per annotation,
// returning how many pairs were written. Per-item failures are logged and
// skipped.
func (g *Generator) Run(ctx context.Context, proj *qpproj.Project) (int, error) {
	total := 0
	for _, e := range proj.Images {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		ictx := logger.WithImage(logger.WithEntryID(ctx, e.EntryID), e.ImageName)
		g.log.InfoContext(ictx, "processing image")
		g.counters.ImagesProcessed.Inc()

		anns, err := annot.ReadFile(proj.AnnotationsPath(e))
		if errors.Is(err, fs.ErrNotExist) {
			// the sidecar is optional; an image nobody annotated is normal
			g.log.InfoContext(ictx, "no annotations found")
			continue
		}
		if err != nil {
			g.log.ErrorContext(ictx, "read annotations", "err", err)
			g.counters.ItemErrors.WithLabelValues("annotations").Inc()
			continue
		}
		if len(anns) == 0 {
			g.log.InfoContext(ictx, "no annotations found")
			continue
		}

		uris := e.URIs()
		if len(uris) == 0 {
			g.log.ErrorContext(ictx, "entry has no stored URI")
			g.counters.ItemErrors.WithLabelValues("uri").Inc()
			continue
		}
		uri := uris[0]

		imgW, imgH, err := g.server.Dimensions(uri)
		if err != nil {
			g.log.ErrorContext(ictx, "open image", "uri", uri, "err", err)
			g.counters.ItemErrors.WithLabelValues("image").Inc()
			continue
		}

		for i, a := range anns {
			written, err := g.processAnnotation(ictx, e, uri, imgW, imgH, i, a)
			if err != nil {
				g.log.ErrorContext(ictx, "process annotation", "index", i, "err", err)
				g.counters.ItemErrors.WithLabelValues("annotation").Inc()
				continue
			}
			if written {
				total++
			}
		}
	}
	return total, nil
}

func (g *Generator) processAnnotation(ctx context.Context, e *qpproj.ImageEntry, uri string, imgW, imgH, index int, a annot.Annotation) (bool, error) {
	if !annot.Supported(a.Geometry) {
		g.log.WarnContext(ctx, "unsupported geometry type",
			"index", index,
			"type", annot.GeometryType(a.Geometry))
		g.counters.AnnotationsSkipped.WithLabelValues("unsupported_geometry").Inc()
		return false, nil
	}

	req := imgserver.RegionFromBound(a.Geometry.Bound()).ClampTo(imgW, imgH)
	if !req.Valid() {
		g.log.WarnContext(ctx, "annotation skipped (invalid dimensions)", "index", index)
		g.counters.AnnotationsSkipped.WithLabelValues("invalid_bounds").Inc()
		return false, nil
	}
	req.Downsample = imgserver.ComputeDownsample(req.Width, req.Height, g.maxEdge)

	region, err := g.server.ReadRegion(uri, req)
	if err != nil {
		return false, fmt.Errorf("read region: %w", err)
	}

	rb := region.Bounds()
	m, err := mask.Rasterize(a.Geometry, rb.Dx(), rb.Dy(), mask.Transform{
		OriginX:    float64(req.X),
		OriginY:    float64(req.Y),
		Downsample: req.Downsample,
	})
	if err != nil {
		return false, fmt.Errorf("rasterize mask: %w", err)
	}

	cls := a.Classification
	if cls == "" {
		cls = annot.Unclassified
	}
	base := names.OutputBase(e.ImageName, index, cls)

	if err := writePNG(filepath.Join(g.imagesDir, base+"_image.png"), region); err != nil {
		return false, err
	}
	if err := writePNG(filepath.Join(g.masksDir, base+"_mask.png"), m); err != nil {
		return false, err
	}

	g.counters.MasksWritten.Inc()
	g.log.InfoContext(ctx, "annotation written",
		"base", base,
		"width", rb.Dx(),
		"height", rb.Dy(),
		"downsample", req.Downsample)
	return true, nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
