// Package mask rasterizes annotation geometry into binary masks aligned with
// an extracted image region.
package mask

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/paulmach/orb"
	"golang.org/x/image/vector"
)

// Transform maps full-resolution slide coordinates into region-local mask
// pixels: (p - origin) / downsample.
type Transform struct {
	OriginX    float64
	OriginY    float64
	Downsample float64
}

func (t Transform) Apply(p orb.Point) (float64, float64) {
	ds := t.Downsample
	if ds <= 0 {
		ds = 1
	}
	return (p[0] - t.OriginX) / ds, (p[1] - t.OriginY) / ds
}

// Rasterize draws the geometry as white (255) on a black w x h mask. Polygon
// interiors fill, holes stay black, points become single pixels and
// linestrings 1px strokes.
func Rasterize(g orb.Geometry, w, h int, t Transform) (*image.Gray, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("invalid mask size %dx%d", w, h)
	}
	mask := image.NewGray(image.Rect(0, 0, w, h))

	switch geo := g.(type) {
	case orb.Polygon:
		fillPolygons(mask, []orb.Polygon{geo}, t)
	case orb.MultiPolygon:
		fillPolygons(mask, geo, t)
	case orb.Point:
		setPixel(mask, t, geo)
	case orb.LineString:
		strokeLine(mask, t, geo)
	default:
		return nil, fmt.Errorf("unsupported geometry type %q", g.GeoJSONType())
	}
	return mask, nil
}

// fillPolygons rasterizes with the non-zero winding rule, so ring
// orientations are normalized first: exterior counterclockwise, holes
// clockwise.
func fillPolygons(mask *image.Gray, polys []orb.Polygon, t Transform) {
	b := mask.Bounds()
	ras := vector.NewRasterizer(b.Dx(), b.Dy())

	for _, poly := range polys {
		for i, ring := range poly {
			if len(ring) < 3 {
				continue
			}
			wantCCW := i == 0
			reversed := (ring.Orientation() == orb.CCW) != wantCCW
			addRing(ras, ring, reversed, t)
		}
	}
	ras.Draw(mask, b, image.NewUniform(color.Gray{Y: 0xff}), image.Point{})
	binarize(mask)
}

func addRing(ras *vector.Rasterizer, ring orb.Ring, reversed bool, t Transform) {
	at := func(i int) orb.Point {
		if reversed {
			return ring[len(ring)-1-i]
		}
		return ring[i]
	}
	x, y := t.Apply(at(0))
	ras.MoveTo(float32(x), float32(y))
	for i := 1; i < len(ring); i++ {
		x, y = t.Apply(at(i))
		ras.LineTo(float32(x), float32(y))
	}
	ras.ClosePath()
}

// binarize snaps antialiased edge coverage to hard black/white.
func binarize(mask *image.Gray) {
	for i, v := range mask.Pix {
		if v >= 0x80 {
			mask.Pix[i] = 0xff
		} else {
			mask.Pix[i] = 0
		}
	}
}

func setPixel(mask *image.Gray, t Transform, p orb.Point) {
	fx, fy := t.Apply(p)
	x, y := int(math.Round(fx)), int(math.Round(fy))
	if image.Pt(x, y).In(mask.Bounds()) {
		mask.SetGray(x, y, color.Gray{Y: 0xff})
	}
}

func strokeLine(mask *image.Gray, t Transform, line orb.LineString) {
	if len(line) == 1 {
		setPixel(mask, t, line[0])
		return
	}
	for i := 1; i < len(line); i++ {
		x0f, y0f := t.Apply(line[i-1])
		x1f, y1f := t.Apply(line[i])
		drawSegment(mask,
			int(math.Round(x0f)), int(math.Round(y0f)),
			int(math.Round(x1f)), int(math.Round(y1f)))
	}
}

// drawSegment is a plain integer Bresenham stroke.
func drawSegment(mask *image.Gray, x0, y0, x1, y1 int) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy
	for {
		if image.Pt(x0, y0).In(mask.Bounds()) {
			mask.SetGray(x0, y0, color.Gray{Y: 0xff})
		}
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
