package imgserver

import (
	"math"

	"github.com/paulmach/orb"
)

// RegionRequest addresses a sub-rectangle of a slide at a given downsample,
// in full-resolution pixel coordinates.
type RegionRequest struct {
	X, Y          int
	Width, Height int
	Downsample    float64
}

// RegionFromBound converts a geometry bound into a pixel region.
func RegionFromBound(b orb.Bound) RegionRequest {
	return RegionRequest{
		X:          int(b.Min[0]),
		Y:          int(b.Min[1]),
		Width:      int(b.Max[0] - b.Min[0]),
		Height:     int(b.Max[1] - b.Min[1]),
		Downsample: 1.0,
	}
}

// ClampTo fits the region inside an imgW x imgH image: the origin is pulled
// into [0, dim-1] and the sizes truncated to what remains.
func (r RegionRequest) ClampTo(imgW, imgH int) RegionRequest {
	x := min(max(r.X, 0), imgW-1)
	y := min(max(r.Y, 0), imgH-1)
	r.X, r.Y = x, y
	r.Width = min(r.Width, imgW-x)
	r.Height = min(r.Height, imgH-y)
	return r
}

// Valid reports whether the region still has area after clamping.
func (r RegionRequest) Valid() bool {
	return r.Width > 0 && r.Height > 0
}

// ComputeDownsample keeps extracted regions at or under maxEdge pixels per
// side; anything smaller reads at full resolution.
func ComputeDownsample(w, h, maxEdge int) float64 {
	if maxEdge <= 0 || (w <= maxEdge && h <= maxEdge) {
		return 1.0
	}
	return math.Max(float64(w)/float64(maxEdge), float64(h)/float64(maxEdge))
}

// OutputDims is the pixel size of the raster the request produces.
func (r RegionRequest) OutputDims() (int, int) {
	if r.Downsample <= 1 {
		return r.Width, r.Height
	}
	w := int(math.Round(float64(r.Width) / r.Downsample))
	h := int(math.Round(float64(r.Height) / r.Downsample))
	return max(w, 1), max(h, 1)
}
