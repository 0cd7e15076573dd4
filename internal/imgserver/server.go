// Package imgserver opens slide images referenced by stored URIs and reads
// clamped, optionally downsampled sub-regions from them.
package imgserver

import (
	"fmt"
	"image"
	"log/slog"
	"net/url"
	"os"
	"strings"

	_ "image/jpeg"
	_ "image/png"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

type Server struct {
	log   *slog.Logger
	cache *lru.Cache[uint64, image.Image]
}

// New returns a server caching up to cacheSize decoded images, so the many
// annotations of one slide decode it once.
func New(cacheSize int, log *slog.Logger) *Server {
	if cacheSize <= 0 {
		cacheSize = 4
	}
	c, _ := lru.New[uint64, image.Image](cacheSize)
	return &Server{log: log, cache: c}
}

// ResolvePath turns a stored server URI into a filesystem path. Plain paths
// pass through.
func ResolvePath(raw string) (string, error) {
	if !strings.HasPrefix(raw, "file:") {
		return raw, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse uri %q: %w", raw, err)
	}
	if u.Path == "" {
		return "", fmt.Errorf("uri %q has no path", raw)
	}
	return u.Path, nil
}

func (s *Server) Open(uri string) (image.Image, error) {
	path, err := ResolvePath(uri)
	if err != nil {
		return nil, err
	}
	key := xxhash.Sum64String(path)
	if img, ok := s.cache.Get(key); ok {
		return img, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer func() { _ = f.Close() }()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	b := img.Bounds()
	s.log.Debug("decoded image",
		"path", path,
		"format", format,
		"width", b.Dx(),
		"height", b.Dy())

	s.cache.Add(key, img)
	return img, nil
}

// Dimensions reads only the image header unless a decode is already cached.
func (s *Server) Dimensions(uri string) (int, int, error) {
	path, err := ResolvePath(uri)
	if err != nil {
		return 0, 0, err
	}
	if img, ok := s.cache.Get(xxhash.Sum64String(path)); ok {
		b := img.Bounds()
		return b.Dx(), b.Dy(), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("open image: %w", err)
	}
	defer func() { _ = f.Close() }()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("decode header %s: %w", path, err)
	}
	return cfg.Width, cfg.Height, nil
}

// ReadRegion extracts the requested rectangle, scaled down by the request's
// downsample factor.
func (s *Server) ReadRegion(uri string, req RegionRequest) (image.Image, error) {
	if !req.Valid() {
		return nil, fmt.Errorf("invalid region %dx%d", req.Width, req.Height)
	}
	img, err := s.Open(uri)
	if err != nil {
		return nil, err
	}

	crop := image.Rect(req.X, req.Y, req.X+req.Width, req.Y+req.Height)
	crop = crop.Intersect(img.Bounds())
	if crop.Empty() {
		return nil, fmt.Errorf("region %v lies outside the image", crop)
	}

	ow, oh := req.OutputDims()
	dst := image.NewRGBA(image.Rect(0, 0, ow, oh))
	if req.Downsample <= 1 {
		draw.Copy(dst, image.Point{}, img, crop, draw.Src, nil)
	} else {
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, crop, draw.Src, nil)
	}
	return dst, nil
}
