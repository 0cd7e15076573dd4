// Package config carries the runtime settings shared by the export binaries.
// Values come from the environment first; each binary layers flag overrides
// on top in its main.
package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	// ProjectDir is the directory holding project.qpproj.
	ProjectDir string

	// URIRewrite holds raw "from=>to[,from=>to...]" prefix rules applied to
	// stored image URIs before any image is opened.
	URIRewrite     string
	URIRewriteSave bool

	GeoJSONOut string
	MaskOut    string

	// MaxRegionEdge is the pixel edge beyond which extracted regions are
	// downsampled.
	MaxRegionEdge  int
	ImageCacheSize int

	LogLevel   string
	LogConsole bool

	MetricsEnabled bool
	MetricsAddr    string
	MetricsPath    string
}

func FromEnv() Config {
	maxEdge := getint("MAX_REGION_EDGE", 4096)
	if maxEdge <= 0 {
		maxEdge = 4096
	}
	cacheSize := getint("IMAGE_CACHE_SIZE", 4)
	if cacheSize <= 0 {
		cacheSize = 4
	}

	return Config{
		ProjectDir:     getenv("QP_PROJECT", ""),
		URIRewrite:     getenv("URI_REWRITE", ""),
		URIRewriteSave: getbool("URI_REWRITE_SAVE", false),
		GeoJSONOut:     getenv("GEOJSON_OUT", "geojson_output/toutes_les_annotations.geojson"),
		MaskOut:        getenv("MASK_OUT", "mask_output"),
		MaxRegionEdge:  maxEdge,
		ImageCacheSize: cacheSize,
		LogLevel:       getenv("LOG_LEVEL", "info"),
		LogConsole:     getbool("LOG_CONSOLE", false),
		MetricsEnabled: getbool("METRICS_ENABLED", false),
		MetricsAddr:    getenv("METRICS_ADDR", ":9090"),
		MetricsPath:    getenv("METRICS_PATH", "/metrics"),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}
