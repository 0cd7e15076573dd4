// Command generate-masks walks a QuPath project and writes, per annotation,
// the extracted image region and a binary mask of its shape as paired PNGs.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/mvoisin/qpexport/internal/config"
	"github.com/mvoisin/qpexport/internal/imgserver"
	"github.com/mvoisin/qpexport/internal/logger"
	"github.com/mvoisin/qpexport/internal/maskgen"
	"github.com/mvoisin/qpexport/internal/metrics"
	"github.com/mvoisin/qpexport/internal/qpproj"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.FromEnv()
	flag.StringVar(&cfg.ProjectDir, "project", cfg.ProjectDir, "QuPath project directory (contains project.qpproj)")
	flag.StringVar(&cfg.MaskOut, "out", cfg.MaskOut, "output root for images/ and masks/")
	flag.StringVar(&cfg.URIRewrite, "uri-rewrite", cfg.URIRewrite, "stored URI prefix rules: from=>to[,from=>to...]")
	flag.IntVar(&cfg.MaxRegionEdge, "max-region-edge", cfg.MaxRegionEdge, "downsample regions larger than this edge")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug|info|warn|error")
	flag.Parse()

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		Component: "generate-masks",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	if cfg.ProjectDir == "" {
		appLog.Error("no project directory (set QP_PROJECT or -project)")
		return 2
	}

	appLog.Info("starting mask generation",
		"project", cfg.ProjectDir,
		"out", cfg.MaskOut,
		"max_region_edge", cfg.MaxRegionEdge,
		"version", Version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	prov := metrics.Init(metrics.BuildInfo{Version: Version})
	counters := metrics.NewBatch(prov.Registerer())
	if cfg.MetricsEnabled {
		go func() {
			if err := prov.Serve(ctx, cfg.MetricsAddr, cfg.MetricsPath, appLog); err != nil {
				appLog.Error("metrics server exited", "err", err)
			}
		}()
	}

	proj, err := qpproj.Load(cfg.ProjectDir)
	if err != nil {
		appLog.Error("load project", "err", err)
		return 1
	}
	appLog.Info("project loaded", "images", len(proj.Images))

	if rules := qpproj.ParseRules(cfg.URIRewrite); len(rules) > 0 {
		appLog.Info("checking stored image URIs")
		repaired := qpproj.RepairURIs(proj, rules, appLog)
		appLog.Info("URI check done", "repaired", repaired)
		if cfg.URIRewriteSave && repaired > 0 {
			if err := proj.Save(); err != nil {
				appLog.Error("persist repaired project", "err", err)
			}
		}
	}

	server := imgserver.New(cfg.ImageCacheSize, appLog)
	gen, err := maskgen.New(cfg.MaskOut, cfg.MaxRegionEdge, server, counters, appLog)
	if err != nil {
		appLog.Error("prepare output", "err", err)
		return 1
	}

	written, err := gen.Run(ctx, proj)
	if err != nil {
		appLog.Error("mask generation interrupted", "written", written, "err", err)
		prov.LogSummary(appLog)
		return 1
	}

	appLog.Info("mask generation done",
		"masks", written,
		"images_dir", cfg.MaskOut+"/images",
		"masks_dir", cfg.MaskOut+"/masks")
	prov.LogSummary(appLog)
	return 0
}
