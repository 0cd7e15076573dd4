// Command extract-annotations walks a QuPath project and serializes every
// annotation's geometry and classification into one GeoJSON file.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/mvoisin/qpexport/internal/config"
	"github.com/mvoisin/qpexport/internal/export"
	"github.com/mvoisin/qpexport/internal/imgserver"
	"github.com/mvoisin/qpexport/internal/logger"
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
	flag.StringVar(&cfg.GeoJSONOut, "out", cfg.GeoJSONOut, "output GeoJSON file")
	flag.StringVar(&cfg.URIRewrite, "uri-rewrite", cfg.URIRewrite, "stored URI prefix rules: from=>to[,from=>to...]")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug|info|warn|error")
	flag.Parse()

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		Component: "extract-annotations",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	if cfg.ProjectDir == "" {
		appLog.Error("no project directory (set QP_PROJECT or -project)")
		return 2
	}

	appLog.Info("starting annotation export",
		"project", cfg.ProjectDir,
		"out", cfg.GeoJSONOut,
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
	builder := export.New(appLog, counters, server)

	fc, err := builder.BuildCollection(ctx, proj)
	if err != nil {
		appLog.Error("export interrupted", "err", err)
		prov.LogSummary(appLog)
		return 1
	}

	if len(fc.Features) == 0 {
		appLog.Info("no annotations found in project")
		prov.LogSummary(appLog)
		return 0
	}

	if err := export.WriteFile(cfg.GeoJSONOut, fc); err != nil {
		appLog.Error("write output", "path", cfg.GeoJSONOut, "err", err)
		return 1
	}
	appLog.Info("geojson written", "path", cfg.GeoJSONOut, "features", len(fc.Features))

	prov.LogSummary(appLog)
	return 0
}
