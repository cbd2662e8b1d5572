package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ayusman/cursorflow/internal/app"
	"github.com/ayusman/cursorflow/internal/config"
	"github.com/ayusman/cursorflow/internal/detector"
	"github.com/ayusman/cursorflow/internal/server"
	"github.com/ayusman/cursorflow/internal/store"
)

type options struct {
	configFile string
	dbPath     string
	addr       string
	pluginDir  string
	webDir     string
	detector   string
	replay     string
	loop       bool
	debug      bool
}

func main() {
	opts := parseFlags()

	logger, err := newLogger(opts.debug)
	if err != nil {
		log.Fatalf("Error starting logger: %v", err)
	}
	defer logger.Sync()

	if err := run(opts, logger); err != nil {
		logger.Error("cursorflow exited with error", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func parseFlags() options {
	dataDir := defaultDataDir()

	var opts options
	flag.StringVar(&opts.configFile, "config", "", "engine configuration YAML (defaults when empty)")
	flag.StringVar(&opts.dbPath, "db", filepath.Join(dataDir, "cursorflow.db"), "profile and trace database")
	flag.StringVar(&opts.addr, "addr", ":8080", "HTTP listen address")
	flag.StringVar(&opts.pluginDir, "plugins", filepath.Join(dataDir, "plugins"), "executor plugin directory")
	flag.StringVar(&opts.webDir, "web", "", "static files to serve at /")
	flag.StringVar(&opts.detector, "detector", "", "external detector command writing JSON lines")
	flag.StringVar(&opts.replay, "replay", "", "replay a stored trace instead of live detections")
	flag.BoolVar(&opts.loop, "loop", false, "loop the replayed trace")
	flag.BoolVar(&opts.debug, "debug", false, "development logging")
	flag.Parse()
	return opts
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(opts options, logger *zap.Logger) error {
	engine := config.Default()
	if opts.configFile != "" {
		cfg, err := config.Load(opts.configFile)
		if err != nil {
			return err
		}
		engine = cfg
	}

	if err := os.MkdirAll(filepath.Dir(opts.dbPath), 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	st, err := store.New(opts.dbPath, store.WithLogger(logger.Named("store")))
	if err != nil {
		return fmt.Errorf("initialize store: %w", err)
	}
	defer st.Close()

	appCfg := app.Config{
		Engine:    engine,
		Store:     st,
		PluginDir: opts.pluginDir,
		Logger:    logger.Named("app"),
	}
	if fields := strings.Fields(opts.detector); len(fields) > 0 {
		det, err := detector.NewProcessDetector(detector.ProcessConfig{Command: fields[0], Args: fields[1:]})
		if err != nil {
			return err
		}
		appCfg.Detector = det
	}

	application, err := app.New(appCfg)
	if err != nil {
		return err
	}

	// A config file wins over the stored active profile.
	if opts.configFile == "" {
		if err := application.LoadActiveProfile(); err != nil {
			logger.Warn("could not load active profile", zap.Error(err))
		}
	}
	if err := application.DiscoverPlugins(); err != nil {
		logger.Warn("plugin discovery failed", zap.String("dir", opts.pluginDir), zap.Error(err))
	}
	if opts.replay != "" {
		if err := application.ReplayTrace(opts.replay, opts.loop); err != nil {
			return fmt.Errorf("replay trace %s: %w", opts.replay, err)
		}
	}

	srv := server.New(server.Config{
		StaticDir: opts.webDir,
		Store:     st,
		App:       application,
		Logger:    logger.Named("server"),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return application.Run(ctx)
	})
	g.Go(func() error {
		return srv.ListenAndServe(ctx, opts.addr)
	})

	logger.Info("cursorflow started",
		zap.String("addr", opts.addr),
		zap.String("db", opts.dbPath),
		zap.String("predictor", string(application.Engine().Predictor.Kind)),
		zap.String("style", string(application.Engine().Path.Style)))

	err = g.Wait()
	logger.Info("cursorflow shutting down")
	return err
}

// defaultDataDir is ~/.cursorflow, or .cursorflow when there is no home.
func defaultDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".cursorflow"
	}
	return filepath.Join(homeDir, ".cursorflow")
}
