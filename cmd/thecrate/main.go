// Package main provides the TheCrate CLI application entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"thecrate/internal/auth"
	"thecrate/internal/core"
	"thecrate/internal/device"
	httpserver "thecrate/internal/http"
	"thecrate/internal/library"
	"thecrate/internal/recommend"
)

var (
	cfgFile string
	config  *core.Config
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "thecrate",
	Short: "TheCrate - natural-language crate digging for producers",
	Long: `TheCrate turns a plain-language description of a sound into ranked track
recommendations, plays them through a local playback device and keeps a
per-user library of saved tracks and playlists.`,
	RunE: runTheCrate,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("device-name", "TheCrate Player", "playback device name")
	rootCmd.PersistentFlags().String("device-daemon-url", "", "playback daemon base URL")
	rootCmd.PersistentFlags().String("device-events-url", "", "playback daemon event stream URL")
	rootCmd.PersistentFlags().Int("device-volume", 50, "initial playback volume (0-100)")
	rootCmd.PersistentFlags().String("recommend-url", "", "recommendation service base URL")
	rootCmd.PersistentFlags().Int("recommend-max-results", 24, "maximum tracks kept per search")
	rootCmd.PersistentFlags().String("session-path", "", "session file path")
	rootCmd.PersistentFlags().String("library-db-path", "", "library database path")
	rootCmd.PersistentFlags().String("server-host", "", "HTTP server host")
	rootCmd.PersistentFlags().Int("server-port", 8080, "HTTP server port")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bind flags: %v\n", err)
		os.Exit(1)
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(".env")
		viper.SetConfigType("env")
	}

	viper.SetEnvPrefix("THECRATE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
			os.Exit(1)
		}
	}

	config = buildConfig()
	logger = buildLogger(config.Log.Level)
}

func buildConfig() *core.Config {
	cfg := core.DefaultConfig()

	if v := viper.GetString("device-name"); v != "" {
		cfg.Device.Name = v
	}
	if v := viper.GetString("device-daemon-url"); v != "" {
		cfg.Device.DaemonURL = v
	}
	if v := viper.GetString("device-events-url"); v != "" {
		cfg.Device.EventsURL = v
	}
	cfg.Device.Volume = viper.GetInt("device-volume")

	if v := viper.GetString("recommend-url"); v != "" {
		cfg.Recommend.BaseURL = v
	}
	if v := viper.GetInt("recommend-max-results"); v > 0 {
		cfg.Recommend.MaxResults = v
	}

	if v := viper.GetString("session-path"); v != "" {
		cfg.Session.Path = v
	}
	if v := viper.GetString("library-db-path"); v != "" {
		cfg.Library.DBPath = v
	}

	if v := viper.GetString("server-host"); v != "" {
		cfg.Server.Host = v
	}
	cfg.Server.Port = viper.GetInt("server-port")

	cfg.Log.Level = viper.GetString("log-level")

	return cfg
}

func buildLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch strings.ToLower(level) {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	builtLogger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("Failed to build logger: %v", err))
	}

	return builtLogger
}

func runTheCrate(_ *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("Starting TheCrate",
		zap.String("version", "1.0.0"),
		zap.String("device_name", config.Device.Name))

	if err := validateConfig(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	session := auth.NewSession(&config.Session, logger.Named("auth"))
	if err := session.Load(); err != nil {
		logger.Warn("Failed to restore session, starting unauthenticated", zap.Error(err))
	}

	db, err := library.OpenDB(config.Library.DBPath, config.Library.RecordCacheLen)
	if err != nil {
		return fmt.Errorf("failed to open library database: %w", err)
	}
	defer db.Close()
	store := library.NewStore(db, &config.Library, logger.Named("library"))

	// A restored token may have expired. The profile fetch also yields the
	// user id that keys the library record.
	if session.Authenticated() {
		if profile, err := session.FetchProfile(ctx); err == nil {
			if err := store.Load(ctx, profile.ID); err != nil {
				logger.Warn("Failed to load library record", zap.Error(err))
			}
		}
	}

	binder := device.NewBinder(&config.Device, session.Token, logger.Named("device"))
	defer binder.Teardown()

	transport := device.NewSpotifyTransport(ctx, session.TokenSource(), logger.Named("transport"))
	controller := core.NewController(binder, transport, config.Device.Volume, logger.Named("controller"))

	recommender := recommend.NewClient(&config.Recommend, logger.Named("recommend"))
	search := recommend.NewSession(recommender, logger.Named("search"))

	metrics := httpserver.NewMetrics(prometheus.DefaultRegisterer)
	controller.SetEventObserver(func(ev core.DeviceEvent) {
		metrics.RecordDeviceEvent(ev.Type.String())
		state := controller.State()
		metrics.SetDeviceReady(state.DeviceReady)
		metrics.SetVolume(state.Volume)
	})
	controller.SetErrorHandler(func(kind core.ErrorKind, message string) {
		metrics.RecordError("device", kind.String())
		logger.Warn("Device error reported",
			zap.String("kind", kind.String()),
			zap.String("message", message))
	})

	api := httpserver.NewAPI(
		controller,
		search,
		store,
		session,
		config.App.QuickSearches,
		metrics,
		logger.Named("api"),
	)
	server := httpserver.NewServer(&config.Server, api, metrics, logger.Named("http"))

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.Start(gCtx)
	})

	g.Go(func() error {
		return controller.Run(gCtx)
	})

	g.Go(func() error {
		if err := binder.Initialize(gCtx); err != nil {
			logger.Warn("Playback device initialization failed", zap.Error(err))
		}
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(config.Server.MetricsInterval)
		defer ticker.Stop()

		for {
			select {
			case <-gCtx.Done():
				return nil
			case <-ticker.C:
				state := controller.State()
				metrics.SetDeviceReady(state.DeviceReady)
				metrics.SetVolume(state.Volume)
				metrics.SetLibrarySize(len(store.SavedTracks()))
			}
		}
	})

	logger.Info("TheCrate started successfully",
		zap.String("http_addr", fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)))

	if err := g.Wait(); err != nil {
		logger.Error("TheCrate stopped with error", zap.Error(err))
		return err
	}

	logger.Info("TheCrate stopped gracefully")
	return nil
}

func validateConfig() error {
	if config.Device.DaemonURL == "" {
		return fmt.Errorf("playback daemon URL is required")
	}

	if config.Device.EventsURL == "" {
		return fmt.Errorf("playback daemon event stream URL is required")
	}

	if config.Recommend.BaseURL == "" {
		return fmt.Errorf("recommendation service URL is required")
	}

	if config.Library.DBPath == "" {
		return fmt.Errorf("library database path is required")
	}

	return nil
}
