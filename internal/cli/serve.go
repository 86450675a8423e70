package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"subtitler/internal/config"
	"subtitler/internal/platform"
	"subtitler/internal/server"
	"subtitler/internal/session"
	"subtitler/internal/storage"
	"subtitler/internal/store"
	"subtitler/internal/transcribe"
)

func newServeCmd(app *appState) *cobra.Command {
	var (
		configPath string
		bind       string
		uploadDir  string
		engine     string
		modelDir   string
		noProgress bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the subtitle generation HTTP service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("bind") {
				cfg.Server.Bind = bind
			}
			if cmd.Flags().Changed("upload-dir") {
				cfg.Server.UploadDir = uploadDir
			}
			if cmd.Flags().Changed("engine") {
				cfg.Engine.Backend = engine
			}
			if cmd.Flags().Changed("model-dir") {
				cfg.Engine.ModelDir = modelDir
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return runServe(ctx, app, cfg, noProgress)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "subtitler.toml", "Path to the TOML config file")
	cmd.Flags().StringVar(&bind, "bind", "", "Listen address, e.g. 0.0.0.0:5000")
	cmd.Flags().StringVar(&uploadDir, "upload-dir", "", "Directory where uploaded media is stored")
	cmd.Flags().StringVar(&engine, "engine", "", "Transcription backend: openai|local")
	cmd.Flags().StringVar(&modelDir, "model-dir", "", "Directory where local engine models are stored")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable model download progress output")

	return cmd
}

func runServe(ctx context.Context, app *appState, cfg *config.Config, noProgress bool) error {
	logger := app.log()

	engine, err := buildEngine(cfg, logger, noProgress)
	if err != nil {
		return err
	}

	gateway, err := buildGateway(cfg, logger)
	if err != nil {
		return err
	}
	if gateway == nil {
		logger.Info("remote subtitle storage disabled")
	}

	records, err := buildRecords(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if records != nil {
		defer func() {
			if err := records.Close(); err != nil {
				logger.Warn("failed to close metadata store", zap.Error(err))
			}
		}()
	} else {
		logger.Info("transcription metadata store disabled")
	}

	pipeline, err := session.NewPipeline(session.Options{
		Engine:       engine,
		Gateway:      gateway,
		Records:      records,
		StoreContent: cfg.Database.StoreContent,
		UploadDir:    cfg.Server.UploadDir,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	srv, err := server.New(server.Options{
		Bind:           cfg.Server.Bind,
		Pipeline:       pipeline,
		Records:        records,
		DefaultModel:   cfg.Engine.DefaultModel,
		MaxUploadBytes: cfg.MaxUploadBytes(),
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	return srv.Run(ctx)
}

func buildEngine(cfg *config.Config, logger *zap.Logger, noProgress bool) (transcribe.Engine, error) {
	switch cfg.Engine.Backend {
	case "openai":
		return transcribe.NewOpenAIEngine(transcribe.OpenAIOptions{
			APIKey:  cfg.Engine.APIKey,
			BaseURL: cfg.Engine.BaseURL,
			Logger:  logger,
		})
	case "local":
		modelDir, err := platform.ResolveModelDir(cfg.Engine.ModelDir)
		if err != nil {
			return nil, err
		}
		return transcribe.NewLocalEngine(transcribe.LocalOptions{
			Executable:   cfg.Engine.Executable,
			ModelDir:     modelDir,
			AutoDownload: cfg.Engine.AutoDownload,
			NoProgress:   noProgress,
			Logger:       logger,
		})
	default:
		return nil, fmt.Errorf("unknown engine backend %q", cfg.Engine.Backend)
	}
}

func buildGateway(cfg *config.Config, logger *zap.Logger) (storage.Gateway, error) {
	switch cfg.Storage.Backend {
	case "off":
		return nil, nil
	case "bucket":
		return storage.NewBucketGateway(storage.BucketOptions{
			BaseURL: cfg.Storage.URL,
			Bucket:  cfg.Storage.Bucket,
			Token:   cfg.Storage.Token,
			Logger:  logger,
		})
	case "gofile":
		return storage.NewGofileGateway(storage.GofileOptions{
			Token:  cfg.Storage.Token,
			Folder: cfg.Storage.Folder,
			Logger: logger,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

func buildRecords(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store.Store, error) {
	switch cfg.Database.Backend {
	case "off":
		return nil, nil
	case "sqlite":
		logger.Info("opening sqlite metadata store", zap.String("path", cfg.Database.Path))
		return store.OpenSQLite(cfg.Database.Path)
	case "postgres":
		logger.Info("connecting to postgres metadata store")
		return store.OpenPostgres(ctx, cfg.Database.DSN)
	default:
		return nil, fmt.Errorf("unknown database backend %q", cfg.Database.Backend)
	}
}
