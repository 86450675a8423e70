// Package config loads and validates the service configuration from a TOML
// file, with environment overrides for secrets.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Server contains the HTTP listener and upload handling settings.
type Server struct {
	Bind        string `toml:"bind"`
	UploadDir   string `toml:"upload_dir"`
	MaxUploadMB int64  `toml:"max_upload_mb"`
}

// Engine selects and configures the transcription backend.
type Engine struct {
	// Backend is "openai" or "local".
	Backend      string `toml:"backend"`
	DefaultModel string `toml:"default_model"`

	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`

	Executable   string `toml:"executable"`
	ModelDir     string `toml:"model_dir"`
	AutoDownload bool   `toml:"auto_download"`
}

// Storage configures the optional remote object store for generated
// subtitle files.
type Storage struct {
	// Backend is "off", "bucket" or "gofile".
	Backend string `toml:"backend"`
	URL     string `toml:"url"`
	Bucket  string `toml:"bucket"`
	Token   string `toml:"token"`
	Folder  string `toml:"folder"`
}

// Database configures the optional transcription metadata store.
type Database struct {
	// Backend is "off", "sqlite" or "postgres".
	Backend string `toml:"backend"`
	Path    string `toml:"path"`
	DSN     string `toml:"dsn"`
	// StoreContent persists the full subtitle body, not just the preview.
	StoreContent bool `toml:"store_content"`
}

type Config struct {
	Server   Server   `toml:"server"`
	Engine   Engine   `toml:"engine"`
	Storage  Storage  `toml:"storage"`
	Database Database `toml:"database"`
}

func Default() *Config {
	return &Config{
		Server: Server{
			Bind:        "0.0.0.0:5000",
			UploadDir:   filepath.Join(os.TempDir(), "subtitler-uploads"),
			MaxUploadMB: 200,
		},
		Engine: Engine{
			Backend:      "openai",
			DefaultModel: "base",
			AutoDownload: true,
		},
		Storage: Storage{
			Backend: "off",
			Bucket:  "subtitle_files",
			Folder:  "subtitles_temp",
		},
		Database: Database{
			Backend: "off",
			Path:    filepath.Join(os.TempDir(), "subtitler", "records.db"),
		},
	}
}

// Load reads the config file at path when it exists and overlays it on the
// defaults. A missing file is not an error: the defaults apply as-is.
func Load(path string) (*Config, error) {
	cfg := Default()

	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err == nil {
			if err := toml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides pulls secrets from the environment so they can stay out
// of the config file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SUBTITLER_OPENAI_API_KEY"); v != "" {
		c.Engine.APIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" && c.Engine.APIKey == "" {
		c.Engine.APIKey = v
	}
	if v := os.Getenv("SUBTITLER_STORAGE_TOKEN"); v != "" {
		c.Storage.Token = v
	}
	if v := os.Getenv("SUBTITLER_DATABASE_DSN"); v != "" {
		c.Database.DSN = v
	}
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Bind) == "" {
		return errors.New("server.bind must not be empty")
	}
	if c.Server.MaxUploadMB <= 0 {
		return errors.New("server.max_upload_mb must be positive")
	}

	switch c.Engine.Backend {
	case "openai", "local":
	default:
		return fmt.Errorf("engine.backend must be openai or local, got %q", c.Engine.Backend)
	}

	switch c.Storage.Backend {
	case "off", "bucket", "gofile":
	default:
		return fmt.Errorf("storage.backend must be off, bucket or gofile, got %q", c.Storage.Backend)
	}

	switch c.Database.Backend {
	case "off", "sqlite", "postgres":
	case "":
		c.Database.Backend = "off"
	default:
		return fmt.Errorf("database.backend must be off, sqlite or postgres, got %q", c.Database.Backend)
	}

	if c.Database.Backend == "postgres" && strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("database.dsn is required for the postgres backend")
	}

	return nil
}

// MaxUploadBytes returns the upload size cap in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return c.Server.MaxUploadMB * 1024 * 1024
}

// EnsureDirectories creates the directories the service writes into.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Server.UploadDir}
	if c.Engine.Backend == "local" && strings.TrimSpace(c.Engine.ModelDir) != "" {
		dirs = append(dirs, c.Engine.ModelDir)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}
