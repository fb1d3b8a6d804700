// Package bootstrap provides dependency initialization for the compilation API.
package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/clipforge/clipforge-api/internal/audiobed"
	"github.com/clipforge/clipforge-api/internal/compile"
	"github.com/clipforge/clipforge-api/internal/config"
	"github.com/clipforge/clipforge-api/internal/connection"
	"github.com/clipforge/clipforge-api/internal/filtergraph"
	"github.com/clipforge/clipforge-api/internal/media"
	"github.com/clipforge/clipforge-api/internal/mediacloud"
	"github.com/clipforge/clipforge-api/internal/selection"
	"github.com/clipforge/clipforge-api/internal/storage"
	"github.com/clipforge/clipforge-api/internal/vault"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	Compiler    *compile.Service
	Connections *connection.Service

	// closers to run on shutdown, newest first.
	closers []func() error
}

// Close releases held resources such as the record database.
func (d *Dependencies) Close() error {
	var firstErr error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{}

	v, err := vault.New(cfg.VaultPassphrase)
	if err != nil {
		return nil, fmt.Errorf("create vault: %w", err)
	}
	deps.Connections = connection.NewService(connection.NewMemoryStore(), v)

	var clientOpts []mediacloud.ClientOption
	if cfg.ProviderBaseURL != "" {
		clientOpts = append(clientOpts, mediacloud.WithBaseURL(cfg.ProviderBaseURL))
	}
	client := mediacloud.NewClient(clientOpts...)

	renderer := media.NewFFmpegRenderer(cfg.FFmpegPath, cfg.FFprobePath)
	picker := audiobed.NewPicker(cfg.AudioDir, renderer)

	temp, err := storage.NewTempRoot(cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("create temp root: %w", err)
	}

	records, err := initRecordStore(cfg, logger, deps)
	if err != nil {
		return nil, err
	}
	archiver, err := initArchiver(cfg, logger)
	if err != nil {
		return nil, err
	}

	deps.Compiler = compile.NewService(compile.Deps{
		Client:   client,
		Creds:    deps.Connections,
		Selector: selection.NewPolicy(client),
		Graphs:   filtergraph.NewCompiler(),
		Renderer: renderer,
		Audio:    picker,
		Temp:     temp,
		Archiver: archiver,
		Repo:     compile.NewMemoryRepository(),
		Records:  records,
	}, logger)

	return deps, nil
}

// initRecordStore picks SQLite when a database path is configured,
// falling back to the in-memory store.
func initRecordStore(cfg *config.Config, logger *slog.Logger, deps *Dependencies) (compile.RecordStore, error) {
	if !cfg.SQLiteEnabled() {
		logger.Info("in-memory record store configured")
		return compile.NewMemoryRecordStore(), nil
	}

	store, err := compile.OpenSQLiteRecordStore(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open record store: %w", err)
	}
	deps.closers = append(deps.closers, store.Close)
	logger.Info("sqlite record store configured",
		slog.String("db_path", cfg.DBPath),
	)
	return store, nil
}

// initArchiver creates the optional S3 archive sink.
func initArchiver(cfg *config.Config, logger *slog.Logger) (storage.Archiver, error) {
	if !cfg.S3Enabled() {
		return nil, nil
	}

	archiver, err := storage.NewS3Archiver(storage.S3Config{
		Bucket:          cfg.S3Bucket,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create S3 archiver: %w", err)
	}
	logger.Info("S3 archive configured",
		slog.String("bucket", cfg.S3Bucket),
		slog.String("region", cfg.S3Region),
	)
	return archiver, nil
}
