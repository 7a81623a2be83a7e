package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tracklist/cache"
	"tracklist/config"
	"tracklist/db"
	"tracklist/logger"
	"tracklist/repository"
	"tracklist/server"
	"tracklist/service"
)

var watchEnv bool

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动 HTTP 服务器",
	Long:  `启动 tracklist 的 HTTP API 服务器，提供歌曲和歌单的 REST 接口。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd)
	},
}

func init() {
	serverCmd.Flags().BoolVar(&watchEnv, "watch", true, "reload LOG_LEVEL when the .env file changes")
	rootCmd.AddCommand(serverCmd)
}

func runServer(cmd *cobra.Command) error {
	cfg, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	tracks, playlists, closeStore, err := openRepositories(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	playlistCache, closeCache := openCache(cfg)
	defer closeCache()

	trackService := service.NewTrackService(tracks, playlistCache)
	playlistService := service.NewPlaylistService(playlists, tracks, playlistCache, cfg.PlaylistSaveRetries)
	router := server.NewRouter(server.NewAPIHandler(trackService, playlistService))

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if watchEnv {
		go watchLogLevel(ctx, envFile)
	}

	return server.Start(ctx, cfg, router)
}

// openRepositories picks the storage backend named by DB_DRIVER. The returned
// func releases it.
func openRepositories(cfg *config.Config) (repository.TrackRepository, repository.PlaylistRepository, func(), error) {
	if cfg.DBDriver == config.DriverMemory {
		logger.Warn("using in-memory storage, data is lost on restart")
		store := repository.NewMemoryStore()
		return store.Tracks(), store.Playlists(), func() {}, nil
	}

	if err := db.ConnectGormDB(cfg); err != nil {
		return nil, nil, nil, fmt.Errorf("connect database: %w", err)
	}
	if err := db.AutoMigrateModels(repository.Models()...); err != nil {
		db.CloseGormDB()
		return nil, nil, nil, err
	}

	closeDB := func() {
		if err := db.CloseGormDB(); err != nil {
			logger.Warn("failed to close database", logger.ErrorField(err))
		}
	}
	return repository.NewGormTrackRepository(db.GormDB), repository.NewGormPlaylistRepository(db.GormDB), closeDB, nil
}

// openCache returns the redis playlist cache, or a no-op one when redis is
// disabled or unreachable.
func openCache(cfg *config.Config) (service.PlaylistCache, func()) {
	if !cfg.RedisEnabled {
		return cache.Nop{}, func() {}
	}

	if err := cache.ConnectRedis(cfg); err != nil {
		logger.Warn("redis unavailable, playlist cache disabled",
			logger.String("addr", cfg.RedisAddr()),
			logger.ErrorField(err))
		return cache.Nop{}, func() {}
	}

	closeRedis := func() {
		if err := cache.CloseRedis(); err != nil {
			logger.Warn("failed to close redis", logger.ErrorField(err))
		}
	}
	return cache.NewPlaylistCache(cache.RedisClient, cfg.CacheTTL), closeRedis
}

// watchLogLevel applies LOG_LEVEL changes from the .env file at runtime.
func watchLogLevel(ctx context.Context, path string) {
	if _, err := os.Stat(path); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warn("cannot stat env file", logger.String("path", path), logger.ErrorField(err))
		}
		return
	}

	err := config.Watch(ctx, path, func(values map[string]string) {
		level, ok := values["LOG_LEVEL"]
		if !ok || logger.LogLevel(level) == logger.Level() {
			return
		}
		logger.SetLevel(logger.LogLevel(level))
		logger.Info("log level changed", logger.String("level", level))
	})
	if err != nil {
		logger.Warn("env file watcher stopped", logger.ErrorField(err))
	}
}
