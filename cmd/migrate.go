package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"tracklist/config"
	"tracklist/db"
	"tracklist/logger"
	"tracklist/repository"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "创建或更新数据库表结构",
	Long:  `对 tracks、playlists 和 playlist_tracks 表执行 GORM AutoMigrate。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()

		if cfg.DBDriver == config.DriverMemory {
			return fmt.Errorf("nothing to migrate for DB_DRIVER=%s", cfg.DBDriver)
		}

		if err := db.ConnectGormDB(cfg); err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer db.CloseGormDB()

		return db.AutoMigrateModels(repository.Models()...)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
