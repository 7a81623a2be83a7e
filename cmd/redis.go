package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"tracklist/cache"
	"tracklist/logger"
)

var redisCmd = &cobra.Command{
	Use:   "redis",
	Short: "Redis连接测试",
	Long:  `测试Redis连接是否成功，并进行基本读写操作。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()

		fmt.Printf("Redis配置: %s, DB: %d\n", cfg.RedisAddr(), cfg.RedisDB)

		if err := cache.ConnectRedis(cfg); err != nil {
			return err
		}
		defer func() {
			if err := cache.CloseRedis(); err != nil {
				logger.Warn("failed to close redis", logger.ErrorField(err))
			}
		}()
		fmt.Println("Redis连接成功！")

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()
		if err := cache.CheckRedis(ctx); err != nil {
			return fmt.Errorf("redis read/write check failed: %w", err)
		}
		fmt.Println("Redis基本操作测试成功！")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(redisCmd)
}
