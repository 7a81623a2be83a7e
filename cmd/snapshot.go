package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"tracklist/cache"
	"tracklist/logger"
	"tracklist/service"
	"tracklist/storage"
)

var snapshotList bool

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "导出歌单到 MinIO",
	Long:  `将所有歌单以 JSON 格式导出到 MinIO 存储桶（playlists/<id>.json），存储桶不存在时自动创建。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()

		store, err := storage.NewSnapshotStore(cfg)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
		defer cancel()

		if snapshotList {
			objects, err := store.ListSnapshots(ctx)
			if err != nil {
				return err
			}
			for _, o := range objects {
				fmt.Printf("%s\t%s\t%s\n", o.Key, storage.FormatSize(o.Size), o.LastModified.Format(time.RFC3339))
			}
			fmt.Printf("共 %d 个快照\n", len(objects))
			return nil
		}

		tracks, playlists, closeStore, err := openRepositories(cfg)
		if err != nil {
			return err
		}
		defer closeStore()

		all, err := service.NewPlaylistService(playlists, tracks, cache.Nop{}, cfg.PlaylistSaveRetries).ListPlaylists(ctx)
		if err != nil {
			return fmt.Errorf("list playlists: %w", err)
		}

		if err := store.EnsureBucket(ctx); err != nil {
			return err
		}
		n, err := store.ExportPlaylists(ctx, all)
		if err != nil {
			return err
		}

		logger.Info("snapshot finished",
			logger.String("bucket", store.Bucket()),
			logger.Int("playlists", n))
		return nil
	},
}

func init() {
	snapshotCmd.Flags().BoolVarP(&snapshotList, "list", "l", false, "list existing snapshots instead of exporting")
	rootCmd.AddCommand(snapshotCmd)
}
