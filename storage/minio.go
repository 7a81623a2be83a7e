package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"tracklist/config"
	"tracklist/logger"
	"tracklist/model"
)

// SnapshotPrefix is the object prefix under which playlists are exported.
const SnapshotPrefix = "playlists/"

// ObjectInfo 快照文件信息
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// SnapshotStore 将歌单导出为 MinIO 中的 JSON 对象
type SnapshotStore struct {
	client *minio.Client
	bucket string
	region string
}

// NewSnapshotStore 创建 MinIO 快照存储
func NewSnapshotStore(cfg *config.Config) (*SnapshotStore, error) {
	if cfg.MinioEndpoint == "" {
		return nil, errors.New("MINIO_ENDPOINT is not set")
	}
	if cfg.MinioBucket == "" {
		return nil, errors.New("MINIO_BUCKET is not set")
	}

	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &SnapshotStore{client: client, bucket: cfg.MinioBucket, region: cfg.MinioRegion}, nil
}

// Bucket returns the target bucket name.
func (s *SnapshotStore) Bucket() string {
	return s.bucket
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *SnapshotStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}

	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	logger.Info("Created bucket", logger.String("bucket", s.bucket))
	return nil
}

// ExportPlaylists writes one object per playlist and returns how many were
// written. It stops at the first failed upload.
func (s *SnapshotStore) ExportPlaylists(ctx context.Context, playlists []*model.Playlist) (int, error) {
	written := 0
	for _, p := range playlists {
		body, err := encodeSnapshot(p)
		if err != nil {
			return written, err
		}

		name := ObjectName(p.ID())
		_, err = s.client.PutObject(ctx, s.bucket, name, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
			ContentType: "application/json",
		})
		if err != nil {
			return written, fmt.Errorf("upload %s: %w", name, err)
		}
		written++

		logger.Debug("Exported playlist",
			logger.String("object", name),
			logger.Int("tracks", p.TrackCount()))
	}
	return written, nil
}

// ListSnapshots 列出已导出的歌单快照，按对象名排序
func (s *SnapshotStore) ListSnapshots(ctx context.Context) ([]ObjectInfo, error) {
	var objects []ObjectInfo
	objectCh := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    SnapshotPrefix,
		Recursive: true,
	})
	for object := range objectCh {
		if object.Err != nil {
			return nil, fmt.Errorf("list objects: %w", object.Err)
		}
		objects = append(objects, ObjectInfo{
			Key:          object.Key,
			Size:         object.Size,
			LastModified: object.LastModified,
		})
	}

	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

// ObjectName returns the object key of a playlist snapshot.
func ObjectName(playlistID string) string {
	return path.Join(SnapshotPrefix, playlistID+".json")
}

func encodeSnapshot(p *model.Playlist) ([]byte, error) {
	body, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode playlist %s: %w", p.ID(), err)
	}
	return body, nil
}

// FormatSize 格式化文件大小
func FormatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
