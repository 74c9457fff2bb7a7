// Package storage 提供了 MinIO 对象存储客户端的构造，用于菜谱图片。
package storage

import (
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"recipe-book-go/internal/config"
	"recipe-book-go/pkg/log"
)

// NewMinIO 创建 MinIO 客户端，并确保图片 bucket 存在。
func NewMinIO(cfg config.MinIOConfig) (*minio.Client, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("创建 MinIO 客户端失败: %w", err)
	}

	ctx := context.Background()
	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("检查 bucket 是否存在失败: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("创建 bucket '%s' 失败: %w", cfg.BucketName, err)
		}
		log.Infof("已创建 MinIO bucket '%s'", cfg.BucketName)
	}

	return client, nil
}
