package service

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"

	"recipe-book-go/internal/apperr"
	"recipe-book-go/internal/repository"
	"recipe-book-go/pkg/log"
)

// photoURLExpiry 是图片预签名下载链接的有效期。
const photoURLExpiry = 15 * time.Minute

// PhotoService 负责菜谱图片的上传和访问，图片存放在 MinIO 中。
// 上传只允许菜谱的所有者，访问遵循与菜谱本身相同的可见性规则。
type PhotoService interface {
	Upload(ctx context.Context, recipeID uint, requesterID uint, reader io.Reader, size int64, contentType string) error
	PresignedURL(ctx context.Context, recipeID uint, requesterID uint) (string, error)
}

type photoService struct {
	recipeRepo  repository.RecipeRepository
	minioClient *minio.Client
	bucketName  string
}

// NewPhotoService 创建一个新的 PhotoService 实例。
func NewPhotoService(recipeRepo repository.RecipeRepository, minioClient *minio.Client, bucketName string) PhotoService {
	return &photoService{
		recipeRepo:  recipeRepo,
		minioClient: minioClient,
		bucketName:  bucketName,
	}
}

func photoObjectName(recipeID uint) string {
	return fmt.Sprintf("recipes/%d/photo", recipeID)
}

// Upload 保存菜谱图片。先对存储行复核所有权，再写对象。
func (s *photoService) Upload(ctx context.Context, recipeID uint, requesterID uint, reader io.Reader, size int64, contentType string) error {
	recipe, err := s.recipeRepo.FindByID(recipeID)
	if err != nil {
		return err
	}
	if recipe.CreatedByUserID != requesterID {
		return apperr.ErrNotFoundOrNotPermitted
	}

	_, err = s.minioClient.PutObject(ctx, s.bucketName, photoObjectName(recipeID), reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		log.Errorf("[PhotoService] 上传图片失败: recipeID=%d, error: %v", recipeID, err)
		return fmt.Errorf("%w: %v", apperr.ErrStorage, err)
	}
	return nil
}

// PresignedURL 返回图片的临时下载链接。可见性检查复用菜谱读取的规则，
// 看不到菜谱的人也拿不到它的图片。
func (s *photoService) PresignedURL(ctx context.Context, recipeID uint, requesterID uint) (string, error) {
	if _, err := s.recipeRepo.FindVisibleByID(recipeID, requesterID); err != nil {
		return "", err
	}

	u, err := s.minioClient.PresignedGetObject(ctx, s.bucketName, photoObjectName(recipeID), photoURLExpiry, url.Values{})
	if err != nil {
		log.Errorf("[PhotoService] 生成图片链接失败: recipeID=%d, error: %v", recipeID, err)
		return "", fmt.Errorf("%w: %v", apperr.ErrStorage, err)
	}
	return u.String(), nil
}
