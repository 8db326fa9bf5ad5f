package s3

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// S3Storage is the hosted-image gateway. It takes a locally staged file,
// pushes it to a MinIO bucket under a fresh object key, and returns the
// object's public URL.
type S3Storage struct {
	client *minio.Client
	bucket string
	logger *zap.Logger
}

func NewS3Storage(endpoint, accessKey, secretKey, bucket string, useSSL bool, logger *zap.Logger) (*S3Storage, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client for %s: %w", endpoint, err)
	}

	err = client.MakeBucket(context.Background(), bucket, minio.MakeBucketOptions{})
	if err != nil {
		exists, existsErr := client.BucketExists(context.Background(), bucket)
		if existsErr != nil || !exists {
			return nil, fmt.Errorf("make/verify bucket %s: %w", bucket, err)
		}
	}

	logger.Info("image storage ready", zap.String("endpoint", endpoint), zap.String("bucket", bucket))
	return &S3Storage{client: client, bucket: bucket, logger: logger}, nil
}

// Upload stores the staged file under listings/<uuid><ext> and returns its URL.
func (s *S3Storage) Upload(ctx context.Context, localPath string) (string, error) {
	ext := filepath.Ext(localPath)
	objectKey := fmt.Sprintf("listings/%s%s", uuid.New().String(), ext)

	contentType := mime.TypeByExtension(ext)
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	info, err := s.client.FPutObject(ctx, s.bucket, objectKey, localPath, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		s.logger.Error("FPutObject failed", zap.String("key", objectKey), zap.Error(err))
		return "", fmt.Errorf("upload object %s: %w", objectKey, err)
	}

	url := fmt.Sprintf("%s/%s/%s", s.client.EndpointURL().String(), s.bucket, objectKey)
	s.logger.Debug("image uploaded",
		zap.String("key", info.Key),
		zap.Int64("size", info.Size),
		zap.String("url", url))
	return url, nil
}
