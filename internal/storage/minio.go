package storage

import (
	"context"
	"io"
	"sort"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"scriptcheck/internal/config"
	"scriptcheck/internal/services"
)

// MinioStore is the production ObjectStore backed by any S3-compatible
// endpoint (MinIO, GCS interoperability mode, AWS).
type MinioStore struct {
	client *minio.Client
	bucket string
}

// NewMinioStore builds the client and verifies the bucket exists.
func NewMinioStore(ctx context.Context, cfg *config.Config) (*MinioStore, error) {
	client, err := minio.New(cfg.Storage.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Storage.AccessKey, cfg.Storage.SecretKey, ""),
		Secure: cfg.Storage.UseSSL,
		Region: cfg.Storage.Region,
	})
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "storage", "connect", "build storage client", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Storage.Bucket)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "storage", "connect", "check bucket", err)
	}
	if !exists {
		return nil, services.Wrap(services.ErrConfiguration, "storage", "connect", "bucket "+cfg.Storage.Bucket+" does not exist", nil)
	}

	return &MinioStore{client: client, bucket: cfg.Storage.Bucket}, nil
}

func (s *MinioStore) PutFile(ctx context.Context, key, localPath, contentType string) error {
	_, err := s.client.FPutObject(ctx, s.bucket, key, localPath, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return classify("put", key, err)
	}
	return nil
}

func (s *MinioStore) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, body, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return classify("put", key, err)
	}
	return nil
}

func (s *MinioStore) GetFile(ctx context.Context, key, localPath string) error {
	if err := s.client.FGetObject(ctx, s.bucket, key, localPath, minio.GetObjectOptions{}); err != nil {
		return classify("get", key, err)
	}
	return nil
}

func (s *MinioStore) Get(ctx context.Context, key string) ([]byte, error) {
	object, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, classify("get", key, err)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		return nil, classify("get", key, err)
	}
	return data, nil
}

func (s *MinioStore) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	for object := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if object.Err != nil {
			return nil, classify("list", prefix, object.Err)
		}
		keys = append(keys, object.Key)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *MinioStore) RemovePrefix(ctx context.Context, prefix string) error {
	keys, err := s.List(ctx, prefix)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
			return classify("remove", key, err)
		}
	}
	return nil
}

// classify maps storage failures onto the error taxonomy: missing objects and
// permission problems are permanent, everything else is assumed to be a
// network fault worth retrying.
func classify(operation, key string, err error) error {
	response := minio.ToErrorResponse(err)
	switch response.Code {
	case "NoSuchKey", "NoSuchBucket":
		return services.Wrap(services.ErrNotFound, "storage", operation, key, err)
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return services.Wrap(services.ErrConfiguration, "storage", operation, key, err)
	default:
		return services.Wrap(services.ErrTransient, "storage", operation, key, err)
	}
}
