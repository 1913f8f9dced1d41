package storage

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type Store struct {
	client     *minio.Client
	bucketName string
	region     string
}

// New connects to MinIO and ensures the application bucket exists
func New(ctx context.Context, endpoint, region, bucket, accessKey, secretKey string, useSSL bool) (*Store, error) {
	cli, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, err
	}

	exists, err := cli.BucketExists(ctx, bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := cli.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}); err != nil {
			return nil, err
		}
	}

	return &Store{client: cli, bucketName: bucket, region: region}, nil
}

// Put implements reports.PhotoStore: stores an uploaded photo under key and
// returns its "bucket/key" location.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	if contentType == "" {
		contentType = contentTypeForKey(key)
	}
	_, err := s.client.PutObject(ctx, s.bucketName, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%s", s.bucketName, key), nil
}

// Copy reads an object from srcLocation ("bucket/key", optionally with an
// s3:// scheme) and writes it under destKey in the application bucket.
// Get-then-put rather than a server-side copy: the source bucket belongs
// to the detection service.
func (s *Store) Copy(ctx context.Context, srcLocation, destKey string) (string, error) {
	srcBucket, srcKey, err := splitLocation(srcLocation)
	if err != nil {
		return "", err
	}

	obj, err := s.client.GetObject(ctx, srcBucket, srcKey, minio.GetObjectOptions{})
	if err != nil {
		return "", fmt.Errorf("get %s: %w", srcLocation, err)
	}
	defer obj.Close()

	stat, err := obj.Stat()
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", srcLocation, err)
	}

	_, err = s.client.PutObject(ctx, s.bucketName, destKey, obj, stat.Size, minio.PutObjectOptions{
		ContentType: stat.ContentType,
	})
	if err != nil {
		return "", fmt.Errorf("put %s: %w", destKey, err)
	}
	return fmt.Sprintf("%s/%s", s.bucketName, destKey), nil
}

// Ping checks connectivity for health reporting
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.client.BucketExists(ctx, s.bucketName)
	return err
}

func splitLocation(location string) (bucket, key string, err error) {
	loc := strings.TrimPrefix(location, "s3://")
	parts := strings.SplitN(loc, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid object location: %s", location)
	}
	return parts[0], parts[1], nil
}

func contentTypeForKey(key string) string {
	switch strings.ToLower(filepath.Ext(key)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
