package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type ClientMinio interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (info minio.UploadInfo, err error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

// MinioS3Client is the object store adapter. Uploads return the canonical
// durable URL under which the object stays addressable; deletes take the
// object key derived back from that URL.
type MinioS3Client struct {
	endpoint   string
	useSSL     bool
	bucketName string
	client     ClientMinio
}

// NewMinioS3Client creates a new MinioS3Client instance.
func NewMinioS3Client(endpoint, accessKeyID, secretAccessKey, bucketName string, useSSL bool) (*MinioS3Client, error) {
	minioClient, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKeyID, secretAccessKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		log.Printf("can not create minio client %v for endpoint %s", err, endpoint)
		return nil, fmt.Errorf("failed to create minio s3 client: %w", err)
	}

	return &MinioS3Client{
		endpoint:   endpoint,
		useSSL:     useSSL,
		bucketName: bucketName,
		client:     minioClient,
	}, nil
}

// StoragePath decides the object key for an upload before any I/O happens:
// <ownerID>/<unixMillis><ext>. Pure so tests never need a filesystem.
func StoragePath(ownerID, originalName string, now time.Time) string {
	ext := strings.ToLower(filepath.Ext(originalName))
	return fmt.Sprintf("%s/%d%s", ownerID, now.UnixMilli(), ext)
}

// ObjectURL returns the canonical durable URL for an object key.
func (s3 *MinioS3Client) ObjectURL(objectPath string) string {
	scheme := "https"
	if !s3.useSSL {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, s3.endpoint, s3.bucketName, objectPath)
}

// ObjectNameFromURL derives the object key back from a canonical URL. URLs
// that do not live under this endpoint and bucket cannot be deleted safely.
func (s3 *MinioS3Client) ObjectNameFromURL(rawURL string) (string, error) {
	prefix := s3.ObjectURL("")
	if !strings.HasPrefix(rawURL, prefix) {
		return "", fmt.Errorf("url %q is not under %q", rawURL, prefix)
	}
	name := strings.TrimPrefix(rawURL, prefix)
	if name == "" {
		return "", fmt.Errorf("url %q has no object name", rawURL)
	}
	return name, nil
}

// UploadFile uploads a local file into the bucket under objectPath and
// returns the canonical URL.
func (s3 *MinioS3Client) UploadFile(ctx context.Context, localPath, objectPath string) (string, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("can not open %s: %w", localPath, err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf("can not stat %s: %w", localPath, err)
	}
	if stat.Size() == 0 {
		return "", fmt.Errorf("file %s is empty", localPath)
	}

	_, err = s3.client.PutObject(ctx,
		s3.bucketName,
		objectPath,
		file,
		stat.Size(),
		minio.PutObjectOptions{ContentType: MimeTypeFor(objectPath)})
	if err != nil {
		return "", fmt.Errorf("can not put object %s: %w", objectPath, err)
	}
	return s3.ObjectURL(objectPath), nil
}

func (s3 *MinioS3Client) DeleteFile(ctx context.Context, objectPath string) error {
	opts := minio.RemoveObjectOptions{}
	err := s3.client.RemoveObject(ctx, s3.bucketName, objectPath, opts)
	log.Printf("remove %s, %s", s3.bucketName, objectPath)
	if err != nil {
		return fmt.Errorf("can not remove object %s: %w", objectPath, err)
	}
	return nil
}
