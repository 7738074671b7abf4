package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
)

// StoredFile result of an upload; Path is what FILE inputs store
type StoredFile struct {
	ID          string `json:"id"`
	Path        string `json:"path"`
	URL         string `json:"url"`
	Filename    string `json:"filename"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
}

// UploadService stores input attachments in MinIO, or on local disk when
// MinIO is not configured
type UploadService struct {
	minioClient *minio.Client
	bucket      string
	localDir    string
}

func NewUploadService(minioClient *minio.Client, bucket, localDir string) *UploadService {
	if localDir == "" {
		localDir = "./uploads"
	}
	return &UploadService{minioClient: minioClient, bucket: bucket, localDir: localDir}
}

func (s *UploadService) Store(ctx context.Context, r io.Reader, filename string, size int64, contentType string) (*StoredFile, error) {
	name := filepath.Base(strings.TrimSpace(filename))
	if name == "" || name == "." || name == "/" {
		return nil, invalid("file", "file name is required")
	}

	now := time.Now()
	id := uuid.New().String()
	objectName := path.Join("inputs", now.Format("2006/01/02"), id+filepath.Ext(name))

	if s.minioClient != nil {
		_, err := s.minioClient.PutObject(ctx, s.bucket, objectName, r, size, minio.PutObjectOptions{
			ContentType: contentType,
		})
		if err != nil {
			return nil, fmt.Errorf("upload file: %w", err)
		}
		return &StoredFile{
			ID:          id,
			Path:        objectName,
			URL:         "/" + s.bucket + "/" + objectName,
			Filename:    name,
			Size:        size,
			ContentType: contentType,
		}, nil
	}

	dst := filepath.Join(s.localDir, filepath.FromSlash(objectName))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	f, err := os.Create(dst)
	if err != nil {
		return nil, fmt.Errorf("create upload file: %w", err)
	}
	written, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dst)
		return nil, fmt.Errorf("write upload file: %w", err)
	}
	return &StoredFile{
		ID:          id,
		Path:        objectName,
		URL:         "/uploads/" + objectName,
		Filename:    name,
		Size:        written,
		ContentType: contentType,
	}, nil
}
