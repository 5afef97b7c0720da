// Package objectstorage moves files between the local work folder and the
// S3 compatible object storage, addressed with the s3://bucket/key
// convention of pkg/obs.
package objectstorage

import (
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"groundseg/internal/config"
	"groundseg/pkg/errors"
	"groundseg/pkg/metrics"
	"groundseg/pkg/obs"
)

// Store is what the workers need from object storage.
type Store interface {
	// Download fetches the object at url into localDir. When url names a
	// folder every object below it is fetched, keeping relative paths.
	Download(ctx context.Context, url, localDir string) ([]string, error)
	// UploadDir uploads every file below localPath (a file or a folder)
	// under bucket/parentKey, keeping the base name of localPath.
	UploadDir(ctx context.Context, localPath, bucket, parentKey string) ([]string, error)
	Exists(ctx context.Context, url string) (bool, error)
	Ping(ctx context.Context) error
}

type MinioStore struct {
	client *minio.Client
	region string
}

func NewMinioStore(cfg config.ObjectStorageConfig) (*MinioStore, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("object storage endpoint is required")
	}

	endpoint := cfg.Endpoint
	useSSL := cfg.UseSSL
	if u, err := url.Parse(cfg.Endpoint); err == nil && u.Host != "" {
		endpoint = u.Host
		if u.Scheme == "https" {
			useSSL = true
		}
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &MinioStore{client: client, region: cfg.Region}, nil
}

func (s *MinioStore) Ping(ctx context.Context) error {
	_, err := s.client.ListBuckets(ctx)
	if err != nil {
		return classifyMinioError(err, "ping", "", "")
	}
	return nil
}

// EnsureBucket creates bucket when it does not exist yet.
func (s *MinioStore) EnsureBucket(ctx context.Context, bucket string) error {
	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return classifyMinioError(err, "ensure_bucket", bucket, "")
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return classifyMinioError(err, "ensure_bucket", bucket, "")
	}
	return nil
}

func (s *MinioStore) Exists(ctx context.Context, u string) (bool, error) {
	bucket, key := obs.Decompose(u)
	_, err := s.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return false, nil
	}
	return false, classifyMinioError(err, "stat", bucket, key)
}

func (s *MinioStore) Download(ctx context.Context, u, localDir string) (files []string, err error) {
	start := time.Now()
	defer func() { observe("download", start, err) }()

	bucket, key := obs.Decompose(u)
	if bucket == "" || key == "" {
		return nil, errors.ErrFileOperation.
			WithMessage("download address has no key").
			WithDetail(errors.DetailStoragePath, u).
			AsFatal()
	}

	if _, statErr := s.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{}); statErr == nil {
		target := filepath.Join(localDir, obs.KeyToName(key))
		if err := s.client.FGetObject(ctx, bucket, key, target, minio.GetObjectOptions{}); err != nil {
			return nil, classifyMinioError(err, "download", bucket, key)
		}
		return []string{target}, nil
	} else if minio.ToErrorResponse(statErr).Code != "NoSuchKey" {
		return nil, classifyMinioError(statErr, "download", bucket, key)
	}

	// Returning early leaves the listing unread; cancelling stops its producer.
	listCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	prefix := strings.TrimSuffix(key, obs.Separator) + obs.Separator
	base := obs.KeyToName(strings.TrimSuffix(key, obs.Separator))
	for object := range s.client.ListObjects(listCtx, bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if object.Err != nil {
			return nil, classifyMinioError(object.Err, "download", bucket, key)
		}
		if strings.HasSuffix(object.Key, obs.Separator) {
			continue
		}
		rel := filepath.FromSlash(strings.TrimPrefix(object.Key, prefix))
		if !filepath.IsLocal(rel) {
			return nil, errors.ErrFileOperation.
				WithMessage("object key escapes the download folder").
				WithDetail(errors.DetailKey, object.Key).
				AsFatal()
		}
		target := filepath.Join(localDir, base, rel)
		if err := s.client.FGetObject(ctx, bucket, object.Key, target, minio.GetObjectOptions{}); err != nil {
			return nil, classifyMinioError(err, "download", bucket, object.Key)
		}
		files = append(files, target)
	}

	if len(files) == 0 {
		return nil, errors.ErrFileOperation.
			WithMessage("nothing to download").
			WithDetail(errors.DetailStoragePath, u)
	}
	return files, nil
}

func (s *MinioStore) UploadDir(ctx context.Context, localPath, bucket, parentKey string) (urls []string, err error) {
	start := time.Now()
	defer func() { observe("upload", start, err) }()

	root := filepath.Clean(localPath)
	rootKey := obs.ToKey(parentKey, filepath.Base(root))

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}

		key := rootKey
		if path != root {
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			key = rootKey + obs.Separator + filepath.ToSlash(rel)
		}

		if _, err := s.client.FPutObject(ctx, bucket, key, path, minio.PutObjectOptions{
			ContentType: "application/octet-stream",
		}); err != nil {
			return classifyMinioError(err, "upload", bucket, key)
		}
		urls = append(urls, obs.ToURL(bucket, "", key))
		return nil
	})
	if err != nil {
		var appErr *errors.Error
		if stderrors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, errors.ErrFileOperation.
			WithCause(err).
			WithDetail("operation", "upload").
			WithDetail("local_path", localPath)
	}
	return urls, nil
}

func observe(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.IncObjectStorageOperation(operation, status)
	metrics.ObserveObjectStorageDuration(operation, time.Since(start))
}

// classifyMinioError turns a minio failure into a FILE_OPERATION_ERROR.
// Permission and credential failures cannot heal on retry and are fatal.
func classifyMinioError(err error, operation, bucket, key string) *errors.Error {
	appErr := errors.ErrFileOperation.
		WithCause(err).
		WithDetail("operation", operation)
	if bucket != "" {
		appErr = appErr.WithDetail("bucket", bucket)
	}
	if key != "" {
		appErr = appErr.WithDetail(errors.DetailKey, key)
	}

	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return appErr.WithDetail("reason", "cancelled")
	}

	reason := "unknown"
	if resp := minio.ToErrorResponse(err); resp.Code != "" {
		switch resp.Code {
		case "NoSuchBucket":
			reason = "bucket_not_found"
		case "NoSuchKey":
			reason = "object_not_found"
		case "AccessDenied":
			return appErr.WithDetail("reason", "permission_denied").AsFatal()
		case "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return appErr.WithDetail("reason", "auth_invalid").AsFatal()
		}
		return appErr.WithDetail("reason", reason)
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case stderrors.Is(err, os.ErrNotExist):
		return appErr.WithDetail("reason", "local_file_missing").AsFatal()
	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline"):
		reason = "timeout"
	case strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "no such host"):
		reason = "endpoint_unreachable"
	}
	return appErr.WithDetail("reason", reason)
}
